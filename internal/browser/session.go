package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Artifacts selects what a session records per page
type Artifacts struct {
	Dir         string
	Videos      bool
	Traces      bool
	Screenshots bool
}

// Session owns one browser for its lifetime and hands out one page per scenario
type Session struct {
	driver    string
	browser   Browser
	artifacts Artifacts
	logger    *zap.Logger
	closeOnce sync.Once
	closeErr  error
}

// SessionOption customises Open
type SessionOption func(*Session)

// WithArtifacts sets where and what the session records
func WithArtifacts(a Artifacts) SessionOption {
	return func(s *Session) { s.artifacts = a }
}

// WithSessionLogger attaches a logger
func WithSessionLogger(l *zap.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// Open launches a browser through driver
func Open(ctx context.Context, driver Driver, opts Options, sopts ...SessionOption) (*Session, error) {
	s := &Session{
		driver:    driver.Name(),
		artifacts: Artifacts{Dir: "test-results"},
		logger:    zap.NewNop(),
	}
	for _, o := range sopts {
		o(s)
	}
	b, err := driver.Launch(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("launch %s browser: %w", driver.Name(), err)
	}
	s.browser = b
	s.logger.Info("browser session opened",
		zap.String("driver", s.driver),
		zap.Bool("headless", opts.Headless),
		zap.Int("viewport_width", opts.ViewportWidth),
		zap.Int("viewport_height", opts.ViewportHeight))
	return s, nil
}

// NewSession wraps an already running browser
func NewSession(b Browser, sopts ...SessionOption) *Session {
	s := &Session{driver: "custom", browser: b, artifacts: Artifacts{Dir: "test-results"}, logger: zap.NewNop()}
	for _, o := range sopts {
		o(s)
	}
	return s
}

// ArtifactDir is where a named scenario's video, trace, downloads and screenshots go
func (s *Session) ArtifactDir(name string) string {
	return filepath.Join(s.artifacts.Dir, Slug(name))
}

// WithPage opens a fresh page for name, runs fn and always closes the page again.
// A failing fn leaves a screenshot behind when screenshots are enabled.
func (s *Session) WithPage(ctx context.Context, name string, fn func(page Page, dir string) error) (err error) {
	dir := s.ArtifactDir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir %s: %w", dir, err)
	}
	popts := PageOptions{DownloadDir: filepath.Join(dir, "downloads")}
	if s.artifacts.Videos {
		popts.VideoDir = filepath.Join(dir, "video")
	}
	if s.artifacts.Traces {
		popts.TracePath = filepath.Join(dir, "trace.zip")
	}

	page, err := s.browser.NewPage(ctx, popts)
	if err != nil {
		return fmt.Errorf("open page for %s: %w", name, err)
	}
	log := s.logger.With(zap.String("scenario", name))
	log.Debug("page opened", zap.String("artifacts", dir))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scenario %s panicked: %v", name, r)
		}
		if err != nil && s.artifacts.Screenshots {
			shot := filepath.Join(dir, "failure.png")
			if serr := page.Screenshot(shot); serr != nil {
				log.Warn("failure screenshot not taken", zap.Error(serr))
			} else {
				log.Info("failure screenshot saved", zap.String("path", shot))
			}
		}
		if cerr := page.Close(); cerr != nil {
			if err == nil {
				err = fmt.Errorf("close page for %s: %w", name, cerr)
			} else {
				log.Warn("page close failed", zap.Error(cerr))
			}
		}
		log.Debug("page closed")
	}()

	return fn(page, dir)
}

// Close shuts the browser down; later calls return the first result
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.browser.Close()
		s.logger.Info("browser session closed", zap.String("driver", s.driver))
	})
	return s.closeErr
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a scenario name into a directory-safe token
func Slug(name string) string {
	s := slugUnsafe.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "scenario"
	}
	return s
}
