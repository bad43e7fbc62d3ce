package helpers

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/dispatchlab/rtdcheck/internal/browser"
	"github.com/dispatchlab/rtdcheck/internal/browser/cdpdriver"
	"github.com/dispatchlab/rtdcheck/internal/browser/pwdriver"
	"github.com/dispatchlab/rtdcheck/internal/runner/tasks"
	"github.com/dispatchlab/rtdcheck/tests/e2e/config"
)

// BrowserHelper owns one browser session for a live test
type BrowserHelper struct {
	t       *testing.T
	Config  *config.TestConfig
	Session *browser.Session
	Logger  *zap.Logger
}

// NewBrowserHelper skips the test when the RTD application cannot be exercised:
// the configuration failed to load, the site is unreachable or no credentials
// are configured.
func NewBrowserHelper(t *testing.T) *BrowserHelper {
	t.Helper()
	cfg := config.GetConfig()
	switch {
	case cfg.LoadErr != nil:
		t.Skipf("rtdcheck configuration not usable: %v", cfg.LoadErr)
	case !cfg.Reachable:
		t.Skipf("%s is not reachable", cfg.Target.BaseURL)
	case cfg.Credentials.Email == "" || cfg.Credentials.Password == "":
		t.Skip("RTD_EMAIL and RTD_PASSWORD are not set")
	}
	return &BrowserHelper{t: t, Config: cfg, Logger: zaptest.NewLogger(t)}
}

// Setup launches the configured driver's browser
func (b *BrowserHelper) Setup() error {
	var driver browser.Driver = pwdriver.New(b.Logger)
	if b.Config.Browser.Driver == "chromedp" {
		driver = cdpdriver.New(b.Logger)
	}
	a := b.Config.Artifacts
	s, err := browser.Open(context.Background(), driver, tasks.BrowserOptions(b.Config.Browser),
		browser.WithArtifacts(browser.Artifacts{Dir: a.Dir, Videos: a.Videos, Traces: a.Traces, Screenshots: a.Screenshots}),
		browser.WithSessionLogger(b.Logger))
	if err != nil {
		return err
	}
	b.Session = s
	return nil
}

// TearDown closes the browser
func (b *BrowserHelper) TearDown() {
	if b.Session == nil {
		return
	}
	if err := b.Session.Close(); err != nil {
		b.t.Logf("closing browser: %v", err)
	}
}

// WithPage runs fn on a fresh page named after the running test
func (b *BrowserHelper) WithPage(fn func(page browser.Page) error) error {
	return b.Session.WithPage(b.t.Context(), b.t.Name(), func(page browser.Page, _ string) error {
		return fn(page)
	})
}
