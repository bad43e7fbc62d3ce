// Package intercept pairs a UI action with the network response it causes.
package intercept

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dispatchlab/rtdcheck/internal/browser"
	"github.com/dispatchlab/rtdcheck/internal/faults"
	"github.com/dispatchlab/rtdcheck/internal/jsonpath"
	"github.com/dispatchlab/rtdcheck/internal/metrics"
)

// DefaultTimeout bounds the wait for a matching response
const DefaultTimeout = 30 * time.Second

// Exchange is an immutable snapshot of one intercepted round trip
type Exchange struct {
	URL        string
	Method     string
	StatusCode int
	Raw        []byte
	Body       jsonpath.Value
}

// Endpoint identifies the request a trigger is expected to cause
type Endpoint struct {
	URLSubstring string
	Method       string
}

func (e Endpoint) String() string { return e.Method + " *" + e.URLSubstring + "*" }

// Bridge captures responses on one page
type Bridge struct {
	page    browser.Page
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Collector
}

// Option customises a Bridge
type Option func(*Bridge)

func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.timeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(b *Bridge) { b.metrics = m }
}

// NewBridge creates a bridge on page
func NewBridge(page browser.Page, opts ...Option) *Bridge {
	b := &Bridge{page: page, timeout: DefaultTimeout, logger: zap.NewNop()}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Timeout is the bound applied to each Intercept call
func (b *Bridge) Timeout() time.Duration { return b.timeout }

// Intercept arms a watcher for the first response whose URL contains urlSubstring and
// whose request method equals method exactly, runs trigger, and waits for that response.
// Only the first match is observed; later matching responses caused by the same trigger
// are dropped.
func (b *Bridge) Intercept(ctx context.Context, urlSubstring, method string, trigger func() error) (*Exchange, error) {
	target := Endpoint{URLSubstring: urlSubstring, Method: method}
	matched := make(chan browser.Response, 1)
	remove := b.page.OnResponse(func(r browser.Response) {
		if r.Method() != method || !strings.Contains(r.URL(), urlSubstring) {
			return
		}
		select {
		case matched <- r:
		default:
		}
	})
	defer remove()

	start := time.Now()
	if err := trigger(); err != nil {
		b.metrics.ObserveIntercept("error", time.Since(start))
		return nil, fmt.Errorf("trigger for %s: %w", target, err)
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case r := <-matched:
		b.metrics.ObserveIntercept("matched", time.Since(start))
		return b.capture(r)
	case <-timer.C:
		b.metrics.ObserveIntercept("timeout", time.Since(start))
		b.logger.Warn("no matching response", zap.Stringer("endpoint", target), zap.Duration("timeout", b.timeout))
		return nil, &faults.TimeoutError{Op: "intercept", Target: target.String(), After: b.timeout}
	case <-ctx.Done():
		b.metrics.ObserveIntercept("error", time.Since(start))
		return nil, ctx.Err()
	}
}

// InterceptEndpoint is Intercept for a prepared Endpoint
func (b *Bridge) InterceptEndpoint(ctx context.Context, e Endpoint, trigger func() error) (*Exchange, error) {
	return b.Intercept(ctx, e.URLSubstring, e.Method, trigger)
}

func (b *Bridge) capture(r browser.Response) (*Exchange, error) {
	raw, err := r.Body()
	if err != nil {
		return nil, fmt.Errorf("read body of %s %s: %w", r.Method(), r.URL(), err)
	}
	body, err := jsonpath.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("response %s %s (status %d): %w", r.Method(), r.URL(), r.Status(), err)
	}
	b.logger.Debug("response intercepted",
		zap.String("url", r.URL()),
		zap.String("method", r.Method()),
		zap.Int("status", r.Status()),
		zap.Int("bytes", len(raw)))
	return &Exchange{
		URL:        r.URL(),
		Method:     r.Method(),
		StatusCode: r.Status(),
		Raw:        raw,
		Body:       body,
	}, nil
}
