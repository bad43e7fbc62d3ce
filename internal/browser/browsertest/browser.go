package browsertest

import (
	"context"
	"sync"

	"github.com/dispatchlab/rtdcheck/internal/browser"
)

// Browser hands out pages built by NewPageFunc and remembers them
type Browser struct {
	mu          sync.Mutex
	NewPageFunc func(opts browser.PageOptions) (*Page, error)
	Pages       []*Page
	Options     []browser.PageOptions
	closed      bool
}

var _ browser.Browser = (*Browser)(nil)

func (b *Browser) NewPage(_ context.Context, opts browser.PageOptions) (browser.Page, error) {
	p, err := b.NewPageFunc(opts)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.Pages = append(b.Pages, p)
	b.Options = append(b.Options, opts)
	b.mu.Unlock()
	return p, nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

// Closed reports whether Close was called
func (b *Browser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Driver launches a fixed Browser
type Driver struct {
	Browser  *Browser
	Launched []browser.Options
}

var _ browser.Driver = (*Driver)(nil)

func (d *Driver) Name() string { return "fake" }

func (d *Driver) Launch(_ context.Context, opts browser.Options) (browser.Browser, error) {
	d.Launched = append(d.Launched, opts)
	return d.Browser, nil
}
