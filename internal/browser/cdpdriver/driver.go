// Package cdpdriver drives Chromium over the DevTools protocol with chromedp.
// Network responses are captured from target events rather than routed, and
// videos and traces are not recorded.
package cdpdriver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/dispatchlab/rtdcheck/internal/browser"
	"github.com/dispatchlab/rtdcheck/internal/faults"
)

// idleQuiet is how long the page must have no request in flight to count as idle
const idleQuiet = 500 * time.Millisecond

// Driver launches a local Chromium through chromedp's exec allocator
type Driver struct {
	logger *zap.Logger
}

var _ browser.Driver = (*Driver)(nil)

func New(logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{logger: logger.Named("chromedp")}
}

func (d *Driver) Name() string { return "chromedp" }

// Launch starts the browser. The browser outlives ctx; it stops on Close.
func (d *Driver) Launch(ctx context.Context, opts browser.Options) (browser.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(opts.ViewportWidth, opts.ViewportHeight),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(d.logger.Sugar().Debugf))

	// the first Run starts the browser process
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("could not launch chromium: %w", err)
	}
	return &Browser{
		ctx:           browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		opts:          opts,
		logger:        d.logger,
	}, nil
}

// Browser is a running Chromium. Pages get their own browser context so cookies
// do not leak between scenarios.
type Browser struct {
	ctx           context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	opts          browser.Options
	logger        *zap.Logger
	warnOnce      sync.Once
}

func (b *Browser) NewPage(ctx context.Context, popts browser.PageOptions) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if popts.VideoDir != "" || popts.TracePath != "" {
		b.warnOnce.Do(func() {
			b.logger.Warn("videos and traces are only recorded by the playwright driver")
		})
	}

	tabCtx, cancel := chromedp.NewContext(b.ctx, chromedp.WithNewBrowserContext())
	p := &Page{
		ctx:       tabCtx,
		cancel:    cancel,
		opts:      b.opts,
		listeners: map[int]func(browser.Response){},
		requests:  map[network.RequestID]*exchange{},
		downloads: map[string]string{},
	}
	chromedp.ListenTarget(tabCtx, p.onEvent)

	actions := []chromedp.Action{
		network.Enable(),
		chromedp.EmulateViewport(int64(b.opts.ViewportWidth), int64(b.opts.ViewportHeight)),
	}
	if popts.DownloadDir != "" {
		if err := os.MkdirAll(popts.DownloadDir, 0o755); err != nil {
			cancel()
			return nil, fmt.Errorf("create download dir: %w", err)
		}
		p.downloadDir = popts.DownloadDir
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			return cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllowAndName).
				WithBrowserContextID(chromedp.FromContext(ctx).BrowserContextID).
				WithDownloadPath(popts.DownloadDir).
				WithEventsEnabled(true).
				Do(cdpContext(ctx))
		}))
	}
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		cancel()
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	return p, nil
}

// cdpContext sends browser-domain commands to the browser rather than the tab
func cdpContext(ctx context.Context) context.Context {
	return cdp.WithExecutor(ctx, chromedp.FromContext(ctx).Browser)
}

func (b *Browser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancelBrowser()
	b.cancelAlloc()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// exchange is one request followed through the network domain
type exchange struct {
	url    string
	method string
	status int
}

type download struct {
	name string
	path string
	err  error
}

// Page is one tab
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   browser.Options

	mu          sync.Mutex
	nextID      int
	listeners   map[int]func(browser.Response)
	requests    map[network.RequestID]*exchange
	inflight    int
	lastActive  time.Time
	downloadDir string
	downloads   map[string]string
	waiter      chan download
}

var _ browser.Page = (*Page)(nil)

func (p *Page) onEvent(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		p.mu.Lock()
		if _, redirected := p.requests[e.RequestID]; !redirected {
			p.inflight++
		}
		p.requests[e.RequestID] = &exchange{url: e.Request.URL, method: e.Request.Method}
		p.lastActive = time.Now()
		p.mu.Unlock()

	case *network.EventResponseReceived:
		p.mu.Lock()
		if ex, ok := p.requests[e.RequestID]; ok {
			ex.status = int(e.Response.Status)
			ex.url = e.Response.URL
		}
		p.mu.Unlock()

	case *network.EventLoadingFinished:
		p.mu.Lock()
		ex, ok := p.finish(e.RequestID)
		fns := p.snapshot()
		p.mu.Unlock()
		if !ok {
			return
		}
		resp := &response{page: p, id: e.RequestID, ex: *ex}
		for _, fn := range fns {
			fn(resp)
		}

	case *network.EventLoadingFailed:
		p.mu.Lock()
		p.finish(e.RequestID)
		p.mu.Unlock()

	case *cdpbrowser.EventDownloadWillBegin:
		p.mu.Lock()
		p.downloads[e.GUID] = e.SuggestedFilename
		p.mu.Unlock()

	case *cdpbrowser.EventDownloadProgress:
		if e.State != cdpbrowser.DownloadProgressStateCompleted && e.State != cdpbrowser.DownloadProgressStateCanceled {
			return
		}
		p.mu.Lock()
		d := download{name: p.downloads[e.GUID], path: filepath.Join(p.downloadDir, e.GUID)}
		if e.State == cdpbrowser.DownloadProgressStateCanceled {
			d.err = fmt.Errorf("download %s was canceled", d.name)
		}
		waiter := p.waiter
		p.mu.Unlock()
		if waiter != nil {
			select {
			case waiter <- d:
			default:
			}
		}
	}
}

// finish must be called with p.mu held
func (p *Page) finish(id network.RequestID) (*exchange, bool) {
	ex, ok := p.requests[id]
	if !ok {
		return nil, false
	}
	delete(p.requests, id)
	p.inflight--
	p.lastActive = time.Now()
	return ex, true
}

// snapshot must be called with p.mu held
func (p *Page) snapshot() []func(browser.Response) {
	fns := make([]func(browser.Response), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	return fns
}

func (p *Page) Goto(url string) error {
	return chromedp.Run(p.ctx, chromedp.Navigate(url))
}

func (p *Page) URL() string {
	var url string
	if err := chromedp.Run(p.ctx, chromedp.Location(&url)); err != nil {
		return ""
	}
	return url
}

func (p *Page) Locator(selector string) browser.Locator {
	return &Locator{page: p, steps: []step{selectStep(selector)}}
}

func (p *Page) OnResponse(fn func(browser.Response)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Page) WaitForNetworkIdle(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		p.mu.Lock()
		idle := p.inflight <= 0 && time.Since(p.lastActive) >= idleQuiet
		p.mu.Unlock()
		if idle {
			return nil
		}
		if time.Now().After(deadline) {
			return &faults.TimeoutError{Op: "network idle", Target: "page requests", After: timeout}
		}
		select {
		case <-p.ctx.Done():
			return p.ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (p *Page) ExpectDownload(trigger func() error, timeout time.Duration) (browser.Download, error) {
	if p.downloadDir == "" {
		return nil, errors.New("page has no download directory")
	}
	ch := make(chan download, 1)
	p.mu.Lock()
	p.waiter = ch
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.waiter = nil
		p.mu.Unlock()
	}()

	if err := trigger(); err != nil {
		return nil, err
	}
	select {
	case d := <-ch:
		if d.err != nil {
			return nil, d.err
		}
		return &fileDownload{name: d.name, path: d.path}, nil
	case <-time.After(timeout):
		return nil, &faults.TimeoutError{Op: "download", Target: "export file", After: timeout}
	case <-p.ctx.Done():
		return nil, p.ctx.Err()
	}
}

func (p *Page) Screenshot(path string) error {
	var buf []byte
	if err := chromedp.Run(p.ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

// Close closes the tab and its browser context
func (p *Page) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type response struct {
	page *Page
	id   network.RequestID
	ex   exchange
}

func (r *response) URL() string    { return r.ex.url }
func (r *response) Method() string { return r.ex.method }
func (r *response) Status() int    { return r.ex.status }

// Body fetches the body over the protocol; call it off the event goroutine
func (r *response) Body() ([]byte, error) {
	var body []byte
	err := chromedp.Run(r.page.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		body, err = network.GetResponseBody(r.id).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", r.ex.url, err)
	}
	return body, nil
}

// fileDownload is a file Chromium saved under its GUID
type fileDownload struct {
	name string
	path string
}

func (d *fileDownload) SuggestedFilename() string { return d.name }

func (d *fileDownload) SaveAs(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.Rename(d.path, path); err == nil {
		return nil
	}
	data, err := os.ReadFile(d.path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
