// Package pwdriver drives Chromium through playwright-go
package pwdriver

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/dispatchlab/rtdcheck/internal/browser"
)

// Driver launches Chromium through a Playwright driver process
type Driver struct {
	logger *zap.Logger
}

var _ browser.Driver = (*Driver)(nil)

// New returns a Playwright driver; logger may be nil
func New(logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{logger: logger.Named("playwright")}
}

func (d *Driver) Name() string { return "playwright" }

// Launch starts the driver, installing browsers first when opts.Install is set
// and PLAYWRIGHT_PREINSTALLED is not "1"
func (d *Driver) Launch(ctx context.Context, opts browser.Options) (browser.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	install := &playwright.RunOptions{Browsers: []string{"chromium"}}
	if opts.Install && os.Getenv("PLAYWRIGHT_PREINSTALLED") != "1" {
		if err := playwright.Install(install); err != nil {
			return nil, fmt.Errorf("could not install playwright browsers: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		// the driver version may not match the installed one; install and retry once
		d.logger.Warn("playwright did not start, installing driver and retrying", zap.Error(err))
		_ = playwright.Install(install)
		if pw, err = playwright.Run(); err != nil {
			return nil, fmt.Errorf("could not start playwright after retry: %w", err)
		}
	}

	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		SlowMo:   playwright.Float(float64(opts.SlowMo.Milliseconds())),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}
	d.logger.Debug("chromium launched", zap.String("version", b.Version()))
	return &Browser{pw: pw, browser: b, opts: opts, logger: d.logger}, nil
}

// Browser is a running Chromium; each page gets its own context so video and
// trace recordings stay per scenario
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    browser.Options
	logger  *zap.Logger
}

func (b *Browser) NewPage(ctx context.Context, popts browser.PageOptions) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	copts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  b.opts.ViewportWidth,
			Height: b.opts.ViewportHeight,
		},
		AcceptDownloads: playwright.Bool(true),
	}
	if popts.VideoDir != "" {
		copts.RecordVideo = &playwright.RecordVideo{Dir: popts.VideoDir}
	}
	bctx, err := b.browser.NewContext(copts)
	if err != nil {
		return nil, fmt.Errorf("could not create context: %w", err)
	}
	if popts.TracePath != "" {
		if err := bctx.Tracing().Start(playwright.TracingStartOptions{
			Screenshots: playwright.Bool(true),
			Snapshots:   playwright.Bool(true),
			Sources:     playwright.Bool(true),
		}); err != nil {
			_ = bctx.Close()
			return nil, fmt.Errorf("could not start tracing: %w", err)
		}
	}

	pg, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	if b.opts.ActionTimeout > 0 {
		pg.SetDefaultTimeout(ms(b.opts.ActionTimeout))
	}

	p := &Page{ctx: bctx, page: pg, tracePath: popts.TracePath, listeners: map[int]func(browser.Response){}}
	pg.OnResponse(p.dispatch)
	return p, nil
}

func (b *Browser) Close() error {
	err := b.browser.Close()
	if serr := b.pw.Stop(); err == nil && serr != nil {
		err = fmt.Errorf("could not stop playwright: %w", serr)
	}
	return err
}

// Page adapts a playwright page and its private context
type Page struct {
	ctx       playwright.BrowserContext
	page      playwright.Page
	tracePath string

	mu        sync.Mutex
	nextID    int
	listeners map[int]func(browser.Response)
}

var _ browser.Page = (*Page)(nil)

func (p *Page) Goto(url string) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateLoad})
	return err
}

func (p *Page) URL() string { return p.page.URL() }

func (p *Page) Locator(selector string) browser.Locator {
	return &Locator{loc: p.page.Locator(selector), desc: selector}
}

// OnResponse keeps its own listener table; playwright's RemoveListener matches
// handlers by identity, which closures do not give us
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

func (p *Page) dispatch(r playwright.Response) {
	p.mu.Lock()
	fns := make([]func(browser.Response), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	resp := response{r}
	for _, fn := range fns {
		fn(resp)
	}
}

func (p *Page) WaitForNetworkIdle(timeout time.Duration) error {
	return p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(ms(timeout)),
	})
}

func (p *Page) ExpectDownload(trigger func() error, timeout time.Duration) (browser.Download, error) {
	d, err := p.page.ExpectDownload(trigger, playwright.PageExpectDownloadOptions{
		Timeout: playwright.Float(ms(timeout)),
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (p *Page) Screenshot(path string) error {
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return err
}

// Close stops tracing, then closes the page and its context, which flushes the video
func (p *Page) Close() error {
	var traceErr error
	if p.tracePath != "" {
		traceErr = p.ctx.Tracing().Stop(p.tracePath)
	}
	if err := p.page.Close(); err != nil {
		return fmt.Errorf("could not close page: %w", err)
	}
	if err := p.ctx.Close(); err != nil {
		return fmt.Errorf("could not close context: %w", err)
	}
	if traceErr != nil {
		return fmt.Errorf("could not save trace: %w", traceErr)
	}
	return nil
}

type response struct {
	r playwright.Response
}

func (r response) URL() string           { return r.r.URL() }
func (r response) Method() string        { return r.r.Request().Method() }
func (r response) Status() int           { return r.r.Status() }
func (r response) Body() ([]byte, error) { return r.r.Body() }

func ms(d time.Duration) float64 {
	return float64(d.Milliseconds())
}
