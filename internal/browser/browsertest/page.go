// Package browsertest provides an in-memory browser.Page backed by a goquery
// document, for exercising page logic without a real browser.
package browsertest

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dispatchlab/rtdcheck/internal/browser"
	"github.com/dispatchlab/rtdcheck/internal/faults"
)

// ClickFunc reacts to a click on an element matching its registered selector
type ClickFunc func(p *Page, target *goquery.Selection) error

type clickHook struct {
	selector string
	fn       ClickFunc
}

// Page is a fake browser.Page. Elements are hidden by the `hidden` attribute,
// disabled by `disabled` or the p-disabled class, checked by `checked`.
type Page struct {
	mu        sync.Mutex
	doc       *goquery.Document
	url       string
	listeners map[int]func(browser.Response)
	nextID    int
	clicks    map[string]int
	fills     map[string]string
	hooks     []clickHook
	download  *Download
	closed    bool

	Visited     []string
	Screenshots []string
}

var _ browser.Page = (*Page)(nil)

// NewPage parses html into a fake page
func NewPage(html string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &Page{
		doc:       doc,
		listeners: map[int]func(browser.Response){},
		clicks:    map[string]int{},
		fills:     map[string]string{},
	}, nil
}

// MustPage is NewPage for fixtures known to parse
func MustPage(html string) *Page {
	p, err := NewPage(html)
	if err != nil {
		panic(err)
	}
	return p
}

// Doc exposes the document for hooks that rewrite it
func (p *Page) Doc() *goquery.Document { return p.doc }

// SetHTML replaces the inner HTML of every element matching selector
func (p *Page) SetHTML(selector, html string) {
	p.doc.Find(cssSelector(selector)).SetHtml(html)
}

// OnClick registers fn for clicks on elements matching selector
func (p *Page) OnClick(selector string, fn ClickFunc) {
	p.hooks = append(p.hooks, clickHook{selector: cssSelector(selector), fn: fn})
}

// Emit delivers r to every response listener, synchronously
func (p *Page) Emit(r browser.Response) {
	p.mu.Lock()
	ids := make([]int, 0, len(p.listeners))
	for id := range p.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(browser.Response), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, p.listeners[id])
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(r)
	}
}

// Listeners is the number of response listeners still registered
func (p *Page) Listeners() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

// Clicks is how many times a locator with this description was clicked
func (p *Page) Clicks(locator string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clicks[locator]
}

// TotalClicks counts clicks on every locator whose description contains fragment
func (p *Page) TotalClicks(fragment string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for k, v := range p.clicks {
		if strings.Contains(k, fragment) {
			n += v
		}
	}
	return n
}

// Filled returns the last value filled into a locator with this description
func (p *Page) Filled(locator string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.fills[locator]
	return v, ok
}

// SetDownload makes the next ExpectDownload produce a file
func (p *Page) SetDownload(name string, content []byte) {
	p.download = &Download{Name: name, Content: content}
}

// Closed reports whether Close was called
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) Goto(url string) error {
	p.url = url
	p.Visited = append(p.Visited, url)
	return nil
}

func (p *Page) URL() string { return p.url }

func (p *Page) Locator(selector string) browser.Locator {
	return &Locator{page: p, steps: []step{{selector: selector, nth: -1}}}
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

func (p *Page) WaitForNetworkIdle(time.Duration) error { return nil }

func (p *Page) ExpectDownload(trigger func() error, timeout time.Duration) (browser.Download, error) {
	if err := trigger(); err != nil {
		return nil, err
	}
	if p.download == nil {
		return nil, &faults.TimeoutError{Op: "download", Target: "file download", After: timeout}
	}
	return p.download, nil
}

func (p *Page) Screenshot(path string) error {
	p.Screenshots = append(p.Screenshots, path)
	return nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *Page) recordClick(desc string) {
	p.mu.Lock()
	p.clicks[desc]++
	p.mu.Unlock()
}

func (p *Page) recordFill(desc, value string) {
	p.mu.Lock()
	p.fills[desc] = value
	p.mu.Unlock()
}

var hasText = regexp.MustCompile(`:has-text\((?:'([^']*)'|"([^"]*)")\)`)

// cssSelector rewrites Playwright's :has-text() into cascadia's :contains()
func cssSelector(selector string) string {
	return hasText.ReplaceAllStringFunc(selector, func(m string) string {
		sub := hasText.FindStringSubmatch(m)
		text := sub[1]
		if text == "" {
			text = sub[2]
		}
		return fmt.Sprintf(`:contains(%q)`, text)
	})
}

// ToggleOverlay returns a click hook that opens the overlay panel with the
// clicked element's attr value as its header, or closes it when already open.
func ToggleOverlay(panel, header, attr string) ClickFunc {
	return func(p *Page, target *goquery.Selection) error {
		overlay := p.doc.Find(cssSelector(panel))
		if overlay.Length() == 0 {
			return fmt.Errorf("overlay %s not in fixture", panel)
		}
		if _, hidden := overlay.Attr("hidden"); hidden {
			label, _ := target.Attr(attr)
			overlay.Find(cssSelector(header)).SetText(label)
			overlay.RemoveAttr("hidden")
			return nil
		}
		overlay.SetAttr("hidden", "")
		return nil
	}
}

// Response is a canned browser.Response
type Response struct {
	URLValue    string
	MethodValue string
	StatusValue int
	BodyValue   []byte
	BodyErr     error
}

// JSONResponse builds a response carrying body
func JSONResponse(url, method string, status int, body string) *Response {
	return &Response{URLValue: url, MethodValue: method, StatusValue: status, BodyValue: []byte(body)}
}

func (r *Response) URL() string    { return r.URLValue }
func (r *Response) Method() string { return r.MethodValue }
func (r *Response) Status() int    { return r.StatusValue }
func (r *Response) Body() ([]byte, error) {
	return r.BodyValue, r.BodyErr
}

// Download is a canned browser.Download that writes Content on SaveAs
type Download struct {
	Name    string
	Content []byte
}

func (d *Download) SuggestedFilename() string { return d.Name }

func (d *Download) SaveAs(path string) error {
	return os.WriteFile(path, d.Content, 0o644)
}
