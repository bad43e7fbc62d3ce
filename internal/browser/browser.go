// Package browser defines the automation capabilities the checker needs from a
// browser driver, independent of whether Playwright or CDP drives it.
package browser

import (
	"context"
	"time"
)

// Driver launches browsers
type Driver interface {
	Name() string
	Launch(ctx context.Context, opts Options) (Browser, error)
}

// Browser is one running browser process shared by a session
type Browser interface {
	NewPage(ctx context.Context, opts PageOptions) (Page, error)
	Close() error
}

// Page is a single tab owned by exactly one scenario at a time
type Page interface {
	// Goto navigates and waits for the load event
	Goto(url string) error
	URL() string
	Locator(selector string) Locator
	// OnResponse registers fn for every completed response and returns its removal func.
	// fn runs on the driver's event goroutine and must not block or call back into the page.
	OnResponse(fn func(Response)) (remove func())
	// WaitForNetworkIdle blocks until no request has been in flight for a quiet period
	WaitForNetworkIdle(timeout time.Duration) error
	ExpectDownload(trigger func() error, timeout time.Duration) (Download, error)
	Screenshot(path string) error
	// Close stops tracing into PageOptions.TracePath when set, then closes the page
	Close() error
}

// Locator is a lazily resolved element query. Chained locators search within
// the elements their parent resolves to.
type Locator interface {
	Locator(selector string) Locator
	Nth(index int) Locator
	Count() (int, error)
	Text() (string, error)
	// Attribute returns "" when the attribute is absent
	Attribute(name string) (string, error)
	Click() error
	Fill(value string) error
	IsEnabled() (bool, error)
	IsChecked() (bool, error)
	IsVisible() (bool, error)
	WaitVisible(timeout time.Duration) error
	WaitHidden(timeout time.Duration) error
	String() string
}

// Response is a completed network exchange seen by the page
type Response interface {
	URL() string
	Method() string
	Status() int
	Body() ([]byte, error)
}

// Download is a file the page started downloading
type Download interface {
	SuggestedFilename() string
	SaveAs(path string) error
}

// Options configure a browser launch
type Options struct {
	Headless       bool
	SlowMo         time.Duration
	ActionTimeout  time.Duration
	ViewportWidth  int
	ViewportHeight int
	// Install fetches driver browsers before launching (Playwright only)
	Install bool
}

// PageOptions configure one scenario's page
type PageOptions struct {
	VideoDir    string
	TracePath   string
	DownloadDir string
}

// DefaultOptions match the viewport the RTD table was designed for
func DefaultOptions() Options {
	return Options{
		Headless:       true,
		ActionTimeout:  30 * time.Second,
		ViewportWidth:  1840,
		ViewportHeight: 1080,
	}
}
