package pwdriver

import (
	"strconv"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/dispatchlab/rtdcheck/internal/browser"
)

// Locator wraps a playwright locator and remembers how it was built
type Locator struct {
	loc  playwright.Locator
	desc string
}

var _ browser.Locator = (*Locator)(nil)

func (l *Locator) Locator(selector string) browser.Locator {
	return &Locator{loc: l.loc.Locator(selector), desc: l.desc + " >> " + selector}
}

func (l *Locator) Nth(index int) browser.Locator {
	return &Locator{loc: l.loc.Nth(index), desc: l.desc + " >> nth=" + strconv.Itoa(index)}
}

func (l *Locator) Count() (int, error) { return l.loc.Count() }

func (l *Locator) Text() (string, error) { return l.loc.TextContent() }

func (l *Locator) Attribute(name string) (string, error) { return l.loc.GetAttribute(name) }

func (l *Locator) Click() error { return l.loc.Click() }

func (l *Locator) Fill(value string) error { return l.loc.Fill(value) }

func (l *Locator) IsEnabled() (bool, error) { return l.loc.IsEnabled() }

func (l *Locator) IsChecked() (bool, error) { return l.loc.IsChecked() }

func (l *Locator) IsVisible() (bool, error) { return l.loc.IsVisible() }

func (l *Locator) WaitVisible(timeout time.Duration) error {
	return l.loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(ms(timeout)),
	})
}

func (l *Locator) WaitHidden(timeout time.Duration) error {
	return l.loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateHidden,
		Timeout: playwright.Float(ms(timeout)),
	})
}

func (l *Locator) String() string { return l.desc }
