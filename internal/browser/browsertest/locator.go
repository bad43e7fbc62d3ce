package browsertest

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dispatchlab/rtdcheck/internal/browser"
	"github.com/dispatchlab/rtdcheck/internal/faults"
)

type step struct {
	selector string
	nth      int
}

// Locator resolves against the page's current document on every call, so
// hooks that rewrite the DOM are seen by locators created earlier.
type Locator struct {
	page  *Page
	steps []step
}

var _ browser.Locator = (*Locator)(nil)

func (l *Locator) with(s step) *Locator {
	steps := make([]step, len(l.steps), len(l.steps)+1)
	copy(steps, l.steps)
	return &Locator{page: l.page, steps: append(steps, s)}
}

func (l *Locator) resolve() *goquery.Selection {
	cur := l.page.doc.Selection
	for _, s := range l.steps {
		if s.selector != "" {
			cur = cur.Find(cssSelector(s.selector))
		}
		if s.nth >= 0 {
			cur = cur.Eq(s.nth)
		}
	}
	return cur
}

// first resolves to the first match, failing the way a real driver would once
// its wait expired
func (l *Locator) first(op string) (*goquery.Selection, error) {
	sel := l.resolve()
	if sel.Length() == 0 {
		return nil, &faults.TimeoutError{Op: op, Target: l.String()}
	}
	return sel.First(), nil
}

func (l *Locator) Locator(selector string) browser.Locator {
	return l.with(step{selector: selector, nth: -1})
}

func (l *Locator) Nth(index int) browser.Locator {
	return l.with(step{nth: index})
}

func (l *Locator) Count() (int, error) {
	return l.resolve().Length(), nil
}

func (l *Locator) Text() (string, error) {
	sel, err := l.first("text")
	if err != nil {
		return "", err
	}
	return sel.Text(), nil
}

func (l *Locator) Attribute(name string) (string, error) {
	sel, err := l.first("attribute")
	if err != nil {
		return "", err
	}
	v, _ := sel.Attr(name)
	return v, nil
}

func (l *Locator) Click() error {
	sel, err := l.first("click")
	if err != nil {
		return err
	}
	if disabled(sel) {
		return &faults.TimeoutError{Op: "click", Target: l.String(), Err: fmt.Errorf("element is disabled")}
	}
	l.page.recordClick(l.String())
	for _, h := range l.page.hooks {
		if sel.Is(h.selector) {
			if err := h.fn(l.page, sel); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *Locator) Fill(value string) error {
	sel, err := l.first("fill")
	if err != nil {
		return err
	}
	sel.SetAttr("value", value)
	l.page.recordFill(l.String(), value)
	return nil
}

func (l *Locator) IsEnabled() (bool, error) {
	sel, err := l.first("is enabled")
	if err != nil {
		return false, err
	}
	return !disabled(sel), nil
}

func (l *Locator) IsChecked() (bool, error) {
	sel, err := l.first("is checked")
	if err != nil {
		return false, err
	}
	_, checked := sel.Attr("checked")
	return checked, nil
}

func (l *Locator) IsVisible() (bool, error) {
	sel := l.resolve()
	if sel.Length() == 0 {
		return false, nil
	}
	return visible(sel.First()), nil
}

func (l *Locator) WaitVisible(timeout time.Duration) error {
	ok, _ := l.IsVisible()
	if !ok {
		return &faults.TimeoutError{Op: "wait visible", Target: l.String(), After: timeout}
	}
	return nil
}

func (l *Locator) WaitHidden(timeout time.Duration) error {
	ok, _ := l.IsVisible()
	if ok {
		return &faults.TimeoutError{Op: "wait hidden", Target: l.String(), After: timeout}
	}
	return nil
}

func (l *Locator) String() string {
	parts := make([]string, 0, len(l.steps))
	for _, s := range l.steps {
		if s.selector != "" {
			parts = append(parts, s.selector)
		}
		if s.nth >= 0 {
			parts = append(parts, fmt.Sprintf("nth=%d", s.nth))
		}
	}
	return strings.Join(parts, " >> ")
}

func disabled(sel *goquery.Selection) bool {
	_, attr := sel.Attr("disabled")
	return attr || sel.HasClass("p-disabled")
}

func visible(sel *goquery.Selection) bool {
	return sel.Closest("[hidden]").Length() == 0
}
