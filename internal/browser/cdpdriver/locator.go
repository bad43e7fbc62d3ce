package cdpdriver

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"

	"github.com/dispatchlab/rtdcheck/internal/browser"
	"github.com/dispatchlab/rtdcheck/internal/faults"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const pollInterval = 100 * time.Millisecond

// step is one link of a locator chain: a CSS query with an optional text filter,
// or an index into the previous link's matches
type step struct {
	Selector string `json:"-"`
	CSS      string `json:"css,omitempty"`
	Text     string `json:"text,omitempty"`
	Nth      int    `json:"nth"`
	Query    bool   `json:"query"`
}

var hasText = regexp.MustCompile(`:has-text\((?:'([^']*)'|"([^"]*)")\)`)

// selectStep splits Playwright's :has-text() pseudo-class, which CSS lacks,
// into a text filter applied after querySelectorAll
func selectStep(selector string) step {
	st := step{Selector: selector, Nth: -1, Query: true}
	if m := hasText.FindStringSubmatch(selector); m != nil {
		st.Text = m[1] + m[2]
		selector = hasText.ReplaceAllString(selector, "")
	}
	st.CSS = strings.TrimSpace(selector)
	if st.CSS == "" {
		st.CSS = "*"
	}
	return st
}

// Locator resolves its chain in the page on every call
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

func (l *Locator) Locator(selector string) browser.Locator {
	return l.with(selectStep(selector))
}

func (l *Locator) Nth(index int) browser.Locator {
	return l.with(step{Nth: index})
}

type evalResult struct {
	Found bool                `json:"found"`
	Value jsoniter.RawMessage `json:"value"`
}

// eval runs op once against the current DOM
func (l *Locator) eval(op, arg string) (evalResult, error) {
	steps, err := json.Marshal(l.steps)
	if err != nil {
		return evalResult{}, err
	}
	args, err := json.Marshal([]string{op, arg})
	if err != nil {
		return evalResult{}, err
	}
	expr := fmt.Sprintf("(%s)(%s, ...%s)", resolveScript, steps, args)

	var raw []byte
	if err := chromedp.Run(l.page.ctx, chromedp.Evaluate(expr, &raw)); err != nil {
		return evalResult{}, fmt.Errorf("%s %s: %w", op, l, err)
	}
	var res evalResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return evalResult{}, fmt.Errorf("%s %s: decode result: %w", op, l, err)
	}
	return res, nil
}

// poll repeats op until it finds an element or timeout passes
func (l *Locator) poll(op, arg string, timeout time.Duration) (evalResult, error) {
	if timeout <= 0 {
		timeout = l.page.opts.ActionTimeout
	}
	deadline := time.Now().Add(timeout)
	for {
		res, err := l.eval(op, arg)
		if err != nil || res.Found {
			return res, err
		}
		if time.Now().After(deadline) {
			return res, &faults.TimeoutError{Op: op, Target: l.String(), After: timeout}
		}
		select {
		case <-l.page.ctx.Done():
			return res, l.page.ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (l *Locator) Count() (int, error) {
	res, err := l.eval("count", "")
	if err != nil {
		return 0, err
	}
	var n int
	err = json.Unmarshal(res.Value, &n)
	return n, err
}

func (l *Locator) Text() (string, error) {
	return l.pollString("text", "")
}

func (l *Locator) Attribute(name string) (string, error) {
	return l.pollString("attribute", name)
}

func (l *Locator) pollString(op, arg string) (string, error) {
	res, err := l.poll(op, arg, 0)
	if err != nil {
		return "", err
	}
	var s string
	err = json.Unmarshal(res.Value, &s)
	return s, err
}

func (l *Locator) pollBool(op string) (bool, error) {
	res, err := l.poll(op, "", 0)
	if err != nil {
		return false, err
	}
	var b bool
	err = json.Unmarshal(res.Value, &b)
	return b, err
}

// Click waits for a visible, enabled element, scrolls it into view and clicks
// its centre with the mouse
func (l *Locator) Click() error {
	res, err := l.poll("point", "", 0)
	if err != nil {
		return err
	}
	var pt struct{ X, Y float64 }
	if err := json.Unmarshal(res.Value, &pt); err != nil {
		return err
	}
	return chromedp.Run(l.page.ctx, chromedp.MouseClickXY(pt.X, pt.Y))
}

// Fill clears the field, types value and fires change
func (l *Locator) Fill(value string) error {
	if _, err := l.poll("clear", "", 0); err != nil {
		return err
	}
	if err := chromedp.Run(l.page.ctx, chromedp.KeyEvent(value)); err != nil {
		return fmt.Errorf("type into %s: %w", l, err)
	}
	_, err := l.eval("change", "")
	return err
}

func (l *Locator) IsEnabled() (bool, error) { return l.pollBool("enabled") }

func (l *Locator) IsChecked() (bool, error) { return l.pollBool("checked") }

// IsVisible does not wait; a missing element is not visible
func (l *Locator) IsVisible() (bool, error) {
	res, err := l.eval("visible", "")
	if err != nil || !res.Found {
		return false, err
	}
	var b bool
	err = json.Unmarshal(res.Value, &b)
	return b, err
}

func (l *Locator) WaitVisible(timeout time.Duration) error {
	return l.waitFor(true, "wait visible", timeout)
}

func (l *Locator) WaitHidden(timeout time.Duration) error {
	return l.waitFor(false, "wait hidden", timeout)
}

func (l *Locator) waitFor(visible bool, op string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(l.page.ctx, timeout)
	defer cancel()
	for {
		ok, err := l.IsVisible()
		if err != nil {
			return err
		}
		if ok == visible {
			return nil
		}
		select {
		case <-ctx.Done():
			return &faults.TimeoutError{Op: op, Target: l.String(), After: timeout}
		case <-time.After(pollInterval):
		}
	}
}

func (l *Locator) String() string {
	parts := make([]string, 0, len(l.steps))
	for _, s := range l.steps {
		if s.Query {
			parts = append(parts, s.Selector)
		} else {
			parts = append(parts, "nth="+strconv.Itoa(s.Nth))
		}
	}
	return strings.Join(parts, " >> ")
}

// resolveScript walks the chain from document and applies op to the first match.
// It answers {found, value}; count always reports found.
const resolveScript = `function(steps, op, arg) {
  const norm = s => (s || '').replace(/\s+/g, ' ').trim().toLowerCase();
  const visible = el => {
    if (!el.isConnected) return false;
    const style = getComputedStyle(el);
    if (style.visibility === 'hidden' || style.display === 'none') return false;
    const r = el.getBoundingClientRect();
    return r.width > 0 && r.height > 0;
  };
  let els = [document];
  for (const st of steps) {
    if (st.query) {
      const next = [];
      for (const root of els) {
        for (const el of root.querySelectorAll(st.css)) {
          if (st.text && !norm(el.textContent).includes(norm(st.text))) continue;
          if (!next.includes(el)) next.push(el);
        }
      }
      els = next;
    }
    if (st.nth >= 0) els = st.nth < els.length ? [els[st.nth]] : [];
  }
  if (op === 'count') return {found: true, value: els.length};
  const el = els[0];
  if (!el) return {found: false};
  const disabled = el.disabled || el.getAttribute('aria-disabled') === 'true' || el.classList.contains('p-disabled');
  switch (op) {
  case 'text': return {found: true, value: el.textContent || ''};
  case 'attribute': return {found: true, value: el.getAttribute(arg) || ''};
  case 'enabled': return {found: true, value: !disabled};
  case 'checked': return {found: true, value: !!el.checked || el.getAttribute('aria-checked') === 'true'};
  case 'visible': return {found: true, value: visible(el)};
  case 'point': {
    el.scrollIntoView({block: 'center', inline: 'center'});
    if (!visible(el) || disabled) return {found: false};
    const r = el.getBoundingClientRect();
    return {found: true, value: {x: r.left + r.width / 2, y: r.top + r.height / 2}};
  }
  case 'clear': {
    if (!visible(el) || disabled) return {found: false};
    el.focus();
    const proto = el instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
    Object.getOwnPropertyDescriptor(proto, 'value').set.call(el, '');
    el.dispatchEvent(new Event('input', {bubbles: true}));
    return {found: true, value: true};
  }
  case 'change':
    el.dispatchEvent(new Event('change', {bubbles: true}));
    return {found: true, value: true};
  }
  throw new Error('unknown locator op ' + op);
}`
