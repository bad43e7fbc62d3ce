package rtd

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dispatchlab/rtdcheck/internal/browser"
	"github.com/dispatchlab/rtdcheck/internal/faults"
	"github.com/dispatchlab/rtdcheck/internal/filter"
	"github.com/dispatchlab/rtdcheck/internal/pagination"
	"github.com/dispatchlab/rtdcheck/internal/walker"
)

// Selectors of the RTD page. The defaults match the PrimeVue markup the page renders.
type Selectors struct {
	Marker        string
	DateBox       string
	Last7Days     string
	CustomRange   string
	MonthDropdown string
	// MonthOption and Day are fmt patterns: month abbreviation and year, then YYYY-MM-DD
	MonthOption   string
	Day           string
	Apply         string
	AppliedFilter string
	DateDisplay   string
	Filters       string
	OrderSearch   string
	NoRecords     string
	AmountSection string
	AmountMenu    string
	// Comparator is a fmt pattern taking the option index
	Comparator    string
	MinInput      string
	MaxInput      string
	ValueInput    string
	Toast         string
	RiskSection   string
	// RiskOption is a fmt pattern taking the label
	RiskOption    string
	AmountHeader  string
	RiskHeader    string
	Rows          string
	Next          string
	Summary       string
	Export        string
}

// DefaultSelectors returns the selectors of the live RTD page
func DefaultSelectors() Selectors {
	return Selectors{
		Marker:        "span.w-max:has-text('Ready To Dispatch')",
		DateBox:       "div.datepicker-parent",
		Last7Days:     "p.m-0.text-sm:has-text('Last 7 Days')",
		CustomRange:   "p.m-0.text-sm:has-text('Custom Range')",
		MonthDropdown: "span.p-dropdown-label.p-inputtext",
		MonthOption:   "#baseDropdown li[aria-label^='%s,'][aria-label$='%d']",
		Day:           "div[id='%s']",
		Apply:         "button:has-text('Apply')",
		AppliedFilter: "div.cursor-pointer:has-text('Order Date')",
		DateDisplay:   "div.showing-date-box",
		Filters:       "span:has-text('Filters')",
		OrderSearch:   "input[placeholder='Search By Order Id']",
		NoRecords:     "div.head:has-text('No Records Found')",
		AmountSection: "#order_amount:has-text('Amount')",
		AmountMenu:    "#order_amount_list #baseDropdown",
		Comparator:    "#baseDropdown_%d",
		MinInput:      "#order_amount_list input[placeholder='Min']",
		MaxInput:      "#order_amount_list input[placeholder='Max']",
		ValueInput:    "#order_amount_list input[placeholder='Value']",
		Toast:         ".p-toast.notification-bar",
		RiskSection:   "#order_risk:has-text('Risk')",
		RiskOption:    "input[name='%s']",
		AmountHeader:  `th.order_amount:has-text("Amount")`,
		RiskHeader:    `th.order_risk:has-text("Risk")`,
		Rows:          "table tbody tr",
		Next:          "button.p-paginator-next.p-paginator-element.p-link",
		Summary:       ".pagignationRow .p-paginator-left-content",
		Export:        "div.export-btn-outer.export-btn-dataTable:has-text('Export')",
	}
}

var displayedRange = regexp.MustCompile(`(\d{2}-\d{2}-\d{4}) - (\d{2}-\d{2}-\d{4})`)

// Page is the Ready To Dispatch order page
type Page struct {
	page     browser.Page
	url      string
	Sel      Selectors
	Wait     time.Duration
	PageSize int
}

// NewPage points at baseURL+path with the default selectors
func NewPage(page browser.Page, baseURL, path string) *Page {
	return &Page{
		page:     page,
		url:      JoinURL(baseURL, path),
		Sel:      DefaultSelectors(),
		Wait:     DefaultWait,
		PageSize: pagination.DefaultPageSize,
	}
}

// Browser exposes the underlying page for interception
func (p *Page) Browser() browser.Page { return p.page }

func (p *Page) click(selector, what string) error {
	loc := p.page.Locator(selector)
	if err := loc.WaitVisible(p.Wait); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if err := loc.Click(); err != nil {
		return fmt.Errorf("click %s: %w", what, err)
	}
	return nil
}

func (p *Page) fill(selector, what, value string) error {
	loc := p.page.Locator(selector)
	if err := loc.WaitVisible(p.Wait); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if err := loc.Fill(value); err != nil {
		return fmt.Errorf("fill %s: %w", what, err)
	}
	return nil
}

// Open navigates to the page and waits for its title marker
func (p *Page) Open() error {
	if err := p.page.Goto(p.url); err != nil {
		return fmt.Errorf("navigate to RTD: %w", err)
	}
	return p.WaitLoaded()
}

func (p *Page) WaitLoaded() error {
	if err := p.page.Locator(p.Sel.Marker).WaitVisible(p.Wait); err != nil {
		return fmt.Errorf("RTD page did not load: %w", err)
	}
	return nil
}

// SelectLast7Days picks the preset; the page reloads its data immediately
func (p *Page) SelectLast7Days() error {
	if err := p.click(p.Sel.DateBox, "date picker"); err != nil {
		return err
	}
	return p.click(p.Sel.Last7Days, "Last 7 Days preset")
}

// PickCustomRange selects from..to in the picker without applying it
func (p *Page) PickCustomRange(from, to time.Time) error {
	if err := p.click(p.Sel.DateBox, "date picker"); err != nil {
		return err
	}
	if err := p.click(p.Sel.CustomRange, "Custom Range option"); err != nil {
		return err
	}
	for i, day := range []time.Time{from, to} {
		dropdown := p.page.Locator(p.Sel.MonthDropdown).Nth(i)
		if err := dropdown.WaitVisible(p.Wait); err != nil {
			return fmt.Errorf("month dropdown %d: %w", i+1, err)
		}
		if err := dropdown.Click(); err != nil {
			return fmt.Errorf("open month dropdown %d: %w", i+1, err)
		}
		month := fmt.Sprintf(p.Sel.MonthOption, day.Format("Jan"), day.Year())
		if err := p.click(month, day.Format("Jan 2006")); err != nil {
			return err
		}
		if err := p.click(fmt.Sprintf(p.Sel.Day, day.Format("2006-01-02")), "day "+day.Format("2006-01-02")); err != nil {
			return err
		}
	}
	return nil
}

// Apply clicks the filter panel's Apply button, which requests new data
func (p *Page) Apply() error {
	return p.click(p.Sel.Apply, "Apply")
}

// DisplayedRange reads the range shown above the table
func (p *Page) DisplayedRange() (filter.DateRange, error) {
	loc := p.page.Locator(p.Sel.DateDisplay)
	if err := loc.WaitVisible(p.Wait); err != nil {
		return filter.DateRange{}, fmt.Errorf("date range display: %w", err)
	}
	text, err := loc.Text()
	if err != nil {
		return filter.DateRange{}, err
	}
	m := displayedRange.FindStringSubmatch(text)
	if m == nil {
		return filter.DateRange{}, &faults.ParseError{Input: text, Want: "DD-MM-YYYY - DD-MM-YYYY"}
	}
	from, err := filter.ParseDate(m[1])
	if err != nil {
		return filter.DateRange{}, &faults.ParseError{Input: text, Want: "DD-MM-YYYY - DD-MM-YYYY", Err: err}
	}
	to, err := filter.ParseDate(m[2])
	if err != nil {
		return filter.DateRange{}, &faults.ParseError{Input: text, Want: "DD-MM-YYYY - DD-MM-YYYY", Err: err}
	}
	return filter.Custom(from, to), nil
}

// AppliedFilter reads the chip describing the active date filter
func (p *Page) AppliedFilter() (string, error) {
	loc := p.page.Locator(p.Sel.AppliedFilter)
	if err := loc.WaitVisible(p.Wait); err != nil {
		return "", fmt.Errorf("applied filter chip: %w", err)
	}
	text, err := loc.Text()
	if err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(text), " "), nil
}

func (p *Page) OpenFilters() error {
	return p.click(p.Sel.Filters, "Filters")
}

// SearchOrderID types id into the order search box
func (p *Page) SearchOrderID(id string) error {
	return p.fill(p.Sel.OrderSearch, "order id search", id)
}

// WaitNoRecords waits for the empty-table message
func (p *Page) WaitNoRecords() error {
	if err := p.page.Locator(p.Sel.NoRecords).WaitVisible(p.Wait); err != nil {
		return fmt.Errorf("'No Records Found' not shown: %w", err)
	}
	return nil
}

// SetAmountCondition opens the amount section, chooses the comparator and fills its inputs.
// The filter panel must already be open.
func (p *Page) SetAmountCondition(cond filter.AmountCondition) error {
	idx := cond.Comparator.OptionIndex()
	if idx < 0 {
		return fmt.Errorf("unknown amount comparator %q", cond.Comparator)
	}
	if err := p.click(p.Sel.AmountSection, "amount section"); err != nil {
		return err
	}
	if err := p.click(p.Sel.AmountMenu, "amount condition menu"); err != nil {
		return err
	}
	if err := p.click(fmt.Sprintf(p.Sel.Comparator, idx), cond.Comparator.Label()); err != nil {
		return err
	}
	if cond.Comparator == filter.Range {
		if err := p.fill(p.Sel.MinInput, "min amount", formatAmount(cond.Min)); err != nil {
			return err
		}
		return p.fill(p.Sel.MaxInput, "max amount", formatAmount(cond.Max))
	}
	return p.fill(p.Sel.ValueInput, "amount value", formatAmount(cond.Value))
}

// SelectRisks ticks every label in set that is not ticked already.
// The filter panel must already be open.
func (p *Page) SelectRisks(set filter.RiskSet) error {
	if err := p.click(p.Sel.RiskSection, "risk section"); err != nil {
		return err
	}
	for _, label := range set.Selected {
		box := p.page.Locator(fmt.Sprintf(p.Sel.RiskOption, label))
		if err := box.WaitVisible(p.Wait); err != nil {
			return fmt.Errorf("risk option %q: %w", label, err)
		}
		checked, err := box.IsChecked()
		if err != nil {
			return err
		}
		if checked {
			continue
		}
		if err := box.Click(); err != nil {
			return fmt.Errorf("tick risk option %q: %w", label, err)
		}
	}
	return nil
}

// Toast reads the notification bar
func (p *Page) Toast() (string, error) {
	loc := p.page.Locator(p.Sel.Toast)
	if err := loc.WaitVisible(p.Wait); err != nil {
		return "", fmt.Errorf("toast: %w", err)
	}
	text, err := loc.Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Summary parses the pagination summary under the table
func (p *Page) Summary() (pagination.Summary, error) {
	loc := p.page.Locator(p.Sel.Summary)
	if err := loc.WaitVisible(p.Wait); err != nil {
		return pagination.Summary{}, fmt.Errorf("pagination summary: %w", err)
	}
	text, err := loc.Text()
	if err != nil {
		return pagination.Summary{}, err
	}
	return pagination.ParseSummary(text)
}

// TotalPages is read once, before a walk starts
func (p *Page) TotalPages() (int, error) {
	s, err := p.Summary()
	if err != nil {
		return 0, err
	}
	return s.Pages(p.PageSize), nil
}

// SettleFirstPage polls the summary until it agrees with the response that
// produced page 1: no entries for an empty response, otherwise rows 1..records.
// It returns the page count the summary then shows. A negative records skips the
// agreement check. A summary still reading zero entries while the response held
// records is a PaginationStateError.
func (p *Page) SettleFirstPage(ctx context.Context, records int, timeout time.Duration) (int, error) {
	if records < 0 {
		return p.TotalPages()
	}
	deadline := time.Now().Add(timeout)
	loc := p.page.Locator(p.Sel.Summary)
	var (
		last   pagination.Summary
		parsed bool
		text   string
	)
	for {
		if raw, err := loc.Text(); err == nil {
			text = strings.TrimSpace(raw)
			if sum, perr := pagination.ParseSummary(text); perr == nil {
				last, parsed = sum, true
				if agrees(sum, records) {
					return sum.Pages(p.PageSize), nil
				}
			}
		}
		if !time.Now().Before(deadline) {
			break
		}
		t := time.NewTimer(settlePoll)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return 0, ctx.Err()
		}
	}
	if parsed && last.Total == 0 && records > 0 {
		return 0, &faults.PaginationStateError{
			Page:    1,
			Control: p.Sel.Summary,
			Reason:  fmt.Sprintf("shows no entries but the data response holds %d records", records),
		}
	}
	return 0, &faults.TimeoutError{
		Op:     "settle",
		Target: fmt.Sprintf("%s agreeing with %d records (last seen %q)", p.Sel.Summary, records, text),
		After:  timeout,
	}
}

const settlePoll = 100 * time.Millisecond

func agrees(sum pagination.Summary, records int) bool {
	if records == 0 {
		return sum.Total == 0
	}
	return sum.From == 1 && sum.To-sum.From+1 == records && sum.Total >= records
}

// AmountTable is the walker contract for the amount column
func (p *Page) AmountTable() walker.Table {
	return walker.Table{Rows: p.Sel.Rows, Ready: p.Sel.AmountHeader, Next: p.Sel.Next}
}

// RiskTable is the walker contract for the risk column
func (p *Page) RiskTable() walker.Table {
	return walker.Table{Rows: p.Sel.Rows, Ready: p.Sel.RiskHeader, Next: p.Sel.Next}
}

// SummarySettler waits for the summary to reach each walked page
func (p *Page) SummarySettler(timeout time.Duration) walker.SummaryAdvanced {
	return walker.SummaryAdvanced{Page: p.page, Summary: p.Sel.Summary, PageSize: p.PageSize, Timeout: timeout}
}

// DownloadExport clicks Export and saves the file into dir
func (p *Page) DownloadExport(dir string, timeout time.Duration) (string, error) {
	button := p.page.Locator(p.Sel.Export)
	if err := button.WaitVisible(p.Wait); err != nil {
		return "", fmt.Errorf("export button: %w", err)
	}
	dl, err := p.page.ExpectDownload(button.Click, timeout)
	if err != nil {
		return "", fmt.Errorf("export download: %w", err)
	}
	name := filepath.Base(dl.SuggestedFilename())
	if name == "." || name == string(filepath.Separator) {
		name = "export.csv"
	}
	path := filepath.Join(dir, name)
	if err := dl.SaveAs(path); err != nil {
		return "", fmt.Errorf("save export: %w", err)
	}
	return path, nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
