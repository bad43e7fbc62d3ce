// Package walker drives a paginated table page by page, collecting the same
// logical values from each page's API response and from its rendered rows.
package walker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dispatchlab/rtdcheck/internal/browser"
	"github.com/dispatchlab/rtdcheck/internal/decode"
	"github.com/dispatchlab/rtdcheck/internal/faults"
	"github.com/dispatchlab/rtdcheck/internal/intercept"
	"github.com/dispatchlab/rtdcheck/internal/jsonpath"
	"github.com/dispatchlab/rtdcheck/internal/metrics"
)

// ErrNoFirstPage is returned when Walk is not handed the first page's exchange.
// The walker never triggers page 1 itself.
var ErrNoFirstPage = errors.New("walker: first page response is required")

// Target describes which JSON values a page contributes
type Target[V any] struct {
	Key       string
	ParentKey string
	// Required turns a page without any match into an ExtractionError
	Required bool
	Convert  func(jsonpath.Value) (V, error)
	// Column labels metrics and logs
	Column string
}

// Extract converts every value the target matches in body. A Required target
// matching nothing is an ExtractionError.
func (t Target[V]) Extract(body jsonpath.Value) ([]V, error) {
	var raw []jsonpath.Value
	if t.ParentKey != "" {
		raw = jsonpath.ExtractUnder(body, t.ParentKey, t.Key)
	} else {
		raw = jsonpath.ExtractByKey(body, t.Key)
	}
	if len(raw) == 0 && t.Required {
		return nil, &faults.ExtractionError{Key: t.Key, ParentKey: t.ParentKey}
	}
	out := make([]V, 0, len(raw))
	for _, r := range raw {
		v, err := t.Convert(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Table is the DOM contract of the paginated table
type Table struct {
	Rows  string
	Ready string
	Next  string
}

// Result holds everything a walk collected. API and UI are independent lists;
// they are not paired by position.
type Result[V any] struct {
	API     []V
	UI      []V
	Pages   int
	Rows    int
	Skipped int
}

type state struct {
	page int
	done bool
}

// Walker walks one table with one extraction target and one row decoder
type Walker[V any] struct {
	page         browser.Page
	bridge       *intercept.Bridge
	endpoint     intercept.Endpoint
	table        Table
	target       Target[V]
	decoder      decode.Decoder[V]
	settler      Settler
	readyTimeout time.Duration
	logger       *zap.Logger
	metrics      *metrics.Collector
}

// Option customises a Walker
type Option func(*config)

type config struct {
	settler      Settler
	readyTimeout time.Duration
	logger       *zap.Logger
	metrics      *metrics.Collector
}

func WithSettler(s Settler) Option {
	return func(c *config) { c.settler = s }
}

func WithReadyTimeout(d time.Duration) Option {
	return func(c *config) { c.readyTimeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.logger = l }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(c *config) { c.metrics = m }
}

// New builds a walker. Without WithSettler it waits a fixed five seconds after
// each page change.
func New[V any](page browser.Page, bridge *intercept.Bridge, endpoint intercept.Endpoint, table Table,
	target Target[V], decoder decode.Decoder[V], opts ...Option) *Walker[V] {
	c := config{
		settler:      FixedDelay{Delay: 5 * time.Second},
		readyTimeout: 30 * time.Second,
		logger:       zap.NewNop(),
	}
	for _, o := range opts {
		o(&c)
	}
	return &Walker[V]{
		page:         page,
		bridge:       bridge,
		endpoint:     endpoint,
		table:        table,
		target:       target,
		decoder:      decoder,
		settler:      c.settler,
		readyTimeout: c.readyTimeout,
		logger:       c.logger,
		metrics:      c.metrics,
	}
}

// Walk visits pages 1..totalPages. Page 1 is read from first; every later page is
// reached by clicking the next control while intercepting its response. The page
// count is fixed for the whole walk.
func (w *Walker[V]) Walk(ctx context.Context, totalPages int, first *intercept.Exchange) (*Result[V], error) {
	if first == nil {
		return nil, ErrNoFirstPage
	}
	if totalPages < 1 {
		return nil, fmt.Errorf("walker: total pages must be at least 1, got %d", totalPages)
	}

	res := &Result[V]{}
	exchange := first
	for st := (state{page: 1}); !st.done; {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if st.page > 1 {
			var err error
			exchange, err = w.advance(ctx, st.page, totalPages)
			if err != nil {
				return res, err
			}
		}
		if err := w.collect(st.page, exchange, res); err != nil {
			return res, err
		}
		res.Pages++
		w.metrics.PageWalked()

		if st.page == totalPages {
			st.done = true
		} else {
			st.page++
		}
	}

	w.logger.Info("walk complete",
		zap.String("column", w.target.Column),
		zap.Int("pages", res.Pages),
		zap.Int("api_values", len(res.API)),
		zap.Int("ui_values", len(res.UI)),
		zap.Int("rows", res.Rows),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

func (w *Walker[V]) advance(ctx context.Context, page, total int) (*intercept.Exchange, error) {
	next := w.page.Locator(w.table.Next)
	enabled, err := next.IsEnabled()
	if err != nil {
		return nil, fmt.Errorf("page %d: inspect %s: %w", page, w.table.Next, err)
	}
	if !enabled {
		return nil, &faults.PaginationStateError{Page: page, TotalPages: total, Control: w.table.Next, Reason: "is disabled"}
	}

	w.logger.Debug("advancing", zap.Int("page", page), zap.Int("total", total))
	ex, err := w.bridge.InterceptEndpoint(ctx, w.endpoint, next.Click)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", page, err)
	}
	if err := w.settler.Settle(ctx, page); err != nil {
		return nil, fmt.Errorf("page %d: %w", page, err)
	}
	return ex, nil
}

func (w *Walker[V]) collect(page int, ex *intercept.Exchange, res *Result[V]) error {
	if w.table.Ready != "" {
		if err := w.page.Locator(w.table.Ready).WaitVisible(w.readyTimeout); err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}
	}

	api, err := w.target.Extract(ex.Body)
	if err != nil {
		var ee *faults.ExtractionError
		if errors.As(err, &ee) {
			ee.Page = page
			return ee
		}
		return fmt.Errorf("page %d: %w", page, err)
	}
	res.API = append(res.API, api...)
	w.metrics.ValuesExtracted("api", w.target.Column, len(api))

	rows := w.page.Locator(w.table.Rows)
	n, err := rows.Count()
	if err != nil {
		return fmt.Errorf("page %d: count rows: %w", page, err)
	}
	decoded := 0
	for i := 0; i < n; i++ {
		v, ok, err := w.decoder.Decode(rows.Nth(i))
		if err != nil {
			return fmt.Errorf("page %d row %d: %w", page, i+1, err)
		}
		res.Rows++
		if !ok {
			res.Skipped++
			w.metrics.RowSkipped(w.target.Column)
			continue
		}
		res.UI = append(res.UI, v)
		decoded++
	}
	w.metrics.ValuesExtracted("ui", w.target.Column, decoded)

	w.logger.Debug("page collected",
		zap.Int("page", page),
		zap.Int("api_values", len(api)),
		zap.Int("rows", n),
		zap.Int("ui_values", decoded))
	return nil
}

// Numbers converts API values with jsonpath.Number
func Numbers(v jsonpath.Value) (float64, error) { return jsonpath.Number(v) }

// Labels converts API values to trimmed text
func Labels(v jsonpath.Value) (string, error) { return strings.TrimSpace(jsonpath.Text(v)), nil }
