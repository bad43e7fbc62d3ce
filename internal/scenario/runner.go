package scenario

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dispatchlab/rtdcheck/internal/browser"
	"github.com/dispatchlab/rtdcheck/internal/config"
	"github.com/dispatchlab/rtdcheck/internal/decode"
	"github.com/dispatchlab/rtdcheck/internal/export"
	"github.com/dispatchlab/rtdcheck/internal/faults"
	"github.com/dispatchlab/rtdcheck/internal/filter"
	"github.com/dispatchlab/rtdcheck/internal/history"
	"github.com/dispatchlab/rtdcheck/internal/intercept"
	"github.com/dispatchlab/rtdcheck/internal/jsonpath"
	"github.com/dispatchlab/rtdcheck/internal/metrics"
	"github.com/dispatchlab/rtdcheck/internal/rtd"
	"github.com/dispatchlab/rtdcheck/internal/validate"
	"github.com/dispatchlab/rtdcheck/internal/walker"
)

// Runner executes suites on one browser session
type Runner struct {
	cfg     *config.Config
	session *browser.Session
	logger  *zap.Logger
	metrics *metrics.Collector
	now     func() time.Time
	trigger string
}

// Option customises a Runner
type Option func(*Runner)

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithClock replaces time.Now for date-relative scenarios
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithTrigger labels reports, e.g. "manual" or "schedule"
func WithTrigger(t string) Option {
	return func(r *Runner) { r.trigger = t }
}

// NewRunner creates a runner using cfg for targets, credentials and timeouts
func NewRunner(cfg *config.Config, session *browser.Session, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		session: session,
		logger:  zap.NewNop(),
		now:     time.Now,
		trigger: "manual",
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes every enabled scenario in order. A failing scenario does not stop
// the run; a cancelled context skips the scenarios not yet started.
func (r *Runner) Run(ctx context.Context, suite *Suite) *Report {
	rep := &Report{
		RunID:   uuid.NewString(),
		Suite:   suite.Name,
		Trigger: r.trigger,
		Started: r.now(),
	}
	log := r.logger.With(zap.String("run_id", rep.RunID), zap.String("suite", suite.Name))
	log.Info("suite run started", zap.Int("scenarios", len(suite.Scenarios)))

	for _, sc := range suite.Scenarios {
		out := Outcome{Name: sc.Name, Kind: sc.Kind, Filter: sc.Filter(), Started: r.now()}
		switch {
		case sc.Disabled:
			out.Status = history.StatusSkipped
			out.Err = errors.New("disabled")
		case ctx.Err() != nil:
			out.Status = history.StatusSkipped
			out.Err = ctx.Err()
		default:
			r.runOne(ctx, sc, &out, log)
		}
		rep.Outcomes = append(rep.Outcomes, out)
	}

	rep.Finished = r.now()
	passed, failed, skipped := rep.Counts()
	r.metrics.RunFinished(rep.Finished, failed)
	log.Info("suite run finished",
		zap.Int("passed", passed),
		zap.Int("failed", failed),
		zap.Int("skipped", skipped),
		zap.Duration("duration", rep.Duration()))
	return rep
}

func (r *Runner) runOne(ctx context.Context, sc Scenario, out *Outcome, log *zap.Logger) {
	log = log.With(zap.String("scenario", sc.Name), zap.String("kind", string(sc.Kind)))
	log.Info("scenario started", zap.String("filter", out.Filter))
	start := time.Now()

	out.Artifacts = r.session.ArtifactDir(sc.Name)
	err := r.session.WithPage(ctx, sc.Name, func(page browser.Page, dir string) error {
		return r.execute(ctx, sc, page, dir, out, log)
	})

	out.Duration = time.Since(start)
	out.Err = err
	if err != nil {
		out.Status = history.StatusFailed
		log.Error("scenario failed", zap.Error(err), zap.Duration("duration", out.Duration))
	} else {
		out.Status = history.StatusPassed
		log.Info("scenario passed",
			zap.Duration("duration", out.Duration),
			zap.Int("pages", out.Pages),
			zap.Int("api_values", out.APIValues),
			zap.Int("ui_values", out.UIValues))
	}
	r.metrics.ScenarioFinished(string(sc.Kind), err == nil, out.Duration)
}

// run is the per-scenario state shared by the steps
type run struct {
	*Runner
	ctx    context.Context
	sc     Scenario
	page   browser.Page
	rtd    *rtd.Page
	bridge *intercept.Bridge
	dir    string
	out    *Outcome
	log    *zap.Logger
}

func (r *Runner) execute(ctx context.Context, sc Scenario, page browser.Page, dir string, out *Outcome, log *zap.Logger) error {
	wait := r.cfg.Browser.ActionTimeout
	rp := rtd.NewPage(page, r.cfg.Target.BaseURL, r.cfg.Target.RTDPath)
	rp.Wait = wait
	rp.PageSize = r.cfg.Table.PageSize

	s := &run{
		Runner: r,
		ctx:    ctx,
		sc:     sc,
		page:   page,
		rtd:    rp,
		dir:    dir,
		out:    out,
		log:    log,
		bridge: intercept.NewBridge(page,
			intercept.WithTimeout(r.cfg.Intercept.Timeout),
			intercept.WithLogger(log.Named("bridge")),
			intercept.WithMetrics(r.metrics)),
	}

	if err := s.login(); err != nil {
		return err
	}
	if err := rp.Open(); err != nil {
		return err
	}

	switch sc.Kind {
	case KindNavigate:
		return nil
	case KindLast7Days:
		return s.last7Days()
	case KindCustomDateRange:
		return s.customDateRange()
	case KindInvalidOrderID:
		return s.invalidOrderID()
	case KindAmountInvalidMin:
		return s.amountInvalidMin()
	case KindAmountMinExceedsMax:
		return s.amountMinExceedsMax()
	case KindAmountFilter:
		return s.amountFilter()
	case KindRiskFilter:
		return s.riskFilter()
	case KindExport:
		return s.export()
	}
	return fmt.Errorf("unknown scenario kind %q", sc.Kind)
}

func (s *run) login() error {
	login := rtd.NewLoginPage(s.page, s.cfg.Target.BaseURL, s.cfg.Target.LoginPath)
	login.Wait = s.cfg.Browser.ActionTimeout
	creds := rtd.Credentials{Email: s.cfg.Credentials.Email, Password: s.cfg.Credentials.Password}
	if err := login.Login(creds); err != nil {
		return err
	}
	dash := rtd.NewDashboardPage(s.page)
	dash.Wait = s.cfg.Browser.ActionTimeout
	if err := dash.WaitLoaded(); err != nil {
		if failure := login.Failure(); failure != nil {
			return failure
		}
		return err
	}
	s.log.Debug("logged in")
	return nil
}

func (s *run) endpoint() intercept.Endpoint {
	return intercept.Endpoint{URLSubstring: s.cfg.Target.DataEndpoint, Method: s.cfg.Target.DataMethod}
}

// applyAndCapture clicks Apply and returns the data response it caused
func (s *run) applyAndCapture() (*intercept.Exchange, error) {
	return s.bridge.InterceptEndpoint(s.ctx, s.endpoint(), s.rtd.Apply)
}

func (s *run) verify(ex *intercept.Exchange) error {
	if s.sc.Expect.IsZero() {
		return nil
	}
	if err := s.sc.Expect.Verify(s.ctx, ex); err != nil {
		return fmt.Errorf("API response: %w", err)
	}
	return nil
}

func (s *run) expectRange(want filter.DateRange) error {
	shown, err := s.rtd.DisplayedRange()
	if err != nil {
		return err
	}
	if shown.Display() != want.Display() {
		return fmt.Errorf("displayed date range %s, want %s", shown.Display(), want.Display())
	}
	return nil
}

func (s *run) last7Days() error {
	if err := s.rtd.SelectLast7Days(); err != nil {
		return err
	}
	if err := s.expectRange(filter.Last7Days(s.now())); err != nil {
		return err
	}
	chip, err := s.rtd.AppliedFilter()
	if err != nil {
		return err
	}
	if want := "Order Date : " + string(filter.PresetLast7Days); !strings.Contains(chip, want) {
		return fmt.Errorf("applied filter reads %q, want %q", chip, want)
	}
	return nil
}

// applyDate picks and applies the scenario's custom range, if any
func (s *run) applyDate() (filter.DateRange, error) {
	if s.sc.Date == nil {
		return filter.DateRange{}, nil
	}
	want, err := s.sc.Date.Resolve(s.now())
	if err != nil {
		return want, err
	}
	if err := s.rtd.PickCustomRange(want.From, want.To); err != nil {
		return want, err
	}
	if err := s.rtd.Apply(); err != nil {
		return want, err
	}
	return want, nil
}

func (s *run) customDateRange() error {
	want, err := s.applyDate()
	if err != nil {
		return err
	}
	return s.expectRange(want)
}

func (s *run) invalidOrderID() error {
	if err := s.rtd.OpenFilters(); err != nil {
		return err
	}
	if err := s.rtd.SearchOrderID(s.sc.OrderID); err != nil {
		return err
	}
	ex, err := s.applyAndCapture()
	if err != nil {
		return err
	}
	if err := s.verify(ex); err != nil {
		return err
	}
	return s.rtd.WaitNoRecords()
}

func (s *run) amountInvalidMin() error {
	if err := s.rtd.OpenFilters(); err != nil {
		return err
	}
	if err := s.rtd.SetAmountCondition(*s.sc.Amount); err != nil {
		return err
	}
	ex, err := s.applyAndCapture()
	if err != nil {
		return err
	}
	var errs []error
	toast, err := s.rtd.Toast()
	if err != nil {
		errs = append(errs, err)
	} else if !strings.Contains(toast, s.sc.Expect.MessageContains) {
		errs = append(errs, fmt.Errorf("toast reads %q, want it to contain %q", toast, s.sc.Expect.MessageContains))
	}
	errs = append(errs, s.verify(ex), s.rtd.WaitNoRecords())
	return errors.Join(errs...)
}

func (s *run) amountMinExceedsMax() error {
	if err := s.rtd.OpenFilters(); err != nil {
		return err
	}
	if err := s.rtd.SetAmountCondition(*s.sc.Amount); err != nil {
		return err
	}
	if err := s.rtd.Apply(); err != nil {
		return err
	}
	toast, err := s.rtd.Toast()
	if err != nil {
		return err
	}
	if !strings.Contains(toast, s.sc.Toast) {
		return fmt.Errorf("toast reads %q, want it to contain %q", toast, s.sc.Toast)
	}
	return nil
}

func (s *run) settler() walker.Settler {
	t := s.cfg.Table
	switch t.SettleMode {
	case config.SettleFixed:
		return walker.FixedDelay{Delay: t.SettleDelay}
	case config.SettleNetwork:
		return walker.NetworkIdle{Page: s.page, Timeout: t.SettleTimeout}
	default:
		return s.rtd.SummarySettler(t.SettleTimeout)
	}
}

func (s *run) walkerOptions() []walker.Option {
	return []walker.Option{
		walker.WithSettler(s.settler()),
		walker.WithReadyTimeout(s.cfg.Browser.ActionTimeout),
		walker.WithLogger(s.log.Named("walker")),
		walker.WithMetrics(s.metrics),
	}
}

// filtered applies the scenario's date and opens the filter panel, runs set,
// then applies the panel and returns the first page's response and page count
func (s *run) filtered(set func() error) (*intercept.Exchange, int, error) {
	if _, err := s.applyDate(); err != nil {
		return nil, 0, err
	}
	if err := s.rtd.OpenFilters(); err != nil {
		return nil, 0, err
	}
	if err := set(); err != nil {
		return nil, 0, err
	}
	first, err := s.applyAndCapture()
	if err != nil {
		return nil, 0, err
	}
	if err := s.verify(first); err != nil {
		return nil, 0, err
	}
	total, err := s.settleFirstPage(first)
	if err != nil {
		return nil, 0, err
	}
	s.log.Info("filter applied", zap.Int("pages", total))
	return first, total, nil
}

// settleFirstPage waits until the table shows the page first produced and
// returns the page count its summary then reports
func (s *run) settleFirstPage(first *intercept.Exchange) (int, error) {
	if s.cfg.Table.SettleMode == config.SettleFixed || s.cfg.Table.SettleMode == config.SettleNetwork {
		if err := s.settler().Settle(s.ctx, 1); err != nil {
			return 0, fmt.Errorf("page 1: %w", err)
		}
	}
	records := -1
	if data, ok := first.Body.Get("data"); ok && data.Kind() == jsonpath.KindArray {
		records = data.Len()
	}
	return s.rtd.SettleFirstPage(s.ctx, records, s.cfg.Table.SettleTimeout)
}

// checkEmpty handles a filter whose table shows no entries. The values of the
// first response are still checked, and any left over contradict the table.
func checkEmpty[V any](s *run, first *intercept.Exchange, target walker.Target[V], p validate.Predicate[V]) error {
	target.Required = false
	api, err := target.Extract(first.Body)
	if err != nil {
		return fmt.Errorf("page 1: %w", err)
	}
	if err := validate.Check("api", api, p); err != nil {
		return err
	}
	if len(api) > 0 {
		return &faults.PaginationStateError{
			Page:    1,
			Control: s.rtd.Sel.Summary,
			Reason:  fmt.Sprintf("shows no entries but the data response holds %d %s values", len(api), target.Column),
		}
	}
	return s.record(0, 0, 0, 0)
}

func (s *run) record(pages, api, ui, skipped int) error {
	s.out.Pages, s.out.APIValues, s.out.UIValues, s.out.Skipped = pages, api, ui, skipped
	if ui < s.sc.MinResults {
		return fmt.Errorf("only %d rows matched, want at least %d", ui, s.sc.MinResults)
	}
	return nil
}

func (s *run) amountFilter() error {
	cond := *s.sc.Amount
	first, total, err := s.filtered(func() error { return s.rtd.SetAmountCondition(cond) })
	if err != nil {
		return err
	}
	target := walker.Target[float64]{Key: "final_total_price", Required: true, Convert: walker.Numbers, Column: "amount"}
	if total == 0 {
		return checkEmpty(s, first, target, cond.Predicate())
	}

	dec := decode.NewAmountDecoder()
	w := walker.New[float64](s.page, s.bridge, s.endpoint(), s.rtd.AmountTable(), target, dec, s.walkerOptions()...)
	res, err := w.Walk(s.ctx, total, first)
	if err != nil {
		return err
	}
	if err := validate.CheckAll(cond.Predicate(),
		validate.Group[float64]{Source: "api", Values: res.API},
		validate.Group[float64]{Source: "ui", Values: res.UI}); err != nil {
		return err
	}
	return s.record(res.Pages, len(res.API), len(res.UI), res.Skipped)
}

func (s *run) riskFilter() error {
	set := *s.sc.Risk
	first, total, err := s.filtered(func() error { return s.rtd.SelectRisks(set) })
	if err != nil {
		return err
	}
	target := walker.Target[string]{ParentKey: "order_risk", Key: "title", Convert: walker.Labels, Column: "risk"}
	if total == 0 {
		return checkEmpty(s, first, target, set.Predicate())
	}

	dec := decode.NewRiskDecoder(s.page)
	dec.Timeout = s.cfg.Browser.ActionTimeout
	dec.Logger = s.log.Named("risk")
	dec.Metrics = s.metrics
	w := walker.New[string](s.page, s.bridge, s.endpoint(), s.rtd.RiskTable(), target, dec, s.walkerOptions()...)
	res, err := w.Walk(s.ctx, total, first)
	if err != nil {
		return err
	}
	if opened, closed := dec.Opened(), dec.Closed(); opened != closed {
		return fmt.Errorf("risk overlay opened %d times but closed %d times", opened, closed)
	}
	if err := validate.CheckAll(set.Predicate(),
		validate.Group[string]{Source: "api", Values: res.API},
		validate.Group[string]{Source: "ui", Values: res.UI}); err != nil {
		return err
	}
	return s.record(res.Pages, len(res.API), len(res.UI), res.Skipped)
}

func (s *run) export() error {
	if _, err := s.applyDate(); err != nil {
		return err
	}
	dir := filepath.Join(s.dir, "downloads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path, err := s.rtd.DownloadExport(dir, s.cfg.Browser.ActionTimeout)
	if err != nil {
		return err
	}
	s.log.Info("export downloaded", zap.String("path", path))
	rows, err := export.NewVerifier().VerifyFile(path)
	if err != nil {
		return err
	}
	return s.record(0, 0, rows, 0)
}
