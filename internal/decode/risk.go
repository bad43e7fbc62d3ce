package decode

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dispatchlab/rtdcheck/internal/browser"
	"github.com/dispatchlab/rtdcheck/internal/metrics"
)

// NotApplicable is the risk label of a row whose icon carries the neutral marker
const NotApplicable = "NA"

// RiskDecoder reads the risk column. Rows with a neutral icon are NA; any other row
// has its label read from an overlay that is opened by clicking the cell and must
// be closed again before the next row is touched.
type RiskDecoder struct {
	Page          browser.Page
	Cell          string
	Icon          string
	IconAttr      string
	NeutralMarker string
	Overlay       string
	Timeout       time.Duration
	Logger        *zap.Logger
	Metrics       *metrics.Collector

	opened atomic.Int64
	closed atomic.Int64
}

// NewRiskDecoder returns the decoder for the RTD risk column on page
func NewRiskDecoder(page browser.Page) *RiskDecoder {
	return &RiskDecoder{
		Page:          page,
		Cell:          "td.order_risk",
		Icon:          "img",
		IconAttr:      "src",
		NeutralMarker: "shield-gray",
		Overlay:       ".p-overlaypanel-content .header",
		Timeout:       10 * time.Second,
		Logger:        zap.NewNop(),
	}
}

// Opened counts overlay opens
func (d *RiskDecoder) Opened() int64 { return d.opened.Load() }

// Closed counts overlay closes
func (d *RiskDecoder) Closed() int64 { return d.closed.Load() }

func (d *RiskDecoder) Decode(row browser.Locator) (string, bool, error) {
	cell := row.Locator(d.Cell)
	icon := cell.Locator(d.Icon)
	n, err := icon.Count()
	if err != nil {
		return "", false, err
	}
	if n > 0 {
		src, err := icon.Nth(0).Attribute(d.IconAttr)
		if err != nil {
			return "", false, err
		}
		if strings.Contains(src, d.NeutralMarker) {
			return NotApplicable, true, nil
		}
	}

	var label string
	err = d.withOverlay(cell, func(overlay browser.Locator) error {
		text, err := overlay.Text()
		if err != nil {
			return fmt.Errorf("read risk overlay: %w", err)
		}
		label = strings.TrimSpace(text)
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return label, true, nil
}

func (d *RiskDecoder) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// withOverlay opens the overlay by clicking cell, hands the visible overlay to read,
// and closes it by clicking cell again on every path out.
func (d *RiskDecoder) withOverlay(cell browser.Locator, read func(overlay browser.Locator) error) (err error) {
	if err := cell.Click(); err != nil {
		return fmt.Errorf("open risk overlay via %s: %w", cell, err)
	}
	d.opened.Add(1)
	overlay := d.Page.Locator(d.Overlay)

	defer func() {
		closeErr := cell.Click()
		if closeErr == nil {
			d.closed.Add(1)
			d.Metrics.OverlayCycle()
			closeErr = overlay.WaitHidden(d.Timeout)
		}
		if closeErr != nil {
			d.logger().Warn("risk overlay not closed", zap.Stringer("cell", cell), zap.Error(closeErr))
			err = errors.Join(err, fmt.Errorf("close risk overlay via %s: %w", cell, closeErr))
		}
	}()

	if err := overlay.WaitVisible(d.Timeout); err != nil {
		return err
	}
	return read(overlay)
}
