// Package decode turns one rendered table row into the value a column holds.
package decode

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/dispatchlab/rtdcheck/internal/browser"
)

// Decoder reads one row. ok is false when the row contributes no value.
type Decoder[V any] interface {
	Decode(row browser.Locator) (value V, ok bool, err error)
}

// Func adapts a function to Decoder
type Func[V any] func(row browser.Locator) (V, bool, error)

func (f Func[V]) Decode(row browser.Locator) (V, bool, error) { return f(row) }

// AmountDecoder reads a currency-prefixed amount cell
type AmountDecoder struct {
	Cell      string
	Header    string
	Glyph     string
	Separator string
}

// NewAmountDecoder returns the decoder for the RTD amount column
func NewAmountDecoder() *AmountDecoder {
	return &AmountDecoder{Cell: "td:nth-child(4)", Header: "Amount", Glyph: "₹", Separator: ","}
}

func (d *AmountDecoder) Decode(row browser.Locator) (float64, bool, error) {
	text, err := row.Locator(d.Cell).Text()
	if err != nil {
		return 0, false, err
	}
	v, ok := ParseAmount(text, d.Header, d.Glyph, d.Separator)
	return v, ok, nil
}

var plainDecimal = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)$`)

// ParseAmount strips glyph and whitespace and parses the remainder. Text equal
// to the header label (a stray header row) and anything but a plain decimal yield ok == false.
func ParseAmount(text, header, glyph, sep string) (float64, bool) {
	cleaned := text
	if glyph != "" {
		cleaned = strings.ReplaceAll(cleaned, glyph, "")
	}
	cleaned = strings.TrimSpace(cleaned)
	if header != "" && sameFold(cleaned, header) {
		return 0, false
	}
	if sep != "" {
		cleaned = strings.ReplaceAll(cleaned, sep, "")
	}
	if !plainDecimal.MatchString(cleaned) {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// sameFold compares under Unicode case folding. Casers are stateful, so each call gets its own.
func sameFold(a, b string) bool {
	c := cases.Fold()
	return c.String(a) == c.String(b)
}
