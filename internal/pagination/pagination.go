// Package pagination reads the table's "Showing X to Y of Z entries" summary.
package pagination

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dispatchlab/rtdcheck/internal/faults"
)

// DefaultPageSize is the row count of a full RTD table page
const DefaultPageSize = 10

// Summary is the parsed pagination summary
type Summary struct {
	From  int
	To    int
	Total int
}

var summaryPattern = regexp.MustCompile(`(?i)showing\s+([\d,]+)\s+to\s+([\d,]+)\s+of\s+([\d,]+)\s+entries`)

// ParseSummary parses text such as "Showing 1 to 10 of 23 entries". Text of any
// other shape is a ParseError rather than a zero count.
func ParseSummary(text string) (Summary, error) {
	m := summaryPattern.FindStringSubmatch(text)
	if m == nil {
		return Summary{}, &faults.ParseError{Input: strings.TrimSpace(text), Want: "pagination summary"}
	}
	var nums [3]int
	for i, s := range m[1:] {
		n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
		if err != nil {
			return Summary{}, &faults.ParseError{Input: text, Want: "pagination summary", Err: err}
		}
		nums[i] = n
	}
	return Summary{From: nums[0], To: nums[1], Total: nums[2]}, nil
}

// TotalPages is ceil(total/pageSize). A non-positive page size falls back to DefaultPageSize.
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// Pages is TotalPages for this summary
func (s Summary) Pages(pageSize int) int { return TotalPages(s.Total, pageSize) }

// FirstRowOf is the 1-based index of the first row shown on page
func FirstRowOf(page, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return (page-1)*pageSize + 1
}
