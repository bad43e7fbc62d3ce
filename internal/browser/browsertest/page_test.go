package browsertest

import (
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchlab/rtdcheck/internal/browser"
	"github.com/dispatchlab/rtdcheck/internal/faults"
)

const fixture = `<html><body>
<span class="w-max">Ready To Dispatch</span>
<button class="next" disabled>Next</button>
<button id="apply">Apply</button>
<table><tbody>
  <tr><td>A1</td><td class="risk" data-risk="Low Risk">?</td></tr>
  <tr><td>A2</td><td class="risk" data-risk="High Risk">?</td></tr>
</tbody></table>
<div class="panel" hidden><div class="header"></div></div>
</body></html>`

func TestLocatorQueries(t *testing.T) {
	p := MustPage(fixture)

	t.Run("has-text is rewritten for cascadia", func(t *testing.T) {
		n, err := p.Locator("span.w-max:has-text('Ready To Dispatch')").Count()
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("chained and indexed locators", func(t *testing.T) {
		rows := p.Locator("table tbody tr")
		n, err := rows.Count()
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		text, err := rows.Nth(1).Locator("td").Nth(0).Text()
		require.NoError(t, err)
		assert.Equal(t, "A2", text)
		assert.Equal(t, "table tbody tr >> nth=1 >> td >> nth=0", rows.Nth(1).Locator("td").Nth(0).String())
	})

	t.Run("missing element behaves like an expired wait", func(t *testing.T) {
		_, err := p.Locator("#nope").Text()
		assert.True(t, faults.IsTimeout(err))
	})

	t.Run("disabled state", func(t *testing.T) {
		enabled, err := p.Locator("button.next").IsEnabled()
		require.NoError(t, err)
		assert.False(t, enabled)
		assert.True(t, faults.IsTimeout(p.Locator("button.next").Click()))
	})

	t.Run("fill records value", func(t *testing.T) {
		require.NoError(t, p.Locator("#apply").Fill("x"))
		v, ok := p.Filled("#apply")
		require.True(t, ok)
		assert.Equal(t, "x", v)
	})
}

func TestToggleOverlay(t *testing.T) {
	p := MustPage(fixture)
	p.OnClick("td.risk", ToggleOverlay(".panel", ".header", "data-risk"))

	header := p.Locator(".panel .header")
	visible, _ := header.IsVisible()
	assert.False(t, visible)

	cell := p.Locator("tbody tr").Nth(1).Locator("td.risk")
	require.NoError(t, cell.Click())
	require.NoError(t, header.WaitVisible(0))
	text, err := header.Text()
	require.NoError(t, err)
	assert.Equal(t, "High Risk", text)

	require.NoError(t, cell.Click())
	require.NoError(t, header.WaitHidden(0))
	assert.Equal(t, 2, p.Clicks(cell.String()))
}

func TestResponseListeners(t *testing.T) {
	p := MustPage(fixture)
	var got []string
	remove := p.OnResponse(func(r browser.Response) { got = append(got, r.URL()) })
	p.OnClick("#apply", func(p *Page, _ *goquery.Selection) error {
		p.Emit(JSONResponse("https://x/api/v1/order/forward/get/data", "POST", 200, `{}`))
		return nil
	})

	require.NoError(t, p.Locator("#apply").Click())
	assert.Equal(t, []string{"https://x/api/v1/order/forward/get/data"}, got)
	assert.Equal(t, 1, p.Listeners())

	remove()
	assert.Equal(t, 0, p.Listeners())
	require.NoError(t, p.Locator("#apply").Click())
	assert.Len(t, got, 1)
}
