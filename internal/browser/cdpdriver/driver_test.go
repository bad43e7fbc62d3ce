package cdpdriver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchlab/rtdcheck/internal/browser"
)

const fixture = `<html><body>
<span class="w-max">Ready To Dispatch</span>
<input placeholder="Min" value="5">
<table><tbody><tr><td class="amount">₹150</td></tr><tr><td class="amount">₹90</td></tr></tbody></table>
<button id="load" onclick="fetch('/data', {method: 'POST'})">Apply</button>
<button class="p-paginator-next p-disabled">next</button>
<div id="gone" style="display:none">hidden</div>
</body></html>`

func TestDriverAgainstChromium(t *testing.T) {
	if os.Getenv("RTDCHECK_BROWSER_TESTS") != "1" {
		t.Skip("set RTDCHECK_BROWSER_TESTS=1 to run against a real Chromium")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/data" {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"status":"success","data":[]}`)
			return
		}
		fmt.Fprint(w, fixture)
	}))
	defer srv.Close()

	opts := browser.DefaultOptions()
	opts.ActionTimeout = 5 * time.Second
	b, err := New(nil).Launch(context.Background(), opts)
	require.NoError(t, err)
	defer b.Close()

	dir := t.TempDir()
	page, err := b.NewPage(context.Background(), browser.PageOptions{DownloadDir: filepath.Join(dir, "downloads")})
	require.NoError(t, err)
	defer page.Close()

	require.NoError(t, page.Goto(srv.URL))
	require.NoError(t, page.Locator("span.w-max:has-text('Ready To Dispatch')").WaitVisible(time.Second))
	require.NoError(t, page.Locator("#gone").WaitHidden(time.Second))

	cells := page.Locator("table").Locator("td.amount")
	n, err := cells.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	text, err := cells.Nth(1).Text()
	require.NoError(t, err)
	assert.Equal(t, "₹90", text)

	enabled, err := page.Locator("button.p-paginator-next").IsEnabled()
	require.NoError(t, err)
	assert.False(t, enabled)

	minInput := page.Locator("input[placeholder='Min']")
	require.NoError(t, minInput.Fill("0.1"))
	got, err := page.Locator("input[placeholder='Min']").Attribute("placeholder")
	require.NoError(t, err)
	assert.Equal(t, "Min", got)

	seen := make(chan browser.Response, 4)
	remove := page.OnResponse(func(r browser.Response) {
		select {
		case seen <- r:
		default:
		}
	})
	defer remove()
	require.NoError(t, page.Locator("button:has-text('Apply')").Click())

	deadline := time.After(5 * time.Second)
	for {
		select {
		case r := <-seen:
			if r.Method() != "POST" {
				continue
			}
			assert.Equal(t, 200, r.Status())
			body, err := r.Body()
			require.NoError(t, err)
			assert.JSONEq(t, `{"status":"success","data":[]}`, string(body))
		case <-deadline:
			t.Fatal("no data response observed")
		}
		break
	}

	require.NoError(t, page.WaitForNetworkIdle(5*time.Second))
	require.NoError(t, page.Screenshot(filepath.Join(dir, "shot.png")))
	assert.FileExists(t, filepath.Join(dir, "shot.png"))
}
