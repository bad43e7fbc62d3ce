package pwdriver

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

// Launching Chromium needs the Playwright driver and browsers on the machine
func requirePlaywright(t *testing.T) {
	t.Helper()
	if os.Getenv("RTDCHECK_BROWSER_TESTS") != "1" {
		t.Skip("set RTDCHECK_BROWSER_TESTS=1 to run against a real Chromium")
	}
}

const fixture = `<html><body>
<span class="w-max">Ready To Dispatch</span>
<table><tbody><tr><td class="amount">₹150</td></tr><tr><td class="amount">₹90</td></tr></tbody></table>
<button id="load" onclick="fetch('/data', {method: 'POST'})">Apply</button>
<button id="next" disabled>next</button>
</body></html>`

func TestDriverAgainstChromium(t *testing.T) {
	requirePlaywright(t)

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
	page, err := b.NewPage(context.Background(), browser.PageOptions{TracePath: filepath.Join(dir, "trace.zip")})
	require.NoError(t, err)

	require.NoError(t, page.Goto(srv.URL))
	require.NoError(t, page.Locator("span.w-max:has-text('Ready To Dispatch')").WaitVisible(time.Second))

	cells := page.Locator("table").Locator("td.amount")
	n, err := cells.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	text, err := cells.Nth(1).Text()
	require.NoError(t, err)
	assert.Equal(t, "₹90", text)
	assert.Equal(t, "table >> td.amount >> nth=1", cells.Nth(1).String())

	enabled, err := page.Locator("#next").IsEnabled()
	require.NoError(t, err)
	assert.False(t, enabled)

	seen := make(chan browser.Response, 4)
	remove := page.OnResponse(func(r browser.Response) {
		select {
		case seen <- r:
		default:
		}
	})
	require.NoError(t, page.Locator("#load").Click())
	select {
	case r := <-seen:
		assert.Equal(t, "POST", r.Method())
		assert.Equal(t, 200, r.Status())
	case <-time.After(5 * time.Second):
		t.Fatal("no response observed")
	}
	remove()

	require.NoError(t, page.Screenshot(filepath.Join(dir, "shot.png")))
	require.NoError(t, page.Close())
	assert.FileExists(t, filepath.Join(dir, "trace.zip"))
}
