package e2e

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchlab/rtdcheck/internal/browser"
	"github.com/dispatchlab/rtdcheck/internal/history"
	"github.com/dispatchlab/rtdcheck/internal/rtd"
	"github.com/dispatchlab/rtdcheck/internal/scenario"
	"github.com/dispatchlab/rtdcheck/tests/e2e/helpers"
)

func TestLoginReachesDashboard(t *testing.T) {
	b := helpers.NewBrowserHelper(t)
	require.NoError(t, b.Setup(), "Failed to setup browser")
	defer b.TearDown()

	auth := helpers.NewAuthHelper(b)
	err := b.WithPage(func(page browser.Page) error {
		if err := auth.LoginAsConfigured(page); err != nil {
			return err
		}
		t.Logf("Landed on %s", page.URL())
		return nil
	})
	require.NoError(t, err)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	b := helpers.NewBrowserHelper(t)
	require.NoError(t, b.Setup(), "Failed to setup browser")
	defer b.TearDown()

	auth := helpers.NewAuthHelper(b)
	err := b.WithPage(func(page browser.Page) error {
		login := auth.Login(page, rtd.Credentials{Email: b.Config.Credentials.Email, Password: "not-the-password"})
		assert.Eventually(t, func() bool {
			return login.Failure() != nil
		}, 15*time.Second, 250*time.Millisecond, "login error message shown")
		var le *rtd.LoginError
		assert.ErrorAs(t, login.Failure(), &le)
		return nil
	})
	require.NoError(t, err)
}

// TestRegressionSuite runs every enabled default scenario against the live site
func TestRegressionSuite(t *testing.T) {
	b := helpers.NewBrowserHelper(t)
	require.NoError(t, b.Setup(), "Failed to setup browser")
	defer b.TearDown()

	suite := scenario.DefaultSuite()
	runner := scenario.NewRunner(b.Config.Config, b.Session,
		scenario.WithLogger(b.Logger), scenario.WithTrigger("e2e"))

	for _, sc := range suite.Scenarios {
		if sc.Disabled {
			continue
		}
		t.Run(sc.Name, func(t *testing.T) {
			one, err := suite.Only(sc.Name)
			require.NoError(t, err)

			report := runner.Run(t.Context(), one)
			require.Len(t, report.Outcomes, 1)
			out := report.Outcomes[0]
			t.Logf("%s: %s pages=%d api=%d ui=%d in %s", out.Name, out.Status, out.Pages, out.APIValues, out.UIValues, out.Duration)
			assert.NotEqual(t, history.StatusFailed, out.Status, out.Error())
		})
	}
}
