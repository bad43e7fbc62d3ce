package helpers

import (
	"github.com/dispatchlab/rtdcheck/internal/browser"
	"github.com/dispatchlab/rtdcheck/internal/rtd"
)

// AuthHelper signs pages in to the RTD application
type AuthHelper struct {
	browser *BrowserHelper
}

func NewAuthHelper(browser *BrowserHelper) *AuthHelper {
	return &AuthHelper{browser: browser}
}

// Login submits creds on page without waiting for the dashboard
func (a *AuthHelper) Login(page browser.Page, creds rtd.Credentials) *rtd.LoginPage {
	target := a.browser.Config.Target
	login := rtd.NewLoginPage(page, target.BaseURL, target.LoginPath)
	if err := login.Login(creds); err != nil {
		a.browser.t.Fatalf("login form: %v", err)
	}
	return login
}

// LoginAsConfigured logs in with the configured account and waits for the dashboard
func (a *AuthHelper) LoginAsConfigured(page browser.Page) error {
	c := a.browser.Config.Credentials
	a.Login(page, rtd.Credentials{Email: c.Email, Password: c.Password})
	return rtd.NewDashboardPage(page).WaitLoaded()
}
