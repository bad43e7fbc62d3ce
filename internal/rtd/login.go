// Package rtd holds the page objects for the pages a scenario passes through:
// login, the dashboard and the Ready To Dispatch order table.
package rtd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dispatchlab/rtdcheck/internal/browser"
)

// DefaultWait bounds every element wait in this package
const DefaultWait = 10 * time.Second

// ErrNoCredentials is returned by Login when email or password is empty
var ErrNoCredentials = errors.New("rtd: login credentials not configured")

// Credentials for the RTD application
type Credentials struct {
	Email    string
	Password string
}

// LoginError carries the message the login form displayed
type LoginError struct {
	Message string
}

func (e *LoginError) Error() string {
	return "login failed: " + e.Message
}

// LoginPage is the application's sign-in form
type LoginPage struct {
	page    browser.Page
	url     string
	Wait    time.Duration
	Email   string
	Pass    string
	Submit  string
	Problem string
}

// NewLoginPage points at baseURL+path
func NewLoginPage(page browser.Page, baseURL, path string) *LoginPage {
	return &LoginPage{
		page:    page,
		url:     JoinURL(baseURL, path),
		Wait:    DefaultWait,
		Email:   "input[type='email']",
		Pass:    "input[type='password']",
		Submit:  "button:has-text('Log In')",
		Problem: "div.error-message:has-text('Invalid credentials')",
	}
}

// Login opens the form, fills it and submits. It does not wait for the
// dashboard; see DashboardPage.WaitLoaded.
func (l *LoginPage) Login(creds Credentials) error {
	if creds.Email == "" || creds.Password == "" {
		return ErrNoCredentials
	}
	if err := l.page.Goto(l.url); err != nil {
		return fmt.Errorf("navigate to login: %w", err)
	}

	email := l.page.Locator(l.Email)
	if err := email.WaitVisible(l.Wait); err != nil {
		return fmt.Errorf("email input not found: %w", err)
	}
	password := l.page.Locator(l.Pass)
	if err := password.WaitVisible(l.Wait); err != nil {
		return fmt.Errorf("password input not found: %w", err)
	}

	if err := email.Fill(creds.Email); err != nil {
		return fmt.Errorf("fill email: %w", err)
	}
	if err := password.Fill(creds.Password); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}
	if err := l.page.Locator(l.Submit).Click(); err != nil {
		return fmt.Errorf("click log in: %w", err)
	}
	return nil
}

// Failure returns the displayed login error, if any
func (l *LoginPage) Failure() error {
	problem := l.page.Locator(l.Problem)
	if visible, _ := problem.IsVisible(); !visible {
		return nil
	}
	text, _ := problem.Text()
	return &LoginError{Message: strings.TrimSpace(text)}
}

// DashboardPage is the landing page after a successful login
type DashboardPage struct {
	page    browser.Page
	Wait    time.Duration
	Welcome string
	Create  string
}

func NewDashboardPage(page browser.Page) *DashboardPage {
	return &DashboardPage{
		page:    page,
		Wait:    DefaultWait,
		Welcome: "h1:has-text('Welcome iThink Logistics!')",
		Create:  "button:has-text('Create Order')",
	}
}

// WaitLoaded waits for the welcome banner, falling back to the Create Order button
func (d *DashboardPage) WaitLoaded() error {
	if err := d.page.Locator(d.Welcome).WaitVisible(d.Wait); err == nil {
		return nil
	}
	if err := d.page.Locator(d.Create).WaitVisible(d.Wait); err != nil {
		return fmt.Errorf("dashboard did not load: %w", err)
	}
	return nil
}

// JoinURL appends path to base with exactly one slash between them
func JoinURL(base, path string) string {
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
