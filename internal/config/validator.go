package config

import (
	"fmt"
	"net/url"
	"strings"
)

var (
	drivers     = []string{"playwright", "chromedp"}
	settleModes = []string{SettleSummary, SettleFixed, SettleNetwork}
	logFormats  = []string{"console", "json"}
)

type validator struct {
	config   *Config
	errors   []string
	warnings []string
}

// Validate rejects configurations the checker cannot run with
func (c *Config) Validate() error {
	v := &validator{config: c}
	v.validateTarget()
	v.validateBrowser()
	v.validateTable()
	v.validateLogging()

	if len(v.errors) > 0 {
		return fmt.Errorf("config validation failed:\n%s", strings.Join(v.errors, "\n"))
	}
	return nil
}

// Warnings lists settings that are valid but will make some scenarios fail or skip
func (c *Config) Warnings() []string {
	v := &validator{config: c}
	v.validateCredentials()
	if c.Browser.Headless && c.Browser.SlowMo > 0 {
		v.addWarning("browser.slow_mo has little use in headless mode")
	}
	if c.Metrics.Enabled && c.Metrics.Textfile == "" && c.Metrics.Listen == "" {
		v.addWarning("metrics are enabled but neither metrics.textfile nor metrics.listen is set")
	}
	return v.warnings
}

func (v *validator) validateTarget() {
	t := v.config.Target
	u, err := url.Parse(t.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		v.addError(fmt.Sprintf("target.base_url %q must be an absolute http(s) URL", t.BaseURL))
	}
	if t.DataEndpoint == "" {
		v.addError("target.data_endpoint is not set")
	}
	if t.DataMethod == "" {
		v.addError("target.data_method is not set")
	} else if t.DataMethod != strings.ToUpper(t.DataMethod) {
		v.addError(fmt.Sprintf("target.data_method %q must be upper case; methods are matched exactly", t.DataMethod))
	}
}

func (v *validator) validateBrowser() {
	b := v.config.Browser
	v.oneOf("browser.driver", b.Driver, drivers)
	if b.ViewportWidth <= 0 || b.ViewportHeight <= 0 {
		v.addError("browser viewport must be positive")
	}
	if b.ActionTimeout <= 0 {
		v.addError("browser.action_timeout must be positive")
	}
}

func (v *validator) validateTable() {
	t := v.config.Table
	if t.PageSize <= 0 {
		v.addError(fmt.Sprintf("table.page_size must be positive, got %d", t.PageSize))
	}
	v.oneOf("table.settle_mode", t.SettleMode, settleModes)
	if t.SettleMode == SettleFixed && t.SettleDelay <= 0 {
		v.addError("table.settle_delay must be positive in fixed settle mode")
	}
	if v.config.Intercept.Timeout <= 0 {
		v.addError("intercept.timeout must be positive")
	}
}

func (v *validator) validateLogging() {
	v.oneOf("logging.format", v.config.Logging.Format, logFormats)
}

func (v *validator) validateCredentials() {
	c := v.config.Credentials
	if c.Email == "" {
		v.addWarning("RTD_EMAIL is not set; scenarios that log in will fail")
	}
	if c.Password == "" {
		v.addWarning("RTD_PASSWORD is not set; scenarios that log in will fail")
	}
}

func (v *validator) oneOf(key, value string, allowed []string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.addError(fmt.Sprintf("%s %q must be one of %s", key, value, strings.Join(allowed, ", ")))
}

func (v *validator) addError(message string) {
	v.errors = append(v.errors, "   - "+message)
}

func (v *validator) addWarning(message string) {
	v.warnings = append(v.warnings, message)
}
