package config

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Reachable probes baseURL with a TCP dial and then a GET of each path until one
// answers. Any HTTP status counts as an answer.
func Reachable(ctx context.Context, baseURL string, timeout time.Duration, paths ...string) bool {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Host
	if u.Port() == "" {
		if u.Scheme == "https" {
			host = net.JoinHostPort(u.Hostname(), "443")
		} else {
			host = net.JoinHostPort(u.Hostname(), "80")
		}
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return false
	}
	_ = conn.Close()

	if len(paths) == 0 {
		paths = []string{"/"}
	}
	client := &http.Client{Timeout: timeout}
	for _, path := range paths {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.Scheme+"://"+u.Host+path, nil)
		if err != nil {
			continue
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			return true
		}
	}
	return false
}
