package config

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dispatchlab/rtdcheck/internal/config"
)

// TestConfig holds all configuration for E2E tests
type TestConfig struct {
	*config.Config
	Timeout   time.Duration
	Reachable bool
	// LoadErr is set when the rtdcheck configuration itself failed to load
	LoadErr error
}

var (
	loadOnce sync.Once
	loaded   *TestConfig
)

// GetConfig resolves the rtdcheck configuration the live tests run against.
// RTDCHECK_CONFIG names an optional YAML file; the repository .env is read as
// well since `go test` runs from the package directory.
func GetConfig() *TestConfig {
	loadOnce.Do(func() { loaded = load() })
	return loaded
}

func load() *TestConfig {
	for _, p := range []string{".env", filepath.Join("..", "..", ".env")} {
		if err := config.LoadDotEnv(p); err != nil {
			log.Printf("[e2e-config] Ignoring %s: %v", p, err)
		}
	}

	cfg, err := config.Load(os.Getenv("RTDCHECK_CONFIG"))
	if err != nil {
		log.Printf("[e2e-config] Failed to load configuration: %v", err)
		return &TestConfig{LoadErr: err}
	}
	if os.Getenv("HEADLESS") == "false" {
		cfg.Browser.Headless = false
	}
	if os.Getenv("VIDEOS") == "true" {
		cfg.Artifacts.Videos = true
	}
	cfg.Artifacts.Dir = filepath.Join(cfg.Artifacts.Dir, "e2e")

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ok := config.Reachable(ctx, cfg.Target.BaseURL, 2*time.Second, cfg.Target.LoginPath, "/")
	log.Printf("[e2e-config] Resolved BaseURL=%s reachable=%t (%.0fms) credentials=%t",
		cfg.Target.BaseURL, ok, time.Since(start).Seconds()*1000, cfg.Credentials.Email != "")

	return &TestConfig{Config: cfg, Timeout: 5 * time.Minute, Reachable: ok}
}
