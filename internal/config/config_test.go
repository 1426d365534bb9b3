package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Port:      "8082",
		DBPath:    t.TempDir() + "/grocery.db",
		CacheSize: 100,
		CacheTTL:  5 * time.Minute,
		RateLimit: 60,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errorString string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:        "invalid port - non-numeric",
			mutate:      func(c *Config) { c.Port = "abc" },
			wantErr:     true,
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range",
			mutate:      func(c *Config) { c.Port = "70000" },
			wantErr:     true,
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "empty db path",
			mutate:      func(c *Config) { c.DBPath = "" },
			wantErr:     true,
			errorString: "database path cannot be empty",
		},
		{
			name:        "zero cache size",
			mutate:      func(c *Config) { c.CacheSize = 0 },
			wantErr:     true,
			errorString: "invalid cache size",
		},
		{
			name:        "cache ttl too small",
			mutate:      func(c *Config) { c.CacheTTL = 100 * time.Millisecond },
			wantErr:     true,
			errorString: "invalid cache TTL",
		},
		{
			name:        "rate limit zero",
			mutate:      func(c *Config) { c.RateLimit = 0 },
			wantErr:     true,
			errorString: "invalid rate limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				if !strings.Contains(err.Error(), tt.errorString) {
					t.Fatalf("error %q does not contain %q", err, tt.errorString)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	// Blank values fall through to defaults; this also isolates the test
	// from the ambient environment.
	for _, key := range []string{"PORT", "GROCERY_DB_PATH", "GROCERY_CACHE_SIZE", "GROCERY_CACHE_TTL", "GROCERY_RATE_LIMIT"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8082" {
		t.Fatalf("default port = %q", cfg.Port)
	}
	if cfg.DBPath != "./data/grocery.db" {
		t.Fatalf("default db path = %q", cfg.DBPath)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Fatalf("default cache ttl = %v", cfg.CacheTTL)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("GROCERY_DB_PATH", "/tmp/x.db")
	t.Setenv("GROCERY_CACHE_TTL", "30s")
	t.Setenv("GROCERY_RATE_LIMIT", "10")

	cfg := Load()
	if cfg.Port != "9000" || cfg.DBPath != "/tmp/x.db" {
		t.Fatalf("env not honored: %+v", cfg)
	}
	if cfg.CacheTTL != 30*time.Second || cfg.RateLimit != 10 {
		t.Fatalf("env not honored: %+v", cfg)
	}
}
