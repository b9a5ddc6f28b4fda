package config

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Pull.Workers != 5 {
		t.Errorf("Pull.Workers = %d, want 5", cfg.Pull.Workers)
	}
	if cfg.Pull.ResultTTL != time.Hour {
		t.Errorf("Pull.ResultTTL = %v, want 1h", cfg.Pull.ResultTTL)
	}
	if cfg.RateLimit.EventsPerWindow != 100 {
		t.Errorf("RateLimit.EventsPerWindow = %d, want 100", cfg.RateLimit.EventsPerWindow)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PULL_WORKERS", "12")
	t.Setenv("PULL_RETRY_BASE_DELAY", "250ms")
	t.Setenv("RATE_LIMIT_EVENTS_PER_WINDOW", "7")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Pull.Workers != 12 {
		t.Errorf("Pull.Workers = %d, want 12", cfg.Pull.Workers)
	}
	if cfg.Pull.RetryBaseDelay != 250*time.Millisecond {
		t.Errorf("Pull.RetryBaseDelay = %v, want 250ms", cfg.Pull.RetryBaseDelay)
	}
	if cfg.RateLimit.EventsPerWindow != 7 {
		t.Errorf("RateLimit.EventsPerWindow = %d, want 7", cfg.RateLimit.EventsPerWindow)
	}
}

func TestLoadConfig_InvalidIntFallsBack(t *testing.T) {
	t.Setenv("PULL_WORKERS", "not-a-number")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Pull.Workers != 5 {
		t.Errorf("Pull.Workers = %d, want default 5 on unparseable value", cfg.Pull.Workers)
	}
}

func TestLoadConfig_RejectsNonPositiveWorkers(t *testing.T) {
	t.Setenv("PULL_WORKERS", "0")

	if _, err := LoadConfig(); err == nil {
		t.Error("expected validation error for PULL_WORKERS=0")
	}
}

func TestPlatformConfig_CallbackURL(t *testing.T) {
	tests := []struct {
		appURL string
		want   string
	}{
		{"https://app.example.com", "https://app.example.com/webhooks"},
		{"https://app.example.com/", "https://app.example.com/webhooks"},
		{"https://app.example.com/pixel", "https://app.example.com/pixel/webhooks"},
	}

	for _, tt := range tests {
		c := &PlatformConfig{AppURL: tt.appURL}
		if got := c.CallbackURL(); got != tt.want {
			t.Errorf("CallbackURL(%q) = %q, want %q", tt.appURL, got, tt.want)
		}
	}
}
