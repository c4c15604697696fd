package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	for _, key := range []string{"PORT", "SERVER_PORT", "BANK_API_BASE_URL", "API_BASE_URL", "SESSION_IDLE_TIMEOUT", "SHOW_DEMO_OTP", "RETRY_MAX_ATTEMPTS", "CORS_ALLOWED_ORIGINS"} {
		unsetEnvWithCleanup(t, key)
	}

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.BankAPIBaseURL != "http://localhost:8080/OnlineBank/api" {
		t.Fatalf("unexpected default base url %q", cfg.BankAPIBaseURL)
	}
	if cfg.SessionIdleTimeout != 30*time.Minute {
		t.Fatalf("expected 30m idle timeout, got %s", cfg.SessionIdleTimeout)
	}
	if cfg.SessionGracePeriod != 3*time.Second {
		t.Fatalf("expected 3s grace period, got %s", cfg.SessionGracePeriod)
	}
	if !cfg.ShowDemoOTP {
		t.Fatalf("expected demo otp display on by default")
	}
	if cfg.RetryMaxAttempts != 3 || cfg.RetryInitialDelay != time.Second {
		t.Fatalf("unexpected retry defaults: %d %s", cfg.RetryMaxAttempts, cfg.RetryInitialDelay)
	}
	if cfg.RememberMeTTL() != 7*24*time.Hour {
		t.Fatalf("expected 7 day remember ttl, got %s", cfg.RememberMeTTL())
	}
	if cfg.SessionSecret == "" {
		t.Fatalf("expected development session secret fallback")
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "PORT")
	setEnvWithCleanup(t, "BANK_API_BASE_URL", " https://bank.example.com/api/ ")
	setEnvWithCleanup(t, "SESSION_IDLE_TIMEOUT", "5m")
	setEnvWithCleanup(t, "SHOW_DEMO_OTP", "false")
	setEnvWithCleanup(t, "CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.BankAPIBaseURL != "https://bank.example.com/api" {
		t.Fatalf("expected trimmed base url, got %q", cfg.BankAPIBaseURL)
	}
	if cfg.SessionIdleTimeout != 5*time.Minute {
		t.Fatalf("expected 5m idle timeout, got %s", cfg.SessionIdleTimeout)
	}
	if cfg.ShowDemoOTP {
		t.Fatalf("expected demo otp display to be disabled")
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfig_ReadsDotEnvFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "PORT")
	unsetEnvWithCleanup(t, "SERVER_PORT")
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SERVER_PORT=9191\n"), 0o600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9191" {
		t.Fatalf("expected port from .env, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_PortAliasWins(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "8090")
	setEnvWithCleanup(t, "PORT", "10000")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "10000" {
		t.Fatalf("expected PORT to override SERVER_PORT, got %q", cfg.ServerPort)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
		}
	})
}
