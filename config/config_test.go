package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/vantage-solutions/ms-go-accounts/config"
)

func clearOptionalEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HTTP_HOST", "HTTP_PORT", "APP_BASE_URL",
		"SESSION_TOKEN_TTL", "REFRESH_TOKEN_TTL", "VERIFY_TOKEN_TTL", "RESET_TOKEN_TTL",
		"AUTH_RATE_LIMIT", "LOG_LEVEL", "LOG_FORMAT",
		"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_FROM",
		"PASSWORD_MIN_LENGTH", "PASSWORD_REQUIRE_UPPERCASE", "PASSWORD_REQUIRE_LOWERCASE",
		"PASSWORD_REQUIRE_NUMBER", "PASSWORD_REQUIRE_SPECIAL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/accounts")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected an error when JWT_SECRET is missing")
	}
}

func TestLoadRequiresMySQLDSN(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MYSQL_DSN", "")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected an error when MYSQL_DSN is missing")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearOptionalEnv(t)
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/accounts?parseTime=true")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.HTTPPort != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.HTTPPort)
	}
	if cfg.BaseURL != "http://localhost:8080" {
		t.Errorf("unexpected base url: %s", cfg.BaseURL)
	}
	if cfg.SessionTokenTTL != time.Hour {
		t.Errorf("expected session ttl 1h, got %v", cfg.SessionTokenTTL)
	}
	if cfg.RefreshTokenTTL != 7*24*time.Hour {
		t.Errorf("expected refresh ttl 7d, got %v", cfg.RefreshTokenTTL)
	}
	if cfg.VerifyTokenTTL != 24*time.Hour {
		t.Errorf("expected verify ttl 24h, got %v", cfg.VerifyTokenTTL)
	}
	if cfg.ResetTokenTTL != time.Hour {
		t.Errorf("expected reset ttl 1h, got %v", cfg.ResetTokenTTL)
	}
	if cfg.AuthRateLimit != 20 {
		t.Errorf("expected auth rate limit 20, got %d", cfg.AuthRateLimit)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Errorf("unexpected logging defaults: %s/%s", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.SMTP.Host != "" || cfg.SMTP.Port != 587 || cfg.SMTP.From != "no-reply@localhost" {
		t.Errorf("unexpected smtp defaults: %+v", cfg.SMTP)
	}
	if cfg.PasswordPolicy.MinLength != 8 {
		t.Errorf("expected min length 8, got %d", cfg.PasswordPolicy.MinLength)
	}
	if !cfg.PasswordPolicy.RequireUppercase || !cfg.PasswordPolicy.RequireLowercase || !cfg.PasswordPolicy.RequireNumber {
		t.Errorf("unexpected policy defaults: %+v", cfg.PasswordPolicy)
	}
	if cfg.PasswordPolicy.RequireSpecial {
		t.Error("special characters must not be required by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	clearOptionalEnv(t)
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/accounts")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("SESSION_TOKEN_TTL", "30")
	t.Setenv("AUTH_RATE_LIMIT", "5")
	t.Setenv("SMTP_HOST", "mail.example.com")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("PASSWORD_MIN_LENGTH", "12")
	t.Setenv("PASSWORD_REQUIRE_NUMBER", "false")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.HTTPPort != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.HTTPPort)
	}
	if cfg.SessionTokenTTL != 30*time.Minute {
		t.Errorf("expected session ttl 30m, got %v", cfg.SessionTokenTTL)
	}
	if cfg.AuthRateLimit != 5 {
		t.Errorf("expected auth rate limit 5, got %d", cfg.AuthRateLimit)
	}
	if cfg.SMTP.Host != "mail.example.com" || cfg.SMTP.Port != 2525 {
		t.Errorf("unexpected smtp config: %+v", cfg.SMTP)
	}
	if cfg.PasswordPolicy.MinLength != 12 || cfg.PasswordPolicy.RequireNumber {
		t.Errorf("unexpected policy: %+v", cfg.PasswordPolicy)
	}
}

func TestPasswordPolicyValidate(t *testing.T) {
	policy := config.PasswordPolicy{
		MinLength:        8,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireNumber:    true,
	}

	cases := []struct {
		name     string
		password string
		wantErr  string
	}{
		{"valid", "Secret123", ""},
		{"too short", "Ab1", "at least 8 characters"},
		{"missing uppercase", "secret123", "uppercase letter"},
		{"missing lowercase", "SECRET123", "lowercase letter"},
		{"missing number", "SecretWord", "number"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := policy.Validate(tc.password)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("expected %q to pass, got %v", tc.password, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestPasswordPolicyRequireSpecial(t *testing.T) {
	policy := config.PasswordPolicy{MinLength: 6, RequireSpecial: true}

	if err := policy.Validate("secret"); err == nil {
		t.Fatal("expected an error without a special character")
	}
	if err := policy.Validate("secret!"); err != nil {
		t.Fatalf("expected %q to pass, got %v", "secret!", err)
	}
}
