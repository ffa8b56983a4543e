package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"CONFIG_FILE", "DB_PATH", "DB_RESET_ON_START", "HTTP_ADDRESS", "GRPC_ADDRESS", "LOG_LEVEL", "LOG_FORMAT",
	"SECRET_DEFAULT_EXPIRY_DAYS", "BCRYPT_COST", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"AUTH_MAX_FAILURES", "AUTH_FAILURE_WINDOW",
}

// clearEnv unsets every key Load reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Defaults()
	if *cfg != *want {
		t.Fatalf("defaults mismatch:\n got %+v\nwant %+v", cfg, want)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_PATH", "test.db")
	t.Setenv("DB_RESET_ON_START", "true")
	t.Setenv("GRPC_ADDRESS", ":1234")
	t.Setenv("SECRET_DEFAULT_EXPIRY_DAYS", "30")
	t.Setenv("AUTH_FAILURE_WINDOW", "2m")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "test.db" || !cfg.Database.ResetOnStart || cfg.GRPC.Address != ":1234" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.Secrets.DefaultExpiryDays != 30 || cfg.Auth.FailureWindow != 2*time.Minute {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DB != 2 {
		t.Fatalf("redis env not applied: %+v", cfg.Redis)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"SECRET_DEFAULT_EXPIRY_DAYS": "abc",
		"DB_RESET_ON_START":          "maybe",
		"AUTH_FAILURE_WINDOW":        "soon",
		"BCRYPT_COST":                "2",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", key, val)
			}
		})
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
database:
  path: from-file.db
http:
  address: ":9090"
auth:
  max_failures: 3
  failure_window: 1m
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HTTP_ADDRESS", ":7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "from-file.db" {
		t.Fatalf("file value not applied: %s", cfg.Database.Path)
	}
	if cfg.HTTP.Address != ":7070" {
		t.Fatalf("env should override file: %s", cfg.HTTP.Address)
	}
	if cfg.Auth.MaxFailures != 3 || cfg.Auth.FailureWindow != time.Minute {
		t.Fatalf("auth from file: %+v", cfg.Auth)
	}
	if cfg.GRPC.Address != ":50051" {
		t.Fatalf("unset keys keep defaults: %s", cfg.GRPC.Address)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestString_MasksRedisPassword(t *testing.T) {
	cfg := Defaults()
	cfg.Redis = RedisConfig{Addr: "cache:6379", Password: "hunter2"}
	s := cfg.String()
	if strings.Contains(s, "hunter2") {
		t.Fatalf("password leaked: %s", s)
	}
	if !strings.Contains(s, "cache:6379") {
		t.Fatalf("addr missing: %s", s)
	}
}
