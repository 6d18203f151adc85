package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func noEnvFile() LoadOption { return WithEnvFile("") }

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(noEnvFile())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Address != ":8080" || cfg.Listener.BodyLimit != 64<<10 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if !cfg.Recorder.Enabled || cfg.Recorder.TTL != 15*time.Minute {
		t.Fatalf("unexpected recorder defaults %+v", cfg.Recorder)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rawr.yml")
	yaml := "server:\n  address: \":7000\"\nlistener:\n  body_limit: 128\n  trusted_proxies: [\"10.0.0.0/8\"]\nredis:\n  address: \"localhost:6379\"\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RAWR_SERVER_ADDRESS", ":7001")
	t.Setenv("RAWR_RECORDER_TTL", "2m")

	cfg, err := Load(WithConfigFile(path), noEnvFile())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Address != ":7001" {
		t.Fatalf("env must override file, got %q", cfg.Server.Address)
	}
	if cfg.Listener.BodyLimit != 128 || cfg.Redis.Address != "localhost:6379" {
		t.Fatalf("file values not applied %+v", cfg)
	}
	if len(cfg.Listener.TrustedProxies) != 1 || cfg.Listener.TrustedProxies[0] != "10.0.0.0/8" {
		t.Fatalf("trusted proxies %v", cfg.Listener.TrustedProxies)
	}
	if cfg.Recorder.TTL != 2*time.Minute {
		t.Fatalf("ttl %v", cfg.Recorder.TTL)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("RAWR_LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// Registers cleanup so the variable set by godotenv does not leak.
	t.Setenv("RAWR_LOG_LEVEL", "")
	os.Unsetenv("RAWR_LOG_LEVEL")

	cfg, err := Load(WithEnvFile(path))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level %q", cfg.Log.Level)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	if _, err := Load(WithConfigFile(filepath.Join(t.TempDir(), "nope.yml")), noEnvFile()); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("RAWR_LOG_LEVEL", "loud")
	if _, err := Load(noEnvFile()); err == nil || !strings.Contains(err.Error(), "log.level") {
		t.Fatalf("expected log.level error, got %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), `"message":"shown"`) {
		t.Fatalf("unexpected output %s", buf.String())
	}
}
