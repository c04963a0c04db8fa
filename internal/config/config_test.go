package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, entry := range os.Environ() {
		key, _, _ := strings.Cut(entry, "=")
		if strings.HasPrefix(key, "ARBITER_") {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.HTTPAddress != DefaultHTTPAddr || cfg.GRPCAddress != DefaultGRPCAddr {
		t.Fatalf("unexpected default addresses: http=%q grpc=%q", cfg.HTTPAddress, cfg.GRPCAddress)
	}
	if cfg.AllowedOrigins != nil {
		t.Fatalf("expected no allowed origins, got %#v", cfg.AllowedOrigins)
	}
	if cfg.MaxPayloadBytes != DefaultMaxPayloadBytes {
		t.Fatalf("expected default max payload %d, got %d", DefaultMaxPayloadBytes, cfg.MaxPayloadBytes)
	}
	if cfg.PingInterval != DefaultPingInterval {
		t.Fatalf("expected default ping interval %v, got %v", DefaultPingInterval, cfg.PingInterval)
	}
	if cfg.RateLimitWindow != DefaultRateLimitWindow || cfg.RateLimitBurst != DefaultRateLimitBurst {
		t.Fatalf("unexpected rate limit defaults: %v/%d", cfg.RateLimitWindow, cfg.RateLimitBurst)
	}
	if cfg.Policy != DefaultPolicy || cfg.AttackPriority != "taunt" {
		t.Fatalf("unexpected combat defaults: policy=%q priority=%q", cfg.Policy, cfg.AttackPriority)
	}
	if cfg.MaxAttacksPerUnit != DefaultMaxAttacksPerUnit || cfg.MaxTotalAttacks != DefaultMaxTotalAttacks {
		t.Fatalf("unexpected ceilings: %d/%d", cfg.MaxAttacksPerUnit, cfg.MaxTotalAttacks)
	}
	if cfg.Workers != DefaultWorkers || cfg.BatchLimit != DefaultBatchLimit {
		t.Fatalf("unexpected pool defaults: workers=%d batch=%d", cfg.Workers, cfg.BatchLimit)
	}
	if cfg.ReplayDir != "" || cfg.ReplayMaxBundles != DefaultReplayMaxBundles || cfg.ReplayMaxAge != DefaultReplayMaxAge {
		t.Fatalf("unexpected replay defaults: %+v", cfg)
	}
	if cfg.ReplayCleanInterval != DefaultReplayCleanInterval {
		t.Fatalf("unexpected clean interval %v", cfg.ReplayCleanInterval)
	}
	if cfg.StorePath != "" || cfg.AuthSecret != "" || cfg.GRPCSharedSecret != "" {
		t.Fatalf("optional features should default off")
	}

	logging := cfg.Logging
	if logging.Level != DefaultLogLevel || logging.Path != "" {
		t.Fatalf("unexpected logging defaults: %+v", logging)
	}
	if logging.MaxSizeMB != DefaultLogMaxSizeMB || logging.MaxBackups != DefaultLogMaxBackups || logging.MaxAgeDays != DefaultLogMaxAgeDays || !logging.Compress {
		t.Fatalf("unexpected rotation defaults: %+v", logging)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ARBITER_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("ARBITER_ALLOWED_ORIGINS", "https://example.com, https://demo.local")
	t.Setenv("ARBITER_MAX_PAYLOAD_BYTES", "2048")
	t.Setenv("ARBITER_PING_INTERVAL", "45s")
	t.Setenv("ARBITER_TLS_CERT", "/tmp/cert.pem")
	t.Setenv("ARBITER_TLS_KEY", "/tmp/key.pem")
	t.Setenv("ARBITER_POLICY", "Sanitize")
	t.Setenv("ARBITER_ATTACK_PRIORITY", "first")
	t.Setenv("ARBITER_WORKERS", "12")
	t.Setenv("ARBITER_REPLAY_DIR", "/var/lib/arbiter/replays")
	t.Setenv("ARBITER_REPLAY_MAX_AGE", "24h")
	t.Setenv("ARBITER_LOG_LEVEL", "debug")
	t.Setenv("ARBITER_LOG_PATH", "/var/log/arbiter.log")
	t.Setenv("ARBITER_LOG_COMPRESS", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.HTTPAddress != "127.0.0.1:9000" {
		t.Fatalf("unexpected address: %q", cfg.HTTPAddress)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "https://example.com" || cfg.AllowedOrigins[1] != "https://demo.local" {
		t.Fatalf("unexpected allowed origins: %#v", cfg.AllowedOrigins)
	}
	if cfg.MaxPayloadBytes != 2048 || cfg.PingInterval != 45*time.Second {
		t.Fatalf("unexpected transport overrides: %d %v", cfg.MaxPayloadBytes, cfg.PingInterval)
	}
	if cfg.Policy != "sanitize" || cfg.AttackPriority != "first" || cfg.Workers != 12 {
		t.Fatalf("unexpected combat overrides: %+v", cfg)
	}
	if cfg.ReplayDir != "/var/lib/arbiter/replays" || cfg.ReplayMaxAge != 24*time.Hour {
		t.Fatalf("unexpected replay overrides: %q %v", cfg.ReplayDir, cfg.ReplayMaxAge)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Path != "/var/log/arbiter.log" || cfg.Logging.Compress {
		t.Fatalf("unexpected logging overrides: %+v", cfg.Logging)
	}
}

func TestLoadAggregatesProblems(t *testing.T) {
	clearEnv(t)
	t.Setenv("ARBITER_TLS_CERT", "/tmp/cert.pem")
	t.Setenv("ARBITER_POLICY", "ignore")
	t.Setenv("ARBITER_WORKERS", "0")
	t.Setenv("ARBITER_LOG_MAX_SIZE_MB", "0")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error for invalid overrides")
	}
	for _, fragment := range []string{"ARBITER_TLS_CERT", "ARBITER_POLICY", "ARBITER_WORKERS", "ARBITER_LOG_MAX_SIZE_MB"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %s in error, got %v", fragment, err)
		}
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("ARBITER_PING_INTERVAL", "soon")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "parse env") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestValidateRejectsUnknownPriority(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	cfg.AttackPriority = "weakest"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "ARBITER_ATTACK_PRIORITY") {
		t.Fatalf("expected priority error, got %v", err)
	}
}

func TestLoadRequiresCertificateForClientCA(t *testing.T) {
	clearEnv(t)
	t.Setenv("ARBITER_GRPC_CLIENT_CA", "/tmp/ca.pem")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "ARBITER_GRPC_CLIENT_CA") {
		t.Fatalf("expected client CA error, got %v", err)
	}
}
