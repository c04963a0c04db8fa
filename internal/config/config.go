package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"autobattler/arbiter/internal/board"
)

const (
	// DefaultHTTPAddr is the default TCP address of the HTTP surface.
	DefaultHTTPAddr = ":43127"
	// DefaultGRPCAddr is the default TCP address of the gRPC surface.
	DefaultGRPCAddr = ":43128"
	// DefaultMaxPayloadBytes limits inbound request bodies and WebSocket frames.
	DefaultMaxPayloadBytes int64 = 1 << 20
	// DefaultPingInterval controls the keepalive cadence for streaming WebSocket connections.
	DefaultPingInterval = 30 * time.Second

	// DefaultRateLimitWindow and DefaultRateLimitBurst bound simulate calls per client.
	DefaultRateLimitWindow = time.Second
	DefaultRateLimitBurst  = 50

	// DefaultPolicy rejects invalid combat input instead of repairing it.
	DefaultPolicy = "reject"
	// DefaultMaxAttacksPerUnit and DefaultMaxTotalAttacks cap one simulation.
	DefaultMaxAttacksPerUnit = 100
	DefaultMaxTotalAttacks   = 1600
	// DefaultWorkers sizes the batch simulation pool.
	DefaultWorkers = 4
	// DefaultBatchLimit caps how many inputs one batch request may carry.
	DefaultBatchLimit = 256

	// DefaultReplayMaxBundles and DefaultReplayMaxAge drive bundle retention.
	DefaultReplayMaxBundles = 1000
	DefaultReplayMaxAge     = 7 * 24 * time.Hour
	// DefaultReplayCleanInterval spaces retention sweeps.
	DefaultReplayCleanInterval = 10 * time.Minute

	// DefaultLogLevel controls verbosity for arbiter logs.
	DefaultLogLevel = "info"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
)

// Config captures all runtime tunables for the arbiter service.
type Config struct {
	HTTPAddress     string        `env:"ARBITER_HTTP_ADDR" envDefault:":43127"`
	GRPCAddress     string        `env:"ARBITER_GRPC_ADDR" envDefault:":43128"`
	AllowedOrigins  []string      `env:"ARBITER_ALLOWED_ORIGINS" envSeparator:","`
	MaxPayloadBytes int64         `env:"ARBITER_MAX_PAYLOAD_BYTES" envDefault:"1048576"`
	PingInterval    time.Duration `env:"ARBITER_PING_INTERVAL" envDefault:"30s"`
	TLSCertPath     string        `env:"ARBITER_TLS_CERT"`
	TLSKeyPath      string        `env:"ARBITER_TLS_KEY"`
	// GRPCClientCAPath switches the gRPC listener to mutual TLS using the shared certificate.
	GRPCClientCAPath string `env:"ARBITER_GRPC_CLIENT_CA"`

	// AuthSecret enables HMAC bearer tokens on the HTTP surface when set.
	AuthSecret string `env:"ARBITER_AUTH_SECRET"`
	// GRPCSharedSecret enables the shared-secret interceptors when set.
	GRPCSharedSecret string        `env:"ARBITER_GRPC_SHARED_SECRET"`
	RateLimitWindow  time.Duration `env:"ARBITER_RATE_LIMIT_WINDOW" envDefault:"1s"`
	RateLimitBurst   int           `env:"ARBITER_RATE_LIMIT_BURST" envDefault:"50"`

	Policy            string `env:"ARBITER_POLICY" envDefault:"reject"`
	AttackPriority    string `env:"ARBITER_ATTACK_PRIORITY" envDefault:"taunt"`
	MaxAttacksPerUnit int    `env:"ARBITER_MAX_ATTACKS_PER_UNIT" envDefault:"100"`
	MaxTotalAttacks   int    `env:"ARBITER_MAX_TOTAL_ATTACKS" envDefault:"1600"`
	Workers           int    `env:"ARBITER_WORKERS" envDefault:"4"`
	BatchLimit        int    `env:"ARBITER_BATCH_LIMIT" envDefault:"256"`

	// ReplayDir enables bundle persistence when set.
	ReplayDir           string        `env:"ARBITER_REPLAY_DIR"`
	ReplayMaxBundles    int           `env:"ARBITER_REPLAY_MAX_BUNDLES" envDefault:"1000"`
	ReplayMaxAge        time.Duration `env:"ARBITER_REPLAY_MAX_AGE" envDefault:"168h"`
	ReplayCleanInterval time.Duration `env:"ARBITER_REPLAY_CLEAN_INTERVAL" envDefault:"10m"`

	// StorePath enables the SQLite commitment store when set.
	StorePath  string `env:"ARBITER_SQLITE_PATH"`
	RosterPath string `env:"ARBITER_ROSTER_PATH"`

	Logging LoggingConfig `envPrefix:"ARBITER_LOG_"`
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level string `env:"LEVEL" envDefault:"info"`
	// Path enables the rotating file writer; stdout is always mirrored.
	Path       string `env:"PATH"`
	MaxSizeMB  int    `env:"MAX_SIZE_MB" envDefault:"100"`
	MaxBackups int    `env:"MAX_BACKUPS" envDefault:"10"`
	MaxAgeDays int    `env:"MAX_AGE_DAYS" envDefault:"7"`
	Compress   bool   `env:"COMPRESS" envDefault:"true"`
}

// Load reads the arbiter configuration from environment variables, applying defaults
// and returning one descriptive error that lists every invalid override.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	var problems []string

	c.HTTPAddress = strings.TrimSpace(c.HTTPAddress)
	c.GRPCAddress = strings.TrimSpace(c.GRPCAddress)
	c.AllowedOrigins = trimList(c.AllowedOrigins)
	if c.HTTPAddress == "" && c.GRPCAddress == "" {
		problems = append(problems, "ARBITER_HTTP_ADDR and ARBITER_GRPC_ADDR cannot both be empty")
	}
	if c.MaxPayloadBytes <= 0 {
		problems = append(problems, fmt.Sprintf("ARBITER_MAX_PAYLOAD_BYTES must be a positive integer, got %d", c.MaxPayloadBytes))
	}
	if c.PingInterval <= 0 {
		problems = append(problems, fmt.Sprintf("ARBITER_PING_INTERVAL must be a positive duration, got %s", c.PingInterval))
	}
	if (strings.TrimSpace(c.TLSCertPath) == "") != (strings.TrimSpace(c.TLSKeyPath) == "") {
		problems = append(problems, "ARBITER_TLS_CERT and ARBITER_TLS_KEY must be provided together")
	}
	if strings.TrimSpace(c.GRPCClientCAPath) != "" && strings.TrimSpace(c.TLSCertPath) == "" {
		problems = append(problems, "ARBITER_GRPC_CLIENT_CA requires ARBITER_TLS_CERT and ARBITER_TLS_KEY")
	}
	if c.RateLimitWindow <= 0 {
		problems = append(problems, fmt.Sprintf("ARBITER_RATE_LIMIT_WINDOW must be a positive duration, got %s", c.RateLimitWindow))
	}
	if c.RateLimitBurst <= 0 {
		problems = append(problems, fmt.Sprintf("ARBITER_RATE_LIMIT_BURST must be a positive integer, got %d", c.RateLimitBurst))
	}

	c.Policy = strings.ToLower(strings.TrimSpace(c.Policy))
	if c.Policy != "reject" && c.Policy != "sanitize" {
		problems = append(problems, fmt.Sprintf("ARBITER_POLICY must be reject or sanitize, got %q", c.Policy))
	}
	c.AttackPriority = strings.ToLower(strings.TrimSpace(c.AttackPriority))
	if !board.Priority(c.AttackPriority).Valid() {
		problems = append(problems, fmt.Sprintf("ARBITER_ATTACK_PRIORITY is not a known priority, got %q", c.AttackPriority))
	}
	if c.MaxAttacksPerUnit <= 0 {
		problems = append(problems, fmt.Sprintf("ARBITER_MAX_ATTACKS_PER_UNIT must be a positive integer, got %d", c.MaxAttacksPerUnit))
	}
	if c.MaxTotalAttacks <= 0 {
		problems = append(problems, fmt.Sprintf("ARBITER_MAX_TOTAL_ATTACKS must be a positive integer, got %d", c.MaxTotalAttacks))
	}
	if c.Workers <= 0 {
		problems = append(problems, fmt.Sprintf("ARBITER_WORKERS must be a positive integer, got %d", c.Workers))
	}
	if c.BatchLimit <= 0 {
		problems = append(problems, fmt.Sprintf("ARBITER_BATCH_LIMIT must be a positive integer, got %d", c.BatchLimit))
	}

	if c.ReplayMaxBundles < 0 {
		problems = append(problems, fmt.Sprintf("ARBITER_REPLAY_MAX_BUNDLES must be non-negative, got %d", c.ReplayMaxBundles))
	}
	if c.ReplayMaxAge < 0 {
		problems = append(problems, fmt.Sprintf("ARBITER_REPLAY_MAX_AGE must be non-negative, got %s", c.ReplayMaxAge))
	}
	if c.ReplayDir != "" && c.ReplayCleanInterval <= 0 {
		problems = append(problems, fmt.Sprintf("ARBITER_REPLAY_CLEAN_INTERVAL must be a positive duration, got %s", c.ReplayCleanInterval))
	}

	if c.Logging.MaxSizeMB <= 0 {
		problems = append(problems, fmt.Sprintf("ARBITER_LOG_MAX_SIZE_MB must be a positive integer, got %d", c.Logging.MaxSizeMB))
	}
	if c.Logging.MaxBackups < 0 {
		problems = append(problems, fmt.Sprintf("ARBITER_LOG_MAX_BACKUPS must be a non-negative integer, got %d", c.Logging.MaxBackups))
	}
	if c.Logging.MaxAgeDays < 0 {
		problems = append(problems, fmt.Sprintf("ARBITER_LOG_MAX_AGE_DAYS must be a non-negative integer, got %d", c.Logging.MaxAgeDays))
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func trimList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	cleaned := make([]string, 0, len(values))
	for _, value := range values {
		if item := strings.TrimSpace(value); item != "" {
			cleaned = append(cleaned, item)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}
	return cleaned
}
