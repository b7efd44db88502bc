package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultAddr is the HTTP/WebSocket listen address of the simulation host.
	DefaultAddr = ":43180"
	// DefaultGRPCAddr is the listen address of the gRPC health endpoint.
	DefaultGRPCAddr = ":43181"
	// DefaultPingInterval controls the keepalive cadence for WebSocket connections.
	DefaultPingInterval = 30 * time.Second
	// DefaultMaxPayloadBytes limits inbound WebSocket frame size.
	DefaultMaxPayloadBytes int64 = 64 << 10
	// DefaultMaxClients bounds concurrent WebSocket viewers. Zero disables the limit.
	DefaultMaxClients = 64

	// DefaultTickRate is the fixed simulation frequency in Hz.
	DefaultTickRate = 60
	// DefaultRayStep is the march distance between raycast probes.
	DefaultRayStep = 5.0
	// DefaultRayMaxDistance bounds how far an aim ray travels.
	DefaultRayMaxDistance = 1000.0
	// DefaultBoost scales velocity after every portal transfer.
	DefaultBoost = 1.05
	// DefaultPlayerClearance is the exit offset applied to the player.
	DefaultPlayerClearance = 25.0
	// DefaultSentryCooldown is the minimum interval between two sentry transfers.
	DefaultSentryCooldown = time.Second
	// DefaultSentryDisorientation is how long a sentry wanders after a transfer.
	DefaultSentryDisorientation = 3 * time.Second

	// DefaultCommandRate is the sustained per-client command rate in commands per second.
	DefaultCommandRate = 30.0
	// DefaultCommandBurst is the per-client command burst allowance.
	DefaultCommandBurst = 10

	// DefaultStreamRate is how many frames per second gRPC spectators receive.
	DefaultStreamRate = 20
	// DefaultAdminResetsPerMinute throttles the admin reset endpoint.
	DefaultAdminResetsPerMinute = 6

	// DefaultReplayMaxBundles caps how many replay bundles are retained.
	DefaultReplayMaxBundles = 20
	// DefaultReplayMaxAge prunes bundles older than a week.
	DefaultReplayMaxAge = 7 * 24 * time.Hour

	// DefaultLogLevel controls verbosity for host logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "portalshift.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true
)

// Config captures all runtime tunables for the simulation host.
type Config struct {
	Address         string
	GRPCAddress     string
	AllowedOrigins  []string
	MaxPayloadBytes int64
	PingInterval    time.Duration
	MaxClients      int

	TickRate  int
	LevelPath string

	RayStep              float64
	RayMaxDistance       float64
	Boost                float64
	PlayerClearance      float64
	SentryCooldown       time.Duration
	SentryDisorientation time.Duration

	CommandRate  float64
	CommandBurst int

	WSAuthSecret         string
	GRPCSharedSecret     string
	StreamRate           int
	AdminToken           string
	AdminResetsPerMinute int

	ReplayDir        string
	ReplayMaxBundles int
	ReplayMaxAge     time.Duration

	Logging LoggingConfig
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// TickInterval converts the tick rate into the fixed step duration.
func (c *Config) TickInterval() time.Duration {
	if c == nil || c.TickRate <= 0 {
		return time.Second / DefaultTickRate
	}
	return time.Second / time.Duration(c.TickRate)
}

// Load reads the host configuration from environment variables, applying defaults
// and returning one error that lists every invalid override.
func Load() (*Config, error) {
	cfg := &Config{
		Address:              getString("PORTAL_ADDR", DefaultAddr),
		GRPCAddress:          DefaultGRPCAddr,
		AllowedOrigins:       parseList(os.Getenv("PORTAL_ALLOWED_ORIGINS")),
		MaxPayloadBytes:      DefaultMaxPayloadBytes,
		PingInterval:         DefaultPingInterval,
		MaxClients:           DefaultMaxClients,
		TickRate:             DefaultTickRate,
		LevelPath:            strings.TrimSpace(os.Getenv("PORTAL_LEVEL_PATH")),
		RayStep:              DefaultRayStep,
		RayMaxDistance:       DefaultRayMaxDistance,
		Boost:                DefaultBoost,
		PlayerClearance:      DefaultPlayerClearance,
		SentryCooldown:       DefaultSentryCooldown,
		SentryDisorientation: DefaultSentryDisorientation,
		CommandRate:          DefaultCommandRate,
		CommandBurst:         DefaultCommandBurst,
		WSAuthSecret:         strings.TrimSpace(os.Getenv("PORTAL_WS_SECRET")),
		GRPCSharedSecret:     strings.TrimSpace(os.Getenv("PORTAL_GRPC_SHARED_SECRET")),
		StreamRate:           DefaultStreamRate,
		AdminToken:           strings.TrimSpace(os.Getenv("PORTAL_ADMIN_TOKEN")),
		AdminResetsPerMinute: DefaultAdminResetsPerMinute,
		ReplayDir:            strings.TrimSpace(os.Getenv("PORTAL_REPLAY_DIR")),
		ReplayMaxBundles:     DefaultReplayMaxBundles,
		ReplayMaxAge:         DefaultReplayMaxAge,
		Logging: LoggingConfig{
			Level:      getString("PORTAL_LOG_LEVEL", DefaultLogLevel),
			Path:       getString("PORTAL_LOG_PATH", DefaultLogPath),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}

	//1.- An explicitly empty gRPC address switches the health listener off.
	if raw, ok := os.LookupEnv("PORTAL_GRPC_ADDR"); ok {
		cfg.GRPCAddress = strings.TrimSpace(raw)
	}

	var problems []string
	p := &parser{problems: &problems}

	//2.- Parse every override so a single run reports all mistakes at once.
	p.positiveInt64("PORTAL_MAX_PAYLOAD_BYTES", &cfg.MaxPayloadBytes)
	p.positiveDuration("PORTAL_PING_INTERVAL", &cfg.PingInterval)
	p.nonNegativeInt("PORTAL_MAX_CLIENTS", &cfg.MaxClients)
	p.positiveInt("PORTAL_TICK_HZ", &cfg.TickRate)
	p.positiveFloat("PORTAL_RAY_STEP", &cfg.RayStep)
	p.positiveFloat("PORTAL_RAY_MAX_DISTANCE", &cfg.RayMaxDistance)
	p.positiveFloat("PORTAL_BOOST", &cfg.Boost)
	p.nonNegativeFloat("PORTAL_PLAYER_CLEARANCE", &cfg.PlayerClearance)
	p.nonNegativeDuration("PORTAL_SENTRY_COOLDOWN", &cfg.SentryCooldown)
	p.nonNegativeDuration("PORTAL_SENTRY_DISORIENTATION", &cfg.SentryDisorientation)
	p.positiveFloat("PORTAL_COMMAND_RATE", &cfg.CommandRate)
	p.positiveInt("PORTAL_COMMAND_BURST", &cfg.CommandBurst)
	p.positiveInt("PORTAL_STREAM_HZ", &cfg.StreamRate)
	p.nonNegativeInt("PORTAL_ADMIN_RESETS_PER_MINUTE", &cfg.AdminResetsPerMinute)
	p.nonNegativeInt("PORTAL_REPLAY_MAX_BUNDLES", &cfg.ReplayMaxBundles)
	p.nonNegativeDuration("PORTAL_REPLAY_MAX_AGE", &cfg.ReplayMaxAge)
	p.positiveInt("PORTAL_LOG_MAX_SIZE_MB", &cfg.Logging.MaxSizeMB)
	p.nonNegativeInt("PORTAL_LOG_MAX_BACKUPS", &cfg.Logging.MaxBackups)
	p.nonNegativeInt("PORTAL_LOG_MAX_AGE_DAYS", &cfg.Logging.MaxAgeDays)
	p.boolean("PORTAL_LOG_COMPRESS", &cfg.Logging.Compress)

	//3.- Cross-field checks run after individual values are known.
	if cfg.RayStep > cfg.RayMaxDistance {
		problems = append(problems, fmt.Sprintf("PORTAL_RAY_STEP (%g) must not exceed PORTAL_RAY_MAX_DISTANCE (%g)", cfg.RayStep, cfg.RayMaxDistance))
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%s", strings.Join(problems, "; "))
	}

	return cfg, nil
}

// parser collects validation problems while reading optional overrides.
type parser struct {
	problems *[]string
}

func (p *parser) fail(key, want, raw string) {
	*p.problems = append(*p.problems, fmt.Sprintf("%s must be %s, got %q", key, want, raw))
}

func (p *parser) positiveInt(key string, dst *int) {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			p.fail(key, "a positive integer", raw)
			return
		}
		*dst = value
	}
}

func (p *parser) nonNegativeInt(key string, dst *int) {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			p.fail(key, "a non-negative integer", raw)
			return
		}
		*dst = value
	}
}

func (p *parser) positiveInt64(key string, dst *int64) {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value <= 0 {
			p.fail(key, "a positive integer", raw)
			return
		}
		*dst = value
	}
}

func (p *parser) positiveFloat(key string, dst *float64) {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value <= 0 {
			p.fail(key, "a positive number", raw)
			return
		}
		*dst = value
	}
}

func (p *parser) nonNegativeFloat(key string, dst *float64) {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value < 0 {
			p.fail(key, "a non-negative number", raw)
			return
		}
		*dst = value
	}
}

func (p *parser) positiveDuration(key string, dst *time.Duration) {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		value, err := time.ParseDuration(raw)
		if err != nil || value <= 0 {
			p.fail(key, "a positive duration", raw)
			return
		}
		*dst = value
	}
}

func (p *parser) nonNegativeDuration(key string, dst *time.Duration) {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		value, err := time.ParseDuration(raw)
		if err != nil || value < 0 {
			p.fail(key, "a non-negative duration", raw)
			return
		}
		*dst = value
	}
}

func (p *parser) boolean(key string, dst *bool) {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			p.fail(key, "a boolean value", raw)
			return
		}
		*dst = value
	}
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			values = append(values, item)
		}
	}
	return values
}
