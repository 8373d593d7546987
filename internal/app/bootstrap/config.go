package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	hasherArgon2ID = "argon2id"
	hasherBcrypt   = "bcrypt"
)

// Config is the resolved runtime configuration: defaults, then the YAML file, then env.
type Config struct {
	ServiceID string
	LogLevel  slog.Level

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string
	MaxDBConns  int32

	KafkaBrokers      []string
	NotificationTopic string
	// NotificationTopics overrides the topic per notification kind.
	NotificationTopics map[string]string

	SessionTTL              time.Duration
	VerificationCooldown    time.Duration
	VerificationCodeTTL     time.Duration
	VerificationMaxAttempts int
	VerificationCodeDigits  int
	ResetLinkTTL            time.Duration
	FailedLoginThreshold    int
	LockoutDuration         time.Duration

	PasswordHasher    string
	BcryptCost        int
	Argon2Memory      uint32
	Argon2Time        uint32
	Argon2Parallelism uint8

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int

	ConnectAttempts uint64
	MigrateOnStart  bool
}

// configFile mirrors configs/default.yaml.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
	} `yaml:"dependencies"`
	Lifecycle struct {
		SessionTTL              string `yaml:"session_ttl"`
		VerificationCooldown    string `yaml:"verification_cooldown"`
		VerificationCodeTTL     string `yaml:"verification_code_ttl"`
		VerificationMaxAttempts int    `yaml:"verification_max_attempts"`
		ResetLinkTTL            string `yaml:"reset_link_ttl"`
		FailedLoginThreshold    *int   `yaml:"failed_login_threshold"`
		LockoutDuration         string `yaml:"lockout_duration"`
	} `yaml:"lifecycle"`
	Security struct {
		PasswordHasher string `yaml:"password_hasher"`
		BcryptCost     int    `yaml:"bcrypt_cost"`
	} `yaml:"security"`
	Notifications struct {
		Topic  string            `yaml:"topic"`
		Topics map[string]string `yaml:"topics"`
	} `yaml:"notifications"`
}

// ErrInvalidConfig marks configuration that cannot be loaded or fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}

func loadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:               "M04-Credential-Lifecycle-Service",
		LogLevel:                slog.LevelInfo,
		HTTPPort:                8080,
		GRPCPort:                9090,
		MaxDBConns:              20,
		NotificationTopic:       "credential.notifications",
		SessionTTL:              31 * 24 * time.Hour,
		VerificationCooldown:    time.Minute,
		VerificationCodeTTL:     3 * time.Minute,
		VerificationMaxAttempts: 5,
		VerificationCodeDigits:  6,
		ResetLinkTTL:            3 * time.Minute,
		FailedLoginThreshold:    5,
		LockoutDuration:         30 * time.Minute,
		PasswordHasher:          hasherArgon2ID,
		BcryptCost:              12,
		Argon2Memory:            64 * 1024,
		Argon2Time:              1,
		Argon2Parallelism:       2,
		OutboxPollInterval:      2 * time.Second,
		OutboxBatchSize:         100,
		OutboxClaimTTL:          30 * time.Second,
		OutboxMaxRetries:        5,
		ConnectAttempts:         5,
		MigrateOnStart:          true,
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := applyFile(&cfg, raw); err != nil {
				return Config{}, err
			}
		case !os.IsNotExist(err):
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg.ServiceID = envOrDefault("SERVICE_ID", cfg.ServiceID)
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.NotificationTopic = envOrDefault("NOTIFICATION_TOPIC", cfg.NotificationTopic)
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		level, err := parseLevel(raw)
		if err != nil {
			return Config{}, err
		}
		cfg.LogLevel = level
	}

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))

	cfg.SessionTTL = envDuration("SESSION_TTL", cfg.SessionTTL)
	cfg.VerificationCooldown = envDuration("VERIFICATION_COOLDOWN", cfg.VerificationCooldown)
	cfg.VerificationCodeTTL = envDuration("VERIFICATION_CODE_TTL", cfg.VerificationCodeTTL)
	cfg.VerificationMaxAttempts = envInt("VERIFICATION_MAX_ATTEMPTS", cfg.VerificationMaxAttempts)
	cfg.VerificationCodeDigits = envInt("VERIFICATION_CODE_DIGITS", cfg.VerificationCodeDigits)
	cfg.ResetLinkTTL = envDuration("RESET_LINK_TTL", cfg.ResetLinkTTL)
	cfg.FailedLoginThreshold = envInt("FAILED_LOGIN_THRESHOLD", cfg.FailedLoginThreshold)
	cfg.LockoutDuration = envDuration("ACCOUNT_LOCKOUT_DURATION", cfg.LockoutDuration)

	cfg.PasswordHasher = strings.ToLower(envOrDefault("PASSWORD_HASHER", cfg.PasswordHasher))
	cfg.BcryptCost = envInt("BCRYPT_COST", cfg.BcryptCost)
	cfg.Argon2Memory = uint32(envInt("ARGON2_MEMORY_KIB", int(cfg.Argon2Memory)))
	cfg.Argon2Time = uint32(envInt("ARGON2_TIME", int(cfg.Argon2Time)))
	cfg.Argon2Parallelism = uint8(envInt("ARGON2_PARALLELISM", int(cfg.Argon2Parallelism)))

	cfg.OutboxPollInterval = envDuration("OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = envDuration("OUTBOX_CLAIM_TTL", cfg.OutboxClaimTTL)
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)
	cfg.ConnectAttempts = uint64(envInt("CONNECT_ATTEMPTS", int(cfg.ConnectAttempts)))
	cfg.MigrateOnStart = envBool("MIGRATE_ON_START", cfg.MigrateOnStart)

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.PasswordHasher != hasherArgon2ID && cfg.PasswordHasher != hasherBcrypt {
		return Config{}, fmt.Errorf("PASSWORD_HASHER must be %q or %q", hasherArgon2ID, hasherBcrypt)
	}
	if cfg.VerificationCodeDigits < 4 || cfg.VerificationCodeDigits > 12 {
		return Config{}, fmt.Errorf("VERIFICATION_CODE_DIGITS must be between 4 and 12")
	}
	return cfg, nil
}

func applyFile(cfg *Config, raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if f.Service.ID != "" {
		cfg.ServiceID = f.Service.ID
	}
	if f.Service.HTTPPort > 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GRPCPort > 0 {
		cfg.GRPCPort = f.Service.GRPCPort
	}
	if f.Service.LogLevel != "" {
		level, err := parseLevel(f.Service.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if f.Dependencies.PostgresURL != "" {
		cfg.DatabaseURL = f.Dependencies.PostgresURL
	}
	if f.Dependencies.RedisURL != "" {
		cfg.RedisURL = f.Dependencies.RedisURL
	}
	if len(f.Dependencies.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
	}
	if f.Notifications.Topic != "" {
		cfg.NotificationTopic = f.Notifications.Topic
	}
	if len(f.Notifications.Topics) > 0 {
		cfg.NotificationTopics = f.Notifications.Topics
	}

	durations := []struct {
		raw string
		dst *time.Duration
		key string
	}{
		{f.Lifecycle.SessionTTL, &cfg.SessionTTL, "lifecycle.session_ttl"},
		{f.Lifecycle.VerificationCooldown, &cfg.VerificationCooldown, "lifecycle.verification_cooldown"},
		{f.Lifecycle.VerificationCodeTTL, &cfg.VerificationCodeTTL, "lifecycle.verification_code_ttl"},
		{f.Lifecycle.ResetLinkTTL, &cfg.ResetLinkTTL, "lifecycle.reset_link_ttl"},
		{f.Lifecycle.LockoutDuration, &cfg.LockoutDuration, "lifecycle.lockout_duration"},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}
	if f.Security.PasswordHasher != "" {
		cfg.PasswordHasher = strings.ToLower(f.Security.PasswordHasher)
	}
	if f.Security.BcryptCost > 0 {
		cfg.BcryptCost = f.Security.BcryptCost
	}
	if f.Lifecycle.VerificationMaxAttempts > 0 {
		cfg.VerificationMaxAttempts = f.Lifecycle.VerificationMaxAttempts
	}
	if f.Lifecycle.FailedLoginThreshold != nil {
		cfg.FailedLoginThreshold = *f.Lifecycle.FailedLoginThreshold
	}
	return nil
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envDuration accepts Go duration strings ("90s", "31d" is not valid; use "744h").
func envDuration(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// envBool parses common boolean env forms while keeping a deterministic fallback.
func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
