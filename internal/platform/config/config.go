package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment selects defaults such as the screening provider.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTest        Environment = "test"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

const devAdminJWTSecret = "dev-admin-secret-change-in-production"

// Server captures process-level configuration.
type Server struct {
	Addr           string
	Environment    Environment
	LogLevel       string
	MaxBodyBytes   int64
	TrustedProxies string
	ShutdownGrace  time.Duration

	DB        DBConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Screening ScreeningConfig
	Admin     AdminConfig
}

// DBConfig configures the Postgres pools. An empty URL selects in-memory
// stores.
type DBConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrateOnStart  bool
}

// RedisConfig configures the cross-process record lock. An empty URL falls
// back to in-process locking.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LockTTL      time.Duration
}

// KafkaConfig configures notice delivery and outbox publishing. Empty
// Brokers disables Kafka.
type KafkaConfig struct {
	Brokers            string
	NoticeTopic        string
	EventsTopic        string
	DeliveryTimeout    time.Duration
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
}

// VendorConfig is the connection info for one screening vendor.
type VendorConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// ScreeningConfig configures the orchestrator and its providers.
type ScreeningConfig struct {
	Provider         string
	PollInterval     time.Duration
	MaxAttempts      int
	ArtifactBaseURL  string
	IdempotencyTTL   time.Duration
	IdempotencySize  int
	AuditBufferSize  int
	SubmitRateLimit  int
	SubmitRateWindow time.Duration
	Checkr           VendorConfig
	Sterling         VendorConfig
}

// AdminConfig configures admin bearer tokens.
type AdminConfig struct {
	JWTSecret string
	Issuer    string
	Audience  string
	TokenTTL  time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var errs []error
	cfg := Server{
		Addr:           getEnv("BASECAMP_ADDR", ":8080"),
		Environment:    Environment(getEnv("BASECAMP_ENV", string(EnvDevelopment))),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		MaxBodyBytes:   int64(getInt("MAX_BODY_BYTES", 64*1024, &errs)),
		TrustedProxies: os.Getenv("TRUSTED_PROXIES"),
		ShutdownGrace:  getDuration("SHUTDOWN_GRACE", 15*time.Second, &errs),
		DB: DBConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25, &errs),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5, &errs),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute, &errs),
			MigrateOnStart:  getBool("DB_MIGRATE_ON_START", true, &errs),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10, &errs),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2, &errs),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second, &errs),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second, &errs),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second, &errs),
			LockTTL:      getDuration("REDIS_LOCK_TTL", 30*time.Second, &errs),
		},
		Kafka: KafkaConfig{
			Brokers:            os.Getenv("KAFKA_BROKERS"),
			NoticeTopic:        getEnv("KAFKA_NOTICE_TOPIC", "screening.notices.pre_adverse"),
			EventsTopic:        getEnv("KAFKA_EVENTS_TOPIC", "screening.events"),
			DeliveryTimeout:    getDuration("KAFKA_DELIVERY_TIMEOUT", 10*time.Second, &errs),
			OutboxPollInterval: getDuration("OUTBOX_POLL_INTERVAL", 500*time.Millisecond, &errs),
			OutboxBatchSize:    getInt("OUTBOX_BATCH_SIZE", 100, &errs),
		},
		Screening: ScreeningConfig{
			Provider:         os.Getenv("SCREENING_PROVIDER"),
			PollInterval:     getDuration("SCREENING_POLL_INTERVAL", 30*time.Second, &errs),
			MaxAttempts:      getInt("SCREENING_MAX_ATTEMPTS", 144, &errs),
			ArtifactBaseURL:  getEnv("SCREENING_ARTIFACT_BASE_URL", "https://reports.basecamp.local"),
			IdempotencyTTL:   getDuration("IDEMPOTENCY_TTL", 10*time.Minute, &errs),
			IdempotencySize:  getInt("IDEMPOTENCY_CACHE_SIZE", 10_000, &errs),
			AuditBufferSize:  getInt("AUDIT_BUFFER_SIZE", 1024, &errs),
			SubmitRateLimit:  getInt("SUBMIT_RATE_LIMIT", 10, &errs),
			SubmitRateWindow: getDuration("SUBMIT_RATE_WINDOW", time.Minute, &errs),
			Checkr: VendorConfig{
				BaseURL: getEnv("CHECKR_BASE_URL", "https://api.checkr.com"),
				APIKey:  os.Getenv("CHECKR_API_KEY"),
				Timeout: getDuration("CHECKR_TIMEOUT", 10*time.Second, &errs),
			},
			Sterling: VendorConfig{
				BaseURL: getEnv("STERLING_BASE_URL", "https://api.sterlingcheck.app"),
				APIKey:  os.Getenv("STERLING_API_KEY"),
				Timeout: getDuration("STERLING_TIMEOUT", 10*time.Second, &errs),
			},
		},
		Admin: AdminConfig{
			JWTSecret: getEnv("ADMIN_JWT_SECRET", devAdminJWTSecret),
			Issuer:    getEnv("ADMIN_JWT_ISSUER", "basecamp"),
			Audience:  getEnv("ADMIN_JWT_AUDIENCE", "basecamp-admin"),
			TokenTTL:  getDuration("ADMIN_TOKEN_TTL", 15*time.Minute, &errs),
		},
	}
	if err := errors.Join(errs...); err != nil {
		return Server{}, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations that would misbehave at runtime.
func (c Server) Validate() error {
	var errs []error
	switch c.Environment {
	case EnvDevelopment, EnvTest, EnvStaging, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("BASECAMP_ENV: unknown environment %q", c.Environment))
	}
	if c.Screening.PollInterval <= 0 {
		errs = append(errs, errors.New("SCREENING_POLL_INTERVAL must be positive"))
	}
	if c.Screening.MaxAttempts <= 0 {
		errs = append(errs, errors.New("SCREENING_MAX_ATTEMPTS must be positive"))
	}
	for name, vendor := range map[string]VendorConfig{"CHECKR_TIMEOUT": c.Screening.Checkr, "STERLING_TIMEOUT": c.Screening.Sterling} {
		if c.Redis.URL != "" && c.Redis.LockTTL <= vendor.Timeout {
			errs = append(errs, fmt.Errorf("REDIS_LOCK_TTL (%s) must exceed %s (%s)", c.Redis.LockTTL, name, vendor.Timeout))
		}
	}
	if c.Environment == EnvProduction {
		if c.Admin.JWTSecret == devAdminJWTSecret {
			errs = append(errs, errors.New("ADMIN_JWT_SECRET must be set in production"))
		}
		if c.DB.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL must be set in production"))
		}
		if c.Screening.Provider == "fake" {
			errs = append(errs, errors.New("the fake screening provider cannot run in production"))
		}
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the process runs against real vendors.
func (c Server) IsProduction() bool {
	return c.Environment == EnvProduction
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int, errs *[]error) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}

func getBool(key string, fallback bool, errs *[]error) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}
