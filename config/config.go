package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
//
//nolint:govet // Field alignment optimization would reduce readability
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	UserSession   UserSessionConfig
	EventTriggers EventTriggerFunctionsConfig
	Logging       LoggingConfig
	Observability ObservabilityConfig
	Profiling     ProfilingConfig
	Cache         CacheConfig
	Sessions      SessionsConfig
	Reminders     RemindersConfig
	Sweep         SweepConfig
	Collaborators CollaboratorsConfig
}

type ServerConfig struct {
	Port           string
	GinMode        string
	AppEnv         string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL         string
	CACertPath  string
	MaxConns    int32
	MinConns    int32
	WorkOffline bool // run on the in-memory store
}

type AuthConfig struct {
	InternalAPIToken string // protects /api/internal
}

type UserSessionConfig struct {
	JWTSecret       string
	JWTIssuer       string
	SessionTTLHours int
	CookieName      string
}

type EventTriggerFunctionsConfig struct {
	SessionBookedTriggerURL    string
	SessionCancelledTriggerURL string
	ReviewCreatedTriggerURL    string
}

type LoggingConfig struct {
	Level string
	Dir   string
}

type ObservabilityConfig struct {
	AlloyEndpoint     string
	ServiceName       string
	ServiceNamespace  string
	ServiceVersion    string
	ServiceInstanceID string
	TraceSampleRatio  float64 // share of root traces kept, 1 keeps all
}

type ProfilingConfig struct {
	Enabled               bool
	Endpoint              string
	AppName               string
	SampleTypes           string
	UploadIntervalSeconds int
}

// CacheRegion is the TTL and size bound of one cache region
type CacheRegion struct {
	TTLSeconds int
	MaxEntries int
}

func (r CacheRegion) TTL() time.Duration {
	return time.Duration(r.TTLSeconds) * time.Second
}

type CacheConfig struct {
	Profiles             CacheRegion
	Sessions             CacheRegion
	Availability         CacheRegion
	Reviews              CacheRegion
	JanitorIntervalSecs  int
	StatsLogIntervalSecs int
	ProfileFallbackTTL   int // seconds a last known identity profile is kept for degraded lookups
}

type SessionsConfig struct {
	NoShowThresholdMinutes int
	MaxDurationMinutes     int
	MinLeadMinutes         int
}

func (s SessionsConfig) NoShowThreshold() time.Duration {
	return time.Duration(s.NoShowThresholdMinutes) * time.Minute
}

type RemindersConfig struct {
	Offsets             string // comma-separated durations, e.g. "24h,1h,15m"
	MaxAttempts         int    // 0 retries forever
	RetryBackoffSeconds int    // base of exponential backoff between attempts, 0 retries every sweep
	Channel             string
}

type SweepConfig struct {
	IntervalSeconds        int
	BatchSize              int
	Workers                int
	DispatchTimeoutSeconds int
}

func (s SweepConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

type CollaboratorsConfig struct {
	IdentityURL                string
	IdentityTimeoutSeconds     int
	NotificationURL            string
	NotificationTimeoutSeconds int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("PORT", "8082")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("ALLOWED_CORS_ORIGINS", "https://getmentor.dev,https://www.getmentor.dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DIR", "/app/logs")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("O11Y_EXPORTER_ENDPOINT", "alloy:4318") // OTLP over HTTP
	v.SetDefault("O11Y_BE_SERVICE_NAME", "getmentor-sessions")
	v.SetDefault("O11Y_SERVICE_NAMESPACE", "getmentor-dev")
	v.SetDefault("O11Y_BE_SERVICE_VERSION", "1.0.0")
	v.SetDefault("O11Y_TRACE_SAMPLE_RATIO", 1.0)
	v.SetDefault("O11Y_PROFILING_ENABLED", false)
	v.SetDefault("O11Y_PROFILING_APP_NAME", "getmentor-sessions")
	v.SetDefault("O11Y_PROFILING_SAMPLE_TYPES", "cpu,alloc_space,alloc_objects,goroutines,mutex,block")
	v.SetDefault("O11Y_PROFILING_UPLOAD_INTERVAL_SECONDS", 15)

	// User session defaults
	v.SetDefault("JWT_ISSUER", "getmentor")
	v.SetDefault("SESSION_TTL_HOURS", 24)
	v.SetDefault("SESSION_COOKIE_NAME", "user_session")

	// Cache regions
	v.SetDefault("CACHE_PROFILES_TTL", 3600)
	v.SetDefault("CACHE_PROFILES_MAX_ENTRIES", 5000)
	v.SetDefault("CACHE_SESSIONS_TTL", 30)
	v.SetDefault("CACHE_SESSIONS_MAX_ENTRIES", 10000)
	v.SetDefault("CACHE_AVAILABILITY_TTL", 300)
	v.SetDefault("CACHE_AVAILABILITY_MAX_ENTRIES", 5000)
	v.SetDefault("CACHE_REVIEWS_TTL", 3600)
	v.SetDefault("CACHE_REVIEWS_MAX_ENTRIES", 5000)
	v.SetDefault("CACHE_JANITOR_INTERVAL_SECONDS", 60)
	v.SetDefault("CACHE_STATS_LOG_INTERVAL_SECONDS", 300)
	v.SetDefault("PROFILE_FALLBACK_TTL", 86400)

	// Session lifecycle
	v.SetDefault("SESSION_NO_SHOW_THRESHOLD_MINUTES", 30)
	v.SetDefault("SESSION_MAX_DURATION_MINUTES", 480)
	v.SetDefault("SESSION_MIN_LEAD_MINUTES", 0)

	// Reminders and sweep
	v.SetDefault("REMINDER_OFFSETS", "24h,1h,15m")
	v.SetDefault("REMINDER_MAX_ATTEMPTS", 0)
	v.SetDefault("REMINDER_RETRY_BACKOFF_SECONDS", 0)
	v.SetDefault("REMINDER_CHANNEL", "email")
	v.SetDefault("SWEEP_INTERVAL_SECONDS", 300)
	v.SetDefault("SWEEP_BATCH_SIZE", 500)
	v.SetDefault("SWEEP_WORKERS", 8)
	v.SetDefault("SWEEP_DISPATCH_TIMEOUT_SECONDS", 10)

	// Collaborators
	v.SetDefault("IDENTITY_TIMEOUT_SECONDS", 3)
	v.SetDefault("NOTIFICATION_TIMEOUT_SECONDS", 5)

	// Automatically read environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	_ = v.ReadInConfig() //nolint:errcheck // Ignore error if .env file doesn't exist

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("PORT"),
			GinMode:        v.GetString("GIN_MODE"),
			AppEnv:         v.GetString("APP_ENV"),
			AllowedOrigins: splitList(v.GetString("ALLOWED_CORS_ORIGINS")),
		},
		Database: DatabaseConfig{
			URL:         v.GetString("DATABASE_URL"),
			CACertPath:  v.GetString("DATABASE_CA_CERT_PATH"),
			MaxConns:    v.GetInt32("DB_MAX_CONNS"),
			MinConns:    v.GetInt32("DB_MIN_CONNS"),
			WorkOffline: v.GetBool("DB_WORK_OFFLINE"),
		},
		Auth: AuthConfig{
			InternalAPIToken: v.GetString("INTERNAL_API_TOKEN"),
		},
		UserSession: UserSessionConfig{
			JWTSecret:       v.GetString("JWT_SECRET"),
			JWTIssuer:       v.GetString("JWT_ISSUER"),
			SessionTTLHours: v.GetInt("SESSION_TTL_HOURS"),
			CookieName:      v.GetString("SESSION_COOKIE_NAME"),
		},
		EventTriggers: EventTriggerFunctionsConfig{
			SessionBookedTriggerURL:    v.GetString("SESSION_BOOKED_TRIGGER_URL"),
			SessionCancelledTriggerURL: v.GetString("SESSION_CANCELLED_TRIGGER_URL"),
			ReviewCreatedTriggerURL:    v.GetString("REVIEW_CREATED_TRIGGER_URL"),
		},
		Logging: LoggingConfig{
			Level: v.GetString("LOG_LEVEL"),
			Dir:   v.GetString("LOG_DIR"),
		},
		Observability: ObservabilityConfig{
			AlloyEndpoint:     v.GetString("O11Y_EXPORTER_ENDPOINT"),
			ServiceName:       v.GetString("O11Y_BE_SERVICE_NAME"),
			ServiceNamespace:  v.GetString("O11Y_SERVICE_NAMESPACE"),
			ServiceVersion:    v.GetString("O11Y_BE_SERVICE_VERSION"),
			ServiceInstanceID: v.GetString("SERVICE_INSTANCE_ID"),
			TraceSampleRatio:  v.GetFloat64("O11Y_TRACE_SAMPLE_RATIO"),
		},
		Profiling: ProfilingConfig{
			Enabled:               v.GetBool("O11Y_PROFILING_ENABLED"),
			Endpoint:              v.GetString("O11Y_PROFILING_ENDPOINT"),
			AppName:               v.GetString("O11Y_PROFILING_APP_NAME"),
			SampleTypes:           v.GetString("O11Y_PROFILING_SAMPLE_TYPES"),
			UploadIntervalSeconds: v.GetInt("O11Y_PROFILING_UPLOAD_INTERVAL_SECONDS"),
		},
		Cache: CacheConfig{
			Profiles: CacheRegion{
				TTLSeconds: v.GetInt("CACHE_PROFILES_TTL"),
				MaxEntries: v.GetInt("CACHE_PROFILES_MAX_ENTRIES"),
			},
			Sessions: CacheRegion{
				TTLSeconds: v.GetInt("CACHE_SESSIONS_TTL"),
				MaxEntries: v.GetInt("CACHE_SESSIONS_MAX_ENTRIES"),
			},
			Availability: CacheRegion{
				TTLSeconds: v.GetInt("CACHE_AVAILABILITY_TTL"),
				MaxEntries: v.GetInt("CACHE_AVAILABILITY_MAX_ENTRIES"),
			},
			Reviews: CacheRegion{
				TTLSeconds: v.GetInt("CACHE_REVIEWS_TTL"),
				MaxEntries: v.GetInt("CACHE_REVIEWS_MAX_ENTRIES"),
			},
			JanitorIntervalSecs:  v.GetInt("CACHE_JANITOR_INTERVAL_SECONDS"),
			StatsLogIntervalSecs: v.GetInt("CACHE_STATS_LOG_INTERVAL_SECONDS"),
			ProfileFallbackTTL:   v.GetInt("PROFILE_FALLBACK_TTL"),
		},
		Sessions: SessionsConfig{
			NoShowThresholdMinutes: v.GetInt("SESSION_NO_SHOW_THRESHOLD_MINUTES"),
			MaxDurationMinutes:     v.GetInt("SESSION_MAX_DURATION_MINUTES"),
			MinLeadMinutes:         v.GetInt("SESSION_MIN_LEAD_MINUTES"),
		},
		Reminders: RemindersConfig{
			Offsets:             v.GetString("REMINDER_OFFSETS"),
			MaxAttempts:         v.GetInt("REMINDER_MAX_ATTEMPTS"),
			RetryBackoffSeconds: v.GetInt("REMINDER_RETRY_BACKOFF_SECONDS"),
			Channel:             v.GetString("REMINDER_CHANNEL"),
		},
		Sweep: SweepConfig{
			IntervalSeconds:        v.GetInt("SWEEP_INTERVAL_SECONDS"),
			BatchSize:              v.GetInt("SWEEP_BATCH_SIZE"),
			Workers:                v.GetInt("SWEEP_WORKERS"),
			DispatchTimeoutSeconds: v.GetInt("SWEEP_DISPATCH_TIMEOUT_SECONDS"),
		},
		Collaborators: CollaboratorsConfig{
			IdentityURL:                v.GetString("IDENTITY_SERVICE_URL"),
			IdentityTimeoutSeconds:     v.GetInt("IDENTITY_TIMEOUT_SECONDS"),
			NotificationURL:            v.GetString("NOTIFICATION_SERVICE_URL"),
			NotificationTimeoutSeconds: v.GetInt("NOTIFICATION_TIMEOUT_SECONDS"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// splitList parses a comma-separated list, dropping empty items
func splitList(value string) []string {
	items := []string{}
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	// Database configuration
	if !c.Database.WorkOffline && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when not in offline mode")
	}

	// Authentication
	if c.Auth.InternalAPIToken == "" {
		return fmt.Errorf("INTERNAL_API_TOKEN is required")
	}
	if len(c.UserSession.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is required and must be at least 32 characters")
	}

	// Server configuration
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if len(c.Server.AllowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_CORS_ORIGINS is required")
	}

	if c.Observability.TraceSampleRatio < 0 || c.Observability.TraceSampleRatio > 1 {
		return fmt.Errorf("O11Y_TRACE_SAMPLE_RATIO must be between 0 and 1")
	}
	if c.Profiling.Enabled && c.Profiling.Endpoint == "" {
		return fmt.Errorf("O11Y_PROFILING_ENDPOINT is required when profiling is enabled")
	}

	// Cache regions
	for name, region := range map[string]CacheRegion{
		"PROFILES":     c.Cache.Profiles,
		"SESSIONS":     c.Cache.Sessions,
		"AVAILABILITY": c.Cache.Availability,
		"REVIEWS":      c.Cache.Reviews,
	} {
		if region.TTLSeconds <= 0 || region.MaxEntries <= 0 {
			return fmt.Errorf("CACHE_%s_TTL and CACHE_%s_MAX_ENTRIES must be positive", name, name)
		}
	}

	// Lifecycle, reminders and sweep
	if c.Sessions.MaxDurationMinutes <= 0 {
		return fmt.Errorf("SESSION_MAX_DURATION_MINUTES must be positive")
	}
	if c.Sessions.NoShowThresholdMinutes < 0 || c.Sessions.MinLeadMinutes < 0 {
		return fmt.Errorf("SESSION_NO_SHOW_THRESHOLD_MINUTES and SESSION_MIN_LEAD_MINUTES must not be negative")
	}
	if err := validateOffsets(c.Reminders.Offsets); err != nil {
		return err
	}
	if c.Reminders.MaxAttempts < 0 || c.Reminders.RetryBackoffSeconds < 0 {
		return fmt.Errorf("REMINDER_MAX_ATTEMPTS and REMINDER_RETRY_BACKOFF_SECONDS must not be negative")
	}
	if c.Sweep.IntervalSeconds <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL_SECONDS must be positive")
	}
	if c.Sweep.BatchSize <= 0 || c.Sweep.Workers <= 0 {
		return fmt.Errorf("SWEEP_BATCH_SIZE and SWEEP_WORKERS must be positive")
	}

	return nil
}

func validateOffsets(value string) error {
	offsets := splitList(value)
	if len(offsets) == 0 {
		return fmt.Errorf("REMINDER_OFFSETS must list at least one duration")
	}
	for _, raw := range offsets {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return fmt.Errorf("REMINDER_OFFSETS contains invalid duration %q", raw)
		}
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.AppEnv == "development" || c.Server.GinMode == "debug"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.AppEnv == "production"
}
