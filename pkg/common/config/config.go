package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageLocal    = "local"
	StorageSupabase = "supabase"
	StorageMemory   = "memory"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64
	CORSOrigins    []string
	AuditPort      string

	// Auth
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	TokenTTL           time.Duration
	AuthRateLimitRPS   float64
	AuthRateLimitBurst int

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost         string
	RedisPort         string
	RedisPassword     string
	RedisDB           int
	DirectoryCacheTTL time.Duration

	// Kafka
	KafkaBrokers        []string
	KafkaEventsTopic    string
	KafkaGroupID        string
	KafkaPublishTimeout time.Duration

	// Storage
	StorageDriver        string
	StorageTimeout       time.Duration
	SupabaseURL          string
	SupabaseServiceKey   string
	SupabaseBucket       string
	UploadsDir           string
	PrescriptionsDir     string
	PublicBaseURL        string
	PrescriptionTemplate string

	// Redaction rules applied to logs and audit payloads; empty uses defaults.
	RedactionRules string
}

// Load reads configuration from the environment, after merging any .env file
// found in the working directory.
func Load() *Config {
	_ = godotenv.Load()

	origins := []string{"http://localhost:3000"}
	if frontend := getEnv("FRONTEND_URL", ""); frontend != "" {
		origins = append(origins, frontend)
	}

	return &Config{
		ServerPort:     getEnv("SERVER_PORT", getEnv("PORT", "5000")),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 10*1024*1024)),
		CORSOrigins:    origins,
		AuditPort:      getEnv("AUDIT_SERVER_PORT", "5001"),

		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWTIssuer:          getEnv("JWT_ISSUER", "mediconnect"),
		JWTAudience:        getEnv("JWT_AUDIENCE", "mediconnect-web"),
		TokenTTL:           getDuration("TOKEN_TTL", 24*time.Hour),
		AuthRateLimitRPS:   getFloatEnv("AUTH_RATE_LIMIT_RPS", 5),
		AuthRateLimitBurst: getIntEnv("AUTH_RATE_LIMIT_BURST", 10),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "mediconnect"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "mediconnect"),
		PostgresDB:       getEnv("POSTGRES_DB", "mediconnect"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:         getEnv("REDIS_HOST", ""),
		RedisPort:         getEnv("REDIS_PORT", "6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getIntEnv("REDIS_DB", 0),
		DirectoryCacheTTL: getDuration("DIRECTORY_CACHE_TTL", 5*time.Minute),

		KafkaBrokers:        getStringSliceEnv("KAFKA_BROKERS", nil),
		KafkaEventsTopic:    getEnv("KAFKA_EVENTS_TOPIC", "mediconnect.events"),
		KafkaGroupID:        getEnv("KAFKA_GROUP_ID", "mediconnect-audit"),
		KafkaPublishTimeout: getDuration("KAFKA_PUBLISH_TIMEOUT", 3*time.Second),

		StorageDriver:        strings.ToLower(getEnv("STORAGE_DRIVER", StorageLocal)),
		StorageTimeout:       getDuration("STORAGE_TIMEOUT", 15*time.Second),
		SupabaseURL:          strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseServiceKey:   getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseBucket:       getEnv("SUPABASE_BUCKET", "prescriptions"),
		UploadsDir:           getEnv("UPLOADS_DIR", "uploads"),
		PrescriptionsDir:     getEnv("PRESCRIPTIONS_DIR", "uploads/prescriptions"),
		PublicBaseURL:        strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		PrescriptionTemplate: getEnv("PRESCRIPTION_TEMPLATE", ""),

		RedactionRules: getEnv("REDACTION_RULES", ""),
	}
}

// Validate fails fast on settings the API server cannot run without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 16 {
		return errors.New("JWT_SECRET must be at least 16 characters")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}

	switch c.StorageDriver {
	case StorageLocal, StorageMemory:
	case StorageSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return errors.New("SUPABASE_URL and SUPABASE_SERVICE_KEY are required when STORAGE_DRIVER=supabase")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q, %q or %q, got %q",
			StorageLocal, StorageSupabase, StorageMemory, c.StorageDriver)
	}
	return nil
}

// PostgresDSN builds the key/value connection string understood by pgx.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.PostgresHost,
		c.PostgresUser,
		c.PostgresPassword,
		c.PostgresDB,
		c.PostgresPort,
		c.PostgresSSLMode,
	)
}

func (c *Config) RedisEnabled() bool { return c.RedisHost != "" }

func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
