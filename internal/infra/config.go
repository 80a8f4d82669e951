package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend selectors.
const (
	BackendPostgres   = "postgres"
	BackendSQLite     = "sqlite"
	BackendMemory     = "memory"
	BackendRedis      = "redis"
	BackendS3         = "s3"
	BackendFilesystem = "filesystem"

	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderSynthetic = "synthetic"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv        string
	Port          string
	DatabaseURL   string
	JWTSecret     string
	JWTIssuer     string
	DefaultLocale string
	GeoIPDBPath   string
	AutoMigrate   bool

	RecordStore   string
	SQLitePath    string
	Ledger        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ArtifactStore string
	ImageProvider string

	StorageDir     string
	StorageBaseURL string

	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3PublicBaseURL string
	S3UsePathStyle  bool
	S3AccessKeyID   string
	S3SecretKey     string
	S3SessionToken  string
	S3Profile       string

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	OpenAIOrg     string
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	GenerationAttempts   int
	GenerationRetryDelay time.Duration
	JobConcurrency       int
	JobTimeout           time.Duration
	SweepInterval        time.Duration
	StuckAfter           time.Duration

	CORSOrigins      []string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		Port:          port,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTIssuer:     os.Getenv("JWT_ISSUER"),
		DefaultLocale: strings.ToLower(getEnv("DEFAULT_LOCALE", "en")),
		GeoIPDBPath:   os.Getenv("GEOIP_DB_PATH"),
		AutoMigrate:   getEnvBool("AUTO_MIGRATE", false),

		RecordStore:   strings.ToLower(getEnv("RECORD_STORE", BackendPostgres)),
		SQLitePath:    getEnv("SQLITE_PATH", "adgen.db"),
		Ledger:        strings.ToLower(getEnv("LEDGER", BackendPostgres)),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		ArtifactStore: strings.ToLower(getEnv("ARTIFACT_STORE", BackendFilesystem)),
		ImageProvider: strings.ToLower(getEnv("IMAGE_PROVIDER", ProviderOpenAI)),

		StorageDir:     getEnv("STORAGE_DIR", "./storage"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"),

		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3Region:        getEnv("AWS_REGION", "us-east-1"),
		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		S3PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:  getEnvBool("S3_USE_PATH_STYLE", false),
		S3AccessKeyID:   os.Getenv("AWS_ACCESS_KEY_ID"),
		S3SecretKey:     os.Getenv("AWS_SECRET_ACCESS_KEY"),
		S3SessionToken:  os.Getenv("AWS_SESSION_TOKEN"),
		S3Profile:       os.Getenv("AWS_PROFILE"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   getEnv("OPENAI_IMAGE_MODEL", "gpt-image-1"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIOrg:     os.Getenv("OPENAI_ORG"),
		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),

		GenerationAttempts:   getEnvInt("GENERATION_ATTEMPTS", 3),
		GenerationRetryDelay: time.Millisecond * time.Duration(getEnvInt("GENERATION_RETRY_DELAY_MS", 1000)),
		JobConcurrency:       getEnvInt("JOB_CONCURRENCY", 8),
		JobTimeout:           time.Second * time.Duration(getEnvInt("JOB_TIMEOUT_SECONDS", 300)),
		SweepInterval:        time.Second * time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 60)),
		StuckAfter:           time.Second * time.Duration(getEnvInt("STUCK_AFTER_SECONDS", 900)),

		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if err := cfg.validateBackends(); err != nil {
		return nil, err
	}
	if err := cfg.validateJobs(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NeedsPostgres reports whether any selected backend talks to Postgres.
func (c *Config) NeedsPostgres() bool {
	return c.RecordStore == BackendPostgres || c.Ledger == BackendPostgres
}

func (c *Config) validateBackends() error {
	switch c.RecordStore {
	case BackendPostgres, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("RECORD_STORE %q is not supported", c.RecordStore)
	}
	switch c.Ledger {
	case BackendPostgres, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("LEDGER %q is not supported", c.Ledger)
	}
	switch c.ArtifactStore {
	case BackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when ARTIFACT_STORE=s3")
		}
	case BackendFilesystem:
	default:
		return fmt.Errorf("ARTIFACT_STORE %q is not supported", c.ArtifactStore)
	}
	switch c.ImageProvider {
	case ProviderOpenAI, ProviderGemini, ProviderSynthetic:
	default:
		return fmt.Errorf("IMAGE_PROVIDER %q is not supported", c.ImageProvider)
	}
	if c.NeedsPostgres() && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// validateJobs checks the continuation and sweeper timings. A pending ad
// may only be swept once its continuation can no longer be running.
func (c *Config) validateJobs() error {
	if c.GenerationAttempts < 1 {
		c.GenerationAttempts = 1
	}
	if c.JobConcurrency < 1 {
		c.JobConcurrency = 1
	}
	if c.GenerationRetryDelay < 0 {
		return fmt.Errorf("GENERATION_RETRY_DELAY_MS must not be negative")
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("JOB_TIMEOUT_SECONDS must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL_SECONDS must be positive")
	}
	if longest := c.MaxJobDuration(); c.StuckAfter <= longest {
		return fmt.Errorf("STUCK_AFTER_SECONDS (%s) must exceed the longest job run (%s)", c.StuckAfter, longest)
	}
	return nil
}

// MaxJobDuration is the longest a continuation can keep an ad pending.
func (c *Config) MaxJobDuration() time.Duration {
	return c.JobTimeout + time.Duration(c.GenerationAttempts)*c.GenerationRetryDelay
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
