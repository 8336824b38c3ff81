package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// generateWorkerID creates a unique worker ID using hostname and PID
func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "worker"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string

	// Storage
	DatabaseURL string
	RedisURL    string
	MongoDBURL  string
	MongoDBName string

	// Gmail OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRefreshToken string
	GoogleProjectID    string
	PubSubTopic        string
	MailboxAddress     string
	OutreachAddress    string

	// Sync
	CursorKey      string
	ResetOnStart   bool
	ScanPageSize   int64
	ChangePageSize int64

	// Processor
	InterMessageDelay time.Duration
	ProcessedLabel    string
	BatchWindowMax    int
	BatchWindow       time.Duration

	// OpenAI
	OpenAIAPIKey   string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64
	LLMTimeoutSec  int
	LLMMaxRetries  int

	// Push verification
	PushAudience    string
	PushAllowedFrom string

	// Rule table
	RuleRefreshInterval time.Duration

	// Scheduler
	SchedulerEnabled bool
	ScanInterval     time.Duration

	// Worker
	WorkerID string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),

		// Storage
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "leadscout"),

		// Gmail OAuth
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRefreshToken: getEnv("GOOGLE_REFRESH_TOKEN", ""),
		GoogleProjectID:    getEnv("GOOGLE_PROJECT_ID", ""),
		PubSubTopic:        getEnv("PUBSUB_TOPIC", "leadscout-gmail"),
		MailboxAddress:     getEnv("MAILBOX_ADDRESS", ""),
		OutreachAddress:    getEnv("OUTREACH_ADDRESS", ""),

		// Sync
		CursorKey:      getEnv("CURSOR_KEY", "state/gmail_history"),
		ResetOnStart:   getEnvBool("RESET_ON_START", false),
		ScanPageSize:   int64(getEnvInt("SCAN_PAGE_SIZE", 100)),
		ChangePageSize: int64(getEnvInt("CHANGE_PAGE_SIZE", 500)),

		// Processor
		InterMessageDelay: time.Duration(getEnvInt("INTER_MESSAGE_DELAY_MS", 500)) * time.Millisecond,
		ProcessedLabel:    getEnv("PROCESSED_LABEL", "processed"),
		BatchWindowMax:    getEnvInt("BATCH_WINDOW_MAX", 10000),
		BatchWindow:       time.Duration(getEnvInt("BATCH_WINDOW_SEC", 60)) * time.Second,

		// OpenAI
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 1024),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.1),
		LLMTimeoutSec:  getEnvInt("LLM_TIMEOUT_SEC", 60),
		LLMMaxRetries:  getEnvInt("LLM_MAX_RETRIES", 3),

		// Push verification
		PushAudience:    getEnv("PUSH_AUDIENCE", ""),
		PushAllowedFrom: getEnv("PUSH_ALLOWED_FROM", ""),

		// Rule table
		RuleRefreshInterval: time.Duration(getEnvInt("RULE_REFRESH_MIN", 10)) * time.Minute,

		// Scheduler
		SchedulerEnabled: getEnvBool("SCHEDULER_ENABLED", true),
		ScanInterval:     time.Duration(getEnvInt("SCAN_INTERVAL_MIN", 10)) * time.Minute,

		// Worker
		WorkerID: getEnv("WORKER_ID", generateWorkerID()),
	}

	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		return nil, fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
