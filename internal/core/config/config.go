package config

import (
	"fmt"
	"log/slog" // Use the new structured logger
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	ClassifierProcess = "process"
	ClassifierHTTP    = "http"
)

// Contact is who gets asked when an emergency request is not auto-approved.
type Contact struct {
	Name     string `yaml:"name" json:"name"`
	Phone    string `yaml:"phone" json:"phone"`
	Relation string `yaml:"relation" json:"relation"`
}

// Policy holds the tunable decision constants. It can come from a YAML file.
type Policy struct {
	MonthlyCeiling    decimal.Decimal `yaml:"-"`
	RawMonthlyCeiling string          `yaml:"monthly_ceiling"`
	EmergencyKeywords []string        `yaml:"emergency_keywords"`
	FamilyContact     Contact         `yaml:"family_contact"`
}

type Config struct {
	Port           string
	DatabaseURL    string
	WebhookURL     string
	WebhookSecret  string
	WorkerSchedule string
	Env            string
	LogLevel       slog.Level

	ClassifierMode    string
	ClassifierCommand string
	ClassifierScript  string
	ClassifierURL     string
	ClassifierTimeout time.Duration

	SQLitePath string
	Policy     Policy
}

// DefaultPolicy returns the built-in keywords, contact and ceiling.
func DefaultPolicy() Policy {
	return Policy{
		MonthlyCeiling:    decimal.NewFromInt(100000),
		EmergencyKeywords: []string{"hospital", "medical", "accident", "icu", "surgery"},
		FamilyContact: Contact{
			Name:     "Mom",
			Phone:    "+91XXXXXXXXXX",
			Relation: "Mother",
		},
	}
}

// LoadConfig reads .env file, the optional policy file and the environment.
func LoadConfig() (*Config, error) {
	// Try loading .env file (it might not exist in Production, which is fine)
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, relying on System Env Variables")
	}

	cfg := &Config{
		Port:              getEnv("PORT", "3000"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		WebhookURL:        getEnv("WEBHOOK_URL", ""),
		WebhookSecret:     getEnv("WEBHOOK_SECRET", ""),
		WorkerSchedule:    getEnv("WORKER_SCHEDULE", "@every 5s"),
		Env:               getEnv("ENV", "development"),
		ClassifierMode:    getEnv("CLASSIFIER_MODE", ClassifierProcess),
		ClassifierCommand: getEnv("CLASSIFIER_COMMAND", "python"),
		ClassifierScript:  getEnv("CLASSIFIER_SCRIPT", "ml_model.py"),
		ClassifierURL:     getEnv("CLASSIFIER_URL", ""),
		SQLitePath:        getEnv("SQLITE_PATH", ""),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}

	timeout, err := time.ParseDuration(getEnv("CLASSIFIER_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("parse CLASSIFIER_TIMEOUT: %w", err)
	}
	cfg.ClassifierTimeout = timeout

	policy, err := LoadPolicy(getEnv("POLICY_FILE", ""))
	if err != nil {
		return nil, err
	}
	if v := os.Getenv("MONTHLY_CEILING"); v != "" {
		ceiling, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("parse MONTHLY_CEILING: %w", err)
		}
		policy.MonthlyCeiling = ceiling
	}
	cfg.Policy = policy

	return cfg, cfg.Validate()
}

// LoadPolicy reads a YAML policy file on top of DefaultPolicy. An empty path
// or a missing file yields the defaults.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("Policy file not found, using defaults", "path", path)
			return policy, nil
		}
		return policy, fmt.Errorf("read policy: %w", err)
	}

	var file Policy
	if err := yaml.Unmarshal(data, &file); err != nil {
		return policy, fmt.Errorf("parse policy: %w", err)
	}

	if file.RawMonthlyCeiling != "" {
		ceiling, err := decimal.NewFromString(file.RawMonthlyCeiling)
		if err != nil {
			return policy, fmt.Errorf("parse policy monthly_ceiling: %w", err)
		}
		policy.MonthlyCeiling = ceiling
	}
	if len(file.EmergencyKeywords) > 0 {
		policy.EmergencyKeywords = file.EmergencyKeywords
	}
	if file.FamilyContact.Name != "" {
		policy.FamilyContact = file.FamilyContact
	}
	return policy, nil
}

// Validate checks the combinations LoadConfig cannot default away.
func (c *Config) Validate() error {
	if !c.Policy.MonthlyCeiling.IsPositive() {
		return fmt.Errorf("monthly ceiling must be positive")
	}
	if len(c.Policy.EmergencyKeywords) == 0 {
		return fmt.Errorf("at least one emergency keyword is required")
	}
	switch strings.ToLower(c.ClassifierMode) {
	case ClassifierProcess:
		if c.ClassifierScript == "" {
			return fmt.Errorf("CLASSIFIER_SCRIPT is required in process mode")
		}
	case ClassifierHTTP:
		if c.ClassifierURL == "" {
			return fmt.Errorf("CLASSIFIER_URL is required in http mode")
		}
	default:
		return fmt.Errorf("unknown CLASSIFIER_MODE %q", c.ClassifierMode)
	}
	if c.ClassifierTimeout <= 0 {
		return fmt.Errorf("CLASSIFIER_TIMEOUT must be positive")
	}
	return nil
}

// Helper to get env with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
