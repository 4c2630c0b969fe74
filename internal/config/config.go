package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Config holds application configuration
type Config struct {
	// Server
	HTTPAddr       string
	LogLevel       string
	DeskAPIKeyHash string // bcrypt hash of the desk key; empty disables auth on /v1

	// Gemini API
	GeminiAPIKey         string
	GeminiAPIEndpoint    string // if set, overrides default Gemini API base URL (e.g. http://host.docker.internal:31300/gemini)
	GeminiModelBalance   string
	GeminiModelChat      string
	GeminiModelTTS       string // TTS model, e.g. gemini-2.5-flash-preview-tts
	GeminiTTSVoice       string // TTS voice name, e.g. Kore
	GeminiBalanceBackend string // genai, legacy or langchain
	RequestTimeout       time.Duration

	// Database (optional result cache)
	DatabaseURL string

	// Kafka (optional balance events)
	KafkaBrokers     []string
	KafkaTopicEvents string

	// Webhook (optional balance events)
	WebhookURL            string
	WebhookSecret         string
	WebhookMaxRetries     int
	WebhookRetryBaseDelay time.Duration
	WebhookRetryMaxDelay  time.Duration

	// S3/Storage (optional narration archive)
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
	S3PublicURL string

	// Narration output
	NarrationDir   string
	NarrationPaced bool
}

// source resolves a key from the environment first, then the YAML overlay.
type source map[string]string

// Load loads configuration from environment variables
func Load() *Config {
	return load(nil)
}

// LoadWithFile loads configuration from environment variables with defaults
// overridden by the YAML file at path. Keys in the file use the environment
// variable names. An empty path behaves like Load.
func LoadWithFile(path string) (*Config, error) {
	if path == "" {
		return Load(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	overlay := make(source, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		switch val := v.(type) {
		case []any:
			parts := make([]string, 0, len(val))
			for _, p := range val {
				parts = append(parts, fmt.Sprint(p))
			}
			overlay[strings.ToUpper(k)] = strings.Join(parts, ",")
		default:
			overlay[strings.ToUpper(k)] = fmt.Sprint(val)
		}
	}
	return load(overlay), nil
}

func load(s source) *Config {
	return &Config{
		HTTPAddr:       s.getEnv("HTTP_ADDR", ":8080"),
		LogLevel:       s.getEnv("LOG_LEVEL", "info"),
		DeskAPIKeyHash: s.getEnv("DESK_API_KEY_HASH", ""),

		GeminiAPIKey:         s.getEnv("GEMINI_API_KEY", ""),
		GeminiAPIEndpoint:    s.getEnv("GEMINI_API_ENDPOINT", ""),
		GeminiModelBalance:   s.getEnv("GEMINI_MODEL_BALANCE", "gemini-2.5-pro"),
		GeminiModelChat:      s.getEnv("GEMINI_MODEL_CHAT", "gemini-2.5-flash"),
		GeminiModelTTS:       s.getEnv("GEMINI_MODEL_TTS", "gemini-2.5-flash-preview-tts"),
		GeminiTTSVoice:       s.getEnv("GEMINI_TTS_VOICE", "Kore"),
		GeminiBalanceBackend: s.getEnv("GEMINI_BALANCE_BACKEND", "genai"),
		RequestTimeout:       s.getEnvDuration("REQUEST_TIMEOUT", 2*time.Minute),

		DatabaseURL: s.getEnv("DATABASE_URL", ""),

		KafkaBrokers:     splitList(s.getEnv("KAFKA_BROKERS", "")),
		KafkaTopicEvents: s.getEnv("KAFKA_TOPIC_EVENTS", "skynet.balance.v1"),

		WebhookURL:            s.getEnv("BALANCE_WEBHOOK_URL", ""),
		WebhookSecret:         s.getEnv("BALANCE_WEBHOOK_SECRET", ""),
		WebhookMaxRetries:     s.getEnvInt("WEBHOOK_MAX_RETRIES", 5),
		WebhookRetryBaseDelay: s.getEnvDuration("WEBHOOK_RETRY_BASE_DELAY", 2*time.Second),
		WebhookRetryMaxDelay:  s.getEnvDuration("WEBHOOK_RETRY_MAX_DELAY", time.Minute),

		S3Endpoint:  s.getEnv("S3_ENDPOINT", ""),
		S3Region:    s.getEnv("S3_REGION", "us-east-1"),
		S3Bucket:    s.getEnv("S3_BUCKET", ""),
		S3AccessKey: s.getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: s.getEnv("S3_SECRET_KEY", ""),
		S3UseSSL:    s.getEnvBool("S3_USE_SSL", false),
		S3PublicURL: s.getEnv("S3_PUBLIC_URL", ""),

		NarrationDir:   s.getEnv("NARRATION_DIR", "narrations"),
		NarrationPaced: s.getEnvBool("NARRATION_PACED", true),
	}
}

// S3Enabled reports whether the narration archive is configured.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3AccessKey != ""
}

// KafkaEnabled reports whether balance events are published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// WebhookEnabled reports whether balance events are posted to a webhook.
func (c *Config) WebhookEnabled() bool {
	return c.WebhookURL != ""
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s source) lookup(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return s[key]
}

func (s source) getEnv(key, defaultValue string) string {
	if value := s.lookup(key); value != "" {
		return value
	}
	return defaultValue
}

func (s source) getEnvInt(key string, defaultValue int) int {
	if value := s.lookup(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func (s source) getEnvBool(key string, defaultValue bool) bool {
	if value := s.lookup(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func (s source) getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := s.lookup(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
