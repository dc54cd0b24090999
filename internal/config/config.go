package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the tutor service
type Config struct {
	// Server configuration
	Port               string `envconfig:"PORT" default:"8000"`
	Debug              bool   `envconfig:"DEBUG" default:"true"`
	CorsAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`

	// gRPC health service port; empty disables it
	GRPCHealthPort string `envconfig:"GRPC_HEALTH_PORT" default:"9090"`

	// DashScope (Qwen) configuration. A missing key is allowed: every remote
	// operation then degrades to its fallback value.
	DashScopeAPIKey  string `envconfig:"DASHSCOPE_API_KEY" default:""`
	ModelScopeAPIKey string `envconfig:"MODELSCOPE_API_KEY" default:""` // legacy name, used when DASHSCOPE_API_KEY is unset
	DashScopeBaseURL string `envconfig:"DASHSCOPE_BASE_URL" default:"https://dashscope.aliyuncs.com/api/v1"`
	ChatModel        string `envconfig:"QWEN_MODEL" default:"qwen-turbo"`
	OCRModel         string `envconfig:"OCR_MODEL" default:"qwen-vl-ocr"`
	TTSModel         string `envconfig:"TTS_MODEL" default:"qwen3-tts-flash"`
	TTSVoice         string `envconfig:"TTS_VOICE" default:"Cherry"`

	// Remote call timeouts (seconds)
	OCRTimeout  int `envconfig:"OCR_TIMEOUT" default:"60"`
	TTSTimeout  int `envconfig:"TTS_TIMEOUT" default:"60"`
	ChatTimeout int `envconfig:"CHAT_TIMEOUT" default:"30"`

	// Chat generation parameters
	ChatTemperature float64 `envconfig:"CHAT_TEMPERATURE" default:"0.7"`
	ChatTopP        float64 `envconfig:"CHAT_TOP_P" default:"0.8"`
	ChatMaxTokens   int     `envconfig:"CHAT_MAX_TOKENS" default:"1500"`

	// File upload
	MaxFileSize int64  `envconfig:"MAX_FILE_SIZE" default:"10485760"` // 10MB
	UploadDir   string `envconfig:"UPLOAD_DIR" default:"./data/uploads"`
	AudioDir    string `envconfig:"AUDIO_DIR" default:""` // defaults to UPLOAD_DIR

	// Deepgram STT configuration (pronunciation practice); optional
	DeepgramAPIKey     string  `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel      string  `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	STTTimeout         int     `envconfig:"STT_TIMEOUT" default:"20"`             // seconds
	VADEnergyThreshold float64 `envconfig:"VAD_ENERGY_THRESHOLD" default:"500.0"` // RMS energy threshold for VAD
	VADSilenceFrames   int     `envconfig:"VAD_SILENCE_FRAMES" default:"10"`      // Frames of silence to mark speech end

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"1"`             // Attempts for audio downloads
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds

	// Sessions
	SessionTTL             int   `envconfig:"SESSION_TTL" default:"0"`              // seconds, 0 = never expire
	SessionCleanupInterval int   `envconfig:"SESSION_CLEANUP_INTERVAL" default:"0"` // seconds, 0 = no janitor
	MaxConcurrentSteps     int64 `envconfig:"MAX_CONCURRENT_STEPS" default:"8"`
	QuestionPromptTokens   int   `envconfig:"QUESTION_PROMPT_TOKENS" default:"2000"` // 0 disables trimming

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.DashScopeAPIKey == "" {
		cfg.DashScopeAPIKey = cfg.ModelScopeAPIKey
	}
	if cfg.AudioDir == "" {
		cfg.AudioDir = cfg.UploadDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that have no sensible fallback
func (c *Config) Validate() error {
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive")
	}
	if strings.TrimSpace(c.UploadDir) == "" {
		return fmt.Errorf("UPLOAD_DIR is required")
	}
	if c.MaxConcurrentSteps <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_STEPS must be positive")
	}
	if c.OCRTimeout <= 0 || c.TTSTimeout <= 0 || c.ChatTimeout <= 0 {
		return fmt.Errorf("remote timeouts must be positive")
	}
	return nil
}

// AllowedOrigins splits CorsAllowedOrigins into trimmed, non-empty entries
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CorsAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Seconds converts a seconds-valued setting into a duration
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
