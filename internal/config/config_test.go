package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	os.Unsetenv("DASHSCOPE_API_KEY")
	os.Unsetenv("MODELSCOPE_API_KEY")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("AUDIO_DIR")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("Expected default Port '8000', got '%s'", cfg.Port)
	}

	if cfg.ChatModel != "qwen-turbo" {
		t.Errorf("Expected default ChatModel 'qwen-turbo', got '%s'", cfg.ChatModel)
	}

	if cfg.MaxFileSize != 10485760 {
		t.Errorf("Expected default MaxFileSize 10485760, got %d", cfg.MaxFileSize)
	}

	if cfg.UploadDir != "./data/uploads" {
		t.Errorf("Expected default UploadDir './data/uploads', got '%s'", cfg.UploadDir)
	}

	if cfg.AudioDir != cfg.UploadDir {
		t.Errorf("Expected AudioDir to default to UploadDir, got '%s'", cfg.AudioDir)
	}

	if cfg.OCRTimeout != 60 || cfg.TTSTimeout != 60 || cfg.ChatTimeout != 30 {
		t.Errorf("Unexpected timeout defaults: ocr=%d tts=%d chat=%d", cfg.OCRTimeout, cfg.TTSTimeout, cfg.ChatTimeout)
	}

	if cfg.DashScopeAPIKey != "" {
		t.Errorf("Expected empty DashScopeAPIKey, got '%s'", cfg.DashScopeAPIKey)
	}
}

func TestLoadFromEnv_LegacyKey(t *testing.T) {
	os.Unsetenv("DASHSCOPE_API_KEY")
	os.Setenv("MODELSCOPE_API_KEY", "sk-legacy")
	defer os.Unsetenv("MODELSCOPE_API_KEY")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.DashScopeAPIKey != "sk-legacy" {
		t.Errorf("Expected DashScopeAPIKey 'sk-legacy', got '%s'", cfg.DashScopeAPIKey)
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	os.Setenv("MAX_FILE_SIZE", "0")
	defer os.Unsetenv("MAX_FILE_SIZE")

	_, err := LoadFromEnv()
	if err == nil {
		t.Error("Expected error for non-positive MAX_FILE_SIZE")
	}
}

func TestLoad(t *testing.T) {
	os.Setenv("DASHSCOPE_API_KEY", "sk-test")
	defer os.Unsetenv("DASHSCOPE_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.DashScopeAPIKey != "sk-test" {
		t.Errorf("Expected DashScopeAPIKey 'sk-test', got '%s'", cfg.DashScopeAPIKey)
	}
}

func TestConfig_ResilienceDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.CircuitBreakerMaxFailures != 5 {
		t.Errorf("Expected default CircuitBreakerMaxFailures 5, got %d", cfg.CircuitBreakerMaxFailures)
	}

	if cfg.CircuitBreakerResetTimeout != 30 {
		t.Errorf("Expected default CircuitBreakerResetTimeout 30, got %d", cfg.CircuitBreakerResetTimeout)
	}

	// remote calls are single-attempt unless configured otherwise
	if cfg.RetryMaxAttempts != 1 {
		t.Errorf("Expected default RetryMaxAttempts 1, got %d", cfg.RetryMaxAttempts)
	}

	if cfg.SessionTTL != 0 {
		t.Errorf("Expected default SessionTTL 0, got %d", cfg.SessionTTL)
	}
}

func TestConfig_ObservabilityDefaults(t *testing.T) {
	os.Unsetenv("LOG_LEVEL")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}

	if cfg.LogPretty {
		t.Error("Expected default LogPretty false, got true")
	}

	if !cfg.MetricsEnabled {
		t.Error("Expected default MetricsEnabled true, got false")
	}
}

func TestAllowedOrigins(t *testing.T) {
	cfg := &Config{CorsAllowedOrigins: " http://a.test , ,http://b.test"}

	origins := cfg.AllowedOrigins()
	if len(origins) != 2 || origins[0] != "http://a.test" || origins[1] != "http://b.test" {
		t.Errorf("Unexpected origins: %v", origins)
	}
}

func TestSeconds(t *testing.T) {
	if Seconds(3) != 3*time.Second {
		t.Errorf("Expected 3s, got %v", Seconds(3))
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_KEY", "test-value")
	defer os.Unsetenv("TEST_KEY")

	value := GetEnv("TEST_KEY", "default")
	if value != "test-value" {
		t.Errorf("Expected 'test-value', got '%s'", value)
	}

	value = GetEnv("NON_EXISTENT_KEY", "default")
	if value != "default" {
		t.Errorf("Expected 'default', got '%s'", value)
	}
}
