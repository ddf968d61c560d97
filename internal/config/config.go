package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the companion service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	// DataDir is the root of all file-resident state (memory, logs,
	// documents, family profiles, research, audio).
	DataDir string

	ContextWindow         int
	NameMatchThreshold    int
	KeywordMatchThreshold int
	ExtraPatientNames     []string

	RolloverSpec string

	BrainMode    string
	BrainHTTPURL string
	BrainAPIKey  string
	BrainModel   string

	VoiceProvider     string
	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string
	ElevenLabsVoiceID string
	ElevenLabsModelID string
	AudioRetainCount  int

	TranscriberMode string
	WhisperAPIURL   string
	WhisperAPIKey   string
	WhisperModel    string

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "moira"),
		AllowAnyOrigin:   false,
		DataDir:          envOrDefault("APP_DATA_DIR", "data"),
		// Fire the daily rollover at local midnight, covering the day that just ended.
		RolloverSpec: envOrDefault("APP_ROLLOVER_SPEC", "0 0 * * *"),

		BrainMode:    envOrDefault("BRAIN_MODE", "auto"),
		BrainHTTPURL: envOrDefault("BRAIN_HTTP_URL", "https://api.openai.com/v1/chat/completions"),
		BrainAPIKey:  stringsTrimSpace("OPENAI_API_KEY"),
		BrainModel:   envOrDefault("BRAIN_MODEL", "gpt-4o-mini"),

		VoiceProvider: envOrDefault("VOICE_PROVIDER", "auto"),
		// Moira's original voice.
		ElevenLabsVoiceID: envOrDefault("ELEVENLABS_TTS_VOICE_ID", "8N2ng9i2uiUWqstgmWlH"),
		ElevenLabsModelID: envOrDefault("ELEVENLABS_TTS_MODEL_ID", "eleven_monolingual_v1"),
		ElevenLabsBaseURL: envOrDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		ElevenLabsAPIKey:  stringsTrimSpace("ELEVENLABS_API_KEY"),

		TranscriberMode: envOrDefault("TRANSCRIBER_MODE", "auto"),
		WhisperAPIURL:   envOrDefault("WHISPER_API_URL", "https://api.openai.com/v1/audio/transcriptions"),
		WhisperAPIKey:   stringsTrimSpace("WHISPER_API_KEY"),
		WhisperModel:    envOrDefault("WHISPER_MODEL", "whisper-1"),
		DatabaseURL:     stringsTrimSpace("DATABASE_URL"),

		ContextWindow:         5,
		NameMatchThreshold:    80,
		KeywordMatchThreshold: 90,
		AudioRetainCount:      10,

		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 30 * time.Minute,
	}

	if cfg.WhisperAPIKey == "" {
		cfg.WhisperAPIKey = cfg.BrainAPIKey
	}
	if names := stringsTrimSpace("APP_PATIENT_NAMES"); names != "" {
		for _, n := range strings.Split(names, ",") {
			if n = strings.TrimSpace(n); n != "" {
				cfg.ExtraPatientNames = append(cfg.ExtraPatientNames, n)
			}
		}
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ContextWindow, err = intFromEnv("APP_CONTEXT_WINDOW", cfg.ContextWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.NameMatchThreshold, err = intFromEnv("APP_NAME_MATCH_THRESHOLD", cfg.NameMatchThreshold)
	if err != nil {
		return Config{}, err
	}
	cfg.KeywordMatchThreshold, err = intFromEnv("APP_KEYWORD_MATCH_THRESHOLD", cfg.KeywordMatchThreshold)
	if err != nil {
		return Config{}, err
	}
	cfg.AudioRetainCount, err = intFromEnv("APP_AUDIO_RETAIN_COUNT", cfg.AudioRetainCount)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.DataDir) == "" {
		return Config{}, fmt.Errorf("APP_DATA_DIR must not be empty")
	}
	if cfg.ContextWindow <= 0 {
		return Config{}, fmt.Errorf("APP_CONTEXT_WINDOW must be positive")
	}
	if cfg.NameMatchThreshold < 0 || cfg.NameMatchThreshold > 100 {
		return Config{}, fmt.Errorf("APP_NAME_MATCH_THRESHOLD must be within 0..100")
	}
	if cfg.KeywordMatchThreshold < 0 || cfg.KeywordMatchThreshold > 100 {
		return Config{}, fmt.Errorf("APP_KEYWORD_MATCH_THRESHOLD must be within 0..100")
	}
	// The audio store keeps at least one file so a fresh reply's URL stays
	// servable; zero would be rewritten to the default and mislead.
	if cfg.AudioRetainCount < 1 {
		return Config{}, fmt.Errorf("APP_AUDIO_RETAIN_COUNT must be positive")
	}
	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
