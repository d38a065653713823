package engine

import (
	"net/url"
	"time"

	"github.com/anatolykoptev/go-kit/env"
)

// Config holds all engine configuration, injected from main.
// Nothing below internal/engine reads the environment directly.
type Config struct {
	Languages []string

	CaptionsTimeout   time.Duration
	ProxyTimeout      time.Duration
	AudioTimeout      time.Duration
	TranscribeTimeout time.Duration

	// Relay used by the proxy caption fetcher; empty = proxy strategy disabled.
	ProxyURL      string
	ProxyUsername string
	ProxyPassword string

	WhisperAPIKey  string
	WhisperAPIBase string
	WhisperModel   string

	AudioBackend string // "innertube" or "ytdlp"
	YtDlpBin     string
	AudioTempDir string

	CaptionsRPS float64 // 0 = unlimited

	RedisURL             string
	CacheTTL             time.Duration
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration

	HistoryDSN string
}

// Audio backends.
const (
	AudioBackendInnertube = "innertube"
	AudioBackendYtDlp     = "ytdlp"
)

// LoadConfig reads Config from the process environment.
func LoadConfig() Config {
	return Config{
		Languages:            env.List("TRANSCRIPT_LANGS", "en"),
		CaptionsTimeout:      env.Duration("CAPTIONS_TIMEOUT", 45*time.Second),
		ProxyTimeout:         env.Duration("PROXY_TIMEOUT", 45*time.Second),
		AudioTimeout:         env.Duration("AUDIO_TIMEOUT", 5*time.Minute),
		TranscribeTimeout:    env.Duration("TRANSCRIBE_TIMEOUT", 5*time.Minute),
		ProxyURL:             env.Str("PROXY_URL", ""),
		ProxyUsername:        env.Str("PROXY_USERNAME", ""),
		ProxyPassword:        env.Str("PROXY_PASSWORD", ""),
		WhisperAPIKey:        env.Str("WHISPER_API_KEY", env.Str("GROQ_API_KEY", "")),
		WhisperAPIBase:       env.Str("WHISPER_API_BASE", "https://api.groq.com/openai/v1"),
		WhisperModel:         env.Str("WHISPER_MODEL", "whisper-large-v3"),
		AudioBackend:         env.Str("AUDIO_BACKEND", AudioBackendInnertube),
		YtDlpBin:             env.Str("YTDLP_BIN", "yt-dlp"),
		AudioTempDir:         env.Str("AUDIO_TEMP_DIR", ""),
		CaptionsRPS:          env.Float("CAPTIONS_RPS", 0),
		RedisURL:             env.Str("REDIS_URL", ""),
		CacheTTL:             env.Duration("CACHE_TTL", 6*time.Hour),
		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 500),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 5*time.Minute),
		HistoryDSN:           env.Str("HISTORY_DSN", ""),
	}
}

// ProxyEndpoint returns the relay URL with credentials injected,
// or nil when no relay is configured.
func (c Config) ProxyEndpoint() (*url.URL, error) {
	if c.ProxyURL == "" {
		return nil, nil
	}
	u, err := url.Parse(c.ProxyURL)
	if err != nil {
		return nil, err
	}
	if c.ProxyUsername != "" {
		u.User = url.UserPassword(c.ProxyUsername, c.ProxyPassword)
	}
	return u, nil
}
