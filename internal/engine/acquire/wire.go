package acquire

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/sources"
)

// NewFromConfig builds an Orchestrator with real collaborators.
// The proxy strategy is enabled when cfg.ProxyURL is set and the audio
// strategy when a transcription API key is present.
func NewFromConfig(cfg engine.Config, opts ...Option) (*Orchestrator, error) {
	acfg := Config{
		Languages:         cfg.Languages,
		CaptionsTimeout:   cfg.CaptionsTimeout,
		ProxyTimeout:      cfg.ProxyTimeout,
		AudioTimeout:      cfg.AudioTimeout,
		TranscribeTimeout: cfg.TranscribeTimeout,
	}.withDefaults()

	limiter := engine.NewLimiter(cfg.CaptionsRPS)
	direct, err := engine.NewHTTPClient(engine.ClientOptions{Timeout: acfg.CaptionsTimeout, Limiter: limiter})
	if err != nil {
		return nil, fmt.Errorf("captions client: %w", err)
	}
	var all []Option

	ep, err := cfg.ProxyEndpoint()
	if err != nil {
		return nil, fmt.Errorf("proxy url: %w", err)
	}
	if ep != nil {
		relayed, err := engine.NewHTTPClient(engine.ClientOptions{Timeout: acfg.ProxyTimeout, Proxy: ep, Limiter: limiter})
		if err != nil {
			return nil, fmt.Errorf("proxy client: %w", err)
		}
		all = append(all, WithProxy(sources.NewProxyCaptionClient(relayed)))
		slog.Info("acquire: proxy relay enabled", slog.String("scheme", ep.Scheme), slog.String("host", ep.Host))
	}

	if cfg.WhisperAPIKey != "" {
		retriever, err := newAudioRetriever(cfg, acfg)
		if err != nil {
			return nil, err
		}
		transcriber := sources.NewWhisperClient(&http.Client{Timeout: acfg.TranscribeTimeout},
			cfg.WhisperAPIBase, cfg.WhisperAPIKey, cfg.WhisperModel, "")
		all = append(all, WithAudio(retriever, transcriber))
		slog.Info("acquire: audio pipeline enabled",
			slog.String("backend", cfg.AudioBackend),
			slog.String("model", cfg.WhisperModel))
	} else {
		slog.Warn("acquire: no transcription API key, audio pipeline disabled")
	}

	return New(acfg, sources.NewCaptionClient(direct), append(all, opts...)...), nil
}

func newAudioRetriever(cfg engine.Config, acfg Config) (AudioRetriever, error) {
	switch cfg.AudioBackend {
	case engine.AudioBackendYtDlp:
		return sources.NewYtDlpAudio(cfg.YtDlpBin, cfg.AudioTempDir), nil
	case engine.AudioBackendInnertube, "":
		hc, err := engine.NewHTTPClient(engine.ClientOptions{Timeout: acfg.AudioTimeout})
		if err != nil {
			return nil, fmt.Errorf("audio client: %w", err)
		}
		var opts []sources.AudioOption
		if cfg.AudioTempDir != "" {
			opts = append(opts, sources.WithAudioDir(cfg.AudioTempDir))
		}
		return sources.NewAudioClient(hc, opts...), nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", cfg.AudioBackend)
	}
}
