package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	AcquireRequests      atomic.Int64
	AcquireFailures      atomic.Int64
	DirectCaptionsOK     atomic.Int64
	DirectCaptionsErrors atomic.Int64
	ProxyCaptionsOK      atomic.Int64
	ProxyCaptionsErrors  atomic.Int64
	AudioDownloads       atomic.Int64
	AudioDownloadErrors  atomic.Int64
	AudioBytes           atomic.Int64
	Transcriptions       atomic.Int64
	TranscriptionErrors  atomic.Int64
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"acquire_requests":       metrics.AcquireRequests.Load(),
		"acquire_failures":       metrics.AcquireFailures.Load(),
		"direct_captions_ok":     metrics.DirectCaptionsOK.Load(),
		"direct_captions_errors": metrics.DirectCaptionsErrors.Load(),
		"proxy_captions_ok":      metrics.ProxyCaptionsOK.Load(),
		"proxy_captions_errors":  metrics.ProxyCaptionsErrors.Load(),
		"audio_downloads":        metrics.AudioDownloads.Load(),
		"audio_download_errors":  metrics.AudioDownloadErrors.Load(),
		"audio_bytes":            metrics.AudioBytes.Load(),
		"transcriptions":         metrics.Transcriptions.Load(),
		"transcription_errors":   metrics.TranscriptionErrors.Load(),
		"cache_hits":             hits,
		"cache_misses":           misses,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"acquire_requests", "acquire_failures",
		"direct_captions_ok", "direct_captions_errors",
		"proxy_captions_ok", "proxy_captions_errors",
		"audio_downloads", "audio_download_errors", "audio_bytes",
		"transcriptions", "transcription_errors",
		"cache_hits", "cache_misses",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for the acquire sub-package.
func IncrAcquire()        { metrics.AcquireRequests.Add(1) }
func IncrAcquireFailure() { metrics.AcquireFailures.Add(1) }

func IncrDirectCaptions(ok bool) {
	if ok {
		metrics.DirectCaptionsOK.Add(1)
		return
	}
	metrics.DirectCaptionsErrors.Add(1)
}

func IncrProxyCaptions(ok bool) {
	if ok {
		metrics.ProxyCaptionsOK.Add(1)
		return
	}
	metrics.ProxyCaptionsErrors.Add(1)
}

// IncrAudioDownload counts a download attempt; size is added on success.
func IncrAudioDownload(ok bool, size int64) {
	if !ok {
		metrics.AudioDownloadErrors.Add(1)
		return
	}
	metrics.AudioDownloads.Add(1)
	metrics.AudioBytes.Add(size)
}

func IncrTranscription(ok bool) {
	if ok {
		metrics.Transcriptions.Add(1)
		return
	}
	metrics.TranscriptionErrors.Add(1)
}

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, threshold time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > threshold {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
