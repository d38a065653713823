// Package acquire turns a video URL into a transcript by trying direct
// captions, relayed captions and audio transcription in that order.
package acquire

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/sources"
)

// CaptionFetcher returns a caption track for the video in one of langs.
type CaptionFetcher interface {
	FetchCaptions(ctx context.Context, ref sources.VideoRef, langs []string) (*sources.TranscriptTrack, error)
}

// AudioRetriever downloads the video's audio to temporary storage.
// On error no file may be left behind.
type AudioRetriever interface {
	DownloadAudio(ctx context.Context, ref sources.VideoRef) (*sources.AudioArtifact, error)
}

// SpeechTranscriber converts an audio artifact to text. It must not delete the artifact.
type SpeechTranscriber interface {
	Transcribe(ctx context.Context, audio *sources.AudioArtifact) (string, error)
}

// Config holds the orchestrator's language preference and per-strategy timeouts.
// Zero durations fall back to DefaultConfig.
type Config struct {
	Languages         []string
	CaptionsTimeout   time.Duration
	ProxyTimeout      time.Duration
	AudioTimeout      time.Duration
	TranscribeTimeout time.Duration
}

// DefaultConfig returns English captions with conservative timeouts.
func DefaultConfig() Config {
	return Config{
		Languages:         []string{"en"},
		CaptionsTimeout:   45 * time.Second,
		ProxyTimeout:      45 * time.Second,
		AudioTimeout:      5 * time.Minute,
		TranscribeTimeout: 5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if len(c.Languages) == 0 {
		c.Languages = d.Languages
	}
	if c.CaptionsTimeout <= 0 {
		c.CaptionsTimeout = d.CaptionsTimeout
	}
	if c.ProxyTimeout <= 0 {
		c.ProxyTimeout = d.ProxyTimeout
	}
	if c.AudioTimeout <= 0 {
		c.AudioTimeout = d.AudioTimeout
	}
	if c.TranscribeTimeout <= 0 {
		c.TranscribeTimeout = d.TranscribeTimeout
	}
	return c
}

// slowAudioPipeline is the warn threshold for download plus transcription.
const slowAudioPipeline = 2 * time.Minute

// Orchestrator runs the acquisition state machine. It holds no per-call
// state and is safe for concurrent use.
type Orchestrator struct {
	cfg         Config
	captions    CaptionFetcher
	proxy       CaptionFetcher
	audio       AudioRetriever
	transcriber SpeechTranscriber
	logger      *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProxy enables the relayed caption strategy.
func WithProxy(f CaptionFetcher) Option {
	return func(o *Orchestrator) { o.proxy = f }
}

// WithAudio enables the audio strategy. Both collaborators are required.
func WithAudio(r AudioRetriever, t SpeechTranscriber) Option {
	return func(o *Orchestrator) {
		o.audio = r
		o.transcriber = t
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an Orchestrator. captions is required; the proxy and audio
// strategies are skipped unless configured through options.
func New(cfg Config, captions CaptionFetcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg.withDefaults(),
		captions: captions,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Languages returns the caption language preference.
func (o *Orchestrator) Languages() []string {
	return append([]string(nil), o.cfg.Languages...)
}

// WithLanguages returns a copy preferring langs. Collaborators are shared.
// An empty langs returns o unchanged.
func (o *Orchestrator) WithLanguages(langs []string) *Orchestrator {
	if len(langs) == 0 {
		return o
	}
	c := *o
	c.cfg.Languages = append([]string(nil), langs...)
	return &c
}

type state int

const (
	stateInit state = iota
	stateCaptions
	stateProxy
	stateAudio
	stateDone
)

// run is the mutable state of a single Acquire call.
type run struct {
	ctx      context.Context
	raw      string
	ref      sources.VideoRef
	attempts []Attempt
	errs     []error

	transcript string
	source     Strategy
	invalid    bool
	canceled   error
}

func (r *run) record(s Strategy, err error) {
	r.attempts = append(r.attempts, Attempt{Strategy: s, Kind: engine.KindOf(err), Message: err.Error()})
	r.errs = append(r.errs, err)
}

func (r *run) succeed(s Strategy, text string) state {
	r.transcript = text
	r.source = s
	return stateDone
}

func (r *run) result() Result {
	res := Result{VideoID: r.ref.ID(), Attempts: r.attempts}
	if r.source != "" {
		res.Transcript = r.transcript
		res.Source = r.source
		return res
	}
	res.Kind = engine.KindAllStrategiesExhausted
	if r.invalid {
		res.Kind = engine.KindInvalidReference
	}
	res.cause = errors.Join(append([]error{r.canceled}, r.errs...)...)
	return res
}

// Acquire resolves rawURL and runs the strategies in order until one yields a
// non-empty transcript. It never panics and always returns exactly one Result.
//
//	Init -> TryCaptions -> TryProxy -> TryAudioPipeline -> Done
//
// Captions absent skips the proxy. A cancelled ctx stops the run before the
// next strategy starts.
func (o *Orchestrator) Acquire(ctx context.Context, rawURL string) Result {
	engine.IncrAcquire()
	r := &run{ctx: ctx, raw: rawURL}

	for st := stateInit; st != stateDone; {
		if st != stateInit && ctx.Err() != nil {
			r.canceled = ctx.Err()
			break
		}
		switch st {
		case stateInit:
			st = o.resolve(r)
		case stateCaptions:
			st = o.tryCaptions(r)
		case stateProxy:
			st = o.tryProxy(r)
		case stateAudio:
			st = o.tryAudio(r)
		}
	}

	res := r.result()
	if res.OK() {
		o.logger.Info("acquire: transcript ready",
			slog.String("id", res.VideoID),
			slog.String("source", string(res.Source)),
			slog.Int("chars", len(res.Transcript)),
			slog.Int("failed_attempts", len(res.Attempts)))
	} else {
		engine.IncrAcquireFailure()
		o.logger.Warn("acquire: failed",
			slog.String("url", rawURL),
			slog.String("kind", string(res.Kind)),
			slog.Int("attempts", len(res.Attempts)),
			slog.Bool("canceled", r.canceled != nil))
	}
	return res
}

func (o *Orchestrator) resolve(r *run) state {
	ref, err := sources.ResolveVideoRef(r.raw)
	if err != nil {
		r.invalid = true
		r.record(StrategyResolve, engine.Reclassify(err, engine.KindInvalidReference, "resolve"))
		return stateDone
	}
	r.ref = ref
	return stateCaptions
}

func (o *Orchestrator) tryCaptions(r *run) state {
	text, err := o.captionText(r.ctx, o.captions, r.ref, o.cfg.CaptionsTimeout, engine.KindNetworkFailure, "captions")
	engine.IncrDirectCaptions(err == nil)
	if err == nil {
		return r.succeed(StrategyDirectCaptions, text)
	}
	o.fail(r, StrategyDirectCaptions, err)

	if engine.KindOf(err) == engine.KindNoCaptionsAvailable {
		return stateAudio
	}
	return stateProxy
}

func (o *Orchestrator) tryProxy(r *run) state {
	if o.proxy == nil {
		o.logger.Debug("acquire: proxy not configured, skipping", slog.String("id", r.ref.ID()))
		return stateAudio
	}
	text, err := o.captionText(r.ctx, o.proxy, r.ref, o.cfg.ProxyTimeout, engine.KindProxyFailure, "proxy captions")
	engine.IncrProxyCaptions(err == nil)
	if err == nil {
		return r.succeed(StrategyProxyCaptions, text)
	}
	o.fail(r, StrategyProxyCaptions, err)
	return stateAudio
}

func (o *Orchestrator) tryAudio(r *run) state {
	if o.audio == nil || o.transcriber == nil {
		o.logger.Debug("acquire: audio pipeline not configured, skipping", slog.String("id", r.ref.ID()))
		return stateDone
	}
	var text string
	err := engine.TrackOperation(r.ctx, "audio_pipeline", slowAudioPipeline, func(ctx context.Context) error {
		var err error
		text, err = o.audioPipeline(ctx, r.ref)
		return err
	})
	if err != nil {
		o.fail(r, StrategySpeech, err)
		return stateDone
	}
	return r.succeed(StrategySpeech, text)
}

func (o *Orchestrator) fail(r *run, s Strategy, err error) {
	r.record(s, err)
	o.logger.Warn("acquire: strategy failed",
		slog.String("id", r.ref.ID()),
		slog.String("strategy", string(s)),
		slog.String("kind", string(engine.KindOf(err))),
		slog.Any("error", err))
}

// captionText runs one caption fetch under its own deadline. Errors are
// tagged kind unless they already report missing captions.
func (o *Orchestrator) captionText(ctx context.Context, f CaptionFetcher, ref sources.VideoRef, timeout time.Duration, kind engine.ErrorKind, op string) (text string, err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	defer recoverAs(&err, kind, op)

	tr, err := f.FetchCaptions(ctx, ref, o.cfg.Languages)
	if err != nil {
		return "", engine.Reclassify(err, kind, op, engine.KindNoCaptionsAvailable)
	}
	if tr == nil {
		return "", engine.Errorf(kind, op, "no track returned")
	}
	if text = tr.Text(); text == "" {
		return "", engine.Errorf(kind, op, "caption track has no text")
	}
	return text, nil
}

// audioPipeline downloads and transcribes. The artifact is removed on every
// return path, including a panic in the transcriber.
func (o *Orchestrator) audioPipeline(ctx context.Context, ref sources.VideoRef) (string, error) {
	audio, err := o.download(ctx, ref)
	if err != nil {
		engine.IncrAudioDownload(false, 0)
		return "", err
	}
	engine.IncrAudioDownload(true, audio.Size)
	defer o.release(audio)

	text, err := o.transcribe(ctx, audio)
	engine.IncrTranscription(err == nil)
	return text, err
}

func (o *Orchestrator) download(ctx context.Context, ref sources.VideoRef) (audio *sources.AudioArtifact, err error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.AudioTimeout)
	defer cancel()
	defer recoverAs(&err, engine.KindAudioDownloadFailure, "audio")

	audio, err = o.audio.DownloadAudio(ctx, ref)
	if err != nil {
		o.release(audio)
		return nil, engine.Reclassify(err, engine.KindAudioDownloadFailure, "audio")
	}
	if audio == nil {
		return nil, engine.Errorf(engine.KindAudioDownloadFailure, "audio", "no artifact returned")
	}
	return audio, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, audio *sources.AudioArtifact) (text string, err error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.TranscribeTimeout)
	defer cancel()
	defer recoverAs(&err, engine.KindTranscriptionFailure, "transcribe")

	text, err = o.transcriber.Transcribe(ctx, audio)
	if err != nil {
		return "", engine.Reclassify(err, engine.KindTranscriptionFailure, "transcribe")
	}
	if text = strings.TrimSpace(text); text == "" {
		return "", engine.Errorf(engine.KindTranscriptionFailure, "transcribe", "empty transcript")
	}
	return text, nil
}

func (o *Orchestrator) release(audio *sources.AudioArtifact) {
	if audio == nil {
		return
	}
	if err := audio.Remove(); err != nil {
		o.logger.Warn("acquire: audio cleanup failed", slog.String("path", audio.Path), slog.Any("error", err))
	}
}

// recoverAs converts a panic in a collaborator into an error of kind.
// It must be deferred directly.
func recoverAs(err *error, kind engine.ErrorKind, op string) {
	if p := recover(); p != nil {
		*err = engine.Errorf(kind, op, "panic: %v", p)
	}
}
