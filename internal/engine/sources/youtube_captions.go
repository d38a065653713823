package sources

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

const maxTimedTextBytes = 4 * 1024 * 1024

// TrackInfo describes one caption track as listed by YouTube.
type TrackInfo struct {
	LanguageCode  string
	AutoGenerated bool
	BaseURL       string
}

// CaptionEntry is a single timed caption line.
type CaptionEntry struct {
	Text     string
	Start    time.Duration
	Duration time.Duration
}

// TranscriptTrack is a fetched caption track.
type TranscriptTrack struct {
	LanguageCode  string
	AutoGenerated bool
	Entries       []CaptionEntry
}

// Text renders the track as plain text: cleaned entries joined by single spaces.
func (t *TranscriptTrack) Text() string {
	var sb strings.Builder
	for _, e := range t.Entries {
		text := engine.CleanHTML(e.Text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
	}
	return sb.String()
}

// CaptionClient lists and fetches YouTube caption tracks.
// The same type backs both the direct and the proxied fetcher; only the
// underlying *http.Client and the failure kind differ.
type CaptionClient struct {
	it       innertube
	failKind engine.ErrorKind
	op       string
	logger   *slog.Logger
}

// CaptionOption configures a CaptionClient.
type CaptionOption func(*CaptionClient)

// WithEndpoints overrides the YouTube base URLs.
func WithEndpoints(ep Endpoints) CaptionOption {
	return func(c *CaptionClient) { c.it.ep = ep }
}

// WithRetry overrides the retry policy for caption calls.
func WithRetry(rc engine.RetryConfig) CaptionOption {
	return func(c *CaptionClient) { c.it.retry = rc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) CaptionOption {
	return func(c *CaptionClient) { c.logger = l }
}

// NewCaptionClient creates the direct caption fetcher.
// Transport-level failures are reported as engine.KindNetworkFailure.
func NewCaptionClient(hc *http.Client, opts ...CaptionOption) *CaptionClient {
	return newCaptionClient(hc, engine.KindNetworkFailure, "captions", opts)
}

// NewProxyCaptionClient creates the relay fetcher. hc must route through the proxy
// (see engine.NewHTTPClient). Relay failures are reported as engine.KindProxyFailure.
func NewProxyCaptionClient(hc *http.Client, opts ...CaptionOption) *CaptionClient {
	return newCaptionClient(hc, engine.KindProxyFailure, "proxy captions", opts)
}

func newCaptionClient(hc *http.Client, kind engine.ErrorKind, op string, opts []CaptionOption) *CaptionClient {
	c := &CaptionClient{
		it:       innertube{http: hc, ep: DefaultEndpoints, retry: engine.DefaultRetryConfig},
		failKind: kind,
		op:       op,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// classify maps a low-level error onto the error taxonomy.
// Content absence is NoCaptionsAvailable; everything else is the client's failure kind.
func (c *CaptionClient) classify(err error) error {
	if err == nil {
		return nil
	}
	if engine.KindOf(err) != "" {
		return err
	}
	if errors.Is(err, ErrNoCaptions) || errors.Is(err, ErrVideoUnavailable) {
		return engine.NewError(engine.KindNoCaptionsAvailable, c.op, err)
	}
	return engine.NewError(c.failKind, c.op, err)
}

// ListTracks returns the caption tracks YouTube advertises for the video.
// The watch page is tried first; the ANDROID player is used when the page
// carries no player response.
func (c *CaptionClient) ListTracks(ctx context.Context, ref VideoRef) ([]TrackInfo, error) {
	pr, err := c.it.fetchWatchPlayer(ctx, ref.ID())
	if errors.Is(err, ErrNoPlayerResponse) {
		c.logger.Warn("youtube: no player response in watch page, trying android player",
			slog.String("id", ref.ID()))
		pr, err = c.it.fetchAndroidPlayer(ctx, ref.ID())
	}
	if err != nil {
		return nil, c.classify(err)
	}
	if err := pr.playability(); err != nil {
		return nil, c.classify(err)
	}
	if pr.Captions == nil {
		return nil, c.classify(fmt.Errorf("%w: captions disabled", ErrNoCaptions))
	}

	raw := pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	tracks := make([]TrackInfo, 0, len(raw))
	for _, t := range raw {
		if t.BaseURL == "" || needsPoToken(t.BaseURL) {
			continue
		}
		tracks = append(tracks, TrackInfo{
			LanguageCode:  t.LanguageCode,
			AutoGenerated: t.Kind == "asr",
			BaseURL:       t.BaseURL,
		})
	}
	if len(tracks) == 0 {
		if len(raw) > 0 {
			return nil, c.classify(errors.New("all caption tracks require PoToken"))
		}
		return nil, c.classify(ErrNoCaptions)
	}
	return tracks, nil
}

// needsPoToken reports whether a caption track URL requires a PoToken (browser-only).
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// SelectTrack picks a track by language preference:
//  1. human-authored track in the first matching preferred language
//  2. auto-generated track in the first matching preferred language
//  3. any auto-generated track
//
// Language codes compare case-insensitively ("pt-br" matches "pt-BR").
// Human-authored tracks outside the preference list are never chosen.
func SelectTrack(tracks []TrackInfo, langs []string) (TrackInfo, bool) {
	for _, lang := range langs {
		for _, t := range tracks {
			if !t.AutoGenerated && strings.EqualFold(t.LanguageCode, lang) {
				return t, true
			}
		}
	}
	for _, lang := range langs {
		for _, t := range tracks {
			if t.AutoGenerated && strings.EqualFold(t.LanguageCode, lang) {
				return t, true
			}
		}
	}
	for _, t := range tracks {
		if t.AutoGenerated {
			return t, true
		}
	}
	return TrackInfo{}, false
}

// --- Timedtext XML types ---

// timedText covers both the legacy <transcript><text start dur> format
// and srv3 <timedtext><body><p t d> (milliseconds).
type timedText struct {
	Lines []struct {
		Text  string  `xml:",chardata"`
		Start float64 `xml:"start,attr"`
		Dur   float64 `xml:"dur,attr"`
	} `xml:"text"`
	Paras []struct {
		Text string `xml:",innerxml"`
		T    int64  `xml:"t,attr"`
		D    int64  `xml:"d,attr"`
	} `xml:"body>p"`
}

func seconds(f float64) time.Duration { return time.Duration(f * float64(time.Second)) }

// FetchTrack downloads and parses one caption track.
func (c *CaptionClient) FetchTrack(ctx context.Context, track TrackInfo) (*TranscriptTrack, error) {
	resp, err := engine.RetryHTTP(ctx, c.it.retry, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, track.BaseURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.UserAgentChrome)
		return c.it.http.Do(req)
	})
	if err != nil {
		return nil, c.classify(fmt.Errorf("fetch timedtext: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.classify(fmt.Errorf("fetch timedtext: HTTP %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTimedTextBytes))
	if err != nil {
		return nil, c.classify(fmt.Errorf("read timedtext: %w", err))
	}
	// An empty 200 is how YouTube answers throttled or token-less clients.
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, c.classify(errors.New("empty timedtext response"))
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, c.classify(fmt.Errorf("parse timedtext XML: %w", err))
	}

	out := &TranscriptTrack{LanguageCode: track.LanguageCode, AutoGenerated: track.AutoGenerated}
	for _, l := range tt.Lines {
		out.Entries = append(out.Entries, CaptionEntry{Text: l.Text, Start: seconds(l.Start), Duration: seconds(l.Dur)})
	}
	for _, p := range tt.Paras {
		out.Entries = append(out.Entries, CaptionEntry{
			Text:     p.Text,
			Start:    time.Duration(p.T) * time.Millisecond,
			Duration: time.Duration(p.D) * time.Millisecond,
		})
	}
	return out, nil
}

// FetchCaptions lists the video's tracks, selects one by language preference
// and fetches it. The returned track always renders to non-empty text.
func (c *CaptionClient) FetchCaptions(ctx context.Context, ref VideoRef, langs []string) (*TranscriptTrack, error) {
	tracks, err := c.ListTracks(ctx, ref)
	if err != nil {
		return nil, err
	}
	track, ok := SelectTrack(tracks, langs)
	if !ok {
		return nil, c.classify(fmt.Errorf("%w: none matching %v and no auto-generated track", ErrNoCaptions, langs))
	}
	c.logger.Debug("youtube: caption track selected",
		slog.String("id", ref.ID()),
		slog.String("lang", track.LanguageCode),
		slog.Bool("auto", track.AutoGenerated))

	tr, err := c.FetchTrack(ctx, track)
	if err != nil {
		return nil, err
	}
	if tr.Text() == "" {
		return nil, c.classify(errors.New("caption track has no text"))
	}
	return tr, nil
}
