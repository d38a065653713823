package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// YouTube Innertube API: low-level constants, types and HTTP primitives.
// Caption and audio logic live in youtube_captions.go and youtube_audio.go.

const (
	DefaultWatchBase     = "https://www.youtube.com"
	DefaultInnertubeBase = "https://www.youtube.com/youtubei/v1"

	ytAndroidVersion = "20.10.38"
	ytAndroidUA      = "com.google.android.youtube/" + ytAndroidVersion + " (Linux; U; Android 11) gzip"

	// ytInitialPlayerResponseMarker marks the start of the player response JSON in watch page HTML.
	ytInitialPlayerResponseMarker = "ytInitialPlayerResponse = "

	maxWatchPageBytes = 6 * 1024 * 1024
	maxPlayerBytes    = 3 * 1024 * 1024
)

// Endpoints are the YouTube base URLs a client talks to. Tests point them at httptest servers.
type Endpoints struct {
	WatchBase     string
	InnertubeBase string
}

// DefaultEndpoints are the production YouTube endpoints.
var DefaultEndpoints = Endpoints{
	WatchBase:     DefaultWatchBase,
	InnertubeBase: DefaultInnertubeBase,
}

var (
	// ErrNoCaptions means the video has no caption tracks (or they are disabled).
	ErrNoCaptions = errors.New("no caption tracks")
	// ErrVideoUnavailable means the video is private, removed, region or age restricted.
	ErrVideoUnavailable = errors.New("video unavailable")
	// ErrCaptcha means YouTube answered with a bot check instead of content.
	ErrCaptcha = errors.New("captcha / bot check")
	// ErrNoPlayerResponse means the watch page carried no ytInitialPlayerResponse.
	ErrNoPlayerResponse = errors.New("ytInitialPlayerResponse not found")
)

// --- ANDROID client types (/player endpoint) ---

type innertubeReq struct {
	VideoID        string       `json:"videoId"`
	Context        innertubeCtx `json:"context"`
	RacyCheckOk    bool         `json:"racyCheckOk"`
	ContentCheckOk bool         `json:"contentCheckOk"`
}

type innertubeCtx struct {
	Client innertubeClient `json:"client"`
}

type innertubeClient struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	AndroidSdkVersion int    `json:"androidSdkVersion,omitempty"`
	Hl                string `json:"hl,omitempty"`
	Gl                string `json:"gl,omitempty"`
}

type playerResponse struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	StreamingData *struct {
		AdaptiveFormats []streamFormat `json:"adaptiveFormats"`
	} `json:"streamingData"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

type streamFormat struct {
	Itag            int    `json:"itag"`
	URL             string `json:"url"`
	SignatureCipher string `json:"signatureCipher"`
	MimeType        string `json:"mimeType"`
	Bitrate         int    `json:"bitrate"`
	ContentLength   string `json:"contentLength"`
}

// playability classifies the player response status.
// A nil return means the video is playable.
func (p *playerResponse) playability() error {
	if p.PlayabilityStatus == nil {
		return nil
	}
	st := p.PlayabilityStatus
	switch st.Status {
	case "", "OK":
		return nil
	case "LOGIN_REQUIRED":
		// "Sign in to confirm you're not a bot" is an IP block, not a property of the video.
		if strings.Contains(strings.ToLower(st.Reason), "bot") {
			return fmt.Errorf("%w: %s", ErrCaptcha, st.Reason)
		}
		return fmt.Errorf("%w: %s: %s", ErrVideoUnavailable, st.Status, st.Reason)
	default:
		return fmt.Errorf("%w: %s: %s", ErrVideoUnavailable, st.Status, st.Reason)
	}
}

// innertube performs the low-level YouTube calls shared by captions and audio clients.
type innertube struct {
	http  *http.Client
	ep    Endpoints
	retry engine.RetryConfig
}

// fetchWatchPlayer scrapes the watch page and extracts ytInitialPlayerResponse.
func (it *innertube) fetchWatchPlayer(ctx context.Context, videoID string) (*playerResponse, error) {
	watchURL := strings.TrimRight(it.ep.WatchBase, "/") + "/watch?v=" + videoID

	resp, err := engine.RetryHTTP(ctx, it.retry, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, watchURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.RandomUserAgent())
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		return it.http.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("watch page: HTTP %d: %s", resp.StatusCode, snippet)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxWatchPageBytes))
	if err != nil {
		return nil, fmt.Errorf("parse watch page: %w", err)
	}
	if doc.Find(".g-recaptcha").Length() > 0 {
		return nil, fmt.Errorf("watch page: %w", ErrCaptcha)
	}

	var raw []byte
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		idx := strings.Index(text, ytInitialPlayerResponseMarker)
		if idx < 0 {
			return true
		}
		raw = extractJSON([]byte(text[idx+len(ytInitialPlayerResponseMarker):]))
		return raw == nil
	})
	if raw == nil {
		return nil, ErrNoPlayerResponse
	}

	var pr playerResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return nil, fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return &pr, nil
}

// fetchAndroidPlayer calls the ANDROID Innertube /player endpoint.
// Its streaming URLs are not ciphered, which the audio client relies on.
func (it *innertube) fetchAndroidPlayer(ctx context.Context, videoID string) (*playerResponse, error) {
	reqBody, err := json.Marshal(innertubeReq{
		VideoID: videoID,
		Context: innertubeCtx{
			Client: innertubeClient{
				ClientName:        "ANDROID",
				ClientVersion:     ytAndroidVersion,
				AndroidSdkVersion: 30,
				Hl:                "en",
				Gl:                "US",
			},
		},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	})
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(it.ep.InnertubeBase, "/") + "/player?prettyPrint=false"
	resp, err := engine.RetryHTTP(ctx, it.retry, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", ytAndroidUA)
		req.Header.Set("X-Youtube-Client-Name", "3")
		req.Header.Set("X-Youtube-Client-Version", ytAndroidVersion)
		return it.http.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("android innertube: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("android innertube: HTTP %d: %s", resp.StatusCode, snippet)
	}

	var pr playerResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPlayerBytes)).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode player: %w", err)
	}
	return &pr, nil
}

// extractJSON returns the leading balanced JSON object of b, or nil.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	escaped := false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}
