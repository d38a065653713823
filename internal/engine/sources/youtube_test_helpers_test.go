package sources

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// fakeYouTube serves a watch page, the ANDROID /player endpoint, timedtext and
// media URLs from one httptest server. Zero-value fields mean "default behavior".
type fakeYouTube struct {
	srv *httptest.Server

	// player is the player response JSON embedded in the watch page and returned by /player.
	// "%[1]s" is replaced with the server base URL.
	player string
	// noScript drops the ytInitialPlayerResponse script from the watch page.
	noScript    bool
	captcha     bool
	watchStatus int
	timedtext   string
	media       []byte
	mediaStatus int

	watchHits  atomic.Int32
	playerHits atomic.Int32
	mediaHits  atomic.Int32
}

func newFakeYouTube(t *testing.T, f *fakeYouTube) *fakeYouTube {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		f.watchHits.Add(1)
		if f.watchStatus != 0 {
			w.WriteHeader(f.watchStatus)
			return
		}
		var sb strings.Builder
		sb.WriteString("<html><head><title>video</title></head><body>")
		if f.captcha {
			sb.WriteString(`<form><div class="g-recaptcha" data-sitekey="x"></div></form>`)
		}
		sb.WriteString("<script>var ytcfg = {};</script>")
		if !f.noScript && !f.captcha {
			sb.WriteString("<script>var ytInitialPlayerResponse = ")
			sb.WriteString(f.playerJSON())
			sb.WriteString(";var meta = {};</script>")
		}
		sb.WriteString("</body></html>")
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, sb.String())
	})
	mux.HandleFunc("/youtubei/v1/player", func(w http.ResponseWriter, r *http.Request) {
		f.playerHits.Add(1)
		var req innertubeReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.VideoID == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, f.playerJSON())
	})
	mux.HandleFunc("/api/timedtext", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		fmt.Fprint(w, f.timedtext)
	})
	mux.HandleFunc("/videoplayback", func(w http.ResponseWriter, r *http.Request) {
		f.mediaHits.Add(1)
		if f.mediaStatus != 0 {
			w.WriteHeader(f.mediaStatus)
			return
		}
		w.Header().Set("Content-Type", "audio/mp4")
		w.Write(f.media)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeYouTube) playerJSON() string {
	if !strings.Contains(f.player, "%[1]s") {
		return f.player
	}
	return fmt.Sprintf(f.player, f.srv.URL)
}

func (f *fakeYouTube) endpoints() Endpoints {
	return Endpoints{WatchBase: f.srv.URL, InnertubeBase: f.srv.URL + "/youtubei/v1"}
}

func (f *fakeYouTube) captionClient(opts ...CaptionOption) *CaptionClient {
	opts = append([]CaptionOption{WithEndpoints(f.endpoints()), WithRetry(engine.NoRetry)}, opts...)
	return NewCaptionClient(f.srv.Client(), opts...)
}

const playerWithEnglish = `{
  "playabilityStatus": {"status": "OK"},
  "captions": {"playerCaptionsTracklistRenderer": {"captionTracks": [
    {"baseUrl": "%[1]s/api/timedtext?v=abc123&lang=de", "languageCode": "de", "kind": ""},
    {"baseUrl": "%[1]s/api/timedtext?v=abc123&lang=en", "languageCode": "en", "kind": ""},
    {"baseUrl": "%[1]s/api/timedtext?v=abc123&lang=en&kind=asr", "languageCode": "en", "kind": "asr"}
  ]}}
}`

const playerNoCaptions = `{"playabilityStatus": {"status": "OK"}}`

const timedTextHelloWorld = `<?xml version="1.0" encoding="utf-8" ?><transcript>` +
	`<text start="0.5" dur="1.2">hello</text>` +
	`<text start="1.7" dur="0.8">world</text>` +
	`</transcript>`
