package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// DefaultMaxAudioBytes caps a single audio download.
const DefaultMaxAudioBytes int64 = 200 * 1024 * 1024

// ErrNoAudioStream means the player response listed no downloadable audio-only format.
var ErrNoAudioStream = errors.New("no audio-only stream with a direct URL")

// AudioArtifact is a downloaded audio file in temporary storage.
// The caller owns it and must call Remove.
type AudioArtifact struct {
	Path     string
	Size     int64
	MimeType string
}

// Remove deletes the file. Calling it more than once, or on a file that
// is already gone, is not an error.
func (a *AudioArtifact) Remove() error {
	if a == nil || a.Path == "" {
		return nil
	}
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// AudioClient downloads the best audio-only stream advertised by the ANDROID
// Innertube player.
type AudioClient struct {
	it       innertube
	dir      string
	maxBytes int64
	logger   *slog.Logger
}

// AudioOption configures an AudioClient.
type AudioOption func(*AudioClient)

// WithAudioEndpoints overrides the YouTube base URLs.
func WithAudioEndpoints(ep Endpoints) AudioOption {
	return func(c *AudioClient) { c.it.ep = ep }
}

// WithAudioDir sets the directory temporary audio files are written to.
func WithAudioDir(dir string) AudioOption {
	return func(c *AudioClient) { c.dir = dir }
}

// WithMaxAudioBytes caps the download size.
func WithMaxAudioBytes(n int64) AudioOption {
	return func(c *AudioClient) { c.maxBytes = n }
}

// WithAudioLogger sets the logger.
func WithAudioLogger(l *slog.Logger) AudioOption {
	return func(c *AudioClient) { c.logger = l }
}

// NewAudioClient creates an audio retriever backed by hc.
// The player lookup is retried; the media transfer is not.
func NewAudioClient(hc *http.Client, opts ...AudioOption) *AudioClient {
	c := &AudioClient{
		it:       innertube{http: hc, ep: DefaultEndpoints, retry: engine.DefaultRetryConfig},
		dir:      os.TempDir(),
		maxBytes: DefaultMaxAudioBytes,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// DownloadAudio selects the highest-bitrate audio-only stream and writes it
// to a uniquely named file. On any failure no file is left behind.
func (c *AudioClient) DownloadAudio(ctx context.Context, ref VideoRef) (*AudioArtifact, error) {
	pr, err := c.it.fetchAndroidPlayer(ctx, ref.ID())
	if err != nil {
		return nil, engine.NewError(engine.KindAudioDownloadFailure, "audio", err)
	}
	if err := pr.playability(); err != nil {
		return nil, engine.NewError(engine.KindAudioDownloadFailure, "audio", err)
	}
	format, ok := pickAudioFormat(pr)
	if !ok {
		return nil, engine.NewError(engine.KindAudioDownloadFailure, "audio", ErrNoAudioStream)
	}

	c.logger.Debug("youtube: audio stream selected",
		slog.String("id", ref.ID()),
		slog.Int("itag", format.Itag),
		slog.String("mime", format.MimeType),
		slog.Int("bitrate", format.Bitrate))

	a, err := c.download(ctx, format)
	if err != nil {
		return nil, engine.NewError(engine.KindAudioDownloadFailure, "audio", err)
	}
	return a, nil
}

// pickAudioFormat returns the audio/* format with the highest bitrate that
// carries a plain URL. Ciphered formats are skipped.
func pickAudioFormat(pr *playerResponse) (streamFormat, bool) {
	var best streamFormat
	found := false
	if pr.StreamingData == nil {
		return best, false
	}
	for _, f := range pr.StreamingData.AdaptiveFormats {
		if !strings.HasPrefix(f.MimeType, "audio/") || f.URL == "" {
			continue
		}
		if !found || f.Bitrate > best.Bitrate {
			best = f
			found = true
		}
	}
	return best, found
}

func (c *AudioClient) download(ctx context.Context, f streamFormat) (*AudioArtifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", ytAndroidUA)

	resp, err := c.it.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch audio: HTTP %d", resp.StatusCode)
	}

	mediaType := baseMediaType(f.MimeType)
	path, file, err := createTempAudio(c.dir, audioExt(mediaType))
	if err != nil {
		return nil, err
	}

	n, copyErr := io.Copy(file, io.LimitReader(resp.Body, c.maxBytes+1))
	closeErr := file.Close()
	switch {
	case copyErr != nil:
		err = fmt.Errorf("write audio: %w", copyErr)
	case closeErr != nil:
		err = fmt.Errorf("close audio: %w", closeErr)
	case n > c.maxBytes:
		err = fmt.Errorf("audio exceeds %d bytes", c.maxBytes)
	case n == 0:
		err = errors.New("empty audio stream")
	}
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	return &AudioArtifact{Path: path, Size: n, MimeType: mediaType}, nil
}

// createTempAudio opens <dir>/audio-<uuid><ext> exclusively.
func createTempAudio(dir, ext string) (string, *os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("audio dir: %w", err)
	}
	path := filepath.Join(dir, "audio-"+uuid.NewString()+ext)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", nil, fmt.Errorf("create audio file: %w", err)
	}
	return path, f, nil
}

func baseMediaType(mimeType string) string {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	}
	return mt
}

func audioExt(mediaType string) string {
	switch mediaType {
	case "audio/mp4", "audio/m4a":
		return ".m4a"
	case "audio/webm":
		return ".webm"
	case "audio/mpeg":
		return ".mp3"
	case "audio/ogg":
		return ".ogg"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	}
	return ".bin"
}
