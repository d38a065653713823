package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// OpenAI-compatible transcription defaults (Groq).
const (
	DefaultWhisperAPIBase = "https://api.groq.com/openai/v1"
	DefaultWhisperModel   = "whisper-large-v3"

	maxWhisperRespBytes = 8 * 1024 * 1024
	errBodySnippet      = 300
)

// WhisperClient submits audio to an OpenAI-compatible /audio/transcriptions endpoint.
type WhisperClient struct {
	http     *http.Client
	base     string
	apiKey   string
	model    string
	language string
	logger   *slog.Logger
}

// NewWhisperClient creates a transcriber. Empty base and model fall back to the Groq defaults.
// language is an optional ISO-639-1 hint; pass "" to let the service detect it.
func NewWhisperClient(hc *http.Client, base, apiKey, model, language string) *WhisperClient {
	if base == "" {
		base = DefaultWhisperAPIBase
	}
	if model == "" {
		model = DefaultWhisperModel
	}
	return &WhisperClient{
		http:     hc,
		base:     strings.TrimRight(base, "/"),
		apiKey:   apiKey,
		model:    model,
		language: language,
		logger:   slog.Default(),
	}
}

type whisperResponse struct {
	Text  *string `json:"text"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Transcribe uploads the artifact and returns the recognized text.
// The artifact is left in place.
func (c *WhisperClient) Transcribe(ctx context.Context, audio *AudioArtifact) (string, error) {
	if audio == nil || audio.Path == "" {
		return "", engine.Errorf(engine.KindTranscriptionFailure, "transcribe", "no audio")
	}
	f, err := os.Open(audio.Path)
	if err != nil {
		return "", engine.Errorf(engine.KindTranscriptionFailure, "transcribe", "open audio: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(c.writeForm(mw, f, filepath.Base(audio.Path)))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/audio/transcriptions", pr)
	if err != nil {
		pr.Close()
		return "", engine.NewError(engine.KindTranscriptionFailure, "transcribe", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", engine.UserAgentBot)

	resp, err := c.http.Do(req)
	if err != nil {
		pr.Close()
		return "", engine.Errorf(engine.KindTranscriptionFailure, "transcribe", "request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWhisperRespBytes))
	if err != nil {
		return "", engine.Errorf(engine.KindTranscriptionFailure, "transcribe", "read response: %w", err)
	}
	snippet := engine.TruncateRunes(strings.TrimSpace(string(body)), errBodySnippet, "...")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", engine.Errorf(engine.KindTranscriptionFailure, "transcribe", "HTTP %d: %s", resp.StatusCode, snippet)
	}

	var wr whisperResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return "", engine.Errorf(engine.KindTranscriptionFailure, "transcribe", "HTTP %d: decode: %v: %s", resp.StatusCode, err, snippet)
	}
	if wr.Error != nil && wr.Error.Message != "" {
		return "", engine.Errorf(engine.KindTranscriptionFailure, "transcribe", "HTTP %d: %s", resp.StatusCode, wr.Error.Message)
	}
	if wr.Text == nil {
		return "", engine.Errorf(engine.KindTranscriptionFailure, "transcribe", "HTTP %d: response has no text field: %s", resp.StatusCode, snippet)
	}
	text := strings.TrimSpace(*wr.Text)
	if text == "" {
		return "", engine.Errorf(engine.KindTranscriptionFailure, "transcribe", "HTTP %d: empty text: %s", resp.StatusCode, snippet)
	}

	c.logger.Debug("whisper: transcribed",
		slog.String("model", c.model),
		slog.Int64("audio_bytes", audio.Size),
		slog.Int("chars", len(text)))
	return text, nil
}

func (c *WhisperClient) writeForm(mw *multipart.Writer, audio io.Reader, filename string) error {
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return fmt.Errorf("copy audio: %w", err)
	}
	fields := [][2]string{
		{"model", c.model},
		{"response_format", "json"},
	}
	if c.language != "" {
		fields = append(fields, [2]string{"language", c.language})
	}
	for _, kv := range fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return err
		}
	}
	return mw.Close()
}
