package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// DefaultYtDlpBin is the yt-dlp executable looked up in PATH.
const DefaultYtDlpBin = "yt-dlp"

// CommandRunner runs an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput() //nolint:gosec
}

// YtDlpAudio retrieves audio by shelling out to yt-dlp. It copes with
// ciphered streams the Innertube backend has to skip.
type YtDlpAudio struct {
	bin    string
	dir    string
	run    CommandRunner
	logger *slog.Logger
}

// NewYtDlpAudio creates a yt-dlp backed audio retriever writing into dir.
func NewYtDlpAudio(bin, dir string) *YtDlpAudio {
	if bin == "" {
		bin = DefaultYtDlpBin
	}
	if dir == "" {
		dir = os.TempDir()
	}
	return &YtDlpAudio{bin: bin, dir: dir, run: execRunner, logger: slog.Default()}
}

// WithCommandRunner replaces exec (for testing).
func (y *YtDlpAudio) WithCommandRunner(run CommandRunner) *YtDlpAudio {
	y.run = run
	return y
}

// DownloadAudio runs `yt-dlp -f bestaudio` into <dir>/audio-<uuid>.<ext>.
func (y *YtDlpAudio) DownloadAudio(ctx context.Context, ref VideoRef) (*AudioArtifact, error) {
	if err := os.MkdirAll(y.dir, 0o755); err != nil {
		return nil, engine.Errorf(engine.KindAudioDownloadFailure, "audio", "audio dir: %w", err)
	}
	base := filepath.Join(y.dir, "audio-"+uuid.NewString())

	a, err := y.download(ctx, ref, base)
	if err != nil {
		cleanGlob(base + ".*")
		return nil, engine.NewError(engine.KindAudioDownloadFailure, "audio", err)
	}
	// Only the artifact survives; release removes it later.
	cleanGlob(base+".*", a.Path)
	return a, nil
}

func (y *YtDlpAudio) download(ctx context.Context, ref VideoRef, base string) (*AudioArtifact, error) {
	out, err := y.run(ctx, y.bin,
		"-f", "bestaudio",
		"--ignore-config",
		"--no-progress",
		"--no-playlist",
		"--output", base+".%(ext)s",
		ref.WatchURL(),
	)
	if err != nil {
		// yt-dlp reports most errors on stdout.
		return nil, fmt.Errorf("yt-dlp: %w: %s", err, engine.TruncateRunes(strings.TrimSpace(string(out)), 500, "..."))
	}

	matches, err := filepath.Glob(base + ".*")
	if err != nil {
		return nil, err
	}
	var path string
	for _, m := range matches {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		path = m
		break
	}
	if path == "" {
		return nil, errors.New("yt-dlp produced no output file")
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, errors.New("yt-dlp produced an empty file")
	}

	mt := mime.TypeByExtension(filepath.Ext(path))
	if mt == "" {
		mt = "application/octet-stream"
	}
	y.logger.Debug("yt-dlp: audio downloaded",
		slog.String("id", ref.ID()),
		slog.String("path", path),
		slog.Int64("size", info.Size()))
	return &AudioArtifact{Path: path, Size: info.Size(), MimeType: baseMediaType(mt)}, nil
}

// cleanGlob removes every file matching pattern except keep.
func cleanGlob(pattern string, keep ...string) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return
	}
	for _, m := range matches {
		if slices.Contains(keep, m) {
			continue
		}
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("yt-dlp: cleanup failed", slog.String("path", m), slog.Any("error", err))
		}
	}
}
