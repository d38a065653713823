package sources

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// VideoRef is a validated YouTube video identifier.
// The zero value is not a valid reference; use ResolveVideoRef.
type VideoRef struct {
	id string
}

// ID returns the bare video identifier.
func (r VideoRef) ID() string { return r.id }

func (r VideoRef) String() string { return r.id }

// IsZero reports whether r was not produced by ResolveVideoRef.
func (r VideoRef) IsZero() bool { return r.id == "" }

// WatchURL returns the canonical watch page URL.
func (r VideoRef) WatchURL() string { return "https://www.youtube.com/watch?v=" + r.id }

var (
	errUnknownHost = errors.New("not a recognized video host")
	errNoID        = errors.New("no video id in URL")
)

// ResolveVideoRef extracts the video id from a YouTube URL.
//
// Supported shapes:
//
//	https://youtu.be/<id>
//	https://www.youtube.com/watch?v=<id>
//	https://www.youtube.com/embed/<id>
//	https://www.youtube.com/v/<id>
//	https://www.youtube.com/shorts/<id>
//
// Anything else fails with engine.KindInvalidReference.
func ResolveVideoRef(raw string) (VideoRef, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return VideoRef{}, engine.NewError(engine.KindInvalidReference, "resolve", err)
	}

	var id string
	switch strings.ToLower(u.Hostname()) {
	case "youtu.be":
		id = strings.TrimPrefix(u.Path, "/")
	case "youtube.com", "www.youtube.com", "m.youtube.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/embed/"),
			strings.HasPrefix(u.Path, "/v/"),
			strings.HasPrefix(u.Path, "/shorts/"):
			id = strings.Split(u.Path, "/")[2]
		default:
			return VideoRef{}, engine.Errorf(engine.KindInvalidReference, "resolve", "%w: path %q", errNoID, u.Path)
		}
	default:
		return VideoRef{}, engine.Errorf(engine.KindInvalidReference, "resolve", "%w: %q", errUnknownHost, raw)
	}

	if id == "" {
		return VideoRef{}, engine.Errorf(engine.KindInvalidReference, "resolve", "%w: %q", errNoID, raw)
	}
	if !validVideoID(id) {
		return VideoRef{}, engine.Errorf(engine.KindInvalidReference, "resolve", "malformed video id %q", id)
	}
	return VideoRef{id: id}, nil
}

// validVideoID accepts the YouTube id alphabet. Length is not enforced.
func validVideoID(id string) bool {
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// MustVideoRef is ResolveVideoRef for a bare id; it panics on invalid input.
// Intended for tests and constants.
func MustVideoRef(id string) VideoRef {
	if id == "" || !validVideoID(id) {
		panic(fmt.Sprintf("sources: invalid video id %q", id))
	}
	return VideoRef{id: id}
}
