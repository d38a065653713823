package sources

import (
	"testing"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

func TestResolveVideoRef(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"short link", "https://youtu.be/abc123", "abc123"},
		{"short link with query", "https://youtu.be/dQw4w9WgXcQ?t=42", "dQw4w9WgXcQ"},
		{"watch", "https://www.youtube.com/watch?v=abc123", "abc123"},
		{"watch extra params", "https://www.youtube.com/watch?list=PL1&v=dQw4w9WgXcQ&t=1s", "dQw4w9WgXcQ"},
		{"watch bare host", "https://youtube.com/watch?v=abc123", "abc123"},
		{"watch mobile", "https://m.youtube.com/watch?v=abc123", "abc123"},
		{"embed", "https://www.youtube.com/embed/abc123", "abc123"},
		{"legacy v", "https://www.youtube.com/v/abc123", "abc123"},
		{"legacy v trailing", "https://www.youtube.com/v/abc123/extra", "abc123"},
		{"shorts", "https://www.youtube.com/shorts/abc-_123", "abc-_123"},
		{"surrounding space", "  https://youtu.be/abc123  ", "abc123"},
		{"upper host", "https://WWW.YOUTUBE.COM/watch?v=abc123", "abc123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ResolveVideoRef(tt.url)
			if err != nil {
				t.Fatalf("ResolveVideoRef(%q) error = %v", tt.url, err)
			}
			if ref.ID() != tt.want {
				t.Errorf("ResolveVideoRef(%q) = %q, want %q", tt.url, ref.ID(), tt.want)
			}
		})
	}
}

func TestResolveVideoRefInvalid(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"not a url", "not-a-real-url"},
		{"empty", ""},
		{"other host", "https://vimeo.com/12345"},
		{"lookalike host", "https://youtube.com.evil.example/watch?v=abc123"},
		{"watch without v", "https://www.youtube.com/watch?list=PL1"},
		{"watch empty v", "https://www.youtube.com/watch?v="},
		{"channel path", "https://www.youtube.com/@somechannel"},
		{"embed without id", "https://www.youtube.com/embed/"},
		{"short link without id", "https://youtu.be/"},
		{"short link nested path", "https://youtu.be/abc/def"},
		{"bad characters", "https://www.youtube.com/watch?v=abc%20123"},
		{"control characters", "https://youtu.be/\x7f"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ResolveVideoRef(tt.url)
			if err == nil {
				t.Fatalf("ResolveVideoRef(%q) = %q, want error", tt.url, ref.ID())
			}
			if k := engine.KindOf(err); k != engine.KindInvalidReference {
				t.Errorf("kind = %q, want %q", k, engine.KindInvalidReference)
			}
			if !ref.IsZero() {
				t.Errorf("expected zero VideoRef on error, got %q", ref.ID())
			}
		})
	}
}

func TestMustVideoRefPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for empty id")
		}
	}()
	MustVideoRef("")
}
