package acquire

import (
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// Strategy names one acquisition method.
type Strategy string

const (
	StrategyResolve        Strategy = "resolve"
	StrategyDirectCaptions Strategy = "direct-captions"
	StrategyProxyCaptions  Strategy = "proxy-captions"
	StrategySpeech         Strategy = "speech-transcription"
)

// Attempt records one failed strategy.
type Attempt struct {
	Strategy Strategy         `json:"strategy"`
	Kind     engine.ErrorKind `json:"kind"`
	Message  string           `json:"message"`
}

func (a Attempt) String() string {
	return fmt.Sprintf("%s: %s: %s", a.Strategy, a.Kind, a.Message)
}

// Result is the outcome of one Acquire call: either a transcript tagged with
// the strategy that produced it, or a failure kind with every attempt made.
// Attempts may be non-empty on success (strategies that failed first).
type Result struct {
	VideoID    string           `json:"video_id,omitempty"`
	Transcript string           `json:"transcript,omitempty"`
	Source     Strategy         `json:"source,omitempty"`
	Kind       engine.ErrorKind `json:"kind,omitempty"`
	Attempts   []Attempt        `json:"attempts"`

	cause error
}

// OK reports whether a transcript was acquired.
func (r Result) OK() bool { return r.Source != "" }

// Err returns nil on success, otherwise an *engine.AcquisitionError of the
// result's kind wrapping the underlying strategy errors.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &engine.AcquisitionError{Kind: r.Kind, Op: "acquire", Err: r.cause}
}

// Summary is a one-line description for logs and tool output.
func (r Result) Summary() string {
	if r.OK() {
		return fmt.Sprintf("%s via %s (%d chars)", r.VideoID, r.Source, len(r.Transcript))
	}
	parts := make([]string, len(r.Attempts))
	for i, a := range r.Attempts {
		parts[i] = string(a.Strategy) + "=" + string(a.Kind)
	}
	return fmt.Sprintf("%s: %s [%s]", r.Kind, r.VideoID, strings.Join(parts, ", "))
}
