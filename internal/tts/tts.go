// Package tts defines the text-to-speech engines used to narrate documents.
//
// Three engines exist and they do not share an option schema: the premium
// OpenAI engine takes a voice and a speed multiplier, the free Google engine
// takes a language, a slow flag and an accent domain, and the offline engine
// takes a words-per-minute rate, a volume and a gender preference. Options is
// a closed sum over those three shapes and the Router dispatches on it
// without normalizing anything.
package tts

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/nadzzz/narrator/internal/chunk"
	"github.com/nadzzz/narrator/internal/job"
)

// Engine identifies a synthesis backend by its tag.
type Engine string

const (
	EngineOpenAI  Engine = "openai"
	EngineGTTS    Engine = "gtts"
	EngineOffline Engine = "pyttsx3"
)

// ParseEngine maps a tag to an Engine. Unknown tags wrap job.ErrUnsupportedFormat.
func ParseEngine(tag string) (Engine, error) {
	switch e := Engine(strings.ToLower(strings.TrimSpace(tag))); e {
	case EngineOpenAI, EngineGTTS, EngineOffline:
		return e, nil
	default:
		return "", fmt.Errorf("%w: unsupported TTS engine: %q", job.ErrUnsupportedFormat, tag)
	}
}

// Format returns the audio encoding the engine produces: "mp3" or "wav".
func (e Engine) Format() string {
	if e == EngineOffline {
		return "wav"
	}
	return "mp3"
}

// ContentType returns the MIME type of the engine's output.
func (e Engine) ContentType() string {
	if e == EngineOffline {
		return "audio/wav"
	}
	return "audio/mpeg"
}

// Options is implemented by exactly one options struct per engine.
type Options interface {
	Engine() Engine
}

// OpenAIOptions configures the premium remote engine.
type OpenAIOptions struct {
	// Voice is one of OpenAIVoices.
	Voice string
	// Speed is a playback multiplier from 0.25 to 4.0.
	Speed float64
}

// GTTSOptions configures the free Google Translate engine.
type GTTSOptions struct {
	// Language is a language code such as "en" or "fr".
	Language string
	// Slow requests the slower reading speed.
	Slow bool
	// TLD is the Google domain selecting the regional accent, e.g. "co.uk".
	TLD string
}

// OfflineOptions configures the local engine.
type OfflineOptions struct {
	// Rate is the speaking rate in words per minute.
	Rate int
	// Volume ranges from 0.0 to 1.0.
	Volume float64
	// Gender is matched case-insensitively against installed voice names.
	Gender string
}

func (OpenAIOptions) Engine() Engine  { return EngineOpenAI }
func (GTTSOptions) Engine() Engine    { return EngineGTTS }
func (OfflineOptions) Engine() Engine { return EngineOffline }

// Artifact is a synthesized audio file on disk.
type Artifact struct {
	Path        string
	Engine      Engine
	Format      string
	ContentType string
}

// NewArtifact describes an audio file produced by engine at path.
func NewArtifact(path string, engine Engine) *Artifact {
	return &Artifact{
		Path:        path,
		Engine:      engine,
		Format:      engine.Format(),
		ContentType: engine.ContentType(),
	}
}

// Bytes reads the whole audio file.
func (a *Artifact) Bytes() ([]byte, error) {
	return os.ReadFile(a.Path)
}

// Size returns the file size in bytes.
func (a *Artifact) Size() (int64, error) {
	fi, err := os.Stat(a.Path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Synthesizer converts text to an audio file.
type Synthesizer interface {
	// Engine returns the tag this backend serves.
	Engine() Engine

	// Synthesize writes audio for text to outPath, or to a fresh temporary
	// file when outPath is empty, and returns the resulting artifact.
	// opts must be the options struct of this backend's engine.
	Synthesize(ctx context.Context, text string, opts Options, outPath string) (*Artifact, error)
}

// OutputPath returns outPath, or creates an empty temporary file with the
// engine's extension and returns its name.
func OutputPath(outPath string, engine Engine) (string, error) {
	if outPath != "" {
		return outPath, nil
	}
	f, err := os.CreateTemp("", "narrator-*."+engine.Format())
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	return name, nil
}

// MismatchedOptions builds the error returned when a backend receives another
// engine's options.
func MismatchedOptions(want Engine, got Options) error {
	return fmt.Errorf("%w: %s engine cannot use %T", job.ErrUnsupportedFormat, want, got)
}

// ChunkText splits text for a speech backend's input ceiling. maxLen <= 0
// selects chunk.SynthesisMaxSize.
func ChunkText(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = chunk.SynthesisMaxSize
	}
	return chunk.Split(text, maxLen)
}
