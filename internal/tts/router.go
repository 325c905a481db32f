package tts

import (
	"context"
	"fmt"

	"github.com/nadzzz/narrator/internal/job"
)

// Router dispatches synthesis requests to the backend serving their engine.
type Router struct {
	backends map[Engine]Synthesizer
}

// NewRouter creates a Router over the given backends. Nil backends are
// skipped so unavailable engines (e.g. premium without a key) can be omitted.
func NewRouter(backends ...Synthesizer) *Router {
	m := make(map[Engine]Synthesizer, len(backends))
	for _, b := range backends {
		if b != nil {
			m[b.Engine()] = b
		}
	}
	return &Router{backends: m}
}

// Has reports whether a backend is registered for e.
func (r *Router) Has(e Engine) bool {
	_, ok := r.backends[e]
	return ok
}

// Synthesize routes by the engine of opts.
func (r *Router) Synthesize(ctx context.Context, text string, opts Options, outPath string) (*Artifact, error) {
	if opts == nil {
		return nil, fmt.Errorf("%w: missing synthesis options", job.ErrUnsupportedFormat)
	}
	b, ok := r.backends[opts.Engine()]
	if !ok {
		return nil, r.unavailable(opts.Engine())
	}
	return b.Synthesize(ctx, text, opts, outPath)
}

// SynthesizeTag routes by a string tag ("openai", "gtts", "pyttsx3"). The
// options must belong to the same engine as the tag.
func (r *Router) SynthesizeTag(ctx context.Context, text, tag string, opts Options, outPath string) (*Artifact, error) {
	engine, err := ParseEngine(tag)
	if err != nil {
		return nil, err
	}
	if opts == nil || opts.Engine() != engine {
		return nil, MismatchedOptions(engine, opts)
	}
	return r.Synthesize(ctx, text, opts, outPath)
}

func (r *Router) unavailable(e Engine) error {
	if e == EngineOpenAI {
		return fmt.Errorf("%w: OpenAI API key required for OpenAI TTS", job.ErrCredential)
	}
	return fmt.Errorf("%w: TTS engine %q is not configured", job.ErrUnsupportedFormat, e)
}
