// Package pipeline implements the document to audiobook orchestration.
//
// A run moves through four stages, Extracted, Rewritten, Synthesized and
// Delivered, and never goes back. A failing stage halts the run and is
// reported as a *StageError; outputs of earlier stages stay on the State so
// the caller can inspect or retry them.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/nadzzz/narrator/internal/audio"
	"github.com/nadzzz/narrator/internal/chunk"
	"github.com/nadzzz/narrator/internal/config"
	"github.com/nadzzz/narrator/internal/extract"
	"github.com/nadzzz/narrator/internal/history"
	"github.com/nadzzz/narrator/internal/job"
	"github.com/nadzzz/narrator/internal/rewriter"
	"github.com/nadzzz/narrator/internal/telemetry"
	"github.com/nadzzz/narrator/internal/textutil"
	"github.com/nadzzz/narrator/internal/tts"
)

// Stage names a pipeline step.
type Stage string

const (
	StageExtracted   Stage = "extracted"
	StageRewritten   Stage = "rewritten"
	StageSynthesized Stage = "synthesized"
	StageDelivered   Stage = "delivered"
)

// StageError reports which stage halted a run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the failed stage recorded in err, or "" if there is none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Extractor turns a raw document into text.
type Extractor interface {
	Extract(data []byte, kind job.Kind) (string, error)
}

// Synthesizer is the engine router the pipeline speaks through.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts tts.Options, outPath string) (*tts.Artifact, error)
	Has(e tts.Engine) bool
}

// Progress is called after each chunk of a chunked stage completes.
type Progress func(stage Stage, done, total int)

// State carries one run's intermediate and final outputs.
type State struct {
	Request *job.Request
	// Stage is the last stage that completed.
	Stage Stage

	ExtractedText   string
	RewrittenText   string
	RewriteChunks   []string
	SynthesisChunks []string

	Artifact       *tts.Artifact
	OutputFilename string
	Stats          job.Stats

	// TempFiles lists every file the run created. The caller removes them
	// with Cleanup once the artifact has been delivered.
	TempFiles []string
}

func (s *State) track(path string) {
	s.TempFiles = append(s.TempFiles, path)
}

// Cleanup removes every temporary file the run created.
func (s *State) Cleanup() error {
	if s == nil {
		return nil
	}
	var errs []error
	for _, p := range s.TempFiles {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	s.TempFiles = nil
	return errors.Join(errs...)
}

// Config wires a Pipeline. Rewriter is nil when no rewrite credential is
// configured. Metrics and History are optional.
type Config struct {
	Extractor   Extractor
	Rewriter    rewriter.Rewriter
	Synthesizer Synthesizer
	MinLength   int
	MaxLength   int
	Suffix      string
	Metrics     *telemetry.Metrics
	History     *history.Store
}

// maxHistoryError bounds the error text stored per run; backend error bodies
// can be long.
const maxHistoryError = 500

// Pipeline runs documents through extraction, rewriting and synthesis.
type Pipeline struct {
	extractor Extractor
	rewriter  rewriter.Rewriter
	synth     Synthesizer
	minLength int
	maxLength int
	suffix    string
	metrics   *telemetry.Metrics
	history   *history.Store
	clock     func() time.Time
}

// New creates a Pipeline.
func New(c Config) *Pipeline {
	if c.MinLength == 0 && c.MaxLength == 0 {
		c.MinLength, c.MaxLength = textutil.DefaultMinLength, textutil.DefaultMaxLength
	}
	if c.Suffix == "" {
		c.Suffix = textutil.DefaultSuffix
	}
	return &Pipeline{
		extractor: c.Extractor,
		rewriter:  c.Rewriter,
		synth:     c.Synthesizer,
		minLength: c.MinLength,
		maxLength: c.MaxLength,
		suffix:    c.Suffix,
		metrics:   c.Metrics,
		history:   c.History,
		clock:     time.Now,
	}
}

// Run processes one request. The returned State is never nil, even on
// error, and owns temp files that the caller must Cleanup.
func (p *Pipeline) Run(ctx context.Context, req *job.Request, onProgress Progress) (*State, error) {
	start := p.clock()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	logger := slog.With("run_id", req.ID, "file", req.FileName)
	st := &State{Request: req}

	err := p.run(ctx, st, logger, onProgress)
	st.Stats.ProcessingTime = p.clock().Sub(start)

	outcome := "success"
	if err != nil {
		outcome = job.KindOf(err)
		logger.Error("pipeline failed", "stage", StageOf(err), "error", err)
	} else {
		logger.Info("pipeline complete",
			"duration", st.Stats.ProcessingTime,
			"audio_bytes", st.Stats.AudioBytes,
			"output", st.OutputFilename)
	}
	p.metrics.RecordRun(ctx, outcome)
	p.record(ctx, st, outcome, err, logger)
	return st, err
}

func (p *Pipeline) run(ctx context.Context, st *State, logger *slog.Logger, onProgress Progress) error {
	req := st.Request
	set := req.Settings

	// Step 1: Extract and validate.
	if err := p.timed(ctx, StageExtracted, func() error { return p.extract(st) }); err != nil {
		return &StageError{Stage: StageExtracted, Err: err}
	}
	st.Stage = StageExtracted
	logger.Info("text extracted", "kind", req.Kind, "chars", st.Stats.CharCount, "words", st.Stats.WordCount)

	// Resolve synthesis options and credentials before any remote call.
	opts, err := SynthesisOptions(set)
	if err != nil {
		return &StageError{Stage: StageSynthesized, Err: err}
	}
	if set.Rewrite && p.rewriter == nil {
		return &StageError{Stage: StageRewritten, Err: fmt.Errorf("%w: OpenAI API key required for AI rewriting", job.ErrCredential)}
	}
	if opts.Engine() == tts.EngineOpenAI && !p.synth.Has(tts.EngineOpenAI) {
		return &StageError{Stage: StageSynthesized, Err: fmt.Errorf("%w: OpenAI API key required for OpenAI TTS", job.ErrCredential)}
	}

	// Step 2: Rewrite, or pass the extracted text through.
	if err := p.timed(ctx, StageRewritten, func() error { return p.rewrite(ctx, st, logger, onProgress) }); err != nil {
		return &StageError{Stage: StageRewritten, Err: err}
	}
	st.Stage = StageRewritten

	// Step 3: Synthesize.
	if err := p.timed(ctx, StageSynthesized, func() error { return p.synthesize(ctx, st, opts, logger, onProgress) }); err != nil {
		return &StageError{Stage: StageSynthesized, Err: err}
	}
	st.Stage = StageSynthesized

	// Step 4: Deliver.
	if err := p.timed(ctx, StageDelivered, func() error { return p.deliver(st, logger) }); err != nil {
		return &StageError{Stage: StageDelivered, Err: err}
	}
	st.Stage = StageDelivered
	return nil
}

func (p *Pipeline) timed(ctx context.Context, stage Stage, fn func() error) error {
	start := p.clock()
	err := fn()
	p.metrics.RecordStage(ctx, string(stage), p.clock().Sub(start))
	return err
}

func (p *Pipeline) extract(st *State) error {
	req := st.Request
	if req.Kind == "" {
		kind, err := extract.Detect(req.FileName)
		if err != nil {
			return err
		}
		req.Kind = kind
	}

	text, err := p.extractor.Extract(req.Document, req.Kind)
	if err != nil {
		return err
	}
	if err := textutil.ValidateLength(text, p.minLength, p.maxLength); err != nil {
		return err
	}
	st.ExtractedText = text

	rt := textutil.EstimateReadingTime(text, textutil.DefaultWordsPerMinute)
	st.Stats.WordCount = rt.WordCount
	st.Stats.CharCount = len([]rune(text))
	st.Stats.ReadingMinutes = rt.Minutes
	st.Stats.ReadingSeconds = rt.Seconds
	st.Stats.ReadingTotal = rt.TotalMinutes
	return nil
}

func (p *Pipeline) rewrite(ctx context.Context, st *State, logger *slog.Logger, onProgress Progress) error {
	set := st.Request.Settings
	if !set.Rewrite {
		st.RewrittenText = st.ExtractedText
		logger.Debug("rewrite disabled, passing extracted text through")
		return nil
	}

	size := chunk.ClampSize(set.RewriteChunkSize, chunk.RewriteMaxSize)
	st.RewriteChunks = chunk.Split(st.ExtractedText, size)
	st.Stats.RewriteChunks = len(st.RewriteChunks)
	p.metrics.RecordChunks(ctx, "rewrite", len(st.RewriteChunks))

	style := rewriter.ParseStyle(set.Style)
	logger.Info("rewriting text", "chunks", len(st.RewriteChunks), "chunk_size", size, "style", style)

	var progress rewriter.Progress
	if onProgress != nil {
		progress = func(done, total int) { onProgress(StageRewritten, done, total) }
	}
	out, err := rewriter.RewriteAll(ctx, p.rewriter, st.RewriteChunks, style, set.Creativity, progress)
	if err != nil {
		return err
	}
	st.RewrittenText = out
	return nil
}

func (p *Pipeline) synthesize(ctx context.Context, st *State, opts tts.Options, logger *slog.Logger, onProgress Progress) error {
	engine := opts.Engine()
	st.SynthesisChunks = tts.ChunkText(st.RewrittenText, st.Request.Settings.SynthesisChunkSize)
	total := len(st.SynthesisChunks)
	st.Stats.SynthesisChunks = total
	p.metrics.RecordChunks(ctx, "synthesis", total)
	logger.Info("synthesizing speech", "engine", engine, "chunks", total)

	parts := make([]string, 0, total)
	for i, text := range st.SynthesisChunks {
		path, err := tts.OutputPath("", engine)
		if err != nil {
			return fmt.Errorf("%w: %w", job.ErrSynthesis, err)
		}
		st.track(path)

		if _, err := p.synth.Synthesize(ctx, text, opts, path); err != nil {
			return fmt.Errorf("chunk %d/%d: %w", i+1, total, err)
		}
		parts = append(parts, path)
		logger.Debug("chunk synthesized", "chunk", i+1, "total", total, "chars", len(text))
		if onProgress != nil {
			onProgress(StageSynthesized, i+1, total)
		}
	}

	if len(parts) == 1 {
		st.Artifact = tts.NewArtifact(parts[0], engine)
		return nil
	}

	merged, err := tts.OutputPath("", engine)
	if err != nil {
		return fmt.Errorf("%w: %w", job.ErrSynthesis, err)
	}
	st.track(merged)
	if err := audio.Concat(engine.Format(), parts, merged); err != nil {
		return fmt.Errorf("%w: merging audio chunks: %w", job.ErrSynthesis, err)
	}
	st.Artifact = tts.NewArtifact(merged, engine)
	return nil
}

func (p *Pipeline) deliver(st *State, logger *slog.Logger) error {
	art := st.Artifact
	size, err := art.Size()
	if err != nil {
		return fmt.Errorf("%w: reading artifact: %w", job.ErrSynthesis, err)
	}
	st.Stats.AudioBytes = size
	st.Stats.AudioSize = textutil.FormatFileSize(size)

	if d, err := audio.Duration(art.Path, art.Format); err == nil {
		st.Stats.AudioDuration = d
	} else {
		logger.Debug("could not probe audio duration", "error", err)
	}

	st.OutputFilename = textutil.OutputFilename(st.Request.FileName, p.suffix, art.Format, p.clock())
	return nil
}

func (p *Pipeline) record(ctx context.Context, st *State, outcome string, runErr error, logger *slog.Logger) {
	if !p.history.Enabled() {
		return
	}
	run := history.Run{
		RequestID:       st.Request.ID,
		FileName:        st.Request.FileName,
		Kind:            string(st.Request.Kind),
		Engine:          st.Request.Settings.Engine,
		Rewrite:         st.Request.Settings.Rewrite,
		Outcome:         outcome,
		Stage:           string(st.Stage),
		WordCount:       st.Stats.WordCount,
		RewriteChunks:   st.Stats.RewriteChunks,
		SynthesisChunks: st.Stats.SynthesisChunks,
		AudioBytes:      st.Stats.AudioBytes,
		ProcessingMS:    st.Stats.ProcessingTime.Milliseconds(),
	}
	if runErr != nil {
		run.Error = textutil.Truncate(runErr.Error(), maxHistoryError)
	}
	if err := p.history.Record(ctx, run); err != nil {
		logger.Warn("failed to record run history", "error", err)
	}
}

// SynthesisOptions builds the engine-specific options named by settings.
// Each engine keeps its own fields; nothing is shared between them.
func SynthesisOptions(s job.Settings) (tts.Options, error) {
	engine, err := tts.ParseEngine(s.Engine)
	if err != nil {
		return nil, err
	}
	switch engine {
	case tts.EngineOpenAI:
		return tts.OpenAIOptions{Voice: s.Voice, Speed: s.Speed}, nil
	case tts.EngineGTTS:
		return tts.GTTSOptions{Language: s.Language, Slow: s.Slow, TLD: s.TLD}, nil
	default:
		return tts.OfflineOptions{Rate: s.Rate, Volume: s.Volume, Gender: s.Gender}, nil
	}
}

// DefaultSettings returns the per-run settings configured in cfg.
func DefaultSettings(cfg *config.Config) job.Settings {
	return job.Settings{
		Engine:             cfg.TTS.Engine,
		Rewrite:            cfg.Rewrite.Enabled,
		Style:              cfg.Rewrite.Style,
		Creativity:         cfg.Rewrite.Creativity,
		RewriteChunkSize:   cfg.Rewrite.ChunkSize,
		SynthesisChunkSize: cfg.TTS.ChunkSize,
		Voice:              cfg.TTS.OpenAI.Voice,
		Speed:              cfg.TTS.OpenAI.Speed,
		Language:           cfg.TTS.GTTS.Language,
		Slow:               cfg.TTS.GTTS.Slow,
		TLD:                cfg.TTS.GTTS.TLD,
		Rate:               cfg.TTS.Offline.Rate,
		Volume:             cfg.TTS.Offline.Volume,
		Gender:             cfg.TTS.Offline.Gender,
	}
}
