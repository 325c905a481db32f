// Narrator converts PDF, DOCX and text documents into narrated audiobooks.
//
// With -in it runs one conversion and exits. Without it, it runs as a daemon
// serving the HTTP and gRPC transports.
//
// Usage:
//
//	narrator -in book.pdf [-out dir] [-engine gtts] [-no-rewrite]
//	narrator --config /path/to/narrator.yaml
//
// @title       Narrator API
// @version     1.0
// @description Converts PDF, DOCX and text documents into narrated audiobooks.
// @BasePath    /
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	_ "github.com/nadzzz/narrator/docs"
	"github.com/nadzzz/narrator/internal/config"
	"github.com/nadzzz/narrator/internal/extract"
	"github.com/nadzzz/narrator/internal/health"
	"github.com/nadzzz/narrator/internal/history"
	"github.com/nadzzz/narrator/internal/job"
	"github.com/nadzzz/narrator/internal/pipeline"
	"github.com/nadzzz/narrator/internal/rewriter"
	openairewriter "github.com/nadzzz/narrator/internal/rewriter/openai"
	"github.com/nadzzz/narrator/internal/telemetry"
	"github.com/nadzzz/narrator/internal/transport"
	grpctransport "github.com/nadzzz/narrator/internal/transport/grpc"
	httptransport "github.com/nadzzz/narrator/internal/transport/http"
	"github.com/nadzzz/narrator/internal/tts"
	"github.com/nadzzz/narrator/internal/tts/gtts"
	"github.com/nadzzz/narrator/internal/tts/offline"
	openaitts "github.com/nadzzz/narrator/internal/tts/openai"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (e.g. configs/narrator.yaml)")
	in := flag.String("in", "", "document to convert; runs once and exits")
	outDir := flag.String("out", "", "output directory for -in (default from config)")
	engine := flag.String("engine", "", "synthesis engine: openai, gtts or pyttsx3")
	style := flag.String("style", "", "narration style: storytelling, professional or casual")
	noRewrite := flag.Bool("no-rewrite", false, "skip the AI rewrite stage")
	flag.Parse()

	if *showVersion {
		fmt.Printf("narrator %s\n", version)
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging.
	config.SetupLogging(cfg.Logging)
	slog.Info("narrator starting", "version", version)

	// Create root context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Metrics.
	shutdownTelemetry, metricsHandler, err := telemetry.Setup("narrator", version, slog.Default())
	if err != nil {
		slog.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()
	metrics, err := telemetry.NewMetrics()
	if err != nil {
		slog.Warn("pipeline metrics disabled", "error", err)
	}

	// Run history.
	hist, err := history.Open(ctx, cfg.History, slog.Default())
	if err != nil {
		slog.Error("failed to open run history", "error", err)
		os.Exit(1)
	}
	defer hist.Close()

	catalogue, err := tts.LoadCatalogue(cfg.TTS.Voices)
	if err != nil {
		slog.Warn("using built-in voice catalogue", "error", err)
	}

	p := pipeline.New(pipeline.Config{
		Extractor:   extract.New(),
		Rewriter:    newRewriter(ctx, cfg),
		Synthesizer: newRouter(cfg),
		MinLength:   cfg.Validation.MinLength,
		MaxLength:   cfg.Validation.MaxLength,
		Suffix:      cfg.Output.Suffix,
		Metrics:     metrics,
		History:     hist,
	})

	defaults := pipeline.DefaultSettings(cfg)
	defaults.TLD = catalogue.AccentTLD(defaults.TLD)

	if *in != "" {
		if *engine != "" {
			defaults.Engine = *engine
		}
		if *style != "" {
			defaults.Style = *style
		}
		if *noRewrite {
			defaults.Rewrite = false
		}
		dir := *outDir
		if dir == "" {
			dir = cfg.Output.Dir
		}
		if err := runOnce(ctx, p, *in, dir, defaults); err != nil {
			os.Exit(1)
		}
		return
	}

	runDaemon(ctx, cfg, p, defaults, catalogue, hist, metricsHandler)
}

// newRewriter returns the OpenAI rewriter, or nil when no key is configured.
func newRewriter(ctx context.Context, cfg *config.Config) rewriter.Rewriter {
	if !cfg.HasOpenAIKey() {
		slog.Info("no OpenAI API key configured; rewriting and premium speech unavailable")
		return nil
	}
	rw, err := openairewriter.New(cfg.OpenAI)
	if err != nil {
		slog.Warn("rewriter unavailable", "error", err)
		return nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if !openairewriter.ValidateCredentials(checkCtx, cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey) {
		slog.Warn("OpenAI credential check failed; remote calls may be rejected")
	}
	slog.Info("using OpenAI rewriter", "model", cfg.OpenAI.RewriteModel)
	return rw
}

// newRouter registers every engine that can run with this configuration.
func newRouter(cfg *config.Config) *tts.Router {
	var backends []tts.Synthesizer

	backends = append(backends, gtts.New(cfg.TTS.GTTS))

	if off, err := offline.New(cfg.TTS.Offline); err != nil {
		slog.Warn("offline engine unavailable", "error", err)
	} else {
		backends = append(backends, off)
	}

	if cfg.HasOpenAIKey() {
		if premium, err := openaitts.New(cfg.OpenAI); err == nil {
			backends = append(backends, premium)
		}
	}

	r := tts.NewRouter(backends...)
	slog.Info("synthesis engines ready",
		"openai", r.Has(tts.EngineOpenAI),
		"gtts", r.Has(tts.EngineGTTS),
		"pyttsx3", r.Has(tts.EngineOffline))
	return r
}

// runOnce converts one file and writes the audiobook into outDir.
func runOnce(ctx context.Context, p *pipeline.Pipeline, path, outDir string, settings job.Settings) error {
	doc, err := os.ReadFile(path)
	if err != nil {
		slog.Error("failed to read input", "path", path, "error", err)
		return err
	}

	req := &job.Request{
		FileName:  filepath.Base(path),
		Document:  doc,
		Settings:  settings,
		Timestamp: time.Now(),
	}
	progress := func(stage pipeline.Stage, done, total int) {
		slog.Info("progress", "stage", stage, "done", done, "total", total)
	}

	st, err := p.Run(ctx, req, progress)
	defer func() {
		if cerr := st.Cleanup(); cerr != nil {
			slog.Warn("temp file cleanup failed", "error", cerr)
		}
	}()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		slog.Error("failed to create output directory", "dir", outDir, "error", err)
		return err
	}
	dest := filepath.Join(outDir, st.OutputFilename)
	if err := copyFile(st.Artifact.Path, dest); err != nil {
		slog.Error("failed to write audiobook", "path", dest, "error", err)
		return err
	}

	slog.Info("audiobook written",
		"path", dest,
		"format", st.Artifact.Format,
		"size", st.Stats.AudioSize,
		"duration", st.Stats.AudioDuration,
		"words", st.Stats.WordCount,
		"reading_time", fmt.Sprintf("%dm%02ds", st.Stats.ReadingMinutes, st.Stats.ReadingSeconds),
		"processing_time", st.Stats.ProcessingTime)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func runDaemon(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, defaults job.Settings, catalogue tts.Catalogue, hist *history.Store, metricsHandler http.Handler) {
	// Initialize enabled transports.
	var transports []transport.Transport

	if cfg.Transports.GRPC.Enabled {
		transports = append(transports, grpctransport.New(cfg.Transports.GRPC.Port, cfg.Transports.GRPC.MaxMessageMB, defaults, catalogue))
	}
	if cfg.Transports.HTTP.Enabled {
		transports = append(transports, httptransport.New(cfg.Transports.HTTP, defaults, catalogue, hist))
	}

	if len(transports) == 0 {
		slog.Error("no transports enabled; enable at least one in config or pass -in")
		os.Exit(1)
	}

	handler := func(ctx context.Context, req *job.Request) (*pipeline.State, error) {
		return p.Run(ctx, req, nil)
	}

	// Start health check server.
	healthServer := health.New(cfg.Server.HealthPort, metricsHandler)
	go func() {
		if err := healthServer.ListenAndServe(ctx); err != nil {
			slog.Error("health server failed", "error", err)
		}
	}()

	// Start all transports.
	var wg sync.WaitGroup
	for _, t := range transports {
		wg.Add(1)
		go func(t transport.Transport) {
			defer wg.Done()
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("transport failed", "name", t.Name(), "error", err)
			}
		}(t)
	}

	// Mark as ready once all transports are started.
	healthServer.SetReady(true)
	slog.Info("narrator ready",
		"transports", len(transports),
		"health_port", cfg.Server.HealthPort)

	// Block until shutdown signal.
	<-ctx.Done()
	slog.Info("shutdown signal received, draining...")
	healthServer.SetReady(false)

	// Close all transports gracefully.
	for _, t := range transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}

	wg.Wait()
	slog.Info("narrator stopped")
}
