// Package http implements the HTTP transport for narrator.
//
// This transport exposes a REST API: a multipart upload endpoint that
// returns the narrated audio, plus read-only endpoints for the voice
// catalogue and recent run history. Swagger UI documents the API.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nadzzz/narrator/internal/chunk"
	"github.com/nadzzz/narrator/internal/config"
	"github.com/nadzzz/narrator/internal/history"
	"github.com/nadzzz/narrator/internal/job"
	"github.com/nadzzz/narrator/internal/rewriter"
	"github.com/nadzzz/narrator/internal/transport"
	"github.com/nadzzz/narrator/internal/tts"

	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// Transport implements transport.Transport over HTTP.
type Transport struct {
	port      int
	maxUpload int64
	defaults  job.Settings
	catalogue tts.Catalogue
	history   *history.Store
	server    *http.Server
}

// New creates a new HTTP transport. defaults are the per-run settings that
// form fields override; history may be nil.
func New(cfg config.HTTPConfig, defaults job.Settings, catalogue tts.Catalogue, hist *history.Store) *Transport {
	maxMB := cfg.MaxUploadMB
	if maxMB <= 0 {
		maxMB = 50
	}
	return &Transport{
		port:      cfg.Port,
		maxUpload: int64(maxMB) << 20,
		defaults:  defaults,
		catalogue: catalogue,
		history:   hist,
	}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Handler builds the API mux around handler.
func (t *Transport) Handler(handler transport.Handler) http.Handler {
	mux := http.NewServeMux()

	// POST /audiobooks: upload a document, receive narrated audio.
	mux.HandleFunc("POST /audiobooks", func(w http.ResponseWriter, r *http.Request) {
		t.handleAudiobook(w, r, handler)
	})
	mux.HandleFunc("GET /voices", t.handleVoices)
	mux.HandleFunc("GET /runs", t.handleRuns)

	// Swagger UI serves the OpenAPI docs registered by package docs.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	return mux
}

// Listen starts the HTTP server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.port),
		Handler:           t.Handler(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("http transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.server.Shutdown(shutdownCtx)
	}()

	if err := t.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// handleAudiobook processes a POST /audiobooks request.
//
// @Summary     Convert a document to an audiobook
// @Description Uploads a PDF, DOCX or TXT document. The text is extracted, optionally rewritten
// @Description for narration, synthesized with the selected engine and returned as MP3 or WAV.
// @Description Each engine reads only its own options: voice and speed for openai; language, slow
// @Description and tld for gtts; rate, volume and gender for pyttsx3.
// @Tags        audiobooks
// @Accept      multipart/form-data
// @Produce     audio/mpeg
// @Produce     audio/wav
// @Produce     json
// @Param       file        formData  file    true   "Document (.pdf, .docx, .txt)"
// @Param       engine      formData  string  false  "Synthesis engine: openai, gtts or pyttsx3"
// @Param       rewrite     formData  bool    false  "Rewrite text for narration before synthesis"
// @Param       style       formData  string  false  "Narration style: storytelling, professional or casual"
// @Param       creativity  formData  number  false  "Rewrite sampling temperature"
// @Param       chunk_size  formData  int     false  "Rewrite chunk size (1000-10000)"
// @Param       voice       formData  string  false  "OpenAI voice"
// @Param       speed       formData  number  false  "OpenAI speed multiplier"
// @Param       language    formData  string  false  "gTTS language code"
// @Param       slow        formData  bool    false  "gTTS slower reading"
// @Param       tld         formData  string  false  "gTTS accent name or Google domain"
// @Param       rate        formData  int     false  "Offline words per minute"
// @Param       volume      formData  number  false  "Offline volume 0.0-1.0"
// @Param       gender      formData  string  false  "Offline voice gender keyword"
// @Success     200  {file}    file                   "Narrated audio"
// @Failure     400  {object}  transport.ErrorBody    "Invalid request, text length or engine"
// @Failure     401  {object}  transport.ErrorBody    "OpenAI credential missing"
// @Failure     422  {object}  transport.ErrorBody    "Document could not be read"
// @Failure     502  {object}  transport.ErrorBody    "Rewrite or synthesis backend failed"
// @Router      /audiobooks [post]
func (t *Transport) handleAudiobook(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	r.Body = http.MaxBytesReader(w, r.Body, t.maxUpload)
	if err := r.ParseMultipartForm(t.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, transport.ErrorBody{Kind: "validation", Error: "invalid multipart form: " + err.Error()})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, transport.ErrorBody{Kind: "validation", Error: "missing file field: " + err.Error()})
		return
	}
	defer file.Close()

	doc, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, transport.ErrorBody{Kind: "validation", Error: "reading upload: " + err.Error()})
		return
	}

	settings, err := t.settingsFromForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, transport.ErrorBody{Kind: "validation", Error: err.Error()})
		return
	}

	req := &job.Request{
		FileName:  header.Filename,
		Document:  doc,
		Settings:  settings,
		Timestamp: time.Now(),
	}

	st, err := handler(r.Context(), req)
	defer func() {
		if cerr := st.Cleanup(); cerr != nil {
			slog.Warn("temp file cleanup failed", "run_id", req.ID, "error", cerr)
		}
	}()
	if err != nil {
		writeError(w, statusFor(err), transport.NewErrorBody(err))
		return
	}

	f, err := os.Open(st.Artifact.Path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, transport.ErrorBody{Kind: "internal", Error: "opening artifact: " + err.Error()})
		return
	}
	defer f.Close()

	h := w.Header()
	h.Set("Content-Type", st.Artifact.ContentType)
	h.Set("Content-Length", strconv.FormatInt(st.Stats.AudioBytes, 10))
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", st.OutputFilename))
	h.Set("X-Narrator-Run-Id", req.ID)
	h.Set("X-Narrator-Word-Count", strconv.Itoa(st.Stats.WordCount))
	h.Set("X-Narrator-Reading-Minutes", strconv.FormatFloat(st.Stats.ReadingTotal, 'f', 2, 64))
	h.Set("X-Narrator-Rewrite-Chunks", strconv.Itoa(st.Stats.RewriteChunks))
	h.Set("X-Narrator-Synthesis-Chunks", strconv.Itoa(st.Stats.SynthesisChunks))
	h.Set("X-Narrator-Audio-Size", st.Stats.AudioSize)
	h.Set("X-Narrator-Audio-Duration", st.Stats.AudioDuration.String())
	h.Set("X-Narrator-Processing-Time", st.Stats.ProcessingTime.String())
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		slog.Warn("streaming audio failed", "run_id", req.ID, "error", err)
	}
}

// settingsFromForm overlays form fields on the configured defaults.
func (t *Transport) settingsFromForm(r *http.Request) (job.Settings, error) {
	s := t.defaults
	var errs []string
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(r.FormValue(key)); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v := strings.TrimSpace(r.FormValue(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s must be an integer", key))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v := strings.TrimSpace(r.FormValue(key)); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s must be a number", key))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v := strings.TrimSpace(r.FormValue(key)); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s must be true or false", key))
				return
			}
			*dst = b
		}
	}

	str("engine", &s.Engine)
	boolean("rewrite", &s.Rewrite)
	str("style", &s.Style)
	float("creativity", &s.Creativity)
	integer("chunk_size", &s.RewriteChunkSize)
	str("voice", &s.Voice)
	float("speed", &s.Speed)
	str("language", &s.Language)
	boolean("slow", &s.Slow)
	str("tld", &s.TLD)
	integer("rate", &s.Rate)
	float("volume", &s.Volume)
	str("gender", &s.Gender)

	if len(errs) > 0 {
		return s, fmt.Errorf("invalid form fields: %s", strings.Join(errs, "; "))
	}
	s.RewriteChunkSize = chunk.ClampSize(s.RewriteChunkSize, chunk.RewriteMaxSize)
	s.TLD = t.catalogue.AccentTLD(s.TLD)
	return s, nil
}

type voicesResponse struct {
	Engines []string      `json:"engines"`
	Styles  []string      `json:"styles"`
	Voices  tts.Catalogue `json:"voices"`
}

// handleVoices lists the selectable engines, styles, voices and accents.
//
// @Summary  List engines, narration styles, voices and accents
// @Tags     catalogue
// @Produce  json
// @Success  200  {object}  voicesResponse
// @Router   /voices [get]
func (t *Transport) handleVoices(w http.ResponseWriter, r *http.Request) {
	resp := voicesResponse{
		Engines: []string{string(tts.EngineOpenAI), string(tts.EngineGTTS), string(tts.EngineOffline)},
		Voices:  t.catalogue,
	}
	for _, s := range rewriter.Styles() {
		resp.Styles = append(resp.Styles, string(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRuns lists recent pipeline runs.
//
// @Summary  List recent runs
// @Tags     history
// @Produce  json
// @Param    limit  query  int  false  "Maximum runs to return (default 50)"
// @Success  200  {array}   history.Run
// @Failure  500  {object}  transport.ErrorBody
// @Router   /runs [get]
func (t *Transport) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := t.history.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, transport.ErrorBody{Kind: "internal", Error: err.Error()})
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}

// statusFor maps an error kind to an HTTP status code.
func statusFor(err error) int {
	switch job.KindOf(err) {
	case "validation", "unsupported_format":
		return http.StatusBadRequest
	case "credential":
		return http.StatusUnauthorized
	case "extraction":
		return http.StatusUnprocessableEntity
	case "rewrite", "synthesis":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, body transport.ErrorBody) {
	writeJSON(w, status, body)
}
