package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/nadzzz/narrator/internal/config"
	"github.com/nadzzz/narrator/internal/history"
	"github.com/nadzzz/narrator/internal/job"
	"github.com/nadzzz/narrator/internal/pipeline"
	"github.com/nadzzz/narrator/internal/transport"
	"github.com/nadzzz/narrator/internal/tts"
)

func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(content)
	}
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func newTestTransport() *Transport {
	defaults := job.Settings{Engine: "gtts", Language: "en", TLD: "com", Rate: 150, Volume: 1}
	return New(config.HTTPConfig{Port: 0, MaxUploadMB: 1}, defaults, tts.DefaultCatalogue(), nil)
}

func TestAudiobookReturnsAudio(t *testing.T) {
	var got *job.Request
	var artifactPath string
	handler := func(_ context.Context, req *job.Request) (*pipeline.State, error) {
		got = req
		req.ID = "run-42"
		artifactPath = filepath.Join(t.TempDir(), "out.mp3")
		if err := os.WriteFile(artifactPath, []byte("mp3-bytes"), 0o600); err != nil {
			t.Error(err)
		}
		return &pipeline.State{
			Request:        req,
			Artifact:       tts.NewArtifact(artifactPath, tts.EngineGTTS),
			OutputFilename: "book_audiobook_20260301_120000.mp3",
			Stats:          job.Stats{WordCount: 12, SynthesisChunks: 1, AudioBytes: 9, AudioSize: "9.00 B"},
			TempFiles:      []string{artifactPath},
		}, nil
	}

	body, ct := multipartBody(t, "book.txt", []byte("Hello world text."), map[string]string{
		"tld":     "UK English",
		"slow":    "true",
		"rewrite": "false",
	})
	req := httptest.NewRequest(http.MethodPost, "/audiobooks", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	newTestTransport().Handler(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "mp3-bytes" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="book_audiobook_20260301_120000.mp3"` {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	if rec.Header().Get("Content-Type") != "audio/mpeg" || rec.Header().Get("X-Narrator-Word-Count") != "12" {
		t.Fatalf("unexpected headers %v", rec.Header())
	}
	if got.FileName != "book.txt" || string(got.Document) != "Hello world text." {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.Settings.TLD != "co.uk" || !got.Settings.Slow || got.Settings.Engine != "gtts" {
		t.Fatalf("unexpected settings %+v", got.Settings)
	}
	if _, err := os.Stat(artifactPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("expected temp artifact removed after response")
	}
}

func TestAudiobookErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{&pipeline.StageError{Stage: pipeline.StageExtracted, Err: fmt.Errorf("%w: text is too short", job.ErrValidation)}, http.StatusBadRequest, "validation"},
		{&pipeline.StageError{Stage: pipeline.StageRewritten, Err: fmt.Errorf("%w: key required", job.ErrCredential)}, http.StatusUnauthorized, "credential"},
		{&pipeline.StageError{Stage: pipeline.StageExtracted, Err: fmt.Errorf("%w: corrupt", job.ErrExtraction)}, http.StatusUnprocessableEntity, "extraction"},
		{&pipeline.StageError{Stage: pipeline.StageSynthesized, Err: fmt.Errorf("%w: down", job.ErrSynthesis)}, http.StatusBadGateway, "synthesis"},
	}
	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			handler := func(_ context.Context, req *job.Request) (*pipeline.State, error) {
				return &pipeline.State{Request: req}, tc.err
			}
			body, ct := multipartBody(t, "a.txt", []byte("x"), nil)
			req := httptest.NewRequest(http.MethodPost, "/audiobooks", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			newTestTransport().Handler(handler).ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			var eb transport.ErrorBody
			if err := json.NewDecoder(rec.Body).Decode(&eb); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if eb.Kind != tc.kind || eb.Stage == "" || eb.Error == "" {
				t.Fatalf("unexpected error body %+v", eb)
			}
		})
	}
}

func TestAudiobookRejectsBadInput(t *testing.T) {
	handler := func(context.Context, *job.Request) (*pipeline.State, error) {
		t.Error("handler should not be called")
		return &pipeline.State{}, nil
	}
	h := newTestTransport().Handler(handler)

	body, ct := multipartBody(t, "", nil, map[string]string{"engine": "gtts"})
	req := httptest.NewRequest(http.MethodPost, "/audiobooks", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing file: expected 400, got %d", rec.Code)
	}

	body, ct = multipartBody(t, "a.txt", []byte("text"), map[string]string{"rate": "fast"})
	req = httptest.NewRequest(http.MethodPost, "/audiobooks", body)
	req.Header.Set("Content-Type", ct)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad rate: expected 400, got %d", rec.Code)
	}
}

func TestVoices(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestTransport().Handler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/voices", nil))
	var resp voicesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Engines) != 3 || len(resp.Styles) != 3 || len(resp.Voices.OpenAIVoices) != 6 {
		t.Fatalf("unexpected catalogue %+v", resp)
	}
}

func TestRuns(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := history.Open(ctx, config.HistoryConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "runs.db")}, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.Record(ctx, history.Run{RequestID: "r1", Outcome: "success"}); err != nil {
		t.Fatal(err)
	}

	tr := New(config.HTTPConfig{}, job.Settings{}, tts.DefaultCatalogue(), store)
	rec := httptest.NewRecorder()
	tr.Handler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?limit=5", nil))
	var runs []history.Run
	if err := json.NewDecoder(rec.Body).Decode(&runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 1 || runs[0].RequestID != "r1" {
		t.Fatalf("unexpected runs %+v", runs)
	}

	rec = httptest.NewRecorder()
	newTestTransport().Handler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))
	if rec.Body.String() != "[]\n" {
		t.Fatalf("expected empty list without history, got %q", rec.Body.String())
	}
}
