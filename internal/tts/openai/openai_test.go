package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/nadzzz/narrator/internal/config"
	"github.com/nadzzz/narrator/internal/job"
	"github.com/nadzzz/narrator/internal/tts"
)

func newTestSynth(t *testing.T, h http.HandlerFunc) *Synthesizer {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	s, err := New(config.OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL, SpeechModel: "tts-1"})
	if err != nil {
		t.Fatalf("new synthesizer: %v", err)
	}
	return s
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(config.OpenAIConfig{}); !errors.Is(err, job.ErrCredential) {
		t.Fatalf("expected ErrCredential, got %v", err)
	}
}

func TestSynthesizeWritesMP3(t *testing.T) {
	var got speechRequest
	s := newTestSynth(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3fake-mp3"))
	})

	out := filepath.Join(t.TempDir(), "speech.mp3")
	art, err := s.Synthesize(context.Background(), "Hello there.", tts.OpenAIOptions{Voice: "nova", Speed: 1.25}, out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Voice != "nova" || got.Speed != 1.25 || got.Input != "Hello there." || got.ResponseFormat != "mp3" {
		t.Fatalf("unexpected request: %+v", got)
	}
	data, _ := os.ReadFile(art.Path)
	if string(data) != "ID3fake-mp3" || art.ContentType != "audio/mpeg" {
		t.Fatalf("unexpected artifact %+v with %q", art, data)
	}
}

func TestSynthesizeAPIError(t *testing.T) {
	s := newTestSynth(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"bad voice"}`, http.StatusBadRequest)
	})
	_, err := s.Synthesize(context.Background(), "Hi.", tts.OpenAIOptions{Voice: "bogus"}, "")
	if !errors.Is(err, job.ErrSynthesis) {
		t.Fatalf("expected ErrSynthesis, got %v", err)
	}
}

func TestSynthesizeRejectsOtherOptions(t *testing.T) {
	s := newTestSynth(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("backend should not be called")
	})
	if _, err := s.Synthesize(context.Background(), "Hi.", tts.GTTSOptions{}, ""); !errors.Is(err, job.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}
