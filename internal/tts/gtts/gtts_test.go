package gtts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/nadzzz/narrator/internal/config"
	"github.com/nadzzz/narrator/internal/job"
	"github.com/nadzzz/narrator/internal/tts"
)

// decodeParam unpacks the inner [text, lang, speed, "null"] parameter.
func decodeParam(t *testing.T, r *http.Request) []any {
	t.Helper()
	if err := r.ParseForm(); err != nil {
		t.Errorf("parse form: %v", err)
		return nil
	}
	var rpc [][][]any
	if err := json.Unmarshal([]byte(r.PostForm.Get("f.req")), &rpc); err != nil {
		t.Errorf("decode f.req: %v", err)
		return nil
	}
	var param []any
	if err := json.Unmarshal([]byte(rpc[0][0][1].(string)), &param); err != nil {
		t.Errorf("decode param: %v", err)
		return nil
	}
	return param
}

func writeAudio(w http.ResponseWriter, audio []byte) {
	b64 := base64.StdEncoding.EncodeToString(audio)
	fmt.Fprintf(w, ")]}'\n\n120\n[[\"wrb.fr\",\"jQ1olc\",\"[\\\"%s\\\"]\",null,null,null,\"generic\"]]\n", b64)
}

func TestSynthesizeConcatenatesTokens(t *testing.T) {
	var calls atomic.Int32
	var slow atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_/TranslateWebserverUi/data/batchexecute" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		param := decodeParam(t, r)
		if len(param) != 4 {
			t.Errorf("unexpected param %v", param)
			return
		}
		if param[1] != "fr" {
			t.Errorf("expected lang fr, got %v", param[1])
		}
		if param[2] == true {
			slow.Store(true)
		}
		n := calls.Add(1)
		writeAudio(w, []byte(fmt.Sprintf("part%d;", n)))
	}))
	defer srv.Close()

	s := New(config.GTTSConfig{BaseURL: srv.URL})
	text := strings.Repeat("bonjour ", 30) // 240 runes, three tokens
	art, err := s.Synthesize(context.Background(), text, tts.GTTSOptions{Language: "fr", Slow: true, TLD: "fr"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer os.Remove(art.Path)

	data, _ := os.ReadFile(art.Path)
	if string(data) != "part1;part2;part3;" {
		t.Fatalf("unexpected audio %q", data)
	}
	if !slow.Load() {
		t.Fatal("expected slow flag to be sent")
	}
	if art.Format != "mp3" {
		t.Fatalf("expected mp3, got %s", art.Format)
	}
}

func TestSynthesizeNoAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, ")]}'\n\n20\n[[\"wrb.fr\",\"other\",null]]\n")
	}))
	defer srv.Close()

	s := New(config.GTTSConfig{BaseURL: srv.URL})
	_, err := s.Synthesize(context.Background(), "Hello world.", tts.GTTSOptions{Language: "xx"}, "")
	if !errors.Is(err, job.ErrSynthesis) {
		t.Fatalf("expected ErrSynthesis, got %v", err)
	}
}

func TestSynthesizeEmptyText(t *testing.T) {
	s := New(config.GTTSConfig{BaseURL: "http://127.0.0.1:0"})
	if _, err := s.Synthesize(context.Background(), "   ", tts.GTTSOptions{}, ""); !errors.Is(err, job.ErrSynthesis) {
		t.Fatalf("expected ErrSynthesis, got %v", err)
	}
}

func TestEndpointUsesTLD(t *testing.T) {
	s := New(config.GTTSConfig{})
	if got := s.endpoint("co.uk"); got != "https://translate.google.co.uk/_/TranslateWebserverUi/data/batchexecute" {
		t.Fatalf("unexpected endpoint %s", got)
	}
}

func TestTokenize(t *testing.T) {
	long := strings.Repeat("x", 250)
	tokens := Tokenize("short words here " + long + " tail")
	want := []string{"short words here", strings.Repeat("x", 100), strings.Repeat("x", 100), strings.Repeat("x", 50) + " tail"}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %q", len(want), len(tokens), tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("token %d: want %q, got %q", i, want[i], tokens[i])
		}
	}
	for _, tok := range Tokenize(strings.Repeat("é ", 500)) {
		if utf8.RuneCountInString(tok) > tokenMaxRunes {
			t.Fatalf("token exceeds limit: %d", utf8.RuneCountInString(tok))
		}
	}
}
