// Package gtts implements the tts.Synthesizer interface against the Google
// Translate speech endpoint. It is the free engine and needs no credential.
//
// The endpoint only accepts short inputs, so text is split into tokens of at
// most tokenMaxRunes on word boundaries. Each token is fetched separately and
// the MP3 responses are concatenated in order.
package gtts

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/nadzzz/narrator/internal/config"
	"github.com/nadzzz/narrator/internal/job"
	"github.com/nadzzz/narrator/internal/tts"
)

const (
	rpcID         = "jQ1olc"
	tokenMaxRunes = 100
	userAgent     = "Mozilla/5.0 (Windows NT 10.0; WOW64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/47.0.2526.106 Safari/537.36"
)

var audioPattern = regexp.MustCompile(`jQ1olc","\[\\"(.*)\\"]`)

// Synthesizer fetches speech from translate.google.{tld}.
type Synthesizer struct {
	baseURL string // overrides the TLD-derived host when set
	client  *http.Client
}

// New creates a Google speech synthesizer.
func New(cfg config.GTTSConfig) *Synthesizer {
	return &Synthesizer{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		client:  &http.Client{},
	}
}

// Engine implements tts.Synthesizer.
func (s *Synthesizer) Engine() tts.Engine { return tts.EngineGTTS }

// Synthesize implements tts.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.Options, outPath string) (*tts.Artifact, error) {
	o, ok := opts.(tts.GTTSOptions)
	if !ok {
		return nil, tts.MismatchedOptions(tts.EngineGTTS, opts)
	}
	if o.Language == "" {
		o.Language = "en"
	}
	if o.TLD == "" {
		o.TLD = "com"
	}

	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: error generating speech with gTTS: no text to speak", job.ErrSynthesis)
	}

	var audio bytes.Buffer
	for i, tok := range tokens {
		part, err := s.fetch(ctx, tok, o)
		if err != nil {
			return nil, fmt.Errorf("%w: error generating speech with gTTS (token %d/%d): %w", job.ErrSynthesis, i+1, len(tokens), err)
		}
		audio.Write(part)
	}

	path, err := tts.OutputPath(outPath, tts.EngineGTTS)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", job.ErrSynthesis, err)
	}
	if err := os.WriteFile(path, audio.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("%w: writing audio: %w", job.ErrSynthesis, err)
	}

	slog.Debug("gtts speech complete", "lang", o.Language, "tld", o.TLD, "tokens", len(tokens), "bytes", audio.Len())
	return tts.NewArtifact(path, tts.EngineGTTS), nil
}

func (s *Synthesizer) endpoint(tld string) string {
	base := s.baseURL
	if base == "" {
		base = "https://translate.google." + tld
	}
	return base + "/_/TranslateWebserverUi/data/batchexecute"
}

func (s *Synthesizer) fetch(ctx context.Context, text string, o tts.GTTSOptions) ([]byte, error) {
	body, err := packageRPC(text, o)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(o.TLD), strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")
	req.Header.Set("Referer", "http://translate.google.com/")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("speech failed (status %d): %s", resp.StatusCode, respBody)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64<<10), 8<<20)
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, rpcID) {
			continue
		}
		m := audioPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		audio, err := base64.StdEncoding.DecodeString(m[1])
		if err != nil {
			return nil, fmt.Errorf("decoding audio payload: %w", err)
		}
		return audio, nil
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading speech response: %w", err)
	}
	return nil, fmt.Errorf("no audio in speech response (lang %q may be unsupported)", o.Language)
}

// packageRPC builds the form body for one batchexecute call.
func packageRPC(text string, o tts.GTTSOptions) (string, error) {
	var speed any // null selects normal speed
	if o.Slow {
		speed = true
	}
	param, err := compactJSON([]any{text, o.Language, speed, "null"})
	if err != nil {
		return "", err
	}
	rpc, err := compactJSON([]any{[]any{[]any{rpcID, param, nil, "generic"}}})
	if err != nil {
		return "", err
	}
	return "f.req=" + url.QueryEscape(rpc) + "&", nil
}

func compactJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encoding rpc: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Tokenize splits text into pieces of at most 100 runes, breaking between
// words. A single word longer than the limit is cut at the limit.
func Tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, word := range strings.Fields(text) {
		for utf8.RuneCountInString(word) > tokenMaxRunes {
			flush()
			r := []rune(word)
			tokens = append(tokens, string(r[:tokenMaxRunes]))
			word = string(r[tokenMaxRunes:])
		}
		n := utf8.RuneCountInString(word)
		if curLen > 0 && curLen+1+n > tokenMaxRunes {
			flush()
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(word)
		curLen += n
	}
	flush()
	return tokens
}
