// Package openai implements the tts.Synthesizer interface using OpenAI's
// speech API. It is the premium engine and requires an API key.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/nadzzz/narrator/internal/config"
	"github.com/nadzzz/narrator/internal/job"
	"github.com/nadzzz/narrator/internal/tts"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Synthesizer calls the OpenAI /audio/speech endpoint.
type Synthesizer struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// New creates a new OpenAI synthesizer. It fails with job.ErrCredential when
// no API key is configured.
func New(cfg config.OpenAIConfig) (*Synthesizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key required for OpenAI TTS", job.ErrCredential)
	}
	model := cfg.SpeechModel
	if model == "" {
		model = "tts-1"
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return &Synthesizer{
		apiKey:  cfg.APIKey,
		baseURL: base,
		model:   model,
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Engine implements tts.Synthesizer.
func (s *Synthesizer) Engine() tts.Engine { return tts.EngineOpenAI }

// Synthesize implements tts.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.Options, outPath string) (*tts.Artifact, error) {
	o, ok := opts.(tts.OpenAIOptions)
	if !ok {
		return nil, tts.MismatchedOptions(tts.EngineOpenAI, opts)
	}

	audio, err := s.speech(ctx, text, o)
	if err != nil {
		return nil, fmt.Errorf("%w: error generating speech with OpenAI TTS: %w", job.ErrSynthesis, err)
	}

	path, err := tts.OutputPath(outPath, tts.EngineOpenAI)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", job.ErrSynthesis, err)
	}
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return nil, fmt.Errorf("%w: writing audio: %w", job.ErrSynthesis, err)
	}

	slog.Debug("openai speech complete", "voice", o.Voice, "speed", o.Speed, "bytes", len(audio))
	return tts.NewArtifact(path, tts.EngineOpenAI), nil
}

func (s *Synthesizer) speech(ctx context.Context, text string, o tts.OpenAIOptions) ([]byte, error) {
	voice := o.Voice
	if voice == "" {
		voice = "alloy"
	}
	speed := o.Speed
	if speed == 0 {
		speed = 1.0
	}

	bodyBytes, err := json.Marshal(speechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          voice,
		Speed:          speed,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/audio/speech", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating speech request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("speech failed (status %d): %s", resp.StatusCode, respBody)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading speech response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("empty speech response")
	}
	return audio, nil
}

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Speed          float64 `json:"speed"`
	ResponseFormat string  `json:"response_format"`
}
