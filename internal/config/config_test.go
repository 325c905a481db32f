package config

import (
	"os"
	"path/filepath"
	"testing"
)

// chdirTemp runs the test from an empty directory so no stray .env or
// narrator.yaml leaks into Load.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Rewrite.ChunkSize != 4000 {
		t.Fatalf("expected rewrite chunk size 4000, got %d", cfg.Rewrite.ChunkSize)
	}
	if cfg.TTS.ChunkSize != 5000 {
		t.Fatalf("expected tts chunk size 5000, got %d", cfg.TTS.ChunkSize)
	}
	if cfg.TTS.Engine != "gtts" {
		t.Fatalf("expected gtts engine, got %q", cfg.TTS.Engine)
	}
	if cfg.OpenAI.RewriteModel != "gpt-4o-mini" || cfg.OpenAI.MaxOutputTokens != 4000 {
		t.Fatalf("unexpected openai defaults: %+v", cfg.OpenAI)
	}
	if cfg.Validation.MinLength != 10 || cfg.Validation.MaxLength != 100000 {
		t.Fatalf("unexpected validation bounds: %+v", cfg.Validation)
	}
	if cfg.HasOpenAIKey() {
		t.Fatal("expected no api key")
	}
}

func TestEnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("NARRATOR_TTS_ENGINE", "pyttsx3")
	t.Setenv("NARRATOR_REWRITE_CHUNK_SIZE", "2500")
	t.Setenv("NARRATOR_REWRITE_STYLE", "casual")
	t.Setenv("NARRATOR_TTS_OFFLINE_RATE", "180")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OpenAI.APIKey != "sk-test" || !cfg.HasOpenAIKey() {
		t.Fatalf("expected api key resolved from env, got %q", cfg.OpenAI.APIKey)
	}
	if cfg.TTS.Engine != "pyttsx3" {
		t.Fatalf("expected engine override, got %q", cfg.TTS.Engine)
	}
	if cfg.Rewrite.ChunkSize != 2500 {
		t.Fatalf("expected chunk size override, got %d", cfg.Rewrite.ChunkSize)
	}
	if cfg.Rewrite.Style != "casual" {
		t.Fatalf("expected style override, got %q", cfg.Rewrite.Style)
	}
	if cfg.TTS.Offline.Rate != 180 {
		t.Fatalf("expected rate override, got %d", cfg.TTS.Offline.Rate)
	}
}

func TestDotEnvLoaded(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("OPENAI_API_KEY", "")
	os.Unsetenv("OPENAI_API_KEY")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENAI_API_KEY=sk-from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OpenAI.APIKey != "sk-from-dotenv" {
		t.Fatalf("expected key from .env, got %q", cfg.OpenAI.APIKey)
	}
}

func TestConfigFile(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "custom.yaml")
	yaml := []byte("tts:\n  engine: openai\n  openai:\n    voice: nova\n    speed: 1.25\nrewrite:\n  enabled: false\n")
	if err := os.WriteFile(path, yaml, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TTS.Engine != "openai" || cfg.TTS.OpenAI.Voice != "nova" || cfg.TTS.OpenAI.Speed != 1.25 {
		t.Fatalf("unexpected tts config: %+v", cfg.TTS)
	}
	if cfg.Rewrite.Enabled {
		t.Fatal("expected rewrite disabled from file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	chdirTemp(t)
	tests := map[string]string{
		"NARRATOR_REWRITE_CHUNK_SIZE": "500",
		"NARRATOR_TTS_ENGINE":         "festival",
		"NARRATOR_REWRITE_STYLE":      "poetic",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := Load(""); err == nil {
				t.Fatalf("expected error for %s=%s", key, val)
			}
		})
	}
}
