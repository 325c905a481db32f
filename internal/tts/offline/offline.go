// Package offline implements the tts.Synthesizer interface by running a
// local eSpeak-compatible command. It needs no network and writes WAV.
package offline

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"

	"github.com/nadzzz/narrator/internal/config"
	"github.com/nadzzz/narrator/internal/job"
	"github.com/nadzzz/narrator/internal/tts"
)

// Synthesizer shells out to the configured speech command.
type Synthesizer struct {
	cmd []string
	mu  sync.Mutex // the local engine is not reentrant
}

// New parses the configured command line. An empty command defaults to espeak-ng.
func New(cfg config.OfflineConfig) (*Synthesizer, error) {
	command := cfg.Command
	if strings.TrimSpace(command) == "" {
		command = "espeak-ng"
	}
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse offline tts command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("offline tts command empty")
	}
	return &Synthesizer{cmd: args}, nil
}

// Engine implements tts.Synthesizer.
func (s *Synthesizer) Engine() tts.Engine { return tts.EngineOffline }

// Synthesize implements tts.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.Options, outPath string) (*tts.Artifact, error) {
	o, ok := opts.(tts.OfflineOptions)
	if !ok {
		return nil, tts.MismatchedOptions(tts.EngineOffline, opts)
	}
	if o.Rate <= 0 {
		o.Rate = 150
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := tts.OutputPath(outPath, tts.EngineOffline)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", job.ErrSynthesis, err)
	}

	args := []string{"-w", path, "-s", strconv.Itoa(o.Rate), "-a", strconv.Itoa(amplitude(o.Volume))}
	if voice := s.pickVoice(ctx, o.Gender); voice != "" {
		args = append(args, "-v", voice)
	}
	args = append(args, "--stdin")

	var stderr bytes.Buffer
	cmd := s.command(ctx, args...)
	cmd.Stdin = strings.NewReader(text)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: error generating speech with pyttsx3: %w: %s", job.ErrSynthesis, err, strings.TrimSpace(stderr.String()))
	}

	fi, err := os.Stat(path)
	if err != nil || fi.Size() == 0 {
		return nil, fmt.Errorf("%w: error generating speech with pyttsx3: no audio written to %s", job.ErrSynthesis, path)
	}

	slog.Debug("offline speech complete", "rate", o.Rate, "volume", o.Volume, "bytes", fi.Size())
	return tts.NewArtifact(path, tts.EngineOffline), nil
}

// Voices lists the names of the voices the local engine has installed.
func (s *Synthesizer) Voices(ctx context.Context) ([]string, error) {
	out, err := s.command(ctx, "--voices").Output()
	if err != nil {
		return nil, fmt.Errorf("listing voices: %w", err)
	}
	var names []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		// Pty Language Age/Gender VoiceName File ...
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		names = append(names, fields[3])
	}
	return names, sc.Err()
}

// pickVoice returns the first installed voice whose name contains gender,
// ignoring case. It returns "" (engine default) when nothing matches.
func (s *Synthesizer) pickVoice(ctx context.Context, gender string) string {
	if gender == "" {
		return ""
	}
	names, err := s.Voices(ctx)
	if err != nil {
		slog.Warn("could not list offline voices, using default", "error", err)
		return ""
	}
	want := strings.ToLower(gender)
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), want) {
			return name
		}
	}
	return ""
}

func (s *Synthesizer) command(ctx context.Context, extra ...string) *exec.Cmd {
	args := append(append([]string{}, s.cmd[1:]...), extra...)
	return exec.CommandContext(ctx, s.cmd[0], args...)
}

// amplitude maps a 0.0-1.0 volume onto eSpeak's amplitude scale, where 100
// is the engine's normal level. Out-of-range volumes are clamped.
func amplitude(volume float64) int {
	switch {
	case volume <= 0:
		return 0
	case volume >= 1:
		return 100
	}
	return int(volume*100 + 0.5)
}
