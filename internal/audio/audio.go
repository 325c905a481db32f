// Package audio merges per-chunk speech files into one artifact and reads
// basic properties back from the result.
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// Concat writes the parts, in order, to outPath as a single file of the
// given format ("mp3" or "wav").
//
// MP3 frames are self-delimiting so parts are appended byte for byte. WAV
// parts are decoded and re-encoded under one header; they must share sample
// rate, bit depth and channel count.
func Concat(format string, parts []string, outPath string) error {
	if len(parts) == 0 {
		return errors.New("no audio parts to merge")
	}
	switch format {
	case "mp3":
		return concatRaw(parts, outPath)
	case "wav":
		return concatWAV(parts, outPath)
	default:
		return fmt.Errorf("cannot merge %q audio", format)
	}
}

func concatRaw(parts []string, outPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	for _, p := range parts {
		if err := appendFile(out, p); err != nil {
			out.Close()
			return err
		}
	}
	return out.Close()
}

func appendFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening part: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("copying part %s: %w", path, err)
	}
	return nil
}

type wavFormat struct {
	sampleRate  int
	bitDepth    int
	channels    int
	audioFormat int
}

func concatWAV(parts []string, outPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	return mergeWAV(out, parts)
}

// wavSink is the seekable output a merged WAV is encoded into.
type wavSink interface {
	io.WriteSeeker
	io.Closer
}

// mergeWAV encodes parts into out and closes it. A failed close is
// reported since the encoder rewrites the header on close.
func mergeWAV(out wavSink, parts []string) error {
	fail := func(err error) error {
		out.Close()
		return err
	}

	var enc *wav.Encoder
	var first wavFormat
	for i, p := range parts {
		buf, f, err := readWAV(p)
		if err != nil {
			return fail(fmt.Errorf("part %d: %w", i+1, err))
		}
		if enc == nil {
			first = f
			enc = wav.NewEncoder(out, f.sampleRate, f.bitDepth, f.channels, f.audioFormat)
		} else if f != first {
			return fail(fmt.Errorf("part %d: format %+v differs from %+v", i+1, f, first))
		}
		if err := enc.Write(buf); err != nil {
			return fail(fmt.Errorf("write wav: %w", err))
		}
	}
	if err := enc.Close(); err != nil {
		return fail(fmt.Errorf("close wav encoder: %w", err))
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing merged wav: %w", err)
	}
	return nil
}

func readWAV(path string) (*goaudio.IntBuffer, wavFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wavFormat{}, fmt.Errorf("opening part: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, wavFormat{}, fmt.Errorf("%s is not a valid WAV file", path)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, wavFormat{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	return buf, wavFormat{
		sampleRate:  int(d.SampleRate),
		bitDepth:    int(d.BitDepth),
		channels:    int(d.NumChans),
		audioFormat: int(d.WavAudioFormat),
	}, nil
}

// Duration reports the playing time of an MP3 or WAV file.
func Duration(path, format string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	switch format {
	case "wav":
		return wav.NewDecoder(f).Duration()
	case "mp3":
		d, err := mp3.NewDecoder(f)
		if err != nil {
			return 0, fmt.Errorf("decoding mp3: %w", err)
		}
		// Decoded output is 16-bit stereo: four bytes per sample frame.
		frames := d.Length() / 4
		if frames <= 0 || d.SampleRate() == 0 {
			return 0, errors.New("mp3 length unknown")
		}
		return time.Duration(frames) * time.Second / time.Duration(d.SampleRate()), nil
	default:
		return 0, fmt.Errorf("cannot probe %q audio", format)
	}
}
