// Package chunk splits long text into bounded-size pieces on sentence
// boundaries so it can be fed to backends with input-size ceilings.
//
// The same splitter runs twice in a pipeline run with independent limits:
// once before rewriting and once before speech synthesis. Each call owns its
// own boundaries.
package chunk

import (
	"strings"
	"unicode/utf8"
)

const (
	// RewriteMaxSize is the default limit for text sent to the rewrite backend.
	RewriteMaxSize = 4000

	// SynthesisMaxSize is the default limit for text sent to a speech backend.
	SynthesisMaxSize = 5000

	// MinSize and MaxSize bound the user-configurable chunk size.
	MinSize = 1000
	MaxSize = 10000
)

// sentenceSep separates sentence units. It is restored between sentences
// that end up in the same chunk.
const sentenceSep = ". "

// sentenceEnd terminates every chunk cut before the end of the text.
const sentenceEnd = "."

// Split returns text as an ordered sequence of chunks, each at most maxSize
// characters long.
//
// Text that already fits is returned unchanged as a single chunk. Otherwise
// newlines are collapsed to spaces, the text is cut at ". " and sentences are
// packed greedily. Every chunk except the last keeps the period its cut
// removed, so joining the chunks with single spaces restores the text. A
// sentence longer than maxSize becomes its own chunk; it is never truncated.
// Lengths are counted in runes.
func Split(text string, maxSize int) []string {
	if maxSize <= 0 || utf8.RuneCountInString(text) <= maxSize {
		return []string{text}
	}

	sentences := strings.Split(strings.ReplaceAll(text, "\n", " "), sentenceSep)

	var (
		chunks []string
		buf    []string
		size   int // runes in buf including one separator per sentence
	)
	flush := func(cut bool) {
		if len(buf) == 0 {
			return
		}
		if c := strings.TrimSpace(strings.Join(buf, sentenceSep)); c != "" {
			if cut {
				c += sentenceEnd
			}
			chunks = append(chunks, c)
		}
		buf = buf[:0]
		size = 0
	}

	for _, s := range sentences {
		n := utf8.RuneCountInString(s) + len(sentenceSep)
		if size+n > maxSize {
			flush(true)
		}
		buf = append(buf, s)
		size += n
	}
	flush(false)

	return chunks
}

// Join reassembles rewritten chunks into one text with a single space
// between pieces.
func Join(chunks []string) string {
	return strings.Join(chunks, " ")
}

// ClampSize returns size limited to [MinSize, MaxSize], or def when size is zero.
func ClampSize(size, def int) int {
	switch {
	case size == 0:
		return def
	case size < MinSize:
		return MinSize
	case size > MaxSize:
		return MaxSize
	default:
		return size
	}
}
