// Package textutil holds small validation and formatting helpers shared by
// the pipeline and the transports.
package textutil

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nadzzz/narrator/internal/job"
)

const (
	// DefaultMinLength and DefaultMaxLength bound extracted text.
	DefaultMinLength = 10
	DefaultMaxLength = 100000

	// DefaultWordsPerMinute is the narration pace used for time estimates.
	DefaultWordsPerMinute = 150

	// DefaultSuffix is appended to the original stem in output filenames.
	DefaultSuffix = "_audiobook"
)

// FileExtension returns the lower-cased extension of filename without the dot.
func FileExtension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// FormatFileSize renders a byte count as "1.50 MB" style text.
func FormatFileSize(size int64) string {
	v := float64(size)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if v < 1024 {
			return fmt.Sprintf("%.2f %s", v, unit)
		}
		v /= 1024
	}
	return fmt.Sprintf("%.2f TB", v)
}

// ReadingTime is an estimate of how long narration of a text takes.
type ReadingTime struct {
	WordCount    int
	Minutes      int
	Seconds      int
	TotalMinutes float64
}

// EstimateReadingTime estimates listening time at wpm words per minute.
func EstimateReadingTime(text string, wpm int) ReadingTime {
	if wpm <= 0 {
		wpm = DefaultWordsPerMinute
	}
	words := len(strings.Fields(text))
	total := float64(words) / float64(wpm)
	minutes := int(total)
	return ReadingTime{
		WordCount:    words,
		Minutes:      minutes,
		Seconds:      int((total - float64(minutes)) * 60),
		TotalMinutes: math.Round(total*100) / 100,
	}
}

// OutputFilename builds "{stem}{suffix}_{YYYYMMDD_HHMMSS}.{ext}" for a download.
func OutputFilename(original, suffix, ext string, now time.Time) string {
	base := filepath.Base(original)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if ext == "" {
		ext = "mp3"
	}
	return fmt.Sprintf("%s%s_%s.%s", stem, suffix, now.Format("20060102_150405"), ext)
}

// Truncate shortens text to maxLen runes, appending "..." when it cuts.
// A negative maxLen is treated as zero.
func Truncate(text string, maxLen int) string {
	if maxLen < 0 {
		maxLen = 0
	}
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	r := []rune(text)
	return string(r[:maxLen]) + "..."
}

// ValidateLength checks the trimmed length of text against [minLen, maxLen].
// The returned error wraps job.ErrValidation.
func ValidateLength(text string, minLen, maxLen int) error {
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	if n < minLen {
		return fmt.Errorf("%w: text is too short, minimum %d characters required", job.ErrValidation, minLen)
	}
	if n > maxLen {
		return fmt.Errorf("%w: text is too long, maximum %d characters allowed", job.ErrValidation, maxLen)
	}
	return nil
}
