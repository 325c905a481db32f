// Package extract pulls plain text out of uploaded documents.
//
// Every format is handled by an ordered list of strategies. The first
// strategy that succeeds wins; when all fail the individual failures are
// joined into one error wrapping job.ErrExtraction.
package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nadzzz/narrator/internal/job"
	"github.com/nadzzz/narrator/internal/textutil"
)

// strategy is one way of turning raw bytes into text.
type strategy struct {
	name string
	fn   func(data []byte) (string, error)
}

// Extractor routes documents to the strategies for their format.
type Extractor struct {
	strategies map[job.Kind][]strategy
}

// New creates an Extractor for PDF, DOCX and plain-text documents.
func New() *Extractor {
	return &Extractor{
		strategies: map[job.Kind][]strategy{
			job.KindPDF: {
				{name: "pdf-pages", fn: pdfPageText},
				{name: "pdf-rows", fn: pdfRowText},
			},
			job.KindDOCX: {
				{name: "docx-xml", fn: docxText},
			},
			job.KindTXT: textStrategies(),
		},
	}
}

// Detect maps a filename extension to a document kind.
func Detect(filename string) (job.Kind, error) {
	switch ext := textutil.FileExtension(filename); ext {
	case "pdf":
		return job.KindPDF, nil
	case "docx":
		return job.KindDOCX, nil
	case "txt":
		return job.KindTXT, nil
	default:
		return "", fmt.Errorf("%w: unsupported file type: %q", job.ErrUnsupportedFormat, ext)
	}
}

// Extract returns the trimmed text of data interpreted as kind.
func (e *Extractor) Extract(data []byte, kind job.Kind) (string, error) {
	kind = job.Kind(strings.ToLower(string(kind)))
	strategies, ok := e.strategies[kind]
	if !ok {
		return "", fmt.Errorf("%w: unsupported file type: %q", job.ErrUnsupportedFormat, kind)
	}

	var errs []error
	for _, s := range strategies {
		text, err := run(s, data)
		if err == nil {
			return strings.TrimSpace(text), nil
		}
		slog.Warn("extraction strategy failed, trying next", "strategy", s.name, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
	}
	msg := "error extracting text from " + strings.ToUpper(string(kind))
	if kind == job.KindTXT {
		msg = "could not decode text file with supported encodings"
	}
	return "", fmt.Errorf("%w: %s: %w", job.ErrExtraction, msg, errors.Join(errs...))
}

// run calls a strategy, converting parser panics on malformed input into errors.
func run(s strategy, data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()
	return s.fn(data)
}
