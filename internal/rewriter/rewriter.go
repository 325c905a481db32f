// Package rewriter defines the interface for LLM-based narration rewriting.
//
// A rewriter turns extracted document text into text that reads well aloud.
// Long documents are rewritten chunk by chunk, strictly in order, and the
// results are joined back into one text.
package rewriter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nadzzz/narrator/internal/chunk"
	"github.com/nadzzz/narrator/internal/job"
)

// Style is a narration preset that selects the rewrite instruction.
type Style string

const (
	StyleStorytelling Style = "storytelling"
	StyleProfessional Style = "professional"
	StyleCasual       Style = "casual"
)

// SystemInstruction frames every rewrite request.
const SystemInstruction = "You are an expert audiobook narrator and editor. Your task is to rewrite text to make it perfect for audio narration."

var stylePrompts = map[Style]string{
	StyleStorytelling: "Rewrite the following text in a natural, engaging storytelling narration style suitable for an audiobook. Make it flow smoothly and sound conversational while maintaining the original meaning and key information.",
	StyleProfessional: "Rewrite the following text in a clear, professional narration style suitable for an educational or business audiobook. Keep it formal but accessible.",
	StyleCasual:       "Rewrite the following text in a friendly, casual conversational style suitable for an audiobook. Make it sound like a friend telling a story.",
}

// ParseStyle maps a style name to a Style. Unknown names fall back to storytelling.
func ParseStyle(name string) Style {
	s := Style(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := stylePrompts[s]; ok {
		return s
	}
	return StyleStorytelling
}

// Styles lists the supported narration styles.
func Styles() []Style {
	return []Style{StyleStorytelling, StyleProfessional, StyleCasual}
}

// Prompt returns the instruction template for style.
func Prompt(style Style) string {
	if p, ok := stylePrompts[style]; ok {
		return p
	}
	return stylePrompts[StyleStorytelling]
}

// UserPrompt builds the user message for one piece of text.
func UserPrompt(text string, style Style) string {
	return Prompt(style) + "\n\nText to rewrite:\n" + text
}

// Rewriter is the interface for a remote text-rewriting backend.
type Rewriter interface {
	// Rewrite returns text rewritten in the given style. Creativity is
	// forwarded to the backend as sampling temperature without local checks.
	Rewrite(ctx context.Context, text string, style Style, creativity float64) (string, error)
}

// Progress is called after each chunk completes with the number of finished
// chunks and the total.
type Progress func(done, total int)

// RewriteAll rewrites chunks sequentially and joins the results with single
// spaces. The first failing chunk aborts the batch; no partial text is returned.
func RewriteAll(ctx context.Context, r Rewriter, chunks []string, style Style, creativity float64, onProgress Progress) (string, error) {
	total := len(chunks)
	out := make([]string, 0, total)
	for i, c := range chunks {
		slog.Debug("rewriting chunk", "index", i+1, "total", total, "chars", len(c))
		text, err := r.Rewrite(ctx, c, style, creativity)
		if err != nil {
			return "", fmt.Errorf("%w: error rewriting text (chunk %d/%d): %w", job.ErrRewrite, i+1, total, err)
		}
		out = append(out, text)
		if onProgress != nil {
			onProgress(i+1, total)
		}
	}
	return chunk.Join(out), nil
}
