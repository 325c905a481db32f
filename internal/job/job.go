// Package job defines the core data types flowing through the narrator pipeline.
package job

import "time"

// Kind is the document format of an uploaded file.
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindDOCX Kind = "docx"
	KindTXT  Kind = "txt"
)

// Request represents one document-to-audiobook conversion from any transport.
type Request struct {
	// ID is a unique identifier for this run.
	ID string `json:"id"`

	// FileName is the original upload name; its stem names the output file.
	FileName string `json:"file_name"`

	// Document is the raw uploaded file.
	Document []byte `json:"-"`

	// Kind is the document format. Detected from FileName when empty.
	Kind Kind `json:"kind,omitempty"`

	// Settings controls rewriting and synthesis for this run.
	Settings Settings `json:"settings"`

	// Timestamp is when the request was received.
	Timestamp time.Time `json:"timestamp"`
}

// Settings is the per-run selection of engine, voice, style and chunk sizes.
type Settings struct {
	// Engine is the synthesis engine tag: "openai", "gtts" or "pyttsx3".
	Engine string `json:"engine"`

	// Rewrite enables the LLM narration rewrite stage.
	Rewrite bool `json:"rewrite"`

	// Style is the narration style: storytelling, professional or casual.
	Style string `json:"style,omitempty"`

	// Creativity is passed to the rewrite backend as sampling temperature.
	Creativity float64 `json:"creativity"`

	// RewriteChunkSize bounds each text piece sent for rewriting.
	RewriteChunkSize int `json:"rewrite_chunk_size"`

	// SynthesisChunkSize bounds each text piece sent for synthesis.
	SynthesisChunkSize int `json:"synthesis_chunk_size"`

	// OpenAI engine options.
	Voice string  `json:"voice,omitempty"`
	Speed float64 `json:"speed,omitempty"`

	// gTTS engine options.
	Language string `json:"language,omitempty"`
	Slow     bool   `json:"slow,omitempty"`
	TLD      string `json:"tld,omitempty"`

	// Offline engine options.
	Rate   int     `json:"rate,omitempty"`
	Volume float64 `json:"volume,omitempty"`
	Gender string  `json:"gender,omitempty"`
}

// Stats summarises the text and audio produced by a run.
type Stats struct {
	WordCount       int           `json:"word_count"`
	CharCount       int           `json:"char_count"`
	ReadingMinutes  int           `json:"reading_minutes"`
	ReadingSeconds  int           `json:"reading_seconds"`
	ReadingTotal    float64       `json:"reading_total_minutes"`
	RewriteChunks   int           `json:"rewrite_chunks"`
	SynthesisChunks int           `json:"synthesis_chunks"`
	AudioBytes      int64         `json:"audio_bytes"`
	AudioSize       string        `json:"audio_size"`
	AudioDuration   time.Duration `json:"audio_duration"`
	ProcessingTime  time.Duration `json:"processing_time"`
}
