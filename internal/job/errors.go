package job

import "errors"

// Error kinds surfaced to callers. Components wrap them together with the
// underlying cause so both errors.Is and the backend message survive.
var (
	// ErrExtraction indicates an unreadable, corrupt or undecodable document.
	ErrExtraction = errors.New("extraction failed")

	// ErrValidation indicates the extracted text is out of length bounds.
	ErrValidation = errors.New("validation failed")

	// ErrCredential indicates a missing or invalid rewrite/speech credential.
	ErrCredential = errors.New("credential error")

	// ErrRewrite indicates the remote rewrite call failed.
	ErrRewrite = errors.New("rewrite failed")

	// ErrSynthesis indicates a speech backend failed to generate audio.
	ErrSynthesis = errors.New("synthesis failed")

	// ErrUnsupportedFormat indicates an unknown file extension or engine tag.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// KindOf returns a short machine-readable name for the error kind in err's chain.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrExtraction):
		return "extraction"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrCredential):
		return "credential"
	case errors.Is(err, ErrRewrite):
		return "rewrite"
	case errors.Is(err, ErrSynthesis):
		return "synthesis"
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	default:
		return "internal"
	}
}
