package extract

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

var errInvalidUTF8 = errors.New("invalid utf-8 byte sequence")

// textEncodings is the ordered list of encodings tried for plain text files.
// Latin-1 maps every byte, so later entries only matter if it is removed.
var textEncodings = []struct {
	name string
	enc  encoding.Encoding
}{
	{"utf-8", nil},
	{"latin-1", charmap.ISO8859_1},
	{"cp1252", charmap.Windows1252},
	{"iso-8859-1", charmap.ISO8859_1},
}

func textStrategies() []strategy {
	strategies := make([]strategy, 0, len(textEncodings))
	for _, te := range textEncodings {
		enc := te.enc
		strategies = append(strategies, strategy{
			name: te.name,
			fn: func(data []byte) (string, error) {
				return decodeText(data, enc)
			},
		})
	}
	return strategies
}

// decodeText decodes data with enc, or validates it as UTF-8 when enc is nil.
func decodeText(data []byte, enc encoding.Encoding) (string, error) {
	if enc == nil {
		if !utf8.Valid(data) {
			return "", errInvalidUTF8
		}
		// Drop a leading byte order mark.
		if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
			data = data[3:]
		}
		return string(data), nil
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
