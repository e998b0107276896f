package convert

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// TextEngine is the built-in engine for formats that are already text. It
// fences structured formats and passes prose through; binary formats are
// rejected and belong to an external engine.
type TextEngine struct{}

func NewTextEngine() *TextEngine {
	return &TextEngine{}
}

var fencedLanguages = map[string]string{
	"json": "json",
	"xml":  "xml",
	"csv":  "csv",
	"py":   "python",
	"js":   "javascript",
	"html": "html",
	"htm":  "html",
}

func (e *TextEngine) Convert(_ context.Context, filename string, data []byte) (string, error) {
	ext := Ext(filename)
	if !IsSupported(ext) {
		return "", ErrUnsupportedType
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s: %w by the text engine", ext, ErrUnsupportedType)
	}

	switch ext {
	case "txt", "md":
		return string(data), nil
	default:
		lang, ok := fencedLanguages[ext]
		if !ok {
			return "", fmt.Errorf("%s: %w by the text engine", ext, ErrUnsupportedType)
		}
		return fmt.Sprintf("# %s\n\n```%s\n%s\n```\n", filename, lang, data), nil
	}
}
