// Package convert defines the conversion engine contract and the registry
// of file formats the service accepts. The engine itself is an external
// collaborator: it consumes raw bytes plus a declared format and either
// returns rendered markdown or fails.
package convert

import (
	"context"
	"errors"
	"strings"
)

var ErrUnsupportedType = errors.New("unsupported file type")

type Engine interface {
	Convert(ctx context.Context, filename string, data []byte) (string, error)
}

// SupportedExtensions maps accepted extensions to human descriptions.
var SupportedExtensions = map[string]string{
	"pptx": "PowerPoint files",
	"docx": "Word files",
	"xlsx": "Excel files",
	"xls":  "Older Excel files",
	"pdf":  "PDF files",
	"msg":  "Outlook messages",
	"wav":  "Audio files (transcription)",
	"mp3":  "Audio files (transcription)",
	"m4a":  "Audio files (transcription)",
	"jpg":  "JPEG images",
	"jpeg": "JPEG images",
	"png":  "PNG images",
	"gif":  "GIF images",
	"bmp":  "BMP images",
	"tiff": "TIFF images",
	"txt":  "Text files",
	"html": "HTML files",
	"htm":  "HTML files",
	"xml":  "XML files",
	"json": "JSON files",
	"csv":  "CSV files",
	"zip":  "ZIP archives",
	"py":   "Python files",
	"js":   "JavaScript files",
	"md":   "Markdown files",
}

var imageExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "bmp": {}, "tiff": {},
}

var audioExtensions = map[string]struct{}{
	"wav": {}, "mp3": {}, "m4a": {}, "mp4": {},
}

// Ext extracts the lowercase extension without the dot; empty when the
// filename has none.
func Ext(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}

func IsSupported(ext string) bool {
	_, ok := SupportedExtensions[ext]
	return ok
}

func IsImage(ext string) bool {
	_, ok := imageExtensions[ext]
	return ok
}

func IsAudio(ext string) bool {
	_, ok := audioExtensions[ext]
	return ok
}

// Describe returns the registry description for an extension.
func Describe(ext string) string {
	if desc, ok := SupportedExtensions[ext]; ok {
		return desc
	}
	return "Unknown"
}
