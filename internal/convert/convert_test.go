package convert

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExt(t *testing.T) {
	cases := []struct {
		filename string
		want     string
	}{
		{"report.PDF", "pdf"},
		{"archive.tar.gz", "gz"},
		{"notes.txt", "txt"},
		{"noext", ""},
		{"trailing.", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Ext(tc.filename); got != tc.want {
			t.Fatalf("Ext(%q) = %q, want %q", tc.filename, got, tc.want)
		}
	}
}

func TestIsSupported(t *testing.T) {
	for _, ext := range []string{"pdf", "docx", "txt", "jpg", "mp3", "zip"} {
		if !IsSupported(ext) {
			t.Fatalf("IsSupported(%q) = false, want true", ext)
		}
	}
	for _, ext := range []string{"exe", "psd", ""} {
		if IsSupported(ext) {
			t.Fatalf("IsSupported(%q) = true, want false", ext)
		}
	}
}

func TestClassification(t *testing.T) {
	if !IsImage("png") || IsImage("mp3") {
		t.Fatal("png is an image, mp3 is not")
	}
	if !IsAudio("wav") || IsAudio("jpg") {
		t.Fatal("wav is audio, jpg is not")
	}
	if Describe("pdf") != "PDF files" {
		t.Fatalf("Describe(pdf) = %q", Describe("pdf"))
	}
	if Describe("nope") != "Unknown" {
		t.Fatalf("Describe(nope) = %q", Describe("nope"))
	}
}

func TestTextEnginePassthrough(t *testing.T) {
	engine := NewTextEngine()
	ctx := context.Background()

	for _, filename := range []string{"notes.txt", "readme.md"} {
		got, err := engine.Convert(ctx, filename, []byte("# heading\n\nbody"))
		if err != nil {
			t.Fatalf("Convert(%s): %v", filename, err)
		}
		if got != "# heading\n\nbody" {
			t.Fatalf("Convert(%s) = %q, want passthrough", filename, got)
		}
	}
}

func TestTextEngineFencesStructuredFormats(t *testing.T) {
	engine := NewTextEngine()

	got, err := engine.Convert(context.Background(), "data.json", []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !strings.Contains(got, "```json\n{\"a\":1}\n```") {
		t.Fatalf("Convert(data.json) = %q, want fenced json", got)
	}
	if !strings.HasPrefix(got, "# data.json") {
		t.Fatalf("Convert(data.json) = %q, want filename heading", got)
	}
}

func TestTextEngineRejects(t *testing.T) {
	engine := NewTextEngine()
	ctx := context.Background()

	// Unknown extension.
	if _, err := engine.Convert(ctx, "x.exe", []byte("x")); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("Convert(x.exe) = %v, want ErrUnsupportedType", err)
	}
	// Supported by the service but binary, so out of scope for this engine.
	if _, err := engine.Convert(ctx, "doc.pdf", []byte("%PDF-1.4")); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("Convert(doc.pdf) = %v, want ErrUnsupportedType", err)
	}
	// Invalid UTF-8 in a nominally textual format.
	if _, err := engine.Convert(ctx, "bad.txt", []byte{0xff, 0xfe, 0xfd}); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("Convert(bad.txt) = %v, want ErrUnsupportedType", err)
	}
}
