package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestRegistryHTMLPassthrough(t *testing.T) {
	src := `<article><h2>A</h2><p>body & more</p></article>`
	path := writeTemp(t, "doc.html", src)

	out, err := NewRegistry().ReadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if out != src {
		t.Errorf("html must pass through untouched:\n%s", out)
	}
}

func TestRegistryMarkdown(t *testing.T) {
	path := writeTemp(t, "doc.md", "# Title\n\n## Section One\n\nFirst paragraph.\n\nSecond paragraph.\n")

	out, err := NewRegistry().ReadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	for _, want := range []string{
		"<article>",
		"<h1>Title</h1>",
		"<h2>Section One</h2>",
		"<p>First paragraph.</p>",
		"<p>Second paragraph.</p>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown output missing %s:\n%s", want, out)
		}
	}
}

func TestRegistryText(t *testing.T) {
	path := writeTemp(t, "doc.txt", "First block\nstill first block.\n\nSecond <b>block</b>.\n\n\n\nThird.")

	out, err := NewRegistry().ReadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if !strings.Contains(out, "<p>First block still first block.</p>") {
		t.Errorf("line join inside a block failed:\n%s", out)
	}
	// Text is escaped, never interpreted as markup.
	if !strings.Contains(out, "<p>Second &lt;b&gt;block&lt;/b&gt;.</p>") {
		t.Errorf("text not escaped:\n%s", out)
	}
	if got := strings.Count(out, "<p>"); got != 3 {
		t.Errorf("expected 3 paragraphs, got %d:\n%s", got, out)
	}
}

func TestRegistryUnsupportedFormat(t *testing.T) {
	path := writeTemp(t, "doc.xyz", "data")

	_, err := NewRegistry().ReadFile(context.Background(), path)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}
}

type fakeReader struct{}

func (fakeReader) SupportedFormats() []string { return []string{"fake"} }
func (fakeReader) Read(context.Context, string) (string, error) {
	return "<article><p>fake</p></article>", nil
}

func TestRegistryRegisterCustomReader(t *testing.T) {
	r := NewRegistry()
	r.Register("fake", fakeReader{})

	out, err := r.ReadFile(context.Background(), "/whatever/input.FAKE")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(out, "fake") {
		t.Errorf("custom reader not used:\n%s", out)
	}
}

func TestWritePageMarkup(t *testing.T) {
	var buf strings.Builder
	text := "INTRODUCTION\nThe deal closed in March.\nIt was contested.\n\n1.2 Terms\nPayment in cash.\n"

	if !writePageMarkup(&buf, text) {
		t.Fatal("expected markup to be written")
	}
	out := buf.String()

	for _, want := range []string{
		"<h2>INTRODUCTION</h2>",
		"<p>The deal closed in March. It was contested.</p>",
		"<h2>1.2 Terms</h2>",
		"<p>Payment in cash.</p>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("page markup missing %s:\n%s", want, out)
		}
	}
}

func TestIsLikelyHeading(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"INTRODUCTION", true},
		{"1.2 Terms of the agreement", true},
		{"Section 4: Closing", true},
		{"Chapter Two", true},
		{"The deal closed in March.", false},
		{"2024 was a good year for the company and its many shareholders overall", false},
		{strings.Repeat("A", 130), false},
	}
	for _, tt := range tests {
		if got := isLikelyHeading(tt.line); got != tt.want {
			t.Errorf("isLikelyHeading(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}
