package source

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
)

// MarkdownReader renders markdown to article HTML.
type MarkdownReader struct{}

func (r *MarkdownReader) SupportedFormats() []string { return []string{"md", "markdown"} }

func (r *MarkdownReader) Read(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading markdown file: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("<article>\n")
	if err := goldmark.Convert(data, &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	buf.WriteString("</article>\n")
	return buf.String(), nil
}
