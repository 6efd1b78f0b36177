package source

import (
	"context"
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"
)

var blankLines = regexp.MustCompile(`\n\s*\n`)

// TextReader turns plain text into article HTML: blocks separated by blank
// lines become paragraphs.
type TextReader struct{}

func (r *TextReader) SupportedFormats() []string { return []string{"txt"} }

func (r *TextReader) Read(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading text file: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("<article>\n")
	for _, block := range blankLines.Split(string(data), -1) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		buf.WriteString("<p>")
		buf.WriteString(html.EscapeString(strings.Join(strings.Fields(block), " ")))
		buf.WriteString("</p>\n")
	}
	buf.WriteString("</article>\n")
	return buf.String(), nil
}
