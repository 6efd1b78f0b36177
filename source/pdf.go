package source

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFReader extracts plain text from a PDF and rebuilds minimal article
// markup around it. Heading detection is heuristic; the result is good
// enough for slot placement, not a faithful layout reconstruction.
type PDFReader struct{}

func (r *PDFReader) SupportedFormats() []string { return []string{"pdf"} }

func (r *PDFReader) Read(_ context.Context, path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	var buf strings.Builder
	buf.WriteString("<article>\n")

	wrote := false
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that fail to extract.
			continue
		}
		if writePageMarkup(&buf, text) {
			wrote = true
		}
	}

	buf.WriteString("</article>\n")
	if !wrote {
		return "", fmt.Errorf("no extractable text in pdf %s", path)
	}
	return buf.String(), nil
}

// writePageMarkup emits <h2> and <p> elements for one page of text and
// reports whether anything was written.
func writePageMarkup(buf *strings.Builder, text string) bool {
	wrote := false
	var para []string

	flush := func() {
		if len(para) == 0 {
			return
		}
		buf.WriteString("<p>")
		buf.WriteString(html.EscapeString(strings.Join(para, " ")))
		buf.WriteString("</p>\n")
		para = para[:0]
		wrote = true
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		if isLikelyHeading(line) {
			flush()
			buf.WriteString("<h2>")
			buf.WriteString(html.EscapeString(line))
			buf.WriteString("</h2>\n")
			wrote = true
			continue
		}
		para = append(para, line)
	}
	flush()
	return wrote
}

// isLikelyHeading flags short all-caps lines, numbered sections like "1.2"
// and common heading prefixes.
func isLikelyHeading(line string) bool {
	if len(line) > 120 {
		return false
	}
	if len(line) > 2 && len(line) < 100 && line == strings.ToUpper(line) && strings.ContainsAny(line, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		return true
	}
	if line[0] >= '0' && line[0] <= '9' {
		head := line
		if len(head) > 10 {
			head = head[:10]
		}
		if strings.Contains(head, ".") {
			return true
		}
	}
	lower := strings.ToLower(line)
	for _, prefix := range []string{"section ", "chapter ", "part ", "appendix "} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
