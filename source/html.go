package source

import (
	"context"
	"fmt"
	"os"
)

// HTMLReader passes HTML files through untouched. The structurer handles
// malformed markup itself, so no cleanup happens here.
type HTMLReader struct{}

func (r *HTMLReader) SupportedFormats() []string { return []string{"html", "htm"} }

func (r *HTMLReader) Read(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading html file: %w", err)
	}
	return string(data), nil
}
