// Package source normalizes input files into an HTML article string that the
// structurer can work on. Each supported format has a Reader; the Registry
// dispatches on the file extension.
package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned when no reader is registered for the
// input file's format.
var ErrUnsupportedFormat = errors.New("source: unsupported input format")

// Reader converts a document file of a specific format into article HTML.
type Reader interface {
	Read(ctx context.Context, path string) (string, error)
	SupportedFormats() []string
}

// Registry maps file formats to readers.
type Registry struct {
	readers map[string]Reader
}

// NewRegistry creates a registry with the built-in readers.
func NewRegistry() *Registry {
	r := &Registry{readers: make(map[string]Reader)}
	for _, rd := range []Reader{
		&HTMLReader{},
		&MarkdownReader{},
		&PDFReader{},
		&TextReader{},
	} {
		for _, f := range rd.SupportedFormats() {
			r.readers[f] = rd
		}
	}
	return r
}

// Register adds or replaces the reader for a format.
func (r *Registry) Register(format string, rd Reader) {
	r.readers[strings.ToLower(format)] = rd
}

// Get returns the reader for a format.
func (r *Registry) Get(format string) (Reader, error) {
	rd, ok := r.readers[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return rd, nil
}

// ReadFile normalizes the file at path into article HTML, dispatching on the
// file extension.
func (r *Registry) ReadFile(ctx context.Context, path string) (string, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	rd, err := r.Get(format)
	if err != nil {
		return "", err
	}
	return rd.Read(ctx, path)
}
