package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mlenoir/illustrate"
)

type handler struct {
	engine illustrate.Engine
}

func newHandler(e illustrate.Engine) *handler {
	return &handler{engine: e}
}

// POST /enhance
// Accepts a multipart file upload, a JSON body with a file path, or raw
// HTML. The response is the full enhancement result: document view,
// annotated and enhanced HTML, slots and the injection report.
func (h *handler) handleEnhance(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch {
	case strings.HasPrefix(contentType, "multipart/"):
		h.enhanceUpload(ctx, w, r)
	case contentType == "application/json":
		h.enhancePath(ctx, w, r)
	default:
		// Raw HTML body.
		body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "reading request body failed")
			return
		}
		if len(body) == 0 {
			writeError(w, http.StatusBadRequest, "empty request body")
			return
		}
		h.respond(ctx, w, func(ctx context.Context) (*illustrate.Result, error) {
			return h.engine.Enhance(ctx, string(body))
		})
	}
}

func (h *handler) enhanceUpload(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(100 << 20); err != nil { // 100MB max
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	// Sanitise filename to prevent path traversal; the extension selects
	// the source reader.
	safeName := filepath.Base(header.Filename)
	tmpPath := filepath.Join(os.TempDir(), safeName)
	dst, err := os.Create(tmpPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process file")
		slog.Error("creating temp file", "error", err)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		writeError(w, http.StatusInternalServerError, "failed to save file")
		slog.Error("saving uploaded file", "error", err)
		return
	}
	dst.Close()
	defer os.Remove(tmpPath)

	h.respond(ctx, w, func(ctx context.Context) (*illustrate.Result, error) {
		return h.engine.EnhanceFile(ctx, tmpPath)
	})
}

func (h *handler) enhancePath(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path     string `json:"path"`
		MaxSlots int    `json:"max_slots,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	// Validate that path is a real file (prevents directory traversal probing).
	absPath, err := filepath.Abs(req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusBadRequest, "path must be an existing file")
		return
	}

	var opts []illustrate.EnhanceOption
	if req.MaxSlots > 0 && req.MaxSlots <= 20 {
		opts = append(opts, illustrate.WithMaxSlots(req.MaxSlots))
	}

	h.respond(ctx, w, func(ctx context.Context) (*illustrate.Result, error) {
		return h.engine.EnhanceFile(ctx, absPath, opts...)
	})
}

func (h *handler) respond(ctx context.Context, w http.ResponseWriter, run func(context.Context) (*illustrate.Result, error)) {
	res, err := run(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "enhancement failed")
		slog.Error("enhance error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
