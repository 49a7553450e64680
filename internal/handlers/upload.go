package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/moodtales/storyteller/internal/models"
	"github.com/moodtales/storyteller/internal/source"
)

// multipart framing allowance on top of the file limit
const formOverhead = 1 << 20

func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	// JSON bodies carry a URL source
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		h.HandleSetURL(w, r)
		return
	}

	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+formOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		file, header, err = r.FormFile("files")
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, fmt.Sprintf("File too large (max %d bytes)", h.maxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		if err != nil {
			h.writeError(w, "Failed to read file: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	defer file.Close()

	fileData, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		h.writeError(w, "Failed to read file contents: "+err.Error(), http.StatusBadRequest)
		return
	}
	if int64(len(fileData)) > h.maxUploadBytes {
		h.writeError(w, fmt.Sprintf("File too large (max %d bytes)", h.maxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	payload, err := source.Decode(fileData, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		h.writeErr(w, err)
		return
	}

	if err := sess.Ingest(payload, source.MetaFor(payload, header.Filename, len(fileData))); err != nil {
		h.writeErr(w, err)
		return
	}

	slog.Info("File uploaded", "session", sess.ID, "filename", header.Filename, "kind", payload.Kind(), "size", len(fileData))
	h.writeJSON(w, models.FromSnapshot(sess.Snapshot()))
}

func (h *Handler) HandleSetURL(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	var request struct {
		URL string `json:"url"`
	}
	if err := decodeBody(r, &request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(request.URL) == "" {
		h.writeError(w, "url is required", http.StatusBadRequest)
		return
	}

	if err := sess.SetURL(request.URL); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, models.FromSnapshot(sess.Snapshot()))
}
