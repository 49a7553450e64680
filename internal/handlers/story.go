package handlers

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/moodtales/storyteller/internal/models"
	"github.com/moodtales/storyteller/internal/session"
)

func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	backend, ok := h.backendOrError(w, r)
	if !ok {
		return
	}

	result, err := sess.Generate(r.Context(), backend.Generator)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	h.writeJSON(w, models.GenerateResponse{
		Result:  result,
		Session: models.FromSnapshot(sess.Snapshot()),
	})
}

func (h *Handler) HandleNarration(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	var request struct {
		Action string `json:"action"` // "toggle" (default) or "stop"
	}
	if err := decodeBody(r, &request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	switch strings.ToLower(request.Action) {
	case "", "toggle":
		backend, ok := h.backendOrError(w, r)
		if !ok {
			return
		}
		if _, err := sess.ToggleNarration(r.Context(), backend.Narrator); err != nil {
			h.writeErr(w, err)
			return
		}
	case "stop":
		sess.StopNarration()
	default:
		h.writeError(w, "Invalid action. Must be 'toggle' or 'stop'", http.StatusBadRequest)
		return
	}

	h.writeJSON(w, models.FromSnapshot(sess.Snapshot()).Narration)
}

func (h *Handler) HandleAudio(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	audio, ok := sess.Audio()
	if !ok {
		h.writeError(w, "No narration audio", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", audio.MediaType)
	w.Header().Set("ETag", `"`+audio.ID+`"`)
	http.ServeContent(w, r, audio.ID, sess.CreatedAt, bytes.NewReader(audio.Data))
}

func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	var request struct {
		Message string `json:"message"`
	}
	if err := decodeBody(r, &request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	backend, ok := h.backendOrError(w, r)
	if !ok {
		return
	}

	turn, err := sess.SendChat(r.Context(), backend.Chatter, request.Message)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	h.writeJSON(w, models.ChatResponse{
		Turn:         turn,
		Conversation: nonNil(sess.Snapshot().Conversation),
	})
}

func nonNil(entries []session.Entry) []session.Entry {
	if entries == nil {
		return []session.Entry{}
	}
	return entries
}
