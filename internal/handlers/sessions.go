package handlers

import (
	"net/http"

	"github.com/moodtales/storyteller/internal/models"
	"github.com/moodtales/storyteller/internal/source"
)

func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Type string `json:"type"`
	}
	if err := decodeBody(r, &request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	kind := source.KindImage
	if request.Type != "" {
		k, err := source.ParseKind(request.Type)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		kind = k
	}

	sess := h.sessionStore.Create(kind)
	h.writeJSONCode(w, http.StatusCreated, models.FromSnapshot(sess.Snapshot()))
}

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessionStore.List()
	sessionList := make([]models.SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		sessionList = append(sessionList, models.Summarize(sess.Snapshot()))
	}
	h.writeJSON(w, sessionList)
}

func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, models.FromSnapshot(sess.Snapshot()))
}

func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.sessionStore.Delete(r.PathValue("id")) {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleSelectType(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	var request struct {
		Type string `json:"type"`
	}
	if err := decodeBody(r, &request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if request.Type == "" {
		h.writeError(w, "type is required", http.StatusBadRequest)
		return
	}

	if err := sess.SelectType(source.Kind(request.Type)); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.writeJSON(w, models.FromSnapshot(sess.Snapshot()))
}

func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	sess.Reset()
	h.writeJSON(w, models.FromSnapshot(sess.Snapshot()))
}
