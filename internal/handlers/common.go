package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/moodtales/storyteller/internal/config"
	"github.com/moodtales/storyteller/internal/gateway"
	"github.com/moodtales/storyteller/internal/providers"
	"github.com/moodtales/storyteller/internal/session"
	"github.com/moodtales/storyteller/internal/source"
	"github.com/moodtales/storyteller/internal/storage"
)

type Handler struct {
	sessionStore   *storage.SessionStore
	resolveBackend func(provider, model string) (*providers.Backend, error)
	maxUploadBytes int64
}

func New(cfg *config.Config, provider, model string) *Handler {
	svc := gateway.NewService(cfg)
	return &Handler{
		sessionStore: storage.New(cfg.MaxSessions, cfg.SessionTimeout),
		resolveBackend: func(p, m string) (*providers.Backend, error) {
			if p == "" {
				p, m = provider, firstNonEmpty(m, model)
			}
			return svc.Backend(p, m)
		},
		maxUploadBytes: cfg.MaxUploadBytes,
	}
}

// Routes registers the API on a new mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", h.HandleCreateSession)
	mux.HandleFunc("GET /api/sessions", h.HandleSessions)
	mux.HandleFunc("GET /api/sessions/{id}", h.HandleSessionDetail)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.HandleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/type", h.HandleSelectType)
	mux.HandleFunc("POST /api/sessions/{id}/upload", h.HandleUpload)
	mux.HandleFunc("POST /api/sessions/{id}/url", h.HandleSetURL)
	mux.HandleFunc("POST /api/sessions/{id}/reset", h.HandleReset)
	mux.HandleFunc("POST /api/sessions/{id}/generate", h.HandleGenerate)
	mux.HandleFunc("POST /api/sessions/{id}/narration", h.HandleNarration)
	mux.HandleFunc("GET /api/sessions/{id}/audio", h.HandleAudio)
	mux.HandleFunc("POST /api/sessions/{id}/chat", h.HandleChat)
	mux.HandleFunc("GET /api/sessions/{id}/events", h.HandleEvents)
	mux.HandleFunc("GET /healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})
	return mux
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONCode(w, http.StatusOK, data)
}

func (h *Handler) writeJSONCode(w http.ResponseWriter, code int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(append(body, '\n')); err != nil {
		slog.Error("Unable to write JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message, "status", code)
	} else {
		slog.Warn(message, "status", code)
	}
	http.Error(w, message, code)
}

// writeErr maps a domain error to its HTTP status.
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	h.writeError(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	var ge *providers.GatewayError
	switch {
	case source.IsDecodeError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrKindMismatch),
		errors.Is(err, session.ErrBusy),
		errors.Is(err, session.ErrStale):
		return http.StatusConflict
	case errors.Is(err, session.ErrNoSource),
		errors.Is(err, session.ErrNoStory),
		errors.Is(err, session.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, providers.ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, providers.ErrMalformedResponse), errors.As(err, &ge):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, exists := h.sessionStore.Get(r.PathValue("id"))
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func (h *Handler) backendOrError(w http.ResponseWriter, r *http.Request) (*providers.Backend, bool) {
	q := r.URL.Query()
	backend, err := h.resolveBackend(q.Get("provider"), q.Get("model"))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return backend, true
}

// decodeBody decodes an optional JSON body. An empty body leaves v unchanged.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
