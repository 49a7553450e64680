package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/moodtales/storyteller/internal/models"
	"github.com/moodtales/storyteller/internal/providers"
	"github.com/moodtales/storyteller/internal/session"
	"github.com/moodtales/storyteller/internal/source"
	"github.com/moodtales/storyteller/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type stubBackend struct {
	result     providers.GenerationResult
	genErr     error
	narrations int32
	chatErr    error
}

func (s *stubBackend) Generate(_ context.Context, p source.Payload) (providers.GenerationResult, error) {
	return s.result, s.genErr
}

func (s *stubBackend) Narrate(context.Context, string) (*providers.Audio, error) {
	atomic.AddInt32(&s.narrations, 1)
	return &providers.Audio{Data: []byte("RIFF....WAVE"), MediaType: "audio/wav"}, nil
}

func (s *stubBackend) Chat(_ context.Context, req providers.ChatRequest) (string, error) {
	if s.chatErr != nil {
		return "", s.chatErr
	}
	return "re: " + req.Message, nil
}

func newTestServer(t *testing.T, stub *stubBackend) *httptest.Server {
	t.Helper()
	h := &Handler{
		sessionStore: storage.New(10, time.Minute),
		resolveBackend: func(provider, model string) (*providers.Backend, error) {
			if provider != "" && provider != "stub" {
				return nil, fmt.Errorf("unsupported provider: %s", provider)
			}
			return &providers.Backend{Name: "stub", Generator: stub, Narrator: stub, Chatter: stub}, nil
		},
		maxUploadBytes: 1024,
	}
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createSession(t *testing.T, srv *httptest.Server, kind string) models.StorySession {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions", map[string]string{"type": kind})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[models.StorySession](t, resp)
}

func upload(t *testing.T, url, filename, contentType string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType != "" {
		hdr.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

var harbor = providers.GenerationResult{Analysis: "a misty harbor at dawn", Story: "The fog rolled in..."}

func TestImageStoryFlow(t *testing.T) {
	stub := &stubBackend{result: harbor}
	srv := newTestServer(t, stub)
	sess := createSession(t, srv, "image")
	base := srv.URL + "/api/sessions/" + sess.ID

	resp := upload(t, base+"/upload", "photo.png", "image/png", []byte("\x89PNG\r\n\x1a\nfake"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	uploaded := decode[models.StorySession](t, resp)
	require.NotNil(t, uploaded.Source)
	assert.Equal(t, source.KindImage, uploaded.Source.Kind)
	assert.Equal(t, "image/png", uploaded.Source.Meta.MediaType)

	resp = doJSON(t, http.MethodPost, base+"/generate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	generated := decode[models.GenerateResponse](t, resp)
	assert.Equal(t, harbor, generated.Result)
	assert.Equal(t, "The fog rolled in...", generated.Session.Generation.Story)

	resp = doJSON(t, http.MethodPost, base+"/narration", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	narration := decode[models.Narration](t, resp)
	assert.Equal(t, session.NarrationPlaying, narration.State)
	assert.Equal(t, "/api/sessions/"+sess.ID+"/audio", narration.AudioURL)

	resp = doJSON(t, http.MethodPost, base+"/narration", nil)
	assert.Equal(t, session.NarrationPaused, decode[models.Narration](t, resp).State)
	resp = doJSON(t, http.MethodPost, base+"/narration", map[string]string{"action": "stop"})
	assert.Equal(t, session.NarrationReady, decode[models.Narration](t, resp).State)
	assert.Equal(t, int32(1), atomic.LoadInt32(&stub.narrations))

	resp = doJSON(t, http.MethodGet, base+"/audio", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/wav", resp.Header.Get("Content-Type"))
	audio, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF....WAVE"), audio)

	resp = doJSON(t, http.MethodPost, base+"/chat", map[string]string{"message": "Who is she?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	chat := decode[models.ChatResponse](t, resp)
	assert.Equal(t, "re: Who is she?", chat.Turn.Reply)
	assert.Len(t, chat.Conversation, 2)

	resp = doJSON(t, http.MethodPost, base+"/reset", nil)
	cleared := decode[models.StorySession](t, resp)
	assert.Nil(t, cleared.Source)
	assert.Empty(t, cleared.Generation.Story)
	assert.Empty(t, cleared.Conversation)
	assert.Equal(t, session.NarrationIdle, cleared.Narration.State)
}

func TestWorkbookUpload(t *testing.T) {
	srv := newTestServer(t, &stubBackend{result: harbor})
	sess := createSession(t, srv, "text")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Budget"))
	require.NoError(t, f.SetCellValue("Budget", "A1", "Total"))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	resp := upload(t, srv.URL+"/api/sessions/"+sess.ID+"/upload", "notes.xlsx", "", buf.Bytes())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[models.StorySession](t, resp)
	require.NotNil(t, got.Source)
	assert.Equal(t, source.KindText, got.Source.Kind)
	assert.Equal(t, "notes.xlsx", got.Source.Meta.Name)
}

func TestErrorMapping(t *testing.T) {
	stub := &stubBackend{genErr: fmt.Errorf("%w: missing story field", providers.ErrMalformedResponse)}
	srv := newTestServer(t, stub)
	sess := createSession(t, srv, "image")
	base := srv.URL + "/api/sessions/" + sess.ID

	t.Run("unknown session", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, srv.URL+"/api/sessions/nope", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("kind mismatch", func(t *testing.T) {
		resp := upload(t, base+"/upload", "notes.txt", "text/plain", []byte("hello"))
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("decode error", func(t *testing.T) {
		textSess := createSession(t, srv, "text")
		resp := upload(t, srv.URL+"/api/sessions/"+textSess.ID+"/upload", "broken.docx", "", []byte("not a zip"))
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("too large", func(t *testing.T) {
		resp := upload(t, base+"/upload", "big.png", "image/png", bytes.Repeat([]byte{1}, 2048))
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	})

	t.Run("url needs url type", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, base+"/url", map[string]string{"url": "https://example.com"})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("generate without source", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, base+"/generate", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed response", func(t *testing.T) {
		resp := upload(t, base+"/upload", "photo.png", "image/png", []byte("\x89PNG"))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp = doJSON(t, http.MethodPost, base+"/generate", nil)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

		resp = doJSON(t, http.MethodGet, base, nil)
		snap := decode[models.StorySession](t, resp)
		assert.Equal(t, session.GenerationFailed, snap.Generation.Phase)
		assert.NotEmpty(t, snap.Generation.Notice)
	})

	t.Run("gateway failure", func(t *testing.T) {
		stub.genErr = &providers.GatewayError{Provider: "stub", Op: "generate", Err: errors.New("timeout")}
		resp := doJSON(t, http.MethodPost, base+"/generate", nil)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})

	t.Run("narration without story", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, base+"/narration", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("no audio", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, base+"/audio", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("unknown provider", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, base+"/generate?provider=claude", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("bad type", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, base+"/type", map[string]string{"type": "video"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("method not allowed", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, base+"/generate", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&source.DecodeError{Filename: "a.docx", Err: errors.New("zip")}, http.StatusUnprocessableEntity},
		{session.ErrKindMismatch, http.StatusConflict},
		{fmt.Errorf("generation: %w", session.ErrBusy), http.StatusConflict},
		{session.ErrStale, http.StatusConflict},
		{session.ErrNoStory, http.StatusBadRequest},
		{providers.ErrMalformedResponse, http.StatusBadGateway},
		{&providers.GatewayError{Provider: "gemini", Op: "chat", Err: errors.New("x")}, http.StatusBadGateway},
		{fmt.Errorf("ollama narration: %w", providers.ErrUnsupported), http.StatusNotImplemented},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestChatFallback(t *testing.T) {
	srv := newTestServer(t, &stubBackend{result: harbor, chatErr: errors.New("connection reset")})
	sess := createSession(t, srv, "url")
	base := srv.URL + "/api/sessions/" + sess.ID

	resp := doJSON(t, http.MethodPost, base+"/url", map[string]string{"url": "https://example.com/harbor"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://example.com/harbor", decode[models.StorySession](t, resp).Source.URL)

	resp = doJSON(t, http.MethodPost, base+"/chat", map[string]string{"message": "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	chat := decode[models.ChatResponse](t, resp)
	assert.True(t, chat.Turn.Failed)
	assert.Equal(t, []session.Entry{
		{Speaker: session.SpeakerUser, Text: "hello"},
		{Speaker: session.SpeakerAssistant, Text: session.FallbackReply},
	}, chat.Conversation)
}

func TestSessionsListAndDelete(t *testing.T) {
	srv := newTestServer(t, &stubBackend{})
	a := createSession(t, srv, "image")
	createSession(t, srv, "pdf")

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/sessions", nil)
	list := decode[[]models.SessionSummary](t, resp)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/sessions/"+a.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/sessions/"+a.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/healthcheck", nil)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "OK", string(body))
}

func TestEventsFeed(t *testing.T) {
	srv := newTestServer(t, &stubBackend{result: harbor})
	sess := createSession(t, srv, "text")
	base := srv.URL + "/api/sessions/" + sess.ID

	wsURL := "ws" + strings.TrimPrefix(base, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first map[string]any
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "snapshot", first["type"])

	resp := upload(t, base+"/upload", "notes.txt", "text/plain", []byte("rain on tin roofs"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ev session.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, session.EventSource, ev.Type)
	assert.Equal(t, sess.ID, ev.SessionID)
}
