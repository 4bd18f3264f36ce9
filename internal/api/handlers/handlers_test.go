package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecom-support/chatbot/internal/contextstore"
	"github.com/ecom-support/chatbot/internal/entity"
	"github.com/ecom-support/chatbot/internal/intent"
	"github.com/ecom-support/chatbot/internal/middleware/validation"
	"github.com/ecom-support/chatbot/internal/pipeline"
	"github.com/ecom-support/chatbot/internal/storage/models"
)

type fakeResponder struct {
	mu  sync.Mutex
	got []pipeline.Utterance
}

func (f *fakeResponder) Respond(_ context.Context, u pipeline.Utterance) pipeline.Reply {
	f.mu.Lock()
	f.got = append(f.got, u)
	f.mu.Unlock()

	if u.Text == "hi there" {
		return pipeline.Reply{TurnID: "t1", Text: pipeline.GreetingReply, Intent: intent.Greeting, LogTag: "greeting", Confidence: 0.9, Source: pipeline.SourceCanned}
	}
	return pipeline.Reply{TurnID: "t2", Text: pipeline.ApologyReply, Intent: intent.Uncertain, LogTag: "error", Source: pipeline.SourceError}
}

type fakeHistory struct {
	records []models.InteractionRecord
	err     error
	user    string
	limit   int
}

func (f *fakeHistory) GetInteractionHistory(_ context.Context, userID string, limit int) ([]models.InteractionRecord, error) {
	f.user, f.limit = userID, limit
	return f.records, f.err
}

func newChatApp(r Responder, hist HistoryReader) *fiber.App {
	h := NewChatHandler(r, hist, 0)
	app := fiber.New()
	app.Post("/chat", h.HandleChat)
	app.Post("/api/v1/chat", h.HandleChatDetailed)
	app.Get("/api/v1/interactions", h.GetHistory)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

func TestHandleChat(t *testing.T) {
	r := &fakeResponder{}
	app := newChatApp(r, nil)

	status, body := doJSON(t, app, http.MethodPost, "/chat", `{"user_id":"sam","message":"hi there"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]interface{}{"response": "Hi there! 😊 How can I help you today?"}, body)
	assert.Equal(t, []pipeline.Utterance{{UserID: "sam", Text: "hi there"}}, r.got)
}

func TestHandleChat_DefaultsUser(t *testing.T) {
	r := &fakeResponder{}
	app := newChatApp(r, nil)

	status, _ := doJSON(t, app, http.MethodPost, "/chat", `{"message":"  hi there  "}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, pipeline.Utterance{UserID: "anonymous", Text: "hi there"}, r.got[0])
}

func TestHandleChat_PipelineFailureIsStill200(t *testing.T) {
	app := newChatApp(&fakeResponder{}, nil)

	status, body := doJSON(t, app, http.MethodPost, "/chat", `{"user_id":"sam","message":"boom"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "⚠️ Sorry, something went wrong on my end.", body["response"])
}

func TestHandleChat_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"malformed json", `{"message": `},
		{"missing message", `{"user_id":"sam"}`},
		{"blank message", `{"user_id":"sam","message":"   "}`},
		{"wrong type", `{"user_id":"sam","message":42}`},
		{"only nul bytes", `{"user_id":"sam","message":"\u0000\u0000"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeResponder{}
			app := newChatApp(r, nil)

			status, body := doJSON(t, app, http.MethodPost, "/chat", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.NotEmpty(t, body["error"])
			assert.Empty(t, r.got)
		})
	}
}

func TestHandleChat_MessageTooLong(t *testing.T) {
	r := &fakeResponder{}
	app := fiber.New()
	app.Post("/chat", NewChatHandler(r, nil, 5).HandleChat)

	status, body := doJSON(t, app, http.MethodPost, "/chat", `{"message":"this is too long"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
	assert.Equal(t, "Message exceeds maximum length", body["error"])
	assert.Empty(t, r.got)
}

func TestHandleChat_NulBytesNeverReachPipeline(t *testing.T) {
	const payload = `{"user_id":" sam\u0000 ","message":"  hi\u0000 there\u0000 "}`

	t.Run("handler only", func(t *testing.T) {
		r := &fakeResponder{}
		app := newChatApp(r, nil)

		status, body := doJSON(t, app, http.MethodPost, "/chat", payload)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, pipeline.GreetingReply, body["response"])
		assert.Equal(t, []pipeline.Utterance{{UserID: "sam", Text: "hi there"}}, r.got)
	})

	t.Run("behind validation middleware", func(t *testing.T) {
		r := &fakeResponder{}
		app := fiber.New()
		app.Use(validation.Middleware(validation.Config{}))
		app.Post("/chat", NewChatHandler(r, nil, 0).HandleChat)

		status, body := doJSON(t, app, http.MethodPost, "/chat", payload)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, pipeline.GreetingReply, body["response"])
		assert.Equal(t, []pipeline.Utterance{{UserID: "sam", Text: "hi there"}}, r.got)
	})
}

func TestHandleChatDetailed(t *testing.T) {
	app := newChatApp(&fakeResponder{}, nil)

	status, body := doJSON(t, app, http.MethodPost, "/api/v1/chat", `{"user_id":"sam","message":"hi there"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, pipeline.GreetingReply, body["response"])
	assert.Equal(t, "greeting", body["intent"])
	assert.Equal(t, "canned", body["source"])
	assert.Equal(t, "t1", body["turn_id"])
}

func TestGetHistory(t *testing.T) {
	hist := &fakeHistory{records: []models.InteractionRecord{{TurnID: "t1", UserID: "sam", Intent: "faq"}}}
	app := newChatApp(&fakeResponder{}, hist)

	status, body := doJSON(t, app, http.MethodGet, "/api/v1/interactions?user_id=sam&limit=5", "")
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])
	assert.Equal(t, "sam", hist.user)
	assert.Equal(t, 5, hist.limit)

	status, _ = doJSON(t, app, http.MethodGet, "/api/v1/interactions?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, status)

	hist.err = errors.New("db closed")
	status, _ = doJSON(t, app, http.MethodGet, "/api/v1/interactions", "")
	assert.Equal(t, http.StatusInternalServerError, status)

	disabled := newChatApp(&fakeResponder{}, nil)
	status, _ = doJSON(t, disabled, http.MethodGet, "/api/v1/interactions", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestContextHandler(t *testing.T) {
	store := contextstore.New()
	store.Update("sam", intent.TrackOrder, []entity.Entity{{Text: "#12345", Type: entity.OrderID}})
	store.Update("ana", intent.ReturnItem, nil)

	h := NewContextHandler(store)
	app := fiber.New()
	app.Get("/api/v1/context/:user_id", h.GetContext)
	app.Delete("/api/v1/context/:user_id", h.ClearContext)
	app.Delete("/api/v1/context", h.ClearAll)

	status, body := doJSON(t, app, http.MethodGet, "/api/v1/context/sam", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "track_order", body["intent"])
	assert.Equal(t, []interface{}{map[string]interface{}{"text": "#12345", "type": "ORDER_ID"}}, body["entities"])

	status, _ = doJSON(t, app, http.MethodGet, "/api/v1/context/nobody", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = doJSON(t, app, http.MethodDelete, "/api/v1/context/sam", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["cleared"])
	_, ok := store.Get("sam")
	assert.False(t, ok)

	status, _ = doJSON(t, app, http.MethodDelete, "/api/v1/context", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, store.Len())
}

func TestAdminReload(t *testing.T) {
	var calls []string
	ok := func(name string) Reloadable {
		return Reloadable{Name: name, Reload: func(context.Context) error {
			calls = append(calls, name)
			return nil
		}}
	}

	app := fiber.New()
	app.Post("/reload", NewAdminHandler(ok("profiles"), ok("faq_index")).Reload)

	status, body := doJSON(t, app, http.MethodPost, "/reload", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []interface{}{"profiles", "faq_index"}, body["reloaded"])
	assert.Equal(t, []string{"profiles", "faq_index"}, calls)

	broken := Reloadable{Name: "intent_model", Reload: func(context.Context) error { return errors.New("artifact missing") }}
	app = fiber.New()
	app.Post("/reload", NewAdminHandler(ok("profiles"), broken).Reload)

	status, body = doJSON(t, app, http.MethodPost, "/reload", "")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, map[string]interface{}{"intent_model": "artifact missing"}, body["failed"])
}

func TestHealthHandler(t *testing.T) {
	healthy := Check{Name: "sqlite", Check: func(context.Context) error { return nil }}
	failing := Check{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }}

	app := fiber.New()
	app.Get("/health", NewHealthHandler().Health)
	app.Get("/ready", NewHealthHandler(healthy).Ready)
	app.Get("/not-ready", NewHealthHandler(healthy, failing).Ready)

	status, body := doJSON(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	status, _ = doJSON(t, app, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, status)

	status, body = doJSON(t, app, http.MethodGet, "/not-ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, map[string]interface{}{"redis": "connection refused"}, body["checks"])
}
