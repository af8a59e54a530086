package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ticketfire/backend/internal/models"
	"github.com/ticketfire/backend/internal/nlp"
	"github.com/ticketfire/backend/internal/session"
)

func newSettingsRouter() (*gin.Engine, *nlp.Pool) {
	gin.SetMode(gin.TestMode)
	pool := nlp.NewPool(nlp.NewMockClient(), nlp.Settings{ModelID: "gemma3:1b", Concurrency: 6})
	h := &Handler{NLPPool: pool, Logger: zerolog.Nop()}

	r := gin.New()
	r.GET("/api/nlp-settings", h.GetSettings)
	r.POST("/api/nlp-settings", h.UpdateSettings)
	return r, pool
}

func TestUpdateSettings_AcceptsClosedSetValues(t *testing.T) {
	r, pool := newSettingsRouter()

	req, _ := http.NewRequest(http.MethodPost, "/api/nlp-settings",
		strings.NewReader(`{"model_id":"gemma3:4b","concurrency":4}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	got := pool.Settings()
	if got.ModelID != "gemma3:4b" || got.Concurrency != 4 {
		t.Fatalf("pool settings = %+v, want {gemma3:4b 4}", got)
	}
}

func TestUpdateSettings_RejectsOutOfSetValues(t *testing.T) {
	r, _ := newSettingsRouter()

	cases := []string{
		`{"model_id":"gpt-4","concurrency":4}`,
		`{"model_id":"gemma3:1b","concurrency":3}`,
		`{"model_id":"gemma3:1b"}`,
	}
	for _, body := range cases {
		req, _ := http.NewRequest(http.MethodPost, "/api/nlp-settings", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, w.Code)
		}
	}
}

func TestSessionSnapshot_RoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sessions := session.NewStore()
	sessions.Put("s-1", session.Snapshot{
		Tickets: []models.Ticket{{CustomerGUID: "c-1"}},
	})
	h := &Handler{Sessions: sessions, Logger: zerolog.Nop()}

	r := gin.New()
	r.GET("/api/sessions/:id", h.SessionSnapshot)

	req, _ := http.NewRequest(http.MethodGet, "/api/sessions/s-1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Tickets []models.Ticket `json:"tickets"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response did not decode: %v", err)
	}
	if len(body.Tickets) != 1 || body.Tickets[0].CustomerGUID != "c-1" {
		t.Fatalf("unexpected snapshot body: %+v", body)
	}

	req, _ = http.NewRequest(http.MethodGet, "/api/sessions/unknown", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", w.Code)
	}
}

func TestAdminKeyMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(adminKey("secret"))
	r.GET("/guarded", func(c *gin.Context) { c.Status(http.StatusOK) })

	req, _ := http.NewRequest(http.MethodGet, "/guarded", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", w.Code)
	}

	req, _ = http.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("X-Admin-Key", "secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d", w.Code)
	}
}
