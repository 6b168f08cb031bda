package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/dualnback/internal/model"
	"github.com/verte-zerg/dualnback/internal/recorder"
	"github.com/verte-zerg/dualnback/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type brokenRecorder struct{}

func (brokenRecorder) Record(context.Context, string, model.SessionSummary) (model.SavedSession, error) {
	return model.SavedSession{}, errors.New("database locked")
}

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "dualnback.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return New(recorder.New(st, nil), "demo", nil), st
}

func post(t *testing.T, h http.Handler, body string, player string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/save-game", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if player != "" {
		req.Header.Set(PlayerHeader, player)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestSaveGameRejectsShortSession(t *testing.T) {
	srv, _ := newTestServer(t)
	w := post(t, srv.Handler(), `{"nLevel":2,"rounds":4,"score":100,"matches":{"pos":1,"audio":0}}`, "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Session too short", body["message"])
}

func TestSaveGameAcceptsMinimumSession(t *testing.T) {
	srv, st := newTestServer(t)
	w := post(t, srv.Handler(), `{"nLevel":2,"rounds":5,"score":0,"matches":{"pos":0,"audio":0}}`, "ada")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var saved model.SavedSession
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	assert.Equal(t, 100, saved.Accuracy)
	assert.Equal(t, "ada", saved.User)
	assert.Equal(t, 5, saved.Rounds)

	users, err := st.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "ada", users[0].Name)
}

func TestSaveGameUsesDefaultUser(t *testing.T) {
	srv, st := newTestServer(t)
	w := post(t, srv.Handler(), `{"nLevel":3,"rounds":20,"score":700,"matches":{"pos":4,"audio":6}}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	sessions, err := st.ListSessions(context.Background(), model.StatsConfig{User: "demo"})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 70, sessions[0].Accuracy)
}

func TestSaveGameRejectsMalformedBody(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, body := range []string{
		`not json`,
		`{"nLevel":0,"rounds":10,"score":0,"matches":{"pos":0,"audio":0}}`,
		`{"nLevel":2,"rounds":10,"score":0}`,
		`{"nLevel":2,"rounds":10,"score":0,"matches":{"pos":-1,"audio":0}}`,
	} {
		w := post(t, srv.Handler(), body, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestSaveGameStorageFailure(t *testing.T) {
	srv := New(brokenRecorder{}, "demo", nil)
	w := post(t, srv.Handler(), `{"nLevel":2,"rounds":10,"score":0,"matches":{"pos":0,"audio":0}}`, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMetricsCountOutcomes(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	post(t, h, `{"nLevel":2,"rounds":10,"score":0,"matches":{"pos":0,"audio":0}}`, "")
	post(t, h, `{"nLevel":2,"rounds":1,"score":0,"matches":{"pos":0,"audio":0}}`, "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	out, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(out), "dualnback_sessions_saved_total 1")
	assert.Contains(t, string(out), `dualnback_sessions_rejected_total{reason="too_short"} 1`)
}
