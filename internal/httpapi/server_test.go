package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driptext/driptext/internal/config"
	"github.com/driptext/driptext/internal/dispatch"
	"github.com/driptext/driptext/internal/service"
	"github.com/driptext/driptext/internal/tracker"
)

type recordingChannel struct {
	sent []dispatch.Message
}

func (c *recordingChannel) Send(_ context.Context, _ string, msg dispatch.Message) error {
	c.sent = append(c.sent, msg)
	return nil
}

func newTestServer(t *testing.T) (*Server, *recordingChannel) {
	t.Helper()
	settings, err := config.NewSettingsStore(filepath.Join(t.TempDir(), "settings.json"), config.RuntimeSettings{
		CronExpr:         "0 8 * * *",
		PortionsPerCycle: 1,
		DuplicatePolicy:  tracker.OverwriteLatest,
	})
	require.NoError(t, err)

	channel := &recordingChannel{}
	svc, err := service.New(
		tracker.NewRegistry(nil),
		map[tracker.ChannelType]dispatch.Channel{tracker.ChannelEmail: channel},
		settings,
		nil,
		service.WithOutputDir(t.TempDir()),
	)
	require.NoError(t, err)
	return NewServer(svc), channel
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_TextLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/texts", map[string]any{
		"title":       "Fox",
		"content":     "The quick brown fox jumps over the lazy dog.",
		"target_lang": "fr",
		"policy":      map[string]any{"max_units": 20, "unit": "chars"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created textResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "Fox", created.Title)
	require.Equal(t, 3, created.Portions)
	require.Equal(t, "fr", created.TargetLang)

	rec = doJSON(t, srv, http.MethodGet, "/api/texts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []textResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = doJSON(t, srv, http.MethodGet, "/api/texts/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/texts/txt-missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// duplicate title
	rec = doJSON(t, srv, http.MethodPost, "/api/texts", map[string]any{
		"title":   "Fox",
		"content": "another fox",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_ReplyFlow(t *testing.T) {
	srv, channel := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/texts", map[string]any{
		"title":   "Fox",
		"content": "The quick brown fox jumps over the lazy dog.",
		"policy":  map[string]any{"max_units": 20, "unit": "chars"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var text textResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &text))

	rec = doJSON(t, srv, http.MethodPost, "/api/users", map[string]any{
		"name":      "Maria",
		"email":     "maria@example.com",
		"preferred": "email",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var user tracker.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))

	rec = doJSON(t, srv, http.MethodPost, "/api/assignments", map[string]any{
		"user_id": user.ID,
		"text_id": text.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var a tracker.Assignment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))

	// document is not assemblable yet
	rec = doJSON(t, srv, http.MethodGet, "/api/assignments/"+a.ID+"/document", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// dispatch all three portions
	for i := 0; i < 3; i++ {
		rec = doJSON(t, srv, http.MethodPost, "/api/dispatch", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.Len(t, channel.sent, 3)

	rec = doJSON(t, srv, http.MethodPost, "/api/replies", map[string]any{
		"sender": "maria@example.com",
		"body":   "[1] Le rapide renard brun\n[2] saute par-dessus le\n[3] chien paresseux.",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var report service.ReplyReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.True(t, report.Complete)

	rec = doJSON(t, srv, http.MethodGet, "/api/assignments/"+a.ID+"/document", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var doc struct {
		Content string `json:"content"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Equal(t, "Le rapide renard brun saute par-dessus le chien paresseux.", doc.Content)

	rec = doJSON(t, srv, http.MethodPost, "/api/assignments/"+a.ID+"/export?format=json", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/assignments/"+a.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Progress struct {
			Percent float64 `json:"completion_percent"`
		} `json:"progress"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	require.Equal(t, float64(100), detail.Progress.Percent)
}

func TestServer_ReplyErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/replies", map[string]any{
		"sender": "stranger@example.com",
		"body":   "[1] hola",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/replies", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Settings(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var settings config.RuntimeSettings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	require.Equal(t, 1, settings.PortionsPerCycle)

	settings.PortionsPerCycle = 2
	rec = doJSON(t, srv, http.MethodPut, "/api/settings", settings)
	require.Equal(t, http.StatusOK, rec.Code)

	settings.CronExpr = "not a cron"
	rec = doJSON(t, srv, http.MethodPut, "/api/settings", settings)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Status(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, 0, status.Assignments)
	require.NotNil(t, status.Schedule)
	require.Equal(t, "0 8 * * *", status.Schedule.Expression)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/api/texts", "/api/users", "/api/assignments", "/api/settings"} {
		rec := doJSON(t, srv, http.MethodDelete, path, nil)
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code, fmt.Sprintf("path %s", path))
	}
}
