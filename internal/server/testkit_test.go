package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"blogshive/internal/config"
	"blogshive/internal/middleware"
	"blogshive/internal/models"
	"blogshive/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testJWTSecret = "test-secret-key-12345678901234567890123456789012"

type testServer struct {
	*Server
	t   *testing.T
	db  *gorm.DB
	mr  *miniredis.Miniredis
	app *fiber.App
}

// newTestServer wires a full Server over sqlite and miniredis.
func newTestServer(t *testing.T, opts ...func(*config.Config)) *testServer {
	t.Helper()
	db := testutil.NewTestDB(t)
	mr, rdb := testutil.NewTestRedis(t)

	cfg := &config.Config{
		JWTSecret:      testJWTSecret,
		Env:            "test",
		AllowedOrigins: "http://localhost:5173",
		FeatureFlags:   "newsletter=on",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	s, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)

	return &testServer{Server: s, t: t, db: db, mr: mr, app: s.App()}
}

func (ts *testServer) user(username string, opts ...func(*models.User)) (*models.User, string) {
	ts.t.Helper()
	u := testutil.CreateUser(ts.t, ts.db, username, opts...)
	return u, ts.token(u.ID)
}

func (ts *testServer) token(userID uint) string {
	ts.t.Helper()
	token, _, err := middleware.IssueAccessToken(testJWTSecret, userID, time.Hour)
	require.NoError(ts.t, err)
	return token
}

type testResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

func (r testResponse) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Body, v), string(r.Body))
}

func (r testResponse) object(t *testing.T) map[string]any {
	t.Helper()
	var out map[string]any
	r.decode(t, &out)
	return out
}

// do sends a JSON request. body may be nil, a string or any JSON-encodable value.
func (ts *testServer) do(method, path, token string, body any) testResponse {
	ts.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.app.Test(req, -1)
	require.NoError(ts.t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(ts.t, err)
	return testResponse{Status: resp.StatusCode, Header: resp.Header, Body: raw}
}

func requireStatus(t *testing.T, want int, r testResponse) {
	t.Helper()
	require.Equal(t, want, r.Status, string(r.Body))
}
