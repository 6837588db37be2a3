package server

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"blogshive/internal/cache"
	"blogshive/internal/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "Correct-Horse-42"

func TestSignupLoginLogout(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/api/auth/signup", "", map[string]any{
		"username": "Writer_1",
		"email":    "Writer@Example.com",
		"password": testPassword,
		"name":     "Writer One",
	})
	requireStatus(t, http.StatusCreated, resp)
	var signup authResponse
	resp.decode(t, &signup)
	require.NotEmpty(t, signup.Token)
	assert.Equal(t, "writer@example.com", signup.User.Email)
	assert.NotContains(t, string(resp.Body), "password")

	resp = ts.do(http.MethodPost, "/api/auth/signup", "", map[string]any{
		"username": "writer_1",
		"email":    "other@example.com",
		"password": testPassword,
	})
	requireStatus(t, http.StatusConflict, resp)

	resp = ts.do(http.MethodPost, "/api/auth/login", "", map[string]any{"identifier": "WRITER@example.com", "password": testPassword})
	requireStatus(t, http.StatusOK, resp)
	var login authResponse
	resp.decode(t, &login)
	require.NotEmpty(t, login.Token)

	resp = ts.do(http.MethodPost, "/api/auth/login", "", map[string]any{"identifier": "Writer_1", "password": "wrong-Password-1"})
	requireStatus(t, http.StatusUnauthorized, resp)
	wrongPassword := resp.object(t)["error"]

	resp = ts.do(http.MethodPost, "/api/auth/login", "", map[string]any{"identifier": "ghost", "password": testPassword})
	requireStatus(t, http.StatusUnauthorized, resp)
	assert.Equal(t, wrongPassword, resp.object(t)["error"], "unknown users are indistinguishable from bad passwords")

	requireStatus(t, http.StatusOK, ts.do(http.MethodGet, "/api/users/me", login.Token, nil))

	requireStatus(t, http.StatusOK, ts.do(http.MethodPost, "/api/auth/logout", login.Token, nil))
	resp = ts.do(http.MethodGet, "/api/users/me", login.Token, nil)
	requireStatus(t, http.StatusUnauthorized, resp)
	assert.Equal(t, "Token has been revoked", resp.object(t)["error"])

	// the signup token is a separate session
	requireStatus(t, http.StatusOK, ts.do(http.MethodGet, "/api/users/me", signup.Token, nil))
}

func TestSignup_Validation(t *testing.T) {
	ts := newTestServer(t)

	cases := map[string]map[string]any{
		"weak password":     {"username": "someone", "email": "someone@example.com", "password": "short"},
		"bad email":         {"username": "someone", "email": "someone", "password": testPassword},
		"reserved username": {"username": "me", "email": "me@example.com", "password": testPassword},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			requireStatus(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/auth/signup", "", body))
		})
	}

	requireStatus(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/auth/signup", "", "{not json"))
	requireStatus(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/auth/login", "", map[string]any{"identifier": "x"}))
}

func TestAuthRequired_RejectsBadTokens(t *testing.T) {
	ts := newTestServer(t)
	u, _ := ts.user("reader")

	requireStatus(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/users/me", "", nil))
	requireStatus(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/users/me", "not.a.jwt", nil))

	forged, _, err := middleware.IssueAccessToken("another-secret-another-secret-another-secret", u.ID, time.Hour)
	require.NoError(t, err)
	requireStatus(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/users/me", forged, nil))

	expired, _, err := middleware.IssueAccessToken(testJWTSecret, u.ID, -time.Minute)
	require.NoError(t, err)
	requireStatus(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/users/me", expired, nil))
}

func TestIssueWSTicket(t *testing.T) {
	ts := newTestServer(t)
	u, token := ts.user("reader")

	resp := ts.do(http.MethodPost, "/api/ws/ticket", token, nil)
	requireStatus(t, http.StatusOK, resp)
	body := resp.object(t)
	ticket, _ := body["ticket"].(string)
	require.NotEmpty(t, ticket)
	assert.Equal(t, float64(cache.WSTicketTTL.Seconds()), body["expires_in"])

	stored, err := ts.mr.Get(cache.WSTicketKey(ticket))
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprint(u.ID), stored)
	assert.Equal(t, cache.WSTicketTTL, ts.mr.TTL(cache.WSTicketKey(ticket)))

	// tickets only authenticate the socket endpoint
	requireStatus(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/users/me?ticket="+ticket, "", nil))
}
