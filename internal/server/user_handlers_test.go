package server

import (
	"fmt"
	"net/http"
	"testing"

	"blogshive/internal/models"
	"blogshive/internal/service"
	"blogshive/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUserProfile(t *testing.T) {
	ts := newTestServer(t)
	author, _ := ts.user("author", testutil.Named("The Author"))
	_, readerToken := ts.user("reader")

	requireStatus(t, http.StatusOK, ts.do(http.MethodPost, fmt.Sprintf("/api/relationships/%d/follow", author.ID), readerToken, nil))

	resp := ts.do(http.MethodGet, "/api/users/AUTHOR", "", nil)
	requireStatus(t, http.StatusOK, resp)
	var anon service.Profile
	resp.decode(t, &anon)
	assert.Equal(t, author.ID, anon.ID)
	assert.Equal(t, int64(1), anon.Stats.Followers)
	assert.Nil(t, anon.Relationship)
	assert.NotContains(t, string(resp.Body), "email")

	resp = ts.do(http.MethodGet, "/api/users/author", readerToken, nil)
	var viewed service.Profile
	resp.decode(t, &viewed)
	require.NotNil(t, viewed.Relationship)
	assert.True(t, viewed.Relationship.IsFollowing)

	requireStatus(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/users/nobody", "", nil))
}

func TestUpdateMyProfile(t *testing.T) {
	ts := newTestServer(t)
	ts.user("taken")
	_, token := ts.user("reader")

	resp := ts.do(http.MethodPut, "/api/users/me", token, map[string]any{
		"bio":             "Writes about Go.",
		"followed_topics": []string{"Go", "go", " Databases "},
	})
	requireStatus(t, http.StatusOK, resp)
	var user models.User
	resp.decode(t, &user)
	assert.Equal(t, "Writes about Go.", user.Bio)
	assert.Equal(t, []string{"go", "databases"}, user.FollowedTopics)
	assert.Equal(t, "reader", user.Username)

	requireStatus(t, http.StatusConflict, ts.do(http.MethodPut, "/api/users/me", token, map[string]any{"username": "taken"}))
	requireStatus(t, http.StatusBadRequest, ts.do(http.MethodPut, "/api/users/me", token, map[string]any{"username": "x"}))
}

func TestGetUserPosts_DraftsOnlyForAuthor(t *testing.T) {
	ts := newTestServer(t)
	author, authorToken := ts.user("author")
	testutil.CreatePost(t, ts.db, author, "Out")
	testutil.CreatePost(t, ts.db, author, "WIP", testutil.Draft)
	testutil.CreatePost(t, ts.db, author, "Members", testutil.WithVisibility(models.VisibilityMembersOnly))

	path := fmt.Sprintf("/api/users/%d/posts", author.ID)
	var posts []models.Post

	resp := ts.do(http.MethodGet, path, "", nil)
	requireStatus(t, http.StatusOK, resp)
	resp.decode(t, &posts)
	assert.Len(t, posts, 2)

	resp = ts.do(http.MethodGet, path, authorToken, nil)
	resp.decode(t, &posts)
	assert.Len(t, posts, 3)

	requireStatus(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/users/9999/posts", "", nil))
}

func TestDeleteMyAccount(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(http.MethodPost, "/api/auth/signup", "", map[string]any{
		"username": "leaving",
		"email":    "leaving@example.com",
		"password": testPassword,
	})
	requireStatus(t, http.StatusCreated, resp)
	var auth authResponse
	resp.decode(t, &auth)

	other, otherToken := ts.user("other")
	testutil.CreatePost(t, ts.db, auth.User, "Farewell")
	requireStatus(t, http.StatusOK, ts.do(http.MethodPost, fmt.Sprintf("/api/relationships/%d/follow", other.ID), auth.Token, nil))

	requireStatus(t, http.StatusUnauthorized, ts.do(http.MethodDelete, "/api/users/me", auth.Token, map[string]any{"password": "Wrong-Password-1"}))
	requireStatus(t, http.StatusNoContent, ts.do(http.MethodDelete, "/api/users/me", auth.Token, map[string]any{"password": testPassword}))

	requireStatus(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/users/leaving", "", nil))

	var posts, edges int64
	require.NoError(t, ts.db.Model(&models.Post{}).Where("author_id = ?", auth.User.ID).Count(&posts).Error)
	require.NoError(t, ts.db.Model(&models.Relationship{}).Count(&edges).Error)
	assert.Zero(t, posts)
	assert.Zero(t, edges)

	resp = ts.do(http.MethodGet, fmt.Sprintf("/api/relationships/%d/stats", other.ID), otherToken, nil)
	var stats models.FollowStats
	resp.decode(t, &stats)
	assert.Zero(t, stats.Followers)
}
