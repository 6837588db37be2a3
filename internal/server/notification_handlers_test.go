package server

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"blogshive/internal/models"
	"blogshive/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (ts *testServer) notification(recipient, sender *models.User, msg string, at time.Time) *models.Notification {
	ts.t.Helper()
	n := &models.Notification{
		RecipientID: recipient.ID,
		Type:        models.NotificationSystem,
		Message:     msg,
		CreatedAt:   at,
	}
	if sender != nil {
		n.SenderID = &sender.ID
		n.Type = models.NotificationFollow
	}
	require.NoError(ts.t, ts.db.Create(n).Error)
	return n
}

func TestGetNotifications_PagesByCursor(t *testing.T) {
	ts := newTestServer(t)
	reader, token := ts.user("reader")
	other, _ := ts.user("other")

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 3; i++ {
		ts.notification(reader, nil, fmt.Sprintf("n%d", i), base.Add(time.Duration(i)*time.Second))
	}
	ts.notification(other, nil, "not mine", base)

	resp := ts.do(http.MethodGet, "/api/notifications?limit=2", token, nil)
	requireStatus(t, http.StatusOK, resp)
	var page models.NotificationPage
	resp.decode(t, &page)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "n2", page.Items[0].Message)
	assert.Equal(t, "n1", page.Items[1].Message)
	assert.Equal(t, int64(3), page.UnreadCount)
	assert.True(t, page.HasMore)
	require.NotNil(t, page.NextCursor)
	assert.Nil(t, page.Items[0].Sender)
	assert.NotNil(t, page.Items[0].Metadata)

	resp = ts.do(http.MethodGet, "/api/notifications?limit=2&cursor="+*page.NextCursor, token, nil)
	requireStatus(t, http.StatusOK, resp)
	var next models.NotificationPage
	resp.decode(t, &next)
	require.Len(t, next.Items, 1)
	assert.Equal(t, "n0", next.Items[0].Message)
	assert.False(t, next.HasMore)
	assert.Nil(t, next.NextCursor)
}

func TestGetNotifications_InvalidCursor(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.user("reader")

	resp := ts.do(http.MethodGet, "/api/notifications?cursor=yesterday", token, nil)
	requireStatus(t, http.StatusBadRequest, resp)
	assert.Equal(t, "Invalid cursor", resp.object(t)["error"])
}

func TestMarkNotificationsRead(t *testing.T) {
	ts := newTestServer(t)
	reader, token := ts.user("reader")
	other, _ := ts.user("other")
	now := time.Now().UTC()

	first := ts.notification(reader, nil, "first", now)
	ts.notification(reader, nil, "second", now.Add(time.Second))
	foreign := ts.notification(other, nil, "foreign", now)

	resp := ts.do(http.MethodPost, "/api/notifications/read", token,
		fmt.Sprintf(`{"ids":["%d",%d]}`, first.ID, foreign.ID))
	requireStatus(t, http.StatusOK, resp)
	assert.Equal(t, float64(1), resp.object(t)["modified"])

	resp = ts.do(http.MethodGet, "/api/notifications/unread-count", token, nil)
	requireStatus(t, http.StatusOK, resp)
	assert.Equal(t, float64(1), resp.object(t)["unread_count"])

	resp = ts.do(http.MethodPost, "/api/notifications/read", token, nil)
	requireStatus(t, http.StatusOK, resp)
	assert.Equal(t, float64(1), resp.object(t)["modified"])

	resp = ts.do(http.MethodGet, "/api/notifications/unread-count", token, nil)
	assert.Equal(t, float64(0), resp.object(t)["unread_count"])

	var foreignAfter models.Notification
	require.NoError(t, ts.db.First(&foreignAfter, foreign.ID).Error)
	assert.False(t, foreignAfter.IsRead)
}

func TestMarkNotificationsRead_RejectsBadIDs(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.user("reader")

	resp := ts.do(http.MethodPost, "/api/notifications/read", token, `{"ids":["-3"]}`)
	requireStatus(t, http.StatusBadRequest, resp)
	assert.Equal(t, "Invalid notification ID: -3", resp.object(t)["error"])

	resp = ts.do(http.MethodPost, "/api/notifications/read", token, `{"ids":[0]}`)
	requireStatus(t, http.StatusBadRequest, resp)
}

func TestDeleteNotification(t *testing.T) {
	ts := newTestServer(t)
	reader, token := ts.user("reader")
	_, otherToken := ts.user("other")
	n := ts.notification(reader, nil, "bye", time.Now().UTC())

	path := fmt.Sprintf("/api/notifications/%d", n.ID)
	resp := ts.do(http.MethodDelete, path, otherToken, nil)
	requireStatus(t, http.StatusForbidden, resp)

	resp = ts.do(http.MethodDelete, path, token, nil)
	requireStatus(t, http.StatusNoContent, resp)

	resp = ts.do(http.MethodDelete, path, token, nil)
	requireStatus(t, http.StatusNotFound, resp)
}

func TestSendSystemNotification_AdminOnly(t *testing.T) {
	ts := newTestServer(t)
	_, adminToken := ts.user("root", testutil.Admin)
	reader, readerToken := ts.user("reader")

	body := map[string]any{
		"user_id":  reader.ID,
		"message":  "Scheduled maintenance tonight",
		"metadata": map[string]any{"severity": "info"},
	}

	resp := ts.do(http.MethodPost, "/api/admin/notifications", readerToken, body)
	requireStatus(t, http.StatusForbidden, resp)

	resp = ts.do(http.MethodPost, "/api/admin/notifications", adminToken, body)
	requireStatus(t, http.StatusCreated, resp)
	var payload models.NotificationPayload
	resp.decode(t, &payload)
	assert.Equal(t, models.NotificationSystem, payload.Type)
	assert.Nil(t, payload.Sender)
	assert.Equal(t, "info", payload.Metadata["severity"])
	assert.Equal(t, fmt.Sprint(reader.ID), payload.RecipientID)

	resp = ts.do(http.MethodPost, "/api/admin/notifications", adminToken, map[string]any{"message": "x"})
	requireStatus(t, http.StatusBadRequest, resp)

	resp = ts.do(http.MethodPost, "/api/admin/notifications", adminToken, map[string]any{"user_id": 9999, "message": "x"})
	requireStatus(t, http.StatusNotFound, resp)
}
