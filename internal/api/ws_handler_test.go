package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Christianjames01/repo-sub000/internal/auth"
	"github.com/Christianjames01/repo-sub000/internal/db"
	"github.com/Christianjames01/repo-sub000/internal/models"
	ws "github.com/Christianjames01/repo-sub000/internal/websocket"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type adminDirectory map[string]*models.Administrator

func (d adminDirectory) GetAdministratorByEmail(_ context.Context, email string) (*models.Administrator, error) {
	if a, ok := d[strings.ToLower(email)]; ok {
		return a, nil
	}
	return nil, db.ErrAdministratorNotFound
}

func TestWebSocketHandler(t *testing.T) {
	logger := zaptest.NewLogger(t)
	hub := ws.NewHub(2, logger)
	directory := adminDirectory{
		"clerk@example.gov": {ID: "admin-1", Email: "clerk@example.gov"},
	}

	handler := NewWebSocketHandler(hub, logger)
	server := httptest.NewServer(auth.RequireAdmin(directory, logger)(http.HandlerFunc(handler.Handle)))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	dial := func(t *testing.T, email string) (*websocket.Conn, *http.Response, error) {
		t.Helper()
		header := http.Header{}
		if email != "" {
			header.Set(auth.EmailHeader, email)
		}
		return websocket.DefaultDialer.Dial(wsURL, header)
	}

	t.Run("rejects unauthenticated connections", func(t *testing.T) {
		_, resp, err := dial(t, "")
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rejects non-administrators", func(t *testing.T) {
		_, resp, err := dial(t, "resident@example.com")
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("delivers notifications to the administrator", func(t *testing.T) {
		conn, resp, err := dial(t, "clerk@example.gov")
		require.NoError(t, err)
		defer func() { _ = conn.Close() }()
		assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

		require.Eventually(t, func() bool {
			return hub.ActiveConnections("admin-1") == 1
		}, 2*time.Second, 10*time.Millisecond)

		reply := &models.Reply{ID: "reply-1", FromAddress: "resident@example.com", Subject: "Re: Noise Complaint", BodyText: "Thanks."}
		hub.PublishNotification(&models.Notification{ID: "n-1", AdminID: "admin-1", Title: "Noise Complaint", ReplyID: "reply-1"}, reply.Summary())

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var event ws.NotificationEvent
		require.NoError(t, json.Unmarshal(data, &event))
		assert.Equal(t, "email_reply", event.Type)
		assert.Equal(t, "n-1", event.Notification.ID)
		assert.Equal(t, "resident@example.com", event.Reply.Sender)
	})

	t.Run("unregisters on close", func(t *testing.T) {
		conn, _, err := dial(t, "clerk@example.gov")
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return hub.ActiveConnections("admin-1") >= 1
		}, 2*time.Second, 10*time.Millisecond)

		_ = conn.Close()

		require.Eventually(t, func() bool {
			return hub.ActiveConnections("admin-1") == 0
		}, 2*time.Second, 10*time.Millisecond)
	})
}
