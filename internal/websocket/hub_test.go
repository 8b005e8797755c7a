package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), &websocket.DialOptions{HTTPHeader: header})
}

func TestAllowedOrigins(t *testing.T) {
	var loopback AllowedOrigins
	assert.True(t, loopback.IsAllowedOrigin("http://localhost:8080"))
	assert.True(t, loopback.IsAllowedOrigin("http://127.0.0.1:3000"))
	assert.False(t, loopback.IsAllowedOrigin("http://evil.example"))
	assert.False(t, loopback.IsAllowedOrigin("not a url"))

	listed := AllowedOrigins{"course.example:443", "https://docs.example"}
	assert.True(t, listed.IsAllowedOrigin("https://course.example:443"))
	assert.True(t, listed.IsAllowedOrigin("https://docs.example"))
	assert.False(t, listed.IsAllowedOrigin("http://localhost:8080"))
}

func TestHub_BroadcastReachesClients(t *testing.T) {
	hub := NewHub(AllowedOrigins(nil))
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	conn, _, err := dial(t, srv, "")
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(UpdateMessage{Type: "content_update", Target: "content-area", Content: "<p>x</p>"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg UpdateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "content_update", msg.Type)
	assert.Equal(t, "content-area", msg.Target)
	assert.Equal(t, "<p>x</p>", msg.Content)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	hub := NewHub(AllowedOrigins(nil))
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	_, resp, err := dial(t, srv, "http://evil.example")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHub_PerIPLimit(t *testing.T) {
	hub := NewHub(AllowedOrigins(nil), WithMaxClientsPerIP(1))
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	first, _, err := dial(t, srv, "")
	require.NoError(t, err)
	defer first.CloseNow()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	_, resp, err := dial(t, srv, "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	require.NoError(t, first.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 5*time.Millisecond)

	again, _, err := dial(t, srv, "")
	require.NoError(t, err)
	again.CloseNow()
}

func TestHub_Shutdown(t *testing.T) {
	hub := NewHub(AllowedOrigins(nil))
	require.NoError(t, hub.Shutdown(context.Background()))
	require.NoError(t, hub.Shutdown(context.Background()), "shutdown is idempotent")

	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	assert.NotPanics(t, func() { hub.Broadcast(UpdateMessage{Type: "theme_update"}) })
}
