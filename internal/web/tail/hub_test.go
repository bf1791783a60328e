package tail_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inetmon/inetmon/internal/web/tail"
)

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) tail.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg tail.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHub_InitAndBroadcast(t *testing.T) {
	hub := tail.NewHub(zerolog.Nop())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, []string{"a", "b"})
	}))
	defer server.Close()
	defer hub.Close()

	conn := dial(t, server)

	msg := readMessage(t, conn)
	assert.Equal(t, tail.MessageInit, msg.Type)
	assert.Equal(t, []string{"a", "b"}, msg.Lines)

	require.Eventually(t, func() bool { return hub.Count() == 1 }, 5*time.Second, 10*time.Millisecond)

	hub.BroadcastLines([]string{"c"})
	msg = readMessage(t, conn)
	assert.Equal(t, tail.MessageLines, msg.Type)
	assert.Equal(t, []string{"c"}, msg.Lines)

	hub.BroadcastReset()
	msg = readMessage(t, conn)
	assert.Equal(t, tail.MessageReset, msg.Type)
	assert.Empty(t, msg.Lines)
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub := tail.NewHub(zerolog.Nop())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, nil)
	}))
	defer server.Close()

	conn := dial(t, server)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Count() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestHub_RejectsPlainHTTP(t *testing.T) {
	hub := tail.NewHub(zerolog.Nop())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, nil)
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, hub.Count())
}
