package signal

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/callrecap/internal/app"
	"github.com/dkeye/callrecap/internal/app/orch"
	"github.com/dkeye/callrecap/internal/protocol"
)

func startSignal(t *testing.T, opts Options) (string, *orch.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	o := &orch.Orchestrator{Registry: app.NewRegistry(), Policy: app.SimplePolicy{}}
	rooms := app.NewRoomManager(time.Minute, o.OnRoomReaped)
	o.Rooms = rooms

	ctx, cancel := context.WithCancel(context.Background())
	ctl := NewSignalWSController(o, opts)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ctl.HandleSignal(ctx, c) })
	ts := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		ts.Close()
		o.Close()
		rooms.Close()
	})
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws", o
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func write(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func next(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	env, err := protocol.Decode(frame)
	require.NoError(t, err)
	return env
}

func errorCode(t *testing.T, env protocol.Envelope) string {
	t.Helper()
	require.Equal(t, protocol.TypeError, env.Type)
	var e protocol.Error
	require.NoError(t, json.Unmarshal(env.Data, &e))
	return e.Error
}

func TestDispatchErrorCodes(t *testing.T) {
	url, _ := startSignal(t, Options{})
	conn := dial(t, url)

	cases := []struct {
		frame string
		code  string
	}{
		{`not json`, "bad_payload"},
		{`{"data":{}}`, "bad_payload"},
		{`{"type":"dance"}`, "unknown_type"},
		{`{"type":"join-room","data":"room"}`, "bad_payload"},
		{`{"type":"join-room","data":{"roomId":"42","userName":"  "}}`, "invalid_name"},
		{`{"type":"join-room","data":{"roomId":"","userName":"Alice"}}`, "invalid_room"},
		{`{"type":"join-room","data":{"roomId":"42","userName":"Alice","email":"nope"}}`, "invalid_email"},
		{`{"type":"toggle-mic","data":"on"}`, "bad_payload"},
		{`{"type":"toggle-camera","data":{"camEnabled":true}}`, "not_joined"},
		{`{"type":"offer","data":{"sdp":"v=0"}}`, "not_joined"},
		{`{"type":"end-call"}`, "not_joined"},
	}
	for _, tc := range cases {
		write(t, conn, tc.frame)
		assert.Equal(t, tc.code, errorCode(t, next(t, conn)), tc.frame)
	}
}

func TestPingGetsPong(t *testing.T) {
	url, _ := startSignal(t, Options{})
	conn := dial(t, url)

	write(t, conn, `{"type":"ping"}`)
	assert.Equal(t, protocol.TypePong, next(t, conn).Type)
}

func TestMessagesOverRateAreRejected(t *testing.T) {
	url, _ := startSignal(t, Options{Rate: 0.001, Burst: 1})
	conn := dial(t, url)

	write(t, conn, `{"type":"ping"}`)
	assert.Equal(t, protocol.TypePong, next(t, conn).Type)
	write(t, conn, `{"type":"ping"}`)
	assert.Equal(t, "rate_limited", errorCode(t, next(t, conn)))
}

func TestJoinThenCloseRunsDisconnectCleanup(t *testing.T) {
	url, o := startSignal(t, Options{})
	conn := dial(t, url)

	write(t, conn, `{"type":"join-room","data":{"roomId":"42","userName":"Alice"}}`)
	assert.Equal(t, protocol.TypeJoined, next(t, conn).Type)
	require.Len(t, o.Participants("42"), 1)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return len(o.Participants("42")) == 0 && o.Registry.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
