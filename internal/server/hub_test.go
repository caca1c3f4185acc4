package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/emberwatch/firecommand/internal/session"
	"github.com/emberwatch/firecommand/pkg/core"
	"github.com/emberwatch/firecommand/pkg/streaming"
	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, env *testEnv) *ws.Conn {
	t.Helper()
	ts := httptest.NewServer(env.srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return env.hub.Len() == 1 }, waitFor, poll)
	return conn
}

// readUntil reads messages until one has the wanted type.
func readUntil(t *testing.T, conn *ws.Conn, want string) []byte {
	t.Helper()
	deadline := time.Now().Add(waitFor)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %q", want)
		var head struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(msg, &head))
		if head.Type == want {
			return msg
		}
	}
}

// collect reads until one message of every wanted type arrived, in any order.
func collect(t *testing.T, conn *ws.Conn, want ...string) map[string][]byte {
	t.Helper()
	got := make(map[string][]byte, len(want))
	deadline := time.Now().Add(waitFor)
	for len(got) < len(want) {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %v, have %d", want, len(got))
		var head struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(msg, &head))
		for _, w := range want {
			if head.Type == w && got[w] == nil {
				got[w] = msg
			}
		}
	}
	return got
}

func send(t *testing.T, conn *ws.Conn, msgType string, payload any) {
	t.Helper()
	data, err := streaming.Encode(msgType, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(ws.TextMessage, data))
}

func TestHub_GreetsWithLatestState(t *testing.T) {
	env := newTestEnv(t)
	conn := dial(t, env)

	var env0 streaming.Envelope
	require.NoError(t, json.Unmarshal(readUntil(t, conn, streaming.TypeState), &env0))
	var snap session.Snapshot
	require.NoError(t, env0.Decode(&snap))
	assert.Equal(t, env.session.ID().String(), snap.SessionID)
	assert.Equal(t, session.GateReady, snap.Gate)
}

func TestHub_DispatchStreamsRunAndFrames(t *testing.T) {
	env := newTestEnv(t)
	conn := dial(t, env)

	send(t, conn, streaming.TypeDispatch, streaming.DispatchPayload{Override: json.RawMessage(`{"slope":20}`)})

	msgs := collect(t, conn, streaming.TypeAck, streaming.TypeFrame, streaming.TypeRunCompleted)

	var ack streaming.AckMessage
	require.NoError(t, json.Unmarshal(msgs[streaming.TypeAck], &ack))
	assert.Equal(t, streaming.TypeDispatch, ack.For)

	var frameEnv streaming.Envelope
	require.NoError(t, json.Unmarshal(msgs[streaming.TypeFrame], &frameEnv))
	var frame streaming.FramePayload
	require.NoError(t, frameEnv.Decode(&frame))
	assert.Equal(t, 0, frame.Index)
	assert.Contains(t, string(frame.Features), "FeatureCollection")

	var runEnv streaming.Envelope
	require.NoError(t, json.Unmarshal(msgs[streaming.TypeRunCompleted], &runEnv))
	var report session.RunReport
	require.NoError(t, runEnv.Decode(&report))
	assert.Equal(t, 3, report.Frames)
	assert.Len(t, report.Risks, 2)
	assert.Equal(t, 20, report.Request.Parameters.Slope)
}

func TestHub_PlaybackControls(t *testing.T) {
	env := newTestEnv(t)
	env.runToCompletion(t)
	conn := dial(t, env)

	send(t, conn, streaming.TypeScrub, streaming.ScrubPayload{Index: 2})
	var ack struct {
		For    string             `json:"for"`
		Result core.PlaybackState `json:"result"`
	}
	require.NoError(t, json.Unmarshal(readUntil(t, conn, streaming.TypeAck), &ack))
	assert.Equal(t, streaming.TypeScrub, ack.For)
	assert.Equal(t, 2, ack.Result.FrameIndex)
	assert.Equal(t, 2, env.session.Snapshot().Playback.FrameIndex)

	send(t, conn, streaming.TypeRestart, nil)
	readUntil(t, conn, streaming.TypeAck)
	assert.Equal(t, 0, env.session.Snapshot().Playback.FrameIndex)
}

func TestHub_RejectsBadControl(t *testing.T) {
	env := newTestEnv(t)
	conn := dial(t, env)

	send(t, conn, "launch", nil)
	var e streaming.ErrorMessage
	require.NoError(t, json.Unmarshal(readUntil(t, conn, streaming.TypeError), &e))
	assert.Equal(t, "launch", e.For)
	assert.Contains(t, e.Error, "unknown message type")

	send(t, conn, streaming.TypeDispatch, streaming.DispatchPayload{Override: json.RawMessage(`{"gusts":3}`)})
	require.NoError(t, json.Unmarshal(readUntil(t, conn, streaming.TypeError), &e))
	assert.Contains(t, e.Error, "gusts")

	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte("not json")))
	require.NoError(t, json.Unmarshal(readUntil(t, conn, streaming.TypeError), &e))
	assert.Contains(t, e.Error, "invalid envelope")
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	env := newTestEnv(t)
	conn := dial(t, env)

	env.hub.Close()
	assert.Equal(t, 0, env.hub.Len())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func TestOriginChecker(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest("GET", "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	open := originChecker(nil)
	if !open(req("http://anywhere")) {
		t.Errorf("empty allow list should accept any origin")
	}
	if !originChecker([]string{"*"})(req("http://anywhere")) {
		t.Errorf("wildcard should accept any origin")
	}

	check := originChecker([]string{"http://dashboard.local"})
	assert.True(t, check(req("http://dashboard.local")))
	assert.True(t, check(req("")), "non-browser clients send no origin")
	assert.False(t, check(req("http://evil.example")))
}
