package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marionette/core"
	"marionette/protocol"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	received chan []byte
	conns    chan *websocket.Conn
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		received: make(chan []byte, 16),
		conns:    make(chan *websocket.Conn, 1),
	}
	upgrader := websocket.Upgrader{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.conns <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			ts.received <- data
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func newConnectedClient(t *testing.T, ts *testServer) (*Client, *websocket.Conn) {
	t.Helper()
	c := NewClient(ClientConfig{URL: ts.wsURL(), Name: "result", Logger: core.NewNopLogger()})
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(c.Close)
	select {
	case conn := <-ts.conns:
		return c, conn
	case <-time.After(5 * time.Second):
		t.Fatal("server never accepted the connection")
	}
	return nil, nil
}

func TestEmitSendsEnvelope(t *testing.T) {
	ts := newTestServer(t)
	c, _ := newConnectedClient(t, ts)

	c.Emit(protocol.EventEnterSession, protocol.EnterSessionPayload{SessionID: "s-1"})

	select {
	case data := <-ts.received:
		event, raw, err := protocol.Unmarshal(data)
		require.NoError(t, err)
		assert.Equal(t, protocol.EventEnterSession, event)
		p, err := protocol.UnmarshalPayload[protocol.EnterSessionPayload](raw)
		require.NoError(t, err)
		assert.Equal(t, "s-1", p.SessionID)
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}
}

func TestBinaryFramesArriveInOrder(t *testing.T) {
	ts := newTestServer(t)
	c, conn := newConnectedClient(t, ts)

	got := make(chan byte, 100)
	c.OnBinary(func(data []byte) { got <- data[0] })

	for i := 0; i < 100; i++ {
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{byte(i)}))
	}
	for i := 0; i < 100; i++ {
		select {
		case b := <-got:
			assert.Equal(t, byte(i), b)
		case <-time.After(5 * time.Second):
			t.Fatalf("frame %d not delivered", i)
		}
	}
}

func TestTextEventsDispatch(t *testing.T) {
	ts := newTestServer(t)
	c, conn := newConnectedClient(t, ts)

	got := make(chan string, 1)
	c.On(protocol.EventLeaveSession, func(payload json.RawMessage) {
		p, _ := protocol.UnmarshalPayload[protocol.LeaveSessionPayload](payload)
		got <- p.SessionID
	})

	data, err := protocol.Marshal(protocol.EventLeaveSession, protocol.LeaveSessionPayload{SessionID: "bye"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("garbage")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))

	select {
	case id := <-got:
		assert.Equal(t, "bye", id)
	case <-time.After(5 * time.Second):
		t.Fatal("event not dispatched")
	}
}

func TestCloseFlushesQueue(t *testing.T) {
	ts := newTestServer(t)
	c, _ := newConnectedClient(t, ts)

	c.Emit(protocol.EventLeaveSession, protocol.LeaveSessionPayload{SessionID: "last"})
	c.Close()

	select {
	case data := <-ts.received:
		event, _, err := protocol.Unmarshal(data)
		require.NoError(t, err)
		assert.Equal(t, protocol.EventLeaveSession, event)
	case <-time.After(5 * time.Second):
		t.Fatal("queued message lost on close")
	}

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("client not done after close")
	}
}

func TestConnectionDropClosesDone(t *testing.T) {
	ts := newTestServer(t)
	c, conn := newConnectedClient(t, ts)
	conn.Close()
	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("done not closed after drop")
	}
}

func TestDialFailure(t *testing.T) {
	c := NewClient(ClientConfig{URL: "ws://127.0.0.1:1/none", Logger: core.NewNopLogger()})
	assert.Error(t, c.Connect(context.Background()))
	c.Close()
}

func TestCloseBeforeConnect(t *testing.T) {
	c := NewClient(ClientConfig{URL: "ws://unused", Logger: core.NewNopLogger()})
	c.Close()
	assert.NoError(t, c.Wait())
}
