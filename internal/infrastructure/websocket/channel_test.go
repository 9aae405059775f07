package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	srv      *httptest.Server
	received chan Envelope
	conns    chan *websocket.Conn
	tokens   chan string
}

func newFakeHost(t *testing.T) *fakeHost {
	t.Helper()
	h := &fakeHost{
		received: make(chan Envelope, 16),
		conns:    make(chan *websocket.Conn, 4),
		tokens:   make(chan string, 4),
	}
	upgrader := websocket.Upgrader{}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.tokens <- r.Header.Get("x-access-token")
		h.conns <- conn
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env Envelope
			if json.Unmarshal(raw, &env) == nil {
				h.received <- env
			}
		}
	}))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *fakeHost) url() string {
	return "ws" + strings.TrimPrefix(h.srv.URL, "http")
}

func TestChannelEmitAndReceive(t *testing.T) {
	host := newFakeHost(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := NewChannel(host.url(), func() http.Header {
		h := http.Header{}
		h.Set("x-access-token", "T1")
		return h
	}, 10*time.Millisecond)

	connected := make(chan struct{}, 1)
	ch.OnConnect(func(context.Context) { connected <- struct{}{} })

	assert.ErrorIs(t, ch.Emit(ctx, EventChatJoin, ChatJoinData{UserID: "U1"}), ErrNotConnected)

	go ch.Run(ctx)

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("channel never connected")
	}
	assert.True(t, ch.Connected())
	assert.Equal(t, "T1", <-host.tokens)

	require.NoError(t, ch.Emit(ctx, EventChatJoin, ChatJoinData{UserID: "U1"}))
	select {
	case env := <-host.received:
		assert.Equal(t, EventChatJoin, env.Event)
		var data ChatJoinData
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, "U1", data.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("host never received chat_join")
	}

	conn := <-host.conns
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	out, err := NewEnvelope(EventNewMessage, InboundMessageData{FromUserID: "U2", ToUserID: "U1", Message: "hi"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(out))

	select {
	case env := <-ch.Events():
		assert.Equal(t, EventNewMessage, env.Event, "malformed frames are skipped")
	case <-time.After(2 * time.Second):
		t.Fatal("no inbound event")
	}

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch.Events():
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond, "events closes when Run returns")
}

func TestChannelRedialsAfterDrop(t *testing.T) {
	host := newFakeHost(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := NewChannel(host.url(), nil, 10*time.Millisecond)
	connects := make(chan struct{}, 4)
	ch.OnConnect(func(context.Context) { connects <- struct{}{} })
	go ch.Run(ctx)

	<-connects
	first := <-host.conns
	first.Close()

	select {
	case <-connects:
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not redial")
	}
	assert.Eventually(t, ch.Connected, time.Second, 10*time.Millisecond)
}
