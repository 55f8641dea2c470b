package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Listener table ---

func TestListeners_DispatchByName(t *testing.T) {
	var l Listeners
	var readyCalls, messageCalls int

	l.Add(func(ctx context.Context, ev Event) error { readyCalls++; return nil }, "ready")
	l.Add(func(ctx context.Context, ev Event) error { messageCalls++; return nil }, "message")
	l.Add(func(ctx context.Context, ev Event) error { messageCalls++; return nil }, "message")

	require.NoError(t, l.Dispatch(context.Background(), Event{Name: "message"}))
	assert.Zero(t, readyCalls)
	assert.Equal(t, 2, messageCalls)
}

func TestListeners_ErrorsJoined(t *testing.T) {
	var l Listeners
	boom := errors.New("boom")
	var secondRan bool

	l.Add(func(ctx context.Context, ev Event) error { return boom }, "ev")
	l.Add(func(ctx context.Context, ev Event) error { secondRan = true; return nil }, "ev")

	err := l.Dispatch(context.Background(), Event{Name: "ev"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, secondRan)
}

// --- Message extraction ---

func TestMessageFromEvent(t *testing.T) {
	ev := Event{Name: "message", Data: map[string]any{
		"id":         "m1",
		"channel_id": "c1",
		"author_id":  "u1",
		"author_bot": true,
		"content":    "hello",
	}}
	msg, ok := MessageFromEvent(ev)
	require.True(t, ok)
	assert.Equal(t, Message{ID: "m1", ChannelID: "c1", AuthorID: "u1", AuthorBot: true, Content: "hello"}, msg)

	_, ok = MessageFromEvent(Event{Name: "message"})
	assert.False(t, ok, "nil data is not a message")

	_, ok = MessageFromEvent(Event{Name: "message", Data: map[string]any{"other": 1}})
	assert.False(t, ok)
}

// --- Websocket client ---

// wsTestServer accepts one connection, checks the identify frame, emits the
// given events and then waits for frames written by the client.
func wsTestServer(t *testing.T, emit []Event, received chan<- Event) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()

		var identify Event
		if err := wsjson.Read(ctx, conn, &identify); err != nil {
			return
		}
		if identify.Name != "identify" || identify.Data["token"] != "sekrit" {
			conn.Close(websocket.StatusPolicyViolation, "bad identify")
			return
		}

		for _, ev := range emit {
			if err := wsjson.Write(ctx, conn, ev); err != nil {
				return
			}
		}
		for {
			var ev Event
			if err := wsjson.Read(ctx, conn, &ev); err != nil {
				return
			}
			received <- ev
		}
	}))
}

func TestClient_RunDispatchesAndSends(t *testing.T) {
	received := make(chan Event, 4)
	srv := wsTestServer(t, []Event{
		{Name: "ready", Data: map[string]any{"user": "bot"}},
		{Name: "message", Data: map[string]any{"channel_id": "c1", "content": "hi"}},
	}, received)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := NewClient(url, "sekrit", nil)

	dispatched := make(chan Event, 4)
	c.AddListener(func(ctx context.Context, ev Event) error {
		dispatched <- ev
		return nil
	}, "message")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx)
		close(done)
	}()

	select {
	case ev := <-dispatched:
		assert.Equal(t, "hi", ev.Data["content"])
	case <-time.After(2 * time.Second):
		t.Fatal("message event never dispatched")
	}

	require.NoError(t, c.Send(ctx, "c2", "reply"))
	select {
	case ev := <-received:
		assert.Equal(t, "message_create", ev.Name)
		assert.Equal(t, "c2", ev.Data["channel_id"])
		assert.Equal(t, "reply", ev.Data["content"])
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the send")
	}

	require.NoError(t, c.UpdatePresence(ctx, "online"))
	select {
	case ev := <-received:
		assert.Equal(t, "presence_update", ev.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the presence update")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not stop on cancel")
	}
	_ = c.Close() // the cancel may already have torn the connection down
}

func TestClient_SendBeforeConnect(t *testing.T) {
	c := NewClient("ws://localhost:1", "t", nil)
	err := c.Send(context.Background(), "c", "x")
	require.Error(t, err)
	assert.NoError(t, c.Close(), "close without a connection is fine")
}
