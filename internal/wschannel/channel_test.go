package wschannel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  5 * time.Millisecond,
		MaxDelay:   20 * time.Millisecond,
	}
}

func TestBackOff_DelaySequence(t *testing.T) {
	cfg := Config{
		MaxRetries: 10,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
	bo := newBackOff(cfg)

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	prev := time.Duration(0)
	for i, w := range want {
		got := bo.NextBackOff()
		assert.Equal(t, w, got, "attempt %d", i)
		assert.GreaterOrEqual(t, got, prev, "delays must be non-decreasing")
		prev = got
	}

	bo.Reset()
	assert.Equal(t, 1*time.Second, bo.NextBackOff(), "reset restarts the sequence")
}

// wsEchoServer upgrades every request and streams the given messages, then
// blocks until the client goes away.
func wsEchoServer(t *testing.T, messages [][]byte) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, msg := range messages {
			if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestChannel_ForwardsMessagesVerbatim(t *testing.T) {
	srv := wsEchoServer(t, [][]byte{[]byte("one"), []byte("two")})
	defer srv.Close()

	var mu sync.Mutex
	var got [][]byte
	ch := New(testConfig(), Options{
		Name: "video",
		OnMessage: func(_ int, data []byte) {
			mu.Lock()
			got = append(got, data)
			mu.Unlock()
		},
	})
	defer ch.Close()

	ch.SetURL(wsURL(srv))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []byte("one"), got[0])
	assert.Equal(t, []byte("two"), got[1])
	assert.True(t, ch.Connected())
	assert.Zero(t, ch.Attempt())
}

func TestChannel_NormalCloseNeverReconnects(t *testing.T) {
	var dials atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream ended")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		// Let the client observe the close frame before the TCP teardown.
		_, _, _ = conn.ReadMessage()
		conn.Close()
	}))
	defer srv.Close()

	var closed atomic.Int32
	ch := New(testConfig(), Options{
		Name:    "video",
		OnClose: func() { closed.Add(1) },
	})
	defer ch.Close()

	ch.SetURL(wsURL(srv))

	require.Eventually(t, func() bool { return closed.Load() == 1 }, time.Second, 5*time.Millisecond)

	// Give any (incorrect) reconnect a chance to happen.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), dials.Load())
	assert.False(t, ch.Connected())
	assert.Equal(t, StatusClosed, ch.Status())
}

func TestChannel_ReconnectsAfterAbnormalClose(t *testing.T) {
	var dials atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := dials.Add(1)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if n == 1 {
			// Drop the first connection without a close frame.
			conn.Close()
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte("after-reconnect"))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	var opens atomic.Int32
	var reconnects atomic.Int32
	got := make(chan []byte, 1)
	ch := New(testConfig(), Options{
		Name:        "video",
		OnOpen:      func() { opens.Add(1) },
		OnReconnect: func(uint32, time.Duration) { reconnects.Add(1) },
		OnMessage:   func(_ int, data []byte) { got <- data },
	})
	defer ch.Close()

	ch.SetURL(wsURL(srv))

	select {
	case data := <-got:
		assert.Equal(t, []byte("after-reconnect"), data)
	case <-time.After(2 * time.Second):
		t.Fatal("no message after reconnect")
	}
	assert.GreaterOrEqual(t, opens.Load(), int32(2))
	assert.GreaterOrEqual(t, reconnects.Load(), int32(1))
	assert.True(t, ch.Connected())
	assert.Zero(t, ch.Attempt(), "attempt resets on successful open")
}

func TestChannel_GivesUpAfterMaxRetries(t *testing.T) {
	var dials atomic.Int32
	dial := func(context.Context, string) (Conn, error) {
		dials.Add(1)
		return nil, errors.New("connection refused")
	}

	var closed atomic.Int32
	ch := New(testConfig(), Options{
		Name:    "state",
		Dial:    dial,
		OnClose: func() { closed.Add(1) },
	})
	defer ch.Close()

	ch.SetURL("ws://unreachable.invalid/ws")

	require.Eventually(t, func() bool { return closed.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	// Initial dial + MaxRetries reconnect dials, then nothing more.
	assert.Equal(t, int32(testConfig().MaxRetries+1), dials.Load())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(testConfig().MaxRetries+1), dials.Load())
	assert.False(t, ch.Connected())
}

// blockingConn hands out one message when released and then blocks forever.
type blockingConn struct {
	release chan struct{}
	done    chan struct{}
	closed  atomic.Bool
}

func newBlockingConn() *blockingConn {
	return &blockingConn{release: make(chan struct{}), done: make(chan struct{})}
}

func (c *blockingConn) ReadMessage() (int, []byte, error) {
	select {
	case <-c.release:
		return websocket.BinaryMessage, []byte("late"), nil
	case <-c.done:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *blockingConn) WriteMessage(int, []byte) error { return nil }

func (c *blockingConn) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		close(c.done)
	}
	return nil
}

func TestChannel_TeardownDetachesHandlerBeforeClose(t *testing.T) {
	conn := newBlockingConn()
	dial := func(context.Context, string) (Conn, error) { return conn, nil }

	var delivered atomic.Int32
	opened := make(chan struct{}, 1)
	ch := New(testConfig(), Options{
		Name:      "video",
		Dial:      dial,
		OnOpen:    func() { opened <- struct{}{} },
		OnMessage: func(int, []byte) { delivered.Add(1) },
	})

	ch.SetURL("ws://example.invalid/ws")
	select {
	case <-opened:
	case <-time.After(time.Second):
		t.Fatal("channel never opened")
	}

	// Tear down, then let the stale socket produce a message.
	ch.SetURL("")
	close(conn.release)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, delivered.Load(), "message on detached socket must not reach the handler")
	assert.False(t, ch.Connected())
}

func TestChannel_SetURLCancelsPendingReconnect(t *testing.T) {
	var dials atomic.Int32
	dial := func(context.Context, string) (Conn, error) {
		dials.Add(1)
		return nil, errors.New("refused")
	}

	cfg := Config{MaxRetries: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	ch := New(cfg, Options{Name: "video", Dial: dial})

	ch.SetURL("ws://a.invalid/ws")
	require.Eventually(t, func() bool { return dials.Load() == 1 }, time.Second, time.Millisecond)

	// A reconnect is now pending; tearing down must cancel it.
	ch.SetURL("")
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, int32(1), dials.Load())
}

func TestChannel_SendRequiresOpenConnection(t *testing.T) {
	ch := New(testConfig(), Options{Name: "state"})
	err := ch.Send([]byte("x"))
	assert.ErrorIs(t, err, ErrNotConnected)
}
