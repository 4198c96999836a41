package binance

import (
	"context"
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

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestParseTick(t *testing.T) {
	tick, err := ParseTick([]byte(`{"u":400900217,"s":"BNBUSDT","b":"25.35190000","B":"31.21000000","a":"25.36520000","A":"40.66000000"}`))
	require.NoError(t, err)

	assert.Equal(t, int64(400900217), tick.UpdateID)
	assert.Equal(t, "BNBUSDT", tick.Symbol)
	assert.InDelta(t, 25.3519, tick.Bid, 1e-9)
	assert.InDelta(t, 25.3652, tick.Ask, 1e-9)
	assert.InDelta(t, (25.3519+25.3652)/2, tick.Mid(), 1e-9)
}

func TestParseTick_Invalid(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"s":"BTCUSDT","b":"abc","a":"1"}`,
		`{"s":"BTCUSDT","b":"1","a":""}`,
		`{"s":"BTCUSDT","b":"0","a":"1"}`,
		`{"s":"BTCUSDT","b":"2","a":"1"}`,
	} {
		_, err := ParseTick([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestClient_StreamURL(t *testing.T) {
	c := New(Config{Symbol: "BTCUSDT"}, nil)
	assert.Equal(t, "wss://stream.binance.com:9443/ws/btcusdt@bookTicker", c.StreamURL())

	c = New(Config{BaseURL: "ws://localhost:1234/ws/", Symbol: "EthUsdt"}, nil)
	assert.Equal(t, "ws://localhost:1234/ws/ethusdt@bookTicker", c.StreamURL())
}

func TestClient_RunReconnects(t *testing.T) {
	var conns atomic.Int32
	var path atomic.Value

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		n := conns.Add(1)
		conn.WriteMessage(websocket.TextMessage, []byte(`{"u":1,"s":"BTCUSDT","b":"100","B":"1","a":"102","A":"1"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"result":null,"id":1}`))
		if n == 1 {
			// drop the first connection to force a reconnect
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"u":2,"s":"BTCUSDT","b":"104","B":"1","a":"106","A":"1"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	c := New(Config{
		BaseURL:        "ws" + strings.TrimPrefix(server.URL, "http") + "/ws",
		Symbol:         "BTCUSDT",
		ReconnectDelay: 10 * time.Millisecond,
	}, nil)

	var reconnects atomic.Int32
	c.OnReconnect(func() { reconnects.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var mids []float64
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, func(tick Tick) {
			mu.Lock()
			defer mu.Unlock()
			mids = append(mids, tick.Mid())
			if len(mids) == 3 {
				cancel()
			}
		})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []float64{101, 101, 105}, mids)
	assert.GreaterOrEqual(t, reconnects.Load(), int32(1))
	assert.Equal(t, "/ws/btcusdt@bookTicker", path.Load())
}

func TestClient_RunStopsWhileDialFails(t *testing.T) {
	c := New(Config{BaseURL: "ws://127.0.0.1:1/ws", Symbol: "BTCUSDT", ReconnectDelay: 5 * time.Millisecond}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := c.Run(ctx, func(Tick) { t.Error("no ticks expected") })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
