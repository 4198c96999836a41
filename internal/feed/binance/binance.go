// Package binance streams best bid/ask quotes from the Binance bookTicker
// websocket.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DefaultBaseURL is the public Binance stream endpoint.
const DefaultBaseURL = "wss://stream.binance.com:9443/ws"

// Config configures the stream client.
type Config struct {
	BaseURL string
	Symbol  string
	// ReconnectDelay is the initial delay before a reconnect attempt; it
	// doubles on consecutive failures up to MaxReconnectDelay.
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	ReadTimeout       time.Duration
}

// DefaultConfig returns the settings used for the live session feed.
func DefaultConfig(symbol string) Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		Symbol:            symbol,
		ReconnectDelay:    2 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
	}
}

// Tick is one top-of-book update.
type Tick struct {
	UpdateID int64
	Symbol   string
	Bid      float64
	Ask      float64
}

// Mid is the midpoint of bid and ask.
func (t Tick) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

type bookTicker struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"s"`
	Bid      string `json:"b"`
	BidQty   string `json:"B"`
	Ask      string `json:"a"`
	AskQty   string `json:"A"`
}

// ParseTick decodes a bookTicker message.
func ParseTick(raw []byte) (Tick, error) {
	var msg bookTicker
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Tick{}, fmt.Errorf("decode bookTicker: %w", err)
	}
	bid, err := strconv.ParseFloat(msg.Bid, 64)
	if err != nil {
		return Tick{}, fmt.Errorf("bid %q: %w", msg.Bid, err)
	}
	ask, err := strconv.ParseFloat(msg.Ask, 64)
	if err != nil {
		return Tick{}, fmt.Errorf("ask %q: %w", msg.Ask, err)
	}
	if bid <= 0 || ask <= 0 || ask < bid {
		return Tick{}, fmt.Errorf("invalid quote bid=%v ask=%v", bid, ask)
	}
	return Tick{UpdateID: msg.UpdateID, Symbol: msg.Symbol, Bid: bid, Ask: ask}, nil
}

// Client keeps a bookTicker stream open, reconnecting after failures.
type Client struct {
	cfg         Config
	logger      *zap.Logger
	dialer      websocket.Dialer
	onReconnect func()
}

// New creates a client. Zero durations take DefaultConfig values.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig(cfg.Symbol)
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = max(def.MaxReconnectDelay, cfg.ReconnectDelay)
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	return &Client{
		cfg:    cfg,
		logger: logger.With(zap.String("symbol", cfg.Symbol)),
		dialer: websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// OnReconnect registers fn to be called before every reconnect attempt.
func (c *Client) OnReconnect(fn func()) {
	c.onReconnect = fn
}

// StreamURL is the websocket URL for the configured symbol.
func (c *Client) StreamURL() string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.ToLower(c.cfg.Symbol) + "@bookTicker"
}

// Run streams ticks to handle until ctx is done. Connection and read
// failures are logged and retried; Run only returns ctx's error.
func (c *Client) Run(ctx context.Context, handle func(Tick)) error {
	delay := c.cfg.ReconnectDelay
	for {
		received, err := c.stream(ctx, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if received {
			delay = c.cfg.ReconnectDelay
		}
		c.logger.Warn("bookTicker stream interrupted, reconnecting",
			zap.Error(err),
			zap.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if c.onReconnect != nil {
			c.onReconnect()
		}
		delay = min(delay*2, c.cfg.MaxReconnectDelay)
	}
}

// stream holds one connection open. It reports whether any tick was
// delivered so that backoff resets after a healthy session.
func (c *Client) stream(ctx context.Context, handle func(Tick)) (bool, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.StreamURL(), nil)
	if err != nil {
		return false, fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c.logger.Info("bookTicker stream connected", zap.String("url", c.StreamURL()))

	received := false
	for {
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return received, err
		}
		tick, err := ParseTick(raw)
		if err != nil {
			c.logger.Debug("skipping bookTicker message", zap.Error(err))
			continue
		}
		received = true
		handle(tick)
	}
}
