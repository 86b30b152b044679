package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/perpscope/perpscope/internal/logger"
)

// StreamHandler receives decoded public-stream messages. Handlers must not
// block; heavy work belongs on the caller's side.
type StreamHandler func(topic string, data json.RawMessage)

// Stream is a client for the Bybit v5 public websocket, used to keep the
// connection warm between REST polls and surface push updates.
type Stream struct {
	url          string
	pingInterval time.Duration
	handler      StreamHandler

	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewStream creates a public-stream client. The handler may be nil.
func NewStream(url string, pingInterval time.Duration, handler StreamHandler) *Stream {
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	return &Stream{
		url:          url,
		pingInterval: pingInterval,
		handler:      handler,
	}
}

// Connect dials the websocket endpoint.
func (s *Stream) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", s.url, err)
	}
	s.conn = conn
	logger.Info("Connected to %s", s.url)
	return nil
}

// Subscribe sends a subscription request for ticker topics of the given
// symbols.
func (s *Stream) Subscribe(symbols []string) error {
	if s.conn == nil {
		return fmt.Errorf("stream not connected")
	}
	args := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		args = append(args, "tickers."+sym)
	}
	msg := map[string]any{
		"op":   "subscribe",
		"args": args,
	}
	if err := s.writeJSON(msg); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	logger.Debug("Subscribed to %d ticker topics", len(args))
	return nil
}

// Run reads stream messages and keeps the connection alive with periodic
// pings until ctx is cancelled. It returns immediately; both loops run in
// their own goroutines.
func (s *Stream) Run(ctx context.Context) {
	go s.pingLoop(ctx)
	go s.readLoop(ctx)
}

func (s *Stream) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.writeJSON(map[string]any{"op": "ping"}); err != nil {
				logger.Warn("Websocket ping failed: %v", err)
				return
			}
		}
	}
}

func (s *Stream) readLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("Websocket read failed: %v", err)
			}
			return
		}

		var msg struct {
			Topic string          `json:"topic"`
			Op    string          `json:"op"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Debug("Skipping undecodable stream message: %v", err)
			continue
		}
		if msg.Topic == "" {
			continue // pong / subscription ack
		}
		if s.handler != nil {
			s.handler(msg.Topic, msg.Data)
		}
	}
}

// Close tears down the connection.
func (s *Stream) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *Stream) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}
