package main

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

type WSSourceConfig struct {
	URL        string
	Symbols    []string // sent as a subscribe request after connect when set
	RetryDelay time.Duration
	Log        *Logger
}

type subscribeRequest struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}

// WSSource reads JSON update messages from a websocket feed. Each text frame is
// one message for the Ingestor. The connection is re-dialed after a fixed
// delay whenever it drops.
type WSSource struct {
	cfg     WSSourceConfig
	ingest  *Ingestor
	metrics *Metrics
	dialer  *websocket.Dialer
}

func NewWSSource(cfg WSSourceConfig, in *Ingestor, m *Metrics) *WSSource {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	return &WSSource{
		cfg:     cfg,
		ingest:  in,
		metrics: m,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

func (s *WSSource) Run(ctx context.Context) {
	first := true
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !first && !sleepCtx(ctx, s.cfg.RetryDelay) {
			return
		}
		first = false

		conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, nil)
		if err != nil {
			s.metrics.ReconnectAttemptFailed()
			s.cfg.Log.Errorf("feed dial %s failed: %v", s.cfg.URL, err)
			continue
		}
		s.metrics.ReconnectSucceeded()
		s.cfg.Log.Infof("feed connected %s", s.cfg.URL)

		if len(s.cfg.Symbols) > 0 {
			if err := conn.WriteJSON(subscribeRequest{Action: "subscribe", Symbols: s.cfg.Symbols}); err != nil {
				s.cfg.Log.Errorf("feed subscribe failed: %v", err)
				conn.Close()
				continue
			}
		}

		s.readLoop(ctx, conn)
		conn.Close()
	}
}

func (s *WSSource) readLoop(ctx context.Context, conn *websocket.Conn) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
		}
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.cfg.Log.Warnf("feed read error: %v", err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		s.ingest.HandleMessage(data)
	}
}
