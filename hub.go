package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type statusMsg struct {
	Type  string `json:"type"` // "status"
	Level string `json:"level"`
	Text  string `json:"text"`
}

type viewMsg struct {
	Type string `json:"type"` // "view"
	View *View  `json:"view"`
}

type controlMsg struct {
	Type   string          `json:"type"`   // "control"
	Action string          `json:"action"` // "set_params"
	Value  json.RawMessage `json:"value,omitempty"`
}

const (
	wsPongWait   = 90 * time.Second
	wsPingPeriod = 45 * time.Second
	wsWriteWait  = 5 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin:       func(*http.Request) bool { return true },
	EnableCompression: true,
}

type wsClient struct {
	conn *websocket.Conn
	out  chan any
	done chan struct{}
}

// Hub fans views out to dashboard websocket clients. A slow client loses
// messages instead of stalling the screener.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}

	params  *Params
	latest  func() *View
	refresh func()
	log     *Logger
}

func NewHub(params *Params, latest func() *View, refresh func(), log *Logger) *Hub {
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		params:  params,
		latest:  latest,
		refresh: refresh,
		log:     log,
	}
}

// PublishView implements ViewSink.
func (h *Hub) PublishView(_ context.Context, v *View) error {
	h.broadcast(viewMsg{Type: "view", View: v})
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(v any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.out <- v:
		default:
		}
	}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	cl := &wsClient{conn: conn, out: make(chan any, 64), done: make(chan struct{})}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(cl)

	h.send(cl, statusMsg{Type: "status", Level: "info", Text: "Connected"})
	if h.latest != nil {
		if v := h.latest(); v != nil {
			h.send(cl, viewMsg{Type: "view", View: v})
		}
	}

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if mt != websocket.TextMessage {
			continue
		}
		var ctrl controlMsg
		if err := json.Unmarshal(data, &ctrl); err != nil || ctrl.Type != "control" {
			h.send(cl, statusMsg{Type: "status", Level: "error", Text: "invalid control message"})
			continue
		}
		h.send(cl, h.handleControl(ctrl))
	}

	close(cl.done)
	h.mu.Lock()
	delete(h.clients, cl)
	h.mu.Unlock()
}

func (h *Hub) handleControl(ctrl controlMsg) statusMsg {
	switch strings.ToLower(ctrl.Action) {
	case "set_params":
		next := h.params.Get()
		if err := json.Unmarshal(ctrl.Value, &next); err != nil {
			return statusMsg{Type: "status", Level: "error", Text: "bad params"}
		}
		stored, err := h.params.Set(next)
		if err != nil {
			return statusMsg{Type: "status", Level: "error", Text: err.Error()}
		}
		h.log.Infof("params updated via ws rsi_max=%.1f min_volume=%d", stored.RSIMax, stored.MinVolume)
		if h.refresh != nil {
			h.refresh()
		}
		return statusMsg{Type: "status", Level: "success", Text: "Params updated"}
	case "refresh":
		if h.refresh != nil {
			h.refresh()
		}
		return statusMsg{Type: "status", Level: "info", Text: "Refreshed"}
	default:
		return statusMsg{Type: "status", Level: "error", Text: "unknown action: " + ctrl.Action}
	}
}

func (h *Hub) send(cl *wsClient, v any) {
	select {
	case cl.out <- v:
	default:
	}
}

func (h *Hub) writeLoop(cl *wsClient) {
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case v := <-cl.out:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := cl.conn.WriteJSON(v); err != nil {
				return
			}
		case <-ping.C:
			_ = cl.conn.WriteMessage(websocket.PingMessage, nil)
		case <-cl.done:
			return
		}
	}
}
