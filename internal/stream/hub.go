package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/GoPolymarket/arena/internal/address"
	"github.com/GoPolymarket/arena/internal/model"
	"github.com/GoPolymarket/arena/internal/pkg/logger"
	"github.com/gorilla/websocket"
)

const (
	PingPeriod   = 15 * time.Second // Keep-alive interval
	writeWait    = 10 * time.Second
	readTimeout  = PingPeriod + 10*time.Second
	sendBuffer   = 64
	maxReadBytes = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Hub fans TradeRecorded notifications out to websocket observers.
type Hub struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	conn   *websocket.Conn
	agent  *address.Address // nil = all agents
	send   chan []byte
	closed chan struct{}
	once   sync.Once
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// Publish implements the trade notifier. Slow observers lose messages rather than block the ledger.
func (h *Hub) Publish(_ context.Context, ev *model.TradeRecorded) error {
	if ev == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.broadcast(ev.Agent, payload)
	return nil
}

// PublishRaw forwards an already encoded notification, e.g. one relayed from Redis.
func (h *Hub) PublishRaw(payload []byte) error {
	var ev model.TradeRecorded
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}
	h.broadcast(ev.Agent, payload)
	return nil
}

func (h *Hub) broadcast(agent address.Address, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if sub.agent != nil && *sub.agent != agent {
			continue
		}
		select {
		case sub.send <- payload:
		default:
			logger.Warn("stream subscriber lagging, dropping message", "remote", sub.conn.RemoteAddr().String())
		}
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Serve upgrades the request and streams notifications until the peer goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, agent *address.Address) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	sub := &subscriber{
		conn:   conn,
		agent:  agent,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
	h.add(sub)

	go h.writeLoop(sub)
	h.readLoop(sub)
	return nil
}

func (h *Hub) add(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[sub] = struct{}{}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
	sub.once.Do(func() {
		close(sub.closed)
		sub.conn.Close()
	})
}

// readLoop only services control frames; observers never send data.
func (h *Hub) readLoop(sub *subscriber) {
	defer h.remove(sub)

	sub.conn.SetReadLimit(maxReadBytes)
	sub.conn.SetReadDeadline(time.Now().Add(readTimeout))
	sub.conn.SetPongHandler(func(string) error {
		sub.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(PingPeriod)
	defer func() {
		ticker.Stop()
		h.remove(sub)
	}()

	for {
		select {
		case <-sub.closed:
			return
		case msg := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every observer.
func (h *Hub) Close() {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()
	for _, sub := range subs {
		h.remove(sub)
	}
}
