package feed

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/asset-market/internal/model"
)

// filter selects the events a subscriber receives. Empty fields match all.
type filter struct {
	collection string
	types      map[model.EventType]bool
}

// parseFilter reads ?collection= and any number of ?type= values, each of
// which may be a comma-separated list.
func parseFilter(q url.Values) filter {
	f := filter{collection: q.Get("collection")}
	for _, v := range q["type"] {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				if f.types == nil {
					f.types = make(map[model.EventType]bool)
				}
				f.types[model.EventType(t)] = true
			}
		}
	}
	return f
}

func (f filter) match(ev model.Event) bool {
	if f.collection != "" && f.collection != ev.Collection {
		return false
	}
	if len(f.types) > 0 && !f.types[ev.Type] {
		return false
	}
	return true
}

type subscriber struct {
	conn   *websocket.Conn
	filter filter
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// Hub fans committed events out to websocket subscribers.
type Hub struct {
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewHub creates a hub with no subscribers.
func NewHub(cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	return &Hub{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		subs: make(map[*subscriber]struct{}),
	}
}

// Publish offers ev to every matching subscriber without blocking.
func (h *Hub) Publish(ev model.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || len(h.subs) == 0 {
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode event", "seq", ev.Seq, "error", err)
		return
	}

	for s := range h.subs {
		if !s.filter.match(ev) {
			continue
		}
		select {
		case s.send <- data:
		default:
			h.logger.Warn("subscriber too slow, disconnecting", "remote", s.conn.RemoteAddr().String())
			delete(h.subs, s)
			s.stop()
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// ServeHTTP upgrades the request and streams events until either side closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, ErrHubClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	s := &subscriber{
		conn:   conn,
		filter: parseFilter(r.URL.Query()),
		send:   make(chan []byte, h.cfg.SendBuffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.subs[s] = struct{}{}
	h.wg.Add(1)
	h.mu.Unlock()

	h.logger.Debug("feed subscriber connected",
		"remote", conn.RemoteAddr().String(),
		"collection", s.filter.collection,
		"types", len(s.filter.types),
	)

	go h.readLoop(s)
	h.writeLoop(s)
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		s.stop()
	}
	h.mu.Unlock()

	h.wg.Wait()
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
	s.stop()
}

// readLoop discards client frames; it exists to process pongs and notice
// the client going away.
func (h *Hub) readLoop(s *subscriber) {
	s.conn.SetReadDeadline(time.Now().Add(2 * h.cfg.PingInterval))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(2 * h.cfg.PingInterval))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			h.remove(s)
			return
		}
	}
}

func (h *Hub) writeLoop(s *subscriber) {
	defer h.wg.Done()
	defer s.conn.Close()

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			s.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			return
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("feed write failed", "error", err)
				h.remove(s)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(h.cfg.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				h.remove(s)
				return
			}
		}
	}
}
