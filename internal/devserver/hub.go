package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/interviewer/internal/adapters/transcript"
	"github.com/dkeye/interviewer/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

const writeWait = 5 * time.Second

type subscriber struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *subscriber) TrySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *subscriber) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// Hub pushes transcript messages to the websocket subscribers of a session.
type Hub struct {
	pingPeriod time.Duration

	mu   sync.RWMutex
	subs map[domain.ID]map[*subscriber]struct{}
}

func NewHub(pingPeriod time.Duration) *Hub {
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	return &Hub{pingPeriod: pingPeriod, subs: make(map[domain.ID]map[*subscriber]struct{})}
}

// Serve owns conn until the peer goes away or ctx ends.
func (h *Hub) Serve(ctx context.Context, sid domain.ID, conn *websocket.Conn) {
	sub := &subscriber{conn: conn, send: make(chan []byte, 32)}
	h.add(sid, sub)
	log.Info().Str("module", "devserver.hub").Str("session", sid.String()).Msg("subscriber joined")

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer cancel()
		h.readPump(sid, sub)
	}()
	h.writePump(ctx, sub)

	h.remove(sid, sub)
	sub.Close()
	log.Info().Str("module", "devserver.hub").Str("session", sid.String()).Msg("subscriber left")
}

func (h *Hub) add(sid domain.ID, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sid]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[sid] = set
	}
	set[sub] = struct{}{}
}

func (h *Hub) remove(sid domain.ID, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[sid]
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sid)
	}
}

func (h *Hub) Subscribers(sid domain.ID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sid])
}

// readPump drains client frames so control messages are processed.
func (h *Hub) readPump(sid domain.ID, sub *subscriber) {
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("module", "devserver.hub").Str("session", sid.String()).Msg("readPump read error")
			}
			return
		}
	}
}

func (h *Hub) writePump(ctx context.Context, sub *subscriber) {
	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-sub.send:
			if !ok {
				return
			}
			if err := sub.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "devserver.hub").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := sub.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// Publish sends one transcript fragment to every subscriber of sid and
// returns how many accepted it. Slow subscribers are dropped.
func (h *Hub) Publish(sid domain.ID, text string) int {
	return h.publish(sid, transcript.Message{Type: transcript.TypeSTTResult, Text: text})
}

func (h *Hub) publish(sid domain.ID, msg transcript.Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "devserver.hub").Msg("marshal")
		return 0
	}
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.subs[sid]))
	for s := range h.subs[sid] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	sent := 0
	for _, s := range subs {
		if err := s.TrySend(data); err != nil {
			log.Warn().Err(err).Str("module", "devserver.hub").Str("session", sid.String()).Msg("dropping subscriber")
			s.Close()
			continue
		}
		sent++
	}
	return sent
}

// CloseAll disconnects every subscriber.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	var subs []*subscriber
	for _, set := range h.subs {
		for s := range set {
			subs = append(subs, s)
		}
	}
	h.mu.RUnlock()
	for _, s := range subs {
		s.Close()
	}
}
