// Package transcript is the client side of the live transcription websocket.
package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/interviewer/internal/core"
	"github.com/dkeye/interviewer/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// TypeSTTResult is the only inbound message type acted upon.
const TypeSTTResult = "stt_result"

var ErrChannelClosed = errors.New("transcript channel closed")

// Message is the inbound wire envelope.
type Message struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type Config struct {
	URL              string
	ReadLimit        int64
	HandshakeTimeout time.Duration
}

type Channel struct {
	cfg    Config
	dialer *websocket.Dialer

	mu         sync.Mutex
	onFragment core.FragmentHandler
	onError    func(error)
	conn       *websocket.Conn
	sid        domain.ID
	opened     bool
	done       chan struct{}

	// deliver serialises handler calls against Close.
	deliver sync.Mutex
	closed  atomic.Bool
}

var _ core.TranscriptChannel = (*Channel)(nil)

func NewChannel(cfg Config) *Channel {
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 32 << 10
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 5 * time.Second
	}
	return &Channel{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
	}
}

func (c *Channel) OnFragment(h core.FragmentHandler) {
	c.mu.Lock()
	c.onFragment = h
	c.mu.Unlock()
}

func (c *Channel) OnError(fn func(error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

func endpoint(base string, sid domain.ID) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + "/" + url.PathEscape(sid.String()))
	if err != nil {
		return "", err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("unsupported transcript scheme %q", u.Scheme)
	}
	return u.String(), nil
}

// Open dials <url>/<sessionID> and starts delivering fragments. Failures come
// back as *domain.TranscriptChannelError.
func (c *Channel) Open(ctx context.Context, sessionID domain.ID) error {
	c.mu.Lock()
	if c.opened {
		c.mu.Unlock()
		return &domain.TranscriptChannelError{SessionID: sessionID, Err: errors.New("already opened")}
	}
	c.opened = true
	c.sid = sessionID
	c.mu.Unlock()
	if c.closed.Load() {
		return &domain.TranscriptChannelError{SessionID: sessionID, Err: ErrChannelClosed}
	}

	u, err := endpoint(c.cfg.URL, sessionID)
	if err != nil {
		return &domain.TranscriptChannelError{SessionID: sessionID, Err: err}
	}
	conn, _, err := c.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return &domain.TranscriptChannelError{SessionID: sessionID, Err: err}
	}
	conn.SetReadLimit(c.cfg.ReadLimit)

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		_ = conn.Close()
		return &domain.TranscriptChannelError{SessionID: sessionID, Err: ErrChannelClosed}
	}
	c.conn = conn
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	log.Info().Str("module", "transcript").Str("session", sessionID.String()).Str("url", u).Msg("transcript channel open")
	go c.readPump(conn, sessionID, done)
	return nil
}

func (c *Channel) readPump(conn *websocket.Conn, sid domain.ID, done chan struct{}) {
	defer func() {
		close(done)
		log.Info().Str("module", "transcript").Str("session", sid.String()).Msg("readPump closing")
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			log.Error().Err(err).Str("module", "transcript").Str("session", sid.String()).Msg("readPump read error")
			c.reportError(&domain.TranscriptChannelError{SessionID: sid, Err: err})
			return
		}
		c.handleMessage(sid, data)
	}
}

func (c *Channel) handleMessage(sid domain.ID, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn().Err(err).Str("module", "transcript").Str("session", sid.String()).Msg("bad json")
		return
	}
	switch msg.Type {
	case TypeSTTResult:
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			log.Debug().Str("module", "transcript").Str("session", sid.String()).Msg("empty stt_result")
			return
		}
		c.emit(domain.Fragment{SessionID: sid, Text: text, Received: time.Now()})
	default:
		log.Warn().Str("module", "transcript").Str("session", sid.String()).Str("type", msg.Type).Msg("unknown message")
	}
}

func (c *Channel) emit(f domain.Fragment) {
	c.mu.Lock()
	h := c.onFragment
	c.mu.Unlock()
	if h == nil {
		return
	}
	c.deliver.Lock()
	defer c.deliver.Unlock()
	if c.closed.Load() {
		return
	}
	h(f)
}

func (c *Channel) reportError(err error) {
	c.mu.Lock()
	fn := c.onError
	c.mu.Unlock()
	if fn == nil {
		return
	}
	c.deliver.Lock()
	defer c.deliver.Unlock()
	if c.closed.Load() {
		return
	}
	fn(err)
}

// Close is idempotent. Once it returns no handler is running or will run.
func (c *Channel) Close() {
	// Taking deliver waits out an in-flight handler.
	c.deliver.Lock()
	already := c.closed.Swap(true)
	c.deliver.Unlock()
	if already {
		return
	}

	c.mu.Lock()
	conn, done, sid := c.conn, c.done, c.sid
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = conn.Close()
	<-done
	log.Info().Str("module", "transcript").Str("session", sid.String()).Msg("transcript channel closed")
}
