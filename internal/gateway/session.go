// Package gateway implements the C1 gateway session: a single duplex
// WebSocket connection to the remote game gateway, framed binary
// request/reply multiplexing, and server-push notification dispatch.
//
// A Session is not self-healing — reconnection policy (backoff, retry
// classification) belongs to the account runtime (internal/runtime), which
// owns the decision of when to call Start again after a disconnect.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/farmrunner/engine/internal/protocol"
)

// DialParams are the fixed query parameters and headers the gateway expects
// on every connection attempt.
type DialParams struct {
	URL      string
	Platform string
	OS       string
	Version  string
	Code     string
	OpenID   string
	Origin   string
	UserAgent string
}

func (p DialParams) dialURL() (string, error) {
	u, err := url.Parse(p.URL)
	if err != nil {
		return "", fmt.Errorf("gateway: invalid url: %w", err)
	}
	q := u.Query()
	q.Set("platform", p.Platform)
	q.Set("os", p.OS)
	q.Set("ver", p.Version)
	q.Set("code", p.Code)
	q.Set("openID", p.OpenID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

const (
	defaultCallTimeout = 10 * time.Second
	readLimitBytes     = 4 << 20
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	writeWait          = 10 * time.Second
)

// NotifyHandler is invoked for every Event frame matching a registered topic.
// Handlers run sequentially on the receive loop. A panicking handler is
// recovered and logged and the remaining handlers still run; a handler that
// blocks stalls notification delivery, so handlers must be short.
type NotifyHandler func(eventType string, body []byte)

type pendingCall struct {
	resultCh chan callResult
	timer    *time.Timer
}

type callResult struct {
	body []byte
	err  error
}

// Session is one live connection to the gateway. Exactly one sender at a
// time (writeMu) and exactly one receive loop per live socket.
type Session struct {
	logger *zap.Logger

	conn *websocket.Conn

	writeMu   sync.Mutex
	clientSeq int64
	serverSeq int64

	pendingMu sync.Mutex
	pending   map[int64]*pendingCall

	notifyMu  sync.RWMutex
	notify    map[string][]notifyEntry
	notifySeq uint64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
}

// New creates an idle Session. Call Start to dial and begin the receive
// loop.
func New(logger *zap.Logger) *Session {
	return &Session{
		logger:  logger.Named("gateway"),
		pending: make(map[int64]*pendingCall),
		notify:  make(map[string][]notifyEntry),
		done:    make(chan struct{}),
	}
}

// Start opens the WebSocket connection and begins the receive and keepalive
// loops. Returns *ErrConnect if the handshake cannot complete.
func (s *Session) Start(ctx context.Context, p DialParams) error {
	dialURL, err := p.dialURL()
	if err != nil {
		return &ErrConnect{Err: err}
	}

	header := http.Header{}
	if p.Origin != "" {
		header.Set("Origin", p.Origin)
	}
	if p.UserAgent != "" {
		header.Set("User-Agent", p.UserAgent)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, dialURL, header)
	if err != nil {
		return &ErrConnect{Err: err}
	}

	s.conn = conn
	s.ctx, s.cancel = context.WithCancel(context.Background())

	conn.SetReadLimit(readLimitBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go s.readLoop()
	go s.pingLoop()

	s.logger.Info("gateway session started", zap.String("url", p.URL))
	return nil
}

// Call sends a Request frame and blocks until the matching Reply arrives, the
// timeout expires, or the session disconnects.
func (s *Session) Call(ctx context.Context, service, method string, body []byte, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	seq, serverSeq := s.allocateSeq()

	pc := &pendingCall{resultCh: make(chan callResult, 1)}
	s.pendingMu.Lock()
	s.pending[seq] = pc
	s.pendingMu.Unlock()

	pc.timer = time.AfterFunc(timeout, func() {
		s.completePending(seq, callResult{err: ErrTimeout})
	})
	defer pc.timer.Stop()

	msg := protocol.Message{
		Meta: protocol.Meta{
			ServiceName: service,
			MethodName:  method,
			MessageType: protocol.MessageTypeRequest,
			ClientSeq:   seq,
			ServerSeq:   serverSeq,
		},
		Body: body,
	}

	if err := s.writeMessage(msg); err != nil {
		s.completePending(seq, callResult{err: err})
		return nil, err
	}

	select {
	case res := <-pc.resultCh:
		return res.body, res.err
	case <-ctx.Done():
		s.completePending(seq, callResult{err: ctx.Err()})
		return nil, ctx.Err()
	}
}

// allocateSeq increments clientSeq under the send lock and reads the latest
// observed serverSeq to echo on the outgoing frame.
func (s *Session) allocateSeq() (clientSeq, serverSeq int64) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.clientSeq++
	return s.clientSeq, atomic.LoadInt64(&s.serverSeq)
}

func (s *Session) writeMessage(msg protocol.Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.conn == nil {
		return ErrDisconnected
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("gateway: set write deadline: %w", err)
	}
	w, err := s.conn.NextWriter(websocket.BinaryMessage)
	if err != nil {
		return fmt.Errorf("gateway: next writer: %w", err)
	}
	if err := protocol.WriteMessage(w, msg); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// completePending removes and completes a pending call exactly once. Safe to
// call multiple times for the same seq (e.g. a timeout racing a disconnect);
// only the first completion is delivered.
func (s *Session) completePending(seq int64, res callResult) {
	s.pendingMu.Lock()
	pc, ok := s.pending[seq]
	if ok {
		delete(s.pending, seq)
	}
	s.pendingMu.Unlock()

	if !ok {
		return
	}
	select {
	case pc.resultCh <- res:
	default:
	}
}

// NotifyToken identifies one registration returned by OnNotify, so a caller
// can later remove exactly that handler without disturbing others
// registered for the same eventType.
type NotifyToken struct {
	eventType string
	id        uint64
}

type notifyEntry struct {
	id      uint64
	handler NotifyHandler
}

// OnNotify registers handler for eventType and returns a token that
// OffNotify can later use to unregister it. "*" receives every event.
func (s *Session) OnNotify(eventType string, handler NotifyHandler) NotifyToken {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.notifySeq++
	id := s.notifySeq
	s.notify[eventType] = append(s.notify[eventType], notifyEntry{id: id, handler: handler})
	return NotifyToken{eventType: eventType, id: id}
}

// OffNotify removes the handler identified by token, if still registered.
// Safe to call more than once; a second call is a no-op.
func (s *Session) OffNotify(token NotifyToken) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	entries := s.notify[token.eventType]
	for i, e := range entries {
		if e.id == token.id {
			s.notify[token.eventType] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

func (s *Session) readLoop() {
	defer s.teardown()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.logger.Warn("gateway read error", zap.Error(err))
			return
		}
		msg, err := protocol.ReadMessageFromBytes(data)
		if err != nil {
			s.logger.Warn("gateway: dropping malformed frame", zap.Error(err))
			continue
		}
		s.handleMessage(msg)
	}
}

func (s *Session) handleMessage(msg protocol.Message) {
	// serverSeq only ever advances; a stale/out-of-order frame must not
	// regress it.
	for {
		old := atomic.LoadInt64(&s.serverSeq)
		if msg.Meta.ServerSeq <= old {
			break
		}
		if atomic.CompareAndSwapInt64(&s.serverSeq, old, msg.Meta.ServerSeq) {
			break
		}
	}

	switch msg.Meta.MessageType {
	case protocol.MessageTypeReply:
		s.completePending(msg.Meta.ClientSeq, callResult{
			body: msg.Body,
			err:  protocol.AsReplyError(msg.Meta),
		})
	case protocol.MessageTypeEvent:
		s.dispatchEvent(msg.Body)
	default:
		s.logger.Warn("gateway: unknown message type", zap.Int32("messageType", int32(msg.Meta.MessageType)))
	}
}

func (s *Session) dispatchEvent(body []byte) {
	ev, err := protocol.DecodeEvent(body)
	if err != nil {
		s.logger.Warn("gateway: dropping malformed event", zap.Error(err))
		return
	}

	s.notifyMu.RLock()
	entries := append(append([]notifyEntry{}, s.notify[ev.MessageType]...), s.notify["*"]...)
	s.notifyMu.RUnlock()

	for _, e := range entries {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("gateway: notify handler panicked",
						zap.String("eventType", ev.MessageType),
						zap.Any("recover", r),
					)
				}
			}()
			e.handler(ev.MessageType, ev.Body)
		}()
	}
}

func (s *Session) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.writeMu.Unlock()
			if err != nil {
				s.logger.Warn("gateway: ping failed", zap.Error(err))
				s.teardown()
				return
			}
		}
	}
}

// Stop idempotently tears down the session, completing every pending call
// with ErrDisconnected.
func (s *Session) Stop() {
	s.teardown()
}

func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.conn != nil {
			_ = s.conn.Close()
		}
		close(s.done)

		s.pendingMu.Lock()
		pending := s.pending
		s.pending = make(map[int64]*pendingCall)
		s.pendingMu.Unlock()

		for _, pc := range pending {
			select {
			case pc.resultCh <- callResult{err: ErrDisconnected}:
			default:
			}
		}
	})
}

// Done returns a channel closed once the session has fully torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
