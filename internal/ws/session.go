package ws

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/vietTNT/DoveRx-backend/internal/auth"
	"github.com/vietTNT/DoveRx-backend/internal/bus"
	"github.com/vietTNT/DoveRx-backend/internal/observability"
	"github.com/vietTNT/DoveRx-backend/internal/presence"
	"github.com/vietTNT/DoveRx-backend/internal/proto"
)

// Connection kinds. Chat connections join only the user's personal group;
// feed connections additionally join the shared feed group.
const (
	KindChat = "chat"
	KindFeed = "feed"
)

// Session states. The only valid transitions are
// Connecting → Authenticating → Active → Closing → Closed, with
// Authenticating → Closed on a failed setup.
const (
	StateConnecting int32 = iota
	StateAuthenticating
	StateActive
	StateClosing
	StateClosed
)

// Session is the per-connection state machine bound to one authenticated user.
// It owns the connection's group memberships, its presence contribution and
// its outbound queues; the read loop processes inbound frames strictly
// sequentially.
type Session struct {
	ID       string
	Identity auth.Identity
	Kind     string

	conn       *websocket.Conn
	sub        *bus.Subscription
	direct     *bus.Subscription
	bus        bus.Bus
	presence   *presence.Tracker
	dispatcher *Dispatcher
	keepalive  time.Duration
	log        zerolog.Logger

	state     atomic.Int32
	mu        sync.Mutex
	groups    map[string]struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession builds a session in the Connecting state.
func NewSession(
	id string,
	identity auth.Identity,
	kind string,
	conn *websocket.Conn,
	b bus.Bus,
	tracker *presence.Tracker,
	dispatcher *Dispatcher,
	keepalive time.Duration,
	sendBuffer int,
	log *zerolog.Logger,
) *Session {
	s := &Session{
		ID:         id,
		Identity:   identity,
		Kind:       kind,
		conn:       conn,
		sub:        bus.NewSubscription(id, sendBuffer),
		direct:     bus.NewSubscription(id+":direct", sendBuffer),
		bus:        b,
		presence:   tracker,
		dispatcher: dispatcher,
		keepalive:  keepalive,
		groups:     make(map[string]struct{}),
		done:       make(chan struct{}),
	}
	s.log = log.With().
		Str("conn_id", id).
		Int("user_id", identity.User.ID).
		Str("kind", kind).
		Logger()
	s.state.Store(StateConnecting)
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() int32 {
	return s.state.Load()
}

// Activate admits the session: it subscribes the connection to its personal
// group (and the shared feed group for feed connections), marks the user
// online and confirms admission to this connection only.
func (s *Session) Activate(ctx context.Context) error {
	if !s.state.CompareAndSwap(StateConnecting, StateAuthenticating) {
		return ErrInvalidState
	}

	s.join(bus.UserGroup(s.Identity.User.ID))
	if s.Kind == KindFeed {
		s.join(bus.PublicFeedGroup)
	}
	s.presence.Connect(ctx, s.Identity.User.ID)

	s.state.Store(StateActive)

	s.Send(proto.ConnectionEstablished{
		Type:    proto.TypeConnectionEstablished,
		Message: "Connected as " + s.Identity.User.Username,
		UserID:  s.Identity.User.ID,
	})
	s.log.Info().Msg("websocket session active")
	return nil
}

// Run pumps the connection until it closes: one writer goroutine, one
// keepalive goroutine and the sequential read loop on the calling goroutine.
func (s *Session) Run(ctx context.Context) {
	go s.writeLoop()
	go s.keepaliveLoop()

	s.readLoop(ctx)
	s.Close(context.WithoutCancel(ctx))
}

// Close tears the session down: group memberships and the presence
// contribution are both released even if either side fails, and the keepalive
// timer is stopped. Safe to call more than once.
func (s *Session) Close(ctx context.Context) {
	s.closeOnce.Do(func() {
		s.state.Store(StateClosing)
		close(s.done)

		s.mu.Lock()
		groups := make([]string, 0, len(s.groups))
		for group := range s.groups {
			groups = append(groups, group)
		}
		s.groups = make(map[string]struct{})
		s.mu.Unlock()

		for _, group := range groups {
			s.bus.Unsubscribe(group, s.sub)
		}
		s.presence.Disconnect(ctx, s.Identity.User.ID)

		s.state.Store(StateClosed)
		if s.conn != nil {
			_ = s.conn.Close()
		}
		s.log.Info().Msg("websocket session closed")
	})
}

// Send queues a frame for this connection only.
func (s *Session) Send(frame any) {
	payload, err := proto.Encode(frame)
	if err != nil {
		s.log.Error().Err(err).Msg("encode direct frame")
		return
	}
	if s.direct.Offer(payload) {
		s.log.Debug().Msg("direct queue full, dropped oldest frame")
	}
}

// SendError reports a failure to the originating connection only.
func (s *Session) SendError(message string) {
	s.Send(proto.NewErrorFrame(message))
}

// Groups returns a snapshot of the joined group names.
func (s *Session) Groups() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	groups := make([]string, 0, len(s.groups))
	for group := range s.groups {
		groups = append(groups, group)
	}
	return groups
}

func (s *Session) join(group string) {
	s.mu.Lock()
	s.groups[group] = struct{}{}
	s.mu.Unlock()
	s.bus.Subscribe(group, s.sub)
}

func (s *Session) readLoop(ctx context.Context) {
	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Msg("websocket read ended")
			}
			return
		}
		// Frames outside the Active state are ignored outright.
		if s.State() != StateActive {
			continue
		}
		s.dispatcher.Dispatch(ctx, s, frame)
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case payload := <-s.direct.C:
			if !s.write(payload) {
				return
			}
		case payload := <-s.sub.C:
			if !s.deliver(payload) {
				return
			}
		case <-s.done:
			return
		}
	}
}

// deliver writes a group-delivered frame, skipping the sender's own typing
// indicators echoed back through the shared feed group.
func (s *Session) deliver(payload []byte) bool {
	var peek struct {
		Type   string `json:"type"`
		UserID int    `json:"user_id"`
	}
	if err := json.Unmarshal(payload, &peek); err == nil {
		if peek.Type == proto.TypeUserTyping && peek.UserID == s.Identity.User.ID {
			return true
		}
	}
	return s.write(payload)
}

func (s *Session) write(payload []byte) bool {
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		s.log.Debug().Err(err).Msg("websocket write failed")
		observability.IncWSEvent(s.Kind, "write_error")
		return false
	}
	return true
}

// keepaliveLoop sends a protocol-level ping on a fixed interval and stops
// cleanly when the session closes.
func (s *Session) keepaliveLoop() {
	if s.keepalive <= 0 {
		return
	}
	ticker := time.NewTicker(s.keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ts, _ := json.Marshal(time.Now().UnixMilli())
			s.Send(proto.Pong{Type: proto.TypePing, Timestamp: ts})
		case <-s.done:
			return
		}
	}
}
