package ws

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/vietTNT/DoveRx-backend/internal/auth"
	"github.com/vietTNT/DoveRx-backend/internal/bus"
	"github.com/vietTNT/DoveRx-backend/internal/observability"
	"github.com/vietTNT/DoveRx-backend/internal/presence"
)

// CloseSetupFailed is sent when a connection was upgraded but could not be
// admitted.
const CloseSetupFailed = 4003

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades websocket endpoints into running sessions. Authentication
// happens before the upgrade so failures stay plain HTTP responses.
type Handler struct {
	authenticator *auth.Authenticator
	bus           bus.Bus
	presence      *presence.Tracker
	dispatcher    *Dispatcher
	keepalive     time.Duration
	sendBuffer    int
	log           zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(
	authenticator *auth.Authenticator,
	b bus.Bus,
	tracker *presence.Tracker,
	dispatcher *Dispatcher,
	keepalive time.Duration,
	sendBuffer int,
	log *zerolog.Logger,
) *Handler {
	return &Handler{
		authenticator: authenticator,
		bus:           b,
		presence:      tracker,
		dispatcher:    dispatcher,
		keepalive:     keepalive,
		sendBuffer:    sendBuffer,
		log:           log.With().Str("component", "ws.handler").Logger(),
	}
}

// HandleChat serves the direct-message websocket endpoint.
func (h *Handler) HandleChat(c *gin.Context) {
	h.handle(c, KindChat)
}

// HandleFeed serves the shared-feed websocket endpoint.
func (h *Handler) HandleFeed(c *gin.Context) {
	h.handle(c, KindFeed)
}

func (h *Handler) handle(c *gin.Context, kind string) {
	ctx, span := otel.Tracer("doverx/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := auth.TokenFromRequest(c.Request)
	identity, err := h.authenticator.Authenticate(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		} else {
			h.log.Error().Err(err).Msg("authenticate websocket connection")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to authenticate"})
		}
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      identity.User.ID,
		IP:          ipFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.log.Info().
		Str("conn_id", info.ConnID).
		Int("user_id", info.UserID).
		Str("kind", kind).
		Str("ip", info.IP).
		Str("trace_id", info.TraceID).
		Msg("websocket connected")

	session := NewSession(info.ConnID, identity, kind, conn, h.bus, h.presence, h.dispatcher, h.keepalive, h.sendBuffer, &h.log)
	if err := session.Activate(ctx); err != nil {
		h.log.Error().Err(err).Str("conn_id", info.ConnID).Msg("session activation failed")
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(CloseSetupFailed, "setup failed"),
			time.Now().Add(time.Second),
		)
		_ = conn.Close()
		return
	}

	observability.IncWSActive(kind)
	defer observability.DecWSActive(kind)
	observability.IncWSEvent(kind, "ws_connect")
	defer observability.IncWSEvent(kind, "ws_disconnect")

	session.Run(ctx)
}
