package ws

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Baltyara/boltaiznakomsya-sub000/internal/services/auth"
	"github.com/Baltyara/boltaiznakomsya-sub000/internal/services/presence"
	httperrors "github.com/Baltyara/boltaiznakomsya-sub000/internal/transport/http/errors"
)

// Presence is the registry side the handler drives on connect and disconnect.
// Unregister reports whether it removed this connection's record; a stale
// connection id means the user reconnected on a newer one.
type Presence interface {
	Register(ctx context.Context, userID int64, connID string, sender presence.Sender)
	Unregister(ctx context.Context, connID string) (int64, bool)
}

// TokenParser validates the access token from the connect request.
type TokenParser interface {
	ParseAccessToken(raw string) (auth.AccessClaims, error)
}

type Handler struct {
	upgrader   websocket.Upgrader
	presence   Presence
	queue      Queue
	dispatcher *Dispatcher
	tokens     TokenParser
	logger     *zap.Logger
}

type HandlerDependencies struct {
	Presence   Presence
	Queue      Queue
	Dispatcher *Dispatcher
	Tokens     TokenParser
	Logger     *zap.Logger
}

func NewHandler(deps HandlerDependencies) *Handler {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Clients connect from the mobile app webview; origin carries no
			// signal there, auth is the token below.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		presence:   deps.Presence,
		queue:      deps.Queue,
		dispatcher: deps.Dispatcher,
		tokens:     deps.Tokens,
		logger:     log,
	}
}

// ServeHTTP upgrades the request and runs the connection until the peer goes
// away. Disconnect removes the user from the queue and flips them offline.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := h.tokens.ParseAccessToken(r.URL.Query().Get("token"))
	if err != nil {
		httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{
			Code:    "UNAUTHORIZED",
			Message: "invalid or missing token",
		})
		return
	}

	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := newConn(uuid.NewString(), claims.UserID, sock, h.logger)
	go conn.writePump()

	h.presence.Register(r.Context(), claims.UserID, conn.ID(), conn)
	h.logger.Info("websocket connected",
		zap.Int64("user_id", claims.UserID),
		zap.String("conn_id", conn.ID()),
	)

	conn.readPump(func(raw []byte) {
		h.dispatcher.Dispatch(r.Context(), conn, raw)
	})

	// Request context is gone once the socket dies; presence and queue
	// cleanup must still run. The queue entry is only removed when this
	// connection is still the user's current one: after a reconnect the
	// newer connection owns whatever the user enqueued since, and a stale
	// connection's exit must not touch it.
	if userID, current := h.presence.Unregister(context.Background(), conn.ID()); current {
		h.queue.Dequeue(userID)
	}
	h.logger.Info("websocket disconnected",
		zap.Int64("user_id", claims.UserID),
		zap.String("conn_id", conn.ID()),
	)
}
