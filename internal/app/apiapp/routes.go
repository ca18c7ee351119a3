package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authsvc "github.com/Baltyara/boltaiznakomsya-sub000/internal/services/auth"
	presencesvc "github.com/Baltyara/boltaiznakomsya-sub000/internal/services/presence"
	queuesvc "github.com/Baltyara/boltaiznakomsya-sub000/internal/services/queue"
	ratesvc "github.com/Baltyara/boltaiznakomsya-sub000/internal/services/rate"
	"github.com/Baltyara/boltaiznakomsya-sub000/internal/transport/http/handlers"
	"github.com/Baltyara/boltaiznakomsya-sub000/internal/transport/ws"
)

type Dependencies struct {
	QueueService    *queuesvc.Service
	PresenceService *presencesvc.Service
	RateLimiter     *ratesvc.Limiter
	WSHandler       *ws.Handler
	JWTManager      *authsvc.JWTManager
	Logger          *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	queueHandler := handlers.NewQueueHandler(deps.QueueService, deps.RateLimiter)
	presenceHandler := handlers.NewPresenceHandler(deps.PresenceService)
	authMW := AuthMiddleware(deps.JWTManager, deps.Logger)

	r.Get("/healthz", healthHandler.Handle)

	r.Route("/queue", func(r chi.Router) {
		r.Use(authMW)
		r.Post("/join", queueHandler.Join)
		r.Post("/leave", queueHandler.Leave)
		r.Get("/status", queueHandler.Status)
	})

	r.Route("/presence", func(r chi.Router) {
		r.Use(authMW)
		r.Get("/{user_id}", presenceHandler.Get)
	})

	// The websocket handshake authenticates with a token query param; bearer
	// middleware does not apply here.
	r.Get("/ws", deps.WSHandler.ServeHTTP)
}
