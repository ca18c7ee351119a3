package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Baltyara/boltaiznakomsya-sub000/internal/config"
	"github.com/Baltyara/boltaiznakomsya-sub000/internal/jobs/cleanup"
	pgrepo "github.com/Baltyara/boltaiznakomsya-sub000/internal/repo/postgres"
	redrepo "github.com/Baltyara/boltaiznakomsya-sub000/internal/repo/redis"
	authsvc "github.com/Baltyara/boltaiznakomsya-sub000/internal/services/auth"
	historysvc "github.com/Baltyara/boltaiznakomsya-sub000/internal/services/history"
	presencesvc "github.com/Baltyara/boltaiznakomsya-sub000/internal/services/presence"
	queuesvc "github.com/Baltyara/boltaiznakomsya-sub000/internal/services/queue"
	ratesvc "github.com/Baltyara/boltaiznakomsya-sub000/internal/services/rate"
	sessionsvc "github.com/Baltyara/boltaiznakomsya-sub000/internal/services/sessions"
	signalingsvc "github.com/Baltyara/boltaiznakomsya-sub000/internal/services/signaling"
	"github.com/Baltyara/boltaiznakomsya-sub000/internal/transport/ws"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	history    *historysvc.Service
	cleanupJob *cleanup.Job
	httpRouter http.Handler

	jobsStarted atomic.Bool
	jobsDone    chan struct{}
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	// Call history is the only postgres consumer; matching itself is fully
	// in-memory, so a missing database degrades to "no history" rather than
	// refusing to start.
	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	rateRepo := redrepo.NewRateRepo(redisClient)
	presenceRepo := redrepo.NewPresenceRepo(redisClient, cfg.Presence.MirrorTTL)
	callHistoryRepo := pgrepo.NewCallHistoryRepo(pool)

	historyService := historysvc.NewService(historysvc.Dependencies{
		Sink:       callHistoryRepo,
		Logger:     log,
		BufferSize: cfg.History.BufferSize,
	})
	sessionService := sessionsvc.NewService(sessionsvc.Dependencies{
		History: historyService,
		Logger:  log,
	})
	presenceService := presencesvc.NewService(presencesvc.Dependencies{
		Sessions: sessionService,
		Mirror:   presenceRepo,
		Logger:   log,
	})
	rateLimiter := ratesvc.NewLimiter(
		rateRepo,
		cfg.Queue.JoinRatePerMinute,
		cfg.Queue.JoinRatePer10Sec,
	)
	queueService := queuesvc.NewService(queuesvc.Dependencies{
		Sessions: sessionService,
		Presence: presenceService,
		Limiter:  rateLimiter,
		Logger:   log,
	})
	signalingService := signalingsvc.NewService(signalingsvc.Dependencies{
		Presence: presenceService,
		Sessions: sessionService,
		Logger:   log,
	})

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)

	wsDispatcher := ws.NewDispatcher(ws.DispatcherDependencies{
		Queue:     queueService,
		Signaling: signalingService,
		Logger:    log,
	})
	wsHandler := ws.NewHandler(ws.HandlerDependencies{
		Presence:   presenceService,
		Queue:      queueService,
		Dispatcher: wsDispatcher,
		Tokens:     jwtManager,
		Logger:     log,
	})

	cleanupJob := cleanup.New(queueService, cfg.Queue.EntryTTL, cfg.Queue.CleanupInterval, log)

	RegisterRoutes(r, Dependencies{
		QueueService:    queueService,
		PresenceService: presenceService,
		RateLimiter:     rateLimiter,
		WSHandler:       wsHandler,
		JWTManager:      jwtManager,
		Logger:          log,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		history:    historyService,
		cleanupJob: cleanupJob,
		httpRouter: r,
		jobsDone:   make(chan struct{}),
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// RunJobs starts the background workers and blocks until ctx is cancelled
// and the history worker has flushed its buffer. Shutdown waits for that
// flush before closing the stores the workers write to.
func (a *App) RunJobs(ctx context.Context) {
	a.jobsStarted.Store(true)
	defer close(a.jobsDone)

	go a.cleanupJob.Run(ctx)
	a.history.Run(ctx)
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}

	// Outcomes buffered at shutdown are still being flushed by RunJobs; the
	// postgres pool must outlive that flush.
	if a.jobsStarted.Load() {
		select {
		case <-a.jobsDone:
		case <-ctx.Done():
			if shutdownErr == nil {
				shutdownErr = fmt.Errorf("background jobs did not stop: %w", ctx.Err())
			}
		}
	}

	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
