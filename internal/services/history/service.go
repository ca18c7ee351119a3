package history

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/model"
)

// Sink persists one call outcome. The postgres repo implements it; the
// external call-history collaborator owns everything beyond the insert.
type Sink interface {
	Insert(ctx context.Context, outcome model.CallOutcome) error
}

// Service decouples call termination from history persistence: outcomes are
// buffered on a channel and written by a single worker, strictly after the
// session reached a terminal state and outside any matching critical section.
// When the buffer is full the outcome is dropped with a warning; matching
// correctness never depends on the handoff.
type Service struct {
	sink    Sink
	logger  *zap.Logger
	queue   chan model.CallOutcome
	timeout time.Duration
}

type Dependencies struct {
	Sink       Sink
	Logger     *zap.Logger
	BufferSize int
}

func NewService(deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	size := deps.BufferSize
	if size <= 0 {
		size = 256
	}

	return &Service{
		sink:    deps.Sink,
		logger:  log,
		queue:   make(chan model.CallOutcome, size),
		timeout: 5 * time.Second,
	}
}

// Record enqueues a terminal call outcome for persistence. Never blocks.
func (s *Service) Record(outcome model.CallOutcome) {
	select {
	case s.queue <- outcome:
	default:
		s.logger.Warn("call history buffer full, outcome dropped",
			zap.String("session_id", outcome.SessionID))
	}
}

// Run drains the buffer until ctx is cancelled, then flushes what is left.
func (s *Service) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.flush()
			return
		case outcome := <-s.queue:
			s.persist(outcome)
		}
	}
}

func (s *Service) flush() {
	for {
		select {
		case outcome := <-s.queue:
			s.persist(outcome)
		default:
			return
		}
	}
}

func (s *Service) persist(outcome model.CallOutcome) {
	if s.sink == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.sink.Insert(ctx, outcome); err != nil {
		s.logger.Error("persist call outcome",
			zap.String("session_id", outcome.SessionID),
			zap.Error(err),
		)
	}
}
