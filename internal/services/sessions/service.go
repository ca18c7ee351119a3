package sessions

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/enums"
	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/model"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("call session not found")
	ErrTerminal      = errors.New("call session is terminal")
	ErrUserBusy      = errors.New("user already has a live call session")
	ErrBadTransition = errors.New("invalid call state transition")
)

// HistorySink receives the outcome of a terminated call. Implementations must
// not block: the tracker calls it while serving signaling traffic.
type HistorySink interface {
	Record(outcome model.CallOutcome)
}

// Service owns the lifecycle of every live call session, from the Pending
// state a fresh match starts in until a terminal Ended or Failed state. A
// user can belong to at most one live session at a time; the matching broker
// relies on that invariant.
type Service struct {
	mu     sync.RWMutex
	byID   map[string]*model.CallSession
	byUser map[int64]string

	history HistorySink
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
}

type Dependencies struct {
	History HistorySink
	Logger  *zap.Logger
}

func NewService(deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		byID:    make(map[string]*model.CallSession),
		byUser:  make(map[int64]string),
		history: deps.History,
		logger:  log,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// Create opens a Pending session for a freshly matched pair. It refuses with
// ErrUserBusy when either participant already has a live session; the broker
// must not consume queue entries of busy users in the first place, so hitting
// that error for the requester indicates corrupted matching state.
func (s *Service) Create(userA, userB int64, score float64) (model.CallSession, error) {
	if userA <= 0 || userB <= 0 || userA == userB {
		return model.CallSession{}, ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.byUser[userA]; busy {
		return model.CallSession{}, ErrUserBusy
	}
	if _, busy := s.byUser[userB]; busy {
		return model.CallSession{}, ErrUserBusy
	}

	session := &model.CallSession{
		ID:           s.newID(),
		ParticipantA: userA,
		ParticipantB: userB,
		State:        enums.CallStatePending,
		Score:        score,
		StartedAt:    s.now().UTC(),
	}
	s.byID[session.ID] = session
	s.byUser[userA] = session.ID
	s.byUser[userB] = session.ID

	s.logger.Info("call session created",
		zap.String("session_id", session.ID),
		zap.Int64("participant_a", userA),
		zap.Int64("participant_b", userB),
		zap.Float64("score", score),
	)

	return *session, nil
}

func (s *Service) Get(sessionID string) (model.CallSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.byID[sessionID]
	if !ok {
		return model.CallSession{}, ErrNotFound
	}
	return *session, nil
}

// ActiveForUser returns the live session the user participates in, if any.
func (s *Service) ActiveForUser(userID int64) (model.CallSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUser[userID]
	if !ok {
		return model.CallSession{}, false
	}
	session, ok := s.byID[id]
	if !ok {
		return model.CallSession{}, false
	}
	return *session, true
}

// MarkConnecting moves Pending to Connecting on the first relayed offer.
// Repeated offers (renegotiation) on a Connecting or Active session are
// no-ops.
func (s *Service) MarkConnecting(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.byID[sessionID]
	if !ok {
		return ErrNotFound
	}

	switch session.State {
	case enums.CallStatePending:
		session.State = enums.CallStateConnecting
		return nil
	case enums.CallStateConnecting, enums.CallStateActive:
		return nil
	default:
		return ErrTerminal
	}
}

// MarkActive moves Connecting to Active on the first relayed answer or an
// explicit connected acknowledgment. An answer before any offer has no
// matching transition.
func (s *Service) MarkActive(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.byID[sessionID]
	if !ok {
		return ErrNotFound
	}

	switch session.State {
	case enums.CallStateConnecting:
		session.State = enums.CallStateActive
		return nil
	case enums.CallStateActive:
		return nil
	case enums.CallStatePending:
		return ErrBadTransition
	default:
		return ErrTerminal
	}
}

// End terminates the session normally from any non-terminal state.
func (s *Service) End(sessionID string) error {
	return s.finish(sessionID, enums.CallStateEnded)
}

// Fail terminates the session after an ICE failure or explicit error.
func (s *Service) Fail(sessionID string) error {
	return s.finish(sessionID, enums.CallStateFailed)
}

func (s *Service) finish(sessionID string, state enums.CallState) error {
	s.mu.Lock()

	session, ok := s.byID[sessionID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if session.State.Terminal() {
		s.mu.Unlock()
		return ErrTerminal
	}

	endedAt := s.now().UTC()
	session.State = state
	session.EndedAt = &endedAt

	outcome := model.CallOutcome{
		SessionID:    session.ID,
		ParticipantA: session.ParticipantA,
		ParticipantB: session.ParticipantB,
		State:        session.State,
		Score:        session.Score,
		StartedAt:    session.StartedAt,
		EndedAt:      endedAt,
		Duration:     endedAt.Sub(session.StartedAt),
	}

	delete(s.byUser, session.ParticipantA)
	delete(s.byUser, session.ParticipantB)
	delete(s.byID, session.ID)
	s.mu.Unlock()

	s.logger.Info("call session terminated",
		zap.String("session_id", outcome.SessionID),
		zap.String("state", string(state)),
		zap.Duration("duration", outcome.Duration),
	)

	// Handed off outside the lock; the sink buffers and persists on its own.
	if s.history != nil {
		s.history.Record(outcome)
	}

	return nil
}

// WithClock replaces the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}
