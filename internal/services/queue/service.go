package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/enums"
	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/model"
	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/rules"
	"github.com/Baltyara/boltaiznakomsya-sub000/internal/services/presence"
)

var (
	ErrValidation    = errors.New("invalid preference")
	ErrAlreadyInCall = errors.New("user already in a call")
)

// TooManyJoinsError is returned when join attempts exceed the configured
// redis windows.
type TooManyJoinsError struct {
	retryAfterSec int64
}

func (e *TooManyJoinsError) Error() string {
	return fmt.Sprintf("too many join attempts, retry after %ds", e.retryAfterSec)
}

func (e *TooManyJoinsError) RetryAfter() int64 { return e.retryAfterSec }

func NewTooManyJoinsError(retryAfterSec int64) *TooManyJoinsError {
	return &TooManyJoinsError{retryAfterSec: retryAfterSec}
}

func IsTooManyJoins(err error) (*TooManyJoinsError, bool) {
	var target *TooManyJoinsError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// Sessions is the slice of the call-session tracker the broker needs.
type Sessions interface {
	Create(userA, userB int64, score float64) (model.CallSession, error)
	ActiveForUser(userID int64) (model.CallSession, bool)
}

// PresenceSource resolves delivery targets for match-found events.
type PresenceSource interface {
	SenderFor(userID int64) (presence.Sender, bool)
}

// JoinLimiter gates how often a user may (re)join the queue.
type JoinLimiter interface {
	AllowJoin(ctx context.Context, userID int64) (retryAfterSec int64, ok bool, err error)
}

// Service is the matchmaking queue plus its broker. All queue reads and
// mutations run under one mutex; the "pick the best candidate and remove both
// entries" decision is the single serialized critical section of the whole
// core. Nothing inside the lock performs I/O; match notifications go out
// after the lock is released.
type Service struct {
	mu      sync.Mutex
	entries map[int64]model.QueueEntry

	sessions Sessions
	presence PresenceSource
	limiter  JoinLimiter
	logger   *zap.Logger
	now      func() time.Time
}

type Dependencies struct {
	Sessions Sessions
	Presence PresenceSource
	Limiter  JoinLimiter
	Logger   *zap.Logger
}

type Status struct {
	InQueue   bool
	QueueSize int
	WaitTime  time.Duration
}

func NewService(deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		entries:  make(map[int64]model.QueueEntry),
		sessions: deps.Sessions,
		presence: deps.Presence,
		limiter:  deps.Limiter,
		logger:   log,
		now:      time.Now,
	}
}

// Enqueue upserts the user's entry and immediately attempts a match for them.
// A repeat join replaces the previous entry, join time included. The matched
// pair, if any, is returned after both sides have been notified.
func (s *Service) Enqueue(ctx context.Context, entry model.QueueEntry) (*model.MatchPair, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	if s.limiter != nil {
		retryAfter, ok, err := s.limiter.AllowJoin(ctx, entry.UserID)
		if err != nil {
			return nil, fmt.Errorf("check join rate: %w", err)
		}
		if !ok {
			return nil, &TooManyJoinsError{retryAfterSec: retryAfter}
		}
	}

	if s.sessions != nil {
		if _, busy := s.sessions.ActiveForUser(entry.UserID); busy {
			return nil, ErrAlreadyInCall
		}
	}

	entry.JoinedAt = s.now().UTC()

	s.mu.Lock()
	s.entries[entry.UserID] = entry
	s.mu.Unlock()

	s.logger.Debug("queue entry upserted", zap.Int64("user_id", entry.UserID))

	return s.FindMatch(entry.UserID), nil
}

// Dequeue removes the user's entry. It is idempotent and never blocks on a
// pending match decision: when a concurrent match consumed the entry first,
// the removal is a harmless no-op and the match stands.
func (s *Service) Dequeue(userID int64) {
	s.mu.Lock()
	_, existed := s.entries[userID]
	delete(s.entries, userID)
	s.mu.Unlock()

	if existed {
		s.logger.Debug("queue entry removed", zap.Int64("user_id", userID))
	}
}

// FindMatch scans the queue for the requester's best mutually compatible
// candidate. On success both entries are gone and a Pending call session
// exists before the method returns; two concurrent calls can never claim the
// same candidate.
func (s *Service) FindMatch(requesterID int64) *model.MatchPair {
	s.mu.Lock()
	pair, requester, partner := s.matchLocked(requesterID)
	s.mu.Unlock()

	if pair == nil {
		return nil
	}

	s.notifyMatch(requester, partner, *pair)
	s.notifyMatch(partner, requester, *pair)

	return pair
}

// matchLocked holds s.mu and performs the atomic test-and-remove-both step.
func (s *Service) matchLocked(requesterID int64) (*model.MatchPair, model.QueueEntry, model.QueueEntry) {
	var zero model.QueueEntry

	requester, ok := s.entries[requesterID]
	if !ok {
		return nil, zero, zero
	}

	var (
		best      model.QueueEntry
		bestScore float64
		found     bool
	)
	for userID, candidate := range s.entries {
		if userID == requesterID {
			continue
		}
		if s.sessions != nil {
			if _, busy := s.sessions.ActiveForUser(userID); busy {
				continue
			}
		}

		score := rules.CompatibilityScore(requester, candidate)
		if score <= 0 {
			continue
		}
		if !found || score > bestScore || (score == bestScore && earlier(candidate, best)) {
			best = candidate
			bestScore = score
			found = true
		}
	}

	if !found {
		return nil, zero, zero
	}

	session, err := s.sessions.Create(requester.UserID, best.UserID, bestScore)
	if err != nil {
		// Both users passed the busy check under the queue lock, so a refusal
		// here means corrupted matching state. Fail loudly and leave the
		// queue untouched.
		s.logger.Error("call session refused for matched pair",
			zap.Int64("requester_id", requester.UserID),
			zap.Int64("candidate_id", best.UserID),
			zap.Error(err),
		)
		return nil, zero, zero
	}

	delete(s.entries, requester.UserID)
	delete(s.entries, best.UserID)

	pair := &model.MatchPair{
		UserA:     requester.UserID,
		UserB:     best.UserID,
		SessionID: session.ID,
		MatchedAt: session.StartedAt,
		Score:     bestScore,
	}

	s.logger.Info("match found",
		zap.Int64("user_a", pair.UserA),
		zap.Int64("user_b", pair.UserB),
		zap.Float64("score", pair.Score),
		zap.String("session_id", session.ID),
	)

	return pair, requester, best
}

// Status reports queue membership for the user and overall queue size.
func (s *Service) Status(userID int64) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{QueueSize: len(s.entries)}
	if entry, ok := s.entries[userID]; ok {
		st.InQueue = true
		st.WaitTime = s.now().UTC().Sub(entry.JoinedAt)
		if st.WaitTime < 0 {
			st.WaitTime = 0
		}
	}
	return st
}

// EvictBefore removes entries whose join time is older than the cutoff and
// returns them. Used by the cleanup job; evicted users simply rejoin.
func (s *Service) EvictBefore(cutoff time.Time) []model.QueueEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []model.QueueEntry
	for userID, entry := range s.entries {
		if entry.JoinedAt.Before(cutoff) {
			evicted = append(evicted, entry)
			delete(s.entries, userID)
		}
	}
	return evicted
}

func (s *Service) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Service) notifyMatch(to, partner model.QueueEntry, pair model.MatchPair) {
	if s.presence == nil {
		return
	}
	sender, ok := s.presence.SenderFor(to.UserID)
	if !ok {
		// Fire and forget: the user dropped between matching and delivery.
		s.logger.Warn("match notification target offline", zap.Int64("user_id", to.UserID))
		return
	}

	payload := map[string]any{
		"session_id": pair.SessionID,
		"score":      pair.Score,
		"partner": map[string]any{
			"user_id":      partner.UserID,
			"display_name": partner.DisplayName,
			"age":          partner.Age,
			"interests":    partner.Interests,
		},
	}
	if err := sender.Send("match-found", payload); err != nil {
		s.logger.Warn("match notification failed", zap.Int64("user_id", to.UserID), zap.Error(err))
	}
}

func validateEntry(entry model.QueueEntry) error {
	if entry.UserID <= 0 {
		return ErrValidation
	}
	switch entry.LookingFor {
	case enums.LookingForMale, enums.LookingForFemale, enums.LookingForBoth:
	default:
		return ErrValidation
	}
	switch entry.Gender {
	case enums.GenderMale, enums.GenderFemale:
	default:
		return ErrValidation
	}
	if entry.AgeRange.Min > entry.AgeRange.Max {
		return ErrValidation
	}
	return nil
}

func earlier(a, b model.QueueEntry) bool {
	if a.JoinedAt.Equal(b.JoinedAt) {
		return a.UserID < b.UserID
	}
	return a.JoinedAt.Before(b.JoinedAt)
}

// WithClock replaces the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}
