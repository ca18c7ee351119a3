package presence

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/enums"
	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/model"
)

// Sender pushes one server event onto a user's connection. Implementations
// enqueue onto the connection's outbound channel and never block.
type Sender interface {
	Send(event string, payload any) error
}

// SessionSource resolves the live call session a user participates in, so
// online/offline transitions can be announced to the call peer.
type SessionSource interface {
	ActiveForUser(userID int64) (model.CallSession, bool)
}

// LastSeenStore mirrors presence transitions into redis with a TTL. The
// mirror is advisory: write failures are logged and never affect the
// registry. Reads serve LastKnown for users not connected to this node.
type LastSeenStore interface {
	Touch(ctx context.Context, userID int64, status enums.PresenceStatus) error
	Get(ctx context.Context, userID int64) (enums.PresenceStatus, time.Time, error)
}

type connection struct {
	record model.PresenceRecord
	sender Sender
}

// Service is the registry of live connections, keyed both by user and by
// connection id. It is the single owner of PresenceRecord state.
type Service struct {
	mu     sync.RWMutex
	byUser map[int64]*connection
	byConn map[string]int64

	sessions SessionSource
	mirror   LastSeenStore
	logger   *zap.Logger
	now      func() time.Time
}

type Dependencies struct {
	Sessions SessionSource
	Mirror   LastSeenStore
	Logger   *zap.Logger
}

func NewService(deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		byUser:   make(map[int64]*connection),
		byConn:   make(map[string]int64),
		sessions: deps.Sessions,
		mirror:   deps.Mirror,
		logger:   log,
		now:      time.Now,
	}
}

// Register marks the user online on the given connection. A repeat register
// for the same user replaces the previous connection.
func (s *Service) Register(ctx context.Context, userID int64, connID string, sender Sender) {
	s.mu.Lock()
	if prev, ok := s.byUser[userID]; ok {
		delete(s.byConn, prev.record.ConnID)
	}
	s.byUser[userID] = &connection{
		record: model.PresenceRecord{
			UserID:   userID,
			ConnID:   connID,
			Status:   enums.PresenceOnline,
			LastSeen: s.now().UTC(),
		},
		sender: sender,
	}
	s.byConn[connID] = userID
	s.mu.Unlock()

	s.logger.Info("user online", zap.Int64("user_id", userID), zap.String("conn_id", connID))
	s.touchMirror(ctx, userID, enums.PresenceOnline)
	s.notifyPeer(userID, "user:online")
}

// Unregister marks the connection's user offline and reports whose record it
// removed. A stale connection id (the user already reconnected on a newer one)
// is ignored and reported as not removed, so callers know the user's other
// state still belongs to the newer connection.
func (s *Service) Unregister(ctx context.Context, connID string) (int64, bool) {
	s.mu.Lock()
	userID, ok := s.byConn[connID]
	if !ok {
		s.mu.Unlock()
		return 0, false
	}
	delete(s.byConn, connID)
	delete(s.byUser, userID)
	s.mu.Unlock()

	s.logger.Info("user offline", zap.Int64("user_id", userID), zap.String("conn_id", connID))
	s.touchMirror(ctx, userID, enums.PresenceOffline)
	s.notifyPeer(userID, "user:offline")

	return userID, true
}

// Lookup resolves the live presence record for a user.
func (s *Service) Lookup(userID int64) (model.PresenceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, ok := s.byUser[userID]
	if !ok {
		return model.PresenceRecord{}, false
	}
	return conn.record, true
}

// LastKnown reports the freshest presence the node can see for a user: the
// live registry when the user is connected here, otherwise the redis mirror.
// A user the mirror never saw reads as offline with a zero last-seen time.
func (s *Service) LastKnown(ctx context.Context, userID int64) (model.PresenceRecord, error) {
	if record, ok := s.Lookup(userID); ok {
		return record, nil
	}
	if s.mirror == nil {
		return model.PresenceRecord{UserID: userID, Status: enums.PresenceOffline}, nil
	}

	status, lastSeen, err := s.mirror.Get(ctx, userID)
	if err != nil {
		return model.PresenceRecord{}, err
	}
	return model.PresenceRecord{UserID: userID, Status: status, LastSeen: lastSeen}, nil
}

// SenderFor resolves the delivery target for a user, for the signaling relay
// and the match broker.
func (s *Service) SenderFor(userID int64) (Sender, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, ok := s.byUser[userID]
	if !ok {
		return nil, false
	}
	return conn.sender, true
}

// Online reports how many users are currently connected.
func (s *Service) Online() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUser)
}

func (s *Service) touchMirror(ctx context.Context, userID int64, status enums.PresenceStatus) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Touch(ctx, userID, status); err != nil {
		s.logger.Warn("presence mirror update failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func (s *Service) notifyPeer(userID int64, event string) {
	if s.sessions == nil {
		return
	}
	session, ok := s.sessions.ActiveForUser(userID)
	if !ok {
		return
	}
	peerID, ok := session.PeerOf(userID)
	if !ok {
		return
	}
	sender, ok := s.SenderFor(peerID)
	if !ok {
		return
	}
	if err := sender.Send(event, map[string]int64{"user_id": userID}); err != nil {
		s.logger.Warn("presence notify failed",
			zap.Int64("peer_id", peerID),
			zap.String("event", event),
			zap.Error(err),
		)
	}
}

// WithClock replaces the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}
