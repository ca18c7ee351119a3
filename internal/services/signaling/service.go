package signaling

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/enums"
	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/model"
	"github.com/Baltyara/boltaiznakomsya-sub000/internal/services/presence"
)

// Presence resolves delivery targets and reply channels.
type Presence interface {
	SenderFor(userID int64) (presence.Sender, bool)
}

// Sessions is the slice of the call-session tracker the relay drives:
// relayed offers, answers and end signals advance the session state machine.
type Sessions interface {
	ActiveForUser(userID int64) (model.CallSession, bool)
	MarkConnecting(sessionID string) error
	MarkActive(sessionID string) error
	End(sessionID string) error
	Fail(sessionID string) error
}

// End reasons that terminate the session as Failed instead of Ended.
var failureReasons = map[string]bool{
	"ice_failed":        true,
	"connection_failed": true,
	"error":             true,
}

// Service is the stateless signaling router between the two peers of a call.
// It holds no state of its own; delivery is fire and forget, and a target
// that disconnects between lookup and delivery simply loses the message.
type Service struct {
	presence Presence
	sessions Sessions
	logger   *zap.Logger
}

type Dependencies struct {
	Presence Presence
	Sessions Sessions
	Logger   *zap.Logger
}

func NewService(deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		presence: deps.Presence,
		sessions: deps.Sessions,
		logger:   log,
	}
}

// Route validates and forwards one signaling envelope. The sender id on the
// envelope is always overwritten with the authenticated sender; client-facing
// failures are reported back to the sender as an error event and the message
// is dropped.
func (s *Service) Route(senderID int64, env model.SignalEnvelope) {
	if !knownKind(env.Kind) || len(env.Payload) == 0 || env.TargetID <= 0 {
		s.replyError(senderID, "invalid event data")
		return
	}

	target, ok := s.presence.SenderFor(env.TargetID)
	if !ok {
		s.replyError(senderID, "user not found")
		return
	}

	env.SenderID = senderID

	if session, ok := s.sessionFor(senderID, env.TargetID); ok {
		env.SessionID = session.ID
		s.advance(session.ID, env)
	}

	payload := map[string]any{
		"from_user_id": env.SenderID,
		"session_id":   env.SessionID,
		"payload":      env.Payload,
	}
	if err := target.Send(eventName(env.Kind), payload); err != nil {
		// Fire and forget: the target vanished between lookup and delivery.
		s.logger.Debug("signal delivery dropped",
			zap.Int64("target_id", env.TargetID),
			zap.String("kind", string(env.Kind)),
			zap.Error(err),
		)
	}
}

func (s *Service) sessionFor(senderID, targetID int64) (model.CallSession, bool) {
	if s.sessions == nil {
		return model.CallSession{}, false
	}
	session, ok := s.sessions.ActiveForUser(senderID)
	if !ok || !session.Has(targetID) {
		return model.CallSession{}, false
	}
	return session, true
}

func (s *Service) advance(sessionID string, env model.SignalEnvelope) {
	var err error
	switch env.Kind {
	case enums.SignalOffer:
		err = s.sessions.MarkConnecting(sessionID)
	case enums.SignalAnswer:
		err = s.sessions.MarkActive(sessionID)
	case enums.SignalEnd:
		if isFailure(env.Payload) {
			err = s.sessions.Fail(sessionID)
		} else {
			err = s.sessions.End(sessionID)
		}
	default:
		return
	}
	if err != nil {
		s.logger.Warn("call state transition rejected",
			zap.String("session_id", sessionID),
			zap.String("kind", string(env.Kind)),
			zap.Error(err),
		)
	}
}

func (s *Service) replyError(senderID int64, message string) {
	sender, ok := s.presence.SenderFor(senderID)
	if !ok {
		return
	}
	if err := sender.Send("error", map[string]string{"message": message}); err != nil {
		s.logger.Debug("error reply dropped", zap.Int64("sender_id", senderID), zap.Error(err))
	}
}

func isFailure(payload json.RawMessage) bool {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return false
	}
	return failureReasons[body.Reason]
}

func knownKind(kind enums.SignalKind) bool {
	switch kind {
	case enums.SignalOffer, enums.SignalAnswer, enums.SignalICECandidate,
		enums.SignalEnd, enums.SignalChat, enums.SignalTyping:
		return true
	default:
		return false
	}
}

func eventName(kind enums.SignalKind) string {
	switch kind {
	case enums.SignalOffer:
		return "call:offer"
	case enums.SignalAnswer:
		return "call:answer"
	case enums.SignalICECandidate:
		return "call:ice-candidate"
	case enums.SignalEnd:
		return "call:end"
	case enums.SignalChat:
		return "chat"
	default:
		return "typing"
	}
}
