package ws

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/enums"
	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/model"
	"github.com/Baltyara/boltaiznakomsya-sub000/internal/services/queue"
)

// client is the slice of a connection the dispatcher needs, narrowed so tests
// can drive the dispatcher without a live socket.
type client interface {
	UserID() int64
	Send(event string, payload any) error
}

// Queue is the matchmaking surface reachable over the event channel.
type Queue interface {
	Enqueue(ctx context.Context, entry model.QueueEntry) (*model.MatchPair, error)
	Dequeue(userID int64)
}

// Signaling forwards call signals between peers.
type Signaling interface {
	Route(senderID int64, env model.SignalEnvelope)
}

var kindByEvent = map[string]enums.SignalKind{
	"call:offer":         enums.SignalOffer,
	"call:answer":        enums.SignalAnswer,
	"call:ice-candidate": enums.SignalICECandidate,
	"call:end":           enums.SignalEnd,
	"chat":               enums.SignalChat,
	"typing":             enums.SignalTyping,
}

// Dispatcher routes inbound client frames to the matchmaking queue and the
// signaling relay. Errors go back to the sender as an error event; the
// connection itself stays up.
type Dispatcher struct {
	queue     Queue
	signaling Signaling
	logger    *zap.Logger
}

type DispatcherDependencies struct {
	Queue     Queue
	Signaling Signaling
	Logger    *zap.Logger
}

func NewDispatcher(deps DispatcherDependencies) *Dispatcher {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Dispatcher{
		queue:     deps.Queue,
		signaling: deps.Signaling,
		logger:    log,
	}
}

type joinQueueData struct {
	DisplayName string         `json:"display_name"`
	Gender      string         `json:"gender"`
	Age         int            `json:"age"`
	LookingFor  string         `json:"looking_for"`
	AgeRange    model.AgeRange `json:"age_range"`
	Interests   []string       `json:"interests"`
}

type signalData struct {
	TargetID int64           `json:"target_id"`
	Payload  json.RawMessage `json:"payload"`
}

// Dispatch handles one raw inbound frame from the given connection.
func (d *Dispatcher) Dispatch(ctx context.Context, c client, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
		d.sendError(c, "invalid event data")
		return
	}

	switch frame.Event {
	case "join-queue":
		d.handleJoin(ctx, c, frame.Data)
	case "leave-queue":
		d.queue.Dequeue(c.UserID())
	default:
		kind, ok := kindByEvent[frame.Event]
		if !ok {
			d.sendError(c, "invalid event data")
			return
		}
		d.handleSignal(c, kind, frame.Data)
	}
}

func (d *Dispatcher) handleJoin(ctx context.Context, c client, data json.RawMessage) {
	var body joinQueueData
	if err := json.Unmarshal(data, &body); err != nil {
		d.sendError(c, "invalid event data")
		return
	}

	entry := model.QueueEntry{
		UserID:      c.UserID(),
		DisplayName: body.DisplayName,
		Gender:      enums.Gender(body.Gender),
		Age:         body.Age,
		LookingFor:  enums.LookingFor(body.LookingFor),
		AgeRange:    body.AgeRange,
		Interests:   body.Interests,
	}

	// Match-found events for both sides are pushed by the queue itself; the
	// dispatcher only reports failures.
	if _, err := d.queue.Enqueue(ctx, entry); err != nil {
		d.replyJoinError(c, err)
	}
}

func (d *Dispatcher) handleSignal(c client, kind enums.SignalKind, data json.RawMessage) {
	var body signalData
	if err := json.Unmarshal(data, &body); err != nil {
		d.sendError(c, "invalid event data")
		return
	}

	d.signaling.Route(c.UserID(), model.SignalEnvelope{
		Kind:     kind,
		TargetID: body.TargetID,
		Payload:  body.Payload,
	})
}

func (d *Dispatcher) replyJoinError(c client, err error) {
	if tooMany, ok := queue.IsTooManyJoins(err); ok {
		d.send(c, "error", map[string]any{
			"message":     "too many join attempts",
			"retry_after": tooMany.RetryAfter(),
		})
		return
	}

	switch {
	case errors.Is(err, queue.ErrValidation):
		d.sendError(c, "invalid event data")
	case errors.Is(err, queue.ErrAlreadyInCall):
		d.sendError(c, "user already in a call")
	default:
		d.logger.Error("queue join failed", zap.Int64("user_id", c.UserID()), zap.Error(err))
		d.sendError(c, "internal error")
	}
}

func (d *Dispatcher) sendError(c client, message string) {
	d.send(c, "error", map[string]string{"message": message})
}

func (d *Dispatcher) send(c client, event string, payload any) {
	if err := c.Send(event, payload); err != nil {
		d.logger.Debug("event dropped",
			zap.Int64("user_id", c.UserID()),
			zap.String("event", event),
			zap.Error(err),
		)
	}
}
