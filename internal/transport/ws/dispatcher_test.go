package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/enums"
	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/model"
	"github.com/Baltyara/boltaiznakomsya-sub000/internal/services/queue"
)

type clientStub struct {
	userID int64
	events []sentEvent
}

type sentEvent struct {
	event   string
	payload any
}

func (c *clientStub) UserID() int64 { return c.userID }

func (c *clientStub) Send(event string, payload any) error {
	c.events = append(c.events, sentEvent{event: event, payload: payload})
	return nil
}

func (c *clientStub) lastError(t *testing.T) string {
	t.Helper()
	if len(c.events) == 0 {
		t.Fatalf("no events sent")
	}
	last := c.events[len(c.events)-1]
	if last.event != "error" {
		t.Fatalf("last event: got %q want error", last.event)
	}
	switch payload := last.payload.(type) {
	case map[string]string:
		return payload["message"]
	case map[string]any:
		message, _ := payload["message"].(string)
		return message
	default:
		t.Fatalf("unexpected error payload type %T", last.payload)
		return ""
	}
}

type queueStub struct {
	enqueued  []model.QueueEntry
	dequeued  []int64
	enqueueErr error
}

func (q *queueStub) Enqueue(_ context.Context, entry model.QueueEntry) (*model.MatchPair, error) {
	if q.enqueueErr != nil {
		return nil, q.enqueueErr
	}
	q.enqueued = append(q.enqueued, entry)
	return nil, nil
}

func (q *queueStub) Dequeue(userID int64) {
	q.dequeued = append(q.dequeued, userID)
}

type signalingStub struct {
	routed []model.SignalEnvelope
	sender []int64
}

func (s *signalingStub) Route(senderID int64, env model.SignalEnvelope) {
	s.sender = append(s.sender, senderID)
	s.routed = append(s.routed, env)
}

func frame(t *testing.T, event string, data any) []byte {
	t.Helper()
	body, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	raw, err := json.Marshal(Frame{Event: event, Data: body})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	return raw
}

func TestDispatchJoinQueueUsesAuthenticatedUser(t *testing.T) {
	q := &queueStub{}
	d := NewDispatcher(DispatcherDependencies{Queue: q, Signaling: &signalingStub{}})
	c := &clientStub{userID: 42}

	raw := frame(t, "join-queue", joinQueueData{
		DisplayName: "Alice",
		Gender:      "female",
		Age:         25,
		LookingFor:  "male",
		AgeRange:    model.AgeRange{Min: 20, Max: 30},
		Interests:   []string{"music"},
	})
	d.Dispatch(context.Background(), c, raw)

	if len(q.enqueued) != 1 {
		t.Fatalf("enqueued entries: got %d want 1", len(q.enqueued))
	}
	entry := q.enqueued[0]
	if entry.UserID != 42 {
		t.Fatalf("entry user id: got %d want 42", entry.UserID)
	}
	if entry.Gender != enums.GenderFemale || entry.LookingFor != enums.LookingForMale {
		t.Fatalf("entry preference mangled: %+v", entry)
	}
	if len(c.events) != 0 {
		t.Fatalf("unexpected events on success: %+v", c.events)
	}
}

func TestDispatchLeaveQueue(t *testing.T) {
	q := &queueStub{}
	d := NewDispatcher(DispatcherDependencies{Queue: q, Signaling: &signalingStub{}})
	c := &clientStub{userID: 42}

	d.Dispatch(context.Background(), c, frame(t, "leave-queue", struct{}{}))

	if len(q.dequeued) != 1 || q.dequeued[0] != 42 {
		t.Fatalf("dequeue calls: %+v", q.dequeued)
	}
}

func TestDispatchSignalRoutesWithServerSenderID(t *testing.T) {
	sig := &signalingStub{}
	d := NewDispatcher(DispatcherDependencies{Queue: &queueStub{}, Signaling: sig})
	c := &clientStub{userID: 42}

	raw := frame(t, "call:offer", signalData{
		TargetID: 7,
		Payload:  json.RawMessage(`{"sdp":"v=0"}`),
	})
	d.Dispatch(context.Background(), c, raw)

	if len(sig.routed) != 1 {
		t.Fatalf("routed envelopes: got %d want 1", len(sig.routed))
	}
	if sig.sender[0] != 42 {
		t.Fatalf("sender id: got %d want 42", sig.sender[0])
	}
	env := sig.routed[0]
	if env.Kind != enums.SignalOffer || env.TargetID != 7 {
		t.Fatalf("envelope mangled: %+v", env)
	}
}

func TestDispatchEveryCallEventMapsToAKind(t *testing.T) {
	cases := map[string]enums.SignalKind{
		"call:offer":         enums.SignalOffer,
		"call:answer":        enums.SignalAnswer,
		"call:ice-candidate": enums.SignalICECandidate,
		"call:end":           enums.SignalEnd,
		"chat":               enums.SignalChat,
		"typing":             enums.SignalTyping,
	}

	for event, want := range cases {
		sig := &signalingStub{}
		d := NewDispatcher(DispatcherDependencies{Queue: &queueStub{}, Signaling: sig})
		c := &clientStub{userID: 1}

		d.Dispatch(context.Background(), c, frame(t, event, signalData{
			TargetID: 2,
			Payload:  json.RawMessage(`{}`),
		}))

		if len(sig.routed) != 1 || sig.routed[0].Kind != want {
			t.Fatalf("event %q: routed %+v", event, sig.routed)
		}
	}
}

func TestDispatchRejectsMalformedFrames(t *testing.T) {
	d := NewDispatcher(DispatcherDependencies{Queue: &queueStub{}, Signaling: &signalingStub{}})

	cases := map[string][]byte{
		"garbage":       []byte("not json"),
		"empty event":   []byte(`{"event":""}`),
		"unknown event": []byte(`{"event":"self-destruct"}`),
		"bad join data": []byte(`{"event":"join-queue","data":"nope"}`),
		"bad call data": []byte(`{"event":"call:offer","data":"nope"}`),
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			c := &clientStub{userID: 42}
			d.Dispatch(context.Background(), c, raw)
			if got := c.lastError(t); got != "invalid event data" {
				t.Fatalf("error message: got %q want %q", got, "invalid event data")
			}
		})
	}
}

func TestDispatchJoinQueueErrorMapping(t *testing.T) {
	raw := func(t *testing.T) []byte {
		return frame(t, "join-queue", joinQueueData{
			DisplayName: "Bob", Gender: "male", Age: 30, LookingFor: "both",
			AgeRange: model.AgeRange{Min: 18, Max: 99},
		})
	}

	t.Run("validation", func(t *testing.T) {
		q := &queueStub{enqueueErr: queue.ErrValidation}
		d := NewDispatcher(DispatcherDependencies{Queue: q, Signaling: &signalingStub{}})
		c := &clientStub{userID: 42}
		d.Dispatch(context.Background(), c, raw(t))
		if got := c.lastError(t); got != "invalid event data" {
			t.Fatalf("error message: got %q", got)
		}
	})

	t.Run("already in call", func(t *testing.T) {
		q := &queueStub{enqueueErr: queue.ErrAlreadyInCall}
		d := NewDispatcher(DispatcherDependencies{Queue: q, Signaling: &signalingStub{}})
		c := &clientStub{userID: 42}
		d.Dispatch(context.Background(), c, raw(t))
		if got := c.lastError(t); got != "user already in a call" {
			t.Fatalf("error message: got %q", got)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		q := &queueStub{enqueueErr: queue.NewTooManyJoinsError(7)}
		d := NewDispatcher(DispatcherDependencies{Queue: q, Signaling: &signalingStub{}})
		c := &clientStub{userID: 42}
		d.Dispatch(context.Background(), c, raw(t))

		last := c.events[len(c.events)-1]
		payload, ok := last.payload.(map[string]any)
		if !ok {
			t.Fatalf("payload type: %T", last.payload)
		}
		if payload["retry_after"] != int64(7) {
			t.Fatalf("retry_after: got %v want 7", payload["retry_after"])
		}
	})
}
