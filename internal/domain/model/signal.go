package model

import (
	"encoding/json"

	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/enums"
)

// SignalEnvelope carries one WebRTC signaling message between the two peers
// of a call. SenderID is always assigned by the server from the authenticated
// connection; a client-declared sender id is discarded. Payload stays opaque,
// the relay never inspects SDP or ICE contents.
type SignalEnvelope struct {
	Kind      enums.SignalKind `json:"kind"`
	SenderID  int64            `json:"sender_id"`
	TargetID  int64            `json:"target_id"`
	SessionID string           `json:"session_id,omitempty"`
	Payload   json.RawMessage  `json:"payload"`
}
