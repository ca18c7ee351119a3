package model

import (
	"time"

	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/enums"
)

// CallOutcome is handed to the call-history collaborator once a session
// reaches a terminal state.
type CallOutcome struct {
	SessionID    string          `json:"session_id"`
	ParticipantA int64           `json:"participant_a"`
	ParticipantB int64           `json:"participant_b"`
	State        enums.CallState `json:"state"`
	Score        float64         `json:"score"`
	StartedAt    time.Time       `json:"started_at"`
	EndedAt      time.Time       `json:"ended_at"`
	Duration     time.Duration   `json:"duration"`
}
