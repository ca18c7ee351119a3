package model

import (
	"time"

	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/enums"
)

type CallSession struct {
	ID           string          `json:"id"`
	ParticipantA int64           `json:"participant_a"`
	ParticipantB int64           `json:"participant_b"`
	State        enums.CallState `json:"state"`
	Score        float64         `json:"score"`
	StartedAt    time.Time       `json:"started_at"`
	EndedAt      *time.Time      `json:"ended_at"`
}

func (s CallSession) Has(userID int64) bool {
	return s.ParticipantA == userID || s.ParticipantB == userID
}

func (s CallSession) PeerOf(userID int64) (int64, bool) {
	switch userID {
	case s.ParticipantA:
		return s.ParticipantB, true
	case s.ParticipantB:
		return s.ParticipantA, true
	default:
		return 0, false
	}
}
