package model

import (
	"time"

	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/enums"
)

type AgeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func (r AgeRange) Contains(age int) bool {
	return age >= r.Min && age <= r.Max
}

// QueueEntry is a user currently waiting for a call partner. The profile
// fields (DisplayName, Gender, Age) are supplied by the profile collaborator
// at join time; this core never reads profiles itself.
type QueueEntry struct {
	UserID      int64            `json:"user_id"`
	DisplayName string           `json:"display_name"`
	Gender      enums.Gender     `json:"gender"`
	Age         int              `json:"age"`
	LookingFor  enums.LookingFor `json:"looking_for"`
	AgeRange    AgeRange         `json:"age_range"`
	Interests   []string         `json:"interests"`
	JoinedAt    time.Time        `json:"joined_at"`
}
