package model

import (
	"time"

	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/enums"
)

type PresenceRecord struct {
	UserID   int64                `json:"user_id"`
	ConnID   string               `json:"conn_id"`
	Status   enums.PresenceStatus `json:"status"`
	LastSeen time.Time            `json:"last_seen"`
}
