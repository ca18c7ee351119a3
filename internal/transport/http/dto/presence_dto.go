package dto

type PresenceResponse struct {
	UserID       int64  `json:"user_id"`
	Status       string `json:"status"`
	LastSeenUnix int64  `json:"last_seen_unix,omitempty"`
}
