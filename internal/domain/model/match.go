package model

import "time"

// MatchPair is the ephemeral outcome of a matching decision. It exists only
// to hand off into a CallSession and is never persisted.
type MatchPair struct {
	UserA     int64     `json:"user_a"`
	UserB     int64     `json:"user_b"`
	SessionID string    `json:"session_id"`
	MatchedAt time.Time `json:"matched_at"`
	Score     float64   `json:"score"`
}
