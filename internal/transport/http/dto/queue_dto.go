package dto

type AgeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type JoinQueueRequest struct {
	DisplayName string   `json:"display_name"`
	Gender      string   `json:"gender"`
	Age         int      `json:"age"`
	LookingFor  string   `json:"looking_for"`
	AgeRange    AgeRange `json:"age_range"`
	Interests   []string `json:"interests"`
}

type MatchPayload struct {
	SessionID string  `json:"session_id"`
	PartnerID int64   `json:"partner_id"`
	Score     float64 `json:"score"`
}

type JoinQueueResponse struct {
	OK    bool          `json:"ok"`
	Match *MatchPayload `json:"match,omitempty"`
}

type LeaveQueueResponse struct {
	OK bool `json:"ok"`
}

type QueueStatusResponse struct {
	InQueue           bool  `json:"in_queue"`
	QueueSize         int   `json:"queue_size"`
	WaitTimeMS        int64 `json:"wait_time_ms"`
	JoinRetryAfterSec int64 `json:"join_retry_after_sec,omitempty"`
}
