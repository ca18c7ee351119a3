package enums

type CallState string

const (
	CallStatePending    CallState = "pending"
	CallStateConnecting CallState = "connecting"
	CallStateActive     CallState = "active"
	CallStateEnded      CallState = "ended"
	CallStateFailed     CallState = "failed"
)

func (s CallState) Terminal() bool {
	return s == CallStateEnded || s == CallStateFailed
}
