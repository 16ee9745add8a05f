package domain

type CallID string

type CallStatus int

const (
	CallRinging CallStatus = iota
	CallConnected
	CallEnded
	CallRejected
	CallFailed
)

func (s CallStatus) String() string {
	switch s {
	case CallRinging:
		return "ringing"
	case CallConnected:
		return "connected"
	case CallEnded:
		return "ended"
	case CallRejected:
		return "rejected"
	case CallFailed:
		return "failed"
	}
	return "unknown"
}

func (s CallStatus) Terminal() bool {
	return s == CallEnded || s == CallRejected || s == CallFailed
}
