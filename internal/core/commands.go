package core

import (
	"github.com/dkeye/Parley/internal/domain"
	"github.com/pion/webrtc/v4"
)

// Inbound call-signaling commands carried in event envelopes.
const (
	CommandCallUser     EventName = "callUser"
	CommandAnswerCall   EventName = "answerCall"
	CommandIceCandidate EventName = "iceCandidate"
	CommandRejectCall   EventName = "rejectCall"
	CommandEndCall      EventName = "endCall"
)

type CallUserCommand struct {
	CalleeID domain.UserID             `json:"calleeId"`
	Offer    webrtc.SessionDescription `json:"offer"`
}

type AnswerCallCommand struct {
	CallerID domain.UserID             `json:"callerId"`
	Answer   webrtc.SessionDescription `json:"answer"`
}

type IceCandidateCommand struct {
	ToUserID  domain.UserID           `json:"toUserId"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

type RejectCallCommand struct {
	CallerID domain.UserID `json:"callerId"`
}

type EndCallCommand struct {
	CounterpartID domain.UserID `json:"counterpartId"`
}
