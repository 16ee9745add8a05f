package core

import (
	"errors"
	"fmt"

	"github.com/dkeye/Parley/internal/domain"
	"github.com/pion/webrtc/v4"
)

var ErrInvalidEvent = errors.New("invalid event")

type EventName string

const (
	EventPresenceChanged EventName = "presenceChanged"
	EventNewMessage      EventName = "newMessage"
	EventNewGroupMessage EventName = "newGroupMessage"
	EventMessageReaction EventName = "messageReaction"
	EventMessageEdited   EventName = "messageEdited"
	EventMessageDeleted  EventName = "messageDeleted"
	EventIncomingCall    EventName = "incomingCall"
	EventCallAnswered    EventName = "callAnswered"
	EventIceCandidate    EventName = "iceCandidate"
	EventCallRejected    EventName = "callRejected"
	EventCallEnded       EventName = "callEnded"
	EventCallFailed      EventName = "callFailed"
)

// Event is the closed set of server-to-client notifications.
// Only types declared in this file implement it.
type Event interface {
	Name() EventName
	Payload() any
	Validate() error
	sealed()
}

func invalid(name EventName, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidEvent, name, reason)
}

type PresenceChanged struct {
	UserIDs []domain.UserID
}

func (PresenceChanged) Name() EventName { return EventPresenceChanged }
func (e PresenceChanged) Payload() any {
	if e.UserIDs == nil {
		return []domain.UserID{}
	}
	return e.UserIDs
}
func (PresenceChanged) Validate() error { return nil }
func (PresenceChanged) sealed()         {}

// MessageEvent carries a message snapshot for one of the message kinds.
type MessageEvent struct {
	Kind    EventName
	Message *domain.Message
}

func (e MessageEvent) Name() EventName { return e.Kind }
func (e MessageEvent) Payload() any    { return e.Message }
func (e MessageEvent) Validate() error {
	switch e.Kind {
	case EventNewMessage, EventNewGroupMessage, EventMessageReaction, EventMessageEdited, EventMessageDeleted:
	default:
		return invalid(e.Kind, "not a message event")
	}
	if e.Message == nil || e.Message.ID == "" {
		return invalid(e.Kind, "message is required")
	}
	return nil
}
func (MessageEvent) sealed() {}

type IncomingCall struct {
	CallID   domain.CallID             `json:"callId"`
	CallerID domain.UserID             `json:"callerId"`
	Offer    webrtc.SessionDescription `json:"offer"`
}

func (IncomingCall) Name() EventName { return EventIncomingCall }
func (e IncomingCall) Payload() any  { return e }
func (e IncomingCall) Validate() error {
	if e.CallerID == "" {
		return invalid(EventIncomingCall, "callerId is required")
	}
	if e.Offer.Type != webrtc.SDPTypeOffer || e.Offer.SDP == "" {
		return invalid(EventIncomingCall, "offer is required")
	}
	return nil
}
func (IncomingCall) sealed() {}

type CallAnswered struct {
	CallID     domain.CallID             `json:"callId"`
	Answer     webrtc.SessionDescription `json:"answer"`
	AnswererID domain.UserID             `json:"answererId"`
}

func (CallAnswered) Name() EventName { return EventCallAnswered }
func (e CallAnswered) Payload() any  { return e }
func (e CallAnswered) Validate() error {
	if e.AnswererID == "" {
		return invalid(EventCallAnswered, "answererId is required")
	}
	if e.Answer.Type != webrtc.SDPTypeAnswer || e.Answer.SDP == "" {
		return invalid(EventCallAnswered, "answer is required")
	}
	return nil
}
func (CallAnswered) sealed() {}

type IceCandidate struct {
	CallID    domain.CallID           `json:"callId"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
	SenderID  domain.UserID           `json:"senderId"`
}

func (IceCandidate) Name() EventName { return EventIceCandidate }
func (e IceCandidate) Payload() any  { return e }
func (e IceCandidate) Validate() error {
	if e.SenderID == "" {
		return invalid(EventIceCandidate, "senderId is required")
	}
	return nil
}
func (IceCandidate) sealed() {}

type CallRejected struct {
	CallID     domain.CallID `json:"callId"`
	RejecterID domain.UserID `json:"rejecterId"`
}

func (CallRejected) Name() EventName { return EventCallRejected }
func (e CallRejected) Payload() any  { return e }
func (e CallRejected) Validate() error {
	if e.RejecterID == "" {
		return invalid(EventCallRejected, "rejecterId is required")
	}
	return nil
}
func (CallRejected) sealed() {}

type CallEnded struct {
	CallID  domain.CallID `json:"callId"`
	EnderID domain.UserID `json:"enderId"`
}

func (CallEnded) Name() EventName { return EventCallEnded }
func (e CallEnded) Payload() any  { return e }
func (e CallEnded) Validate() error {
	if e.EnderID == "" {
		return invalid(EventCallEnded, "enderId is required")
	}
	return nil
}
func (CallEnded) sealed() {}

type CallFailed struct {
	CallID domain.CallID `json:"callId,omitempty"`
	Error  string        `json:"error"`
}

func (CallFailed) Name() EventName { return EventCallFailed }
func (e CallFailed) Payload() any  { return e }
func (e CallFailed) Validate() error {
	if e.Error == "" {
		return invalid(EventCallFailed, "error is required")
	}
	return nil
}
func (CallFailed) sealed() {}
