package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrTargetOffline = errors.New("target offline")
	ErrBusy          = errors.New("busy")
	ErrNoActiveCall  = errors.New("no active call")
)

// Failure reasons sent to the caller in callFailed.
const (
	FailureTargetOffline = "target offline"
	FailureBusy          = "busy"
	FailureNoAnswer      = "no answer"
	FailureInvalidOffer  = "invalid offer"
	FailureInvalidTarget = "invalid target"
	FailureNoActiveCall  = "no active call"
)

type callState struct {
	id        domain.CallID
	caller    domain.UserID
	callee    domain.UserID
	status    domain.CallStatus
	offer     webrtc.SessionDescription
	answer    *webrtc.SessionDescription
	callerSID core.SessionID
	calleeSID core.SessionID
	createdAt time.Time
	timer     *time.Timer
}

func (c *callState) counterpart(uid domain.UserID) (domain.UserID, bool) {
	switch uid {
	case c.caller:
		return c.callee, true
	case c.callee:
		return c.caller, true
	}
	return "", false
}

// CallInfo is a read-only view of an active call.
type CallInfo struct {
	ID        domain.CallID     `json:"id"`
	CallerID  domain.UserID     `json:"callerId"`
	CalleeID  domain.UserID     `json:"calleeId"`
	Status    domain.CallStatus `json:"-"`
	StatusStr string            `json:"status"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Signaling is the SignalingRelay: a per-call state machine
// Ringing -> Connected -> Ended, with Rejected and Failed as the other
// terminal states. Terminal calls are discarded immediately, so at most one
// live call exists per user.
type Signaling struct {
	mu     sync.Mutex
	calls  map[domain.CallID]*callState
	byUser map[domain.UserID]*callState

	registry    *Registry
	router      *Router
	ringTimeout time.Duration
	newID       func() domain.CallID
}

// NewSignaling builds the relay. ringTimeout <= 0 disables the ringing timeout.
func NewSignaling(reg *Registry, router *Router, ringTimeout time.Duration) *Signaling {
	return &Signaling{
		calls:       make(map[domain.CallID]*callState),
		byUser:      make(map[domain.UserID]*callState),
		registry:    reg,
		router:      router,
		ringTimeout: ringTimeout,
		newID:       func() domain.CallID { return domain.CallID(uuid.NewString()) },
	}
}

func (s *Signaling) fail(caller domain.UserID, id domain.CallID, reason string) {
	s.router.SendToAllSessions(caller, core.CallFailed{CallID: id, Error: reason})
}

// InitiateCall creates a Ringing call and rings every session of the callee.
// A callee without sessions gets no call state and the caller gets callFailed.
func (s *Signaling) InitiateCall(caller domain.UserID, callerSID core.SessionID, callee domain.UserID, offer webrtc.SessionDescription) (domain.CallID, error) {
	logger := log.With().Str("module", "app.signaling").Str("caller", string(caller)).Str("callee", string(callee)).Logger()

	s.mu.Lock()
	defer s.mu.Unlock()

	if callee == "" || callee == caller {
		s.fail(caller, "", FailureInvalidTarget)
		return "", fmt.Errorf("%w: invalid callee", domain.ErrValidation)
	}
	if offer.Type != webrtc.SDPTypeOffer || offer.SDP == "" {
		s.fail(caller, "", FailureInvalidOffer)
		return "", fmt.Errorf("%w: offer is required", domain.ErrValidation)
	}
	if len(s.registry.AllSessions(callee)) == 0 {
		logger.Info().Msg("call target offline")
		s.fail(caller, "", FailureTargetOffline)
		return "", ErrTargetOffline
	}
	if s.byUser[caller] != nil || s.byUser[callee] != nil {
		logger.Info().Msg("call rejected: busy")
		s.fail(caller, "", FailureBusy)
		return "", ErrBusy
	}

	c := &callState{
		id:        s.newID(),
		caller:    caller,
		callee:    callee,
		status:    domain.CallRinging,
		offer:     offer,
		callerSID: callerSID,
		createdAt: time.Now(),
	}
	s.calls[c.id] = c
	s.byUser[caller] = c
	s.byUser[callee] = c

	if s.router.SendToAllSessions(callee, core.IncomingCall{CallID: c.id, CallerID: caller, Offer: offer}) == 0 {
		// sessions vanished between the lookup and the send
		s.discardLocked(c, domain.CallFailed)
		s.fail(caller, c.id, FailureTargetOffline)
		return "", ErrTargetOffline
	}
	if s.ringTimeout > 0 {
		id := c.id
		c.timer = time.AfterFunc(s.ringTimeout, func() { s.expire(id) })
	}
	logger.Info().Str("call_id", string(c.id)).Msg("ringing")
	return c.id, nil
}

// AnswerCall moves a Ringing call to Connected. Connected means signaling
// is complete; media success is only visible to the clients.
func (s *Signaling) AnswerCall(callee domain.UserID, calleeSID core.SessionID, caller domain.UserID, answer webrtc.SessionDescription) error {
	if answer.Type != webrtc.SDPTypeAnswer || answer.SDP == "" {
		return fmt.Errorf("%w: answer is required", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.byUser[callee]
	if c == nil || c.callee != callee || c.caller != caller || c.status != domain.CallRinging {
		return ErrNoActiveCall
	}
	c.stopTimer()
	c.answer = &answer
	c.status = domain.CallConnected
	c.calleeSID = calleeSID

	s.router.SendToAllSessions(caller, core.CallAnswered{CallID: c.id, Answer: answer, AnswererID: callee})
	log.Info().Str("module", "app.signaling").Str("call_id", string(c.id)).Msg("call connected")
	return nil
}

// RelayIceCandidate forwards a candidate to the counterpart of a live call.
// Without a matching call, or without a live session on the other side,
// the candidate is dropped.
func (s *Signaling) RelayIceCandidate(from, to domain.UserID, candidate webrtc.ICECandidateInit) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.byUser[from]
	if c == nil || c.status.Terminal() {
		return false
	}
	if peer, ok := c.counterpart(from); !ok || peer != to {
		return false
	}
	return s.router.SendToAllSessions(to, core.IceCandidate{CallID: c.id, Candidate: candidate, SenderID: from}) > 0
}

func (s *Signaling) RejectCall(callee, caller domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.byUser[callee]
	if c == nil || c.callee != callee || c.caller != caller || c.status != domain.CallRinging {
		return ErrNoActiveCall
	}
	s.discardLocked(c, domain.CallRejected)
	s.router.SendToAllSessions(caller, core.CallRejected{CallID: c.id, RejecterID: callee})
	return nil
}

func (s *Signaling) EndCall(ender, counterpart domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.byUser[ender]
	if c == nil {
		return ErrNoActiveCall
	}
	if peer, ok := c.counterpart(ender); !ok || peer != counterpart {
		return ErrNoActiveCall
	}
	s.endLocked(c, ender)
	return nil
}

// OnSessionClosed applies endCall semantics when a participant drops.
// The call ends if the closed session is the one carrying the call, or if
// the user has no sessions left.
func (s *Signaling) OnSessionClosed(uid domain.UserID, sid core.SessionID, remaining int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.byUser[uid]
	if c == nil {
		return
	}
	bound := (uid == c.caller && sid == c.callerSID) || (uid == c.callee && sid == c.calleeSID)
	if !bound && remaining > 0 {
		return
	}
	log.Info().Str("module", "app.signaling").Str("call_id", string(c.id)).Str("user", string(uid)).Str("sid", string(sid)).Msg("participant disconnected, ending call")
	s.endLocked(c, uid)
}

func (s *Signaling) endLocked(c *callState, ender domain.UserID) {
	peer, _ := c.counterpart(ender)
	s.discardLocked(c, domain.CallEnded)
	s.router.SendToAllSessions(peer, core.CallEnded{CallID: c.id, EnderID: ender})
}

func (s *Signaling) expire(id domain.CallID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.calls[id]
	if !ok || c.status != domain.CallRinging {
		return
	}
	log.Info().Str("module", "app.signaling").Str("call_id", string(id)).Dur("timeout", s.ringTimeout).Msg("ringing timed out")
	s.discardLocked(c, domain.CallFailed)
	s.fail(c.caller, c.id, FailureNoAnswer)
	s.router.SendToAllSessions(c.callee, core.CallEnded{CallID: c.id, EnderID: c.caller})
}

func (s *Signaling) discardLocked(c *callState, final domain.CallStatus) {
	c.stopTimer()
	c.status = final
	delete(s.calls, c.id)
	if s.byUser[c.caller] == c {
		delete(s.byUser, c.caller)
	}
	if s.byUser[c.callee] == c {
		delete(s.byUser, c.callee)
	}
	log.Debug().Str("module", "app.signaling").Str("call_id", string(c.id)).Str("status", final.String()).Msg("call discarded")
}

func (c *callState) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// ActiveCall reports the live call the user takes part in, if any.
func (s *Signaling) ActiveCall(uid domain.UserID) (CallInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.byUser[uid]
	if c == nil {
		return CallInfo{}, false
	}
	return CallInfo{
		ID:        c.id,
		CallerID:  c.caller,
		CalleeID:  c.callee,
		Status:    c.status,
		StatusStr: c.status.String(),
		CreatedAt: c.createdAt,
	}, true
}

func (s *Signaling) ActiveCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
