package signal

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/Parley/internal/adapters/rtc"
	"github.com/dkeye/Parley/internal/app"
	"github.com/dkeye/Parley/internal/core"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleCommand(c *WsSignalConn, name core.EventName, payload json.RawMessage) {
	switch name {
	case core.CommandCallUser:
		ctl.handleCallUser(c, payload)
	case core.CommandAnswerCall:
		ctl.handleAnswerCall(c, payload)
	case core.CommandIceCandidate:
		ctl.handleIceCandidate(c, payload)
	case core.CommandRejectCall:
		ctl.handleRejectCall(c, payload)
	case core.CommandEndCall:
		ctl.handleEndCall(c, payload)
	default:
		log.Warn().Str("module", "signal").Str("event", string(name)).Msg("unknown command")
		ctl.sendError(c, "unknown_event")
	}
}

func (ctl *SignalWSController) decode(c *WsSignalConn, name core.EventName, payload json.RawMessage, v any) bool {
	if err := json.Unmarshal(payload, v); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("event", string(name)).Msg("bad payload")
		ctl.sendError(c, "bad_payload")
		return false
	}
	return true
}

func (ctl *SignalWSController) handleCallUser(c *WsSignalConn, payload json.RawMessage) {
	var cmd core.CallUserCommand
	if !ctl.decode(c, core.CommandCallUser, payload, &cmd) {
		return
	}
	if err := rtc.ValidateSessionDescription(cmd.Offer, webrtc.SDPTypeOffer); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Msg("callUser: invalid offer")
		ctl.sendEvent(c, core.CallFailed{Error: app.FailureInvalidOffer})
		return
	}
	// failures are already reported to the caller as callFailed
	if _, err := ctl.Orch.Signaling.InitiateCall(c.uid, c.sid, cmd.CalleeID, cmd.Offer); err != nil {
		log.Info().Err(err).Str("module", "signal").Str("user", string(c.uid)).Str("callee", string(cmd.CalleeID)).Msg("callUser failed")
	}
}

func (ctl *SignalWSController) handleAnswerCall(c *WsSignalConn, payload json.RawMessage) {
	var cmd core.AnswerCallCommand
	if !ctl.decode(c, core.CommandAnswerCall, payload, &cmd) {
		return
	}
	if err := rtc.ValidateSessionDescription(cmd.Answer, webrtc.SDPTypeAnswer); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Msg("answerCall: invalid answer")
		ctl.sendError(c, "invalid_answer")
		return
	}
	err := ctl.Orch.Signaling.AnswerCall(c.uid, c.sid, cmd.CallerID, cmd.Answer)
	switch {
	case err == nil:
	case errors.Is(err, app.ErrNoActiveCall):
		ctl.sendEvent(c, core.CallFailed{Error: app.FailureNoActiveCall})
	default:
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Msg("answerCall failed")
		ctl.sendError(c, "invalid_answer")
	}
}

func (ctl *SignalWSController) handleIceCandidate(c *WsSignalConn, payload json.RawMessage) {
	var cmd core.IceCandidateCommand
	if !ctl.decode(c, core.CommandIceCandidate, payload, &cmd) {
		return
	}
	if err := rtc.ValidateCandidate(cmd.Candidate); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Msg("iceCandidate: invalid candidate")
		return
	}
	if !ctl.Orch.Signaling.RelayIceCandidate(c.uid, cmd.ToUserID, cmd.Candidate) {
		log.Debug().Str("module", "signal").Str("user", string(c.uid)).Str("to", string(cmd.ToUserID)).Msg("iceCandidate dropped")
	}
}

func (ctl *SignalWSController) handleRejectCall(c *WsSignalConn, payload json.RawMessage) {
	var cmd core.RejectCallCommand
	if !ctl.decode(c, core.CommandRejectCall, payload, &cmd) {
		return
	}
	if err := ctl.Orch.Signaling.RejectCall(c.uid, cmd.CallerID); errors.Is(err, app.ErrNoActiveCall) {
		ctl.sendEvent(c, core.CallFailed{Error: app.FailureNoActiveCall})
	}
}

func (ctl *SignalWSController) handleEndCall(c *WsSignalConn, payload json.RawMessage) {
	var cmd core.EndCallCommand
	if !ctl.decode(c, core.CommandEndCall, payload, &cmd) {
		return
	}
	if err := ctl.Orch.Signaling.EndCall(c.uid, cmd.CounterpartID); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("user", string(c.uid)).Msg("endCall ignored")
	}
}
