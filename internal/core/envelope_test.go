package core

import (
	"testing"

	"github.com/dkeye/Parley/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

func TestEncodeEventShape(t *testing.T) {
	frame, err := EncodeEvent(CallEnded{CallID: "c1", EnderID: "bob"})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"event","event":"callEnded","payload":{"callId":"c1","enderId":"bob"}}`, string(frame))

	frame, err = EncodeEvent(IncomingCall{CallID: "c1", CallerID: "alice", Offer: webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"event","event":"incomingCall","payload":{"callId":"c1","callerId":"alice","offer":{"type":"offer","sdp":"v=0"}}}`, string(frame))
}

func TestEncodeEventRejectsInvalid(t *testing.T) {
	invalidEvents := []Event{
		nil,
		IncomingCall{CallerID: "alice"},
		CallAnswered{AnswererID: "bob", Answer: webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}},
		IceCandidate{},
		CallRejected{},
		CallEnded{},
		CallFailed{},
		MessageEvent{Kind: EventNewMessage},
		MessageEvent{Kind: EventCallEnded, Message: &domain.Message{ID: "m1"}},
	}
	for _, e := range invalidEvents {
		_, err := EncodeEvent(e)
		require.ErrorIs(t, err, ErrInvalidEvent)
	}
}

func TestEncodeControl(t *testing.T) {
	frame, err := EncodeControl(EnvelopePong, nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"pong"}`, string(frame))

	frame, err = EncodeControl(EnvelopeError, ErrorPayload{Error: "rate_limited"})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"error","payload":{"error":"rate_limited"}}`, string(frame))
}
