// Package rtc holds the WebRTC payload helpers. The server never terminates
// media; it only checks what it relays.
package rtc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"
)

var (
	ErrBadSDP       = errors.New("bad session description")
	ErrBadCandidate = errors.New("bad ice candidate")
)

const maxCandidateLen = 1024

// ValidateSessionDescription checks the type and that the SDP parses.
func ValidateSessionDescription(sd webrtc.SessionDescription, want webrtc.SDPType) error {
	if sd.Type != want {
		return fmt.Errorf("%w: expected %s, got %s", ErrBadSDP, want, sd.Type)
	}
	if strings.TrimSpace(sd.SDP) == "" {
		return fmt.Errorf("%w: empty sdp", ErrBadSDP)
	}
	if _, err := sd.Unmarshal(); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSDP, err)
	}
	return nil
}

// ValidateCandidate accepts the empty end-of-candidates marker.
func ValidateCandidate(c webrtc.ICECandidateInit) error {
	if len(c.Candidate) > maxCandidateLen {
		return fmt.Errorf("%w: too long", ErrBadCandidate)
	}
	if c.Candidate != "" && !strings.HasPrefix(c.Candidate, "candidate:") {
		return fmt.Errorf("%w: missing candidate prefix", ErrBadCandidate)
	}
	return nil
}

// ICEServers turns configured urls into the list clients get from
// /api/rtc/config.
func ICEServers(urls []string) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, webrtc.ICEServer{URLs: []string{u}})
		}
	}
	return out
}

// Configuration is what clients feed into their RTCPeerConnection. policy is
// "all" or "relay"; anything else means all.
func Configuration(urls []string, policy string) webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers:         ICEServers(urls),
		ICETransportPolicy: webrtc.NewICETransportPolicy(policy),
	}
}
