package app

import (
	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
	"github.com/rs/zerolog/log"
)

// Router is the EventRouter. It never reports an offline user as an error.
type Router struct {
	Registry *Registry
	Policy   Policy
}

func NewRouter(reg *Registry, policy Policy) *Router {
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Router{Registry: reg, Policy: policy}
}

// SendToPrimary delivers e to the user's most recent session only.
func (rt *Router) SendToPrimary(uid domain.UserID, e core.Event) bool {
	sess, ok := rt.Registry.primaryOf(uid)
	if !ok {
		log.Debug().Str("module", "app.router").Str("user", string(uid)).Str("event", string(e.Name())).Msg("primary: user offline")
		return false
	}
	frame, ok := rt.encode(e)
	if !ok {
		return false
	}
	return rt.push(sess, e.Name(), frame)
}

// SendToAllSessions delivers e to every session of the user.
func (rt *Router) SendToAllSessions(uid domain.UserID, e core.Event) int {
	sessions := rt.Registry.sessionsOf(uid)
	if len(sessions) == 0 {
		return 0
	}
	frame, ok := rt.encode(e)
	if !ok {
		return 0
	}
	return rt.fanOut(sessions, e.Name(), frame)
}

// BroadcastAll delivers e to every registered connection.
func (rt *Router) BroadcastAll(e core.Event) int {
	frame, ok := rt.encode(e)
	if !ok {
		return 0
	}
	return rt.fanOut(rt.Registry.snapshot(), e.Name(), frame)
}

func (rt *Router) fanOut(sessions []core.Session, name core.EventName, frame core.Frame) int {
	sent := 0
	for _, s := range sessions {
		if rt.push(s, name, frame) {
			sent++
		}
	}
	log.Debug().Str("module", "app.router").Str("event", string(name)).Int("sent_to", sent).Int("targets", len(sessions)).Msg("fan-out result")
	return sent
}

func (rt *Router) encode(e core.Event) (core.Frame, bool) {
	frame, err := core.EncodeEvent(e)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Msg("refusing to send invalid event")
		return nil, false
	}
	return frame, true
}

func (rt *Router) push(s core.Session, name core.EventName, frame core.Frame) bool {
	if s.Conn == nil {
		return false
	}
	err := s.Conn.TrySend(frame)
	if err == nil {
		return true
	}
	log.Warn().Err(err).Str("module", "app.router").Str("sid", string(s.ID)).Str("event", string(name)).Msg("send failed")
	if rt.Policy.OnBackPressure(s, name) == CloseSession {
		s.Conn.Close()
	}
	return false
}
