package orch

import (
	"github.com/dkeye/Parley/internal/app"
	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
	"github.com/rs/zerolog/log"
)

// Orchestrator glues the connection lifecycle to the core services.
type Orchestrator struct {
	Registry  *app.Registry
	Router    *app.Router
	Presence  *app.PresenceTracker
	Signaling *app.Signaling
	Messages  *app.Messages
}

// New wires the core services around one registry. A nil store leaves
// Messages unset; a nil offline notifier disables offline hand-off.
func New(policy app.Policy, store core.MessageStore, offline app.OfflineNotifier, cfg Options) *Orchestrator {
	reg := app.NewRegistry()
	router := app.NewRouter(reg, policy)
	o := &Orchestrator{
		Registry:  reg,
		Router:    router,
		Presence:  app.NewPresenceTracker(reg, router),
		Signaling: app.NewSignaling(reg, router, cfg.RingTimeout),
	}
	if store != nil {
		o.Messages = app.NewMessages(store, router, offline)
	}
	return o
}

// OnConnect registers a live session. Presence is broadcast by the tracker.
func (o *Orchestrator) OnConnect(uid domain.UserID, sid core.SessionID, conn core.SignalConnection) {
	o.Registry.Register(uid, sid, conn)
}

// OnDisconnect unregisters the session and ends any call it was carrying.
// Unknown sessions are ignored, so calling it twice is safe.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	if sess, ok := o.Registry.Unregister(sid); ok {
		o.closed(sess)
	}
}

// OnConnClosed is OnDisconnect for a transport that may have been replaced
// under the same session id: only the current handle unregisters.
func (o *Orchestrator) OnConnClosed(sid core.SessionID, conn core.SignalConnection) {
	if sess, ok := o.Registry.UnregisterConn(sid, conn); ok {
		o.closed(sess)
	}
}

func (o *Orchestrator) closed(sess core.Session) {
	remaining := len(o.Registry.AllSessions(sess.UserID))
	log.Debug().Str("module", "orch").Str("sid", string(sess.ID)).Str("user", string(sess.UserID)).Int("remaining", remaining).Msg("session closed")
	o.Signaling.OnSessionClosed(sess.UserID, sess.ID, remaining)
}
