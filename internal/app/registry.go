package app

import (
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
	"github.com/rs/zerolog/log"
)

type presenceEntry struct {
	sessions map[core.SessionID]*core.Session
	primary  core.SessionID
}

// Registry is the ConnectionRegistry: the only owner of live session state.
// All reads and writes go through mu; callers only ever get copies.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[core.SessionID]*core.Session
	users     map[domain.UserID]*presenceEntry
	listeners []func()
	now       func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*core.Session),
		users:    make(map[domain.UserID]*presenceEntry),
		now:      time.Now,
	}
}

// Subscribe registers fn to run after every state-changing mutation.
// fn runs outside the registry lock.
func (r *Registry) Subscribe(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Registry) notify() {
	r.mu.RLock()
	listeners := slices.Clone(r.listeners)
	r.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

// Register adds sid to the user's session set and makes it primary.
// Registering the same sid again only refreshes the handle. A handle that
// gets replaced, by a reconnect or by the sid moving to another user, is
// closed.
func (r *Registry) Register(uid domain.UserID, sid core.SessionID, conn core.SignalConnection) {
	r.mu.Lock()
	changed, displaced := r.registerLocked(uid, sid, conn)
	r.mu.Unlock()

	if displaced != nil {
		log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(uid)).Msg("closing displaced connection")
		displaced.Close()
	}
	if changed {
		log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(uid)).Msg("registered session")
		r.notify()
	}
}

func (r *Registry) registerLocked(uid domain.UserID, sid core.SessionID, conn core.SignalConnection) (bool, core.SignalConnection) {
	var displaced core.SignalConnection
	if existing, ok := r.sessions[sid]; ok {
		if existing.Conn != conn {
			displaced = existing.Conn
		}
		if existing.UserID == uid {
			existing.Conn = conn
			r.users[uid].primary = sid
			return false, displaced
		}
		r.removeLocked(sid)
	}

	sess := &core.Session{ID: sid, UserID: uid, Conn: conn, ConnectedAt: r.now()}
	r.sessions[sid] = sess
	entry, ok := r.users[uid]
	if !ok {
		entry = &presenceEntry{sessions: make(map[core.SessionID]*core.Session)}
		r.users[uid] = entry
	}
	entry.sessions[sid] = sess
	entry.primary = sid
	return true, displaced
}

// Unregister removes sid. Unknown sids are a no-op and report false.
func (r *Registry) Unregister(sid core.SessionID) (core.Session, bool) {
	r.mu.Lock()
	sess, ok := r.removeLocked(sid)
	r.mu.Unlock()
	if !ok {
		return core.Session{}, false
	}

	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(sess.UserID)).Msg("unregistered session")
	r.notify()
	return sess, true
}

// UnregisterConn removes sid only while conn is still its handle, so a
// socket that was replaced cannot remove its successor.
func (r *Registry) UnregisterConn(sid core.SessionID, conn core.SignalConnection) (core.Session, bool) {
	r.mu.Lock()
	var (
		sess core.Session
		ok   bool
	)
	if cur, found := r.sessions[sid]; found && cur.Conn == conn {
		sess, ok = r.removeLocked(sid)
	}
	r.mu.Unlock()
	if !ok {
		return core.Session{}, false
	}

	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(sess.UserID)).Msg("unregistered session")
	r.notify()
	return sess, true
}

func (r *Registry) removeLocked(sid core.SessionID) (core.Session, bool) {
	sess, ok := r.sessions[sid]
	if !ok {
		return core.Session{}, false
	}
	delete(r.sessions, sid)

	entry := r.users[sess.UserID]
	delete(entry.sessions, sid)
	if len(entry.sessions) == 0 {
		delete(r.users, sess.UserID)
		return *sess, true
	}
	if entry.primary == sid {
		entry.primary = newest(entry.sessions)
	}
	return *sess, true
}

func newest(set map[core.SessionID]*core.Session) core.SessionID {
	var best *core.Session
	for _, s := range set {
		if best == nil || s.ConnectedAt.After(best.ConnectedAt) ||
			(s.ConnectedAt.Equal(best.ConnectedAt) && s.ID > best.ID) {
			best = s
		}
	}
	return best.ID
}

func (r *Registry) Lookup(sid core.SessionID) (core.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.sessions[sid]; ok {
		return *s, true
	}
	return core.Session{}, false
}

// AllSessions never returns nil.
func (r *Registry) AllSessions(uid domain.UserID) []core.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.users[uid]
	if !ok {
		return []core.SessionID{}
	}
	out := make([]core.SessionID, 0, len(entry.sessions))
	for sid := range entry.sessions {
		out = append(out, sid)
	}
	slices.Sort(out)
	return out
}

func (r *Registry) PrimarySession(uid domain.UserID) (core.SessionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.users[uid]; ok {
		return entry.primary, true
	}
	return "", false
}

func (r *Registry) IsOnline(uid domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[uid]
	return ok
}

// OnlineUserIDs returns the presence set sorted for stable broadcasts.
func (r *Registry) OnlineUserIDs() []domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.UserID, 0, len(r.users))
	for uid := range r.users {
		out = append(out, uid)
	}
	slices.Sort(out)
	return out
}

func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) primaryOf(uid domain.UserID) (core.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.users[uid]
	if !ok {
		return core.Session{}, false
	}
	return *entry.sessions[entry.primary], true
}

func (r *Registry) sessionsOf(uid domain.UserID) []core.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.users[uid]
	if !ok {
		return nil
	}
	out := make([]core.Session, 0, len(entry.sessions))
	for _, s := range entry.sessions {
		out = append(out, *s)
	}
	return out
}

func (r *Registry) snapshot() []core.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	return out
}
