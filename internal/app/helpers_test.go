package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
	"github.com/stretchr/testify/require"
)

var errFull = errors.New("buffer full")

// fakeConn records frames instead of writing to a socket.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("closed")
	}
	if c.full {
		return errFull
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type received struct {
	Type    core.EnvelopeType `json:"type"`
	Event   core.EventName    `json:"event"`
	Payload json.RawMessage   `json:"payload"`
}

func (c *fakeConn) events(t *testing.T) []received {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]received, 0, len(c.frames))
	for _, f := range c.frames {
		var r received
		require.NoError(t, json.Unmarshal(f, &r))
		out = append(out, r)
	}
	return out
}

// named drops presence broadcasts and keeps events of the given name.
func (c *fakeConn) named(t *testing.T, name core.EventName) []received {
	t.Helper()
	var out []received
	for _, r := range c.events(t) {
		if r.Event == name {
			out = append(out, r)
		}
	}
	return out
}

func (c *fakeConn) nonPresence(t *testing.T) []received {
	t.Helper()
	var out []received
	for _, r := range c.events(t) {
		if r.Event != core.EventPresenceChanged {
			out = append(out, r)
		}
	}
	return out
}

func decode[T any](t *testing.T, r received) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(r.Payload, &v))
	return v
}

// tickingClock hands out strictly increasing instants.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Unix(1_700_000_000, 0)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func newTestRegistry() *Registry {
	r := NewRegistry()
	r.now = tickingClock()
	return r
}

func connect(r *Registry, uid domain.UserID, sid core.SessionID) *fakeConn {
	c := &fakeConn{}
	r.Register(uid, sid, c)
	return c
}

// memStore is a minimal MessageStore with switchable write failures.
type memStore struct {
	mu        sync.Mutex
	messages  map[domain.MessageID]*domain.Message
	groups    map[domain.GroupID]*domain.Group
	failWrite error
	writes    int
}

func newMemStore() *memStore {
	return &memStore{
		messages: make(map[domain.MessageID]*domain.Message),
		groups:   make(map[domain.GroupID]*domain.Group),
	}
}

func (s *memStore) CreateMessage(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite != nil {
		return s.failWrite
	}
	s.writes++
	s.messages[m.ID] = m.Clone()
	return nil
}

func (s *memStore) FindMessage(_ context.Context, id domain.MessageID) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	return m.Clone(), nil
}

func (s *memStore) UpdateMessage(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite != nil {
		return s.failWrite
	}
	if _, ok := s.messages[m.ID]; !ok {
		return domain.ErrMessageNotFound
	}
	s.writes++
	s.messages[m.ID] = m.Clone()
	return nil
}

func (s *memStore) FindGroup(_ context.Context, id domain.GroupID) (*domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, domain.ErrGroupNotFound
	}
	cp := *g
	return &cp, nil
}

func (s *memStore) stored(id domain.MessageID) *domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[id].Clone()
}

type offlineCall struct {
	uid   domain.UserID
	event core.EventName
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []offlineCall
	err   error
}

func (n *recordingNotifier) NotifyOffline(_ context.Context, uid domain.UserID, e core.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, offlineCall{uid: uid, event: e.Name()})
	return n.err
}
