package app

import (
	"testing"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
	"github.com/stretchr/testify/require"
)

func msgEvent(id domain.MessageID) core.Event {
	return core.MessageEvent{Kind: core.EventNewMessage, Message: &domain.Message{ID: id, SenderID: "alice", ReceiverID: "bob", Text: "hi"}}
}

func TestRouterOfflineIsNotAnError(t *testing.T) {
	rt := NewRouter(newTestRegistry(), nil)
	require.False(t, rt.SendToPrimary("nobody", msgEvent("m1")))
	require.Zero(t, rt.SendToAllSessions("nobody", msgEvent("m1")))
	require.Zero(t, rt.BroadcastAll(msgEvent("m1")))
}

func TestRouterPrimaryVersusAllSessions(t *testing.T) {
	reg := newTestRegistry()
	rt := NewRouter(reg, nil)
	old := connect(reg, "bob", "b1")
	latest := connect(reg, "bob", "b2")

	require.True(t, rt.SendToPrimary("bob", msgEvent("m1")))
	require.Empty(t, old.events(t))
	require.Len(t, latest.events(t), 1)

	require.Equal(t, 2, rt.SendToAllSessions("bob", msgEvent("m2")))
	require.Len(t, old.events(t), 1)
	require.Len(t, latest.events(t), 2)
}

func TestRouterKeepsPerConnectionOrder(t *testing.T) {
	reg := newTestRegistry()
	rt := NewRouter(reg, nil)
	c := connect(reg, "bob", "b1")

	for _, id := range []domain.MessageID{"m1", "m2", "m3"} {
		rt.SendToAllSessions("bob", msgEvent(id))
	}
	var ids []domain.MessageID
	for _, r := range c.events(t) {
		ids = append(ids, decode[domain.Message](t, r).ID)
	}
	require.Equal(t, []domain.MessageID{"m1", "m2", "m3"}, ids)
}

func TestRouterRefusesInvalidEvent(t *testing.T) {
	reg := newTestRegistry()
	rt := NewRouter(reg, nil)
	c := connect(reg, "bob", "b1")

	require.Zero(t, rt.SendToAllSessions("bob", core.IncomingCall{CallerID: "alice"}))
	require.False(t, rt.SendToPrimary("bob", core.MessageEvent{Kind: core.EventNewMessage}))
	require.Empty(t, c.events(t))
}

func TestRouterBackpressurePolicy(t *testing.T) {
	reg := newTestRegistry()
	slow := connect(reg, "bob", "b1")
	slow.full = true

	require.False(t, NewRouter(reg, LenientPolicy{}).SendToPrimary("bob", msgEvent("m1")))
	require.False(t, slow.isClosed())

	require.False(t, NewRouter(reg, SimplePolicy{}).SendToPrimary("bob", msgEvent("m1")))
	require.True(t, slow.isClosed())
}

func TestRouterBroadcastAll(t *testing.T) {
	reg := newTestRegistry()
	rt := NewRouter(reg, nil)
	a := connect(reg, "alice", "a1")
	b1 := connect(reg, "bob", "b1")
	b2 := connect(reg, "bob", "b2")

	require.Equal(t, 3, rt.BroadcastAll(core.PresenceChanged{UserIDs: []domain.UserID{"alice", "bob"}}))
	for _, c := range []*fakeConn{a, b1, b2} {
		require.Len(t, c.named(t, core.EventPresenceChanged), 1)
	}
}
