package app

import (
	"context"
	"errors"
	"testing"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
	"github.com/stretchr/testify/require"
)

type msgFixture struct {
	reg     *Registry
	store   *memStore
	offline *recordingNotifier
	ms      *Messages
}

func newMsgFixture() msgFixture {
	reg := newTestRegistry()
	st := newMemStore()
	off := &recordingNotifier{}
	ms := NewMessages(st, NewRouter(reg, nil), off)
	return msgFixture{reg: reg, store: st, offline: off, ms: ms}
}

func (f msgFixture) sendDirect(t *testing.T, from, to domain.UserID, text string) *domain.Message {
	t.Helper()
	m, err := f.ms.SendMessage(context.Background(), &domain.Message{SenderID: from, ReceiverID: to, Text: text})
	require.NoError(t, err)
	return m
}

func TestSendDirectMessageReachesPrimaryOnly(t *testing.T) {
	f := newMsgFixture()
	a := connect(f.reg, "alice", "a1")
	old := connect(f.reg, "bob", "b1")
	primary := connect(f.reg, "bob", "b2")

	m := f.sendDirect(t, "alice", "bob", "hello")
	require.NotEmpty(t, m.ID)
	require.False(t, m.CreatedAt.IsZero())
	require.NotNil(t, m.Reactions)
	require.Equal(t, m, f.store.stored(m.ID))

	got := primary.named(t, core.EventNewMessage)
	require.Len(t, got, 1)
	require.Equal(t, m.ID, decode[domain.Message](t, got[0]).ID)
	require.Empty(t, old.nonPresence(t))
	require.Empty(t, a.nonPresence(t))
	require.Empty(t, f.offline.calls)
}

func TestSendToOfflineUserGoesToNotifier(t *testing.T) {
	f := newMsgFixture()
	connect(f.reg, "alice", "a1")
	f.offline.err = errors.New("broker down")

	m := f.sendDirect(t, "alice", "bob", "are you there?")
	require.NotEmpty(t, m.ID)
	require.Equal(t, []offlineCall{{uid: "bob", event: core.EventNewMessage}}, f.offline.calls)
}

func TestSendMessageValidation(t *testing.T) {
	f := newMsgFixture()
	ctx := context.Background()

	cases := map[string]*domain.Message{
		"empty":         {SenderID: "alice", ReceiverID: "bob"},
		"no target":     {SenderID: "alice", Text: "hi"},
		"both targets":  {SenderID: "alice", ReceiverID: "bob", GroupID: "g1", Text: "hi"},
		"media no url":  {SenderID: "alice", ReceiverID: "bob", MediaType: domain.MediaImage},
		"unknown media": {SenderID: "alice", ReceiverID: "bob", MediaType: "hologram", MediaURL: "x"},
	}
	for name, draft := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.ms.SendMessage(ctx, draft)
			require.ErrorIs(t, err, domain.ErrValidation)
		})
	}
	require.Zero(t, f.store.writes)
}

func TestSendMessagePersistFailureBroadcastsNothing(t *testing.T) {
	f := newMsgFixture()
	b := connect(f.reg, "bob", "b1")
	boom := errors.New("disk full")
	f.store.failWrite = boom

	_, err := f.ms.SendMessage(context.Background(), &domain.Message{SenderID: "alice", ReceiverID: "bob", Text: "hi"})
	require.ErrorIs(t, err, boom)
	require.Empty(t, b.nonPresence(t))
	require.Empty(t, f.offline.calls)
}

func TestGroupMessageFanOut(t *testing.T) {
	f := newMsgFixture()
	f.store.groups["g1"] = &domain.Group{ID: "g1", Members: []domain.UserID{"alice", "bob", "carol", "dave"}}
	a := connect(f.reg, "alice", "a1")
	bOld := connect(f.reg, "bob", "b1")
	bNew := connect(f.reg, "bob", "b2")
	c := connect(f.reg, "carol", "c1")

	m, err := f.ms.SendMessage(context.Background(), &domain.Message{SenderID: "alice", GroupID: "g1", Text: "team"})
	require.NoError(t, err)

	require.Empty(t, a.nonPresence(t))
	require.Empty(t, bOld.nonPresence(t))
	require.Len(t, bNew.named(t, core.EventNewGroupMessage), 1)
	require.Len(t, c.named(t, core.EventNewGroupMessage), 1)
	require.Equal(t, []offlineCall{{uid: "dave", event: core.EventNewGroupMessage}}, f.offline.calls)
	require.Equal(t, domain.GroupID("g1"), m.GroupID)
}

func TestNotifyNewMessageForPersistedMessages(t *testing.T) {
	f := newMsgFixture()
	ctx := context.Background()
	f.store.groups["g1"] = &domain.Group{ID: "g1", Members: []domain.UserID{"alice", "bob", "carol"}}
	a := connect(f.reg, "alice", "a1")
	bOld := connect(f.reg, "bob", "b1")
	bNew := connect(f.reg, "bob", "b2")
	c := connect(f.reg, "carol", "c1")

	direct := &domain.Message{ID: "m1", SenderID: "alice", ReceiverID: "bob", Text: "hi", Reactions: []domain.Reaction{}}
	require.NoError(t, f.ms.NotifyNewMessage(ctx, direct))
	got := bNew.named(t, core.EventNewMessage)
	require.Len(t, got, 1)
	require.Equal(t, domain.MessageID("m1"), decode[domain.Message](t, got[0]).ID)
	require.Empty(t, bOld.nonPresence(t))
	require.Empty(t, a.nonPresence(t))
	require.Empty(t, c.nonPresence(t))

	group := &domain.Message{ID: "m2", SenderID: "alice", GroupID: "g1", Text: "team", Reactions: []domain.Reaction{}}
	require.NoError(t, f.ms.NotifyNewMessage(ctx, group))
	require.Len(t, bNew.named(t, core.EventNewGroupMessage), 1)
	require.Len(t, c.named(t, core.EventNewGroupMessage), 1)
	require.Empty(t, bOld.nonPresence(t))
	require.Empty(t, a.nonPresence(t))

	lost := &domain.Message{ID: "m3", SenderID: "alice", GroupID: "nope", Text: "hello?", Reactions: []domain.Reaction{}}
	require.ErrorIs(t, f.ms.NotifyNewMessage(ctx, lost), domain.ErrGroupNotFound)
	require.Len(t, bNew.nonPresence(t), 2)
	require.Len(t, c.nonPresence(t), 1)
	require.Empty(t, f.offline.calls)
	require.Zero(t, f.store.writes)
}

func TestGroupMessageRequiresMembership(t *testing.T) {
	f := newMsgFixture()
	f.store.groups["g1"] = &domain.Group{ID: "g1", Members: []domain.UserID{"bob"}}
	ctx := context.Background()

	_, err := f.ms.SendMessage(ctx, &domain.Message{SenderID: "alice", GroupID: "g1", Text: "let me in"})
	require.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = f.ms.SendMessage(ctx, &domain.Message{SenderID: "alice", GroupID: "nope", Text: "hi"})
	require.ErrorIs(t, err, domain.ErrGroupNotFound)
	require.Zero(t, f.store.writes)
}

func TestReactionToggleIsInvolution(t *testing.T) {
	f := newMsgFixture()
	ctx := context.Background()
	a1 := connect(f.reg, "alice", "a1")
	a2 := connect(f.reg, "alice", "a2")
	b := connect(f.reg, "bob", "b1")
	m := f.sendDirect(t, "alice", "bob", "hello")

	added, err := f.ms.AddReaction(ctx, m.ID, "bob", "👍")
	require.NoError(t, err)
	require.Len(t, added.Reactions, 1)
	require.Equal(t, domain.UserID("bob"), added.Reactions[0].UserID)

	removed, err := f.ms.AddReaction(ctx, m.ID, "bob", "👍")
	require.NoError(t, err)
	require.Empty(t, removed.Reactions)
	require.Empty(t, f.store.stored(m.ID).Reactions)

	for _, c := range []*fakeConn{a1, a2, b} {
		got := c.named(t, core.EventMessageReaction)
		require.Len(t, got, 2)
		require.Len(t, decode[domain.Message](t, got[0]).Reactions, 1)
		require.Empty(t, decode[domain.Message](t, got[1]).Reactions)
	}
}

func TestReactionRules(t *testing.T) {
	f := newMsgFixture()
	ctx := context.Background()
	m := f.sendDirect(t, "alice", "bob", "hello")

	_, err := f.ms.AddReaction(ctx, m.ID, "bob", "")
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.ms.AddReaction(ctx, m.ID, "mallory", "👍")
	require.ErrorIs(t, err, domain.ErrPermissionDenied)
	_, err = f.ms.AddReaction(ctx, "missing", "bob", "👍")
	require.ErrorIs(t, err, domain.ErrMessageNotFound)

	_, err = f.ms.DeleteMessage(ctx, m.ID, "alice")
	require.NoError(t, err)
	_, err = f.ms.AddReaction(ctx, m.ID, "bob", "👍")
	require.ErrorIs(t, err, domain.ErrMessageDeleted)
}

func TestEditMessage(t *testing.T) {
	f := newMsgFixture()
	ctx := context.Background()
	a := connect(f.reg, "alice", "a1")
	b := connect(f.reg, "bob", "b1")
	m := f.sendDirect(t, "alice", "bob", "helo")

	_, err := f.ms.EditMessage(ctx, m.ID, "bob", "hijacked")
	require.ErrorIs(t, err, domain.ErrPermissionDenied)
	require.Empty(t, a.named(t, core.EventMessageEdited))

	edited, err := f.ms.EditMessage(ctx, m.ID, "alice", "hello")
	require.NoError(t, err)
	require.Equal(t, "hello", edited.Text)
	require.NotNil(t, edited.EditedAt)
	require.Equal(t, "hello", f.store.stored(m.ID).Text)
	require.Len(t, a.named(t, core.EventMessageEdited), 1)
	require.Len(t, b.named(t, core.EventMessageEdited), 1)

	_, err = f.ms.EditMessage(ctx, m.ID, "alice", "")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestEditDeletedMessageIsRejected(t *testing.T) {
	f := newMsgFixture()
	ctx := context.Background()
	b := connect(f.reg, "bob", "b1")
	m := f.sendDirect(t, "alice", "bob", "oops")

	_, err := f.ms.DeleteMessage(ctx, m.ID, "alice")
	require.NoError(t, err)
	writes := f.store.writes

	_, err = f.ms.EditMessage(ctx, m.ID, "alice", "resurrect")
	require.ErrorIs(t, err, domain.ErrMessageDeleted)
	require.Equal(t, writes, f.store.writes)
	require.Empty(t, b.named(t, core.EventMessageEdited))
	require.Equal(t, domain.DeletedPlaceholder, f.store.stored(m.ID).Text)
}

func TestDeleteMessage(t *testing.T) {
	f := newMsgFixture()
	ctx := context.Background()
	a := connect(f.reg, "alice", "a1")
	b := connect(f.reg, "bob", "b1")
	m, err := f.ms.SendMessage(ctx, &domain.Message{SenderID: "alice", ReceiverID: "bob", Text: "look", MediaType: domain.MediaImage, MediaURL: "https://cdn/x.png"})
	require.NoError(t, err)

	_, err = f.ms.DeleteMessage(ctx, m.ID, "bob")
	require.ErrorIs(t, err, domain.ErrPermissionDenied)

	deleted, err := f.ms.DeleteMessage(ctx, m.ID, "alice")
	require.NoError(t, err)
	require.True(t, deleted.IsDeleted)
	require.Equal(t, domain.DeletedPlaceholder, deleted.Text)
	require.Empty(t, deleted.MediaURL)
	require.Equal(t, domain.MediaNone, deleted.MediaType)

	for _, c := range []*fakeConn{a, b} {
		got := c.named(t, core.EventMessageDeleted)
		require.Len(t, got, 1)
		require.True(t, decode[domain.Message](t, got[0]).IsDeleted)
	}

	_, err = f.ms.DeleteMessage(ctx, m.ID, "alice")
	require.ErrorIs(t, err, domain.ErrMessageDeleted)
	require.Len(t, b.named(t, core.EventMessageDeleted), 1)
}

func TestUpdatePersistFailureBroadcastsNothing(t *testing.T) {
	f := newMsgFixture()
	ctx := context.Background()
	b := connect(f.reg, "bob", "b1")
	m := f.sendDirect(t, "alice", "bob", "hi")
	boom := errors.New("connection reset")
	f.store.failWrite = boom

	_, err := f.ms.AddReaction(ctx, m.ID, "bob", "🔥")
	require.ErrorIs(t, err, boom)
	_, err = f.ms.EditMessage(ctx, m.ID, "alice", "edit")
	require.ErrorIs(t, err, boom)
	_, err = f.ms.DeleteMessage(ctx, m.ID, "alice")
	require.ErrorIs(t, err, boom)

	require.Len(t, b.nonPresence(t), 1, "only the original newMessage")
	stored := f.store.stored(m.ID)
	require.Equal(t, "hi", stored.Text)
	require.Empty(t, stored.Reactions)
}

func TestGroupReactionReachesAllMembers(t *testing.T) {
	f := newMsgFixture()
	ctx := context.Background()
	f.store.groups["g1"] = &domain.Group{ID: "g1", Members: []domain.UserID{"alice", "bob", "carol"}}
	a := connect(f.reg, "alice", "a1")
	c1 := connect(f.reg, "carol", "c1")
	c2 := connect(f.reg, "carol", "c2")

	m, err := f.ms.SendMessage(ctx, &domain.Message{SenderID: "alice", GroupID: "g1", Text: "vote"})
	require.NoError(t, err)
	_, err = f.ms.AddReaction(ctx, m.ID, "carol", "✅")
	require.NoError(t, err)

	for _, c := range []*fakeConn{a, c1, c2} {
		require.Len(t, c.named(t, core.EventMessageReaction), 1)
	}
}
