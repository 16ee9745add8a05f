package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// OfflineNotifier receives new-message events that found no live session.
type OfflineNotifier interface {
	NotifyOffline(ctx context.Context, uid domain.UserID, e core.Event) error
}

// Messages is the MessageDeliveryCoordinator. Every operation follows
// validate -> persist -> broadcast; nothing is broadcast if persisting fails.
type Messages struct {
	Store   core.MessageStore
	Router  *Router
	Offline OfflineNotifier

	now   func() time.Time
	newID func() domain.MessageID
}

func NewMessages(store core.MessageStore, router *Router, offline OfflineNotifier) *Messages {
	return &Messages{
		Store:   store,
		Router:  router,
		Offline: offline,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() domain.MessageID { return domain.MessageID(uuid.NewString()) },
	}
}

// SendMessage persists a new direct or group message and notifies the
// receiving side. The returned message is the authoritative copy the client
// reconciles its optimistic entry against.
func (ms *Messages) SendMessage(ctx context.Context, draft *domain.Message) (*domain.Message, error) {
	m := draft.Clone()
	m.ID = ms.newID()
	m.CreatedAt = ms.now()
	m.Reactions = []domain.Reaction{}
	m.IsDeleted = false
	m.EditedAt = nil
	if err := m.Validate(); err != nil {
		return nil, err
	}

	var group *domain.Group
	if m.IsGroup() {
		g, err := ms.Store.FindGroup(ctx, m.GroupID)
		if err != nil {
			return nil, err
		}
		if !g.HasMember(m.SenderID) {
			return nil, fmt.Errorf("%w: not a member of group %s", domain.ErrPermissionDenied, g.ID)
		}
		group = g
	}

	if err := ms.Store.CreateMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}
	ms.notifyNew(ctx, m, group)
	return m.Clone(), nil
}

// NotifyNewMessage announces a message a collaborator already persisted.
func (ms *Messages) NotifyNewMessage(ctx context.Context, m *domain.Message) error {
	var group *domain.Group
	if m.IsGroup() {
		g, err := ms.Store.FindGroup(ctx, m.GroupID)
		if err != nil {
			return err
		}
		group = g
	}
	ms.notifyNew(ctx, m, group)
	return nil
}

// notifyNew reaches only the primary session of each receiver; the sender's
// other sessions are not notified on this path.
func (ms *Messages) notifyNew(ctx context.Context, m *domain.Message, group *domain.Group) {
	if group == nil {
		ev := core.MessageEvent{Kind: core.EventNewMessage, Message: m}
		if !ms.Router.SendToPrimary(m.ReceiverID, ev) {
			ms.notifyOffline(ctx, m.ReceiverID, ev)
		}
		return
	}
	ev := core.MessageEvent{Kind: core.EventNewGroupMessage, Message: m}
	for _, member := range group.Members {
		if member == m.SenderID {
			continue
		}
		if !ms.Router.SendToPrimary(member, ev) {
			ms.notifyOffline(ctx, member, ev)
		}
	}
}

func (ms *Messages) notifyOffline(ctx context.Context, uid domain.UserID, ev core.Event) {
	if ms.Offline == nil {
		return
	}
	if err := ms.Offline.NotifyOffline(ctx, uid, ev); err != nil {
		log.Warn().Err(err).Str("module", "app.messages").Str("user", string(uid)).Msg("offline notification failed")
	}
}

// AddReaction toggles (userID, emoji) on the message: an existing pair is
// removed, a missing one is appended.
func (ms *Messages) AddReaction(ctx context.Context, id domain.MessageID, uid domain.UserID, emoji string) (*domain.Message, error) {
	if err := domain.ValidateEmoji(emoji); err != nil {
		return nil, err
	}
	m, err := ms.Store.FindMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.IsDeleted {
		return nil, domain.ErrMessageDeleted
	}
	group, err := ms.authorizeParticipant(ctx, m, uid)
	if err != nil {
		return nil, err
	}

	added := m.ToggleReaction(uid, emoji, ms.now())
	if err := ms.Store.UpdateMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("persist reaction: %w", err)
	}
	log.Debug().Str("module", "app.messages").Str("message", string(id)).Str("user", string(uid)).Bool("added", added).Msg("reaction toggled")
	ms.fanOut(m, group, core.EventMessageReaction)
	return m.Clone(), nil
}

// EditMessage is allowed to the sender of a message that is not deleted.
func (ms *Messages) EditMessage(ctx context.Context, id domain.MessageID, uid domain.UserID, text string) (*domain.Message, error) {
	if err := domain.ValidateText(text); err != nil {
		return nil, err
	}
	m, err := ms.Store.FindMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.SenderID != uid {
		return nil, fmt.Errorf("%w: only the sender can edit", domain.ErrPermissionDenied)
	}
	if m.IsDeleted {
		return nil, domain.ErrMessageDeleted
	}
	if text == "" && m.MediaType == domain.MediaNone {
		return nil, fmt.Errorf("%w: message is empty", domain.ErrValidation)
	}
	group, err := ms.groupOf(ctx, m)
	if err != nil {
		return nil, err
	}

	now := ms.now()
	m.Text = text
	m.EditedAt = &now
	if err := ms.Store.UpdateMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("persist edit: %w", err)
	}
	ms.fanOut(m, group, core.EventMessageEdited)
	return m.Clone(), nil
}

// DeleteMessage soft-deletes a message. A second delete is rejected rather
// than reprocessed.
func (ms *Messages) DeleteMessage(ctx context.Context, id domain.MessageID, uid domain.UserID) (*domain.Message, error) {
	m, err := ms.Store.FindMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.SenderID != uid {
		return nil, fmt.Errorf("%w: only the sender can delete", domain.ErrPermissionDenied)
	}
	if m.IsDeleted {
		return nil, domain.ErrMessageDeleted
	}
	group, err := ms.groupOf(ctx, m)
	if err != nil {
		return nil, err
	}

	m.SoftDelete()
	if err := ms.Store.UpdateMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("persist delete: %w", err)
	}
	ms.fanOut(m, group, core.EventMessageDeleted)
	return m.Clone(), nil
}

func (ms *Messages) groupOf(ctx context.Context, m *domain.Message) (*domain.Group, error) {
	if !m.IsGroup() {
		return nil, nil
	}
	return ms.Store.FindGroup(ctx, m.GroupID)
}

func (ms *Messages) authorizeParticipant(ctx context.Context, m *domain.Message, uid domain.UserID) (*domain.Group, error) {
	if !m.IsGroup() {
		if uid != m.SenderID && uid != m.ReceiverID {
			return nil, fmt.Errorf("%w: not a participant", domain.ErrPermissionDenied)
		}
		return nil, nil
	}
	g, err := ms.Store.FindGroup(ctx, m.GroupID)
	if err != nil {
		return nil, err
	}
	if !g.HasMember(uid) {
		return nil, fmt.Errorf("%w: not a member of group %s", domain.ErrPermissionDenied, g.ID)
	}
	return g, nil
}

// fanOut sends the state after persistence to every session of both sides,
// or of every group member.
func (ms *Messages) fanOut(m *domain.Message, group *domain.Group, kind core.EventName) {
	ev := core.MessageEvent{Kind: kind, Message: m.Clone()}
	var targets []domain.UserID
	if group != nil {
		targets = group.Members
	} else {
		targets = []domain.UserID{m.SenderID}
		if m.ReceiverID != m.SenderID {
			targets = append(targets, m.ReceiverID)
		}
	}
	for _, uid := range targets {
		ms.Router.SendToAllSessions(uid, ev)
	}
}
