package core

import (
	"context"

	"github.com/dkeye/Parley/internal/domain"
)

// MessageStore is the persistence collaborator. Every write is a single
// entity transaction; the stored copy is authoritative.
type MessageStore interface {
	CreateMessage(ctx context.Context, m *domain.Message) error
	FindMessage(ctx context.Context, id domain.MessageID) (*domain.Message, error)
	UpdateMessage(ctx context.Context, m *domain.Message) error
	FindGroup(ctx context.Context, id domain.GroupID) (*domain.Group, error)
}
