package core

import (
	"time"

	"github.com/dkeye/Parley/internal/domain"
)

type SessionID string

// Session is one live connection of a user. Multiple sessions per user
// are allowed (multi-device).
type Session struct {
	ID          SessionID
	UserID      domain.UserID
	Conn        SignalConnection
	ConnectedAt time.Time
}
