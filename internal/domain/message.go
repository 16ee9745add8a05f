package domain

import (
	"fmt"
	"slices"
	"time"
	"unicode/utf8"
)

const (
	MaxTextLen  = 4096
	MaxEmojiLen = 32

	// DeletedPlaceholder replaces the text of a soft-deleted message.
	DeletedPlaceholder = "This message was deleted"
)

type MessageID string

type MediaType string

const (
	MediaNone  MediaType = ""
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
	MediaFile  MediaType = "file"
)

func (m MediaType) Valid() bool {
	switch m {
	case MediaNone, MediaImage, MediaVideo, MediaAudio, MediaFile:
		return true
	}
	return false
}

type Reaction struct {
	UserID    UserID    `json:"userId"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is either direct (ReceiverID) or group (GroupID), never both.
type Message struct {
	ID         MessageID  `json:"id"`
	SenderID   UserID     `json:"senderId"`
	ReceiverID UserID     `json:"receiverId,omitempty"`
	GroupID    GroupID    `json:"groupId,omitempty"`
	Text       string     `json:"text,omitempty"`
	MediaType  MediaType  `json:"mediaType,omitempty"`
	MediaURL   string     `json:"mediaUrl,omitempty"`
	Reactions  []Reaction `json:"reactions"`
	IsDeleted  bool       `json:"isDeleted"`
	EditedAt   *time.Time `json:"editedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func (m *Message) IsGroup() bool { return m.GroupID != "" }

// Validate checks a message draft before it is persisted.
func (m *Message) Validate() error {
	if m.SenderID == "" {
		return fmt.Errorf("%w: sender is required", ErrValidation)
	}
	if (m.ReceiverID == "") == (m.GroupID == "") {
		return fmt.Errorf("%w: exactly one of receiverId or groupId is required", ErrValidation)
	}
	if !m.MediaType.Valid() {
		return fmt.Errorf("%w: unknown media type %q", ErrValidation, m.MediaType)
	}
	if m.MediaType != MediaNone && m.MediaURL == "" {
		return fmt.Errorf("%w: media url is required for %s", ErrValidation, m.MediaType)
	}
	if m.Text == "" && m.MediaType == MediaNone {
		return fmt.Errorf("%w: message is empty", ErrValidation)
	}
	return ValidateText(m.Text)
}

func ValidateText(text string) error {
	if utf8.RuneCountInString(text) > MaxTextLen {
		return fmt.Errorf("%w: text longer than %d characters", ErrValidation, MaxTextLen)
	}
	return nil
}

func ValidateEmoji(emoji string) error {
	if emoji == "" {
		return fmt.Errorf("%w: emoji is required", ErrValidation)
	}
	if len(emoji) > MaxEmojiLen {
		return fmt.Errorf("%w: emoji too long", ErrValidation)
	}
	return nil
}

// ToggleReaction removes the (userID, emoji) pair if present, otherwise
// appends it. Reports whether the reaction was added.
func (m *Message) ToggleReaction(userID UserID, emoji string, now time.Time) bool {
	for i, r := range m.Reactions {
		if r.UserID == userID && r.Emoji == emoji {
			m.Reactions = slices.Delete(m.Reactions, i, i+1)
			return false
		}
	}
	m.Reactions = append(m.Reactions, Reaction{UserID: userID, Emoji: emoji, CreatedAt: now})
	return true
}

// SoftDelete scrubs content and media but keeps the record.
func (m *Message) SoftDelete() {
	m.IsDeleted = true
	m.Text = DeletedPlaceholder
	m.MediaType = MediaNone
	m.MediaURL = ""
}

func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	out := *m
	out.Reactions = slices.Clone(m.Reactions)
	if out.Reactions == nil {
		out.Reactions = []Reaction{}
	}
	if m.EditedAt != nil {
		t := *m.EditedAt
		out.EditedAt = &t
	}
	return &out
}
