package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Parley/internal/domain"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	sender_id   TEXT NOT NULL,
	receiver_id TEXT NOT NULL DEFAULT '',
	group_id    TEXT NOT NULL DEFAULT '',
	text        TEXT NOT NULL DEFAULT '',
	media_type  TEXT NOT NULL DEFAULT '',
	media_url   TEXT NOT NULL DEFAULT '',
	reactions   JSONB NOT NULL DEFAULT '[]',
	is_deleted  BOOLEAN NOT NULL DEFAULT FALSE,
	edited_at   TIMESTAMPTZ NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS chat_groups (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS group_members (
	group_id TEXT NOT NULL REFERENCES chat_groups(id) ON DELETE CASCADE,
	user_id  TEXT NOT NULL,
	PRIMARY KEY (group_id, user_id)
);
`

const uniqueViolation = "23505"

// PostgresStore stores one row per message; reactions live in a JSONB
// column so every write is a single-row transaction.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres opens and pings the database behind dsn.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return db, nil
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	log.Info().Str("module", "store.postgres").Msg("schema ready")
	return nil
}

func (s *PostgresStore) CreateMessage(ctx context.Context, m *domain.Message) error {
	reactions, err := encodeReactions(m.Reactions)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, group_id, text, media_type, media_url, reactions, is_deleted, edited_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, m.ID, m.SenderID, m.ReceiverID, m.GroupID, m.Text, m.MediaType, m.MediaURL, reactions, m.IsDeleted, m.EditedAt, m.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrMessageExists, m.ID)
		}
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return tx.Commit()
}

func (s *PostgresStore) FindMessage(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	var (
		m         domain.Message
		reactions []byte
		editedAt  sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, sender_id, receiver_id, group_id, text, media_type, media_url, reactions, is_deleted, edited_at, created_at
		FROM messages WHERE id = $1
	`, id).Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.GroupID, &m.Text, &m.MediaType, &m.MediaURL, &reactions, &m.IsDeleted, &editedAt, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrMessageNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message: %w", err)
	}
	if err := json.Unmarshal(reactions, &m.Reactions); err != nil {
		return nil, fmt.Errorf("failed to decode reactions: %w", err)
	}
	if m.Reactions == nil {
		m.Reactions = []domain.Reaction{}
	}
	if editedAt.Valid {
		t := editedAt.Time
		m.EditedAt = &t
	}
	return &m, nil
}

func (s *PostgresStore) UpdateMessage(ctx context.Context, m *domain.Message) error {
	reactions, err := encodeReactions(m.Reactions)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE messages
		SET text = $2, media_type = $3, media_url = $4, reactions = $5, is_deleted = $6, edited_at = $7
		WHERE id = $1
	`, m.ID, m.Text, m.MediaType, m.MediaURL, reactions, m.IsDeleted, m.EditedAt)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrMessageNotFound, m.ID)
	}
	return tx.Commit()
}

func (s *PostgresStore) FindGroup(ctx context.Context, id domain.GroupID) (*domain.Group, error) {
	var (
		name    string
		members []string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT g.name,
		       COALESCE(array_agg(m.user_id ORDER BY m.user_id) FILTER (WHERE m.user_id IS NOT NULL), '{}')
		FROM chat_groups g
		LEFT JOIN group_members m ON m.group_id = g.id
		WHERE g.id = $1
		GROUP BY g.id, g.name
	`, id).Scan(&name, pq.Array(&members))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrGroupNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch group: %w", err)
	}

	g := &domain.Group{ID: id, Name: name, Members: make([]domain.UserID, 0, len(members))}
	for _, uid := range members {
		g.Members = append(g.Members, domain.UserID(uid))
	}
	return g, nil
}

// PutGroup creates or replaces a group and its member list.
func (s *PostgresStore) PutGroup(ctx context.Context, g domain.Group) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chat_groups (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, g.ID, g.Name); err != nil {
		return fmt.Errorf("failed to upsert group: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = $1`, g.ID); err != nil {
		return fmt.Errorf("failed to reset group members: %w", err)
	}
	members := make([]string, 0, len(g.Members))
	for _, uid := range g.Members {
		members = append(members, string(uid))
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO group_members (group_id, user_id)
		SELECT $1, unnest($2::text[])
		ON CONFLICT DO NOTHING
	`, g.ID, pq.Array(members)); err != nil {
		return fmt.Errorf("failed to insert group members: %w", err)
	}
	return tx.Commit()
}

func encodeReactions(rs []domain.Reaction) (string, error) {
	if rs == nil {
		rs = []domain.Reaction{}
	}
	b, err := json.Marshal(rs)
	if err != nil {
		return "", fmt.Errorf("failed to encode reactions: %w", err)
	}
	return string(b), nil
}
