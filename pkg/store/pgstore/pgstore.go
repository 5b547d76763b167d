// Package pgstore is the owner-scoped conversation store over PostgreSQL.
// Every operation filters by (owner_id, chat_id); the acting principal comes
// from the request context, so a chat id that exists under another owner
// resolves to an empty, never-existed log rather than leaking existence.
package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"contextdb/pkg/auth"
	"contextdb/pkg/logger"
	"contextdb/pkg/metrics"
	"contextdb/pkg/models"
	"contextdb/pkg/store"
	"contextdb/pkg/utils"
	"contextdb/pkg/validation"
)

const backend = "postgres"

// Store implements the conversation store over a pgx pool. The pool is
// owned by the caller; Close does not close it.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a Store. EnsureSchema should be called once at startup.
func New(pool *pgxpool.Pool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgstore: nil pool")
	}
	return &Store{pool: pool}, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS chat_messages (
    owner_id   text        NOT NULL,
    chat_id    text        NOT NULL,
    msg_id     text        NOT NULL,
    sender     text        NOT NULL DEFAULT '',
    content    text        NOT NULL,
    embedding  jsonb,
    created_at timestamptz NOT NULL,
    seq        bigint      GENERATED ALWAYS AS IDENTITY,
    PRIMARY KEY (owner_id, chat_id, msg_id)
);
CREATE INDEX IF NOT EXISTS chat_messages_log_idx
    ON chat_messages (owner_id, chat_id, seq);
`

// EnsureSchema provisions the chat_messages table. Idempotent; the benign
// race between two concurrent provisioning attempts is acceptable.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("pgstore: ensure schema: %w", err)
	}
	return nil
}

func (s *Store) scope(ctx context.Context, chatID string) (owner, id string, err error) {
	owner = auth.PrincipalFromContext(ctx)
	if owner == "" {
		return "", "", store.ErrUnauthorized
	}
	id, err = validation.SanitizeChatID(chatID)
	return owner, id, err
}

func (s *Store) Fetch(ctx context.Context, chatID string) (recs []models.MessageRecord, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreOp(backend, "fetch", start, err) }()
	owner, id, err := s.scope(ctx, chatID)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT msg_id, sender, content, embedding, created_at
		   FROM chat_messages
		  WHERE owner_id = $1 AND chat_id = $2
		  ORDER BY seq`, owner, id)
	if err != nil {
		return nil, fmt.Errorf("pgstore: fetch: %w", err)
	}
	defer rows.Close()
	out := []models.MessageRecord{}
	for rows.Next() {
		var m models.MessageRecord
		var emb []byte
		if err = rows.Scan(&m.ID, &m.Sender, &m.Text, &emb, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgstore: scan: %w", err)
		}
		m.Embedding = emb
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) Append(ctx context.Context, chatID string, rec models.MessageRecord) (out models.MessageRecord, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreOp(backend, "append", start, err) }()
	owner, id, err := s.scope(ctx, chatID)
	if err != nil {
		return rec, err
	}
	if rec.ID == "" {
		rec.ID = utils.GenMessageID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO chat_messages (owner_id, chat_id, msg_id, sender, content, embedding, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		owner, id, rec.ID, rec.Sender, rec.Text, emb(rec), rec.CreatedAt)
	if err != nil {
		logger.Error("append_failed", "chat", id, "error", err)
		return rec, fmt.Errorf("pgstore: append: %w", err)
	}
	logger.Debug("message_appended", "chat", id, "msg_id", rec.ID)
	return rec, nil
}

func (s *Store) DeleteOne(ctx context.Context, chatID, messageID string) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreOp(backend, "delete_one", start, err) }()
	owner, id, err := s.scope(ctx, chatID)
	if err != nil {
		return err
	}
	// zero rows affected is the idempotent no-op case
	_, err = s.pool.Exec(ctx,
		`DELETE FROM chat_messages WHERE owner_id = $1 AND chat_id = $2 AND msg_id = $3`,
		owner, id, messageID)
	if err != nil {
		return fmt.Errorf("pgstore: delete one: %w", err)
	}
	return nil
}

func (s *Store) Overwrite(ctx context.Context, chatID string, recs []models.MessageRecord) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreOp(backend, "overwrite", start, err) }()
	owner, id, err := s.scope(ctx, chatID)
	if err != nil {
		return err
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("pgstore: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err = tx.Exec(ctx,
		`DELETE FROM chat_messages WHERE owner_id = $1 AND chat_id = $2`, owner, id); err != nil {
		return fmt.Errorf("pgstore: overwrite clear: %w", err)
	}
	for _, m := range recs {
		if m.ID == "" {
			m.ID = utils.GenMessageID()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now().UTC()
		}
		if _, err = tx.Exec(ctx,
			`INSERT INTO chat_messages (owner_id, chat_id, msg_id, sender, content, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			owner, id, m.ID, m.Sender, m.Text, emb(m), m.CreatedAt); err != nil {
			return fmt.Errorf("pgstore: overwrite insert: %w", err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("pgstore: overwrite commit: %w", err)
	}
	logger.Info("log_overwritten", "chat", id, "records", len(recs))
	return nil
}

func (s *Store) DeleteAll(ctx context.Context, chatID string) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreOp(backend, "delete_all", start, err) }()
	owner, id, err := s.scope(ctx, chatID)
	if err != nil {
		return err
	}
	if _, err = s.pool.Exec(ctx,
		`DELETE FROM chat_messages WHERE owner_id = $1 AND chat_id = $2`, owner, id); err != nil {
		return fmt.Errorf("pgstore: delete all: %w", err)
	}
	logger.Info("log_deleted", "chat", id)
	return nil
}

func (s *Store) Exists(ctx context.Context, chatID string) (bool, error) {
	owner, id, err := s.scope(ctx, chatID)
	if err != nil {
		return false, err
	}
	var exists bool
	err = s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM chat_messages WHERE owner_id = $1 AND chat_id = $2)`,
		owner, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("pgstore: exists: %w", err)
	}
	return exists, nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	owner := auth.PrincipalFromContext(ctx)
	if owner == "" {
		return nil, store.ErrUnauthorized
	}
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT chat_id FROM chat_messages WHERE owner_id = $1 ORDER BY chat_id`, owner)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Owners enumerates every distinct owner id in the table. This bypasses the
// principal scope on purpose: it is not part of the Store interface and
// never reachable over HTTP; the retention runner uses it to trim each
// owner's conversations under that owner's identity.
func (s *Store) Owners(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT owner_id FROM chat_messages ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("pgstore: owners: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Ping reports database reachability for readiness checks.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close is a no-op: the pool belongs to the caller.
func (s *Store) Close() error { return nil }

func emb(m models.MessageRecord) []byte {
	if len(m.Embedding) == 0 {
		return nil
	}
	return []byte(m.Embedding)
}
