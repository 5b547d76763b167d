// Package filestore persists one conversation per JSONL file under a single
// data root: <root>/<sanitizedChatId>.jsonl. Appends are single O_APPEND
// writes; rewrites are staged under <root>/.tmp and moved into place with
// os.Rename so a crash or client disconnect never corrupts the previous
// good state.
package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"contextdb/pkg/codec"
	"contextdb/pkg/logger"
	"contextdb/pkg/metrics"
	"contextdb/pkg/models"
	"contextdb/pkg/utils"
	"contextdb/pkg/validation"
)

const backend = "file"

// Store is the file-backed conversation store. It is unscoped: anyone
// holding a chat id can read and write it.
type Store struct {
	root string
	tmp  string

	locks idLocks
}

// New creates (if needed) the data root and returns a store rooted there.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("filestore: empty data root")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("filestore: create data root %s: %w", root, err)
	}
	tmp := filepath.Join(root, ".tmp")
	if err := os.MkdirAll(tmp, 0o700); err != nil {
		return nil, fmt.Errorf("filestore: create tmp dir %s: %w", tmp, err)
	}
	logger.Info("filestore_opened", "root", root)
	return &Store{root: root, tmp: tmp}, nil
}

// Root returns the data root the store was constructed with.
func (s *Store) Root() string { return s.root }

func (s *Store) pathFor(chatID string) (string, string, error) {
	id, err := validation.SanitizeChatID(chatID)
	if err != nil {
		return "", "", err
	}
	return id, filepath.Join(s.root, id+".jsonl"), nil
}

// Fetch returns all records in append order, or an empty slice when no log
// exists yet. A malformed stored line is a terminal error for the request,
// not something to skip over.
func (s *Store) Fetch(ctx context.Context, chatID string) (recs []models.MessageRecord, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreOp(backend, "fetch", start, err) }()
	_, p, err := s.pathFor(chatID)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.MessageRecord{}, nil
		}
		return nil, fmt.Errorf("filestore: read %s: %w", p, err)
	}
	return codec.DecodeAll(b)
}

// Append writes one record to the end of the log, assigning id and
// created_at when the caller left them empty. Appends take the per-id lock
// so they cannot interleave with an in-flight rewrite.
func (s *Store) Append(ctx context.Context, chatID string, rec models.MessageRecord) (out models.MessageRecord, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreOp(backend, "append", start, err) }()
	id, p, err := s.pathFor(chatID)
	if err != nil {
		return rec, err
	}
	if rec.ID == "" {
		rec.ID = utils.GenMessageID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	line, err := codec.EncodeLine(rec)
	if err != nil {
		return rec, err
	}

	unlock := s.locks.lock(id)
	defer unlock()

	f, err := os.OpenFile(p, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return rec, fmt.Errorf("filestore: open %s: %w", p, err)
	}
	defer f.Close()
	if _, err = f.Write(append(line, '\n')); err != nil {
		return rec, fmt.Errorf("filestore: append %s: %w", p, err)
	}
	if err = f.Sync(); err != nil {
		return rec, fmt.Errorf("filestore: sync %s: %w", p, err)
	}
	logger.Debug("message_appended", "chat", id, "msg_id", rec.ID)
	return rec, nil
}

// DeleteOne removes the record with the given message id, keeping the rest
// in their original relative order. A missing message id is a no-op.
func (s *Store) DeleteOne(ctx context.Context, chatID, messageID string) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreOp(backend, "delete_one", start, err) }()
	id, p, err := s.pathFor(chatID)
	if err != nil {
		return err
	}

	unlock := s.locks.lock(id)
	defer unlock()

	b, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("filestore: read %s: %w", p, err)
	}
	recs, err := codec.DecodeAll(b)
	if err != nil {
		return err
	}
	kept := recs[:0]
	for _, m := range recs {
		if m.ID != messageID {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(recs) {
		return nil
	}
	if err = s.replaceLocked(id, p, kept); err != nil {
		return err
	}
	logger.Info("message_deleted", "chat", id, "msg_id", messageID, "remaining", len(kept))
	return nil
}

// Overwrite replaces the entire log with recs. An empty slice removes the
// log file, returning the conversation to the never-existed state.
func (s *Store) Overwrite(ctx context.Context, chatID string, recs []models.MessageRecord) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreOp(backend, "overwrite", start, err) }()
	id, p, err := s.pathFor(chatID)
	if err != nil {
		return err
	}

	unlock := s.locks.lock(id)
	defer unlock()

	if len(recs) == 0 {
		if err = os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("filestore: remove %s: %w", p, err)
		}
		logger.Info("log_overwritten", "chat", id, "records", 0)
		return nil
	}
	if err = s.replaceLocked(id, p, recs); err != nil {
		return err
	}
	logger.Info("log_overwritten", "chat", id, "records", len(recs))
	return nil
}

// DeleteAll removes the log. Idempotent.
func (s *Store) DeleteAll(ctx context.Context, chatID string) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreOp(backend, "delete_all", start, err) }()
	id, p, err := s.pathFor(chatID)
	if err != nil {
		return err
	}

	unlock := s.locks.lock(id)
	defer unlock()

	if err = os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("filestore: remove %s: %w", p, err)
	}
	logger.Info("log_deleted", "chat", id)
	return nil
}

// Exists reports whether a log file is present for the id.
func (s *Store) Exists(ctx context.Context, chatID string) (bool, error) {
	_, p, err := s.pathFor(chatID)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("filestore: stat %s: %w", p, err)
	}
	return true, nil
}

// List returns the chat ids of all logs under the data root.
func (s *Store) List(ctx context.Context) ([]string, error) {
	ents, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("filestore: read data root: %w", err)
	}
	var out []string
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), ".jsonl"))
	}
	return out, nil
}

func (s *Store) Close() error { return nil }

// replaceLocked writes recs to a staging file and renames it over the live
// log. Callers must hold the per-id lock.
func (s *Store) replaceLocked(id, p string, recs []models.MessageRecord) error {
	tf, err := os.CreateTemp(s.tmp, id+"-*.jsonl")
	if err != nil {
		return fmt.Errorf("filestore: create staging file: %w", err)
	}
	tmpName := tf.Name()
	defer os.Remove(tmpName)

	for _, m := range recs {
		line, err := codec.EncodeLine(m)
		if err != nil {
			tf.Close()
			return err
		}
		if _, err := tf.Write(append(line, '\n')); err != nil {
			tf.Close()
			return fmt.Errorf("filestore: write staging file: %w", err)
		}
	}
	if err := tf.Sync(); err != nil {
		tf.Close()
		return fmt.Errorf("filestore: sync staging file: %w", err)
	}
	if err := tf.Close(); err != nil {
		return fmt.Errorf("filestore: close staging file: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("filestore: commit %s: %w", p, err)
	}
	return nil
}
