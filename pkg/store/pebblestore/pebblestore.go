// Package pebblestore keeps conversation logs in an embedded Pebble
// database. Records live under keys with a sortable timestamp suffix:
//
//	chat:<escaped-id>:msg:<unix_nano_padded>-<seq>
//
// so a prefix scan yields the log in append order. Overwrite and delete-all
// commit as a single synced batch, which makes them atomic without any
// per-id locking; delete-one is a single key delete.
package pebblestore

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"contextdb/pkg/codec"
	"contextdb/pkg/logger"
	"contextdb/pkg/metrics"
	"contextdb/pkg/models"
	"contextdb/pkg/utils"
	"contextdb/pkg/validation"
)

const backend = "pebble"

// Store is the pebble-backed conversation store. Unscoped, like the file
// backend.
type Store struct {
	db *pebble.DB

	// seq breaks ties between records sharing the same nanosecond timestamp.
	seq uint64
}

// Open opens (or creates) a Pebble database at the given path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, fmt.Errorf("pebblestore: open %s: %w", path, err)
	}
	logger.Info("pebble_opened", "path", path)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// chat ids may contain ':'; escape them so one conversation's prefix can
// never shadow another's.
func msgPrefix(id string) []byte {
	return []byte("chat:" + url.QueryEscape(id) + ":msg:")
}

func (s *Store) msgKey(id string) []byte {
	ts := time.Now().UTC().UnixNano()
	n := atomic.AddUint64(&s.seq, 1)
	return []byte(fmt.Sprintf("chat:%s:msg:%020d-%06d", url.QueryEscape(id), ts, n))
}

// prefixUpperBound returns the smallest key greater than every key with the
// given prefix.
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func (s *Store) Fetch(ctx context.Context, chatID string) (recs []models.MessageRecord, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreOp(backend, "fetch", start, err) }()
	id, err := validation.SanitizeChatID(chatID)
	if err != nil {
		return nil, err
	}
	prefix := msgPrefix(id)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	out := []models.MessageRecord{}
	for iter.First(); iter.Valid(); iter.Next() {
		v := append([]byte(nil), iter.Value()...)
		m, derr := codec.DecodeLine(v)
		if derr != nil {
			return nil, fmt.Errorf("pebblestore: corrupt record at %s: %w", iter.Key(), derr)
		}
		out = append(out, m)
	}
	return out, iter.Error()
}

func (s *Store) Append(ctx context.Context, chatID string, rec models.MessageRecord) (out models.MessageRecord, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreOp(backend, "append", start, err) }()
	id, err := validation.SanitizeChatID(chatID)
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
	key := s.msgKey(id)
	if err = s.db.Set(key, line, pebble.Sync); err != nil {
		logger.Error("append_failed", "chat", id, "key", string(key), "error", err)
		return rec, err
	}
	logger.Debug("message_appended", "chat", id, "msg_id", rec.ID)
	return rec, nil
}

func (s *Store) DeleteOne(ctx context.Context, chatID, messageID string) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreOp(backend, "delete_one", start, err) }()
	id, err := validation.SanitizeChatID(chatID)
	if err != nil {
		return err
	}
	prefix := msgPrefix(id)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		m, derr := codec.DecodeLine(iter.Value())
		if derr != nil {
			return fmt.Errorf("pebblestore: corrupt record at %s: %w", iter.Key(), derr)
		}
		if m.ID == messageID {
			key := append([]byte(nil), iter.Key()...)
			if err = s.db.Delete(key, pebble.Sync); err != nil {
				return err
			}
			logger.Info("message_deleted", "chat", id, "msg_id", messageID)
			return nil
		}
	}
	// missing record: idempotent no-op
	return iter.Error()
}

func (s *Store) Overwrite(ctx context.Context, chatID string, recs []models.MessageRecord) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreOp(backend, "overwrite", start, err) }()
	id, err := validation.SanitizeChatID(chatID)
	if err != nil {
		return err
	}
	prefix := msgPrefix(id)
	b := s.db.NewBatch()
	defer b.Close()
	if err = b.DeleteRange(prefix, prefixUpperBound(prefix), nil); err != nil {
		return err
	}
	for _, m := range recs {
		line, eerr := codec.EncodeLine(m)
		if eerr != nil {
			return eerr
		}
		if err = b.Set(s.msgKey(id), line, nil); err != nil {
			return err
		}
	}
	if err = b.Commit(pebble.Sync); err != nil {
		logger.Error("overwrite_failed", "chat", id, "error", err)
		return err
	}
	logger.Info("log_overwritten", "chat", id, "records", len(recs))
	return nil
}

func (s *Store) DeleteAll(ctx context.Context, chatID string) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreOp(backend, "delete_all", start, err) }()
	id, err := validation.SanitizeChatID(chatID)
	if err != nil {
		return err
	}
	prefix := msgPrefix(id)
	if err = s.db.DeleteRange(prefix, prefixUpperBound(prefix), pebble.Sync); err != nil {
		return err
	}
	logger.Info("log_deleted", "chat", id)
	return nil
}

func (s *Store) Exists(ctx context.Context, chatID string) (bool, error) {
	id, err := validation.SanitizeChatID(chatID)
	if err != nil {
		return false, err
	}
	prefix := msgPrefix(id)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return false, err
	}
	defer iter.Close()
	return iter.First(), iter.Error()
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	lo := []byte("chat:")
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: prefixUpperBound(lo)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	var last string
	for iter.First(); iter.Valid(); iter.Next() {
		k := iter.Key()
		if !bytes.HasPrefix(k, lo) {
			break
		}
		rest := string(k[len(lo):])
		i := strings.Index(rest, ":msg:")
		if i < 0 {
			continue
		}
		id, uerr := url.QueryUnescape(rest[:i])
		if uerr != nil {
			continue
		}
		if id == last {
			continue
		}
		last = id
		out = append(out, id)
	}
	return out, iter.Error()
}
