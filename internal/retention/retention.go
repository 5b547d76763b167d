// Package retention trims conversation logs against configured caps on a
// cron schedule. Caps resolve the open question of unbounded log growth:
// oldest records go first, and a conversation trimmed to zero records is
// removed entirely.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"contextdb/pkg/auth"
	"contextdb/pkg/codec"
	"contextdb/pkg/config"
	"contextdb/pkg/logger"
	"contextdb/pkg/models"
	"contextdb/pkg/store"
)

// Start launches the retention scheduler if enabled and returns a cancel
// func. The cron expression is validated up front; an empty one defaults to
// daily at 02:00.
func Start(ctx context.Context, st store.Store, cfg config.RetentionConfig) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}
	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", cfg.Cron)
	}

	logger.Info("retention_enabled", "cron", cronExpr,
		"max_age", cfg.MaxAge.Duration().String(),
		"max_messages", cfg.MaxMessages,
		"max_bytes", cfg.MaxBytes.Int64())

	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, st, cfg, cronExpr)
	return cancel, nil
}

func runScheduler(ctx context.Context, st store.Store, cfg config.RetentionConfig, cronExpr string) {
	gron := gronx.New()
	tick := time.NewTicker(time.Minute)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			due, err := gron.IsDue(cronExpr)
			if err != nil || !due {
				continue
			}
			if err := RunOnce(ctx, st, cfg); err != nil {
				logger.Error("retention_run_failed", "error", err)
			}
		}
	}
}

// ownerLister is implemented by owner-scoped backends. The scheduler runs
// with a bare process context carrying no principal, so scoped stores expose
// their owners and the runner trims each owner's conversations under that
// owner's identity.
type ownerLister interface {
	Owners(ctx context.Context) ([]string, error)
}

// RunOnce applies the caps to every known conversation. Exported so admin
// triggers and tests can invoke a run on demand.
func RunOnce(ctx context.Context, st store.Store, cfg config.RetentionConfig) error {
	if ol, ok := st.(ownerLister); ok {
		owners, err := ol.Owners(ctx)
		if err != nil {
			return fmt.Errorf("retention: owners: %w", err)
		}
		for _, owner := range owners {
			if err := trimConversations(auth.WithPrincipal(ctx, owner), st, cfg); err != nil {
				logger.Error("retention_owner_failed", "owner", owner, "error", err)
			}
		}
		return nil
	}
	return trimConversations(ctx, st, cfg)
}

func trimConversations(ctx context.Context, st store.Store, cfg config.RetentionConfig) error {
	ids, err := st.List(ctx)
	if err != nil {
		return fmt.Errorf("retention: list: %w", err)
	}
	now := time.Now().UTC()
	for _, id := range ids {
		recs, err := st.Fetch(ctx, id)
		if err != nil {
			logger.Error("retention_fetch_failed", "chat", id, "error", err)
			continue
		}
		kept, dropped := applyCaps(recs, cfg, now)
		if dropped == 0 {
			continue
		}
		if cfg.DryRun {
			logger.Info("retention_dry_run", "chat", id, "would_drop", dropped, "would_keep", len(kept))
			continue
		}
		if err := st.Overwrite(ctx, id, kept); err != nil {
			logger.Error("retention_trim_failed", "chat", id, "error", err)
			continue
		}
		logger.Info("retention_trimmed", "chat", id, "dropped", dropped, "kept", len(kept))
	}
	return nil
}

// applyCaps returns the suffix of recs that satisfies every configured cap.
// Order is preserved; the oldest records are dropped first.
func applyCaps(recs []models.MessageRecord, cfg config.RetentionConfig, now time.Time) ([]models.MessageRecord, int) {
	kept := recs

	if maxAge := cfg.MaxAge.Duration(); maxAge > 0 {
		cutoff := now.Add(-maxAge)
		i := 0
		for i < len(kept) && !kept[i].CreatedAt.IsZero() && kept[i].CreatedAt.Before(cutoff) {
			i++
		}
		kept = kept[i:]
	}

	if cfg.MaxMessages > 0 && len(kept) > cfg.MaxMessages {
		kept = kept[len(kept)-cfg.MaxMessages:]
	}

	if maxBytes := cfg.MaxBytes.Int64(); maxBytes > 0 {
		sizes := make([]int64, len(kept))
		var total int64
		for i, m := range kept {
			if line, err := codec.EncodeLine(m); err == nil {
				sizes[i] = int64(len(line)) + 1
			}
			total += sizes[i]
		}
		i := 0
		for i < len(kept) && total > maxBytes {
			total -= sizes[i]
			i++
		}
		kept = kept[i:]
	}

	return kept, len(recs) - len(kept)
}
