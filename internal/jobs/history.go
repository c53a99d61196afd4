package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

const pruneTimeout = 5 * time.Minute

// HistoryPruner deletes closed reservations older than a retention window.
type HistoryPruner interface {
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

// PruneHistory runs one pruning pass and logs its outcome.
func PruneHistory(ctx context.Context, pruner HistoryPruner, retention time.Duration) error {
	log.Printf("Cron Job: pruning closed reservations older than %s...", retention)

	deleted, err := pruner.PruneHistory(ctx, retention)
	if err != nil {
		return fmt.Errorf("cron job: prune reservation history: %w", err)
	}

	log.Printf("Cron Job: pruned %d closed reservation(s).", deleted)
	return nil
}

// StartHistoryPruner schedules PruneHistory on schedule (standard cron syntax
// or descriptors such as @daily). It returns nil when retention is zero.
func StartHistoryPruner(pruner HistoryPruner, schedule string, retention time.Duration) (*cron.Cron, error) {
	if retention <= 0 {
		log.Println("Cron Job: reservation history is kept forever, pruner disabled.")
		return nil, nil
	}

	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
		defer cancel()
		if err := PruneHistory(ctx, pruner, retention); err != nil {
			log.Println(err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule history pruner %q: %w", schedule, err)
	}

	c.Start()
	log.Printf("Cron Job: history pruner scheduled at %q retention=%s", schedule, retention)
	return c, nil
}
