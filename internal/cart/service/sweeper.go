package service

import (
	"context"
	"log"
	"time"

	"github.com/hana270/PFE-PROJET/internal/cart/repository"
)

// Sweeper periodically deletes session carts idle past the TTL, so the
// lazy check in Resolve is not the only line of defense against
// abandoned carts piling up.
type Sweeper struct {
	repo     repository.CartRepository
	interval time.Duration
	ttl      time.Duration
}

func NewSweeper(repo repository.CartRepository, interval, ttl time.Duration) *Sweeper {
	return &Sweeper{repo: repo, interval: interval, ttl: ttl}
}

// Run blocks until ctx is done, sweeping once per interval.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Sweeper) sweep(ctx context.Context) {
	threshold := time.Now().Add(-w.ttl)
	deleted, err := w.repo.DeleteStaleSessionCarts(ctx, threshold)
	if err != nil {
		log.Printf("sweeper: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("sweeper: deleted %d stale session carts", deleted)
	}
}
