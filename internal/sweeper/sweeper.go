// Package sweeper periodically expires stale reports and drops abandoned
// dialogues.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"github.com/refound/lostfound-bot/internal/metrics"
)

type Store interface {
	ExpireItems(ctx context.Context, cutoff time.Time) (int64, error)
	PurgeConversations(ctx context.Context, cutoff time.Time) (int64, error)
}

type Config struct {
	Cron            string
	ItemMaxAge      time.Duration
	ConversationTTL time.Duration
}

type Sweeper struct {
	store  Store
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

func New(store Store, cfg Config, logger *slog.Logger) *Sweeper {
	return &Sweeper{store: store, cfg: cfg, now: time.Now, logger: logger}
}

// RunOnce expires items older than ItemMaxAge and purges conversations idle
// longer than ConversationTTL.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	now := s.now()

	expired, expErr := s.store.ExpireItems(ctx, now.Add(-s.cfg.ItemMaxAge))
	if expErr != nil {
		expErr = fmt.Errorf("expiring items: %w", expErr)
	}
	purged, purgeErr := s.store.PurgeConversations(ctx, now.Add(-s.cfg.ConversationTTL))
	if purgeErr != nil {
		purgeErr = fmt.Errorf("purging conversations: %w", purgeErr)
	}

	if err := errors.Join(expErr, purgeErr); err != nil {
		metrics.SweeperRuns.WithLabelValues("error").Inc()
		return err
	}

	metrics.SweeperRuns.WithLabelValues("ok").Inc()
	if expired > 0 || purged > 0 {
		s.logger.Info("sweeper_run", "items_expired", expired, "conversations_purged", purged)
	}
	return nil
}

// Start runs the sweeper on its cron schedule until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	if !gronx.IsValid(s.cfg.Cron) {
		return fmt.Errorf("invalid sweeper cron expression: %s", s.cfg.Cron)
	}

	s.logger.Info("sweeper_started", "cron", s.cfg.Cron)
	go s.loop(ctx)
	return nil
}

func (s *Sweeper) loop(ctx context.Context) {
	for {
		next, err := gronx.NextTickAfter(s.cfg.Cron, s.now(), false)
		if err != nil {
			s.logger.Error("sweeper_nexttick_failed", "cron", s.cfg.Cron, "error", err)
			next = s.now().Add(time.Hour)
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("sweeper_stopping")
			return
		case <-timer.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("sweeper_run_failed", "error", err)
			}
		}
	}
}
