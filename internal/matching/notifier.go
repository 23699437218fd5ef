package matching

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/refound/lostfound-bot/internal/messages"
	"github.com/refound/lostfound-bot/internal/messenger"
	"github.com/refound/lostfound-bot/internal/metrics"
	"github.com/refound/lostfound-bot/internal/models"
	"github.com/refound/lostfound-bot/internal/payload"
)

// Store is what the notifier needs from persistence.
type Store interface {
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	UpsertMatches(ctx context.Context, sourceID int64, matches []models.Match) error
}

// Notifier records matches for a new item and tells its owner about them.
type Notifier struct {
	store  Store
	finder *Finder
	msgr   messenger.Messenger
	logger *slog.Logger
}

func NewNotifier(store Store, finder *Finder, msgr messenger.Messenger, logger *slog.Logger) *Notifier {
	return &Notifier{store: store, finder: finder, msgr: msgr, logger: logger}
}

// RecordAndNotify finds matches for itemID, stores them, and sends the
// owner a summary when there are any. It never panics; failures are logged.
func (n *Notifier) RecordAndNotify(ctx context.Context, itemID int64) {
	defer func() {
		if r := recover(); r != nil {
			metrics.MatchNotifications.WithLabelValues("panic").Inc()
			n.logger.Error("match_notify_panic", "item_id", itemID, "panic", fmt.Sprint(r))
		}
	}()

	sent, err := n.recordAndNotify(ctx, itemID)
	switch {
	case err != nil:
		metrics.MatchNotifications.WithLabelValues("error").Inc()
		n.logger.Error("match_notify_failed", "item_id", itemID, "error", err)
	case sent == 0:
		metrics.MatchNotifications.WithLabelValues("none").Inc()
		n.logger.Debug("match_notify_none", "item_id", itemID)
	default:
		metrics.MatchNotifications.WithLabelValues("sent").Inc()
		n.logger.Info("match_notify_sent", "item_id", itemID, "matches", sent)
	}
}

func (n *Notifier) recordAndNotify(ctx context.Context, itemID int64) (int, error) {
	item, err := n.store.GetItem(ctx, itemID)
	if err != nil {
		return 0, err
	}
	if item == nil {
		return 0, fmt.Errorf("item %d: %w", itemID, models.ErrNotFound)
	}

	candidates := n.finder.FindMatches(ctx, *item)
	if len(candidates) == 0 {
		return 0, nil
	}

	matches := make([]models.Match, 0, len(candidates))
	entries := make([]messages.MatchEntry, 0, len(candidates))
	for _, c := range candidates {
		matches = append(matches, models.Match{SourceItemID: item.ID, CandidateItemID: c.Item.ID, Score: c.Score})
		entries = append(entries, messages.MatchEntry{Item: c.Item, Score: c.Score})
	}
	if err := n.store.UpsertMatches(ctx, item.ID, matches); err != nil {
		return 0, err
	}

	owner, err := n.store.GetUser(ctx, item.OwnerID)
	if err != nil {
		return 0, err
	}
	if owner == nil {
		return 0, fmt.Errorf("owner %d: %w", item.OwnerID, models.ErrNotFound)
	}

	kb := make(messenger.Keyboard, 0, len(candidates))
	for _, c := range candidates {
		kb = append(kb, messenger.Row(messenger.Button{
			Label: fmt.Sprintf("%d%% · %s", c.Score, c.Item.Title),
			Data:  payload.ViewItem{ID: c.Item.ID}.Encode(),
		}))
	}

	if err := n.msgr.SendMessage(ctx, owner.TelegramID, messages.Matches(*item, entries, n.finder.cfg.Location), messenger.Options{Keyboard: kb}); err != nil {
		return 0, err
	}
	return len(candidates), nil
}
