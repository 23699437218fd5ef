package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/refound/lostfound-bot/internal/db"
	"github.com/refound/lostfound-bot/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnce(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	u, err := database.UpsertUser(ctx, 1, "U", "", false)
	if err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}

	database.SetClock(func() time.Time { return start })
	old, err := database.CreateItem(ctx, models.ItemDraft{
		OwnerID: u.ID, Type: models.ItemLost, Category: "keys", Title: "Old keys",
		Location: "gym", OccurredAt: start,
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if err := database.SetConversation(ctx, u.ID, models.StateReportTitle, models.ConversationData{}); err != nil {
		t.Fatalf("SetConversation: %v", err)
	}

	s := New(database, Config{Cron: "0 3 * * *", ItemMaxAge: 30 * 24 * time.Hour, ConversationTTL: 24 * time.Hour}, testLogger())

	// A day and a half later: the conversation is stale, the item is not.
	s.now = func() time.Time { return start.Add(36 * time.Hour) }
	if err := s.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if cs, _ := database.GetConversation(ctx, u.ID); cs != nil {
		t.Errorf("expected stale conversation purged, got %+v", cs)
	}
	it, _ := database.GetItem(ctx, old.ID)
	if it.State != models.ItemActive {
		t.Errorf("expected item still active, got %s", it.State)
	}

	s.now = func() time.Time { return start.AddDate(0, 2, 0) }
	if err := s.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	it, _ = database.GetItem(ctx, old.ID)
	if it.State != models.ItemExpired {
		t.Errorf("expected item expired, got %s", it.State)
	}
}

type failingStore struct{}

func (failingStore) ExpireItems(context.Context, time.Time) (int64, error) {
	return 0, errors.New("locked")
}

func (failingStore) PurgeConversations(context.Context, time.Time) (int64, error) {
	return 3, nil
}

func TestRunOnceReportsErrors(t *testing.T) {
	s := New(failingStore{}, Config{ItemMaxAge: time.Hour, ConversationTTL: time.Hour}, testLogger())
	if err := s.RunOnce(context.Background()); err == nil {
		t.Error("expected error from failing store")
	}
}

func TestStartRejectsBadCron(t *testing.T) {
	s := New(failingStore{}, Config{Cron: "whenever"}, testLogger())
	if err := s.Start(context.Background()); err == nil {
		t.Error("expected invalid cron to be rejected")
	}
}

func TestStartStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(failingStore{}, Config{Cron: "0 3 * * *", ItemMaxAge: time.Hour, ConversationTTL: time.Hour}, testLogger())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
}
