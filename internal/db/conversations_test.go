package db

import (
	"context"
	"testing"
	"time"

	"github.com/refound/lostfound-bot/internal/models"
)

func TestConversationLifecycle(t *testing.T) {
	database := NewTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, database, 1)

	cs, err := database.GetConversation(ctx, u.ID)
	if err != nil || cs != nil {
		t.Fatalf("expected nil, nil for idle user, got %v, %v", cs, err)
	}

	if err := database.SetConversation(ctx, u.ID, models.StateReportTitle, models.ConversationData{
		ItemType: models.ItemLost,
		Category: "keys",
	}); err != nil {
		t.Fatalf("SetConversation: %v", err)
	}

	if err := database.UpdateConversation(ctx, u.ID, models.ConversationData{Title: "Car keys"}); err != nil {
		t.Fatalf("UpdateConversation: %v", err)
	}

	cs, err = database.GetConversation(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if cs.State != models.StateReportTitle {
		t.Errorf("expected state to be kept, got %s", cs.State)
	}
	if cs.Data.ItemType != models.ItemLost || cs.Data.Category != "keys" || cs.Data.Title != "Car keys" {
		t.Errorf("expected merged data, got %+v", cs.Data)
	}

	when := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := database.SetConversation(ctx, u.ID, models.StateReportPhotos, models.ConversationData{OccurredAt: &when}); err != nil {
		t.Fatalf("SetConversation: %v", err)
	}
	cs, _ = database.GetConversation(ctx, u.ID)
	if cs.Data.Title != "" || cs.Data.OccurredAt == nil || !cs.Data.OccurredAt.Equal(when) {
		t.Errorf("expected set to replace data, got %+v", cs.Data)
	}

	if err := database.ClearConversation(ctx, u.ID); err != nil {
		t.Fatalf("ClearConversation: %v", err)
	}
	cs, err = database.GetConversation(ctx, u.ID)
	if err != nil || cs != nil {
		t.Errorf("expected cleared conversation, got %v, %v", cs, err)
	}
}

func TestUpdateConversationWithoutRowIsNoop(t *testing.T) {
	database := NewTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, database, 1)

	if err := database.UpdateConversation(ctx, u.ID, models.ConversationData{Title: "x"}); err != nil {
		t.Fatalf("UpdateConversation: %v", err)
	}
	cs, err := database.GetConversation(ctx, u.ID)
	if err != nil || cs != nil {
		t.Errorf("expected no row to be created, got %v, %v", cs, err)
	}
}

func TestSetIdleClearsConversation(t *testing.T) {
	database := NewTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, database, 1)

	if err := database.SetConversation(ctx, u.ID, models.StateSearchQuery, models.ConversationData{}); err != nil {
		t.Fatalf("SetConversation: %v", err)
	}
	if err := database.SetConversation(ctx, u.ID, models.StateIdle, models.ConversationData{}); err != nil {
		t.Fatalf("SetConversation: %v", err)
	}
	if cs, _ := database.GetConversation(ctx, u.ID); cs != nil {
		t.Errorf("expected idle to clear the row, got %+v", cs)
	}
}

func TestPurgeConversations(t *testing.T) {
	database := NewTestDB(t)
	ctx := context.Background()
	stale := createTestUser(t, database, 1)
	active := createTestUser(t, database, 2)

	database.SetClock(func() time.Time { return testDay })
	if err := database.SetConversation(ctx, stale.ID, models.StateReportTitle, models.ConversationData{}); err != nil {
		t.Fatalf("SetConversation: %v", err)
	}
	database.SetClock(func() time.Time { return testDay.Add(48 * time.Hour) })
	if err := database.SetConversation(ctx, active.ID, models.StateReportTitle, models.ConversationData{}); err != nil {
		t.Fatalf("SetConversation: %v", err)
	}

	n, err := database.PurgeConversations(ctx, testDay.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeConversations: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged conversation, got %d", n)
	}
	if cs, _ := database.GetConversation(ctx, active.ID); cs == nil {
		t.Error("expected recent conversation to survive")
	}
}
