package db

import (
	"context"
	"errors"
	"testing"

	"github.com/refound/lostfound-bot/internal/models"
)

func TestCreateClaim(t *testing.T) {
	database := NewTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, database, 1)
	claimant := createTestUser(t, database, 2)
	it := createTestItem(t, database, owner.ID, models.ItemFound, "Wallet", testDay)

	c, err := database.CreateClaim(ctx, it.ID, claimant.ID, "It has my student card inside")
	if err != nil {
		t.Fatalf("CreateClaim: %v", err)
	}
	if c.Status != models.ClaimPending {
		t.Errorf("expected pending, got %s", c.Status)
	}

	if _, err := database.CreateClaim(ctx, it.ID, claimant.ID, "again"); !errors.Is(err, models.ErrClaimExists) {
		t.Errorf("expected ErrClaimExists, got %v", err)
	}
	n, err := database.CountClaims(ctx, it.ID, models.ClaimPending)
	if err != nil {
		t.Fatalf("CountClaims: %v", err)
	}
	if n != 1 {
		t.Errorf("expected exactly one pending claim, got %d", n)
	}
}

func TestCreateClaimErrors(t *testing.T) {
	database := NewTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, database, 1)
	claimant := createTestUser(t, database, 2)

	active := createTestItem(t, database, owner.ID, models.ItemFound, "Wallet", testDay)
	deleted := createTestItem(t, database, owner.ID, models.ItemFound, "Scarf", testDay)
	if err := database.DeleteItem(ctx, deleted.ID, owner.ID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}

	tests := []struct {
		name      string
		itemID    int64
		claimant  int64
		wantError error
	}{
		{"own item", active.ID, owner.ID, models.ErrOwnItem},
		{"missing item", 9999, claimant.ID, models.ErrNotFound},
		{"deleted item", deleted.ID, claimant.ID, models.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := database.CreateClaim(ctx, tt.itemID, tt.claimant, "mine")
			if !errors.Is(err, tt.wantError) {
				t.Errorf("expected %v, got %v", tt.wantError, err)
			}
		})
	}
}

func TestResolveClaim(t *testing.T) {
	database := NewTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, database, 1)
	first := createTestUser(t, database, 2)
	second := createTestUser(t, database, 3)
	it := createTestItem(t, database, owner.ID, models.ItemFound, "Wallet", testDay)

	c1, err := database.CreateClaim(ctx, it.ID, first.ID, "mine")
	if err != nil {
		t.Fatalf("CreateClaim: %v", err)
	}
	c2, err := database.CreateClaim(ctx, it.ID, second.ID, "no, mine")
	if err != nil {
		t.Fatalf("CreateClaim: %v", err)
	}

	if _, _, err := database.ResolveClaim(ctx, c1.ID, first.ID, true); !errors.Is(err, models.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	claim, item, err := database.ResolveClaim(ctx, c1.ID, owner.ID, true)
	if err != nil {
		t.Fatalf("ResolveClaim: %v", err)
	}
	if claim.Status != models.ClaimApproved || item.State != models.ItemClaimed {
		t.Errorf("expected approved claim and claimed item, got %s / %s", claim.Status, item.State)
	}

	other, err := scanClaim(database.conn.QueryRowContext(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = ?`, c2.ID))
	if err != nil {
		t.Fatalf("loading claim %d: %v", c2.ID, err)
	}
	if other.Status != models.ClaimRejected {
		t.Errorf("expected competing claim rejected, got %s", other.Status)
	}

	if _, _, err := database.ResolveClaim(ctx, c1.ID, owner.ID, false); !errors.Is(err, models.ErrClaimResolved) {
		t.Errorf("expected ErrClaimResolved, got %v", err)
	}

	// a claimed item cannot be claimed again
	third := createTestUser(t, database, 4)
	if _, err := database.CreateClaim(ctx, it.ID, third.ID, "mine"); !errors.Is(err, models.ErrItemUnavailable) {
		t.Errorf("expected ErrItemUnavailable, got %v", err)
	}
}

func TestRejectedClaimantMayClaimAgain(t *testing.T) {
	database := NewTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, database, 1)
	claimant := createTestUser(t, database, 2)
	it := createTestItem(t, database, owner.ID, models.ItemFound, "Wallet", testDay)

	c, err := database.CreateClaim(ctx, it.ID, claimant.ID, "mine")
	if err != nil {
		t.Fatalf("CreateClaim: %v", err)
	}
	if _, _, err := database.ResolveClaim(ctx, c.ID, owner.ID, false); err != nil {
		t.Fatalf("ResolveClaim: %v", err)
	}
	if _, err := database.CreateClaim(ctx, it.ID, claimant.ID, "it really is mine, blue stitching"); err != nil {
		t.Errorf("expected a new claim after rejection, got %v", err)
	}
}

func TestUpsertMatches(t *testing.T) {
	database := NewTestDB(t)
	ctx := context.Background()
	a := createTestUser(t, database, 1)
	b := createTestUser(t, database, 2)
	src := createTestItem(t, database, a.ID, models.ItemLost, "Phone", testDay)
	cand := createTestItem(t, database, b.ID, models.ItemFound, "Phone", testDay)

	if err := database.UpsertMatches(ctx, src.ID, []models.Match{{CandidateItemID: cand.ID, Score: 55}}); err != nil {
		t.Fatalf("UpsertMatches: %v", err)
	}
	if err := database.UpsertMatches(ctx, src.ID, []models.Match{{CandidateItemID: cand.ID, Score: 80}}); err != nil {
		t.Fatalf("UpsertMatches: %v", err)
	}

	matches, err := database.ListMatches(ctx, src.ID)
	if err != nil {
		t.Fatalf("ListMatches: %v", err)
	}
	if len(matches) != 1 || matches[0].Score != 80 {
		t.Errorf("expected one match with score 80, got %+v", matches)
	}

	stats, err := database.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Users != 2 || stats.ActiveLost != 1 || stats.ActiveFound != 1 || stats.Matches != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
