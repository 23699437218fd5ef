package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/refound/lostfound-bot/internal/models"
)

const claimColumns = `id, item_id, claimant_id, message, status, created_at, updated_at`

func scanClaim(row scanner) (*models.Claim, error) {
	var c models.Claim
	var status string
	if err := row.Scan(&c.ID, &c.ItemID, &c.ClaimantID, &c.Message, &status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Status = models.ClaimStatus(status)
	return &c, nil
}

// CreateClaim records a pending claim by claimantID on itemID.
//
// Errors: models.ErrNotFound (no such item), models.ErrOwnItem,
// models.ErrItemUnavailable (item not active), models.ErrClaimExists
// (a pending claim by the same user already exists).
func (db *DB) CreateClaim(ctx context.Context, itemID, claimantID int64, message string) (*models.Claim, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var ownerID int64
	var state string
	err = tx.QueryRowContext(ctx, `SELECT owner_id, state FROM items WHERE id = ?`, itemID).Scan(&ownerID, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying claimed item: %w", err)
	}
	switch {
	case state == string(models.ItemDeleted):
		return nil, models.ErrNotFound
	case ownerID == claimantID:
		return nil, models.ErrOwnItem
	case state != string(models.ItemActive):
		return nil, models.ErrItemUnavailable
	}

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM claims WHERE item_id = ? AND claimant_id = ? AND status = 'pending'`,
		itemID, claimantID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking existing claim: %w", err)
	}
	if exists > 0 {
		return nil, models.ErrClaimExists
	}

	now := db.stamp()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO claims (item_id, claimant_id, message, status, created_at, updated_at) VALUES (?, ?, ?, 'pending', ?, ?)`,
		itemID, claimantID, message, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrClaimExists
		}
		return nil, fmt.Errorf("inserting claim: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting claim id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	return &models.Claim{
		ID:         id,
		ItemID:     itemID,
		ClaimantID: claimantID,
		Message:    message,
		Status:     models.ClaimPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// CountClaims counts claims on itemID with the given status.
func (db *DB) CountClaims(ctx context.Context, itemID int64, status models.ClaimStatus) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM claims WHERE item_id = ? AND status = ?`, itemID, string(status),
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting claims: %w", err)
	}
	return n, nil
}

// ResolveClaim approves or rejects a pending claim on behalf of the item
// owner. Approval marks the item claimed and rejects the item's other
// pending claims. It returns the updated claim and item.
func (db *DB) ResolveClaim(ctx context.Context, claimID, ownerID int64, approve bool) (*models.Claim, *models.Item, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	claim, err := scanClaim(tx.QueryRowContext(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = ?`, claimID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, models.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("querying claim: %w", err)
	}

	item, err := scanItem(tx.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, claim.ItemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, models.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("querying claimed item: %w", err)
	}

	if item.OwnerID != ownerID {
		return nil, nil, models.ErrNotOwner
	}
	if claim.Status != models.ClaimPending {
		return nil, nil, models.ErrClaimResolved
	}
	if approve && item.State != models.ItemActive {
		return nil, nil, models.ErrItemUnavailable
	}

	now := db.stamp()
	status := models.ClaimRejected
	if approve {
		status = models.ClaimApproved
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE claims SET status = ?, updated_at = ? WHERE id = ?`, string(status), now, claimID,
	); err != nil {
		return nil, nil, fmt.Errorf("updating claim: %w", err)
	}

	if approve {
		if _, err := tx.ExecContext(ctx,
			`UPDATE items SET state = 'claimed', updated_at = ? WHERE id = ?`, now, item.ID,
		); err != nil {
			return nil, nil, fmt.Errorf("marking item claimed: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE claims SET status = 'rejected', updated_at = ? WHERE item_id = ? AND status = 'pending'`,
			now, item.ID,
		); err != nil {
			return nil, nil, fmt.Errorf("rejecting competing claims: %w", err)
		}
		item.State = models.ItemClaimed
		item.UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing claim resolution: %w", err)
	}

	claim.Status = status
	claim.UpdatedAt = now
	return claim, item, nil
}
