package db

import (
	"context"
	"fmt"

	"github.com/refound/lostfound-bot/internal/models"
)

// UpsertMatches stores scored pairs for sourceID. Re-scoring an existing
// pair replaces its score.
func (db *DB) UpsertMatches(ctx context.Context, sourceID int64, matches []models.Match) error {
	if len(matches) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := db.stamp()
	for _, m := range matches {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO matches (source_item_id, candidate_item_id, score, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (source_item_id, candidate_item_id)
			DO UPDATE SET score = excluded.score, updated_at = excluded.updated_at`,
			sourceID, m.CandidateItemID, m.Score, now, now,
		); err != nil {
			return fmt.Errorf("upserting match: %w", err)
		}
	}

	return tx.Commit()
}

// ListMatches returns stored matches for sourceID, best first.
func (db *DB) ListMatches(ctx context.Context, sourceID int64) ([]models.Match, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT source_item_id, candidate_item_id, score, created_at, updated_at
		FROM matches WHERE source_item_id = ? ORDER BY score DESC, candidate_item_id DESC`, sourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing matches: %w", err)
	}
	defer rows.Close()

	var matches []models.Match
	for rows.Next() {
		var m models.Match
		if err := rows.Scan(&m.SourceItemID, &m.CandidateItemID, &m.Score, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
