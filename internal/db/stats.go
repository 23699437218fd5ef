package db

import (
	"context"
	"fmt"

	"github.com/refound/lostfound-bot/internal/models"
)

// Stats returns the counters shown by /admin.
func (db *DB) Stats(ctx context.Context) (*models.Stats, error) {
	var s models.Stats
	err := db.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM items WHERE state = 'active' AND type = 'lost'),
			(SELECT COUNT(*) FROM items WHERE state = 'active' AND type = 'found'),
			(SELECT COUNT(*) FROM items WHERE state = 'claimed'),
			(SELECT COUNT(*) FROM items WHERE state = 'expired'),
			(SELECT COUNT(*) FROM claims WHERE status = 'pending'),
			(SELECT COUNT(*) FROM matches)`,
	).Scan(&s.Users, &s.ActiveLost, &s.ActiveFound, &s.Claimed, &s.Expired, &s.PendingClaims, &s.Matches)
	if err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}
	return &s, nil
}
