package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/refound/lostfound-bot/internal/models"
)

func (db *DB) ListPhotos(ctx context.Context, itemID int64) ([]models.Photo, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, item_id, file_id, phash, created_at FROM photos WHERE item_id = ? ORDER BY id`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		var p models.Photo
		var hash sql.NullString
		if err := rows.Scan(&p.ID, &p.ItemID, &p.FileID, &hash, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning photo: %w", err)
		}
		p.Hash = hash.String
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

func (db *DB) SetPhotoHash(ctx context.Context, photoID int64, hash string) error {
	if _, err := db.conn.ExecContext(ctx, `UPDATE photos SET phash = ? WHERE id = ?`, hash, photoID); err != nil {
		return fmt.Errorf("updating photo hash: %w", err)
	}
	return nil
}
