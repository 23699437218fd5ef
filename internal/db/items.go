package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/refound/lostfound-bot/internal/models"
)

const itemColumns = `id, owner_id, type, category, title, description, location, location_detail,
	occurred_at, state, verification_question, created_at, updated_at`

func scanItem(row scanner) (*models.Item, error) {
	var it models.Item
	var typ, state string
	var desc, detail, question sql.NullString
	if err := row.Scan(
		&it.ID, &it.OwnerID, &typ, &it.Category, &it.Title, &desc, &it.Location, &detail,
		&it.OccurredAt, &state, &question, &it.CreatedAt, &it.UpdatedAt,
	); err != nil {
		return nil, err
	}
	it.Type = models.ItemType(typ)
	it.State = models.ItemState(state)
	it.Description = desc.String
	it.LocationDetail = detail.String
	it.VerificationQuestion = question.String
	return &it, nil
}

func collectItems(rows *sql.Rows) ([]models.Item, error) {
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	return items, nil
}

// CreateItem validates draft and stores it as an active item together with
// its photos. Either everything is written or nothing is.
func (db *DB) CreateItem(ctx context.Context, draft models.ItemDraft) (*models.Item, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	now := db.stamp()
	item := &models.Item{
		OwnerID:        draft.OwnerID,
		Type:           draft.Type,
		Category:       draft.Category,
		Title:          draft.Title,
		Description:    draft.Description,
		Location:       draft.Location,
		LocationDetail: draft.LocationDetail,
		OccurredAt:     timestamp(draft.OccurredAt),
		State:          models.ItemActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO items (owner_id, type, category, title, description, location, location_detail,
			occurred_at, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.OwnerID, string(item.Type), item.Category, item.Title, nullString(item.Description),
		item.Location, nullString(item.LocationDetail), item.OccurredAt, string(item.State), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting item: %w", err)
	}
	item.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	for _, fileID := range draft.PhotoFileIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO photos (item_id, file_id, created_at) VALUES (?, ?, ?)`,
			item.ID, fileID, now,
		); err != nil {
			return nil, fmt.Errorf("inserting photo: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item: %w", err)
	}

	return item, nil
}

// GetItem returns nil, nil when the item does not exist.
func (db *DB) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying item: %w", err)
	}
	return it, nil
}

// ItemFilter narrows ListItems. Zero values mean "any".
type ItemFilter struct {
	Type           models.ItemType
	State          models.ItemState
	OwnerID        int64
	ExcludeDeleted bool
	Limit          int
	Offset         int
}

func (f ItemFilter) where() (string, []any) {
	var conds []string
	var args []any
	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.State != "" {
		conds = append(conds, "state = ?")
		args = append(args, string(f.State))
	}
	if f.OwnerID != 0 {
		conds = append(conds, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if f.ExcludeDeleted {
		conds = append(conds, "state != 'deleted'")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListItems returns items newest first.
func (db *DB) ListItems(ctx context.Context, f ItemFilter) ([]models.Item, error) {
	where, args := f.where()
	query := `SELECT ` + itemColumns + ` FROM items` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return collectItems(rows)
}

// CountItems counts items matching f. Limit and Offset are ignored.
func (db *DB) CountItems(ctx context.Context, f ItemFilter) (int, error) {
	where, args := f.where()
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return n, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchItems returns up to limit active items whose title or description
// contains query, newest first.
func (db *DB) SearchItems(ctx context.Context, query string, limit int) ([]models.Item, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(query))) + "%"
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items
		WHERE state = 'active'
			AND (LOWER(title) LIKE ? ESCAPE '\' OR LOWER(COALESCE(description, '')) LIKE ? ESCAPE '\')
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching items: %w", err)
	}
	return collectItems(rows)
}

// DeleteItem soft-deletes an item on behalf of userID. It returns
// models.ErrNotFound for missing or already deleted items and
// models.ErrNotOwner when userID does not own the item.
func (db *DB) DeleteItem(ctx context.Context, itemID, userID int64) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var ownerID int64
	var state string
	err = tx.QueryRowContext(ctx, `SELECT owner_id, state FROM items WHERE id = ?`, itemID).Scan(&ownerID, &state)
	if errors.Is(err, sql.ErrNoRows) || state == string(models.ItemDeleted) {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("querying item owner: %w", err)
	}
	if ownerID != userID {
		return models.ErrNotOwner
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE items SET state = 'deleted', updated_at = ? WHERE id = ?`, db.stamp(), itemID,
	); err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}

	return tx.Commit()
}

// MatchCandidates returns active items matching q.
func (db *DB) MatchCandidates(ctx context.Context, q models.CandidateQuery) ([]models.Item, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items
		WHERE type = ? AND state = 'active' AND category = ? AND owner_id != ?
			AND occurred_at BETWEEN ? AND ?
		ORDER BY id DESC`,
		string(q.Type), q.Category, q.ExcludeOwner, timestamp(q.From), timestamp(q.To),
	)
	if err != nil {
		return nil, fmt.Errorf("querying match candidates: %w", err)
	}
	return collectItems(rows)
}

// ExpireItems marks active items created before cutoff as expired and
// returns how many changed.
func (db *DB) ExpireItems(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE items SET state = 'expired', updated_at = ? WHERE state = 'active' AND created_at < ?`,
		db.stamp(), timestamp(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("expiring items: %w", err)
	}
	return res.RowsAffected()
}
