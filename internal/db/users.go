package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/refound/lostfound-bot/internal/models"
)

const userColumns = `id, telegram_id, display_name, username, is_banned, role, created_at, updated_at`

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	var username sql.NullString
	var role string
	if err := row.Scan(&u.ID, &u.TelegramID, &u.DisplayName, &username, &u.IsBanned, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Username = username.String
	u.Role = models.Role(role)
	return &u, nil
}

// UpsertUser returns the user for telegramID, creating it on first contact
// and refreshing the display name and username when they change. admin
// promotes the user; it never demotes.
func (db *DB) UpsertUser(ctx context.Context, telegramID int64, displayName, username string, admin bool) (*models.User, error) {
	existing, err := db.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	now := db.stamp()

	if existing == nil {
		role := models.RoleStudent
		if admin {
			role = models.RoleAdmin
		}
		res, err := db.conn.ExecContext(ctx,
			`INSERT INTO users (telegram_id, display_name, username, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			telegramID, displayName, nullString(username), string(role), now, now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				// Lost a race with a concurrent first contact.
				return db.GetUserByTelegramID(ctx, telegramID)
			}
			return nil, fmt.Errorf("inserting user: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("getting user id: %w", err)
		}
		return &models.User{
			ID:          id,
			TelegramID:  telegramID,
			DisplayName: displayName,
			Username:    username,
			Role:        role,
			CreatedAt:   now,
			UpdatedAt:   now,
		}, nil
	}

	promote := admin && !existing.IsAdmin()
	if existing.DisplayName == displayName && existing.Username == username && !promote {
		return existing, nil
	}

	role := existing.Role
	if promote {
		role = models.RoleAdmin
	}
	if _, err := db.conn.ExecContext(ctx,
		`UPDATE users SET display_name = ?, username = ?, role = ?, updated_at = ? WHERE id = ?`,
		displayName, nullString(username), string(role), now, existing.ID,
	); err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}

	existing.DisplayName = displayName
	existing.Username = username
	existing.Role = role
	existing.UpdatedAt = now
	return existing, nil
}

// GetUser returns nil, nil when no user has the given row id.
func (db *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

func (db *DB) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = ?`, telegramID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by telegram id: %w", err)
	}
	return u, nil
}

// SetBanned bans or unbans the user with the given Telegram id.
func (db *DB) SetBanned(ctx context.Context, telegramID int64, banned bool) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET is_banned = ?, updated_at = ? WHERE telegram_id = ?`,
		banned, db.stamp(), telegramID,
	)
	if err != nil {
		return fmt.Errorf("updating ban flag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking ban update: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}
