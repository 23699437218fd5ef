package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/refound/lostfound-bot/internal/models"
)

// GetConversation returns the user's dialogue state, or nil, nil when the
// user is idle.
func (db *DB) GetConversation(ctx context.Context, userID int64) (*models.ConversationState, error) {
	return getConversation(ctx, db.conn, userID)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getConversation(ctx context.Context, q queryRower, userID int64) (*models.ConversationState, error) {
	var cs models.ConversationState
	var state, data string
	err := q.QueryRowContext(ctx,
		`SELECT user_id, state, data, updated_at FROM conversation_states WHERE user_id = ?`, userID,
	).Scan(&cs.UserID, &state, &data, &cs.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}
	cs.State = models.FlowState(state)
	if err := json.Unmarshal([]byte(data), &cs.Data); err != nil {
		return nil, fmt.Errorf("decoding conversation data: %w", err)
	}
	return &cs, nil
}

// SetConversation replaces the user's dialogue state. Setting the idle state
// clears it.
func (db *DB) SetConversation(ctx context.Context, userID int64, state models.FlowState, data models.ConversationData) error {
	if state == models.StateIdle {
		return db.ClearConversation(ctx, userID)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding conversation data: %w", err)
	}

	if _, err := db.conn.ExecContext(ctx,
		`INSERT INTO conversation_states (user_id, state, data, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET state = excluded.state, data = excluded.data, updated_at = excluded.updated_at`,
		userID, string(state), string(raw), db.stamp(),
	); err != nil {
		return fmt.Errorf("saving conversation: %w", err)
	}
	return nil
}

// UpdateConversation merges the non-empty fields of partial into the stored
// data bag, keeping the current state label. It does nothing for idle users.
func (db *DB) UpdateConversation(ctx context.Context, userID int64, partial models.ConversationData) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	cur, err := getConversation(ctx, tx, userID)
	if err != nil {
		return err
	}
	if cur == nil {
		return nil
	}

	merged, err := mergeData(cur.Data, partial)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversation_states SET data = ?, updated_at = ? WHERE user_id = ?`,
		merged, db.stamp(), userID,
	); err != nil {
		return fmt.Errorf("updating conversation: %w", err)
	}

	return tx.Commit()
}

// mergeData overlays the keys present in partial's JSON form onto base.
func mergeData(base, partial models.ConversationData) (string, error) {
	fields := map[string]json.RawMessage{}
	for _, d := range []models.ConversationData{base, partial} {
		raw, err := json.Marshal(d)
		if err != nil {
			return "", fmt.Errorf("encoding conversation data: %w", err)
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return "", fmt.Errorf("merging conversation data: %w", err)
		}
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encoding merged conversation data: %w", err)
	}
	return string(out), nil
}

func (db *DB) ClearConversation(ctx context.Context, userID int64) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM conversation_states WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clearing conversation: %w", err)
	}
	return nil
}

// PurgeConversations deletes dialogues not touched since cutoff.
func (db *DB) PurgeConversations(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM conversation_states WHERE updated_at < ?`, timestamp(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("purging conversations: %w", err)
	}
	return res.RowsAffected()
}
