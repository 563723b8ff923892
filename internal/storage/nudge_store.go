package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/timecapsule/timecapsule/internal/core"
)

// NudgeStore handles nudge persistence
type NudgeStore struct {
	db *DB
}

// NewNudgeStore creates a new nudge store
func NewNudgeStore(db *DB) *NudgeStore {
	return &NudgeStore{db: db}
}

// Create inserts a new nudge
func (s *NudgeStore) Create(ctx context.Context, n *core.Nudge) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	n.CreatedAt = n.CreatedAt.UTC()
	n.FireAt = n.FireAt.UTC()

	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO nudges (id, user_id, fire_at, kind, category, trigger_message, delivered, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.UserID, n.FireAt, n.Kind, n.Category, n.TriggerMessage, n.Delivered, n.CreatedAt)

	return err
}

// Due returns undelivered nudges across all users whose fire time has passed,
// earliest first
func (s *NudgeStore) Due(ctx context.Context, now time.Time) ([]*core.Nudge, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, user_id, fire_at, kind, category, trigger_message, delivered, delivered_at, created_at
		FROM nudges
		WHERE delivered = 0 AND fire_at <= ?
		ORDER BY fire_at ASC
	`, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanNudges(rows)
}

// MarkDelivered conditionally flags a nudge as delivered and reports how many
// rows changed. Zero means the nudge was already claimed; the caller must not
// fan out in that case. This conditional update is the at-most-once guard.
func (s *NudgeStore) MarkDelivered(ctx context.Context, id core.ItemID, now time.Time) (int64, error) {
	res, err := s.db.conn.ExecContext(ctx, `
		UPDATE nudges SET delivered = 1, delivered_at = ?
		WHERE id = ? AND delivered = 0
	`, now.UTC(), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReplaceDaily swaps out the user's still-undelivered daily nudges scheduled
// for today with the given fire times, so re-planning the same day replaces
// rather than duplicates. Contextual nudges are never touched. Today is
// scoped with half-open timestamp bounds; SQLite's date() cannot parse the
// text the driver binds time.Time as.
func (s *NudgeStore) ReplaceDaily(ctx context.Context, userID core.UserID, fireAt []time.Time, now time.Time) error {
	now = now.UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	return s.db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM nudges
			WHERE user_id = ? AND kind = ? AND delivered = 0 AND fire_at >= ? AND fire_at < ?
		`, userID, core.NudgeDaily, dayStart, dayEnd)
		if err != nil {
			return err
		}

		for _, t := range fireAt {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO nudges (id, user_id, fire_at, kind, delivered, created_at)
				VALUES (?, ?, ?, ?, 0, ?)
			`, newNudgeID(), userID, t.UTC(), core.NudgeDaily, now.UTC())
			if err != nil {
				return err
			}
		}

		return nil
	})
}

// Upcoming returns the user's undelivered future nudges, soonest first
func (s *NudgeStore) Upcoming(ctx context.Context, userID core.UserID, now time.Time) ([]*core.Nudge, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, user_id, fire_at, kind, category, trigger_message, delivered, delivered_at, created_at
		FROM nudges
		WHERE user_id = ? AND delivered = 0 AND fire_at > ?
		ORDER BY fire_at ASC
	`, userID, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanNudges(rows)
}

func scanNudges(rows *sql.Rows) ([]*core.Nudge, error) {
	var nudges []*core.Nudge
	for rows.Next() {
		n := &core.Nudge{}
		var deliveredAt sql.NullTime

		err := rows.Scan(&n.ID, &n.UserID, &n.FireAt, &n.Kind, &n.Category,
			&n.TriggerMessage, &n.Delivered, &deliveredAt, &n.CreatedAt)
		if err != nil {
			return nil, err
		}
		if deliveredAt.Valid {
			t := deliveredAt.Time
			n.DeliveredAt = &t
		}

		nudges = append(nudges, n)
	}

	return nudges, rows.Err()
}
