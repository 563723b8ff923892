package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/timecapsule/timecapsule/internal/core"
)

// ReminderStore handles reminder persistence
type ReminderStore struct {
	db *DB
}

// NewReminderStore creates a new reminder store
func NewReminderStore(db *DB) *ReminderStore {
	return &ReminderStore{db: db}
}

// Create inserts a new reminder. DueAt is written once here and never updated.
func (s *ReminderStore) Create(ctx context.Context, r *core.Reminder) error {
	if r.Status == "" {
		r.Status = core.StatusPending
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.DueAt = r.DueAt.UTC()

	emotion, _ := json.Marshal(r.Emotion)
	activity, _ := json.Marshal(r.Activity)
	responses, _ := json.Marshal(r.Responses)
	if r.Responses == nil {
		responses = []byte("[]")
	}

	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO reminders (id, user_id, content, created_at, due_at, emotion, activity, status, delivery_count, responses)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.UserID, r.Content, r.CreatedAt, r.DueAt,
		string(emotion), string(activity), r.Status, r.DeliveryCount, string(responses))

	return err
}

// GetByID returns a reminder by ID
func (s *ReminderStore) GetByID(ctx context.Context, id core.ItemID) (*core.Reminder, error) {
	row := s.db.conn.QueryRowContext(ctx, `
		SELECT id, user_id, content, created_at, due_at, emotion, activity, status, delivery_count, responses
		FROM reminders WHERE id = ?
	`, id)

	r, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrReminderNotFound
	}
	return r, err
}

// Due returns the user's pending reminders whose due time has passed,
// earliest due first so a backlog drains oldest-first.
func (s *ReminderStore) Due(ctx context.Context, userID core.UserID, now time.Time) ([]*core.Reminder, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, user_id, content, created_at, due_at, emotion, activity, status, delivery_count, responses
		FROM reminders
		WHERE user_id = ? AND status = ? AND due_at <= ?
		ORDER BY due_at ASC
	`, userID, core.StatusPending, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []*core.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, r)
	}

	return reminders, rows.Err()
}

// IncrementDelivery bumps the monotonic delivery counter. The status is
// deliberately untouched: retiring a reminder is the request layer's call.
func (s *ReminderStore) IncrementDelivery(ctx context.Context, id core.ItemID) error {
	res, err := s.db.conn.ExecContext(ctx,
		"UPDATE reminders SET delivery_count = delivery_count + 1 WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrReminderNotFound
	}
	return nil
}

// UpdateStatus transitions a reminder's lifecycle state
func (s *ReminderStore) UpdateStatus(ctx context.Context, id core.ItemID, status core.ReminderStatus) error {
	res, err := s.db.conn.ExecContext(ctx,
		"UPDATE reminders SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrReminderNotFound
	}
	return nil
}

// AppendResponse appends one reply to the reminder's response history
func (s *ReminderStore) AppendResponse(ctx context.Context, id core.ItemID, resp core.UserResponse) error {
	resp.At = resp.At.UTC()

	return s.db.Transaction(func(tx *sql.Tx) error {
		var raw string
		err := tx.QueryRowContext(ctx, "SELECT responses FROM reminders WHERE id = ?", id).Scan(&raw)
		if err == sql.ErrNoRows {
			return core.ErrReminderNotFound
		}
		if err != nil {
			return err
		}

		var history []core.UserResponse
		if err := json.Unmarshal([]byte(raw), &history); err != nil {
			return fmt.Errorf("decode response history: %w", err)
		}
		history = append(history, resp)

		encoded, err := json.Marshal(history)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, "UPDATE reminders SET responses = ? WHERE id = ?", string(encoded), id)
		return err
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (*core.Reminder, error) {
	r := &core.Reminder{}
	var emotion, activity, responses string

	err := row.Scan(&r.ID, &r.UserID, &r.Content, &r.CreatedAt, &r.DueAt,
		&emotion, &activity, &r.Status, &r.DeliveryCount, &responses)
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(emotion), &r.Emotion)
	json.Unmarshal([]byte(activity), &r.Activity)
	json.Unmarshal([]byte(responses), &r.Responses)

	return r, nil
}
