package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/timecapsule/timecapsule/internal/core"
)

// TimelineStore records user interactions. The planner reads activity hours
// from it; the scheduler reads the active-user set.
type TimelineStore struct {
	db *DB
}

// NewTimelineStore creates a new timeline store
func NewTimelineStore(db *DB) *TimelineStore {
	return &TimelineStore{db: db}
}

// Append records one interaction
func (s *TimelineStore) Append(ctx context.Context, e *core.TimelineEntry) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	e.At = e.At.UTC()

	tags, _ := json.Marshal(e.Tags)
	if e.Tags == nil {
		tags = []byte("[]")
	}

	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO timeline_entries (id, user_id, at, kind, content, emotion, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.UserID, e.At, e.Kind, e.Content, e.Emotion, string(tags))

	return err
}

// RecentActivityHours returns the hour-of-day of each of the user's timeline
// entries inside the trailing window, newest first
func (s *TimelineStore) RecentActivityHours(ctx context.Context, userID core.UserID, now time.Time, sinceDays int) ([]int, error) {
	cutoff := now.UTC().AddDate(0, 0, -sinceDays)

	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT at FROM timeline_entries
		WHERE user_id = ? AND at >= ?
		ORDER BY at DESC
	`, userID, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hours []int
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			return nil, err
		}
		hours = append(hours, at.Hour())
	}

	return hours, rows.Err()
}

// ActiveUsers returns users with recent item activity. This is a cheap
// filter for the per-user sweeps, not a correctness gate; a user holding a
// pending reminder or an undelivered capsule always counts as active so a
// due item is never missed just because its owner went quiet.
func (s *TimelineStore) ActiveUsers(ctx context.Context, now time.Time) ([]core.UserID, error) {
	now = now.UTC()

	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT DISTINCT user_id FROM reminders WHERE status = ? OR created_at > ?
		UNION
		SELECT DISTINCT user_id FROM timeline_entries WHERE at > ?
		UNION
		SELECT DISTINCT user_id FROM time_capsules WHERE delivered_at IS NULL
	`, core.StatusPending, now.AddDate(0, 0, -30), now.AddDate(0, 0, -7))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []core.UserID
	for rows.Next() {
		var id core.UserID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}

	return users, rows.Err()
}
