package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/timecapsule/timecapsule/internal/core"
)

// CapsuleStore handles time capsule persistence
type CapsuleStore struct {
	db *DB
}

// NewCapsuleStore creates a new capsule store
func NewCapsuleStore(db *DB) *CapsuleStore {
	return &CapsuleStore{db: db}
}

// Create inserts a new time capsule after validating its delivery window
func (s *CapsuleStore) Create(ctx context.Context, c *core.Capsule) error {
	if c.EarliestAt.After(c.LatestAt) {
		return core.ErrInvalidWindow
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.EarliestAt = c.EarliestAt.UTC()
	c.LatestAt = c.LatestAt.UTC()

	emotion, _ := json.Marshal(c.Emotion)
	snapshot, _ := json.Marshal(c.Snapshot)

	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO time_capsules (id, user_id, content, created_at, earliest_at, latest_at, emotion, snapshot, delivered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`, c.ID, c.UserID, c.Content, c.CreatedAt, c.EarliestAt, c.LatestAt,
		string(emotion), string(snapshot))

	return err
}

// GetByID returns a capsule by ID
func (s *CapsuleStore) GetByID(ctx context.Context, id core.ItemID) (*core.Capsule, error) {
	rows, err := s.db.conn.QueryContext(ctx, capsuleSelect+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	capsules, err := scanCapsules(rows)
	if err != nil {
		return nil, err
	}
	if len(capsules) == 0 {
		return nil, core.ErrCapsuleNotFound
	}
	return capsules[0], nil
}

// Due returns the user's undelivered capsules whose window contains now,
// oldest creation first so the oldest surprise surfaces first
func (s *CapsuleStore) Due(ctx context.Context, userID core.UserID, now time.Time) ([]*core.Capsule, error) {
	rows, err := s.db.conn.QueryContext(ctx, capsuleSelect+`
		WHERE user_id = ? AND earliest_at <= ? AND latest_at >= ? AND delivered_at IS NULL
		ORDER BY created_at ASC
	`, userID, now.UTC(), now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCapsules(rows)
}

// MarkDelivered conditionally stamps the delivery time and reports how many
// rows changed; zero means another sweep already claimed the capsule.
// Once set, delivered_at is permanent.
func (s *CapsuleStore) MarkDelivered(ctx context.Context, id core.ItemID, now time.Time) (int64, error) {
	res, err := s.db.conn.ExecContext(ctx, `
		UPDATE time_capsules SET delivered_at = ?
		WHERE id = ? AND delivered_at IS NULL
	`, now.UTC(), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Missed returns capsules whose window closed before they were ever
// delivered. They are surfaced here for diagnostics and never purged.
func (s *CapsuleStore) Missed(ctx context.Context, userID core.UserID, now time.Time) ([]*core.Capsule, error) {
	rows, err := s.db.conn.QueryContext(ctx, capsuleSelect+`
		WHERE user_id = ? AND latest_at < ? AND delivered_at IS NULL
		ORDER BY latest_at ASC
	`, userID, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCapsules(rows)
}

const capsuleSelect = `
	SELECT id, user_id, content, created_at, earliest_at, latest_at, emotion, snapshot, delivered_at
	FROM time_capsules`

func scanCapsules(rows *sql.Rows) ([]*core.Capsule, error) {
	var capsules []*core.Capsule
	for rows.Next() {
		c := &core.Capsule{}
		var emotion, snapshot string
		var deliveredAt sql.NullTime

		err := rows.Scan(&c.ID, &c.UserID, &c.Content, &c.CreatedAt,
			&c.EarliestAt, &c.LatestAt, &emotion, &snapshot, &deliveredAt)
		if err != nil {
			return nil, err
		}

		json.Unmarshal([]byte(emotion), &c.Emotion)
		json.Unmarshal([]byte(snapshot), &c.Snapshot)
		if deliveredAt.Valid {
			t := deliveredAt.Time
			c.DeliveredAt = &t
		}

		capsules = append(capsules, c)
	}

	return capsules, rows.Err()
}
