// Package core defines the fundamental types and errors for the time capsule daemon.
package core

import "time"

// UserID identifies the owner of an item
type UserID string

// ItemID identifies a reminder, nudge, or time capsule
type ItemID string

// ItemKind tags which kind of time-triggered item a delivery belongs to
type ItemKind string

const (
	KindReminder    ItemKind = "reminder"
	KindNudge       ItemKind = "nudge"
	KindTimeCapsule ItemKind = "time_capsule"
)

// ReminderStatus tracks the lifecycle of a reminder
type ReminderStatus string

const (
	StatusPending   ReminderStatus = "pending"
	StatusCompleted ReminderStatus = "completed"
	StatusSnoozed   ReminderStatus = "snoozed"
	StatusCancelled ReminderStatus = "cancelled"
)

// NudgeKind distinguishes planned daily check-ins from trigger-driven nudges
type NudgeKind string

const (
	NudgeDaily      NudgeKind = "daily"
	NudgeContextual NudgeKind = "contextual"
)

// EmotionProfile is the emotional reading attached to an item at creation time.
// Classification itself happens in an external engine; the daemon only stores
// and replays the result.
type EmotionProfile struct {
	Primary    string             `json:"primary_emotion"`
	Intensity  float64            `json:"intensity"` // 0.0 to 1.0
	Secondary  map[string]float64 `json:"secondary_emotions,omitempty"`
	Confidence float64            `json:"confidence"`
	Indicators []string           `json:"indicators,omitempty"`
}

// ActivitySnapshot captures what the user was doing when an item was created
type ActivitySnapshot struct {
	Primary     string   `json:"primary_activity"`
	Location    string   `json:"location_type,omitempty"` // home, work, gym, commute
	Social      string   `json:"social_context,omitempty"`
	TimeContext string   `json:"time_context,omitempty"`
	EnergyLevel string   `json:"energy_level,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// ContextSnapshot is the situational context frozen into a time capsule
type ContextSnapshot struct {
	Season    string `json:"season"`
	DayOfWeek string `json:"day_of_week"`
	TimeOfDay string `json:"time_of_day"`
}

// UserResponse is one entry in a reminder's append-only reply log
type UserResponse struct {
	At        time.Time `json:"at"`
	Text      string    `json:"text"`
	Sentiment string    `json:"sentiment,omitempty"`
}

// Reminder is a message the user left for a fixed future instant.
// DueAt is set once at creation and never rewritten. DeliveryCount increments
// monotonically; the scheduler delivers a pending reminder on every sweep in
// which it is found due and leaves the status transition to the request layer.
type Reminder struct {
	ID            ItemID           `json:"id"`
	UserID        UserID           `json:"user_id"`
	Content       string           `json:"content"`
	CreatedAt     time.Time        `json:"created_at"`
	DueAt         time.Time        `json:"due_at"`
	Emotion       EmotionProfile   `json:"emotional_context"`
	Activity      ActivitySnapshot `json:"activity_context"`
	Status        ReminderStatus   `json:"status"`
	DeliveryCount int              `json:"delivery_count"`
	Responses     []UserResponse   `json:"response_history,omitempty"`
}

// Nudge is a proactive check-in scheduled for a fixed instant.
// Once Delivered is set the nudge is never selected again.
type Nudge struct {
	ID             ItemID     `json:"id"`
	UserID         UserID     `json:"user_id"`
	FireAt         time.Time  `json:"fire_at"`
	Kind           NudgeKind  `json:"kind"`
	Category       string     `json:"category,omitempty"`        // contextual only
	TriggerMessage string     `json:"trigger_message,omitempty"` // contextual only
	Delivered      bool       `json:"delivered"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Capsule is a message delivered at a surprise moment inside a window.
// EarliestAt <= LatestAt always. A capsule whose window closes undelivered is
// missed, stays queryable, and is never purged.
type Capsule struct {
	ID          ItemID          `json:"id"`
	UserID      UserID          `json:"user_id"`
	Content     string          `json:"content"`
	CreatedAt   time.Time       `json:"created_at"`
	EarliestAt  time.Time       `json:"earliest_at"`
	LatestAt    time.Time       `json:"latest_at"`
	Emotion     EmotionProfile  `json:"emotional_snapshot"`
	Snapshot    ContextSnapshot `json:"context_snapshot"`
	DeliveredAt *time.Time      `json:"delivered_at,omitempty"`
}

// TimelineEntry records one user interaction, the raw material for the
// planner's activity-rhythm analysis
type TimelineEntry struct {
	ID      ItemID    `json:"id"`
	UserID  UserID    `json:"user_id"`
	At      time.Time `json:"at"`
	Kind    string    `json:"kind"` // reminder, capsule, nudge_response, message
	Content string    `json:"content"`
	Emotion string    `json:"emotion,omitempty"`
	Tags    []string  `json:"tags,omitempty"`
}

// Season names the meteorological season of t
func Season(t time.Time) string {
	switch t.Month() {
	case time.December, time.January, time.February:
		return "winter"
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	default:
		return "fall"
	}
}

// TimeOfDay buckets t into a coarse daypart label
func TimeOfDay(t time.Time) string {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return "morning"
	case h >= 12 && h < 18:
		return "afternoon"
	case h >= 18 && h < 23:
		return "evening"
	default:
		return "night"
	}
}

// SnapshotAt builds the context snapshot frozen into a capsule at creation
func SnapshotAt(t time.Time) ContextSnapshot {
	return ContextSnapshot{
		Season:    Season(t),
		DayOfWeek: t.Weekday().String(),
		TimeOfDay: TimeOfDay(t),
	}
}
