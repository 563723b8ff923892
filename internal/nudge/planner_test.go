package nudge

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/timecapsule/timecapsule/internal/core"
	"github.com/timecapsule/timecapsule/internal/storage"
)

func testDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(storage.Config{InMemory: true})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

// testPlanner pins the clock and seeds the rng so plans are reproducible
func testPlanner(t *testing.T, db *storage.DB, now time.Time) *Planner {
	t.Helper()
	p := NewPlanner(db)
	p.now = func() time.Time { return now }
	p.rng = rand.New(rand.NewPCG(1, 2))
	return p
}

func repeatHours(h, n int) []int {
	hours := make([]int, n)
	for i := range hours {
		hours[i] = h
	}
	return hours
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		hours []int
		want  Archetype
	}{
		{"empty history", nil, RegularSchedule},
		{"morning heavy", []int{7, 8, 9, 8, 7, 14, 15, 16, 9, 8}, MorningPerson},
		{"night heavy", []int{23, 0, 1, 22, 14, 15, 16, 13, 23, 1}, NightOwl},
		{"spread across the day", []int{6, 8, 10, 12, 14, 16, 18, 20, 22, 0}, Flexible},
		{"office hours", []int{9, 10, 14, 15, 16, 17}, RegularSchedule},
		{"all morning", repeatHours(8, 20), MorningPerson},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.hours); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.hours, got, tt.want)
			}
		})
	}
}

func TestPlanner_PlanDaily(t *testing.T) {
	db := testDB(t)
	now := time.Date(2026, 3, 4, 5, 30, 0, 0, time.UTC)
	p := testPlanner(t, db, now)

	fireTimes, err := p.PlanDaily(context.Background(), "u1")
	if err != nil {
		t.Fatalf("PlanDaily() error = %v", err)
	}
	if len(fireTimes) < 1 || len(fireTimes) > 2 {
		t.Fatalf("PlanDaily() scheduled %d nudges, want 1 or 2", len(fireTimes))
	}

	// No history reads as a regular schedule; every slot is in the future
	allowed := map[int]bool{9: true, 13: true, 17: true, 21: true}
	for _, ft := range fireTimes {
		if !ft.After(now) {
			t.Errorf("fire time %v is not after now %v", ft, now)
		}
		if !allowed[ft.Hour()] {
			t.Errorf("fire time hour %d not in the regular_schedule hours", ft.Hour())
		}
	}

	// The plan is persisted
	upcoming, err := storage.NewNudgeStore(db).Upcoming(context.Background(), "u1", now)
	if err != nil {
		t.Fatalf("Upcoming() error = %v", err)
	}
	if len(upcoming) != len(fireTimes) {
		t.Errorf("persisted %d nudges, planned %d", len(upcoming), len(fireTimes))
	}
}

func TestPlanner_PlanDaily_ReplacesNotStacks(t *testing.T) {
	db := testDB(t)
	now := time.Date(2026, 3, 4, 5, 30, 0, 0, time.UTC)
	p := testPlanner(t, db, now)
	ctx := context.Background()

	if _, err := p.PlanDaily(ctx, "u1"); err != nil {
		t.Fatalf("first PlanDaily() error = %v", err)
	}
	second, err := p.PlanDaily(ctx, "u1")
	if err != nil {
		t.Fatalf("second PlanDaily() error = %v", err)
	}

	upcoming, err := storage.NewNudgeStore(db).Upcoming(ctx, "u1", now)
	if err != nil {
		t.Fatalf("Upcoming() error = %v", err)
	}
	if len(upcoming) != len(second) {
		t.Errorf("re-planning stacked: %d upcoming, want %d from the latest plan",
			len(upcoming), len(second))
	}
}

func TestPlanner_PlanDaily_UsesActivityHistory(t *testing.T) {
	db := testDB(t)
	now := time.Date(2026, 3, 4, 5, 30, 0, 0, time.UTC)
	p := testPlanner(t, db, now)
	ctx := context.Background()

	// Heavy early-hour activity over the trailing window, anchored to the
	// planner's clock
	timeline := storage.NewTimelineStore(db)
	for i := 0; i < 10; i++ {
		day := now.AddDate(0, 0, -(i%7)-1)
		entry := &core.TimelineEntry{
			ID:     core.ItemID(string(rune('a'+i)) + "_entry"),
			UserID: "u1",
			At:     time.Date(day.Year(), day.Month(), day.Day(), 8, 0, 0, 0, time.UTC),
			Kind:   "message",
		}
		if err := timeline.Append(ctx, entry); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	fireTimes, err := p.PlanDaily(ctx, "u1")
	if err != nil {
		t.Fatalf("PlanDaily() error = %v", err)
	}

	allowed := map[int]bool{}
	for _, h := range archetypeHours[MorningPerson] {
		allowed[h] = true
	}
	for _, ft := range fireTimes {
		if !allowed[ft.Hour()] {
			t.Errorf("fire time hour %d not in the morning_person hours", ft.Hour())
		}
	}
}

func TestMatchTrigger(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
		matched bool
	}{
		{"workout", "just got back from the GYM", "post_workout", true},
		{"completion", "finally finished the report", "work_completion", true},
		{"stress", "feeling pretty overwhelmed today", "stress_mention", true},
		{"social", "dinner with the old crew tonight", "social_activity", true},
		{"no match", "the weather is nice", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trig, ok := MatchTrigger(tt.message)
			if ok != tt.matched {
				t.Fatalf("MatchTrigger(%q) matched = %v, want %v", tt.message, ok, tt.matched)
			}
			if ok && trig.Name != tt.want {
				t.Errorf("MatchTrigger(%q) = %v, want %v", tt.message, trig.Name, tt.want)
			}
		})
	}
}

func TestPlanner_CheckMessage(t *testing.T) {
	db := testDB(t)
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	p := testPlanner(t, db, now)
	ctx := context.Background()

	n, err := p.CheckMessage(ctx, "u1", "finished the big presentation")
	if err != nil {
		t.Fatalf("CheckMessage() error = %v", err)
	}
	if n == nil {
		t.Fatal("CheckMessage() should schedule a nudge for a matching message")
	}
	if n.Kind != core.NudgeContextual {
		t.Errorf("Kind = %v, want contextual", n.Kind)
	}
	if n.Category != "achievement" {
		t.Errorf("Category = %q, want achievement", n.Category)
	}
	if want := now.Add(10 * time.Minute); !n.FireAt.Equal(want) {
		t.Errorf("FireAt = %v, want %v", n.FireAt, want)
	}
	if n.TriggerMessage != "finished the big presentation" {
		t.Errorf("TriggerMessage = %q", n.TriggerMessage)
	}

	// Persisted and visible as upcoming
	upcoming, err := storage.NewNudgeStore(db).Upcoming(ctx, "u1", now)
	if err != nil {
		t.Fatalf("Upcoming() error = %v", err)
	}
	if len(upcoming) != 1 {
		t.Errorf("Upcoming() returned %d nudges, want 1", len(upcoming))
	}

	// A quiet message schedules nothing
	n, err = p.CheckMessage(ctx, "u1", "the weather is nice")
	if err != nil {
		t.Fatalf("CheckMessage() error = %v", err)
	}
	if n != nil {
		t.Errorf("CheckMessage() = %+v, want nil for a non-trigger message", n)
	}
}
