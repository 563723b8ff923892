// Package nudge plans proactive check-ins: daily nudges placed around the
// user's observed activity rhythm, and contextual nudges fired off message
// triggers.
package nudge

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/timecapsule/timecapsule/internal/core"
	"github.com/timecapsule/timecapsule/internal/logging"
	"github.com/timecapsule/timecapsule/internal/storage"
)

// activityWindowDays is how far back the planner looks when classifying a
// user's rhythm
const activityWindowDays = 14

// Archetype labels a user's observed activity rhythm
type Archetype string

const (
	MorningPerson   Archetype = "morning_person"
	NightOwl        Archetype = "night_owl"
	Flexible        Archetype = "flexible"
	RegularSchedule Archetype = "regular_schedule"
)

// candidate nudge hours per archetype
var archetypeHours = map[Archetype][]int{
	MorningPerson:   {7, 8, 9, 19, 20},
	NightOwl:        {10, 11, 22, 23},
	RegularSchedule: {9, 13, 17, 21},
	Flexible:        {8, 12, 16, 20},
}

// Planner decides when each user should get their daily check-ins
type Planner struct {
	nudges   *storage.NudgeStore
	timeline *storage.TimelineStore

	rng *rand.Rand
	now func() time.Time
	log *logging.Logger
}

// NewPlanner creates a planner over the given stores
func NewPlanner(db *storage.DB) *Planner {
	return &Planner{
		nudges:   storage.NewNudgeStore(db),
		timeline: storage.NewTimelineStore(db),
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:      func() time.Time { return time.Now().UTC() },
		log:      logging.Component("nudge"),
	}
}

// PlanDaily schedules today's daily nudges for the user from their recent
// activity rhythm. Re-planning the same day replaces today's undelivered
// daily nudges instead of stacking more. If anything goes wrong, a single
// fallback nudge four hours out is scheduled so the user is never silently
// dropped.
func (p *Planner) PlanDaily(ctx context.Context, userID core.UserID) ([]time.Time, error) {
	now := p.now()

	hours, err := p.timeline.RecentActivityHours(ctx, userID, now, activityWindowDays)
	if err != nil {
		p.log.Warn("activity history for %s: %v, using fallback", userID, err)
		return p.fallback(ctx, userID, now)
	}

	archetype := Classify(hours)
	fireTimes := p.pickFireTimes(archetype, now)

	if err := p.nudges.ReplaceDaily(ctx, userID, fireTimes, now); err != nil {
		p.log.Warn("replace daily nudges for %s: %v, using fallback", userID, err)
		return p.fallback(ctx, userID, now)
	}

	p.log.Info("planned %d daily nudges for %s (%s)", len(fireTimes), userID, archetype)
	return fireTimes, nil
}

// Classify buckets recent activity hours into an archetype. An empty history
// means no signal, which reads as a regular schedule.
func Classify(hours []int) Archetype {
	if len(hours) == 0 {
		return RegularSchedule
	}

	var morning, late int
	distinct := make(map[int]bool)
	for _, h := range hours {
		distinct[h] = true
		if h >= 6 && h <= 10 {
			morning++
		}
		if h >= 22 || h <= 2 {
			late++
		}
	}

	total := float64(len(hours))
	switch {
	case float64(morning)/total >= 0.4:
		return MorningPerson
	case float64(late)/total >= 0.3:
		return NightOwl
	case len(distinct) > 8:
		return Flexible
	default:
		return RegularSchedule
	}
}

// pickFireTimes chooses one or two of the archetype's candidate hours without
// replacement, each at a random minute, rolling any already-passed slot to
// tomorrow
func (p *Planner) pickFireTimes(archetype Archetype, now time.Time) []time.Time {
	candidates := archetypeHours[archetype]

	count := 1 + p.rng.IntN(2)
	if count > len(candidates) {
		count = len(candidates)
	}

	picked := p.rng.Perm(len(candidates))[:count]

	times := make([]time.Time, 0, count)
	for _, i := range picked {
		t := time.Date(now.Year(), now.Month(), now.Day(),
			candidates[i], p.rng.IntN(60), 0, 0, time.UTC)
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		times = append(times, t)
	}

	return times
}

func (p *Planner) fallback(ctx context.Context, userID core.UserID, now time.Time) ([]time.Time, error) {
	fireAt := now.Add(4 * time.Hour)
	if err := p.nudges.ReplaceDaily(ctx, userID, []time.Time{fireAt}, now); err != nil {
		return nil, err
	}
	return []time.Time{fireAt}, nil
}

// ScheduleContextual queues a one-off nudge for the trigger's delay out from
// now, carrying the message that tripped it
func (p *Planner) ScheduleContextual(ctx context.Context, userID core.UserID, trig Trigger, message string) (*core.Nudge, error) {
	now := p.now()

	n := &core.Nudge{
		ID:             core.ItemID("nudge_" + uuid.NewString()),
		UserID:         userID,
		FireAt:         now.Add(trig.Delay),
		Kind:           core.NudgeContextual,
		Category:       trig.Category,
		TriggerMessage: message,
		CreatedAt:      now,
	}

	if err := p.nudges.Create(ctx, n); err != nil {
		return nil, err
	}

	p.log.Info("scheduled %s nudge for %s at %s", trig.Name, userID, n.FireAt.Format(time.RFC3339))
	return n, nil
}

// CheckMessage inspects an incoming user message and, if it matches a
// trigger, schedules the follow-up nudge. Returns nil when nothing matched.
func (p *Planner) CheckMessage(ctx context.Context, userID core.UserID, message string) (*core.Nudge, error) {
	trig, ok := MatchTrigger(message)
	if !ok {
		return nil, nil
	}
	return p.ScheduleContextual(ctx, userID, trig, message)
}
