package nudge

import (
	"strings"
	"time"
)

// Trigger describes a message pattern that earns a delayed follow-up nudge
type Trigger struct {
	Name     string
	Keywords []string
	Delay    time.Duration
	Category string
}

// triggers are checked in order; the first match wins
var triggers = []Trigger{
	{
		Name:     "post_workout",
		Keywords: []string{"workout", "gym", "exercise", "run", "running"},
		Delay:    15 * time.Minute,
		Category: "achievement",
	},
	{
		Name:     "work_completion",
		Keywords: []string{"finished", "completed", "done with", "submitted"},
		Delay:    10 * time.Minute,
		Category: "achievement",
	},
	{
		Name:     "stress_mention",
		Keywords: []string{"stressed", "overwhelmed", "anxious", "pressure"},
		Delay:    60 * time.Minute,
		Category: "stress_relief",
	},
	{
		Name:     "social_activity",
		Keywords: []string{"meeting friends", "date", "party", "dinner with"},
		Delay:    30 * time.Minute,
		Category: "general",
	},
}

// MatchTrigger reports the first trigger whose keywords appear in the
// message. Matching is case-insensitive substring search.
func MatchTrigger(message string) (Trigger, bool) {
	lower := strings.ToLower(message)
	for _, t := range triggers {
		for _, kw := range t.Keywords {
			if strings.Contains(lower, kw) {
				return t, true
			}
		}
	}
	return Trigger{}, false
}
