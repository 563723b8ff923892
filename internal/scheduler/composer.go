package scheduler

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/timecapsule/timecapsule/internal/core"
)

// Message composition is pure template logic: due item + stored context +
// elapsed time in, text out. No I/O happens here.

// encouragements keyed by the emotion recorded at creation time
var encouragements = map[string]string{
	"stress":         "You've got this! Remember, you've handled tough situations before.",
	"excitement":     "Hope you're still feeling that excitement! Time to make it happen!",
	"accomplishment": "You were feeling proud then - let's build on that success!",
	"tired":          "Hope you're feeling more energized now! Take care of yourself.",
	"happy":          "Hope that happiness is still with you! Keep that positive energy going!",
	"neutral":        "Here's your reminder - you've got everything you need to succeed!",
}

var dailyNudgeTemplates = map[string][]string{
	"morning": {
		"Good morning! How are you starting your day? Want me to remember this moment?",
		"Morning vibes check! What's your energy like and what are you doing?",
		"New day, new moments to capture! How are you feeling this morning?",
	},
	"evening": {
		"How did your day go? Want me to capture how you're feeling right now?",
		"Evening reflection time - what's on your mind and how are you feeling?",
		"Winding down? Tell me about your current mood and what you're doing.",
	},
	"general": {
		"Hey, what are you doing right now? Want me to save this moment for later?",
		"Quick check-in - how are you feeling and what's happening in your world?",
		"Time for a life snapshot! What are you up to and how are you feeling?",
	},
}

var contextualNudgeTemplates = map[string]string{
	"achievement":   "I sense you might have accomplished something! Want to capture this feeling?",
	"stress_relief": "Taking a breather? How are you feeling now compared to earlier?",
	"general":       "Hey, what are you doing right now? Want me to save this moment for later?",
}

// ComposeReminder builds the elapsed-time-aware reminder story from the
// context captured at creation
func ComposeReminder(r *core.Reminder, now time.Time) string {
	ago := FormatElapsed(now.Sub(r.CreatedAt))

	emotion := r.Emotion.Primary
	if emotion == "" {
		emotion = "neutral"
	}
	activity := r.Activity.Primary
	if activity == "" {
		activity = "going about your day"
	}

	encouragement, ok := encouragements[emotion]
	if !ok {
		encouragement = "You've got this!"
	}

	return fmt.Sprintf(
		"**%s**, you were %s and feeling %s when you told me:\n\n\"%s\"\n\nThat was %s - here's your reminder with the full story of that moment!\n\n%s",
		ago, activity, emotion, r.Content, ago, encouragement)
}

// ComposeCapsuleReveal builds the surprise delivery message, contrasting the
// frozen creation snapshot with now
func ComposeCapsuleReveal(c *core.Capsule, now time.Time) string {
	ago := FormatElapsed(now.Sub(c.CreatedAt))

	season := c.Snapshot.Season
	if season == "" {
		season = core.Season(c.CreatedAt)
	}
	weekday := c.Snapshot.DayOfWeek
	if weekday == "" {
		weekday = c.CreatedAt.Weekday().String()
	}
	emotion := c.Emotion.Primary
	if emotion == "" {
		emotion = "neutral"
	}

	return fmt.Sprintf(
		"**SURPRISE TIME CAPSULE!**\n\n"+
			"%s, in %s %d, you were feeling %s and decided to send a message to future you...\n\n"+
			"Your past self said:\n\"%s\"\n\n"+
			"What's changed since then:\n"+
			"  - That was %s\n"+
			"  - You were in %s %d\n"+
			"  - You were feeling %s then\n"+
			"  - It was a %s\n\n"+
			"Isn't it amazing how much can change? Your %s self wanted you to remember this moment.",
		ago, season, c.CreatedAt.Year(), emotion,
		c.Content,
		ago, season, c.CreatedAt.Year(), emotion, weekday,
		c.CreatedAt.Format("January 2006"))
}

// ComposeDailyNudge picks a check-in line appropriate to the time of day
func ComposeDailyNudge(now time.Time) string {
	category := "general"
	switch h := now.Hour(); {
	case h >= 6 && h <= 11:
		category = "morning"
	case h >= 18 && h <= 23:
		category = "evening"
	}

	templates := dailyNudgeTemplates[category]
	return templates[rand.IntN(len(templates))]
}

// ComposeContextualNudge derives the message from the nudge's trigger
// payload; it ships as-is, with no tone layering.
func ComposeContextualNudge(n *core.Nudge) string {
	line, ok := contextualNudgeTemplates[n.Category]
	if !ok {
		line = contextualNudgeTemplates["general"]
	}

	if n.TriggerMessage != "" {
		return fmt.Sprintf("%s\n\n(Earlier you mentioned: \"%s\")", line, n.TriggerMessage)
	}
	return line
}

// FormatElapsed renders a duration as a human phrase like "3 days ago"
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%d day%s ago", days, plural(days))
	case hours > 0:
		return fmt.Sprintf("%d hour%s ago", hours, plural(hours))
	case minutes > 0:
		return fmt.Sprintf("%d minute%s ago", minutes, plural(minutes))
	default:
		return "just now"
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
