package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/timecapsule/timecapsule/internal/core"
)

func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var input struct {
		UserID  string `json:"user_id"`
		Content string `json:"content"`
		DueAt   string `json:"due_at"` // RFC3339
		DueIn   string `json:"due_in"` // alternative: Go duration, e.g. "48h"
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if input.UserID == "" || input.Content == "" {
		s.respondError(w, http.StatusBadRequest, "user_id and content are required")
		return
	}

	now := time.Now().UTC()

	var dueAt time.Time
	switch {
	case input.DueAt != "":
		t, err := time.Parse(time.RFC3339, input.DueAt)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "due_at must be RFC3339")
			return
		}
		dueAt = t.UTC()
	case input.DueIn != "":
		d, err := time.ParseDuration(input.DueIn)
		if err != nil || d <= 0 {
			s.respondError(w, http.StatusBadRequest, "due_in must be a positive duration")
			return
		}
		dueAt = now.Add(d)
	default:
		s.respondError(w, http.StatusBadRequest, "due_at or due_in is required")
		return
	}

	emotion, activity, err := s.contextEngine.Analyze(r.Context(), input.Content)
	if err != nil {
		s.log.Warn("context analysis failed: %v, storing neutral context", err)
		emotion = core.EmotionProfile{Primary: "neutral"}
		activity = core.ActivitySnapshot{}
	}

	rem := &core.Reminder{
		ID:        core.ItemID("reminder_" + uuid.NewString()),
		UserID:    core.UserID(input.UserID),
		Content:   input.Content,
		CreatedAt: now,
		DueAt:     dueAt,
		Emotion:   emotion,
		Activity:  activity,
		Status:    core.StatusPending,
	}

	if err := s.reminders.Create(r.Context(), rem); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.recordTimeline(r, rem.UserID, "reminder", rem.Content, emotion.Primary)

	s.respondJSON(w, http.StatusCreated, rem)
}

func (s *Server) handleGetReminder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "reminderID")

	rem, err := s.reminders.GetByID(r.Context(), core.ItemID(id))
	if err != nil {
		if errors.Is(err, core.ErrReminderNotFound) {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, rem)
}

// handleUpdateReminderStatus retires or snoozes a reminder. Delivery itself
// never changes status; this is the only place the transition happens.
func (s *Server) handleUpdateReminderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "reminderID")

	var input struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	status := core.ReminderStatus(input.Status)
	switch status {
	case core.StatusPending, core.StatusCompleted, core.StatusSnoozed, core.StatusCancelled:
	default:
		s.respondError(w, http.StatusBadRequest, "unknown status")
		return
	}

	if err := s.reminders.UpdateStatus(r.Context(), core.ItemID(id), status); err != nil {
		if errors.Is(err, core.ErrReminderNotFound) {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": input.Status})
}

func (s *Server) handleReminderResponse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "reminderID")

	var input struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if input.Text == "" {
		s.respondError(w, http.StatusBadRequest, "text is required")
		return
	}

	resp := core.UserResponse{At: time.Now().UTC(), Text: input.Text}
	if err := s.reminders.AppendResponse(r.Context(), core.ItemID(id), resp); err != nil {
		if errors.Is(err, core.ErrReminderNotFound) {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleCreateCapsule(w http.ResponseWriter, r *http.Request) {
	var input struct {
		UserID         string `json:"user_id"`
		Content        string `json:"content"`
		DeliveryWindow string `json:"delivery_window"` // e.g. "1-3 months"
		EarliestAt     string `json:"earliest_at"`     // RFC3339, overrides window
		LatestAt       string `json:"latest_at"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if input.UserID == "" || input.Content == "" {
		s.respondError(w, http.StatusBadRequest, "user_id and content are required")
		return
	}

	now := time.Now().UTC()

	var earliest, latest time.Time
	if input.EarliestAt != "" && input.LatestAt != "" {
		e, err1 := time.Parse(time.RFC3339, input.EarliestAt)
		l, err2 := time.Parse(time.RFC3339, input.LatestAt)
		if err1 != nil || err2 != nil {
			s.respondError(w, http.StatusBadRequest, "earliest_at and latest_at must be RFC3339")
			return
		}
		earliest, latest = e.UTC(), l.UTC()
	} else {
		earliest, latest = parseDeliveryWindow(input.DeliveryWindow, now)
	}

	if latest.Before(earliest) {
		s.respondError(w, http.StatusBadRequest, core.ErrInvalidWindow.Error())
		return
	}

	emotion, _, err := s.contextEngine.Analyze(r.Context(), input.Content)
	if err != nil {
		s.log.Warn("context analysis failed: %v, storing neutral context", err)
		emotion = core.EmotionProfile{Primary: "neutral"}
	}

	c := &core.Capsule{
		ID:         core.ItemID("capsule_" + uuid.NewString()),
		UserID:     core.UserID(input.UserID),
		Content:    input.Content,
		CreatedAt:  now,
		EarliestAt: earliest,
		LatestAt:   latest,
		Emotion:    emotion,
		Snapshot:   core.SnapshotAt(now),
	}

	if err := s.capsules.Create(r.Context(), c); err != nil {
		if errors.Is(err, core.ErrInvalidWindow) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.recordTimeline(r, c.UserID, "capsule", c.Content, emotion.Primary)

	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"capsule":      c,
		"confirmation": capsuleConfirmation(c, now),
	})
}

// capsuleConfirmation is the creation acknowledgment; the reveal itself is
// composed at delivery time
func capsuleConfirmation(c *core.Capsule, now time.Time) string {
	months := func(t time.Time) int { return int(t.Sub(now).Hours() / 24 / 30) }
	em, lm := months(c.EarliestAt), months(c.LatestAt)

	var window string
	switch {
	case em == lm && em > 0:
		window = fmt.Sprintf("in about %d month(s)", em)
	case lm > 0:
		window = fmt.Sprintf("%d-%d months from now", em, lm)
	default:
		window = "in the coming weeks"
	}

	return fmt.Sprintf(
		"Time capsule created! I've captured this moment: %q. "+
			"It will come back to surprise you sometime %s - you won't know exactly when!",
		c.Content, window)
}

func (s *Server) handleGetCapsule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "capsuleID")

	c, err := s.capsules.GetByID(r.Context(), core.ItemID(id))
	if err != nil {
		if errors.Is(err, core.ErrCapsuleNotFound) {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, c)
}

// handleMissedCapsules lists capsules whose window closed undelivered. They
// stay queryable forever.
func (s *Server) handleMissedCapsules(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	missed, err := s.capsules.Missed(r.Context(), core.UserID(userID), time.Now().UTC())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if missed == nil {
		missed = []*core.Capsule{}
	}

	s.respondJSON(w, http.StatusOK, missed)
}

func (s *Server) handlePlanNudges(w http.ResponseWriter, r *http.Request) {
	var input struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if input.UserID == "" {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	fireTimes, err := s.planner.PlanDaily(r.Context(), core.UserID(input.UserID))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":    input.UserID,
		"fire_times": fireTimes,
	})
}

func (s *Server) handleUpcomingNudges(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	upcoming, err := s.nudges.Upcoming(r.Context(), core.UserID(userID), time.Now().UTC())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if upcoming == nil {
		upcoming = []*core.Nudge{}
	}

	s.respondJSON(w, http.StatusOK, upcoming)
}

// handleMessage records an incoming user message on the timeline and checks
// it against the contextual nudge triggers
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var input struct {
		UserID  string `json:"user_id"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if input.UserID == "" || input.Content == "" {
		s.respondError(w, http.StatusBadRequest, "user_id and content are required")
		return
	}

	userID := core.UserID(input.UserID)

	emotion, _, err := s.contextEngine.Analyze(r.Context(), input.Content)
	if err != nil {
		emotion = core.EmotionProfile{Primary: "neutral"}
	}

	s.recordTimeline(r, userID, "message", input.Content, emotion.Primary)

	scheduled, err := s.planner.CheckMessage(r.Context(), userID, input.Content)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result := map[string]interface{}{"recorded": true}
	if scheduled != nil {
		result["nudge"] = scheduled
	}

	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) recordTimeline(r *http.Request, userID core.UserID, kind, content, emotion string) {
	entry := &core.TimelineEntry{
		ID:      core.ItemID("entry_" + uuid.NewString()),
		UserID:  userID,
		At:      time.Now().UTC(),
		Kind:    kind,
		Content: content,
		Emotion: emotion,
	}
	if err := s.timeline.Append(r.Context(), entry); err != nil {
		s.log.Warn("timeline append for %s: %v", userID, err)
	}
}

// parseDeliveryWindow turns a loose phrase like "1-3 months" into a concrete
// window. Unrecognized input falls back to the 1-6 month default rather than
// erroring; the capsule surface is meant to be forgiving.
func parseDeliveryWindow(window string, now time.Time) (time.Time, time.Time) {
	w := strings.ToLower(window)

	day := 24 * time.Hour
	switch {
	case strings.Contains(w, "month"):
		switch {
		case strings.Contains(w, "1-3") || strings.Contains(w, "1 to 3"):
			return now.Add(30 * day), now.Add(90 * day)
		case strings.Contains(w, "1-6") || strings.Contains(w, "1 to 6"):
			return now.Add(30 * day), now.Add(180 * day)
		case strings.Contains(w, "3-6"):
			return now.Add(90 * day), now.Add(180 * day)
		default:
			return now.Add(30 * day), now.Add(180 * day)
		}
	case strings.Contains(w, "year"):
		return now.Add(365 * day), now.Add(730 * day)
	case strings.Contains(w, "week"):
		return now.Add(7 * day), now.Add(28 * day)
	default:
		return now.Add(30 * day), now.Add(180 * day)
	}
}
