package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/timecapsule/timecapsule/internal/core"
	"github.com/timecapsule/timecapsule/internal/nudge"
	"github.com/timecapsule/timecapsule/internal/scheduler"
	"github.com/timecapsule/timecapsule/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.DB) {
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

	s := New(Config{
		Host:      "localhost",
		Port:      0,
		DB:        db,
		Scheduler: scheduler.New(scheduler.Config{}, db, nil),
		Planner:   nudge.NewPlanner(db),
	})
	return s, db
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestServer_Health(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}

	body := decode[map[string]any](t, rec)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}

func TestServer_CreateAndGetReminder(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/reminders", map[string]string{
		"user_id": "u1",
		"content": "renew the passport",
		"due_in":  "48h",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}

	created := decode[core.Reminder](t, rec)
	if created.ID == "" {
		t.Fatal("created reminder has no ID")
	}
	if created.Status != core.StatusPending {
		t.Errorf("Status = %q, want pending", created.Status)
	}
	if until := time.Until(created.DueAt); until < 47*time.Hour || until > 49*time.Hour {
		t.Errorf("DueAt %v not about 48h out", created.DueAt)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/v1/reminders/"+string(created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	got := decode[core.Reminder](t, rec)
	if got.Content != "renew the passport" {
		t.Errorf("Content = %q", got.Content)
	}
}

func TestServer_CreateReminder_Validation(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing content", map[string]string{"user_id": "u1", "due_in": "1h"}},
		{"missing user", map[string]string{"content": "x", "due_in": "1h"}},
		{"missing due", map[string]string{"user_id": "u1", "content": "x"}},
		{"bad due_at", map[string]string{"user_id": "u1", "content": "x", "due_at": "tomorrow"}},
		{"negative due_in", map[string]string{"user_id": "u1", "content": "x", "due_in": "-1h"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/api/v1/reminders", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestServer_GetReminder_NotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/reminders/reminder_missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestServer_ReminderStatusAndResponse(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/reminders", map[string]string{
		"user_id": "u1", "content": "stretch", "due_in": "1h",
	})
	created := decode[core.Reminder](t, rec)
	id := string(created.ID)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/reminders/"+id+"/response", map[string]string{
		"text": "on it",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("response status = %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPut, "/api/v1/reminders/"+id+"/status", map[string]string{
		"status": "completed",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status update = %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPut, "/api/v1/reminders/"+id+"/status", map[string]string{
		"status": "vanished",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/v1/reminders/"+id, nil)
	got := decode[core.Reminder](t, rec)
	if got.Status != core.StatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}
	if len(got.Responses) != 1 || got.Responses[0].Text != "on it" {
		t.Errorf("Responses = %+v", got.Responses)
	}
}

func TestServer_CreateCapsule_WindowPhrase(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/capsules", map[string]string{
		"user_id":         "u1",
		"content":         "dear future me",
		"delivery_window": "1-3 months",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}

	body := decode[struct {
		Capsule      core.Capsule `json:"capsule"`
		Confirmation string       `json:"confirmation"`
	}](t, rec)
	c := body.Capsule
	if body.Confirmation == "" {
		t.Error("creation response missing confirmation text")
	}
	if c.LatestAt.Before(c.EarliestAt) {
		t.Errorf("window inverted: %v .. %v", c.EarliestAt, c.LatestAt)
	}
	if days := int(time.Until(c.EarliestAt).Hours() / 24); days < 29 || days > 30 {
		t.Errorf("earliest %v not about 30 days out", c.EarliestAt)
	}
	if days := int(time.Until(c.LatestAt).Hours() / 24); days < 89 || days > 90 {
		t.Errorf("latest %v not about 90 days out", c.LatestAt)
	}
	if c.Snapshot.Season == "" || c.Snapshot.DayOfWeek == "" {
		t.Errorf("snapshot not frozen: %+v", c.Snapshot)
	}
}

func TestServer_CreateCapsule_ExplicitInvalidWindow(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/capsules", map[string]string{
		"user_id":     "u1",
		"content":     "oops",
		"earliest_at": "2026-06-01T00:00:00Z",
		"latest_at":   "2026-05-01T00:00:00Z",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for inverted window", rec.Code)
	}
}

func TestServer_MissedCapsules(t *testing.T) {
	s, db := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/capsules/missed?user_id=u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[[]core.Capsule](t, rec); len(got) != 0 {
		t.Errorf("missed = %d entries, want empty list", len(got))
	}

	// Seed a capsule whose window already closed
	past := time.Now().UTC().AddDate(0, -3, 0)
	err := storage.NewCapsuleStore(db).Create(t.Context(), &core.Capsule{
		ID: "capsule_late", UserID: "u1", Content: "gone",
		CreatedAt:  past,
		EarliestAt: past.AddDate(0, 0, 7),
		LatestAt:   past.AddDate(0, 0, 14),
	})
	if err != nil {
		t.Fatalf("seed capsule: %v", err)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/v1/capsules/missed?user_id=u1", nil)
	got := decode[[]core.Capsule](t, rec)
	if len(got) != 1 || got[0].ID != "capsule_late" {
		t.Errorf("missed = %+v, want [capsule_late]", got)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/v1/capsules/missed", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing user_id = %d, want 400", rec.Code)
	}
}

func TestServer_PlanAndListNudges(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/nudges/plan", map[string]string{
		"user_id": "u1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("plan status = %d, body = %s", rec.Code, rec.Body.String())
	}

	plan := decode[struct {
		FireTimes []time.Time `json:"fire_times"`
	}](t, rec)
	if len(plan.FireTimes) < 1 || len(plan.FireTimes) > 2 {
		t.Errorf("planned %d nudges, want 1 or 2", len(plan.FireTimes))
	}

	rec = doJSON(t, s, http.MethodGet, "/api/v1/nudges/upcoming?user_id=u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("upcoming status = %d", rec.Code)
	}
	upcoming := decode[[]core.Nudge](t, rec)
	if len(upcoming) != len(plan.FireTimes) {
		t.Errorf("upcoming = %d nudges, planned %d", len(upcoming), len(plan.FireTimes))
	}
}

func TestServer_MessageTriggersNudge(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/messages", map[string]string{
		"user_id": "u1",
		"content": "just finished a brutal workout",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	body := decode[struct {
		Recorded bool        `json:"recorded"`
		Nudge    *core.Nudge `json:"nudge"`
	}](t, rec)
	if !body.Recorded {
		t.Error("message not recorded")
	}
	if body.Nudge == nil {
		t.Fatal("trigger message should schedule a nudge")
	}
	if body.Nudge.Kind != core.NudgeContextual {
		t.Errorf("Kind = %v, want contextual", body.Nudge.Kind)
	}

	// A plain message records but schedules nothing
	rec = doJSON(t, s, http.MethodPost, "/api/v1/messages", map[string]string{
		"user_id": "u1",
		"content": "quiet afternoon",
	})
	body = decode[struct {
		Recorded bool        `json:"recorded"`
		Nudge    *core.Nudge `json:"nudge"`
	}](t, rec)
	if body.Nudge != nil {
		t.Errorf("plain message scheduled %+v", body.Nudge)
	}
}

func TestServer_SweepEndpoint(t *testing.T) {
	s, db := newTestServer(t)

	now := time.Now().UTC()
	err := storage.NewReminderStore(db).Create(t.Context(), &core.Reminder{
		ID: "reminder_due", UserID: "u1", Content: "overdue already",
		CreatedAt: now.Add(-2 * time.Hour),
		DueAt:     now.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("seed reminder: %v", err)
	}

	rec := doJSON(t, s, http.MethodPost, "/api/v1/scheduler/sweep", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sweep status = %d", rec.Code)
	}

	stats := decode[scheduler.Stats](t, rec)
	if stats.RemindersDelivered != 1 {
		t.Errorf("RemindersDelivered = %d, want 1", stats.RemindersDelivered)
	}
	if stats.Ticks != 1 {
		t.Errorf("Ticks = %d, want 1", stats.Ticks)
	}
}
