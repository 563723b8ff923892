// Package scheduler drives periodic discovery and delivery of due
// reminders, nudges, and time capsules.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/timecapsule/timecapsule/internal/core"
	"github.com/timecapsule/timecapsule/internal/delivery"
	"github.com/timecapsule/timecapsule/internal/logging"
	"github.com/timecapsule/timecapsule/internal/storage"
)

// Config configures the scheduler loop
type Config struct {
	Interval       time.Duration // tick interval between sweep cycles
	ChannelTimeout time.Duration // per-channel delivery deadline
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Interval:       60 * time.Second,
		ChannelTimeout: 10 * time.Second,
	}
}

// Stats counts scheduler activity since start
type Stats struct {
	Running            bool  `json:"running"`
	Ticks              int64 `json:"ticks"`
	RemindersDelivered int64 `json:"reminders_delivered"`
	NudgesDelivered    int64 `json:"nudges_delivered"`
	CapsulesDelivered  int64 `json:"capsules_delivered"`
	ChannelErrors      int64 `json:"channel_errors"`
}

// Scheduler is the background loop that sweeps for due items and fans them
// out to the registered delivery channels. Channels are fixed at
// construction; there is no process-wide registry.
type Scheduler struct {
	reminders *storage.ReminderStore
	nudges    *storage.NudgeStore
	capsules  *storage.CapsuleStore
	timeline  *storage.TimelineStore
	tone      core.ToneAdapter
	channels  []delivery.Channel

	cfg Config
	now func() time.Time
	log *logging.Logger

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex

	stats Stats
}

// New creates a scheduler over the given stores and channels
func New(cfg Config, db *storage.DB, tone core.ToneAdapter, channels ...delivery.Channel) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.ChannelTimeout <= 0 {
		cfg.ChannelTimeout = DefaultConfig().ChannelTimeout
	}
	if tone == nil {
		tone = core.PlainTone{}
	}

	return &Scheduler{
		reminders: storage.NewReminderStore(db),
		nudges:    storage.NewNudgeStore(db),
		capsules:  storage.NewCapsuleStore(db),
		timeline:  storage.NewTimelineStore(db),
		tone:      tone,
		channels:  channels,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		log:       logging.Component("scheduler"),
	}
}

// Start launches the background tick loop. Calling Start while running is a
// no-op that logs a warning.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("scheduler is already running")
		return
	}
	s.running = true
	s.stats.Running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.log.Info("starting delivery scheduler (interval %s)", s.cfg.Interval)

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop signals the loop to end after its current cycle and waits for it.
// In-flight deliveries are never aborted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.stats.Running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("delivery scheduler stopped")
}

// IsRunning reports whether the loop is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// GetStats returns a snapshot of scheduler counters
func (s *Scheduler) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	// First cycle fires immediately rather than one interval in
	s.RunAllSweeps(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.RunAllSweeps(ctx)
		}
	}
}

// RunAllSweeps runs the reminder, nudge, and capsule sweeps once,
// synchronously. It is the manual trigger used by operators and tests, and
// the body of every tick. A failing sweep never prevents the next one.
func (s *Scheduler) RunAllSweeps(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	s.stats.Ticks++
	s.mu.Unlock()

	if err := s.sweepReminders(ctx, now); err != nil {
		s.log.Error("reminder sweep: %v", err)
	}
	if err := s.sweepNudges(ctx, now); err != nil {
		s.log.Error("nudge sweep: %v", err)
	}
	if err := s.sweepCapsules(ctx, now); err != nil {
		s.log.Error("capsule sweep: %v", err)
	}
}

// sweepReminders delivers every pending reminder found due, oldest due
// first, and bumps its counter. Status is left alone: a reminder stays
// discoverable until the request layer retires it.
func (s *Scheduler) sweepReminders(ctx context.Context, now time.Time) error {
	users, err := s.timeline.ActiveUsers(ctx, now)
	if err != nil {
		return err
	}

	for _, userID := range users {
		due, err := s.reminders.Due(ctx, userID, now)
		if err != nil {
			s.log.Error("due reminders for %s: %v", userID, err)
			continue
		}
		if len(due) == 0 {
			continue
		}
		s.log.Info("found %d due reminders for %s", len(due), userID)

		for _, r := range due {
			draft := ComposeReminder(r, now)

			message, err := s.tone.Adapt(ctx, userID, draft)
			if err != nil {
				s.log.Warn("tone adapt for %s: %v, delivering draft", r.ID, err)
				message = draft
			}

			s.fanOut(ctx, delivery.Payload{
				UserID:      userID,
				Message:     message,
				Kind:        core.KindReminder,
				ItemID:      r.ID,
				DeliveredAt: now,
			})

			if err := s.reminders.IncrementDelivery(ctx, r.ID); err != nil {
				s.log.Error("increment delivery for %s: %v", r.ID, err)
				continue
			}

			s.mu.Lock()
			s.stats.RemindersDelivered++
			s.mu.Unlock()
		}
	}

	return nil
}

// sweepNudges claims and delivers due nudges across all users in one pass.
// The conditional delivered-mark runs before fan-out: whoever flips the row
// delivers, everyone else skips. A nudge is never redelivered.
func (s *Scheduler) sweepNudges(ctx context.Context, now time.Time) error {
	due, err := s.nudges.Due(ctx, now)
	if err != nil {
		return err
	}

	for _, n := range due {
		affected, err := s.nudges.MarkDelivered(ctx, n.ID, now)
		if err != nil {
			s.log.Error("mark nudge %s delivered: %v", n.ID, err)
			continue
		}
		if affected == 0 {
			// Already claimed by a concurrent sweep
			continue
		}

		var message string
		if n.Kind == core.NudgeContextual {
			message = ComposeContextualNudge(n)
		} else {
			message = ComposeDailyNudge(now)
		}

		s.fanOut(ctx, delivery.Payload{
			UserID:      n.UserID,
			Message:     message,
			Kind:        core.KindNudge,
			ItemID:      n.ID,
			DeliveredAt: now,
		})

		s.mu.Lock()
		s.stats.NudgesDelivered++
		s.mu.Unlock()
	}

	return nil
}

// sweepCapsules delivers capsules whose window contains now, oldest
// creation first. Claim-then-deliver, same as nudges; a capsule whose
// window already closed is never touched here.
func (s *Scheduler) sweepCapsules(ctx context.Context, now time.Time) error {
	users, err := s.timeline.ActiveUsers(ctx, now)
	if err != nil {
		return err
	}

	for _, userID := range users {
		due, err := s.capsules.Due(ctx, userID, now)
		if err != nil {
			s.log.Error("due capsules for %s: %v", userID, err)
			continue
		}

		for _, c := range due {
			affected, err := s.capsules.MarkDelivered(ctx, c.ID, now)
			if err != nil {
				s.log.Error("mark capsule %s delivered: %v", c.ID, err)
				continue
			}
			if affected == 0 {
				continue
			}

			s.fanOut(ctx, delivery.Payload{
				UserID:      userID,
				Message:     ComposeCapsuleReveal(c, now),
				Kind:        core.KindTimeCapsule,
				ItemID:      c.ID,
				DeliveredAt: now,
			})

			s.mu.Lock()
			s.stats.CapsulesDelivered++
			s.mu.Unlock()
		}
	}

	return nil
}

// fanOut attempts delivery on every registered channel. One channel's
// failure never blocks its siblings; each attempt gets a bounded deadline.
func (s *Scheduler) fanOut(ctx context.Context, p delivery.Payload) {
	for _, ch := range s.channels {
		cctx, cancel := context.WithTimeout(ctx, s.cfg.ChannelTimeout)
		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &channelPanicError{channel: ch.Name(), value: r}
				}
			}()
			return ch.Deliver(cctx, p)
		}()
		cancel()

		if err != nil {
			s.log.Warn("channel %s failed for %s %s: %v", ch.Name(), p.Kind, p.ItemID, err)
			s.mu.Lock()
			s.stats.ChannelErrors++
			s.mu.Unlock()
		}
	}
}

type channelPanicError struct {
	channel string
	value   any
}

func (e *channelPanicError) Error() string {
	return "channel " + e.channel + " panicked"
}
