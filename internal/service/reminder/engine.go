package reminder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"voicetask-service/internal/model"
	"voicetask-service/internal/repository"
	"voicetask-service/internal/service/notify"
	"voicetask-service/internal/store"
	"voicetask-service/pkg/metrics"
)

// Engine evaluates every active task's reminder slots against wall-clock time
// on a fixed cadence and fires each slot at most once. Coarse polling rather
// than per-task timers: a notification may land up to one interval late, never
// early, and a suspended process self-corrects on the next tick because the
// check is "time <= now", not an absolute-delay timer.
type Engine struct {
	store       *store.Store
	sender      notify.Sender
	reminderLog *repository.ReminderLogRepository // nil disables audit logging
	interval    time.Duration
	logger      *zap.Logger

	now func() time.Time
}

func NewEngine(
	st *store.Store,
	sender notify.Sender,
	reminderLog *repository.ReminderLogRepository,
	interval time.Duration,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		store:       st,
		sender:      sender,
		reminderLog: reminderLog,
		interval:    interval,
		logger:      logger,
		now:         time.Now,
	}
}

// Run executes ticks until ctx is cancelled. Ticks never overlap: the next
// ticker fire is only consumed after the previous tick (including its
// persistence) has completed, so a slot crossing is never delivered twice.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	// Evaluate immediately on startup to catch slots crossed while down.
	e.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Reminder engine stopped")
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick runs one evaluation pass over all non-completed tasks.
func (e *Engine) Tick(ctx context.Context) {
	start := time.Now()
	now := e.now()
	fired := 0

	for _, task := range e.store.All() {
		if task.Completed {
			continue
		}
		for _, slot := range model.Slots {
			r := task.Reminders.Get(slot)
			if r.Notified || r.Time.After(now) {
				continue
			}
			e.fire(ctx, task, slot, now)
			fired++
		}
	}

	metrics.RecordReminderTick(time.Since(start))
	if fired > 0 {
		e.logger.Info("Reminder tick completed",
			zap.Int("fired_count", fired),
			zap.Time("now", now),
		)
	}
}

// fire delivers one slot's notification best-effort and consumes the slot.
// Delivery failure or a nop channel does not block consumption: "consumed" is
// defined by the time crossing, not by successful delivery, otherwise a failed
// slot would re-trigger on every tick.
func (e *Engine) fire(ctx context.Context, task model.Task, slot model.Slot, now time.Time) {
	title := fmt.Sprintf("Task Reminder: %s", task.Heading)
	body := fmt.Sprintf("Due in %s. %s", slot.Label(), task.Body)

	delivered := true
	if err := e.sender.Send(ctx, title, body); err != nil {
		delivered = false
		e.logger.Warn("Notification delivery failed, slot consumed anyway",
			zap.String("task_id", task.ID),
			zap.String("slot", string(slot)),
			zap.String("channel", e.sender.Channel()),
			zap.Error(err),
		)
	}

	e.store.MarkNotified(ctx, task.ID, slot)

	if e.reminderLog != nil {
		e.reminderLog.Insert(ctx, task.ID, string(slot), e.sender.Channel(), delivered, now)
	}

	status := "delivered"
	if !delivered {
		status = "failed"
	} else if e.sender.Channel() == notify.ChannelNone {
		status = "skipped"
	}
	metrics.IncrementReminderFired(string(slot), status)

	e.logger.Info("Reminder fired",
		zap.String("task_id", task.ID),
		zap.String("heading", task.Heading),
		zap.String("slot", string(slot)),
		zap.String("status", status),
	)
}
