package model

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Slot names one of the three reminder entries attached to a task.
type Slot string

const (
	SlotOneDay   Slot = "one_day"
	SlotSixHours Slot = "six_hours"
	SlotOneHour  Slot = "one_hour"
)

// Slots is the evaluation order used by the reminder engine.
var Slots = []Slot{SlotOneDay, SlotSixHours, SlotOneHour}

// Offset returns how long before the due date this slot fires.
func (s Slot) Offset() time.Duration {
	switch s {
	case SlotOneDay:
		return 24 * time.Hour
	case SlotSixHours:
		return 6 * time.Hour
	default:
		return time.Hour
	}
}

// Label is the human-readable lead time used in notification bodies.
func (s Slot) Label() string {
	switch s {
	case SlotOneDay:
		return "1 day"
	case SlotSixHours:
		return "6 hours"
	default:
		return "1 hour"
	}
}

// Reminder is one slot's state. Time is fixed at task creation; Notified flips
// to true at most once, when the reminder engine fires the slot.
type Reminder struct {
	Time     time.Time `json:"time"`
	Notified bool      `json:"notified"`
}

type Reminders struct {
	OneDay   Reminder `json:"one_day"`
	SixHours Reminder `json:"six_hours"`
	OneHour  Reminder `json:"one_hour"`
}

// Get returns a pointer to the named slot so callers can inspect or mutate it.
func (r *Reminders) Get(slot Slot) *Reminder {
	switch slot {
	case SlotOneDay:
		return &r.OneDay
	case SlotSixHours:
		return &r.SixHours
	default:
		return &r.OneHour
	}
}

// Task is the sole persisted entity.
type Task struct {
	ID        string    `json:"id"`
	Heading   string    `json:"heading"`
	Body      string    `json:"body"`
	DueDate   time.Time `json:"due_date"`
	CreatedAt time.Time `json:"created_at"`
	Completed bool      `json:"completed"`
	Reminders Reminders `json:"reminders"`
}

// NewTask synthesizes a full task from the extraction payload. The three
// reminder times are derived once from the due date (24h/6h/1h before) and
// never recomputed.
func NewTask(heading, body string, dueDate, now time.Time) Task {
	t := Task{
		ID:        newID(),
		Heading:   heading,
		Body:      body,
		DueDate:   dueDate,
		CreatedAt: now,
		Completed: false,
	}
	for _, slot := range Slots {
		t.Reminders.Get(slot).Time = dueDate.Add(-slot.Offset())
	}
	return t
}

func newID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
