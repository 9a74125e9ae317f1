package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"voicetask-service/internal/model"
	"voicetask-service/internal/repository"
)

// Store holds the authoritative in-memory task list and mirrors every
// mutation to the repository as one whole JSON blob. A single mutex enforces
// the single-writer model: only one mutation is in flight at a time, and
// readers always observe a consistent snapshot.
type Store struct {
	mu     sync.Mutex
	tasks  []model.Task
	repo   repository.TaskRepository
	logger *zap.Logger

	// loadFailed blocks persistence after a failed read: a transient backend
	// error must never lead to the healthy blob being overwritten with a
	// near-empty list.
	loadFailed bool
}

func NewStore(repo repository.TaskRepository, logger *zap.Logger) *Store {
	return &Store{
		repo:   repo,
		logger: logger,
	}
}

// Load reads the persisted blob. An absent or malformed blob recovers
// silently to an empty list. A read error is a different class entirely: the
// blob may be healthy but unreachable, so Load returns the error and the
// store refuses to persist until a read succeeds.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok, err := s.repo.Load(ctx)
	if err != nil {
		s.loadFailed = true
		s.tasks = nil
		return fmt.Errorf("failed to load task blob: %w", err)
	}
	s.loadFailed = false

	if !ok {
		s.tasks = nil
		return nil
	}

	var tasks []model.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		s.logger.Warn("Task blob malformed, starting with empty list", zap.Error(err))
		s.tasks = nil
		return nil
	}
	s.tasks = tasks
	s.logger.Info("Task list loaded", zap.Int("task_count", len(tasks)))
	return nil
}

// Create synthesizes a task from the extraction payload and prepends it to
// the list. The caller is trusted to supply non-empty fields.
func (s *Store) Create(ctx context.Context, heading, body string, dueDate time.Time) model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	task := model.NewTask(heading, body, dueDate, time.Now())
	s.tasks = append([]model.Task{task}, s.tasks...)
	s.persist(ctx)

	s.logger.Info("Task created",
		zap.String("task_id", task.ID),
		zap.String("heading", task.Heading),
		zap.Time("due_date", task.DueDate),
	)
	return task
}

// Toggle flips the completed flag. Unknown ids are a silent no-op.
func (s *Store) Toggle(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks[i].Completed = !s.tasks[i].Completed
			s.persist(ctx)
			s.logger.Info("Task toggled",
				zap.String("task_id", id),
				zap.Bool("completed", s.tasks[i].Completed),
			)
			return true
		}
	}
	return false
}

// Delete removes the task. Unknown ids are a silent no-op.
func (s *Store) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			s.persist(ctx)
			s.logger.Info("Task deleted", zap.String("task_id", id))
			return true
		}
	}
	return false
}

// MarkNotified consumes a reminder slot. Used only by the reminder engine;
// the flag never reverts once set.
func (s *Store) MarkNotified(ctx context.Context, id string, slot model.Slot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks[i].Reminders.Get(slot).Notified = true
			s.persist(ctx)
			return true
		}
	}
	return false
}

// All returns a snapshot of the list in insertion order (newest first).
func (s *Store) All() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Active returns incomplete tasks ordered by due date, soonest first.
func (s *Store) Active() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Task
	for _, t := range s.tasks {
		if !t.Completed {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DueDate.Before(out[j].DueDate)
	})
	return out
}

// History returns completed tasks ordered by due date, most recent first.
func (s *Store) History() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Task
	for _, t := range s.tasks {
		if t.Completed {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DueDate.After(out[j].DueDate)
	})
	return out
}

func (s *Store) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Store) snapshot() []model.Task {
	out := make([]model.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// persist rewrites the whole blob. The in-memory mutation has already
// succeeded, so a write failure is logged but not propagated.
func (s *Store) persist(ctx context.Context) {
	if s.loadFailed {
		s.logger.Error("Task blob was never read, refusing to overwrite it")
		return
	}
	data, err := json.Marshal(s.tasks)
	if err != nil {
		s.logger.Error("Failed to marshal task list", zap.Error(err))
		return
	}
	if err := s.repo.Save(ctx, data); err != nil {
		s.logger.Error("Failed to persist task list", zap.Error(err))
	}
}
