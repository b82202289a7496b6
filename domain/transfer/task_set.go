package transfer

import (
	"errors"
	"sync"
)

// ErrTaskNotFound is returned when a task id is not in the working set
var ErrTaskNotFound = errors.New("task not found")

// TaskSet is the working set of tasks, keyed by task id so interleaved
// batches never address a task by position
type TaskSet struct {
	mu    sync.RWMutex
	order []string
	tasks map[string]*Task
}

// NewTaskSet creates an empty working set
func NewTaskSet() *TaskSet {
	return &TaskSet{tasks: make(map[string]*Task)}
}

// Add appends tasks to the working set
func (s *TaskSet) Add(tasks ...*Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tasks {
		if _, exists := s.tasks[t.ID]; exists {
			continue
		}
		s.tasks[t.ID] = t
		s.order = append(s.order, t.ID)
	}
}

// Get returns a copy of one task
func (s *TaskSet) Get(id string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return t.Clone(), true
}

// Update mutates a task under the set's lock
func (s *TaskSet) Update(id string, fn func(*Task) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	return fn(t)
}

// Mutate runs fn on a task under the set's lock. The task does not have to
// be in the set: a batch keeps driving tasks the user cleared mid-run.
func (s *TaskSet) Mutate(t *Task, fn func(*Task) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(t)
}

// Snapshot returns a copy of a task taken under the set's lock
func (s *TaskSet) Snapshot(t *Task) Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return t.Clone()
}

// Remove drops a task the user cleared. A batch still running the task
// finishes it; the task just stops being listed.
func (s *TaskSet) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return
	}
	delete(s.tasks, id)
	s.order = removeID(s.order, id)
}

// ClearFinished drops every task in a terminal status and returns how many were removed
func (s *TaskSet) ClearFinished() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.order[:0]
	removed := 0
	for _, id := range s.order {
		if s.tasks[id].Status.IsTerminal() {
			delete(s.tasks, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return removed
}

// List returns copies of all tasks in insertion order
func (s *TaskSet) List() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tasks[id].Clone())
	}
	return out
}

// Len returns the number of tasks
func (s *TaskSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
