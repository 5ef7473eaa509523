// Package store holds the canonical client-side snapshot of one user's
// tasks: the single source of truth the UI renders from.
//
// The snapshot is mutated optimistically by the reorder engine and
// replaced wholesale by Load after a persistence failure. One mutex
// covers query and mutation so a query followed by a reorder derivation
// observes a consistent snapshot.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/steveyegge/focusboard/internal/gateway"
	"github.com/steveyegge/focusboard/internal/schema"
	"github.com/steveyegge/focusboard/internal/taxonomy"
)

// ErrIllegalSection is returned by Upsert when the task's (page,
// section) pair is not legal per the taxonomy. The check runs before
// any mutation, so a rejected upsert never changes the snapshot.
var ErrIllegalSection = errors.New("illegal section for page")

// Store is the in-memory task collection for a single owner.
type Store struct {
	mu       sync.RWMutex
	taxonomy *taxonomy.Taxonomy
	gw       gateway.Gateway

	ownerID string
	tasks   map[string]*schema.Task
}

// New creates an empty store. Load must be called before queries return
// anything useful.
func New(gw gateway.Gateway, tax *taxonomy.Taxonomy) *Store {
	return &Store{
		taxonomy: tax,
		gw:       gw,
		tasks:    make(map[string]*schema.Task),
	}
}

// OwnerID returns the owner of the current snapshot.
func (s *Store) OwnerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ownerID
}

// Load fetches the full task set from the gateway and replaces the
// snapshot. This is the only path that heals ordering gaps: within each
// scope, non-completed tasks are renumbered 1..N in the order the
// gateway returned them (section_order asc, ties by created_at).
func (s *Store) Load(ctx context.Context, ownerID string) error {
	rows, err := s.gw.ListTasks(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}

	// Group into scopes preserving gateway order.
	scopes := make(map[schema.Scope][]*schema.Task)
	var order []schema.Scope
	for _, t := range rows {
		sc := t.Scope()
		if _, seen := scopes[sc]; !seen {
			order = append(order, sc)
		}
		scopes[sc] = append(scopes[sc], t)
	}

	fresh := make(map[string]*schema.Task, len(rows))
	for _, sc := range order {
		next := 1
		for _, t := range scopes[sc] {
			c := t.Clone()
			if !c.Completed {
				c.SectionOrder = next
				next++
			}
			fresh[c.ID] = c
		}
	}

	s.mu.Lock()
	s.ownerID = ownerID
	s.tasks = fresh
	s.mu.Unlock()
	return nil
}

// Upsert applies a single task mutation to the snapshot. The (page,
// section) pair is validated against the taxonomy before anything is
// touched; an illegal pair returns ErrIllegalSection with the snapshot
// unchanged.
func (s *Store) Upsert(task *schema.Task) error {
	if !s.taxonomy.IsLegal(task.Page, task.Section) {
		return fmt.Errorf("%s/%s: %w", task.Page, task.Section, ErrIllegalSection)
	}
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	s.mu.Lock()
	s.tasks[task.ID] = task.Clone()
	s.mu.Unlock()
	return nil
}

// Remove drops a task from the snapshot. Remaining tasks in the scope
// are NOT renumbered; the gap heals on the next Load.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	delete(s.tasks, id)
	s.mu.Unlock()
}

// Get returns a copy of the task, or false if absent.
func (s *Store) Get(id string) (*schema.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Query returns the tasks in (page, section) ordered by section_order
// ascending (ties by created_at), excluding completed tasks unless
// includeCompleted is set. Section may be empty to span the whole page.
func (s *Store) Query(page schema.Page, section string, includeCompleted bool) []*schema.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*schema.Task
	for _, t := range s.tasks {
		if t.Page != page {
			continue
		}
		if section != "" && t.Section != section {
			continue
		}
		if t.Completed && !includeCompleted {
			continue
		}
		out = append(out, t.Clone())
	}
	sortTasks(out)
	return out
}

// Snapshot returns a copy of every task, deterministically ordered.
// Two snapshots taken with no intervening mutation are identical.
func (s *Store) Snapshot() []*schema.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*schema.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		if a.Section != b.Section {
			return a.Section < b.Section
		}
		if a.SectionOrder != b.SectionOrder {
			return a.SectionOrder < b.SectionOrder
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

// MaxOrder returns the highest section_order in the scope, completed
// rows included so fresh assignments never collide with a parked
// completed task's slot. Returns 0 for an empty scope.
func (s *Store) MaxOrder(page schema.Page, section string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	max := 0
	for _, t := range s.tasks {
		if t.Page == page && t.Section == section && t.SectionOrder > max {
			max = t.SectionOrder
		}
	}
	return max
}

// Len returns the number of tasks in the snapshot.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func sortTasks(tasks []*schema.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].SectionOrder != tasks[j].SectionOrder {
			return tasks[i].SectionOrder < tasks[j].SectionOrder
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}
