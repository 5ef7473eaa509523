// Package reorder translates user gestures (a drag within a section, a
// bulk move across scopes, a completion toggle) into a consistent new
// ordering, applied optimistically to the store, and emits the minimal
// persistence batch for the reconciler.
//
// Every entry point is synchronous and never suspends: the optimistic
// snapshot mutation is visible before any network round trip starts.
// Each gesture operates against the store's latest snapshot, so rapid
// repeated gestures resolve last-gesture-wins by construction.
package reorder

import (
	"errors"
	"fmt"
	"time"

	"github.com/steveyegge/focusboard/internal/gateway"
	"github.com/steveyegge/focusboard/internal/schema"
	"github.com/steveyegge/focusboard/internal/store"
	"github.com/steveyegge/focusboard/internal/taxonomy"
)

// ErrUnknownTask is returned when a gesture names a task id absent from
// the snapshot (or outside the gesture's scope).
var ErrUnknownTask = errors.New("task not in scope")

// ErrNotSchedulable is returned when Schedule targets a task outside
// the weekly page. Scheduled dates only exist there; cross-page moves
// clear them and capture routes dated inbox/daily input to deadlines.
var ErrNotSchedulable = errors.New("only weekly tasks carry a scheduled date")

// Gesture is the explicit state of a single-item drag: which task, in
// which scope, to which 0-based target index.
type Gesture struct {
	Page        schema.Page
	Section     string
	TaskID      string
	TargetIndex int
}

// Selection is the explicit state of a bulk move: the selected task ids
// in display order and the destination scope.
type Selection struct {
	TaskIDs     []string
	DestPage    schema.Page
	DestSection string
}

// Engine computes and applies placement mutations.
type Engine struct {
	store    *store.Store
	taxonomy *taxonomy.Taxonomy
}

// New creates an engine over the given store and taxonomy.
func New(s *store.Store, tax *taxonomy.Taxonomy) *Engine {
	return &Engine{store: s, taxonomy: tax}
}

// MoveWithin applies a single-item drag within one scope.
//
// The scope's current non-completed list is resolved from the store,
// the dragged task is removed from its old index and reinserted at the
// target index (elements between shift by one), and every element's
// section_order is re-derived as its new 1-based index. The result is
// dense and gap-free by construction.
//
// The returned batch contains only the tasks whose order actually
// changed. Re-sending unchanged rows would be harmless, just wasteful.
func (e *Engine) MoveWithin(g Gesture) (gateway.Batch, error) {
	list := e.store.Query(g.Page, g.Section, false)

	oldIndex := -1
	for i, t := range list {
		if t.ID == g.TaskID {
			oldIndex = i
			break
		}
	}
	if oldIndex == -1 {
		return nil, fmt.Errorf("%s in %s/%s: %w", g.TaskID, g.Page, g.Section, ErrUnknownTask)
	}

	target := g.TargetIndex
	if target < 0 {
		target = 0
	}
	if target > len(list)-1 {
		target = len(list) - 1
	}

	moved := arrayMove(list, oldIndex, target)

	var batch gateway.Batch
	for i, t := range moved {
		newOrder := i + 1
		if t.SectionOrder == newOrder {
			continue
		}
		t.SectionOrder = newOrder
		t.Touch()
		if err := e.store.Upsert(t); err != nil {
			return nil, err
		}
		order := newOrder
		batch = append(batch, gateway.UpdateOp(t.ID, gateway.TaskFields{SectionOrder: &order}))
	}
	return batch, nil
}

// MoveAcross applies a bulk move of the selected tasks to the
// destination scope.
//
// The destination is validated against the taxonomy before anything is
// mutated: if it is illegal the whole batch aborts with
// ErrIllegalSection and zero tasks change. Moved tasks receive fresh
// orders destMax+1, destMax+2, ... preserving the selection's relative
// order. The source scopes are NOT renumbered; their gaps heal on the
// next Load.
//
// Completed tasks in the selection are never touched.
func (e *Engine) MoveAcross(sel Selection) (gateway.Batch, error) {
	if !e.taxonomy.IsLegal(sel.DestPage, sel.DestSection) {
		return nil, fmt.Errorf("%s/%s: %w", sel.DestPage, sel.DestSection, store.ErrIllegalSection)
	}

	// Resolve the full selection before mutating: a missing id aborts
	// the batch with nothing changed.
	var selected []*schema.Task
	for _, id := range sel.TaskIDs {
		t, ok := e.store.Get(id)
		if !ok {
			return nil, fmt.Errorf("%s: %w", id, ErrUnknownTask)
		}
		if t.Completed {
			continue
		}
		selected = append(selected, t)
	}

	next := e.store.MaxOrder(sel.DestPage, sel.DestSection) + 1

	var batch gateway.Batch
	for _, t := range selected {
		t.Page = sel.DestPage
		t.Section = sel.DestSection
		t.SectionOrder = next
		if sel.DestPage != schema.PageWeekly {
			t.ScheduledDate = nil
		}
		t.Touch()
		if err := e.store.Upsert(t); err != nil {
			return nil, err
		}

		page, section, order := sel.DestPage, sel.DestSection, next
		fields := gateway.TaskFields{
			Page:         &page,
			Section:      &section,
			SectionOrder: &order,
		}
		if sel.DestPage != schema.PageWeekly {
			fields.ClearScheduledDate = true
		}
		batch = append(batch, gateway.UpdateOp(t.ID, fields))
		next++
	}
	return batch, nil
}

// Insert places a new task at the end of its scope (section_order =
// current max + 1) and emits a full-row upsert. Used by quick capture
// and promotion.
func (e *Engine) Insert(task *schema.Task) (gateway.Batch, error) {
	task.SetDefaults()
	task.SectionOrder = e.store.MaxOrder(task.Page, task.Section) + 1
	if err := e.store.Upsert(task); err != nil {
		return nil, err
	}
	return gateway.Batch{gateway.UpsertOp(task.Clone())}, nil
}

// SetCompleted toggles completion. Completing a task removes it from
// its section's ordering sequence without renumbering siblings; order
// is only renumbered on explicit reorder or the next Load.
func (e *Engine) SetCompleted(taskID string, completed bool) (gateway.Batch, error) {
	t, ok := e.store.Get(taskID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", taskID, ErrUnknownTask)
	}
	if t.Completed == completed {
		return nil, nil
	}

	t.Completed = completed
	if completed {
		now := time.Now().UTC()
		t.CompletedAt = &now
	} else {
		t.CompletedAt = nil
	}
	t.Touch()
	if err := e.store.Upsert(t); err != nil {
		return nil, err
	}

	done := completed
	return gateway.Batch{gateway.UpdateOp(t.ID, gateway.TaskFields{
		Completed:   &done,
		CompletedAt: t.CompletedAt,
	})}, nil
}

// Schedule sets or clears a weekly task's scheduled date.
func (e *Engine) Schedule(taskID string, date *time.Time) (gateway.Batch, error) {
	t, ok := e.store.Get(taskID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", taskID, ErrUnknownTask)
	}
	if t.Page != schema.PageWeekly {
		return nil, fmt.Errorf("%s is on %s: %w", taskID, t.Page, ErrNotSchedulable)
	}

	t.ScheduledDate = date
	t.Touch()
	if err := e.store.Upsert(t); err != nil {
		return nil, err
	}

	fields := gateway.TaskFields{ScheduledDate: date}
	if date == nil {
		fields.ClearScheduledDate = true
	}
	return gateway.Batch{gateway.UpdateOp(t.ID, fields)}, nil
}

// Delete removes a task from the snapshot and emits a delete op.
// Siblings keep their orders; the gap heals on the next Load. The
// reconciler signals the attachment store to cascade after the row
// delete commits.
func (e *Engine) Delete(taskID string) (gateway.Batch, error) {
	if _, ok := e.store.Get(taskID); !ok {
		return nil, fmt.Errorf("%s: %w", taskID, ErrUnknownTask)
	}
	e.store.Remove(taskID)
	return gateway.Batch{gateway.DeleteOp(taskID)}, nil
}

// arrayMove removes the element at from and reinserts it at to,
// shifting the elements between by one.
func arrayMove[T any](list []T, from, to int) []T {
	out := make([]T, 0, len(list))
	out = append(out, list[:from]...)
	out = append(out, list[from+1:]...)
	out = append(out[:to], append([]T{list[from]}, out[to:]...)...)
	return out
}
