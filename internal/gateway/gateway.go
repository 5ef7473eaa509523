// Package gateway provides the persistence gateway: a row-oriented
// remote store for tasks whose schema enforces the legal page and
// section values with CHECK constraints.
//
// Two implementations exist: embedded SQLite (Open, via
// ncruces/go-sqlite3) and remote libSQL/Turso (OpenRemote). The core
// treats either as a fallible async service; constraint rejections are
// normal, expected errors handled by reconciliation, not bugs.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/steveyegge/focusboard/internal/schema"
)

// ErrNotFound is returned by UpdateTask and GetTask when no row matches.
var ErrNotFound = errors.New("task not found")

// Gateway is the remote task store consumed by the store and reconciler.
type Gateway interface {
	// ListTasks returns every task row for the owner, ordered by page,
	// section, section_order, created_at.
	ListTasks(ctx context.Context, ownerID string) ([]*schema.Task, error)

	// GetTask returns a single task row, or ErrNotFound.
	GetTask(ctx context.Context, id string) (*schema.Task, error)

	// UpsertTask inserts or replaces a full task row.
	UpsertTask(ctx context.Context, task *schema.Task) error

	// UpdateTask writes only the given fields to an existing row.
	// Returns ErrNotFound if the row does not exist.
	UpdateTask(ctx context.Context, id string, fields TaskFields) error

	// DeleteTask removes a task row. Idempotent.
	DeleteTask(ctx context.Context, id string) error

	// SectionConstraint returns the literal set accepted by the live
	// CHECK constraint on the section column, for drift detection.
	SectionConstraint(ctx context.Context) ([]string, error)

	Close() error
}

// TaskFields carries a partial update: nil pointers are left untouched.
// Reorder batches use Section, Page, and SectionOrder only; completion
// toggles use Completed and CompletedAt.
type TaskFields struct {
	Page         *schema.Page
	Section      *string
	SectionOrder *int
	Title        *string
	Notes        *string

	// Completed also writes CompletedAt (nil clears the column).
	Completed   *bool
	CompletedAt *time.Time

	ScheduledDate      *time.Time
	ClearScheduledDate bool
	Deadline           *time.Time
	ClearDeadline      bool
}

// IsZero reports whether the update carries no fields.
func (f TaskFields) IsZero() bool {
	return f.Page == nil && f.Section == nil && f.SectionOrder == nil &&
		f.Title == nil && f.Notes == nil && f.Completed == nil &&
		f.ScheduledDate == nil && !f.ClearScheduledDate &&
		f.Deadline == nil && !f.ClearDeadline
}

// OpKind discriminates persistence operations within a batch.
type OpKind int

const (
	OpUpdate OpKind = iota
	OpUpsert
	OpDelete
)

// Op is one persistence operation emitted by the reorder engine or a
// direct edit, to be driven against the gateway by the reconciler.
type Op struct {
	Kind   OpKind
	TaskID string
	Fields TaskFields   // OpUpdate
	Task   *schema.Task // OpUpsert
}

// Batch is an ordered sequence of operations. The reconciler issues it
// strictly in order, one write at a time.
type Batch []Op

// UpdateOp builds an OpUpdate.
func UpdateOp(taskID string, fields TaskFields) Op {
	return Op{Kind: OpUpdate, TaskID: taskID, Fields: fields}
}

// UpsertOp builds an OpUpsert.
func UpsertOp(task *schema.Task) Op {
	return Op{Kind: OpUpsert, TaskID: task.ID, Task: task}
}

// DeleteOp builds an OpDelete.
func DeleteOp(taskID string) Op {
	return Op{Kind: OpDelete, TaskID: taskID}
}
