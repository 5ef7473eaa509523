// Package schema provides the task record shared by the store, gateway,
// and reorder layers.
package schema

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Page is a top-level task location.
type Page string

const (
	PageInbox  Page = "inbox"
	PageDaily  Page = "daily"
	PageWeekly Page = "weekly"
)

// Pages lists every legal page value in display order.
var Pages = []Page{PageInbox, PageDaily, PageWeekly}

// ValidPage reports whether p is a known page.
func ValidPage(p Page) bool {
	switch p {
	case PageInbox, PageDaily, PageWeekly:
		return true
	}
	return false
}

// Task is the central entity: a single to-do item placed on a page, in a
// section, at a 1-based position within its (owner, page, section) scope.
//
// Fields are flat and individually updatable; UpdatedAt resolves
// last-writer-wins between devices.
type Task struct {
	// ===== Core Identification =====
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`

	// ===== Placement =====
	Page    Page   `json:"page"`
	Section string `json:"section"`

	// SectionOrder is a positive integer, dense and unique within the
	// (owner, page, section) scope after a committed reorder. Gaps may
	// exist transiently between an optimistic move and the next load.
	SectionOrder int `json:"section_order"`

	// ===== Content =====
	Title string `json:"title"`
	Notes string `json:"notes,omitempty"`

	// ===== Scheduling =====
	ScheduledDate *time.Time `json:"scheduled_date,omitempty"` // weekly page only
	Deadline      *time.Time `json:"deadline,omitempty"`

	// ===== Completion =====
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ===== Timestamps =====
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewID returns a fresh opaque task identifier.
func NewID() string {
	return uuid.NewString()
}

// Validate checks that the task's structural fields are usable. Section
// legality against the taxonomy is the store's concern, not schema's.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if t.OwnerID == "" {
		return fmt.Errorf("owner_id is required")
	}
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(t.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(t.Title))
	}
	if !ValidPage(t.Page) {
		return fmt.Errorf("page must be one of inbox, daily, weekly (got %q)", t.Page)
	}
	if t.Section == "" {
		return fmt.Errorf("section is required")
	}
	if t.SectionOrder < 1 {
		return fmt.Errorf("section_order must be positive (got %d)", t.SectionOrder)
	}
	if t.Completed && t.CompletedAt == nil {
		return fmt.Errorf("completed_at is required when completed is set")
	}
	if t.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if t.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (t *Task) SetDefaults() {
	if t.ID == "" {
		t.ID = NewID()
	}
	if t.Page == "" {
		t.Page = PageInbox
	}
	if t.SectionOrder == 0 {
		t.SectionOrder = 1
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
}

// Touch sets UpdatedAt to the current time. Called on every mutation.
func (t *Task) Touch() {
	t.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy. The store hands out clones so callers can
// never mutate the snapshot behind its back.
func (t *Task) Clone() *Task {
	c := *t
	c.ScheduledDate = cloneTime(t.ScheduledDate)
	c.Deadline = cloneTime(t.Deadline)
	c.CompletedAt = cloneTime(t.CompletedAt)
	return &c
}

// Scope identifies the ordering scope this task belongs to.
func (t *Task) Scope() Scope {
	return Scope{OwnerID: t.OwnerID, Page: t.Page, Section: t.Section}
}

// Scope is the (owner, page, section) tuple over which section_order is
// dense and unique.
type Scope struct {
	OwnerID string
	Page    Page
	Section string
}

func (s Scope) String() string {
	return fmt.Sprintf("%s/%s/%s", s.OwnerID, s.Page, s.Section)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
