package store

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/steveyegge/focusboard/internal/gateway"
	"github.com/steveyegge/focusboard/internal/schema"
	"github.com/steveyegge/focusboard/internal/taxonomy"
)

// fakeGateway serves a fixed row set for Load tests.
type fakeGateway struct {
	rows    []*schema.Task
	listErr error
}

func (f *fakeGateway) ListTasks(ctx context.Context, ownerID string) ([]*schema.Task, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*schema.Task, 0, len(f.rows))
	for _, t := range f.rows {
		if t.OwnerID == ownerID {
			out = append(out, t.Clone())
		}
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
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return out, nil
}

func (f *fakeGateway) GetTask(ctx context.Context, id string) (*schema.Task, error) {
	for _, t := range f.rows {
		if t.ID == id {
			return t.Clone(), nil
		}
	}
	return nil, gateway.ErrNotFound
}

func (f *fakeGateway) UpsertTask(ctx context.Context, task *schema.Task) error { return nil }
func (f *fakeGateway) UpdateTask(ctx context.Context, id string, fields gateway.TaskFields) error {
	return nil
}
func (f *fakeGateway) DeleteTask(ctx context.Context, id string) error         { return nil }
func (f *fakeGateway) SectionConstraint(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeGateway) Close() error                                            { return nil }

func row(id string, page schema.Page, section string, order int, completed bool) *schema.Task {
	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(order) * time.Minute)
	t := &schema.Task{
		ID:           id,
		OwnerID:      "u1",
		Page:         page,
		Section:      section,
		SectionOrder: order,
		Title:        "task " + id,
		Completed:    completed,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	if completed {
		done := created.Add(time.Hour)
		t.CompletedAt = &done
	}
	return t
}

func newStore(t *testing.T, gw gateway.Gateway) *Store {
	t.Helper()
	tax, err := taxonomy.New(nil)
	if err != nil {
		t.Fatalf("taxonomy.New() failed: %v", err)
	}
	return New(gw, tax)
}

// TestLoad_HealsGaps: rows with sparse orders come back dense 1..N,
// relative order preserved.
func TestLoad_HealsGaps(t *testing.T) {
	gw := &fakeGateway{rows: []*schema.Task{
		row("A", schema.PageInbox, "inbox_tasks", 2, false),
		row("B", schema.PageInbox, "inbox_tasks", 5, false),
		row("C", schema.PageInbox, "inbox_tasks", 9, false),
	}}
	st := newStore(t, gw)
	if err := st.Load(context.Background(), "u1"); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	tasks := st.Query(schema.PageInbox, "inbox_tasks", false)
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(tasks))
	}
	wantIDs := []string{"A", "B", "C"}
	for i, task := range tasks {
		if task.ID != wantIDs[i] {
			t.Errorf("position %d = %s, want %s", i, task.ID, wantIDs[i])
		}
		if task.SectionOrder != i+1 {
			t.Errorf("%s order = %d, want %d", task.ID, task.SectionOrder, i+1)
		}
	}
}

// TestLoad_CompletedSkippedInRenumbering: completed rows keep their
// stored order and do not consume a slot in the dense sequence.
func TestLoad_CompletedSkippedInRenumbering(t *testing.T) {
	gw := &fakeGateway{rows: []*schema.Task{
		row("A", schema.PageDaily, "urgent", 1, false),
		row("D", schema.PageDaily, "urgent", 2, true),
		row("B", schema.PageDaily, "urgent", 3, false),
	}}
	st := newStore(t, gw)
	if err := st.Load(context.Background(), "u1"); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	b, _ := st.Get("B")
	if b.SectionOrder != 2 {
		t.Errorf("B order = %d, want 2 (completed sibling skipped)", b.SectionOrder)
	}
	visible := st.Query(schema.PageDaily, "urgent", false)
	if len(visible) != 2 {
		t.Errorf("visible count = %d, want 2", len(visible))
	}
	all := st.Query(schema.PageDaily, "urgent", true)
	if len(all) != 3 {
		t.Errorf("total count = %d, want 3", len(all))
	}
}

// TestLoad_Idempotent: loading twice with no writes in between yields
// identical snapshots.
func TestLoad_Idempotent(t *testing.T) {
	gw := &fakeGateway{rows: []*schema.Task{
		row("A", schema.PageInbox, "inbox_tasks", 3, false),
		row("B", schema.PageInbox, "monthly", 7, false),
		row("C", schema.PageWeekly, "big_three", 1, false),
	}}
	st := newStore(t, gw)

	if err := st.Load(context.Background(), "u1"); err != nil {
		t.Fatalf("first Load() failed: %v", err)
	}
	first := st.Snapshot()
	if err := st.Load(context.Background(), "u1"); err != nil {
		t.Fatalf("second Load() failed: %v", err)
	}
	second := st.Snapshot()

	if len(first) != len(second) {
		t.Fatalf("snapshot sizes differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		a, b := first[i], second[i]
		if a.ID != b.ID || a.SectionOrder != b.SectionOrder || a.Section != b.Section {
			t.Errorf("snapshot diverges at %d: %s/%d vs %s/%d",
				i, a.ID, a.SectionOrder, b.ID, b.SectionOrder)
		}
	}
}

// TestLoad_Failure leaves the previous snapshot intact.
func TestLoad_Failure(t *testing.T) {
	gw := &fakeGateway{rows: []*schema.Task{
		row("A", schema.PageInbox, "inbox_tasks", 1, false),
	}}
	st := newStore(t, gw)
	if err := st.Load(context.Background(), "u1"); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	gw.listErr = errors.New("connection reset")
	if err := st.Load(context.Background(), "u1"); err == nil {
		t.Fatal("Load() succeeded despite gateway error")
	}
	if st.Len() != 1 {
		t.Errorf("snapshot size = %d after failed load, want 1", st.Len())
	}
}

// TestUpsert_IllegalSectionRejectedTotally: the snapshot is unchanged
// after a rejected upsert.
func TestUpsert_IllegalSectionRejectedTotally(t *testing.T) {
	st := newStore(t, nil)
	good := row("A", schema.PageInbox, "inbox_tasks", 1, false)
	if err := st.Upsert(good); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}

	cases := []struct {
		name    string
		page    schema.Page
		section string
	}{
		{"unknown section", schema.PageInbox, "nonexistent"},
		{"section on wrong page", schema.PageDaily, "shopping"},
		{"unknown page", schema.Page("someday"), "inbox_tasks"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bad := row("X", tc.page, tc.section, 1, false)
			err := st.Upsert(bad)
			if !errors.Is(err, ErrIllegalSection) {
				t.Fatalf("error = %v, want ErrIllegalSection", err)
			}
			if _, ok := st.Get("X"); ok {
				t.Error("rejected task present in snapshot")
			}
			if st.Len() != 1 {
				t.Errorf("snapshot size = %d, want 1", st.Len())
			}
		})
	}
}

// TestUpsert_StoresClone: the caller's struct is not aliased.
func TestUpsert_StoresClone(t *testing.T) {
	st := newStore(t, nil)
	task := row("A", schema.PageInbox, "inbox_tasks", 1, false)
	if err := st.Upsert(task); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}

	task.Title = "mutated after upsert"
	got, _ := st.Get("A")
	if got.Title != "task A" {
		t.Errorf("snapshot title = %q, caller mutation leaked in", got.Title)
	}
}

// TestQuery_OrderAndTies: ordered by section_order, created_at breaks
// ties.
func TestQuery_OrderAndTies(t *testing.T) {
	st := newStore(t, nil)
	a := row("A", schema.PageInbox, "inbox_tasks", 1, false)
	b := row("B", schema.PageInbox, "inbox_tasks", 1, false)
	b.CreatedAt = a.CreatedAt.Add(-time.Hour)
	for _, task := range []*schema.Task{a, b} {
		if err := st.Upsert(task); err != nil {
			t.Fatalf("Upsert(%s) failed: %v", task.ID, err)
		}
	}

	got := st.Query(schema.PageInbox, "inbox_tasks", false)
	if got[0].ID != "B" || got[1].ID != "A" {
		t.Errorf("tie broken wrong: got [%s %s], want [B A]", got[0].ID, got[1].ID)
	}
}

// TestQuery_EmptySectionSpansPage.
func TestQuery_EmptySectionSpansPage(t *testing.T) {
	st := newStore(t, nil)
	for _, task := range []*schema.Task{
		row("A", schema.PageInbox, "inbox_tasks", 1, false),
		row("B", schema.PageInbox, "monthly", 1, false),
		row("C", schema.PageDaily, "urgent", 1, false),
	} {
		if err := st.Upsert(task); err != nil {
			t.Fatalf("Upsert(%s) failed: %v", task.ID, err)
		}
	}

	got := st.Query(schema.PageInbox, "", false)
	if len(got) != 2 {
		t.Errorf("page-wide query returned %d tasks, want 2", len(got))
	}
}

// TestMaxOrder_IncludesCompleted: a parked completed task's slot still
// counts, so fresh orders never collide.
func TestMaxOrder_IncludesCompleted(t *testing.T) {
	st := newStore(t, nil)
	for _, task := range []*schema.Task{
		row("A", schema.PageDaily, "urgent", 1, false),
		row("D", schema.PageDaily, "urgent", 5, true),
	} {
		if err := st.Upsert(task); err != nil {
			t.Fatalf("Upsert(%s) failed: %v", task.ID, err)
		}
	}

	if got := st.MaxOrder(schema.PageDaily, "urgent"); got != 5 {
		t.Errorf("MaxOrder = %d, want 5", got)
	}
	if got := st.MaxOrder(schema.PageDaily, "en_espera"); got != 0 {
		t.Errorf("MaxOrder of empty scope = %d, want 0", got)
	}
}

// TestRemove_NoRenumbering.
func TestRemove_NoRenumbering(t *testing.T) {
	st := newStore(t, nil)
	for _, task := range []*schema.Task{
		row("A", schema.PageInbox, "shopping", 1, false),
		row("B", schema.PageInbox, "shopping", 2, false),
	} {
		if err := st.Upsert(task); err != nil {
			t.Fatalf("Upsert(%s) failed: %v", task.ID, err)
		}
	}

	st.Remove("A")
	b, _ := st.Get("B")
	if b.SectionOrder != 2 {
		t.Errorf("B order = %d after sibling removal, want 2", b.SectionOrder)
	}
}
