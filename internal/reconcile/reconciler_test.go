package reconcile

import (
	"context"
	"errors"
	"io"
	"log"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/steveyegge/focusboard/internal/gateway"
	"github.com/steveyegge/focusboard/internal/schema"
	"github.com/steveyegge/focusboard/internal/store"
	"github.com/steveyegge/focusboard/internal/taxonomy"
)

// memGateway is an in-memory gateway with per-op failure injection.
type memGateway struct {
	mu   sync.Mutex
	rows map[string]*schema.Task

	// failOn makes the Nth write (1-based, across all write kinds) fail.
	failOn    int
	writes    int
	listFails bool

	deleted []string
}

func newMemGateway() *memGateway {
	return &memGateway{rows: make(map[string]*schema.Task)}
}

var errInjected = errors.New("injected write failure")

func (m *memGateway) failNext() error {
	m.writes++
	if m.failOn != 0 && m.writes == m.failOn {
		return errInjected
	}
	return nil
}

func (m *memGateway) ListTasks(ctx context.Context, ownerID string) ([]*schema.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listFails {
		return nil, errors.New("injected list failure")
	}
	var out []*schema.Task
	for _, t := range m.rows {
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

func (m *memGateway) GetTask(ctx context.Context, id string) (*schema.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	return t.Clone(), nil
}

func (m *memGateway) UpsertTask(ctx context.Context, task *schema.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext(); err != nil {
		return err
	}
	m.rows[task.ID] = task.Clone()
	return nil
}

func (m *memGateway) UpdateTask(ctx context.Context, id string, fields gateway.TaskFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext(); err != nil {
		return err
	}
	t, ok := m.rows[id]
	if !ok {
		return gateway.ErrNotFound
	}
	if fields.Page != nil {
		t.Page = *fields.Page
	}
	if fields.Section != nil {
		t.Section = *fields.Section
	}
	if fields.SectionOrder != nil {
		t.SectionOrder = *fields.SectionOrder
	}
	if fields.Title != nil {
		t.Title = *fields.Title
	}
	if fields.Completed != nil {
		t.Completed = *fields.Completed
		t.CompletedAt = fields.CompletedAt
	}
	return nil
}

func (m *memGateway) DeleteTask(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext(); err != nil {
		return err
	}
	delete(m.rows, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memGateway) SectionConstraint(ctx context.Context) ([]string, error) { return nil, nil }
func (m *memGateway) Close() error                                            { return nil }

// recordingAttach records cascade calls.
type recordingAttach struct {
	mu       sync.Mutex
	cascades []string
}

func (r *recordingAttach) DeleteForTask(ctx context.Context, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cascades = append(r.cascades, taskID)
	return nil
}

// recordingNotifier records events.
type recordingNotifier struct {
	persisted []int
	reloaded  []error
}

func (n *recordingNotifier) BatchPersisted(ops int)    { n.persisted = append(n.persisted, ops) }
func (n *recordingNotifier) StoreReloaded(cause error) { n.reloaded = append(n.reloaded, cause) }

func seedTask(id string, page schema.Page, section string, order int) *schema.Task {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(order) * time.Minute)
	return &schema.Task{
		ID:           id,
		OwnerID:      "u1",
		Page:         page,
		Section:      section,
		SectionOrder: order,
		Title:        "task " + id,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// newHarness builds a reconciler over a memGateway with rows seeded both
// remotely and into a loaded store.
func newHarness(t *testing.T, rows ...*schema.Task) (*Reconciler, *store.Store, *memGateway, *recordingNotifier) {
	t.Helper()
	gw := newMemGateway()
	for _, r := range rows {
		gw.rows[r.ID] = r.Clone()
	}

	tax, err := taxonomy.New(nil)
	if err != nil {
		t.Fatalf("taxonomy.New() failed: %v", err)
	}
	st := store.New(gw, tax)
	if err := st.Load(context.Background(), "u1"); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	notifier := &recordingNotifier{}
	quiet := log.New(io.Discard, "", 0)
	return New(st, gw, nil, notifier, quiet), st, gw, notifier
}

func intPtr(v int) *int { return &v }

// TestPersist_Success drives a full batch and ends Idle.
func TestPersist_Success(t *testing.T) {
	rec, _, gw, notifier := newHarness(t,
		seedTask("A", schema.PageInbox, "inbox_tasks", 1),
		seedTask("B", schema.PageInbox, "inbox_tasks", 2),
	)

	batch := gateway.Batch{
		gateway.UpdateOp("A", gateway.TaskFields{SectionOrder: intPtr(2)}),
		gateway.UpdateOp("B", gateway.TaskFields{SectionOrder: intPtr(1)}),
	}
	if err := rec.Persist(context.Background(), "u1", batch); err != nil {
		t.Fatalf("Persist() failed: %v", err)
	}

	if rec.State() != StateIdle {
		t.Errorf("state = %s, want idle", rec.State())
	}
	if gw.rows["A"].SectionOrder != 2 || gw.rows["B"].SectionOrder != 1 {
		t.Error("remote rows do not reflect the batch")
	}
	if len(notifier.persisted) != 1 || notifier.persisted[0] != 2 {
		t.Errorf("notifier.persisted = %v, want [2]", notifier.persisted)
	}
}

// TestPersist_EmptyBatchIsNoop.
func TestPersist_EmptyBatchIsNoop(t *testing.T) {
	rec, _, gw, _ := newHarness(t, seedTask("A", schema.PageInbox, "inbox_tasks", 1))

	if err := rec.Persist(context.Background(), "u1", nil); err != nil {
		t.Fatalf("Persist(nil) failed: %v", err)
	}
	if gw.writes != 0 {
		t.Errorf("empty batch issued %d writes", gw.writes)
	}
	if rec.State() != StateIdle {
		t.Errorf("state = %s, want idle", rec.State())
	}
}

// TestPersist_FailureRollsBackToAuthoritativeState is the core
// reconciliation property: after a mid-batch failure, the store equals
// exactly what a fresh Load would produce, and the failed suffix is
// never issued.
func TestPersist_FailureRollsBackToAuthoritativeState(t *testing.T) {
	rec, st, gw, notifier := newHarness(t,
		seedTask("A", schema.PageInbox, "inbox_tasks", 1),
		seedTask("B", schema.PageInbox, "inbox_tasks", 2),
		seedTask("C", schema.PageInbox, "inbox_tasks", 3),
	)

	// Optimistic mutation that the failed batch would have persisted.
	a, _ := st.Get("A")
	a.SectionOrder = 3
	if err := st.Upsert(a); err != nil {
		t.Fatalf("optimistic Upsert() failed: %v", err)
	}

	gw.failOn = 2
	batch := gateway.Batch{
		gateway.UpdateOp("C", gateway.TaskFields{SectionOrder: intPtr(1)}),
		gateway.UpdateOp("A", gateway.TaskFields{SectionOrder: intPtr(2)}),
		gateway.UpdateOp("B", gateway.TaskFields{SectionOrder: intPtr(3)}),
	}
	err := rec.Persist(context.Background(), "u1", batch)
	if !errors.Is(err, errInjected) {
		t.Fatalf("error = %v, want wrapped injected failure", err)
	}

	// Only the first write landed; the third was never issued.
	if gw.writes != 2 {
		t.Errorf("gateway saw %d writes, want 2 (stop at first failure)", gw.writes)
	}

	// Store now matches the authoritative rows exactly, committed prefix
	// included: C's committed write gave it order 1, tying with A; the
	// tie breaks by created_at, so the reload yields [A C B] dense.
	if rec.State() != StateIdle {
		t.Errorf("state = %s, want idle after reconciliation", rec.State())
	}
	got := st.Query(schema.PageInbox, "inbox_tasks", false)
	want := []string{"A", "C", "B"}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("position %d = %s, want %s", i, got[i].ID, want[i])
		}
		if got[i].SectionOrder != i+1 {
			t.Errorf("%s order = %d, want %d", got[i].ID, got[i].SectionOrder, i+1)
		}
	}

	if len(notifier.reloaded) != 1 || !errors.Is(notifier.reloaded[0], errInjected) {
		t.Errorf("notifier.reloaded = %v, want the injected cause", notifier.reloaded)
	}
	if len(notifier.persisted) != 0 {
		t.Errorf("notifier.persisted = %v for a failed batch, want none", notifier.persisted)
	}
}

// TestPersist_ReloadMatchesFreshLoad: the post-rollback snapshot equals
// a snapshot built by an independent store loading the same gateway.
func TestPersist_ReloadMatchesFreshLoad(t *testing.T) {
	rec, st, gw, _ := newHarness(t,
		seedTask("A", schema.PageDaily, "urgent", 1),
		seedTask("B", schema.PageDaily, "urgent", 2),
	)

	gw.failOn = 1
	batch := gateway.Batch{
		gateway.UpdateOp("A", gateway.TaskFields{SectionOrder: intPtr(2)}),
	}
	if err := rec.Persist(context.Background(), "u1", batch); err == nil {
		t.Fatal("Persist() succeeded despite injected failure")
	}

	tax, err := taxonomy.New(nil)
	if err != nil {
		t.Fatalf("taxonomy.New() failed: %v", err)
	}
	independent := store.New(gw, tax)
	if err := independent.Load(context.Background(), "u1"); err != nil {
		t.Fatalf("independent Load() failed: %v", err)
	}

	a, b := st.Snapshot(), independent.Snapshot()
	if len(a) != len(b) {
		t.Fatalf("snapshot sizes differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].SectionOrder != b[i].SectionOrder {
			t.Errorf("snapshot diverges at %d: %s/%d vs %s/%d",
				i, a[i].ID, a[i].SectionOrder, b[i].ID, b[i].SectionOrder)
		}
	}
}

// TestPersist_ReloadFailureKeepsSnapshotAndJoinsErrors.
func TestPersist_ReloadFailureKeepsSnapshotAndJoinsErrors(t *testing.T) {
	rec, st, gw, notifier := newHarness(t,
		seedTask("A", schema.PageInbox, "inbox_tasks", 1),
	)

	gw.failOn = 1
	gw.listFails = true
	batch := gateway.Batch{
		gateway.UpdateOp("A", gateway.TaskFields{SectionOrder: intPtr(2)}),
	}
	err := rec.Persist(context.Background(), "u1", batch)
	if !errors.Is(err, errInjected) {
		t.Fatalf("error = %v, want the write failure wrapped", err)
	}

	// The last good snapshot survives.
	if _, ok := st.Get("A"); !ok {
		t.Error("snapshot lost after double failure")
	}
	if rec.State() != StateIdle {
		t.Errorf("state = %s, want idle", rec.State())
	}
	if len(notifier.reloaded) != 0 {
		t.Errorf("notifier fired StoreReloaded despite failed reload")
	}
}

// TestPersist_DeleteCascadesAttachments: the attachment cascade fires
// only after the row delete commits.
func TestPersist_DeleteCascadesAttachments(t *testing.T) {
	gw := newMemGateway()
	gw.rows["A"] = seedTask("A", schema.PageInbox, "inbox_tasks", 1)

	tax, err := taxonomy.New(nil)
	if err != nil {
		t.Fatalf("taxonomy.New() failed: %v", err)
	}
	st := store.New(gw, tax)
	if err := st.Load(context.Background(), "u1"); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	attachments := &recordingAttach{}
	rec := New(st, gw, attachments, nil, log.New(io.Discard, "", 0))

	if err := rec.Persist(context.Background(), "u1", gateway.Batch{gateway.DeleteOp("A")}); err != nil {
		t.Fatalf("Persist() failed: %v", err)
	}
	if len(attachments.cascades) != 1 || attachments.cascades[0] != "A" {
		t.Errorf("cascades = %v, want [A]", attachments.cascades)
	}
}

// TestPersist_DeleteFailureSkipsCascade.
func TestPersist_DeleteFailureSkipsCascade(t *testing.T) {
	gw := newMemGateway()
	gw.rows["A"] = seedTask("A", schema.PageInbox, "inbox_tasks", 1)
	gw.failOn = 1

	tax, err := taxonomy.New(nil)
	if err != nil {
		t.Fatalf("taxonomy.New() failed: %v", err)
	}
	st := store.New(gw, tax)
	if err := st.Load(context.Background(), "u1"); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	attachments := &recordingAttach{}
	rec := New(st, gw, attachments, nil, log.New(io.Discard, "", 0))

	if err := rec.Persist(context.Background(), "u1", gateway.Batch{gateway.DeleteOp("A")}); err == nil {
		t.Fatal("Persist() succeeded despite injected delete failure")
	}
	if len(attachments.cascades) != 0 {
		t.Errorf("cascade fired despite failed row delete: %v", attachments.cascades)
	}
}

// TestSetNotifier_LateInstall covers the board server wiring: the
// reconciler is built before the dashboard handler exists, so the
// notifier is installed afterwards and must receive batch events.
func TestSetNotifier_LateInstall(t *testing.T) {
	gw := newMemGateway()
	gw.rows["A"] = seedTask("A", schema.PageInbox, "inbox_tasks", 1)

	tax, err := taxonomy.New(nil)
	if err != nil {
		t.Fatalf("taxonomy.New() failed: %v", err)
	}
	st := store.New(gw, tax)
	if err := st.Load(context.Background(), "u1"); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	rec := New(st, gw, nil, nil, log.New(io.Discard, "", 0))
	batch := gateway.Batch{gateway.UpdateOp("A", gateway.TaskFields{SectionOrder: intPtr(2)})}
	if err := rec.Persist(context.Background(), "u1", batch); err != nil {
		t.Fatalf("Persist() with nil notifier failed: %v", err)
	}

	notifier := &recordingNotifier{}
	rec.SetNotifier(notifier)
	batch = gateway.Batch{gateway.UpdateOp("A", gateway.TaskFields{SectionOrder: intPtr(3)})}
	if err := rec.Persist(context.Background(), "u1", batch); err != nil {
		t.Fatalf("Persist() failed: %v", err)
	}

	if len(notifier.persisted) != 1 || notifier.persisted[0] != 1 {
		t.Errorf("notifier.persisted = %v, want [1]", notifier.persisted)
	}
}

// TestState_String.
func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateIdle:        "idle",
		StatePersisting:  "persisting",
		StateReconciling: "reconciling",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
