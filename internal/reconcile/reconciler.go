// Package reconcile drives persistence batches against the gateway and
// reconciles divergence between the optimistic snapshot and the remote
// store.
//
// Writes within a batch are issued strictly sequentially, so a partial
// failure leaves a deterministic prefix committed. Any persistence
// error (network, not-found, constraint rejection) is resolved the same
// way: the optimistic snapshot is discarded and re-seeded by a full
// load from authoritative state. There is no fine-grained undo.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/steveyegge/focusboard/internal/attach"
	"github.com/steveyegge/focusboard/internal/gateway"
	"github.com/steveyegge/focusboard/internal/store"
)

// State is the reconciler's observable position in its lifecycle:
// Idle -> Persisting -> {Idle | Reconciling -> Idle}.
type State int

const (
	StateIdle State = iota
	StatePersisting
	StateReconciling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePersisting:
		return "persisting"
	case StateReconciling:
		return "reconciling"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Notifier receives reconciler events. The dashboard implements this;
// a nil notifier disables broadcasting.
type Notifier interface {
	// BatchPersisted reports a fully committed batch.
	BatchPersisted(ops int)
	// StoreReloaded reports a reconciliation reload, with the error
	// that forced it.
	StoreReloaded(cause error)
}

// Reconciler persists batches and rolls the store back on failure.
type Reconciler struct {
	store    *store.Store
	gw       gateway.Gateway
	attach   attach.Store
	notifier Notifier
	logger   *log.Logger

	mu    sync.Mutex
	state State
}

// New creates a reconciler. attachments may be attach.Nop{} when the
// attachment collaborator is absent; notifier may be nil. If logger is
// nil, a default logger writing to stderr is used.
func New(s *store.Store, gw gateway.Gateway, attachments attach.Store, notifier Notifier, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.New(os.Stderr, "[reconcile] ", log.LstdFlags)
	}
	if attachments == nil {
		attachments = attach.Nop{}
	}
	return &Reconciler{
		store:    s,
		gw:       gw,
		attach:   attachments,
		notifier: notifier,
		logger:   logger,
	}
}

// State returns the current lifecycle state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SetNotifier installs the event notifier. The board process wires its
// dashboard handler here after constructing both sides.
func (r *Reconciler) SetNotifier(n Notifier) {
	r.mu.Lock()
	r.notifier = n
	r.mu.Unlock()
}

func (r *Reconciler) notify() Notifier {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notifier
}

func (r *Reconciler) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Persist issues the batch against the gateway, one write per op in
// batch order. On the first failure it stops issuing further writes and
// reloads the store from authoritative state; the returned error wraps
// the write failure (and the reload failure too, if the reload itself
// failed — in that case the store keeps its last successfully loaded
// snapshot).
func (r *Reconciler) Persist(ctx context.Context, ownerID string, batch gateway.Batch) error {
	if len(batch) == 0 {
		return nil
	}

	r.setState(StatePersisting)

	for i, op := range batch {
		if err := r.apply(ctx, op); err != nil {
			r.logger.Printf("Write %d/%d failed (%s %s): %v; reloading",
				i+1, len(batch), opName(op.Kind), op.TaskID, err)
			return r.reconcile(ctx, ownerID, err)
		}
	}

	r.setState(StateIdle)
	r.logger.Printf("Persisted batch: %d ops", len(batch))
	if n := r.notify(); n != nil {
		n.BatchPersisted(len(batch))
	}
	return nil
}

func (r *Reconciler) apply(ctx context.Context, op gateway.Op) error {
	switch op.Kind {
	case gateway.OpUpdate:
		return r.gw.UpdateTask(ctx, op.TaskID, op.Fields)
	case gateway.OpUpsert:
		return r.gw.UpsertTask(ctx, op.Task)
	case gateway.OpDelete:
		if err := r.gw.DeleteTask(ctx, op.TaskID); err != nil {
			return err
		}
		// Cascade attachment deletion only after the row delete commits.
		if err := r.attach.DeleteForTask(ctx, op.TaskID); err != nil {
			r.logger.Printf("Warning: attachment cascade for %s failed: %v", op.TaskID, err)
		}
		return nil
	default:
		return fmt.Errorf("unknown op kind %d", op.Kind)
	}
}

// reconcile discards the optimistic snapshot by reloading from the
// gateway. This is the system's only rollback mechanism.
func (r *Reconciler) reconcile(ctx context.Context, ownerID string, cause error) error {
	r.setState(StateReconciling)
	defer r.setState(StateIdle)

	if err := r.store.Load(ctx, ownerID); err != nil {
		r.logger.Printf("Reload after failure also failed: %v", err)
		return errors.Join(
			fmt.Errorf("persistence failed: %w", cause),
			fmt.Errorf("reload failed: %w", err),
		)
	}

	r.logger.Printf("Store reloaded from authoritative state")
	if n := r.notify(); n != nil {
		n.StoreReloaded(cause)
	}
	return fmt.Errorf("persistence failed, store reloaded: %w", cause)
}

func opName(k gateway.OpKind) string {
	switch k {
	case gateway.OpUpdate:
		return "update"
	case gateway.OpUpsert:
		return "upsert"
	case gateway.OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}
