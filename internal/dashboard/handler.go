package dashboard

import (
	"encoding/json"
	"log"
	"time"

	"github.com/steveyegge/focusboard/internal/schema"
	"github.com/steveyegge/focusboard/internal/taxonomy"
)

// Handler formats board events as dashboard messages. It implements the
// reconciler's Notifier interface and exposes task/section event hooks
// for the command layer.
type Handler struct {
	server *Server
	logger *log.Logger
}

// NewHandler creates an event handler connected to a dashboard server
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}

	return &Handler{
		server: server,
		logger: logger,
	}
}

// OnTaskEvent broadcasts a placement change for one task.
// action is one of created, moved, reordered, completed, reopened,
// deleted.
func (h *Handler) OnTaskEvent(task *schema.Task, action string) {
	h.logger.Printf("Task %s: %s (%s)", action, task.ID, task.Title)

	data := TaskUpdateData{
		TaskID:  task.ID,
		Action:  action,
		Page:    string(task.Page),
		Section: task.Section,
		Order:   task.SectionOrder,
		Title:   task.Title,
	}
	h.send(MessageTypeTaskUpdate, data)
}

// OnSectionRegistered broadcasts a new custom section.
func (h *Handler) OnSectionRegistered(d *taxonomy.Descriptor) {
	h.send(MessageTypeSectionUpdate, SectionUpdateData{
		SectionID: d.ID,
		Action:    "registered",
		Name:      d.Name,
	})
}

// OnSectionUnregistered broadcasts a removed custom section.
func (h *Handler) OnSectionUnregistered(id string) {
	h.send(MessageTypeSectionUpdate, SectionUpdateData{
		SectionID: id,
		Action:    "unregistered",
	})
}

// BatchPersisted implements reconcile.Notifier.
func (h *Handler) BatchPersisted(ops int) {
	h.send(MessageTypeBatchPersisted, BatchPersistedData{Ops: ops})
}

// StoreReloaded implements reconcile.Notifier.
func (h *Handler) StoreReloaded(cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	h.send(MessageTypeStoreReloaded, StoreReloadedData{Cause: msg})
}

// BroadcastStats publishes board statistics computed from a snapshot.
func (h *Handler) BroadcastStats(tasks []*schema.Task) {
	stats := StatsData{ByPage: make(map[string]int)}
	for _, t := range tasks {
		stats.Total++
		stats.ByPage[string(t.Page)]++
		if t.Completed {
			stats.Completed++
		}
	}
	h.send(MessageTypeStats, stats)
}

// TaskEvent pairs a task with the action derived from a snapshot diff.
type TaskEvent struct {
	Task   *schema.Task
	Action string
}

// DiffSnapshots derives task events between two snapshots. A task
// present only in next is created; only in prev, deleted. For tasks in
// both, a completion flip wins over a scope change, which wins over an
// order change. Deleted events carry the prev task.
func DiffSnapshots(prev, next []*schema.Task) []TaskEvent {
	prevByID := make(map[string]*schema.Task, len(prev))
	for _, t := range prev {
		prevByID[t.ID] = t
	}

	var events []TaskEvent
	seen := make(map[string]bool, len(next))
	for _, t := range next {
		seen[t.ID] = true
		old, ok := prevByID[t.ID]
		switch {
		case !ok:
			events = append(events, TaskEvent{Task: t, Action: "created"})
		case old.Completed != t.Completed:
			action := "completed"
			if !t.Completed {
				action = "reopened"
			}
			events = append(events, TaskEvent{Task: t, Action: action})
		case old.Page != t.Page || old.Section != t.Section:
			events = append(events, TaskEvent{Task: t, Action: "moved"})
		case old.SectionOrder != t.SectionOrder:
			events = append(events, TaskEvent{Task: t, Action: "reordered"})
		}
	}
	for _, t := range prev {
		if !seen[t.ID] {
			events = append(events, TaskEvent{Task: t, Action: "deleted"})
		}
	}
	return events
}

// DiffSections compares two descriptor lists and returns the custom
// sections registered and unregistered between them. System sections
// never change at runtime and are ignored.
func DiffSections(prev, next []*taxonomy.Descriptor) (added []*taxonomy.Descriptor, removed []string) {
	prevIDs := make(map[string]bool, len(prev))
	for _, d := range prev {
		if !d.IsSystem {
			prevIDs[d.ID] = true
		}
	}
	nextIDs := make(map[string]bool, len(next))
	for _, d := range next {
		if d.IsSystem {
			continue
		}
		nextIDs[d.ID] = true
		if !prevIDs[d.ID] {
			added = append(added, d)
		}
	}
	for _, d := range prev {
		if !d.IsSystem && !nextIDs[d.ID] {
			removed = append(removed, d.ID)
		}
	}
	return added, removed
}

func (h *Handler) send(typ MessageType, data interface{}) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}
	h.server.Broadcast(Message{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      dataJSON,
	})
}
