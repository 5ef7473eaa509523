// Package migrate imports and exports the task set as JSONL, one task
// per line. Used for backups and for moving a board between the
// embedded and remote gateways.
package migrate

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/steveyegge/focusboard/internal/gateway"
	"github.com/steveyegge/focusboard/internal/schema"
)

// jsonlTask mirrors schema.Task with the historical priority_order
// alias accepted on import.
type jsonlTask struct {
	schema.Task
	PriorityOrder int `json:"priority_order,omitempty"`
}

// ExportOptions configures Export.
type ExportOptions struct {
	OwnerID string
	Out     io.Writer
}

// ImportOptions configures Import.
type ImportOptions struct {
	Path   string
	DryRun bool // parse and validate without writing
	Backup bool // not applicable to import; kept for CLI symmetry
}

// ImportResult contains statistics about an import run.
type ImportResult struct {
	TasksImported int
	Errors        []string
}

// Export writes every task row for the owner as one JSON object per
// line, in gateway order.
func Export(ctx context.Context, gw gateway.Gateway, opts ExportOptions) (int, error) {
	tasks, err := gw.ListTasks(ctx, opts.OwnerID)
	if err != nil {
		return 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	enc := json.NewEncoder(opts.Out)
	for _, t := range tasks {
		if err := enc.Encode(t); err != nil {
			return 0, fmt.Errorf("failed to encode task %s: %w", t.ID, err)
		}
	}
	return len(tasks), nil
}

// ReadJSONL parses a JSONL file into task records, applying defaults
// and resolving the priority_order alias.
func ReadJSONL(path string) ([]*schema.Task, error) {
	// #nosec G304 - controlled path from CLI
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSONL file: %w", err)
	}
	defer file.Close()

	var tasks []*schema.Task
	dec := json.NewDecoder(bufio.NewReader(file))
	line := 0
	for {
		var row jsonlTask
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("invalid JSON at line %d: %w", line+1, err)
		}
		line++

		t := row.Task
		if t.SectionOrder == 0 && row.PriorityOrder > 0 {
			t.SectionOrder = row.PriorityOrder
		}
		t.SetDefaults()
		tasks = append(tasks, &t)
	}
	return tasks, nil
}

// Import upserts every task from the JSONL file into the gateway.
// Individual row failures are collected, not fatal.
func Import(ctx context.Context, gw gateway.Gateway, opts ImportOptions) (*ImportResult, error) {
	if _, err := os.Stat(opts.Path); err != nil {
		return nil, fmt.Errorf("input file does not exist: %w", err)
	}

	tasks, err := ReadJSONL(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSONL: %w", err)
	}

	result := &ImportResult{}
	for _, t := range tasks {
		if err := t.Validate(); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("invalid task %s: %v", t.ID, err))
			continue
		}
		if opts.DryRun {
			result.TasksImported++
			continue
		}
		if err := gw.UpsertTask(ctx, t); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("failed to import task %s: %v", t.ID, err))
			continue
		}
		result.TasksImported++
	}
	return result, nil
}

// BackupPath returns a timestamped backup filename for the given path.
func BackupPath(path string) string {
	return path + ".backup." + time.Now().Format("20060102-150405")
}
