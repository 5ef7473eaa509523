// Package attach is the attachment store collaborator. The core only
// emits task_id references to it: attachments themselves (files,
// images) are owned here, never by the task rows.
package attach

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store receives cascade signals from the core.
type Store interface {
	// DeleteForTask removes every attachment belonging to the task.
	// Idempotent: unknown task ids are a no-op.
	DeleteForTask(ctx context.Context, taskID string) error
}

// Nop is a Store that ignores all signals. Used when attachments are
// not configured.
type Nop struct{}

func (Nop) DeleteForTask(context.Context, string) error { return nil }

// Dir stores attachments on the local filesystem under
// <root>/<taskID>/<filename>.
type Dir struct {
	root string
}

// NewDir creates a filesystem attachment store rooted at root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Save stores one attachment for the task and returns its path.
func (d *Dir) Save(taskID, filename string, r io.Reader) (string, error) {
	dir := filepath.Join(d.root, taskID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create attachment directory: %w", err)
	}

	path := filepath.Join(dir, filepath.Base(filename))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create attachment file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("failed to write attachment: %w", err)
	}
	return path, nil
}

// List returns the attachment filenames stored for the task.
func (d *Dir) List(taskID string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(d.root, taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read attachment directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// DeleteForTask implements Store.
func (d *Dir) DeleteForTask(_ context.Context, taskID string) error {
	if taskID == "" {
		return fmt.Errorf("task id is required")
	}
	if err := os.RemoveAll(filepath.Join(d.root, taskID)); err != nil {
		return fmt.Errorf("failed to delete attachments for %s: %w", taskID, err)
	}
	return nil
}
