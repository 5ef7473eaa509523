package attach

import (
	"context"
	"strings"
	"testing"
)

func TestDir_SaveListDelete(t *testing.T) {
	d := NewDir(t.TempDir())

	if _, err := d.Save("task1", "receipt.pdf", strings.NewReader("pdf bytes")); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := d.Save("task1", "photo.jpg", strings.NewReader("jpg bytes")); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	names, err := d.List("task1")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(names) != 2 {
		t.Errorf("List() = %v, want 2 files", names)
	}

	if err := d.DeleteForTask(context.Background(), "task1"); err != nil {
		t.Fatalf("DeleteForTask() failed: %v", err)
	}
	names, err = d.List("task1")
	if err != nil {
		t.Fatalf("List() after delete failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("attachments survived cascade: %v", names)
	}

	// Unknown task cascade is a no-op.
	if err := d.DeleteForTask(context.Background(), "never-existed"); err != nil {
		t.Fatalf("cascade for unknown task failed: %v", err)
	}
}

func TestDir_SaveStripsPathComponents(t *testing.T) {
	d := NewDir(t.TempDir())

	path, err := d.Save("task1", "../../etc/passwd", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if strings.Contains(path, "..") {
		t.Errorf("stored path %q escapes the attachment root", path)
	}
	names, err := d.List("task1")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(names) != 1 || names[0] != "passwd" {
		t.Errorf("List() = %v, want [passwd]", names)
	}
}
