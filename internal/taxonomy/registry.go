package taxonomy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Registry persists the custom section list to a local JSON file. This
// is the only durable state the taxonomy owns; the remote gateway never
// sees section descriptors.
//
// The file format is an ordered list of descriptor records:
//
//	[{"id": "recetas", "name": "Recetas", "icon": "book", ...}, ...]
type Registry struct {
	path string
}

// NewRegistry creates a registry backed by the given file path. The
// parent directory is created on first save.
func NewRegistry(path string) *Registry {
	return &Registry{path: path}
}

// Path returns the backing file path. The watcher needs it.
func (r *Registry) Path() string {
	return r.path
}

// Load reads the persisted custom section list. A missing file is an
// empty list, not an error.
func (r *Registry) Load() ([]*Descriptor, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sections file %s: %w", r.path, err)
	}

	var custom []*Descriptor
	if err := json.Unmarshal(data, &custom); err != nil {
		return nil, fmt.Errorf("failed to parse sections file %s: %w", r.path, err)
	}

	for _, d := range custom {
		if d.ID == "" || d.Name == "" {
			return nil, fmt.Errorf("invalid sections file %s: entry missing id or name", r.path)
		}
		d.IsSystem = false
	}
	sort.SliceStable(custom, func(i, j int) bool {
		return custom[i].DisplayOrder < custom[j].DisplayOrder
	})
	return custom, nil
}

// Save writes the custom section list atomically (temp file + rename).
func (r *Registry) Save(custom []*Descriptor) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create sections directory: %w", err)
	}

	data, err := json.MarshalIndent(custom, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sections: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write sections file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace sections file: %w", err)
	}
	return nil
}
