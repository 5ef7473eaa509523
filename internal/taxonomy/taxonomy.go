// Package taxonomy defines the closed vocabulary of legal (page, section)
// pairs and the registry for user-defined custom sections.
//
// System sections come from an embedded, versioned TOML configuration
// (sections.toml). They are immutable and mirror the CHECK constraint on
// the remote tasks relation; CheckDrift detects divergence at startup.
//
// Custom sections are registered at runtime, apply within the inbox page
// only, and persist to a local JSON file so the set survives restarts.
// All reads are served from the in-memory cache.
package taxonomy

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/steveyegge/focusboard/internal/schema"
)

//go:embed sections.toml
var systemConfig []byte

var (
	// ErrDuplicateName is returned by Register when the name collides
	// case-insensitively with an existing system or custom section.
	ErrDuplicateName = errors.New("section name already exists")

	// ErrProtectedSection is returned by Unregister for system sections.
	ErrProtectedSection = errors.New("system sections cannot be removed")

	// ErrUnknownSection is returned by Unregister for ids that name
	// neither a system nor a custom section.
	ErrUnknownSection = errors.New("unknown section")
)

// Descriptor describes one section: either a fixed system entry from the
// embedded configuration or a user-registered custom entry.
type Descriptor struct {
	ID           string        `json:"id" toml:"id"`
	Name         string        `json:"name" toml:"name"`
	Icon         string        `json:"icon" toml:"icon"`
	Color        string        `json:"color" toml:"color"`
	Pages        []schema.Page `json:"pages,omitempty" toml:"pages"`
	IsSystem     bool          `json:"is_system" toml:"-"`
	DisplayOrder int           `json:"display_order" toml:"-"`
	CreatedAt    time.Time     `json:"created_at" toml:"-"`
}

type systemFile struct {
	Version  int          `toml:"version"`
	Sections []Descriptor `toml:"section"`
}

// Taxonomy is the authoritative legality oracle for (page, section)
// pairs. Safe for concurrent use.
type Taxonomy struct {
	mu      sync.RWMutex
	version int
	system  []*Descriptor
	byPage  map[schema.Page]map[string]bool
	custom  []*Descriptor

	registry *Registry // nil when custom persistence is disabled
}

// New loads the embedded system configuration and, when registry is
// non-nil, the persisted custom sections.
func New(registry *Registry) (*Taxonomy, error) {
	var cfg systemFile
	if err := toml.Unmarshal(systemConfig, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse embedded section config: %w", err)
	}
	if cfg.Version < 1 {
		return nil, fmt.Errorf("embedded section config missing version")
	}

	t := &Taxonomy{
		version:  cfg.Version,
		byPage:   make(map[schema.Page]map[string]bool),
		registry: registry,
	}
	for i := range cfg.Sections {
		d := cfg.Sections[i]
		d.IsSystem = true
		d.DisplayOrder = i + 1
		t.system = append(t.system, &d)
		for _, p := range d.Pages {
			if !schema.ValidPage(p) {
				return nil, fmt.Errorf("section %s references unknown page %q", d.ID, p)
			}
			if t.byPage[p] == nil {
				t.byPage[p] = make(map[string]bool)
			}
			t.byPage[p][d.ID] = true
		}
	}

	if registry != nil {
		custom, err := registry.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load custom sections: %w", err)
		}
		t.custom = custom
	}
	return t, nil
}

// Version returns the system configuration version.
func (t *Taxonomy) Version() int {
	return t.version
}

// IsLegal reports whether section is a system section valid for page, or
// a registered custom section. Custom sections apply within the inbox
// page only.
func (t *Taxonomy) IsLegal(page schema.Page, section string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.byPage[page][section] {
		return true
	}
	if page != schema.PageInbox {
		return false
	}
	for _, d := range t.custom {
		if d.ID == section {
			return true
		}
	}
	return false
}

// LegalSections returns the section ids legal for page, system entries
// first in configuration order, then custom entries by display order.
func (t *Taxonomy) LegalSections(page schema.Page) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var ids []string
	for _, d := range t.system {
		if t.byPage[page][d.ID] {
			ids = append(ids, d.ID)
		}
	}
	if page == schema.PageInbox {
		for _, d := range t.custom {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// Descriptors returns all descriptors, system first.
func (t *Taxonomy) Descriptors() []*Descriptor {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Descriptor, 0, len(t.system)+len(t.custom))
	out = append(out, t.system...)
	out = append(out, t.custom...)
	return out
}

// SystemSectionIDs returns the full system section id set across pages,
// sorted. This is the set the remote CHECK constraint must accept.
func (t *Taxonomy) SystemSectionIDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.system))
	for _, d := range t.system {
		ids = append(ids, d.ID)
	}
	sort.Strings(ids)
	return ids
}

// Register adds a custom section. The id is derived from the name
// (lowercase, spaces to underscores). Fails with ErrDuplicateName if the
// name or derived id collides case-insensitively with any existing
// system or custom section.
func (t *Taxonomy) Register(name, icon, color string) (*Descriptor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("section name is required")
	}
	id := Slugify(name)

	t.mu.Lock()
	defer t.mu.Unlock()

	maxOrder := len(t.system)
	for _, d := range t.system {
		if strings.EqualFold(d.Name, name) || strings.EqualFold(d.ID, id) {
			return nil, fmt.Errorf("%q: %w", name, ErrDuplicateName)
		}
	}
	for _, d := range t.custom {
		if strings.EqualFold(d.Name, name) || strings.EqualFold(d.ID, id) {
			return nil, fmt.Errorf("%q: %w", name, ErrDuplicateName)
		}
		if d.DisplayOrder > maxOrder {
			maxOrder = d.DisplayOrder
		}
	}

	d := &Descriptor{
		ID:           id,
		Name:         name,
		Icon:         icon,
		Color:        color,
		IsSystem:     false,
		DisplayOrder: maxOrder + 1,
		CreatedAt:    time.Now().UTC(),
	}
	t.custom = append(t.custom, d)

	if t.registry != nil {
		if err := t.registry.Save(t.custom); err != nil {
			t.custom = t.custom[:len(t.custom)-1]
			return nil, fmt.Errorf("failed to persist custom sections: %w", err)
		}
	}
	return d, nil
}

// Unregister removes a custom section. System sections can never be
// removed (ErrProtectedSection).
func (t *Taxonomy) Unregister(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, d := range t.system {
		if d.ID == id {
			return fmt.Errorf("%s: %w", id, ErrProtectedSection)
		}
	}
	for i, d := range t.custom {
		if d.ID == id {
			removed := t.custom[i]
			t.custom = append(t.custom[:i], t.custom[i+1:]...)
			if t.registry != nil {
				if err := t.registry.Save(t.custom); err != nil {
					t.custom = append(t.custom, nil)
					copy(t.custom[i+1:], t.custom[i:])
					t.custom[i] = removed
					return fmt.Errorf("failed to persist custom sections: %w", err)
				}
			}
			return nil
		}
	}
	return fmt.Errorf("%s: %w", id, ErrUnknownSection)
}

// Reload re-reads the custom section list from the registry. Called by
// the watcher when another process edits the file.
func (t *Taxonomy) Reload() error {
	if t.registry == nil {
		return nil
	}
	custom, err := t.registry.Load()
	if err != nil {
		return fmt.Errorf("failed to reload custom sections: %w", err)
	}
	t.mu.Lock()
	t.custom = custom
	t.mu.Unlock()
	return nil
}

// CheckDrift compares the taxonomy's system section set against the
// literal set accepted by the live remote CHECK constraint. The local
// set must be a superset-or-equal of the live set; anything the remote
// accepts that the taxonomy does not know is drift and returns an error
// naming the offending literals.
func (t *Taxonomy) CheckDrift(live []string) error {
	known := make(map[string]bool)
	for _, id := range t.SystemSectionIDs() {
		known[id] = true
	}
	var unknown []string
	for _, id := range live {
		if !known[id] {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("section constraint drift: remote accepts %v unknown to config version %d",
			unknown, t.version)
	}
	return nil
}

// Slugify converts a display name to a section id: lowercased, with
// whitespace and dashes collapsed to single underscores.
func Slugify(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '-' || r == '_'
	})
	return strings.Join(fields, "_")
}
