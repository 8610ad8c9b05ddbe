// Package registry manages cable identifiers and their burial status:
// loading and saving CSV registries, inferring cable types from naming
// conventions, and validating the registry before analysis runs are
// attributed to a cable.
package registry

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Cable types. EXC are export cables, IAC inter-array cables.
const (
	TypeExport     = "EXC"
	TypeInterArray = "IAC"
)

// Lifecycle statuses a cable moves through during installation.
const (
	StatusNotInstalled     = "not installed"
	StatusInstalled        = "installed"
	StatusBurialInProgress = "burial in progress"
	StatusBurialComplete   = "burial complete"
)

// CableTypes returns the valid cable types.
func CableTypes() []string { return []string{TypeExport, TypeInterArray} }

// CableStatuses returns the valid lifecycle statuses.
func CableStatuses() []string {
	return []string{StatusNotInstalled, StatusInstalled, StatusBurialInProgress, StatusBurialComplete}
}

// ValidType reports whether t is a known cable type.
func ValidType(t string) bool { return t == TypeExport || t == TypeInterArray }

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s string) bool {
	switch s {
	case StatusNotInstalled, StatusInstalled, StatusBurialInProgress, StatusBurialComplete:
		return true
	}
	return false
}

// Cable is one registry entry.
type Cable struct {
	ID       string         `json:"cable_id"`
	Type     string         `json:"type"`
	Status   string         `json:"status"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Group is a configuration-side bundle of identifiers sharing a type.
type Group struct {
	Type        string   `json:"type" yaml:"type"`
	Identifiers []string `json:"identifiers" yaml:"identifiers"`
}

// Registry holds the known cables. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	cables []Cable
	logger *slog.Logger
}

// New returns an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// FromGroups builds a registry from configured identifier groups.
// Groups with unknown types are skipped; every cable starts out not
// installed.
func FromGroups(groups []Group, logger *slog.Logger) *Registry {
	r := New(logger)
	for _, g := range groups {
		if !ValidType(g.Type) {
			continue
		}
		for _, id := range g.Identifiers {
			r.cables = append(r.cables, Cable{
				ID:       id,
				Type:     g.Type,
				Status:   StatusNotInstalled,
				Metadata: map[string]any{},
			})
		}
	}
	if len(r.cables) > 0 {
		r.logger.Info("cable registry initialized from configuration", slog.Int("cables", len(r.cables)))
	}
	return r
}

// InferType guesses a cable type from identifier naming conventions.
// Returns the empty string when no convention matches.
func InferType(cableID string) string {
	if cableID == "" {
		return ""
	}
	id := strings.ToUpper(cableID)

	for _, prefix := range []string{"EXC", "EXP", "EX", "EC"} {
		if strings.HasPrefix(id, prefix) {
			return TypeExport
		}
	}
	for _, prefix := range []string{"IAC", "IA", "IC", "INT"} {
		if strings.HasPrefix(id, prefix) {
			return TypeInterArray
		}
	}

	if strings.Contains(id, "EXPORT") {
		return TypeExport
	}
	if strings.Contains(id, "ARRAY") || strings.Contains(id, "INTER") {
		return TypeInterArray
	}
	return ""
}

// Len returns the number of registered cables.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cables)
}

// Add registers a new cable. The type is inferred from the identifier
// when absent; unknown statuses fall back to not installed.
func (r *Registry) Add(c Cable) error {
	if c.ID == "" {
		return fmt.Errorf("cable ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.cables {
		if existing.ID == c.ID {
			return fmt.Errorf("cable ID %q already exists in registry", c.ID)
		}
	}

	if c.Type == "" {
		c.Type = InferType(c.ID)
	}
	if !ValidStatus(c.Status) {
		c.Status = StatusNotInstalled
	}
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}

	r.cables = append(r.cables, c)
	r.logger.Info("cable added to registry", slog.String("cable_id", c.ID), slog.String("type", c.Type))
	return nil
}

// UpdateStatus moves a cable to a new lifecycle status.
func (r *Registry) UpdateStatus(cableID, status string) error {
	if !ValidStatus(status) {
		return fmt.Errorf("invalid status: %q", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.cables {
		if r.cables[i].ID == cableID {
			r.cables[i].Status = status
			r.logger.Info("cable status updated",
				slog.String("cable_id", cableID), slog.String("status", status))
			return nil
		}
	}
	return fmt.Errorf("cable ID %q not found in registry", cableID)
}

// Get returns the cable with the given identifier.
func (r *Registry) Get(cableID string) (Cable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.cables {
		if c.ID == cableID {
			return copyCable(c), true
		}
	}
	return Cable{}, false
}

// Cables returns entries filtered by type and status. Empty or unknown
// filter values match everything.
func (r *Registry) Cables(cableType, status string) []Cable {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Cable, 0, len(r.cables))
	for _, c := range r.cables {
		if cableType != "" && ValidType(cableType) && c.Type != cableType {
			continue
		}
		if status != "" && ValidStatus(status) && c.Status != status {
			continue
		}
		out = append(out, copyCable(c))
	}
	return out
}

// IDs returns cable identifiers filtered like Cables.
func (r *Registry) IDs(cableType, status string) []string {
	cables := r.Cables(cableType, status)
	ids := make([]string, len(cables))
	for i, c := range cables {
		ids[i] = c.ID
	}
	return ids
}

// Types returns the distinct cable types present, in first-seen order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return distinct(r.cables, func(c Cable) string { return c.Type })
}

// Statuses returns the distinct statuses present, in first-seen order.
func (r *Registry) Statuses() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return distinct(r.cables, func(c Cable) string { return c.Status })
}

// Validate checks the registry for consistency. The returned slice is
// empty when the registry is valid.
func (r *Registry) Validate() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.cables) == 0 {
		return []string{"cable registry is empty"}
	}

	var issues []string

	empty := 0
	seen := make(map[string]bool, len(r.cables))
	var duplicates, invalidTypes, invalidStatuses []string
	for _, c := range r.cables {
		if c.ID == "" {
			empty++
			continue
		}
		if seen[c.ID] {
			duplicates = append(duplicates, c.ID)
		}
		seen[c.ID] = true
		if c.Type != "" && !ValidType(c.Type) {
			invalidTypes = append(invalidTypes, c.ID)
		}
		if !ValidStatus(c.Status) {
			invalidStatuses = append(invalidStatuses, c.ID)
		}
	}

	if empty > 0 {
		issues = append(issues, "some cable IDs are empty")
	}
	if len(duplicates) > 0 {
		issues = append(issues, fmt.Sprintf("duplicate cable IDs: %s", strings.Join(duplicates, ", ")))
	}
	if len(invalidTypes) > 0 {
		issues = append(issues, fmt.Sprintf("invalid cable types for: %s", strings.Join(invalidTypes, ", ")))
	}
	if len(invalidStatuses) > 0 {
		issues = append(issues, fmt.Sprintf("invalid statuses for: %s", strings.Join(invalidStatuses, ", ")))
	}
	return issues
}

// Groups exports the registry as configuration identifier groups,
// one per known cable type.
func (r *Registry) Groups() []Group {
	var groups []Group
	for _, t := range CableTypes() {
		ids := r.IDs(t, "")
		if len(ids) > 0 {
			groups = append(groups, Group{Type: t, Identifiers: ids})
		}
	}
	return groups
}

func copyCable(c Cable) Cable {
	meta := make(map[string]any, len(c.Metadata))
	for k, v := range c.Metadata {
		meta[k] = v
	}
	c.Metadata = meta
	return c
}

func distinct(cables []Cable, key func(Cable) string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range cables {
		k := key(c)
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
