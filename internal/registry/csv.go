package registry

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Common header spellings mapped onto the canonical column names.
var headerAliases = map[string]string{
	"ID":       "cable_id",
	"CableID":  "cable_id",
	"Cable ID": "cable_id",
	"Cable_ID": "cable_id",
	"Type":     "type",
	"CableType": "type",
	"Status":   "status",
}

// LoadCSV replaces the registry contents with the rows of a CSV file.
// The file needs a cable_id column (common alias spellings are
// accepted); type is inferred from the identifier when absent and
// unknown statuses fall back to not installed.
func (r *Registry) LoadCSV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open registry csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("read registry csv: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("registry csv %s is empty", path)
	}

	cols := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		name = strings.TrimPrefix(strings.TrimSpace(name), "\uFEFF")
		if canonical, ok := headerAliases[name]; ok {
			name = canonical
		}
		cols[name] = i
	}
	idCol, ok := cols["cable_id"]
	if !ok {
		return fmt.Errorf("registry csv %s is missing required column cable_id", path)
	}

	cell := func(row []string, name string) (string, bool) {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return "", false
		}
		return strings.TrimSpace(row[idx]), true
	}

	cables := make([]Cable, 0, len(records)-1)
	for _, row := range records[1:] {
		if idCol >= len(row) {
			continue
		}
		c := Cable{ID: strings.TrimSpace(row[idCol])}

		if t, ok := cell(row, "type"); ok && t != "" {
			c.Type = t
		} else {
			c.Type = InferType(c.ID)
		}

		if s, ok := cell(row, "status"); ok && ValidStatus(s) {
			c.Status = s
		} else {
			c.Status = StatusNotInstalled
		}

		c.Metadata = map[string]any{}
		if m, ok := cell(row, "metadata"); ok && m != "" {
			if err := json.Unmarshal([]byte(m), &c.Metadata); err != nil {
				r.logger.Warn("unparseable cable metadata ignored",
					slog.String("cable_id", c.ID), slog.String("error", err.Error()))
				c.Metadata = map[string]any{}
			}
		}

		cables = append(cables, c)
	}

	r.mu.Lock()
	r.cables = cables
	r.mu.Unlock()

	r.logger.Info("cable registry loaded",
		slog.String("path", path), slog.Int("cables", len(cables)))
	return nil
}

// SaveCSV writes the registry to a CSV file with metadata serialized
// as JSON.
func (r *Registry) SaveCSV(path string) error {
	r.mu.RLock()
	cables := make([]Cable, len(r.cables))
	copy(cables, r.cables)
	r.mu.RUnlock()

	if len(cables) == 0 {
		return fmt.Errorf("registry is empty, nothing to save")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create registry csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"cable_id", "type", "status", "metadata"}); err != nil {
		return fmt.Errorf("write registry csv header: %w", err)
	}
	for _, c := range cables {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("serialize metadata for %s: %w", c.ID, err)
		}
		if err := w.Write([]string{c.ID, c.Type, c.Status, string(meta)}); err != nil {
			return fmt.Errorf("write registry csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush registry csv: %w", err)
	}

	r.logger.Info("cable registry saved",
		slog.String("path", path), slog.Int("cables", len(cables)))
	return nil
}
