package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/blackwell-systems/memprune/internal/policy"
)

// Parse decodes a backup document. Unknown keys are ignored; every known
// key that is present must have the right shape.
func Parse(data []byte) (*Document, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("invalid backup document: %w", err)
	}

	doc := &Document{Sets: make(map[string][]string)}
	for _, key := range policy.Keys {
		raw, ok := root[key]
		if !ok {
			continue
		}
		var ids []string
		if err := json.Unmarshal(raw, &ids); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		clean := make([]string, 0, len(ids))
		for _, id := range ids {
			if id = strings.TrimSpace(id); id != "" {
				clean = append(clean, id)
			}
		}
		doc.Sets[key] = clean
	}

	if raw, ok := root[KeyKillMode]; ok {
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", KeyKillMode, err)
		}
		mode, err := policy.ParseKillMode(name)
		if err != nil {
			return nil, err
		}
		doc.KillMode = &mode
	}
	return doc, nil
}

// Import restores the sets present in data, replacing their contents. Sets
// absent from the document are left untouched. The whole document is
// validated before anything is written.
func (m *Manager) Import(data []byte) (*Document, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}

	for _, key := range policy.Keys {
		ids, ok := doc.Sets[key]
		if !ok {
			continue
		}
		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		if err := m.store.SaveSet(key, set); err != nil {
			return nil, fmt.Errorf("failed to restore %s: %w", key, err)
		}
	}

	if doc.KillMode != nil {
		if err := m.store.SetKillMode(*doc.KillMode); err != nil {
			return nil, fmt.Errorf("failed to restore kill mode: %w", err)
		}
	}
	return doc, nil
}

// ImportFile restores a backup written by ExportFile.
func (m *Manager) ImportFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup file: %w", err)
	}
	return m.Import(data)
}
