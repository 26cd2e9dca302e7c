package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/blackwell-systems/memprune/internal/policy"
)

// Export renders every policy set and the kill mode as indented JSON.
// Set members are sorted so repeated exports are byte-identical.
func (m *Manager) Export() ([]byte, error) {
	root := make(map[string]interface{}, len(policy.Keys)+1)

	for _, key := range policy.Keys {
		set, err := m.store.GetSet(key)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		root[key] = ids
	}

	mode, err := m.store.GetKillMode()
	if err != nil {
		return nil, fmt.Errorf("failed to read kill mode: %w", err)
	}
	root[KeyKillMode] = mode.String()

	data, err := json.MarshalIndent(root, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal backup: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportFile writes Export's output to path.
func (m *Manager) ExportFile(path string) error {
	data, err := m.Export()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write backup file: %w", err)
	}
	return nil
}
