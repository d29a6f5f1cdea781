package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads the rule base from a JSON file. A missing file yields an empty
// base so the first run works before any rule has been written.
func Load(path string) (*Base, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Base{}, nil
		}
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var rs []Rule
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	return New(rs)
}

// Save writes the rule base back as indented JSON. The write goes through a
// temp file and a rename so a crash cannot leave a truncated rules file.
func Save(path string, b *Base) error {
	data, err := json.MarshalIndent(b.Rules(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create rules directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp rules file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp rules file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp rules file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace rules file: %w", err)
	}
	return nil
}
