// Package config locates, formats and writes the flat settings file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Values is a flat key to value settings map.
type Values map[string]any

// Keys returns the keys in sorted order.
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders the values in RC style, one "key = value" per line.
func (v Values) String() string {
	var sb strings.Builder
	for _, k := range v.Keys() {
		fmt.Fprintf(&sb, "%s = %v\n", k, v[k])
	}
	return sb.String()
}

// Write stores values at path as YAML. The file is replaced atomically so
// watchers never observe a partial write.
func Write(path string, values Values) error {
	data, err := yaml.Marshal(map[string]any(values))
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
