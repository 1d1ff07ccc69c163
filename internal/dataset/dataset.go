// Package dataset reads and writes record datasets: JSON files holding one
// array of flat objects.
package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Record is any flat record map.
type Record interface {
	~map[string]any
}

// Read decodes the JSON array stored at path.
func Read[T Record](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	return Decode[T](data)
}

// Decode parses a JSON array of objects. Numbers decode as float64.
func Decode[T Record](data []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("dataset must be a JSON array of objects")
	}

	var records []T
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}
	for i, rec := range records {
		if map[string]any(rec) == nil {
			return nil, fmt.Errorf("dataset element %d is not an object", i)
		}
	}
	return records, nil
}

// Write stores records at path as an indented JSON array, replacing any
// existing file. A nil slice is written as [].
func Write[T Record](path string, records []T) error {
	if records == nil {
		records = []T{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dataset %s: %w", path, err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write dataset %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write dataset %s: %w", path, err)
	}
	return nil
}
