// internal/memory/importer.go
package memory

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// File is the YAML layout of a message file:
//
//	messages:
//	  1: CQ CQ CQ DE K1ABC K
//	  2: TU 73
type File struct {
	Messages map[int]string `yaml:"messages"`
}

// ImportYAML reads a message file and saves every entry. All entries are
// validated before anything is written. It returns the slots written.
func (s *Store) ImportYAML(r io.Reader) ([]int, error) {
	var f File
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("parse message file: %w", err)
	}

	slots := make([]int, 0, len(f.Messages))
	var errs []error
	for slot, text := range f.Messages {
		if err := checkSlot(slot); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := EncodeSlot(text); err != nil {
			errs = append(errs, fmt.Errorf("slot %d: %w", slot, err))
			continue
		}
		slots = append(slots, slot)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	sort.Ints(slots)

	for _, slot := range slots {
		if err := s.Save(slot, f.Messages[slot]); err != nil {
			return nil, err
		}
	}
	return slots, nil
}

// ImportFile imports the message file at path.
func (s *Store) ImportFile(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open message file: %w", err)
	}
	defer f.Close()
	return s.ImportYAML(f)
}

// ExportYAML writes every non-empty slot as a message file.
func (s *Store) ExportYAML(w io.Writer) error {
	messages, err := s.List()
	if err != nil {
		return err
	}
	f := File{Messages: make(map[int]string)}
	for _, m := range messages {
		if !m.Empty() {
			f.Messages[m.Slot] = m.Text
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("write message file: %w", err)
	}
	return enc.Close()
}
