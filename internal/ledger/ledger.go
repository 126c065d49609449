// Package ledger tracks which templates are currently reflected in an
// entity's content. It is persisted as a JSON array of template IDs on the
// entity's property bag.
package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PropertyKey is the entity property holding the serialized ledger.
const PropertyKey = "usedTemplateIds"

// Set is an insertion-ordered set of template IDs. The zero value is empty
// and ready to use.
type Set struct {
	ids []string
}

// New builds a set from ids, dropping blanks and duplicates.
func New(ids ...string) Set {
	var s Set
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Parse decodes the stored property value. Empty and "null" yield an empty set.
func Parse(raw string) (Set, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" {
		return Set{}, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(trimmed), &ids); err != nil {
		return Set{}, fmt.Errorf("decode used template ids failed: %w", err)
	}
	return New(ids...), nil
}

// Contains reports whether id is in the set.
func (s Set) Contains(id string) bool {
	return s.index(id) >= 0
}

// Add appends id if absent and reports whether the set changed.
func (s *Set) Add(id string) bool {
	if id == "" || s.Contains(id) {
		return false
	}
	s.ids = append(s.ids, id)
	return true
}

// Remove deletes id and reports whether the set changed. Removing an absent
// id is a no-op.
func (s *Set) Remove(id string) bool {
	idx := s.index(id)
	if idx < 0 {
		return false
	}
	s.ids = append(s.ids[:idx:idx], s.ids[idx+1:]...)
	return true
}

// Len returns the number of ids.
func (s Set) Len() int {
	return len(s.ids)
}

// IDs returns a copy of the ids in insertion order. Never nil.
func (s Set) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	return Set{ids: s.IDs()}
}

// String encodes the set as the stored JSON array.
func (s Set) String() string {
	data, _ := json.Marshal(s.IDs())
	return string(data)
}

// MarshalJSON encodes the set as a JSON array.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

// UnmarshalJSON decodes a JSON array of ids.
func (s *Set) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Set) index(id string) int {
	for i, v := range s.ids {
		if v == id {
			return i
		}
	}
	return -1
}
