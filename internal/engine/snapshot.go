// Package engine decides which templates apply to an entity change and merges
// their text into the entity's content.
package engine

import "ticket-template/internal/condition"

// Snapshot is the read-only view of an entity during one change.
type Snapshot interface {
	Kind() condition.EntityKind
	IsNew() bool
	// Is reports the current value of a single-value field.
	Is(field, value string) bool
	// Was reports the value before this change.
	Was(field, value string) bool
	IsChanged(field string) bool
	// Becomes reports that the field changed to value in this change.
	Becomes(field, value string) bool
	HasTag(name string) bool
	TagAdded(name string) bool
	TagRemoved(name string) bool
}

// Change is an in-memory Snapshot built from the before and after state of an
// entity.
type Change struct {
	EntityKind condition.EntityKind
	New        bool
	Before     map[string]string
	After      map[string]string
	Tags       []string
	Added      []string
	Removed    []string
}

// NewChange diffs the before and after state of an entity.
func NewChange(kind condition.EntityKind, isNew bool, beforeFields, afterFields map[string]string, beforeTags, afterTags []string) *Change {
	c := &Change{
		EntityKind: kind,
		New:        isNew,
		Before:     copyFields(beforeFields),
		After:      copyFields(afterFields),
		Tags:       append([]string(nil), afterTags...),
	}
	before := toSet(beforeTags)
	after := toSet(afterTags)
	for _, tag := range afterTags {
		// new entities report every initial tag as added
		if _, ok := before[tag]; !ok || isNew {
			c.Added = append(c.Added, tag)
		}
	}
	for _, tag := range beforeTags {
		if _, ok := after[tag]; !ok {
			c.Removed = append(c.Removed, tag)
		}
	}
	return c
}

func (c *Change) Kind() condition.EntityKind { return c.EntityKind }

func (c *Change) IsNew() bool { return c.New }

func (c *Change) Is(field, value string) bool {
	v, ok := c.After[field]
	return ok && v == value
}

func (c *Change) Was(field, value string) bool {
	v, ok := c.Before[field]
	return ok && v == value
}

func (c *Change) IsChanged(field string) bool {
	before, hadBefore := c.Before[field]
	after, hasAfter := c.After[field]
	return hadBefore != hasAfter || before != after
}

func (c *Change) Becomes(field, value string) bool {
	return c.IsChanged(field) && c.Is(field, value)
}

func (c *Change) HasTag(name string) bool { return contains(c.Tags, name) }

func (c *Change) TagAdded(name string) bool { return contains(c.Added, name) }

func (c *Change) TagRemoved(name string) bool { return contains(c.Removed, name) }

func copyFields(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
