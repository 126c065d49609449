// 本文件用于条件求值 每个函数只读快照 不产生副作用

package engine

import (
	"ticket-template/internal/condition"
	"ticket-template/internal/templates"
)

// Holds reports whether a validity condition is satisfied by the current state.
func Holds(c condition.Validity, s Snapshot) bool {
	switch v := c.(type) {
	case condition.EntityIs:
		return v.EntityType == s.Kind()
	case condition.FieldIs:
		return s.Is(v.FieldName, v.FieldValue)
	case condition.TagIs:
		return s.HasTag(v.TagName)
	default:
		return false
	}
}

// Held reports whether a validity condition was satisfied before this change.
// Entity kind never changes, so entity_is is covered by Holds.
func Held(c condition.Validity, s Snapshot) bool {
	switch v := c.(type) {
	case condition.FieldIs:
		return s.Was(v.FieldName, v.FieldValue)
	case condition.TagIs:
		return s.TagRemoved(v.TagName)
	default:
		return false
	}
}

// WillHold reports whether this change makes a validity condition true.
func WillHold(c condition.Validity, s Snapshot) bool {
	switch v := c.(type) {
	case condition.FieldIs:
		return s.Becomes(v.FieldName, v.FieldValue)
	case condition.TagIs:
		return s.TagAdded(v.TagName)
	default:
		return false
	}
}

// Triggered reports whether an add trigger fired on this change. New entities
// fire on their initial state.
func Triggered(c condition.Trigger, s Snapshot) bool {
	switch v := c.(type) {
	case condition.FieldBecomes:
		if s.IsNew() && s.Is(v.FieldName, v.FieldValue) {
			return true
		}
		return s.Becomes(v.FieldName, v.FieldValue)
	case condition.TagAdded:
		if s.IsNew() && s.HasTag(v.TagName) {
			return true
		}
		return s.TagAdded(v.TagName)
	case condition.TagRemoved:
		return !s.IsNew() && s.TagRemoved(v.TagName)
	default:
		return false
	}
}

// Reverted reports whether the state that fired an add trigger was undone on
// this change. It never holds for new entities.
func Reverted(c condition.Trigger, s Snapshot) bool {
	if s.IsNew() {
		return false
	}
	switch v := c.(type) {
	case condition.FieldBecomes:
		return s.IsChanged(v.FieldName) && s.Was(v.FieldName, v.FieldValue)
	case condition.TagAdded:
		return s.TagRemoved(v.TagName)
	case condition.TagRemoved:
		return s.TagAdded(v.TagName)
	default:
		return false
	}
}

// Applicable reports whether t may be used for entities of kind at all: it
// must be complete and must not name the other entity kind.
func Applicable(t templates.Template, kind condition.EntityKind) bool {
	if !t.Complete() {
		return false
	}
	for _, c := range t.ValidCondition {
		if e, ok := c.(condition.EntityIs); ok && e.EntityType != kind {
			return false
		}
	}
	return true
}

// ValidNow reports whether any validity condition holds on the current state.
func ValidNow(t templates.Template, s Snapshot) bool {
	if !Applicable(t, s.Kind()) {
		return false
	}
	for _, c := range t.ValidCondition {
		if Holds(c, s) {
			return true
		}
	}
	return false
}

// ValidOnTransition 同时考虑当前 变更前 与变更后三种状态
// 刚失效的模板也必须纳入 否则自动移除无法触发
func ValidOnTransition(t templates.Template, s Snapshot) bool {
	if !Applicable(t, s.Kind()) {
		return false
	}
	for _, c := range t.ValidCondition {
		if Holds(c, s) || Held(c, s) || WillHold(c, s) {
			return true
		}
	}
	return false
}
