package engine

import (
	"ticket-template/internal/ledger"
	"ticket-template/internal/templates"
)

// Plan is the outcome of template selection for one change event. Retract is
// always processed before Apply.
type Plan struct {
	Apply   []templates.Template
	Retract []templates.Template
}

// Empty reports whether the plan has nothing to do.
func (p Plan) Empty() bool {
	return len(p.Apply) == 0 && len(p.Retract) == 0
}

// ApplyIDs returns the ids of the templates to apply, in order.
func (p Plan) ApplyIDs() []string { return templates.IDs(p.Apply) }

// RetractIDs returns the ids of the templates to retract, in order.
func (p Plan) RetractIDs() []string { return templates.IDs(p.Retract) }

// SelectValidNow returns the templates whose validity holds on the current
// state. Used by the manual endpoints.
func SelectValidNow(list []templates.Template, s Snapshot) []templates.Template {
	out := make([]templates.Template, 0, len(list))
	for _, t := range list {
		if ValidNow(t, s) {
			out = append(out, t)
		}
	}
	return out
}

// automatic returns the transition-valid templates that carry an add trigger.
func automatic(list []templates.Template, s Snapshot) []templates.Template {
	out := make([]templates.Template, 0, len(list))
	for _, t := range list {
		if t.Automatic() && ValidOnTransition(t, s) {
			out = append(out, t)
		}
	}
	return out
}

// ShouldRun is the cheap pre-check run before any article is loaded: true iff
// some transition-valid automatic template had its trigger fire or revert.
func ShouldRun(list []templates.Template, s Snapshot) bool {
	for _, t := range automatic(list, s) {
		if Triggered(t.AddCondition, s) || Reverted(t.AddCondition, s) {
			return true
		}
	}
	return false
}

// Select computes the apply and retract sets. A template being applied again
// while its id is still in the ledger is retracted first, which keeps
// re-application idempotent.
func Select(list []templates.Template, s Snapshot, used ledger.Set) Plan {
	var plan Plan
	var reapplied []templates.Template
	for _, t := range automatic(list, s) {
		switch {
		case Triggered(t.AddCondition, s):
			plan.Apply = append(plan.Apply, t)
			if used.Contains(t.ID) {
				reapplied = append(reapplied, t)
			}
		case Reverted(t.AddCondition, s):
			plan.Retract = append(plan.Retract, t)
		}
	}
	seen := make(map[string]struct{}, len(plan.Retract))
	for _, t := range plan.Retract {
		seen[t.ID] = struct{}{}
	}
	for _, t := range reapplied {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		plan.Retract = append(plan.Retract, t)
	}
	return plan
}
