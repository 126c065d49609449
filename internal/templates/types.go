// Package templates holds template definitions and their persistence on a
// project's extension property bag.
package templates

import (
	"bytes"
	"encoding/json"

	"ticket-template/internal/condition"
)

// Template binds a knowledge-base article to the conditions under which its
// content is offered or inserted automatically.
type Template struct {
	ID        string
	Name      string
	ArticleID string
	// ValidCondition is OR-ed. An empty list never matches.
	ValidCondition []condition.Validity
	// AddCondition is nil for manual-only templates.
	AddCondition condition.Trigger
}

// Complete reports whether the template may take part in evaluation.
func (t Template) Complete() bool {
	return t.ID != "" && t.ArticleID != ""
}

// Automatic reports whether the template carries a usable add trigger.
func (t Template) Automatic() bool {
	return t.AddCondition != nil
}

type wireTemplate struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	ArticleID      string            `json:"articleId"`
	ValidCondition []json.RawMessage `json:"validCondition"`
	AddCondition   json.RawMessage   `json:"addCondition"`
}

// MarshalJSON always writes validCondition as an array.
func (t Template) MarshalJSON() ([]byte, error) {
	w := wireTemplate{
		ID:             t.ID,
		Name:           t.Name,
		ArticleID:      t.ArticleID,
		ValidCondition: make([]json.RawMessage, 0, len(t.ValidCondition)),
	}
	for _, c := range t.ValidCondition {
		raw, err := condition.Marshal(c)
		if err != nil {
			return nil, err
		}
		w.ValidCondition = append(w.ValidCondition, raw)
	}
	var err error
	if t.AddCondition == nil {
		w.AddCondition = json.RawMessage("null")
	} else if w.AddCondition, err = condition.Marshal(t.AddCondition); err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts both the array form of validCondition and the legacy
// single-object form, normalizing to a list. Unrecognized conditions decode to
// condition.Unknown and never match.
func (t *Template) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID             string          `json:"id"`
		Name           string          `json:"name"`
		ArticleID      string          `json:"articleId"`
		ValidCondition json.RawMessage `json:"validCondition"`
		AddCondition   json.RawMessage `json:"addCondition"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Template{
		ID:             raw.ID,
		Name:           raw.Name,
		ArticleID:      raw.ArticleID,
		ValidCondition: decodeValidList(raw.ValidCondition),
		AddCondition:   condition.DecodeTrigger(raw.AddCondition),
	}
	return nil
}

func decodeValidList(raw json.RawMessage) []condition.Validity {
	trimmed := bytes.TrimSpace(raw)
	out := []condition.Validity{}
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return out
	}
	if trimmed[0] != '[' {
		// legacy: a single condition object
		if c := condition.DecodeValidity(trimmed); c != nil {
			out = append(out, c)
		}
		return out
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return out
	}
	for _, item := range items {
		if c := condition.DecodeValidity(item); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Find returns the template with the given id.
func Find(list []Template, id string) (Template, bool) {
	for _, t := range list {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// IDs lists template ids in order.
func IDs(list []Template) []string {
	out := make([]string, 0, len(list))
	for _, t := range list {
		out = append(out, t.ID)
	}
	return out
}
