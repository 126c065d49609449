package templates

import (
	"encoding/json"
	"errors"
	"testing"

	"ticket-template/internal/condition"
)

func TestParse_Valid(t *testing.T) {
	raw := `{"id":"t1","name":"Triage","articleId":"KB-1",
		"validCondition":[{"when":"tag_is","tagName":"urgent"},{"when":"entity_is","entityType":"issue"}],
		"addCondition":{"when":"tag_added","tagName":"urgent"}}`
	tpl, err := Parse(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if tpl.ID != "t1" || tpl.ArticleID != "KB-1" || len(tpl.ValidCondition) != 2 {
		t.Fatalf("unexpected template: %+v", tpl)
	}
	if tpl.AddCondition != (condition.TagAdded{TagName: "urgent"}) {
		t.Fatalf("unexpected add condition: %#v", tpl.AddCondition)
	}
}

func TestParse_NullAddConditionIsManual(t *testing.T) {
	tpl, err := Parse(json.RawMessage(`{"id":"t1","name":"n","articleId":"KB-1","validCondition":[],"addCondition":null}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if tpl.AddCondition != nil {
		t.Fatalf("expected nil add condition, got %#v", tpl.AddCondition)
	}
}

func TestParse_Rejections(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"not object", `[]`, "Template must be an object."},
		{"missing id", `{"name":"n"}`, "Template must have a valid id."},
		{"empty id", `{"id":"","name":"n"}`, "Template must have a valid id."},
		{"missing name", `{"id":"t"}`, "Template must have a valid name."},
		{"missing valid", `{"id":"t","name":"n"}`, "Template must have a valid validCondition."},
		{"valid not array", `{"id":"t","name":"n","validCondition":{"when":"tag_is","tagName":"x"},"addCondition":null,"articleId":"a"}`,
			"Template validCondition must be an array."},
		{"valid null", `{"id":"t","name":"n","validCondition":null,"addCondition":null,"articleId":"a"}`,
			"Template validCondition must be an array."},
		{"valid missing when", `{"id":"t","name":"n","validCondition":[{"tagName":"x"}]}`,
			`Inconsistent validCondition, missing "when" property.`},
		{"valid unknown when", `{"id":"t","name":"n","validCondition":[{"when":"tag_added","tagName":"x"}]}`,
			"Inconsistent validCondition, unknown when value: tag_added"},
		{"valid null element", `{"id":"t","name":"n","validCondition":[null]}`,
			"Inconsistent validCondition, malformed condition."},
		{"missing add", `{"id":"t","name":"n","validCondition":[]}`, "Template must have a valid addCondition."},
		{"add missing field", `{"id":"t","name":"n","validCondition":[],"addCondition":{"when":"field_becomes","fieldName":"State"}}`,
			`Inconsistent addCondition, missing "fieldName" or "fieldValue" property.`},
		{"add unknown", `{"id":"t","name":"n","validCondition":[],"addCondition":{"when":"tag_is","tagName":"x"}}`,
			"Inconsistent addCondition, unknown when value: tag_is"},
		{"missing article", `{"id":"t","name":"n","validCondition":[],"addCondition":null}`, "Template must have a valid articleId."},
		{"blank article", `{"id":"t","name":"n","validCondition":[],"addCondition":null,"articleId":"  "}`, "Template must have a valid articleId."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(json.RawMessage(tc.raw))
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Message != tc.want {
				t.Fatalf("message = %q, want %q", verr.Message, tc.want)
			}
		})
	}
}
