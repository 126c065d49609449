package condition

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeValidity_KnownVariants(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Validity
	}{
		{"entity", `{"when":"entity_is","entityType":"issue"}`, EntityIs{EntityType: KindIssue}},
		{"field", `{"when":"field_is","fieldName":"State","fieldValue":"Open"}`, FieldIs{FieldName: "State", FieldValue: "Open"}},
		{"field empty value", `{"when":"field_is","fieldName":"State","fieldValue":""}`, FieldIs{FieldName: "State"}},
		{"tag", `{"when":"tag_is","tagName":"urgent"}`, TagIs{TagName: "urgent"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DecodeValidity(json.RawMessage(tc.raw)))
		})
	}
}

func TestDecodeValidity_UnknownAndMalformedAreInert(t *testing.T) {
	for _, raw := range []string{
		`{"when":"moon_is","phase":"full"}`,
		`{"fieldName":"State","fieldValue":"Open"}`,
		`{"when":"field_is","fieldName":"State"}`,
		`{"when":"entity_is","entityType":"project"}`,
		`"tag_is"`,
	} {
		got := DecodeValidity(json.RawMessage(raw))
		u, ok := got.(Unknown)
		require.True(t, ok, "raw %s decoded to %#v", raw, got)
		assert.JSONEq(t, raw, string(u.Raw))
	}
	assert.Nil(t, DecodeValidity(json.RawMessage("null")))
	assert.Nil(t, DecodeValidity(nil))
}

func TestDecodeTrigger(t *testing.T) {
	assert.Equal(t, TagAdded{TagName: "urgent"}, DecodeTrigger(json.RawMessage(`{"when":"tag_added","tagName":"urgent"}`)))
	assert.Equal(t, TagRemoved{TagName: "stale"}, DecodeTrigger(json.RawMessage(`{"when":"tag_removed","tagName":"stale"}`)))
	assert.Equal(t, FieldBecomes{FieldName: "State", FieldValue: "Fixed"},
		DecodeTrigger(json.RawMessage(`{"when":"field_becomes","fieldName":"State","fieldValue":"Fixed"}`)))

	// a validity shape is not a trigger
	_, ok := DecodeTrigger(json.RawMessage(`{"when":"tag_is","tagName":"urgent"}`)).(Unknown)
	assert.True(t, ok)
	assert.Nil(t, DecodeTrigger(json.RawMessage(" null ")))
}

func TestParseValidity_Problems(t *testing.T) {
	name := "State"
	cases := []struct {
		rec  Record
		want string
	}{
		{Record{}, `missing "when" property.`},
		{Record{When: "field_is", FieldName: &name}, `missing "fieldName" or "fieldValue" property.`},
		{Record{When: "tag_is"}, `missing "tagName" property.`},
		{Record{When: "entity_is"}, `missing "entityType" property.`},
		{Record{When: "field_becomes"}, "unknown when value: field_becomes"},
	}
	for _, tc := range cases {
		_, err := ParseValidity(tc.rec)
		require.Error(t, err)
		var p *Problem
		require.ErrorAs(t, err, &p)
		assert.Equal(t, tc.want, err.Error())
	}
}

func TestParseTrigger_Problems(t *testing.T) {
	_, err := ParseTrigger(Record{When: "tag_is"})
	assert.EqualError(t, err, "unknown when value: tag_is")
	_, err = ParseTrigger(Record{When: "tag_removed"})
	assert.EqualError(t, err, `missing "tagName" property.`)
}

func TestMarshal_RoundTrip(t *testing.T) {
	for _, c := range []Condition{
		EntityIs{EntityType: KindArticle},
		FieldIs{FieldName: "Priority", FieldValue: "Critical"},
		TagIs{TagName: "bug"},
		FieldBecomes{FieldName: "State", FieldValue: "Open"},
		TagAdded{TagName: "bug"},
		TagRemoved{TagName: "bug"},
	} {
		raw, err := Marshal(c)
		require.NoError(t, err)
		if _, ok := c.(Validity); ok {
			assert.Equal(t, c, DecodeValidity(raw))
		} else {
			assert.Equal(t, c, DecodeTrigger(raw))
		}
	}
}

func TestMarshal_UnknownKeepsOriginalBytes(t *testing.T) {
	raw := json.RawMessage(`{"when":"sprint_is","sprint":"42"}`)
	out, err := Marshal(DecodeValidity(raw))
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(out))

	out, err = Marshal(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, `State is "Open" or has tag "urgent"`,
		DescribeAny([]Validity{FieldIs{FieldName: "State", FieldValue: "Open"}, TagIs{TagName: "urgent"}}))
	assert.Equal(t, "never", DescribeAny(nil))
	assert.Equal(t, `tag "urgent" added`, Describe(TagAdded{TagName: "urgent"}))
	assert.Equal(t, "unrecognized condition (sprint_is)", Describe(Unknown{Tag: "sprint_is"}))
}
