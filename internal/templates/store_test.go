package templates

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ticket-template/internal/condition"
)

type mapBag struct {
	props   map[string]string
	failSet error
}

func newMapBag() *mapBag {
	return &mapBag{props: map[string]string{}}
}

func (b *mapBag) Property(key string) (string, error) {
	return b.props[key], nil
}

func (b *mapBag) SetProperty(key, value string) error {
	if b.failSet != nil {
		return b.failSet
	}
	b.props[key] = value
	return nil
}

func TestStoreLoad_EmptyProperty(t *testing.T) {
	store := NewStore(newMapBag())
	list, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", list)
	}
}

func TestStoreLoad_NormalizesLegacyShapes(t *testing.T) {
	bag := newMapBag()
	bag.props[PropertyKey] = `[
		{"id":"legacy","name":"Legacy","articleId":"KB-1","validCondition":{"when":"field_is","fieldName":"State","fieldValue":"Open"},"addCondition":null},
		{"id":"nulls","name":"Nulls","articleId":"KB-2","validCondition":null},
		{"id":"array","name":"Array","articleId":"KB-3","validCondition":[{"when":"tag_is","tagName":"a"},{"when":"tag_is","tagName":"b"}],"addCondition":{"when":"tag_added","tagName":"a"}},
		{"id":"","name":"No id","articleId":"KB-4","validCondition":[]},
		{"id":"draft","name":"No article","validCondition":[]},
		{"id":42}
	]`
	list, err := NewStore(bag).Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got, want := IDs(list), []string{"legacy", "nulls", "array"}; !cmp.Equal(got, want) {
		t.Fatalf("ids mismatch (-got +want):\n%s", cmp.Diff(got, want))
	}
	wantLegacy := []condition.Validity{condition.FieldIs{FieldName: "State", FieldValue: "Open"}}
	if diff := cmp.Diff(list[0].ValidCondition, wantLegacy); diff != "" {
		t.Fatalf("legacy condition mismatch:\n%s", diff)
	}
	if list[0].AddCondition != nil {
		t.Fatalf("expected manual template, got %#v", list[0].AddCondition)
	}
	if len(list[1].ValidCondition) != 0 {
		t.Fatalf("null validCondition should be empty list, got %#v", list[1].ValidCondition)
	}
	if len(list[2].ValidCondition) != 2 {
		t.Fatalf("expected two conditions, got %#v", list[2].ValidCondition)
	}
	if list[2].AddCondition != (condition.TagAdded{TagName: "a"}) {
		t.Fatalf("unexpected add condition: %#v", list[2].AddCondition)
	}

	all, err := NewStore(bag).LoadAll()
	if err != nil {
		t.Fatalf("load all failed: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 decodable templates including drafts, got %d", len(all))
	}
}

func TestStoreLoad_Corrupt(t *testing.T) {
	bag := newMapBag()
	bag.props[PropertyKey] = `{"id":"x"}`
	if _, err := NewStore(bag).Load(); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestStoreUpsertAndRemove(t *testing.T) {
	bag := newMapBag()
	store := NewStore(bag)

	first := Template{ID: "t1", Name: "One", ArticleID: "KB-1"}
	second := Template{ID: "t2", Name: "Two", ArticleID: "KB-2", AddCondition: condition.TagAdded{TagName: "x"}}
	if _, err := store.Upsert(first); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if _, err := store.Upsert(second); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	renamed := first
	renamed.Name = "One v2"
	list, err := store.Upsert(renamed)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if got := IDs(list); !cmp.Equal(got, []string{"t1", "t2"}) {
		t.Fatalf("upsert should replace in place, got %v", got)
	}
	if list[0].Name != "One v2" {
		t.Fatalf("expected replaced name, got %q", list[0].Name)
	}
	if !strings.Contains(bag.props[PropertyKey], `"validCondition":[]`) {
		t.Fatalf("validCondition must persist as array: %s", bag.props[PropertyKey])
	}

	list, err = store.Remove("t1")
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if got := IDs(list); !cmp.Equal(got, []string{"t2"}) {
		t.Fatalf("unexpected ids after remove: %v", got)
	}
	list, err = store.Remove("missing")
	if err != nil || len(list) != 1 {
		t.Fatalf("removing unknown id should keep list: %v %v", list, err)
	}

	reloaded, err := store.Load()
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded[0].AddCondition != (condition.TagAdded{TagName: "x"}) {
		t.Fatalf("add condition lost on save: %#v", reloaded[0].AddCondition)
	}
}

func TestStoreSave_PropagatesBagError(t *testing.T) {
	bag := newMapBag()
	bag.failSet = errors.New("disk full")
	if err := NewStore(bag).Save(nil); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected bag error, got %v", err)
	}
}

func TestTemplateJSON_PreservesUnknownConditions(t *testing.T) {
	in := `{"id":"t","name":"n","articleId":"a","validCondition":[{"when":"sprint_is","sprint":"7"}],"addCondition":{"when":"comment_added"}}`
	var tpl Template
	if err := json.Unmarshal([]byte(in), &tpl); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	out, err := json.Marshal(tpl)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var got, want map[string]any
	_ = json.Unmarshal(out, &got)
	_ = json.Unmarshal([]byte(in), &want)
	if diff := cmp.Diff(got, want); diff != "" {
		t.Fatalf("round trip changed template (-got +want):\n%s", diff)
	}
}
