// 本文件用于模板包导入测试
package bundle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"ticket-template/internal/condition"
	"ticket-template/internal/metrics"
	"ticket-template/internal/service"
	"ticket-template/internal/store"
)

const sampleBundle = `
projects:
  - id: DEMO
    name: Demo
    fields:
      - name: State
        type: state[1]
        values: [Open, Fixed]
    articles:
      - id: KB-1
        summary: Urgent triage checklist
        content: Please triage within 1h.
    templates:
      - name: Urgent triage
        articleId: KB-1
        validCondition:
          - when: tag_is
            tagName: urgent
        addCondition:
          when: tag_added
          tagName: urgent
      - id: open-checklist
        name: Open checklist
        articleId: KB-1
        validCondition:
          - when: field_is
            fieldName: State
            fieldValue: Open
        addCondition: null
`

func newTestImporter(t *testing.T) (*Importer, *service.Service, *metrics.Collector) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	c := metrics.NewCollector()
	svc := service.New(st).WithMetrics(c)
	return NewImporter(svc).WithMetrics(c), svc, c
}

func writeBundle(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "bundle.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write bundle failed: %v", err)
	}
	return path
}

func TestImportFileCreatesEverything(t *testing.T) {
	im, svc, c := newTestImporter(t)
	path := writeBundle(t, t.TempDir(), sampleBundle)

	report, err := im.ImportFile(path)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	wantID := TemplateID("DEMO", "Urgent triage")
	if report.Projects != 1 || report.Fields != 1 || report.Articles != 1 || report.Templates != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.TemplateIDs[0] != wantID || report.TemplateIDs[1] != "open-checklist" {
		t.Fatalf("unexpected template ids: %v", report.TemplateIDs)
	}

	list, err := svc.Templates("DEMO")
	if err != nil {
		t.Fatalf("load templates failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != wantID || list[1].AddCondition != nil {
		t.Fatalf("unexpected templates: %+v", list)
	}
	info, err := svc.ArticleInfo("KB-1")
	if err != nil || !info.IsTemplate {
		t.Fatalf("article should be a template source: %+v %v", info, err)
	}
	fields, err := svc.Store().ProjectFields("DEMO")
	if err != nil || len(fields) != 1 || fields[0].TypeName != store.FieldTypeState {
		t.Fatalf("unexpected fields: %+v %v", fields, err)
	}
	if !strings.Contains(c.RenderPrometheus(), `tt_bundle_imports_total{outcome="ok"} 1`) {
		t.Fatalf("bundle import not counted:\n%s", c.RenderPrometheus())
	}
}

func TestImportIsIdempotent(t *testing.T) {
	im, svc, _ := newTestImporter(t)
	path := writeBundle(t, t.TempDir(), sampleBundle)
	if _, err := im.ImportFile(path); err != nil {
		t.Fatalf("first import failed: %v", err)
	}
	updated := strings.Replace(sampleBundle, "Please triage within 1h.", "Please triage within 30m.", 1)
	writeBundle(t, filepath.Dir(path), updated)
	if _, err := im.ImportFile(path); err != nil {
		t.Fatalf("second import failed: %v", err)
	}

	list, err := svc.Templates("DEMO")
	if err != nil || len(list) != 2 {
		t.Fatalf("re-import must not duplicate templates: %+v %v", list, err)
	}
	article, err := svc.Store().GetEntityOfKind("KB-1", condition.KindArticle)
	if err != nil || article.Content != "Please triage within 30m." {
		t.Fatalf("article not updated: %+v %v", article, err)
	}
}

func TestImportRejectsInvalidTemplate(t *testing.T) {
	im, svc, c := newTestImporter(t)
	path := writeBundle(t, t.TempDir(), `
projects:
  - id: DEMO
    articles:
      - id: KB-1
        summary: Checklist
        content: body
    templates:
      - id: broken
        name: Broken
        articleId: KB-1
        validCondition:
          when: tag_is
          tagName: urgent
`)
	_, err := im.ImportFile(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if msg, ok := service.IsValidation(err); !ok || msg != "Template validCondition must be an array." {
		t.Fatalf("unexpected error: %v", err)
	}
	list, _ := svc.Templates("DEMO")
	if len(list) != 0 {
		t.Fatalf("invalid template stored: %+v", list)
	}
	if !strings.Contains(c.RenderPrometheus(), `tt_bundle_imports_total{outcome="error"} 1`) {
		t.Fatalf("failed import not counted")
	}
}

func TestImportUnquotedConditionValues(t *testing.T) {
	im, svc, _ := newTestImporter(t)
	path := writeBundle(t, t.TempDir(), `
projects:
  - id: DEMO
    articles:
      - id: KB-1
        summary: Checklist
        content: body
    templates:
      - id: prio
        name: Priority one
        articleId: KB-1
        validCondition:
          - when: field_is
            fieldName: Priority
            fieldValue: 1
          - when: tag_is
            tagName: 2024
        addCondition:
          when: field_becomes
          fieldName: Blocked
          fieldValue: true
`)
	if _, err := im.ImportFile(path); err != nil {
		t.Fatalf("import failed: %v", err)
	}
	list, err := svc.Templates("DEMO")
	if err != nil || len(list) != 1 {
		t.Fatalf("unexpected templates: %+v %v", list, err)
	}
	tpl := list[0]
	if got, ok := tpl.ValidCondition[0].(condition.FieldIs); !ok || got.FieldValue != "1" {
		t.Fatalf("unexpected field condition: %#v", tpl.ValidCondition[0])
	}
	if got, ok := tpl.ValidCondition[1].(condition.TagIs); !ok || got.TagName != "2024" {
		t.Fatalf("unexpected tag condition: %#v", tpl.ValidCondition[1])
	}
	if got, ok := tpl.AddCondition.(condition.FieldBecomes); !ok || got.FieldValue != "true" {
		t.Fatalf("unexpected add condition: %#v", tpl.AddCondition)
	}
}

func TestDecodeRequiresProjectID(t *testing.T) {
	if _, err := Decode([]byte("projects:\n  - name: nameless\n")); err == nil {
		t.Fatalf("expected error for project without id")
	}
}

func TestTemplateIDStable(t *testing.T) {
	if TemplateID("DEMO", "A") != TemplateID("DEMO", " A ") {
		t.Fatalf("template id should ignore surrounding spaces")
	}
	if TemplateID("DEMO", "A") == TemplateID("OTHER", "A") {
		t.Fatalf("template id should depend on project")
	}
}

func TestWatcherFiltersEvents(t *testing.T) {
	im, _, _ := newTestImporter(t)
	dir := t.TempDir()
	path := writeBundle(t, dir, sampleBundle)
	w, err := NewWatcher(im, path, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("new watcher failed: %v", err)
	}
	defer w.Close()

	cases := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{name: "write", event: fsnotify.Event{Name: path, Op: fsnotify.Write}, want: true},
		{name: "create", event: fsnotify.Event{Name: path, Op: fsnotify.Create}, want: true},
		{name: "chmod", event: fsnotify.Event{Name: path, Op: fsnotify.Chmod}, want: false},
		{name: "other-file", event: fsnotify.Event{Name: filepath.Join(dir, "other.yaml"), Op: fsnotify.Write}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := w.isBundleEvent(tc.event); got != tc.want {
				t.Fatalf("isBundleEvent(%v) = %v, want %v", tc.event, got, tc.want)
			}
		})
	}
}

func TestWatcherReimportsOnWrite(t *testing.T) {
	im, svc, _ := newTestImporter(t)
	dir := t.TempDir()
	path := writeBundle(t, dir, sampleBundle)

	w, err := NewWatcher(im, path, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("new watcher failed: %v", err)
	}
	defer w.Close()
	applied := make(chan error, 8)
	w.OnApply(func(_ Report, err error) { applied <- err })
	if err := w.Start(); err != nil {
		t.Fatalf("start watcher failed: %v", err)
	}

	writeBundle(t, dir, sampleBundle)
	select {
	case err := <-applied:
		if err != nil {
			t.Fatalf("re-import failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("watcher did not re-import the bundle")
	}
	list, err := svc.Templates("DEMO")
	if err != nil || len(list) != 2 {
		t.Fatalf("unexpected templates after watch import: %+v %v", list, err)
	}
}
