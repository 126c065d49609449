// 本文件用于变更驱动的自动模板规则
// 先在内存中计算变更快照 再做前置判断 命中后合并内容 最后实体只落库一次

package service

import (
	"fmt"
	"strings"
	"time"

	"ticket-template/internal/condition"
	"ticket-template/internal/engine"
	"ticket-template/internal/logger"
	"ticket-template/internal/store"
	"ticket-template/internal/templates"
)

// CreateInput describes a new issue or article.
type CreateInput struct {
	ID         string            `json:"id"`
	Summary    string            `json:"summary"`
	Content    string            `json:"content"`
	Fields     map[string]string `json:"fields"`
	Tags       []string          `json:"tags"`
	IsTemplate bool              `json:"isTemplate"`
}

// ChangeInput describes an update. A nil field value clears the field.
type ChangeInput struct {
	Summary    *string            `json:"summary"`
	Content    *string            `json:"content"`
	Fields     map[string]*string `json:"fields"`
	AddTags    []string           `json:"addTags"`
	RemoveTags []string           `json:"removeTags"`
}

// RuleResult reports what the automatic rule did for one change.
type RuleResult struct {
	Ran          bool     `json:"ran"`
	Applied      []string `json:"applied"`
	Retracted    []string `json:"retracted"`
	Skipped      []string `json:"skipped"`
	CharsRemoved int      `json:"charsRemoved"`
}

// CreateEntity stores a new entity after running the rule on its initial state.
func (s *Service) CreateEntity(projectID string, kind condition.EntityKind, in CreateInput) (*store.Entity, RuleResult, error) {
	if !kind.Valid() {
		return nil, RuleResult{}, fmt.Errorf("%w: unknown entity kind %q", store.ErrInvalidInput, kind)
	}
	if _, err := s.store.GetProject(projectID); err != nil {
		return nil, RuleResult{}, err
	}
	if kind == condition.KindIssue && in.IsTemplate {
		return nil, RuleResult{}, invalid("Only articles can be marked as templates.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e := &store.Entity{
		ID:        strings.TrimSpace(in.ID),
		ProjectID: projectID,
		Kind:      kind,
		Summary:   in.Summary,
		Content:   in.Content,
		Fields:    cleanFields(in.Fields),
		Tags:      cleanTags(in.Tags),
	}
	if in.IsTemplate {
		e.SetProperty(IsTemplateKey, "true")
	}
	snap := engine.NewChange(kind, true, nil, e.Fields, nil, e.Tags)
	result, err := s.runRule(e, snap)
	if err != nil {
		return nil, RuleResult{}, err
	}
	created, err := s.store.CreateEntity(*e)
	if err != nil {
		return nil, RuleResult{}, err
	}
	return created, result, nil
}

// ChangeEntity applies an update and runs the rule on the transition.
func (s *Service) ChangeEntity(kind condition.EntityKind, entityID string, in ChangeInput) (*store.Entity, RuleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before, err := s.store.GetEntityOfKind(entityID, kind)
	if err != nil {
		return nil, RuleResult{}, err
	}
	after := before.Clone()
	applyChange(after, in)

	snap := engine.NewChange(kind, false, before.Fields, after.Fields, before.Tags, after.Tags)
	result, err := s.runRule(after, snap)
	if err != nil {
		return nil, RuleResult{}, err
	}
	if err := s.store.SaveEntity(after); err != nil {
		return nil, RuleResult{}, err
	}
	return after, result, nil
}

// runRule mutates e in memory; the caller persists it.
func (s *Service) runRule(e *store.Entity, snap engine.Snapshot) (RuleResult, error) {
	started := time.Now()
	result := RuleResult{Applied: []string{}, Retracted: []string{}, Skipped: []string{}}

	// template source articles never receive templates
	if isTemplateArticle(e) {
		s.metrics.ObserveRule(string(e.Kind), false, 0)
		return result, nil
	}
	list, err := s.loadTemplates(e.ProjectID)
	if err != nil {
		return result, err
	}
	if !engine.ShouldRun(list, snap) {
		s.metrics.ObserveRule(string(e.Kind), false, 0)
		return result, nil
	}

	used, err := usedTemplates(e)
	if err != nil {
		return result, err
	}
	doc := &engine.Document{Content: strings.TrimSpace(e.Content), Used: used}
	plan := engine.Select(list, snap, doc.Used)
	out, err := engine.NewMerger(s.store).Run(doc, plan)
	if err != nil {
		return result, fmt.Errorf("merge templates into %s %s: %w", e.Kind, e.ID, err)
	}
	logOutcome(e, list, out)

	e.Content = doc.Content
	setUsedTemplates(e, doc.Used)

	result.Ran = true
	result.Applied = append(result.Applied, out.Applied...)
	removed := make([]int, 0, len(out.Retracted))
	for _, r := range out.Retracted {
		result.Retracted = append(result.Retracted, r.ID)
		removed = append(removed, r.Chars)
	}
	for _, sk := range out.Skipped {
		result.Skipped = append(result.Skipped, sk.ID)
	}
	result.CharsRemoved = out.CharsRemoved()
	s.metrics.ObserveMerge(len(out.Applied), len(out.Skipped), removed)
	s.metrics.ObserveRule(string(e.Kind), true, time.Since(started))
	return result, nil
}

func logOutcome(e *store.Entity, list []templates.Template, out engine.Outcome) {
	name := func(id string) string {
		if t, ok := templates.Find(list, id); ok && t.Name != "" {
			return t.Name
		}
		return id
	}
	for _, r := range out.Retracted {
		logger.Info("Removed template %q from %s %s: %d characters removed", name(r.ID), e.Kind, e.ID, r.Chars)
	}
	for _, id := range out.Applied {
		t, _ := templates.Find(list, id)
		logger.Info("Applied template %q to %s %s from article %s", name(id), e.Kind, e.ID, t.ArticleID)
	}
	for _, sk := range out.Skipped {
		logger.Warn("Skipped template %q on %s %s: %v", name(sk.ID), e.Kind, e.ID, sk.Err)
	}
}

func applyChange(e *store.Entity, in ChangeInput) {
	if in.Summary != nil {
		e.Summary = *in.Summary
	}
	if in.Content != nil {
		e.Content = *in.Content
	}
	for name, value := range in.Fields {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if value == nil || *value == "" {
			delete(e.Fields, name)
			continue
		}
		e.Fields[name] = *value
	}
	removed := make(map[string]struct{}, len(in.RemoveTags))
	for _, tag := range in.RemoveTags {
		removed[strings.TrimSpace(tag)] = struct{}{}
	}
	tags := make([]string, 0, len(e.Tags)+len(in.AddTags))
	for _, tag := range e.Tags {
		if _, drop := removed[tag]; !drop {
			tags = append(tags, tag)
		}
	}
	for _, tag := range in.AddTags {
		tag = strings.TrimSpace(tag)
		if tag == "" || contains(tags, tag) {
			continue
		}
		tags = append(tags, tag)
	}
	e.Tags = tags
}

func cleanFields(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for name, value := range in {
		name = strings.TrimSpace(name)
		if name == "" || value == "" {
			continue
		}
		out[name] = value
	}
	return out
}

func cleanTags(in []string) []string {
	out := make([]string, 0, len(in))
	for _, tag := range in {
		tag = strings.TrimSpace(tag)
		if tag == "" || contains(out, tag) {
			continue
		}
		out = append(out, tag)
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

var (
	_ engine.ArticleSource  = (*store.Store)(nil)
	_ templates.PropertyBag = (*store.ProjectBag)(nil)
)
