// 本文件用于工单与文章上的手动模板操作 读取 添加 移除

package service

import (
	"errors"
	"strings"

	"ticket-template/internal/condition"
	"ticket-template/internal/engine"
	"ticket-template/internal/store"
	"ticket-template/internal/templates"
)

// EntityTemplates is the template view of one issue or article.
type EntityTemplates struct {
	EntityID         string               `json:"entityId"`
	Templates        []templates.Template `json:"templates"`
	ValidTemplateIDs []string             `json:"validTemplateIds"`
	UsedTemplateIDs  []string             `json:"usedTemplateIds"`
}

// ManualResult is returned by the manual add and remove operations.
type ManualResult struct {
	EntityTemplates
	Content      string `json:"content"`
	CharsRemoved int    `json:"charsRemoved"`
}

// EntityTemplates lists the project templates with the ids valid for the
// entity right now and the ids already applied to it.
func (s *Service) EntityTemplates(kind condition.EntityKind, entityID string) (EntityTemplates, error) {
	e, err := s.store.GetEntityOfKind(entityID, kind)
	if err != nil {
		return EntityTemplates{}, err
	}
	list, err := s.loadTemplates(e.ProjectID)
	if err != nil {
		return EntityTemplates{}, err
	}
	return s.view(e, list)
}

func (s *Service) view(e *store.Entity, list []templates.Template) (EntityTemplates, error) {
	used, err := usedTemplates(e)
	if err != nil {
		return EntityTemplates{}, err
	}
	return EntityTemplates{
		EntityID:         e.ID,
		Templates:        list,
		ValidTemplateIDs: templates.IDs(engine.SelectValidNow(list, staticSnapshot(e))),
		UsedTemplateIDs:  used.IDs(),
	}, nil
}

// AddEntityTemplate appends a template block to the entity content. A template
// that is already applied is retracted first so its block is refreshed rather
// than duplicated.
func (s *Service) AddEntityTemplate(kind condition.EntityKind, entityID, templateID string) (ManualResult, error) {
	result, err := s.addEntityTemplate(kind, entityID, templateID)
	s.metrics.ObserveManual("apply", manualOutcome(err))
	return result, err
}

func (s *Service) addEntityTemplate(kind condition.EntityKind, entityID, templateID string) (ManualResult, error) {
	templateID = strings.TrimSpace(templateID)
	if templateID == "" {
		return ManualResult{}, invalid("Id missing in request.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.store.GetEntityOfKind(entityID, kind)
	if err != nil {
		return ManualResult{}, err
	}
	if isTemplateArticle(e) {
		return ManualResult{}, invalid("Templates cannot be applied to template article %s.", e.ID)
	}
	list, err := s.loadTemplates(e.ProjectID)
	if err != nil {
		return ManualResult{}, err
	}
	t, ok := templates.Find(list, templateID)
	if !ok {
		return ManualResult{}, invalid("Template %s not found.", templateID)
	}
	if !engine.ValidNow(t, staticSnapshot(e)) {
		return ManualResult{}, invalid("Template %s is not valid for this %s.", templateID, kindLabel(kind))
	}

	merger := engine.NewMerger(s.store)
	if _, err := merger.Block(t); err != nil {
		switch {
		case errors.Is(err, engine.ErrArticleMissing):
			return ManualResult{}, invalid("No article found with articleId %s.", t.ArticleID)
		case errors.Is(err, engine.ErrArticleEmpty):
			return ManualResult{}, invalid("Article %s has no content.", t.ArticleID)
		default:
			return ManualResult{}, err
		}
	}

	used, err := usedTemplates(e)
	if err != nil {
		return ManualResult{}, err
	}
	doc := &engine.Document{Content: strings.TrimSpace(e.Content), Used: used}
	removed := 0
	if doc.Used.Contains(t.ID) {
		if removed, err = merger.Retract(doc, t); err != nil {
			return ManualResult{}, err
		}
	}
	if err := merger.Apply(doc, t); err != nil {
		return ManualResult{}, err
	}
	return s.persistManual(e, list, doc, removed)
}

// RemoveEntityTemplate retracts a template block. An id that is only left in
// the ledger, because the template was deleted from the project, is dropped
// from the ledger without touching the content.
func (s *Service) RemoveEntityTemplate(kind condition.EntityKind, entityID, templateID string) (ManualResult, error) {
	result, err := s.removeEntityTemplate(kind, entityID, templateID)
	s.metrics.ObserveManual("remove", manualOutcome(err))
	return result, err
}

func (s *Service) removeEntityTemplate(kind condition.EntityKind, entityID, templateID string) (ManualResult, error) {
	templateID = strings.TrimSpace(templateID)
	if templateID == "" {
		return ManualResult{}, invalid("Id missing in request.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.store.GetEntityOfKind(entityID, kind)
	if err != nil {
		return ManualResult{}, err
	}
	list, err := s.loadTemplates(e.ProjectID)
	if err != nil {
		return ManualResult{}, err
	}
	used, err := usedTemplates(e)
	if err != nil {
		return ManualResult{}, err
	}
	doc := &engine.Document{Content: strings.TrimSpace(e.Content), Used: used}

	t, ok := templates.Find(list, templateID)
	if !ok {
		if !doc.Used.Remove(templateID) {
			return ManualResult{}, invalid("Template %s not found.", templateID)
		}
		return s.persistManual(e, list, doc, 0)
	}
	removed, err := engine.NewMerger(s.store).Retract(doc, t)
	if err != nil {
		return ManualResult{}, err
	}
	return s.persistManual(e, list, doc, removed)
}

func (s *Service) persistManual(e *store.Entity, list []templates.Template, doc *engine.Document, removed int) (ManualResult, error) {
	e.Content = doc.Content
	setUsedTemplates(e, doc.Used)
	if err := s.store.SaveEntity(e); err != nil {
		return ManualResult{}, err
	}
	view, err := s.view(e, list)
	if err != nil {
		return ManualResult{}, err
	}
	return ManualResult{EntityTemplates: view, Content: e.Content, CharsRemoved: removed}, nil
}

func manualOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	if _, ok := IsValidation(err); ok {
		return "invalid"
	}
	if errors.Is(err, store.ErrNotFound) {
		return "not_found"
	}
	return "error"
}
