// 本文件用于项目级模板管理 模板增删 项目字段与模板文章查询

package service

import (
	"encoding/json"
	"strings"

	"github.com/sahilm/fuzzy"

	"ticket-template/internal/condition"
	"ticket-template/internal/logger"
	"ticket-template/internal/store"
	"ticket-template/internal/templates"
)

// FieldValue is one allowed value of a project field.
type FieldValue struct {
	Name         string `json:"name"`
	Presentation string `json:"presentation"`
}

type FieldInfo struct {
	Name   string       `json:"name"`
	Values []FieldValue `json:"values"`
}

// ProjectInfo lists the single-value fields a condition can refer to.
type ProjectInfo struct {
	StateFields []FieldInfo `json:"stateFields"`
	EnumFields  []FieldInfo `json:"enumFields"`
}

type TemplateArticle struct {
	ArticleID string `json:"articleId"`
	Summary   string `json:"summary"`
	URL       string `json:"url"`
}

type ArticleInfo struct {
	ArticleID  string `json:"articleId"`
	IsTemplate bool   `json:"isTemplate"`
}

// ArticleInfoInput mirrors the setArticleInfo body; nil means the key was absent.
type ArticleInfoInput struct {
	ArticleID  *string `json:"articleId"`
	IsTemplate *bool   `json:"isTemplate"`
}

// Templates returns the project's complete templates.
func (s *Service) Templates(projectID string) ([]templates.Template, error) {
	if _, err := s.store.GetProject(projectID); err != nil {
		return nil, err
	}
	return s.loadTemplates(projectID)
}

// AddTemplate validates a raw template definition and upserts it by id.
func (s *Service) AddTemplate(projectID string, raw json.RawMessage) ([]templates.Template, error) {
	if _, err := s.store.GetProject(projectID); err != nil {
		return nil, err
	}
	if len(raw) == 0 || strings.TrimSpace(string(raw)) == "null" {
		return nil, invalid("Template missing in request.")
	}
	t, err := templates.Parse(raw)
	if err != nil {
		return nil, err
	}
	if _, found, err := s.store.ArticleContent(t.ArticleID); err != nil {
		return nil, err
	} else if !found {
		return nil, invalid("No article found with articleId %s.", t.ArticleID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.templateStore(projectID).Upsert(t)
	if err != nil {
		return nil, err
	}
	s.metrics.IncTemplateUpsert()
	logger.Info("Template %q (%s) saved in project %s", t.Name, t.ID, projectID)
	return completeOnly(list), nil
}

// RemoveTemplate deletes a template definition. Ledgers that still reference
// the id are left alone; the id is dropped from them on the next retraction.
func (s *Service) RemoveTemplate(projectID, id string) ([]templates.Template, error) {
	if _, err := s.store.GetProject(projectID); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalid("Id missing in request.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.templateStore(projectID).Remove(id)
	if err != nil {
		return nil, err
	}
	s.metrics.IncTemplateRemove()
	logger.Info("Template %s removed from project %s", id, projectID)
	return completeOnly(list), nil
}

// ProjectInfo returns the single-value state and enum fields of a project.
func (s *Service) ProjectInfo(projectID string) (ProjectInfo, error) {
	fields, err := s.store.ProjectFields(projectID)
	if err != nil {
		return ProjectInfo{}, err
	}
	info := ProjectInfo{StateFields: []FieldInfo{}, EnumFields: []FieldInfo{}}
	for _, f := range fields {
		switch f.TypeName {
		case store.FieldTypeState:
			info.StateFields = append(info.StateFields, fieldInfo(f))
		case store.FieldTypeEnum:
			info.EnumFields = append(info.EnumFields, fieldInfo(f))
		}
	}
	return info, nil
}

func fieldInfo(f store.Field) FieldInfo {
	values := make([]FieldValue, 0, len(f.Values))
	for _, v := range f.Values {
		values = append(values, FieldValue{Name: v, Presentation: v})
	}
	return FieldInfo{Name: f.Name, Values: values}
}

// TemplateArticles lists the articles flagged as template sources. A non-empty
// query fuzzy-ranks them by summary and drops the ones that do not match.
func (s *Service) TemplateArticles(projectID, query string) ([]TemplateArticle, error) {
	if _, err := s.store.GetProject(projectID); err != nil {
		return nil, err
	}
	articles, err := s.store.ListArticlesWithProperty(IsTemplateKey, "true")
	if err != nil {
		return nil, err
	}
	out := make([]TemplateArticle, 0, len(articles))
	for _, a := range articles {
		out = append(out, TemplateArticle{ArticleID: a.ID, Summary: a.Summary, URL: "/articles/" + a.ID})
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return out, nil
	}
	summaries := make([]string, len(out))
	for i, a := range out {
		summaries[i] = a.Summary
	}
	matches := fuzzy.Find(query, summaries)
	ranked := make([]TemplateArticle, 0, len(matches))
	for _, m := range matches {
		ranked = append(ranked, out[m.Index])
	}
	return ranked, nil
}

func (s *Service) ArticleInfo(articleID string) (ArticleInfo, error) {
	article, err := s.store.GetEntityOfKind(articleID, condition.KindArticle)
	if err != nil {
		return ArticleInfo{}, err
	}
	return ArticleInfo{ArticleID: article.ID, IsTemplate: isTemplateArticle(article)}, nil
}

// SetArticleInfo flags or unflags an article as a template source. An article
// that already carries applied templates cannot become a template.
func (s *Service) SetArticleInfo(articleID string, in ArticleInfoInput) (ArticleInfo, error) {
	if in.ArticleID == nil || strings.TrimSpace(*in.ArticleID) == "" {
		return ArticleInfo{}, invalid("Article info must have a valid articleId.")
	}
	if in.IsTemplate == nil {
		return ArticleInfo{}, invalid("Article info must have an isTemplate field.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	article, err := s.store.GetEntityOfKind(articleID, condition.KindArticle)
	if err != nil {
		return ArticleInfo{}, err
	}
	if *in.ArticleID != article.ID {
		return ArticleInfo{}, invalid("Request article ID doesn't match context article ID.")
	}
	if *in.IsTemplate {
		used, err := usedTemplates(article)
		if err != nil {
			return ArticleInfo{}, err
		}
		if used.Len() > 0 {
			return ArticleInfo{}, invalid("Article %s has templates applied and cannot be marked as a template.", article.ID)
		}
		article.SetProperty(IsTemplateKey, "true")
	} else {
		article.SetProperty(IsTemplateKey, "")
	}
	if err := s.store.SaveEntity(article); err != nil {
		return ArticleInfo{}, err
	}
	return ArticleInfo{ArticleID: article.ID, IsTemplate: *in.IsTemplate}, nil
}

func completeOnly(list []templates.Template) []templates.Template {
	out := make([]templates.Template, 0, len(list))
	for _, t := range list {
		if t.Complete() {
			out = append(out, t)
		}
	}
	return out
}
