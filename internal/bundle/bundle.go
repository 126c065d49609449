// 本文件用于模板包导入 一个 YAML 文件声明项目 字段 模板文章与模板 导入幂等

package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"

	"ticket-template/internal/condition"
	"ticket-template/internal/logger"
	"ticket-template/internal/metrics"
	"ticket-template/internal/service"
	"ticket-template/internal/store"
)

// Bundle is the on-disk template bundle.
type Bundle struct {
	Projects []Project `yaml:"projects"`
}

type Project struct {
	ID        string                   `yaml:"id"`
	Name      string                   `yaml:"name"`
	Fields    []store.Field            `yaml:"fields"`
	Articles  []Article                `yaml:"articles"`
	Templates []map[string]interface{} `yaml:"templates"`
}

// Article is a template source article. IsTemplate defaults to true.
type Article struct {
	ID         string `yaml:"id"`
	Summary    string `yaml:"summary"`
	Content    string `yaml:"content"`
	IsTemplate *bool  `yaml:"isTemplate"`
}

// Report summarizes one import.
type Report struct {
	Projects    int      `json:"projects"`
	Fields      int      `json:"fields"`
	Articles    int      `json:"articles"`
	Templates   int      `json:"templates"`
	TemplateIDs []string `json:"templateIds"`
}

// Importer upserts bundles through the template service so templates pass the
// same validation as the addTemplate endpoint.
type Importer struct {
	svc     *service.Service
	metrics *metrics.Collector
}

func NewImporter(svc *service.Service) *Importer {
	return &Importer{svc: svc, metrics: metrics.Global()}
}

func (im *Importer) WithMetrics(c *metrics.Collector) *Importer {
	im.metrics = c
	return im
}

// Load reads and decodes a bundle file.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取模板包失败: %w", err)
	}
	return Decode(data)
}

func Decode(data []byte) (*Bundle, error) {
	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("解析模板包失败: %w", err)
	}
	for i, p := range b.Projects {
		if strings.TrimSpace(p.ID) == "" {
			return nil, fmt.Errorf("%w: projects[%d] 缺少 id", store.ErrInvalidInput, i)
		}
	}
	return &b, nil
}

// ImportFile loads and imports path, recording the outcome in metrics.
func (im *Importer) ImportFile(path string) (Report, error) {
	b, err := Load(path)
	if err != nil {
		im.metrics.ObserveBundleImport("error")
		return Report{}, err
	}
	report, err := im.Import(b)
	if err != nil {
		im.metrics.ObserveBundleImport("error")
		return report, err
	}
	im.metrics.ObserveBundleImport("ok")
	logger.Info("模板包导入完成: %s 项目=%d 文章=%d 模板=%d", path, report.Projects, report.Articles, report.Templates)
	return report, nil
}

// Import applies the bundle in declaration order and stops at the first error.
func (im *Importer) Import(b *Bundle) (Report, error) {
	report := Report{TemplateIDs: []string{}}
	if b == nil {
		return report, nil
	}
	st := im.svc.Store()
	for _, p := range b.Projects {
		projectID := strings.TrimSpace(p.ID)
		if _, err := st.UpsertProject(projectID, firstNonEmpty(p.Name, projectID)); err != nil {
			return report, err
		}
		report.Projects++
		if len(p.Fields) > 0 {
			if err := st.SetProjectFields(projectID, p.Fields); err != nil {
				return report, err
			}
			report.Fields += len(p.Fields)
		}
		for _, a := range p.Articles {
			if err := im.upsertArticle(projectID, a); err != nil {
				return report, fmt.Errorf("导入文章 %s 失败: %w", a.ID, err)
			}
			report.Articles++
		}
		for i, raw := range p.Templates {
			id, err := im.upsertTemplate(projectID, raw)
			if err != nil {
				return report, fmt.Errorf("导入项目 %s 第 %d 个模板失败: %w", projectID, i+1, err)
			}
			report.Templates++
			report.TemplateIDs = append(report.TemplateIDs, id)
		}
	}
	return report, nil
}

func (im *Importer) upsertArticle(projectID string, a Article) error {
	id := strings.TrimSpace(a.ID)
	if id == "" {
		return fmt.Errorf("%w: article id is required", store.ErrInvalidInput)
	}
	isTemplate := a.IsTemplate == nil || *a.IsTemplate

	existing, err := im.svc.Store().GetEntity(id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		_, _, err = im.svc.CreateEntity(projectID, condition.KindArticle, service.CreateInput{
			ID:         id,
			Summary:    a.Summary,
			Content:    a.Content,
			IsTemplate: isTemplate,
		})
		return err
	case err != nil:
		return err
	}
	if existing.Kind != condition.KindArticle || existing.ProjectID != projectID {
		return fmt.Errorf("%w: %s already exists as %s in project %s", store.ErrInvalidInput, id, existing.Kind, existing.ProjectID)
	}
	summary, content := a.Summary, a.Content
	if _, _, err := im.svc.ChangeEntity(condition.KindArticle, id, service.ChangeInput{Summary: &summary, Content: &content}); err != nil {
		return err
	}
	_, err = im.svc.SetArticleInfo(id, service.ArticleInfoInput{ArticleID: &id, IsTemplate: &isTemplate})
	return err
}

func (im *Importer) upsertTemplate(projectID string, raw map[string]interface{}) (string, error) {
	doc, ok := normalize(raw).(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("%w: template must be a mapping", store.ErrInvalidInput)
	}
	id, _ := doc["id"].(string)
	if strings.TrimSpace(id) == "" {
		name, _ := doc["name"].(string)
		if strings.TrimSpace(name) == "" {
			return "", fmt.Errorf("%w: template without id needs a name", store.ErrInvalidInput)
		}
		id = TemplateID(projectID, name)
		doc["id"] = id
	}
	stringifyConditions(doc)
	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	if _, err := im.svc.AddTemplate(projectID, data); err != nil {
		return "", err
	}
	return id, nil
}

// TemplateID derives a stable id so re-importing a bundle updates templates in place.
func TemplateID(projectID, name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(projectID+"/"+strings.TrimSpace(name))).String()
}

// stringifyConditions 条件里的取值一律按字符串处理
// yaml 会把未加引号的 1 或 true 解成数字和布尔
func stringifyConditions(doc map[string]interface{}) {
	switch v := doc["validCondition"].(type) {
	case []interface{}:
		for _, item := range v {
			if cond, ok := item.(map[string]interface{}); ok {
				stringifyScalars(cond)
			}
		}
	case map[string]interface{}:
		stringifyScalars(v)
	}
	if cond, ok := doc["addCondition"].(map[string]interface{}); ok {
		stringifyScalars(cond)
	}
}

func stringifyScalars(cond map[string]interface{}) {
	for k, v := range cond {
		switch v.(type) {
		case nil, string, map[string]interface{}, []interface{}:
		default:
			cond[k] = fmt.Sprint(v)
		}
	}
}

// normalize 将 yaml.v2 的 map[interface{}]interface{} 转为可 JSON 编码的结构
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
