// 本文件用于模板服务的公共部分 依赖注入 错误类型与通用读取

package service

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"ticket-template/internal/condition"
	"ticket-template/internal/engine"
	"ticket-template/internal/ledger"
	"ticket-template/internal/metrics"
	"ticket-template/internal/store"
	"ticket-template/internal/templates"
)

// IsTemplateKey is the article property flagging a template source article.
const IsTemplateKey = "isTemplate"

// ValidationError is a caller mistake; its message is returned with a 400.
type ValidationError = templates.ValidationError

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err carries a caller-facing validation message.
func IsValidation(err error) (string, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message, true
	}
	return "", false
}

// Service 负责模板的项目级管理 手动增删以及变更规则
// 所有写操作串行执行 同一实体只在最后落库一次
type Service struct {
	mu      sync.Mutex
	store   *store.Store
	metrics *metrics.Collector
}

func New(st *store.Store) *Service {
	return &Service{store: st, metrics: metrics.Global()}
}

// WithMetrics swaps the metrics collector, mainly for tests.
func (s *Service) WithMetrics(c *metrics.Collector) *Service {
	s.metrics = c
	return s
}

func (s *Service) Store() *store.Store { return s.store }

func (s *Service) templateStore(projectID string) *templates.Store {
	return templates.NewStore(s.store.ProjectBag(projectID))
}

func (s *Service) loadTemplates(projectID string) ([]templates.Template, error) {
	list, err := s.templateStore(projectID).Load()
	if err != nil {
		return nil, fmt.Errorf("load templates of project %s: %w", projectID, err)
	}
	return list, nil
}

func usedTemplates(e *store.Entity) (ledger.Set, error) {
	used, err := ledger.Parse(e.Property(ledger.PropertyKey))
	if err != nil {
		return ledger.Set{}, fmt.Errorf("entity %s: %w", e.ID, err)
	}
	return used, nil
}

func setUsedTemplates(e *store.Entity, used ledger.Set) {
	e.SetProperty(ledger.PropertyKey, used.String())
}

func isTemplateArticle(e *store.Entity) bool {
	return e.Kind == condition.KindArticle && e.Property(IsTemplateKey) == "true"
}

// staticSnapshot describes an entity that is not changing.
func staticSnapshot(e *store.Entity) engine.Snapshot {
	return engine.NewChange(e.Kind, false, e.Fields, e.Fields, e.Tags, e.Tags)
}

func kindLabel(kind condition.EntityKind) string {
	return strings.ToLower(string(kind))
}
