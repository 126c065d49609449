// 本文件用于模板列表在项目属性包上的读取 规范化与持久化

package templates

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// PropertyKey is the project property holding the serialized template list.
const PropertyKey = "templates"

// ErrCorrupt 表示项目属性中的模板列表不是合法 JSON 数组
var ErrCorrupt = errors.New("stored template list is corrupt")

// PropertyBag is a string-keyed extension property bag on a project or entity.
// A missing key reads as "".
type PropertyBag interface {
	Property(key string) (string, error)
	SetProperty(key, value string) error
}

// Store 是模板列表的读写适配器
// 读取时统一规范化旧格式 写入时原样序列化 不做额外校验
type Store struct {
	bag PropertyBag
}

// NewStore wraps a project property bag.
func NewStore(bag PropertyBag) *Store {
	return &Store{bag: bag}
}

// Load returns the complete templates, in stored order.
func (s *Store) Load() ([]Template, error) {
	all, err := s.LoadAll()
	if err != nil {
		return nil, err
	}
	out := make([]Template, 0, len(all))
	for _, t := range all {
		if !t.Complete() {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// LoadAll returns every stored template, including incomplete drafts.
func (s *Store) LoadAll() ([]Template, error) {
	raw, err := s.bag.Property(PropertyKey)
	if err != nil {
		return nil, fmt.Errorf("read templates property failed: %w", err)
	}
	return decodeList(raw)
}

// Save persists list verbatim.
func (s *Store) Save(list []Template) error {
	if list == nil {
		list = []Template{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode templates failed: %w", err)
	}
	if err := s.bag.SetProperty(PropertyKey, string(data)); err != nil {
		return fmt.Errorf("write templates property failed: %w", err)
	}
	return nil
}

// Upsert replaces the template with the same id or appends it, then saves.
func (s *Store) Upsert(t Template) ([]Template, error) {
	list, err := s.LoadAll()
	if err != nil {
		return nil, err
	}
	replaced := false
	for i := range list {
		if list[i].ID == t.ID {
			list[i] = t
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, t)
	}
	if err := s.Save(list); err != nil {
		return nil, err
	}
	return list, nil
}

// Remove drops every template with the given id, then saves.
func (s *Store) Remove(id string) ([]Template, error) {
	list, err := s.LoadAll()
	if err != nil {
		return nil, err
	}
	kept := make([]Template, 0, len(list))
	for _, t := range list {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	if err := s.Save(kept); err != nil {
		return nil, err
	}
	return kept, nil
}

func decodeList(raw string) ([]Template, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" {
		return []Template{}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	out := make([]Template, 0, len(items))
	for _, item := range items {
		var t Template
		if err := json.Unmarshal(item, &t); err != nil {
			// 单条记录损坏时跳过 不影响其它模板
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
