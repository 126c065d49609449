// 本文件用于平台存储的领域类型定义 项目 自定义字段 工单与文章

package store

import (
	"errors"

	"ticket-template/internal/condition"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Field type names as reported by the platform; "[1]" marks single-value fields.
const (
	FieldTypeState = "state[1]"
	FieldTypeEnum  = "enum[1]"
)

type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// Field is a project custom field and its allowed values.
type Field struct {
	Name     string   `json:"name" yaml:"name"`
	TypeName string   `json:"typeName" yaml:"type"`
	Values   []string `json:"values" yaml:"values"`
}

// Entity is an issue or an article. Content is the issue description or the
// article body.
type Entity struct {
	ID         string               `json:"id"`
	ProjectID  string               `json:"projectId"`
	Kind       condition.EntityKind `json:"kind"`
	Summary    string               `json:"summary"`
	Content    string               `json:"content"`
	Fields     map[string]string    `json:"fields"`
	Tags       []string             `json:"tags"`
	Properties map[string]string    `json:"properties"`
	CreatedAt  string               `json:"createdAt"`
	UpdatedAt  string               `json:"updatedAt"`
}

// Property returns an extension property, "" when unset.
func (e *Entity) Property(key string) string {
	if e == nil || e.Properties == nil {
		return ""
	}
	return e.Properties[key]
}

// SetProperty sets an extension property; an empty value deletes it.
func (e *Entity) SetProperty(key, value string) {
	if e.Properties == nil {
		e.Properties = make(map[string]string)
	}
	if value == "" {
		delete(e.Properties, key)
		return
	}
	e.Properties[key] = value
}

// Clone returns a deep copy.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	out := *e
	out.Fields = copyMap(e.Fields)
	out.Properties = copyMap(e.Properties)
	out.Tags = append([]string(nil), e.Tags...)
	return &out
}

// Stats 表示存储中的记录数量
type Stats struct {
	Projects int
	Issues   int
	Articles int
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
