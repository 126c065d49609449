// 本文件用于新增模板时的严格校验 错误信息直接返回给调用方

package templates

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"ticket-template/internal/condition"
)

// ValidationError carries a message that is safe to show to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Parse 严格解析请求中的模板定义
// 与 Load 的宽松解码不同 这里任何缺失或未知字段都会被拒绝
func Parse(data json.RawMessage) (Template, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return Template{}, invalid("Template must be an object.")
	}

	id, ok := stringField(fields, "id")
	if !ok || strings.TrimSpace(id) == "" {
		return Template{}, invalid("Template must have a valid id.")
	}
	name, ok := stringField(fields, "name")
	if !ok || strings.TrimSpace(name) == "" {
		return Template{}, invalid("Template must have a valid name.")
	}

	rawValid, ok := fields["validCondition"]
	if !ok {
		return Template{}, invalid("Template must have a valid validCondition.")
	}
	var items []json.RawMessage
	if trimmed := bytes.TrimSpace(rawValid); len(trimmed) == 0 || trimmed[0] != '[' {
		return Template{}, invalid("Template validCondition must be an array.")
	}
	if err := json.Unmarshal(rawValid, &items); err != nil {
		return Template{}, invalid("Template validCondition must be an array.")
	}
	valid := make([]condition.Validity, 0, len(items))
	for _, item := range items {
		var rec condition.Record
		if err := json.Unmarshal(item, &rec); err != nil || isNullJSON(item) {
			return Template{}, invalid("Inconsistent validCondition, malformed condition.")
		}
		c, err := condition.ParseValidity(rec)
		if err != nil {
			return Template{}, invalid("Inconsistent validCondition, %s", err)
		}
		valid = append(valid, c)
	}

	rawAdd, ok := fields["addCondition"]
	if !ok {
		return Template{}, invalid("Template must have a valid addCondition.")
	}
	var add condition.Trigger
	if !isNullJSON(rawAdd) {
		var rec condition.Record
		if err := json.Unmarshal(rawAdd, &rec); err != nil {
			return Template{}, invalid("Inconsistent addCondition, malformed condition.")
		}
		c, err := condition.ParseTrigger(rec)
		if err != nil {
			return Template{}, invalid("Inconsistent addCondition, %s", err)
		}
		add = c
	}

	articleID, ok := stringField(fields, "articleId")
	if !ok || strings.TrimSpace(articleID) == "" {
		return Template{}, invalid("Template must have a valid articleId.")
	}

	return Template{
		ID:             strings.TrimSpace(id),
		Name:           strings.TrimSpace(name),
		ArticleID:      strings.TrimSpace(articleID),
		ValidCondition: valid,
		AddCondition:   add,
	}, nil
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func isNullJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
