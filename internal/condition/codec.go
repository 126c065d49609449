// 本文件用于条件的编解码 外部数据统一经过 Record 转换为封闭变体

package condition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Record 是条件在 JSON 与 YAML 中的扁平形态
// 指针字段用于区分缺失和空字符串
type Record struct {
	When       string  `json:"when" yaml:"when"`
	EntityType *string `json:"entityType,omitempty" yaml:"entityType,omitempty"`
	FieldName  *string `json:"fieldName,omitempty" yaml:"fieldName,omitempty"`
	FieldValue *string `json:"fieldValue,omitempty" yaml:"fieldValue,omitempty"`
	TagName    *string `json:"tagName,omitempty" yaml:"tagName,omitempty"`
}

// Problem describes why a record does not form a well-formed condition.
type Problem struct {
	msg string
}

func (p *Problem) Error() string {
	return p.msg
}

func problemf(format string, args ...any) *Problem {
	return &Problem{msg: fmt.Sprintf(format, args...)}
}

// ParseValidity 严格解析有效条件 缺字段或未知 when 返回 *Problem
func ParseValidity(r Record) (Validity, error) {
	switch When(r.When) {
	case "":
		return nil, problemf(`missing "when" property.`)
	case WhenEntityIs:
		if r.EntityType == nil {
			return nil, problemf(`missing "entityType" property.`)
		}
		kind := EntityKind(strings.TrimSpace(*r.EntityType))
		if !kind.Valid() {
			return nil, problemf("unknown entityType value: %s", *r.EntityType)
		}
		return EntityIs{EntityType: kind}, nil
	case WhenFieldIs:
		if r.FieldName == nil || r.FieldValue == nil {
			return nil, problemf(`missing "fieldName" or "fieldValue" property.`)
		}
		return FieldIs{FieldName: *r.FieldName, FieldValue: *r.FieldValue}, nil
	case WhenTagIs:
		if r.TagName == nil {
			return nil, problemf(`missing "tagName" property.`)
		}
		return TagIs{TagName: *r.TagName}, nil
	default:
		return nil, problemf("unknown when value: %s", r.When)
	}
}

// ParseTrigger 严格解析自动添加条件
func ParseTrigger(r Record) (Trigger, error) {
	switch When(r.When) {
	case "":
		return nil, problemf(`missing "when" property.`)
	case WhenFieldBecomes:
		if r.FieldName == nil || r.FieldValue == nil {
			return nil, problemf(`missing "fieldName" or "fieldValue" property.`)
		}
		return FieldBecomes{FieldName: *r.FieldName, FieldValue: *r.FieldValue}, nil
	case WhenTagAdded:
		if r.TagName == nil {
			return nil, problemf(`missing "tagName" property.`)
		}
		return TagAdded{TagName: *r.TagName}, nil
	case WhenTagRemoved:
		if r.TagName == nil {
			return nil, problemf(`missing "tagName" property.`)
		}
		return TagRemoved{TagName: *r.TagName}, nil
	default:
		return nil, problemf("unknown when value: %s", r.When)
	}
}

// DecodeValidity 宽松解码存储中的有效条件
// null 返回 nil 其它无法识别的形态返回 Unknown 而不是错误
func DecodeValidity(raw json.RawMessage) Validity {
	if isNull(raw) {
		return nil
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Unknown{Raw: cloneRaw(raw)}
	}
	cond, err := ParseValidity(rec)
	if err != nil {
		return Unknown{Tag: When(rec.When), Raw: cloneRaw(raw)}
	}
	return cond
}

// DecodeTrigger 宽松解码存储中的自动添加条件
func DecodeTrigger(raw json.RawMessage) Trigger {
	if isNull(raw) {
		return nil
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Unknown{Raw: cloneRaw(raw)}
	}
	cond, err := ParseTrigger(rec)
	if err != nil {
		return Unknown{Tag: When(rec.When), Raw: cloneRaw(raw)}
	}
	return cond
}

// ToRecord flattens a condition back into its wire shape.
func ToRecord(c Condition) Record {
	switch v := c.(type) {
	case EntityIs:
		return Record{When: string(WhenEntityIs), EntityType: strPtr(string(v.EntityType))}
	case FieldIs:
		return Record{When: string(WhenFieldIs), FieldName: strPtr(v.FieldName), FieldValue: strPtr(v.FieldValue)}
	case TagIs:
		return Record{When: string(WhenTagIs), TagName: strPtr(v.TagName)}
	case FieldBecomes:
		return Record{When: string(WhenFieldBecomes), FieldName: strPtr(v.FieldName), FieldValue: strPtr(v.FieldValue)}
	case TagAdded:
		return Record{When: string(WhenTagAdded), TagName: strPtr(v.TagName)}
	case TagRemoved:
		return Record{When: string(WhenTagRemoved), TagName: strPtr(v.TagName)}
	case Unknown:
		return Record{When: string(v.Tag)}
	default:
		return Record{}
	}
}

// Marshal encodes a condition. Unknown conditions are written back verbatim.
func Marshal(c Condition) (json.RawMessage, error) {
	if c == nil {
		return json.RawMessage("null"), nil
	}
	if u, ok := c.(Unknown); ok && len(u.Raw) > 0 {
		return cloneRaw(u.Raw), nil
	}
	return json.Marshal(ToRecord(c))
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}

func strPtr(s string) *string {
	return &s
}
