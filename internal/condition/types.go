// 本文件用于定义模板条件的数据结构 有效条件与自动添加条件分别收敛为封闭的变体集合

package condition

import "encoding/json"

// When 是条件的判别字段
type When string

const (
	WhenEntityIs     When = "entity_is"
	WhenFieldIs      When = "field_is"
	WhenTagIs        When = "tag_is"
	WhenFieldBecomes When = "field_becomes"
	WhenTagAdded     When = "tag_added"
	WhenTagRemoved   When = "tag_removed"
)

// EntityKind 表示模板可作用的实体类型
type EntityKind string

const (
	KindIssue   EntityKind = "issue"
	KindArticle EntityKind = "article"
)

// Valid reports whether k names a known entity kind.
func (k EntityKind) Valid() bool {
	return k == KindIssue || k == KindArticle
}

// Condition is implemented by every condition variant in this package.
type Condition interface {
	When() When
	sealed()
}

// Validity 是模板有效条件 只能是 EntityIs FieldIs TagIs 或 Unknown
type Validity interface {
	Condition
	validity()
}

// Trigger 是模板自动添加条件 只能是 FieldBecomes TagAdded TagRemoved 或 Unknown
type Trigger interface {
	Condition
	trigger()
}

// EntityIs holds for entities of the given kind.
type EntityIs struct {
	EntityType EntityKind
}

// FieldIs holds while a single-value field has the given value.
type FieldIs struct {
	FieldName  string
	FieldValue string
}

// TagIs holds while the entity carries the tag.
type TagIs struct {
	TagName string
}

// FieldBecomes fires when a field transitions to the given value.
type FieldBecomes struct {
	FieldName  string
	FieldValue string
}

// TagAdded fires when the tag is added.
type TagAdded struct {
	TagName string
}

// TagRemoved fires when the tag is removed.
type TagRemoved struct {
	TagName string
}

// Unknown 保存无法识别或缺字段的条件原文
// 求值时永不命中 保存时原样写回 便于兼容新版本写入的数据
type Unknown struct {
	Tag When
	Raw json.RawMessage
}

func (EntityIs) When() When     { return WhenEntityIs }
func (FieldIs) When() When      { return WhenFieldIs }
func (TagIs) When() When        { return WhenTagIs }
func (FieldBecomes) When() When { return WhenFieldBecomes }
func (TagAdded) When() When     { return WhenTagAdded }
func (TagRemoved) When() When   { return WhenTagRemoved }
func (u Unknown) When() When    { return u.Tag }

func (EntityIs) sealed()     {}
func (FieldIs) sealed()      {}
func (TagIs) sealed()        {}
func (FieldBecomes) sealed() {}
func (TagAdded) sealed()     {}
func (TagRemoved) sealed()   {}
func (Unknown) sealed()      {}

func (EntityIs) validity() {}
func (FieldIs) validity()  {}
func (TagIs) validity()    {}
func (Unknown) validity()  {}

func (FieldBecomes) trigger() {}
func (TagAdded) trigger()     {}
func (TagRemoved) trigger()   {}
func (Unknown) trigger()      {}
