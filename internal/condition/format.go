package condition

import (
	"fmt"
	"strings"
)

// Describe renders a condition for listings and tool output.
func Describe(c Condition) string {
	switch v := c.(type) {
	case nil:
		return "never"
	case EntityIs:
		return fmt.Sprintf("entity is %s", v.EntityType)
	case FieldIs:
		return fmt.Sprintf("%s is %q", v.FieldName, v.FieldValue)
	case TagIs:
		return fmt.Sprintf("has tag %q", v.TagName)
	case FieldBecomes:
		return fmt.Sprintf("%s becomes %q", v.FieldName, v.FieldValue)
	case TagAdded:
		return fmt.Sprintf("tag %q added", v.TagName)
	case TagRemoved:
		return fmt.Sprintf("tag %q removed", v.TagName)
	case Unknown:
		if v.Tag == "" {
			return "unrecognized condition"
		}
		return fmt.Sprintf("unrecognized condition (%s)", v.Tag)
	default:
		return "unrecognized condition"
	}
}

// DescribeAny joins validity conditions with "or". An empty list never matches.
func DescribeAny(conds []Validity) string {
	if len(conds) == 0 {
		return "never"
	}
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		parts = append(parts, Describe(c))
	}
	return strings.Join(parts, " or ")
}
