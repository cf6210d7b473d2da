package lookup

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// Adapter maps one raw Graph list item to a Record.
type Adapter func(item map[string]any) Record

var (
	itemIDPath = jp.C("id")
	fieldsPath = jp.C("fields")
)

func fieldPath(name string) jp.Expr {
	return jp.C("fields").C(name)
}

var (
	titleField = fieldPath("Title")
	field0     = fieldPath("field_0")
	field1     = fieldPath("field_1")
	field2     = fieldPath("field_2")
	field3     = fieldPath("field_3")
	field4     = fieldPath("field_4")
)

// text returns the trimmed string form of the value at path, or "".
func text(item map[string]any, path jp.Expr) string {
	return strings.TrimSpace(stringify(path.First(item)))
}

// firstOf returns the first non-empty trimmed value among paths, or fallback.
func firstOf(item map[string]any, fallback string, paths ...jp.Expr) string {
	for _, p := range paths {
		if v := text(item, p); v != "" {
			return v
		}
	}
	return fallback
}

// rawFields stringifies every field of the item.
func rawFields(item map[string]any) map[string]string {
	fields, ok := fieldsPath.First(item).(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		if v == nil {
			continue
		}
		out[k] = stringify(v)
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func adaptClient(item map[string]any) Record {
	return Record{
		ID:    firstOf(item, MissingID, field0, titleField),
		Title: firstOf(item, MissingTitle, titleField),
	}
}

// adaptCoded maps lists keyed by Title with the display text in field_1.
func adaptCoded(item map[string]any) Record {
	return Record{
		ID:    firstOf(item, MissingID, titleField),
		Title: firstOf(item, MissingTitle, field1),
	}
}

func adaptTitleOnly(item map[string]any) Record {
	return Record{
		ID:    firstOf(item, MissingID, titleField),
		Title: firstOf(item, MissingTitle, titleField),
	}
}

func adaptDescribed(descriptionField string) Adapter {
	description := fieldPath(descriptionField)
	return func(item map[string]any) Record {
		return Record{
			ID:    firstOf(item, MissingID, titleField),
			Title: firstOf(item, MissingTitle, description, titleField),
		}
	}
}

func adaptSubject(item map[string]any) Record {
	return Record{
		ID:          firstOf(item, MissingID, titleField),
		Title:       firstOf(item, MissingTitle, field1),
		ParentID:    text(item, field2),
		ParentTitle: text(item, field3),
	}
}

func adaptSubSubject(item map[string]any) Record {
	return Record{
		ID:          firstOf(item, MissingID, titleField),
		Title:       firstOf(item, MissingTitle, field1),
		ParentID:    text(item, field3),
		ParentTitle: text(item, field4),
	}
}

// adaptSubType keys sub-types by the list item id rather than a field.
func adaptSubType(item map[string]any) Record {
	return Record{
		ID:       firstOf(item, MissingID, itemIDPath),
		Title:    firstOf(item, MissingTitle, field3),
		ParentID: text(item, field0),
	}
}

// adaptChild maps folder-style lists whose parent id lives in field_2.
func adaptChild(item map[string]any) Record {
	return Record{
		ID:       firstOf(item, MissingID, titleField),
		Title:    firstOf(item, MissingTitle, field1),
		ParentID: text(item, field2),
		Raw:      rawFields(item),
	}
}
