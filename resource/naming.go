package resource

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// toSnake converts s to snake_case. Punctuation collapses into a single
// underscore so derived paths and attribute names stay URL safe.
func toSnake(s string) string {
	if s == "" {
		return ""
	}

	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)
	lastUnderscore := false

	separate := func() {
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (nextLower && unicode.IsUpper(prev)) {
					separate()
				}
			}
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false
		case unicode.IsLower(r), unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		default:
			separate()
		}
	}

	return strings.Trim(b.String(), "_")
}

// collectionPath derives "/test_resources" from "TestResource".
func collectionPath(name string) string {
	return "/" + inflection.Plural(toSnake(name))
}

// defaultForeignKey returns the owner attribute holding an association key:
// "<name>_id" for singular associations, "<singular>_ids" for has-many.
func defaultForeignKey(name string, kind AssociationKind) string {
	snake := toSnake(name)
	if kind == HasManyKind {
		return inflection.Singular(snake) + "_ids"
	}
	return snake + "_id"
}

// defaultClassName guesses the target class of an association from its name.
func defaultClassName(name string, kind AssociationKind) string {
	if kind == HasManyKind {
		return inflection.Singular(toSnake(name))
	}
	return toSnake(name)
}

// idKey normalizes an identifier so 1, 1.0, "1" and json.Number("1")
// compare equal.
func idKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(v)
	}
}

// toList flattens a foreign key value into a slice. Scalars become a one
// element slice, nil becomes nil.
func toList(v any) []any {
	if v == nil {
		return nil
	}
	if list, ok := v.([]any); ok {
		return append([]any(nil), list...)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []any{v}
}

// dedupeIDs drops nil and repeated identifiers, keeping first occurrence order.
func dedupeIDs(ids []any) []any {
	seen := make(map[string]struct{}, len(ids))
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		if id == nil {
			continue
		}
		key := idKey(id)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, id)
	}
	return out
}

// chunk partitions ids into batches of at most size elements.
func chunk(ids []any, size int) [][]any {
	if size <= 0 {
		size = len(ids)
	}
	var batches [][]any
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}
