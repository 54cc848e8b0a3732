package condition

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"time"
)

// Query parameter names used for pagination.
const (
	ParamPage    = "page"
	ParamPerPage = "per_page"
)

// ToQueryParams encodes the filter tree with bracket notation: nested maps
// become key[child]=v and sequences become key[]=v. Includes are resolved
// client side and are never encoded.
func (c Condition) ToQueryParams() url.Values {
	values := url.Values{}
	keys := sortedKeys(c.conditions)
	for _, key := range keys {
		encodeParam(values, key, c.conditions[key])
	}
	if c.pagination.Enabled {
		page := c.pagination.Page
		if page < 1 {
			page = 1
		}
		values.Set(ParamPage, strconv.Itoa(page))
		if c.pagination.PerPage > 0 {
			values.Set(ParamPerPage, strconv.Itoa(c.pagination.PerPage))
		}
	}
	return values
}

func encodeParam(values url.Values, prefix string, v any) {
	switch t := v.(type) {
	case nil:
		values.Add(prefix, "")
		return
	case map[string]any:
		for _, key := range sortedKeys(t) {
			encodeParam(values, prefix+"["+key+"]", t[key])
		}
		return
	case string, json.Number, bool, time.Time:
		values.Add(prefix, formatScalar(v))
		return
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			encodeParam(values, prefix+"[]", rv.Index(i).Interface())
		}
	case reflect.Map:
		nested := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			nested[fmt.Sprint(iter.Key().Interface())] = iter.Value().Interface()
		}
		encodeParam(values, prefix, nested)
	case reflect.Pointer:
		if rv.IsNil() {
			values.Add(prefix, "")
			return
		}
		encodeParam(values, prefix, rv.Elem().Interface())
	default:
		values.Add(prefix, formatScalar(v))
	}
}

func formatScalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
