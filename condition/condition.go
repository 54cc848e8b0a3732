package condition

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrInvalidAssociationScope indicates two association scoped conditions
// were merged while pointing at different remote paths.
var ErrInvalidAssociationScope = errors.New("condition: invalid association scope")

// Pagination describes the page window requested from the record store.
type Pagination struct {
	Enabled bool
	Page    int
	PerPage int
}

// Condition is an immutable query description. Every method returns a new
// value; the receiver and the arguments are never modified.
type Condition struct {
	class       string
	conditions  map[string]any
	pagination  Pagination
	includes    []string
	association bool
	remotePath  string
	owner       *Condition
}

// New builds a root condition for class seeded with params. The params map
// is deep copied.
func New(class string, params map[string]any) Condition {
	return Condition{
		class:      class,
		conditions: cloneMap(params),
	}
}

// Class returns the target class name.
func (c Condition) Class() string { return c.class }

// Conditions returns a deep copy of the filter tree.
func (c Condition) Conditions() map[string]any {
	out := cloneMap(c.conditions)
	if out == nil {
		out = map[string]any{}
	}
	return out
}

// Value returns the top level filter stored under key.
func (c Condition) Value(key string) (any, bool) {
	v, ok := c.conditions[key]
	if !ok {
		return nil, false
	}
	return cloneValue(v), true
}

// Pagination returns the page window.
func (c Condition) Pagination() Pagination { return c.pagination }

// Includes returns the eager-load list in declaration order.
func (c Condition) Includes() []string {
	if len(c.includes) == 0 {
		return nil
	}
	return append([]string(nil), c.includes...)
}

// IsAssociation reports whether the condition scopes an association fetch.
func (c Condition) IsAssociation() bool { return c.association }

// RemotePath returns the path override, empty when unset.
func (c Condition) RemotePath() string { return c.remotePath }

// Owner returns the parent condition of an association scope.
func (c Condition) Owner() (Condition, bool) {
	if c.owner == nil {
		return Condition{}, false
	}
	return *c.owner, true
}

// Merge combines c with other. Keys from other win on collision, nested maps
// are merged recursively, includes are unioned in order and pagination is
// enabled when either side enables it.
func (c Condition) Merge(other Condition) (Condition, error) {
	if c.association && other.association &&
		c.remotePath != "" && other.remotePath != "" && c.remotePath != other.remotePath {
		return Condition{}, fmt.Errorf("%w: %q and %q", ErrInvalidAssociationScope, c.remotePath, other.remotePath)
	}

	merged := Condition{
		class:       c.class,
		conditions:  mergeMaps(c.conditions, other.conditions),
		pagination:  c.pagination,
		includes:    unionStrings(c.includes, other.includes),
		association: c.association || other.association,
		remotePath:  c.remotePath,
		owner:       c.owner,
	}
	if merged.class == "" {
		merged.class = other.class
	}
	if other.pagination.Enabled {
		merged.pagination = other.pagination
	}
	if other.remotePath != "" {
		merged.remotePath = other.remotePath
	}
	if other.owner != nil {
		merged.owner = other.owner
	}
	return merged, nil
}

// Where merges a plain filter map into the condition.
func (c Condition) Where(params map[string]any) Condition {
	out := c.clone()
	out.conditions = mergeMaps(c.conditions, params)
	return out
}

// Without returns a copy lacking the given top level keys.
func (c Condition) Without(keys ...string) Condition {
	out := c.clone()
	for _, key := range keys {
		delete(out.conditions, key)
	}
	return out
}

// WithPagination enables pagination for the given window.
func (c Condition) WithPagination(page, perPage int) Condition {
	out := c.clone()
	if page < 1 {
		page = 1
	}
	out.pagination = Pagination{Enabled: true, Page: page, PerPage: perPage}
	return out
}

// WithIncludes appends association names to the eager-load list.
func (c Condition) WithIncludes(names ...string) Condition {
	out := c.clone()
	out.includes = unionStrings(c.includes, names)
	return out
}

// AsAssociation marks the condition as scoping an association fetch served
// from remotePath on behalf of owner.
func (c Condition) AsAssociation(remotePath string, owner *Condition) Condition {
	out := c.clone()
	out.association = true
	out.remotePath = remotePath
	if owner != nil {
		parent := owner.clone()
		out.owner = &parent
	}
	return out
}

// Equal reports whether both conditions produce the same signature.
func (c Condition) Equal(other Condition) bool {
	return c.Signature() == other.Signature()
}

// Signature returns a canonical representation that does not depend on map
// iteration order.
func (c Condition) Signature() string {
	var b strings.Builder
	b.WriteString(c.class)
	b.WriteString("|c:")
	b.WriteString(canonical(c.conditions))
	if c.pagination.Enabled {
		fmt.Fprintf(&b, "|p:%d/%d", c.pagination.Page, c.pagination.PerPage)
	}
	if len(c.includes) > 0 {
		b.WriteString("|i:")
		b.WriteString(strings.Join(c.includes, ","))
	}
	if c.association {
		b.WriteString("|a:")
		b.WriteString(c.remotePath)
	}
	if c.owner != nil {
		b.WriteString("|o:{")
		b.WriteString(c.owner.Signature())
		b.WriteString("}")
	}
	return b.String()
}

func (c Condition) String() string { return c.Signature() }

func (c Condition) clone() Condition {
	out := c
	out.conditions = cloneMap(c.conditions)
	if out.conditions == nil {
		out.conditions = map[string]any{}
	}
	out.includes = append([]string(nil), c.includes...)
	return out
}

func canonical(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	// encoding/json writes map keys in sorted order.
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Sprintf("%v", m)
	}
	return string(data)
}

func mergeMaps(base, overlay map[string]any) map[string]any {
	out := cloneMap(base)
	if out == nil {
		out = make(map[string]any, len(overlay))
	}
	for key, value := range overlay {
		existing, ok := out[key].(map[string]any)
		incoming, isMap := value.(map[string]any)
		if ok && isMap {
			out[key] = mergeMaps(existing, incoming)
			continue
		}
		out[key] = cloneValue(value)
	}
	return out
}

func unionStrings(base, extra []string) []string {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, name := range list {
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for key, value := range m {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(out, rv)
		return out.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), iter.Value())
		}
		return out.Interface()
	default:
		return v
	}
}
