package resource

import (
	"fmt"
)

// decode turns a store body into records of class. Bodies may be a list of
// objects, a single object, or an object wrapping the list under assocKey.
func (c *Client) decode(class *Class, body any, assocKey string) ([]*Record, error) {
	switch t := body.(type) {
	case nil:
		return []*Record{}, nil
	case []any:
		records := make([]*Record, 0, len(t))
		for i, item := range t {
			attrs, err := asAttributes(item)
			if err != nil {
				return nil, fmt.Errorf("decode %s[%d]: %w", class.Name(), i, err)
			}
			records = append(records, c.newRecord(class, attrs))
		}
		return records, nil
	case []map[string]any:
		records := make([]*Record, 0, len(t))
		for _, attrs := range t {
			records = append(records, c.newRecord(class, attrs))
		}
		return records, nil
	default:
		attrs, err := asAttributes(body)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", class.Name(), err)
		}
		if assocKey != "" {
			for _, key := range []string{assocKey, toSnake(assocKey)} {
				if nested, ok := attrs[key]; ok {
					return c.decode(class, nested, "")
				}
			}
		}
		return []*Record{c.newRecord(class, attrs)}, nil
	}
}

func asAttributes(v any) (map[string]any, error) {
	switch t := v.(type) {
	case map[string]any:
		return t, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = val
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected an object, got %T", v)
	}
}
