// Package condition implements the immutable query description used to
// describe remote record lookups before they run.
//
// A Condition carries a filter tree, an optional page window, an ordered
// eager-load list and, for association fetches, the remote path and the
// owning condition. Conditions are combined with Merge, which never mutates
// either operand:
//
//	active := condition.New("TestResource", map[string]any{"active": true})
//	born := condition.New("TestResource", map[string]any{
//		"birthday": map[string]any{"date": "2020-01-01"},
//	})
//	merged, err := active.Merge(born)
//
// ToQueryParams renders the filter tree using bracket notation
// (birthday[date]=2020-01-01, id[]=1&id[]=2) and Signature renders a
// canonical string suitable for cache keys.
package condition
