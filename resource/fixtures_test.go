package resource

import (
	"testing"

	"github.com/goliatone/go-remote-resource/scope"
	"github.com/goliatone/go-remote-resource/store"
	"github.com/goliatone/go-remote-resource/store/memstore"
)

func testSchema(t *testing.T) *Schema {
	t.Helper()

	birthday := scope.Func("birthday", func(args scope.Args) (map[string]any, error) {
		return map[string]any{"birthday": map[string]any{"date": args.Get("date")}}, nil
	}, scope.Required("date"))

	inNames := scope.Func("named", func(args scope.Args) (map[string]any, error) {
		return map[string]any{"name": args.Rest()}, nil
	}, scope.Rest("names"))

	testResource, err := Define("TestResource",
		HasMany("has_many_objects"),
		BelongsTo("belongs_to_object"),
		HasOne("has_one_object"),
		Scope(scope.Static("active", map[string]any{"active": true})),
		Scope(birthday),
		Scope(inNames),
	)
	if err != nil {
		t.Fatalf("define TestResource: %v", err)
	}

	hasMany, err := Define("HasManyObject",
		Scope(scope.Static("visible", map[string]any{"visible": true})),
	)
	if err != nil {
		t.Fatalf("define HasManyObject: %v", err)
	}
	belongsTo, err := Define("BelongsToObject",
		Scope(scope.Static("current", map[string]any{"current": true})),
	)
	if err != nil {
		t.Fatalf("define BelongsToObject: %v", err)
	}
	hasOne, err := Define("HasOneObject")
	if err != nil {
		t.Fatalf("define HasOneObject: %v", err)
	}
	ghost, err := Define("Ghost", HasMany("phantoms"))
	if err != nil {
		t.Fatalf("define Ghost: %v", err)
	}

	schema, err := NewSchema(testResource, hasMany, belongsTo, hasOne, ghost)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	return schema
}

func testStore() *memstore.Store {
	st := memstore.New()
	st.Put("/test_resources",
		map[string]any{"id": 1, "name": "first", "active": true, "has_many_object_ids": []any{1, 2}, "belongs_to_object_id": 1},
		map[string]any{"id": 2, "name": "second", "active": true, "has_many_object_ids": []any{3}, "belongs_to_object_id": 2},
		map[string]any{"id": 3, "name": "third", "active": false, "has_many_object_ids": []any{}},
	)
	st.Put("/has_many_objects",
		map[string]any{"id": 1, "name": "a", "visible": true},
		map[string]any{"id": 2, "name": "b", "visible": false},
		map[string]any{"id": 3, "name": "c", "visible": true},
		map[string]any{"id": 4, "name": "d", "visible": true},
	)
	st.Put("/belongs_to_objects",
		map[string]any{"id": 1, "name": "parent one"},
		map[string]any{"id": 2, "name": "parent two"},
	)
	return st
}

func testClient(t *testing.T, st store.Store, opts ...Option) *Client {
	t.Helper()
	client, err := NewClient(st, testSchema(t), opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func recordIDs(records []*Record) []string {
	out := make([]string, len(records))
	for i, rec := range records {
		out[i] = idKey(rec.ID())
	}
	return out
}
