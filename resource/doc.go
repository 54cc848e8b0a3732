// Package resource resolves declarative queries against a remote record
// store.
//
// Classes are declared with Define and grouped in a Schema. A Client binds a
// Schema to a store.Store and hands out immutable Query builders:
//
//	users, _ := resource.Define("User",
//		resource.HasMany("posts"),
//		resource.BelongsTo("team"),
//		resource.Scope(scope.Static("active", map[string]any{"active": true})),
//	)
//	schema, _ := resource.NewSchema(users, posts, teams)
//	client, _ := resource.NewClient(st, schema)
//
//	user, err := client.Query("User").Scope("active").Includes("posts").Find(ctx, 1)
//
// Composition never touches the store; the first Resolve on a Finder does.
// Included associations are fetched in batches of at most MaxBatchSize ids
// and attached only when every batch succeeded.
//
// Records expose their associations through proxies. A proxy loads each
// distinct scope signature at most once until Reload, and derived proxies
// share the memo of the proxy they came from.
package resource
