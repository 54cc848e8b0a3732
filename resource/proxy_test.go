package resource

import (
	"context"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findTestResource(t *testing.T, client *Client, id any) *Record {
	t.Helper()
	rec, err := client.Find(context.Background(), "TestResource", id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec
}

func TestMultiProxy_ScopedSignatureLoadsOnce(t *testing.T) {
	st := testStore()
	client := testClient(t, st)
	ctx := context.Background()
	rec := findTestResource(t, client, 1)

	proxy, err := rec.Many("has_many_objects")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		visible, err := proxy.Scope("visible").Resolve(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"1"}, recordIDs(visible))
	}
	assert.Equal(t, 2, st.RequestCount(), "owner fetch plus one scoped load")
	assert.Equal(t, int64(1), proxy.Loads())

	last := st.Requests()[1]
	assert.Equal(t, "/has_many_objects", last.Path)
	assert.Equal(t, []string{"1", "2"}, last.Query["id[]"])
	assert.Equal(t, "true", last.Query.Get("visible"))
}

func TestMultiProxy_ConcurrentResolveLoadsOnce(t *testing.T) {
	st := testStore()
	client := testClient(t, st)
	rec := findTestResource(t, client, 1)

	proxy, err := rec.Many("has_many_objects")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			records, err := proxy.Resolve(context.Background())
			if err == nil && len(records) != 2 {
				t.Errorf("expected 2 records, got %d", len(records))
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), proxy.Loads())
	assert.Equal(t, 2, st.RequestCount())
}

func TestMultiProxy_SiblingScopesAreIndependent(t *testing.T) {
	st := testStore()
	client := testClient(t, st)
	ctx := context.Background()
	rec := findTestResource(t, client, 1)

	proxy, err := rec.Many("has_many_objects")
	require.NoError(t, err)

	all, err := proxy.Resolve(ctx)
	require.NoError(t, err)
	visible, err := proxy.Scope("visible").Resolve(ctx)
	require.NoError(t, err)
	named, err := proxy.Where(map[string]any{"name": "b"}).Resolve(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, recordIDs(all))
	assert.Equal(t, []string{"1"}, recordIDs(visible))
	assert.Equal(t, []string{"2"}, recordIDs(named))
	assert.Equal(t, int64(3), proxy.Loads())

	assert.NotEqual(t, proxy.Signature(), proxy.Scope("visible").Signature())
	assert.Equal(t, proxy.Scope("visible").Signature(), proxy.Scope("visible").Signature())

	_, err = proxy.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), proxy.Loads(), "the unscoped load stays memoized")
}

func TestMultiProxy_ReloadRefetches(t *testing.T) {
	st := testStore()
	client := testClient(t, st)
	ctx := context.Background()
	rec := findTestResource(t, client, 2)

	proxy, err := rec.Many("has_many_objects")
	require.NoError(t, err)

	_, err = proxy.Resolve(ctx)
	require.NoError(t, err)
	proxy.Reload()
	children, err := proxy.Resolve(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"3"}, recordIDs(children))
	assert.Equal(t, int64(2), proxy.Loads())
	assert.Equal(t, 3, st.RequestCount())
}

func TestMultiProxy_ResolveReturnsCopies(t *testing.T) {
	client := testClient(t, testStore())
	ctx := context.Background()
	rec := findTestResource(t, client, 1)

	proxy, err := rec.Many("has_many_objects")
	require.NoError(t, err)

	first, err := proxy.Resolve(ctx)
	require.NoError(t, err)
	first[0] = nil

	second, err := proxy.Resolve(ctx)
	require.NoError(t, err)
	assert.NotNil(t, second[0])
}

func TestMultiProxy_NestedLoadWithoutForeignKeys(t *testing.T) {
	st := testStore()
	st.PutBody("/test_resources/9/has_many_objects", map[string]any{
		"has_many_objects": []any{
			map[string]any{"id": 7, "name": "nested"},
		},
	})
	client := testClient(t, st)
	ctx := context.Background()

	rec, err := client.NewRecord("TestResource", map[string]any{"id": 9})
	require.NoError(t, err)
	proxy, err := rec.Many("has_many_objects")
	require.NoError(t, err)

	children, err := proxy.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"7"}, recordIDs(children))
	assert.Equal(t, "/test_resources/9/has_many_objects", st.Requests()[0].Path)

	ids, err := proxy.ForeignKeys(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, "7", idKey(ids[0]))
	assert.Equal(t, 1, st.RequestCount())
}

func TestMultiProxy_ForeignKeysFromOwner(t *testing.T) {
	st := testStore()
	client := testClient(t, st)
	rec := findTestResource(t, client, 1)

	proxy, err := rec.Many("has_many_objects")
	require.NoError(t, err)
	ids, err := proxy.ForeignKeys(context.Background())
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Equal(t, 1, st.RequestCount(), "owner attributes answer without a load")
}

func TestMultiProxy_ScopeErrors(t *testing.T) {
	client := testClient(t, testStore())
	rec := findTestResource(t, client, 1)

	proxy, err := rec.Many("has_many_objects")
	require.NoError(t, err)

	scoped := proxy.Scope("missing").Scope("visible")
	require.Error(t, scoped.Err())
	_, err = scoped.Resolve(context.Background())
	assert.ErrorIs(t, err, scoped.Err())
}

func TestRecord_AssociationKindMismatch(t *testing.T) {
	client := testClient(t, testStore())
	rec := findTestResource(t, client, 1)

	_, err := rec.One("has_many_objects")
	assert.ErrorIs(t, err, ErrUnknownAssociation)
	_, err = rec.Many("belongs_to_object")
	assert.ErrorIs(t, err, ErrUnknownAssociation)
	_, err = rec.Many("nothing")
	assert.ErrorIs(t, err, ErrUnknownAssociation)
}

func TestSingleProxy_BelongsToResolve(t *testing.T) {
	st := testStore()
	client := testClient(t, st)
	ctx := context.Background()
	rec := findTestResource(t, client, 1)

	proxy, err := rec.One("belongs_to_object")
	require.NoError(t, err)

	parent, err := proxy.Resolve(ctx)
	require.NoError(t, err)
	require.NotNil(t, parent)
	name, _ := parent.Attr("name")
	assert.Equal(t, "parent one", name)
	assert.Equal(t, "/belongs_to_objects/1", st.Requests()[1].Path)

	_, err = proxy.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), proxy.Loads())

	fk, err := proxy.ForeignKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", idKey(fk))
}

func TestSingleProxy_BelongsToWithoutKeyIsEmpty(t *testing.T) {
	st := testStore()
	client := testClient(t, st)
	rec := findTestResource(t, client, 3)

	proxy, err := rec.One("belongs_to_object")
	require.NoError(t, err)

	parent, err := proxy.Resolve(context.Background())
	require.NoError(t, err)
	assert.Nil(t, parent)
	assert.Equal(t, 1, st.RequestCount())
}

func TestSingleProxy_SetWritesForeignKey(t *testing.T) {
	st := testStore()
	client := testClient(t, st)
	ctx := context.Background()
	rec := findTestResource(t, client, 3)

	parent, err := client.NewRecord("BelongsToObject", map[string]any{"id": 2, "name": "assigned"})
	require.NoError(t, err)

	proxy, err := rec.One("belongs_to_object")
	require.NoError(t, err)
	require.NoError(t, proxy.Set(parent))

	fk, ok := rec.ReadForeignKey("belongs_to_object")
	require.True(t, ok)
	assert.Equal(t, 2, fk)

	got, err := proxy.Resolve(ctx)
	require.NoError(t, err)
	assert.Same(t, parent, got)
	assert.Equal(t, 1, st.RequestCount(), "assigned records resolve without a fetch")
	assert.Equal(t, int64(0), proxy.Loads())

	require.NoError(t, proxy.Set(nil))
	fk, _ = rec.ReadForeignKey("belongs_to_object")
	assert.Nil(t, fk)
	got, err = proxy.Resolve(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSingleProxy_HasOneLoadsNested(t *testing.T) {
	st := testStore()
	st.PutBody("/test_resources/1/has_one_object", map[string]any{"id": 5, "name": "only"})
	client := testClient(t, st)
	ctx := context.Background()
	rec := findTestResource(t, client, 1)

	proxy, err := rec.One("has_one_object")
	require.NoError(t, err)

	child, err := proxy.Resolve(ctx)
	require.NoError(t, err)
	require.NotNil(t, child)
	assert.Equal(t, "5", idKey(child.ID()))
	assert.Equal(t, "/test_resources/1/has_one_object", st.Requests()[1].Path)

	fk, err := proxy.ForeignKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "5", idKey(fk))
	assert.Equal(t, 2, st.RequestCount())
}

func TestSingleProxy_HasOneMissingIsNil(t *testing.T) {
	client := testClient(t, testStore())
	rec := findTestResource(t, client, 2)

	proxy, err := rec.One("has_one_object")
	require.NoError(t, err)
	child, err := proxy.Resolve(context.Background())
	require.NoError(t, err)
	assert.Nil(t, child)
}

func TestSingleProxy_SetDropsScopedSignatures(t *testing.T) {
	st := testStore()
	client := testClient(t, st)
	ctx := context.Background()
	rec := findTestResource(t, client, 1)

	proxy, err := rec.One("belongs_to_object")
	require.NoError(t, err)
	scoped := proxy.Scope("current")
	require.NoError(t, scoped.Err())

	for i := 0; i < 2; i++ {
		parent, err := scoped.Resolve(ctx)
		require.NoError(t, err)
		require.NotNil(t, parent)
		assert.Equal(t, "1", idKey(parent.ID()))
	}
	assert.Equal(t, 2, st.RequestCount())
	assert.Equal(t, int64(1), proxy.Loads())

	assigned, err := client.NewRecord("BelongsToObject", map[string]any{"id": 2, "name": "assigned"})
	require.NoError(t, err)
	require.NoError(t, proxy.Set(assigned))

	parent, err := scoped.Resolve(ctx)
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, "2", idKey(parent.ID()), "the scoped signature follows the new foreign key")
	assert.Equal(t, 3, st.RequestCount())
	assert.Equal(t, "/belongs_to_objects/2", st.Requests()[2].Path)
	assert.Equal(t, int64(2), proxy.Loads())

	unscoped, err := proxy.Resolve(ctx)
	require.NoError(t, err)
	assert.Same(t, assigned, unscoped)
	assert.Equal(t, 3, st.RequestCount())
}

func TestSingleProxy_RefreshReloadsOneSignature(t *testing.T) {
	st := testStore()
	client := testClient(t, st)
	ctx := context.Background()
	rec := findTestResource(t, client, 1)

	proxy, err := rec.One("belongs_to_object")
	require.NoError(t, err)
	scoped := proxy.Scope("current")

	_, err = proxy.Resolve(ctx)
	require.NoError(t, err)
	_, err = scoped.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), proxy.Loads())

	_, err = scoped.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), proxy.Loads())

	_, err = proxy.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), proxy.Loads(), "the unscoped signature stays memoized")
}

func detachedProxy(t *testing.T, client *Client) *MultiProxy {
	t.Helper()
	rec, err := client.NewRecord("TestResource", map[string]any{"id": 1, "has_many_object_ids": []any{1}})
	require.NoError(t, err)
	proxy, err := rec.Many("has_many_objects")
	require.NoError(t, err)
	return proxy
}

func TestProxy_KeepsOwnerReachable(t *testing.T) {
	client := testClient(t, testStore())
	proxy := detachedProxy(t, client)

	for i := 0; i < 3; i++ {
		runtime.GC()
		children, err := proxy.Resolve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"1"}, recordIDs(children))
		proxy.Reload()
	}

	ids, err := proxy.ForeignKeys(context.Background())
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, "1", idKey(ids[0]))
}
