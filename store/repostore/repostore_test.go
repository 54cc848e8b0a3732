package repostore

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-remote-resource/resource"
	"github.com/goliatone/go-remote-resource/store"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUser represents a test entity
type TestUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	TeamID string `json:"team_id"`
}

// mockReader records the calls it receives and answers from fixed data.
type mockReader[T any] struct {
	mu        sync.Mutex
	calls     []string
	criteria  int
	byID      map[string]T
	list      []T
	total     int
	listError error
}

func (m *mockReader[T]) recordCall(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, method)
}

func (m *mockReader[T]) getCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockReader[T]) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error) {
	m.recordCall("GetByID:" + id)
	if record, ok := m.byID[id]; ok {
		return record, nil
	}
	var zero T
	return zero, sql.ErrNoRows
}

func (m *mockReader[T]) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error) {
	m.recordCall("List")
	m.mu.Lock()
	m.criteria = len(criteria)
	m.mu.Unlock()
	if m.listError != nil {
		return nil, 0, m.listError
	}
	return m.list, m.total, nil
}

func newUserReader() *mockReader[TestUser] {
	users := []TestUser{
		{ID: "1", Name: "ada", TeamID: "7"},
		{ID: "2", Name: "bob", TeamID: "7"},
	}
	return &mockReader[TestUser]{
		byID:  map[string]TestUser{"1": users[0], "2": users[1]},
		list:  users,
		total: 2,
	}
}

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
		want  Request
	}{
		{
			name:  "empty",
			query: url.Values{},
			want:  Request{},
		},
		{
			name:  "equality and set",
			query: url.Values{"active": {"true"}, "id[]": {"1", "2"}},
			want: Request{Filters: []Filter{
				{Column: "active", Values: []string{"true"}},
				{Column: "id", Values: []string{"1", "2"}, Set: true},
			}},
		},
		{
			name:  "repeated scalar becomes a set",
			query: url.Values{"name": {"a", "b"}},
			want:  Request{Filters: []Filter{{Column: "name", Values: []string{"a", "b"}, Set: true}}},
		},
		{
			name:  "pagination",
			query: url.Values{"page": {"3"}, "per_page": {"20"}},
			want:  Request{Limit: 20, Offset: 40},
		},
		{
			name:  "page without per page is ignored",
			query: url.Values{"page": {"3"}},
			want:  Request{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuery(tt.query)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("request mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseQuery_Rejects(t *testing.T) {
	for _, query := range []url.Values{
		{"birthday[date]": {"2020-01-01"}},
		{"drop table": {"x"}},
		{"per_page": {"-1"}},
		{"page": {"x"}, "per_page": {"1"}},
	} {
		_, err := ParseQuery(query)
		assert.ErrorIs(t, err, ErrUnsupportedFilter, "%v", query)
	}
}

func TestRequest_Criteria(t *testing.T) {
	req := Request{
		Filters: []Filter{{Column: "a", Values: []string{"1"}}, {Column: "b", Values: []string{"1", "2"}, Set: true}},
		Limit:   10,
		Offset:  20,
	}
	assert.Len(t, req.Criteria(), 4)
	assert.Len(t, Request{Limit: 5}.Criteria(), 1)
	assert.Empty(t, Request{}.Criteria())
}

func TestStore_CollectionAndElement(t *testing.T) {
	reader := newUserReader()
	s := New()
	s.Mount("users", FromRepository[TestUser](reader, nil))
	ctx := context.Background()

	resp, err := s.Get(ctx, "/users", url.Values{"team_id": {"7"}, "page": {"1"}, "per_page": {"10"}})
	require.NoError(t, err)
	list, ok := resp.Body.([]any)
	require.True(t, ok)
	require.Len(t, list, 2)
	assert.Equal(t, "ada", list[0].(map[string]any)["name"])
	total, _ := resp.TotalEntries()
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, reader.criteria, "one filter plus the limit")

	resp, err = s.Get(ctx, "/users/2", nil)
	require.NoError(t, err)
	assert.Equal(t, "bob", resp.Body.(map[string]any)["name"])

	assert.Equal(t, []string{"List", "GetByID:2"}, reader.getCalls())
}

func TestStore_Errors(t *testing.T) {
	reader := newUserReader()
	s := New()
	s.Mount("/users/", FromRepository[TestUser](reader, nil))
	ctx := context.Background()

	_, err := s.Get(ctx, "/users/99", nil)
	assert.True(t, store.IsNotFound(err), "missing rows map to 404")

	_, err = s.Get(ctx, "/teams", nil)
	assert.True(t, store.IsNotFound(err), "unmounted collections map to 404")

	_, err = s.Get(ctx, "/users", url.Values{"profile[age]": {"3"}})
	var statusErr *store.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Code)

	boom := errors.New("connection reset")
	reader.listError = boom
	_, err = s.Get(ctx, "/users", nil)
	assert.ErrorIs(t, err, boom)
	assert.False(t, store.IsNotFound(err))
}

func TestStore_CustomNotFoundAndEncoder(t *testing.T) {
	gone := errors.New("gone")
	reader := &mockReader[TestUser]{listError: gone}
	s := New(WithNotFound(func(err error) bool { return errors.Is(err, gone) }))
	s.Mount("users", FromRepository[TestUser](reader, func(u TestUser) (map[string]any, error) {
		return map[string]any{"id": u.ID, "label": u.Name}, nil
	}))

	_, err := s.Get(context.Background(), "/users", nil)
	assert.True(t, store.IsNotFound(err))
}

func TestStore_DrivesResourceClient(t *testing.T) {
	users := newUserReader()
	teams := &mockReader[map[string]any]{
		byID: map[string]map[string]any{"7": {"id": "7", "name": "core"}},
	}
	s := New()
	s.Mount("users", FromRepository[TestUser](users, nil))
	s.Mount("teams", FromRepository[map[string]any](teams, func(m map[string]any) (map[string]any, error) {
		return m, nil
	}))

	userClass, err := resource.Define("User", resource.BelongsTo("team"))
	require.NoError(t, err)
	teamClass, err := resource.Define("Team")
	require.NoError(t, err)
	schema, err := resource.NewSchema(userClass, teamClass)
	require.NoError(t, err)
	client, err := resource.NewClient(s, schema)
	require.NoError(t, err)
	ctx := context.Background()

	rec, err := client.Find(ctx, "User", "1")
	require.NoError(t, err)
	require.NotNil(t, rec)

	team, err := rec.One("team")
	require.NoError(t, err)
	got, err := team.Resolve(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	name, _ := got.Attr("name")
	assert.Equal(t, "core", name)
	assert.Equal(t, []string{"GetByID:7"}, teams.getCalls())

	missing, err := client.Find(ctx, "User", "404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
