package httpstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goliatone/go-remote-resource/resource"
	"github.com/goliatone/go-remote-resource/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeAPI serves users and posts and records every request it receives.
type fakeAPI struct {
	mu       sync.Mutex
	requests []*http.Request
}

func (f *fakeAPI) record(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c.Request.Clone(context.Background()))
}

func (f *fakeAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeAPI) last() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

var posts = []gin.H{
	{"id": 10, "title": "first"},
	{"id": 11, "title": "second"},
	{"id": 12, "title": "third"},
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		api.record(c)
		c.Next()
	})

	v1 := r.Group("/api/v1")
	v1.GET("/users", func(c *gin.Context) {
		c.Header(store.HeaderTotalEntries, "2")
		c.Header(store.HeaderOffset, "0")
		c.JSON(http.StatusOK, []gin.H{
			{"id": 1, "name": "ada", "post_ids": []int{10, 11}},
			{"id": 2, "name": "bob", "post_ids": []int{12}},
		})
	})
	v1.GET("/users/:id", func(c *gin.Context) {
		if c.Param("id") != "1" {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": 1, "name": "ada", "post_ids": []int{10, 11}})
	})
	v1.GET("/posts", func(c *gin.Context) {
		wanted := map[string]bool{}
		for _, id := range c.QueryArray("id[]") {
			wanted[id] = true
		}
		out := []gin.H{}
		for _, post := range posts {
			if len(wanted) == 0 || wanted[strconv.Itoa(post["id"].(int))] {
				out = append(out, post)
			}
		}
		c.JSON(http.StatusOK, out)
	})
	v1.GET("/packed", func(c *gin.Context) {
		payload, err := msgpack.Marshal(map[string]any{"id": 5, "tags": []string{"a", "b"}})
		if err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Data(http.StatusOK, "application/msgpack", payload)
	})
	v1.GET("/broken", func(c *gin.Context) {
		c.String(http.StatusBadGateway, "upstream down")
	})
	v1.GET("/slow", func(c *gin.Context) {
		time.Sleep(200 * time.Millisecond)
		c.JSON(http.StatusOK, gin.H{})
	})
	v1.GET("/empty", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return api, srv
}

func TestNew_Validation(t *testing.T) {
	_, err := New("not a url")
	assert.Error(t, err)
	_, err = New("://bad")
	assert.Error(t, err)

	s, err := New("http://example.com/api/")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/api/users/1?a=b", s.URL("users/1", url.Values{"a": {"b"}}))
}

func TestGet_DecodesJSONWithHeaders(t *testing.T) {
	api, srv := newFakeAPI(t)
	s, err := New(srv.URL+"/api/v1", WithHeader("Authorization", "Bearer token"))
	require.NoError(t, err)

	resp, err := s.Get(context.Background(), "/users", url.Values{"active": {"true"}})
	require.NoError(t, err)

	list, ok := resp.Body.([]any)
	require.True(t, ok, "body is %T", resp.Body)
	require.Len(t, list, 2)
	first := list[0].(map[string]any)
	assert.Equal(t, json.Number("1"), first["id"])

	total, ok := resp.TotalEntries()
	require.True(t, ok)
	assert.Equal(t, 2, total)

	req := api.last()
	assert.Equal(t, "/api/v1/users", req.URL.Path)
	assert.Equal(t, "true", req.URL.Query().Get("active"))
	assert.Equal(t, "Bearer token", req.Header.Get("Authorization"))
	assert.NotEmpty(t, req.Header.Get(HeaderRequestID))
	assert.Contains(t, req.Header.Get("Accept"), "application/json")
}

func TestGet_DecodesMsgpack(t *testing.T) {
	_, srv := newFakeAPI(t)
	s, err := New(srv.URL + "/api/v1")
	require.NoError(t, err)

	resp, err := s.Get(context.Background(), "/packed", nil)
	require.NoError(t, err)

	body, ok := resp.Body.(map[string]any)
	require.True(t, ok, "body is %T", resp.Body)
	assert.EqualValues(t, 5, body["id"])
	assert.Equal(t, []any{"a", "b"}, body["tags"])
}

func TestGet_StatusErrors(t *testing.T) {
	_, srv := newFakeAPI(t)
	s, err := New(srv.URL + "/api/v1")
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "/users/99", nil)
	assert.True(t, store.IsNotFound(err))

	_, err = s.Get(context.Background(), "/broken", nil)
	var statusErr *store.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
	assert.Equal(t, "/broken", statusErr.Path)
	assert.Equal(t, "upstream down", string(statusErr.Body))
	assert.False(t, store.IsNotFound(err))
}

func TestGet_EmptyBody(t *testing.T) {
	_, srv := newFakeAPI(t)
	s, err := New(srv.URL + "/api/v1")
	require.NoError(t, err)

	resp, err := s.Get(context.Background(), "/empty", nil)
	require.NoError(t, err)
	assert.Nil(t, resp.Body)
}

func TestGet_Timeout(t *testing.T) {
	_, srv := newFakeAPI(t)
	s, err := New(srv.URL+"/api/v1", WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "/slow", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStore_DrivesResourceClient(t *testing.T) {
	api, srv := newFakeAPI(t)
	s, err := New(srv.URL+"/api/v1", WithHTTPClient(&http.Client{}))
	require.NoError(t, err)

	users, err := resource.Define("User", resource.HasMany("posts"))
	require.NoError(t, err)
	postClass, err := resource.Define("Post")
	require.NoError(t, err)
	schema, err := resource.NewSchema(users, postClass)
	require.NoError(t, err)
	client, err := resource.NewClient(s, schema)
	require.NoError(t, err)
	ctx := context.Background()

	records, err := client.Query("User").Includes("posts").All(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 2, api.count())
	assert.Equal(t, []string{"10", "11", "12"}, api.last().URL.Query()["id[]"])

	proxy, err := records[0].Many("posts")
	require.NoError(t, err)
	children, err := proxy.Resolve(ctx)
	require.NoError(t, err)
	require.Len(t, children, 2)
	title, _ := children[1].Attr("title")
	assert.Equal(t, "second", title)
	assert.Equal(t, 2, api.count())

	missing, err := client.Find(ctx, "User", 99)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
