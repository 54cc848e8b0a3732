package repostore

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// ErrUnsupportedFilter is returned for query parameters that cannot be
// expressed as a column predicate.
var ErrUnsupportedFilter = errors.New("repostore: unsupported filter")

var columnPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Filter is one column predicate. Set filters match any of Values.
type Filter struct {
	Column string
	Values []string
	Set    bool
}

// Request is a collection GET translated into column predicates and a
// page window.
type Request struct {
	Filters []Filter
	Limit   int
	Offset  int
}

// ParseQuery translates condition query parameters. Keys ending in "[]"
// become IN filters; page and per_page become LIMIT/OFFSET. Nested keys
// are rejected.
func ParseQuery(query url.Values) (Request, error) {
	var req Request

	perPage, err := intParam(query, "per_page")
	if err != nil {
		return Request{}, err
	}
	page, err := intParam(query, "page")
	if err != nil {
		return Request{}, err
	}
	if perPage > 0 {
		if page < 1 {
			page = 1
		}
		req.Limit = perPage
		req.Offset = (page - 1) * perPage
	}

	keys := make([]string, 0, len(query))
	for key := range query {
		if key == "page" || key == "per_page" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		column, set := strings.CutSuffix(key, "[]")
		if !columnPattern.MatchString(column) {
			return Request{}, fmt.Errorf("%w: %q", ErrUnsupportedFilter, key)
		}
		values := append([]string(nil), query[key]...)
		if !set && len(values) > 1 {
			set = true
		}
		req.Filters = append(req.Filters, Filter{Column: column, Values: values, Set: set})
	}
	return req, nil
}

func intParam(query url.Values, name string) (int, error) {
	raw := query.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrUnsupportedFilter, name, raw)
	}
	return n, nil
}

// Criteria converts the request into bun select criteria.
func (r Request) Criteria() []repository.SelectCriteria {
	criteria := make([]repository.SelectCriteria, 0, len(r.Filters)+2)
	for _, f := range r.Filters {
		criteria = append(criteria, filterCriteria(f))
	}
	if r.Limit > 0 {
		limit := r.Limit
		criteria = append(criteria, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Limit(limit)
		})
	}
	if r.Offset > 0 {
		offset := r.Offset
		criteria = append(criteria, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Offset(offset)
		})
	}
	return criteria
}

func filterCriteria(f Filter) repository.SelectCriteria {
	column := f.Column
	values := append([]string(nil), f.Values...)
	if f.Set {
		return func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("? IN (?)", bun.Ident(column), bun.In(values))
		}
	}
	var value string
	if len(values) > 0 {
		value = values[0]
	}
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("? = ?", bun.Ident(column), value)
	}
}
