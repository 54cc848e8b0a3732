package resource

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/goliatone/go-remote-resource/condition"
	"github.com/goliatone/go-remote-resource/store"
	"github.com/puzpuzpuz/xsync/v3"
)

// memo maps a proxy signature to its loaded records. Each signature is
// loaded at most once until cleared, concurrent callers included. Failed
// loads are forgotten so the next access retries.
type memo struct {
	entries *xsync.MapOf[string, *memoEntry]
	loads   atomic.Int64
}

type memoEntry struct {
	once    sync.Once
	records []*Record
	err     error
}

func newMemo() *memo {
	return &memo{entries: xsync.NewMapOf[string, *memoEntry]()}
}

func (m *memo) load(ctx context.Context, sig string, fetch func(context.Context) ([]*Record, error)) ([]*Record, error) {
	entry, _ := m.entries.LoadOrCompute(sig, func() *memoEntry { return &memoEntry{} })
	entry.once.Do(func() {
		m.loads.Add(1)
		entry.records, entry.err = fetch(ctx)
	})
	if entry.err != nil {
		m.entries.Compute(sig, func(current *memoEntry, loaded bool) (*memoEntry, bool) {
			return current, !loaded || current == entry
		})
		return nil, entry.err
	}
	return entry.records, nil
}

func (m *memo) seed(sig string, records []*Record) {
	entry := &memoEntry{records: records}
	entry.once.Do(func() {})
	m.entries.Store(sig, entry)
}

func (m *memo) forget(sig string) {
	m.entries.Delete(sig)
}

func (m *memo) clear() {
	m.entries.Clear()
}

// proxyCore is the state shared by every proxy derived from one association
// of one record. The owner and its cores reference each other; a proxy keeps
// its owner reachable for as long as the proxy is.
type proxyCore struct {
	client     *Client
	owner      *Record
	ownerClass *Class
	assoc      Association
	target     *Class
	memo       *memo
}

// rootCondition is the unscoped condition for association loads. Target
// class pagination is not applied; default includes are.
func (c *proxyCore) rootCondition() condition.Condition {
	cond := condition.New(c.target.Name(), nil)
	if includes := c.target.DefaultCondition().Includes(); len(includes) > 0 {
		cond = cond.WithIncludes(includes...)
	}
	return cond
}

func (c *proxyCore) signature(scopes []string, cond condition.Condition) string {
	return c.client.serializer.SerializeKey(c.assoc.Name, strings.Join(scopes, ","), cond)
}

func (c *proxyCore) rootSignature() string {
	return c.signature(nil, c.rootCondition())
}

func (c *proxyCore) resolve(ctx context.Context, sig string, load func(context.Context) ([]*Record, error)) ([]*Record, error) {
	return c.memo.load(ctx, sig, func(ctx context.Context) ([]*Record, error) {
		c.client.metrics.ProxyLoad(c.ownerClass.Name(), c.assoc.Name)
		c.client.logger.DebugContext(ctx, "proxy load",
			"class", c.ownerClass.Name(),
			"association", c.assoc.Name,
			"signature", sig,
		)
		return load(ctx)
	})
}

// loadByIDs fetches target records by primary key in batches and returns
// them ordered by ids.
func (c *proxyCore) loadByIDs(ctx context.Context, cond condition.Condition, ids []any) ([]*Record, error) {
	ids = dedupeIDs(ids)
	records, err := c.client.fetchByIDs(ctx, c.target, cond, ids, 0)
	if err != nil {
		return nil, err
	}
	records = orderByIDs(c.target, records, ids)
	if err := c.client.eagerLoad(ctx, c.target, records, cond.Includes(), 0); err != nil {
		return nil, err
	}
	return records, nil
}

// loadNested fetches records served under the owner element path.
func (c *proxyCore) loadNested(ctx context.Context, owner *Record, cond condition.Condition) ([]*Record, error) {
	path := store.JoinPath(owner.ElementPath(), c.assoc.RemotePath)
	ownerCond := condition.New(c.ownerClass.Name(), map[string]any{c.ownerClass.PrimaryKey(): owner.ID()})
	finder := newFinder(c.client, c.target, KindAssociation, cond.AsAssociation(path, &ownerCond), path, 0, projectMany)
	finder.assocKey = c.assoc.Name
	return finder.Resolve(ctx)
}

func orderByIDs(class *Class, records []*Record, ids []any) []*Record {
	index := indexByID(class, records)
	out := make([]*Record, 0, len(records))
	for _, id := range ids {
		if rec, ok := index[idKey(id)]; ok {
			out = append(out, rec)
		}
	}
	return out
}

func indexByID(class *Class, records []*Record) map[string]*Record {
	index := make(map[string]*Record, len(records))
	for _, rec := range records {
		v, _ := rec.Attr(class.PrimaryKey())
		index[idKey(v)] = rec
	}
	return index
}

func cloneRecords(records []*Record) []*Record {
	out := make([]*Record, len(records))
	copy(out, records)
	return out
}
