package resource

import (
	"context"
	"fmt"

	"github.com/goliatone/go-remote-resource/condition"
)

// MultiProxy is a lazily loaded has-many association. Proxies derived with
// Scope or Where share the root memo and are loaded independently per
// signature.
type MultiProxy struct {
	core   *proxyCore
	cond   condition.Condition
	scopes []string
	err    error
}

func newMultiProxy(core *proxyCore) *MultiProxy {
	return &MultiProxy{core: core, cond: core.rootCondition()}
}

// Association returns the association the proxy serves.
func (p *MultiProxy) Association() Association { return p.core.assoc }

// Condition returns the accumulated condition.
func (p *MultiProxy) Condition() condition.Condition { return p.cond }

// Err returns the first scope composition error.
func (p *MultiProxy) Err() error { return p.err }

// Signature is the memo key of this proxy.
func (p *MultiProxy) Signature() string {
	return p.core.signature(p.scopes, p.cond)
}

// Scope derives a proxy narrowed by a target class scope.
func (p *MultiProxy) Scope(name string, args ...any) *MultiProxy {
	if p.err != nil {
		return p
	}
	scoped, err := p.core.target.Scopes().Apply(p.core.target.Name(), name, args...)
	if err != nil {
		return p.derive(p.cond, name, err)
	}
	merged, err := p.cond.Merge(scoped)
	return p.derive(merged, name, err)
}

// Where derives a proxy narrowed by a plain filter map.
func (p *MultiProxy) Where(params map[string]any) *MultiProxy {
	if p.err != nil {
		return p
	}
	return p.derive(p.cond.Where(params), "where", nil)
}

func (p *MultiProxy) derive(cond condition.Condition, scopeName string, err error) *MultiProxy {
	scopes := make([]string, 0, len(p.scopes)+1)
	scopes = append(scopes, p.scopes...)
	scopes = append(scopes, scopeName)
	return &MultiProxy{core: p.core, cond: cond, scopes: scopes, err: err}
}

// Resolve returns the associated records, loading them on first access.
func (p *MultiProxy) Resolve(ctx context.Context) ([]*Record, error) {
	if p.err != nil {
		return nil, p.err
	}
	records, err := p.core.resolve(ctx, p.Signature(), p.load)
	if err != nil {
		return nil, err
	}
	return cloneRecords(records), nil
}

func (p *MultiProxy) load(ctx context.Context) ([]*Record, error) {
	owner := p.core.owner
	if ids, ok := owner.foreignKeys(p.core.assoc); ok {
		return p.core.loadByIDs(ctx, p.cond, ids)
	}
	return p.core.loadNested(ctx, owner, p.cond)
}

// Refresh drops the memoized records of this signature only and loads them
// again.
func (p *MultiProxy) Refresh(ctx context.Context) ([]*Record, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.core.memo.forget(p.Signature())
	return p.Resolve(ctx)
}

// Reload forgets every memoized signature of the association.
func (p *MultiProxy) Reload() {
	p.core.memo.clear()
}

// Loads returns how many store loads the association performed.
func (p *MultiProxy) Loads() int64 {
	return p.core.memo.loads.Load()
}

// ForeignKeys returns the ids held by the owner, loading the association
// and deriving them when the owner lacks the attribute.
func (p *MultiProxy) ForeignKeys(ctx context.Context) ([]any, error) {
	owner := p.core.owner
	if ids, ok := owner.foreignKeys(p.core.assoc); ok {
		return ids, nil
	}
	records, err := p.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("derive %s foreign keys: %w", p.core.assoc.Name, err)
	}
	ids := make([]any, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID())
	}
	return ids, nil
}
