package resource

import (
	"context"

	"github.com/goliatone/go-remote-resource/condition"
)

// SingleProxy is a lazily loaded belongs-to or has-one association.
type SingleProxy struct {
	core   *proxyCore
	cond   condition.Condition
	scopes []string
	err    error
}

func newSingleProxy(core *proxyCore) *SingleProxy {
	return &SingleProxy{core: core, cond: core.rootCondition()}
}

// Association returns the association the proxy serves.
func (p *SingleProxy) Association() Association { return p.core.assoc }

// Err returns the first scope composition error.
func (p *SingleProxy) Err() error { return p.err }

// Signature is the memo key of this proxy.
func (p *SingleProxy) Signature() string {
	return p.core.signature(p.scopes, p.cond)
}

// Scope derives a proxy narrowed by a target class scope.
func (p *SingleProxy) Scope(name string, args ...any) *SingleProxy {
	if p.err != nil {
		return p
	}
	next := &SingleProxy{core: p.core, cond: p.cond, scopes: append(append([]string(nil), p.scopes...), name)}
	scoped, err := p.core.target.Scopes().Apply(p.core.target.Name(), name, args...)
	if err != nil {
		next.err = err
		return next
	}
	next.cond, next.err = p.cond.Merge(scoped)
	return next
}

// Resolve returns the associated record, nil when there is none.
func (p *SingleProxy) Resolve(ctx context.Context) (*Record, error) {
	if p.err != nil {
		return nil, p.err
	}
	records, err := p.core.resolve(ctx, p.Signature(), p.load)
	if err != nil {
		return nil, err
	}
	return projectOne(records), nil
}

func (p *SingleProxy) load(ctx context.Context) ([]*Record, error) {
	owner := p.core.owner

	ids, hasKey := owner.foreignKeys(p.core.assoc)
	if hasKey && len(ids) > 0 && ids[0] != nil {
		target := p.core.target
		finder := newFinder(p.core.client, target, KindSingle,
			p.cond.Where(map[string]any{target.PrimaryKey(): ids[0]}),
			target.ElementPath(ids[0]), 0, projectMany)
		return finder.Resolve(ctx)
	}
	if p.core.assoc.Kind == BelongsToKind {
		return []*Record{}, nil
	}
	return p.core.loadNested(ctx, owner, p.cond)
}

// Set replaces the associated record. Every memoized signature is dropped,
// the unscoped one is seeded with rec, and belongs-to associations write
// rec's id into the owner's foreign key.
func (p *SingleProxy) Set(rec *Record) error {
	owner := p.core.owner
	if p.core.assoc.Kind == BelongsToKind {
		var id any
		if rec != nil {
			id = rec.ID()
		}
		if err := owner.WriteForeignKey(p.core.assoc.Name, id); err != nil {
			return err
		}
	}
	p.core.memo.clear()
	seeded := []*Record{}
	if rec != nil {
		seeded = []*Record{rec}
	}
	p.core.memo.seed(p.core.rootSignature(), seeded)
	return nil
}

// Refresh drops the memoized record of this signature only and loads it
// again.
func (p *SingleProxy) Refresh(ctx context.Context) (*Record, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.core.memo.forget(p.Signature())
	return p.Resolve(ctx)
}

// Reload forgets every memoized signature of the association.
func (p *SingleProxy) Reload() {
	p.core.memo.clear()
}

// Loads returns how many store loads the association performed.
func (p *SingleProxy) Loads() int64 {
	return p.core.memo.loads.Load()
}

// ForeignKey returns the key held by the owner, loading the association
// and using the target id when the owner lacks it.
func (p *SingleProxy) ForeignKey(ctx context.Context) (any, error) {
	owner := p.core.owner
	if v, ok := owner.Attr(p.core.assoc.ForeignKey); ok && v != nil {
		return v, nil
	}
	rec, err := p.Resolve(ctx)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.ID(), nil
}
