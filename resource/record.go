package resource

import (
	"fmt"
	"sync"

	"github.com/goliatone/go-remote-resource/condition"
)

// Record is a decoded resource instance. Attribute access is safe for
// concurrent use.
type Record struct {
	class  *Class
	client *Client

	mu    sync.RWMutex
	attrs map[string]any

	assocMu sync.Mutex
	cores   map[string]*proxyCore
}

func (c *Client) newRecord(class *Class, attrs map[string]any) *Record {
	copied := make(map[string]any, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	return &Record{
		class:  class,
		client: c,
		attrs:  copied,
		cores:  make(map[string]*proxyCore),
	}
}

// Class returns the record's class.
func (r *Record) Class() *Class { return r.class }

// ID returns the primary key value.
func (r *Record) ID() any {
	v, _ := r.Attr(r.class.PrimaryKey())
	return v
}

// Attr returns the attribute stored under name.
func (r *Record) Attr(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.attrs[name]
	return v, ok
}

// SetAttr replaces the attribute stored under name.
func (r *Record) SetAttr(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attrs[name] = value
}

// Attributes returns a shallow copy of the attribute map.
func (r *Record) Attributes() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]any, len(r.attrs))
	for k, v := range r.attrs {
		out[k] = v
	}
	return out
}

// ElementPath returns the store path addressing this record.
func (r *Record) ElementPath() string {
	return r.class.ElementPath(r.ID())
}

// Signature identifies the record by class and primary key.
func (r *Record) Signature() string {
	return toSnake(r.class.Name()) + "#" + idKey(r.ID())
}

// ReadForeignKey returns the value of the foreign key attribute backing the
// named association.
func (r *Record) ReadForeignKey(name string) (any, bool) {
	assoc, ok := r.class.Association(name)
	if !ok {
		return nil, false
	}
	return r.Attr(assoc.ForeignKey)
}

// WriteForeignKey stores value in the foreign key attribute backing the
// named association.
func (r *Record) WriteForeignKey(name string, value any) error {
	assoc, ok := r.class.Association(name)
	if !ok {
		return fmt.Errorf("%w: %q on %s", ErrUnknownAssociation, name, r.class.Name())
	}
	r.SetAttr(assoc.ForeignKey, value)
	return nil
}

// foreignKeys returns the association key(s) held by the record and whether
// the attribute is present at all.
func (r *Record) foreignKeys(assoc Association) ([]any, bool) {
	v, ok := r.Attr(assoc.ForeignKey)
	if !ok {
		return nil, false
	}
	return toList(v), true
}

// Many returns the proxy for a has-many association.
func (r *Record) Many(name string) (*MultiProxy, error) {
	core, err := r.proxyCore(name)
	if err != nil {
		return nil, err
	}
	if !core.assoc.Many() {
		return nil, fmt.Errorf("%w: %s.%s is %s, not has_many", ErrUnknownAssociation, r.class.Name(), name, core.assoc.Kind)
	}
	return newMultiProxy(core), nil
}

// One returns the proxy for a belongs-to or has-one association.
func (r *Record) One(name string) (*SingleProxy, error) {
	core, err := r.proxyCore(name)
	if err != nil {
		return nil, err
	}
	if core.assoc.Many() {
		return nil, fmt.Errorf("%w: %s.%s is has_many", ErrUnknownAssociation, r.class.Name(), name)
	}
	return newSingleProxy(core), nil
}

// proxyCore returns the shared proxy state for the named association,
// creating it on first access.
func (r *Record) proxyCore(name string) (*proxyCore, error) {
	r.assocMu.Lock()
	defer r.assocMu.Unlock()
	if core, ok := r.cores[name]; ok {
		return core, nil
	}
	assoc, target, err := r.client.schema.Target(r.class, name)
	if err != nil {
		return nil, err
	}
	core := &proxyCore{
		client:     r.client,
		owner:      r,
		ownerClass: r.class,
		assoc:      assoc,
		target:     target,
		memo:       newMemo(),
	}
	r.cores[name] = core
	return core, nil
}

// seed stores eager-loaded children under the unscoped proxy signature for
// cond so the first access does not hit the store when cond matches the
// proxy root condition.
func (r *Record) seed(name string, cond condition.Condition, children []*Record) error {
	core, err := r.proxyCore(name)
	if err != nil {
		return err
	}
	core.memo.seed(core.signature(nil, cond), children)
	return nil
}
