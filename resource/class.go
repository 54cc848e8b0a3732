package resource

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-remote-resource/condition"
	"github.com/goliatone/go-remote-resource/scope"
)

// Class is an immutable resource declaration: where records live, how they
// are keyed, which associations and scopes they expose and which default
// scopes seed every query.
type Class struct {
	name         string
	path         string
	primaryKey   string
	associations map[string]Association
	order        []string
	scopes       *scope.Registry
	includes     []string
	perPage      int
}

// ClassOption configures a class declaration.
type ClassOption func(*classBuilder) error

type classBuilder struct {
	class *Class
}

// Define declares a class. The collection path defaults to the pluralized
// snake case name and the primary key to "id".
func Define(name string, opts ...ClassOption) (*Class, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: class name must be provided", ErrInvalidDeclaration)
	}
	reg, _ := scope.NewRegistry()
	c := &Class{
		name:         name,
		path:         collectionPath(name),
		primaryKey:   "id",
		associations: make(map[string]Association),
		scopes:       reg,
	}
	if err := c.apply(opts); err != nil {
		return nil, err
	}
	return c, nil
}

// Extend declares a new class copying the receiver's configuration and
// applying opts on top. The path is re-derived from name unless set by opts.
// The receiver is left untouched.
func (c *Class) Extend(name string, opts ...ClassOption) (*Class, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: class name must be provided", ErrInvalidDeclaration)
	}
	child := c.clone()
	child.name = name
	child.path = collectionPath(name)
	if err := child.apply(opts); err != nil {
		return nil, err
	}
	return child, nil
}

func (c *Class) apply(opts []ClassOption) error {
	b := &classBuilder{class: c}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(b); err != nil {
			return fmt.Errorf("class %s: %w", c.name, err)
		}
	}
	for _, include := range c.includes {
		if _, ok := c.associations[include]; !ok {
			return fmt.Errorf("class %s: %w: default include %q", c.name, ErrUnknownAssociation, include)
		}
	}
	return nil
}

func (c *Class) clone() *Class {
	out := &Class{
		name:         c.name,
		path:         c.path,
		primaryKey:   c.primaryKey,
		associations: make(map[string]Association, len(c.associations)),
		order:        append([]string(nil), c.order...),
		scopes:       c.scopes.Clone(),
		includes:     append([]string(nil), c.includes...),
		perPage:      c.perPage,
	}
	for k, v := range c.associations {
		out.associations[k] = v
	}
	return out
}

// Path sets the collection path.
func Path(path string) ClassOption {
	return func(b *classBuilder) error {
		if strings.Trim(path, "/") == "" {
			return fmt.Errorf("%w: empty path", ErrInvalidDeclaration)
		}
		b.class.path = "/" + strings.Trim(path, "/")
		return nil
	}
}

// PrimaryKey sets the identifying attribute.
func PrimaryKey(attr string) ClassOption {
	return func(b *classBuilder) error {
		if attr == "" {
			return fmt.Errorf("%w: empty primary key", ErrInvalidDeclaration)
		}
		b.class.primaryKey = attr
		return nil
	}
}

// HasMany declares a one-to-many association.
func HasMany(name string, opts ...AssociationOption) ClassOption {
	return association(name, HasManyKind, opts)
}

// BelongsTo declares the owning side of a one-to-one or many-to-one link.
func BelongsTo(name string, opts ...AssociationOption) ClassOption {
	return association(name, BelongsToKind, opts)
}

// HasOne declares a one-to-one association.
func HasOne(name string, opts ...AssociationOption) ClassOption {
	return association(name, HasOneKind, opts)
}

func association(name string, kind AssociationKind, opts []AssociationOption) ClassOption {
	return func(b *classBuilder) error {
		assoc, err := newAssociation(name, kind, opts)
		if err != nil {
			return err
		}
		if _, exists := b.class.associations[name]; !exists {
			b.class.order = append(b.class.order, name)
		}
		b.class.associations[name] = assoc
		return nil
	}
}

// Scope registers a named scope. Redeclaring a name replaces it, which lets
// extended classes override inherited scopes.
func Scope(def scope.Definition) ClassOption {
	return func(b *classBuilder) error {
		return b.class.scopes.Override(def)
	}
}

// Includes adds default eager-loaded associations.
func Includes(names ...string) ClassOption {
	return func(b *classBuilder) error {
		for _, name := range names {
			if !containsString(b.class.includes, name) {
				b.class.includes = append(b.class.includes, name)
			}
		}
		return nil
	}
}

// Paginate enables pagination by default with perPage records per page.
func Paginate(perPage int) ClassOption {
	return func(b *classBuilder) error {
		if perPage < 0 {
			return fmt.Errorf("%w: negative per page", ErrInvalidDeclaration)
		}
		b.class.perPage = perPage
		return nil
	}
}

// Name returns the declared class name.
func (c *Class) Name() string { return c.name }

// Path returns the collection path.
func (c *Class) Path() string { return c.path }

// PrimaryKey returns the identifying attribute.
func (c *Class) PrimaryKey() string { return c.primaryKey }

// ElementPath returns the path of the record identified by id.
func (c *Class) ElementPath(id any) string {
	return c.path + "/" + idKey(id)
}

// Association returns the association declared under name.
func (c *Class) Association(name string) (Association, bool) {
	assoc, ok := c.associations[name]
	return assoc, ok
}

// Associations returns every association in declaration order.
func (c *Class) Associations() []Association {
	out := make([]Association, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.associations[name])
	}
	return out
}

// Scopes returns the class scope registry.
func (c *Class) Scopes() *scope.Registry { return c.scopes }

// DefaultCondition returns the root condition seeded with the class default
// scopes.
func (c *Class) DefaultCondition() condition.Condition {
	cond := condition.New(c.name, nil)
	if len(c.includes) > 0 {
		cond = cond.WithIncludes(c.includes...)
	}
	if c.perPage > 0 {
		cond = cond.WithPagination(1, c.perPage)
	}
	return cond
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
