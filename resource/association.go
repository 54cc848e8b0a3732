package resource

import (
	"fmt"
	"strings"
)

// AssociationKind distinguishes the association macros.
type AssociationKind int

const (
	HasManyKind AssociationKind = iota
	BelongsToKind
	HasOneKind
)

func (k AssociationKind) String() string {
	switch k {
	case HasManyKind:
		return "has_many"
	case BelongsToKind:
		return "belongs_to"
	case HasOneKind:
		return "has_one"
	default:
		return fmt.Sprintf("association(%d)", int(k))
	}
}

// Association describes a link from an owner class to a target class.
type Association struct {
	Name       string
	Kind       AssociationKind
	ClassName  string
	ForeignKey string
	RemotePath string
}

// Many reports whether the association yields a sequence.
func (a Association) Many() bool { return a.Kind == HasManyKind }

// AssociationOption customizes an association declaration.
type AssociationOption func(*Association)

// ClassName overrides the target class name.
func ClassName(name string) AssociationOption {
	return func(a *Association) { a.ClassName = name }
}

// ForeignKey overrides the owner attribute holding the association key(s).
func ForeignKey(attr string) AssociationOption {
	return func(a *Association) { a.ForeignKey = attr }
}

// RemotePath overrides the path segment appended to the owner element path
// when the association is served nested under its owner.
func RemotePath(path string) AssociationOption {
	return func(a *Association) { a.RemotePath = strings.Trim(path, "/") }
}

func newAssociation(name string, kind AssociationKind, opts []AssociationOption) (Association, error) {
	if strings.TrimSpace(name) == "" {
		return Association{}, fmt.Errorf("%w: association name must be provided", ErrInvalidDeclaration)
	}
	assoc := Association{Name: name, Kind: kind}
	for _, opt := range opts {
		if opt != nil {
			opt(&assoc)
		}
	}
	if assoc.ClassName == "" {
		assoc.ClassName = defaultClassName(name, kind)
	}
	if assoc.ForeignKey == "" {
		assoc.ForeignKey = defaultForeignKey(name, kind)
	}
	if assoc.RemotePath == "" {
		assoc.RemotePath = toSnake(name)
	}
	return assoc, nil
}
