package schemafile

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// File is the document layout.
type File struct {
	Classes []ClassSpec `yaml:"classes"`
}

// ClassSpec declares one class. Extends names another class in the same
// file whose configuration is copied first.
type ClassSpec struct {
	Name       string            `yaml:"name"`
	Extends    string            `yaml:"extends"`
	Path       string            `yaml:"path"`
	PrimaryKey string            `yaml:"primary_key"`
	Paginate   int               `yaml:"paginate"`
	Includes   []string          `yaml:"includes"`
	HasMany    []AssociationSpec `yaml:"has_many"`
	BelongsTo  []AssociationSpec `yaml:"belongs_to"`
	HasOne     []AssociationSpec `yaml:"has_one"`
	Scopes     []ScopeSpec       `yaml:"scopes"`
}

// AssociationSpec declares an association with optional overrides.
type AssociationSpec struct {
	Name       string `yaml:"name"`
	ClassName  string `yaml:"class_name"`
	ForeignKey string `yaml:"foreign_key"`
	RemotePath string `yaml:"remote_path"`
}

// ScopeSpec declares a scope either as a fixed condition map or as an
// expression evaluated with the bound parameters.
//
// Params use "name" for required, "name?" for optional and "*name" for a
// trailing rest parameter.
type ScopeSpec struct {
	Name       string         `yaml:"name"`
	Params     []string       `yaml:"params"`
	Conditions map[string]any `yaml:"conditions"`
	Expr       string         `yaml:"expr"`
}

// Validate checks the document shape.
func (f File) Validate() error {
	if err := validation.ValidateStruct(&f,
		validation.Field(&f.Classes, validation.Required),
	); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(f.Classes))
	for i, class := range f.Classes {
		if err := class.Validate(); err != nil {
			return fmt.Errorf("classes[%d]: %w", i, err)
		}
		key := strings.ToLower(class.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("classes[%d]: class %q declared twice", i, class.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Validate checks a class declaration.
func (c ClassSpec) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Paginate, validation.Min(0)),
		validation.Field(&c.HasMany),
		validation.Field(&c.BelongsTo),
		validation.Field(&c.HasOne),
		validation.Field(&c.Scopes),
	)
}

// Validate checks an association declaration.
func (a AssociationSpec) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Name, validation.Required),
	)
}

// Validate checks a scope declaration. Exactly one of conditions and expr
// must be set, and parameters need an expression to bind into.
func (s ScopeSpec) Validate() error {
	if err := validation.ValidateStruct(&s,
		validation.Field(&s.Name, validation.Required),
		validation.Field(&s.Params, validation.Each(validation.Required)),
	); err != nil {
		return err
	}
	switch {
	case s.Expr != "" && s.Conditions != nil:
		return errors.New("conditions and expr are mutually exclusive")
	case s.Expr == "" && len(s.Params) > 0:
		return errors.New("params require an expr")
	}
	return nil
}
