package schemafile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goliatone/go-remote-resource/resource"
	"github.com/goliatone/go-remote-resource/scope"
	"gopkg.in/yaml.v3"
)

// ErrInvalidSchema wraps every failure to turn a document into a schema.
var ErrInvalidSchema = errors.New("schemafile: invalid schema")

// LoadFile reads and builds the schema stored at path.
func LoadFile(path string) (*resource.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schemafile: read %s: %w", path, err)
	}
	return Parse(data)
}

// Load reads a YAML document from r and builds the schema.
func Load(r io.Reader) (*resource.Schema, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("schemafile: read: %w", err)
	}
	return Parse(data)
}

// Parse builds a schema from a YAML document. Unknown fields are rejected.
func Parse(data []byte) (*resource.Schema, error) {
	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	return Build(file)
}

// Build validates file and declares its classes.
func Build(file File) (*resource.Schema, error) {
	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	b := &builder{
		specs:   make(map[string]ClassSpec, len(file.Classes)),
		classes: make(map[string]*resource.Class, len(file.Classes)),
		state:   make(map[string]int, len(file.Classes)),
	}
	for _, spec := range file.Classes {
		b.specs[strings.ToLower(spec.Name)] = spec
	}

	ordered := make([]*resource.Class, 0, len(file.Classes))
	for _, spec := range file.Classes {
		class, err := b.class(spec.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
		}
		ordered = append(ordered, class)
	}

	schema, err := resource.NewSchema(ordered...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}
	return schema, nil
}

const (
	unvisited = iota
	visiting
	done
)

type builder struct {
	specs   map[string]ClassSpec
	classes map[string]*resource.Class
	state   map[string]int
}

// class declares name after its ancestors, detecting extends cycles.
func (b *builder) class(name string) (*resource.Class, error) {
	key := strings.ToLower(name)
	switch b.state[key] {
	case done:
		return b.classes[key], nil
	case visiting:
		return nil, fmt.Errorf("class %q extends itself", name)
	}

	spec, ok := b.specs[key]
	if !ok {
		return nil, fmt.Errorf("unknown class %q", name)
	}
	b.state[key] = visiting

	opts, err := classOptions(spec)
	if err != nil {
		return nil, fmt.Errorf("class %s: %w", spec.Name, err)
	}

	var class *resource.Class
	if spec.Extends != "" {
		parent, err := b.class(spec.Extends)
		if err != nil {
			return nil, fmt.Errorf("class %s: extends: %w", spec.Name, err)
		}
		class, err = parent.Extend(spec.Name, opts...)
		if err != nil {
			return nil, err
		}
	} else {
		class, err = resource.Define(spec.Name, opts...)
		if err != nil {
			return nil, err
		}
	}

	b.classes[key] = class
	b.state[key] = done
	return class, nil
}

func classOptions(spec ClassSpec) ([]resource.ClassOption, error) {
	var opts []resource.ClassOption
	if spec.Path != "" {
		opts = append(opts, resource.Path(spec.Path))
	}
	if spec.PrimaryKey != "" {
		opts = append(opts, resource.PrimaryKey(spec.PrimaryKey))
	}
	for _, a := range spec.HasMany {
		opts = append(opts, resource.HasMany(a.Name, associationOptions(a)...))
	}
	for _, a := range spec.BelongsTo {
		opts = append(opts, resource.BelongsTo(a.Name, associationOptions(a)...))
	}
	for _, a := range spec.HasOne {
		opts = append(opts, resource.HasOne(a.Name, associationOptions(a)...))
	}
	for _, s := range spec.Scopes {
		def, err := scopeDefinition(s)
		if err != nil {
			return nil, err
		}
		opts = append(opts, resource.Scope(def))
	}
	if len(spec.Includes) > 0 {
		opts = append(opts, resource.Includes(spec.Includes...))
	}
	if spec.Paginate > 0 {
		opts = append(opts, resource.Paginate(spec.Paginate))
	}
	return opts, nil
}

func associationOptions(a AssociationSpec) []resource.AssociationOption {
	var opts []resource.AssociationOption
	if a.ClassName != "" {
		opts = append(opts, resource.ClassName(a.ClassName))
	}
	if a.ForeignKey != "" {
		opts = append(opts, resource.ForeignKey(a.ForeignKey))
	}
	if a.RemotePath != "" {
		opts = append(opts, resource.RemotePath(a.RemotePath))
	}
	return opts
}

func scopeDefinition(s ScopeSpec) (scope.Definition, error) {
	if s.Expr == "" {
		conds := s.Conditions
		if conds == nil {
			conds = map[string]any{}
		}
		return scope.Static(s.Name, conds), nil
	}

	params := parseParams(s.Params)
	build, err := compileScope(s.Name, s.Expr)
	if err != nil {
		return scope.Definition{}, err
	}
	def := scope.Func(s.Name, build, params...)
	if err := def.Validate(); err != nil {
		return scope.Definition{}, err
	}
	return def, nil
}

// parseParams reads "name", "name?" and "*name" declarations.
func parseParams(raw []string) []scope.Param {
	params := make([]scope.Param, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		switch {
		case strings.HasPrefix(p, "*"):
			params = append(params, scope.Rest(strings.TrimPrefix(p, "*")))
		case strings.HasSuffix(p, "?"):
			params = append(params, scope.Optional(strings.TrimSuffix(p, "?")))
		default:
			params = append(params, scope.Required(p))
		}
	}
	return params
}
