package scope

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-remote-resource/condition"
)

var (
	// ErrInvalidArgument indicates a scope was invoked with a wrong number
	// of arguments.
	ErrInvalidArgument = errors.New("scope: invalid argument")
	// ErrUnknownScope indicates a lookup for an unregistered scope name.
	ErrUnknownScope = errors.New("scope: unknown scope")
	// ErrInvalidDefinition indicates a malformed scope definition.
	ErrInvalidDefinition = errors.New("scope: invalid definition")
	// ErrDuplicateScope indicates a scope name registered twice.
	ErrDuplicateScope = errors.New("scope: duplicate scope")
)

// ParamKind classifies a scope parameter.
type ParamKind int

const (
	KindRequired ParamKind = iota
	KindOptional
	KindRest
)

func (k ParamKind) String() string {
	switch k {
	case KindRequired:
		return "required"
	case KindOptional:
		return "optional"
	case KindRest:
		return "rest"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Param is a named scope parameter.
type Param struct {
	Name string
	Kind ParamKind
}

// Required declares a mandatory parameter.
func Required(name string) Param { return Param{Name: name, Kind: KindRequired} }

// Optional declares a parameter that may be omitted.
func Optional(name string) Param { return Param{Name: name, Kind: KindOptional} }

// Rest declares a trailing parameter collecting every remaining argument.
func Rest(name string) Param { return Param{Name: name, Kind: KindRest} }

// BuildFunc produces the filter tree for a bound invocation.
type BuildFunc func(args Args) (map[string]any, error)

// Definition is a named, parameterized condition factory.
type Definition struct {
	Name   string
	Params []Param
	Build  BuildFunc
}

// Static defines a parameterless scope that always yields conds.
func Static(name string, conds map[string]any) Definition {
	snapshot := condition.New("", conds)
	return Definition{
		Name: name,
		Build: func(Args) (map[string]any, error) {
			return snapshot.Conditions(), nil
		},
	}
}

// Func defines a scope backed by build.
func Func(name string, build BuildFunc, params ...Param) Definition {
	return Definition{
		Name:   name,
		Params: append([]Param(nil), params...),
		Build:  build,
	}
}

// Validate checks the parameter list: names are unique, at most one rest
// parameter appears and only in last position, and optional parameters
// never precede required ones.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name must be provided", ErrInvalidDefinition)
	}
	if d.Build == nil {
		return fmt.Errorf("%w: scope %q has no builder", ErrInvalidDefinition, d.Name)
	}

	seen := make(map[string]struct{}, len(d.Params))
	sawOptional := false
	for i, p := range d.Params {
		if p.Name == "" {
			return fmt.Errorf("%w: scope %q parameter %d has no name", ErrInvalidDefinition, d.Name, i)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%w: scope %q repeats parameter %q", ErrInvalidDefinition, d.Name, p.Name)
		}
		seen[p.Name] = struct{}{}

		switch p.Kind {
		case KindRequired:
			if sawOptional {
				return fmt.Errorf("%w: scope %q declares required %q after an optional parameter", ErrInvalidDefinition, d.Name, p.Name)
			}
		case KindOptional:
			sawOptional = true
		case KindRest:
			if i != len(d.Params)-1 {
				return fmt.Errorf("%w: scope %q rest parameter %q must be last", ErrInvalidDefinition, d.Name, p.Name)
			}
		default:
			return fmt.Errorf("%w: scope %q parameter %q has unknown kind %s", ErrInvalidDefinition, d.Name, p.Name, p.Kind)
		}
	}
	return nil
}

// Arity returns the number of required and optional parameters and whether
// a rest parameter is declared.
func (d Definition) Arity() (required, optional int, rest bool) {
	for _, p := range d.Params {
		switch p.Kind {
		case KindRequired:
			required++
		case KindOptional:
			optional++
		case KindRest:
			rest = true
		}
	}
	return required, optional, rest
}

// Bind validates the argument count and assigns arguments to parameters.
func (d Definition) Bind(args ...any) (Args, error) {
	required, optional, rest := d.Arity()
	n := len(args)

	switch {
	case rest:
		if n < required {
			return Args{}, d.arityError(fmt.Sprintf("at least %d", required), n)
		}
	case optional > 0:
		if n < required || n > required+optional {
			return Args{}, d.arityError(fmt.Sprintf("%d to %d", required, required+optional), n)
		}
	default:
		if n != required {
			return Args{}, d.arityError(fmt.Sprintf("exactly %d", required), n)
		}
	}

	bound := Args{values: make(map[string]any, len(d.Params))}
	i := 0
	for _, p := range d.Params {
		switch p.Kind {
		case KindRest:
			bound.restName = p.Name
			bound.rest = append([]any{}, args[i:]...)
			i = n
		default:
			if i < n {
				bound.values[p.Name] = args[i]
				bound.order = append(bound.order, p.Name)
				i++
			}
		}
	}
	return bound, nil
}

// Apply binds args and builds a condition for class.
func (d Definition) Apply(class string, args ...any) (condition.Condition, error) {
	bound, err := d.Bind(args...)
	if err != nil {
		return condition.Condition{}, err
	}
	conds, err := d.Build(bound)
	if err != nil {
		return condition.Condition{}, fmt.Errorf("scope %q: %w", d.Name, err)
	}
	return condition.New(class, conds), nil
}

func (d Definition) arityError(expected string, got int) error {
	return fmt.Errorf("%w: scope %q expects %s arguments, got %d", ErrInvalidArgument, d.Name, expected, got)
}

// Args holds the arguments bound to a scope invocation.
type Args struct {
	values   map[string]any
	order    []string
	rest     []any
	restName string
}

// Get returns the value bound to name. Rest parameters return their slice.
func (a Args) Get(name string) any {
	if name != "" && name == a.restName {
		return a.Rest()
	}
	return a.values[name]
}

// Has reports whether an argument was supplied for name.
func (a Args) Has(name string) bool {
	if name != "" && name == a.restName {
		return true
	}
	_, ok := a.values[name]
	return ok
}

// Rest returns the trailing arguments; never nil when a rest parameter is
// declared.
func (a Args) Rest() []any {
	if a.restName == "" {
		return nil
	}
	return append([]any{}, a.rest...)
}

// Map returns every bound argument keyed by parameter name.
func (a Args) Map() map[string]any {
	out := make(map[string]any, len(a.values)+1)
	for k, v := range a.values {
		out[k] = v
	}
	if a.restName != "" {
		out[a.restName] = a.Rest()
	}
	return out
}

// Len returns the number of positional arguments bound, rest included.
func (a Args) Len() int {
	return len(a.order) + len(a.rest)
}
