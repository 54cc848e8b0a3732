package schemafile

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
	"github.com/goliatone/go-remote-resource/scope"
)

// compileScope compiles expression once and returns a builder evaluating it
// per application. Bound parameters are visible by name and as the "args"
// map; the result must be a map.
func compileScope(name, expression string) (scope.BuildFunc, error) {
	program, err := exprlang.Compile(expression,
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("scope %s: compile %q: %w", name, expression, err)
	}
	return func(args scope.Args) (map[string]any, error) {
		return evalScope(program, args)
	}, nil
}

func evalScope(program *exprvm.Program, args scope.Args) (map[string]any, error) {
	bound := args.Map()
	env := make(map[string]any, len(bound)+1)
	for key, value := range bound {
		env[key] = value
	}
	env["args"] = bound

	result, err := exprlang.Run(program, env)
	if err != nil {
		return nil, err
	}
	switch out := result.(type) {
	case map[string]any:
		return out, nil
	case nil:
		return map[string]any{}, nil
	default:
		return nil, fmt.Errorf("expression returned %T, want a map", result)
	}
}
