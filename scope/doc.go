// Package scope implements named, parameterized condition factories.
//
// A Definition declares an ordered parameter list where each parameter is
// required, optional or rest. Invocations are checked against that arity
// before anything else happens:
//
//   - only required parameters: the argument count must match exactly
//   - with optional parameters: between required and required+optional
//   - with a rest parameter: at least required, the remainder is collected
//     into the rest slice (empty when nothing is left)
//
// Violations return ErrInvalidArgument. Definitions are stored in a Registry
// and dispatched by name at call time.
package scope
