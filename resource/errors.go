package resource

import "errors"

var (
	// ErrUnknownAssociation indicates an include or proxy access naming an
	// association the class does not declare.
	ErrUnknownAssociation = errors.New("resource: unknown association")
	// ErrAssociationClassNotFound indicates an association whose target
	// class is not part of the schema.
	ErrAssociationClassNotFound = errors.New("resource: association class not found")
	// ErrUnknownClass indicates a lookup for a class the schema lacks.
	ErrUnknownClass = errors.New("resource: unknown class")
	// ErrInvalidDeclaration indicates a malformed class declaration.
	ErrInvalidDeclaration = errors.New("resource: invalid declaration")
)
