package resource

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jinzhu/inflection"
)

// Schema holds the declared classes and resolves association targets.
// Class names are matched in snake case, so "TestResource" and
// "test_resource" name the same class.
type Schema struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewSchema builds a schema from classes. Duplicate names are rejected.
func NewSchema(classes ...*Class) (*Schema, error) {
	s := &Schema{classes: make(map[string]*Class, len(classes))}
	for _, class := range classes {
		if err := s.Add(class); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add registers class.
func (s *Schema) Add(class *Class) error {
	if class == nil {
		return fmt.Errorf("%w: nil class", ErrInvalidDeclaration)
	}
	key := toSnake(class.Name())
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.classes[key]; exists {
		return fmt.Errorf("%w: class %q declared twice", ErrInvalidDeclaration, class.Name())
	}
	s.classes[key] = class
	return nil
}

// Class returns the class registered under name, accepting the plural form.
func (s *Schema) Class(name string) (*Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := toSnake(name)
	if class, ok := s.classes[key]; ok {
		return class, nil
	}
	if class, ok := s.classes[inflection.Singular(key)]; ok {
		return class, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownClass, name)
}

// Target returns the class an association on owner points at.
func (s *Schema) Target(owner *Class, name string) (Association, *Class, error) {
	assoc, ok := owner.Association(name)
	if !ok {
		return Association{}, nil, fmt.Errorf("%w: %q on %s", ErrUnknownAssociation, name, owner.Name())
	}
	target, err := s.Class(assoc.ClassName)
	if err != nil {
		return assoc, nil, fmt.Errorf("%w: %s.%s -> %q", ErrAssociationClassNotFound, owner.Name(), name, assoc.ClassName)
	}
	return assoc, target, nil
}

// Validate checks that every association resolves to a declared class.
func (s *Schema) Validate() error {
	for _, name := range s.Names() {
		owner, err := s.Class(name)
		if err != nil {
			return err
		}
		for _, assoc := range owner.Associations() {
			if _, _, err := s.Target(owner, assoc.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// Names returns the declared class names sorted alphabetically.
func (s *Schema) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.classes))
	for _, class := range s.classes {
		names = append(names, class.Name())
	}
	sort.Strings(names)
	return names
}
