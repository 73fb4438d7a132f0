package runtime

import "sort"

// Environment is the flat variable store of one Interpreter. Blocks share it; there are no nested scopes.
type Environment struct {
	values map[string]Value
}

// NewEnvironment creates an empty environment.
func NewEnvironment() *Environment {
	return &Environment{values: make(map[string]Value)}
}

// Get looks up a variable.
func (e *Environment) Get(name string) (Value, bool) {
	val, exists := e.values[name]
	return val, exists
}

// Lookup implements Scope.
func (e *Environment) Lookup(name string) (Value, bool) {
	return e.Get(name)
}

// Set creates or replaces a variable.
func (e *Environment) Set(name string, value Value) {
	e.values[name] = value
}

// Len returns the number of variables.
func (e *Environment) Len() int {
	return len(e.values)
}

// Names returns the variable names in sorted order.
func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.values))
	for name := range e.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of the variables.
func (e *Environment) Snapshot() map[string]Value {
	out := make(map[string]Value, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}
