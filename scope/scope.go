package scope

import "github.com/zeptools/gw-typst/values"

// Scope maps names to values. Binding a name again replaces the value in
// place, so iteration order is the order of first binding.
type Scope struct {
	names []string
	vars  map[string]values.Value
}

func New() *Scope {
	return &Scope{vars: make(map[string]values.Value)}
}

func (s *Scope) Bind(name string, v values.Value) {
	if _, exists := s.vars[name]; !exists {
		s.names = append(s.names, name)
	}
	s.vars[name] = v
}

func (s *Scope) Get(name string) (values.Value, bool) {
	if s == nil {
		return values.Value{}, false
	}
	v, ok := s.vars[name]
	return v, ok
}

func (s *Scope) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Names returns the bound names in binding order.
func (s *Scope) Names() []string {
	if s == nil {
		return nil
	}
	return s.names
}

func (s *Scope) Clone() *Scope {
	c := New()
	for _, name := range s.Names() {
		c.Bind(name, s.vars[name])
	}
	return c
}

// Library is what a compiled document sees as its global environment.
type Library struct {
	Global *Scope
}

// NewLibrary copies the backend defaults so that later binding never leaks
// back into a shared defaults scope.
func NewLibrary(defaults *Scope) *Library {
	if defaults == nil {
		return &Library{Global: New()}
	}
	return &Library{Global: defaults.Clone()}
}
