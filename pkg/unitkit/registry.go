package unitkit

// TestFunc runs one test against a suite value produced by the suite's
// factory. Suite-less tests ignore the value.
type TestFunc func(suite any, t *T)

// Case is a registered test.
type Case struct {
	Name string
	fn   TestFunc
}

// Suite is an ordered group of tests sharing a factory.
type Suite struct {
	Name    string
	factory func() any
	cases   []*Case
}

// Add registers a test on the suite and returns the suite for chaining.
func (s *Suite) Add(name string, fn TestFunc) *Suite {
	s.cases = append(s.cases, &Case{Name: name, fn: fn})
	return s
}

// Cases returns the registered tests in registration order.
func (s *Suite) Cases() []*Case {
	return s.cases
}

// newValue returns a fresh suite value, or nil for suite-less tests.
func (s *Suite) newValue() any {
	if s.factory == nil {
		return nil
	}
	return s.factory()
}

// Registry holds suites in registration order.
type Registry struct {
	suites []*Suite
	byName map[string]*Suite
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Suite)}
}

// Suite returns the suite called name, creating it with factory on first
// use. factory may be nil for suites made of plain functions.
func (r *Registry) Suite(name string, factory func() any) *Suite {
	if s, ok := r.byName[name]; ok {
		return s
	}
	s := &Suite{Name: name, factory: factory}
	r.suites = append(r.suites, s)
	r.byName[name] = s
	return s
}

// Functions adds a suite of plain test functions. It is kept apart from any
// Suite of the same name.
func (r *Registry) Functions(name string) *Suite {
	s := &Suite{Name: name}
	r.suites = append(r.suites, s)
	return s
}

// Suites returns the suites in registration order.
func (r *Registry) Suites() []*Suite {
	return r.suites
}

// Len returns the number of registered tests.
func (r *Registry) Len() int {
	n := 0
	for _, s := range r.suites {
		n += len(s.cases)
	}
	return n
}

// SetUpper is implemented by suites that prepare state before each test.
type SetUpper interface {
	SetUp(t *T)
}

// TearDowner is implemented by suites that clean up after each test.
type TearDowner interface {
	TearDown(t *T)
}
