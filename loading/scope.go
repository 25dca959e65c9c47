package loading

// Scope is a namespaced view of an Orchestrator. Its methods take bare
// names; Key builds the compound key for the generic wrappers:
//
//	jobs := o.Scope("jenkins")
//	loading.WithLoading(ctx, o, jobs.Key("build"), trigger)
type Scope struct {
	o         *Orchestrator
	namespace string
}

// Scope returns a view bound to namespace.
func (o *Orchestrator) Scope(namespace string) Scope {
	return Scope{o: o, namespace: namespace}
}

// Key returns the compound key for name in this namespace.
func (s Scope) Key(name string) Key { return Key{Namespace: s.namespace, Name: name} }

// Orchestrator returns the underlying orchestrator.
func (s Scope) Orchestrator() *Orchestrator { return s.o }

func (s Scope) SetLoading(name string, loading bool, message string) {
	s.o.SetLoading(s.Key(name), loading, message)
}

func (s Scope) IsLoading(name string) bool { return s.o.IsLoading(s.Key(name)) }

func (s Scope) LoadingState(name string) (State, bool) { return s.o.LoadingState(s.Key(name)) }

// HasAnyLoading reports whether the global flag is set or any key in this
// namespace is busy.
func (s Scope) HasAnyLoading() bool {
	s.o.mu.Lock()
	defer s.o.mu.Unlock()
	if s.o.global {
		return true
	}
	for k := range s.o.states {
		if k.Namespace == s.namespace {
			return true
		}
	}
	return false
}

// LoadingStates returns the busy states of this namespace keyed by name.
func (s Scope) LoadingStates() map[string]State {
	out := make(map[string]State)
	for k, st := range s.o.AllLoadingStates() {
		if k.Namespace == s.namespace {
			out[k.Name] = st
		}
	}
	return out
}

// ClearAll clears the busy keys, pending debounced calls and throttle
// history of this namespace only. The global flag is left untouched.
func (s Scope) ClearAll() {
	s.o.clear(func(k Key) bool { return k.Namespace == s.namespace }, false)
}
