// Package loading tracks which logical operations are in flight and wraps
// operations so that their busy state, timeout and user-facing notices are
// handled in one place.
//
// An Orchestrator is an explicit value: hosts create one per scope (a
// process, a dashboard page) and pass it to consumers. Keys are compound
// (namespace, name) values, so namespaces never collide with names that
// contain a separator.
//
//	o := loading.New(loading.WithNotifier(toasts))
//	hosts := o.Scope("hosts")
//
//	status, err := loading.WithLoading(ctx, o, hosts.Key("refresh"), fetchStatus,
//	    loading.Message("Refreshing hosts..."),
//	    loading.Timeout(10*time.Second))
//
// Concurrent WithLoading calls on the same key share the busy state: the
// key stays busy until the last of them settles.
package loading
