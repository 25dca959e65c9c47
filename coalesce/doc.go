// Package coalesce merges calls that arrive for the same key within a short
// quiet window into a single upstream request.
//
// Every Batch call appends its argument to the key's pending batch and
// re-arms the window timer, so the window slides while callers keep
// arriving. When it finally fires the batch is detached, the RequestFunc
// runs exactly once with all arguments in arrival order, and result i is
// delivered to the i-th caller. An error fans out unchanged to every
// caller of that batch.
//
//	c := coalesce.New[string, string, HostStatus](coalesce.WithWindow(20 * time.Millisecond))
//	defer c.Close()
//
//	st, err := c.Batch(ctx, "host-status", fetchStatuses, "web-01")
package coalesce
