// Package resource owns the connections opened while an agent is assembled.
//
// Invariants:
// - A Handle releases its resources in reverse registration order.
// - Close is idempotent; later calls return the first result.
// - A Scope either commits all of its resources into the Handle or closes them.
//
// Usage:
//
//	h := resource.NewHandle()
//	scope := h.Begin("filesystem")
//	scope.Register("mcp-client", client)
//	if err := connect(); err != nil {
//		_ = scope.Rollback()
//	} else {
//		scope.Commit()
//	}
//	defer h.Close()
package resource
