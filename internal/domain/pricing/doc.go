// Package pricing holds the per-tenant catalog of priced actions, the
// customer and segment overrides layered on top of them, and the pure
// arithmetic that turns a catalog entry into a resolved price.
package pricing
