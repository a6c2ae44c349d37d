// Package records registers the handlers for each level-0 record type with
// the core registry. Import this package to ensure all handlers are
// registered.
package records

// Each file uses init() to register its record types.
