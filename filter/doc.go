// Package filter holds the backend-neutral predicate tree used to query
// document collections, and the typed builders that produce it.
//
// A record type takes part by declaring a builder that embeds Base and
// exposing typed field cursors over it:
//
//	type UserFilter struct{ filter.Base }
//
//	func (User) Filter() *UserFilter { return filter.For[UserFilter]() }
//
//	func (f *UserFilter) Name() filter.OrderedFieldFilter[*UserFilter, string] {
//		return filter.OrderedField[string](f, "name")
//	}
//
// Every terminal cursor operation appends exactly one condition to the
// owning builder and returns that builder. Build returns a snapshot that is
// not affected by later builder calls.
//
// Sibling entries of a node (its conditions, its groups and its child
// scopes) are combined with AND. A LogicAny group holds alternatives and a
// LogicAll group holds requirements. Store packages lower the tree into
// their native query language.
package filter
