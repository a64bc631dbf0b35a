// internal/converter/doc.go

/*
Package converter holds the registry of type converters used when a binding
produces a value of one type and a parameter wants another.

Lookups are resolved in a fixed order: an exact entry for the source type,
destination type and tag type; an exact entry registered for any tag; then
one level of open matching (pattern entries, identity for assignable types,
and exact entries whose target is assignable to the requested type).
Converters are never chained.
*/
package converter
