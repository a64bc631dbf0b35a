// internal/indexer/doc.go

/*
Package indexer turns function declarations into immutable
FunctionDefinitions.

A Declaration pairs a Go func with the binding tags of its parameters, in
order. Indexing classifies every parameter:

  - trigger: tagged with a binding.TriggerTag (at most one per function)
  - bound: tagged with any other binding.Tag
  - ambient: untagged context.Context, *slog.Logger or *binding.Context
  - binding data: untagged, named after a value the trigger provides
  - invoke-only: untagged otherwise; the caller must supply it

A function with no tags that is not marked invoke-only is not indexed.
*/
package indexer
