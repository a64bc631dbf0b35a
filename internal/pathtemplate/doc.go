// internal/pathtemplate/doc.go

/*
Package pathtemplate parses and evaluates slash-separated path templates such
as `input/{name}.csv`.

A template is a sequence of segments separated by `/`. Each segment is a
sequence of literal text and `{name}` placeholders. Matching a concrete path
against a template extracts one value per placeholder; applying a set of
values to a template produces a concrete path.

Within a segment a placeholder captures text up to the first occurrence of
the literal that follows it. In the final segment a literal suffix is stripped
first, so the placeholder before it captures up to the last occurrence of
that suffix. A placeholder that ends the final segment absorbs the rest of
the path, separators included.
*/
package pathtemplate
