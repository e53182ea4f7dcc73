// Package pred provides the typed predicate language used to select facts.
//
// A Predicate is a small expression tree. Callers build it with the node
// types of this package instead of formatting query strings by hand, so
// quoting and escaping live in exactly one place (Format) and values reach
// the store as bound parameters (see package predsql).
//
// SEALED INTERFACES:
//
// Predicate and Term are sealed using the marker method pattern. Only types
// in this package implement them, which keeps type switches in backends
// exhaustive.
//
// TEXT FORM:
//
// Every predicate has a canonical s-expression text form:
//
//	(and (eq what 'issue-was-opened') (gt issue $before) (absent seen))
//
// Operators: and, or, not, eq, gt, lt, exists, absent, always.
// Terms: 'text' (single or double quotes, backslash escapes), integers,
// floats (always carrying a '.' or exponent), ISO-8601 UTC timestamps, and
// $name placeholders that Bind replaces with values before execution.
//
// Format and Parse are inverses: Parse(Format(p)) is structurally equal to p.
package pred
