// Package core provides the conversion engine for marketplace exports.
//
// This package holds all domain logic independent of any transport. It is
// used by the web server, the command-line converter and tests alike.
//
// # Pipeline
//
// One run moves each export row through four stages:
//
//  1. [ParseTable] reads the export; [DetectSchema] picks the layout.
//  2. [Normalize] maps raw fields to the card service's vocabulary.
//  3. [Dispatch] starts one [Resolver] lookup per row, staggered by the
//     dispatch interval, and joins them.
//  4. An [Aggregator] keeps each outcome at its row position so records
//     come out in input order no matter when lookups finish.
//
// A [Controller] wraps the pipeline in a state machine
// (idle, validating, running, completed, failed) and publishes the result.
// The first fatal service error fails the whole run and discards partial
// output. A newer run on the same controller supersedes an older one.
//
// # Card lookups
//
// Each row is looked up by marketplace id first. When the id is unknown and
// the row names both an article and an expansion, a structured search by set
// and name follows; its first hit is used but reported as low confidence.
// Rows without a usable match produce a [MissingEntry] diagnostic.
//
// # Service
//
// [Service] runs conversions for browser sessions, bounds concurrent runs
// with a [RunLimiter], saves finished runs to a [RunStore] and purges old
// history on a schedule.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Codes are grouped by family: FILE (input), VAL (layout), SVC (card
// service), RUN (run lifecycle), RATE and the ERR000 fallback.
package core
