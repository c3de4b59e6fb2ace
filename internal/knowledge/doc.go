// Package knowledge stores lessons and retrieves the ones most relevant
// to a learner's question.
//
// # Retrieval cascade
//
// Search tries three backend tiers in fixed priority order. Each tier is
// independent and side-effect-free on failure; a tier that errors or
// returns nothing simply hands over to the next one:
//
//  1. Direct vector index: nearest-neighbor query against PostgreSQL
//     pgvector, lessons resolved by id from the remote store or the
//     local cache.
//  2. Remote ranked match: the match_lessons procedure exposed by the
//     remote table backend.
//  3. In-memory brute force: cosine similarity over the cached lessons,
//     computed client-side. Works with no backend configured at all.
//
// Backend-reported cosine distances normalize to similarity via
// 1/(1+distance), so every hit carries a comparable score in (0, 1].
//
// # Ingestion consistency
//
// A lesson is only searchable once its embedding exists, so Add treats
// the lesson record and its embedding as a single logical unit. The two
// writes go to independent systems; instead of a transaction, Add keeps
// a saga of committed steps and compensates in reverse order when a
// later step fails. A failed compensation is logged as an operator-visible
// inconsistency rather than retried.
//
// # Concurrency
//
// All operations are synchronous and request-scoped. The only shared
// mutable state is the lesson cache, a snapshot swapped atomically on
// refresh so readers never observe a partially-populated view.
package knowledge
