// Package search keeps an in-memory bleve index over the registered
// operators.
//
// Name matches weigh more than tag and category matches, which in turn weigh
// more than descriptions and paths. Results are ordered by score, then by
// operator id, so equal scores come back in a stable order. An empty query
// lists operators in id order.
//
// Rebuild is cheap when nothing changed: the index is only rebuilt when the
// fingerprint of the operator set differs from the indexed one.
package search
