// Package registry is the in-memory store of registered operators and the
// endpoints they declare.
//
// Writers are serialised and publish immutable snapshots, so readers never
// take a lock and never observe a half applied Register or Clear. The lists
// returned by All and ByCategory are cached per snapshot; callers must treat
// them as read-only.
package registry
