// Package store exposes a git-backed tree of JSON document files as a
// versioned document store.
//
// A Store resolves version tokens (branch names or commit hashes) against a
// single local checkout, materializes commits into snapshots (a nested object
// plus a flat path-indexed map), caches the most recent snapshot by commit
// hash, and applies atomic subtree writes: reset, replace, commit, reconcile
// with the update branch, push, and verify.
package store
