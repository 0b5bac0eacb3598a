package store

import (
	"github.com/go-git/go-git/v5/plumbing/object"
)

// snapshotCache holds the single most recent snapshot for a store, keyed by
// the exact commit it was built from. It is only ever touched while the
// store's gate is held, so it carries no locking of its own.
type snapshotCache struct {
	build   func(*object.Commit) (*Snapshot, error)
	current *Snapshot
}

// ensure returns the cached snapshot when it matches the commit, rebuilding
// and swapping it wholesale otherwise. A failed build leaves the previous
// snapshot in place.
func (c *snapshotCache) ensure(commit *object.Commit) (*Snapshot, error) {
	if c.current != nil && c.current.Commit == commit.Hash {
		return c.current, nil
	}

	snapshot, err := c.build(commit)
	if err != nil {
		return nil, err
	}

	c.current = snapshot
	return snapshot, nil
}
