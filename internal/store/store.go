package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	// DefaultBranch is the branch served by Latest when none is configured.
	DefaultBranch = "main"

	// DefaultExtension marks the files in the tree that hold documents.
	DefaultExtension = ".json"

	originRemote = "origin"
)

// Author identifies the committer used for all writes made through a store.
type Author struct {
	Name  string
	Email string
}

// Config describes one repository instance: the remote it mirrors, the local
// checkout backing it, and the identity used for commits.
type Config struct {
	Remote    string
	Checkout  string
	Branch    string
	Extension string
	Author    Author
}

// Store exposes a version-controlled tree of document files as a document
// store. All repository operations, reads included, are serialized behind a
// single gate because they share one on-disk checkout and one snapshot cache.
// Stores pointed at different remotes are fully independent.
type Store struct {
	mu    sync.Mutex
	repo  *git.Repository
	cfg   Config
	cache snapshotCache
}

// Open opens the checkout directory for the configured remote, cloning it
// first when no repository exists there yet.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Remote == "" {
		return nil, errors.New("remote URL is required")
	}
	if cfg.Checkout == "" {
		return nil, errors.New("checkout directory is required")
	}
	if cfg.Branch == "" {
		cfg.Branch = DefaultBranch
	}
	if cfg.Extension == "" {
		cfg.Extension = DefaultExtension
	}

	var (
		repo *git.Repository
		err  error
	)
	if _, statErr := os.Stat(filepath.Join(cfg.Checkout, ".git")); os.IsNotExist(statErr) {
		repo, err = git.PlainCloneContext(ctx, cfg.Checkout, false, &git.CloneOptions{
			URL:        cfg.Remote,
			RemoteName: originRemote,
		})
		if err != nil {
			return nil, RemoteUnavailableError{Remote: cfg.Remote, Err: err}
		}
	} else {
		repo, err = git.PlainOpen(cfg.Checkout)
		if err != nil {
			return nil, fmt.Errorf("failed to open repository at %q: %w", cfg.Checkout, err)
		}
	}

	s := &Store{repo: repo, cfg: cfg}
	s.cache.build = func(commit *object.Commit) (*Snapshot, error) {
		return buildSnapshot(commit, cfg.Extension)
	}
	return s, nil
}

// Latest resolves the tip of the configured branch and returns its hash.
func (s *Store) Latest(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	commit, err := s.resolve(ctx, s.cfg.Branch)
	if err != nil {
		return "", err
	}
	return commit.Hash.String(), nil
}

// Object resolves version, materializes its snapshot, and returns the nested
// value at path. Absence is reported through the boolean.
func (s *Store) Object(ctx context.Context, version, path string) (Document, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.snapshot(ctx, version)
	if err != nil {
		return nil, false, err
	}
	doc, ok := snapshot.Object(path)
	return doc, ok, nil
}

// Files resolves version, materializes its snapshot, and returns the flat-map
// entries under prefix.
func (s *Store) Files(ctx context.Context, version, prefix string) (map[string]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.snapshot(ctx, version)
	if err != nil {
		return nil, err
	}
	return snapshot.Files(prefix), nil
}

// snapshot fetches, resolves the version token, and serves the snapshot from
// cache when the resolved commit is unchanged. Callers must hold the gate.
func (s *Store) snapshot(ctx context.Context, version string) (*Snapshot, error) {
	commit, err := s.resolve(ctx, version)
	if err != nil {
		return nil, err
	}
	return s.cache.ensure(commit)
}

// resolve fetches from origin so resolution reflects current remote state,
// then looks the token up. Callers must hold the gate.
func (s *Store) resolve(ctx context.Context, token string) (*object.Commit, error) {
	if err := s.fetch(ctx); err != nil {
		return nil, err
	}
	return s.lookup(token)
}

// lookup treats the token as a remote branch name first and falls back to a
// direct commit lookup when the token is a full object hash.
func (s *Store) lookup(token string) (*object.Commit, error) {
	ref, err := s.repo.Reference(plumbing.NewRemoteReferenceName(originRemote, token), true)
	if err == nil {
		return s.repo.CommitObject(ref.Hash())
	}
	if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, fmt.Errorf("failed to look up branch %q: %w", token, err)
	}

	if plumbing.IsHash(token) {
		commit, err := s.repo.CommitObject(plumbing.NewHash(token))
		if err == nil {
			return commit, nil
		}
		if !errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, fmt.Errorf("failed to look up commit %q: %w", token, err)
		}
	}

	return nil, VersionNotFoundError{Token: token}
}

func (s *Store) fetch(ctx context.Context) error {
	err := s.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: originRemote,
		Force:      true,
		Prune:      true,
		Tags:       git.NoTags,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return RemoteUnavailableError{Remote: s.cfg.Remote, Err: err}
	}
	return nil
}
