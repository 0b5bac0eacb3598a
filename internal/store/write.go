package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// WriteRequest replaces the entire set of documents under Path with Files.
// UpdateBranch names the branch the result is pushed to; it defaults to
// ParentVersion when empty.
type WriteRequest struct {
	ParentVersion string
	UpdateBranch  string
	Path          string
	Files         map[string]Document
}

// Write resets the checkout to the parent version, replaces the documents
// under the request path, commits, reconciles with the update branch when it
// has diverged, and pushes the result. It returns the hash of the commit the
// remote branch now points at.
//
// A failed write never advances the remote branch pointer. Locally created
// commits from a failed attempt become unreachable and are discarded by the
// next checkout.
func (s *Store) Write(ctx context.Context, req WriteRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateWriteRequest(req); err != nil {
		return "", err
	}

	if err := s.fetch(ctx); err != nil {
		return "", err
	}

	parent, err := s.lookup(req.ParentVersion)
	if err != nil {
		return "", err
	}

	branch := req.UpdateBranch
	if branch == "" {
		branch = req.ParentVersion
	}
	update, err := s.lookup(branch)
	if err != nil {
		var notFound VersionNotFoundError
		if errors.As(err, &notFound) {
			return "", UpdateBranchNotFoundError{Branch: branch}
		}
		return "", err
	}

	worktree, err := s.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to open worktree: %w", err)
	}

	// Detach at the parent commit and drop any stray state from earlier
	// operations, failed or otherwise.
	err = worktree.Checkout(&git.CheckoutOptions{Hash: parent.Hash, Force: true})
	if err != nil {
		return "", fmt.Errorf("failed to check out parent commit %s: %w", parent.Hash, err)
	}
	err = worktree.Clean(&git.CleanOptions{Dir: true})
	if err != nil {
		return "", fmt.Errorf("failed to clean worktree: %w", err)
	}

	if err := s.clearDocuments(req.Path); err != nil {
		return "", fmt.Errorf("failed to clear documents under %q: %w", req.Path, err)
	}
	if err := s.applyFiles(req.Path, req.Files); err != nil {
		return "", err
	}

	err = worktree.AddWithOptions(&git.AddOptions{All: true})
	if err != nil {
		return "", fmt.Errorf("failed to stage changes: %w", err)
	}

	signature := &object.Signature{
		Name:  s.cfg.Author.Name,
		Email: s.cfg.Author.Email,
		When:  time.Now(),
	}
	newHash, err := worktree.Commit(fmt.Sprintf("Update /%s", req.Path), &git.CommitOptions{
		Author:            signature,
		Committer:         signature,
		Parents:           []plumbing.Hash{parent.Hash},
		AllowEmptyCommits: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to commit changes: %w", err)
	}
	newCommit, err := s.repo.CommitObject(newHash)
	if err != nil {
		return "", fmt.Errorf("failed to load new commit %s: %w", newHash, err)
	}

	result := newCommit
	reachable, err := update.IsAncestor(newCommit)
	if err != nil {
		return "", fmt.Errorf("failed to check ancestry of branch %q: %w", branch, err)
	}
	if !reachable {
		result, err = s.merge(worktree, newCommit, update, branch, signature)
		if err != nil {
			return "", err
		}
	}

	if err := s.push(ctx, branch, result.Hash); err != nil {
		return "", err
	}

	return result.Hash.String(), nil
}

// merge reconciles a diverged update branch with the freshly created commit
// using a path-level three-way comparison against their merge base. Paths
// changed on both sides to different blobs are conflicts and fail the write;
// otherwise the branch's independent changes are applied on top of ours and
// committed with both commits as parents.
func (s *Store) merge(worktree *git.Worktree, ours, theirs *object.Commit, branch string, signature *object.Signature) (*object.Commit, error) {
	bases, err := ours.MergeBase(theirs)
	if err != nil {
		return nil, fmt.Errorf("failed to find merge base with branch %q: %w", branch, err)
	}
	if len(bases) == 0 {
		return nil, MergeConflictError{Paths: []string{"(unrelated histories)"}}
	}
	base := bases[0]

	baseTree, err := base.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to load merge base tree: %w", err)
	}
	oursTree, err := ours.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to load tree for commit %s: %w", ours.Hash, err)
	}
	theirsTree, err := theirs.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to load tree for branch %q: %w", branch, err)
	}

	ourChanges, err := baseTree.Diff(oursTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff against merge base: %w", err)
	}
	theirChanges, err := baseTree.Diff(theirsTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff branch %q against merge base: %w", branch, err)
	}

	ourPaths := make(map[string]plumbing.Hash)
	for _, change := range ourChanges {
		ourPaths[changePath(change)] = change.To.TreeEntry.Hash
	}

	var conflicts []string
	for _, change := range theirChanges {
		ourHash, touched := ourPaths[changePath(change)]
		if touched && ourHash != change.To.TreeEntry.Hash {
			conflicts = append(conflicts, changePath(change))
		}
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return nil, MergeConflictError{Paths: conflicts}
	}

	for _, change := range theirChanges {
		name := changePath(change)
		if _, touched := ourPaths[name]; touched {
			continue
		}

		full := filepath.Join(s.cfg.Checkout, filepath.FromSlash(name))
		if change.To.Name == "" {
			if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to remove %q: %w", name, err)
			}
			continue
		}

		file, err := theirsTree.File(change.To.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to load %q from branch %q: %w", name, branch, err)
		}
		contents, err := file.Contents()
		if err != nil {
			return nil, fmt.Errorf("failed to read %q from branch %q: %w", name, branch, err)
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %q: %w", name, err)
		}
		if err := os.WriteFile(full, []byte(contents), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %q: %w", name, err)
		}
	}

	err = worktree.AddWithOptions(&git.AddOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("failed to stage merge changes: %w", err)
	}

	mergeHash, err := worktree.Commit(fmt.Sprintf("Merge branch %q", branch), &git.CommitOptions{
		Author:            signature,
		Committer:         signature,
		Parents:           []plumbing.Hash{ours.Hash, theirs.Hash},
		AllowEmptyCommits: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to commit merge: %w", err)
	}

	return s.repo.CommitObject(mergeHash)
}

// push advances the branch at the remote and then verifies the move by
// re-fetching and comparing the remote-tracking reference, since a push can
// be acknowledged without the remote actually applying it.
func (s *Store) push(ctx context.Context, branch string, hash plumbing.Hash) error {
	local := plumbing.NewBranchReferenceName(branch)
	err := s.repo.Storer.SetReference(plumbing.NewHashReference(local, hash))
	if err != nil {
		return fmt.Errorf("failed to update local branch %q: %w", branch, err)
	}

	err = s.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: originRemote,
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(local + ":" + local)},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return RemoteUnavailableError{Remote: s.cfg.Remote, Err: err}
	}

	if err := s.fetch(ctx); err != nil {
		return err
	}

	ref, err := s.repo.Reference(plumbing.NewRemoteReferenceName(originRemote, branch), true)
	if err != nil {
		return PushVerificationFailedError{Branch: branch, Want: hash.String(), Got: "(missing)"}
	}
	if ref.Hash() != hash {
		return PushVerificationFailedError{Branch: branch, Want: hash.String(), Got: ref.Hash().String()}
	}

	return nil
}

// clearDocuments removes every document file under prefix in the checkout.
// Other file types are left alone.
func (s *Store) clearDocuments(prefix string) error {
	root := filepath.Join(s.cfg.Checkout, filepath.FromSlash(prefix))
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}

	return filepath.WalkDir(root, func(name string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if entry.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(entry.Name(), s.cfg.Extension) {
			return os.Remove(name)
		}
		return nil
	})
}

// applyFiles serializes each document as indented JSON under prefix.
func (s *Store) applyFiles(prefix string, files map[string]Document) error {
	for name, doc := range files {
		rel := path.Join(prefix, name) + s.cfg.Extension
		full := filepath.Join(s.cfg.Checkout, filepath.FromSlash(rel))

		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %q: %w", rel, err)
		}

		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to serialize document %q: %w", rel, err)
		}

		if err := os.WriteFile(full, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("failed to write document %q: %w", rel, err)
		}
	}
	return nil
}

func validateWriteRequest(req WriteRequest) error {
	if req.ParentVersion == "" {
		return InvalidRequestError{Reason: "parent version is required"}
	}
	if req.Path != "" && !isSafeRelativePath(req.Path) {
		return InvalidRequestError{Reason: fmt.Sprintf("invalid path %q", req.Path)}
	}
	for name := range req.Files {
		if name == "" || !isSafeRelativePath(name) {
			return InvalidRequestError{Reason: fmt.Sprintf("invalid file name %q", name)}
		}
	}
	return nil
}

// isSafeRelativePath rejects anything that could escape the checkout or alias
// another path: absolute paths, dot segments, backslashes.
func isSafeRelativePath(p string) bool {
	if p != path.Clean(p) || strings.HasPrefix(p, "/") || strings.Contains(p, `\`) {
		return false
	}
	if p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return false
	}
	return true
}

// changePath names the path a tree change applies to, whichever side of the
// diff it appears on.
func changePath(change *object.Change) string {
	if change.From.Name != "" {
		return change.From.Name
	}
	return change.To.Name
}
