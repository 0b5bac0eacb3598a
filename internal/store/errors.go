package store

import "fmt"

// InvalidRequestError indicates a write request that is malformed on its
// face: a missing parent version or an unsafe path.
type InvalidRequestError struct {
	Reason string
}

func (e InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid write request: %s", e.Reason)
}

// VersionNotFoundError indicates a version token matched neither a remote
// branch nor a commit in the repository.
type VersionNotFoundError struct {
	Token string
}

func (e VersionNotFoundError) Error() string {
	return fmt.Sprintf("version not found: %q", e.Token)
}

// UpdateBranchNotFoundError indicates the branch a write targets could not
// be resolved.
type UpdateBranchNotFoundError struct {
	Branch string
}

func (e UpdateBranchNotFoundError) Error() string {
	return fmt.Sprintf("update branch not found: %q", e.Branch)
}

// RemoteUnavailableError wraps a failure to reach the configured origin
// during fetch or push.
type RemoteUnavailableError struct {
	Remote string
	Err    error
}

func (e RemoteUnavailableError) Error() string {
	return fmt.Sprintf("remote %q unavailable: %s", e.Remote, e.Err)
}

func (e RemoteUnavailableError) Unwrap() error {
	return e.Err
}

// MalformedDocumentError indicates a document file in the tree could not be
// parsed. No partial snapshot is exposed when this is raised.
type MalformedDocumentError struct {
	Path string
	Err  error
}

func (e MalformedDocumentError) Error() string {
	return fmt.Sprintf("malformed document at %q: %s", e.Path, e.Err)
}

func (e MalformedDocumentError) Unwrap() error {
	return e.Err
}

// PathConflictError indicates a document path is also used as a directory
// by another document, so the nested object cannot hold both.
type PathConflictError struct {
	Path string
}

func (e PathConflictError) Error() string {
	return fmt.Sprintf("path conflict: %q names both a document and a directory", e.Path)
}

// MergeConflictError indicates the update branch diverged with changes that
// overlap the paths touched by a write.
type MergeConflictError struct {
	Paths []string
}

func (e MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict on paths %v", e.Paths)
}

// PushVerificationFailedError indicates the remote branch pointer did not
// match the pushed commit when re-checked after push.
type PushVerificationFailedError struct {
	Branch string
	Want   string
	Got    string
}

func (e PushVerificationFailedError) Error() string {
	return fmt.Sprintf("push verification failed for branch %q: remote at %s, expected %s", e.Branch, e.Got, e.Want)
}
