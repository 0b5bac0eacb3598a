package store_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ryanmoran/gitdocs/internal/store"
	"github.com/stretchr/testify/require"
)

func gitCommand(t *testing.T, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Some User",
		"GIT_AUTHOR_EMAIL=some@example.com",
		"GIT_COMMITTER_NAME=Some User",
		"GIT_COMMITTER_EMAIL=some@example.com",
	)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), string(output))
	return strings.TrimSpace(string(output))
}

func writeFixtureFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for name, contents := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(contents), 0o644))
	}
}

// createRemote builds a bare repository whose main branch holds the given
// files, and returns its path for use as a remote URL.
func createRemote(t *testing.T, files map[string]string) string {
	t.Helper()

	remote := filepath.Join(t.TempDir(), "remote.git")
	gitCommand(t, t.TempDir(), "init", "--bare", "-b", "main", remote)

	work := t.TempDir()
	gitCommand(t, work, "init", "-b", "main")
	writeFixtureFiles(t, work, files)
	gitCommand(t, work, "add", "-A")
	gitCommand(t, work, "commit", "-m", "seed")
	gitCommand(t, work, "remote", "add", "origin", remote)
	gitCommand(t, work, "push", "origin", "main")

	return remote
}

// pushFiles commits the given files on top of branch in a fresh clone and
// pushes, returning the new tip hash.
func pushFiles(t *testing.T, remote, branch string, files map[string]string, message string) string {
	t.Helper()

	work := filepath.Join(t.TempDir(), "work")
	gitCommand(t, t.TempDir(), "clone", "--branch", branch, remote, work)
	writeFixtureFiles(t, work, files)
	gitCommand(t, work, "add", "-A")
	gitCommand(t, work, "commit", "-m", message)
	gitCommand(t, work, "push", "origin", branch)

	return gitCommand(t, work, "rev-parse", "HEAD")
}

func openStore(t *testing.T, remote string) *store.Store {
	t.Helper()

	s, err := store.Open(context.Background(), store.Config{
		Remote:   remote,
		Checkout: filepath.Join(t.TempDir(), "checkout"),
		Author: store.Author{
			Name:  "Some User",
			Email: "some@example.com",
		},
	})
	require.NoError(t, err)
	return s
}
