package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	t.Run("returns an error when no remote is configured", func(t *testing.T) {
		err := run([]string{"gitdocs", "--checkout", "some-dir"}, nil)
		require.ErrorContains(t, err, "remote URL is required")
	})

	t.Run("returns an error when the remote cannot be cloned", func(t *testing.T) {
		err := run([]string{
			"gitdocs",
			"--remote", t.TempDir() + "/does-not-exist",
			"--checkout", t.TempDir() + "/checkout",
		}, nil)
		require.ErrorContains(t, err, "failed to open document store")
	})
}
