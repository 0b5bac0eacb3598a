package internal_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ryanmoran/gitdocs/internal"
)

func TestCleanupManager(t *testing.T) {
	t.Run("executes cleanup functions in LIFO order", func(t *testing.T) {
		manager := internal.NewCleanupManager(internal.NewCustomWriter(io.Discard, io.Discard))

		var order []string
		manager.Add("first", func() error {
			order = append(order, "first")
			return nil
		})
		manager.Add("second", func() error {
			order = append(order, "second")
			return nil
		})
		manager.Add("third", func() error {
			order = append(order, "third")
			return nil
		})

		manager.Execute()
		require.Equal(t, []string{"third", "second", "first"}, order)
	})

	t.Run("continues past failures and reports them", func(t *testing.T) {
		var warnings bytes.Buffer
		manager := internal.NewCleanupManager(internal.NewCustomWriter(io.Discard, &warnings))

		var ran []string
		manager.Add("ok", func() error {
			ran = append(ran, "ok")
			return nil
		})
		manager.Add("broken", func() error {
			ran = append(ran, "broken")
			return errors.New("did not work")
		})

		manager.Execute()
		require.Equal(t, []string{"broken", "ok"}, ran)
		require.Contains(t, warnings.String(), "cleanup failed for broken")
		require.Contains(t, warnings.String(), "did not work")
	})

	t.Run("does nothing when empty", func(t *testing.T) {
		manager := internal.NewCleanupManager(internal.NewCustomWriter(io.Discard, io.Discard))
		manager.Execute()
	})
}
