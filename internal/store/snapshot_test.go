package store_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/ryanmoran/gitdocs/internal/store"
	"github.com/stretchr/testify/require"
)

func TestSnapshotReads(t *testing.T) {
	setup := func(t *testing.T) *store.Store {
		remote := createRemote(t, map[string]string{
			"rootFile.json":        `{"foo":"bar"}`,
			"dir/nestedFile1.json": `{"foo":"bar","number":1}`,
			"README.md":            "not a document\n",
		})
		return openStore(t, remote)
	}

	t.Run("Object", func(t *testing.T) {
		t.Run("empty path returns the whole nested object", func(t *testing.T) {
			s := setup(t)

			doc, ok, err := s.Object(context.Background(), "main", "")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, map[string]any{
				"rootFile": map[string]any{"foo": "bar"},
				"dir": map[string]any{
					"nestedFile1": map[string]any{"foo": "bar", "number": float64(1)},
				},
			}, doc)
		})

		t.Run("a document path returns the document directly", func(t *testing.T) {
			s := setup(t)

			doc, ok, err := s.Object(context.Background(), "main", "dir/nestedFile1")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, map[string]any{"foo": "bar", "number": float64(1)}, doc)
		})

		t.Run("a path into a document returns the value inside it", func(t *testing.T) {
			s := setup(t)

			doc, ok, err := s.Object(context.Background(), "main", "rootFile/foo")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "bar", doc)
		})

		t.Run("an absent path is not an error", func(t *testing.T) {
			s := setup(t)

			doc, ok, err := s.Object(context.Background(), "main", "dir/missing")
			require.NoError(t, err)
			require.False(t, ok)
			require.Nil(t, doc)
		})

		t.Run("non-document files are ignored", func(t *testing.T) {
			s := setup(t)

			_, ok, err := s.Object(context.Background(), "main", "README")
			require.NoError(t, err)
			require.False(t, ok)
		})
	})

	t.Run("Files", func(t *testing.T) {
		t.Run("empty prefix returns the entire flat map", func(t *testing.T) {
			s := setup(t)

			files, err := s.Files(context.Background(), "main", "")
			require.NoError(t, err)
			require.Equal(t, map[string]any{
				"rootFile":        map[string]any{"foo": "bar"},
				"dir/nestedFile1": map[string]any{"foo": "bar", "number": float64(1)},
			}, files)
		})

		t.Run("a directory prefix returns entries keyed by full path", func(t *testing.T) {
			s := setup(t)

			files, err := s.Files(context.Background(), "main", "dir")
			require.NoError(t, err)
			require.Equal(t, map[string]any{
				"dir/nestedFile1": map[string]any{"foo": "bar", "number": float64(1)},
			}, files)
		})

		t.Run("a prefix naming a document has no children", func(t *testing.T) {
			s := setup(t)

			files, err := s.Files(context.Background(), "main", "rootFile")
			require.NoError(t, err)
			require.Empty(t, files)
		})

		t.Run("a partial segment does not match", func(t *testing.T) {
			s := setup(t)

			files, err := s.Files(context.Background(), "main", "di")
			require.NoError(t, err)
			require.Empty(t, files)
		})
	})

	t.Run("flat and nested forms are consistent", func(t *testing.T) {
		s := setup(t)

		files, err := s.Files(context.Background(), "main", "")
		require.NoError(t, err)

		for path, want := range files {
			doc, ok, err := s.Object(context.Background(), "main", path)
			require.NoError(t, err)
			require.True(t, ok, "flat entry %q missing from nested object", path)
			require.Equal(t, want, doc)
		}
	})

	t.Run("repeated reads of the same version are identical", func(t *testing.T) {
		s := setup(t)

		first, ok, err := s.Object(context.Background(), "main", "")
		require.NoError(t, err)
		require.True(t, ok)

		second, ok, err := s.Object(context.Background(), "main", "")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, first, second)
	})

	t.Run("failure cases", func(t *testing.T) {
		t.Run("a document that fails to parse aborts the read", func(t *testing.T) {
			remote := createRemote(t, map[string]string{
				"good.json": `{"ok":true}`,
				"bad.json":  `{"ok":`,
			})
			s := openStore(t, remote)

			_, _, err := s.Object(context.Background(), "main", "")
			var malformed store.MalformedDocumentError
			require.ErrorAs(t, err, &malformed)
			require.Equal(t, "bad.json", malformed.Path)
		})

		t.Run("a document path that is also a directory is rejected", func(t *testing.T) {
			remote := createRemote(t, map[string]string{
				"a.json":   `{"doc":true}`,
				"a/b.json": `{"child":true}`,
			})
			s := openStore(t, remote)

			_, _, err := s.Object(context.Background(), "main", "")
			var conflict store.PathConflictError
			require.ErrorAs(t, err, &conflict)
			require.Equal(t, "a", conflict.Path)
		})

		t.Run("a failed read does not block later operations", func(t *testing.T) {
			remote := createRemote(t, map[string]string{
				"bad.json": `{"ok":`,
			})
			s := openStore(t, remote)

			_, _, err := s.Object(context.Background(), "main", "")
			require.Error(t, err)

			_, err = s.Latest(context.Background())
			require.NoError(t, err)
		})
	})

	t.Run("handles a larger tree", func(t *testing.T) {
		files := make(map[string]string)
		for i := 0; i < 20; i++ {
			files[fmt.Sprintf("group%d/item%d.json", i%4, i)] = fmt.Sprintf(`{"id":%d}`, i)
		}
		remote := createRemote(t, files)
		s := openStore(t, remote)

		flat, err := s.Files(context.Background(), "main", "")
		require.NoError(t, err)
		require.Len(t, flat, 20)

		for path := range flat {
			require.True(t, strings.HasPrefix(path, "group"))
		}

		group, err := s.Files(context.Background(), "main", "group0")
		require.NoError(t, err)
		require.Len(t, group, 5)
	})
}
