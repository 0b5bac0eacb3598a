package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Document is the parsed value of one document file: an object, array, or
// scalar as produced by encoding/json.
type Document = any

// Snapshot is the materialized view of one commit's document tree. Nested
// mirrors the directory structure as nested objects; Flat maps each document's
// slash-separated path (extension stripped) to its value. Both forms are
// derived from the same commit and are never partially rebuilt.
type Snapshot struct {
	Commit plumbing.Hash
	Nested map[string]Document
	Flat   map[string]Document
}

// buildSnapshot walks the commit's tree and parses every file whose name ends
// in ext. A parse failure aborts the build so callers never see a partial
// snapshot. Files whose name is exactly the extension are skipped.
func buildSnapshot(commit *object.Commit, ext string) (*Snapshot, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to load tree for commit %s: %w", commit.Hash, err)
	}

	flat := make(map[string]Document)
	err = tree.Files().ForEach(func(file *object.File) error {
		if !strings.HasSuffix(file.Name, ext) {
			return nil
		}

		key := strings.TrimSuffix(file.Name, ext)
		if key == "" || strings.HasSuffix(key, "/") {
			return nil
		}

		contents, err := file.Contents()
		if err != nil {
			return fmt.Errorf("failed to read blob for %q: %w", file.Name, err)
		}

		var doc Document
		if err := json.Unmarshal([]byte(contents), &doc); err != nil {
			return MalformedDocumentError{Path: file.Name, Err: err}
		}

		flat[key] = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	nested, err := nestDocuments(flat)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Commit: commit.Hash,
		Nested: nested,
		Flat:   flat,
	}, nil
}

// nestDocuments reassembles the flat map into a hierarchy of objects keyed by
// path segment. A document whose path is also a directory of another document
// cannot be represented in both forms at once and is rejected.
func nestDocuments(flat map[string]Document) (map[string]Document, error) {
	keys := make([]string, 0, len(flat))
	for key := range flat {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	nested := make(map[string]Document)
	for _, key := range keys {
		segments := strings.Split(key, "/")
		for i := 1; i < len(segments); i++ {
			dir := strings.Join(segments[:i], "/")
			if _, ok := flat[dir]; ok {
				return nil, PathConflictError{Path: dir}
			}
		}

		level := nested
		for _, segment := range segments[:len(segments)-1] {
			next, ok := level[segment]
			if !ok {
				child := make(map[string]Document)
				level[segment] = child
				level = child
				continue
			}
			// Document values at directory paths were rejected above, so
			// anything found here is a level we created ourselves.
			level = next.(map[string]Document)
		}
		level[segments[len(segments)-1]] = flat[key]
	}

	return nested, nil
}

// Object returns the nested value reached by following the slash-separated
// path. The empty path returns the whole nested object. An absent path is
// reported through the boolean, not an error, so callers decide how to
// surface "not found".
func (s *Snapshot) Object(path string) (Document, bool) {
	if path == "" {
		return s.Nested, true
	}

	var current Document = s.Nested
	for _, segment := range strings.Split(path, "/") {
		level, ok := current.(map[string]Document)
		if !ok {
			return nil, false
		}
		current, ok = level[segment]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// Files returns the flat-map entries under prefix, keyed by full path. The
// empty prefix returns a copy of the entire flat map. A prefix that exactly
// names a document returns an empty map, since a document has no children.
func (s *Snapshot) Files(prefix string) map[string]Document {
	files := make(map[string]Document)
	if prefix == "" {
		for key, doc := range s.Flat {
			files[key] = doc
		}
		return files
	}

	dir := prefix + "/"
	for key, doc := range s.Flat {
		if strings.HasPrefix(key, dir) {
			files[key] = doc
		}
	}
	return files
}
