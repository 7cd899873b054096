// Package fileset produces the stream of file records a sync run consumes.
// It walks a local root directory and yields one fully buffered record per
// file, with exclude-pattern support.
package fileset

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/bucketsync/bucketsync/pkg/syncer"
)

// Walker walks local files under a root directory.
type Walker struct {
	root     string
	excludes []string
}

// NewWalker creates a walker rooted at root. Excludes are doublestar glob
// patterns matched against forward-slash relative paths.
func NewWalker(root string, excludes []string) (*Walker, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("get absolute path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", absRoot)
	}

	return &Walker{
		root:     absRoot,
		excludes: excludes,
	}, nil
}

// Stream walks the tree and sends one record per file. The records channel
// closes when the walk finishes; errs is settled before that close and
// carries at most one error, so a failed walk is observable by the consumer
// as soon as the stream ends. A canceled context stops the walk.
func (w *Walker) Stream(ctx context.Context) (<-chan *syncer.FileRecord, <-chan error) {
	records := make(chan *syncer.FileRecord)
	errs := make(chan error, 1)

	go func() {
		defer close(records)
		defer close(errs)
		if err := w.walk(ctx, records); err != nil {
			errs <- err
		}
	}()

	return records, errs
}

func (w *Walker) walk(ctx context.Context, records chan<- *syncer.FileRecord) error {
	return filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(w.root, path)
		if err != nil {
			return fmt.Errorf("get relative path: %w", err)
		}
		relPath = filepath.ToSlash(relPath)

		if w.isExcluded(relPath) {
			return nil
		}

		body, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case records <- &syncer.FileRecord{Path: relPath, Body: body}:
		}
		return nil
	})
}

func (w *Walker) isExcluded(relPath string) bool {
	for _, pattern := range w.excludes {
		if matched, _ := doublestar.Match(pattern, relPath); matched {
			return true
		}
	}
	return false
}
