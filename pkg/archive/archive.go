// Package archive copies a job's output to a durable remote location after
// execution finishes. A directory source is archived recursively, preserving
// its relative structure under the target. Archival is best-effort
// durability: failures are reported but never change a job's outcome.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrSourceMissing is returned when the source path does not exist.
var ErrSourceMissing = errors.New("archive: source path does not exist")

// Archiver copies a file or directory tree to a target URI.
type Archiver interface {
	// Archive copies path (file or directory) under targetURI. For a
	// directory the relative structure is preserved.
	Archive(ctx context.Context, path string, targetURI string) error
}

// entry is one file to transfer: its absolute location and the relative key
// it keeps under the target.
type entry struct {
	abs string
	rel string
}

// collect enumerates the files to archive. A plain file maps to its base
// name; a directory maps every regular file to its path relative to the
// directory root. Symlinks and other non-regular files are skipped.
func collect(path string) ([]entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceMissing, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if !info.IsDir() {
		return []entry{{abs: path, rel: filepath.Base(path)}}, nil
	}

	var entries []entry
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(path, p)
		if err != nil {
			return err
		}
		entries = append(entries, entry{abs: p, rel: rel})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", path, err)
	}
	return entries, nil
}
