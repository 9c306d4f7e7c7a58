package archive

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/awesomeDataTool/genie/pkg/gerr"
)

// FileArchiver implements Archiver for file:// targets. It copies the source
// tree into the target directory, creating it if needed. Used by tests and by
// local runs without object storage.
type FileArchiver struct{}

// NewFileArchiver creates a filesystem archiver.
func NewFileArchiver() *FileArchiver {
	return &FileArchiver{}
}

// Archive copies the source file or directory tree under the target URI.
func (a *FileArchiver) Archive(ctx context.Context, srcPath string, targetURI string) error {
	targetDir, err := parseFileTarget(targetURI)
	if err != nil {
		return gerr.New(gerr.CodeArchivalFailed, err)
	}

	entries, err := collect(srcPath)
	if err != nil {
		return gerr.New(gerr.CodeArchivalFailed, err)
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return gerr.New(gerr.CodeArchivalFailed, err)
		}
		dst := filepath.Join(targetDir, e.rel)
		if err := copyFile(e.abs, dst); err != nil {
			return gerr.New(gerr.CodeArchivalFailed, err)
		}
	}
	return nil
}

func parseFileTarget(targetURI string) (string, error) {
	u, err := url.Parse(targetURI)
	if err != nil {
		return "", fmt.Errorf("invalid target uri %q: %w", targetURI, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("target uri %q: expected file scheme, got %q", targetURI, u.Scheme)
	}
	if u.Path == "" {
		return "", fmt.Errorf("target uri %q: missing path", targetURI)
	}
	return u.Path, nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	return out.Close()
}

// Ensure FileArchiver implements Archiver.
var _ Archiver = (*FileArchiver)(nil)
