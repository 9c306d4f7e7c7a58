package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/awesomeDataTool/genie/pkg/gerr"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestFileArchiver_DirectoryPreservesStructure(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "stdout.log"), "hello")
	writeFile(t, filepath.Join(src, "output", "part-0000.csv"), "a,b,c")

	dst := t.TempDir()
	archiver := NewFileArchiver()

	if err := archiver.Archive(context.Background(), src, "file://"+dst); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dst, "stdout.log"))
	if err != nil || string(got) != "hello" {
		t.Errorf("stdout.log not archived correctly: %v %q", err, got)
	}
	got, err = os.ReadFile(filepath.Join(dst, "output", "part-0000.csv"))
	if err != nil || string(got) != "a,b,c" {
		t.Errorf("Nested file not archived correctly: %v %q", err, got)
	}
}

func TestFileArchiver_SingleFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "result.txt")
	writeFile(t, src, "done")

	dst := t.TempDir()
	archiver := NewFileArchiver()

	if err := archiver.Archive(context.Background(), src, "file://"+dst); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dst, "result.txt"))
	if err != nil || string(got) != "done" {
		t.Errorf("File not archived under its base name: %v %q", err, got)
	}
}

func TestFileArchiver_MissingSource(t *testing.T) {
	archiver := NewFileArchiver()

	err := archiver.Archive(context.Background(), filepath.Join(t.TempDir(), "nope"), "file:///tmp/out")
	if !errors.Is(err, ErrSourceMissing) {
		t.Fatalf("Expected ErrSourceMissing, got %v", err)
	}
	if !gerr.IsCode(err, gerr.CodeArchivalFailed) {
		t.Errorf("Expected gerr code archival_failed, got %v", gerr.CodeOf(err))
	}
}

func TestFileArchiver_RejectsForeignScheme(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "f"), "x")

	archiver := NewFileArchiver()
	if err := archiver.Archive(context.Background(), src, "s3://bucket/prefix"); err == nil {
		t.Error("Expected error for non-file scheme")
	}
}
