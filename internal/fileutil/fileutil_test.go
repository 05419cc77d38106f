package fileutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")

	content := []byte("hello world")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyTreeCopiesNestedFiles(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "template")
	mustWrite(t, filepath.Join(src, "Base.uproject"), "{}")
	mustWrite(t, filepath.Join(src, "Content", "Maps", "Main.umap"), "map")
	if err := os.Symlink("Base.uproject", filepath.Join(src, "link")); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(dir, "copy")
	if err := CopyTree(src, dst); err != nil {
		t.Fatalf("CopyTree: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dst, "Content", "Maps", "Main.umap"))
	if err != nil || string(got) != "map" {
		t.Fatalf("nested file not copied: %q %v", got, err)
	}
	if link, err := os.Readlink(filepath.Join(dst, "link")); err != nil || link != "Base.uproject" {
		t.Fatalf("symlink not recreated: %q %v", link, err)
	}
}

func TestCopyTreeRefusesExistingDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	mustWrite(t, filepath.Join(src, "a"), "a")
	dst := filepath.Join(dir, "dst")
	if err := os.MkdirAll(dst, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := CopyTree(src, dst); !errors.Is(err, fs.ErrExist) {
		t.Fatalf("expected ErrExist, got %v", err)
	}
}

func TestMoveDir(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "work", "project")
	mustWrite(t, filepath.Join(src, "file.txt"), "data")
	dst := filepath.Join(dir, "out", "nested", "project")

	if err := MoveDir(src, dst); err != nil {
		t.Fatalf("MoveDir: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected source removed, got %v", err)
	}
	if got, err := os.ReadFile(filepath.Join(dst, "file.txt")); err != nil || string(got) != "data" {
		t.Fatalf("moved content mismatch: %q %v", got, err)
	}

	mustWrite(t, filepath.Join(src, "file.txt"), "again")
	if err := MoveDir(src, dst); !errors.Is(err, fs.ErrExist) {
		t.Fatalf("expected ErrExist when destination exists, got %v", err)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "project.json")
	if err := WriteFileAtomic(path, []byte(`{"a":1}`), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("unexpected mode %v", info.Mode().Perm())
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files cleaned up, got %d entries", len(entries))
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
