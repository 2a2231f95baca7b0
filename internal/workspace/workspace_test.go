package workspace

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestCleanRel(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "tmp/simple_change.txt", want: "tmp/simple_change.txt"},
		{in: "./tmp//a.txt", want: "tmp/a.txt"},
		{in: "tmp/../b.txt", want: "b.txt"},
		{in: "  c.txt ", want: "c.txt"},
		{in: "", wantErr: true},
		{in: ".", wantErr: true},
		{in: "../outside.txt", wantErr: true},
		{in: "tmp/../../outside.txt", wantErr: true},
		{in: "/etc/passwd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CleanRel(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("CleanRel(%q) = %q, expected error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("CleanRel(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("CleanRel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWithin(t *testing.T) {
	root := filepath.Join("/", "srv", "patches")
	tests := []struct {
		path string
		want bool
	}{
		{path: root, want: true},
		{path: filepath.Join(root, "git", "00_a.yaml"), want: true},
		{path: filepath.Join(root, "..", "patches", "x.yaml"), want: true},
		{path: filepath.Join("/", "srv", "patches-evil", "x.yaml"), want: false},
		{path: filepath.Join("/", "srv", "x.yaml"), want: false},
		{path: filepath.Join(root, "..", "x.yaml"), want: false},
	}
	for _, tt := range tests {
		if got := Within(root, tt.path); got != tt.want {
			t.Errorf("Within(%q, %q) = %v, want %v", root, tt.path, got, tt.want)
		}
	}
}

func TestWorkspace_WriteReadRemove(t *testing.T) {
	ws, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ws.WriteFile("tmp/nested/a.txt", []byte("A\n")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ws.ReadFile("tmp/nested/a.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "A\n" {
		t.Fatalf("ReadFile = %q, want %q", got, "A\n")
	}
	if !ws.Exists("tmp/nested/a.txt") {
		t.Fatal("expected file to exist")
	}
	if err := ws.Remove("tmp/nested/a.txt"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if ws.Exists("tmp/nested/a.txt") {
		t.Fatal("expected file to be removed")
	}
	// Removing a missing file is not an error.
	if err := ws.Remove("tmp/nested/a.txt"); err != nil {
		t.Fatalf("Remove missing: %v", err)
	}
	if err := ws.WriteFile("../escape.txt", nil); err == nil {
		t.Fatal("expected error writing outside the workspace")
	}
}

func TestNew_RejectsMissingOrFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := New(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("expected error for missing root")
	}
	writeFile(t, dir, "file.txt", "x")
	if _, err := New(filepath.Join(dir, "file.txt")); err == nil {
		t.Fatal("expected error for file root")
	}
	if _, err := New("  "); err == nil {
		t.Fatal("expected error for empty root")
	}
}

func TestTake_AndDiff(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, root, "keep.txt", "same")
	writeFile(t, root, "edit.txt", "before")
	writeFile(t, root, "gone.txt", "bye")
	writeFile(t, root, ".git/HEAD", "ref: refs/heads/main")
	writeFile(t, root, "build/out.bin", "ignored")

	opts := SnapshotOptions{Exclude: []string{"build"}, Concurrency: 2}
	pre, err := Take(ctx, root, opts)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if _, ok := pre[".git/HEAD"]; ok {
		t.Fatal(".git must not be part of the snapshot")
	}
	if _, ok := pre["build/out.bin"]; ok {
		t.Fatal("excluded directory must not be part of the snapshot")
	}
	if len(pre) != 3 {
		t.Fatalf("expected 3 paths, got %v", pre)
	}

	writeFile(t, root, "edit.txt", "after")
	writeFile(t, root, "new/file.txt", "hello")
	if err := os.Remove(filepath.Join(root, "gone.txt")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	writeFile(t, root, "build/out.bin", "changed but ignored")

	post, err := Take(ctx, root, opts)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}

	got := Diff(pre, post)
	want := []Change{
		{Path: "edit.txt", Kind: Modified},
		{Path: "gone.txt", Kind: Deleted},
		{Path: "new/file.txt", Kind: Created},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Diff = %v, want %v", got, want)
	}
}

func TestTake_Symlink(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, root, "target.txt", "x")
	if err := os.Symlink("target.txt", filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	pre, err := Take(ctx, root, SnapshotOptions{})
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if _, ok := pre["link"]; !ok {
		t.Fatalf("expected symlink in snapshot: %v", pre)
	}

	if err := os.Remove(filepath.Join(root, "link")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := os.Symlink("elsewhere.txt", filepath.Join(root, "link")); err != nil {
		t.Fatalf("Symlink: %v", err)
	}
	post, err := Take(ctx, root, SnapshotOptions{})
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if got := ChangedPaths(pre, post); !reflect.DeepEqual(got, []string{"link"}) {
		t.Fatalf("ChangedPaths = %v, want [link]", got)
	}
}

func TestTake_ExecutableBitChangesDigest(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, root, "run.sh", "echo hi\n")

	pre, err := Take(ctx, root, SnapshotOptions{})
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if err := os.Chmod(filepath.Join(root, "run.sh"), 0o755); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	post, err := Take(ctx, root, SnapshotOptions{})
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	want := []Change{{Path: "run.sh", Kind: Modified}}
	if got := Diff(pre, post); !reflect.DeepEqual(got, want) {
		t.Fatalf("Diff = %v, want %v", got, want)
	}
}

func TestBaseline(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, root, "a.txt", "A\n")

	b, err := NewBaseline(ctx, root, SnapshotOptions{})
	if err != nil {
		t.Fatalf("NewBaseline: %v", err)
	}
	dirty, err := b.DirtyPaths(ctx)
	if err != nil {
		t.Fatalf("DirtyPaths: %v", err)
	}
	if len(dirty) != 0 {
		t.Fatalf("expected clean baseline, got %v", dirty)
	}

	writeFile(t, root, "a.txt", "B\n")
	dirty, err = b.DirtyPaths(ctx)
	if err != nil {
		t.Fatalf("DirtyPaths: %v", err)
	}
	if !reflect.DeepEqual(dirty, []string{"a.txt"}) {
		t.Fatalf("DirtyPaths = %v, want [a.txt]", dirty)
	}

	cur, err := Take(ctx, root, SnapshotOptions{})
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if err := b.MarkCommitted(ctx, cur); err != nil {
		t.Fatalf("MarkCommitted: %v", err)
	}
	dirty, err = b.DirtyPaths(ctx)
	if err != nil {
		t.Fatalf("DirtyPaths: %v", err)
	}
	if len(dirty) != 0 {
		t.Fatalf("expected clean after MarkCommitted, got %v", dirty)
	}
}
