// Package badguys registers the adversarial fixture patches the runner is
// exercised against. Declarations live under badguys/patches; importing this
// package binds their bodies into patch.Default.
//
// Idempotence per category:
//   - git/00_simple_change toggles its file, so every run commits.
//   - git/01_marker writes fixed content; once applied, reruns are no-ops.
//   - workspace and preflight fixtures never commit.
package badguys

import (
	"context"
	"errors"
	"io/fs"

	"patchrunner/internal/patch"
	"patchrunner/internal/workspace"
)

const (
	SimpleChangeFile = "tmp/simple_change.txt"
	MarkerFile       = "tmp/marker.txt"
	DeclaredFile     = "tmp/declared.txt"
	UndeclaredFile   = "UNDECLARED_DIRTY.txt"
	OwnedFile        = "OWNED.txt"
)

func init() {
	Register(patch.Default)
}

// Register binds every fixture body into r.
func Register(r *patch.Registry) {
	r.Register("git/00_simple_change", SimpleChange)
	r.Register("git/01_marker", Marker)
	r.Register("preflight/00_outside_root", OutsideRoot)
	r.Register("workspace/00_undeclared_dirty", UndeclaredDirty)
}

// SimpleChange flips SimpleChangeFile between "A\n" and "B\n"; a missing file
// becomes "A\n".
func SimpleChange(_ context.Context, ws *workspace.Workspace) error {
	cur, err := ws.ReadFile(SimpleChangeFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	next := "A\n"
	if string(cur) == "A\n" {
		next = "B\n"
	}
	return ws.WriteFile(SimpleChangeFile, []byte(next))
}

func Marker(_ context.Context, ws *workspace.Workspace) error {
	return ws.WriteFile(MarkerFile, []byte("patched\n"))
}

// OutsideRoot is bound to a declaration that resolves outside the patches
// root. The path check rejects it, so this must never run.
func OutsideRoot(_ context.Context, ws *workspace.Workspace) error {
	return ws.WriteFile(OwnedFile, []byte("owned\n"))
}

// UndeclaredDirty writes its declared file and one more.
func UndeclaredDirty(_ context.Context, ws *workspace.Workspace) error {
	if err := ws.WriteFile(DeclaredFile, []byte("declared\n")); err != nil {
		return err
	}
	return ws.WriteFile(UndeclaredFile, []byte("dirty\n"))
}
