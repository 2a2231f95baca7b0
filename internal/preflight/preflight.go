// Package preflight holds the read-only checks that run before a patch body
// is allowed to mutate the workspace.
package preflight

import (
	"context"
	"fmt"
	"path/filepath"

	"patchrunner/internal/patch"
	"patchrunner/internal/report"
	"patchrunner/internal/workspace"
)

// StatusReader reports the workspace paths that differ from the last commit.
type StatusReader interface {
	DirtyPaths(ctx context.Context) ([]string, error)
}

// CheckPath verifies that script resolves to a location physically under root.
// Both sides are resolved through symlinks before the lexical comparison.
func CheckPath(root, script string) []report.Violation {
	resolvedRoot, err := resolve(root)
	if err != nil {
		return []report.Violation{{Code: report.CodePatchPath, Path: script, Message: fmt.Sprintf("cannot resolve patches root: %v", err)}}
	}
	resolved, err := resolve(script)
	if err != nil {
		return []report.Violation{{Code: report.CodePatchPath, Path: script, Message: fmt.Sprintf("cannot resolve patch path: %v", err)}}
	}
	if resolved == resolvedRoot || !workspace.Within(resolvedRoot, resolved) {
		return []report.Violation{{Code: report.CodePatchPath, Path: script, Message: fmt.Sprintf("resolves to %s, outside patches root %s", resolved, resolvedRoot)}}
	}
	return nil
}

func resolve(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// CheckClean verifies that every dirty path in the workspace is declared by p.
// The error return is reserved for a status read failure.
func CheckClean(ctx context.Context, status StatusReader, p *patch.Patch) ([]report.Violation, error) {
	dirty, err := status.DirtyPaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("read workspace status: %w", err)
	}
	var out []report.Violation
	for _, d := range dirty {
		if p.Declares(d) {
			continue
		}
		out = append(out, report.Violation{
			Code:    report.CodeDirtyWorkspace,
			Path:    d,
			Message: "uncommitted change not declared by " + p.ID.String(),
		})
	}
	report.SortViolations(out)
	return out, nil
}
