// Package scope enforces that a patch only mutates the files it declares.
package scope

import (
	"patchrunner/internal/patch"
	"patchrunner/internal/report"
	"patchrunner/internal/workspace"
)

// Result is the outcome of a scope check.
type Result struct {
	// Changes is the patch's actual effect.
	Changes []workspace.Change

	// Violations holds one SCOPE:UNDECLARED_FILE per changed path p does not declare.
	Violations []report.Violation

	// Untouched lists declared paths the body left alone. Over-declaration is
	// permitted; this is informational.
	Untouched []string
}

// Check compares the pre- and post-body snapshots against p's declared files.
func Check(p *patch.Patch, pre, post workspace.Snapshot) Result {
	changes := workspace.Diff(pre, post)

	res := Result{Changes: changes}
	touched := make(map[string]struct{}, len(changes))
	for _, c := range changes {
		touched[c.Path] = struct{}{}
		if p.Declares(c.Path) {
			continue
		}
		res.Violations = append(res.Violations, report.Violation{
			Code:    report.CodeUndeclaredFile,
			Path:    c.Path,
			Message: string(c.Kind) + " but not declared by " + p.ID.String(),
		})
	}
	for _, f := range p.DeclaredFiles() {
		if _, ok := touched[f]; !ok {
			res.Untouched = append(res.Untouched, f)
		}
	}
	return res
}

func (r Result) OK() bool {
	return len(r.Violations) == 0
}
