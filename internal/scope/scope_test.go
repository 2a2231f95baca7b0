package scope

import (
	"testing"

	"patchrunner/internal/patch"
	"patchrunner/internal/report"
	"patchrunner/internal/workspace"
)

func mustPatch(t *testing.T, id string, files ...string) *patch.Patch {
	t.Helper()
	pid, err := patch.ParseID(id)
	if err != nil {
		t.Fatalf("ParseID: %v", err)
	}
	p, err := patch.New(pid, pid.Name()+".yaml", "", files, nil)
	if err != nil {
		t.Fatalf("patch.New: %v", err)
	}
	return p
}

func digest(b byte) workspace.Digest {
	var d workspace.Digest
	d[0] = b
	return d
}

func TestCheck(t *testing.T) {
	p := mustPatch(t, "workspace/00_undeclared_dirty", "tmp/declared.txt", "tmp/never_touched.txt")

	pre := workspace.Snapshot{
		"tmp/declared.txt": digest(1),
		"keep.txt":         digest(2),
		"removed.txt":      digest(3),
	}
	post := workspace.Snapshot{
		"tmp/declared.txt":     digest(9),
		"keep.txt":             digest(2),
		"UNDECLARED_DIRTY.txt": digest(4),
	}

	res := Check(p, pre, post)
	if res.OK() {
		t.Fatal("expected violations")
	}
	want := []string{"UNDECLARED_DIRTY.txt", "removed.txt"}
	if len(res.Violations) != len(want) {
		t.Fatalf("violations = %v, want paths %v", res.Violations, want)
	}
	for i, v := range res.Violations {
		if v.Code != report.CodeUndeclaredFile || v.Path != want[i] {
			t.Fatalf("violation %d = %v, want SCOPE:UNDECLARED_FILE %s", i, v, want[i])
		}
	}
	if len(res.Untouched) != 1 || res.Untouched[0] != "tmp/never_touched.txt" {
		t.Fatalf("Untouched = %v", res.Untouched)
	}
	if len(res.Changes) != 3 {
		t.Fatalf("Changes = %v", res.Changes)
	}
}

func TestCheck_OverDeclarationIsPermitted(t *testing.T) {
	p := mustPatch(t, "git/00_simple_change", "tmp/simple_change.txt", "tmp/other.txt")
	pre := workspace.Snapshot{}
	post := workspace.Snapshot{"tmp/simple_change.txt": digest(1)}

	res := Check(p, pre, post)
	if !res.OK() {
		t.Fatalf("unexpected violations: %v", res.Violations)
	}
}

func TestCheck_NoChanges(t *testing.T) {
	p := mustPatch(t, "git/00_simple_change", "tmp/simple_change.txt")
	snap := workspace.Snapshot{"tmp/simple_change.txt": digest(1)}
	res := Check(p, snap, snap)
	if !res.OK() || len(res.Changes) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}
