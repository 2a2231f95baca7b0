package cli

import (
	"bytes"
	"strings"
	"testing"

	"patchrunner/internal/badguys"
	"patchrunner/internal/loader"
	"patchrunner/internal/patch"
	"patchrunner/internal/report"
)

const fixtureRoot = "../../badguys/patches"

func useFixtures(t *testing.T) {
	t.Helper()
	reg := patch.NewRegistry()
	badguys.Register(reg)
	savedReg, savedRoot := patchRegistry, patchesRoot
	patchRegistry, patchesRoot = reg, fixtureRoot
	t.Cleanup(func() { patchRegistry, patchesRoot = savedReg, savedRoot })
}

func TestPrintPatch(t *testing.T) {
	id, err := patch.ParseID("git/00_simple_change")
	if err != nil {
		t.Fatal(err)
	}
	p, err := patch.New(id, "00_simple_change.yaml", "/p/git/00_simple_change.yaml", []string{"b.txt", "./a.txt"}, badguys.SimpleChange)
	if err != nil {
		t.Fatal(err)
	}
	p.Description = "Toggle a file"

	tests := []struct {
		name           string
		entry          loader.Entry
		expectedOutput []string
		notExpected    []string
	}{
		{
			name:  "Loaded Patch",
			entry: loader.Entry{Script: loader.Script{ID: id}, Patch: p},
			expectedOutput: []string{
				"PATCH: git/00_simple_change",
				"Toggle a file",
				"Files:\n  a.txt\n  b.txt\n",
			},
			notExpected: []string{"REJECTED"},
		},
		{
			name: "Rejected Patch",
			entry: loader.Entry{Script: loader.Script{ID: id}, Violations: []report.Violation{
				{Code: report.CodePatchPath, Path: "git/00_simple_change.yaml", Message: "resolves outside the patches root"},
			}},
			expectedOutput: []string{
				"PATCH: git/00_simple_change",
				"REJECTED",
				"PREFLIGHT:PATCH_PATH git/00_simple_change.yaml",
			},
			notExpected: []string{"Files:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			printPatch(buf, tt.entry)
			output := buf.String()

			for _, exp := range tt.expectedOutput {
				if !strings.Contains(output, exp) {
					t.Errorf("Expected output to contain %q, but it didn't.\nOutput:\n%s", exp, output)
				}
			}
			for _, notExp := range tt.notExpected {
				if strings.Contains(output, notExp) {
					t.Errorf("Expected output NOT to contain %q, but it did.\nOutput:\n%s", notExp, output)
				}
			}
		})
	}
}

func TestPatchesListCmd(t *testing.T) {
	useFixtures(t)

	tests := []struct {
		name           string
		quiet          bool
		expectedOutput []string
		notExpected    []string
	}{
		{
			name: "Default Output",
			expectedOutput: []string{
				"----------------------------------------",
				"PATCH: git/00_simple_change",
				"Toggle tmp/simple_change.txt between A and B",
				"  tmp/simple_change.txt",
				"PATCH: preflight/00_outside_root",
				"REJECTED",
			},
		},
		{
			name:  "Quiet Output",
			quiet: true,
			expectedOutput: []string{
				"git/00_simple_change\ngit/01_marker\npreflight/00_outside_root\nworkspace/00_undeclared_dirty\n",
			},
			notExpected: []string{
				"Files:",
				"----------------------------------------",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patchesListQuiet = tt.quiet
			defer func() { patchesListQuiet = false }()

			buf := new(bytes.Buffer)
			patchesListCmd.SetOut(buf)

			if err := patchesListCmd.RunE(patchesListCmd, []string{}); err != nil {
				t.Fatalf("RunE() error = %v", err)
			}

			output := buf.String()
			for _, exp := range tt.expectedOutput {
				if !strings.Contains(output, exp) {
					t.Errorf("Expected output to contain %q, but it didn't.\nOutput:\n%s", exp, output)
				}
			}
			for _, notExp := range tt.notExpected {
				if strings.Contains(output, notExp) {
					t.Errorf("Expected output NOT to contain %q, but it did.\nOutput:\n%s", notExp, output)
				}
			}
		})
	}
}

func TestPatchesShowCmd(t *testing.T) {
	useFixtures(t)

	tests := []struct {
		name           string
		args           []string
		expectedOutput []string
		expectError    bool
	}{
		{
			name: "Show Existing Patch",
			args: []string{"git/01_marker"},
			expectedOutput: []string{
				"PATCH: git/01_marker",
				"Write a fixed marker file",
				"  tmp/marker.txt",
			},
		},
		{
			name:        "Show Non-Existent Patch",
			args:        []string{"git/99_missing"},
			expectError: true,
		},
		{
			name:        "Show Invalid ID",
			args:        []string{"not-an-id"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			patchesShowCmd.SetOut(buf)

			err := patchesShowCmd.RunE(patchesShowCmd, tt.args)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			output := buf.String()
			for _, exp := range tt.expectedOutput {
				if !strings.Contains(output, exp) {
					t.Errorf("Expected output to contain %q, but it didn't.\nOutput:\n%s", exp, output)
				}
			}
		})
	}
}

func TestVersionCmd(t *testing.T) {
	saved := [3]string{buildVersion, buildCommit, buildDate}
	t.Cleanup(func() { buildVersion, buildCommit, buildDate = saved[0], saved[1], saved[2] })
	SetBuildInfo("1.2.3", "abc123", "2026-01-02")

	buf := new(bytes.Buffer)
	versionCmd.SetOut(buf)
	versionCmd.Run(versionCmd, nil)

	out := buf.String()
	for _, want := range []string{"patchrunner 1.2.3\n", "commit: abc123\n", "built:  2026-01-02\n", "go:     go"} {
		if !strings.Contains(out, want) {
			t.Errorf("version output missing %q:\n%s", want, out)
		}
	}
}
