package report

import (
	"encoding/json"
	"sort"
)

// Code identifies the kind of a Violation. Codes are stable and user-facing.
//
// The first six codes form the closed set the runner guarantees. CodeBodyFailed
// is an extension: it is only ever attached to OutcomeFailed entries, for a
// body that returned an error, panicked or overran its timeout. Consumers that
// only know the closed set should treat an unknown code as a patch failure.
type Code string

const (
	CodePatchPath      Code = "PREFLIGHT:PATCH_PATH"
	CodeDirtyWorkspace Code = "PREFLIGHT:DIRTY_WORKSPACE"
	CodeUndeclaredFile Code = "SCOPE:UNDECLARED_FILE"
	CodeMalformedPatch Code = "MALFORMED_PATCH"
	CodeCommitFailed   Code = "GIT:COMMIT_FAILED"
	CodePushFailed     Code = "GIT:PUSH_FAILED"
	CodeBodyFailed     Code = "PATCH:BODY_FAILED"
)

// Outcome is the terminal state of one patch. OutcomeFailed extends the four
// base outcomes (applied, rejected, violated, skipped) and marks a patch whose
// body or commit failed; it counts as a patch failure like rejected and
// violated, except for commit failures which count as version control ones.
type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeRejected Outcome = "rejected"
	OutcomeViolated Outcome = "violated"
	OutcomeFailed   Outcome = "failed"
	OutcomeSkipped  Outcome = "skipped"
)

// Violation is the structured outcome of a failed check.
type Violation struct {
	Code    Code   `json:"code"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message,omitempty"`
}

func (v Violation) String() string {
	s := string(v.Code)
	if v.Path != "" {
		s += " " + v.Path
	}
	if v.Message != "" {
		s += ": " + v.Message
	}
	return s
}

// Entry is the outcome of a single patch within a run.
type Entry struct {
	PatchID    string      `json:"patch_id"`
	Outcome    Outcome     `json:"outcome"`
	Message    string      `json:"message,omitempty"`
	Commit     string      `json:"commit,omitempty"`
	Violations []Violation `json:"violations"`
}

// MarshalJSON always emits violations as an array, empty when there are none.
func (e Entry) MarshalJSON() ([]byte, error) {
	type plain Entry
	if e.Violations == nil {
		e.Violations = []Violation{}
	}
	return json.Marshal(plain(e))
}

// Failed reports whether the entry ended the patch in a failure state.
func (e Entry) Failed() bool {
	switch e.Outcome {
	case OutcomeRejected, OutcomeViolated, OutcomeFailed:
		return true
	default:
		return false
	}
}

// Report is the ordered record of one run. Entries are appended as patches
// reach a terminal state; run-level violations (a failed push) are kept apart
// from per-patch entries.
type Report struct {
	Entries     []Entry     `json:"entries"`
	Run         []Violation `json:"run_violations,omitempty"`
	Commits     int         `json:"commits"`
	Pushed      bool        `json:"pushed"`
	Halted      bool        `json:"halted"`
	Rewound     int         `json:"rewound,omitempty"`
	PullRequest string      `json:"pull_request,omitempty"`
}

func (r *Report) Add(e Entry) {
	r.Entries = append(r.Entries, e)
}

// Outcomes returns the number of entries per outcome.
func (r *Report) Outcomes() map[Outcome]int {
	out := make(map[Outcome]int)
	for _, e := range r.Entries {
		out[e.Outcome]++
	}
	return out
}

// HasPatchFailures reports whether any patch ended REJECTED, VIOLATED or FAILED
// for a reason other than version control.
func (r *Report) HasPatchFailures() bool {
	for _, e := range r.Entries {
		if !e.Failed() {
			continue
		}
		if !e.hasVCSViolation() {
			return true
		}
	}
	return false
}

// HasVCSFailures reports whether a commit or push failed during the run.
func (r *Report) HasVCSFailures() bool {
	for _, v := range r.Run {
		if v.Code == CodeCommitFailed || v.Code == CodePushFailed {
			return true
		}
	}
	for _, e := range r.Entries {
		if e.hasVCSViolation() {
			return true
		}
	}
	return false
}

// Violations returns every violation in the report, per-patch first, sorted by
// code then path within each patch.
func (r *Report) Violations() []Violation {
	var out []Violation
	for _, e := range r.Entries {
		vs := append([]Violation(nil), e.Violations...)
		SortViolations(vs)
		out = append(out, vs...)
	}
	return append(out, r.Run...)
}

func (e Entry) hasVCSViolation() bool {
	for _, v := range e.Violations {
		if v.Code == CodeCommitFailed || v.Code == CodePushFailed {
			return true
		}
	}
	return false
}

func SortViolations(vs []Violation) {
	sort.SliceStable(vs, func(i, j int) bool {
		if vs[i].Code != vs[j].Code {
			return vs[i].Code < vs[j].Code
		}
		return vs[i].Path < vs[j].Path
	})
}
