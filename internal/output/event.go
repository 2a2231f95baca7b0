package output

import "patchrunner/internal/report"

const (
	EventRunStarted  = "run.started"
	EventPatchResult = "patch.result"
	EventRunFinished = "run.finished"
)

// Event is a lifecycle record for NDJSON streaming output.
//
// In NDJSON mode sinks emit one Event per line: run.started, one patch.result
// per report.Entry, then run.finished. JSON mode aggregates the entries and the
// final summary into a single Document.
type Event struct {
	Type string `json:"type"`
	*report.Entry
	Patches   int      `json:"patches,omitempty"`
	Workspace string   `json:"workspace,omitempty"`
	DryRun    bool     `json:"dry_run,omitempty"`
	Summary   *Summary `json:"summary,omitempty"`
}

// Summary closes a run.
type Summary struct {
	Outcomes      map[report.Outcome]int `json:"outcomes"`
	Commits       int                    `json:"commits"`
	Pushed        bool                   `json:"pushed"`
	Halted        bool                   `json:"halted"`
	PullRequest   string                 `json:"pull_request,omitempty"`
	RunViolations []report.Violation     `json:"run_violations,omitempty"`
	ExitCode      int                    `json:"exit_code"`
}

// Document is the aggregate JSON output of a run.
type Document struct {
	Entries []report.Entry `json:"entries"`
	Summary *Summary       `json:"summary,omitempty"`
}

func StartedEvent(patches int, workspace string, dryRun bool) Event {
	return Event{Type: EventRunStarted, Patches: patches, Workspace: workspace, DryRun: dryRun}
}

func FinishedEvent(r *report.Report, exitCode int) Event {
	s := &Summary{Outcomes: map[report.Outcome]int{}, ExitCode: exitCode}
	if r != nil {
		s.Outcomes = r.Outcomes()
		s.Commits = r.Commits
		s.Pushed = r.Pushed
		s.Halted = r.Halted
		s.PullRequest = r.PullRequest
		s.RunViolations = r.Run
	}
	return Event{Type: EventRunFinished, Summary: s}
}

func eventFromEntry(e report.Entry) Event {
	return Event{Type: EventPatchResult, Entry: &e}
}
