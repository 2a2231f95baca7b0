package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"patchrunner/internal/report"
)

// ReportSink writes a Markdown summary of the run on Close.
type ReportSink struct {
	path      string
	file      *os.File
	mu        sync.Mutex
	entries   []report.Entry
	workspace string
	summary   *Summary
}

func NewReportSink(path string) (*ReportSink, error) {
	if path == "" {
		return nil, fmt.Errorf("report path required")
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return &ReportSink{path: path, file: f}, nil
}

func (s *ReportSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch t := v.(type) {
	case report.Entry:
		s.entries = append(s.entries, t)
	case Event:
		switch t.Type {
		case EventRunStarted:
			s.workspace = t.Workspace
		case EventRunFinished:
			s.summary = t.Summary
		}
	}
	return nil
}

func (s *ReportSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.file.WriteString(s.render())
	if closeErr := s.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func (s *ReportSink) render() string {
	var b strings.Builder
	b.WriteString("# Patch Run Report\n\n")

	if s.workspace != "" {
		fmt.Fprintf(&b, "Workspace: `%s`\n\n", s.workspace)
	}

	outcomes := map[report.Outcome]int{}
	for _, e := range s.entries {
		outcomes[e.Outcome]++
	}

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- Patches: %d (%s)\n", len(s.entries), formatOutcomes(outcomes))
	if s.summary != nil {
		fmt.Fprintf(&b, "- Commits: %d\n", s.summary.Commits)
		fmt.Fprintf(&b, "- Pushed: %s\n", yesNo(s.summary.Pushed))
		if s.summary.Halted {
			b.WriteString("- Run halted on the first failure\n")
		}
		if s.summary.PullRequest != "" {
			fmt.Fprintf(&b, "- Pull request: %s\n", s.summary.PullRequest)
		}
		fmt.Fprintf(&b, "- Exit code: %d\n", s.summary.ExitCode)
	}
	b.WriteString("\n")

	b.WriteString("## Patches\n\n")
	if len(s.entries) == 0 {
		b.WriteString("No patches were discovered.\n\n")
	} else {
		b.WriteString("| Patch | Outcome | Commit | Details |\n")
		b.WriteString("| --- | --- | --- | --- |\n")
		for _, e := range s.entries {
			fmt.Fprintf(&b, "| `%s` | %s | %s | %s |\n",
				e.PatchID, e.Outcome, mdCell(shortCommit(e.Commit)), mdCell(entryDetails(e)))
		}
		b.WriteString("\n")
	}

	byCode := violationsByCode(s.entries, s.summary)
	if len(byCode) > 0 {
		b.WriteString("## Violations\n\n")
		codes := make([]string, 0, len(byCode))
		for c := range byCode {
			codes = append(codes, string(c))
		}
		sort.Strings(codes)
		for _, c := range codes {
			vs := byCode[report.Code(c)]
			fmt.Fprintf(&b, "### %s (%d)\n\n", c, len(vs))
			for _, line := range vs {
				fmt.Fprintf(&b, "- %s\n", line)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func entryDetails(e report.Entry) string {
	if len(e.Violations) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		p := string(v.Code)
		if v.Path != "" {
			p += " " + v.Path
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, "; ")
}

func violationsByCode(entries []report.Entry, sum *Summary) map[report.Code][]string {
	out := make(map[report.Code][]string)
	for _, e := range entries {
		for _, v := range e.Violations {
			out[v.Code] = append(out[v.Code], fmt.Sprintf("`%s`: %s", e.PatchID, v.String()))
		}
	}
	if sum != nil {
		for _, v := range sum.RunViolations {
			out[v.Code] = append(out[v.Code], "run: "+v.String())
		}
	}
	return out
}

func mdCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
