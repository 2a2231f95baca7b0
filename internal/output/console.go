package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	"patchrunner/internal/report"
)

type ConsoleSink struct {
	writer          io.Writer
	format          string // "text", "json", "ndjson"
	mu              sync.Mutex
	agg             aggregate
	allowedOutcomes map[report.Outcome]bool

	// Color enables ANSI colouring of outcomes in text mode.
	Color bool
}

func NewConsoleSink(w io.Writer, format string, filterOutcomes ...string) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = "text"
	}

	s := &ConsoleSink{
		writer: w,
		format: format,
		Color:  !color.NoColor,
	}
	if len(filterOutcomes) > 0 {
		s.allowedOutcomes = make(map[report.Outcome]bool)
		for _, o := range filterOutcomes {
			s.allowedOutcomes[report.Outcome(strings.ToLower(o))] = true
		}
	}
	return s
}

func (s *ConsoleSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := v.(report.Entry); ok && len(s.allowedOutcomes) > 0 && !s.allowedOutcomes[e.Outcome] {
		return nil
	}

	switch s.format {
	case "json":
		s.agg.add(v)
		return nil
	case "ndjson":
		return streamEvent(s.writer, v)
	case "text":
		return s.writeText(v)
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}

func (s *ConsoleSink) writeText(v any) error {
	var b strings.Builder
	switch t := v.(type) {
	case report.Entry:
		fmt.Fprintf(&b, "[%s] %s", s.paint(t.Outcome), t.PatchID)
		if t.Commit != "" {
			fmt.Fprintf(&b, " (commit %s)", shortCommit(t.Commit))
		}
		if t.Message != "" && !(t.Outcome == report.OutcomeFailed && len(t.Violations) == 1) {
			fmt.Fprintf(&b, " - %s", t.Message)
		}
		b.WriteString("\n")
		for _, viol := range t.Violations {
			fmt.Fprintf(&b, "    %s\n", viol)
		}
	case Event:
		if t.Type != EventRunFinished || t.Summary == nil {
			return nil
		}
		for _, viol := range t.Summary.RunViolations {
			fmt.Fprintf(&b, "[%s] %s\n", s.paintText("RUN", color.FgRed), viol)
		}
		fmt.Fprintf(&b, "%s %s; commits=%d pushed=%t", s.paintText("summary:", color.Bold), formatOutcomes(t.Summary.Outcomes), t.Summary.Commits, t.Summary.Pushed)
		if t.Summary.Halted {
			b.WriteString(" halted")
		}
		if t.Summary.PullRequest != "" {
			fmt.Fprintf(&b, " pr=%s", t.Summary.PullRequest)
		}
		b.WriteString("\n")
	default:
		return nil
	}
	if _, err := io.WriteString(s.writer, b.String()); err != nil {
		return err
	}
	return flushIfPossible(s.writer)
}

func (s *ConsoleSink) paint(o report.Outcome) string {
	label := strings.ToUpper(string(o))
	switch o {
	case report.OutcomeApplied:
		return s.paintText(label, color.FgGreen)
	case report.OutcomeSkipped:
		return s.paintText(label, color.FgYellow)
	default:
		return s.paintText(label, color.FgRed)
	}
}

func (s *ConsoleSink) paintText(text string, attr color.Attribute) string {
	c := color.New(attr)
	if s.Color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(text)
}

func (s *ConsoleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.format {
	case "json":
		return s.agg.encode(s.writer)
	case "text", "ndjson":
		return nil
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}

func shortCommit(c string) string {
	if len(c) > 12 {
		return c[:12]
	}
	return c
}

// formatOutcomes renders counts in a fixed outcome order, omitting zeros.
func formatOutcomes(m map[report.Outcome]int) string {
	order := []report.Outcome{
		report.OutcomeApplied, report.OutcomeSkipped, report.OutcomeRejected,
		report.OutcomeViolated, report.OutcomeFailed,
	}
	var parts []string
	for _, o := range order {
		if n := m[o]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, o))
		}
	}
	if len(parts) == 0 {
		return "no patches"
	}
	return strings.Join(parts, ", ")
}
