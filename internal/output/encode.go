package output

import (
	"encoding/json"
	"io"

	"patchrunner/internal/report"
)

// aggregate accumulates what the json format writes on Close.
type aggregate struct {
	doc Document
}

func (a *aggregate) add(v any) {
	switch t := v.(type) {
	case report.Entry:
		a.doc.Entries = append(a.doc.Entries, t)
	case Event:
		if t.Type == EventRunFinished && t.Summary != nil {
			a.doc.Summary = t.Summary
		}
	}
}

func (a *aggregate) encode(w io.Writer) error {
	if a.doc.Entries == nil {
		a.doc.Entries = []report.Entry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a.doc); err != nil {
		return err
	}
	return flushIfPossible(w)
}

// streamEvent writes v as one NDJSON line. Values that are neither an Event
// nor a report.Entry are ignored.
func streamEvent(w io.Writer, v any) error {
	var e Event
	switch t := v.(type) {
	case Event:
		e = t
	case report.Entry:
		e = eventFromEntry(t)
	default:
		return nil
	}
	if err := json.NewEncoder(w).Encode(e); err != nil {
		return err
	}
	return flushIfPossible(w)
}

// flushIfPossible pushes buffered bytes out when w is a *bufio.Writer (the
// file sink) or anything else with a Flush method.
func flushIfPossible(w io.Writer) error {
	if f, ok := w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}
