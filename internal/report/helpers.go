package report

func NewEntry(patchID string, outcome Outcome, message string) Entry {
	return Entry{PatchID: patchID, Outcome: outcome, Message: message}
}

func AppliedEntry(patchID, commit string) Entry {
	e := NewEntry(patchID, OutcomeApplied, "")
	e.Commit = commit
	return e
}

func SkippedEntry(patchID, message string) Entry {
	return NewEntry(patchID, OutcomeSkipped, message)
}

func RejectedEntry(patchID string, violations ...Violation) Entry {
	e := NewEntry(patchID, OutcomeRejected, "")
	e.Violations = violations
	return e
}

func ViolatedEntry(patchID string, violations ...Violation) Entry {
	e := NewEntry(patchID, OutcomeViolated, "")
	e.Violations = violations
	return e
}

func FailedEntry(patchID string, v Violation) Entry {
	e := NewEntry(patchID, OutcomeFailed, v.Message)
	e.Violations = []Violation{v}
	return e
}
