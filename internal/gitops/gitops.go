// Package gitops abstracts the version control mutations a run performs.
package gitops

import (
	"context"
	"fmt"

	"patchrunner/internal/report"
)

// GitOps commits workspace changes and pushes them.
type GitOps interface {
	// Commit records the current content of paths, relative to the
	// workspace, with message and returns an identifier for the new commit.
	// Nothing outside paths is committed.
	Commit(ctx context.Context, message string, paths []string) (string, error)
	Push(ctx context.Context) error
}

// Rewinder is implemented by backends that can undo the last n commits of a
// run while keeping the working tree as it is.
type Rewinder interface {
	Rewind(ctx context.Context, n int) error
}

// Error is a version control failure carrying its report code.
type Error struct {
	Code report.Code
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func commitFailed(err error) error {
	return &Error{Code: report.CodeCommitFailed, Err: err}
}

func pushFailed(err error) error {
	return &Error{Code: report.CodePushFailed, Err: err}
}
