package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"patchrunner/internal/config"
	"patchrunner/internal/gitops"
	"patchrunner/internal/loader"
	"patchrunner/internal/logging"
	"patchrunner/internal/output"
	"patchrunner/internal/patch"
	"patchrunner/internal/preflight"
	"patchrunner/internal/report"
	"patchrunner/internal/scope"
	"patchrunner/internal/workspace"
)

// Tracker answers "what changed since the last commit" and is told when a
// commit lands.
type Tracker interface {
	preflight.StatusReader
	MarkCommitted(ctx context.Context, snap workspace.Snapshot) error
}

// Options are the run policies.
type Options struct {
	PatchesRoot   string
	WorkspaceRoot string
	Snapshot      workspace.SnapshotOptions

	// OnFailure is config.OnFailureHalt or config.OnFailureContinue.
	OnFailure string
	// Rollback is config.RollbackKeep or config.RollbackRewind.
	Rollback string
	// Push is config.PushEnd, config.PushEach or config.PushNever.
	Push string

	PatchTimeout time.Duration
	DryRun       bool
}

func (o Options) halting() bool {
	return o.OnFailure != config.OnFailureContinue
}

// Runner applies a patch sequence against one workspace. It is sequential:
// each patch reaches a terminal state before the next one starts.
type Runner struct {
	Loader    *loader.Loader
	Git       gitops.GitOps
	Tracker   Tracker
	Publisher gitops.Publisher
	Output    *output.Manager
	Logger    *slog.Logger
	Options   Options

	ws *workspace.Workspace
}

// FatalError means the run could not complete; the report is partial.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "fatal: " + e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

// Run executes the whole sequence and returns the report. A non-nil error is
// always a *FatalError; the report is still returned for inspection.
func (r *Runner) Run(ctx context.Context) (*report.Report, error) {
	r.Logger = logging.OrDiscard(r.Logger)
	rep := &report.Report{}

	fail := func(err error) (*report.Report, error) {
		var me *loader.MalformedError
		if errors.As(err, &me) {
			rep.Run = append(rep.Run, me.Violation())
		}
		r.Logger.Error("run aborted", "error", err)
		r.emit(output.FinishedEvent(rep, report.ExitFatal))
		return rep, &FatalError{Err: err}
	}

	if r.Loader == nil || r.Git == nil || r.Tracker == nil {
		return fail(errors.New("runner is missing a loader, git backend or tracker"))
	}
	ws, err := workspace.New(r.Options.WorkspaceRoot)
	if err != nil {
		return fail(err)
	}
	r.ws = ws

	manifest, err := r.Loader.Load(ctx, r.Options.PatchesRoot)
	if err != nil {
		return fail(err)
	}
	r.Logger.Info("patches loaded", "count", len(manifest.Entries), "root", manifest.Root, "workspace", ws.Root())
	r.emit(output.StartedEvent(len(manifest.Entries), ws.Root(), r.Options.DryRun))

	if r.Options.DryRun {
		for _, e := range manifest.Entries {
			r.record(rep, planEntry(e))
		}
		r.emit(output.FinishedEvent(rep, report.ExitCode(rep, false)))
		return rep, nil
	}

	entries := manifest.Entries
	if rejected := manifest.Rejected(); r.Options.halting() && len(rejected) > 0 {
		// A rejection found while loading halts the run before any body
		// executes, so no earlier patch gets committed.
		rep.Halted = true
		for _, e := range manifest.Entries {
			id := e.Script.ID.String()
			if e.Rejected() {
				r.Logger.Warn("patch rejected", "patch", id, "violations", len(e.Violations))
				r.record(rep, report.RejectedEntry(id, e.Violations...))
				continue
			}
			r.record(rep, report.SkippedEntry(id, "not attempted"))
		}
		r.Logger.Warn("run halted before applying patches", "rejected", len(rejected))
		entries = nil
	}

	// unpushed counts commits of this run that no push has published yet;
	// only those may be rewound.
	unpushed := 0
	pushFailed := false
	for _, e := range entries {
		id := e.Script.ID.String()
		if rep.Halted {
			r.record(rep, report.SkippedEntry(id, "not attempted"))
			continue
		}
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		entry, committed, err := r.apply(ctx, e)
		if err != nil {
			return fail(fmt.Errorf("patch %s: %w", id, err))
		}
		r.record(rep, entry)

		if committed {
			rep.Commits++
			unpushed++
			if r.Options.Push == config.PushEach {
				if v, ok := r.push(ctx); !ok {
					rep.Run = append(rep.Run, v)
					pushFailed = true
				} else {
					rep.Pushed = true
					unpushed = 0
				}
			}
		}

		// Version control failures end the run under either policy.
		vcs := pushFailed || hasCode(entry, report.CodeCommitFailed)
		if vcs || (entry.Failed() && r.Options.halting()) {
			rep.Halted = true
			r.Logger.Warn("run halted", "patch", id, "outcome", entry.Outcome)
		}
	}

	if rep.Halted && r.Options.Rollback == config.RollbackRewind && unpushed > 0 {
		r.rewind(ctx, rep, unpushed)
	}

	if r.Options.Push == config.PushEnd {
		switch {
		case rep.Commits == 0:
			r.Logger.Debug("nothing to push")
		case rep.Halted:
			r.Logger.Warn("push blocked by halting failure", "commits", rep.Commits)
		default:
			if v, ok := r.push(ctx); ok {
				rep.Pushed = true
			} else {
				rep.Run = append(rep.Run, v)
			}
		}
	}

	if rep.Pushed && !rep.Halted && r.Publisher != nil {
		r.publish(ctx, rep)
	}

	code := report.ExitCode(rep, false)
	r.Logger.Info("run finished", "commits", rep.Commits, "pushed", rep.Pushed, "halted", rep.Halted, "exit_code", code)
	r.emit(output.FinishedEvent(rep, code))
	return rep, nil
}

// apply drives one patch through its lifecycle. The error return is reserved
// for conditions that abort the run.
func (r *Runner) apply(ctx context.Context, e loader.Entry) (report.Entry, bool, error) {
	id := e.Script.ID.String()
	lc := newLifecycle(id)
	log := r.Logger.With("patch", id)

	if e.Rejected() {
		lc.to(StateRejected)
		log.Warn("patch rejected", "violations", len(e.Violations))
		return report.RejectedEntry(id, e.Violations...), false, nil
	}
	p := e.Patch

	dirty, err := preflight.CheckClean(ctx, r.Tracker, p)
	if err != nil {
		return report.Entry{}, false, err
	}
	if len(dirty) > 0 {
		lc.to(StateRejected)
		log.Warn("patch rejected: workspace dirty", "paths", len(dirty))
		return report.RejectedEntry(id, dirty...), false, nil
	}
	lc.to(StatePreflightOK)

	pre, err := workspace.Take(ctx, r.ws.Root(), r.Options.Snapshot)
	if err != nil {
		return report.Entry{}, false, fmt.Errorf("snapshot before body: %w", err)
	}
	bodyErr := r.invoke(ctx, p)
	post, err := workspace.Take(ctx, r.ws.Root(), r.Options.Snapshot)
	if err != nil {
		return report.Entry{}, false, fmt.Errorf("snapshot after body: %w", err)
	}
	if bodyErr != nil {
		lc.to(StateFailed)
		log.Warn("patch body failed", "error", bodyErr)
		return report.FailedEntry(id, report.Violation{Code: report.CodeBodyFailed, Message: bodyErr.Error()}), false, nil
	}
	lc.to(StateApplied)

	res := scope.Check(p, pre, post)
	if !res.OK() {
		lc.to(StateViolated)
		log.Warn("patch touched undeclared files", "violations", len(res.Violations))
		return report.ViolatedEntry(id, res.Violations...), false, nil
	}
	if len(res.Untouched) > 0 {
		log.Debug("declared files left untouched", "paths", res.Untouched)
	}
	lc.to(StateScopeOK)

	if len(res.Changes) == 0 {
		lc.to(StateUnchanged)
		log.Info("patch made no changes")
		return report.SkippedEntry(id, "no changes"), false, nil
	}

	sha, err := r.Git.Commit(ctx, commitMessage(p), changedPaths(res.Changes))
	if err != nil {
		lc.to(StateFailed)
		log.Warn("commit failed", "error", err)
		return report.FailedEntry(id, vcsViolation(err, report.CodeCommitFailed)), false, nil
	}
	if err := r.Tracker.MarkCommitted(ctx, post); err != nil {
		return report.Entry{}, false, err
	}
	lc.to(StateCommitted)
	log.Info("patch applied", "commit", sha, "changes", len(res.Changes))
	return report.AppliedEntry(id, sha), true, nil
}

// invoke runs the body to completion. The body's context is never cancelled;
// a configured timeout is checked once the body returns.
func (r *Runner) invoke(ctx context.Context, p *patch.Patch) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("body panicked: %v", rec)
		}
	}()

	start := time.Now()
	if err := p.Body(context.WithoutCancel(ctx), r.ws); err != nil {
		return err
	}
	if limit := r.Options.PatchTimeout; limit > 0 {
		if elapsed := time.Since(start); elapsed > limit {
			return fmt.Errorf("body ran for %s, exceeding the %s patch timeout", elapsed.Truncate(time.Millisecond), limit)
		}
	}
	return nil
}

func (r *Runner) push(ctx context.Context) (report.Violation, bool) {
	if err := r.Git.Push(ctx); err != nil {
		r.Logger.Warn("push failed", "error", err)
		return vcsViolation(err, report.CodePushFailed), false
	}
	r.Logger.Info("pushed")
	return report.Violation{}, true
}

func (r *Runner) rewind(ctx context.Context, rep *report.Report, n int) {
	rw, ok := r.Git.(gitops.Rewinder)
	if !ok {
		r.Logger.Warn("backend cannot rewind; commits kept", "commits", n)
		return
	}
	if err := rw.Rewind(ctx, n); err != nil {
		r.Logger.Error("rewind failed; commits kept", "commits", n, "error", err)
		return
	}
	rep.Rewound = n
	r.Logger.Warn("rewound run commits; working tree kept", "commits", n)
}

func (r *Runner) publish(ctx context.Context, rep *report.Report) {
	var applied []string
	for _, e := range rep.Entries {
		if e.Outcome == report.OutcomeApplied {
			applied = append(applied, "- "+e.PatchID)
		}
	}
	title := fmt.Sprintf("Apply %d patch(es)", len(applied))
	body := "Applied patches:\n\n" + strings.Join(applied, "\n") + "\n"
	ref, err := r.Publisher.Publish(ctx, title, body)
	if err != nil {
		r.Logger.Warn("publish failed", "error", err)
		return
	}
	rep.PullRequest = ref
	r.Logger.Info("published", "ref", ref)
}

func (r *Runner) record(rep *report.Report, e report.Entry) {
	rep.Add(e)
	r.emit(e)
}

func (r *Runner) emit(v any) {
	if r.Output == nil {
		return
	}
	if err := r.Output.Write(v); err != nil {
		r.Logger.Warn("output write failed", "error", err)
	}
}

func planEntry(e loader.Entry) report.Entry {
	id := e.Script.ID.String()
	if e.Rejected() {
		return report.RejectedEntry(id, e.Violations...)
	}
	return report.SkippedEntry(id, "dry run; declares "+strings.Join(e.Patch.DeclaredFiles(), ", "))
}

func commitMessage(p *patch.Patch) string {
	if p.Description == "" {
		return p.ID.String()
	}
	return p.ID.String() + ": " + p.Description
}

func changedPaths(changes []workspace.Change) []string {
	paths := make([]string, len(changes))
	for i, c := range changes {
		paths[i] = c.Path
	}
	return paths
}

func hasCode(e report.Entry, code report.Code) bool {
	for _, v := range e.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

func vcsViolation(err error, fallback report.Code) report.Violation {
	code := fallback
	var ge *gitops.Error
	if errors.As(err, &ge) {
		code = ge.Code
	}
	return report.Violation{Code: code, Message: err.Error()}
}
