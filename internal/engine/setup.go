package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"patchrunner/internal/config"
	gh "patchrunner/internal/github"
	"patchrunner/internal/gitops"
	"patchrunner/internal/loader"
	"patchrunner/internal/logging"
	"patchrunner/internal/output"
	"patchrunner/internal/patch"
	"patchrunner/internal/report"
	"patchrunner/internal/workspace"
)

// Streams are the process outputs a run writes to.
type Streams struct {
	Stdout io.Writer
	Stderr io.Writer
}

func setupOutputManager(cfg *config.Config, stdout io.Writer) (*output.Manager, error) {
	outMgr := output.NewManager()
	fail := func(err error) (*output.Manager, error) {
		_ = outMgr.Close()
		return nil, err
	}

	if !cfg.Output.NoConsole {
		cs := output.NewConsoleSink(stdout, cfg.Output.ConsoleFormat, cfg.Output.ConsoleFilterOutcome...)
		if f, ok := stdout.(*os.File); !ok || f != os.Stdout {
			cs.Color = false
		}
		if err := outMgr.AddSink(cs); err != nil {
			return fail(err)
		}
	}

	for _, emit := range cfg.Output.Emit {
		es, err := output.NewEmitSink(stdout, emit)
		if err != nil {
			return fail(err)
		}
		if err := outMgr.AddSink(es); err != nil {
			return fail(err)
		}
	}

	if cfg.Output.Out != "" {
		fs, err := output.NewFileSink(cfg.Output.Out, cfg.Output.OutFormat)
		if err != nil {
			return fail(err)
		}
		if err := outMgr.AddSink(fs); err != nil {
			return fail(err)
		}
	}

	if cfg.Output.Report != "" {
		rs, err := output.NewReportSink(cfg.Output.Report)
		if err != nil {
			return fail(err)
		}
		if err := outMgr.AddSink(rs); err != nil {
			return fail(err)
		}
	}

	return outMgr, nil
}

// NewRunner wires a Runner from cfg. The registry supplies patch bodies; nil
// means patch.Default.
func NewRunner(ctx context.Context, cfg *config.Config, registry *patch.Registry, logger *slog.Logger) (*Runner, error) {
	logger = logging.OrDiscard(logger)

	wsRoot, err := filepath.Abs(cfg.Workspace.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	snapOpts := workspace.SnapshotOptions{
		Exclude:     cfg.Workspace.Exclude,
		Concurrency: cfg.Runtime.Concurrency,
	}

	r := &Runner{
		Loader: loader.New(registry, logger),
		Logger: logger,
		Options: Options{
			PatchesRoot:   cfg.Patches.Root,
			WorkspaceRoot: wsRoot,
			Snapshot:      snapOpts,
			OnFailure:     cfg.Policy.OnFailure,
			Rollback:      cfg.Policy.Rollback,
			Push:          cfg.Git.Push,
			PatchTimeout:  cfg.Runtime.PatchTimeout,
			DryRun:        cfg.Runtime.DryRun,
		},
	}

	switch cfg.Git.Backend {
	case config.BackendRecord:
		if cfg.Git.OpenPR {
			return nil, errors.New("--open-pr needs the git backend")
		}
		r.Git = gitops.NewRecorder()
		if cfg.Runtime.DryRun {
			r.Tracker = noTracker{}
			break
		}
		b, err := workspace.NewBaseline(ctx, wsRoot, snapOpts)
		if err != nil {
			return nil, fmt.Errorf("snapshot workspace: %w", err)
		}
		r.Tracker = b
	default:
		g := gitops.NewGit(wsRoot,
			gitops.WithRemote(cfg.Git.Remote),
			gitops.WithBranch(cfg.Git.Branch),
			gitops.WithAuthor(cfg.Git.AuthorName, cfg.Git.AuthorEmail),
		)
		if _, err := g.Run(ctx, "rev-parse", "--is-inside-work-tree"); err != nil {
			return nil, fmt.Errorf("workspace is not a git working tree: %w", err)
		}
		r.Git = g
		r.Tracker = g
		if cfg.Git.OpenPR {
			pub, err := newPublisher(ctx, cfg, g, logger)
			if err != nil {
				return nil, err
			}
			r.Publisher = pub
		}
	}
	return r, nil
}

func newPublisher(ctx context.Context, cfg *config.Config, g *gitops.Git, logger *slog.Logger) (*gitops.PullRequestOpener, error) {
	repo, err := gh.ParseRepo(cfg.Git.Repo)
	if err != nil {
		return nil, fmt.Errorf("invalid --repo value: %w", err)
	}
	token, src, err := gh.ResolveToken(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("resolve GitHub token: %w", err)
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("--open-pr needs a GitHub token (set GITHUB_TOKEN or run 'gh auth login')")
	}
	logger.Debug("github token resolved", "source", src)

	client, err := gh.NewClient(ctx, token, gh.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	head := cfg.Git.Branch
	if head == "" {
		if head, err = g.CurrentBranch(ctx); err != nil {
			return nil, err
		}
	}
	return &gitops.PullRequestOpener{Client: client, Repo: repo, Head: head, Base: cfg.Git.Base}, nil
}

// noTracker serves dry runs, which never reach the cleanliness check.
type noTracker struct{}

func (noTracker) DirtyPaths(context.Context) ([]string, error)            { return nil, nil }
func (noTracker) MarkCommitted(context.Context, workspace.Snapshot) error { return nil }

// Execute runs the configured sequence and returns the process exit code.
func Execute(ctx context.Context, cfg *config.Config, streams Streams) int {
	if streams.Stdout == nil {
		streams.Stdout = os.Stdout
	}
	if streams.Stderr == nil {
		streams.Stderr = os.Stderr
	}
	logger := logging.New(streams.Stderr, cfg.Runtime.Verbose)

	ctx, cancel := context.WithTimeout(ctx, cfg.Runtime.Timeout)
	defer cancel()

	runner, err := NewRunner(ctx, cfg, nil, logger)
	if err != nil {
		logger.Error("setup failed", "error", err)
		return report.ExitFatal
	}

	outMgr, err := setupOutputManager(cfg, streams.Stdout)
	if err != nil {
		logger.Error("creating output sinks failed", "error", err)
		return report.ExitFatal
	}
	runner.Output = outMgr

	rep, runErr := runner.Run(ctx)
	if err := outMgr.Close(); err != nil {
		logger.Warn("closing output sinks failed", "error", err)
	}
	return report.ExitCode(rep, runErr != nil)
}
