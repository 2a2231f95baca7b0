package gitops

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"patchrunner/internal/workspace"
)

// Git drives the git CLI against a working tree. Every command targets the
// tree through "git -C <dir>".
type Git struct {
	dir    string
	remote string
	branch string
	env    []string
}

type GitOption func(*Git)

// WithRemote sets the push remote (default "origin").
func WithRemote(remote string) GitOption {
	return func(g *Git) { g.remote = remote }
}

// WithBranch sets the remote branch pushed to (default: the current branch).
func WithBranch(branch string) GitOption {
	return func(g *Git) { g.branch = branch }
}

// WithAuthor sets author and committer identity for commits made by the run.
func WithAuthor(name, email string) GitOption {
	return func(g *Git) {
		if name != "" {
			g.env = append(g.env, "GIT_AUTHOR_NAME="+name, "GIT_COMMITTER_NAME="+name)
		}
		if email != "" {
			g.env = append(g.env, "GIT_AUTHOR_EMAIL="+email, "GIT_COMMITTER_EMAIL="+email)
		}
	}
}

func NewGit(dir string, opts ...GitOption) *Git {
	g := &Git{dir: dir, remote: "origin"}
	for _, o := range opts {
		if o != nil {
			o(g)
		}
	}
	return g
}

func (g *Git) Dir() string {
	return g.dir
}

// Run executes a git command and returns stdout. Stderr is folded into the
// error on failure.
func (g *Git) Run(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{"-C", g.dir}, args...)
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if len(g.env) > 0 {
		cmd.Env = append(os.Environ(), g.env...)
	}

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s in %s: %w (stderr: %s)",
			strings.Join(args, " "), g.dir, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Commit stages and commits exactly paths. Other changes in the working tree
// or the index stay out of the commit.
func (g *Git) Commit(ctx context.Context, message string, paths []string) (string, error) {
	specs, err := g.stageable(ctx, paths)
	if err != nil {
		return "", commitFailed(err)
	}
	if len(specs) == 0 {
		return "", commitFailed(fmt.Errorf("nothing to commit among %v", paths))
	}
	if _, err := g.Run(ctx, append([]string{"add", "-A", "--"}, specs...)...); err != nil {
		return "", commitFailed(err)
	}
	if _, err := g.Run(ctx, append([]string{"commit", "-q", "-m", message, "--only", "--"}, specs...)...); err != nil {
		return "", commitFailed(err)
	}
	out, err := g.Run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", commitFailed(err)
	}
	return strings.TrimSpace(out), nil
}

// stageable returns literal pathspecs for the paths git can record: tracked
// ones (including deletions) and untracked ones that are not ignored.
func (g *Git) stageable(ctx context.Context, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	args := []string{"ls-files", "-z", "--cached", "--others", "--exclude-standard", "--"}
	for _, p := range paths {
		args = append(args, literalPathspec(p))
	}
	out, err := g.Run(ctx, args...)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{})
	for _, p := range strings.Split(out, "\x00") {
		if p != "" {
			known[p] = struct{}{}
		}
	}
	var specs []string
	for _, p := range paths {
		if _, ok := known[p]; ok {
			specs = append(specs, literalPathspec(p))
		}
	}
	return specs, nil
}

func literalPathspec(p string) string {
	return ":(literal)" + p
}

func (g *Git) Push(ctx context.Context) error {
	ref := "HEAD"
	if g.branch != "" {
		ref = "HEAD:refs/heads/" + g.branch
	}
	if _, err := g.Run(ctx, "push", g.remote, ref); err != nil {
		return pushFailed(err)
	}
	return nil
}

// Rewind soft-resets the last n commits; the index and working tree keep
// their content.
func (g *Git) Rewind(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	_, err := g.Run(ctx, "reset", "-q", "--soft", fmt.Sprintf("HEAD~%d", n))
	return err
}

// CurrentBranch returns the checked-out branch name.
func (g *Git) CurrentBranch(ctx context.Context) (string, error) {
	out, err := g.Run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// DirtyPaths lists modified, staged, deleted and untracked paths under the
// working directory, relative to it. Ignored files are not reported.
func (g *Git) DirtyPaths(ctx context.Context) ([]string, error) {
	prefixOut, err := g.Run(ctx, "rev-parse", "--show-prefix")
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimSpace(prefixOut)

	out, err := g.Run(ctx, "status", "--porcelain=v1", "-z", "--untracked-files=all", "--no-renames", "--", ".")
	if err != nil {
		return nil, err
	}
	paths := parsePorcelainZ(out)
	res := make([]string, 0, len(paths))
	for _, p := range paths {
		if prefix != "" {
			if !strings.HasPrefix(p, prefix) {
				continue
			}
			p = strings.TrimPrefix(p, prefix)
		}
		res = append(res, p)
	}
	sort.Strings(res)
	return res, nil
}

// MarkCommitted is a no-op: git itself is the reference for cleanliness.
func (g *Git) MarkCommitted(context.Context, workspace.Snapshot) error {
	return nil
}

// parsePorcelainZ extracts paths from `git status --porcelain=v1 -z` output.
// Records are "XY path" separated by NUL; with renames disabled there is no
// second path field.
func parsePorcelainZ(out string) []string {
	var paths []string
	for _, rec := range strings.Split(out, "\x00") {
		if len(rec) < 4 {
			continue
		}
		paths = append(paths, rec[3:])
	}
	return paths
}
