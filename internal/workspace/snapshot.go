package workspace

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"
)

// Digest is the xxh3-128 hash of a file's content (or a symlink's target).
type Digest [16]byte

// Snapshot maps workspace-relative slash paths to content digests.
type Snapshot map[string]Digest

// SnapshotOptions controls which parts of the tree a snapshot covers.
type SnapshotOptions struct {
	// Exclude lists workspace-relative directories skipped entirely. The .git
	// directory is always skipped.
	Exclude []string

	// Concurrency bounds parallel hashing. Zero means GOMAXPROCS.
	Concurrency int
}

// Take walks the workspace and hashes every regular file and symlink.
func Take(ctx context.Context, root string, opts SnapshotOptions) (Snapshot, error) {
	excluded := make(map[string]struct{}, len(opts.Exclude)+1)
	excluded[".git"] = struct{}{}
	for _, e := range opts.Exclude {
		if clean, err := CleanRel(e); err == nil {
			excluded[clean] = struct{}{}
		}
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if _, skip := excluded[rel]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan workspace %s: %w", root, err)
	}
	sort.Strings(paths)

	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	var mu sync.Mutex
	snap := make(Snapshot, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, rel := range paths {
		rel := rel
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d, err := hashPath(filepath.Join(root, filepath.FromSlash(rel)))
			if err != nil {
				return fmt.Errorf("hash %s: %w", rel, err)
			}
			mu.Lock()
			snap[rel] = d
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

func hashPath(path string) (Digest, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Digest{}, err
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return Digest{}, err
		}
		return Digest(xxh3.Hash128([]byte("symlink:" + target)).Bytes()), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Digest{}, err
	}
	defer f.Close()

	// The executable bit is part of what git records, so a chmod must
	// register as a modification.
	h := xxh3.New()
	if info.Mode()&0o111 != 0 {
		_, _ = h.WriteString("x:")
	} else {
		_, _ = h.WriteString("f:")
	}
	if _, err := io.Copy(h, f); err != nil {
		return Digest{}, err
	}
	return Digest(h.Sum128().Bytes()), nil
}

// ChangeKind classifies how a path differs between two snapshots.
type ChangeKind string

const (
	Created  ChangeKind = "created"
	Modified ChangeKind = "modified"
	Deleted  ChangeKind = "deleted"
)

type Change struct {
	Path string
	Kind ChangeKind
}

// Diff returns the paths whose status differs between pre and post, sorted by
// path.
func Diff(pre, post Snapshot) []Change {
	var out []Change
	for p, d := range post {
		old, ok := pre[p]
		switch {
		case !ok:
			out = append(out, Change{Path: p, Kind: Created})
		case old != d:
			out = append(out, Change{Path: p, Kind: Modified})
		}
	}
	for p := range pre {
		if _, ok := post[p]; !ok {
			out = append(out, Change{Path: p, Kind: Deleted})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// ChangedPaths is Diff reduced to the path list.
func ChangedPaths(pre, post Snapshot) []string {
	changes := Diff(pre, post)
	out := make([]string, 0, len(changes))
	for _, c := range changes {
		out = append(out, c.Path)
	}
	return out
}

func (s Snapshot) String() string {
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return "snapshot[" + strings.Join(paths, ",") + "]"
}
