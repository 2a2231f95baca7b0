package workspace

import (
	"context"
	"errors"
	"sync"
)

// Baseline tracks workspace cleanliness without a version control system: the
// state recorded at the last commit is the reference, and any path whose
// content differs from it is dirty.
type Baseline struct {
	root string
	opts SnapshotOptions

	mu   sync.Mutex
	snap Snapshot
}

// NewBaseline records the current state of root as clean.
func NewBaseline(ctx context.Context, root string, opts SnapshotOptions) (*Baseline, error) {
	snap, err := Take(ctx, root, opts)
	if err != nil {
		return nil, err
	}
	return &Baseline{root: root, opts: opts, snap: snap}, nil
}

func (b *Baseline) DirtyPaths(ctx context.Context) ([]string, error) {
	if b == nil {
		return nil, errors.New("baseline is nil")
	}
	cur, err := Take(ctx, b.root, b.opts)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return ChangedPaths(b.snap, cur), nil
}

// MarkCommitted makes snap the new clean reference.
func (b *Baseline) MarkCommitted(_ context.Context, snap Snapshot) error {
	if b == nil {
		return errors.New("baseline is nil")
	}
	cp := make(Snapshot, len(snap))
	for k, v := range snap {
		cp[k] = v
	}
	b.mu.Lock()
	b.snap = cp
	b.mu.Unlock()
	return nil
}
