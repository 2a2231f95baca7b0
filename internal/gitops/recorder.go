package gitops

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Recorder is an in-memory GitOps. It keeps an ordered log of commits and a
// push counter and never touches real storage. Each run or test builds its
// own instance.
type Recorder struct {
	mu      sync.Mutex
	commits []Commit
	pushes  int
	rewinds int
	seq     int

	// CommitErr and PushErr, when set, make the corresponding call fail.
	CommitErr error
	PushErr   error
}

// Commit is one recorded commit.
type Commit struct {
	Message string
	Paths   []string
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Commit(_ context.Context, message string, paths []string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CommitErr != nil {
		return "", commitFailed(r.CommitErr)
	}
	r.seq++
	r.commits = append(r.commits, Commit{Message: message, Paths: append([]string(nil), paths...)})
	return fmt.Sprintf("rec-%04d", r.seq), nil
}

func (r *Recorder) Push(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.PushErr != nil {
		return pushFailed(r.PushErr)
	}
	r.pushes++
	return nil
}

// Rewind drops the last n commits from the log.
func (r *Recorder) Rewind(_ context.Context, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n < 0 || n > len(r.commits) {
		return errors.New("rewind past the start of the log")
	}
	r.commits = r.commits[:len(r.commits)-n]
	r.rewinds++
	return nil
}

// Messages returns the commit messages in call order.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.commits))
	for i, c := range r.commits {
		out[i] = c.Message
	}
	return out
}

// Commits returns a copy of the commit log in call order.
func (r *Recorder) Commits() []Commit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Commit(nil), r.commits...)
}

func (r *Recorder) Pushes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pushes
}

func (r *Recorder) Rewinds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rewinds
}
