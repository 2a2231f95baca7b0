package gitops

import (
	"context"
	"fmt"

	gh "patchrunner/internal/github"
)

// Publisher announces a pushed branch, for instance by opening a pull
// request. It returns a reference to what was published.
type Publisher interface {
	Publish(ctx context.Context, title, body string) (string, error)
}

// PullRequestOpener publishes the pushed head branch as a GitHub pull request
// against Base.
type PullRequestOpener struct {
	Client *gh.Client
	Repo   gh.Repo
	Head   string
	Base   string
}

func (o *PullRequestOpener) Publish(ctx context.Context, title, body string) (string, error) {
	if o.Client == nil {
		return "", fmt.Errorf("pull request opener: no client")
	}
	if o.Head == "" || o.Base == "" {
		return "", fmt.Errorf("pull request opener: head and base branches are required")
	}
	if o.Head == o.Base {
		return "", fmt.Errorf("pull request opener: head and base are both %q", o.Head)
	}
	pr, err := o.Client.OpenPullRequest(ctx, o.Repo, o.Head, o.Base, title, body)
	if err != nil {
		return "", err
	}
	return pr.URL, nil
}
