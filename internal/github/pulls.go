package github

import (
	"context"
	"fmt"

	"github.com/google/go-github/v68/github"
)

// PullRequest is the subset of a created pull request a run reports.
type PullRequest struct {
	Number int
	URL    string
}

// OpenPullRequest opens a pull request from head into base.
func (c *Client) OpenPullRequest(ctx context.Context, repo Repo, head, base, title, body string) (PullRequest, error) {
	pr, _, err := c.Client.PullRequests.Create(ctx, repo.Owner, repo.Name, &github.NewPullRequest{
		Title: github.Ptr(title),
		Head:  github.Ptr(head),
		Base:  github.Ptr(base),
		Body:  github.Ptr(body),
	})
	if err != nil {
		return PullRequest{}, fmt.Errorf("open pull request on %s: %w", repo, err)
	}
	return PullRequest{Number: pr.GetNumber(), URL: pr.GetHTMLURL()}, nil
}
