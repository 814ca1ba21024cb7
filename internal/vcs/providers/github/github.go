package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	gh "github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"

	"github.com/everstacklabs/shiplog/internal/vcs"
)

func init() {
	vcs.Register(&GitHub{})
}

// GitHub fetches commit history through the GitHub REST API.
type GitHub struct {
	client *gh.Client
}

func (g *GitHub) Name() string { return "github" }

// Configure sets up the API client. An empty token means unauthenticated
// access (public repos, low rate limit).
func (g *GitHub) Configure(ctx context.Context, token, baseURL string) error {
	var tc *gh.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		tc = gh.NewClient(oauth2.NewClient(ctx, ts))
	} else {
		tc = gh.NewClient(nil)
	}
	if baseURL != "" {
		enterprise, err := tc.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return fmt.Errorf("configuring github base URL: %w", err)
		}
		tc = enterprise
	}
	g.client = tc
	return nil
}

func (g *GitHub) FetchCommits(ctx context.Context, repo vcs.RepoRef, opts vcs.FetchOptions) ([]vcs.NormalizedCommit, error) {
	if g.client == nil {
		return nil, &vcs.ProviderError{Provider: "github", Message: "provider not configured"}
	}

	perPage := opts.PerPage
	if perPage <= 0 || perPage > 100 {
		perPage = 100
	}

	listOpts := &gh.CommitsListOptions{
		Since:       opts.Since,
		Until:       opts.Until,
		ListOptions: gh.ListOptions{PerPage: perPage},
	}

	var commits []vcs.NormalizedCommit
	page := 0
	for {
		page++
		raw, resp, err := g.client.Repositories.ListCommits(ctx, repo.Owner, repo.Name, listOpts)
		if err != nil {
			// Discard everything fetched so far: no partial provider result.
			return nil, g.wrapError(err)
		}
		commits = append(commits, g.normalizeAll(repo, raw)...)

		if resp.NextPage == 0 || (opts.MaxPages > 0 && page >= opts.MaxPages) {
			break
		}
		listOpts.Page = resp.NextPage
	}

	slog.Info("github fetch complete", "repo", repo.String(), "commits", len(commits), "pages", page)
	return commits, nil
}

func (g *GitHub) FetchCommitsBetween(ctx context.Context, repo vcs.RepoRef, fromRef, toRef string) ([]vcs.NormalizedCommit, error) {
	if g.client == nil {
		return nil, &vcs.ProviderError{Provider: "github", Message: "provider not configured"}
	}

	cmp, _, err := g.client.Repositories.CompareCommits(ctx, repo.Owner, repo.Name, fromRef, toRef, nil)
	if err != nil {
		return nil, g.wrapError(err)
	}

	// Compare returns oldest-first; flip to newest-first to match FetchCommits.
	commits := g.normalizeAll(repo, cmp.Commits)
	for i, j := 0, len(commits)-1; i < j; i, j = i+1, j-1 {
		commits[i], commits[j] = commits[j], commits[i]
	}
	return commits, nil
}

func (g *GitHub) CommitDetail(ctx context.Context, repo vcs.RepoRef, sha string) (*vcs.NormalizedCommit, error) {
	if g.client == nil {
		return nil, &vcs.ProviderError{Provider: "github", Message: "provider not configured"}
	}

	raw, _, err := g.client.Repositories.GetCommit(ctx, repo.Owner, repo.Name, sha, nil)
	if err != nil {
		return nil, g.wrapError(err)
	}

	c := g.normalize(repo, raw)
	if c == nil {
		return nil, &vcs.ProviderError{Provider: "github", Message: fmt.Sprintf("malformed commit record for %s", sha)}
	}
	return c, nil
}

// CommitURL builds a GitHub-shaped commit URL (/commit/<sha>).
func (g *GitHub) CommitURL(repo vcs.RepoRef, sha string) string {
	base := repo.URL
	if base == "" {
		base = fmt.Sprintf("https://github.com/%s/%s", repo.Owner, repo.Name)
	}
	return base + "/commit/" + sha
}

func (g *GitHub) normalizeAll(repo vcs.RepoRef, raw []*gh.RepositoryCommit) []vcs.NormalizedCommit {
	commits := make([]vcs.NormalizedCommit, 0, len(raw))
	for _, rc := range raw {
		c := g.normalize(repo, rc)
		if c == nil {
			slog.Warn("dropping malformed commit record", "provider", "github", "repo", repo.String())
			continue
		}
		commits = append(commits, *c)
	}
	return commits
}

// normalize converts one API record into a NormalizedCommit. Returns nil for
// records missing a SHA; missing optional fields get documented defaults.
func (g *GitHub) normalize(repo vcs.RepoRef, rc *gh.RepositoryCommit) *vcs.NormalizedCommit {
	if rc == nil || rc.GetSHA() == "" {
		return nil
	}

	author := vcs.UnknownAuthor
	if name := rc.GetCommit().GetAuthor().GetName(); name != "" {
		author = name
	}

	url := rc.GetHTMLURL()
	if url == "" {
		url = g.CommitURL(repo, rc.GetSHA())
	}

	c := &vcs.NormalizedCommit{
		ID:         rc.GetSHA(),
		Message:    rc.GetCommit().GetMessage(),
		AuthorName: author,
		AuthorDate: rc.GetCommit().GetAuthor().GetDate().Time,
		URL:        url,
	}

	for _, f := range rc.Files {
		c.FilesChanged = append(c.FilesChanged, vcs.FileChange{
			Path:      f.GetFilename(),
			Status:    mapStatus(f.GetStatus()),
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
			Patch:     f.GetPatch(),
		})
	}

	return c
}

func mapStatus(s string) vcs.FileStatus {
	switch s {
	case "added":
		return vcs.FileAdded
	case "removed":
		return vcs.FileRemoved
	case "renamed":
		return vcs.FileRenamed
	default:
		return vcs.FileModified
	}
}

// wrapError maps go-github errors onto ProviderError.
func (g *GitHub) wrapError(err error) error {
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return &vcs.ProviderError{
			Provider:   "github",
			StatusCode: ghErr.Response.StatusCode,
			Message:    ghErr.Message,
		}
	}
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return &vcs.ProviderError{Provider: "github", StatusCode: 429, Message: rateErr.Message}
	}
	return &vcs.ProviderError{Provider: "github", Message: err.Error()}
}
