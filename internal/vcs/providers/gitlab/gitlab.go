package gitlab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/everstacklabs/shiplog/internal/httpclient"
	"github.com/everstacklabs/shiplog/internal/vcs"
)

func init() {
	vcs.Register(&GitLab{})
}

// fetchConcurrency bounds parallel page fetches for one listing call.
const fetchConcurrency = 4

// GitLab fetches commit history through the GitLab REST API (v4).
type GitLab struct {
	token   string
	baseURL string
	client  *httpclient.Client
}

func (g *GitLab) Name() string { return "gitlab" }

// Configure sets up API credentials and the HTTP client.
func (g *GitLab) Configure(token, baseURL string, client *httpclient.Client) {
	if baseURL == "" {
		baseURL = "https://gitlab.com"
	}
	g.token = token
	g.baseURL = baseURL
	g.client = client
}

// apiCommit is the GitLab commit JSON shape.
type apiCommit struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	AuthorName string    `json:"author_name"`
	CreatedAt  time.Time `json:"created_at"`
	WebURL     string    `json:"web_url"`
	Stats      *struct {
		Additions int `json:"additions"`
		Deletions int `json:"deletions"`
	} `json:"stats"`
}

type apiDiff struct {
	OldPath     string `json:"old_path"`
	NewPath     string `json:"new_path"`
	Diff        string `json:"diff"`
	NewFile     bool   `json:"new_file"`
	DeletedFile bool   `json:"deleted_file"`
	RenamedFile bool   `json:"renamed_file"`
}

func (g *GitLab) FetchCommits(ctx context.Context, repo vcs.RepoRef, opts vcs.FetchOptions) ([]vcs.NormalizedCommit, error) {
	if g.client == nil {
		return nil, &vcs.ProviderError{Provider: "gitlab", Message: "provider not configured"}
	}

	perPage := opts.PerPage
	if perPage <= 0 || perPage > 100 {
		perPage = 100
	}

	// First page tells us the total page count via the x-total-pages header.
	firstBody, totalPages, err := g.fetchPage(ctx, repo, opts, perPage, 1)
	if err != nil {
		return nil, err
	}
	if opts.MaxPages > 0 && totalPages > opts.MaxPages {
		totalPages = opts.MaxPages
	}

	pages := make([][]apiCommit, totalPages)
	pages[0] = firstBody

	// Remaining pages fetch concurrently; indexed collection restores source
	// order. One failed page discards the whole result.
	if totalPages > 1 {
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(fetchConcurrency)
		for p := 2; p <= totalPages; p++ {
			p := p
			eg.Go(func() error {
				body, _, err := g.fetchPage(egCtx, repo, opts, perPage, p)
				if err != nil {
					return err
				}
				pages[p-1] = body
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	}

	var commits []vcs.NormalizedCommit
	for _, page := range pages {
		for _, ac := range page {
			c := g.normalize(repo, ac)
			if c == nil {
				slog.Warn("dropping malformed commit record", "provider", "gitlab", "repo", repo.String())
				continue
			}
			commits = append(commits, *c)
		}
	}

	slog.Info("gitlab fetch complete", "repo", repo.String(), "commits", len(commits), "pages", totalPages)
	return commits, nil
}

func (g *GitLab) fetchPage(ctx context.Context, repo vcs.RepoRef, opts vcs.FetchOptions, perPage, page int) ([]apiCommit, int, error) {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))
	if !opts.Since.IsZero() {
		q.Set("since", opts.Since.Format(time.RFC3339))
	}
	if !opts.Until.IsZero() {
		q.Set("until", opts.Until.Format(time.RFC3339))
	}

	u := fmt.Sprintf("%s/api/v4/projects/%s/repository/commits?%s", g.baseURL, g.projectID(repo), q.Encode())

	resp, err := g.client.Get(ctx, u, g.headers())
	if err != nil {
		return nil, 0, g.wrapError(err)
	}

	var raw []apiCommit
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, 0, &vcs.ProviderError{Provider: "gitlab", Message: fmt.Sprintf("parsing commits response: %v", err)}
	}

	totalPages := 1
	if resp.Header != nil {
		if tp, err := strconv.Atoi(resp.Header.Get("x-total-pages")); err == nil && tp > 0 {
			totalPages = tp
		}
	}
	return raw, totalPages, nil
}

func (g *GitLab) FetchCommitsBetween(ctx context.Context, repo vcs.RepoRef, fromRef, toRef string) ([]vcs.NormalizedCommit, error) {
	if g.client == nil {
		return nil, &vcs.ProviderError{Provider: "gitlab", Message: "provider not configured"}
	}

	u := fmt.Sprintf("%s/api/v4/projects/%s/repository/compare?from=%s&to=%s",
		g.baseURL, g.projectID(repo), url.QueryEscape(fromRef), url.QueryEscape(toRef))

	resp, err := g.client.Get(ctx, u, g.headers())
	if err != nil {
		return nil, g.wrapError(err)
	}

	var cmp struct {
		Commits []apiCommit `json:"commits"`
	}
	if err := json.Unmarshal(resp.Body, &cmp); err != nil {
		return nil, &vcs.ProviderError{Provider: "gitlab", Message: fmt.Sprintf("parsing compare response: %v", err)}
	}

	// Compare returns oldest-first; flip to newest-first.
	var commits []vcs.NormalizedCommit
	for i := len(cmp.Commits) - 1; i >= 0; i-- {
		c := g.normalize(repo, cmp.Commits[i])
		if c == nil {
			slog.Warn("dropping malformed commit record", "provider", "gitlab", "repo", repo.String())
			continue
		}
		commits = append(commits, *c)
	}
	return commits, nil
}

func (g *GitLab) CommitDetail(ctx context.Context, repo vcs.RepoRef, sha string) (*vcs.NormalizedCommit, error) {
	if g.client == nil {
		return nil, &vcs.ProviderError{Provider: "gitlab", Message: "provider not configured"}
	}

	var commit *vcs.NormalizedCommit
	var diffs []apiDiff
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		u := fmt.Sprintf("%s/api/v4/projects/%s/repository/commits/%s", g.baseURL, g.projectID(repo), url.PathEscape(sha))
		resp, err := g.client.Get(egCtx, u, g.headers())
		if err != nil {
			return g.wrapError(err)
		}
		var ac apiCommit
		if err := json.Unmarshal(resp.Body, &ac); err != nil {
			return &vcs.ProviderError{Provider: "gitlab", Message: fmt.Sprintf("parsing commit response: %v", err)}
		}
		c := g.normalize(repo, ac)
		if c == nil {
			return &vcs.ProviderError{Provider: "gitlab", Message: fmt.Sprintf("malformed commit record for %s", sha)}
		}
		mu.Lock()
		commit = c
		mu.Unlock()
		return nil
	})
	eg.Go(func() error {
		u := fmt.Sprintf("%s/api/v4/projects/%s/repository/commits/%s/diff", g.baseURL, g.projectID(repo), url.PathEscape(sha))
		resp, err := g.client.Get(egCtx, u, g.headers())
		if err != nil {
			return g.wrapError(err)
		}
		var raw []apiDiff
		if err := json.Unmarshal(resp.Body, &raw); err != nil {
			return &vcs.ProviderError{Provider: "gitlab", Message: fmt.Sprintf("parsing diff response: %v", err)}
		}
		mu.Lock()
		diffs = raw
		mu.Unlock()
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for _, d := range diffs {
		commit.FilesChanged = append(commit.FilesChanged, vcs.FileChange{
			Path:   d.NewPath,
			Status: diffStatus(d),
			Patch:  d.Diff,
		})
	}
	return commit, nil
}

// CommitURL builds a GitLab-shaped commit URL (/-/commit/<sha>).
func (g *GitLab) CommitURL(repo vcs.RepoRef, sha string) string {
	base := repo.URL
	if base == "" {
		base = fmt.Sprintf("%s/%s/%s", g.baseURL, repo.Owner, repo.Name)
	}
	return base + "/-/commit/" + sha
}

func (g *GitLab) projectID(repo vcs.RepoRef) string {
	return url.PathEscape(repo.Owner + "/" + repo.Name)
}

func (g *GitLab) headers() map[string]string {
	h := map[string]string{}
	if g.token != "" {
		h["PRIVATE-TOKEN"] = g.token
	}
	return h
}

// normalize converts one API record into a NormalizedCommit. Returns nil for
// records missing an id; missing optional fields get documented defaults.
func (g *GitLab) normalize(repo vcs.RepoRef, ac apiCommit) *vcs.NormalizedCommit {
	if ac.ID == "" {
		return nil
	}

	author := ac.AuthorName
	if author == "" {
		author = vcs.UnknownAuthor
	}
	webURL := ac.WebURL
	if webURL == "" {
		webURL = g.CommitURL(repo, ac.ID)
	}

	return &vcs.NormalizedCommit{
		ID:         ac.ID,
		Message:    ac.Message,
		AuthorName: author,
		AuthorDate: ac.CreatedAt,
		URL:        webURL,
	}
}

func diffStatus(d apiDiff) vcs.FileStatus {
	switch {
	case d.NewFile:
		return vcs.FileAdded
	case d.DeletedFile:
		return vcs.FileRemoved
	case d.RenamedFile:
		return vcs.FileRenamed
	default:
		return vcs.FileModified
	}
}

// wrapError maps httpclient errors onto ProviderError.
func (g *GitLab) wrapError(err error) error {
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		return &vcs.ProviderError{
			Provider:   "gitlab",
			StatusCode: statusErr.StatusCode,
			Message:    statusErr.Body,
		}
	}
	return &vcs.ProviderError{Provider: "gitlab", Message: err.Error()}
}
