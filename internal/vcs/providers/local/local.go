package local

import (
	"context"
	"errors"
	"fmt"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	fdiff "github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/everstacklabs/shiplog/internal/vcs"
)

func init() {
	vcs.Register(&Local{})
}

// Local reads commit history straight from a checked-out repository using
// go-git, so generation works without any hosted provider or network access.
type Local struct{}

func (l *Local) Name() string { return "local" }

var errStopIteration = errors.New("stop iteration")

func (l *Local) FetchCommits(ctx context.Context, repo vcs.RepoRef, opts vcs.FetchOptions) ([]vcs.NormalizedCommit, error) {
	r, err := l.open(repo)
	if err != nil {
		return nil, err
	}

	logOpts := &git.LogOptions{}
	if !opts.Since.IsZero() {
		since := opts.Since
		logOpts.Since = &since
	}
	if !opts.Until.IsZero() {
		until := opts.Until
		logOpts.Until = &until
	}

	iter, err := r.Log(logOpts)
	if err != nil {
		return nil, &vcs.ProviderError{Provider: "local", Message: fmt.Sprintf("reading log: %v", err)}
	}
	defer iter.Close()

	limit := 0
	if opts.MaxPages > 0 {
		perPage := opts.PerPage
		if perPage <= 0 {
			perPage = 100
		}
		limit = opts.MaxPages * perPage
	}

	var commits []vcs.NormalizedCommit
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		commits = append(commits, normalize(repo, c))
		if limit > 0 && len(commits) >= limit {
			return errStopIteration
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return nil, &vcs.ProviderError{Provider: "local", Message: fmt.Sprintf("iterating log: %v", err)}
	}

	return commits, nil
}

func (l *Local) FetchCommitsBetween(ctx context.Context, repo vcs.RepoRef, fromRef, toRef string) ([]vcs.NormalizedCommit, error) {
	r, err := l.open(repo)
	if err != nil {
		return nil, err
	}

	fromHash, err := r.ResolveRevision(plumbing.Revision(fromRef))
	if err != nil {
		return nil, &vcs.ProviderError{Provider: "local", Message: fmt.Sprintf("resolving %q: %v", fromRef, err)}
	}
	toHash, err := r.ResolveRevision(plumbing.Revision(toRef))
	if err != nil {
		return nil, &vcs.ProviderError{Provider: "local", Message: fmt.Sprintf("resolving %q: %v", toRef, err)}
	}

	iter, err := r.Log(&git.LogOptions{From: *toHash})
	if err != nil {
		return nil, &vcs.ProviderError{Provider: "local", Message: fmt.Sprintf("reading log: %v", err)}
	}
	defer iter.Close()

	var commits []vcs.NormalizedCommit
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.Hash == *fromHash {
			return errStopIteration // fromRef itself is excluded
		}
		commits = append(commits, normalize(repo, c))
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return nil, &vcs.ProviderError{Provider: "local", Message: fmt.Sprintf("iterating log: %v", err)}
	}

	return commits, nil
}

func (l *Local) CommitDetail(ctx context.Context, repo vcs.RepoRef, sha string) (*vcs.NormalizedCommit, error) {
	r, err := l.open(repo)
	if err != nil {
		return nil, err
	}

	hash, err := r.ResolveRevision(plumbing.Revision(sha))
	if err != nil {
		return nil, &vcs.ProviderError{Provider: "local", Message: fmt.Sprintf("resolving %q: %v", sha, err)}
	}

	c, err := r.CommitObject(*hash)
	if err != nil {
		return nil, &vcs.ProviderError{Provider: "local", Message: fmt.Sprintf("loading commit %s: %v", sha, err)}
	}

	nc := normalize(repo, c)
	nc.FilesChanged = fileChanges(ctx, c)
	return &nc, nil
}

// CommitURL builds a GitHub-shaped URL from the configured repository web URL.
// Returns an empty string when no web URL is known.
func (l *Local) CommitURL(repo vcs.RepoRef, sha string) string {
	if repo.URL == "" {
		return ""
	}
	return strings.TrimSuffix(repo.URL, "/") + "/commit/" + sha
}

func (l *Local) open(repo vcs.RepoRef) (*git.Repository, error) {
	path := repo.Path
	if path == "" {
		path = "."
	}
	r, err := git.PlainOpen(path)
	if err != nil {
		return nil, &vcs.ProviderError{Provider: "local", Message: fmt.Sprintf("opening repo %s: %v", path, err)}
	}
	return r, nil
}

func normalize(repo vcs.RepoRef, c *object.Commit) vcs.NormalizedCommit {
	author := c.Author.Name
	if author == "" {
		author = vcs.UnknownAuthor
	}
	return vcs.NormalizedCommit{
		ID:         c.Hash.String(),
		Message:    c.Message,
		AuthorName: author,
		AuthorDate: c.Author.When,
		URL:        (&Local{}).CommitURL(repo, c.Hash.String()),
	}
}

// fileChanges computes per-file stats against the first parent. Root commits
// fall back to tree stats with every file reported as added.
func fileChanges(ctx context.Context, c *object.Commit) []vcs.FileChange {
	parent, err := c.Parent(0)
	if err != nil {
		stats, err := c.Stats()
		if err != nil {
			return nil
		}
		changes := make([]vcs.FileChange, 0, len(stats))
		for _, s := range stats {
			changes = append(changes, vcs.FileChange{
				Path:      s.Name,
				Status:    vcs.FileAdded,
				Additions: s.Addition,
				Deletions: s.Deletion,
			})
		}
		return changes
	}

	patch, err := parent.PatchContext(ctx, c)
	if err != nil {
		return nil
	}

	var changes []vcs.FileChange
	for _, fp := range patch.FilePatches() {
		from, to := fp.Files()
		fc := vcs.FileChange{Status: vcs.FileModified}
		switch {
		case from == nil && to != nil:
			fc.Path = to.Path()
			fc.Status = vcs.FileAdded
		case from != nil && to == nil:
			fc.Path = from.Path()
			fc.Status = vcs.FileRemoved
		case from != nil && to != nil && from.Path() != to.Path():
			fc.Path = to.Path()
			fc.Status = vcs.FileRenamed
		case to != nil:
			fc.Path = to.Path()
		}

		for _, chunk := range fp.Chunks() {
			lines := strings.Count(chunk.Content(), "\n")
			switch chunk.Type() {
			case fdiff.Add:
				fc.Additions += lines
			case fdiff.Delete:
				fc.Deletions += lines
			}
		}
		changes = append(changes, fc)
	}
	return changes
}
