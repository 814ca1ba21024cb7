package vcs

import (
	"context"
	"fmt"
	"time"
)

// UnknownAuthor is substituted when a provider record carries no author.
const UnknownAuthor = "Unknown"

// FileStatus classifies how a commit touched a file.
type FileStatus string

const (
	FileAdded    FileStatus = "added"
	FileModified FileStatus = "modified"
	FileRemoved  FileStatus = "removed"
	FileRenamed  FileStatus = "renamed"
)

// FileChange describes one file touched by a commit.
type FileChange struct {
	Path      string
	Status    FileStatus
	Additions int
	Deletions int
	Patch     string
}

// NormalizedCommit is the provider-independent commit shape consumed by the
// synthesis pipeline. It is immutable once produced and never persisted.
type NormalizedCommit struct {
	ID           string
	Message      string
	AuthorName   string
	AuthorDate   time.Time
	URL          string
	FilesChanged []FileChange
}

// ShortID returns the abbreviated commit hash used in rendered links.
func (c NormalizedCommit) ShortID() string {
	if len(c.ID) > 7 {
		return c.ID[:7]
	}
	return c.ID
}

// RepoRef identifies a repository for a provider. Hosted providers use
// Owner/Name; the local provider uses Path. URL is the repository web URL
// used to build commit links.
type RepoRef struct {
	Owner string
	Name  string
	Path  string
	URL   string
}

func (r RepoRef) String() string {
	if r.Owner != "" {
		return r.Owner + "/" + r.Name
	}
	return r.Path
}

// FetchOptions narrows a commit listing.
type FetchOptions struct {
	Since   time.Time
	Until   time.Time
	PerPage int
	// MaxPages caps pagination; zero means fetch everything.
	MaxPages int
}

// ProviderError is a transport or auth failure from an upstream provider.
// Unlike a malformed individual record (dropped with a warning), it fails
// the whole fetch.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// Retryable reports whether the failure is worth retrying (rate limit or
// upstream 5xx).
func (e *ProviderError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// Provider fetches commit history from one VCS backend.
type Provider interface {
	// Name returns the provider name (e.g., "github").
	Name() string
	// FetchCommits lists commits for a repository, newest first, honoring
	// the fetch window. The returned order is the provider's source order.
	FetchCommits(ctx context.Context, repo RepoRef, opts FetchOptions) ([]NormalizedCommit, error)
	// FetchCommitsBetween lists commits reachable from toRef but not fromRef.
	FetchCommitsBetween(ctx context.Context, repo RepoRef, fromRef, toRef string) ([]NormalizedCommit, error)
	// CommitDetail fetches a single commit with FilesChanged populated.
	CommitDetail(ctx context.Context, repo RepoRef, sha string) (*NormalizedCommit, error)
	// CommitURL builds the provider-appropriate web URL for a commit.
	CommitURL(repo RepoRef, sha string) string
}
