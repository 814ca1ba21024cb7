package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/everstacklabs/shiplog/internal/httpclient"
	"github.com/everstacklabs/shiplog/internal/vcs"
)

func testRepo() vcs.RepoRef {
	return vcs.RepoRef{Owner: "acme", Name: "widgets"}
}

func newTestProvider(serverURL string) *GitLab {
	g := &GitLab{}
	g.Configure("test-token", serverURL, httpclient.New(httpclient.WithNoCache()))
	return g
}

func TestFetchCommitsPaginates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("PRIVATE-TOKEN"); got != "test-token" {
			t.Errorf("missing auth header, got %q", got)
		}
		w.Header().Set("x-total-pages", "2")
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, `[{"id":"aaa111","message":"feat: one","author_name":"Ann"},{"id":"","message":"malformed"}]`)
		case "2":
			fmt.Fprint(w, `[{"id":"bbb222","message":"fix: two"}]`)
		default:
			http.Error(w, "unexpected page", http.StatusBadRequest)
		}
	}))
	defer server.Close()

	g := newTestProvider(server.URL)
	commits, err := g.FetchCommits(context.Background(), testRepo(), vcs.FetchOptions{})
	if err != nil {
		t.Fatal(err)
	}

	// Malformed record dropped, page order preserved.
	if len(commits) != 2 {
		t.Fatalf("got %d commits, want 2", len(commits))
	}
	if commits[0].ID != "aaa111" || commits[1].ID != "bbb222" {
		t.Errorf("commit order wrong: %s, %s", commits[0].ID, commits[1].ID)
	}
	if commits[1].AuthorName != vcs.UnknownAuthor {
		t.Errorf("missing author should default to %q, got %q", vcs.UnknownAuthor, commits[1].AuthorName)
	}
}

func TestFetchCommitsPageFailureDiscardsAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-total-pages", "3")
		switch r.URL.Query().Get("page") {
		case "2":
			http.Error(w, "upstream exploded", http.StatusInternalServerError)
		default:
			fmt.Fprint(w, `[{"id":"aaa111","message":"feat: one"}]`)
		}
	}))
	defer server.Close()

	g := newTestProvider(server.URL)
	commits, err := g.FetchCommits(context.Background(), testRepo(), vcs.FetchOptions{})

	var provErr *vcs.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
	if provErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", provErr.StatusCode)
	}
	if !provErr.Retryable() {
		t.Error("a 500 should be retryable")
	}
	if commits != nil {
		t.Errorf("partial result returned alongside error: %d commits", len(commits))
	}
}

func TestFetchCommitsBetweenReversesCompareOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"commits":[{"id":"older","message":"first"},{"id":"newer","message":"second"}]}`)
	}))
	defer server.Close()

	g := newTestProvider(server.URL)
	commits, err := g.FetchCommitsBetween(context.Background(), testRepo(), "v1.0.0", "v1.1.0")
	if err != nil {
		t.Fatal(err)
	}

	if len(commits) != 2 || commits[0].ID != "newer" || commits[1].ID != "older" {
		t.Errorf("expected newest-first order, got %+v", commits)
	}
}

func TestCommitDetailMergesDiff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/diff") {
			fmt.Fprint(w, `[{"new_path":"main.go","new_file":true,"diff":"+hello"}]`)
			return
		}
		fmt.Fprint(w, `{"id":"abc123","message":"feat: add main","author_name":"Ann"}`)
	}))
	defer server.Close()

	g := newTestProvider(server.URL)
	c, err := g.CommitDetail(context.Background(), testRepo(), "abc123")
	if err != nil {
		t.Fatal(err)
	}

	if c.ID != "abc123" {
		t.Errorf("ID = %q", c.ID)
	}
	if len(c.FilesChanged) != 1 {
		t.Fatalf("FilesChanged = %+v", c.FilesChanged)
	}
	if c.FilesChanged[0].Path != "main.go" || c.FilesChanged[0].Status != vcs.FileAdded {
		t.Errorf("file change = %+v", c.FilesChanged[0])
	}
}

func TestCommitURLShape(t *testing.T) {
	g := &GitLab{}
	g.Configure("", "https://gitlab.com", nil)

	got := g.CommitURL(vcs.RepoRef{Owner: "acme", Name: "widgets"}, "abc123")
	want := "https://gitlab.com/acme/widgets/-/commit/abc123"
	if got != want {
		t.Errorf("CommitURL = %q, want %q", got, want)
	}

	withURL := g.CommitURL(vcs.RepoRef{URL: "https://git.example.com/acme/widgets"}, "abc123")
	if withURL != "https://git.example.com/acme/widgets/-/commit/abc123" {
		t.Errorf("CommitURL with explicit repo URL = %q", withURL)
	}
}

func TestUnconfiguredProvider(t *testing.T) {
	g := &GitLab{}
	_, err := g.FetchCommits(context.Background(), testRepo(), vcs.FetchOptions{})
	var provErr *vcs.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
}
