package importer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/everstacklabs/shiplog/internal/changelog"
	"github.com/everstacklabs/shiplog/internal/vcs"
)

// A generated document must survive a trip back through the import parser:
// every section becomes a valid entry and the descriptions are preserved.
func TestGeneratedChangelogRoundTrips(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	commits := []vcs.NormalizedCommit{
		{ID: "aaaaaaaaaaaa", Message: "feat: add widgets", AuthorDate: base},
		{ID: "bbbbbbbbbbbb", Message: "fix: stop crashing", AuthorDate: base.Add(time.Hour)},
		{ID: "cccccccccccc", Message: "feat!: drop legacy api", AuthorDate: base.Add(2 * time.Hour)},
	}

	s := changelog.NewSynthesizer(nil)
	gc, err := s.Synthesize(context.Background(), commits, changelog.Options{
		Filter: changelog.DefaultFilterSettings(),
	})
	if err != nil {
		t.Fatal(err)
	}

	entries, preview := ParseMarkdown(gc.Markdown)
	if len(entries) == 0 {
		t.Fatalf("no entries parsed from generated document:\n%s", gc.Markdown)
	}
	if preview.Invalid != 0 {
		t.Errorf("generated sections should all validate: %+v", preview)
	}

	wantTitles := []string{"Breaking Changes", "Features", "Bug Fixes"}
	if len(entries) != len(wantTitles) {
		t.Fatalf("parsed %d entries, want %d:\n%s", len(entries), len(wantTitles), gc.Markdown)
	}
	for i, title := range wantTitles {
		if entries[i].Title != title {
			t.Errorf("entries[%d].Title = %q, want %q", i, entries[i].Title, title)
		}
	}

	if !strings.Contains(entries[1].Content, "add widgets") {
		t.Errorf("description lost in round trip: %q", entries[1].Content)
	}
	if !strings.Contains(entries[0].Content, "drop legacy api") {
		t.Errorf("breaking entry lost: %q", entries[0].Content)
	}
}
