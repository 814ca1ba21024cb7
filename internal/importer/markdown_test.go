package importer

import (
	"strings"
	"testing"
	"time"
)

const sampleChangelog = `# Changelog

All notable changes to this project.

## [1.2.0] - 2024-05-01
- Added widget support
- Fixed panel crash

## v1.1.0
- Initial panel work

## Unreleased notes
- Something still cooking

## [1.1.0] - 2024-03-15
- Duplicate of the v-prefixed heading

## [1.0.0]
`

func TestParseMarkdownHeadings(t *testing.T) {
	entries, _ := ParseMarkdown(sampleChangelog)

	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}

	first := entries[0]
	if first.Title != "1.2.0" || first.Version != "1.2.0" {
		t.Errorf("bracket heading: title=%q version=%q", first.Title, first.Version)
	}
	want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	if !first.PublishedAt.Equal(want) {
		t.Errorf("bracket heading date = %v, want %v", first.PublishedAt, want)
	}
	if !strings.Contains(first.Content, "Added widget support") || !strings.Contains(first.Content, "Fixed panel crash") {
		t.Errorf("bullet content not captured: %q", first.Content)
	}
	if !first.IsValid {
		t.Errorf("entry with content flagged invalid: %v", first.ValidationErrors)
	}

	second := entries[1]
	if second.Title != "v1.1.0" || second.Version != "1.1.0" {
		t.Errorf("v-prefixed heading: title=%q version=%q", second.Title, second.Version)
	}

	third := entries[2]
	if third.Title != "Unreleased notes" || third.Version != "" {
		t.Errorf("bare heading: title=%q version=%q", third.Title, third.Version)
	}

	last := entries[4]
	if last.IsValid {
		t.Error("entry without content should be invalid")
	}
	if !missingContent(last) {
		t.Errorf("missing content not flagged: %v", last.ValidationErrors)
	}
}

func TestParseMarkdownPreview(t *testing.T) {
	_, preview := ParseMarkdown(sampleChangelog)

	if preview.Total != 5 {
		t.Errorf("Total = %d, want 5", preview.Total)
	}
	if preview.Valid != 4 || preview.Invalid != 1 {
		t.Errorf("Valid/Invalid = %d/%d, want 4/1", preview.Valid, preview.Invalid)
	}
	if preview.MissingContent != 1 {
		t.Errorf("MissingContent = %d, want 1", preview.MissingContent)
	}
	// v1.1.0 and [1.1.0] normalize to the same version key.
	if len(preview.DuplicateVersions) != 1 || preview.DuplicateVersions[0] != "1.1.0" {
		t.Errorf("DuplicateVersions = %v, want [1.1.0]", preview.DuplicateVersions)
	}
	if len(preview.Warnings) == 0 {
		t.Error("expected duplicate-version warning")
	}
}

func TestParseMarkdownHandlesVeryLongLines(t *testing.T) {
	longBullet := "- " + strings.Repeat("x", 2*1024*1024)
	doc := "## [1.0.0]\n" + longBullet + "\n\n## [2.0.0]\n- short note\n"

	entries, preview := ParseMarkdown(doc)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 (entries after a long line must not be dropped)", len(entries))
	}
	if preview.Total != 2 || preview.Valid != 2 {
		t.Errorf("preview = %+v, want 2 total, 2 valid", preview)
	}
	if len(entries[0].Content) < 2*1024*1024 {
		t.Errorf("long line truncated: %d bytes", len(entries[0].Content))
	}
	if entries[1].Version != "2.0.0" || !strings.Contains(entries[1].Content, "short note") {
		t.Errorf("trailing entry mangled: %+v", entries[1])
	}
}

func TestParseMarkdownEmptyInput(t *testing.T) {
	entries, preview := ParseMarkdown("")
	if len(entries) != 0 || preview.Total != 0 {
		t.Errorf("expected empty result, got %d entries", len(entries))
	}
}

func TestParseMarkdownPreambleIgnored(t *testing.T) {
	entries, _ := ParseMarkdown("Some loose text\nwith no headings at all\n")
	if len(entries) != 0 {
		t.Errorf("text without headings should produce no entries, got %d", len(entries))
	}
}

func TestFromSourceItems(t *testing.T) {
	items := []SourceItem{
		{Title: "Release one", Content: "did a thing", Version: "1.0.0", Tags: []string{"release"}},
		{Content: "content but no title"},
		{Title: "empty body"},
	}

	entries, preview := FromSourceItems(items)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if !entries[0].IsValid {
		t.Errorf("complete item flagged invalid: %v", entries[0].ValidationErrors)
	}
	if entries[1].Title != "Entry 2" {
		t.Errorf("placeholder title = %q, want %q", entries[1].Title, "Entry 2")
	}
	if !entries[1].IsValid {
		t.Error("item missing only a title should stay valid")
	}
	if entries[2].IsValid {
		t.Error("item without content should be invalid")
	}
	if preview.MissingTitle != 1 || preview.MissingContent != 1 {
		t.Errorf("preview counts = %+v", preview)
	}
}
