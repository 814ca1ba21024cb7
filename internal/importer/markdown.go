package importer

import (
	"regexp"
	"strings"
	"time"
)

var (
	// ## [1.2.3] - 2024-05-01, ## [Unreleased]
	bracketHeadingRe = regexp.MustCompile(`^##\s*\[([^\]]+)\]\s*(?:-\s*(.+))?$`)
	// ## v1.2.3, ## 1.2.3 - 2024-05-01
	versionHeadingRe = regexp.MustCompile(`^##\s*v?(\d+\.\d+\.\d+)\s*(?:-\s*(.+))?$`)
	// Any other second-level heading starts an untitled/unversioned entry.
	bareHeadingRe = regexp.MustCompile(`^##\s+(.+)$`)

	numericVersionRe = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)`)
)

// ParseMarkdown parses uploaded changelog text into validated entries plus
// a preview of the batch. Parsing never fails: malformed sections fall back
// to defaults and are reflected in the preview rather than aborting.
func ParseMarkdown(raw string) ([]ValidatedEntry, ImportPreview) {
	var entries []ValidatedEntry
	var current *ValidatedEntry
	var body []string

	flush := func() {
		if current == nil {
			return
		}
		current.Content = strings.TrimSpace(strings.Join(body, "\n"))
		entries = append(entries, *current)
		current = nil
		body = nil
	}

	// The whole document is already in memory, so split rather than scan:
	// a line-length cap would silently truncate the batch.
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, " \t\r")

		if e, ok := parseHeading(line); ok {
			flush()
			current = &e
			continue
		}
		if current == nil {
			// Preamble before the first heading (document title, generation
			// date line) carries no entry content.
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		body = append(body, line)
	}
	flush()

	for i := range entries {
		validateEntry(i, &entries[i])
	}
	return entries, BuildPreview(entries)
}

func parseHeading(line string) (ValidatedEntry, bool) {
	if m := bracketHeadingRe.FindStringSubmatch(line); m != nil {
		e := ValidatedEntry{Title: m[1]}
		if numericVersionRe.MatchString(m[1]) {
			e.Version = strings.TrimPrefix(m[1], "v")
		}
		e.PublishedAt = parseHeadingDate(m[2])
		return e, true
	}
	if m := versionHeadingRe.FindStringSubmatch(line); m != nil {
		return ValidatedEntry{
			Title:       "v" + m[1],
			Version:     m[1],
			PublishedAt: parseHeadingDate(m[2]),
		}, true
	}
	if m := bareHeadingRe.FindStringSubmatch(line); m != nil {
		return ValidatedEntry{Title: strings.TrimSpace(m[1])}, true
	}
	return ValidatedEntry{}, false
}

func parseHeadingDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02", "January 2, 2006", "2006/01/02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// FromSourceItems adapts already-structured third-party items into the same
// validated shape ParseMarkdown produces, so downstream steps cannot tell
// which path fed them.
func FromSourceItems(items []SourceItem) ([]ValidatedEntry, ImportPreview) {
	entries := make([]ValidatedEntry, 0, len(items))
	for i, item := range items {
		e := ValidatedEntry{
			Title:       item.Title,
			Content:     item.Content,
			Version:     item.Version,
			Tags:        append([]string(nil), item.Tags...),
			PublishedAt: item.PublishedAt,
		}
		validateEntry(i, &e)
		entries = append(entries, e)
	}
	return entries, BuildPreview(entries)
}
