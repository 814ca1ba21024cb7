// Package changelog turns commit history into a categorized changelog
// document.
package changelog

import (
	"time"
)

// Category is a changelog section.
type Category string

const (
	CategoryBreaking      Category = "Breaking Changes"
	CategoryFeatures      Category = "Features"
	CategoryBugFixes      Category = "Bug Fixes"
	CategoryPerformance   Category = "Performance"
	CategoryRefactoring   Category = "Refactoring"
	CategoryDocumentation Category = "Documentation"
	CategoryOther         Category = "Other"
)

// Taxonomy is the fixed category order. It is the required rendering order
// of sections, independent of the order commits were discovered in.
var Taxonomy = []Category{
	CategoryBreaking,
	CategoryFeatures,
	CategoryBugFixes,
	CategoryPerformance,
	CategoryRefactoring,
	CategoryDocumentation,
	CategoryOther,
}

// Entry is one changelog line derived from a commit (or parsed from an
// imported document).
type Entry struct {
	Category        Category
	Description     string
	RelatedFiles    []string
	CommitRef       string
	CommitURL       string
	Impact          string
	TechnicalDetail string
}

// Options controls one synthesis run. It is immutable for the duration of
// the run and passed explicitly; there is no ambient configuration.
type Options struct {
	Filter             FilterSettings
	UseAI              bool
	IncludeCommitLinks bool
	RepositoryURL      string
	// Provider selects the commit URL shape ("gitlab" uses /-/commit/).
	Provider string

	// Enrichment bounds. Zero values fall back to the defaults below.
	EnrichConcurrency int
	EnrichTimeout     time.Duration
	Temperature       float64
}

const (
	defaultEnrichConcurrency = 4
	defaultEnrichTimeout     = 15 * time.Second
)

// Metadata summarizes a synthesis run.
type Metadata struct {
	GeneratedAt      time.Time
	CommitCount      int
	EntryCount       int
	EnrichedCount    int
	EnrichmentErrors []string
}

// GeneratedChangelog is the terminal artifact of synthesis.
type GeneratedChangelog struct {
	Markdown string
	Entries  []Entry
	Metadata Metadata
}
