// Package importer turns externally-authored changelog content into stored
// entries. It parses uploaded Markdown (or already-structured source items)
// into validated entries, previews the batch, and reconciles it against a
// project's existing entries under a configured policy.
package importer

import "time"

// Strategy selects how a batch relates to the project's existing entries.
type Strategy string

const (
	StrategyMerge   Strategy = "merge"
	StrategyAppend  Strategy = "append"
	StrategyReplace Strategy = "replace"
)

// ConflictResolution selects what happens when a candidate's version collides
// with an existing entry's version.
type ConflictResolution string

const (
	ConflictSkip      ConflictResolution = "skip"
	ConflictOverwrite ConflictResolution = "overwrite"
	ConflictPrompt    ConflictResolution = "prompt"
)

// DateHandling selects which date each written entry carries.
type DateHandling string

const (
	DatePreserve DateHandling = "preserve"
	DateCurrent  DateHandling = "current"
	DateSequence DateHandling = "sequence"
)

// ValidatedEntry is the common intermediate shape both the generation and
// import paths produce before anything is persisted.
type ValidatedEntry struct {
	Title            string
	Content          string
	Version          string
	Tags             []string
	PublishedAt      time.Time
	IsValid          bool
	ValidationErrors []string
}

// SourceItem is an already-structured entry from a third-party source
// (issue tracker export, API pull). It skips Markdown parsing but goes
// through the same validation and preview steps.
type SourceItem struct {
	Title       string
	Content     string
	Version     string
	Tags        []string
	PublishedAt time.Time
}

// ImportOptions is the reconciliation policy for one batch. Immutable for
// the duration of the operation.
type ImportOptions struct {
	Strategy                Strategy
	PreserveExistingEntries bool
	ConflictResolution      ConflictResolution
	DateHandling            DateHandling
	AutoGenerateVersions    bool
	PublishImportedEntries  bool
	DefaultTags             []string
}

// DefaultImportOptions matches the wizard's initial configuration.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		Strategy:           StrategyMerge,
		ConflictResolution: ConflictSkip,
		DateHandling:       DatePreserve,
	}
}

// ImportResult is the terminal artifact of one reconciliation run.
type ImportResult struct {
	Success         bool
	ImportedCount   int
	ErrorCount      int
	SkippedCount    int
	CreatedEntryIDs []string
	Warnings        []string
}

// ImportPreview aggregates counts over a candidate batch. Purely derived;
// recomputed whenever the candidate set changes.
type ImportPreview struct {
	Total             int
	Valid             int
	Invalid           int
	DuplicateVersions []string
	MissingTitle      int
	MissingContent    int
	Warnings          []string
	Errors            []string
}
