package importer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/everstacklabs/shiplog/internal/store"
)

// Resolver answers a per-conflict prompt. It returns ConflictSkip or
// ConflictOverwrite for the colliding pair. Only consulted when the batch
// policy is ConflictPrompt.
type Resolver func(candidate ValidatedEntry, existing store.Entry) ConflictResolution

// BatchAbortError reports that the whole run failed before or outside
// per-entry processing, typically because the store is unreachable. Entries
// already persisted before the abort stay persisted.
type BatchAbortError struct {
	Err error
}

func (e *BatchAbortError) Error() string {
	return fmt.Sprintf("import batch aborted: %v", e.Err)
}

func (e *BatchAbortError) Unwrap() error {
	return e.Err
}

// Engine reconciles a validated batch against a project's existing entries.
// One engine serves many projects; concurrent imports into the same project
// are serialized by a per-project lock.
type Engine struct {
	store    store.Store
	resolver Resolver
	now      func() time.Time
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithResolver supplies the synchronous conflict resolver used by the
// prompt policy.
func WithResolver(r Resolver) EngineOption {
	return func(e *Engine) { e.resolver = r }
}

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithLogger overrides the engine's logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a reconciliation engine backed by st.
func NewEngine(st store.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:  st,
		now:    time.Now,
		logger: slog.Default(),
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) projectLock(projectID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[projectID] = l
	}
	return l
}

// Import applies one batch under the given policy. Per-entry write failures
// are counted and the batch continues; an unreachable store aborts the run
// with a BatchAbortError. Counts accumulated before an abort are returned
// alongside it.
func (e *Engine) Import(ctx context.Context, projectID string, entries []ValidatedEntry, opts ImportOptions) (*ImportResult, error) {
	lock := e.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	result := &ImportResult{}

	candidates := make([]ValidatedEntry, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsValid {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("entry %q is invalid and was excluded from the batch", entry.Title))
			continue
		}
		candidates = append(candidates, entry)
	}

	// Snapshot taken once at batch start; collision checks do not re-query.
	existing, err := e.store.ListEntries(ctx, projectID)
	if err != nil {
		return result, &BatchAbortError{Err: fmt.Errorf("listing existing entries: %w", err)}
	}

	if opts.Strategy == StrategyReplace && !opts.PreserveExistingEntries {
		existing = e.deleteExisting(ctx, projectID, existing, result)
	}

	byVersion := make(map[string]store.Entry, len(existing))
	for _, ex := range existing {
		if key := versionKey(ex.Version); key != "" {
			byVersion[key] = ex
		}
	}

	versions := newVersionSequence(existing)
	batchStart := e.now()

	for i, entry := range candidates {
		if opts.AutoGenerateVersions && entry.Version == "" {
			entry.Version = versions.next()
		}

		date := e.resolveDate(entry, opts, batchStart, i, len(candidates))

		collided, ok := byVersion[versionKey(entry.Version)]
		if ok && entry.Version != "" && opts.Strategy != StrategyAppend {
			e.resolveConflict(ctx, projectID, entry, collided, date, opts, result, byVersion)
			continue
		}

		e.createEntry(ctx, projectID, entry, date, opts, result, byVersion)
	}

	result.Success = result.ErrorCount == 0
	return result, nil
}

// deleteExisting removes the current entry set for a replace-strategy batch.
// Entries whose deletion fails stay in the returned snapshot so collision
// checks still see them.
func (e *Engine) deleteExisting(ctx context.Context, projectID string, existing []store.Entry, result *ImportResult) []store.Entry {
	var remaining []store.Entry
	for _, ex := range existing {
		if err := e.store.DeleteEntry(ctx, ex.ID); err != nil {
			e.logger.Warn("failed to delete entry for replace",
				slog.String("project", projectID),
				slog.String("entry", ex.ID),
				slog.String("error", err.Error()))
			result.ErrorCount++
			remaining = append(remaining, ex)
		}
	}
	return remaining
}

func (e *Engine) resolveConflict(ctx context.Context, projectID string, entry ValidatedEntry, collided store.Entry, date time.Time, opts ImportOptions, result *ImportResult, byVersion map[string]store.Entry) {
	resolution := opts.ConflictResolution
	if resolution == ConflictPrompt {
		if e.resolver == nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("no resolver for prompt policy, skipping version %s", entry.Version))
			resolution = ConflictSkip
		} else {
			resolution = e.resolver(entry, collided)
		}
	}

	switch resolution {
	case ConflictOverwrite:
		updated := collided
		updated.Title = entry.Title
		updated.Content = entry.Content
		updated.Version = entry.Version
		updated.Tags = unionTags(unionTags(collided.Tags, entry.Tags), opts.DefaultTags)
		updated.Published = opts.PublishImportedEntries
		updated.PublishedAt = date

		if err := e.store.UpdateEntry(ctx, collided.ID, updated); err != nil {
			e.logger.Warn("overwrite failed",
				slog.String("project", projectID),
				slog.String("version", entry.Version),
				slog.String("error", err.Error()))
			result.ErrorCount++
			return
		}
		byVersion[versionKey(entry.Version)] = updated
		// Existing identity kept: counted as imported, no new id recorded.
		result.ImportedCount++
	default:
		result.SkippedCount++
	}
}

func (e *Engine) createEntry(ctx context.Context, projectID string, entry ValidatedEntry, date time.Time, opts ImportOptions, result *ImportResult, byVersion map[string]store.Entry) {
	rec := store.Entry{
		Title:       entry.Title,
		Content:     entry.Content,
		Version:     entry.Version,
		Tags:        unionTags(entry.Tags, opts.DefaultTags),
		Published:   opts.PublishImportedEntries,
		PublishedAt: date,
	}

	id, err := e.store.CreateEntry(ctx, projectID, rec)
	if err != nil {
		e.logger.Warn("create failed",
			slog.String("project", projectID),
			slog.String("title", entry.Title),
			slog.String("error", err.Error()))
		result.ErrorCount++
		return
	}

	rec.ID = id
	if key := versionKey(rec.Version); key != "" {
		byVersion[key] = rec
	}
	result.ImportedCount++
	result.CreatedEntryIDs = append(result.CreatedEntryIDs, id)
}

// sequenceUnit is the spacing between synthetic sequence dates.
const sequenceUnit = time.Minute

// resolveDate picks the date an entry is written with. Sequence dates are
// anchored so the last parsed entry lands closest to the batch start time
// and earlier entries step back one unit each.
func (e *Engine) resolveDate(entry ValidatedEntry, opts ImportOptions, batchStart time.Time, idx, total int) time.Time {
	switch opts.DateHandling {
	case DateCurrent:
		return batchStart
	case DateSequence:
		return batchStart.Add(-time.Duration(total-1-idx) * sequenceUnit)
	default:
		if !entry.PublishedAt.IsZero() {
			return entry.PublishedAt
		}
		return batchStart
	}
}

// unionTags merges extra into base without duplicates, preserving order.
func unionTags(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, t := range base {
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range extra {
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// versionSequence generates patch-incrementing versions for entries that
// arrive without one, continuing from the highest numeric version already
// in the project.
type versionSequence struct {
	major, minor, patch int
	seeded              bool
}

func newVersionSequence(existing []store.Entry) *versionSequence {
	s := &versionSequence{}
	for _, ex := range existing {
		maj, min, patch, ok := parseNumericVersion(ex.Version)
		if !ok {
			continue
		}
		if !s.seeded || greaterVersion(maj, min, patch, s.major, s.minor, s.patch) {
			s.major, s.minor, s.patch = maj, min, patch
			s.seeded = true
		}
	}
	return s
}

// next returns the following patch version. With no numeric seed the
// sequence starts at 0.0.1.
func (s *versionSequence) next() string {
	if !s.seeded {
		s.major, s.minor, s.patch = 0, 0, 0
		s.seeded = true
	}
	s.patch++
	return fmt.Sprintf("%d.%d.%d", s.major, s.minor, s.patch)
}

func parseNumericVersion(v string) (major, minor, patch int, ok bool) {
	m := numericVersionRe.FindStringSubmatch(versionKey(v))
	if m == nil {
		return 0, 0, 0, false
	}
	_, err := fmt.Sscanf(m[1]+"."+m[2]+"."+m[3], "%d.%d.%d", &major, &minor, &patch)
	if err != nil {
		return 0, 0, 0, false
	}
	return major, minor, patch, true
}

func greaterVersion(aMaj, aMin, aPatch, bMaj, bMin, bPatch int) bool {
	if aMaj != bMaj {
		return aMaj > bMaj
	}
	if aMin != bMin {
		return aMin > bMin
	}
	return aPatch > bPatch
}
