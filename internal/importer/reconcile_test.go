package importer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/everstacklabs/shiplog/internal/store"
)

func validEntry(title, content, version string) ValidatedEntry {
	return ValidatedEntry{Title: title, Content: content, Version: version, IsValid: true}
}

func seedExisting(t *testing.T, st store.Store, entries ...store.Entry) {
	t.Helper()
	for _, e := range entries {
		if _, err := st.CreateEntry(context.Background(), "proj", e); err != nil {
			t.Fatal(err)
		}
	}
}

func TestImportCreatesNewEntries(t *testing.T) {
	st := store.NewMemoryStore()
	engine := NewEngine(st)

	batch := []ValidatedEntry{
		validEntry("v1.0.0", "first", "1.0.0"),
		validEntry("v1.1.0", "second", "1.1.0"),
	}
	result, err := engine.Import(context.Background(), "proj", batch, DefaultImportOptions())
	if err != nil {
		t.Fatal(err)
	}

	if !result.Success || result.ImportedCount != 2 || result.SkippedCount != 0 {
		t.Errorf("result = %+v", result)
	}
	if len(result.CreatedEntryIDs) != 2 {
		t.Errorf("CreatedEntryIDs = %v", result.CreatedEntryIDs)
	}
	if st.Len() != 2 {
		t.Errorf("store has %d entries, want 2", st.Len())
	}
}

func TestImportIdempotentUnderSkip(t *testing.T) {
	st := store.NewMemoryStore()
	engine := NewEngine(st)
	batch := []ValidatedEntry{
		validEntry("v1.0.0", "first", "1.0.0"),
		validEntry("v1.1.0", "second", "1.1.0"),
	}

	first, err := engine.Import(context.Background(), "proj", batch, DefaultImportOptions())
	if err != nil {
		t.Fatal(err)
	}
	if first.ImportedCount != 2 {
		t.Fatalf("first run imported %d, want 2", first.ImportedCount)
	}

	second, err := engine.Import(context.Background(), "proj", batch, DefaultImportOptions())
	if err != nil {
		t.Fatal(err)
	}
	if second.ImportedCount != 0 || second.SkippedCount != 2 {
		t.Errorf("second run = %+v, want skipped=2 imported=0", second)
	}
	if st.Len() != 2 {
		t.Errorf("duplicates created: store has %d entries", st.Len())
	}
}

func TestImportConflictOverwrite(t *testing.T) {
	st := store.NewMemoryStore()
	seedExisting(t, st, store.Entry{Title: "v1.0.0", Content: "old", Version: "1.0.0"})
	engine := NewEngine(st)

	opts := DefaultImportOptions()
	opts.ConflictResolution = ConflictOverwrite

	result, err := engine.Import(context.Background(), "proj",
		[]ValidatedEntry{validEntry("v1.0.0", "new", "1.0.0")}, opts)
	if err != nil {
		t.Fatal(err)
	}

	if result.ImportedCount != 1 {
		t.Errorf("ImportedCount = %d, want 1", result.ImportedCount)
	}
	if len(result.CreatedEntryIDs) != 0 {
		t.Errorf("overwrite must not mint a new id: %v", result.CreatedEntryIDs)
	}
	entries, _ := st.ListEntries(context.Background(), "proj")
	if len(entries) != 1 || entries[0].Content != "new" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestImportConflictSkip(t *testing.T) {
	st := store.NewMemoryStore()
	seedExisting(t, st, store.Entry{Title: "v1.0.0", Content: "old", Version: "1.0.0"})
	engine := NewEngine(st)

	result, err := engine.Import(context.Background(), "proj",
		[]ValidatedEntry{validEntry("v1.0.0", "new", "1.0.0")}, DefaultImportOptions())
	if err != nil {
		t.Fatal(err)
	}

	if result.SkippedCount != 1 || result.ImportedCount != 0 {
		t.Errorf("result = %+v, want skipped=1 imported=0", result)
	}
	entries, _ := st.ListEntries(context.Background(), "proj")
	if entries[0].Content != "old" {
		t.Errorf("skip mutated existing content: %q", entries[0].Content)
	}
}

func TestImportPromptUsesResolver(t *testing.T) {
	st := store.NewMemoryStore()
	seedExisting(t, st, store.Entry{Title: "v1.0.0", Content: "old", Version: "1.0.0"})

	engine := NewEngine(st, WithResolver(func(candidate ValidatedEntry, existing store.Entry) ConflictResolution {
		return ConflictOverwrite
	}))

	opts := DefaultImportOptions()
	opts.ConflictResolution = ConflictPrompt

	result, err := engine.Import(context.Background(), "proj",
		[]ValidatedEntry{validEntry("v1.0.0", "resolved", "1.0.0")}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if result.ImportedCount != 1 {
		t.Errorf("resolver overwrite not applied: %+v", result)
	}
	entries, _ := st.ListEntries(context.Background(), "proj")
	if entries[0].Content != "resolved" {
		t.Errorf("content = %q", entries[0].Content)
	}
}

func TestImportPromptWithoutResolverFallsBackToSkip(t *testing.T) {
	st := store.NewMemoryStore()
	seedExisting(t, st, store.Entry{Title: "v1.0.0", Content: "old", Version: "1.0.0"})
	engine := NewEngine(st)

	opts := DefaultImportOptions()
	opts.ConflictResolution = ConflictPrompt

	result, err := engine.Import(context.Background(), "proj",
		[]ValidatedEntry{validEntry("v1.0.0", "new", "1.0.0")}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if result.SkippedCount != 1 {
		t.Errorf("expected fallback skip: %+v", result)
	}
	if len(result.Warnings) == 0 {
		t.Error("fallback should record a warning")
	}
}

func TestImportReplaceDeletesExisting(t *testing.T) {
	st := store.NewMemoryStore()
	seedExisting(t, st,
		store.Entry{Title: "old A", Content: "a", Version: "1.0.0"},
		store.Entry{Title: "old B", Content: "b", Version: "1.1.0"},
	)
	engine := NewEngine(st)

	opts := DefaultImportOptions()
	opts.Strategy = StrategyReplace

	result, err := engine.Import(context.Background(), "proj",
		[]ValidatedEntry{validEntry("fresh", "only one now", "2.0.0")}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if result.ImportedCount != 1 {
		t.Errorf("result = %+v", result)
	}
	entries, _ := st.ListEntries(context.Background(), "proj")
	if len(entries) != 1 || entries[0].Title != "fresh" {
		t.Errorf("entries after replace = %+v", entries)
	}
}

func TestImportReplaceDegradesToAppendWhenPreserving(t *testing.T) {
	st := store.NewMemoryStore()
	seedExisting(t, st, store.Entry{Title: "old", Content: "a", Version: "1.0.0"})
	engine := NewEngine(st)

	opts := DefaultImportOptions()
	opts.Strategy = StrategyReplace
	opts.PreserveExistingEntries = true

	result, err := engine.Import(context.Background(), "proj",
		[]ValidatedEntry{validEntry("fresh", "kept both", "2.0.0")}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if result.ImportedCount != 1 {
		t.Errorf("result = %+v", result)
	}
	if st.Len() != 2 {
		t.Errorf("store has %d entries, want 2 (existing preserved)", st.Len())
	}
}

func TestImportAppendIgnoresCollisions(t *testing.T) {
	st := store.NewMemoryStore()
	seedExisting(t, st, store.Entry{Title: "v1.0.0", Content: "old", Version: "1.0.0"})
	engine := NewEngine(st)

	opts := DefaultImportOptions()
	opts.Strategy = StrategyAppend

	result, err := engine.Import(context.Background(), "proj",
		[]ValidatedEntry{validEntry("v1.0.0", "again", "1.0.0")}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if result.ImportedCount != 1 || result.SkippedCount != 0 {
		t.Errorf("append should always create: %+v", result)
	}
	if st.Len() != 2 {
		t.Errorf("store has %d entries, want 2", st.Len())
	}
}

func TestImportAutoGenerateVersions(t *testing.T) {
	st := store.NewMemoryStore()
	seedExisting(t, st, store.Entry{Title: "old", Content: "c", Version: "2.3.1"})
	engine := NewEngine(st)

	opts := DefaultImportOptions()
	opts.AutoGenerateVersions = true

	result, err := engine.Import(context.Background(), "proj", []ValidatedEntry{
		{Title: "no version A", Content: "a", IsValid: true},
		{Title: "no version B", Content: "b", IsValid: true},
	}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if result.ImportedCount != 2 {
		t.Fatalf("result = %+v", result)
	}

	entries, _ := st.ListEntries(context.Background(), "proj")
	got := map[string]string{}
	for _, e := range entries {
		got[e.Title] = e.Version
	}
	if got["no version A"] != "2.3.2" {
		t.Errorf("first generated version = %q, want 2.3.2", got["no version A"])
	}
	if got["no version B"] != "2.3.3" {
		t.Errorf("second generated version = %q, want 2.3.3", got["no version B"])
	}
}

func TestImportAutoGenerateVersionsFromScratch(t *testing.T) {
	st := store.NewMemoryStore()
	engine := NewEngine(st)

	opts := DefaultImportOptions()
	opts.AutoGenerateVersions = true

	_, err := engine.Import(context.Background(), "proj",
		[]ValidatedEntry{{Title: "first ever", Content: "c", IsValid: true}}, opts)
	if err != nil {
		t.Fatal(err)
	}
	entries, _ := st.ListEntries(context.Background(), "proj")
	if entries[0].Version != "0.0.1" {
		t.Errorf("version = %q, want 0.0.1", entries[0].Version)
	}
}

func TestImportDefaultTagsAdditive(t *testing.T) {
	st := store.NewMemoryStore()
	engine := NewEngine(st)

	opts := DefaultImportOptions()
	opts.DefaultTags = []string{"imported", "release"}

	batch := []ValidatedEntry{{
		Title: "tagged", Content: "c", Version: "1.0.0",
		Tags: []string{"release", "hotfix"}, IsValid: true,
	}}
	if _, err := engine.Import(context.Background(), "proj", batch, opts); err != nil {
		t.Fatal(err)
	}

	entries, _ := st.ListEntries(context.Background(), "proj")
	want := []string{"release", "hotfix", "imported"}
	if len(entries[0].Tags) != len(want) {
		t.Fatalf("tags = %v, want %v", entries[0].Tags, want)
	}
	for i, tag := range want {
		if entries[0].Tags[i] != tag {
			t.Errorf("tags[%d] = %q, want %q", i, entries[0].Tags[i], tag)
		}
	}
}

func TestImportDateHandling(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	sourceDate := time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)

	mk := func(handling DateHandling) []store.Entry {
		st := store.NewMemoryStore()
		engine := NewEngine(st, WithClock(func() time.Time { return now }))
		opts := DefaultImportOptions()
		opts.DateHandling = handling
		batch := []ValidatedEntry{
			{Title: "a", Content: "c", Version: "1.0.0", PublishedAt: sourceDate, IsValid: true},
			{Title: "b", Content: "c", Version: "1.1.0", IsValid: true},
			{Title: "c", Content: "c", Version: "1.2.0", IsValid: true},
		}
		if _, err := engine.Import(context.Background(), "proj", batch, opts); err != nil {
			t.Fatal(err)
		}
		entries, _ := st.ListEntries(context.Background(), "proj")
		return entries
	}

	preserve := mk(DatePreserve)
	if !preserve[0].PublishedAt.Equal(sourceDate) {
		t.Errorf("preserve: got %v, want source date", preserve[0].PublishedAt)
	}
	if !preserve[1].PublishedAt.Equal(now) {
		t.Errorf("preserve without source date: got %v, want now", preserve[1].PublishedAt)
	}

	current := mk(DateCurrent)
	if !current[0].PublishedAt.Equal(now) {
		t.Errorf("current: got %v, want now", current[0].PublishedAt)
	}

	seq := mk(DateSequence)
	if !seq[2].PublishedAt.Equal(now) {
		t.Errorf("sequence: last entry = %v, want anchored at now", seq[2].PublishedAt)
	}
	if !seq[1].PublishedAt.Equal(now.Add(-time.Minute)) || !seq[0].PublishedAt.Equal(now.Add(-2*time.Minute)) {
		t.Errorf("sequence spacing wrong: %v, %v", seq[0].PublishedAt, seq[1].PublishedAt)
	}
	if !seq[0].PublishedAt.Before(seq[1].PublishedAt) || !seq[1].PublishedAt.Before(seq[2].PublishedAt) {
		t.Error("sequence dates not strictly increasing")
	}
}

func TestImportPublishFlag(t *testing.T) {
	st := store.NewMemoryStore()
	engine := NewEngine(st)

	opts := DefaultImportOptions()
	opts.PublishImportedEntries = true

	if _, err := engine.Import(context.Background(), "proj",
		[]ValidatedEntry{validEntry("v1", "c", "1.0.0")}, opts); err != nil {
		t.Fatal(err)
	}
	entries, _ := st.ListEntries(context.Background(), "proj")
	if !entries[0].Published {
		t.Error("entry not published")
	}
}

func TestImportExcludesInvalidEntries(t *testing.T) {
	st := store.NewMemoryStore()
	engine := NewEngine(st)

	batch := []ValidatedEntry{
		validEntry("good", "c", "1.0.0"),
		{Title: "bad", IsValid: false, ValidationErrors: []string{"missing content"}},
	}
	result, err := engine.Import(context.Background(), "proj", batch, DefaultImportOptions())
	if err != nil {
		t.Fatal(err)
	}
	if result.ImportedCount != 1 {
		t.Errorf("result = %+v", result)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("expected exclusion warning, got %v", result.Warnings)
	}
	if st.Len() != 1 {
		t.Errorf("store has %d entries, want 1", st.Len())
	}
}

// failingStore wraps a MemoryStore and fails selected operations.
type failingStore struct {
	*store.MemoryStore
	failCreateTitle string
	listErr         error
}

func (f *failingStore) ListEntries(ctx context.Context, projectID string) ([]store.Entry, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.MemoryStore.ListEntries(ctx, projectID)
}

func (f *failingStore) CreateEntry(ctx context.Context, projectID string, e store.Entry) (string, error) {
	if e.Title == f.failCreateTitle {
		return "", errors.New("disk full")
	}
	return f.MemoryStore.CreateEntry(ctx, projectID, e)
}

func TestImportPartialFailureContinues(t *testing.T) {
	st := &failingStore{MemoryStore: store.NewMemoryStore(), failCreateTitle: "doomed"}
	engine := NewEngine(st)

	batch := []ValidatedEntry{
		validEntry("ok one", "c", "1.0.0"),
		validEntry("doomed", "c", "1.1.0"),
		validEntry("ok two", "c", "1.2.0"),
	}
	result, err := engine.Import(context.Background(), "proj", batch, DefaultImportOptions())
	if err != nil {
		t.Fatal(err)
	}

	if result.Success {
		t.Error("Success should be false when any entry failed")
	}
	if result.ImportedCount != 2 || result.ErrorCount != 1 {
		t.Errorf("result = %+v, want imported=2 errors=1", result)
	}
}

func TestImportUnreachableStoreAborts(t *testing.T) {
	st := &failingStore{MemoryStore: store.NewMemoryStore(), listErr: errors.New("connection refused")}
	engine := NewEngine(st)

	_, err := engine.Import(context.Background(), "proj",
		[]ValidatedEntry{validEntry("v1", "c", "1.0.0")}, DefaultImportOptions())

	var abort *BatchAbortError
	if !errors.As(err, &abort) {
		t.Fatalf("err = %v, want BatchAbortError", err)
	}
}
