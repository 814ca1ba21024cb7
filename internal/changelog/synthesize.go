package changelog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/everstacklabs/shiplog/internal/conventional"
	"github.com/everstacklabs/shiplog/internal/enrich"
	"github.com/everstacklabs/shiplog/internal/vcs"
)

// Synthesizer converts commit history into a GeneratedChangelog.
type Synthesizer struct {
	enricher enrich.Enricher
	now      func() time.Time
	logger   *slog.Logger
}

// SynthesizerOption configures a Synthesizer.
type SynthesizerOption func(*Synthesizer)

// WithLogger overrides the synthesizer's logger.
func WithLogger(l *slog.Logger) SynthesizerOption {
	return func(s *Synthesizer) { s.logger = l }
}

// NewSynthesizer creates a Synthesizer. The enricher may be nil; enrichment
// is then skipped even when Options.UseAI is set.
func NewSynthesizer(enricher enrich.Enricher, opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{enricher: enricher, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize runs filter → parse → categorize → optional enrichment →
// render. Commit order is preserved within each category. An empty result
// set still renders the fallback document.
func (s *Synthesizer) Synthesize(ctx context.Context, commits []vcs.NormalizedCommit, opts Options) (*GeneratedChangelog, error) {
	entries := buildEntries(commits, opts)

	meta := Metadata{
		GeneratedAt: s.now(),
		CommitCount: len(commits),
		EntryCount:  len(entries),
	}

	if opts.UseAI && s.enricher != nil && len(entries) > 0 {
		s.enrichEntries(ctx, entries, opts, &meta)
	}

	return &GeneratedChangelog{
		Markdown: Render(entries, meta.GeneratedAt, opts.IncludeCommitLinks),
		Entries:  entries,
		Metadata: meta,
	}, nil
}

// buildEntries is the pure part of the pipeline: per-commit parse, filter,
// categorize. Safe to fan out, but commit counts are small enough that a
// straight loop keeps source order for free.
func buildEntries(commits []vcs.NormalizedCommit, opts Options) []Entry {
	var entries []Entry
	for _, c := range commits {
		pc := conventional.Parse(c.Message)
		if !ShouldInclude(pc, opts.Filter) {
			continue
		}

		e := Entry{
			Category:    Categorize(pc),
			Description: pc.Description,
			CommitRef:   c.ShortID(),
		}
		for _, f := range c.FilesChanged {
			e.RelatedFiles = append(e.RelatedFiles, f.Path)
		}
		if opts.IncludeCommitLinks {
			e.CommitURL = c.URL
			if e.CommitURL == "" {
				e.CommitURL = CommitLink(opts.RepositoryURL, opts.Provider, c.ID)
			}
		}
		entries = append(entries, e)
	}
	return entries
}

// enrichEntries rewrites entry wording through the LLM collaborator with a
// bounded worker pool and a per-entry timeout. Any failure leaves the
// original description in place; enrichment never fails the run.
func (s *Synthesizer) enrichEntries(ctx context.Context, entries []Entry, opts Options, meta *Metadata) {
	concurrency := opts.EnrichConcurrency
	if concurrency <= 0 {
		concurrency = defaultEnrichConcurrency
	}
	timeout := opts.EnrichTimeout
	if timeout <= 0 {
		timeout = defaultEnrichTimeout
	}

	var mu sync.Mutex
	eg := &errgroup.Group{}
	eg.SetLimit(concurrency)

	for i := range entries {
		i := i
		eg.Go(func() error {
			entryCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			result, err := s.enricher.Enrich(entryCtx, enrich.Request{
				Description: entries[i].Description,
				Category:    string(entries[i].Category),
				Files:       entries[i].RelatedFiles,
				Temperature: opts.Temperature,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("enrichment failed, keeping original description",
					"commit", entries[i].CommitRef, "error", err)
				meta.EnrichmentErrors = append(meta.EnrichmentErrors,
					fmt.Sprintf("%s: %v", entries[i].CommitRef, err))
				return nil
			}
			entries[i].Description = result.Text
			entries[i].Impact = result.Impact
			entries[i].TechnicalDetail = result.TechnicalDetail
			meta.EnrichedCount++
			return nil
		})
	}

	// Workers only ever return nil; failures are recorded per entry.
	_ = eg.Wait()
}
