package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/everstacklabs/shiplog/internal/cache"
	"github.com/everstacklabs/shiplog/internal/changelog"
	"github.com/everstacklabs/shiplog/internal/config"
	"github.com/everstacklabs/shiplog/internal/enrich"
	"github.com/everstacklabs/shiplog/internal/httpclient"
	"github.com/everstacklabs/shiplog/internal/importer"
	"github.com/everstacklabs/shiplog/internal/jobs"
	"github.com/everstacklabs/shiplog/internal/store"
	"github.com/everstacklabs/shiplog/internal/vcs"

	githubProvider "github.com/everstacklabs/shiplog/internal/vcs/providers/github"
	gitlabProvider "github.com/everstacklabs/shiplog/internal/vcs/providers/gitlab"
	_ "github.com/everstacklabs/shiplog/internal/vcs/providers/local" // register local provider
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "shiplog",
		Short: "Changelog synthesis and import reconciliation",
		Long:  "Pulls commit history from a VCS provider, synthesizes a categorized changelog, and reconciles imported changelog documents into a project's entry set.",
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	rootCmd.AddCommand(
		generateCmd(),
		importCmd(),
		previewCmd(),
		validateCmd(),
		watchCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Fetch commits and render a changelog document",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			setupLogging(cfg)

			if err := configureProviders(cmd.Context(), cfg); err != nil {
				return err
			}

			provider, err := vcs.Get(cfg.Provider)
			if err != nil {
				return err
			}

			fromRef, _ := cmd.Flags().GetString("from")
			toRef, _ := cmd.Flags().GetString("to")
			sinceStr, _ := cmd.Flags().GetString("since")

			var commits []vcs.NormalizedCommit
			if fromRef != "" && toRef != "" {
				commits, err = provider.FetchCommitsBetween(cmd.Context(), repoRef(cfg), fromRef, toRef)
			} else {
				opts := vcs.FetchOptions{}
				if sinceStr != "" {
					d, perr := time.ParseDuration(sinceStr)
					if perr != nil {
						return fmt.Errorf("parsing --since: %w", perr)
					}
					opts.Since = time.Now().Add(-d)
				}
				commits, err = provider.FetchCommits(cmd.Context(), repoRef(cfg), opts)
			}
			if err != nil {
				return err
			}

			gc, err := synthesize(cmd.Context(), cfg, provider, commits)
			if err != nil {
				return err
			}

			fmt.Print(gc.Markdown)
			slog.Info("changelog generated",
				"commits", gc.Metadata.CommitCount,
				"entries", gc.Metadata.EntryCount,
				"enriched", gc.Metadata.EnrichedCount)
			return nil
		},
	}

	cmd.Flags().String("since", "", "Fetch window as a duration back from now (e.g. 720h)")
	cmd.Flags().String("from", "", "Older ref for a ref-range fetch")
	cmd.Flags().String("to", "", "Newer ref for a ref-range fetch")

	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <changelog.md>",
		Short: "Reconcile an uploaded changelog document into the project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			setupLogging(cfg)

			wizard := importer.NewWizard()

			entries, preview, err := parseDocument(args[0])
			if err != nil {
				return err
			}
			if err := wizard.Transition(importer.StatePreviewed); err != nil {
				return err
			}
			printPreview(preview)

			opts, err := importOptionsFromFlags(cmd)
			if err != nil {
				return err
			}
			if err := wizard.Transition(importer.StateConfigured); err != nil {
				return err
			}

			if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
				slog.Info("dry run, nothing written")
				return nil
			}

			st, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := wizard.Transition(importer.StateImporting); err != nil {
				return err
			}

			engine := importer.NewEngine(st)
			result, err := engine.Import(cmd.Context(), cfg.Project, entries, opts)
			if err != nil {
				_ = wizard.Transition(importer.StateFailed)
				return err
			}
			_ = wizard.Transition(importer.StateCompleted)

			for _, w := range result.Warnings {
				slog.Warn(w)
			}
			slog.Info("import complete",
				"imported", result.ImportedCount,
				"skipped", result.SkippedCount,
				"errors", result.ErrorCount)
			if !result.Success {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().String("strategy", string(importer.StrategyMerge), "merge, append, or replace")
	cmd.Flags().String("on-conflict", string(importer.ConflictSkip), "skip or overwrite colliding versions")
	cmd.Flags().String("dates", string(importer.DatePreserve), "preserve, current, or sequence")
	cmd.Flags().Bool("preserve-existing", false, "Keep existing entries even under replace")
	cmd.Flags().Bool("auto-versions", false, "Generate patch versions for entries without one")
	cmd.Flags().Bool("publish", false, "Publish imported entries immediately")
	cmd.Flags().StringSlice("tags", nil, "Tags added to every imported entry")
	cmd.Flags().Bool("dry-run", false, "Preview only, write nothing")

	return cmd
}

func previewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview <changelog.md>",
		Short: "Show what an import would contain (no writes)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, preview, err := parseDocument(args[0])
			if err != nil {
				return err
			}
			printPreview(preview)
			return nil
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <changelog.md>",
		Short: "Validate a changelog document (CI check)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, preview, err := parseDocument(args[0])
			if err != nil {
				return err
			}

			for i, e := range entries {
				status := "ok"
				if !e.IsValid {
					status = "invalid: " + strings.Join(e.ValidationErrors, "; ")
				}
				fmt.Printf("%3d  %-40s %s\n", i+1, e.Title, status)
			}
			fmt.Printf("\n%d entries, %d valid, %d invalid\n", preview.Total, preview.Valid, preview.Invalid)

			if preview.Invalid > 0 {
				os.Exit(1)
			}
			return nil
		},
	}
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Regenerate the changelog on an interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			setupLogging(cfg)

			if err := configureProviders(cmd.Context(), cfg); err != nil {
				return err
			}

			interval, err := time.ParseDuration(cfg.Watch.Interval)
			if err != nil {
				return fmt.Errorf("parsing watch interval: %w", err)
			}

			outPath, _ := cmd.Flags().GetString("out")

			exec := jobs.ExecutorFunc(func(ctx context.Context, entityID string) error {
				provider, err := vcs.Get(cfg.Provider)
				if err != nil {
					return err
				}
				commits, err := provider.FetchCommits(ctx, repoRef(cfg), vcs.FetchOptions{
					Since: time.Now().Add(-interval),
				})
				if err != nil {
					return err
				}
				gc, err := synthesize(ctx, cfg, provider, commits)
				if err != nil {
					return err
				}
				if outPath == "" {
					fmt.Print(gc.Markdown)
					return nil
				}
				return os.WriteFile(outPath, []byte(gc.Markdown), 0o644)
			})

			runner := jobs.NewRunner(exec, cfg.Project, interval)
			return runner.Run(cmd.Context())
		},
	}

	cmd.Flags().String("out", "", "Write the document to a file instead of stdout")

	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func repoRef(cfg *config.Config) vcs.RepoRef {
	return vcs.RepoRef{
		Owner: cfg.Repo.Owner,
		Name:  cfg.Repo.Name,
		Path:  cfg.Repo.Path,
		URL:   cfg.Repo.URL,
	}
}

func configureProviders(ctx context.Context, cfg *config.Config) error {
	// GitHub uses its own SDK client; GitLab shares the cached HTTP client.
	if p, err := vcs.Get("github"); err == nil {
		if ghp, ok := p.(*githubProvider.GitHub); ok {
			if err := ghp.Configure(ctx, cfg.GitHub.Token, cfg.GitHub.BaseURL); err != nil {
				return err
			}
		}
	}

	var fileCache *cache.FileCache
	if !cfg.NoCache {
		ttl, err := time.ParseDuration(cfg.CacheTTL)
		if err != nil {
			ttl = time.Hour
		}
		fc, err := cache.New(cfg.CacheDir, ttl)
		if err != nil {
			slog.Warn("failed to create cache, continuing without", "error", err)
		} else {
			fileCache = fc
		}
	}

	opts := []httpclient.Option{
		httpclient.WithRateLimit(10),
	}
	if fileCache != nil {
		opts = append(opts, httpclient.WithCache(fileCache))
	}
	if cfg.NoCache {
		opts = append(opts, httpclient.WithNoCache())
	}
	client := httpclient.New(opts...)

	if p, err := vcs.Get("gitlab"); err == nil {
		if glp, ok := p.(*gitlabProvider.GitLab); ok {
			glp.Configure(cfg.GitLab.Token, cfg.GitLab.BaseURL, client)
		}
	}
	return nil
}

func synthesize(ctx context.Context, cfg *config.Config, provider vcs.Provider, commits []vcs.NormalizedCommit) (*changelog.GeneratedChangelog, error) {
	var enricher enrich.Enricher
	if cfg.AI.Enabled {
		llm, err := buildLLMClient(cfg)
		if err != nil {
			return nil, err
		}
		enricher = enrich.NewClient(llm)
	}

	timeout, err := time.ParseDuration(cfg.AI.Timeout)
	if err != nil {
		timeout = 0
	}

	s := changelog.NewSynthesizer(enricher)
	return s.Synthesize(ctx, commits, changelog.Options{
		Filter: changelog.FilterSettings{
			IncludeFeatures: cfg.Filter.IncludeFeatures,
			IncludeFixes:    cfg.Filter.IncludeFixes,
			IncludeChores:   cfg.Filter.IncludeChores,
			IncludeBreaking: cfg.Filter.IncludeBreakingChanges,
			CustomTypes:     cfg.Filter.CustomTypes,
			IncludeUnknown:  cfg.Filter.IncludeUnknown,
		},
		UseAI:              cfg.AI.Enabled,
		IncludeCommitLinks: cfg.Output.IncludeCommitLinks,
		RepositoryURL:      cfg.Repo.URL,
		Provider:           provider.Name(),
		EnrichConcurrency:  cfg.AI.Concurrency,
		EnrichTimeout:      timeout,
		Temperature:        cfg.AI.Temperature,
	})
}

func buildLLMClient(cfg *config.Config) (enrich.LLMClient, error) {
	switch cfg.AI.Provider {
	case "anthropic":
		return enrich.NewAnthropicClient(cfg.AI.Anthropic.APIKey, cfg.AI.Anthropic.BaseURL, cfg.AI.Model, cfg.AI.MaxTokens), nil
	case "openai":
		return enrich.NewOpenAIClient(cfg.AI.OpenAI.APIKey, cfg.AI.OpenAI.BaseURL, cfg.AI.Model, cfg.AI.MaxTokens), nil
	default:
		return nil, fmt.Errorf("unknown ai provider: %s", cfg.AI.Provider)
	}
}

func openStore(cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case "sqlite":
		s, err := store.OpenSQLite(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "file":
		return store.NewFileStore(cfg.Store.Path), func() {}, nil
	case "memory":
		return store.NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

func parseDocument(path string) ([]importer.ValidatedEntry, importer.ImportPreview, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, importer.ImportPreview{}, fmt.Errorf("reading document: %w", err)
	}
	entries, preview := importer.ParseMarkdown(string(data))
	return entries, preview, nil
}

func printPreview(p importer.ImportPreview) {
	fmt.Printf("Entries: %d total, %d valid, %d invalid\n", p.Total, p.Valid, p.Invalid)
	if p.MissingTitle > 0 {
		fmt.Printf("Missing titles: %d\n", p.MissingTitle)
	}
	if p.MissingContent > 0 {
		fmt.Printf("Missing content: %d\n", p.MissingContent)
	}
	if len(p.DuplicateVersions) > 0 {
		fmt.Printf("Duplicate versions: %s\n", strings.Join(p.DuplicateVersions, ", "))
	}
	for _, w := range p.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	for _, e := range p.Errors {
		fmt.Printf("error: %s\n", e)
	}
}

func importOptionsFromFlags(cmd *cobra.Command) (importer.ImportOptions, error) {
	strategy, _ := cmd.Flags().GetString("strategy")
	onConflict, _ := cmd.Flags().GetString("on-conflict")
	dates, _ := cmd.Flags().GetString("dates")
	preserve, _ := cmd.Flags().GetBool("preserve-existing")
	autoVersions, _ := cmd.Flags().GetBool("auto-versions")
	publish, _ := cmd.Flags().GetBool("publish")
	tags, _ := cmd.Flags().GetStringSlice("tags")

	opts := importer.ImportOptions{
		Strategy:                importer.Strategy(strategy),
		PreserveExistingEntries: preserve,
		ConflictResolution:      importer.ConflictResolution(onConflict),
		DateHandling:            importer.DateHandling(dates),
		AutoGenerateVersions:    autoVersions,
		PublishImportedEntries:  publish,
		DefaultTags:             tags,
	}

	switch opts.Strategy {
	case importer.StrategyMerge, importer.StrategyAppend, importer.StrategyReplace:
	default:
		return opts, fmt.Errorf("unknown strategy: %s", strategy)
	}
	switch opts.ConflictResolution {
	case importer.ConflictSkip, importer.ConflictOverwrite:
	case importer.ConflictPrompt:
		return opts, fmt.Errorf("prompt resolution needs an interactive resolver; use skip or overwrite")
	default:
		return opts, fmt.Errorf("unknown conflict resolution: %s", onConflict)
	}
	switch opts.DateHandling {
	case importer.DatePreserve, importer.DateCurrent, importer.DateSequence:
	default:
		return opts, fmt.Errorf("unknown date handling: %s", dates)
	}

	return opts, nil
}
