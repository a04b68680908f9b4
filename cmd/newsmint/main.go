package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/driftwire/newsmint/internal/collect"
	"github.com/driftwire/newsmint/internal/config"
	"github.com/driftwire/newsmint/internal/database"
	"github.com/driftwire/newsmint/internal/fetch"
	"github.com/driftwire/newsmint/internal/imagesel"
	"github.com/driftwire/newsmint/internal/llm"
	"github.com/driftwire/newsmint/internal/pipeline"
	"github.com/driftwire/newsmint/internal/rewrite"
	"github.com/driftwire/newsmint/internal/server"
	"github.com/driftwire/newsmint/internal/tokens"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "newsmint",
	Short:   "Feed-to-draft content pipeline",
	Long:    "Newsmint collects syndicated news items, rewrites them into original drafts, and attaches hero images from a tagged asset catalog.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(itemCmd)
	rootCmd.AddCommand(assetsCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("newsmint", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/newsmint/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure feeds, categories, and the generator provider.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and pipeline status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Items:")
		fmt.Printf("  Total: %d\n", stats.TotalItems)
		for _, status := range []string{
			database.StatusNew, database.StatusGenerating, database.StatusGenerated,
			database.StatusImaging, database.StatusDrafted, database.StatusSkipped,
			database.StatusFailed,
		} {
			if n := stats.ByStatus[status]; n > 0 {
				fmt.Printf("  %s: %d\n", status, n)
			}
		}
		fmt.Println("\nTopics:")
		fmt.Printf("  Fingerprints: %d\n", stats.Fingerprints)
		fmt.Println("\nCatalog:")
		fmt.Printf("  Image assets: %d\n", stats.Assets)
		fmt.Println("\nOutput:")
		fmt.Printf("  Drafts: %d\n", stats.Drafts)
		return nil
	},
}

// --- collect command ---

var (
	daysBack     int
	summaryFloor int
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect items from configured feeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		fmt.Println("Collecting items from feeds...")

		parser := collect.NewParser(cfg.Sources.Feeds)
		fetcher := fetch.New(15 * time.Second)
		collector := collect.New(db, parser, fetcher, summaryFloor)

		result, err := collector.Run(ctx, daysBack)
		if err != nil {
			return err
		}

		fmt.Println("\nCollection complete:")
		fmt.Printf("  Entries parsed: %d\n", result.Parsed)
		fmt.Printf("  New items: %d\n", result.Inserted)
		fmt.Printf("  Duplicates skipped: %d\n", result.Duplicates)
		fmt.Printf("  Pages fetched for thin summaries: %d\n", result.Enriched)
		return nil
	},
}

func init() {
	collectCmd.Flags().IntVar(&daysBack, "days-back", 2, "Lookback window (days)")
	collectCmd.Flags().IntVar(&summaryFloor, "summary-floor", 40, "Fetch the source page when the summary has fewer words")
}

// --- run command ---

var strictRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process one batch of pending items into drafts",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		runner, err := newRunner(db)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		result, err := runner.Run(ctx)
		if err != nil {
			return err
		}

		fmt.Println("Batch complete:")
		fmt.Printf("  Processed: %d\n", result.Processed)
		fmt.Printf("  Drafted: %d\n", result.Drafted)
		fmt.Printf("  Skipped (duplicate topics): %d\n", result.Skipped)
		fmt.Printf("  Failed: %d\n", result.Failed)
		if result.Drafted > 0 {
			fmt.Println("\nRun 'newsmint serve' to browse the drafts.")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&strictRun, "strict", false, "Fail items whose rewrite stayed above the similarity threshold")
}

// --- item command ---

var itemCmd = &cobra.Command{
	Use:   "item [id]",
	Short: "Run all remaining stages for a single item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid item ID: %s", args[0])
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		runner, err := newRunner(db)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		status, err := runner.RunItem(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("Item %d: %s\n", id, status)
		return nil
	},
}

// --- assets command ---

var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "Manage the image asset catalog",
}

// seedAsset is one catalog entry in a seed file.
type seedAsset struct {
	PublicID string   `yaml:"public_id"`
	URL      string   `yaml:"url"`
	Tags     []string `yaml:"tags"`
	Category string   `yaml:"category"`
	Priority int      `yaml:"priority"`
}

var assetsSeedCmd = &cobra.Command{
	Use:   "seed [file]",
	Short: "Load catalog entries from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading seed file: %w", err)
		}

		var entries []seedAsset
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("parsing seed file: %w", err)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var loaded int
		for _, e := range entries {
			if e.PublicID == "" || e.URL == "" {
				fmt.Printf("Skipping entry without public_id or url: %+v\n", e)
				continue
			}
			if _, err := db.InsertAsset(e.PublicID, e.URL, canonTags(e.Tags), e.Category, e.Priority); err != nil {
				return fmt.Errorf("storing asset %s: %w", e.PublicID, err)
			}
			loaded++
		}

		fmt.Printf("Loaded %d assets into the catalog.\n", loaded)
		return nil
	},
}

var assetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		assets, err := db.ListAssets(100, 0)
		if err != nil {
			return err
		}
		if len(assets) == 0 {
			fmt.Println("Catalog is empty. Seed it with: newsmint assets seed <file>")
			return nil
		}

		for _, a := range assets {
			fmt.Printf("  [%d] %s (%s, priority %d) tags: %s\n",
				a.ID, a.PublicID, a.Category, a.Priority, strings.Join(a.Tags, ", "))
		}
		return nil
	},
}

func init() {
	assetsCmd.AddCommand(assetsSeedCmd)
	assetsCmd.AddCommand(assetsListCmd)
}

// canonTags normalizes seed tags so catalog queries and article tokens
// agree on spelling.
func canonTags(raw []string) []string {
	var out []string
	seen := make(map[string]bool, len(raw))
	for _, t := range raw {
		tok := tokens.Canon(t)
		if tok == "" || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ops HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

// newRunner wires the generator, originality guard, and image selector into
// a pipeline runner.
func newRunner(db *database.DB) (*pipeline.Runner, error) {
	provider := llm.CreateProvider(llm.Options{
		Provider:    cfg.Generation.Provider,
		Model:       cfg.Generation.Model,
		OllamaURL:   cfg.Generation.OllamaURL,
		OpenAIModel: cfg.Generation.OpenAIModel,
		GeminiModel: cfg.Generation.GeminiModel,
		APIKeyEnv:   cfg.Generation.APIKeyEnv,
	})
	if provider == nil {
		return nil, fmt.Errorf("no generator provider available")
	}

	guard := rewrite.NewGuard(provider, rewrite.Config{
		SimilarityThreshold: cfg.Rewrite.SimilarityThreshold,
		MaxAttempts:         cfg.Rewrite.MaxAttempts,
		AvoidPhrases:        cfg.Rewrite.AvoidPhrases,
		MinWords:            cfg.Rewrite.MinWords,
		MaxWords:            cfg.Rewrite.MaxWords,
		ExpandRetries:       cfg.Rewrite.ExpandRetries,
		MaxTokens:           cfg.Generation.MaxTokens,
	})

	selector := imagesel.New(db, imagesel.Config{
		MinStrongMatches: cfg.Images.MinStrongMatches,
		CandidateLimit:   cfg.Images.CandidateLimit,
		FallbackPublicID: cfg.Images.FallbackPublicID,
		FallbackURL:      cfg.Images.FallbackURL,
	})

	return pipeline.New(db, guard, selector, pipeline.Config{
		BatchSize: cfg.Pipeline.BatchSize,
		Strict:    cfg.Rewrite.Strict || strictRun,
	}), nil
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(filepath.Join(dataDir, "newsmint.db"))
}
