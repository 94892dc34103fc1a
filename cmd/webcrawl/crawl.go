package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/webcrawl/internal/config"
	"github.com/nao1215/webcrawl/internal/database"
	"github.com/nao1215/webcrawl/internal/engine"
	"github.com/nao1215/webcrawl/internal/fetcher"
	"github.com/nao1215/webcrawl/internal/filter"
	"github.com/nao1215/webcrawl/internal/log"
	"github.com/nao1215/webcrawl/internal/model"
	"github.com/nao1215/webcrawl/internal/report"
	"github.com/nao1215/webcrawl/internal/robots"
	"github.com/nao1215/webcrawl/internal/throttle"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a website starting from the given URL",
		Long: `Crawl fetches pages breadth-first from the start URL.

For each page it extracts the title, meta description and keywords,
headings, links, and images. Discovered links on the same domain are
followed up to the configured depth; external domains require
--allow-external.

The crawler is polite by default: it honors robots.txt (including
Crawl-delay), enforces a minimum delay between requests to the same
domain, and backs off exponentially when a server answers 429.

Examples:
  # Crawl a site two levels deep
  webcrawl crawl -d 2 https://example.com

  # Follow external links, at most one domain hop away
  webcrawl crawl --allow-external --max-external-domains 1 https://example.com

  # Skip admin pages, write JSON to a file
  webcrawl crawl --exclude '*/admin/*' -F json -o result.json https://example.com

  # Save the session for later comparison
  webcrawl crawl --save https://example.com

Configuration file (.webcrawl) example:
  sites:
    example.com:
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"
      delay: 2s`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum link depth from the start URL")
	cmd.Flags().Duration("delay", config.DefaultDelay,
		"Minimum delay between requests to the same domain")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to visit")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of pages fetched in parallel (across domains)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each page request")

	// Domain policy flags
	cmd.Flags().Bool("allow-external", false,
		"Follow links to domains other than the start URL's")
	cmd.Flags().Int("max-external-domains", 0,
		"Maximum external domain hops per crawl path (required with --allow-external)")

	// Link filtering flags
	cmd.Flags().StringSlice("include", nil,
		"Wildcard patterns a URL must match to be crawled (repeatable)")
	cmd.Flags().StringSlice("exclude", nil,
		"Wildcard patterns that exclude URLs from the crawl (repeatable)")

	// Politeness flags
	cmd.Flags().Bool("no-robots", false,
		"Ignore robots.txt rules (use responsibly)")
	cmd.Flags().String("bot-name", config.DefaultBotName,
		"Agent name matched against robots.txt groups")
	cmd.Flags().StringP("user-agent", "A", config.DefaultUserAgent,
		"User-Agent header for page requests")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .webcrawl in current or home directory)")

	// Output flags
	cmd.Flags().StringP("format", "F", config.FormatPrint,
		"Output format: print, json, csv, or markdown")
	cmd.Flags().StringP("output", "o", "",
		"Write the report to the specified file instead of stdout")

	// Storage flags
	cmd.Flags().BoolP("save", "s", false,
		"Save the crawl session to the local database")
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging
	logger := setupLogger(getVerboseFlag(cmd))
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runCrawl(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.StartURL = args[0]

	var err error

	cfg.MaxDepth, err = cmd.Flags().GetInt("depth")
	if err != nil {
		return nil, err
	}

	cfg.Delay, err = cmd.Flags().GetDuration("delay")
	if err != nil {
		return nil, err
	}

	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, err
	}

	cfg.Concurrency, err = cmd.Flags().GetInt("concurrency")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.AllowExternal, err = cmd.Flags().GetBool("allow-external")
	if err != nil {
		return nil, err
	}

	cfg.MaxExternalDomains, err = cmd.Flags().GetInt("max-external-domains")
	if err != nil {
		return nil, err
	}

	cfg.IncludePatterns, err = cmd.Flags().GetStringSlice("include")
	if err != nil {
		return nil, err
	}

	cfg.ExcludePatterns, err = cmd.Flags().GetStringSlice("exclude")
	if err != nil {
		return nil, err
	}

	noRobots, err := cmd.Flags().GetBool("no-robots")
	if err != nil {
		return nil, err
	}
	cfg.RespectRobots = !noRobots

	cfg.BotName, err = cmd.Flags().GetString("bot-name")
	if err != nil {
		return nil, err
	}

	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}

	cfg.Format, err = cmd.Flags().GetString("format")
	if err != nil {
		return nil, err
	}

	cfg.OutputFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	cfg.SaveToDB, err = cmd.Flags().GetBool("save")
	if err != nil {
		return nil, err
	}

	cfg.DBDir, err = cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load site-specific configurations from config file.
	// An explicitly specified path must exist; otherwise a missing file
	// just means no per-site settings.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	return cfg, nil
}

// setupLogger creates a structured logger based on verbosity setting.
// The secure handler masks credential-looking values in site configs.
func setupLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return log.NewSecureLogger(os.Stderr, level)
}

// runCrawl wires the crawl components together and executes the crawl.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"startURL", cfg.StartURL,
		"maxDepth", cfg.MaxDepth,
		"maxPages", cfg.MaxPages,
		"concurrency", cfg.Concurrency,
		"respectRobots", cfg.RespectRobots,
	)

	client := &http.Client{}

	// Robots policy doubles as the Crawl-delay source for the throttle.
	var policy *robots.Policy
	var delaySource throttle.DelaySource
	if cfg.RespectRobots {
		policy = robots.NewPolicy(client, cfg.BotName,
			robots.WithRequestUserAgent(cfg.UserAgent),
			robots.WithLogger(logger),
		)
		delaySource = policy
	}

	th := throttle.New(cfg.Delay, delaySource)
	depthOverrides := make(map[string]int)
	for domain := range cfg.SiteConfigs.Sites {
		site := cfg.SiteConfigs.GetSiteConfig(domain)
		if d := site.Delay.Duration; d > 0 {
			th.OverrideDelay(domain, d)
		}
		if site.Depth > 0 {
			depthOverrides[domain] = site.Depth
		}
	}

	fetchOpts := []fetcher.Option{
		fetcher.WithUserAgent(cfg.UserAgent),
		fetcher.WithTimeout(cfg.Timeout),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
		fetcher.WithSiteConfigs(cfg.SiteConfigs),
		fetcher.WithLogger(logger),
	}
	var pages *fetcher.Fetcher
	if policy != nil {
		pages = fetcher.New(client, policy, th, fetchOpts...)
	} else {
		pages = fetcher.New(client, nil, th, fetchOpts...)
	}

	links, err := filter.New(cfg.IncludePatterns, cfg.ExcludePatterns, cfg.AllowExternal)
	if err != nil {
		return fmt.Errorf("link filter error: %w", err)
	}

	engineOpts := []engine.Option{engine.WithLogger(logger)}
	if len(depthOverrides) > 0 {
		engineOpts = append(engineOpts, engine.WithDepthOverrides(depthOverrides))
	}

	// Open database and session when saving is enabled
	var db *database.CrawlDB
	var sessionID int64
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		sessionID, err = db.BeginSession(ctx, cfg.StartURL)
		if err != nil {
			return fmt.Errorf("failed to begin session: %w", err)
		}
		engineOpts = append(engineOpts, engine.WithSink(db.NewSink(sessionID)))
		logger.Info("saving session", "dir", cfg.DBDir, "session", sessionID)
	}

	result, err := engine.New(cfg, pages, links, engineOpts...).Run(ctx, cfg.StartURL)
	if err != nil {
		if result == nil {
			return err
		}
		// Interrupted crawl: report what was fetched before the stop.
		logger.Warn("crawl interrupted, writing partial results", "error", err)
	}

	if db != nil {
		// Not the crawl ctx: session bookkeeping must survive cancellation
		if err := db.FinishSession(context.Background(), sessionID, result.Summary); err != nil {
			logger.Error("failed to finish session", "error", err)
		}
	}
	if policy != nil && policy.FetchFailures() > 0 {
		logger.Warn("some robots.txt fetches failed; affected domains were crawled fail-open",
			"failures", policy.FetchFailures())
	}

	return outputReport(cfg, result)
}

// outputReport renders the crawl result in the configured format.
func outputReport(cfg *config.Config, result *model.CrawlResult) error {
	var out io.Writer = os.Stdout
	if cfg.OutputFile != "" {
		if dir := filepath.Dir(cfg.OutputFile); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err := os.Create(cfg.OutputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	var w report.Writer
	switch cfg.Format {
	case config.FormatJSON:
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	case config.FormatCSV:
		w = report.NewCSVWriter(out)
	case config.FormatMarkdown:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose))
	}

	_, err := w.Write(result)
	return err
}
