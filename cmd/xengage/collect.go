package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chromedp/cdproto/network"
	"github.com/spf13/cobra"

	"xengage/internal/runner"
	"xengage/pkg/auth"
	"xengage/pkg/collector"
	"xengage/pkg/config"
	"xengage/pkg/export"
	"xengage/pkg/fallback"
	"xengage/pkg/logger"
	"xengage/pkg/models"
	"xengage/pkg/ratelimit"
	"xengage/pkg/report"
	"xengage/pkg/storage"
	"xengage/pkg/twitter"
	"xengage/pkg/ui"
)

var (
	// Collect command flags
	outputDir     string
	accountName   string
	bearerToken   string
	skipLikes     bool
	skipReposts   bool
	forceFallback bool
	noFallback    bool
	concurrent    int
	headed        bool
	cookiesFile   string
)

// collectCmd represents the collect command
var collectCmd = &cobra.Command{
	Use:   "collect <post-id-or-url> [<post-id-or-url>...]",
	Short: "Collect likes, reposts and replies for published posts",
	Long: `Collect the engagement around one or more published posts and export it
as an XLSX workbook per post.

Each run fetches the accounts that liked and reposted the post plus the
replies the search API can still see. Posts older than seven days fall
outside the search horizon; for those the collector drives a headless
browser over the public conversation page and merges what it finds with
the API results.

This command requires a valid API bearer token, configured through:
  - Stored credentials (use 'xengage auth login' to store)
  - The TWITTER_BEARER_TOKEN environment variable (or a .env file)
  - A configuration file`,
	Example: `  # Collect engagement with default settings
  xengage collect 1957110173920123456

  # A full post URL works too
  xengage collect https://x.com/someone/status/1957110173920123456

  # Several posts share one request budget
  xengage collect 1957110173920123456 1957110173920123457

  # Replies only, into a specific directory
  xengage collect 1957110173920123456 --skip-likes --skip-reposts --output ./exports

  # Force the browser fallback even for a fresh post
  xengage collect 1957110173920123456 --force-fallback

  # API results only, never start a browser
  xengage collect 1957110173920123456 --no-fallback`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runCollect(cmd, args)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(collectCmd)

	// Local flags for collect command
	collectCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for workbooks (default: ./exports)")
	collectCmd.Flags().StringVarP(&accountName, "account", "a", "", "use specific stored account")
	collectCmd.Flags().StringVar(&bearerToken, "bearer-token", "", "API bearer token (overrides stored credentials)")
	collectCmd.Flags().BoolVar(&skipLikes, "skip-likes", false, "do not collect liking users")
	collectCmd.Flags().BoolVar(&skipReposts, "skip-reposts", false, "do not collect reposters")
	collectCmd.Flags().BoolVar(&forceFallback, "force-fallback", false, "run the browser fallback regardless of post age")
	collectCmd.Flags().BoolVar(&noFallback, "no-fallback", false, "never run the browser fallback")
	collectCmd.Flags().IntVar(&concurrent, "concurrent", 2, "concurrent collections when several posts are given")
	collectCmd.Flags().BoolVar(&headed, "headed", false, "run the fallback browser with a visible window")
	collectCmd.Flags().StringVar(&cookiesFile, "cookies", "", "session cookie file for the fallback browser")

	// Also add these flags to root command so the default-command form works
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for workbooks (default: ./exports)")
	rootCmd.Flags().StringVarP(&accountName, "account", "a", "", "use specific stored account")
	rootCmd.Flags().StringVar(&bearerToken, "bearer-token", "", "API bearer token (overrides stored credentials)")
	rootCmd.Flags().BoolVar(&skipLikes, "skip-likes", false, "do not collect liking users")
	rootCmd.Flags().BoolVar(&skipReposts, "skip-reposts", false, "do not collect reposters")
	rootCmd.Flags().BoolVar(&forceFallback, "force-fallback", false, "run the browser fallback regardless of post age")
	rootCmd.Flags().BoolVar(&noFallback, "no-fallback", false, "never run the browser fallback")
	rootCmd.Flags().IntVar(&concurrent, "concurrent", 2, "concurrent collections when several posts are given")
	rootCmd.Flags().BoolVar(&headed, "headed", false, "run the fallback browser with a visible window")
	rootCmd.Flags().StringVar(&cookiesFile, "cookies", "", "session cookie file for the fallback browser")
}

func runCollect(cmd *cobra.Command, args []string) {
	// Resolve post ids up front so a typo fails before any API spend
	jobs := make([]runner.Job, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		postID, err := twitter.ExtractPostID(arg)
		if err != nil {
			ui.PrintError("Not a post id or post URL", arg)
			os.Exit(1)
		}
		postURL := twitter.PostURL(postID)
		if strings.Contains(arg, "/status/") {
			postURL = arg
		}
		jobs = append(jobs, runner.Job{PostID: postID, PostURL: postURL})
	}

	for _, job := range jobs {
		ui.PrintInfo("Target Post", job.PostID)
	}

	// Build flags map from command line
	flags := make(map[string]interface{})
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if bearerToken != "" {
		flags["bearer-token"] = bearerToken
	}
	if skipLikes {
		flags["skip-likes"] = true
	}
	if skipReposts {
		flags["skip-reposts"] = true
	}
	if forceFallback {
		flags["force-fallback"] = true
	}
	if noFallback {
		flags["no-fallback"] = true
	}
	if concurrent != 2 {
		flags["concurrent"] = concurrent
	}
	if headed {
		flags["headless"] = false
	}
	if !notifications {
		flags["notifications-enabled"] = false
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	// Load configuration
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}
	if cookiesFile != "" {
		cfg.Fallback.CookiesFile = cookiesFile
	}

	// Initialize logger
	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logging", err.Error())
		os.Exit(1)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("engagement collector starting")

	resolveCredentials(cfg)

	// One window for the whole invocation: every post shares the same
	// request budget because the API accounts per credential, not per post.
	window := ratelimit.NewWindow(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration, cfg.RateLimit.RequestSpacing)

	client := twitter.NewClient(twitter.Options{
		BaseURL:       cfg.API.BaseURL,
		BearerToken:   cfg.API.BearerToken,
		Timeout:       cfg.API.Timeout,
		UserAgent:     cfg.API.UserAgent,
		PageSize:      cfg.Collection.PageSize,
		RetryAttempts: cfg.Retry.MaxAttempts,
	}, log)

	store, err := storage.NewManager(cfg.Export.BaseDirectory)
	if err != nil {
		ui.PrintError("Failed to prepare output directory", err.Error())
		os.Exit(1)
	}

	pipeline := &collectPipeline{
		cfg:      cfg,
		client:   client,
		window:   window,
		store:    store,
		exporter: export.NewWriter(log),
		reports:  report.NewWriter(log),
		cookies:  loadSessionCookies(cfg, log),
		log:      log,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.PrintHighlight("[INITIATING COLLECTION SEQUENCE]")

	workers := cfg.Runner.ConcurrentRuns
	if workers > len(jobs) {
		workers = len(jobs)
	}

	pool := runner.NewPool(ctx, workers, pipeline, log)
	pool.Start()

	go func() {
		// Stop even when submission aborts, otherwise Results never closes.
		defer pool.Stop()
		for _, job := range jobs {
			if err := pool.Submit(job); err != nil {
				log.WithError(err).Error("job submission failed")
				return
			}
		}
	}()

	// A job counts as failed only when it produced nothing; a run that erred
	// but still exported partial data is a success with warnings.
	notifier := ui.NewNotifier()
	completed := 0
	failed := 0
	for jr := range pool.Results() {
		completed++
		printOutcome(jr, cfg, notifier)
		if jr.Error != nil && jr.ExportPath == "" {
			failed++
		}
	}

	if failed == len(jobs) {
		ui.PrintError("COLLECTION FAILED", fmt.Sprintf("%d of %d posts produced no data", failed, len(jobs)))
		os.Exit(1)
	}
	if completed < len(jobs) {
		ui.PrintWarning("Collection interrupted", fmt.Sprintf("%d of %d posts were not collected", len(jobs)-completed, len(jobs)))
		os.Exit(1)
	}
	if failed > 0 {
		ui.PrintWarning("Collection finished with failures", fmt.Sprintf("%d of %d posts produced no data", failed, len(jobs)))
		return
	}
	ui.PrintSuccess("[COLLECTION COMPLETED SUCCESSFULLY]")
}

// resolveCredentials fills cfg.API from the credential chain: an explicitly
// named account, then config/env values, then the stored default account.
func resolveCredentials(cfg *config.Config) {
	credManager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	var account *auth.Account

	if accountName != "" {
		account, err = credManager.Retrieve(accountName)
		if err != nil {
			ui.PrintError("Account not found", accountName)
			ui.PrintInfo("Available accounts", "Use 'xengage auth list' to see stored accounts")
			os.Exit(1)
		}
	} else if cfg.API.BearerToken != "" && cfg.API.BearerToken != "YOUR_BEARER_TOKEN" {
		logger.Info("using credentials from configuration")
	} else {
		account, err = credManager.RetrieveDefault()
		if err != nil {
			logger.Error("no credentials found")
			ui.PrintError("No API credentials found")
			fmt.Println("\nTo store credentials securely, run:")
			fmt.Println("  xengage auth login")
			fmt.Println("\nFor one-off runs, you can also set an environment variable:")
			fmt.Println("  export TWITTER_BEARER_TOKEN=your_bearer_token")
			os.Exit(1)
		}
	}

	if account != nil {
		cfg.API.BearerToken = account.BearerToken
		cfg.API.APIKey = account.APIKey
		cfg.API.APISecret = account.APISecret
		cfg.API.AccessToken = account.AccessToken
		cfg.API.AccessSecret = account.AccessSecret
		logger.WithField("account", account.Label).Info("using stored credentials")
		ui.PrintInfo("Using account", account.Label)
	}

	if cfg.API.BearerToken == "" || cfg.API.BearerToken == "YOUR_BEARER_TOKEN" {
		logger.Error("missing API bearer token")
		ui.PrintError("Missing API bearer token", "Run 'xengage auth login' to store credentials")
		os.Exit(1)
	}
}

// loadSessionCookies reads the fallback session cookies when configured.
// Failure is a warning: the browser still works, it just sees the logged-out
// view of the conversation.
func loadSessionCookies(cfg *config.Config, log logger.Logger) []*network.Cookie {
	if cfg.Fallback.CookiesFile == "" {
		return nil
	}

	store := fallback.NewCookieStore(cfg.Fallback.CookiesFile)
	cookies, err := store.SessionCookies()
	if err != nil {
		log.WarnWithFields("session cookies unavailable, fallback runs logged out", map[string]interface{}{
			"cookies_file": cfg.Fallback.CookiesFile,
			"error":        err.Error(),
		})
		return nil
	}
	if !store.IsValid() {
		log.Warn("session cookies are expired, fallback may see a truncated conversation")
	}
	return cookies
}

// collectPipeline wires the shared client, window and writers into per-post
// collection runs.
type collectPipeline struct {
	cfg      *config.Config
	client   *twitter.Client
	window   *ratelimit.Window
	store    *storage.Manager
	exporter *export.Writer
	reports  *report.Writer
	cookies  []*network.Cookie
	log      logger.Logger
}

func (p *collectPipeline) Collect(ctx context.Context, job runner.Job) (*collector.Result, error) {
	source := twitter.NewPostSource(p.client, job.PostID)

	// The renderer is single-use, so each job builds its own extractor.
	var extractor collector.Extractor
	if p.cfg.Fallback.Enabled {
		renderer := fallback.NewChromeRenderer(fallback.ChromeOptions{
			Headless:  p.cfg.Fallback.Headless,
			UserAgent: p.cfg.Fallback.UserAgent,
			Cookies:   p.cookies,
			ExecPath:  p.cfg.Fallback.ChromePath,
			Timeout:   p.cfg.Fallback.SessionTimeout,
		}, p.log)
		extractor = fallback.NewExtractor(renderer, p.log).
			WithTuning(p.cfg.Fallback.SettleDelay, p.cfg.Fallback.StabilityThreshold, p.cfg.Fallback.MaxRevealSteps)
	}

	opts := collector.Options{
		SkipLikes:     p.cfg.Collection.SkipLikes,
		SkipReposts:   p.cfg.Collection.SkipReposts,
		ForceFallback: p.cfg.Collection.ForceFallback,
		NoFallback:    !p.cfg.Fallback.Enabled,
		FallbackCap:   p.cfg.Fallback.CandidateCap,
	}

	c := collector.New(source, p.window, extractor, opts, p.log)
	return c.Run(ctx, collector.Request{PostID: job.PostID, PostURL: job.PostURL})
}

func (p *collectPipeline) Export(res *collector.Result) (string, error) {
	path := p.store.ExportPath(res.PostID, res.FinishedAt)
	if err := p.exporter.Save(res, path); err != nil {
		return "", err
	}
	return path, nil
}

func (p *collectPipeline) Report(res *collector.Result, exportPath string) (string, error) {
	if !p.cfg.Export.WriteReport {
		return "", nil
	}
	path := p.store.ReportPath(exportPath)
	if err := p.reports.Write(report.FromResult(res, exportPath), path); err != nil {
		return "", err
	}
	return path, nil
}

// printOutcome renders one job's summary table and fires notifications.
func printOutcome(jr runner.JobResult, cfg *config.Config, notifier *ui.Notifier) {
	res := jr.Result

	if jr.Error != nil && (res == nil || res.Empty()) {
		ui.PrintError("COLLECTION FAILED", jr.Error.Error())
		if cfg.Notifications.Enabled && cfg.Notifications.OnError {
			notifier.SendError("Collection failed", jr.Job.PostID+": "+jr.Error.Error())
		}
		return
	}

	if res != nil && res.Empty() {
		ui.PrintWarning("No engagement records were collected", jr.Job.PostID)
		for _, d := range res.Diagnostics {
			ui.PrintWarning("Diagnostic", fmt.Sprintf("[%s] %s", d.Stage, d.Err))
		}
		return
	}

	summary := ui.RunSummary{
		PostID:        jr.Job.PostID,
		Duration:      jr.Duration,
		ExportPath:    jr.ExportPath,
		ReportPath:    jr.ReportPath,
		RequestBudget: cfg.RateLimit.RequestsPerWindow,
	}
	if res != nil {
		summary.Likes = res.Counts[models.KindLike]
		summary.Reposts = res.Counts[models.KindRepost]
		summary.Replies = res.Counts[models.KindReply]
		summary.Combined = len(res.Combined)
		summary.Decision = string(res.Decision.Reason)
		summary.FallbackRan = res.Decision.ShouldFallback && cfg.Fallback.Enabled
		summary.RequestsUsed = res.Requests.TotalRequests
		for _, d := range res.Diagnostics {
			summary.Diagnostics = append(summary.Diagnostics, fmt.Sprintf("[%s] %s", d.Stage, d.Err))
		}
	}
	ui.PrintRunSummary(summary)

	if jr.Error != nil {
		ui.PrintWarning("Run ended early, partial data exported", jr.Error.Error())
	}

	if cfg.Notifications.Enabled && cfg.Notifications.OnComplete && jr.ExportPath != "" {
		notifier.SendSuccess("Collection complete",
			fmt.Sprintf("%s: %d records → %s", jr.Job.PostID, summary.Combined, jr.ExportPath))
	}
}

// Make collect the default command when no subcommand is specified
func init() {
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 && !isKnownCommand(args[0]) {
			// The first argument is not a known command, treat it as a post id
			return collectCmd.RunE(collectCmd, args)
		}
		return cmd.Help()
	}

	rootCmd.Args = cobra.ArbitraryArgs
}

func isKnownCommand(arg string) bool {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == arg || cmd.HasAlias(arg) {
			return true
		}
	}
	return false
}
