// LawnQuote CLI - lawn care subscription pricing
//
// Usage:
//
//	lawnquote quote --plan premium --yard 1/2 --term 1-year --pay-upfront
//	lawnquote swap-options --plan executive
//	lawnquote codes sync --redis-addr localhost:6379
//	lawnquote serve --port 8080
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"lawnquote/api"
	"lawnquote/db/clickhouse"
	"lawnquote/db/postgres"
	"lawnquote/db/redis"
	"lawnquote/decision/catalog"
	"lawnquote/decision/lead"
	"lawnquote/decision/promotion"
	"lawnquote/decision/quote"
	"lawnquote/notify"
	"lawnquote/pkg/platform"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "lawnquote",
		Usage:   "Quote lawn care subscriptions and serve the quote wizard API",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "catalog",
				Usage:   "Path to a YAML catalog overlay (built-in catalog when empty)",
				EnvVars: []string{"LAWNQUOTE_CATALOG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LAWNQUOTE_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format (table, json, markdown)",
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address for promo codes (catalog codes when empty)",
				EnvVars: []string{"LAWNQUOTE_REDIS_ADDR"},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				EnvVars: []string{"LAWNQUOTE_REDIS_PASSWORD"},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				EnvVars: []string{"LAWNQUOTE_REDIS_DB"},
			},
			&cli.StringFlag{
				Name:    "redis-key",
				Value:   redis.DefaultKey,
				Usage:   "Redis hash holding promo codes",
				EnvVars: []string{"LAWNQUOTE_REDIS_KEY"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-dsn",
				Usage:   "ClickHouse DSN for quote analytics (disabled when empty)",
				EnvVars: []string{"CLICKHOUSE_DSN"},
			},
		},

		Commands: []*cli.Command{
			quoteCommand(),
			swapOptionsCommand(),
			catalogCommand(),
			codesCommand(),
			statsCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Diagnostics go to stderr so stdout stays clean for json output.
func cliLogger(c *cli.Context) *slog.Logger {
	return platform.NewLogger(os.Stderr, c.String("log-level"))
}

func loadCatalog(c *cli.Context) (*catalog.Catalog, error) {
	path := c.String("catalog")
	if path == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return cat, nil
}

func parseAsOf(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	t, err := quote.ParseAsOf(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of %q: want RFC3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// =============================================================================
// QUOTE COMMAND
// =============================================================================

func quoteCommand() *cli.Command {
	return &cli.Command{
		Name:  "quote",
		Usage: "Price a set of selections",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "plan", Aliases: []string{"p"}, Usage: "Plan id (basic, premium, executive)", Required: true},
			&cli.StringFlag{Name: "yard", Aliases: []string{"y"}, Value: "1/3", Usage: "Yard size id"},
			&cli.StringFlag{Name: "term", Aliases: []string{"t"}, Value: string(catalog.TermMonthToMonth), Usage: "Term id"},
			&cli.StringSliceFlag{Name: "addon", Usage: "Basic add-on id (repeatable)"},
			&cli.StringSliceFlag{Name: "premium-addon", Usage: "Premium add-on id (repeatable)"},
			&cli.StringSliceFlag{Name: "segment", Usage: "Customer segment (renter, veteran, senior)"},
			&cli.BoolFlag{Name: "pay-upfront", Usage: "Prepay the whole term"},
			&cli.BoolFlag{Name: "referral", Usage: "Customer was referred"},
			&cli.BoolFlag{Name: "executive-plus", Usage: "Add the Executive+ upgrade"},
			&cli.IntFlag{Name: "swaps", Usage: "Number of 2-basic-for-1-premium swaps"},
			&cli.StringFlag{Name: "code", Usage: "Partner promo code"},
			&cli.StringFlag{Name: "as-of", Usage: "Evaluation date (RFC3339 or YYYY-MM-DD, default now)"},
		},
		Action: runQuote,
	}
}

func runQuote(c *cli.Context) error {
	logger := cliLogger(c)
	cat, err := loadCatalog(c)
	if err != nil {
		return err
	}
	asOf, err := parseAsOf(c.String("as-of"))
	if err != nil {
		return err
	}

	engine := quote.NewEngine(cat, logger)
	if c.String("redis-addr") != "" {
		cache, _, closeFn, err := codeCache(c, cat, logger)
		if err != nil {
			return err
		}
		defer closeFn()
		engine.WithCodes(cache)
	}

	segments := make([]catalog.Segment, 0, len(c.StringSlice("segment")))
	for _, s := range c.StringSlice("segment") {
		segments = append(segments, catalog.Segment(s))
	}

	q, err := engine.Quote(quote.Selections{
		YardSizeID:      c.String("yard"),
		PlanID:          catalog.PlanID(c.String("plan")),
		BasicAddonIDs:   c.StringSlice("addon"),
		PremiumAddonIDs: c.StringSlice("premium-addon"),
		Term:            catalog.TermID(c.String("term")),
		PayUpfront:      c.Bool("pay-upfront"),
		Segments:        segments,
		HasReferral:     c.Bool("referral"),
		ExecutivePlus:   c.Bool("executive-plus"),
		SwapCount:       c.Int("swaps"),
		PromoCode:       c.String("code"),
		AsOf:            asOf,
	})
	if err != nil {
		return err
	}

	switch c.String("format") {
	case "json":
		return printJSON(q)
	case "markdown":
		outputQuoteMarkdown(q)
	default:
		outputQuoteTable(q)
	}
	return nil
}

// =============================================================================
// OUTPUT FORMATTERS
// =============================================================================

func outputQuoteTable(q *quote.Quote) {
	t := q.Totals
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Printf("║  %-59s ║\n", truncate(fmt.Sprintf("%s plan, %s, %s", q.PlanName, q.Selections.YardSizeID, q.TermLabel), 59))
	fmt.Println("╠══════════════════════════════════════════════════════════════╣")
	for _, li := range q.LineItems {
		desc := li.Description
		if li.Quantity > 1 {
			desc = fmt.Sprintf("%s x%d", desc, li.Quantity)
		}
		fmt.Printf("║  %-40s  $%-16s ║\n", truncate(desc, 40), li.Amount.String())
	}
	fmt.Printf("║  %-40s  $%-16s ║\n", "Monthly total", q.MonthlyTotal.String())
	fmt.Println("╠══════════════════════════════════════════════════════════════╣")

	for _, e := range q.Promotions.Breakdown {
		fmt.Printf("║  %-40s  %-17s ║\n", truncate(e.Title, 40), entryValue(e))
	}
	if q.Promotions.PromoCode != nil && !q.Promotions.PromoCode.Valid {
		fmt.Printf("║  %-59s ║\n", truncate(fmt.Sprintf("Code %s not recognised", q.Promotions.PromoCode.Code), 59))
	}
	if q.Promotions.CapApplied {
		fmt.Printf("║  %-59s ║\n", "Stacking limit reached")
	}
	if len(q.Promotions.Breakdown) > 0 {
		fmt.Println("╠══════════════════════════════════════════════════════════════╣")
	}

	fmt.Printf("║  %-40s  $%-16s ║\n", "You pay per month", t.DisplayedMonthly.String())
	if t.FreeMonthsAtEnd > 0 {
		fmt.Printf("║  %-40s  %-17d ║\n", "Free months at end of term", t.FreeMonthsAtEnd)
		fmt.Printf("║  %-40s  $%-16s ║\n", "Effective monthly", t.DisplayedEffectiveMonthly.String())
	}
	fmt.Printf("║  %-40s  $%-16s ║\n", "Estimated yearly savings", t.AnnualSavingsEstimate.String())
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
}

func entryValue(e promotion.Entry) string {
	var v string
	switch {
	case e.PercentOff > 0:
		v = fmt.Sprintf("%d%% off", e.PercentOff)
	case e.FreeMonths > 0:
		v = fmt.Sprintf("%d free mo", e.FreeMonths)
	default:
		v = "-"
	}
	if e.Status != promotion.StatusApplied {
		v += " (" + string(e.Status) + ")"
	}
	return v
}

func outputQuoteMarkdown(q *quote.Quote) {
	fmt.Printf("## %s plan quote\n\n", q.PlanName)
	fmt.Println("| Item | Amount |")
	fmt.Println("|------|--------|")
	for _, li := range q.LineItems {
		fmt.Printf("| %s | $%s |\n", li.Description, li.Amount.String())
	}
	fmt.Printf("| **Monthly total** | $%s |\n", q.MonthlyTotal.String())

	if len(q.Promotions.Breakdown) > 0 {
		fmt.Println()
		fmt.Println("### Promotions")
		fmt.Println()
		for _, e := range q.Promotions.Breakdown {
			fmt.Printf("- **%s**: %s\n", e.Title, entryValue(e))
		}
	}

	fmt.Println()
	fmt.Printf("**$%s/month** for %s", q.Totals.DisplayedMonthly.String(), q.TermLabel)
	if q.Totals.FreeMonthsAtEnd > 0 {
		fmt.Printf(", plus %d free month(s)", q.Totals.FreeMonthsAtEnd)
	}
	fmt.Println()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// =============================================================================
// SWAP OPTIONS / CATALOG COMMANDS
// =============================================================================

func swapOptionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "swap-options",
		Usage: "List the add-on swap choices for a plan",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "plan", Aliases: []string{"p"}, Required: true},
			&cli.BoolFlag{Name: "executive-plus"},
			&cli.StringFlag{Name: "as-of", Usage: "Evaluation date (default now)"},
		},
		Action: func(c *cli.Context) error {
			cat, err := loadCatalog(c)
			if err != nil {
				return err
			}
			asOf, err := parseAsOf(c.String("as-of"))
			if err != nil {
				return err
			}
			opts, err := quote.NewEngine(cat, cliLogger(c)).
				SwapOptions(catalog.PlanID(c.String("plan")), asOf, c.Bool("executive-plus"))
			if err != nil {
				return err
			}
			if c.String("format") == "json" {
				return printJSON(opts)
			}
			fmt.Println("SWAPS  BASIC  PREMIUM")
			for _, o := range opts {
				fmt.Printf("%5d  %5d  %7d\n", o.SwapCount, o.Basic, o.Premium)
			}
			return nil
		},
	}
}

func catalogCommand() *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Validate and print the active catalog",
		Action: func(c *cli.Context) error {
			cat, err := loadCatalog(c)
			if err != nil {
				return err
			}
			if c.String("format") == "json" {
				return printJSON(map[string]any{
					"plans":      cat.Plans(),
					"addons":     cat.Addons(),
					"yard_sizes": cat.YardSizes(),
					"terms":      cat.Terms(),
					"caps":       cat.Caps(),
					"promotions": cat.Promotions(),
				})
			}

			fmt.Println("Plans:")
			for _, p := range cat.Plans() {
				fmt.Printf("  %-10s $%-5s %d basic / %d premium\n", p.ID, p.BasePrice.String(), p.IncludedBasicSlots, p.IncludedPremiumSlots)
			}
			fmt.Println("Terms:")
			for _, t := range cat.Terms() {
				fmt.Printf("  %-15s %2d months, %d free\n", t.ID, t.Months, t.FreeMonths)
			}
			fmt.Println("Promotions:")
			for _, p := range cat.Promotions() {
				state := "active"
				if !p.Active {
					state = "inactive"
				}
				fmt.Printf("  %-3d %-28s %-12s %d (%s)\n", p.DisplayOrder, p.Title, p.StackGroup, p.Value, state)
			}
			caps := cat.Caps()
			fmt.Printf("Caps: %d%% off, %d free months\n", caps.MaxPercentOff, caps.MaxFreeMonths)
			return nil
		},
	}
}

// =============================================================================
// CODES COMMAND
// =============================================================================

func codeStore(c *cli.Context) (*redis.CodeStore, func(), error) {
	addr := c.String("redis-addr")
	if addr == "" {
		return nil, nil, fmt.Errorf("--redis-addr is required")
	}
	client := redis.NewClient(addr, c.String("redis-password"), c.Int("redis-db"))
	store := redis.NewCodeStore(client, c.String("redis-key"))
	return store, func() { client.Close() }, nil
}

// codeCache builds a Redis-backed code lookup, primed once. The catalog's
// codes are served until the first refresh succeeds.
func codeCache(c *cli.Context, cat *catalog.Catalog, logger *slog.Logger) (*redis.CodeCache, *redis.CodeStore, func(), error) {
	store, closeFn, err := codeStore(c)
	if err != nil {
		return nil, nil, nil, err
	}
	cache := redis.NewCodeCache(store, promotion.NewCodeTable(cat.PromoCodes()), logger)
	if err := cache.Refresh(c.Context); err != nil {
		logger.Warn("promo codes unavailable, using catalog codes", "error", err)
	}
	return cache, store, closeFn, nil
}

func codesCommand() *cli.Command {
	return &cli.Command{
		Name:  "codes",
		Usage: "Manage partner promo codes in Redis",
		Subcommands: []*cli.Command{
			{
				Name:  "sync",
				Usage: "Replace the Redis code set with the catalog's codes",
				Action: func(c *cli.Context) error {
					cat, err := loadCatalog(c)
					if err != nil {
						return err
					}
					store, closeFn, err := codeStore(c)
					if err != nil {
						return err
					}
					defer closeFn()

					if err := store.Sync(c.Context, cat.PromoCodes()); err != nil {
						return err
					}
					fmt.Fprintf(os.Stderr, "synced %d promo codes\n", len(cat.PromoCodes()))
					return nil
				},
			},
			{
				Name:  "add",
				Usage: "Add or replace one code",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "code", Required: true},
					&cli.IntFlag{Name: "discount", Required: true, Usage: "Percent off"},
					&cli.StringFlag{Name: "partner", Required: true},
				},
				Action: func(c *cli.Context) error {
					pc := catalog.PromoCode{
						Code:     c.String("code"),
						Discount: c.Int("discount"),
						Partner:  c.String("partner"),
					}
					if err := catalog.ValidatePromoCode(pc); err != nil {
						return err
					}
					store, closeFn, err := codeStore(c)
					if err != nil {
						return err
					}
					defer closeFn()
					return store.Put(c.Context, pc)
				},
			},
			{
				Name:  "list",
				Usage: "List the codes currently in Redis",
				Action: func(c *cli.Context) error {
					store, closeFn, err := codeStore(c)
					if err != nil {
						return err
					}
					defer closeFn()

					codes, skipped, err := store.Load(c.Context)
					if err != nil {
						return err
					}
					if c.String("format") == "json" {
						return printJSON(codes)
					}
					for _, pc := range codes {
						fmt.Printf("%-16s %3d%%  %s\n", pc.Code, pc.Discount, pc.Partner)
					}
					if skipped > 0 {
						fmt.Fprintf(os.Stderr, "%d malformed entries skipped\n", skipped)
					}
					return nil
				},
			},
		},
	}
}

// =============================================================================
// STATS COMMAND
// =============================================================================

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show quote and submission counts per plan from ClickHouse",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "since", Value: 30 * 24 * time.Hour, Usage: "Look-back window"},
		},
		Action: func(c *cli.Context) error {
			dsn := c.String("clickhouse-dsn")
			if dsn == "" {
				return fmt.Errorf("--clickhouse-dsn is required")
			}
			store, err := clickhouse.NewStoreFromDSN(dsn)
			if err != nil {
				return fmt.Errorf("failed to connect to ClickHouse: %w", err)
			}
			defer store.Close()

			stats, err := store.PlanStats(c.Context, time.Now().Add(-c.Duration("since")))
			if err != nil {
				return err
			}
			if c.String("format") == "json" {
				return printJSON(stats)
			}
			fmt.Println("PLAN        TERM             QUOTED  SUBMITTED  AVG/MO  CAPPED")
			for _, s := range stats {
				fmt.Printf("%-10s  %-15s  %6d  %9d  %6.0f  %5.0f%%\n",
					s.Plan, s.Term, s.Quoted, s.Submitted, s.AvgDisplayed, s.CapAppliedRatio*100)
			}
			return nil
		},
	}
}

// =============================================================================
// SERVE COMMAND (API SERVER)
// =============================================================================

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the quote API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "API server port",
				EnvVars: []string{"LAWNQUOTE_PORT"},
			},
			&cli.StringFlag{
				Name:    "cors-origins",
				Value:   "*",
				Usage:   "Comma-separated list of allowed CORS origins",
				EnvVars: []string{"LAWNQUOTE_CORS_ORIGINS"},
			},
			&cli.StringFlag{
				Name:    "admin-api-key",
				Usage:   "Key for the lead lookup endpoint (disabled when empty)",
				EnvVars: []string{"LAWNQUOTE_ADMIN_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "PostgreSQL DSN for leads (in-memory when empty)",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.DurationFlag{
				Name:    "code-refresh",
				Value:   time.Minute,
				Usage:   "Promo code refresh interval",
				EnvVars: []string{"LAWNQUOTE_CODE_REFRESH"},
			},
			&cli.StringFlag{
				Name:    "ses-region",
				Usage:   "AWS region for SES (email disabled when empty)",
				EnvVars: []string{"LAWNQUOTE_SES_REGION"},
			},
			&cli.StringFlag{
				Name:    "email-from",
				EnvVars: []string{"LAWNQUOTE_EMAIL_FROM"},
			},
			&cli.StringFlag{
				Name:    "business-email",
				Usage:   "Comma-separated inboxes for new leads",
				EnvVars: []string{"LAWNQUOTE_BUSINESS_EMAIL"},
			},
			&cli.StringFlag{
				Name:    "business-name",
				EnvVars: []string{"LAWNQUOTE_BUSINESS_NAME"},
			},
			&cli.StringFlag{
				Name:    "ses-configuration-set",
				EnvVars: []string{"LAWNQUOTE_SES_CONFIGURATION_SET"},
			},
			&cli.StringFlag{
				Name:    "webhook-url",
				Usage:   "CRM webhook for new leads (disabled when empty)",
				EnvVars: []string{"LAWNQUOTE_WEBHOOK_URL"},
			},
			&cli.StringFlag{
				Name:    "webhook-token",
				EnvVars: []string{"LAWNQUOTE_WEBHOOK_TOKEN"},
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	logger := platform.InitLogger(c.String("log-level"))
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	cat, err := loadCatalog(c)
	if err != nil {
		return err
	}

	metrics := platform.NewMetrics()
	quotes := quote.NewEngine(cat, logger)
	cfg := api.DefaultConfig()
	cfg.Port = c.Int("port")
	cfg.AdminAPIKey = c.String("admin-api-key")
	cfg.CORSOrigins = splitList(c.String("cors-origins"))
	cfg.LeadRateLimit = platform.GetEnvInt("LAWNQUOTE_LEAD_RATE_LIMIT", cfg.LeadRateLimit)
	cfg.LeadRateWindow = platform.GetEnvDuration("LAWNQUOTE_LEAD_RATE_WINDOW", cfg.LeadRateWindow)

	checks := make(map[string]api.Pinger)

	// Promo codes
	if c.String("redis-addr") != "" {
		if c.Duration("code-refresh") <= 0 {
			return fmt.Errorf("--code-refresh must be positive, got %s", c.Duration("code-refresh"))
		}
		cache, store, closeFn, err := codeCache(c, cat, logger)
		if err != nil {
			return err
		}
		defer closeFn()
		quotes.WithCodes(cache)
		go cache.Run(ctx, c.Duration("code-refresh"))
		checks["redis"] = store
		logger.Info("promo codes served from redis", "count", cache.Len())
	}

	// Lead storage
	var leadStore lead.Store = lead.NewMemoryStore()
	if dsn := c.String("database-url"); dsn != "" {
		db, err := postgres.Open(ctx, dsn)
		if err != nil {
			return err
		}
		defer db.Close()
		pg := postgres.NewLeadStore(db.Pool())
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		leadStore = pg
		checks["postgres"] = pg
	} else {
		logger.Warn("DATABASE_URL not set, leads are kept in memory")
	}

	leads := lead.NewService(quotes, leadStore, logger).WithMetrics(metrics)

	// Analytics
	var events quote.EventSink
	if dsn := c.String("clickhouse-dsn"); dsn != "" {
		ch, err := clickhouse.NewStoreFromDSN(dsn)
		if err != nil {
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		defer ch.Close()
		if err := ch.Migrate(ctx); err != nil {
			return err
		}
		events = ch
		leads.WithEvents(ch)
		checks["clickhouse"] = ch
	}

	// Notifications
	if region := c.String("ses-region"); region != "" {
		ses, err := notify.NewSESNotifier(ctx, notify.SESConfig{
			Region:           region,
			From:             c.String("email-from"),
			BusinessTo:       splitList(c.String("business-email")),
			BusinessName:     c.String("business-name"),
			ConfigurationSet: c.String("ses-configuration-set"),
		})
		if err != nil {
			return err
		}
		leads.WithNotifier(ses)
	}
	if url := c.String("webhook-url"); url != "" {
		leads.WithNotifier(notify.NewWebhook(url, c.String("webhook-token"),
			platform.GetEnvInt("LAWNQUOTE_WEBHOOK_RETRIES", 2),
			platform.GetEnvDuration("LAWNQUOTE_WEBHOOK_TIMEOUT", 10*time.Second)))
	}

	server := api.NewServer(quotes, leads, cfg, logger).WithMetrics(metrics)
	if events != nil {
		server.WithEvents(events)
	}
	for name, p := range checks {
		server.WithReadinessCheck(name, p)
	}

	return server.StartWithGracefulShutdown()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
