package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	appingest "github.com/feedsync/backend/internal/application/ingestion"
	"github.com/feedsync/backend/internal/bootstrap"
	"github.com/feedsync/backend/internal/domain/ingestion"
	"github.com/feedsync/backend/internal/domain/scrape"
	"github.com/feedsync/backend/internal/infrastructure/config"
	"github.com/feedsync/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to config file (default: search ./config.toml, ./config, /app)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}

	code := dispatch(ctx, app, args[0], args[1:])

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Close(closeCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Shutdown finished with errors: %v\n", err)
	}
	os.Exit(code)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func dispatch(ctx context.Context, app *bootstrap.App, command string, args []string) int {
	switch command {
	case "run":
		return runIngestion(ctx, app, args)
	case "scrape":
		return runScrape(ctx, app, args)
	case "suppliers":
		return listSuppliers(ctx, app)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", command)
		printUsage()
		return 2
	}
}

func runIngestion(ctx context.Context, app *bootstrap.App, args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	supplierID := fs.String("supplier", "", "Only ingest this supplier")
	_ = fs.Parse(args)

	runID, err := app.Ingestion.RunSupplier(ctx, appingest.TriggerCLI, *supplierID)
	if runID == "" {
		app.Logger.Error("Run did not start", zap.Error(err))
		return 1
	}

	summary, lookupErr := app.Ingestion.Report(runID)
	if lookupErr != nil {
		app.Logger.Error("Run report unavailable", zap.String("run_id", runID), zap.Error(lookupErr))
		return 1
	}
	printSummary(summary)

	if err != nil || summary.Failed > 0 {
		return 1
	}
	return 0
}

func printSummary(s ingestion.RunSummary) {
	fmt.Printf("Run %s (%s): %s, %d products written\n", s.ID, s.Trigger, s.Status, s.Written)
	if s.Error != "" {
		fmt.Printf("Error: %s\n", s.Error)
	}
	if len(s.Suppliers) == 0 {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SUPPLIER\tSTATUS\tFORMAT\tPARSED\tDUPLICATES\tWRITTEN\tDURATION\tERROR")
	for _, r := range s.Suppliers {
		format := r.DetectedFormat
		if format == "" {
			format = r.ConfiguredFormat
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			r.SupplierID, r.Status, format, r.Parsed, r.Duplicates, r.Written,
			r.Duration.Round(time.Millisecond), r.Error)
	}
	_ = w.Flush()
}

func runScrape(ctx context.Context, app *bootstrap.App, args []string) int {
	fs := flag.NewFlagSet("scrape", flag.ExitOnError)
	testMode := fs.Bool("test", false, "Read only the first listing page")
	username := fs.String("username", "", "Storefront username (default: scrape.username)")
	_ = fs.Parse(args)

	req := scrape.Request{TestMode: *testMode}
	if *username != "" {
		// password comes from FEEDSYNC_SCRAPE_PASSWORD, never from a flag
		req.Username = *username
		req.Password = os.Getenv("FEEDSYNC_SCRAPE_PASSWORD")
	}
	result, err := app.Scrape.Run(ctx, req)
	if err != nil {
		app.Logger.Error("Scrape job did not start", zap.Error(err))
		return 1
	}

	fmt.Print(result.Output)
	fmt.Printf("Scrape %s, %d products found\n", outcome(result.Success), result.ProductsFound)
	if !result.Success {
		return 1
	}
	return 0
}

func outcome(ok bool) string {
	if ok {
		return "succeeded"
	}
	return "failed"
}

func listSuppliers(ctx context.Context, app *bootstrap.App) int {
	suppliers, err := app.Registry.List(ctx)
	if err != nil {
		app.Logger.Error("Failed to list suppliers", zap.Error(err))
		return 1
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tFORMAT\tENABLED\tURL")
	for _, s := range suppliers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", s.ID, s.Name, s.Format, s.Enabled, logger.MaskURL(s.URL))
	}
	_ = w.Flush()
	return 0
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Feed ingestion CLI

Usage:
  ingest [flags] <command> [arguments]

Commands:
  run [-supplier id]                 Run the feed pipeline for all enabled suppliers, or one
  scrape [-test] [-username name]    Run the storefront scrape job
  suppliers                          List registered suppliers (credentials masked)

Flags:
  -config string    Path to config file

Environment Variables:
  FEEDSYNC_SCRAPE_PASSWORD    Storefront password for scrape -username
  FEEDSYNC_*                  Any config key, e.g. FEEDSYNC_DATABASE_PASSWORD

Examples:
  # Nightly import from cron
  ingest run

  # Re-import one supplier
  ingest run -supplier acme

  # Check the storefront login and first page
  ingest scrape -test`)
}
