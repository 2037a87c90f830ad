package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/subcommands"
	"github.com/prometheus/client_golang/prometheus"

	"QuoteKeeper/internal/metrics"
	"QuoteKeeper/internal/notifier"
	"QuoteKeeper/internal/scheduler"
)

type fetchCmd struct {
	notify bool
}

func (*fetchCmd) Name() string     { return "fetch" }
func (*fetchCmd) Synopsis() string { return "fetches quotes once and updates the market data file" }
func (*fetchCmd) Usage() string {
	return `quotekeeper fetch [-notify]

Downloads every configured exchange page, merges the quotes into the market
data file and prunes quotes older than a year. The file is only rewritten
when something changed.

With source.file set in the configuration a saved page is read instead of
the network; its rows are labelled "Not specified".
`
}

func (c *fetchCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.notify, "notify", false, "Send the run report to Telegram.")
}

func (c *fetchCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()
	if !c.notify {
		a.pipeline.Notifier = nil
	}

	rep, err := a.pipeline.Run(ctx)
	if rep != nil {
		fmt.Printf("%d row(s) extracted, %d added, %d pruned, saved: %v\n", rep.RowsExtracted, rep.Added, rep.Pruned, rep.Persisted)
		for _, name := range rep.Misses {
			fmt.Printf("no ISIN: %s\n", name)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type serveCmd struct {
	runNow bool
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "runs ingest on a schedule" }
func (*serveCmd) Usage() string {
	return `quotekeeper serve [-run-now]

Runs the ingest and registry check on the configured cron schedules until
interrupted. Reports go to Telegram when it is configured, and the bot
answers /run, /status and /registry. Prometheus metrics are served on
metrics.addr when it is set.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.runNow, "run-now", os.Getenv("RUN_ON_START") == "true", "Run an ingest immediately on start.")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	log.Println("[INFO] QuoteKeeper starting...")
	a, err := newApp(true)
	if err != nil {
		log.Printf("[FATAL] %v", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Init metrics
	if addr := a.cfg.Metrics.Addr; addr != "" {
		a.pipeline.Metrics = metrics.NewMetrics(prometheus.DefaultRegisterer)
		a.pipeline.Health = metrics.NewHealthStatus()
		srv := metrics.NewServer(addr, prometheus.DefaultGatherer, a.pipeline.Health)
		srv.Start()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := srv.Stop(shutdownCtx); err != nil {
				log.Printf("[WARN] stop metrics server: %v", err)
			}
		}()
	}

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, a.pipeline, a.pipeline.Notifier)
	if err := sched.RegisterAll(a.cfg.Schedule.IngestCron, a.cfg.Schedule.RegistryCron); err != nil {
		log.Printf("[FATAL] register cron tasks: %v", err)
		return subcommands.ExitFailure
	}
	sched.Start()
	defer sched.Stop()

	// Start Telegram polling
	if a.telegram != nil {
		go a.telegram.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	if c.runNow {
		log.Println("[INFO] run-now enabled, executing ingest task now")
		sched.Trigger()
	}

	log.Println("[INFO] QuoteKeeper is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	return subcommands.ExitSuccess
}

type pruneCmd struct{}

func (*pruneCmd) Name() string     { return "prune" }
func (*pruneCmd) Synopsis() string { return "removes quotes older than a year" }
func (*pruneCmd) Usage() string {
	return `quotekeeper prune

Removes quotes older than 365 days from the market data file without
fetching anything. The file is only rewritten when quotes were removed.
`
}

func (*pruneCmd) SetFlags(*flag.FlagSet) {}

func (*pruneCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	removed, persisted, stale, err := a.pipeline.Prune()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("%d quote(s) removed, saved: %v\n", removed, persisted)
	if stale {
		fmt.Println("every quote expired; the market data file was left as it was")
	}
	return subcommands.ExitSuccess
}

type registryCmd struct {
	notify bool
}

func (*registryCmd) Name() string     { return "registry" }
func (*registryCmd) Synopsis() string { return "validates the ISIN registry" }
func (*registryCmd) Usage() string {
	return `quotekeeper registry [-notify]

Loads the ISIN registry, prints the validation report and lists the ISINs of
the market data file that the registry does not know. Exits with a non-zero
status when errors are found.
`
}

func (c *registryCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.notify, "notify", false, "Send the report to Telegram.")
}

func (c *registryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	reg, unknown, err := a.pipeline.CheckRegistry()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("%d ISIN(s) loaded\n%s\n", reg.Len(), reg.Report())
	for _, isin := range unknown {
		fmt.Printf("not in registry: %s\n", isin)
	}
	if c.notify && a.pipeline.Notifier != nil {
		if err := a.pipeline.Notifier.Notify(ctx, notifier.FormatRegistryCheck(reg.Len(), reg.Report(), unknown)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: send report: %v\n", err)
		}
	}
	if reg.Report().HasErrors() || len(unknown) > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
