package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/username/pitfolio/src/config"
	"github.com/username/pitfolio/src/fifo"
	"github.com/username/pitfolio/src/fx"
	"github.com/username/pitfolio/src/logger"
	"github.com/username/pitfolio/src/models"
	"github.com/username/pitfolio/src/registry"
	"github.com/username/pitfolio/src/reporters"
)

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	if err := run(os.Args[1:]); err != nil {
		logger.L.Error("pitfolio failed", "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	store, err := fx.OpenStore(config.Cfg.RateStorePath)
	if err != nil {
		return fmt.Errorf("opening rate store: %w", err)
	}
	defer store.Close()

	source := fx.NewNBPSource(config.Cfg.RateAPIBaseURL, config.Cfg.RateRequestTimeout)
	cache := fx.NewCache(config.Cfg.ReportingCurrency, source, store, config.Cfg.RateLookbackDays, config.Cfg.ProvisionalRateTTL)
	matcher := fifo.NewMatcher(cache, fifo.DefaultConfig())
	deps := reporters.Deps{Rates: cache, Matcher: matcher}

	reg, err := registry.New(config.Cfg.RegistryDir, deps, registry.DefaultFactories())
	if err != nil {
		return err
	}

	command := "run"
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}
	switch command {
	case "run":
		return runReport(reg)
	case "add":
		return addReporter(reg, args)
	case "list":
		return listReporters(reg)
	case "remove":
		if len(args) != 1 {
			return fmt.Errorf("usage: pitfolio remove <id>")
		}
		return reg.Remove(args[0])
	case "kinds":
		for _, kind := range reg.Kinds() {
			fmt.Println(kind)
		}
		return nil
	case "help", "-h", "--help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: pitfolio [command]

commands:
  run                       generate the tax report from all saved reporters (default)
  add <kind> <key=value>... save a reporter configuration
  list                      list saved reporters
  remove <id>               remove a saved reporter
  kinds                     list available reporter kinds`)
}

func addReporter(reg *registry.Registry, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: pitfolio add <kind> <key=value>...")
	}
	kind := args[0]
	params := make(map[string]string, len(args)-1)
	for _, arg := range args[1:] {
		key, value, found := strings.Cut(arg, "=")
		if !found {
			return fmt.Errorf("malformed parameter %q, expected key=value", arg)
		}
		params[key] = value
	}
	id, err := reg.Save(kind, params)
	if err != nil {
		return err
	}
	fmt.Println("saved reporter", id)
	return nil
}

func listReporters(reg *registry.Registry) error {
	saved, err := reg.LoadAll()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tDETAILS")
	for _, s := range saved {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.Kind, s.Reporter.Details())
	}
	return w.Flush()
}

func runReport(reg *registry.Registry) error {
	saved, err := reg.LoadAll()
	if err != nil {
		return err
	}
	if len(saved) == 0 {
		return fmt.Errorf("no reporters saved, use: pitfolio add <kind> <key=value>...")
	}

	ctx := context.Background()
	logs := &models.TaxReportLogs{}
	parts := make([]models.TaxReport, 0, len(saved))
	for _, s := range saved {
		logger.L.Info("generating report", "reporter", s.Reporter.Name(), "id", s.ID)
		report, err := s.Reporter.Generate(ctx, logs)
		if err != nil {
			return fmt.Errorf("reporter %s (%s): %w", s.Reporter.Name(), s.ID, err)
		}
		parts = append(parts, report)
	}

	total := models.Merge(parts...)

	printReport(total)
	printAuditLog(logs)
	return nil
}

func printReport(report models.TaxReport) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, year := range report.Years() {
		record := report.Get(year)
		fmt.Fprintf(w, "\n=== %d ===\n", year)
		for _, row := range record.Rows() {
			label := row.Name
			if row.PITLabel != "" {
				label += " (" + row.PITLabel + ")"
			}
			fmt.Fprintf(w, "%s\t%s\n", label, row.Value.StringFixed(2))
		}
	}
	w.Flush()
}

func printAuditLog(logs *models.TaxReportLogs) {
	changes := logs.Ordered()
	if len(changes) == 0 {
		return
	}
	fmt.Println("\n=== Audit log ===")
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, change := range changes {
		fmt.Fprintf(w, "%s\t%s\t%s\n", change.Date.Format("2006-01-02"), change.Reporter, change.Detail)
	}
	w.Flush()
}
