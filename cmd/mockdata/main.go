package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mmrzaf/mockdata/internal/app"
	"github.com/mmrzaf/mockdata/internal/config"
	"github.com/mmrzaf/mockdata/internal/domain"
	"github.com/mmrzaf/mockdata/internal/exec"
	"github.com/mmrzaf/mockdata/internal/expr"
	"github.com/mmrzaf/mockdata/internal/infra/repos/runs"
	"github.com/mmrzaf/mockdata/internal/infra/repos/schemas"
	"github.com/mmrzaf/mockdata/internal/infra/sinks"
	"github.com/mmrzaf/mockdata/internal/logging"
	"github.com/mmrzaf/mockdata/internal/metrics"
	"github.com/mmrzaf/mockdata/internal/registry"
)

var (
	schemasDir string
	runsDBPath string
	logLevel   string
	noHistory  bool
)

func main() {
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:           "mockdata",
		Short:         "Schema-driven synthetic data generator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&schemasDir, "schemas-dir", cfg.SchemasDir, "Schemas directory")
	rootCmd.PersistentFlags().StringVar(&runsDBPath, "runs-db", cfg.RunsDBPath, "Run history database path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", cfg.LogLevel, "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&noHistory, "no-history", false, "Do not record runs in the history database")

	rootCmd.AddCommand(generateCmd(cfg))
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(schemaCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(capabilitiesCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(serveCmd(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// isPath tells schema files apart from schema ids.
func isPath(arg string) bool {
	if strings.ContainsRune(arg, filepath.Separator) || strings.Contains(arg, "/") {
		return true
	}
	switch strings.ToLower(filepath.Ext(arg)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

func schemaRequest(arg string) *app.RunRequest {
	if isPath(arg) {
		return &app.RunRequest{SchemaPath: arg}
	}
	return &app.RunRequest{SchemaID: arg}
}

func openRuns() (*runs.SQLiteRepository, error) {
	repo := runs.NewSQLiteRepository(runsDBPath)
	if err := repo.Init(); err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	return repo, nil
}

func newService(logger *logging.Logger, m *metrics.Metrics, outputDir string) (*app.RunService, func(), error) {
	schemaRepo := schemas.NewFileRepository(schemasDir)
	caps := registry.DefaultCapabilityRegistry()
	if noHistory {
		return app.NewRunService(schemaRepo, nil, caps, logger, m, outputDir), func() {}, nil
	}
	runRepo, err := openRuns()
	if err != nil {
		return nil, nil, err
	}
	svc := app.NewRunService(schemaRepo, runRepo, caps, logger, m, outputDir)
	return svc, func() { _ = runRepo.Close() }, nil
}

func generateCmd(cfg *config.Config) *cobra.Command {
	var (
		recordCount int
		format      string
		seed        int64
		outputDir   string
		dsn         string
		database    string
		pgSchema    string
		tableMode   string
		workers     int
		batchSize   int
		sharedKeys  bool
		metricsAddr string
		progress    bool
	)

	cmd := &cobra.Command{
		Use:   "generate <schema-id|path>",
		Short: "Generate records for every domain of a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := logging.NewLogger(logLevel)

			var m *metrics.Metrics
			if metricsAddr != "" {
				m = metrics.New()
				srvCtx, cancel := context.WithCancel(ctx)
				defer cancel()
				go func() {
					if err := m.Serve(srvCtx, metricsAddr); err != nil {
						logger.Errorw("metrics.failed", map[string]any{"addr": metricsAddr, "error": err})
					}
				}()
			}

			svc, closeFn, err := newService(logger, m, cfg.OutputDir)
			if err != nil {
				return err
			}
			defer closeFn()

			req := schemaRequest(args[0])
			flags := cmd.Flags()
			if flags.Changed("record-count") {
				req.RecordCount = &recordCount
			}
			if flags.Changed("seed") {
				req.Seed = &seed
			}
			req.Format = format
			req.OutputDir = outputDir
			req.DSN = dsn
			req.Database = database
			req.PGSchema = pgSchema
			req.TableMode = tableMode
			req.Workers = workers
			req.BatchSize = batchSize
			req.SharedKeys = sharedKeys
			if progress {
				req.OnProgress = func(p exec.Progress) {
					fmt.Fprintf(os.Stderr, "%s: batch %d/%d, %d/%d records (%d discarded)\n",
						p.Domain, p.Batch, p.Batches, p.Generated, p.Requested, p.Discarded)
				}
			}

			run, stats, err := svc.Run(ctx, req)
			if stats != nil {
				printStats(stats)
			}
			if run != nil && run.ID != "" {
				fmt.Printf("Run: %s (%s)\n", run.ID, run.Status)
			}
			return err
		},
	}

	f := cmd.Flags()
	f.IntVarP(&recordCount, "record-count", "n", 0, "Records per domain (overrides the schema)")
	f.StringVarP(&format, "format", "f", "", "Output format ("+strings.Join(sinks.Formats, "|")+")")
	f.Int64VarP(&seed, "seed", "s", 0, "Seed for the random source (overrides the schema)")
	f.StringVarP(&outputDir, "output-dir", "o", "", "Directory for file outputs")
	f.StringVar(&dsn, "dsn", "", "Database or search DSN")
	f.StringVar(&database, "database", "", "Replace the database named in a PostgreSQL DSN")
	f.StringVar(&pgSchema, "pg-schema", "", "PostgreSQL schema (default public)")
	f.StringVar(&tableMode, "table-mode", "", "Table mode (create|truncate|append)")
	f.IntVarP(&workers, "workers", "w", cfg.Workers, "Worker pool size (0 = number of CPUs)")
	f.IntVar(&batchSize, "batch-size", 0, "Records per batch (0 = automatic)")
	f.BoolVar(&sharedKeys, "shared-keys", false, "Draw primary keys from one shared allocator instead of per-batch partitions")
	f.StringVar(&metricsAddr, "metrics-addr", cfg.MetricsAddr, "Expose Prometheus metrics on this address while generating")
	f.BoolVar(&progress, "progress", false, "Print batch progress to stderr")
	return cmd
}

func printStats(stats *domain.RunStats) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DOMAIN\tREQUESTED\tGENERATED\tDISCARDED\tMODE\tSECONDS")
	for _, d := range stats.DomainStats {
		mode := "sampled"
		if d.Enumerated {
			mode = "enumerated"
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%.2f\n", d.Domain, d.Requested, d.Generated, d.Discarded, mode, d.DurationSeconds)
	}
	w.Flush()
	fmt.Printf("Total records: %d in %.2fs\n", stats.TotalRecords, stats.DurationSeconds)
}

func validateCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "validate <schema-id|path>",
		Short: "Check a schema without generating anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := app.NewRunService(schemas.NewFileRepository(schemasDir), nil,
				registry.DefaultCapabilityRegistry(), logging.Discard(), nil, "")
			report, err := svc.Validate(schemaRequest(args[0]))
			if err != nil {
				return err
			}

			if format == "json" {
				data, _ := json.MarshalIndent(report, "", "  ")
				fmt.Println(string(data))
			} else {
				for _, issue := range report.Issues {
					fmt.Println(issue.String())
				}
			}

			if report.Err() != nil {
				return fmt.Errorf("schema '%s' has %d error(s)", args[0], len(report.Errors()))
			}
			if format != "json" {
				fmt.Printf("Schema '%s' is valid (%d warning(s))\n", args[0], len(report.Warnings()))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text|json)")
	return cmd
}

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect schemas",
	}

	var format string

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := schemas.NewFileRepository(schemasDir).List()
			if err != nil {
				return err
			}

			if format == "json" {
				data, _ := json.MarshalIndent(list, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDOMAINS\tRECORDS\tFORMAT")
			for _, s := range list {
				names := make([]string, len(s.Domains))
				for i, d := range s.Domains {
					names[i] = d.Name
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.ID, strings.Join(names, ","), s.Settings.RecordCount, s.Settings.OutputFormat)
			}
			w.Flush()
			return nil
		},
	}
	listCmd.Flags().StringVar(&format, "format", "table", "Output format (table|json)")

	showCmd := &cobra.Command{
		Use:   "show <schema-id|path>",
		Short: "Print a schema with field order resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := schemas.NewFileRepository(schemasDir)
			var (
				schema *domain.Schema
				err    error
			)
			if isPath(args[0]) {
				schema, err = schemas.Load(args[0])
			} else {
				schema, err = repo.Get(args[0])
			}
			if err != nil {
				return err
			}

			data, err := yaml.Marshal(domain.Document{Generator: *schema})
			if err != nil {
				return err
			}
			fmt.Print(string(data))

			plans, err := exec.NewExecutor(registry.DefaultCapabilityRegistry(), nil, nil).Prepare(schema, time.Now())
			if err != nil {
				return err
			}
			fmt.Println("# generation order")
			for _, p := range plans {
				names := make([]string, len(p.Fields))
				for i, f := range p.Fields {
					names[i] = f.Name
				}
				fmt.Printf("# %s: %s\n", p.Name(), strings.Join(names, " -> "))
			}
			return nil
		},
	}

	cmd.AddCommand(listCmd, showCmd)
	return cmd
}

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect run history",
	}

	var (
		limit  int
		status string
		format string
	)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runRepo, err := openRuns()
			if err != nil {
				return err
			}
			defer runRepo.Close()

			list, err := runRepo.List(limit, status)
			if err != nil {
				return err
			}

			if format == "json" {
				data, _ := json.MarshalIndent(list, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSCHEMA\tFORMAT\tSEED\tSTATUS\tSTARTED")
			for _, r := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					r.ID[:8], r.SchemaID, r.OutputFormat, r.Seed, r.Status, r.StartedAt.Format("2006-01-02 15:04"))
			}
			w.Flush()
			return nil
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 20, "Limit results")
	listCmd.Flags().StringVar(&status, "status", "", "Filter by status (running|success|failed)")
	listCmd.Flags().StringVar(&format, "format", "table", "Output format (table|json)")

	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runRepo, err := openRuns()
			if err != nil {
				return err
			}
			defer runRepo.Close()

			run, err := runRepo.Get(args[0])
			if errors.Is(err, runs.ErrNotFound) {
				return fmt.Errorf("run %s not found", args[0])
			}
			if err != nil {
				return err
			}

			data, _ := json.MarshalIndent(run, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	}

	cmd.AddCommand(listCmd, showCmd)
	return cmd
}

func capabilitiesCmd() *cobra.Command {
	var helpers bool

	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "List faker capabilities for string fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := registry.DefaultCapabilityRegistry().List()
			if helpers {
				names = expr.Helpers()
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&helpers, "helpers", false, "List formula helpers for computed fields instead")
	return cmd
}

func checkCmd() *cobra.Command {
	var (
		format   string
		dsn      string
		pgSchema string
		probe    bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Connect to an output and report what it allows",
		RunE: func(cmd *cobra.Command, args []string) error {
			check, err := app.CheckSink(sinks.Options{Format: format, DSN: dsn, Schema: pgSchema}, probe)
			data, _ := json.MarshalIndent(check, "", "  ")
			fmt.Println(string(data))
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format to check")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Database or search DSN")
	cmd.Flags().StringVar(&pgSchema, "pg-schema", "", "PostgreSQL schema")
	cmd.Flags().BoolVar(&probe, "probe", false, "Create, fill and truncate a scratch table")
	_ = cmd.MarkFlagRequired("format")
	return cmd
}
