package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/goextract/internal/config"
	"github.com/dbsmedya/goextract/internal/database"
	"github.com/dbsmedya/goextract/internal/dialect"
	"github.com/dbsmedya/goextract/internal/exporter"
	"github.com/dbsmedya/goextract/internal/logger"
	"github.com/dbsmedya/goextract/internal/provider"
	"github.com/dbsmedya/goextract/internal/relation"
	"github.com/dbsmedya/goextract/internal/schema"
)

var (
	exportJob    string
	exportOutput string
	exportBulk   bool
	exportIDs    []string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a job's subgraph as INSERT statements",
	Long: `Export selects the root records of a job, follows the relations declared
in its include tree and writes one INSERT statement per record and join
row reached.

Root records are chosen by, in order of precedence:
  1. --ids on the command line
  2. ids in the job configuration
  3. every row of the root table matching the job's where clause

By default statements are streamed batch by batch. --bulk collects the
whole subgraph first and writes it in one pass.

Example:
  goextract export --config goextract.yaml --job customer_sample --ids 1,2,3 --output sample.sql`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportJob, "job", "j", "",
		"Job name from configuration file (required)")
	exportCmd.MarkFlagRequired("job")

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "",
		"Output file, '-' for stdout (overrides output.path)")
	exportCmd.Flags().BoolVar(&exportBulk, "bulk", false,
		"Collect the whole subgraph before writing")
	exportCmd.Flags().StringSliceVar(&exportIDs, "ids", nil,
		"Root primary keys (comma separated, overrides the job's ids)")

	rootCmd.AddCommand(exportCmd)
}

// exportOptions are the per-run choices that do not live in the config file.
type exportOptions struct {
	Job  string
	IDs  []interface{} // nil uses the job's ids
	Bulk bool
}

func runExport(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if _, err := cfg.GetJob(exportJob); err != nil {
		return err
	}

	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat, 0, "")
	applyJobOverrides(cfg, exportJob, overrides, exportOutput)

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()
	log = log.WithJob(exportJob)

	log.Infow("Starting export", "config", configFile, "bulk", exportBulk)

	s, err := schema.BuildFromConfig(&cfg.Schema)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	ctx, stop := database.SignalContext(context.Background(), func(sig os.Signal) {
		log.Warnw("Received shutdown signal, stopping export", "signal", sig.String())
	})
	defer stop()

	dbManager := database.NewManager(cfg)
	if err := dbManager.ConnectSource(ctx); err != nil {
		return err
	}
	defer dbManager.Close()

	sourceDialect, err := dialect.ByName(cfg.Source.Driver)
	if err != nil {
		return err
	}
	p, err := provider.NewSQLProvider(dbManager.Source, sourceDialect, s)
	if err != nil {
		return err
	}
	p.SetLogger(log)

	out, closeOut, err := openOutput(cfg.GetJobOutput(exportJob).Path, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	opts := exportOptions{Job: exportJob, IDs: parseIDs(exportIDs), Bulk: exportBulk}
	result, err := runExportWith(ctx, cfg, opts, s, p, log, out)
	if closeErr := closeOut(); closeErr != nil && err == nil {
		err = fmt.Errorf("failed to close output: %w", closeErr)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Export cancelled by user")
			return nil
		}
		return fmt.Errorf("export failed: %w", err)
	}

	printResult(cmd.ErrOrStderr(), exportJob, result)
	return nil
}

// applyJobOverrides writes CLI overrides into the job itself, so they win over
// both the job's and the global settings.
func applyJobOverrides(cfg *config.Config, jobName string, o CLIOverrides, outputPath string) {
	job, err := cfg.GetJob(jobName)
	if err != nil {
		return
	}
	processing, output := cfg.ApplyJobOverrides(jobName, o.BatchSize, o.OnDuplicate)
	if outputPath != "" {
		output.Path = outputPath
	}
	job.Processing = &processing
	job.Output = &output
	cfg.Jobs[jobName] = *job
}

// runExportWith runs one export of opts.Job against p and writes statements
// to w, one per line.
func runExportWith(
	ctx context.Context,
	cfg *config.Config,
	opts exportOptions,
	s *schema.Schema,
	p provider.Provider,
	log *logger.Logger,
	w io.Writer,
) (exporter.Result, error) {
	job, err := cfg.GetJob(opts.Job)
	if err != nil {
		return exporter.Result{}, err
	}

	for _, u := range schema.Check(s, job.RootTable, relation.Normalize(job.Include)) {
		log.Warnw("Relation does not resolve and will be skipped",
			"path", u.Path, "table", u.Table, "relation", u.Name)
	}

	e, err := exporter.NewFromJob(cfg, opts.Job, s, p)
	if err != nil {
		return exporter.Result{}, err
	}
	e.SetLogger(log)

	ids := opts.IDs
	if ids == nil && len(job.IDs) > 0 {
		ids = job.IDs
	}

	bw := bufio.NewWriter(w)
	if opts.Bulk {
		statements, err := e.Explore(ctx, job.RootTable, ids, job.Include)
		if err != nil {
			return e.LastResult(), err
		}
		if err := writeStatements(bw, statements); err != nil {
			return e.LastResult(), err
		}
		return e.LastResult(), bw.Flush()
	}

	err = e.ExploreStream(ctx, job.RootTable, ids, job.Include, cfg.GetJobProcessing(opts.Job).BatchSize,
		func(statements []string) error {
			if err := writeStatements(bw, statements); err != nil {
				return err
			}
			return bw.Flush()
		})
	if flushErr := bw.Flush(); err == nil {
		err = flushErr
	}
	return e.LastResult(), err
}

func writeStatements(w io.Writer, statements []string) error {
	for _, stmt := range statements {
		if _, err := io.WriteString(w, stmt+"\n"); err != nil {
			return fmt.Errorf("failed to write statement: %w", err)
		}
	}
	return nil
}

// openOutput returns stdout for "" and "-", otherwise a newly created file.
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// parseIDs converts --ids values, keeping non-numeric keys as strings.
// No values yields nil so the job's own ids apply.
func parseIDs(values []string) []interface{} {
	if len(values) == 0 {
		return nil
	}
	ids := make([]interface{}, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			ids = append(ids, n)
			continue
		}
		ids = append(ids, v)
	}
	// Blank input must not hide the job's own ids.
	if len(ids) == 0 {
		return nil
	}
	return ids
}

func printResult(w io.Writer, jobName string, result exporter.Result) {
	fmt.Fprintf(w, "\n=== Export Complete ===\n")
	fmt.Fprintf(w, "Job: %s\n", jobName)
	fmt.Fprintf(w, "Run: %s\n", result.RunID)
	fmt.Fprintf(w, "Mode: %s\n", result.Mode)
	fmt.Fprintf(w, "Duration: %s\n", result.Duration)
	fmt.Fprintf(w, "Records: %d\n", result.Discovery.RecordsFound)
	fmt.Fprintf(w, "Join Rows: %d\n", result.Discovery.JoinRows)
	fmt.Fprintf(w, "Statements: %d\n", result.Statements)
	if result.Discovery.Skipped > 0 {
		fmt.Fprintf(w, "Skipped Relations: %d\n", result.Discovery.Skipped)
	}
	if result.Discovery.Keyless > 0 {
		fmt.Fprintf(w, "Records Without Primary Key: %d\n", result.Discovery.Keyless)
	}
}
