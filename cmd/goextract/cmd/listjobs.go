package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/goextract/internal/config"
	"github.com/dbsmedya/goextract/internal/relation"
)

var listJobsCmd = &cobra.Command{
	Use:   "list-jobs",
	Short: "List all jobs defined in configuration",
	Long: `List-jobs displays all extraction jobs defined in the configuration file
along with their root selection and include tree.

Example:
  goextract list-jobs --config goextract.yaml`,
	RunE: runListJobs,
}

func init() {
	rootCmd.AddCommand(listJobsCmd)
}

func runListJobs(cmd *cobra.Command, args []string) error {
	// Load configuration
	configFile := GetConfigFile()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Job names come back sorted
	jobNames := cfg.ListJobs()
	if len(jobNames) == 0 {
		cmd.Printf("No jobs defined in %s\n", configFile)
		return nil
	}

	cmd.Printf("Jobs defined in %s:\n\n", configFile)

	for i, jobName := range jobNames {
		job, err := cfg.GetJob(jobName)
		if err != nil {
			return fmt.Errorf("failed to get job %q: %w", jobName, err)
		}

		// Job header
		cmd.Printf("%d. %s\n", i+1, jobName)
		cmd.Printf("   Root Table:    %s\n", job.RootTable)

		// Root selection: explicit ids win over WHERE
		switch {
		case len(job.IDs) > 0:
			cmd.Printf("   IDs:           %v\n", job.IDs)
		case job.Where != "":
			cmd.Printf("   WHERE:         %s\n", job.Where)
		default:
			cmd.Printf("   Roots:         (every record)\n")
		}

		// Include tree in declared order
		tree := relation.Normalize(job.Include)
		cmd.Printf("   Include:       %s\n", tree)

		// Job-specific processing config
		if job.Processing != nil {
			cmd.Printf("   Processing:    Custom (batch_size=%d, bulk_batch_size=%d)\n",
				job.Processing.BatchSize, job.Processing.BulkBatchSize)
		}

		// Job-specific output config
		if job.Output != nil {
			cmd.Printf("   Output:        Custom (on_duplicate=%s, dialect=%s, path=%s)\n",
				job.Output.OnDuplicate, job.Output.Dialect, job.Output.Path)
		}

		// Add spacing between jobs
		if i < len(jobNames)-1 {
			cmd.Println()
		}
	}

	cmd.Printf("\nTotal: %d job(s)\n", len(jobNames))
	return nil
}
