package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/goextract/internal/config"
	"github.com/dbsmedya/goextract/internal/database"
	"github.com/dbsmedya/goextract/internal/relation"
	"github.com/dbsmedya/goextract/internal/schema"
)

var validateOffline bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and check source connectivity",
	Long: `Validate checks the configuration file, builds the schema and resolves
every job's include tree against it.

Checks performed:
  - Configuration syntax and required fields
  - Relation declarations (kinds and required columns)
  - Include trees (names that do not resolve are reported as warnings)
  - Source database connectivity (skipped with --offline)

Example:
  goextract validate --config goextract.yaml`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateOffline, "offline", false,
		"Skip the source database connectivity check")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	// Load configuration
	configFile := GetConfigFile()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cmd.Printf("\n=== Configuration Validation ===\n")
	cmd.Printf("Config file: %s\n", configFile)
	cmd.Printf("Jobs found: %d\n\n", len(cfg.Jobs))

	// Validate fields
	if err := cfg.Validate(); err != nil {
		cmd.Printf("❌ %v\n", err)
		return fmt.Errorf("configuration is invalid")
	}

	// Build relation metadata
	s, err := schema.BuildFromConfig(&cfg.Schema)
	if err != nil {
		cmd.Printf("❌ Schema build failed: %v\n", err)
		return fmt.Errorf("configuration is invalid")
	}

	// Check each job's include tree
	warnings := checkJobs(cmd, cfg, s)

	// Test connection
	if !validateOffline {
		if err := checkSource(cmd.Context(), cfg); err != nil {
			cmd.Printf("❌ Source database: %v\n", err)
			return fmt.Errorf("source database is not reachable")
		}
		cmd.Printf("✅ Source database reachable\n")
	}

	cmd.Println("\n=== Validation Complete ===")
	if warnings > 0 {
		cmd.Printf("⚠️  %d relation(s) will be skipped\n", warnings)
	} else {
		cmd.Println("✅ All jobs validated successfully")
	}
	return nil
}

// checkJobs prints every job's unresolved relation names and returns their count.
func checkJobs(cmd *cobra.Command, cfg *config.Config, s *schema.Schema) int {
	warnings := 0
	for _, jobName := range cfg.ListJobs() {
		job, _ := cfg.GetJob(jobName)
		cmd.Printf("--- Job: %s ---\n", jobName)
		cmd.Printf("Root table: %s\n", job.RootTable)

		if !s.HasTable(job.RootTable) {
			cmd.Printf("⚠️  Root table %q is not declared in schema (primary key %q assumed)\n",
				job.RootTable, schema.DefaultPrimaryKey)
		}

		unresolved := schema.Check(s, job.RootTable, relation.Normalize(job.Include))
		for _, u := range unresolved {
			cmd.Printf("⚠️  %s: no relation %q on %s\n", u.Path, u.Name, u.Table)
		}
		warnings += len(unresolved)

		if len(unresolved) == 0 {
			cmd.Printf("✅ Include tree resolves\n")
		}
		cmd.Println()
	}
	return warnings
}

func checkSource(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	dbManager := database.NewManager(cfg)
	if err := dbManager.ConnectSource(ctx); err != nil {
		return err
	}
	defer dbManager.Close()
	return dbManager.Ping(ctx)
}
