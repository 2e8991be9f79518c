package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/goextract/internal/config"
	"github.com/dbsmedya/goextract/internal/relation"
	"github.com/dbsmedya/goextract/internal/schema"
)

// outputWriter is used for printing output, can be overridden in tests
var outputWriter io.Writer = os.Stdout

// setOutputWriter sets the output writer (used for testing)
func setOutputWriter(w io.Writer) {
	outputWriter = w
}

// resetOutputWriter resets output to stdout (used for testing)
func resetOutputWriter() {
	outputWriter = os.Stdout
}

var planJob string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the relation tree a job will follow",
	Long: `Plan resolves the job's include tree against the schema and displays
which relations will be followed, their kinds and the tables they reach.
No database connection is made.

The plan shows:
  - Root selection (ids, where clause or every record)
  - Relation tree with resolved kinds and target tables
  - Relations that do not resolve and will be skipped
  - Effective batch, dialect and duplicate key settings

Example:
  goextract plan --config goextract.yaml --job customer_sample`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planJob, "job", "j", "",
		"Job name from configuration file (required)")
	planCmd.MarkFlagRequired("job")

	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if _, err := cfg.GetJob(planJob); err != nil {
		return err
	}
	applyJobOverrides(cfg, planJob, GetCLIOverrides(), "")

	s, err := schema.BuildFromConfig(&cfg.Schema)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	return renderPlan(outputWriter, cfg, planJob, s)
}

// renderPlan prints the execution plan of jobName.
func renderPlan(w io.Writer, cfg *config.Config, jobName string, s *schema.Schema) error {
	job, err := cfg.GetJob(jobName)
	if err != nil {
		return err
	}
	tree := relation.Normalize(job.Include)

	printHeader(w, "Extraction Plan: %s", jobName)

	fmt.Fprintln(w)
	printSection(w, "Job Overview")
	fmt.Fprintf(w, "  Root Table:   %s (PK: %s)\n", job.RootTable, s.PrimaryKey(job.RootTable))
	fmt.Fprintf(w, "  Roots:        %s\n", describeRoots(job))
	fmt.Fprintf(w, "  Max Depth:    %d levels\n", treeDepth(tree))

	fmt.Fprintln(w)
	printSection(w, "Relation Tree")
	lines := planLines(s, job.RootTable, tree)
	printAligned(w, lines, 4)

	if unresolved := schema.Check(s, job.RootTable, tree); len(unresolved) > 0 {
		fmt.Fprintln(w)
		printSection(w, "Unresolved Relations (skipped)")
		for _, u := range unresolved {
			fmt.Fprintf(w, "  %s %s (no relation %q on %s)\n",
				color.Yellow.Sprint("!"), u.Path, u.Name, u.Table)
		}
	}

	processing := cfg.GetJobProcessing(jobName)
	output := cfg.GetJobOutput(jobName)

	fmt.Fprintln(w)
	printSection(w, "Configuration")
	fmt.Fprintf(w, "  Batch Size:       %d\n", processing.BatchSize)
	fmt.Fprintf(w, "  Bulk Batch Size:  %d\n", processing.BulkBatchSize)
	fmt.Fprintf(w, "  Dialect:          %s\n", output.Dialect)
	fmt.Fprintf(w, "  On Duplicate:     %s\n", output.OnDuplicate)
	fmt.Fprintf(w, "  Output:           %s\n", output.Path)
	fmt.Fprintf(w, "  Obfuscated Fields: %d\n", len(cfg.Obfuscation))

	return nil
}

func describeRoots(job *config.JobConfig) string {
	switch {
	case len(job.IDs) > 0:
		return fmt.Sprintf("%d id(s) %v", len(job.IDs), job.IDs)
	case job.Where != "":
		return "WHERE " + job.Where
	}
	return "every record"
}

func treeDepth(t *relation.Tree) int {
	depth := 0
	for _, name := range t.Names() {
		if d := 1 + treeDepth(t.Child(name)); d > depth {
			depth = d
		}
	}
	return depth
}

// planLine is one row of the relation tree: the drawn branch and its description.
type planLine struct {
	branch string
	detail string
	ok     bool
}

func planLines(s *schema.Schema, root string, tree *relation.Tree) []planLine {
	lines := []planLine{{branch: root, detail: "(root)", ok: true}}
	return appendPlanLines(lines, s, root, tree, "")
}

func appendPlanLines(lines []planLine, s *schema.Schema, table string, tree *relation.Tree, indent string) []planLine {
	names := tree.Names()
	for i, name := range names {
		connector, childIndent := "├── ", "│   "
		if i == len(names)-1 {
			connector, childIndent = "└── ", "    "
		}

		line := planLine{branch: indent + connector + name}
		d, ok := s.Resolve(table, name)
		var target string
		if ok {
			target, ok = schema.TargetTable(s, d)
		}
		if !ok {
			line.detail = "unresolved, skipped"
			lines = append(lines, line)
			continue
		}

		line.ok = true
		line.detail = describeRelation(d, target)
		lines = append(lines, line)
		lines = appendPlanLines(lines, s, target, tree.Child(name), indent+childIndent)
	}
	return lines
}

func describeRelation(d schema.Descriptor, target string) string {
	switch rel := d.(type) {
	case schema.HasAndBelongsToMany:
		return fmt.Sprintf("%s -> %s via %s", rel.Kind(), target, rel.JoinTable)
	case schema.HasOneThrough:
		return fmt.Sprintf("%s -> %s through %s.%s", rel.Kind(), target, rel.Through, rel.Source)
	case schema.HasManyThrough:
		return fmt.Sprintf("%s -> %s through %s.%s", rel.Kind(), target, rel.Through, rel.Source)
	}
	return fmt.Sprintf("%s -> %s", d.Kind(), target)
}

// printAligned prints the branches padded to a common display width so the
// descriptions line up. Padding is computed before colors are applied.
func printAligned(w io.Writer, lines []planLine, padding int) {
	width := 0
	for _, l := range lines {
		if lw := runewidth.StringWidth(l.branch); lw > width {
			width = lw
		}
	}

	for _, l := range lines {
		detail := color.Cyan.Sprint(l.detail)
		if !l.ok {
			detail = color.Yellow.Sprint(l.detail)
		}
		fmt.Fprintf(w, "  %s%s%s\n",
			runewidth.FillRight(l.branch, width),
			strings.Repeat(" ", padding),
			detail,
		)
	}
}

// printHeader prints a formatted header
func printHeader(w io.Writer, format string, args ...interface{}) {
	title := fmt.Sprintf(format, args...)
	width := runewidth.StringWidth(title) + 4
	fmt.Fprintln(w, strings.Repeat("=", width))
	fmt.Fprintf(w, "  %s\n", color.Bold.Sprint(title))
	fmt.Fprintln(w, strings.Repeat("=", width))
}

// printSection prints a section header
func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "[%s]\n", title)
	fmt.Fprintln(w, strings.Repeat("-", runewidth.StringWidth(title)+2))
}
