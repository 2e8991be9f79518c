// Package config provides configuration structures and loading for GoExtract.
package config

// Config represents the complete application configuration.
type Config struct {
	Source      DatabaseConfig       `yaml:"source" mapstructure:"source"`
	Schema      SchemaConfig         `yaml:"schema" mapstructure:"schema"`
	Jobs        map[string]JobConfig `yaml:"jobs" mapstructure:"jobs"`
	Processing  ProcessingConfig     `yaml:"processing" mapstructure:"processing"`
	Output      OutputConfig         `yaml:"output" mapstructure:"output"`
	Obfuscation map[string]string    `yaml:"obfuscation" mapstructure:"obfuscation"` // "table.field" or "field" -> strategy name
	Logging     LoggingConfig        `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig represents the source database connection configuration.
type DatabaseConfig struct {
	Driver             string `yaml:"driver" mapstructure:"driver"` // mysql or postgres
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// SchemaConfig declares the tables and the relations that can be followed between them.
type SchemaConfig struct {
	Tables map[string]TableConfig `yaml:"tables" mapstructure:"tables"`
}

// TableConfig describes one table: its primary key and its named relations.
type TableConfig struct {
	PrimaryKey string                    `yaml:"primary_key" mapstructure:"primary_key"` // defaults to "id"
	Relations  map[string]RelationConfig `yaml:"relations" mapstructure:"relations"`
}

// RelationConfig describes how to follow one named relation from its owning table.
type RelationConfig struct {
	Kind                  string `yaml:"kind" mapstructure:"kind"` // belongs_to, has_one, has_one_through, has_many, has_many_through, has_and_belongs_to_many
	Table                 string `yaml:"table" mapstructure:"table"`
	ForeignKey            string `yaml:"foreign_key" mapstructure:"foreign_key"`
	Through               string `yaml:"through" mapstructure:"through"`
	Source                string `yaml:"source" mapstructure:"source"`
	JoinTable             string `yaml:"join_table" mapstructure:"join_table"`
	AssociationForeignKey string `yaml:"association_foreign_key" mapstructure:"association_foreign_key"`
}

// JobConfig represents an extraction job: a root table, its seeds and the relation tree to follow.
type JobConfig struct {
	RootTable  string            `yaml:"root_table" mapstructure:"root_table"`
	IDs        []interface{}     `yaml:"ids" mapstructure:"ids"`     // empty means every record of root_table
	Where      string            `yaml:"where" mapstructure:"where"` // only used when ids is empty
	Include    interface{}       `yaml:"include" mapstructure:"include"`
	Processing *ProcessingConfig `yaml:"processing,omitempty" mapstructure:"processing"`
	Output     *OutputConfig     `yaml:"output,omitempty" mapstructure:"output"`
}

// ProcessingConfig represents batch processing settings.
type ProcessingConfig struct {
	BatchSize     int `yaml:"batch_size" mapstructure:"batch_size"`
	BulkBatchSize int `yaml:"bulk_batch_size" mapstructure:"bulk_batch_size"`
}

// OutputConfig controls statement rendering.
type OutputConfig struct {
	OnDuplicate string `yaml:"on_duplicate" mapstructure:"on_duplicate"` // fail, ignore, override
	Dialect     string `yaml:"dialect" mapstructure:"dialect"`           // defaults to the source driver
	Path        string `yaml:"path" mapstructure:"path"`                 // "-" or empty for stdout
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Source: DatabaseConfig{
			Driver:             "mysql",
			Port:               3306,
			TLS:                "preferred",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		Processing: ProcessingConfig{
			BatchSize:     1000,
			BulkBatchSize: 10000,
		},
		Output: OutputConfig{
			OnDuplicate: "fail",
			Path:        "-",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// GetJobProcessing returns the processing config for a job by name, falling back to global if not set.
func (c *Config) GetJobProcessing(jobName string) ProcessingConfig {
	job, err := c.GetJob(jobName)
	if err != nil {
		return c.Processing
	}
	return job.GetJobProcessing(c.Processing)
}

// GetJobOutput returns the output config for a job by name, falling back to global if not set.
func (c *Config) GetJobOutput(jobName string) OutputConfig {
	job, err := c.GetJob(jobName)
	if err != nil {
		return c.effectiveOutput(c.Output)
	}
	return c.effectiveOutput(job.GetJobOutput(c.Output))
}

// effectiveOutput fills the dialect from the source driver when unset.
func (c *Config) effectiveOutput(out OutputConfig) OutputConfig {
	if out.Dialect == "" {
		out.Dialect = c.Source.Driver
	}
	if out.Dialect == "" {
		out.Dialect = "mysql"
	}
	return out
}

// GetJobProcessing returns the processing config for a job, falling back to global if not set.
func (jc *JobConfig) GetJobProcessing(global ProcessingConfig) ProcessingConfig {
	if jc.Processing == nil {
		return global
	}

	result := global
	if jc.Processing.BatchSize > 0 {
		result.BatchSize = jc.Processing.BatchSize
	}
	if jc.Processing.BulkBatchSize > 0 {
		result.BulkBatchSize = jc.Processing.BulkBatchSize
	}
	return result
}

// GetJobOutput returns the output config for a job, falling back to global if not set.
func (jc *JobConfig) GetJobOutput(global OutputConfig) OutputConfig {
	if jc.Output == nil {
		return global
	}

	result := global
	if jc.Output.OnDuplicate != "" {
		result.OnDuplicate = jc.Output.OnDuplicate
	}
	if jc.Output.Dialect != "" {
		result.Dialect = jc.Output.Dialect
	}
	if jc.Output.Path != "" {
		result.Path = jc.Output.Path
	}
	return result
}
