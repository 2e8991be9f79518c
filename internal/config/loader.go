package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrJobNotFound is returned when a job name is not defined in the configuration.
var ErrJobNotFound = errors.New("job not found in configuration")

// Load reads configuration from the specified file path.
// It supports YAML files and performs environment variable substitution.
func Load(configPath string) (*Config, error) {
	// Obfuscation keys are "table.field", so "." cannot be the key delimiter.
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := LoadFromViper(v)
	if err != nil {
		return nil, err
	}

	// Viper folds map keys to lower case and loses their order. Table names,
	// relation names and include trees are case and order sensitive, so they
	// are read a second time straight from the YAML document.
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := overlayOrdered(cfg, raw); err != nil {
		return nil, fmt.Errorf("failed to parse relation declarations: %w", err)
	}

	return cfg, nil
}

// LoadFromViper creates a Config from an existing Viper instance.
// Useful for testing or when Viper is configured externally.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := substituteEnvVars(cfg); err != nil {
		return nil, fmt.Errorf("failed to substitute environment variables: %w", err)
	}

	return cfg, nil
}

// orderedDocument is the subset of the file that must keep its original keys.
type orderedDocument struct {
	Schema      SchemaConfig      `yaml:"schema"`
	Obfuscation map[string]string `yaml:"obfuscation"`
	Jobs        map[string]struct {
		RootTable string    `yaml:"root_table"`
		Include   yaml.Node `yaml:"include"`
	} `yaml:"jobs"`
}

// overlayOrdered replaces the case-folded sections of cfg with their verbatim YAML form.
func overlayOrdered(cfg *Config, raw []byte) error {
	var doc orderedDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}

	if len(doc.Schema.Tables) > 0 {
		cfg.Schema = doc.Schema
	}
	if len(doc.Obfuscation) > 0 {
		cfg.Obfuscation = doc.Obfuscation
	}
	if len(doc.Jobs) == 0 {
		return nil
	}

	jobs := make(map[string]JobConfig, len(doc.Jobs))
	for name, ordered := range doc.Jobs {
		job, ok := cfg.Jobs[strings.ToLower(name)]
		if !ok {
			job = cfg.Jobs[name]
		}
		if ordered.RootTable != "" {
			job.RootTable = ordered.RootTable
		}
		if ordered.Include.Kind != 0 {
			node := ordered.Include
			job.Include = &node
		}
		jobs[name] = job
	}
	cfg.Jobs = jobs
	return nil
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func substituteEnvVars(cfg *Config) error {
	cfg.Source.Host = expandEnvVar(cfg.Source.Host)
	cfg.Source.User = expandEnvVar(cfg.Source.User)
	cfg.Source.Password = expandEnvVar(cfg.Source.Password)
	cfg.Source.Database = expandEnvVar(cfg.Source.Database)

	cfg.Output.Path = expandEnvVar(cfg.Output.Path)
	cfg.Logging.Output = expandEnvVar(cfg.Logging.Output)

	return nil
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Return original if env var not found
		return match
	})
}

// GetJob retrieves a specific job configuration by name.
func (c *Config) GetJob(name string) (*JobConfig, error) {
	job, exists := c.Jobs[name]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrJobNotFound, name)
	}
	return &job, nil
}

// ListJobs returns all job names defined in the configuration, sorted.
func (c *Config) ListJobs() []string {
	return sortedKeys(c.Jobs)
}

// ApplyOverrides applies CLI flag overrides to the global configuration.
// Only non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(logLevel, logFormat string, batchSize int, onDuplicate string) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	if batchSize > 0 {
		c.Processing.BatchSize = batchSize
	}
	if onDuplicate != "" {
		c.Output.OnDuplicate = onDuplicate
	}
}

// ApplyJobOverrides applies CLI flag overrides to a specific job's configuration.
// CLI values win over job-specific values, which win over global ones.
func (c *Config) ApplyJobOverrides(jobName string, batchSize int, onDuplicate string) (ProcessingConfig, OutputConfig) {
	processing := c.GetJobProcessing(jobName)
	output := c.GetJobOutput(jobName)

	if batchSize > 0 {
		processing.BatchSize = batchSize
	}
	if onDuplicate != "" {
		output.OnDuplicate = onDuplicate
	}

	return processing, output
}
