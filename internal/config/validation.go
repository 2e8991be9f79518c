package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dbsmedya/goextract/internal/sqlutil"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Relation kinds accepted in schema.tables.*.relations.*.kind.
const (
	KindBelongsTo           = "belongs_to"
	KindHasOne              = "has_one"
	KindHasOneThrough       = "has_one_through"
	KindHasMany             = "has_many"
	KindHasManyThrough      = "has_many_through"
	KindHasAndBelongsToMany = "has_and_belongs_to_many"
)

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateDatabase("source", &c.Source)...)
	errors = append(errors, c.validateSchema()...)

	if len(c.Jobs) == 0 {
		errors = append(errors, ValidationError{
			Field:   "jobs",
			Message: "at least one job must be defined",
		})
	}
	for _, name := range sortedKeys(c.Jobs) {
		job := c.Jobs[name]
		errors = append(errors, c.validateJob(name, &job)...)
	}

	errors = append(errors, validateProcessing("processing", &c.Processing)...)
	errors = append(errors, validateOutput("output", &c.Output)...)
	errors = append(errors, c.validateObfuscation()...)
	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateDatabase(prefix string, db *DatabaseConfig) ValidationErrors {
	var errors ValidationErrors

	validDrivers := map[string]bool{"mysql": true, "postgres": true, "postgresql": true, "": true}
	if !validDrivers[db.Driver] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".driver",
			Message: "driver must be 'mysql' or 'postgres'",
		})
	}

	if db.Host == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".host",
			Message: "host is required",
		})
	}

	if db.Port <= 0 || db.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".port",
			Message: "port must be between 1 and 65535",
		})
	}

	if db.User == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".user",
			Message: "user is required",
		})
	}

	if db.Database == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".database",
			Message: "database name is required",
		})
	}

	validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
	if !validTLS[db.TLS] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".tls",
			Message: "tls must be 'disable', 'preferred', or 'required'",
		})
	}

	if db.MaxConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_connections",
			Message: "max_connections cannot be negative",
		})
	}

	if db.MaxIdleConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_idle_connections",
			Message: "max_idle_connections cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateSchema() ValidationErrors {
	var errors ValidationErrors

	for _, table := range sortedKeys(c.Schema.Tables) {
		tc := c.Schema.Tables[table]
		prefix := fmt.Sprintf("schema.tables.%s", table)
		errors = append(errors, validateIdentifier(prefix, table)...)
		errors = append(errors, validateIdentifier(prefix+".primary_key", tc.PrimaryKey)...)
		for _, name := range sortedKeys(tc.Relations) {
			rel := tc.Relations[name]
			errors = append(errors, validateRelation(prefix+".relations."+name, &rel)...)
		}
	}

	return errors
}

// validateIdentifier rejects table and column names that cannot be quoted
// safely. Empty values are left to the required-field checks.
func validateIdentifier(field, name string) ValidationErrors {
	if name == "" || sqlutil.IsValidIdentifier(name) {
		return nil
	}
	return ValidationErrors{{
		Field:   field,
		Message: (&sqlutil.InvalidIdentifierError{Name: name}).Error(),
	}}
}

func validateRelation(prefix string, rel *RelationConfig) ValidationErrors {
	var errors ValidationErrors
	required := func(field, value string) {
		if value == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + "." + field,
				Message: fmt.Sprintf("%s is required for kind %q", field, rel.Kind),
			})
		}
	}

	switch rel.Kind {
	case KindBelongsTo, KindHasOne, KindHasMany:
		required("table", rel.Table)
		required("foreign_key", rel.ForeignKey)
	case KindHasOneThrough, KindHasManyThrough:
		required("through", rel.Through)
		required("source", rel.Source)
	case KindHasAndBelongsToMany:
		required("table", rel.Table)
		required("join_table", rel.JoinTable)
		required("foreign_key", rel.ForeignKey)
		required("association_foreign_key", rel.AssociationForeignKey)
	default:
		errors = append(errors, ValidationError{
			Field:   prefix + ".kind",
			Message: fmt.Sprintf("unknown relation kind %q", rel.Kind),
		})
	}

	errors = append(errors, validateIdentifier(prefix+".table", rel.Table)...)
	errors = append(errors, validateIdentifier(prefix+".join_table", rel.JoinTable)...)
	errors = append(errors, validateIdentifier(prefix+".foreign_key", rel.ForeignKey)...)
	errors = append(errors, validateIdentifier(prefix+".association_foreign_key", rel.AssociationForeignKey)...)

	return errors
}

func (c *Config) validateJob(name string, job *JobConfig) ValidationErrors {
	var errors ValidationErrors
	prefix := fmt.Sprintf("jobs.%s", name)

	if job.RootTable == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".root_table",
			Message: "root_table is required",
		})
	}
	errors = append(errors, validateIdentifier(prefix+".root_table", job.RootTable)...)

	if len(job.IDs) > 0 && job.Where != "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".where",
			Message: "where cannot be combined with explicit ids",
		})
	}

	if job.Processing != nil {
		errors = append(errors, validateJobProcessing(prefix+".processing", job.Processing)...)
	}
	if job.Output != nil {
		errors = append(errors, validateOutput(prefix+".output", job.Output)...)
	}

	return errors
}

func validateProcessing(prefix string, p *ProcessingConfig) ValidationErrors {
	var errors ValidationErrors

	if p.BatchSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".batch_size",
			Message: "batch_size must be positive",
		})
	}

	if p.BulkBatchSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".bulk_batch_size",
			Message: "bulk_batch_size must be positive",
		})
	}

	return errors
}

// validateJobProcessing allows zero values, which fall back to the global settings.
func validateJobProcessing(prefix string, p *ProcessingConfig) ValidationErrors {
	var errors ValidationErrors

	if p.BatchSize < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".batch_size",
			Message: "batch_size cannot be negative",
		})
	}

	if p.BulkBatchSize < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".bulk_batch_size",
			Message: "bulk_batch_size cannot be negative",
		})
	}

	return errors
}

func validateOutput(prefix string, o *OutputConfig) ValidationErrors {
	var errors ValidationErrors

	validPolicies := map[string]bool{"fail": true, "ignore": true, "override": true, "": true}
	if !validPolicies[o.OnDuplicate] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".on_duplicate",
			Message: "on_duplicate must be 'fail', 'ignore', or 'override'",
		})
	}

	validDialects := map[string]bool{"mysql": true, "postgres": true, "postgresql": true, "": true}
	if !validDialects[o.Dialect] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".dialect",
			Message: "dialect must be 'mysql' or 'postgres'",
		})
	}

	return errors
}

// validStrategies mirrors the named strategies registered by the obfuscate package.
var validStrategies = map[string]bool{"": true, "shuffle": true, "mask": true, "hash": true, "email": true, "null": true}

func (c *Config) validateObfuscation() ValidationErrors {
	var errors ValidationErrors

	for _, field := range sortedKeys(c.Obfuscation) {
		if strings.TrimSpace(field) == "" || strings.HasSuffix(field, ".") {
			errors = append(errors, ValidationError{
				Field:   "obfuscation",
				Message: fmt.Sprintf("invalid field key %q", field),
			})
			continue
		}
		if strategy := c.Obfuscation[field]; !validStrategies[strategy] {
			errors = append(errors, ValidationError{
				Field:   "obfuscation." + field,
				Message: fmt.Sprintf("unknown strategy %q", strategy),
			})
		}
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
