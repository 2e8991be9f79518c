package config

import (
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Source.Driver != "mysql" {
		t.Errorf("expected source driver 'mysql', got %s", cfg.Source.Driver)
	}
	if cfg.Source.Port != 3306 {
		t.Errorf("expected source port 3306, got %d", cfg.Source.Port)
	}
	if cfg.Source.TLS != "preferred" {
		t.Errorf("expected source TLS 'preferred', got %s", cfg.Source.TLS)
	}
	if cfg.Source.MaxConnections != 10 {
		t.Errorf("expected source max_connections 10, got %d", cfg.Source.MaxConnections)
	}

	if cfg.Processing.BatchSize != 1000 {
		t.Errorf("expected batch_size 1000, got %d", cfg.Processing.BatchSize)
	}
	if cfg.Processing.BulkBatchSize != 10000 {
		t.Errorf("expected bulk_batch_size 10000, got %d", cfg.Processing.BulkBatchSize)
	}

	if cfg.Output.OnDuplicate != "fail" {
		t.Errorf("expected on_duplicate 'fail', got %s", cfg.Output.OnDuplicate)
	}
	if cfg.Output.Path != "-" {
		t.Errorf("expected output path '-', got %s", cfg.Output.Path)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected logging level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Output != "stderr" {
		t.Errorf("expected logging output 'stderr', got %s", cfg.Logging.Output)
	}
}

func TestJobProcessingFallback(t *testing.T) {
	global := ProcessingConfig{BatchSize: 1000, BulkBatchSize: 10000}

	tests := []struct {
		name     string
		job      JobConfig
		expected ProcessingConfig
	}{
		{
			name:     "no override",
			job:      JobConfig{RootTable: "orders"},
			expected: global,
		},
		{
			name:     "batch size only",
			job:      JobConfig{Processing: &ProcessingConfig{BatchSize: 50}},
			expected: ProcessingConfig{BatchSize: 50, BulkBatchSize: 10000},
		},
		{
			name:     "both",
			job:      JobConfig{Processing: &ProcessingConfig{BatchSize: 50, BulkBatchSize: 200}},
			expected: ProcessingConfig{BatchSize: 50, BulkBatchSize: 200},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.job.GetJobProcessing(global)
			if got != tt.expected {
				t.Errorf("GetJobProcessing() = %+v, expected %+v", got, tt.expected)
			}
		})
	}
}

func TestGetJobOutput_DialectFollowsSource(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source.Driver = "postgres"
	cfg.Jobs = map[string]JobConfig{
		"plain":    {RootTable: "orders"},
		"override": {RootTable: "orders", Output: &OutputConfig{OnDuplicate: "ignore", Dialect: "mysql", Path: "out.sql"}},
	}

	plain := cfg.GetJobOutput("plain")
	if plain.Dialect != "postgres" {
		t.Errorf("expected dialect to follow source driver, got %s", plain.Dialect)
	}
	if plain.OnDuplicate != "fail" {
		t.Errorf("expected global on_duplicate, got %s", plain.OnDuplicate)
	}

	override := cfg.GetJobOutput("override")
	if override.Dialect != "mysql" || override.OnDuplicate != "ignore" || override.Path != "out.sql" {
		t.Errorf("job output not applied: %+v", override)
	}

	missing := cfg.GetJobOutput("missing")
	if missing.Dialect != "postgres" {
		t.Errorf("expected global output for unknown job, got %+v", missing)
	}

	cfg.Source.Driver = ""
	if d := cfg.GetJobOutput("plain").Dialect; d != "mysql" {
		t.Errorf("expected mysql when no driver is set, got %s", d)
	}
}

func TestGetJobProcessing_UnknownJob(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.GetJobProcessing("missing"); got != cfg.Processing {
		t.Errorf("expected global processing, got %+v", got)
	}
}
