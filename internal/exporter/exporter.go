// Package exporter runs the walker and the serializer together, either over a
// whole subgraph at once (bulk) or batch by batch (streaming).
package exporter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dbsmedya/goextract/internal/config"
	"github.com/dbsmedya/goextract/internal/dialect"
	"github.com/dbsmedya/goextract/internal/logger"
	"github.com/dbsmedya/goextract/internal/obfuscate"
	"github.com/dbsmedya/goextract/internal/provider"
	"github.com/dbsmedya/goextract/internal/relation"
	"github.com/dbsmedya/goextract/internal/schema"
	"github.com/dbsmedya/goextract/internal/seen"
	"github.com/dbsmedya/goextract/internal/serializer"
	"github.com/dbsmedya/goextract/internal/types"
	"github.com/dbsmedya/goextract/internal/walker"
)

// DefaultBulkBatchSize is the page size of bulk exports when none is configured.
const DefaultBulkBatchSize = 10000

// BatchFunc receives one non-empty, ordered list of statements. Returning
// walker.ErrStop ends the export without error.
type BatchFunc func(statements []string) error

// Result contains statistics of the last export call.
type Result struct {
	RunID       string
	Mode        string // bulk or stream
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Statements  int64
	Batches     int // statement batches delivered (stream) or 1 (bulk)
	Discovery   types.DiscoveryStats
	Success     bool
}

// Exporter produces INSERT statements for the subgraph reachable from root records.
type Exporter struct {
	resolver      schema.Resolver
	provider      provider.Provider
	serializer    *serializer.Serializer
	bulkBatchSize int
	where         string
	logger        *logger.Logger
	last          Result
}

// New creates an exporter. bulkBatchSize <= 0 uses DefaultBulkBatchSize.
func New(r schema.Resolver, p provider.Provider, s *serializer.Serializer, bulkBatchSize int) (*Exporter, error) {
	if r == nil {
		return nil, fmt.Errorf("resolver is nil")
	}
	if p == nil {
		return nil, fmt.Errorf("provider is nil")
	}
	if s == nil {
		return nil, fmt.Errorf("serializer is nil")
	}
	if bulkBatchSize <= 0 {
		bulkBatchSize = DefaultBulkBatchSize
	}
	return &Exporter{
		resolver:      r,
		provider:      p,
		serializer:    s,
		bulkBatchSize: bulkBatchSize,
		logger:        logger.NewDefault(),
	}, nil
}

// NewFromJob creates an exporter configured by the named job: its output
// dialect and on-duplicate policy, the global obfuscation rules, the bulk
// page size and the job's root condition.
func NewFromJob(cfg *config.Config, jobName string, r schema.Resolver, p provider.Provider) (*Exporter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	job, err := cfg.GetJob(jobName)
	if err != nil {
		return nil, err
	}

	output := cfg.GetJobOutput(jobName)
	d, err := dialect.ByName(output.Dialect)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", jobName, err)
	}
	policy, err := dialect.ParsePolicy(output.OnDuplicate)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", jobName, err)
	}
	rules, err := obfuscate.FromConfig(cfg.Obfuscation)
	if err != nil {
		return nil, err
	}
	s, err := serializer.New(d, obfuscate.New(rules), policy)
	if err != nil {
		return nil, err
	}

	e, err := New(r, p, s, cfg.GetJobProcessing(jobName).BulkBatchSize)
	if err != nil {
		return nil, err
	}
	e.where = job.Where
	return e, nil
}

// SetLogger sets a custom logger for the exporter.
func (e *Exporter) SetLogger(log *logger.Logger) {
	e.logger = log
}

// SetWhere restricts root selection to rows matching a raw SQL condition
// when no ids are given.
func (e *Exporter) SetWhere(where string) {
	e.where = where
}

// LastResult returns statistics of the most recent Explore or ExploreStream call.
func (e *Exporter) LastResult() Result {
	return e.last
}

// Explore walks the entire subgraph reachable from the root records, then
// serializes it in one pass. ids == nil selects every root record; empty
// ids yield an empty result.
func (e *Exporter) Explore(ctx context.Context, root string, ids []interface{}, decl interface{}) ([]string, error) {
	res, log := e.begin("bulk")
	tree := relation.Normalize(decl)

	w, err := e.newWalker(log, e.bulkBatchSize)
	if err != nil {
		return nil, err
	}

	var all types.Batch
	stats, err := w.Walk(ctx, seen.New(), root, ids, e.rootWhere(ids), tree, func(b types.Batch) error {
		all = append(all, b...)
		return nil
	})
	res.Discovery = stats
	if err != nil {
		e.end(res, log, err)
		return nil, err
	}

	statements, err := e.serializer.Translate(all)
	if err != nil {
		e.end(res, log, err)
		return nil, err
	}
	if statements == nil {
		statements = []string{}
	}
	res.Statements = int64(len(statements))
	if len(statements) > 0 {
		res.Batches = 1
	}
	e.end(res, log, nil)
	return statements, nil
}

// ExploreStream walks the subgraph with one seen set shared by every root,
// serializing each walker batch as soon as it is produced and handing it to
// onBatch. Batches that render no statements are not delivered. Batches
// delivered before an error stay delivered.
func (e *Exporter) ExploreStream(
	ctx context.Context,
	root string,
	ids []interface{},
	decl interface{},
	batchSize int,
	onBatch BatchFunc,
) error {
	if onBatch == nil {
		return fmt.Errorf("batch callback is nil")
	}
	res, log := e.begin("stream")
	tree := relation.Normalize(decl)

	w, err := e.newWalker(log, batchSize)
	if err != nil {
		return err
	}

	// The walker still descends from the records of b, so they must keep
	// their source key values.
	stats, err := w.Walk(ctx, seen.New(), root, ids, e.rootWhere(ids), tree, func(b types.Batch) error {
		statements, err := e.serializer.TranslateCopy(b)
		if err != nil {
			return err
		}
		if len(statements) == 0 {
			return nil
		}
		res.Batches++
		res.Statements += int64(len(statements))
		log.Debugw("Delivering batch", "batch", res.Batches, "statements", len(statements))
		return onBatch(statements)
	})
	res.Discovery = stats
	e.end(res, log, err)
	return err
}

func (e *Exporter) newWalker(log *logger.Logger, batchSize int) (*walker.Walker, error) {
	w, err := walker.New(e.resolver, e.provider, batchSize)
	if err != nil {
		return nil, err
	}
	w.SetLogger(log)
	return w, nil
}

func (e *Exporter) rootWhere(ids []interface{}) string {
	if ids != nil {
		return ""
	}
	return e.where
}

func (e *Exporter) begin(mode string) (*Result, *logger.Logger) {
	res := &Result{
		RunID:     uuid.NewString(),
		Mode:      mode,
		StartedAt: time.Now(),
	}
	return res, e.logger.WithRun(res.RunID)
}

func (e *Exporter) end(res *Result, log *logger.Logger, err error) {
	res.CompletedAt = time.Now()
	res.Duration = res.CompletedAt.Sub(res.StartedAt)
	res.Success = err == nil
	e.last = *res

	if err != nil {
		log.Errorw("Export failed", "mode", res.Mode, "statements", res.Statements, "error", err)
		return
	}
	log.Infow("Export complete",
		"mode", res.Mode,
		"statements", res.Statements,
		"batches", res.Batches,
		"records", res.Discovery.RecordsFound,
		"join_rows", res.Discovery.JoinRows,
		"duration", res.Duration,
	)
}
