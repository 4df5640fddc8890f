// Package etl orchestrates one pipeline run: stream raw records, derive
// the analytical tables, and write them as partitioned parquet.
package etl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tunelake/lakehouse-etl/internal/config"
	"github.com/tunelake/lakehouse-etl/internal/logging"
	"github.com/tunelake/lakehouse-etl/internal/metrics"
	"github.com/tunelake/lakehouse-etl/internal/sink"
	"github.com/tunelake/lakehouse-etl/internal/source"
	"github.com/tunelake/lakehouse-etl/internal/tables"
)

// Version and GitSHA are set via ldflags at build time.
var (
	Version = "v0.1.0"
	GitSHA  = "unknown"
)

// Orchestrator drives one end-to-end pipeline run.
type Orchestrator struct {
	cfg   config.Config
	src   source.RecordSource
	store sink.ObjectStore
	ids   *tables.PlayIDGenerator
	runID string
	log   *slog.Logger
}

// New wires a source and a store from configuration and returns a ready
// orchestrator. Close must be called when done.
func New(cfg config.Config) (*Orchestrator, error) {
	src, err := source.NewRecordSource(source.Config{
		Mode:         cfg.Source.Mode,
		LocalPath:    cfg.Source.LocalPath,
		Bucket:       cfg.Source.Bucket,
		Prefix:       cfg.Source.Prefix,
		S3Endpoint:   cfg.Source.S3Endpoint,
		S3Region:     cfg.Source.S3Region,
		CatalogGlob:  cfg.Source.CatalogGlob,
		ActivityGlob: cfg.Source.ActivityGlob,
	})
	if err != nil {
		return nil, fmt.Errorf("create source: %w", err)
	}

	store, err := sink.NewObjectStore(sink.Config{
		Backend:    cfg.Sink.Backend,
		LocalDir:   cfg.Sink.LocalDir,
		Bucket:     cfg.Sink.Bucket,
		S3Endpoint: cfg.Sink.S3Endpoint,
		S3Region:   cfg.Sink.S3Region,
		Prefix:     cfg.Sink.Prefix,
	})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("create store: %w", err)
	}

	runID := uuid.New().String()
	return &Orchestrator{
		cfg:   cfg,
		src:   src,
		store: store,
		ids:   tables.NewPlayIDGenerator(),
		runID: runID,
		log:   logging.RunLogger("etl", runID),
	}, nil
}

// RunID returns the unique identifier of this run.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Run executes the full pipeline: catalog tables first, then activity
// tables. The activity phase re-reads the catalog for the play join, so the
// two phases stay independent.
func (o *Orchestrator) Run(ctx context.Context) error {
	started := time.Now()
	o.log.Info("starting pipeline run",
		"version", Version,
		"git_sha", GitSHA,
		"source_mode", o.cfg.Source.Mode,
		"sink_backend", o.cfg.Sink.Backend,
		"write_enabled", o.cfg.Sink.WriteEnabled,
	)

	if err := o.runCatalog(ctx); err != nil {
		return fmt.Errorf("catalog phase: %w", err)
	}
	if err := o.runActivity(ctx); err != nil {
		return fmt.Errorf("activity phase: %w", err)
	}

	o.log.Info("pipeline run complete", "duration", time.Since(started).String())
	return nil
}

// Close releases the source and the store.
func (o *Orchestrator) Close() error {
	serr := o.src.Close()
	sterr := o.store.Close()
	if serr != nil {
		return serr
	}
	return sterr
}

// runCatalog builds and writes the items and creators tables.
func (o *Orchestrator) runCatalog(ctx context.Context) error {
	recCh, errCh := o.src.StreamCatalog(ctx)
	catalog, err := collect(ctx, recCh, errCh)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	o.log.Info("catalog records read", "count", len(catalog))

	items := buildTimed("items", func() []tables.ItemRow {
		return tables.BuildItems(catalog)
	})
	if _, err := o.writeItems(ctx, items); err != nil {
		return err
	}

	creators := buildTimed("creators", func() []tables.CreatorRow {
		return tables.BuildCreators(catalog)
	})
	if _, err := o.writeCreators(ctx, creators); err != nil {
		return err
	}

	return nil
}

// runActivity builds and writes the users, time, and plays tables. The
// catalog is read again here rather than held from the catalog phase; the
// play join needs the raw records, not the deduplicated items.
func (o *Orchestrator) runActivity(ctx context.Context) error {
	recCh, errCh := o.src.StreamActivity(ctx)
	activity, err := collect(ctx, recCh, errCh)
	if err != nil {
		return fmt.Errorf("read activity: %w", err)
	}
	o.log.Info("activity records read", "count", len(activity))

	events := tables.FilterPlaybacks(activity, logging.RunLogger("filter", o.runID))
	o.log.Info("playback events retained", "count", len(events), "discarded", len(activity)-len(events))

	users := buildTimed("users", func() []tables.UserRow {
		return tables.BuildUsers(events)
	})
	if _, err := o.writeUsers(ctx, users); err != nil {
		return err
	}

	timeRows := buildTimed("time", func() []tables.TimeRow {
		return tables.BuildTime(events)
	})
	if _, err := o.writeTime(ctx, timeRows); err != nil {
		return err
	}

	catCh, catErrCh := o.src.StreamCatalog(ctx)
	catalog, err := collect(ctx, catCh, catErrCh)
	if err != nil {
		return fmt.Errorf("re-read catalog for join: %w", err)
	}

	plays := buildTimed("plays", func() []tables.PlayRow {
		return tables.BuildPlays(events, catalog, o.ids)
	})
	if _, err := o.writePlays(ctx, plays); err != nil {
		return err
	}

	return nil
}

// Methods cannot be generic, so each table gets a thin typed wrapper over
// writeTable.

func (o *Orchestrator) writeItems(ctx context.Context, rows []tables.ItemRow) (*sink.TableManifest, error) {
	return writeTable(ctx, o, rows)
}

func (o *Orchestrator) writeCreators(ctx context.Context, rows []tables.CreatorRow) (*sink.TableManifest, error) {
	return writeTable(ctx, o, rows)
}

func (o *Orchestrator) writeUsers(ctx context.Context, rows []tables.UserRow) (*sink.TableManifest, error) {
	return writeTable(ctx, o, rows)
}

func (o *Orchestrator) writeTime(ctx context.Context, rows []tables.TimeRow) (*sink.TableManifest, error) {
	return writeTable(ctx, o, rows)
}

func (o *Orchestrator) writePlays(ctx context.Context, rows []tables.PlayRow) (*sink.TableManifest, error) {
	return writeTable(ctx, o, rows)
}

// writeTable writes one table through the store, honoring dry-run mode.
func writeTable[T sink.Row](ctx context.Context, o *Orchestrator, rows []T) (*sink.TableManifest, error) {
	var zero T
	table := zero.TableName()
	log := logging.TableLogger(o.runID, table)

	if !o.cfg.Sink.WriteEnabled {
		log.Info("write disabled, skipping table", "rows", len(rows))
		return nil, nil
	}

	started := time.Now()
	manifest, err := sink.WriteTable(ctx, o.store, sink.WriterConfig{
		Compression: o.cfg.Sink.Compression,
		RunID:       o.runID,
		Producer: sink.ProducerInfo{
			Name:    "lakehouse-etl",
			Version: Version,
			GitSHA:  GitSHA,
		},
	}, rows)
	if err != nil {
		if m := metrics.Get(); m != nil {
			m.IncStorageErrors(o.cfg.Sink.Backend)
		}
		return nil, fmt.Errorf("write table %s: %w", table, err)
	}

	elapsed := time.Since(started)
	if m := metrics.Get(); m != nil {
		m.ObserveWriteDuration(table, elapsed.Seconds())
	}
	log.Info("table written",
		"rows", manifest.RowCount,
		"bytes", manifest.ByteSize,
		"parts", len(manifest.Parts),
		"duration", elapsed.String(),
	)
	return manifest, nil
}

// buildTimed runs a table build and records its duration.
func buildTimed[T any](table string, build func() []T) []T {
	started := time.Now()
	rows := build()
	if m := metrics.Get(); m != nil {
		m.ObserveTransformDuration(table, time.Since(started).Seconds())
	}
	return rows
}

// collect drains a record stream into a slice. The first error terminates
// the collection; the source guarantees the record channel closes after an
// error is sent.
func collect[T any](ctx context.Context, recCh <-chan T, errCh <-chan error) ([]T, error) {
	var records []T
	for rec := range recCh {
		records = append(records, rec)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
