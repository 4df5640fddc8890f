package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/tunelake/lakehouse-etl/internal/metrics"
)

// Field is one partition column value of a row.
type Field struct {
	Name  string
	Value string
}

// Row is a table row that knows its table name and partition columns.
// Unpartitioned tables return a nil partition.
type Row interface {
	TableName() string
	Partition() []Field
}

// WriterConfig configures table output generation.
type WriterConfig struct {
	Compression string // "snappy" | "zstd" | "none"
	RunID       string
	Producer    ProducerInfo
}

// ProducerInfo describes the software that produced a table.
type ProducerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	GitSHA  string `json:"git_sha,omitempty"`
}

// TableManifest describes the contents of a written table.
type TableManifest struct {
	Table            string       `json:"table"`
	RowCount         int64        `json:"row_count"`
	ByteSize         int64        `json:"byte_size"`
	PartitionColumns []string     `json:"partition_columns,omitempty"`
	Parts            []PartInfo   `json:"parts"`
	Producer         ProducerInfo `json:"producer"`
	RunID            string       `json:"run_id"`
	CreatedAt        time.Time    `json:"created_at"`
}

// PartInfo describes a single part file in the table.
type PartInfo struct {
	File      string            `json:"file"`
	RowCount  int64             `json:"row_count"`
	ByteSize  int64             `json:"byte_size"`
	Checksum  string            `json:"checksum"`
	Partition map[string]string `json:"partition,omitempty"`
}

// ManifestName is the manifest file written alongside each table.
const ManifestName = "_manifest.json"

// WriteTable encodes rows as parquet and writes them to the store under
// <table>/<col>=<val>/.../part-00000.parquet, one part file per distinct
// partition value combination. Existing table contents are removed first:
// a write is a full overwrite of the table. An empty row set is valid and
// yields only a manifest.
func WriteTable[T Row](ctx context.Context, store ObjectStore, cfg WriterConfig, rows []T) (*TableManifest, error) {
	var zero T
	table := zero.TableName()

	if err := clearTable(ctx, store, table); err != nil {
		return nil, err
	}

	groups := groupByPartition(rows)

	manifest := &TableManifest{
		Table:            table,
		PartitionColumns: partitionColumns(zero),
		Producer:         cfg.Producer,
		RunID:            cfg.RunID,
		CreatedAt:        time.Now().UTC(),
	}

	for _, g := range groups {
		data, err := encodeParquet(g.rows, cfg.Compression)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", table, err)
		}

		key := table + "/" + g.path + "part-00000.parquet"
		if err := store.Write(ctx, key, data); err != nil {
			return nil, fmt.Errorf("write %s: %w", key, err)
		}

		manifest.Parts = append(manifest.Parts, PartInfo{
			File:      g.path + "part-00000.parquet",
			RowCount:  int64(len(g.rows)),
			ByteSize:  int64(len(data)),
			Checksum:  ComputeChecksum(data),
			Partition: g.values,
		})
		manifest.RowCount += int64(len(g.rows))
		manifest.ByteSize += int64(len(data))
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := store.Write(ctx, table+"/"+ManifestName, data); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	if m := metrics.Get(); m != nil {
		m.AddRowsWritten(table, float64(manifest.RowCount))
		m.AddBytesWritten(table, float64(manifest.ByteSize))
		m.AddPartsWritten(table, float64(len(manifest.Parts)))
	}
	return manifest, nil
}

// clearTable removes every existing object under the table prefix.
func clearTable(ctx context.Context, store ObjectStore, table string) error {
	keys, err := store.List(ctx, table+"/")
	if err != nil {
		return fmt.Errorf("list %s: %w", table, err)
	}
	for _, key := range keys {
		if err := store.Delete(ctx, key); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// partitionGroup collects the rows sharing one partition value combination.
type partitionGroup[T Row] struct {
	path   string // "year=2018/creator_id=AR1/" or "" when unpartitioned
	values map[string]string
	rows   []T
}

// groupByPartition splits rows into partition groups, preserving the order
// in which partition values are first seen.
func groupByPartition[T Row](rows []T) []*partitionGroup[T] {
	byPath := make(map[string]*partitionGroup[T])
	var groups []*partitionGroup[T]

	for _, r := range rows {
		fields := r.Partition()
		path := partitionPath(fields)

		g, ok := byPath[path]
		if !ok {
			g = &partitionGroup[T]{path: path}
			if len(fields) > 0 {
				g.values = make(map[string]string, len(fields))
				for _, f := range fields {
					g.values[f.Name] = f.Value
				}
			}
			byPath[path] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, r)
	}

	return groups
}

// partitionPath builds the directory fragment for a partition value
// combination. Values are path-escaped so ids containing separators cannot
// break the layout.
func partitionPath(fields []Field) string {
	var b bytes.Buffer
	for _, f := range fields {
		b.WriteString(f.Name)
		b.WriteByte('=')
		b.WriteString(url.PathEscape(f.Value))
		b.WriteByte('/')
	}
	return b.String()
}

// partitionColumns returns the partition column names declared by the row
// type's zero value.
func partitionColumns(zero Row) []string {
	fields := zero.Partition()
	if len(fields) == 0 {
		return nil
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// encodeParquet encodes rows into a parquet file in memory.
func encodeParquet[T any](rows []T, compression string) ([]byte, error) {
	var opts []parquet.WriterOption
	switch compression {
	case "zstd":
		opts = append(opts, parquet.Compression(&parquet.Zstd))
	case "none":
		opts = append(opts, parquet.Compression(&parquet.Uncompressed))
	default:
		opts = append(opts, parquet.Compression(&parquet.Snappy))
	}

	buf := new(bytes.Buffer)
	w := parquet.NewGenericWriter[T](buf, opts...)
	if _, err := w.Write(rows); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
