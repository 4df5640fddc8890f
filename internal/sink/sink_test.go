package sink

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eventRow is a minimal partitioned row for exercising the writer.
type eventRow struct {
	EventID string `parquet:"event_id"`
	Region  string `parquet:"region"`
	Year    int32  `parquet:"year"`
}

func (eventRow) TableName() string { return "events" }

func (r eventRow) Partition() []Field {
	return []Field{
		{Name: "year", Value: strconv.Itoa(int(r.Year))},
		{Name: "region", Value: r.Region},
	}
}

// flatRow is an unpartitioned row.
type flatRow struct {
	Name string `parquet:"name"`
}

func (flatRow) TableName() string  { return "flat" }
func (flatRow) Partition() []Field { return nil }

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)
	return store
}

func TestLocalStoreWriteListDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Write(ctx, "events/a.parquet", []byte("aaa")))
	require.NoError(t, store.Write(ctx, "events/sub/b.parquet", []byte("bbb")))
	require.NoError(t, store.Write(ctx, "other/c.parquet", []byte("ccc")))

	keys, err := store.List(ctx, "events/")
	require.NoError(t, err)
	assert.Equal(t, []string{"events/a.parquet", "events/sub/b.parquet"}, keys)

	require.NoError(t, store.Delete(ctx, "events/a.parquet"))
	keys, err = store.List(ctx, "events/")
	require.NoError(t, err)
	assert.Equal(t, []string{"events/sub/b.parquet"}, keys)
}

func TestLocalStorePrefixWithoutTrailingSlash(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "warehouse")
	require.NoError(t, err)

	require.NoError(t, store.Write(ctx, "items/part-00000.parquet", []byte("aaa")))

	_, err = os.Stat(filepath.Join(dir, "warehouse", "items", "part-00000.parquet"))
	require.NoError(t, err, "object must land under the prefix directory")

	keys, err := store.List(ctx, "items/")
	require.NoError(t, err)
	assert.Equal(t, []string{"items/part-00000.parquet"}, keys, "written objects must be visible to List")

	require.NoError(t, store.Delete(ctx, "items/part-00000.parquet"))
	keys, err = store.List(ctx, "items/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestWriteTableOverwriteUnderBarePrefix(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir(), "warehouse")
	require.NoError(t, err)

	_, err = WriteTable(ctx, store, WriterConfig{}, []eventRow{
		{EventID: "e1", Region: "eu", Year: 2018},
		{EventID: "e2", Region: "us", Year: 2019},
	})
	require.NoError(t, err)

	_, err = WriteTable(ctx, store, WriterConfig{}, []eventRow{
		{EventID: "e1", Region: "eu", Year: 2018},
	})
	require.NoError(t, err)

	keys, err := store.List(ctx, "events/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"events/_manifest.json",
		"events/year=2018/region=eu/part-00000.parquet",
	}, keys, "stale partitions must be cleared even with a slashless prefix")
}

func TestNormalizePrefix(t *testing.T) {
	assert.Equal(t, "", normalizePrefix(""))
	assert.Equal(t, "warehouse/", normalizePrefix("warehouse"))
	assert.Equal(t, "warehouse/", normalizePrefix("warehouse/"))
	assert.Equal(t, "a/b/", normalizePrefix("a/b"))
}

func TestLocalStoreListEmptyPrefix(t *testing.T) {
	keys, err := newTestStore(t).List(context.Background(), "events/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestLocalStoreDeleteMissingKey(t *testing.T) {
	assert.NoError(t, newTestStore(t).Delete(context.Background(), "events/nope.parquet"))
}

func TestLocalStoreWriteOverwrites(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Write(ctx, "k", []byte("old")))
	require.NoError(t, store.Write(ctx, "k", []byte("new")))

	data, err := os.ReadFile(store.fullPath("k"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestLocalStoreWriteLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Write(ctx, "events/a.parquet", []byte("aaa")))

	matches, err := filepath.Glob(filepath.Join(store.baseDir, "events", "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestWriteTablePartitionLayout(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rows := []eventRow{
		{EventID: "e1", Region: "eu", Year: 2018},
		{EventID: "e2", Region: "eu", Year: 2018},
		{EventID: "e3", Region: "us", Year: 2019},
	}

	manifest, err := WriteTable(ctx, store, WriterConfig{RunID: "run-1"}, rows)
	require.NoError(t, err)

	keys, err := store.List(ctx, "events/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"events/_manifest.json",
		"events/year=2018/region=eu/part-00000.parquet",
		"events/year=2019/region=us/part-00000.parquet",
	}, keys)

	assert.Equal(t, int64(3), manifest.RowCount)
	assert.Equal(t, []string{"year", "region"}, manifest.PartitionColumns)
	require.Len(t, manifest.Parts, 2)
	assert.Equal(t, int64(2), manifest.Parts[0].RowCount)
	assert.Equal(t, map[string]string{"year": "2018", "region": "eu"}, manifest.Parts[0].Partition)
}

func TestWriteTableRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	in := []eventRow{
		{EventID: "e1", Region: "eu", Year: 2018},
		{EventID: "e2", Region: "eu", Year: 2018},
	}
	_, err := WriteTable(ctx, store, WriterConfig{}, in)
	require.NoError(t, err)

	data, err := os.ReadFile(store.fullPath("events/year=2018/region=eu/part-00000.parquet"))
	require.NoError(t, err)

	out, err := parquet.Read[eventRow](bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestWriteTableChecksums(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	manifest, err := WriteTable(ctx, store, WriterConfig{}, []eventRow{{EventID: "e1", Region: "eu", Year: 2018}})
	require.NoError(t, err)
	require.Len(t, manifest.Parts, 1)

	data, err := os.ReadFile(store.fullPath("events/" + manifest.Parts[0].File))
	require.NoError(t, err)
	assert.True(t, VerifyChecksum(data, manifest.Parts[0].Checksum))
	assert.Equal(t, int64(len(data)), manifest.Parts[0].ByteSize)
}

func TestWriteTableOverwriteClearsStaleParts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := WriteTable(ctx, store, WriterConfig{}, []eventRow{
		{EventID: "e1", Region: "eu", Year: 2018},
		{EventID: "e2", Region: "us", Year: 2019},
	})
	require.NoError(t, err)

	// Second run has no 2019 data; its partition must disappear.
	_, err = WriteTable(ctx, store, WriterConfig{}, []eventRow{
		{EventID: "e1", Region: "eu", Year: 2018},
	})
	require.NoError(t, err)

	keys, err := store.List(ctx, "events/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"events/_manifest.json",
		"events/year=2018/region=eu/part-00000.parquet",
	}, keys)
}

func TestWriteTableEmptyRows(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	manifest, err := WriteTable(ctx, store, WriterConfig{}, []flatRow{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), manifest.RowCount)
	assert.Empty(t, manifest.Parts)
	assert.Nil(t, manifest.PartitionColumns)

	keys, err := store.List(ctx, "flat/")
	require.NoError(t, err)
	assert.Equal(t, []string{"flat/_manifest.json"}, keys)
}

func TestWriteTableUnpartitioned(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := WriteTable(ctx, store, WriterConfig{Compression: "zstd"}, []flatRow{{Name: "a"}, {Name: "b"}})
	require.NoError(t, err)

	keys, err := store.List(ctx, "flat/")
	require.NoError(t, err)
	assert.Equal(t, []string{"flat/_manifest.json", "flat/part-00000.parquet"}, keys)
}

func TestPartitionPathEscapesValues(t *testing.T) {
	path := partitionPath([]Field{{Name: "creator_id", Value: "AR/1 X"}})
	assert.Equal(t, "creator_id=AR%2F1%20X/", path)
}

func TestComputeChecksum(t *testing.T) {
	sum := ComputeChecksum([]byte("hello"))
	assert.Contains(t, sum, "sha256:")
	assert.True(t, VerifyChecksum([]byte("hello"), sum))
	assert.False(t, VerifyChecksum([]byte("goodbye"), sum))
}
