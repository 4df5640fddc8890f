// Package tables derives the five analytical tables from raw catalog and
// activity records. Every build function is a pure function of its inputs;
// writing is the sink's concern.
package tables

import (
	"github.com/tunelake/lakehouse-etl/internal/metrics"
	"github.com/tunelake/lakehouse-etl/internal/source"
)

// BuildItems projects catalog records into the items table, deduplicated by
// item_id. The first record seen for an id survives; catalog duplicates are
// assumed consistent, so survivor choice is not significant.
func BuildItems(catalog []source.CatalogRecord) []ItemRow {
	seen := make(map[string]struct{}, len(catalog))
	rows := make([]ItemRow, 0, len(catalog))

	for _, rec := range catalog {
		if _, ok := seen[rec.ItemID]; ok {
			continue
		}
		seen[rec.ItemID] = struct{}{}
		rows = append(rows, ItemRow{
			ItemID:    rec.ItemID,
			Title:     rec.Title,
			CreatorID: rec.CreatorID,
			Year:      rec.ReleaseYear,
			Duration:  rec.Duration,
		})
	}

	if m := metrics.Get(); m != nil {
		m.AddRowsBuilt("items", float64(len(rows)))
	}
	return rows
}

// BuildCreators projects catalog records into the creators table,
// deduplicated by full tuple only. An id appearing with diverging
// attributes yields one row per distinct tuple, mirroring the raw data.
func BuildCreators(catalog []source.CatalogRecord) []CreatorRow {
	seen := make(map[CreatorRow]struct{}, len(catalog))
	rows := make([]CreatorRow, 0, len(catalog))

	for _, rec := range catalog {
		row := CreatorRow{
			CreatorID: rec.CreatorID,
			Name:      rec.CreatorName,
			Location:  rec.CreatorLocation,
			Lat:       rec.CreatorLat,
			Lon:       rec.CreatorLon,
		}
		if _, ok := seen[row]; ok {
			continue
		}
		seen[row] = struct{}{}
		rows = append(rows, row)
	}

	if m := metrics.Get(); m != nil {
		m.AddRowsBuilt("creators", float64(len(rows)))
	}
	return rows
}
