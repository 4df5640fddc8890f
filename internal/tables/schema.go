package tables

import (
	"strconv"
	"time"

	"github.com/tunelake/lakehouse-etl/internal/sink"
)

// ItemRow is a single row in the items dimension table.
// Exactly one row exists per distinct item_id.
type ItemRow struct {
	ItemID    string  `parquet:"item_id"`
	Title     string  `parquet:"title"`
	CreatorID string  `parquet:"creator_id"`
	Year      int32   `parquet:"year"` // release year
	Duration  float64 `parquet:"duration"`
}

// TableName returns the canonical table name.
func (ItemRow) TableName() string { return "items" }

// Partition returns the partition columns for items: year, creator_id.
func (r ItemRow) Partition() []sink.Field {
	return []sink.Field{
		{Name: "year", Value: strconv.Itoa(int(r.Year))},
		{Name: "creator_id", Value: r.CreatorID},
	}
}

// CreatorRow is a single row in the creators dimension table.
// Rows are distinct tuples; an id may repeat when the source data carries
// conflicting attributes for it.
type CreatorRow struct {
	CreatorID string  `parquet:"creator_id"`
	Name      string  `parquet:"name"`
	Location  string  `parquet:"location"`
	Lat       float64 `parquet:"lat"`
	Lon       float64 `parquet:"lon"`
}

// TableName returns the canonical table name.
func (CreatorRow) TableName() string { return "creators" }

// Partition returns nil; creators is unpartitioned.
func (CreatorRow) Partition() []sink.Field { return nil }

// UserRow is a single row in the users dimension table.
// A user whose subscription level changed over time yields one row per
// level observed.
type UserRow struct {
	UserID            int64  `parquet:"user_id"`
	FirstName         string `parquet:"first_name"`
	LastName          string `parquet:"last_name"`
	Gender            string `parquet:"gender"`
	SubscriptionLevel string `parquet:"subscription_level"`
}

// TableName returns the canonical table name.
func (UserRow) TableName() string { return "users" }

// Partition returns nil; users is unpartitioned.
func (UserRow) Partition() []sink.Field { return nil }

// TimeRow is a single row in the time dimension table, one per distinct
// playback start time. The calendar fields are pure functions of StartTime.
type TimeRow struct {
	StartTime time.Time `parquet:"start_time,timestamp(millisecond)"`
	Hour      int32     `parquet:"hour"`
	Day       int32     `parquet:"day"`
	Week      int32     `parquet:"week"`
	Month     int32     `parquet:"month"`
	Year      int32     `parquet:"year"`
	Weekday   int32     `parquet:"weekday"`
}

// TableName returns the canonical table name.
func (TimeRow) TableName() string { return "time" }

// Partition returns the partition columns for time: year, month.
func (r TimeRow) Partition() []sink.Field {
	return []sink.Field{
		{Name: "year", Value: strconv.Itoa(int(r.Year))},
		{Name: "month", Value: strconv.Itoa(int(r.Month))},
	}
}

// PlayRow is a single row in the plays fact table: one (activity, item)
// pair surviving the creator-name join. Year and Month are derived from
// StartTime and retained as partition columns.
type PlayRow struct {
	PlayID            int64     `parquet:"play_id"`
	StartTime         time.Time `parquet:"start_time,timestamp(millisecond)"`
	UserID            int64     `parquet:"user_id"`
	SubscriptionLevel string    `parquet:"subscription_level"`
	SessionID         int64     `parquet:"session_id"`
	Location          string    `parquet:"location"`
	UserAgent         string    `parquet:"user_agent"`
	ItemID            string    `parquet:"item_id"`
	CreatorID         string    `parquet:"creator_id"`
	Year              int32     `parquet:"year"`
	Month             int32     `parquet:"month"`
}

// TableName returns the canonical table name.
func (PlayRow) TableName() string { return "plays" }

// Partition returns the partition columns for plays: year, month.
func (r PlayRow) Partition() []sink.Field {
	return []sink.Field{
		{Name: "year", Value: strconv.Itoa(int(r.Year))},
		{Name: "month", Value: strconv.Itoa(int(r.Month))},
	}
}

// SchemaVersion is the version of the table schemas.
// Increment this when making breaking changes.
const SchemaVersion = "1.0.0"
