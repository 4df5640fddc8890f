package tables

import (
	"log/slog"
	"time"

	"github.com/tunelake/lakehouse-etl/internal/metrics"
	"github.com/tunelake/lakehouse-etl/internal/source"
)

// PlaybackAction is the page value marking an actual playback event.
// Every other action type (navigation, login, ...) is discarded for all
// downstream tables.
const PlaybackAction = "NextSong"

// PlaybackEvent is a filtered activity record with the coerced user id and
// the derived start time attached.
type PlaybackEvent struct {
	Record    source.ActivityRecord
	UserID    int64
	StartTime time.Time
	Parts     TimeParts
}

// FilterPlaybacks retains activity records whose page equals PlaybackAction,
// coerces user_id to an integer, and derives the start time and calendar
// fields. Records whose user_id is not numeric are dropped with a warning.
func FilterPlaybacks(records []source.ActivityRecord, log *slog.Logger) []PlaybackEvent {
	if log == nil {
		log = slog.Default()
	}

	events := make([]PlaybackEvent, 0, len(records))
	filtered := 0
	dropped := 0

	for _, rec := range records {
		if rec.Page != PlaybackAction {
			filtered++
			continue
		}

		userID, err := rec.UserID.Int64()
		if err != nil {
			dropped++
			log.Warn("dropping playback with non-numeric user_id",
				"user_id", string(rec.UserID),
				"session_id", rec.SessionID,
			)
			continue
		}

		start := FromEpochMillis(rec.TimestampMs)
		events = append(events, PlaybackEvent{
			Record:    rec,
			UserID:    userID,
			StartTime: start,
			Parts:     Decompose(start),
		})
	}

	if m := metrics.Get(); m != nil {
		m.AddRecordsFiltered("page", float64(filtered))
		m.CoercionsFailed.Add(float64(dropped))
	}
	return events
}

// BuildUsers projects playback events into the users table, deduplicated by
// full tuple. Subscription level changes over time are kept as separate
// rows rather than collapsed to the latest.
func BuildUsers(events []PlaybackEvent) []UserRow {
	seen := make(map[UserRow]struct{}, len(events))
	rows := make([]UserRow, 0, len(events))

	for _, ev := range events {
		row := UserRow{
			UserID:            ev.UserID,
			FirstName:         ev.Record.FirstName,
			LastName:          ev.Record.LastName,
			Gender:            ev.Record.Gender,
			SubscriptionLevel: ev.Record.SubscriptionLevel,
		}
		if _, ok := seen[row]; ok {
			continue
		}
		seen[row] = struct{}{}
		rows = append(rows, row)
	}

	if m := metrics.Get(); m != nil {
		m.AddRowsBuilt("users", float64(len(rows)))
	}
	return rows
}

// BuildTime builds the time dimension: one row per distinct start time
// observed in the playback events. The calendar fields are pure functions
// of the start time, so deduplicating on it is deduplicating the tuple.
func BuildTime(events []PlaybackEvent) []TimeRow {
	seen := make(map[int64]struct{}, len(events))
	rows := make([]TimeRow, 0, len(events))

	for _, ev := range events {
		ms := ev.StartTime.UnixMilli()
		if _, ok := seen[ms]; ok {
			continue
		}
		seen[ms] = struct{}{}
		rows = append(rows, TimeRow{
			StartTime: ev.StartTime,
			Hour:      ev.Parts.Hour,
			Day:       ev.Parts.Day,
			Week:      ev.Parts.Week,
			Month:     ev.Parts.Month,
			Year:      ev.Parts.Year,
			Weekday:   ev.Parts.Weekday,
		})
	}

	if m := metrics.Get(); m != nil {
		m.AddRowsBuilt("time", float64(len(rows)))
	}
	return rows
}

// playKey is the dedup tuple for a play row, excluding the surrogate key.
type playKey struct {
	startMs           int64
	userID            int64
	subscriptionLevel string
	sessionID         int64
	location          string
	userAgent         string
	itemID            string
	creatorID         string
}

// BuildPlays inner-joins playback events against raw catalog records on the
// creator display name. The match is exact string equality, case sensitive,
// no trimming; events without a match are silently dropped. Surviving pairs
// are deduplicated by full tuple, then assigned surrogate play IDs.
func BuildPlays(events []PlaybackEvent, catalog []source.CatalogRecord, ids *PlayIDGenerator) []PlayRow {
	byCreatorName := make(map[string][]source.CatalogRecord, len(catalog))
	for _, rec := range catalog {
		byCreatorName[rec.CreatorName] = append(byCreatorName[rec.CreatorName], rec)
	}

	seen := make(map[playKey]struct{}, len(events))
	rows := make([]PlayRow, 0, len(events))
	matches := 0
	misses := 0

	for _, ev := range events {
		matched := byCreatorName[ev.Record.CreatorName]
		if len(matched) == 0 {
			misses++
			continue
		}
		matches += len(matched)

		for _, item := range matched {
			key := playKey{
				startMs:           ev.StartTime.UnixMilli(),
				userID:            ev.UserID,
				subscriptionLevel: ev.Record.SubscriptionLevel,
				sessionID:         ev.Record.SessionID,
				location:          ev.Record.Location,
				userAgent:         ev.Record.UserAgent,
				itemID:            item.ItemID,
				creatorID:         item.CreatorID,
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}

			rows = append(rows, PlayRow{
				PlayID:            ids.Next(),
				StartTime:         ev.StartTime,
				UserID:            ev.UserID,
				SubscriptionLevel: ev.Record.SubscriptionLevel,
				SessionID:         ev.Record.SessionID,
				Location:          ev.Record.Location,
				UserAgent:         ev.Record.UserAgent,
				ItemID:            item.ItemID,
				CreatorID:         item.CreatorID,
				Year:              ev.Parts.Year,
				Month:             ev.Parts.Month,
			})
		}
	}

	if m := metrics.Get(); m != nil {
		m.JoinMatches.Add(float64(matches))
		m.JoinMisses.Add(float64(misses))
		m.AddRowsBuilt("plays", float64(len(rows)))
	}
	return rows
}
