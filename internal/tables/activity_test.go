package tables

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunelake/lakehouse-etl/internal/source"
)

// Monday 2018-11-12T02:37:38Z.
const epochMs = int64(1541990258796)

func playbackRecord() source.ActivityRecord {
	return source.ActivityRecord{
		UserID:            source.UserID("26"),
		FirstName:         "Ryan",
		LastName:          "Smith",
		Gender:            "M",
		SubscriptionLevel: "free",
		Page:              "NextSong",
		TimestampMs:       epochMs,
		SessionID:         583,
		Location:          "San Jose-Sunnyvale-Santa Clara, CA",
		UserAgent:         "Mozilla/5.0",
		CreatorName:       "Line Renaud",
		ItemTitle:         "Der Kleine Dompfaff",
	}
}

func TestFromEpochMillisTruncatesToSecond(t *testing.T) {
	got := FromEpochMillis(epochMs)

	want := time.Date(2018, time.November, 12, 2, 37, 38, 0, time.UTC)
	assert.True(t, got.Equal(want), "got %s, want %s", got, want)
	assert.Equal(t, time.UTC, got.Location())
}

func TestDecomposeCalendarFields(t *testing.T) {
	parts := Decompose(FromEpochMillis(epochMs))

	assert.Equal(t, int32(2), parts.Hour)
	assert.Equal(t, int32(12), parts.Day)
	assert.Equal(t, int32(46), parts.Week)
	assert.Equal(t, int32(11), parts.Month)
	assert.Equal(t, int32(2018), parts.Year)
	assert.Equal(t, int32(2), parts.Weekday, "Monday is day 2 when the week starts on Sunday")
}

func TestDecomposeWeekdayRange(t *testing.T) {
	// One full week starting on a known Sunday.
	sunday := time.Date(2018, time.November, 11, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		parts := Decompose(sunday.AddDate(0, 0, i))
		assert.Equal(t, int32(i+1), parts.Weekday)
	}
}

func TestFilterPlaybacksDiscardsOtherActions(t *testing.T) {
	home := playbackRecord()
	home.Page = "Home"
	login := playbackRecord()
	login.Page = "Login"

	events := FilterPlaybacks([]source.ActivityRecord{playbackRecord(), home, login}, nil)

	require.Len(t, events, 1)
	assert.Equal(t, int64(26), events[0].UserID)
	assert.Equal(t, int32(2018), events[0].Parts.Year)
}

func TestFilterPlaybacksDropsNonNumericUserID(t *testing.T) {
	bad := playbackRecord()
	bad.UserID = source.UserID("")
	alsoBad := playbackRecord()
	alsoBad.UserID = source.UserID("abc")

	events := FilterPlaybacks([]source.ActivityRecord{bad, alsoBad, playbackRecord()}, nil)

	require.Len(t, events, 1)
	assert.Equal(t, int64(26), events[0].UserID)
}

func TestBuildUsersDeduplicatesByTuple(t *testing.T) {
	events := FilterPlaybacks([]source.ActivityRecord{playbackRecord(), playbackRecord()}, nil)

	users := BuildUsers(events)

	require.Len(t, users, 1)
	assert.Equal(t, int64(26), users[0].UserID)
	assert.Equal(t, "free", users[0].SubscriptionLevel)
}

func TestBuildUsersKeepsSubscriptionChanges(t *testing.T) {
	upgraded := playbackRecord()
	upgraded.SubscriptionLevel = "paid"

	events := FilterPlaybacks([]source.ActivityRecord{playbackRecord(), upgraded}, nil)
	users := BuildUsers(events)

	require.Len(t, users, 2, "a level change is a distinct tuple, not an update")
}

func TestBuildTimeDeduplicatesByStartTime(t *testing.T) {
	later := playbackRecord()
	later.TimestampMs = epochMs + 60_000

	events := FilterPlaybacks([]source.ActivityRecord{playbackRecord(), playbackRecord(), later}, nil)
	rows := BuildTime(events)

	require.Len(t, rows, 2)
	assert.Equal(t, int32(37), int32(rows[0].StartTime.Minute()))
	assert.Equal(t, int32(38), int32(rows[1].StartTime.Minute()))
}

func TestBuildPlaysJoinsOnCreatorName(t *testing.T) {
	events := FilterPlaybacks([]source.ActivityRecord{playbackRecord()}, nil)
	plays := BuildPlays(events, catalogFixture(), NewPlayIDGenerator())

	require.Len(t, plays, 1)
	assert.Equal(t, int64(0), plays[0].PlayID)
	assert.Equal(t, "SOUPIRU12A6D4FA1E1", plays[0].ItemID)
	assert.Equal(t, "ARJIE2Y1187B994AB7", plays[0].CreatorID)
	assert.Equal(t, int32(2018), plays[0].Year)
	assert.Equal(t, int32(11), plays[0].Month)
}

func TestBuildPlaysJoinIsCaseSensitive(t *testing.T) {
	rec := playbackRecord()
	rec.CreatorName = "line renaud"

	events := FilterPlaybacks([]source.ActivityRecord{rec}, nil)
	plays := BuildPlays(events, catalogFixture(), NewPlayIDGenerator())

	assert.Empty(t, plays, "join must not fold case")
}

func TestBuildPlaysDropsUnmatchedEvents(t *testing.T) {
	rec := playbackRecord()
	rec.CreatorName = "Unknown Creator"

	events := FilterPlaybacks([]source.ActivityRecord{rec}, nil)
	plays := BuildPlays(events, catalogFixture(), NewPlayIDGenerator())

	assert.Empty(t, plays)
}

func TestBuildPlaysDeduplicatesIdenticalTuples(t *testing.T) {
	events := FilterPlaybacks([]source.ActivityRecord{playbackRecord(), playbackRecord()}, nil)
	plays := BuildPlays(events, catalogFixture(), NewPlayIDGenerator())

	require.Len(t, plays, 1)
}

func TestBuildPlaysAssignsIncreasingIDs(t *testing.T) {
	second := playbackRecord()
	second.TimestampMs = epochMs + 200_000
	second.CreatorName = "Casual"
	second.ItemTitle = "I Didn't Mean To"

	events := FilterPlaybacks([]source.ActivityRecord{playbackRecord(), second}, nil)
	plays := BuildPlays(events, catalogFixture(), NewPlayIDGenerator())

	require.Len(t, plays, 2)
	assert.Equal(t, int64(0), plays[0].PlayID)
	assert.Equal(t, int64(1), plays[1].PlayID)
}

func TestPlayIDGeneratorSequence(t *testing.T) {
	g := NewPlayIDGenerator()
	for want := int64(0); want < 5; want++ {
		assert.Equal(t, want, g.Next())
	}
}
