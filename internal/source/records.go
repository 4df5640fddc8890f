package source

import (
	"bytes"
	"strconv"
	"strings"
)

// CatalogRecord is one raw catalog entry: a single item plus its creator's
// attributes denormalized onto the record.
type CatalogRecord struct {
	ItemID          string  `json:"item_id"`
	Title           string  `json:"title"`
	CreatorID       string  `json:"creator_id"`
	CreatorName     string  `json:"creator_name"`
	CreatorLocation string  `json:"creator_location"`
	CreatorLat      float64 `json:"creator_lat"`
	CreatorLon      float64 `json:"creator_lon"`
	ReleaseYear     int32   `json:"release_year"`
	Duration        float64 `json:"duration"`
}

// ActivityRecord is one raw user action event from the activity log.
type ActivityRecord struct {
	UserID            UserID `json:"user_id"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	Gender            string `json:"gender"`
	SubscriptionLevel string `json:"subscription_level"`
	Page              string `json:"page"`
	TimestampMs       int64  `json:"timestamp_ms"`
	SessionID         int64  `json:"session_id"`
	Location          string `json:"location"`
	UserAgent         string `json:"user_agent"`
	CreatorName       string `json:"creator_name"`
	ItemTitle         string `json:"item_title"`
}

// UserID is a numeric-coercible identifier. The activity feed carries it
// either as a quoted string or a bare number, and sometimes empty for
// anonymous sessions, so coercion is deferred until the transform stage.
type UserID string

// UnmarshalJSON accepts both string and number encodings.
func (u *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*u = ""
		return nil
	}
	if len(data) >= 2 && data[0] == '"' {
		*u = UserID(data[1 : len(data)-1])
		return nil
	}
	*u = UserID(data)
	return nil
}

// Int64 coerces the identifier to an integer.
func (u UserID) Int64() (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(string(u)), 10, 64)
}
