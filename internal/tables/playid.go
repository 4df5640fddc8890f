package tables

import "sync/atomic"

// PlayIDGenerator hands out surrogate keys for play rows. IDs are strictly
// increasing within a run; they are not stable across runs and carry no
// ordering relative to any business field.
type PlayIDGenerator struct {
	next atomic.Int64
}

// NewPlayIDGenerator creates a generator starting at zero.
func NewPlayIDGenerator() *PlayIDGenerator {
	return &PlayIDGenerator{}
}

// Next returns the next play ID.
func (g *PlayIDGenerator) Next() int64 {
	return g.next.Add(1) - 1
}
