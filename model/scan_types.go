package model

import (
	"time"

	"shiftscan/shift"
)

// ScanRecord is one accepted scan. Path is filled from the mapping table at query time.
type ScanRecord struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Timestamp time.Time `db:"-" json:"timestamp"`
	Path      string    `db:"-" json:"path,omitempty"`
}

// Shift reports the shift of the record in its timestamp's location.
func (r ScanRecord) Shift() shift.Shift {
	return shift.Of(r.Timestamp)
}

type MappingEntry struct {
	Code string `db:"code" json:"code"`
	Path string `db:"path" json:"path"`
}

// GroupedScans holds scan records partitioned by shift, newest first in each bucket.
type GroupedScans struct {
	Morning []ScanRecord `json:"morning"`
	Evening []ScanRecord `json:"evening"`
	Night   []ScanRecord `json:"night"`
}

// Bucket returns the slice for s.
func (g *GroupedScans) Bucket(s shift.Shift) *[]ScanRecord {
	switch s {
	case shift.Morning:
		return &g.Morning
	case shift.Evening:
		return &g.Evening
	case shift.Night:
		return &g.Night
	}
	panic("model: invalid shift " + s.String())
}

// Len is the total number of records across all buckets.
func (g GroupedScans) Len() int {
	return len(g.Morning) + len(g.Evening) + len(g.Night)
}

// All flattens the buckets in report order (morning, evening, night).
func (g GroupedScans) All() []ScanRecord {
	out := make([]ScanRecord, 0, g.Len())
	out = append(out, g.Morning...)
	out = append(out, g.Evening...)
	out = append(out, g.Night...)
	return out
}

// BatchResult is the partial-success outcome of a batch submission.
type BatchResult struct {
	Accepted      []ScanRecord `json:"accepted"`
	RejectedCount int          `json:"rejectedCount"`
}
