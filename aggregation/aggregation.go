// Package aggregation groups stored scans by shift for listing, export and reports.
package aggregation

import (
	"context"
	"sort"
	"time"

	"shiftscan/database"
	"shiftscan/mapping"
	"shiftscan/model"
	"shiftscan/shift"

	"github.com/jmoiron/sqlx"
)

// PathLookup resolves a code to its mapped path.
type PathLookup interface {
	Lookup(code string) (string, bool)
}

// Service reads scans and the mapping snapshot. It never writes.
type Service struct {
	db       *sqlx.DB
	mappings *mapping.Table
	loc      *time.Location
}

// NewService groups in loc; nil means time.Local.
func NewService(db *sqlx.DB, mappings *mapping.Table, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{db: db, mappings: mappings, loc: loc}
}

// Location is the zone used for shift classification and timestamps.
func (s *Service) Location() *time.Location { return s.loc }

// ListGrouped returns every scan, annotated with its mapped path and
// partitioned by shift, newest first within each shift. The whole set is
// loaded; there is no pagination.
func (s *Service) ListGrouped(ctx context.Context) (model.GroupedScans, error) {
	records, err := database.GetAllScans(ctx, s.db)
	if err != nil {
		return model.GroupedScans{}, database.Unavailable(err)
	}
	var lookup PathLookup
	if s.mappings != nil {
		lookup = s.mappings.Snapshot()
	}
	return Group(records, lookup, s.loc), nil
}

// Group annotates, sorts and partitions records. Records are sorted by
// timestamp descending; equal timestamps keep their input order. A nil lookup
// keeps the paths the records already carry.
func Group(records []model.ScanRecord, lookup PathLookup, loc *time.Location) model.GroupedScans {
	if loc == nil {
		loc = time.Local
	}

	sorted := make([]model.ScanRecord, len(records))
	for i, r := range records {
		r.Timestamp = r.Timestamp.In(loc)
		if lookup != nil {
			r.Path, _ = lookup.Lookup(r.Code)
		}
		sorted[i] = r
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	g := model.GroupedScans{
		Morning: []model.ScanRecord{},
		Evening: []model.ScanRecord{},
		Night:   []model.ScanRecord{},
	}
	for _, r := range sorted {
		b := g.Bucket(shift.Of(r.Timestamp))
		*b = append(*b, r)
	}
	return g
}

// Counts returns the number of records per shift.
func Counts(g model.GroupedScans) map[shift.Shift]int {
	counts := make(map[shift.Shift]int, len(shift.All))
	for _, s := range shift.All {
		counts[s] = len(*g.Bucket(s))
	}
	return counts
}
