package aggregation_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shiftscan/aggregation"
	"shiftscan/ingest"
	"shiftscan/mapping"
	"shiftscan/model"
	"shiftscan/shift"
	"shiftscan/testutil"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mapLookup map[string]string

func (m mapLookup) Lookup(code string) (string, bool) {
	p, ok := m[code]
	return p, ok
}

func at(h, m int) time.Time {
	return time.Date(2024, 5, 2, h, m, 0, 0, time.UTC)
}

func codes(recs []model.ScanRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Code
	}
	return out
}

func TestGroupBoundaries(t *testing.T) {
	records := []model.ScanRecord{
		{ID: "1", Code: "n-0759", Timestamp: at(7, 59)},
		{ID: "2", Code: "m-0800", Timestamp: at(8, 0)},
		{ID: "3", Code: "m-1559", Timestamp: at(15, 59)},
		{ID: "4", Code: "e-1600", Timestamp: at(16, 0)},
		{ID: "5", Code: "e-2359", Timestamp: at(23, 59)},
		{ID: "6", Code: "n-0000", Timestamp: at(0, 0)},
	}

	g := aggregation.Group(records, nil, time.UTC)

	assert.Equal(t, []string{"m-1559", "m-0800"}, codes(g.Morning))
	assert.Equal(t, []string{"e-2359", "e-1600"}, codes(g.Evening))
	assert.Equal(t, []string{"n-0759", "n-0000"}, codes(g.Night))
	assert.Equal(t, len(records), g.Len())
}

func TestGroupAnnotatesPaths(t *testing.T) {
	records := []model.ScanRecord{
		{ID: "1", Code: "A1", Timestamp: at(9, 0)},
		{ID: "2", Code: "B2", Timestamp: at(9, 5), Path: "stale"},
	}
	g := aggregation.Group(records, mapLookup{"A1": "/x/a"}, time.UTC)

	want := []model.ScanRecord{
		{ID: "2", Code: "B2", Timestamp: at(9, 5)},
		{ID: "1", Code: "A1", Timestamp: at(9, 0), Path: "/x/a"},
	}
	if diff := cmp.Diff(want, g.Morning); diff != "" {
		t.Errorf("morning bucket mismatch (-want +got):\n%s", diff)
	}
	// input is not modified
	assert.Equal(t, "stale", records[1].Path)
}

func TestGroupUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	// 14:00 UTC is 09:00 at UTC-5.
	g := aggregation.Group([]model.ScanRecord{{ID: "1", Code: "X", Timestamp: at(14, 0)}}, nil, loc)

	require.Len(t, g.Morning, 1)
	assert.Equal(t, loc, g.Morning[0].Timestamp.Location())
	assert.Empty(t, g.Evening)
}

func TestGroupStableForEqualTimestamps(t *testing.T) {
	records := []model.ScanRecord{
		{ID: "1", Code: "first", Timestamp: at(10, 0)},
		{ID: "2", Code: "second", Timestamp: at(10, 0)},
		{ID: "3", Code: "third", Timestamp: at(10, 0)},
	}
	g := aggregation.Group(records, nil, time.UTC)
	assert.Equal(t, []string{"first", "second", "third"}, codes(g.Morning))
}

func TestGroupEmptyBucketsAreNonNil(t *testing.T) {
	g := aggregation.Group(nil, nil, time.UTC)
	for _, s := range shift.All {
		assert.NotNil(t, *g.Bucket(s), s.String())
	}

	b, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"morning":[],"evening":[],"night":[]}`, string(b))
}

func TestCounts(t *testing.T) {
	g := aggregation.Group([]model.ScanRecord{
		{Code: "a", Timestamp: at(9, 0)},
		{Code: "b", Timestamp: at(10, 0)},
		{Code: "c", Timestamp: at(2, 0)},
	}, nil, time.UTC)
	assert.Equal(t, map[shift.Shift]int{shift.Morning: 2, shift.Evening: 0, shift.Night: 1}, aggregation.Counts(g))
}

func TestListGroupedReadsStore(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	logger := zap.NewNop()

	table, err := mapping.NewTable(db, logger)
	require.NoError(t, err)
	require.NoError(t, table.Replace(ctx, []model.MappingEntry{{Code: "111", Path: "/shelf/1"}}))

	clock := &testutil.Clock{T: at(8, 30)}
	ingester := ingest.NewService(db, logger, ingest.WithClock(clock.Now))
	_, err = ingester.Submit(ctx, "111")
	require.NoError(t, err)
	clock.T = at(17, 0)
	_, err = ingester.Submit(ctx, "222")
	require.NoError(t, err)

	svc := aggregation.NewService(db, table, time.UTC)
	g, err := svc.ListGrouped(ctx)
	require.NoError(t, err)
	require.Len(t, g.Morning, 1)
	require.Len(t, g.Evening, 1)
	assert.Empty(t, g.Night)
	assert.Equal(t, "/shelf/1", g.Morning[0].Path)
	assert.Equal(t, "", g.Evening[0].Path)
	assert.True(t, g.Morning[0].Timestamp.Equal(at(8, 30)))

	// After clearing, every bucket is empty.
	_, err = ingester.ClearAll(ctx)
	require.NoError(t, err)
	g, err = svc.ListGrouped(ctx)
	require.NoError(t, err)
	assert.Zero(t, g.Len())
	assert.NotNil(t, g.Morning)
}

func TestListGroupedHandler(t *testing.T) {
	db := testutil.NewDB(t)
	logger := zap.NewNop()
	table, err := mapping.NewTable(db, logger)
	require.NoError(t, err)
	svc := aggregation.NewService(db, table, time.UTC)

	rec := httptest.NewRecorder()
	aggregation.ListGroupedHandler(svc, logger)(rec, httptest.NewRequest(http.MethodGet, "/api/scanned-items", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"morning":[],"evening":[],"night":[]}`, rec.Body.String())
}

func TestListGroupedStorageUnavailable(t *testing.T) {
	db := testutil.NewDB(t)
	logger := zap.NewNop()
	table, err := mapping.NewTable(db, logger)
	require.NoError(t, err)
	svc := aggregation.NewService(db, table, time.UTC)
	require.NoError(t, db.Close())

	rec := httptest.NewRecorder()
	aggregation.ListGroupedHandler(svc, logger)(rec, httptest.NewRequest(http.MethodGet, "/api/scanned-items", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
