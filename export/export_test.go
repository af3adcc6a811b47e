package export_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"shiftscan/aggregation"
	"shiftscan/export"
	"shiftscan/ingest"
	"shiftscan/mapping"
	"shiftscan/model"
	"shiftscan/shift"
	"shiftscan/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type triple struct {
	Code, Path string
	Unix       int64
}

func triples(rows []export.Row) []triple {
	out := make([]triple, len(rows))
	for i, r := range rows {
		out[i] = triple{r.Code, r.Path, r.Timestamp.UnixMilli()}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func seed(t *testing.T) (*aggregation.Service, model.GroupedScans) {
	t.Helper()
	ctx := context.Background()
	db := testutil.NewDB(t)
	logger := zap.NewNop()
	loc := time.FixedZone("UTC+2", 2*60*60)

	table, err := mapping.NewTable(db, logger)
	require.NoError(t, err)
	require.NoError(t, table.Replace(ctx, []model.MappingEntry{
		{Code: "4006381333931", Path: "Aisle 3 / Shelf B"},
		{Code: "quoted", Path: `say "hi", then leave`},
	}))

	clock := &testutil.Clock{T: time.Date(2024, 7, 1, 6, 15, 0, 123e6, time.UTC)}
	svc := ingest.NewService(db, logger, ingest.WithClock(clock.Now))
	for _, code := range []string{"4006381333931", "quoted", "no-path", "0012"} {
		_, err := svc.Submit(ctx, code)
		require.NoError(t, err)
		clock.Advance(5*time.Hour + 7*time.Millisecond)
	}

	agg := aggregation.NewService(db, table, loc)
	g, err := agg.ListGrouped(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, g.Len())
	return agg, g
}

func TestXLSXRoundTrip(t *testing.T) {
	_, g := seed(t)

	var buf bytes.Buffer
	require.NoError(t, export.WriteXLSX(&buf, g))

	rows, err := export.ReadXLSX(&buf)
	require.NoError(t, err)
	assert.Equal(t, triples(export.Rows(g)), triples(rows))
	for _, r := range rows {
		assert.Equal(t, shift.Of(r.Timestamp), r.Shift)
	}
}

func TestCSVRoundTrip(t *testing.T) {
	_, g := seed(t)

	var buf bytes.Buffer
	require.NoError(t, export.WriteCSV(&buf, g))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte{0xEF, 0xBB, 0xBF}))

	rows, err := export.ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, triples(export.Rows(g)), triples(rows))
}

func TestRowsOrderAndLabels(t *testing.T) {
	_, g := seed(t)
	rows := export.Rows(g)

	var order []shift.Shift
	for _, r := range rows {
		if len(order) == 0 || order[len(order)-1] != r.Shift {
			order = append(order, r.Shift)
		}
	}
	for i := 1; i < len(order); i++ {
		assert.Less(t, order[i-1], order[i], "shifts appear in report order")
	}
}

func TestReadRejectsForeignFile(t *testing.T) {
	_, err := export.ReadCSV(bytes.NewBufferString("a,b\n1,2\n"))
	assert.Error(t, err)
}

func TestFilename(t *testing.T) {
	day := time.Date(2024, 2, 9, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "scanned-items-2024-02-09.xlsx", export.Filename(export.FormatXLSX, day))
	assert.Equal(t, "scanned-items-2024-02-09.csv", export.Filename(export.FormatCSV, day))
}

func TestHandler(t *testing.T) {
	agg, _ := seed(t)
	h := export.Handler(agg, zap.NewNop())

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/export?format=csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "scanned-items-")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")
	rows, err := export.ReadCSV(rec.Body)
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	rows, err = export.ReadXLSX(rec.Body)
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/export?format=pdf", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
