package database_test

import (
	"context"
	"testing"
	"time"

	"shiftscan/database"
	"shiftscan/model"
	"shiftscan/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertScanUniqueCode(t *testing.T) {
	db := testutil.NewDB(t)
	ts := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	tx, err := db.Beginx()
	require.NoError(t, err)
	ok, err := database.InsertScanInTx(tx, model.ScanRecord{ID: "a", Code: "111", Timestamp: ts})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = database.InsertScanInTx(tx, model.ScanRecord{ID: "b", Code: "111", Timestamp: ts})
	require.NoError(t, err)
	assert.False(t, ok, "second insert of the same code must be ignored")

	// Codes are compared case-sensitively.
	ok, err = database.InsertScanInTx(tx, model.ScanRecord{ID: "c", Code: "abc", Timestamp: ts})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = database.InsertScanInTx(tx, model.ScanRecord{ID: "d", Code: "ABC", Timestamp: ts})
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, tx.Commit())

	n, err := database.CountScans(db)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rec, err := database.GetScanByCode(db, "111")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "a", rec.ID)
	assert.True(t, ts.Equal(rec.Timestamp))

	rec, err = database.GetScanByCode(db, "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestGetAllScansOrder(t *testing.T) {
	db := testutil.NewDB(t)
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	tx, err := db.Beginx()
	require.NoError(t, err)
	for i, code := range []string{"old", "same-1", "same-2", "new"} {
		ts := base
		switch code {
		case "old":
			ts = base.Add(-time.Hour)
		case "new":
			ts = base.Add(time.Hour)
		}
		_, err := database.InsertScanInTx(tx, model.ScanRecord{ID: string(rune('a' + i)), Code: code, Timestamp: ts})
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())

	all, err := database.GetAllScans(context.Background(), db)
	require.NoError(t, err)
	var codes []string
	for _, r := range all {
		codes = append(codes, r.Code)
	}
	assert.Equal(t, []string{"new", "same-2", "same-1", "old"}, codes)
}

func TestDeleteAllScans(t *testing.T) {
	db := testutil.NewDB(t)

	tx, err := db.Beginx()
	require.NoError(t, err)
	_, err = database.InsertScanInTx(tx, model.ScanRecord{ID: "a", Code: "1", Timestamp: time.Now()})
	require.NoError(t, err)
	_, err = database.InsertScanInTx(tx, model.ScanRecord{ID: "b", Code: "2", Timestamp: time.Now()})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx, err = db.Beginx()
	require.NoError(t, err)
	n, err := database.DeleteAllScansInTx(tx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.EqualValues(t, 2, n)

	all, err := database.GetAllScans(context.Background(), db)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestReplaceMappings(t *testing.T) {
	db := testutil.NewDB(t)

	replace := func(entries []model.MappingEntry) {
		tx, err := db.Beginx()
		require.NoError(t, err)
		require.NoError(t, database.ReplaceMappingsInTx(tx, entries))
		require.NoError(t, tx.Commit())
	}

	replace([]model.MappingEntry{{Code: "1", Path: "A/1"}, {Code: "2", Path: "A/2"}})
	replace([]model.MappingEntry{{Code: "3", Path: "B/3"}})

	got, err := database.GetAllMappings(db)
	require.NoError(t, err)
	assert.Equal(t, []model.MappingEntry{{Code: "3", Path: "B/3"}}, got)
}

func TestUnavailableWraps(t *testing.T) {
	assert.Nil(t, database.Unavailable(nil))
	err := database.Unavailable(assert.AnError)
	assert.ErrorIs(t, err, database.ErrStorageUnavailable)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Same(t, err, database.Unavailable(err))
}
