package mapping_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"shiftscan/httpx"
	"shiftscan/mapping"
	"shiftscan/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReplaceMappingsHandler(t *testing.T) {
	tbl := newTable(t)
	h := mapping.ReplaceMappingsHandler(tbl, zap.NewNop())

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/api/mapping-data",
		strings.NewReader(`{"mappings":[{"code":"1","path":"a"},{"code":"2","path":"b"}]}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, tbl.Snapshot().Len())

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/api/mapping-data",
		strings.NewReader(`{"mappings":[{"code":"1","path":"a"},{"code":"2","path":""}]}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body httpx.ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, httpx.KindInvalidMappingRow, body.Error)
	assert.Contains(t, body.Message, "row 2")
	assert.Equal(t, 2, tbl.Snapshot().Len())

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/api/mapping-data", strings.NewReader(`nope`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadMappingsHandler(t *testing.T) {
	tbl := newTable(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "paths.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("code,path\n100,Shelf 1\n200,Shelf 2\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/mapping-data/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	mapping.UploadMappingsHandler(tbl, zap.NewNop())(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	mapping.ListMappingsHandler(tbl)(rec, httptest.NewRequest(http.MethodGet, "/api/mapping-data", nil))
	var list struct {
		Count    int                  `json:"count"`
		Mappings []model.MappingEntry `json:"mappings"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, model.MappingEntry{Code: "200", Path: "Shelf 2"}, list.Mappings[1])
}

func TestUploadMappingsHandlerNoFile(t *testing.T) {
	tbl := newTable(t)
	rec := httptest.NewRecorder()
	mapping.UploadMappingsHandler(tbl, zap.NewNop())(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
