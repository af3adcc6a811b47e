package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusConflict, KindDuplicateCode, "already scanned")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, ErrorBody{Error: KindDuplicateCode, Message: "already scanned"}, body)
}

func TestDecodeJSON(t *testing.T) {
	var v struct{ Code string }
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"1"}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, 1<<10, &v))
	assert.Equal(t, "1", v.Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":`))
	assert.Error(t, DecodeJSON(httptest.NewRecorder(), req, 1<<10, &v))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"`+strings.Repeat("x", 100)+`"}`))
	assert.Error(t, DecodeJSON(httptest.NewRecorder(), req, 16, &v))
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var v struct {
		Code string `json:"code"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"1","extra":true}`))
	err := DecodeJSON(httptest.NewRecorder(), req, 1<<10, &v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extra")
}
