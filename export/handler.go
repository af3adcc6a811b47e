package export

import (
	"bytes"
	"net/http"
	"net/url"
	"time"

	"shiftscan/aggregation"
	"shiftscan/httpx"

	"go.uber.org/zap"
)

// Handler serves GET /api/export?format=xlsx|csv. It is mounted behind the gate.
func Handler(svc *aggregation.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format := r.URL.Query().Get("format")
		if format == "" {
			format = FormatXLSX
		}
		if format != FormatXLSX && format != FormatCSV {
			httpx.Error(w, http.StatusBadRequest, httpx.KindBadRequest, "format must be xlsx or csv")
			return
		}

		grouped, err := svc.ListGrouped(r.Context())
		if err != nil {
			logger.Error("export failed to load scans", zap.Error(err))
			httpx.Error(w, http.StatusServiceUnavailable, httpx.KindStorageUnavailable, "failed to load scanned items")
			return
		}

		var buf bytes.Buffer
		contentType := "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		if format == FormatCSV {
			contentType = "text/csv; charset=utf-8"
			err = WriteCSV(&buf, grouped)
		} else {
			err = WriteXLSX(&buf, grouped)
		}
		if err != nil {
			logger.Error("export failed", zap.String("format", format), zap.Error(err))
			httpx.Error(w, http.StatusInternalServerError, httpx.KindInternal, "failed to build export")
			return
		}

		filename := Filename(format, time.Now().In(svc.Location()))
		logger.Info("export downloaded", zap.String("file", filename), zap.Int("rows", grouped.Len()))
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
		w.Write(buf.Bytes())
	}
}
