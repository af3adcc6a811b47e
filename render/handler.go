package render

import (
	"net/http"
	"time"

	"shiftscan/aggregation"
	"shiftscan/httpx"

	"go.uber.org/zap"
)

// ReportHandler serves GET /api/report as an HTML page.
func ReportHandler(svc *aggregation.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		grouped, err := svc.ListGrouped(r.Context())
		if err != nil {
			logger.Error("report failed to load scans", zap.Error(err))
			httpx.Error(w, http.StatusServiceUnavailable, httpx.KindStorageUnavailable, "failed to load scanned items")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(RenderReportHTML(grouped, time.Now().In(svc.Location()))))
	}
}
