package automation

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"time"

	"shiftscan/aggregation"
	"shiftscan/httpx"
	"shiftscan/render"

	"go.uber.org/zap"
)

const printTimeout = 60 * time.Second

// ReportPDFHandler serves GET /api/report.pdf.
func ReportPDFHandler(svc *aggregation.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		grouped, err := svc.ListGrouped(r.Context())
		if err != nil {
			logger.Error("report failed to load scans", zap.Error(err))
			httpx.Error(w, http.StatusServiceUnavailable, httpx.KindStorageUnavailable, "failed to load scanned items")
			return
		}

		now := time.Now().In(svc.Location())
		ctx, cancel := context.WithTimeout(r.Context(), printTimeout)
		defer cancel()

		var buf bytes.Buffer
		logger.Info("printing report PDF", zap.Int("scans", grouped.Len()))
		if err := PrintHTMLToPDF(ctx, render.RenderReportHTML(grouped, now), &buf); err != nil {
			logger.Error("report PDF failed", zap.Error(err))
			httpx.Error(w, http.StatusInternalServerError, httpx.KindInternal, "failed to print report: "+err.Error())
			return
		}

		filename := "scan-report-" + now.Format("2006-01-02") + ".pdf"
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
		w.Write(buf.Bytes())
	}
}
