package aggregation

import (
	"net/http"

	"shiftscan/httpx"

	"go.uber.org/zap"
)

// ListGroupedHandler serves GET /api/scanned-items.
func ListGroupedHandler(s *Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		grouped, err := s.ListGrouped(r.Context())
		if err != nil {
			logger.Error("failed to list scans", zap.Error(err))
			httpx.Error(w, http.StatusServiceUnavailable, httpx.KindStorageUnavailable, "failed to load scanned items")
			return
		}
		httpx.JSON(w, http.StatusOK, grouped)
	}
}
