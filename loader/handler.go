package loader

import (
	"errors"
	"fmt"
	"net/http"

	"shiftscan/config"
	"shiftscan/database"
	"shiftscan/httpx"
	"shiftscan/mapping"

	"go.uber.org/zap"
)

// ReloadSeedHandler serves POST /api/mapping-data/reload, re-reading the
// configured seed file.
func ReloadSeedHandler(table *mapping.Table, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg := config.GetConfig()
		logger.Info("reloading mapping seed", zap.String("path", cfg.MappingSeedFile))

		n, err := ReloadSeed(r.Context(), table, cfg.MappingSeedFile, cfg.MappingCharset)
		switch {
		case err == nil:
			httpx.JSON(w, http.StatusOK, map[string]any{
				"message": fmt.Sprintf("reloaded %d mappings", n),
				"count":   n,
			})
		case errors.Is(err, ErrNoSeedFile), errors.Is(err, mapping.ErrInvalidMappingRow):
			httpx.Error(w, http.StatusBadRequest, kindFor(err), err.Error())
		case errors.Is(err, database.ErrStorageUnavailable):
			logger.Error("mapping seed reload failed", zap.Error(err))
			httpx.Error(w, http.StatusServiceUnavailable, httpx.KindStorageUnavailable, "failed to store mapping data")
		default:
			logger.Error("mapping seed reload failed", zap.Error(err))
			httpx.Error(w, http.StatusInternalServerError, httpx.KindInternal, err.Error())
		}
	}
}

func kindFor(err error) string {
	if errors.Is(err, mapping.ErrInvalidMappingRow) {
		return httpx.KindInvalidMappingRow
	}
	return httpx.KindBadRequest
}
