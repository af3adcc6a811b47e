package mapping

import (
	"errors"
	"fmt"
	"net/http"

	"shiftscan/database"
	"shiftscan/httpx"
	"shiftscan/model"
	"shiftscan/parsers"

	"go.uber.org/zap"
)

const maxUploadBytes = 32 << 20

type replaceRequest struct {
	Mappings []model.MappingEntry `json:"mappings"`
}

// ListMappingsHandler returns the current mapping set.
func ListMappingsHandler(t *Table) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := t.Snapshot()
		httpx.JSON(w, http.StatusOK, map[string]any{
			"count":    snap.Len(),
			"mappings": snap.Entries(),
		})
	}
}

// ReplaceMappingsHandler accepts {"mappings":[{"code":..,"path":..}]}.
func ReplaceMappingsHandler(t *Table, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req replaceRequest
		if err := httpx.DecodeJSON(w, r, maxUploadBytes, &req); err != nil {
			httpx.Error(w, http.StatusBadRequest, httpx.KindBadRequest, err.Error())
			return
		}
		replace(w, r, t, logger, req.Mappings)
	}
}

// UploadMappingsHandler accepts a multipart "file" (xlsx or csv). The optional
// "charset" form value selects the CSV encoding.
func UploadMappingsHandler(t *Table, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, httpx.KindBadRequest, "failed to read uploaded file: "+err.Error())
			return
		}
		defer file.Close()

		entries, err := parsers.ParseMappingFile(header.Filename, file, r.FormValue("charset"))
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, httpx.KindBadRequest, "failed to parse mapping file: "+err.Error())
			return
		}
		logger.Info("mapping file uploaded", zap.String("file", header.Filename), zap.Int("rows", len(entries)))
		replace(w, r, t, logger, entries)
	}
}

func replace(w http.ResponseWriter, r *http.Request, t *Table, logger *zap.Logger, entries []model.MappingEntry) {
	err := t.Replace(r.Context(), entries)
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusOK, map[string]any{
			"message": fmt.Sprintf("uploaded %d mappings", len(entries)),
			"count":   len(entries),
		})
	case errors.Is(err, ErrInvalidMappingRow):
		httpx.Error(w, http.StatusBadRequest, httpx.KindInvalidMappingRow, err.Error())
	case errors.Is(err, database.ErrStorageUnavailable):
		logger.Error("mapping replace failed", zap.Error(err))
		httpx.Error(w, http.StatusServiceUnavailable, httpx.KindStorageUnavailable, "failed to store mapping data")
	default:
		logger.Error("mapping replace failed", zap.Error(err))
		httpx.Error(w, http.StatusInternalServerError, httpx.KindInternal, "failed to store mapping data")
	}
}
