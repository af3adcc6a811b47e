package ingest

import (
	"errors"
	"net/http"
	"time"

	"shiftscan/database"
	"shiftscan/httpx"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// MaxClockSkew bounds how far a camera's detectedAt may be from server time
// before the server uses its own clock for debouncing.
const MaxClockSkew = 5 * time.Second

// Sources accepted by SubmitHandler. Camera reads pass through the debouncer;
// scanner and manual entries are submitted directly.
const (
	SourceCamera  = "camera"
	SourceScanner = "scanner"
	SourceManual  = "manual"
)

type submitRequest struct {
	Code       string     `json:"code"`
	Source     string     `json:"source"`
	DetectedAt *time.Time `json:"detectedAt"`
}

type batchItem struct {
	Code string `json:"code"`
}

// batchRequest accepts either {"items":[{"code":..}]} or {"codes":[..]}.
type batchRequest struct {
	Items []batchItem `json:"items"`
	Codes []string    `json:"codes"`
}

func (b batchRequest) codes() []string {
	out := make([]string, 0, len(b.Items)+len(b.Codes))
	for _, it := range b.Items {
		out = append(out, it.Code)
	}
	return append(out, b.Codes...)
}

// SubmitHandler serves POST /api/scanned-items.
func SubmitHandler(s *Service, d *Debouncer, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := httpx.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
			httpx.Error(w, http.StatusBadRequest, httpx.KindBadRequest, err.Error())
			return
		}

		if req.Source == SourceCamera {
			now := s.now()
			ev := Event{Code: req.Code, DetectedAt: now}
			if req.DetectedAt != nil {
				if skew := req.DetectedAt.Sub(now); skew >= -MaxClockSkew && skew <= MaxClockSkew {
					ev.DetectedAt = *req.DetectedAt
				}
			}
			out := Deliver(r.Context(), s, d, ev)
			if out.Debounced {
				httpx.JSON(w, http.StatusAccepted, map[string]any{"debounced": true, "code": out.Event.Code})
				return
			}
			if out.Err != nil {
				writeError(w, logger, out.Err)
				return
			}
			httpx.JSON(w, http.StatusCreated, out.Record)
			return
		}

		rec, err := s.Submit(r.Context(), req.Code)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, rec)
	}
}

// BatchHandler serves POST /api/scanned-items/batch.
func BatchHandler(s *Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req batchRequest
		if err := httpx.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
			httpx.Error(w, http.StatusBadRequest, httpx.KindBadRequest, err.Error())
			return
		}

		result, err := s.SubmitBatch(r.Context(), req.codes())
		if errors.Is(err, ErrAllDuplicates) {
			httpx.JSON(w, http.StatusConflict, map[string]any{
				"error":         httpx.KindAllDuplicates,
				"message":       err.Error(),
				"accepted":      result.Accepted,
				"rejectedCount": result.RejectedCount,
			})
			return
		}
		if err != nil {
			writeError(w, logger, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, result)
	}
}

// ClearHandler serves DELETE /api/scanned-items. It is mounted behind the gate.
func ClearHandler(s *Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := s.ClearAll(r.Context())
		if err != nil {
			writeError(w, logger, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"deleted": n})
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, ErrDuplicateCode):
		httpx.Error(w, http.StatusConflict, httpx.KindDuplicateCode, err.Error())
	case errors.Is(err, ErrAllDuplicates):
		httpx.Error(w, http.StatusConflict, httpx.KindAllDuplicates, err.Error())
	case errors.Is(err, ErrEmptyCode):
		httpx.Error(w, http.StatusBadRequest, httpx.KindEmptyCode, err.Error())
	case errors.Is(err, ErrEmptyBatch):
		httpx.Error(w, http.StatusBadRequest, httpx.KindBadRequest, err.Error())
	case errors.Is(err, database.ErrStorageUnavailable):
		logger.Error("scan storage failed", zap.Error(err))
		httpx.Error(w, http.StatusServiceUnavailable, httpx.KindStorageUnavailable, "scan storage is unavailable")
	default:
		logger.Error("scan request failed", zap.Error(err))
		httpx.Error(w, http.StatusInternalServerError, httpx.KindInternal, "internal error")
	}
}
