package main

import (
	"net/http"
	"os"

	"shiftscan/aggregation"
	"shiftscan/automation"
	"shiftscan/config"
	"shiftscan/database"
	"shiftscan/export"
	"shiftscan/gate"
	"shiftscan/httpx"
	"shiftscan/ingest"
	"shiftscan/loader"
	"shiftscan/mapping"
	"shiftscan/middleware"
	"shiftscan/render"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// App is everything the HTTP routes need.
type App struct {
	DB        *sqlx.DB
	Logger    *zap.Logger
	Ingest    *ingest.Service
	Debouncer *ingest.Debouncer
	Mappings  *mapping.Table
	Scans     *aggregation.Service
	Gate      *gate.Gate
	StaticDir string
}

// NewRouter wires every API route. Clearing and exporting go through the gate.
func NewRouter(app *App) http.Handler {
	r := mux.NewRouter()

	gated := app.Gate.Middleware(app.Logger)
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", HealthHandler(app.DB, app.Mappings)).Methods(http.MethodGet)
	api.HandleFunc("/unlock", gate.UnlockHandler(app.Gate, app.Logger)).Methods(http.MethodPost)

	api.HandleFunc("/scanned-items", aggregation.ListGroupedHandler(app.Scans, app.Logger)).Methods(http.MethodGet)
	api.HandleFunc("/scanned-items", ingest.SubmitHandler(app.Ingest, app.Debouncer, app.Logger)).Methods(http.MethodPost)
	api.HandleFunc("/scanned-items/batch", ingest.BatchHandler(app.Ingest, app.Logger)).Methods(http.MethodPost)
	api.Handle("/scanned-items", gated(ingest.ClearHandler(app.Ingest, app.Logger))).Methods(http.MethodDelete)

	api.Handle("/export", gated(export.Handler(app.Scans, app.Logger))).Methods(http.MethodGet)
	api.HandleFunc("/report", render.ReportHandler(app.Scans, app.Logger)).Methods(http.MethodGet)
	api.HandleFunc("/report.pdf", automation.ReportPDFHandler(app.Scans, app.Logger)).Methods(http.MethodGet)

	api.HandleFunc("/mapping-data", mapping.ListMappingsHandler(app.Mappings)).Methods(http.MethodGet)
	api.HandleFunc("/mapping-data", mapping.ReplaceMappingsHandler(app.Mappings, app.Logger)).Methods(http.MethodPost)
	api.HandleFunc("/mapping-data/upload", mapping.UploadMappingsHandler(app.Mappings, app.Logger)).Methods(http.MethodPost)
	api.HandleFunc("/mapping-data/reload", loader.ReloadSeedHandler(app.Mappings, app.Logger)).Methods(http.MethodPost)

	api.HandleFunc("/config", GetConfigHandler()).Methods(http.MethodGet)
	api.Handle("/config", gated(SaveConfigHandler(app.Logger))).Methods(http.MethodPost)
	api.HandleFunc("/connect/qr.png", ConnectQRHandler(app.Logger)).Methods(http.MethodGet)

	if app.StaticDir != "" {
		if info, err := os.Stat(app.StaticDir); err == nil && info.IsDir() {
			r.PathPrefix("/").Handler(http.FileServer(http.Dir(app.StaticDir)))
		}
	}

	// Wrapped outside the router so that preflight requests, which match no
	// route, still get CORS headers.
	cors := middleware.CORS(config.GetConfig().Origins()...)
	return middleware.Recover(app.Logger)(middleware.WithLogging(app.Logger)(cors(r)))
}

// HealthHandler reports whether the store answers.
func HealthHandler(db *sqlx.DB, mappings *mapping.Table) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			httpx.Error(w, http.StatusServiceUnavailable, httpx.KindStorageUnavailable, err.Error())
			return
		}
		n, err := database.CountScans(db)
		if err != nil {
			httpx.Error(w, http.StatusServiceUnavailable, httpx.KindStorageUnavailable, err.Error())
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"scans":    n,
			"mappings": mappings.Snapshot().Len(),
		})
	}
}

// ConnectQRHandler returns a PNG QR code of the public scanning URL.
func ConnectQRHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := config.GetConfig().PublicURL
		if target == "" {
			httpx.Error(w, http.StatusNotFound, httpx.KindBadRequest, "public_url is not configured")
			return
		}
		png, err := qrcode.Encode(target, qrcode.Medium, 256)
		if err != nil {
			logger.Error("failed to encode QR code", zap.String("url", target), zap.Error(err))
			httpx.Error(w, http.StatusInternalServerError, httpx.KindInternal, "failed to encode QR code")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(png)
	}
}
