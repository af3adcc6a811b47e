package main

import (
	"errors"
	"net/http"
	"os"

	"shiftscan/config"
	"shiftscan/httpx"

	"go.uber.org/zap"
)

// GetConfigHandler returns the current settings. Gate secrets are never serialised.
func GetConfigHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, config.GetConfig())
	}
}

// SaveConfigHandler stores new settings. public_url applies immediately; the
// rest is read on the next start.
func SaveConfigHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var newCfg config.Config
		if err := httpx.DecodeJSON(w, r, 64<<10, &newCfg); err != nil {
			httpx.Error(w, http.StatusBadRequest, httpx.KindBadRequest, "invalid request body")
			return
		}

		if err := validateFolderPath(newCfg.MappingWatchDir); err != nil {
			httpx.Error(w, http.StatusBadRequest, httpx.KindBadRequest, err.Error())
			return
		}

		if err := config.SaveConfig(newCfg); err != nil {
			logger.Error("failed to save config", zap.Error(err))
			httpx.Error(w, http.StatusBadRequest, httpx.KindBadRequest, "failed to save settings: "+err.Error())
			return
		}
		logger.Info("config saved", zap.String("path", config.Path()))
		httpx.JSON(w, http.StatusOK, map[string]string{"message": "settings saved"})
	}
}

func validateFolderPath(path string) error {
	if path == "" {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.New("folder not found: " + path)
		}
		return errors.New("failed to check folder: " + err.Error())
	}
	if !info.IsDir() {
		return errors.New("path is not a folder: " + path)
	}
	return nil
}
