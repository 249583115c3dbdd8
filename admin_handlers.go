package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"nvr-kiosk/work/config"
	"nvr-kiosk/work/kiosk"
	"nvr-kiosk/work/logger"
	"nvr-kiosk/work/middleware"
	"nvr-kiosk/work/stats"
	"nvr-kiosk/work/watchdog"
)

// StatusResponse is the payload for GET /api/status.
type StatusResponse struct {
	Page          int                       `json:"page"`
	TotalPages    int                       `json:"totalPages"`
	GridSize      int                       `json:"gridSize"`
	ActiveCameras int                       `json:"activeCameras"`
	Watchdog      bool                      `json:"watchdogRunning"`
	Viewports     []watchdog.ViewportStatus `json:"viewports"`
	UptimeSeconds int64                     `json:"uptimeSeconds"`
}

// ConfigResponse is the payload for GET /api/config. Credentials are
// omitted.
type ConfigResponse struct {
	Host            string `json:"host"`
	Port            string `json:"port"`
	SubStream       bool   `json:"subStream"`
	GridSize        int    `json:"gridSize"`
	IntervalSeconds int    `json:"intervalSeconds"`
	ActiveCameraIDs []int  `json:"activeCameraIds"`
	PingSeconds     int    `json:"pingSeconds"`
}

// ConfigRequest is the payload for PUT /api/config. Omitted sections keep
// their current values.
type ConfigRequest struct {
	Tour *struct {
		GridSize        int   `json:"gridSize"`
		IntervalSeconds int   `json:"intervalSeconds"`
		ActiveCameraIDs []int `json:"activeCameraIds"`
	} `json:"tour"`
	Endpoint *config.StreamEndpoint `json:"endpoint"`
}

// setupAdminRoutes registers the admin API on the router. Reads are open;
// anything that mutates state requires the admin secret.
func setupAdminRoutes(r *mux.Router, k *kiosk.Kiosk) {
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", handleStatus(k)).Methods("GET")
	api.HandleFunc("/stats", handleStats(k)).Methods("GET")
	api.HandleFunc("/config", handleGetConfig(k)).Methods("GET")
	api.HandleFunc("/cameras", handleListCameras(k)).Methods("GET")

	admin := r.PathPrefix("/api").Subrouter()
	admin.Use(middlewareRequireAdmin(k))
	admin.HandleFunc("/config", handleSaveConfig(k)).Methods("PUT")
	admin.HandleFunc("/restart", handleRestart(k)).Methods("POST")
	admin.HandleFunc("/cameras/import", handleImportCameras(k)).Methods("POST")
}

func handleStatus(k *kiosk.Kiosk) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cached, ok := k.Cache.Get("status"); ok {
			writeCachedJSON(w, cached)
			return
		}

		tc := k.TourConfig()
		resp := StatusResponse{
			Page:          k.Tour.PageIndex(),
			TotalPages:    k.Tour.Pages(),
			GridSize:      tc.GridSize,
			ActiveCameras: len(tc.ActiveCameraIDs),
			Watchdog:      k.Watchdog.Running(),
			Viewports:     k.Watchdog.Snapshot(),
			UptimeSeconds: int64(k.Uptime() / time.Second),
		}
		writeAndCacheJSON(w, k, "status", resp)
	}
}

func handleStats(k *kiosk.Kiosk) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cached, ok := k.Cache.Get("stats"); ok {
			writeCachedJSON(w, cached)
			return
		}
		writeAndCacheJSON(w, k, "stats", stats.Collect())
	}
}

func handleGetConfig(k *kiosk.Kiosk) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc := k.TourConfig()
		e := k.Endpoint()
		resp := ConfigResponse{
			Host:            e.Host,
			Port:            e.Port,
			SubStream:       e.SubStream,
			GridSize:        tc.GridSize,
			IntervalSeconds: int(tc.Interval / time.Second),
			ActiveCameraIDs: tc.ActiveCameraIDs,
			PingSeconds:     int(k.Config.PingInterval / time.Second),
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleSaveConfig(k *kiosk.Kiosk) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ConfigRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}

		if req.Endpoint != nil {
			if err := k.ApplyEndpoint(*req.Endpoint); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		if req.Tour != nil {
			tc := config.TourConfig{
				GridSize:        req.Tour.GridSize,
				Interval:        time.Duration(req.Tour.IntervalSeconds) * time.Second,
				ActiveCameraIDs: req.Tour.ActiveCameraIDs,
			}
			if err := k.ApplyTourConfig(tc); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		logger.Info("Configuration saved via admin API")
		writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
	}
}

func handleRestart(k *kiosk.Kiosk) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		k.RestartStreams()
		writeJSON(w, http.StatusOK, map[string]string{"status": "restarting"})
	}
}

func handleListCameras(k *kiosk.Kiosk) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cams, err := k.DB.ListCameras()
		if err != nil {
			logger.Error("Camera list failed: %v", err)
			http.Error(w, "failed to list cameras", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, cams)
	}
}

func handleImportCameras(k *kiosk.Kiosk) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := k.ImportCameras(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"imported": count})
	}
}

func middlewareRequireAdmin(k *kiosk.Kiosk) mux.MiddlewareFunc {
	guard := middleware.RequireAdmin(k.Config.AdminPassHash)
	return func(next http.Handler) http.Handler {
		return guard(next)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response: %v", err)
	}
}

func writeCachedJSON(w http.ResponseWriter, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)
}

func writeAndCacheJSON(w http.ResponseWriter, k *kiosk.Kiosk, key string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		logger.Error("Failed to encode %s response: %v", key, err)
		http.Error(w, "encoding failed", http.StatusInternalServerError)
		return
	}
	k.Cache.Set(key, payload)
	writeCachedJSON(w, payload)
}
