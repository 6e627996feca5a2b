// Package server exposes zone meshes and metrics over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Faultbox/voxelmesh/internal/logger"
	"github.com/Faultbox/voxelmesh/internal/store"
	"github.com/Faultbox/voxelmesh/internal/terrain"
	"github.com/Faultbox/voxelmesh/pkg/mesher"
	"github.com/Faultbox/voxelmesh/pkg/voxel"
)

// Handler routes:
//
//	GET /health
//	GET /metrics
//	GET /zones
//	GET /zones/{zone}/mesh.obj[?seams=1]
type Handler struct {
	svc   *terrain.Service
	store store.Store
	mux   *http.ServeMux
	log   *zap.Logger
}

// NewHandler serves the zones of st through svc.
func NewHandler(svc *terrain.Service, st store.Store) *Handler {
	h := &Handler{
		svc:   svc,
		store: st,
		mux:   http.NewServeMux(),
		log:   logger.Named("http"),
	}
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.Handle("GET /metrics", promhttp.Handler())
	h.mux.HandleFunc("GET /zones", h.handleZones)
	h.mux.HandleFunc("GET /zones/{zone}/mesh.obj", h.handleMesh)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleZones(w http.ResponseWriter, r *http.Request) {
	zones, err := h.store.List(r.Context())
	if err != nil {
		h.log.Error("listing zones failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	names := make([]string, len(zones))
	for i, z := range zones {
		names[i] = z.String()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(names)
}

func (h *Handler) handleMesh(w http.ResponseWriter, r *http.Request) {
	zone, err := voxel.ParseZone(r.PathValue("zone"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	md, err := h.svc.Mesh(r.Context(), zone)
	if err != nil {
		h.log.Error("meshing zone failed", zap.Stringer("zone", zone), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "model/obj")
	if err := mesher.WriteOBJ(w, md, r.URL.Query().Get("seams") == "1"); err != nil {
		h.log.Warn("writing mesh failed", zap.Stringer("zone", zone), zap.Error(err))
	}
}

// ListenAndServe runs srv until ctx is done, then shuts it down allowing
// timeout for in-flight requests.
func ListenAndServe(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	log := logger.Named("http")

	errc := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutting down the server failed", zap.String("addr", srv.Addr), zap.Error(err))
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("stopping server", zap.String("addr", srv.Addr))
	return nil
}
