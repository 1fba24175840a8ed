package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Simplici0/producao/internal/format"
	"github.com/Simplici0/producao/internal/production"
	"github.com/Simplici0/producao/internal/store"
)

// bomFetcher looks up the latest BOM of a product the local store lacks.
type bomFetcher interface {
	LatestBom(ctx context.Context, productCode string) (production.BomRecord, error)
}

type server struct {
	store    *store.Store
	upstream bomFetcher
	currency string
	logger   *zap.Logger
}

// newServer wires the HTTP handlers. upstream may be nil when BOM sync is
// disabled.
func newServer(st *store.Store, upstream bomFetcher, currency string, logger *zap.Logger) *server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if currency == "" {
		currency = format.DefaultCurrency
	}
	return &server{store: st, upstream: upstream, currency: currency, logger: logger}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/boms", func(r chi.Router) {
		r.Get("/", s.handleBomList)
		r.Post("/", s.handleBomCreate)
		r.Post("/totals", s.handleBomTotals)
		r.Get("/product/{code}/latest", s.handleBomLatest)
		r.Get("/{id}", s.handleBomGet)
		r.Patch("/{id}", s.handleBomUpdate)
		r.Delete("/{id}", s.handleBomDelete)
	})

	r.Route("/api/orders", func(r chi.Router) {
		r.Get("/", s.handleOrderList)
		r.Post("/", s.handleOrderCreate)
		r.Post("/projection", s.handleOrderProjection)
		r.Get("/{id}", s.handleOrderGet)
		r.Patch("/{id}", s.handleOrderUpdate)
		r.Get("/{id}/text", s.handleOrderText)
		r.Get("/{id}/status", s.handleStatusList)
		r.Post("/{id}/status", s.handleStatusCreate)
		r.Get("/{id}/finished-goods", s.handleFinishedGoodList)
		r.Post("/{id}/finished-goods", s.handleFinishedGoodCreate)
		r.Get("/{id}/raw-materials", s.handleRawMaterialList)
		r.Post("/{id}/raw-materials", s.handleRawMaterialCreate)
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("client_ip", r.RemoteAddr))
		})
	}
}
