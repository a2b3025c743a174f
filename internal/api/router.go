package api

import (
	"fxcalc/internal/api/handler"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *handler.Handler) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Heartbeat("/healthz"))

	router.Post("/api/v1/conversions", h.SubmitConversion)
	router.Get("/api/v1/conversions/{id}", h.GetConversion)
	router.Delete("/api/v1/conversions/{id}", h.CancelConversion)

	router.Post("/api/v1/rates/imports", h.ImportBatch)
	router.Get("/api/v1/rates/snapshot", h.GetSnapshot)
	router.Get("/api/v1/rates/snapshots/{version:[0-9]+}", h.GetArchivedSnapshot)
	router.Get("/api/v1/rates/supported-currencies", h.GetSupportedCodes)
	router.Get("/api/v1/rates/{base:[A-Za-z]{3}}/{quote:[A-Za-z]{3}}", h.GetByCodes)
	return router
}
