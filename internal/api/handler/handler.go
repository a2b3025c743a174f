package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"fxcalc/internal/domain"

	"github.com/google/uuid"
)

type RateService interface {
	ImportBatch(ctx context.Context, batch domain.ImportBatch) (*domain.Snapshot, error)
	Current() (*domain.Snapshot, error)
	GetRate(base, quote domain.CurrencyCode) (domain.Rate, error)
	SupportedCodes() ([]domain.CurrencyCode, error)
	ArchivedSnapshot(ctx context.Context, version uint64) (domain.ArchivedSnapshot, error)
}

type ConversionPool interface {
	Submit(req domain.ConversionRequest) error
	Cancel(requestID string) error
	Status(requestID string) (domain.Outcome, domain.State, error)
}

type Handler struct {
	rates RateService
	pool  ConversionPool
	newID func() string
}

func NewHandler(rates RateService, pool ConversionPool) *Handler {
	return &Handler{rates: rates, pool: pool, newID: uuid.NewString}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, statusCode int, errorMsg string) {
	writeJSON(w, statusCode, errorResponse{Error: errorMsg})
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
