package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"fxcalc/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

const maxExpressionBody = 4 << 10

type SubmitConversionRequest struct {
	ID         string `json:"id"`
	Expression string `json:"expression"`
	Target     string `json:"target"`
}

type SubmitConversionResponse struct {
	RequestID string `json:"request_id"`
	State     string `json:"state"`
}

// SubmitConversion enqueues an expression. The outcome is delivered through the egress
// adapter and can be polled with GetConversion.
func (h *Handler) SubmitConversion(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxExpressionBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req SubmitConversionRequest
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Expression) == "" {
		writeError(w, http.StatusBadRequest, "expression is required")
		return
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = h.newID()
	}
	err := h.pool.Submit(domain.ConversionRequest{
		ID:          id,
		Expression:  req.Expression,
		Target:      domain.NormalizeCode(req.Target),
		SubmittedAt: time.Now().UTC(),
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, SubmitConversionResponse{RequestID: id, State: domain.StateReceived.String()})
	case errors.Is(err, domain.ErrOverloaded):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "service is overloaded, retry later")
	case errors.Is(err, domain.ErrPoolClosed):
		writeError(w, http.StatusServiceUnavailable, "service is shutting down")
	default:
		logrus.WithError(err).WithFields(logrus.Fields{"handler": "SubmitConversion", "request_id": id}).Error("conversion wasn't accepted")
		writeError(w, http.StatusInternalServerError, "failed to accept conversion")
	}
}

// GetConversion returns 200 with the outcome once finished, 202 with the state while in flight.
func (h *Handler) GetConversion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	outcome, state, err := h.pool.Status(id)
	if err != nil {
		if errors.Is(err, domain.ErrResultNotFound) {
			writeError(w, http.StatusNotFound, "conversion not found")
			return
		}
		logrus.WithError(err).WithFields(logrus.Fields{"handler": "GetConversion", "request_id": id}).Error("status wasn't read")
		writeError(w, http.StatusInternalServerError, "failed to get conversion")
		return
	}

	switch state {
	case domain.StateCompleted, domain.StateFailed, domain.StateCancelled:
		writeJSON(w, http.StatusOK, outcome)
	default:
		writeJSON(w, http.StatusAccepted, SubmitConversionResponse{RequestID: id, State: state.String()})
	}
}

func (h *Handler) CancelConversion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.pool.Cancel(id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, SubmitConversionResponse{RequestID: id, State: domain.StateCancelled.String()})
	case errors.Is(err, domain.ErrResultNotFound):
		writeError(w, http.StatusNotFound, "conversion not found")
	case errors.Is(err, domain.ErrNotCancelable):
		writeError(w, http.StatusConflict, "conversion is already being processed")
	default:
		logrus.WithError(err).WithFields(logrus.Fields{"handler": "CancelConversion", "request_id": id}).Error("conversion wasn't cancelled")
		writeError(w, http.StatusInternalServerError, "failed to cancel conversion")
	}
}
