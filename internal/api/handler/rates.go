package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"fxcalc/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const maxImportBody = 1 << 20

type GetByCodesResponse struct {
	Base      string          `json:"base"`
	Quote     string          `json:"quote"`
	Value     decimal.Decimal `json:"value"`
	Version   uint64          `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (h *Handler) GetByCodes(w http.ResponseWriter, r *http.Request) {
	base := domain.NormalizeCode(chi.URLParam(r, "base"))
	quote := domain.NormalizeCode(chi.URLParam(r, "quote"))

	if !base.IsValid() || !quote.IsValid() {
		writeError(w, http.StatusBadRequest, "currency codes must be 3 letters")
		return
	}

	rate, err := h.rates.GetRate(base, quote)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRateNotFound):
			writeError(w, http.StatusNotFound, "rate not found")
		case errors.Is(err, domain.ErrNotReady):
			writeError(w, http.StatusServiceUnavailable, "rates are not loaded yet")
		default:
			msg := "ups, couldn't get rate by codes this time"
			logrus.WithError(err).WithFields(logrus.Fields{"handler": "GetByCodes", "base": base, "quote": quote}).Error(msg)
			writeError(w, http.StatusInternalServerError, msg)
		}
		return
	}

	writeJSON(w, http.StatusOK, GetByCodesResponse{
		Base:      base.String(),
		Quote:     quote.String(),
		Value:     rate.Value,
		Version:   rate.Version,
		UpdatedAt: rate.UpdatedAt,
	})
}

type GetSupportedCodesResponse struct {
	Codes []domain.CurrencyCode `json:"codes"`
}

func (h *Handler) GetSupportedCodes(w http.ResponseWriter, _ *http.Request) {
	codes, err := h.rates.SupportedCodes()
	if err != nil {
		if errors.Is(err, domain.ErrNotReady) {
			writeError(w, http.StatusServiceUnavailable, "rates are not loaded yet")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list currencies")
		return
	}
	writeJSON(w, http.StatusOK, GetSupportedCodesResponse{Codes: codes})
}

type SnapshotResponse struct {
	Version    uint64                                  `json:"version"`
	CapturedAt time.Time                               `json:"captured_at"`
	Pivot      domain.CurrencyCode                     `json:"pivot"`
	Source     string                                  `json:"source"`
	Pairs      int                                     `json:"pairs"`
	Rates      map[domain.CurrencyCode]decimal.Decimal `json:"rates"`
}

func snapshotResponse(snap *domain.Snapshot) SnapshotResponse {
	return SnapshotResponse{
		Version:    snap.Version(),
		CapturedAt: snap.CapturedAt(),
		Pivot:      snap.Pivot(),
		Source:     snap.Source(),
		Pairs:      snap.Len(),
		Rates:      snap.PivotRates(),
	}
}

// GetSnapshot describes the snapshot conversions currently run against.
func (h *Handler) GetSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap, err := h.rates.Current()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "rates are not loaded yet")
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse(snap))
}

// GetArchivedSnapshot returns the records behind a past version, for auditing results.
func (h *Handler) GetArchivedSnapshot(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.ParseUint(chi.URLParam(r, "version"), 10, 64)
	if err != nil || version == 0 {
		writeError(w, http.StatusBadRequest, "invalid snapshot version")
		return
	}

	archived, err := h.rates.ArchivedSnapshot(r.Context(), version)
	if err != nil {
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			writeError(w, http.StatusNotFound, "snapshot not found")
			return
		}
		logrus.WithError(err).WithFields(logrus.Fields{"handler": "GetArchivedSnapshot", "version": version}).Error("snapshot wasn't read")
		writeError(w, http.StatusInternalServerError, "failed to get snapshot")
		return
	}
	writeJSON(w, http.StatusOK, archived)
}

type ImportBatchRequest struct {
	Source  string                `json:"source"`
	Records []domain.ImportRecord `json:"records"`
}

// ImportBatch is the on-demand import trigger: a full table replaces the current snapshot.
func (h *Handler) ImportBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req ImportBatchRequest
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	source := req.Source
	if source == "" {
		source = "api:import"
	}

	snap, err := h.rates.ImportBatch(r.Context(), domain.ImportBatch{
		Source:    source,
		FetchedAt: time.Now().UTC(),
		Records:   req.Records,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyBatch),
			errors.Is(err, domain.ErrMalformedRecord),
			errors.Is(err, domain.ErrInvalidRate),
			errors.Is(err, domain.ErrDuplicatePair):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrStaleSnapshot), errors.Is(err, domain.ErrSnapshotConflict):
			writeError(w, http.StatusConflict, err.Error())
		default:
			logrus.WithError(err).WithField("handler", "ImportBatch").Error("batch wasn't imported")
			writeError(w, http.StatusInternalServerError, "failed to import rates")
		}
		return
	}
	writeJSON(w, http.StatusCreated, snapshotResponse(snap))
}
