package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/export"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/normalizer"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/parser"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/repository"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/service"
	"github.com/FACorreiaa/gift-ledger/pkg/mail"
	"github.com/FACorreiaa/gift-ledger/pkg/storage"
)

var errBadRequest = errors.New("invalid request body")

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps service errors to HTTP statuses. Unknown errors are 500.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, parser.ErrUnknownStrategy),
		errors.Is(err, export.ErrUnknownDialect),
		errors.Is(err, ledger.ErrInvalidRecords),
		errors.Is(err, normalizer.ErrInvalidCorrection),
		errors.Is(err, mail.ErrNoRecipients),
		errors.Is(err, service.ErrNoImages):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, normalizer.ErrCorrectionNotFound),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrOCRUnavailable),
		errors.Is(err, service.ErrStorageDisabled),
		errors.Is(err, service.ErrSearchDisabled),
		errors.Is(err, service.ErrCorrectionsOffline),
		errors.Is(err, service.ErrMailDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *LedgerHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		msg = http.StatusText(code)
	}
	writeJSON(w, code, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
