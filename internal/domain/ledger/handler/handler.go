// Package handler exposes the ledger service over HTTP with JSON bodies,
// multipart photo uploads and file downloads.
package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/normalizer"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/service"
)

// multipartMemory is how much of a multipart form is held in memory before
// spilling to temp files.
const multipartMemory = 8 << 20

// LedgerHandler serves the ledger API.
type LedgerHandler struct {
	svc    *service.LedgerService
	logger *slog.Logger
}

func NewLedgerHandler(svc *service.LedgerService, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{svc: svc, logger: logger}
}

// Register adds the API routes to mux.
func (h *LedgerHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/ledger/parse", h.Parse)
	mux.HandleFunc("POST /api/v1/ledger/recognize", h.Recognize)
	mux.HandleFunc("POST /api/v1/ledger/export/csv", h.ExportCSV)
	mux.HandleFunc("POST /api/v1/ledger/export/xlsx", h.ExportXLSX)
	mux.HandleFunc("POST /api/v1/ledger/import/csv", h.ImportCSV)
	mux.HandleFunc("POST /api/v1/ledger/share", h.Share)
	mux.HandleFunc("GET /api/v1/ledger/shared", h.Shared)
	mux.HandleFunc("POST /api/v1/ledger/suggest", h.Suggest)
	mux.HandleFunc("POST /api/v1/ledger/email", h.Email)

	mux.HandleFunc("POST /api/v1/ledgers", h.CreateLedger)
	mux.HandleFunc("GET /api/v1/ledgers", h.ListLedgers)
	mux.HandleFunc("GET /api/v1/ledgers/{id}", h.GetLedger)
	mux.HandleFunc("PUT /api/v1/ledgers/{id}", h.UpdateLedger)

	mux.HandleFunc("POST /api/v1/corrections", h.SaveCorrection)
	mux.HandleFunc("GET /api/v1/corrections", h.ListCorrections)
	mux.HandleFunc("DELETE /api/v1/corrections/{id}", h.DeleteCorrection)

	mux.HandleFunc("GET /api/v1/guests/search", h.SearchGuests)

	mux.HandleFunc("GET /api/v1/batches/{id}/images", h.BatchImages)
	mux.HandleFunc("GET /api/v1/batches/{id}/images/{fileID}", h.BatchImage)
	mux.HandleFunc("DELETE /api/v1/batches/{id}/images/{fileID}", h.DeleteBatchImage)
}

type recordsRequest struct {
	Title   string          `json:"title"`
	Dialect string          `json:"dialect"`
	Records []ledger.Record `json:"records"`
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

func (h *LedgerHandler) Parse(w http.ResponseWriter, r *http.Request) {
	var in service.ParseInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.svc.Parse(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Recognize takes photos in the "images" multipart field. When every
// accepted photo fails OCR the reply is 502 so the client can offer a retry.
func (h *LedgerHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["images"]
	uploads := make([]service.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			h.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			h.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
			return
		}
		ct := fh.Header.Get("Content-Type")
		if ct == "" || ct == "application/octet-stream" {
			ct = http.DetectContentType(data)
		}
		uploads = append(uploads, service.Upload{Name: fh.Filename, ContentType: ct, Data: data})
	}

	out, err := h.svc.Recognize(r.Context(), r.FormValue("strategy"), uploads)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if out.Failed > 0 && out.Failed == len(out.Images) {
		writeJSON(w, http.StatusBadGateway, struct {
			Error string `json:"error"`
			*service.RecognizeOutput
		}{Error: "text recognition failed, please try again", RecognizeOutput: out})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func writeFile(w http.ResponseWriter, f *service.File) {
	writeFileAs(w, f, "attachment")
}

func writeFileAs(w http.ResponseWriter, f *service.File, disposition string) {
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": f.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Data)
}

// ExportCSV honours a dialect query parameter over the body field.
func (h *LedgerHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	var in recordsRequest
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	dialect := in.Dialect
	if q := r.URL.Query().Get("dialect"); q != "" {
		dialect = q
	}
	f, err := h.svc.ExportCSV(in.Records, dialect)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeFile(w, f)
}

func (h *LedgerHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	var in recordsRequest
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	f, err := h.svc.ExportXLSX(in.Title, in.Records)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeFile(w, f)
}

// ImportCSV accepts either a raw CSV body or a multipart "file" field.
func (h *LedgerHandler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		f, _, ferr := r.FormFile("file")
		if ferr != nil {
			h.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, ferr))
			return
		}
		defer f.Close()
		data, err = io.ReadAll(f)
	} else {
		data, err = io.ReadAll(r.Body)
	}
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	out, err := h.svc.ImportCSV(data)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *LedgerHandler) Share(w http.ResponseWriter, r *http.Request) {
	var in recordsRequest
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.svc.Share(in.Records)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Shared never fails: a bad payload opens an empty table.
func (h *LedgerHandler) Shared(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.OpenShared(r.URL.Query().Get("data")))
}

func (h *LedgerHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	var in recordsRequest
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": h.svc.Suggest(r.Context(), in.Records)})
}

func (h *LedgerHandler) Email(w http.ResponseWriter, r *http.Request) {
	var in service.EmailInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.svc.EmailLedger(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func pathID(r *http.Request) (uuid.UUID, error) {
	return pathUUID(r, "id")
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", errBadRequest, name)
	}
	return id, nil
}

func batchFileIDs(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	batchID, err := pathID(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	fileID, err := pathUUID(r, "fileID")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return batchID, fileID, nil
}

func (h *LedgerHandler) CreateLedger(w http.ResponseWriter, r *http.Request) {
	var in service.SaveInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	l, err := h.svc.CreateLedger(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (h *LedgerHandler) ListLedgers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	ledgers, err := h.svc.ListLedgers(r.Context(), limit, max(offset, 0))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ledgers": ledgers})
}

func (h *LedgerHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	l, err := h.svc.GetLedger(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *LedgerHandler) UpdateLedger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in service.SaveInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	l, err := h.svc.UpdateLedger(r.Context(), id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *LedgerHandler) SaveCorrection(w http.ResponseWriter, r *http.Request) {
	var in normalizer.Correction
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.svc.SaveCorrection(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *LedgerHandler) ListCorrections(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListCorrections(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"corrections": list})
}

func (h *LedgerHandler) DeleteCorrection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.DeleteCorrection(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LedgerHandler) SearchGuests(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		h.writeError(w, r, fmt.Errorf("%w: q is required", errBadRequest))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	hits, err := h.svc.SearchGuests(q, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hits": hits})
}

func (h *LedgerHandler) BatchImages(w http.ResponseWriter, r *http.Request) {
	batchID, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	files, err := h.svc.BatchImages(r.Context(), batchID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"images": files})
}

// BatchImage serves a kept photo inline so it can be shown next to the table.
func (h *LedgerHandler) BatchImage(w http.ResponseWriter, r *http.Request) {
	batchID, fileID, err := batchFileIDs(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	f, err := h.svc.BatchImage(r.Context(), batchID, fileID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeFileAs(w, f, "inline")
}

func (h *LedgerHandler) DeleteBatchImage(w http.ResponseWriter, r *http.Request) {
	batchID, fileID, err := batchFileIDs(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.DeleteBatchImage(r.Context(), batchID, fileID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
