// Package handlers implements the HTTP endpoints of the quotation service.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/altamira-asset/indexes-server/internal/api/problem"
	"github.com/altamira-asset/indexes-server/internal/collector"
	"github.com/altamira-asset/indexes-server/internal/domain/indices"
	"github.com/altamira-asset/indexes-server/internal/domain/quotations"
	"github.com/altamira-asset/indexes-server/internal/provider"
	"github.com/go-playground/validator/v10"
)

const (
	problemValidation  = "https://altamira.dev/problems/validation-error"
	problemIntegrity   = "https://altamira.dev/problems/collection-integrity"
	problemProvider    = "https://altamira.dev/problems/provider-unavailable"
	problemInternal    = "https://altamira.dev/problems/internal"
	maxCollectBodySize = 1 << 20
)

// CollectionService runs quotation collection use cases.
type CollectionService interface {
	Collect(ctx context.Context, req collector.Request) (*collector.Result, error)
	CollectLatest(ctx context.Context) (*collector.Result, error)
	SeedSyntheticBases(ctx context.Context) (*collector.Result, error)
}

// QuotationReader reads persisted quotations for the reporting endpoints.
type QuotationReader interface {
	List(ctx context.Context) ([]quotations.Quotation, error)
	ListIndicesMissingAny(ctx context.Context) ([]indices.Index, error)
}

type CollectionsHandler struct {
	service  CollectionService
	store    QuotationReader
	validate *validator.Validate
	env      string
}

func NewCollectionsHandler(service CollectionService, store QuotationReader, env string) *CollectionsHandler {
	return &CollectionsHandler{
		service:  service,
		store:    store,
		validate: validator.New(),
		env:      env,
	}
}

type selectorRequest struct {
	Source   string `json:"source" validate:"required"`
	Currency string `json:"currency" validate:"required,len=3,uppercase"`
	Index    string `json:"index" validate:"required"`
}

type collectRequest struct {
	Indices   []selectorRequest `json:"indices" validate:"omitempty,dive"`
	StartDate string            `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string            `json:"end_date" validate:"required,datetime=2006-01-02"`
}

type quotationResponse struct {
	Index    string `json:"index"`
	Currency string `json:"currency"`
	Source   string `json:"source"`
	Date     string `json:"date"`
	Value    string `json:"value"`
}

type collectResponse struct {
	RunID    string               `json:"run_id"`
	Inserted []quotationResponse  `json:"inserted"`
	Warnings []quotations.Warning `json:"warnings"`
	Missing  []string             `json:"missing,omitempty"`
}

// Collect handles POST /api/v1/collections: an explicit-range collection for
// the named indices, or for the whole registry when none are named.
func (h *CollectionsHandler) Collect(w http.ResponseWriter, r *http.Request) {
	var body collectRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCollectBodySize))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request body", err, h.env)
		return
	}
	if err := h.validate.Struct(body); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.env,
			problem.WithErrors(validationErrors(err)))
		return
	}

	start, _ := time.Parse("2006-01-02", body.StartDate)
	end, _ := time.Parse("2006-01-02", body.EndDate)
	req := collector.Request{Start: start, End: end}
	for _, sel := range body.Indices {
		req.Indices = append(req.Indices, collector.Selector{
			Source:   sel.Source,
			Currency: sel.Currency,
			Index:    sel.Index,
		})
	}

	result, err := h.service.Collect(r.Context(), req)
	if err != nil {
		writeCollectionError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, toCollectResponse(result))
}

// CollectLatest handles POST /api/v1/collections:latest, collecting the most
// recent missing quotation of every registered index.
func (h *CollectionsHandler) CollectLatest(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.CollectLatest(r.Context())
	if err != nil {
		writeCollectionError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, toCollectResponse(result))
}

// SeedBases handles POST /api/v1/synthetic-bases:seed.
func (h *CollectionsHandler) SeedBases(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.SeedSyntheticBases(r.Context())
	if err != nil {
		writeCollectionError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, toCollectResponse(result))
}

type missingIndexResponse struct {
	Name                string `json:"name"`
	Currency            string `json:"currency"`
	PrincipalSource     string `json:"principal_source"`
	CollectionStartDate string `json:"collection_start_date"`
}

// ListQuotations handles GET /api/v1/quotations, returning every persisted
// quotation ordered by date, then index name.
func (h *CollectionsHandler) ListQuotations(w http.ResponseWriter, r *http.Request) {
	stored, err := h.store.List(r.Context())
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problemInternal, "Listing failed", err, h.env)
		return
	}

	out := make([]quotationResponse, 0, len(stored))
	for _, q := range stored {
		out = append(out, quotationResponse{
			Index:    q.IndexName,
			Currency: q.CurrencyCode,
			Source:   q.SourceName,
			Date:     q.Date.Format("2006-01-02"),
			Value:    q.Value.String(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"quotations": out})
}

// MissingIndices handles GET /api/v1/indices:missing, listing indices with no
// quotation rows at all.
func (h *CollectionsHandler) MissingIndices(w http.ResponseWriter, r *http.Request) {
	missing, err := h.store.ListIndicesMissingAny(r.Context())
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problemInternal, "Listing failed", err, h.env)
		return
	}

	out := make([]missingIndexResponse, 0, len(missing))
	for _, ix := range missing {
		out = append(out, missingIndexResponse{
			Name:                ix.Name,
			Currency:            ix.Currency.Code,
			PrincipalSource:     ix.PrincipalSource.Name,
			CollectionStartDate: ix.CollectionStartDate.Format("2006-01-02"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"indices": out})
}

// writeCollectionError maps run failures onto problem responses: integrity
// violations are 422, provider transport failures 502, the rest 500.
func writeCollectionError(w http.ResponseWriter, r *http.Request, err error, env string) {
	var missingBase quotations.MissingBaseError
	var unknownIdent quotations.UnknownIdentifierError
	var fetchErr *provider.FetchError

	switch {
	case errors.As(err, &missingBase), errors.As(err, &unknownIdent):
		problem.Write(w, r, http.StatusUnprocessableEntity, problemIntegrity, "Collection integrity failure", err, env)
	case errors.As(err, &fetchErr):
		problem.Write(w, r, http.StatusBadGateway, problemProvider, "Provider request failed", err, env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problemInternal, "Collection failed", err, env)
	}
}

func toCollectResponse(result *collector.Result) collectResponse {
	resp := collectResponse{
		RunID:    result.RunID,
		Inserted: make([]quotationResponse, 0, len(result.Inserted)),
		Warnings: result.Warnings,
		Missing:  result.Missing,
	}
	if resp.Warnings == nil {
		resp.Warnings = []quotations.Warning{}
	}
	for _, q := range result.Inserted {
		resp.Inserted = append(resp.Inserted, quotationResponse{
			Index:    q.IndexName,
			Currency: q.CurrencyCode,
			Source:   q.SourceName,
			Date:     q.Date.Format("2006-01-02"),
			Value:    q.Value.String(),
		})
	}
	return resp
}

func validationErrors(err error) map[string]any {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	out := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		out[fe.Field()] = fmt.Sprintf("failed %q validation", fe.Tag())
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
