package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/altamira-asset/indexes-server/internal/collector"
	"github.com/altamira-asset/indexes-server/internal/domain/indices"
	"github.com/altamira-asset/indexes-server/internal/domain/quotations"
	"github.com/altamira-asset/indexes-server/internal/provider"
	"github.com/shopspring/decimal"
)

type fakeService struct {
	result  *collector.Result
	err     error
	lastReq collector.Request
}

func (f *fakeService) Collect(_ context.Context, req collector.Request) (*collector.Result, error) {
	f.lastReq = req
	return f.result, f.err
}

func (f *fakeService) CollectLatest(context.Context) (*collector.Result, error) {
	return f.result, f.err
}

func (f *fakeService) SeedSyntheticBases(context.Context) (*collector.Result, error) {
	return f.result, f.err
}

type fakeStore struct {
	quotations []quotations.Quotation
	indices    []indices.Index
	err        error
}

func (f *fakeStore) List(context.Context) ([]quotations.Quotation, error) {
	return f.quotations, f.err
}

func (f *fakeStore) ListIndicesMissingAny(context.Context) ([]indices.Index, error) {
	return f.indices, f.err
}

func okResult() *collector.Result {
	return &collector.Result{
		RunID: "01HV5K2E8PYRNJQJXW3F4T9QZA",
		Inserted: []quotations.Quotation{{
			IndexName:    "IMA-B",
			CurrencyCode: "BRL",
			SourceName:   "Quantum",
			Date:         time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC),
			Value:        decimal.RequireFromString("5432.10"),
		}},
		Missing: []string{"CDI"},
	}
}

func TestCollectOK(t *testing.T) {
	svc := &fakeService{result: okResult()}
	h := NewCollectionsHandler(svc, &fakeStore{}, "test")

	body := `{"start_date":"2024-01-02","end_date":"2024-01-05",
		"indices":[{"source":"Quantum","currency":"BRL","index":"IMA-B"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/collections", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Collect(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		RunID    string `json:"run_id"`
		Inserted []struct {
			Index string `json:"index"`
			Date  string `json:"date"`
			Value string `json:"value"`
		} `json:"inserted"`
		Missing []string `json:"missing"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RunID == "" {
		t.Error("missing run_id")
	}
	if len(resp.Inserted) != 1 || resp.Inserted[0].Index != "IMA-B" || resp.Inserted[0].Value != "5432.1" {
		t.Errorf("inserted = %+v", resp.Inserted)
	}
	if resp.Inserted[0].Date != "2024-01-02" {
		t.Errorf("date = %q, want 2024-01-02", resp.Inserted[0].Date)
	}
	if len(resp.Missing) != 1 || resp.Missing[0] != "CDI" {
		t.Errorf("missing = %v", resp.Missing)
	}

	if !svc.lastReq.Start.Equal(time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("service start = %s", svc.lastReq.Start)
	}
	if len(svc.lastReq.Indices) != 1 || svc.lastReq.Indices[0].Index != "IMA-B" {
		t.Errorf("service selectors = %+v", svc.lastReq.Indices)
	}
}

func TestCollectValidation(t *testing.T) {
	h := NewCollectionsHandler(&fakeService{result: okResult()}, &fakeStore{}, "test")

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing dates", `{"indices":[{"source":"Quantum","currency":"BRL","index":"IMA-B"}]}`},
		{"bad date format", `{"start_date":"02/01/2024","end_date":"2024-01-05"}`},
		{"lowercase currency", `{"start_date":"2024-01-02","end_date":"2024-01-05","indices":[{"source":"Quantum","currency":"brl","index":"IMA-B"}]}`},
		{"unknown field", `{"start_date":"2024-01-02","end_date":"2024-01-05","extra":true}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/collections", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()

			h.Collect(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400; body %s", rec.Code, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Errorf("content type = %q", ct)
			}
		})
	}
}

func TestCollectErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{
			"missing base",
			&provider.FetchError{Source: "Quantum", Currency: "BRL",
				Err: quotations.MissingBaseError{IndexName: "CONSIGNADO-INSS", Date: time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)}},
			http.StatusUnprocessableEntity,
		},
		{
			"unknown identifier",
			&provider.FetchError{Source: "Quantum", Currency: "BRL",
				Err: quotations.UnknownIdentifierError{SourceName: "Quantum", Code: "GHOST"}},
			http.StatusUnprocessableEntity,
		},
		{
			"transport failure",
			&provider.FetchError{Source: "Quantum", Currency: "BRL", Err: context.DeadlineExceeded},
			http.StatusBadGateway,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewCollectionsHandler(&fakeService{err: tc.err}, &fakeStore{}, "test")

			req := httptest.NewRequest(http.MethodPost, "/api/v1/collections:latest", nil)
			rec := httptest.NewRecorder()

			h.CollectLatest(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d; body %s", rec.Code, tc.status, rec.Body.String())
			}
		})
	}
}

func TestListQuotations(t *testing.T) {
	store := &fakeStore{quotations: []quotations.Quotation{{
		IndexName:    "IMA-B",
		CurrencyCode: "BRL",
		SourceName:   "Quantum",
		Date:         time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC),
		Value:        decimal.RequireFromString("5432.10"),
	}}}
	h := NewCollectionsHandler(&fakeService{}, store, "test")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quotations", nil)
	rec := httptest.NewRecorder()

	h.ListQuotations(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Quotations []struct {
			Index string `json:"index"`
			Date  string `json:"date"`
			Value string `json:"value"`
		} `json:"quotations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Quotations) != 1 || resp.Quotations[0].Index != "IMA-B" || resp.Quotations[0].Date != "2024-01-02" {
		t.Errorf("quotations = %+v", resp.Quotations)
	}
}

func TestMissingIndices(t *testing.T) {
	missing := &fakeStore{indices: []indices.Index{{
		Name:                "NOVO-IDX",
		Currency:            indices.Currency{Code: "BRL"},
		PrincipalSource:     indices.DataSource{Name: "Quantum"},
		CollectionStartDate: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
	}}}
	h := NewCollectionsHandler(&fakeService{}, missing, "test")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/indices:missing", nil)
	rec := httptest.NewRecorder()

	h.MissingIndices(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Indices []struct {
			Name                string `json:"name"`
			CollectionStartDate string `json:"collection_start_date"`
		} `json:"indices"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Indices) != 1 || resp.Indices[0].Name != "NOVO-IDX" || resp.Indices[0].CollectionStartDate != "2024-03-01" {
		t.Errorf("indices = %+v", resp.Indices)
	}
}
