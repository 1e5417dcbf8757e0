package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/voltquote/internal/collab"
	"github.com/Simplici0/voltquote/internal/export"
	"github.com/Simplici0/voltquote/internal/industry"
	"github.com/Simplici0/voltquote/internal/migrations"
	"github.com/Simplici0/voltquote/internal/pricing"
	"github.com/Simplici0/voltquote/internal/quote"
	"github.com/Simplici0/voltquote/internal/store"
)

const maxBodyBytes = 1 << 20

type industryView struct {
	Slug           string   `json:"slug"`
	Name           string   `json:"name"`
	Aliases        []string `json:"aliases"`
	DefaultSubtype string   `json:"defaultSubtype"`
	Subtypes       []string `json:"subtypes"`
	Method         string   `json:"method"`
}

type industriesResponse struct {
	Version    string         `json:"version"`
	Industries []industryView `json:"industries"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	version, err := migrations.Version(s.db)
	if err != nil {
		slog.Error("health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"schemaVersion": version,
		"engine":        quote.EngineVersion,
	})
}

func (s *server) handleIndustries(w http.ResponseWriter, r *http.Request) {
	reg := s.assembler.Registry
	resp := industriesResponse{Version: reg.Version()}
	for _, slug := range reg.Slugs() {
		cfg, err := reg.Lookup(slug)
		if err != nil {
			continue
		}
		resp.Industries = append(resp.Industries, industryView{
			Slug:           cfg.Slug,
			Name:           cfg.Name,
			Aliases:        cfg.Aliases,
			DefaultSubtype: cfg.DefaultSubtype,
			Subtypes:       cfg.SubtypeNames(),
			Method:         string(cfg.Power.Method()),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.policies.Policy(r.Context()))
}

func (s *server) handleMargin(w http.ResponseWriter, r *http.Request) {
	var req pricing.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateMarginOverrides(req.ForceMargin, req.MaxMargin); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.policies.Policy(r.Context()).Apply(req))
}

func (s *server) handleQuoteCreate(w http.ResponseWriter, r *http.Request) {
	var req quote.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateMarginOverrides(req.Pricing.ForceMargin, req.Pricing.MaxMargin); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q, err := s.assembler.Build(r.Context(), req)
	if err != nil {
		if errors.Is(err, industry.ErrUnknownIndustry) || errors.Is(err, industry.ErrUnknownSubtype) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		slog.Error("build quote failed", "error", err, "industry", req.Industry)
		writeError(w, http.StatusInternalServerError, "failed to build quote")
		return
	}

	if err := s.quotes.Save(r.Context(), q); err != nil {
		slog.Error("save quote failed", "error", err, "quote_id", q.ID)
		writeError(w, http.StatusInternalServerError, "failed to save quote")
		return
	}
	s.metrics.ObserveQuote(q)
	if q.NeedsReview() {
		slog.Warn("quote needs review",
			"quote_id", q.ID,
			"review_events", len(q.Pricing.ReviewEvents),
			"passes_quote_guards", q.Pricing.PassesQuoteLevelGuards,
		)
	}

	w.Header().Set("Location", "/api/quotes/"+q.ID)
	writeJSON(w, http.StatusCreated, q)
}

func (s *server) handleQuotesList(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	quotes, err := s.quotes.List(r.Context(), query, limit)
	if err != nil {
		slog.Error("list quotes failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load quotes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": query, "quotes": quotes})
}

func (s *server) handleQuoteDetail(w http.ResponseWriter, r *http.Request) {
	q, ok := s.loadQuote(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *server) handleQuoteText(w http.ResponseWriter, r *http.Request) {
	q, ok := s.loadQuote(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(export.Text(q)))
}

func (s *server) handleQuoteXLSX(w http.ResponseWriter, r *http.Request) {
	q, ok := s.loadQuote(w, r)
	if !ok {
		return
	}
	body, err := export.WorkbookBytes(q)
	if err != nil {
		slog.Error("render workbook failed", "error", err, "quote_id", q.ID)
		writeError(w, http.StatusInternalServerError, "failed to render workbook")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, q.ID))
	_, _ = w.Write(body)
}

func (s *server) handleQuoteDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.quotes.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "quote not found")
			return
		}
		slog.Error("delete quote failed", "error", err, "quote_id", id)
		writeError(w, http.StatusInternalServerError, "failed to delete quote")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) loadQuote(w http.ResponseWriter, r *http.Request) (quote.Quote, bool) {
	id := chi.URLParam(r, "id")
	q, err := s.quotes.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "quote not found")
			return quote.Quote{}, false
		}
		slog.Error("load quote failed", "error", err, "quote_id", id)
		writeError(w, http.StatusInternalServerError, "failed to load quote")
		return quote.Quote{}, false
	}
	return q, true
}

func (s *server) handleAdminGuardUpdate(w http.ResponseWriter, r *http.Request) {
	class := pricing.ProductClass(chi.URLParam(r, "class"))
	var g pricing.PriceGuard
	if err := decodeJSON(w, r, &g); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateGuard(g); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.policies.SaveGuard(r.Context(), class, g); err != nil {
		slog.Warn("guard update rejected", "error", err, "class", class)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.policies.Policy(r.Context()).Guards[class])
}

func (s *server) handleAdminRateUpdate(w http.ResponseWriter, r *http.Request) {
	state := strings.ToUpper(chi.URLParam(r, "state"))
	var rate collab.UtilityRate
	if err := decodeJSON(w, r, &rate); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rate.State = state
	if len(state) != 2 {
		writeError(w, http.StatusBadRequest, "state must be a two-letter code")
		return
	}
	if err := checkNonNegative(rate.EnergyPerKWh, "energyPerKWh"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := checkNonNegative(rate.DemandPerKW, "demandPerKW"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.rates.Upsert(r.Context(), rate); err != nil {
		slog.Error("save utility rate failed", "error", err, "state", state)
		writeError(w, http.StatusInternalServerError, "failed to save utility rate")
		return
	}
	saved, err := s.rates.UtilityRate(r.Context(), state)
	if err != nil {
		slog.Error("reload utility rate failed", "error", err, "state", state)
		writeError(w, http.StatusInternalServerError, "failed to load utility rate")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func validateMarginOverrides(force, maxMargin *float64) error {
	if force != nil {
		if err := checkFraction(*force, "forceMargin"); err != nil {
			return err
		}
	}
	if maxMargin != nil {
		if err := checkFraction(*maxMargin, "maxMargin"); err != nil {
			return err
		}
	}
	return nil
}

func validateGuard(g pricing.PriceGuard) error {
	if strings.TrimSpace(g.Unit) == "" {
		return errors.New("unit is required")
	}
	if err := checkPositive(g.MarketPrice, "marketPrice"); err != nil {
		return err
	}
	for _, f := range []struct {
		v    float64
		name string
	}{
		{g.ProcurementBufferPct, "procurementBufferPct"},
		{g.ProcurementBufferTrigger, "procurementBufferTrigger"},
		{g.ReviewBelowPrice, "reviewBelowPrice"},
		{g.QuoteFloorPrice, "quoteFloorPrice"},
		{g.CeilingPrice, "ceilingPrice"},
	} {
		if err := checkNonNegative(f.v, f.name); err != nil {
			return err
		}
	}
	return nil
}

func checkNonNegative(v float64, field string) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s must be numeric", field)
	}
	if v < 0 {
		return fmt.Errorf("%s must be greater than or equal to 0", field)
	}
	return nil
}

func checkPositive(v float64, field string) error {
	if err := checkNonNegative(v, field); err != nil {
		return err
	}
	if v == 0 {
		return fmt.Errorf("%s must be greater than 0", field)
	}
	return nil
}

// checkFraction accepts margins in [0, 1).
func checkFraction(v float64, field string) error {
	if err := checkNonNegative(v, field); err != nil {
		return err
	}
	if v >= 1 {
		return fmt.Errorf("%s must be a fraction below 1", field)
	}
	return nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
