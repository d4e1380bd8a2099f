// Package handlers provides HTTP request handlers for the PBS authority
// API endpoints: schedule resolution, item search and lookup,
// restriction resolution and authority application formatting, with
// input validation and upstream error mapping.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/giygas/pbs-authority-api/authority"
	"github.com/giygas/pbs-authority-api/health"
	"github.com/giygas/pbs-authority-api/interfaces"
	"github.com/giygas/pbs-authority-api/logging"
	"github.com/giygas/pbs-authority-api/pbscatalog"
	"github.com/giygas/pbs-authority-api/pbscatalog/entities"
	"github.com/giygas/pbs-authority-api/selector"
	"github.com/go-chi/chi/v5"
)

// HTTPHandler serves the API endpoints. Every lookup handler resolves
// the latest schedule itself: nothing is cached between requests, and a
// failed upstream call is terminal for that request.
type HTTPHandler struct {
	catalog        interfaces.CatalogAPI
	scraper        interfaces.RestrictionScraper
	validator      interfaces.InputValidator
	healthChecker  *health.HealthChecker
	providerNumber string
}

// NewHTTPHandler creates the handler set. providerNumber is the
// configured default used when a request supplies none.
func NewHTTPHandler(catalog interfaces.CatalogAPI, scraper interfaces.RestrictionScraper, validator interfaces.InputValidator, healthChecker *health.HealthChecker, providerNumber string) *HTTPHandler {
	return &HTTPHandler{
		catalog:        catalog,
		scraper:        scraper,
		validator:      validator,
		healthChecker:  healthChecker,
		providerNumber: providerNumber,
	}
}

// RespondWithJSON writes a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	w.WriteHeader(code)
	if _, err := w.Write(data); err != nil {
		logging.Error("Failed to write JSON response", "error", err)
	}
}

// RespondWithError writes a JSON error envelope
func RespondWithError(w http.ResponseWriter, code int, msg string) {
	RespondWithJSON(w, code, map[string]string{"error": msg})
}

// respondUpstreamError maps the catalog error taxonomy onto HTTP
// statuses. Diagnostics from the upstream body are passed through so
// the user sees why the catalog refused.
func respondUpstreamError(w http.ResponseWriter, err error) {
	var upstreamErr *pbscatalog.UpstreamError
	detail := err.Error()
	if errors.As(err, &upstreamErr) {
		detail = upstreamErr.Error()
	}

	switch {
	case errors.Is(err, pbscatalog.ErrUpstreamTimeout):
		RespondWithError(w, http.StatusGatewayTimeout, detail)
	case errors.Is(err, pbscatalog.ErrNotFound):
		RespondWithError(w, http.StatusNotFound, detail)
	default:
		// Unavailable and protocol errors are both upstream faults.
		RespondWithError(w, http.StatusBadGateway, detail)
	}
}

// ResolveSchedule returns the current effective catalog version.
func (h *HTTPHandler) ResolveSchedule(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.catalog.ResolveLatestSchedule(r.Context())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, map[string]any{"schedule": schedule})
}

// SearchItems searches items by drug name fragment. The search is
// case-insensitive and substring-based; results keep upstream order.
func (h *HTTPHandler) SearchItems(w http.ResponseWriter, r *http.Request) {
	term, err := h.validator.ValidateSearchTerm(chi.URLParam(r, "name"))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	schedule, err := h.catalog.ResolveLatestSchedule(r.Context())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}

	items, err := h.catalog.SearchItemsByName(r.Context(), term, schedule)
	if err != nil {
		respondUpstreamError(w, err)
		return
	}

	selection := selector.Select(items)
	if selection.Decision == selector.DecisionNotFound {
		RespondWithJSON(w, http.StatusNotFound, map[string]any{
			"schedule": schedule,
			"decision": selection.Decision,
			"items":    []entities.Item{},
		})
		return
	}

	RespondWithJSON(w, http.StatusOK, map[string]any{
		"schedule": schedule,
		"decision": selection.Decision,
		"items":    items,
	})
}

// FindItem looks an item up by PBS code. When no exact match existed
// upstream the response flags the substitution instead of hiding it.
func (h *HTTPHandler) FindItem(w http.ResponseWriter, r *http.Request) {
	code, err := h.validator.ValidateItemCode(chi.URLParam(r, "code"))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	schedule, err := h.catalog.ResolveLatestSchedule(r.Context())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}

	lookup, err := h.catalog.FindItemByCode(r.Context(), code, schedule)
	if err != nil {
		respondUpstreamError(w, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, map[string]any{
		"schedule":     schedule,
		"item":         lookup.Item,
		"approximate":  lookup.Approximate,
		"queried_code": lookup.QueriedCode,
	})
}

// ResolveRestrictions returns the restriction candidates for an item.
// Zero candidates is a 200 with a not_found decision: the caller is
// expected to offer manual entry, not to treat it as a failure. With
// ?scrape=1 the public website is tried when the API has nothing.
func (h *HTTPHandler) ResolveRestrictions(w http.ResponseWriter, r *http.Request) {
	code, err := h.validator.ValidateItemCode(chi.URLParam(r, "code"))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	schedule, err := h.catalog.ResolveLatestSchedule(r.Context())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}

	candidates, err := h.catalog.ResolveRestrictions(r.Context(), code, schedule)
	if err != nil {
		respondUpstreamError(w, err)
		return
	}

	source := "api"
	if len(candidates) == 0 && r.URL.Query().Get("scrape") == "1" && h.scraper != nil {
		scraped, err := h.scraper.ScrapeRestrictions(r.Context(), code)
		if err != nil {
			// Scraping is best-effort; report the primary (empty) API
			// outcome and note the fallback failure.
			logging.Warn("Scraping fallback failed", "pbs_code", code, "error", err)
		} else if len(scraped) > 0 {
			candidates = scraped
			source = "web"
		}
	}

	selection := selector.Select(candidates)
	response := map[string]any{
		"schedule": schedule,
		"decision": selection.Decision,
		"source":   source,
	}

	switch selection.Decision {
	case selector.DecisionSelected:
		response["selected"] = selection.Choice
		response["candidates"] = candidates
	case selector.DecisionRequiresChoice:
		response["candidates"] = selection.Options
	case selector.DecisionNotFound:
		response["candidates"] = []entities.RestrictionCandidate{}
		response["hint"] = "no machine-readable restriction text; enter the criteria manually"
	}

	RespondWithJSON(w, http.StatusOK, response)
}

// applicationRequest is the POST /application body.
type applicationRequest struct {
	ProviderNumber  string `json:"provider_number"`
	ItemCode        string `json:"item_code"`
	RestrictionText string `json:"restriction_text"`
	RestrictionCode string `json:"restriction_code"`
}

// CreateApplication assembles and formats an authority application.
// Unrestricted items never produce a block. Manual restriction text
// wins over a restriction code; with neither, a sole candidate is
// auto-selected, several demand a choice, and none falls back to the
// placeholder text.
func (h *HTTPHandler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	var req applicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	code, err := h.validator.ValidateItemCode(req.ItemCode)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	provider := h.providerNumber
	if req.ProviderNumber != "" {
		provider, err = h.validator.ValidateProviderNumber(req.ProviderNumber)
		if err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	schedule, err := h.catalog.ResolveLatestSchedule(r.Context())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}

	lookup, err := h.catalog.FindItemByCode(r.Context(), code, schedule)
	if err != nil {
		respondUpstreamError(w, err)
		return
	}

	if !lookup.Item.BenefitType.RequiresAuthority() {
		RespondWithError(w, http.StatusUnprocessableEntity,
			"item "+lookup.Item.Code+" is unrestricted; no authority application applies")
		return
	}

	restrictionText, ok := h.resolveApplicationText(w, r, req, lookup.Item.Code, schedule)
	if !ok {
		return
	}

	app := authority.Build(provider, lookup.Item.Code, restrictionText)
	block := authority.FormatApplication(app)
	fileName := authority.FileName(app.ItemCode)

	if r.URL.Query().Get("format") == "file" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(block)); err != nil {
			logging.Error("Failed to write application file", "error", err)
		}
		return
	}

	RespondWithJSON(w, http.StatusOK, map[string]any{
		"schedule":    schedule,
		"item":        lookup.Item,
		"approximate": lookup.Approximate,
		"application": app,
		"block":       block,
		"file_name":   fileName,
	})
}

// resolveApplicationText picks the restriction text for an application
// and writes the error response itself when it cannot. A false return
// means a response has already been sent.
func (h *HTTPHandler) resolveApplicationText(w http.ResponseWriter, r *http.Request, req applicationRequest, itemCode string, schedule entities.Schedule) (string, bool) {
	if req.RestrictionText != "" {
		return req.RestrictionText, true
	}

	candidates, err := h.catalog.ResolveRestrictions(r.Context(), itemCode, schedule)
	if err != nil {
		respondUpstreamError(w, err)
		return "", false
	}

	if req.RestrictionCode != "" {
		for _, candidate := range candidates {
			if candidate.Code == req.RestrictionCode {
				return candidate.CleanText, true
			}
		}
		RespondWithError(w, http.StatusNotFound,
			"restriction code "+req.RestrictionCode+" not found for item "+itemCode)
		return "", false
	}

	selection := selector.Select(candidates)
	switch selection.Decision {
	case selector.DecisionSelected:
		return selection.Choice.CleanText, true
	case selector.DecisionRequiresChoice:
		RespondWithJSON(w, http.StatusConflict, map[string]any{
			"error":      "multiple restriction candidates; choose one and resubmit with restriction_code",
			"decision":   selection.Decision,
			"candidates": selection.Options,
		})
		return "", false
	default:
		// No machine-readable restriction: a first-class, expected
		// outcome. The placeholder passes through the formatter.
		return "", true
	}
}

// HealthCheck returns server health information
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, details, httpStatus := h.healthChecker.HealthCheck()

	payload := map[string]any{"status": status}
	for k, v := range details {
		payload[k] = v
	}

	RespondWithJSON(w, httpStatus, payload)
}
