// Package pbscatalog provides the client for the PBS data API: schedule
// resolution, item lookup and search, and restriction text resolution
// with markup normalization. A best-effort scraper of the public PBS
// website backs up the API when it has no restriction text for an item.
package pbscatalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/giygas/pbs-authority-api/logging"
	"github.com/giygas/pbs-authority-api/metrics"
	"github.com/giygas/pbs-authority-api/pbscatalog/entities"
)

// DefaultBaseURL is the public PBS data API v3 endpoint.
const DefaultBaseURL = "https://data-api.health.gov.au/pbs/api/v3"

// Page limits for upstream queries. The items page is bounded at 500
// rows and restrictions are bulk-fetched in one bounded page so the
// request count stays independent of the candidate count.
const (
	itemPageLimit         = 500
	relationshipPageLimit = 500
	restrictionPageLimit  = 1000
)

// Client talks to the PBS data API. All requests are GET with query
// parameters; responses carry a top-level data array (a bare array is
// tolerated as an alternate legal shape). A missing subscription key is
// a valid configuration and means public-tier access.
type Client struct {
	baseURL         string
	subscriptionKey string
	httpClient      *http.Client
}

// NewClient creates a catalog client. An empty baseURL selects
// DefaultBaseURL; timeout bounds every upstream call.
func NewClient(baseURL, subscriptionKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		subscriptionKey: subscriptionKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// getRows issues one GET against the catalog and returns the rows of
// the data envelope. Failures map onto the sentinel error kinds and are
// terminal for the current operation: no retries, no partial results.
func (c *Client) getRows(ctx context.Context, endpoint string, params url.Values) ([]json.RawMessage, error) {
	start := time.Now()
	rows, err := c.doGetRows(ctx, endpoint, params)
	metrics.ObserveUpstream(endpoint, outcomeLabel(err), time.Since(start))
	return rows, err
}

// outcomeLabel classifies an error for the upstream metrics.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUpstreamTimeout):
		return "timeout"
	case errors.Is(err, ErrUpstreamProtocol):
		return "protocol_error"
	default:
		return "unavailable"
	}
}

func (c *Client) doGetRows(ctx context.Context, endpoint string, params url.Values) ([]json.RawMessage, error) {
	reqURL := c.baseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.subscriptionKey != "" {
		req.Header.Set("Subscription-Key", c.subscriptionKey)
	}

	response, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &UpstreamError{Kind: ErrUpstreamTimeout, Endpoint: endpoint, Err: err}
		}
		return nil, &UpstreamError{Kind: ErrUpstreamUnavailable, Endpoint: endpoint, Err: err}
	}
	defer func() {
		if err := response.Body.Close(); err != nil {
			logging.Warn("Failed to close response body", "endpoint", endpoint, "error", err)
		}
	}()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, &UpstreamError{Kind: ErrUpstreamTimeout, Endpoint: endpoint, Err: err}
		}
		return nil, &UpstreamError{Kind: ErrUpstreamUnavailable, Endpoint: endpoint, Err: err}
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, &UpstreamError{
			Kind:     ErrUpstreamUnavailable,
			Endpoint: endpoint,
			Status:   response.StatusCode,
			Body:     snippet(body),
		}
	}

	rows, err := decodeDataEnvelope(body)
	if err != nil {
		return nil, &UpstreamError{Kind: ErrUpstreamProtocol, Endpoint: endpoint, Err: err, Body: snippet(body)}
	}

	return rows, nil
}

// decodeDataEnvelope accepts either {"data": [...]} or a bare array.
func decodeDataEnvelope(body []byte) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(body))
	switch {
	case strings.HasPrefix(trimmed, "["):
		var rows []json.RawMessage
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("failed to decode array payload: %w", err)
		}
		return rows, nil
	case strings.HasPrefix(trimmed, "{"):
		var envelope struct {
			Data []json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode data envelope: %w", err)
		}
		if envelope.Data == nil {
			return nil, fmt.Errorf("payload has no data array")
		}
		return envelope.Data, nil
	default:
		return nil, fmt.Errorf("payload is neither an object nor an array")
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// scheduleRow is the loose upstream shape of one schedule entry.
type scheduleRow struct {
	ScheduleCode  json.Number `json:"schedule_code"`
	EffectiveDate string      `json:"effective_date"`
}

// ResolveLatestSchedule queries the schedule list and selects the entry
// with the numerically highest schedule code, regardless of array
// order. When two entries report the same code the one with the latest
// effective date wins; a full tie keeps the first seen. An empty
// schedule list is treated as a protocol error: a catalog without
// versions cannot be queried.
func (c *Client) ResolveLatestSchedule(ctx context.Context) (entities.Schedule, error) {
	rows, err := c.getRows(ctx, "/schedules", nil)
	if err != nil {
		return entities.Schedule{}, err
	}

	var latest entities.Schedule
	found := false
	for _, row := range rows {
		var sr scheduleRow
		if err := json.Unmarshal(row, &sr); err != nil {
			continue
		}
		code, err := sr.ScheduleCode.Int64()
		if err != nil {
			continue
		}
		candidate := entities.Schedule{Code: int(code), EffectiveDate: sr.EffectiveDate}
		if !found || candidate.Code > latest.Code ||
			(candidate.Code == latest.Code && candidate.EffectiveDate > latest.EffectiveDate) {
			latest = candidate
			found = true
		}
	}

	if !found {
		return entities.Schedule{}, &UpstreamError{
			Kind:     ErrUpstreamProtocol,
			Endpoint: "/schedules",
			Err:      fmt.Errorf("schedule list contains no usable entries"),
		}
	}

	logging.Debug("Resolved latest schedule", "schedule_code", latest.Code, "effective_date", latest.EffectiveDate)
	return latest, nil
}

// itemRow is the loose upstream shape of one item entry. Field names
// vary between catalog releases, so both drug name spellings are kept
// and reconciled in mapItem.
type itemRow struct {
	PbsCode         string `json:"pbs_code"`
	LiDrugName      string `json:"li_drug_name"`
	DrugName        string `json:"drug_name"`
	ProgramCode     string `json:"program_code"`
	BenefitTypeCode string `json:"benefit_type_code"`
}

// mapItem normalizes the heterogeneous upstream shape onto the fixed
// internal Item type once, so call sites never re-derive fallbacks.
func mapItem(row itemRow) entities.Item {
	name := row.LiDrugName
	if name == "" {
		name = row.DrugName
	}
	return entities.Item{
		Code:        strings.ToUpper(strings.TrimSpace(row.PbsCode)),
		DrugName:    name,
		ProgramCode: row.ProgramCode,
		BenefitType: entities.BenefitTypeFromCode(row.BenefitTypeCode),
	}
}

func decodeItems(rows []json.RawMessage) []entities.Item {
	items := make([]entities.Item, 0, len(rows))
	for _, row := range rows {
		var ir itemRow
		if err := json.Unmarshal(row, &ir); err != nil {
			continue
		}
		if ir.PbsCode == "" {
			continue
		}
		items = append(items, mapItem(ir))
	}
	return items
}

// FindItemByCode looks an item up by its PBS code within a schedule.
// An exact case-insensitive match is preferred even when it is not
// first in the returned order. If the upstream filter returned rows but
// none matches exactly, the first row is substituted and the lookup is
// flagged Approximate so the caller can surface it. Zero rows yield
// ErrNotFound.
func (c *Client) FindItemByCode(ctx context.Context, code string, schedule entities.Schedule) (entities.ItemLookup, error) {
	canonical := strings.ToUpper(strings.TrimSpace(code))

	params := url.Values{}
	params.Set("schedule_code", fmt.Sprintf("%d", schedule.Code))
	params.Set("pbs_code", canonical)
	params.Set("limit", fmt.Sprintf("%d", itemPageLimit))

	rows, err := c.getRows(ctx, "/items", params)
	if err != nil {
		return entities.ItemLookup{}, err
	}

	items := decodeItems(rows)
	if len(items) == 0 {
		return entities.ItemLookup{}, fmt.Errorf("item %s in schedule %d: %w", canonical, schedule.Code, ErrNotFound)
	}

	for _, item := range items {
		if strings.EqualFold(item.Code, canonical) {
			return entities.ItemLookup{Item: item, QueriedCode: canonical}, nil
		}
	}

	// The upstream filter matched something else. Keep the first
	// candidate but flag the substitution rather than losing it
	// silently.
	logging.Warn("No exact item code match, substituting first candidate",
		"queried_code", canonical,
		"substituted_code", items[0].Code,
		"candidates", len(items))
	return entities.ItemLookup{Item: items[0], Approximate: true, QueriedCode: canonical}, nil
}

// SearchItemsByName fetches a bounded page of items for the schedule,
// filtered server-side by drug name where supported, then re-filters
// client-side by case-insensitive substring match because the
// server-side filter is unreliable across catalog releases. An empty
// result is a valid outcome, not an error.
func (c *Client) SearchItemsByName(ctx context.Context, nameFragment string, schedule entities.Schedule) ([]entities.Item, error) {
	fragment := strings.ToLower(strings.TrimSpace(nameFragment))

	params := url.Values{}
	params.Set("schedule_code", fmt.Sprintf("%d", schedule.Code))
	params.Set("li_drug_name", fragment)
	params.Set("limit", fmt.Sprintf("%d", itemPageLimit))

	rows, err := c.getRows(ctx, "/items", params)
	if err != nil {
		return nil, err
	}

	matches := make([]entities.Item, 0)
	for _, item := range decodeItems(rows) {
		if strings.Contains(strings.ToLower(item.DrugName), fragment) {
			matches = append(matches, item)
		}
	}

	logging.Debug("Item search completed",
		"fragment", fragment,
		"schedule_code", schedule.Code,
		"returned", len(rows),
		"matched", len(matches))
	return matches, nil
}
