package pbscatalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/giygas/pbs-authority-api/logging"
	"github.com/giygas/pbs-authority-api/pbscatalog/entities"
)

// relationshipRow links an item code to a restriction code within a
// schedule.
type relationshipRow struct {
	PbsCode string `json:"pbs_code"`
	ResCode string `json:"res_code"`
}

// restrictionRow is the loose upstream shape of one restriction record.
// The rich-text field takes priority over the plain schedule text.
type restrictionRow struct {
	ResCode          string `json:"res_code"`
	LiHTMLText       string `json:"li_html_text"`
	ScheduleHTMLText string `json:"schedule_html_text"`
	TreatmentPhase   string `json:"treatment_phase"`
	AuthorityMethod  string `json:"authority_method"`
}

// ResolveRestrictions returns the normalized restriction candidates for
// an item within a schedule. The relationship rows are fetched first,
// then the restriction records for the whole schedule are bulk-fetched
// in a single bounded page and filtered locally, so the request count
// stays at two regardless of how many candidates the item has.
//
// Zero candidates is a valid outcome: callers are expected to offer a
// manual-entry fallback instead of failing closed.
func (c *Client) ResolveRestrictions(ctx context.Context, code string, schedule entities.Schedule) ([]entities.RestrictionCandidate, error) {
	canonical := strings.ToUpper(strings.TrimSpace(code))

	params := url.Values{}
	params.Set("schedule_code", fmt.Sprintf("%d", schedule.Code))
	params.Set("pbs_code", canonical)
	params.Set("limit", fmt.Sprintf("%d", relationshipPageLimit))

	rows, err := c.getRows(ctx, "/item-restriction-relationships", params)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool)
	order := make([]string, 0, len(rows))
	for _, row := range rows {
		var rel relationshipRow
		if err := json.Unmarshal(row, &rel); err != nil {
			continue
		}
		if rel.ResCode == "" || (rel.PbsCode != "" && !strings.EqualFold(rel.PbsCode, canonical)) {
			continue
		}
		if !wanted[rel.ResCode] {
			wanted[rel.ResCode] = true
			order = append(order, rel.ResCode)
		}
	}

	if len(order) == 0 {
		logging.Debug("Item has no restriction relationships", "pbs_code", canonical, "schedule_code", schedule.Code)
		return []entities.RestrictionCandidate{}, nil
	}

	bulkParams := url.Values{}
	bulkParams.Set("schedule_code", fmt.Sprintf("%d", schedule.Code))
	bulkParams.Set("limit", fmt.Sprintf("%d", restrictionPageLimit))

	bulkRows, err := c.getRows(ctx, "/restrictions", bulkParams)
	if err != nil {
		return nil, err
	}

	records := make(map[string]restrictionRow, len(order))
	for _, row := range bulkRows {
		var rr restrictionRow
		if err := json.Unmarshal(row, &rr); err != nil {
			continue
		}
		if rr.ResCode == "" || !wanted[rr.ResCode] {
			continue
		}
		if _, seen := records[rr.ResCode]; !seen {
			records[rr.ResCode] = rr
		}
	}

	candidates := make([]entities.RestrictionCandidate, 0, len(order))
	for _, resCode := range order {
		rr, ok := records[resCode]
		if !ok {
			logging.Warn("Restriction record missing from bulk fetch", "res_code", resCode, "schedule_code", schedule.Code)
			continue
		}

		raw := rr.LiHTMLText
		if strings.TrimSpace(raw) == "" {
			raw = rr.ScheduleHTMLText
		}

		clean := NormalizeRestrictionText(raw)
		if clean == "" {
			continue
		}

		candidates = append(candidates, entities.RestrictionCandidate{
			Code:      resCode,
			Label:     restrictionLabel(resCode, rr.TreatmentPhase, rr.AuthorityMethod),
			RawText:   raw,
			CleanText: clean,
		})
	}

	logging.Debug("Resolved restrictions",
		"pbs_code", canonical,
		"schedule_code", schedule.Code,
		"relationships", len(order),
		"candidates", len(candidates))
	return candidates, nil
}
