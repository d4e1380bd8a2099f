package pbscatalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/giygas/pbs-authority-api/logging"
	"github.com/giygas/pbs-authority-api/pbscatalog/entities"
	"golang.org/x/text/encoding/charmap"
)

// DefaultScrapeBaseURL is the public PBS website.
const DefaultScrapeBaseURL = "https://www.pbs.gov.au"

// Patterns for locating restriction content on a public item page.
var (
	// Containers whose class names mark restriction or authority
	// content. Content is captured up to the nearest closing container
	// tag; nested markup may truncate it, which best-effort tolerates.
	restrictionContainer = regexp.MustCompile(`(?is)<(?:div|section|td)[^>]*class="[^"]*(?:restriction|authority|criteria)[^"]*"[^>]*>(.*?)</(?:div|section|td)>`)

	// Headings announcing restriction content, capturing the text that
	// follows up to the next heading.
	restrictionHeading = regexp.MustCompile(`(?is)<h([1-6])[^>]*>([^<]*(?:restriction|authority)[^<]*)</h[1-6]>(.*?)(?:<h[1-6][^>]*>|\z)`)
)

// Scraper fetches restriction text from the public PBS website as a
// best-effort fallback when the data API has none. It is explicitly
// allowed to find nothing.
type Scraper struct {
	baseURL    string
	httpClient *http.Client
}

// NewScraper creates a scraper. An empty baseURL selects
// DefaultScrapeBaseURL; timeout bounds the page fetch.
func NewScraper(baseURL string, timeout time.Duration) *Scraper {
	if baseURL == "" {
		baseURL = DefaultScrapeBaseURL
	}
	return &Scraper{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ScrapeRestrictions fetches the public item page for a PBS code and
// extracts restriction or authority sections. An empty slice with a nil
// error means the page carried nothing recognizable; only the fetch
// itself can fail, with the same error taxonomy as the API client.
func (s *Scraper) ScrapeRestrictions(ctx context.Context, code string) ([]entities.RestrictionCandidate, error) {
	canonical := strings.ToUpper(strings.TrimSpace(code))
	endpoint := "/medicine/item/" + canonical

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build scrape request for %s: %w", canonical, err)
	}

	response, err := s.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &UpstreamError{Kind: ErrUpstreamTimeout, Endpoint: endpoint, Err: err}
		}
		return nil, &UpstreamError{Kind: ErrUpstreamUnavailable, Endpoint: endpoint, Err: err}
	}
	defer func() {
		if err := response.Body.Close(); err != nil {
			logging.Warn("Failed to close scrape response body", "error", err)
		}
	}()

	body, err := io.ReadAll(response.Body)
	if err != nil {
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

	page, err := decodePage(body)
	if err != nil {
		return nil, &UpstreamError{Kind: ErrUpstreamProtocol, Endpoint: endpoint, Err: err}
	}

	candidates := extractRestrictionSections(page)
	logging.Debug("Scrape completed", "pbs_code", canonical, "candidates", len(candidates))
	return candidates, nil
}

// decodePage returns the page as UTF-8 text. Some PBS pages are served
// as ISO-8859-1, so non-UTF-8 bodies are decoded through charmap.
func decodePage(body []byte) (string, error) {
	if utf8.Valid(body) {
		return string(body), nil
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("failed to decode page charset: %w", err)
	}
	return string(decoded), nil
}

// extractRestrictionSections pulls restriction-looking content out of a
// page: first containers with restriction/authority class names, then
// text following restriction/authority headings.
func extractRestrictionSections(page string) []entities.RestrictionCandidate {
	var candidates []entities.RestrictionCandidate
	seen := make(map[string]bool)

	add := func(label, raw string) {
		clean := NormalizeRestrictionText(raw)
		if clean == "" || seen[clean] {
			return
		}
		seen[clean] = true
		candidates = append(candidates, entities.RestrictionCandidate{
			Code:      fmt.Sprintf("web-%d", len(candidates)+1),
			Label:     label,
			RawText:   raw,
			CleanText: clean,
		})
	}

	for _, match := range restrictionContainer.FindAllStringSubmatch(page, -1) {
		add("Restriction (pbs.gov.au)", match[1])
	}

	for _, match := range restrictionHeading.FindAllStringSubmatch(page, -1) {
		label := strings.TrimSpace(match[2])
		if label == "" {
			label = "Restriction (pbs.gov.au)"
		}
		add(label, match[3])
	}

	return candidates
}
