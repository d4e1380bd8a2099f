// Package interfaces defines core abstractions for the PBS authority
// API to improve testability and separation of concerns.
package interfaces

import (
	"context"
	"time"

	"github.com/giygas/pbs-authority-api/pbscatalog/entities"
)

// CatalogAPI defines the contract for the PBS catalog client. Every
// operation is synchronous and terminal: failures surface immediately
// and are never retried or served from stale data.
type CatalogAPI interface {
	// ResolveLatestSchedule resolves the current effective catalog
	// version. It is called before every item or restriction query;
	// results are never cached across top-level searches.
	ResolveLatestSchedule(ctx context.Context) (entities.Schedule, error)

	// FindItemByCode looks an item up by PBS code within a schedule.
	FindItemByCode(ctx context.Context, code string, schedule entities.Schedule) (entities.ItemLookup, error)

	// SearchItemsByName searches items by drug name fragment within a
	// schedule. An empty result is valid.
	SearchItemsByName(ctx context.Context, nameFragment string, schedule entities.Schedule) ([]entities.Item, error)

	// ResolveRestrictions returns the normalized restriction
	// candidates for an item. Zero candidates is a valid outcome.
	ResolveRestrictions(ctx context.Context, code string, schedule entities.Schedule) ([]entities.RestrictionCandidate, error)
}

// RestrictionScraper defines the contract for the public-website
// fallback used when the data API has no restriction text.
type RestrictionScraper interface {
	ScrapeRestrictions(ctx context.Context, code string) ([]entities.RestrictionCandidate, error)
}

// ProbeSnapshot is the result of the most recent upstream probe. It
// feeds the health endpoint only; lookups always re-resolve.
type ProbeSnapshot struct {
	Schedule  entities.Schedule
	CheckedAt time.Time
	Latency   time.Duration
	Error     string
}

// StatusStore defines the contract for recording upstream probe
// results with atomic snapshot semantics.
type StatusStore interface {
	RecordProbe(snapshot ProbeSnapshot)
	GetSnapshot() ProbeSnapshot
	GetLastSuccess() time.Time
	GetServerStartTime() time.Time

	// BeginProbe reports whether a probe slot was acquired; EndProbe
	// releases it. Prevents overlapping probes.
	BeginProbe() bool
	EndProbe()
	IsProbing() bool
}

// InputValidator defines the contract for validating user-supplied
// request parameters.
type InputValidator interface {
	// ValidateItemCode checks and canonicalizes a PBS item code.
	ValidateItemCode(input string) (string, error)

	// ValidateProviderNumber checks a 6-character provider number.
	ValidateProviderNumber(input string) (string, error)

	// ValidateSearchTerm checks a drug name search fragment.
	ValidateSearchTerm(input string) (string, error)
}
