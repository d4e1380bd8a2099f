// Package entities defines the domain types shared across the PBS
// authority API: schedules, items, restriction candidates and the
// formatted authority application.
package entities

// BenefitType categorises how an item may be prescribed under the PBS.
type BenefitType string

const (
	BenefitUnrestricted   BenefitType = "unrestricted"
	BenefitStreamlined    BenefitType = "streamlined"
	BenefitPhoneAuthority BenefitType = "phone_authority"
	BenefitUnknown        BenefitType = "unknown"
)

// BenefitTypeFromCode maps the upstream single-letter benefit type code
// onto the internal enum. Unknown codes map to BenefitUnknown rather
// than failing, the catalog has grown codes before.
func BenefitTypeFromCode(code string) BenefitType {
	switch code {
	case "U":
		return BenefitUnrestricted
	case "S":
		return BenefitStreamlined
	case "A":
		return BenefitPhoneAuthority
	default:
		return BenefitUnknown
	}
}

// RequiresAuthority reports whether items of this benefit type ever
// need an authority application. Unrestricted items never do.
func (b BenefitType) RequiresAuthority() bool {
	return b != BenefitUnrestricted
}

// Schedule identifies one dated snapshot of the PBS dataset. Every
// item and restriction query is scoped to exactly one schedule.
type Schedule struct {
	Code          int    `json:"schedule_code"`
	EffectiveDate string `json:"effective_date"`
}

// Item is one PBS-listed drug/pack combination.
type Item struct {
	Code        string      `json:"pbs_code"`
	DrugName    string      `json:"drug_name"`
	ProgramCode string      `json:"program_code"`
	BenefitType BenefitType `json:"benefit_type"`
}

// ItemLookup is the result of a lookup by item code. Approximate is set
// when no exact code match existed and the first upstream candidate was
// substituted; callers must surface this to the user.
type ItemLookup struct {
	Item        Item   `json:"item"`
	Approximate bool   `json:"approximate"`
	QueriedCode string `json:"queried_code"`
}

// RestrictionCandidate is one restriction text attached to an item.
type RestrictionCandidate struct {
	Code      string `json:"res_code"`
	Label     string `json:"label"`
	RawText   string `json:"-"`
	CleanText string `json:"text"`
}

// Application is the assembled authority application. It is derived,
// ephemeral and recomputed on every request, never persisted.
type Application struct {
	ProviderNumber  string `json:"provider_number"`
	ItemCode        string `json:"item_code"`
	RestrictionText string `json:"restriction_text"`
}
