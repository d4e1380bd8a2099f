// Package authority assembles the fixed-layout authority application
// block a clinician pastes into the external authorization system.
// This package formats text, it does not gatekeep clinical content:
// inputs are trimmed and otherwise passed through verbatim.
package authority

import (
	"strings"

	"github.com/giygas/pbs-authority-api/pbscatalog/entities"
)

// DefaultProviderNumber is the six-zero placeholder used until a real
// hospital provider number is configured.
const DefaultProviderNumber = "000000"

// NoRestrictionsPlaceholder is emitted when restriction resolution
// yielded nothing and the caller supplied no manual text.
const NoRestrictionsPlaceholder = "No restrictions"

// Format produces the three-line application block:
//
//	Hospital Provider Number [<providerNumber>]
//	<itemCode>
//	<restrictionText>
//
// It never fails; malformed or absent restriction text passes through
// as given.
func Format(providerNumber, itemCode, restrictionText string) string {
	return "Hospital Provider Number [" + strings.TrimSpace(providerNumber) + "]\n" +
		strings.TrimSpace(itemCode) + "\n" +
		strings.TrimSpace(restrictionText)
}

// FormatApplication renders an assembled application.
func FormatApplication(app entities.Application) string {
	return Format(app.ProviderNumber, app.ItemCode, app.RestrictionText)
}

// FileName returns the download file name for an application block,
// following the authority_<itemCode>.txt pattern.
func FileName(itemCode string) string {
	return "authority_" + strings.ToUpper(strings.TrimSpace(itemCode)) + ".txt"
}

// Build assembles an application from one item code and one resolved
// restriction text. An empty provider number falls back to the
// placeholder; empty restriction text falls back to
// NoRestrictionsPlaceholder.
func Build(providerNumber, itemCode, restrictionText string) entities.Application {
	provider := strings.TrimSpace(providerNumber)
	if provider == "" {
		provider = DefaultProviderNumber
	}

	text := strings.TrimSpace(restrictionText)
	if text == "" {
		text = NoRestrictionsPlaceholder
	}

	return entities.Application{
		ProviderNumber:  provider,
		ItemCode:        strings.ToUpper(strings.TrimSpace(itemCode)),
		RestrictionText: text,
	}
}
