package pbscatalog

import (
	"regexp"
	"strings"
)

// Pre-compiled patterns for restriction text cleanup. Compiled once at
// package initialization and reused for every candidate.
var (
	// Block-level tags that become a line break.
	breakTags = regexp.MustCompile(`(?i)<\s*(br\s*/?|/?p|/?div|/?tr)\s*>`)

	// List item openings become a bullet; list item closings vanish so
	// consecutive bullets stay on adjacent lines; list boundaries
	// become a line break.
	bulletTags   = regexp.MustCompile(`(?i)<\s*li[^>]*>`)
	bulletEnd    = regexp.MustCompile(`(?i)<\s*/li\s*>`)
	listBoundary = regexp.MustCompile(`(?i)<\s*/?(ul|ol)\s*>`)

	// Any remaining markup tag. Requires a letter (or slash) after the
	// opening bracket so decoded comparisons like "< 18" survive.
	anyTag = regexp.MustCompile(`</?[A-Za-z][^>]*>`)

	spaceRuns      = regexp.MustCompile(`[ \t]+`)
	spacedNewlines = regexp.MustCompile(` *\n *`)
	excessNewlines = regexp.MustCompile(`\n{3,}`)
)

// entityReplacer decodes the small set of HTML entities that appear in
// PBS restriction texts in practice. The bare ampersand is decoded last
// so a literal "&amp;" cannot cascade into further decoding.
var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&amp;", "&",
)

// NormalizeRestrictionText converts the markup of an upstream
// restriction text into plain text: common entities are decoded, line
// and list markup becomes newlines and bullets, remaining tags are
// stripped, whitespace is collapsed. Entities decode before the tag
// passes so an encoded tag like &lt;b&gt; is removed as markup on the
// first pass; a bare comparison like &lt; 18 survives because anyTag
// needs a letter after the bracket. The result is stable under
// re-normalization for any singly-encoded input.
func NormalizeRestrictionText(raw string) string {
	text := entityReplacer.Replace(raw)
	text = breakTags.ReplaceAllString(text, "\n")
	text = bulletTags.ReplaceAllString(text, "\n• ")
	text = bulletEnd.ReplaceAllString(text, "")
	text = listBoundary.ReplaceAllString(text, "\n")
	text = anyTag.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = spaceRuns.ReplaceAllString(text, " ")
	text = spacedNewlines.ReplaceAllString(text, "\n")
	text = excessNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// restrictionLabel builds the human-readable label for a candidate:
// treatment phase with the authority method in parentheses when both
// are present, either one alone when not, and the restriction code
// verbatim as the last resort.
func restrictionLabel(resCode, treatmentPhase, authorityMethod string) string {
	phase := strings.TrimSpace(treatmentPhase)
	method := strings.TrimSpace(authorityMethod)

	switch {
	case phase != "" && method != "":
		return phase + " (" + method + ")"
	case phase != "":
		return phase
	case method != "":
		return method
	default:
		return resCode
	}
}
