// Package validation provides input validation for the PBS authority API.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/giygas/pbs-authority-api/interfaces"
)

// Pre-compiled regex patterns, compiled once at package initialization
// and reused for all validations.
var (
	// PBS item codes: 4-10 alphanumeric characters, e.g. 12119W.
	itemCodeRegex = regexp.MustCompile(`^[A-Za-z0-9]{4,10}$`)

	// Hospital provider numbers: exactly 6 alphanumeric characters.
	providerNumberRegex = regexp.MustCompile(`^[A-Za-z0-9]{6}$`)

	// Search terms: letters, digits, spaces and safe punctuation.
	searchTermRegex = regexp.MustCompile(`^[a-zA-Z0-9\s\-\.\+'/()]+$`)

	// Dangerous patterns screened with strings.Contains, which is
	// faster than regex for plain substrings.
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"eval(", "expression(", "url(", "@import",
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"--", "/*", "*/", "exec(", "execute(",
		"../", "..\\", "%2e%2e", "file://",
		"`", "$(", "${",
	}
)

// InputValidatorImpl implements the interfaces.InputValidator interface
type InputValidatorImpl struct{}

// Compile-time check to ensure InputValidatorImpl implements InputValidator
var _ interfaces.InputValidator = (*InputValidatorImpl)(nil)

// NewInputValidator creates a new input validator
func NewInputValidator() interfaces.InputValidator {
	return &InputValidatorImpl{}
}

// ValidateItemCode checks a PBS item code and returns its canonical
// uppercase form.
func (v *InputValidatorImpl) ValidateItemCode(input string) (string, error) {
	code := strings.TrimSpace(input)
	if code == "" {
		return "", fmt.Errorf("item code is empty")
	}

	if !itemCodeRegex.MatchString(code) {
		return "", fmt.Errorf("item code must be 4-10 alphanumeric characters, got: %s", code)
	}

	return strings.ToUpper(code), nil
}

// ValidateProviderNumber checks a hospital provider number.
func (v *InputValidatorImpl) ValidateProviderNumber(input string) (string, error) {
	provider := strings.TrimSpace(input)
	if provider == "" {
		return "", fmt.Errorf("provider number is empty")
	}

	if !providerNumberRegex.MatchString(provider) {
		return "", fmt.Errorf("provider number must be exactly 6 alphanumeric characters")
	}

	return provider, nil
}

// ValidateSearchTerm checks a drug name search fragment.
func (v *InputValidatorImpl) ValidateSearchTerm(input string) (string, error) {
	term := strings.TrimSpace(input)
	if len(term) < 2 {
		return "", fmt.Errorf("search term must be at least 2 characters")
	}

	if len(term) > 100 {
		return "", fmt.Errorf("search term too long: %d characters", len(term))
	}

	lower := strings.ToLower(term)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lower, pattern) {
			return "", fmt.Errorf("search term contains disallowed sequence")
		}
	}

	if !searchTermRegex.MatchString(term) {
		return "", fmt.Errorf("search term contains unsupported characters")
	}

	return term, nil
}
