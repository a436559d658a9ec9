// Package normalize converts raw source field values into canonical
// typed values. Every function is total: malformed input yields a safe
// default, never an error.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "normalize")

var truthyValues = map[string]bool{
	"true":   true,
	"1":      true,
	"yes":    true,
	"y":      true,
	"active": true,
	"on":     true,
}

// decimalJunk matches everything that is neither a digit, a separator
// nor a leading minus sign.
var decimalJunk = regexp.MustCompile(`[^0-9.,\-]`)

// ParseDecimal converts a loosely formatted numeric string ("Rp 1.250,50",
// "$12.99", "1,299") into a float. Empty or unparseable input returns 0.
func ParseDecimal(raw string) float64 {
	cleaned := decimalJunk.ReplaceAllString(strings.TrimSpace(raw), "")
	if cleaned == "" || cleaned == "-" {
		return 0
	}

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")
	switch {
	case hasComma && hasDot:
		// The later separator is the decimal point, the other one groups
		// thousands.
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case hasComma:
		// A single comma not followed by exactly three digits is a decimal
		// comma; everything else groups thousands.
		digitsAfter := len(cleaned) - strings.LastIndex(cleaned, ",") - 1
		if strings.Count(cleaned, ",") == 1 && digitsAfter != 3 {
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case hasDot && strings.Count(cleaned, ".") > 1:
		// "1.250.000" style thousands dots.
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return value
}

// FormatDecimal renders a float the way ParseDecimal expects it back,
// so ParseDecimal(FormatDecimal(x)) == x for representable values.
func FormatDecimal(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// ParseBoolean matches raw case-insensitively against a fixed truthy
// vocabulary; everything else is false.
func ParseBoolean(raw string) bool {
	return truthyValues[strings.ToLower(strings.TrimSpace(raw))]
}

// emptyTemplates are placeholder values spreadsheets use for "not set".
var emptyTemplates = map[string]bool{
	"":           true,
	"-":          true,
	"0000-00-00": true,
	"00/00/0000": true,
	"dd/mm/yyyy": true,
	"yyyy-mm-dd": true,
	"null":       true,
	"n/a":        true,
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006",
	"02-01-2006",
	"01/02/2006",
}

// ParseDate attempts a permissive date parse. Recognized empty-template
// placeholders map to nil; unparseable input logs a warning and returns
// nil, never an error.
func ParseDate(raw string) *time.Time {
	trimmed := strings.TrimSpace(raw)
	if emptyTemplates[strings.ToLower(trimmed)] {
		return nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return &t
		}
	}

	log.WithField("value", trimmed).Warn("unparseable date value")
	return nil
}

// ParseDelimitedList splits a comma-delimited string into trimmed,
// non-empty entries.
func ParseDelimitedList(raw string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

var (
	letterSizes = map[string]bool{
		"XXS": true, "XS": true, "S": true, "M": true, "L": true,
		"XL": true, "XXL": true, "XXXL": true,
	}
	shoeSizePattern  = regexp.MustCompile(`^[2-4][0-9](\.5)?$`)
	shortCodePattern = regexp.MustCompile(`^[A-Z0-9]{1,4}$`)
	sizeSeparators   = "-_/"
)

// ExtractSizeToken derives the size suffix of a variant SKU: the token
// after the final separator, validated against known size vocabularies
// (letter sizes XS-XXXL, numeric and half-numeric shoe sizes, short
// alphanumeric codes). This is heuristic; SKU suffixes have no formal
// grammar, so unrecognized formats return ok=false for manual review
// rather than a guess.
func ExtractSizeToken(sku, parentSKU string) (string, bool) {
	candidate := strings.TrimSpace(sku)
	if candidate == "" || candidate == parentSKU {
		return "", false
	}

	// Prefer the remainder after the parent prefix, else the last token.
	if parentSKU != "" && strings.HasPrefix(candidate, parentSKU) {
		candidate = strings.TrimLeft(strings.TrimPrefix(candidate, parentSKU), sizeSeparators)
	} else if idx := strings.LastIndexAny(candidate, sizeSeparators); idx >= 0 {
		candidate = candidate[idx+1:]
	}

	candidate = strings.ToUpper(strings.TrimSpace(candidate))
	if candidate == "" {
		return "", false
	}

	switch {
	case letterSizes[candidate]:
		return candidate, true
	case shoeSizePattern.MatchString(candidate):
		return candidate, true
	case shortCodePattern.MatchString(candidate):
		return candidate, true
	}

	log.WithFields(logrus.Fields{"sku": sku, "token": candidate}).
		Debug("no size vocabulary matched SKU suffix")
	return "", false
}
