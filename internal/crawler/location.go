package crawler

import (
	"regexp"
	"strings"
)

var coordinatePrefixRegex = regexp.MustCompile(`^[\d.\-\s]+`)

// CleanCity strips the GPS coordinate noise the ad layout prepends to the
// locality text ("48.8566, 2.3522, Paris" becomes "Paris"). An empty result
// yields nil.
func CleanCity(text string) *string {
	if text == "" {
		return nil
	}

	city := text
	for {
		next := coordinatePrefixRegex.ReplaceAllString(city, "")
		next = strings.TrimSpace(strings.Trim(next, ","))
		if next == city {
			break
		}
		city = next
	}

	if city == "" {
		return nil
	}
	return &city
}
