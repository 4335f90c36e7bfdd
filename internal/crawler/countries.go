package crawler

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	siteFamilyMarker = "locanto"
	indexHostMarker  = "locanto.info"
)

var (
	hostRegex         = regexp.MustCompile(`https?://([^/]+)`)
	systemHostMarkers = []string{"static", "api", "admin", "cdn"}
)

// DiscoverCountries lists the country sites linked from the global index
// page, deduplicated by host and in document order
func DiscoverCountries(doc *goquery.Document) []Country {
	countries := []Country{}
	if doc == nil {
		return countries
	}

	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if !strings.Contains(href, siteFamilyMarker) || strings.Contains(href, indexHostMarker) {
			return
		}

		m := hostRegex.FindStringSubmatch(href)
		if m == nil {
			return
		}
		domain := m[1]
		if seen[domain] || containsAny(domain, systemHostMarkers...) {
			return
		}
		seen[domain] = true

		name := strings.TrimSpace(link.Text())
		if name == "" {
			name = domain
		}
		countries = append(countries, Country{
			Name:   name,
			Domain: domain,
			URL:    "https://" + domain + "/",
		})
	})

	return countries
}

// FilterCountries keeps countries whose domain contains one of target (when
// target is non-empty) and drops those whose domain contains one of skip
func FilterCountries(countries []Country, target, skip []string) []Country {
	var out []Country
	for _, c := range countries {
		domain := strings.ToLower(c.Domain)
		if len(target) > 0 && !containsAny(domain, target...) {
			continue
		}
		if len(skip) > 0 && containsAny(domain, skip...) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// CountryCode derives the file name prefix of a country site:
// www.locanto.com.ng becomes "com.ng", abidjan.locanto.ci becomes "ci"
func CountryCode(domain string) string {
	parts := strings.Split(strings.Replace(domain, "www.", "", 1), ".")
	if len(parts) < 2 {
		return strings.ReplaceAll(domain, ".", "_")
	}
	for i, part := range parts {
		if part == siteFamilyMarker && i+1 < len(parts) {
			return strings.Join(parts[i+1:], ".")
		}
	}
	return parts[len(parts)-1]
}
