package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiscoverCountries(t *testing.T) {
	doc := newDocument(t, `<html><body>
		<a href="https://www.locanto.info/about/">About</a>
		<a href="https://abidjan.locanto.ci/">Côte d'Ivoire</a>
		<a href="https://www.locanto.com.bd/">Bangladesh</a>
		<a href="https://www.locanto.com.bd/dhaka/">Dhaka</a>
		<a href="https://static.locanto.net/logo.png">Logo</a>
		<a href="https://www.locanto.com.gh/"></a>
		<a href="https://example.com/">Elsewhere</a>
	</body></html>`)

	countries := DiscoverCountries(doc)

	assert.Equal(t, []Country{
		{Name: "Côte d'Ivoire", Domain: "abidjan.locanto.ci", URL: "https://abidjan.locanto.ci/"},
		{Name: "Bangladesh", Domain: "www.locanto.com.bd", URL: "https://www.locanto.com.bd/"},
		{Name: "www.locanto.com.gh", Domain: "www.locanto.com.gh", URL: "https://www.locanto.com.gh/"},
	}, countries)
}

func TestFilterCountries(t *testing.T) {
	countries := []Country{
		{Name: "Côte d'Ivoire", Domain: "abidjan.locanto.ci"},
		{Name: "Bangladesh", Domain: "www.locanto.com.bd"},
		{Name: "Ghana", Domain: "www.locanto.com.gh"},
	}

	tests := []struct {
		name     string
		target   []string
		skip     []string
		expected []string
	}{
		{"no filters", nil, nil, []string{"abidjan.locanto.ci", "www.locanto.com.bd", "www.locanto.com.gh"}},
		{"target", []string{"bd", "gh"}, nil, []string{"www.locanto.com.bd", "www.locanto.com.gh"}},
		{"skip", nil, []string{"ci"}, []string{"www.locanto.com.bd", "www.locanto.com.gh"}},
		{"target and skip", []string{"com"}, []string{"gh"}, []string{"www.locanto.com.bd"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var domains []string
			for _, c := range FilterCountries(countries, tt.target, tt.skip) {
				domains = append(domains, c.Domain)
			}
			assert.Equal(t, tt.expected, domains)
		})
	}
}

func TestCountryCode(t *testing.T) {
	tests := map[string]string{
		"www.locanto.com.ng": "com.ng",
		"abidjan.locanto.ci": "ci",
		"www.locanto.com.bd": "com.bd",
		"classifieds.example": "example",
		"localhost":          "localhost",
	}

	for domain, expected := range tests {
		assert.Equal(t, expected, CountryCode(domain), domain)
	}
}
