package crawler

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	// CategorySelector matches the category menu links of a site home page
	CategorySelector = `.catlist a, .header_menu a[href*="/"]:not([href*="post"]):not([href*="my"])`

	minCategoryLabel = 5
	maxCategoryLabel = 50
)

var (
	// categoryDenylist filters navigational links out of the category menu
	categoryDenylist = []string{"help", "faq", "contact", "about", "terms", "privacy", "post", "sign"}

	listingPathRegex = regexp.MustCompile(`/ID_\d+/.*\.html`)
)

// DiscoverCategories returns the category links of a site home page in
// document order, deduplicated by absolute URL. Relative hrefs resolve
// against pageURL.
func DiscoverCategories(doc *goquery.Document, pageURL string) []Category {
	categories := []Category{}
	if doc == nil {
		return categories
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return categories
	}

	seen := make(map[string]bool)
	doc.Find(CategorySelector).Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		text := strings.TrimSpace(link.Text())

		n := utf8.RuneCountInString(text)
		if n <= minCategoryLabel || n >= maxCategoryLabel {
			return
		}
		if isNavigational(text, href) {
			return
		}

		full, ok := resolveHref(base, href)
		if !ok || seen[full] {
			return
		}
		seen[full] = true
		categories = append(categories, Category{Name: text, URL: full})
	})

	return categories
}

// DiscoverListingURLs returns the ad links of a category page in document
// order, deduplicated by the ad ID embedded in the URL. An empty result means
// the category has no further pages.
func DiscoverListingURLs(doc *goquery.Document, pageURL string) []string {
	urls := []string{}
	if doc == nil {
		return urls
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return urls
	}

	seenIDs := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if !listingPathRegex.MatchString(href) {
			return
		}
		id := ExtractListingID(href)
		if id == nil || seenIDs[*id] {
			return
		}

		full, ok := resolveHref(base, href)
		if !ok {
			return
		}
		seenIDs[*id] = true
		urls = append(urls, full)
	})

	return urls
}

func isNavigational(text, href string) bool {
	text = strings.ToLower(text)
	href = strings.ToLower(href)
	for _, word := range categoryDenylist {
		if strings.Contains(text, word) || strings.Contains(href, word) {
			return true
		}
	}
	return false
}

func resolveHref(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	return base.ResolveReference(ref).String(), true
}
