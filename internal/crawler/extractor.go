package crawler

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	// DefaultImageHostMarker identifies images served by the site's CDN
	DefaultImageHostMarker = "images.locanto"

	maxPhoneLength = 50
)

var (
	listingIDRegex = regexp.MustCompile(`ID_(\d+)`)
	phoneDigits    = regexp.MustCompile(`\d{3,}`)
	postedPrefixes = []string{"Publiée:", "Publié:", "Posted:"}
	postedMarkers  = []string{"Publié", "Posted"}
)

// Selectors contains the CSS selectors of an ad detail page. Slices are
// fallback chains: the first selector yielding a non-empty value wins.
type Selectors struct {
	Title        []string
	Description  string
	PriceSources []string
	Images       string
	Phone        string
	Username     string
	City         string
	Latitude     string
	Longitude    string
	PostedAt     string
	Breadcrumb   string
}

// DefaultSelectors matches the ad page layout shared by every country site
var DefaultSelectors = Selectors{
	Title:       []string{"h1.h1__title", "h1"},
	Description: ".simple__description",
	// Prices show up in any of these depending on the page variant, so the
	// text of all of them is concatenated before parsing
	PriceSources: []string{".simple__description", ".simple__price", `[class*="price"]`},
	Images:       `.user_images__img, img[alt*="Image"]`,
	Phone:        ".button__element_label.js-button_element_label",
	Username:     ".userprofile__nickname_label",
	City:         `[itemprop="addressLocality"]`,
	Latitude:     `[itemprop="latitude"]`,
	Longitude:    `[itemprop="longitude"]`,
	PostedAt:     ".list__element_label",
	Breadcrumb:   ".breadcrumb__link",
}

// Extractor turns an ad detail page into a Listing. It holds no per-call
// state and is safe for concurrent use.
type Extractor struct {
	Selectors       Selectors
	ImageHostMarker string
	// Now is read once per Extract call
	Now func() time.Time
	// OnFailure, when set, receives structural failures recovered during extraction
	OnFailure func(sourceURL string, err error)
}

// NewExtractor creates an extractor for the default page layout
func NewExtractor(imageHostMarker string) *Extractor {
	if imageHostMarker == "" {
		imageHostMarker = DefaultImageHostMarker
	}
	return &Extractor{
		Selectors:       DefaultSelectors,
		ImageHostMarker: imageHostMarker,
		Now:             time.Now,
	}
}

// Extract builds a Listing from doc. It returns nil when doc is nil or when
// extraction hits an unexpected structural failure; a missing field is never
// a failure and is left nil.
func (e *Extractor) Extract(doc *goquery.Document, sourceURL string) (listing *Listing) {
	if doc == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			listing = nil
			if e.OnFailure != nil {
				e.OnFailure(sourceURL, fmt.Errorf("extract %s: %v", sourceURL, r))
			}
		}
	}()

	now := time.Now()
	if e.Now != nil {
		now = e.Now()
	}

	root := doc.Selection
	price := NormalizePrice(e.priceText(root))
	images := e.images(root)

	listing = &Listing{
		ID:          ExtractListingID(sourceURL),
		URL:         sourceURL,
		Title:       optional(applyHandlers(root, e.titleHandlers())),
		Price:       price.Amount,
		Currency:    price.Currency,
		Description: e.description(root),
		Images:      images,
		Contact: Contact{
			Username: optional(firstText(root, e.Selectors.Username)),
			Phone:    e.phone(root),
		},
		Location: Location{
			City:      CleanCity(firstText(root, e.Selectors.City)),
			Latitude:  optional(firstText(root, e.Selectors.Latitude)),
			Longitude: optional(firstText(root, e.Selectors.Longitude)),
		},
		Category:   e.category(root),
		DatePosted: e.datePosted(root, now),
		ScrapedAt:  now.Format(time.RFC3339),
	}
	if len(images) > 0 {
		listing.MainImage = &images[0]
	}

	return listing
}

// ExtractListingID returns the numeric token of an ad URL, or nil when absent
func ExtractListingID(rawURL string) *string {
	m := listingIDRegex.FindStringSubmatch(rawURL)
	if m == nil {
		return nil
	}
	return &m[1]
}

// applyHandlers runs handlers in order and stops at the first non-empty result
func applyHandlers(s *goquery.Selection, handlers []ElementHandler) string {
	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		if result := handler(s); result != "" {
			return result
		}
	}
	return ""
}

func textHandler(selector string) ElementHandler {
	return func(s *goquery.Selection) string {
		return firstText(s, selector)
	}
}

func (e *Extractor) titleHandlers() []ElementHandler {
	handlers := make([]ElementHandler, 0, len(e.Selectors.Title))
	for _, selector := range e.Selectors.Title {
		handlers = append(handlers, textHandler(selector))
	}
	return handlers
}

// firstText returns the trimmed text of the first element matching selector
func firstText(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	sel := s.Find(selector).First()
	if sel.Length() == 0 {
		return ""
	}
	return collapseSpace(sel.Text())
}

// collapseSpace trims text and joins its words with single spaces, so text
// split across nodes and lines reads as one line
func collapseSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func (e *Extractor) priceText(s *goquery.Selection) string {
	var parts []string
	for _, selector := range e.Selectors.PriceSources {
		sel := s.Find(selector).First()
		if sel.Length() > 0 {
			parts = append(parts, sel.Text())
		}
	}
	return strings.Join(parts, " ")
}

func (e *Extractor) description(s *goquery.Selection) *string {
	sel := s.Find(e.Selectors.Description).First()
	if sel.Length() == 0 {
		return nil
	}
	text := collapseSpace(StripInlinePrices(sel.Text()))
	return &text
}

func (e *Extractor) images(s *goquery.Selection) []string {
	images := []string{}
	seen := make(map[string]bool)

	s.Find(e.Selectors.Images).Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if src == "" {
			srcset, _ := img.Attr("srcset")
			if fields := strings.Fields(srcset); len(fields) > 0 {
				src = fields[0]
			}
		}
		if fields := strings.Fields(src); len(fields) > 0 {
			src = fields[0]
		}
		if src == "" || !strings.Contains(src, e.ImageHostMarker) || seen[src] {
			return
		}
		seen[src] = true
		images = append(images, src)
	})

	return images
}

func (e *Extractor) phone(s *goquery.Selection) *string {
	text := firstText(s, e.Selectors.Phone)
	if !phoneDigits.MatchString(text) || utf8.RuneCountInString(text) >= maxPhoneLength {
		return nil
	}
	return &text
}

func (e *Extractor) category(s *goquery.Selection) *string {
	crumbs := s.Find(e.Selectors.Breadcrumb)
	if crumbs.Length() == 0 {
		return nil
	}
	return optional(collapseSpace(crumbs.Last().Text()))
}

func (e *Extractor) datePosted(s *goquery.Selection, now time.Time) *string {
	var raw string
	s.Find(e.Selectors.PostedAt).EachWithBreak(func(_ int, label *goquery.Selection) bool {
		text := collapseSpace(label.Text())
		if containsAny(text, postedMarkers...) {
			raw = text
			return false
		}
		return true
	})
	if raw == "" {
		return nil
	}

	for _, prefix := range postedPrefixes {
		raw = strings.Replace(raw, prefix, "", 1)
	}
	return ResolveDate(strings.TrimSpace(raw), now)
}
