package parser

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
)

// Selector cascades, tried in order.
var (
	titleSelectors = []string{
		"#productTitle",
		"#title",
		"h1.product-title-word-break",
		"h1#title span",
	}

	priceSelectors = []string{
		"#corePrice_feature_div .a-price:not(.a-text-price) .a-offscreen",
		"#corePriceDisplay_desktop_feature_div .a-price:not(.a-text-price) .a-offscreen",
		"#priceblock_dealprice",
		"#priceblock_ourprice",
		"#priceblock_saleprice",
		".a-price:not(.a-text-price) .a-offscreen",
	}

	originalPriceSelectors = []string{
		".basisPrice .a-offscreen",
		".a-price.a-text-price .a-offscreen",
		"#listPrice",
		"#priceblock_listprice",
	}

	ratingSelectors = []string{
		"#acrPopover span.a-icon-alt",
		"span.a-icon-alt",
		"#averageCustomerReviews .a-icon-alt",
	}

	sellerSelectors = []string{
		"#sellerProfileTriggerId",
		"#merchant-info a span",
		"#merchant-info a",
	}
)

// Parser turns product page HTML into a ProductRecord.
// It is safe for concurrent use.
type Parser struct {
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Parser.
func New(logger *slog.Logger) *Parser {
	return &Parser{
		logger: logger.With("component", "parser"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the capture clock.
func (p *Parser) WithClock(now func() time.Time) *Parser {
	p.now = now
	return p
}

// page holds the lazily built views of one HTML document.
type page struct {
	raw    string
	doc    *goquery.Document
	node   *html.Node
	ld     []map[string]any
	ldOnce bool
	og     map[string]string
}

func (pg *page) product() map[string]any {
	if !pg.ldOnce {
		pg.ldOnce = true
		if pg.doc != nil {
			pg.ld = jsonLDObjects(pg.doc)
		}
	}
	return productObject(pg.ld)
}

// Parse extracts a ProductRecord from html. It returns nil only when html is
// empty or whitespace. Fields that cannot be extracted are left nil; a
// failure in one field never affects the others.
func (p *Parser) Parse(rawHTML, identifier string) *types.ProductRecord {
	if strings.TrimSpace(rawHTML) == "" {
		return nil
	}

	pg := &page{raw: rawHTML}
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML)); err == nil {
		pg.doc = doc
		if len(doc.Nodes) > 0 {
			pg.node = doc.Nodes[0]
		}
		pg.og = openGraph(doc)
	} else {
		p.logger.Warn("html parse failed, using raw markup only", "identifier", identifier, "error", err)
	}

	rec := &types.ProductRecord{
		Identifier:   identifier,
		Availability: types.Unknown,
		CapturedAt:   p.now(),
	}

	p.field(identifier, "title", func() { rec.Title = extractTitle(pg) })
	p.field(identifier, "price", func() {
		if price, currency, ok := extractPrice(pg); ok {
			rec.CurrentPrice = &price
			rec.Currency = currency
		}
	})
	p.field(identifier, "original_price", func() { rec.OriginalPrice = extractOriginalPrice(pg) })
	p.field(identifier, "discount", func() { rec.DiscountPercent = extractDiscount(pg) })
	p.field(identifier, "availability", func() { rec.Availability = extractAvailability(pg) })
	p.field(identifier, "rating", func() { rec.Rating = extractRating(pg) })
	p.field(identifier, "review_count", func() { rec.ReviewCount = extractReviewCount(pg) })
	p.field(identifier, "seller", func() { rec.Seller = extractSeller(pg) })
	p.field(identifier, "source_url", func() { rec.SourceURL = extractCanonical(pg) })

	p.logger.Debug("parsed product page",
		"identifier", identifier,
		"has_title", rec.Title != nil,
		"has_price", rec.CurrentPrice != nil,
		"availability", rec.Availability,
	)
	return rec
}

// ParsePage parses a fetched page and links the record to it.
func (p *Parser) ParsePage(raw *types.RawPage) *types.ProductRecord {
	if raw == nil {
		return nil
	}
	rec := p.Parse(raw.HTML, raw.Identifier)
	if rec == nil {
		return nil
	}
	if raw.FinalURL != "" {
		rec.SourceURL = raw.FinalURL
	} else if raw.URL != "" {
		rec.SourceURL = raw.URL
	}
	rec.RawPageID = raw.ID.String()
	if !raw.FetchedAt.IsZero() {
		rec.CapturedAt = raw.FetchedAt
	}
	return rec
}

// field runs one extraction and turns a panic into an absent field.
func (p *Parser) field(identifier, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("field extraction failed",
				"identifier", identifier,
				"field", name,
				"error", fmt.Sprint(r),
			)
		}
	}()
	fn()
}

func firstText(doc *goquery.Document, selectors []string) string {
	if doc == nil {
		return ""
	}
	for _, sel := range selectors {
		var found string
		doc.Find(sel).EachWithBreak(func(i int, s *goquery.Selection) bool {
			found = collapse(s.Text())
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func extractTitle(pg *page) *string {
	if t := firstText(pg.doc, titleSelectors); t != "" {
		return &t
	}
	if t := collapse(pg.og["og:title"]); t != "" {
		return &t
	}
	if product := pg.product(); product != nil {
		if t := collapse(ldString(product["name"])); t != "" {
			return &t
		}
	}
	return nil
}

// extractPrice runs the price cascade: page elements, then structured data,
// then a regex scan of the raw markup.
func extractPrice(pg *page) (float64, string, bool) {
	if pg.doc != nil {
		for _, sel := range priceSelectors {
			text := firstText(pg.doc, []string{sel})
			if price, ok := ParsePrice(text); ok && price > 0 {
				return price, currencyFromText(text), true
			}
		}
		if price, currency, ok := splitPrice(pg.doc); ok {
			return price, currency, true
		}
	}

	if product := pg.product(); product != nil {
		if price, currency, ok := ldPrice(product); ok {
			return price, strings.ToUpper(currency), true
		}
	}
	for _, key := range []string{"product:price:amount", "og:price:amount"} {
		if price, ok := ParsePrice(pg.og[key]); ok && price > 0 {
			currency := pg.og["product:price:currency"]
			if currency == "" {
				currency = pg.og["og:price:currency"]
			}
			return price, strings.ToUpper(currency), true
		}
	}
	if pg.doc != nil {
		if price, ok := ParsePrice(microdataValue(pg.doc, "price")); ok && price > 0 {
			return price, strings.ToUpper(microdataValue(pg.doc, "priceCurrency")), true
		}
	}

	return regexPrice(pg.raw)
}

// splitPrice joins Amazon's ".a-price-whole" and ".a-price-fraction" spans.
func splitPrice(doc *goquery.Document) (float64, string, bool) {
	var (
		price    float64
		currency string
		found    bool
	)
	doc.Find(".a-price-whole").EachWithBreak(func(i int, whole *goquery.Selection) bool {
		if whole.ParentsFiltered(".a-text-price").Length() > 0 {
			return true
		}
		text := collapse(whole.Text())
		container := whole.Parent()
		frac := collapse(container.Find(".a-price-fraction").First().Text())
		if frac != "" && !strings.Contains(strings.TrimRight(text, "."), ".") {
			text = strings.TrimRight(text, ".") + "." + frac
		}
		p, ok := ParsePrice(text)
		if !ok || p <= 0 {
			return true
		}
		price, found = p, true
		currency = currencyFromText(collapse(container.Find(".a-price-symbol").First().Text()))
		return false
	})
	return price, currency, found
}

func extractOriginalPrice(pg *page) *float64 {
	if price, ok := ParsePrice(firstText(pg.doc, originalPriceSelectors)); ok && price > 0 {
		return &price
	}
	return nil
}

func extractDiscount(pg *page) *float64 {
	text := firstText(pg.doc, []string{".savingsPercentage", "#dealBadgeSupportingText", ".priceBlockSavingsString"})
	if m := discountPercentRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return &v
		}
	}
	return nil
}

// extractAvailability reads the status regions, then structured data, then
// the add-to-cart control.
func extractAvailability(pg *page) types.Availability {
	if pg.doc != nil && pg.doc.Find("#outOfStock").Length() > 0 {
		return types.OutOfStock
	}

	text := firstText(pg.doc, []string{"#availability", "#availability span", "#availabilityInsideBuyBox_feature_div"})
	if text == "" {
		text = xpathText(pg.node, "//div[@tabular-attribute-name='Availability']//span[contains(@class,'tabular-buybox-text-message')]")
	}
	if a := types.Availability(text).Canonical(); a != types.Unknown {
		return a
	}

	if product := pg.product(); product != nil {
		if a := types.Availability(ldAvailability(product)).Canonical(); a != types.Unknown {
			return a
		}
	}

	if pg.doc != nil {
		btn := pg.doc.Find("#add-to-cart-button").First()
		if btn.Length() > 0 {
			if _, disabled := btn.Attr("disabled"); !disabled {
				return types.InStock
			}
		}
	}
	return types.Unknown
}

func extractRating(pg *page) *float64 {
	texts := []string{firstText(pg.doc, ratingSelectors)}
	if pg.doc != nil {
		if title, ok := pg.doc.Find("#acrPopover").First().Attr("title"); ok {
			texts = append(texts, title)
		}
	}
	for _, text := range texts {
		if m := ratingPattern.FindStringSubmatch(text); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return &v
			}
		}
		if m := ratingWholeStars.FindStringSubmatch(text); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return &v
			}
		}
	}
	if product := pg.product(); product != nil {
		if v, _, ok, _ := ldRating(product); ok {
			return &v
		}
	}
	return nil
}

func extractReviewCount(pg *page) *int {
	text := firstText(pg.doc, []string{"#acrCustomerReviewText", "#acrCustomerReviewLink span"})
	if run := reviewCountRun.FindString(text); run != "" {
		digits := strings.NewReplacer(",", "", ".", "").Replace(run)
		if n, err := strconv.Atoi(digits); err == nil {
			return &n
		}
	}
	if product := pg.product(); product != nil {
		if _, n, _, ok := ldRating(product); ok {
			return &n
		}
	}
	return nil
}

func extractSeller(pg *page) *string {
	if s := firstText(pg.doc, sellerSelectors); s != "" {
		return &s
	}
	if s := xpathText(pg.node, "//div[@tabular-attribute-name='Sold by']//span[contains(@class,'tabular-buybox-text-message')]"); s != "" {
		return &s
	}
	if product := pg.product(); product != nil {
		for _, offer := range ldOffers(product) {
			if s := collapse(ldString(offer["seller"])); s != "" {
				return &s
			}
		}
	}
	return nil
}

func extractCanonical(pg *page) string {
	if href := xpathAttr(pg.node, "//link[@rel='canonical']", "href"); href != "" {
		return href
	}
	return pg.og["og:url"]
}
