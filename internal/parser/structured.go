package parser

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// jsonLDObjects parses every <script type="application/ld+json"> block.
// Single objects, arrays and @graph containers are flattened into one list.
func jsonLDObjects(doc *goquery.Document) []map[string]any {
	var results []map[string]any

	doc.Find(`script[type="application/ld+json"]`).Each(func(i int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}

		var data map[string]any
		if err := json.Unmarshal([]byte(raw), &data); err == nil {
			results = append(results, flattenGraph(data)...)
			return
		}

		var dataArr []map[string]any
		if err := json.Unmarshal([]byte(raw), &dataArr); err == nil {
			for _, d := range dataArr {
				results = append(results, flattenGraph(d)...)
			}
		}
	})

	return results
}

func flattenGraph(obj map[string]any) []map[string]any {
	graph, ok := obj["@graph"].([]any)
	if !ok {
		return []map[string]any{obj}
	}
	out := make([]map[string]any, 0, len(graph))
	for _, g := range graph {
		if m, ok := g.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// productObject returns the first JSON-LD object typed as a Product.
func productObject(objects []map[string]any) map[string]any {
	for _, obj := range objects {
		if hasType(obj, "Product") {
			return obj
		}
	}
	return nil
}

func hasType(obj map[string]any, want string) bool {
	switch t := obj["@type"].(type) {
	case string:
		return strings.EqualFold(t, want)
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && strings.EqualFold(s, want) {
				return true
			}
		}
	}
	return false
}

// ldOffers returns the offers of a product whether given as object or array.
func ldOffers(product map[string]any) []map[string]any {
	switch o := product["offers"].(type) {
	case map[string]any:
		return []map[string]any{o}
	case []any:
		out := make([]map[string]any, 0, len(o))
		for _, v := range o {
			if m, ok := v.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// ldPrice reads offers.price (or lowPrice for an AggregateOffer) and its currency.
func ldPrice(product map[string]any) (float64, string, bool) {
	for _, offer := range ldOffers(product) {
		currency := ldString(offer["priceCurrency"])
		for _, key := range []string{"price", "lowPrice"} {
			if v, ok := offer[key]; ok {
				if p, ok := ParsePrice(ldString(v)); ok {
					return p, currency, true
				}
			}
		}
		if spec, ok := offer["priceSpecification"].(map[string]any); ok {
			if p, ok := ParsePrice(ldString(spec["price"])); ok {
				if currency == "" {
					currency = ldString(spec["priceCurrency"])
				}
				return p, currency, true
			}
		}
	}
	return 0, "", false
}

// ldAvailability reads offers.availability, e.g. "https://schema.org/InStock".
func ldAvailability(product map[string]any) string {
	for _, offer := range ldOffers(product) {
		if s := ldString(offer["availability"]); s != "" {
			s = s[strings.LastIndex(s, "/")+1:]
			switch strings.ToLower(s) {
			case "instock", "limitedavailability", "onlineonly", "instoreonly":
				return "in stock"
			case "outofstock", "soldout", "discontinued":
				return "out of stock"
			case "preorder", "backorder", "presale":
				return "available"
			}
		}
	}
	return ""
}

func ldRating(product map[string]any) (rating float64, reviews int, hasRating, hasReviews bool) {
	agg, ok := product["aggregateRating"].(map[string]any)
	if !ok {
		return 0, 0, false, false
	}
	if r, err := strconv.ParseFloat(ldString(agg["ratingValue"]), 64); err == nil {
		rating, hasRating = r, true
	}
	for _, key := range []string{"reviewCount", "ratingCount"} {
		if n, err := strconv.Atoi(strings.ReplaceAll(ldString(agg[key]), ",", "")); err == nil {
			reviews, hasReviews = n, true
			break
		}
	}
	return rating, reviews, hasRating, hasReviews
}

// ldString renders a JSON scalar as text.
func ldString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case nil:
		return ""
	case map[string]any:
		// Some sites nest names, e.g. "brand": {"name": "..."}.
		return ldString(t["name"])
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// openGraph collects og: and product: meta properties.
func openGraph(doc *goquery.Document) map[string]string {
	data := make(map[string]string)

	doc.Find(`meta[property^="og:"], meta[property^="product:"]`).Each(func(i int, sel *goquery.Selection) {
		property, _ := sel.Attr("property")
		content, _ := sel.Attr("content")
		if property != "" && content != "" {
			if _, seen := data[property]; !seen {
				data[property] = strings.TrimSpace(content)
			}
		}
	})

	return data
}

// microdataValue returns the first itemprop value, preferring the content attribute.
func microdataValue(doc *goquery.Document, name string) string {
	sel := doc.Find(`[itemprop="` + name + `"]`).First()
	if sel.Length() == 0 {
		return ""
	}
	if content, ok := sel.Attr("content"); ok && strings.TrimSpace(content) != "" {
		return strings.TrimSpace(content)
	}
	return strings.TrimSpace(sel.Text())
}
