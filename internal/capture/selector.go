package capture

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/gsindri/kaupa-skil-sub003/pkg/api"
)

// SelectorSet is the ordered selector library for one vendor site family.
// Price selectors run most-specific-first; declaration order breaks ties.
type SelectorSet struct {
	// Price selectors, tried in order. The first selector whose first
	// match has non-empty trimmed text wins.
	Price []string
	// Container matches the nearest product-container ancestor of the
	// price element; pack selectors are searched inside it.
	Container string
	// Pack selectors, tried in order within the container.
	Pack []string
	// CurrencyAttr is the attribute read off the price element for an
	// explicit currency code.
	CurrencyAttr string
}

// DefaultSelectors is the generic library: site-tailored entries first,
// bare ".price" as the last-resort fallback.
func DefaultSelectors() SelectorSet {
	return SelectorSet{
		Price: []string{
			`[data-testid="product-price"]`,
			`.product-price .amount`,
			`.price--main`,
			`.product-detail__price`,
			`[itemprop="price"]`,
			`.price`,
		},
		Container: `.product, .product-card, .product-detail, [data-product-id]`,
		Pack: []string{
			`.pack-size`,
			`.unit-size`,
			`.product-unit`,
			`.uom`,
		},
		CurrencyAttr: "data-currency",
	}
}

// ExtractFromDOM finds the first price-bearing element in priority order
// and lifts its trimmed text, optional currency attribute, and the nearest
// product container's pack descriptor. Pure read; nil when no selector
// produces non-empty text. Two calls over an unchanged document return
// identical results.
func ExtractFromDOM(doc *goquery.Document, set SelectorSet) *api.RawPriceObservation {
	for _, sel := range set.Price {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		text := strings.TrimSpace(el.Text())
		if text == "" {
			continue
		}

		raw := &api.RawPriceObservation{PriceText: text}
		if attr := set.CurrencyAttr; attr != "" {
			if cur, ok := el.Attr(attr); ok {
				raw.CurrencyText = cur
			}
		}
		if set.Container != "" {
			container := el.Closest(set.Container)
			if container.Length() > 0 {
				raw.PackText = findPackText(container, set.Pack)
			}
		}
		return raw
	}
	return nil
}

func findPackText(container *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		el := container.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		if text := strings.TrimSpace(el.Text()); text != "" {
			return text
		}
	}
	return ""
}
