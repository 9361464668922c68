package capture

import (
	"math"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// NetworkPrice is a price candidate lifted from an intercepted JSON body.
type NetworkPrice struct {
	Price    float64 `json:"price"`
	Currency string  `json:"currency,omitempty"`
}

var (
	priceKeyRe    = regexp.MustCompile(`(?i)price|amount|value|net|gross`)
	currencyKeyRe = regexp.MustCompile(`(?i)currency`)
)

// ExtractNetworkPrice walks an arbitrary JSON payload depth-first in
// document order and returns the first numeric field whose key matches
// price|amount|value|net|gross together with the first string field whose
// key matches currency. The price search stops at its first hit; the
// currency search continues independently. Arrays are recursed
// element-wise, not flattened.
//
// When a payload carries several plausible price keys (net_price next to
// gross_price), whichever appears first in the document wins. That
// order-dependence is inherited from the source feeds and deliberately not
// disambiguated here.
//
// Returns nil for invalid JSON or when no usable price is found.
func ExtractNetworkPrice(body []byte) *NetworkPrice {
	if !gjson.ValidBytes(body) {
		return nil
	}

	var price *float64
	var currency string

	var walk func(v gjson.Result)
	walk = func(v gjson.Result) {
		v.ForEach(func(key, val gjson.Result) bool {
			if price != nil && currency != "" {
				return false
			}
			k := key.String()
			switch val.Type {
			case gjson.Number:
				if price == nil && k != "" && priceKeyRe.MatchString(k) {
					p := val.Float()
					price = &p
				}
			case gjson.String:
				if currency == "" && k != "" && currencyKeyRe.MatchString(k) {
					currency = strings.TrimSpace(val.String())
				}
			case gjson.JSON:
				walk(val)
			}
			return true
		})
	}
	walk(gjson.ParseBytes(body))

	if price == nil || math.IsNaN(*price) {
		return nil
	}
	return &NetworkPrice{Price: *price, Currency: currency}
}
