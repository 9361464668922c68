package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/gsindri/kaupa-skil-sub003/pkg/api"
)

// CostComponent is one line of a landed-cost breakdown.
type CostComponent struct {
	Name        string  `json:"name"`
	Amount      float64 `json:"amount"`
	Explanation string  `json:"explanation"`
}

// LandedCost is the full delivery-cost view of an order against one
// supplier: base fee (tiered when the rule carries tiers, threshold/flat
// otherwise), fuel surcharge on the base fee, and pallet deposits.
type LandedCost struct {
	SupplierID    string          `json:"supplier_id"`
	BaseFee       float64         `json:"base_fee"`
	FuelSurcharge float64         `json:"fuel_surcharge"`
	PalletDeposit float64         `json:"pallet_deposit"`
	Total         decimal.Decimal `json:"total"`
	Components    []CostComponent `json:"components"`
}

// LandedCost computes the delivery-cost breakdown for a supplier at a
// given subtotal and pallet count. EstimateFee keeps its narrow contract;
// this is the richer view order composition screens sum into a landed
// total. Lookup failures degrade to a zero breakdown.
func (e *Estimator) LandedCost(ctx context.Context, supplierID string, subtotalExVAT float64, palletCount int) *LandedCost {
	lc := &LandedCost{
		SupplierID: supplierID,
		Total:      decimal.Zero,
		Components: []CostComponent{},
	}

	rule, err := e.rules.GetRule(ctx, supplierID)
	if err != nil {
		e.log.Warn().Err(err).Str("supplier_id", supplierID).
			Msg("delivery rule lookup failed, zero landed cost")
		return lc
	}
	if rule == nil {
		return lc
	}

	base, explanation := baseFee(rule, subtotalExVAT)
	lc.BaseFee = base
	lc.Components = append(lc.Components, CostComponent{
		Name:        "base_fee",
		Amount:      base,
		Explanation: explanation,
	})

	if rule.FuelSurchargePct > 0 && base > 0 {
		lc.FuelSurcharge = base * rule.FuelSurchargePct / 100
		lc.Components = append(lc.Components, CostComponent{
			Name:        "fuel_surcharge",
			Amount:      lc.FuelSurcharge,
			Explanation: fmt.Sprintf("%.1f%% of base fee %.2f", rule.FuelSurchargePct, base),
		})
	}

	if rule.PalletDepositPerUnit > 0 && palletCount > 0 {
		lc.PalletDeposit = float64(palletCount) * rule.PalletDepositPerUnit
		lc.Components = append(lc.Components, CostComponent{
			Name:        "pallet_deposit",
			Amount:      lc.PalletDeposit,
			Explanation: fmt.Sprintf("%d pallets at %.2f each", palletCount, rule.PalletDepositPerUnit),
		})
	}

	lc.Total = decimal.NewFromFloat(lc.BaseFee).
		Add(decimal.NewFromFloat(lc.FuelSurcharge)).
		Add(decimal.NewFromFloat(lc.PalletDeposit)).
		Round(2)
	return lc
}

// baseFee resolves the base delivery fee: the highest qualifying tier when
// tiers_json parses to a non-empty tier list, the threshold/flat rule
// otherwise.
func baseFee(rule *api.DeliveryRule, subtotalExVAT float64) (float64, string) {
	tiers := parseTiers(rule.TiersJSON)
	if len(tiers) == 0 {
		fee := feeForRule(rule, subtotalExVAT)
		if fee == 0 && rule.FreeThresholdExVAT != nil {
			return 0, fmt.Sprintf("free delivery over %.2f", *rule.FreeThresholdExVAT)
		}
		return fee, fmt.Sprintf("flat fee %.2f", fee)
	}

	// Highest qualifying min_subtotal wins.
	fee := tiers[0].Fee
	matched := tiers[0]
	for _, t := range tiers {
		if subtotalExVAT >= t.MinSubtotal {
			fee = t.Fee
			matched = t
		}
	}
	return fee, fmt.Sprintf("tier from %.2f at fee %.2f", matched.MinSubtotal, fee)
}

func parseTiers(raw json.RawMessage) []api.FeeTier {
	if len(raw) == 0 {
		return nil
	}
	var tiers []api.FeeTier
	if err := json.Unmarshal(raw, &tiers); err != nil {
		return nil
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinSubtotal < tiers[j].MinSubtotal })
	return tiers
}
