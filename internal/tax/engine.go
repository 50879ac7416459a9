package tax

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Engine performs tax calculations. It is a pure function over its input:
// no state is retained between calls and it is safe for concurrent use.
//
// The algorithm, shared by all three regimes:
//
//  1. Resolve the active rate set (flat rate, province table, or VAT).
//  2. Sum item prices and discount amounts; clamp the discount to the
//     item subtotal.
//  3. For each line, compute the taxable base (discounted only when the
//     apply-discount-before-tax flag is set) and one tax amount per rate.
//  4. Tax shipping under the same rate set when shipping is taxable.
//  5. Assemble the rounded result: aggregates at 2 decimal places,
//     per-line breakdown entries at 4.
type Engine struct{}

// NewEngine creates a tax calculation engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Calculate runs one calculation. The engine assumes well-formed input
// (non-negative amounts, rates within [0,100]); validation belongs at the
// boundary. An empty or unresolvable rate set yields a complete zero-tax
// result rather than an error.
func (e *Engine) Calculate(req Request) Result {
	rates := e.resolveRates(req)

	itemTotal := decimal.Zero
	for _, item := range req.Items {
		itemTotal = itemTotal.Add(item.Price)
	}

	discountTotal := decimal.Zero
	for _, d := range req.Discounts {
		switch d.Kind {
		case DiscountPercentage:
			discountTotal = discountTotal.Add(itemTotal.Mul(d.Value).Div(hundred))
		default:
			discountTotal = discountTotal.Add(d.Value)
		}
	}
	// The discount can never invert the sign of the net amount.
	if discountTotal.GreaterThan(itemTotal) {
		discountTotal = itemTotal
	}

	// The displayed item total absorbs the discount only in the
	// before-tax + non-taxable-discount combination. In every other flag
	// combination the raw sum is displayed and the discount is subtracted
	// in the grand total instead. The two branches must not both subtract.
	discountFolded := req.Policy.ApplyDiscountBeforeTax && !req.Policy.DiscountIsTaxable
	displayedItemTotal := itemTotal
	if discountFolded {
		displayedItemTotal = itemTotal.Sub(discountTotal)
	}

	breakdown := make(map[string]map[string]decimal.Decimal, len(req.Items)+1)
	taxTotal := decimal.Zero

	for i, item := range req.Items {
		lineRates := rates
		if item.TaxRate != nil {
			// US per-item override: this line carries its own single-rate
			// set instead of the request-level one.
			lineRates = []Rate{{Label: LabelTax, Percent: *item.TaxRate}}
		}

		base := item.Price
		if req.Policy.ApplyDiscountBeforeTax && discountTotal.IsPositive() && itemTotal.IsPositive() {
			// Allocate the discount across lines in proportion to price so
			// that the taxable bases sum to itemTotal - discountTotal.
			share := discountTotal.Mul(item.Price).Div(itemTotal)
			base = item.Price.Sub(share)
		}
		// NOTE: when ApplyDiscountBeforeTax is false, the DiscountIsTaxable
		// flag does not change the taxable base — both settings tax the
		// full line price. This mirrors the reference behavior; see the
		// open-question entry in DESIGN.md before "fixing" it.

		entry := make(map[string]decimal.Decimal, len(lineRates))
		for _, r := range lineRates {
			amount := base.Mul(r.Percent).Div(hundred)
			entry[r.Label+"_amount"] = amount.Round(4)
			taxTotal = taxTotal.Add(amount)
		}
		breakdown[fmt.Sprintf("item%d", i+1)] = entry
	}

	shippingTax := decimal.Zero
	if req.Policy.ShippingTaxable && len(rates) > 0 {
		entry := make(map[string]decimal.Decimal, len(rates))
		for _, r := range rates {
			amount := req.ShippingCost.Mul(r.Percent).Div(hundred)
			entry[r.Label+"_amount"] = amount.Round(4)
			shippingTax = shippingTax.Add(amount)
			taxTotal = taxTotal.Add(amount)
		}
		breakdown[LineKeyShipping] = entry
	}

	// Grand total mirrors the displayed-subtotal asymmetry: the discount is
	// either already folded into displayedItemTotal or subtracted here.
	var grandTotal decimal.Decimal
	if discountFolded {
		grandTotal = displayedItemTotal.Add(taxTotal).Add(req.ShippingCost)
	} else {
		grandTotal = itemTotal.Add(taxTotal).Add(req.ShippingCost).Sub(discountTotal)
	}

	return Result{
		ItemTotal:     displayedItemTotal.Round(2),
		DiscountTotal: discountTotal.Round(2),
		ShippingCost:  req.ShippingCost.Round(2),
		ShippingTax:   shippingTax.Round(2),
		TaxTotal:      taxTotal.Round(2),
		GrandTotal:    grandTotal.Round(2),
		TaxBreakdown:  breakdown,
	}
}

// resolveRates maps the regime-specific request fields onto the active rate
// set. An unknown regime or province resolves to an empty set, which the
// calculation treats as zero tax.
func (e *Engine) resolveRates(req Request) []Rate {
	switch req.Regime {
	case RegimeUS:
		return []Rate{{Label: LabelTax, Percent: req.TaxRate}}
	case RegimeCanada:
		return resolveProvince(req.Province, req.GSTRate, req.PSTRate)
	case RegimeVAT:
		return []Rate{{Label: LabelVAT, Percent: req.VATRate}}
	default:
		return nil
	}
}
