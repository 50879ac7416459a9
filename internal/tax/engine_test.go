package tax

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func dp(f float64) *decimal.Decimal {
	v := decimal.NewFromFloat(f)
	return &v
}

func items(prices ...float64) []LineItem {
	out := make([]LineItem, len(prices))
	for i, p := range prices {
		out[i] = LineItem{Price: d(p)}
	}
	return out
}

func assertEq(t *testing.T, field string, want, got decimal.Decimal) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("%s: want %s, got %s", field, want.String(), got.String())
	}
}

func TestCalculate_USFlatRate(t *testing.T) {
	engine := NewEngine()

	result := engine.Calculate(Request{
		Items:   items(100),
		Regime:  RegimeUS,
		TaxRate: d(8),
	})

	assertEq(t, "item total", d(100), result.ItemTotal)
	assertEq(t, "tax total", d(8.00), result.TaxTotal)
	assertEq(t, "grand total", d(108.00), result.GrandTotal)
	assertEq(t, "item1 tax", d(8), result.TaxBreakdown["item1"]["tax_amount"])
}

func TestCalculate_USPerItemOverride(t *testing.T) {
	engine := NewEngine()

	// Second item carries its own 4% rate; first uses the flat 8%.
	result := engine.Calculate(Request{
		Items: []LineItem{
			{Price: d(100)},
			{Price: d(50), TaxRate: dp(4)},
		},
		Regime:  RegimeUS,
		TaxRate: d(8),
	})

	assertEq(t, "item1 tax", d(8), result.TaxBreakdown["item1"]["tax_amount"])
	assertEq(t, "item2 tax", d(2), result.TaxBreakdown["item2"]["tax_amount"])
	assertEq(t, "tax total", d(10.00), result.TaxTotal)
	assertEq(t, "grand total", d(160.00), result.GrandTotal)
}

func TestCalculate_CanadaOntarioHST(t *testing.T) {
	engine := NewEngine()

	result := engine.Calculate(Request{
		Items:    items(50),
		Regime:   RegimeCanada,
		Province: "ON",
		GSTRate:  d(13),
		PSTRate:  d(0),
	})

	assertEq(t, "item1 HST", d(6.50), result.TaxBreakdown["item1"]["HST_amount"])
	if _, ok := result.TaxBreakdown["item1"]["PST_amount"]; ok {
		t.Error("HST province must not produce a separate PST entry")
	}
	assertEq(t, "tax total", d(6.50), result.TaxTotal)
	assertEq(t, "grand total", d(56.50), result.GrandTotal)
}

func TestCalculate_CanadaQuebecGSTQST(t *testing.T) {
	engine := NewEngine()

	result := engine.Calculate(Request{
		Items:    items(100),
		Regime:   RegimeCanada,
		Province: "QC",
		GSTRate:  d(5),
		PSTRate:  d(9.975),
	})

	assertEq(t, "item1 GST", d(5.00), result.TaxBreakdown["item1"]["GST_amount"])
	assertEq(t, "item1 QST", d(9.975), result.TaxBreakdown["item1"]["QST_amount"])

	// 5 + 9.975 = 14.975 sums unrounded, then reports as 14.98.
	assertEq(t, "tax total", d(14.98), result.TaxTotal)
	assertEq(t, "grand total", d(114.98), result.GrandTotal)
}

func TestCalculate_CanadaAlbertaGSTOnly(t *testing.T) {
	engine := NewEngine()

	result := engine.Calculate(Request{
		Items:    items(200),
		Regime:   RegimeCanada,
		Province: "AB",
		GSTRate:  d(5),
		PSTRate:  d(7), // ignored: Alberta has no provincial tax
	})

	assertEq(t, "item1 GST", d(10), result.TaxBreakdown["item1"]["GST_amount"])
	if len(result.TaxBreakdown["item1"]) != 1 {
		t.Errorf("expected a single rate entry, got %d", len(result.TaxBreakdown["item1"]))
	}
	assertEq(t, "grand total", d(210.00), result.GrandTotal)
}

func TestCalculate_CanadaUnknownProvince(t *testing.T) {
	engine := NewEngine()

	result := engine.Calculate(Request{
		Items:    items(100),
		Regime:   RegimeCanada,
		Province: "XX",
		GSTRate:  d(5),
	})

	assertEq(t, "tax total", decimal.Zero, result.TaxTotal)
	assertEq(t, "grand total", d(100.00), result.GrandTotal)
	if len(result.TaxBreakdown["item1"]) != 0 {
		t.Error("unknown province should produce an empty rate entry, not tax")
	}
}

func TestCalculate_DiscountBeforeTaxNotTaxable(t *testing.T) {
	engine := NewEngine()

	result := engine.Calculate(Request{
		Items:     items(100),
		Discounts: []Discount{{Kind: DiscountFixed, Value: d(20)}},
		Policy: Policy{
			ApplyDiscountBeforeTax: true,
			DiscountIsTaxable:      false,
		},
		Regime:  RegimeUS,
		TaxRate: d(10),
	})

	// Taxable base 80, and the displayed subtotal absorbs the discount.
	assertEq(t, "item total", d(80.00), result.ItemTotal)
	assertEq(t, "discount total", d(20.00), result.DiscountTotal)
	assertEq(t, "tax total", d(8.00), result.TaxTotal)
	assertEq(t, "grand total", d(88.00), result.GrandTotal)
}

func TestCalculate_DisplayedSubtotalAsymmetry(t *testing.T) {
	engine := NewEngine()

	// The displayed item total is reduced by the discount ONLY when the
	// discount applies before tax AND is not taxable. Every combination
	// still grand-totals to the same 88.00 for this input.
	tests := []struct {
		name          string
		policy        Policy
		wantItemTotal decimal.Decimal
		wantTaxTotal  decimal.Decimal
		wantGrand     decimal.Decimal
	}{
		{
			name:          "before tax, not taxable: subtotal absorbs discount",
			policy:        Policy{ApplyDiscountBeforeTax: true, DiscountIsTaxable: false},
			wantItemTotal: d(80.00),
			wantTaxTotal:  d(8.00),
			wantGrand:     d(88.00),
		},
		{
			name:          "before tax, taxable: raw subtotal, tax still on discounted base",
			policy:        Policy{ApplyDiscountBeforeTax: true, DiscountIsTaxable: true},
			wantItemTotal: d(100.00),
			wantTaxTotal:  d(8.00),
			wantGrand:     d(88.00),
		},
		{
			name:          "after tax, taxable: tax on full price",
			policy:        Policy{ApplyDiscountBeforeTax: false, DiscountIsTaxable: true},
			wantItemTotal: d(100.00),
			wantTaxTotal:  d(10.00),
			wantGrand:     d(90.00),
		},
		{
			name:          "after tax, not taxable: same base as taxable (reference quirk)",
			policy:        Policy{ApplyDiscountBeforeTax: false, DiscountIsTaxable: false},
			wantItemTotal: d(100.00),
			wantTaxTotal:  d(10.00),
			wantGrand:     d(90.00),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.Calculate(Request{
				Items:     items(100),
				Discounts: []Discount{{Kind: DiscountFixed, Value: d(20)}},
				Policy:    tt.policy,
				Regime:    RegimeUS,
				TaxRate:   d(10),
			})

			assertEq(t, "item total", tt.wantItemTotal, result.ItemTotal)
			assertEq(t, "tax total", tt.wantTaxTotal, result.TaxTotal)
			assertEq(t, "grand total", tt.wantGrand, result.GrandTotal)
		})
	}
}

func TestCalculate_VATWithTaxableShipping(t *testing.T) {
	engine := NewEngine()

	result := engine.Calculate(Request{
		Items:        items(200),
		ShippingCost: d(10),
		Policy:       Policy{ShippingTaxable: true},
		Regime:       RegimeVAT,
		VATRate:      d(20),
	})

	assertEq(t, "item1 VAT", d(40.00), result.TaxBreakdown["item1"]["VAT_amount"])
	assertEq(t, "shipping VAT", d(2.00), result.TaxBreakdown[LineKeyShipping]["VAT_amount"])
	assertEq(t, "shipping tax", d(2.00), result.ShippingTax)
	assertEq(t, "tax total", d(42.00), result.TaxTotal)
	assertEq(t, "grand total", d(252.00), result.GrandTotal)
}

func TestCalculate_ShippingNotTaxable(t *testing.T) {
	engine := NewEngine()

	result := engine.Calculate(Request{
		Items:        items(100),
		ShippingCost: d(15),
		Policy:       Policy{ShippingTaxable: false},
		Regime:       RegimeVAT,
		VATRate:      d(21),
	})

	assertEq(t, "shipping tax", decimal.Zero, result.ShippingTax)
	if _, ok := result.TaxBreakdown[LineKeyShipping]; ok {
		t.Error("non-taxable shipping must not appear in the breakdown")
	}
	assertEq(t, "grand total", d(136.00), result.GrandTotal)
}

func TestCalculate_PercentageDiscount(t *testing.T) {
	engine := NewEngine()

	result := engine.Calculate(Request{
		Items:     items(80, 20),
		Discounts: []Discount{{Kind: DiscountPercentage, Value: d(25)}},
		Policy:    Policy{ApplyDiscountBeforeTax: true, DiscountIsTaxable: false},
		Regime:    RegimeVAT,
		VATRate:   d(10),
	})

	// 25% of 100 = 25 discount; taxable base 75.
	assertEq(t, "discount total", d(25.00), result.DiscountTotal)
	assertEq(t, "item total", d(75.00), result.ItemTotal)
	assertEq(t, "tax total", d(7.50), result.TaxTotal)
	assertEq(t, "grand total", d(82.50), result.GrandTotal)
}

func TestCalculate_DiscountClampedToSubtotal(t *testing.T) {
	engine := NewEngine()

	result := engine.Calculate(Request{
		Items: items(60, 40),
		Discounts: []Discount{
			{Kind: DiscountFixed, Value: d(80)},
			{Kind: DiscountPercentage, Value: d(50)},
		},
		Regime:  RegimeUS,
		TaxRate: d(10),
	})

	// 80 + 50 = 130 requested, clamped to the 100 subtotal.
	assertEq(t, "discount total", d(100.00), result.DiscountTotal)
	// Discount applies after tax here, so tax is still on the full 100.
	assertEq(t, "tax total", d(10.00), result.TaxTotal)
	assertEq(t, "grand total", d(10.00), result.GrandTotal)
}

func TestCalculate_ProportionalDiscountAllocation(t *testing.T) {
	engine := NewEngine()

	result := engine.Calculate(Request{
		Items:     items(100, 50),
		Discounts: []Discount{{Kind: DiscountFixed, Value: d(30)}},
		Policy:    Policy{ApplyDiscountBeforeTax: true, DiscountIsTaxable: false},
		Regime:    RegimeUS,
		TaxRate:   d(10),
	})

	// Shares: 20 and 10, so bases 80 and 40.
	assertEq(t, "item1 tax", d(8), result.TaxBreakdown["item1"]["tax_amount"])
	assertEq(t, "item2 tax", d(4), result.TaxBreakdown["item2"]["tax_amount"])
	assertEq(t, "tax total", d(12.00), result.TaxTotal)
	assertEq(t, "grand total", d(132.00), result.GrandTotal)
}

func TestCalculate_ZeroRates(t *testing.T) {
	engine := NewEngine()

	result := engine.Calculate(Request{
		Items:        items(40, 60),
		Discounts:    []Discount{{Kind: DiscountFixed, Value: d(10)}},
		ShippingCost: d(5),
		Regime:       RegimeUS,
		TaxRate:      decimal.Zero,
	})

	assertEq(t, "tax total", decimal.Zero, result.TaxTotal)
	assertEq(t, "grand total", d(95.00), result.GrandTotal)
}

func TestCalculate_NoItems(t *testing.T) {
	engine := NewEngine()

	result := engine.Calculate(Request{
		Regime:  RegimeVAT,
		VATRate: d(20),
	})

	assertEq(t, "item total", decimal.Zero, result.ItemTotal)
	assertEq(t, "tax total", decimal.Zero, result.TaxTotal)
	assertEq(t, "grand total", decimal.Zero, result.GrandTotal)
	if len(result.TaxBreakdown) != 0 {
		t.Errorf("expected empty breakdown, got %d entries", len(result.TaxBreakdown))
	}
}

func TestCalculate_BreakdownKeepsFourDecimals(t *testing.T) {
	engine := NewEngine()

	result := engine.Calculate(Request{
		Items:    items(33.33),
		Regime:   RegimeCanada,
		Province: "QC",
		GSTRate:  d(5),
		PSTRate:  d(9.975),
	})

	// 33.33 * 9.975% = 3.3246675, stored at 4 decimal places.
	assertEq(t, "item1 QST", d(3.3247), result.TaxBreakdown["item1"]["QST_amount"])
	assertEq(t, "item1 GST", d(1.6665), result.TaxBreakdown["item1"]["GST_amount"])

	// The aggregate sums the unrounded amounts before its own 2-dp round:
	// 1.66650 + 3.3246675 = 4.9911675 -> 4.99.
	assertEq(t, "tax total", d(4.99), result.TaxTotal)
}

func TestCalculate_ItemTotalExact(t *testing.T) {
	engine := NewEngine()

	// Sums that lose precision in binary floating point stay exact here.
	result := engine.Calculate(Request{
		Items:  items(0.1, 0.2, 0.3),
		Regime: RegimeUS,
	})

	assertEq(t, "item total", d(0.60), result.ItemTotal)
}

func TestCalculate_Idempotent(t *testing.T) {
	engine := NewEngine()

	req := Request{
		Items:        []LineItem{{Price: d(19.99)}, {Price: d(5.01), TaxRate: dp(7.25)}},
		Discounts:    []Discount{{Kind: DiscountPercentage, Value: d(10)}},
		ShippingCost: d(4.95),
		Policy:       Policy{ApplyDiscountBeforeTax: true, ShippingTaxable: true},
		Regime:       RegimeUS,
		TaxRate:      d(8.875),
	}

	first := engine.Calculate(req)
	second := engine.Calculate(req)

	assertEq(t, "grand total", first.GrandTotal, second.GrandTotal)
	assertEq(t, "tax total", first.TaxTotal, second.TaxTotal)
	for key, rates := range first.TaxBreakdown {
		for label, amount := range rates {
			assertEq(t, key+"/"+label, amount, second.TaxBreakdown[key][label])
		}
	}
}
