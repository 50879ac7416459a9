package tax

import (
	"github.com/shopspring/decimal"
)

// Tax regimes supported by the unified engine.
const (
	RegimeUS     = "us"
	RegimeCanada = "canada"
	RegimeVAT    = "vat"
)

// Discount kinds.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// LineKeyShipping is the breakdown row key used for shipping tax.
// Item rows use ordinal keys: "item1", "item2", ...
const LineKeyShipping = "shipping"

// LineItem is a single cart row. TaxRate is a per-item override used by the
// US regime; nil means the request-level rate set applies.
type LineItem struct {
	Price   decimal.Decimal
	TaxRate *decimal.Decimal
}

// Discount reduces the item subtotal. A percentage discount is interpreted
// against the item subtotal; a fixed discount is an absolute amount.
type Discount struct {
	Kind  string // "percentage" or "fixed"
	Value decimal.Decimal
}

// Policy holds the flags that control calculation semantics.
type Policy struct {
	// ApplyDiscountBeforeTax makes tax apply to (price - discount share)
	// instead of the full line price.
	ApplyDiscountBeforeTax bool

	// DiscountIsTaxable controls whether the discount stays inside the
	// displayed item subtotal when ApplyDiscountBeforeTax is set. See
	// Engine.Calculate for the exact (asymmetric) interaction.
	DiscountIsTaxable bool

	// ShippingTaxable includes the shipping cost in the taxable base.
	ShippingTaxable bool
}

// Rate is one named tax rate, e.g. {GST 5} or {QST 9.975}.
type Rate struct {
	Label   string
	Percent decimal.Decimal
}

// Request is the full input for one calculation. Regime selects how the
// active rate set is resolved; the regime-specific fields below it are only
// read for the matching regime.
type Request struct {
	Items        []LineItem
	Discounts    []Discount
	ShippingCost decimal.Decimal
	Policy       Policy

	Regime string

	// US: flat rate applied to every line without a per-item override.
	TaxRate decimal.Decimal

	// Canada: province code plus the GST/PST percentages to apply. The
	// province table decides the shape (HST vs GST+PST vs GST-only) and
	// the labels; these fields supply the percentages.
	Province string
	GSTRate  decimal.Decimal
	PSTRate  decimal.Decimal

	// VAT: single rate labeled "VAT".
	VATRate decimal.Decimal
}

// Result is the itemized outcome of one calculation. The aggregate fields
// are rounded to 2 decimal places; breakdown entries keep 4 decimal places
// so the per-rate display does not lose sub-cent precision.
type Result struct {
	ItemTotal     decimal.Decimal
	DiscountTotal decimal.Decimal
	ShippingCost  decimal.Decimal
	ShippingTax   decimal.Decimal
	TaxTotal      decimal.Decimal
	GrandTotal    decimal.Decimal

	// TaxBreakdown maps a line key ("item1", ..., "shipping") to its
	// per-rate amounts, keyed as "<LABEL>_amount" (e.g. "GST_amount").
	TaxBreakdown map[string]map[string]decimal.Decimal
}
