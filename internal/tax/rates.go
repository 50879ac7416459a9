package tax

import (
	"github.com/shopspring/decimal"
)

// Province rate shapes. HST provinces collapse federal and provincial tax
// into one combined rate; GST+PST provinces state two independent rates
// (Quebec relabels its provincial rate QST); the rest charge GST only.
const (
	shapeHST = iota
	shapeGSTPST
	shapeGSTOnly
)

// Rate labels used in breakdown keys.
const (
	LabelTax = "tax"
	LabelVAT = "VAT"
	LabelGST = "GST"
	LabelPST = "PST"
	LabelQST = "QST"
	LabelHST = "HST"
)

// province describes the rate shape and canonical percentages for one
// Canadian province or territory.
type province struct {
	Name           string
	Shape          int
	SecondaryLabel string // PST or QST; empty for HST / GST-only shapes
	Primary        decimal.Decimal
	Secondary      decimal.Decimal
}

func pct(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// provinces is the static jurisdiction table. Keys are two-letter
// province/territory codes.
var provinces = map[string]province{
	"AB": {Name: "Alberta", Shape: shapeGSTOnly, Primary: pct(5)},
	"BC": {Name: "British Columbia", Shape: shapeGSTPST, SecondaryLabel: LabelPST, Primary: pct(5), Secondary: pct(7)},
	"MB": {Name: "Manitoba", Shape: shapeGSTPST, SecondaryLabel: LabelPST, Primary: pct(5), Secondary: pct(7)},
	"NB": {Name: "New Brunswick", Shape: shapeHST, Primary: pct(15)},
	"NL": {Name: "Newfoundland and Labrador", Shape: shapeHST, Primary: pct(15)},
	"NS": {Name: "Nova Scotia", Shape: shapeHST, Primary: pct(15)},
	"NT": {Name: "Northwest Territories", Shape: shapeGSTOnly, Primary: pct(5)},
	"NU": {Name: "Nunavut", Shape: shapeGSTOnly, Primary: pct(5)},
	"ON": {Name: "Ontario", Shape: shapeHST, Primary: pct(13)},
	"PE": {Name: "Prince Edward Island", Shape: shapeHST, Primary: pct(15)},
	"QC": {Name: "Quebec", Shape: shapeGSTPST, SecondaryLabel: LabelQST, Primary: pct(5), Secondary: pct(9.975)},
	"SK": {Name: "Saskatchewan", Shape: shapeGSTPST, SecondaryLabel: LabelPST, Primary: pct(5), Secondary: pct(6)},
	"YT": {Name: "Yukon", Shape: shapeGSTOnly, Primary: pct(5)},
}

// RatesFor returns the canonical (label, percent) pairs for a province,
// ordered primary first. Unknown codes return nil — the caller treats that
// as "no jurisdiction selected", not an error.
func RatesFor(code string) []Rate {
	p, ok := provinces[code]
	if !ok {
		return nil
	}
	return p.rates(p.Primary, p.Secondary)
}

// ProvinceName returns the display name for a province code.
func ProvinceName(code string) (string, bool) {
	p, ok := provinces[code]
	if !ok {
		return "", false
	}
	return p.Name, true
}

// ProvinceCodes returns all known province codes, unordered.
func ProvinceCodes() []string {
	codes := make([]string, 0, len(provinces))
	for code := range provinces {
		codes = append(codes, code)
	}
	return codes
}

// resolveProvince builds the active rate set for a Canadian calculation.
// The table supplies the shape and labels; the request supplies the
// percentages (gst -> primary, pst -> secondary). Unknown province -> nil.
func resolveProvince(code string, gst, pst decimal.Decimal) []Rate {
	p, ok := provinces[code]
	if !ok {
		return nil
	}
	return p.rates(gst, pst)
}

func (p province) rates(primary, secondary decimal.Decimal) []Rate {
	switch p.Shape {
	case shapeHST:
		return []Rate{{Label: LabelHST, Percent: primary}}
	case shapeGSTOnly:
		return []Rate{{Label: LabelGST, Percent: primary}}
	default:
		return []Rate{
			{Label: LabelGST, Percent: primary},
			{Label: p.SecondaryLabel, Percent: secondary},
		}
	}
}
