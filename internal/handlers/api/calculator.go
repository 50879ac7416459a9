package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/toolhive/api/internal/middleware"
	"github.com/toolhive/api/internal/tax"
)

// ToolChecker gates tool endpoints behind the registry. The tool service
// implements it; tests substitute a stub.
type ToolChecker interface {
	CanAccess(ctx context.Context, userID uuid.UUID, role, slug string) (bool, error)
}

// CalculatorHandler serves the tax calculator tool.
type CalculatorHandler struct {
	engine *tax.Engine
	tools  ToolChecker
	logger *slog.Logger
}

// NewCalculatorHandler creates a calculator handler.
func NewCalculatorHandler(engine *tax.Engine, tools ToolChecker, logger *slog.Logger) *CalculatorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CalculatorHandler{engine: engine, tools: tools, logger: logger}
}

// RegisterRoutes registers calculator routes on the given mux.
func (h *CalculatorHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/tools/tax-calculator", h.Calculate)
	mux.HandleFunc("GET /api/v1/tools/tax-calculator/provinces", h.ListProvinces)
}

// --- wire types ---

type lineItemJSON struct {
	Price   decimal.Decimal  `json:"price"`
	TaxRate *decimal.Decimal `json:"taxRate,omitempty"`
}

type discountJSON struct {
	Kind  string          `json:"kind"`
	Value decimal.Decimal `json:"value"`
}

type calculateRequest struct {
	Regime    string          `json:"regime"`
	Items     []lineItemJSON  `json:"items"`
	Discounts []discountJSON  `json:"discounts,omitempty"`
	Shipping  decimal.Decimal `json:"shippingCost"`

	ApplyDiscountBeforeTax bool `json:"applyDiscountBeforeTax"`
	DiscountIsTaxable      bool `json:"discountIsTaxable"`
	ShippingTaxable        bool `json:"shippingTaxable"`

	TaxRate  decimal.Decimal `json:"taxRate"`  // us
	Province string          `json:"province"` // canada
	GSTRate  decimal.Decimal `json:"gstRate"`  // canada
	PSTRate  decimal.Decimal `json:"pstRate"`  // canada
	VATRate  decimal.Decimal `json:"vatRate"`  // vat
}

type calculateResponse struct {
	ItemTotal     num                       `json:"itemTotal"`
	DiscountTotal num                       `json:"discountTotal"`
	ShippingCost  num                       `json:"shippingCost"`
	ShippingTax   num                       `json:"shippingTax"`
	TaxTotal      num                       `json:"taxTotal"`
	GrandTotal    num                       `json:"grandTotal"`
	TaxBreakdown  map[string]map[string]num `json:"taxBreakdown"`
}

// Calculate handles POST /api/v1/tools/tax-calculator.
func (h *CalculatorHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	var req calculateRequest
	if err := decodeJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	if msg := validateCalculateRequest(&req); msg != "" {
		errorJSON(w, http.StatusBadRequest, msg)
		return
	}

	result := h.engine.Calculate(toEngineRequest(&req))

	writeJSON(w, http.StatusOK, toResponse(result))
}

// ListProvinces handles GET /api/v1/tools/tax-calculator/provinces.
// It returns the canonical rate table so clients can prefill the form.
func (h *CalculatorHandler) ListProvinces(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	type provinceJSON struct {
		Code  string `json:"code"`
		Name  string `json:"name"`
		Rates []struct {
			Label   string `json:"label"`
			Percent num    `json:"percent"`
		} `json:"rates"`
	}

	codes := tax.ProvinceCodes()
	provinces := make([]provinceJSON, 0, len(codes))
	for _, code := range codes {
		name, _ := tax.ProvinceName(code)
		p := provinceJSON{Code: code, Name: name}
		for _, rate := range tax.RatesFor(code) {
			p.Rates = append(p.Rates, struct {
				Label   string `json:"label"`
				Percent num    `json:"percent"`
			}{Label: rate.Label, Percent: jsonNum(rate.Percent)})
		}
		provinces = append(provinces, p)
	}

	writeJSON(w, http.StatusOK, map[string]any{"provinces": provinces})
}

func (h *CalculatorHandler) authorize(w http.ResponseWriter, r *http.Request) bool {
	userID, ok := middleware.UserFromContext(r.Context())
	if !ok {
		errorJSON(w, http.StatusUnauthorized, "authentication required")
		return false
	}
	role, _ := middleware.RoleFromContext(r.Context())

	allowed, err := h.tools.CanAccess(r.Context(), userID, role, "tax-calculator")
	if err != nil {
		h.logger.Error("tool access check failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return false
	}
	if !allowed {
		errorJSON(w, http.StatusForbidden, "tool not available for this account")
		return false
	}
	return true
}

var percentCeiling = decimal.NewFromInt(100)

// validateCalculateRequest returns an error message for the first problem
// found, or "" when the request is well formed. The engine itself is total
// over well-formed input, so all boundary policing happens here.
func validateCalculateRequest(req *calculateRequest) string {
	if len(req.Items) == 0 {
		return "at least one line item is required"
	}

	for _, item := range req.Items {
		if item.Price.IsNegative() {
			return "item prices must not be negative"
		}
		if item.TaxRate != nil && !validPercent(*item.TaxRate) {
			return "per-item tax rates must be between 0 and 100"
		}
	}

	for _, d := range req.Discounts {
		if d.Kind != tax.DiscountPercentage && d.Kind != tax.DiscountFixed {
			return "discount kind must be percentage or fixed"
		}
		if d.Value.IsNegative() {
			return "discount values must not be negative"
		}
		if d.Kind == tax.DiscountPercentage && !validPercent(d.Value) {
			return "percentage discounts must be between 0 and 100"
		}
	}

	if req.Shipping.IsNegative() {
		return "shipping cost must not be negative"
	}

	switch req.Regime {
	case tax.RegimeUS:
		if !validPercent(req.TaxRate) {
			return "taxRate must be between 0 and 100"
		}
	case tax.RegimeCanada:
		if req.Province == "" {
			return "province is required for the canada regime"
		}
		if !validPercent(req.GSTRate) || !validPercent(req.PSTRate) {
			return "gstRate and pstRate must be between 0 and 100"
		}
	case tax.RegimeVAT:
		if !validPercent(req.VATRate) {
			return "vatRate must be between 0 and 100"
		}
	default:
		return "regime must be one of us, canada, vat"
	}

	return ""
}

func validPercent(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(percentCeiling)
}

func toEngineRequest(req *calculateRequest) tax.Request {
	items := make([]tax.LineItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = tax.LineItem{Price: item.Price, TaxRate: item.TaxRate}
	}

	discounts := make([]tax.Discount, len(req.Discounts))
	for i, d := range req.Discounts {
		discounts[i] = tax.Discount{Kind: d.Kind, Value: d.Value}
	}

	return tax.Request{
		Items:        items,
		Discounts:    discounts,
		ShippingCost: req.Shipping,
		Policy: tax.Policy{
			ApplyDiscountBeforeTax: req.ApplyDiscountBeforeTax,
			DiscountIsTaxable:      req.DiscountIsTaxable,
			ShippingTaxable:        req.ShippingTaxable,
		},
		Regime:   req.Regime,
		TaxRate:  req.TaxRate,
		Province: req.Province,
		GSTRate:  req.GSTRate,
		PSTRate:  req.PSTRate,
		VATRate:  req.VATRate,
	}
}

func toResponse(result tax.Result) calculateResponse {
	breakdown := make(map[string]map[string]num, len(result.TaxBreakdown))
	for lineKey, entries := range result.TaxBreakdown {
		line := make(map[string]num, len(entries))
		for label, amount := range entries {
			line[label] = jsonNum(amount)
		}
		breakdown[lineKey] = line
	}

	return calculateResponse{
		ItemTotal:     jsonNum(result.ItemTotal),
		DiscountTotal: jsonNum(result.DiscountTotal),
		ShippingCost:  jsonNum(result.ShippingCost),
		ShippingTax:   jsonNum(result.ShippingTax),
		TaxTotal:      jsonNum(result.TaxTotal),
		GrandTotal:    jsonNum(result.GrandTotal),
		TaxBreakdown:  breakdown,
	}
}
