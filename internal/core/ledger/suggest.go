package ledger

import "github.com/shopspring/decimal"

var (
	defaultRedirect = decimal.NewFromInt(1000)
	planReturn      = decimal.RequireFromString("0.14") // over six months
)

// Suggestion proposes redirecting money into the MindFi50 plan.
type Suggestion struct {
	RedirectAmount  decimal.Decimal `json:"suggested_redirect_amount"`
	PlanName        string          `json:"plan_name"`
	ProjectedGrowth decimal.Decimal `json:"projected_growth"`
	ProjectedValue  decimal.Decimal `json:"projected_value_after_6_months"`
	ReturnRate      string          `json:"return_rate"`
	RiskLevel       string          `json:"risk_level"`
	Message         string          `json:"message"`
}

// Suggest builds a Suggestion for amount, falling back to 1000 when amount is
// not positive.
func Suggest(amount decimal.Decimal) Suggestion {
	if !amount.IsPositive() {
		amount = defaultRedirect
	}
	growth := amount.Mul(planReturn).Round(0)
	return Suggestion{
		RedirectAmount:  amount,
		PlanName:        "MindFi50",
		ProjectedGrowth: growth,
		ProjectedValue:  amount.Add(growth),
		ReturnRate:      "~14% in 6 months",
		RiskLevel:       "Low",
		Message:         "Redirect ₹" + amount.String() + " to MindFi50 instead? Potential ₹" + growth.String() + " growth in 6 months.",
	}
}
