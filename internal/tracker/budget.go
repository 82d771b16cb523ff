package tracker

import (
	"math"
	"time"
)

// BudgetStatus is a budget enriched with actual spend for a reporting window
type BudgetStatus struct {
	Budget
	Actual     float64 `json:"actual"`
	Remaining  float64 `json:"remaining"`
	Percentage float64 `json:"percentage"`
	Status     string  `json:"status"` // ok, warning, over
}

// PeriodWindow derives the inclusive date window for a budget period and a
// reporting (year, month). Monthly covers that month, quarterly the quarter
// containing that month, yearly the whole year regardless of month.
func PeriodWindow(period BudgetPeriod, year, month int) (time.Time, time.Time) {
	switch period {
	case PeriodMonthly:
		start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, 0).Add(-time.Second)
		return start, end
	case PeriodQuarterly:
		quarter := (month - 1) / 3
		start := time.Date(year, time.Month(quarter*3+1), 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 3, 0).Add(-time.Second)
		return start, end
	default: // yearly
		start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC)
		return start, end
	}
}

// EvaluateBudget classifies actual spend against a budget. Status is decided
// on the unrounded percentage; the reported percentage is rounded to one
// decimal.
func EvaluateBudget(budget *Budget, actual float64) BudgetStatus {
	percentage := 0.0
	if budget.Amount > 0 {
		percentage = actual / budget.Amount * 100
	}

	status := "ok"
	if percentage >= 100 {
		status = "over"
	} else if percentage >= 80 {
		status = "warning"
	}

	return BudgetStatus{
		Budget:     *budget,
		Actual:     actual,
		Remaining:  budget.Amount - actual,
		Percentage: math.Round(percentage*10) / 10,
		Status:     status,
	}
}
