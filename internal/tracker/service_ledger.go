package tracker

import (
	"fmt"
	"strings"
	"time"
)

// DepositPayload is the input for creating a deposit
type DepositPayload struct {
	ProjectID      string  `json:"projectId"`
	Source         string  `json:"source"`
	Description    string  `json:"description"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	Date           string  `json:"date"` // YYYY-MM-DD
	IncomeCategory string  `json:"incomeCategory"`
	Notes          string  `json:"notes"`
}

func (p *DepositPayload) validate() (time.Time, error) {
	if p.ProjectID == "" {
		return time.Time{}, fmt.Errorf("projectId is required")
	}
	if strings.TrimSpace(p.Source) == "" {
		return time.Time{}, fmt.Errorf("source is required")
	}
	if p.Amount <= 0 {
		return time.Time{}, fmt.Errorf("amount must be positive")
	}
	date, err := time.Parse("2006-01-02", p.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD")
	}
	return date, nil
}

// DepositUpdatePayload uses pointers so omitted fields stay untouched
type DepositUpdatePayload struct {
	ProjectID      *string  `json:"projectId"`
	Source         *string  `json:"source"`
	Description    *string  `json:"description"`
	Amount         *float64 `json:"amount"`
	Currency       *string  `json:"currency"`
	Date           *string  `json:"date"`
	IncomeCategory *string  `json:"incomeCategory"`
	Notes          *string  `json:"notes"`
}

// CreateDeposit records income against a project
func (s *Service) CreateDeposit(userID string, payload *DepositPayload) (*Deposit, error) {
	date, err := payload.validate()
	if err != nil {
		return nil, err
	}

	now := s.timeSource.Now()
	currency := payload.Currency
	if currency == "" {
		currency = "USD"
	}
	deposit := &Deposit{
		ID:             s.idGenerator.Generate(),
		UserID:         userID,
		ProjectID:      payload.ProjectID,
		Source:         payload.Source,
		Description:    payload.Description,
		Amount:         payload.Amount,
		Currency:       currency,
		Date:           date,
		IncomeCategory: payload.IncomeCategory,
		Notes:          payload.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.db.SaveDeposit(deposit); err != nil {
		return nil, fmt.Errorf("saving deposit: %w", err)
	}
	return deposit, nil
}

// GetDeposit retrieves a deposit, scoped to its owner
func (s *Service) GetDeposit(userID, id string) (*Deposit, error) {
	deposit, err := s.db.GetDeposit(id)
	if err != nil {
		return nil, err
	}
	if deposit.UserID != userID {
		return nil, ErrNotFound
	}
	return deposit, nil
}

// ListDeposits returns a user's deposits, optionally limited to a project
func (s *Service) ListDeposits(userID, projectID string) ([]*Deposit, error) {
	deposits, err := s.db.ListDeposits(userID)
	if err != nil {
		return nil, fmt.Errorf("listing deposits: %w", err)
	}
	if projectID == "" {
		return deposits, nil
	}
	filtered := make([]*Deposit, 0, len(deposits))
	for _, d := range deposits {
		if d.ProjectID == projectID {
			filtered = append(filtered, d)
		}
	}
	return filtered, nil
}

// UpdateDeposit edits a deposit; omitted fields stay untouched
func (s *Service) UpdateDeposit(userID, id string, payload *DepositUpdatePayload) (*Deposit, error) {
	deposit, err := s.GetDeposit(userID, id)
	if err != nil {
		return nil, err
	}

	if payload.Date != nil {
		date, err := time.Parse("2006-01-02", *payload.Date)
		if err != nil {
			return nil, fmt.Errorf("date must be YYYY-MM-DD")
		}
		deposit.Date = date
	}
	if payload.Amount != nil {
		if *payload.Amount <= 0 {
			return nil, fmt.Errorf("amount must be positive")
		}
		deposit.Amount = *payload.Amount
	}
	if payload.Source != nil {
		if strings.TrimSpace(*payload.Source) == "" {
			return nil, fmt.Errorf("source is required")
		}
		deposit.Source = *payload.Source
	}
	if payload.ProjectID != nil {
		deposit.ProjectID = *payload.ProjectID
	}
	if payload.Description != nil {
		deposit.Description = *payload.Description
	}
	if payload.Currency != nil {
		deposit.Currency = *payload.Currency
	}
	if payload.IncomeCategory != nil {
		deposit.IncomeCategory = *payload.IncomeCategory
	}
	if payload.Notes != nil {
		deposit.Notes = *payload.Notes
	}
	deposit.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveDeposit(deposit); err != nil {
		return nil, fmt.Errorf("saving deposit: %w", err)
	}
	return deposit, nil
}

// DeleteDeposit removes a deposit
func (s *Service) DeleteDeposit(userID, id string) error {
	if _, err := s.GetDeposit(userID, id); err != nil {
		return err
	}
	return s.db.DeleteDeposit(id)
}

// RecurringRulePayload is the input for creating a recurring rule
type RecurringRulePayload struct {
	Frequency RecurringFrequency `json:"frequency"`
	Interval  int                `json:"interval"`
	StartDate string             `json:"startDate"` // YYYY-MM-DD
	EndDate   string             `json:"endDate"`
	IsActive  *bool              `json:"isActive"`

	ProjectID     string  `json:"projectId"`
	Vendor        string  `json:"vendor"`
	Description   string  `json:"description"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	CategoryID    string  `json:"categoryId"`
	TaxCategoryID string  `json:"taxCategoryId"`
	PaymentMethod string  `json:"paymentMethod"`
	Notes         string  `json:"notes"`
}

func validFrequency(f RecurringFrequency) bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly,
		FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return true
	}
	return false
}

func (p *RecurringRulePayload) validate() (time.Time, *time.Time, error) {
	if !validFrequency(p.Frequency) {
		return time.Time{}, nil, fmt.Errorf("frequency must be daily, weekly, biweekly, monthly, quarterly, or yearly")
	}
	if p.Interval < 0 {
		return time.Time{}, nil, fmt.Errorf("interval must be positive")
	}
	if p.ProjectID == "" {
		return time.Time{}, nil, fmt.Errorf("projectId is required")
	}
	if strings.TrimSpace(p.Vendor) == "" {
		return time.Time{}, nil, fmt.Errorf("vendor is required")
	}
	if p.Amount <= 0 {
		return time.Time{}, nil, fmt.Errorf("amount must be positive")
	}
	start, err := time.Parse("2006-01-02", p.StartDate)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("startDate must be YYYY-MM-DD")
	}
	var end *time.Time
	if p.EndDate != "" {
		parsed, err := time.Parse("2006-01-02", p.EndDate)
		if err != nil {
			return time.Time{}, nil, fmt.Errorf("endDate must be YYYY-MM-DD")
		}
		if parsed.Before(start) {
			return time.Time{}, nil, fmt.Errorf("endDate must not precede startDate")
		}
		end = &parsed
	}
	return start, end, nil
}

// CreateRecurringRule persists a rule. The first occurrence falls on the
// start date itself.
func (s *Service) CreateRecurringRule(userID string, payload *RecurringRulePayload) (*RecurringRule, error) {
	start, end, err := payload.validate()
	if err != nil {
		return nil, err
	}

	now := s.timeSource.Now()
	interval := payload.Interval
	if interval < 1 {
		interval = 1
	}
	currency := payload.Currency
	if currency == "" {
		currency = "USD"
	}
	active := true
	if payload.IsActive != nil {
		active = *payload.IsActive
	}

	rule := &RecurringRule{
		ID:            s.idGenerator.Generate(),
		UserID:        userID,
		Frequency:     payload.Frequency,
		Interval:      interval,
		StartDate:     start,
		EndDate:       end,
		IsActive:      active,
		NextDate:      start,
		ProjectID:     payload.ProjectID,
		Vendor:        payload.Vendor,
		Description:   payload.Description,
		Amount:        payload.Amount,
		Currency:      currency,
		CategoryID:    payload.CategoryID,
		TaxCategoryID: payload.TaxCategoryID,
		PaymentMethod: payload.PaymentMethod,
		Notes:         payload.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.db.SaveRecurringRule(rule); err != nil {
		return nil, fmt.Errorf("saving recurring rule: %w", err)
	}
	return rule, nil
}

// GetRecurringRule retrieves a rule, scoped to its owner
func (s *Service) GetRecurringRule(userID, id string) (*RecurringRule, error) {
	rule, err := s.db.GetRecurringRule(id)
	if err != nil {
		return nil, err
	}
	if rule.UserID != userID {
		return nil, ErrNotFound
	}
	return rule, nil
}

// ListRecurringRules returns a user's recurring rules
func (s *Service) ListRecurringRules(userID string) ([]*RecurringRule, error) {
	rules, err := s.db.ListRecurringRules(userID)
	if err != nil {
		return nil, fmt.Errorf("listing recurring rules: %w", err)
	}
	return rules, nil
}

// UpdateRecurringRule replaces a rule's schedule and template. A start date
// change resets NextDate so the new schedule takes over cleanly.
func (s *Service) UpdateRecurringRule(userID, id string, payload *RecurringRulePayload) (*RecurringRule, error) {
	rule, err := s.GetRecurringRule(userID, id)
	if err != nil {
		return nil, err
	}

	start, end, err := payload.validate()
	if err != nil {
		return nil, err
	}

	interval := payload.Interval
	if interval < 1 {
		interval = 1
	}

	if !start.Equal(rule.StartDate) {
		rule.NextDate = start
	}
	rule.Frequency = payload.Frequency
	rule.Interval = interval
	rule.StartDate = start
	rule.EndDate = end
	if payload.IsActive != nil {
		rule.IsActive = *payload.IsActive
	}
	rule.ProjectID = payload.ProjectID
	rule.Vendor = payload.Vendor
	rule.Description = payload.Description
	rule.Amount = payload.Amount
	if payload.Currency != "" {
		rule.Currency = payload.Currency
	}
	rule.CategoryID = payload.CategoryID
	rule.TaxCategoryID = payload.TaxCategoryID
	rule.PaymentMethod = payload.PaymentMethod
	rule.Notes = payload.Notes
	rule.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveRecurringRule(rule); err != nil {
		return nil, fmt.Errorf("saving recurring rule: %w", err)
	}
	return rule, nil
}

// DeleteRecurringRule removes a rule. Expenses it already produced stay.
func (s *Service) DeleteRecurringRule(userID, id string) error {
	if _, err := s.GetRecurringRule(userID, id); err != nil {
		return err
	}
	return s.db.DeleteRecurringRule(id)
}

// RunRecurringRules materializes every due occurrence of the user's active
// rules into expenses, catching up when occurrences were missed. Each rule's
// NextDate advances past the occurrences produced, so running twice creates
// nothing new.
func (s *Service) RunRecurringRules(userID string) ([]*Expense, error) {
	rules, err := s.db.ListRecurringRules(userID)
	if err != nil {
		return nil, fmt.Errorf("listing recurring rules: %w", err)
	}

	now := s.timeSource.Now()
	created := make([]*Expense, 0)

	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}

		produced := false
		for !rule.NextDate.After(now) {
			if rule.EndDate != nil && rule.NextDate.After(*rule.EndDate) {
				break
			}

			expense := &Expense{
				ID:                  s.idGenerator.Generate(),
				UserID:              userID,
				ProjectID:           rule.ProjectID,
				Vendor:              rule.Vendor,
				Description:         rule.Description,
				Amount:              rule.Amount,
				Currency:            rule.Currency,
				Date:                rule.NextDate,
				CategoryID:          rule.CategoryID,
				TaxCategoryID:       rule.TaxCategoryID,
				PaymentMethod:       rule.PaymentMethod,
				Notes:               rule.Notes,
				ReimbursementStatus: ReimbursementNone,
				Source:              SourceRecurring,
				CreatedAt:           now,
				UpdatedAt:           now,
			}
			if err := s.db.SaveExpense(expense); err != nil {
				return created, fmt.Errorf("saving recurring expense: %w", err)
			}
			created = append(created, expense)

			rule.NextDate = rule.nextAfter(rule.NextDate)
			produced = true
		}

		if produced {
			runAt := now
			rule.LastRunAt = &runAt
			rule.UpdatedAt = now
			if err := s.db.SaveRecurringRule(rule); err != nil {
				return created, fmt.Errorf("saving recurring rule: %w", err)
			}
		}
	}

	return created, nil
}

// Stats is the account-level aggregate view
type Stats struct {
	Projects       int     `json:"projects"`
	Expenses       int     `json:"expenses"`
	Deposits       int     `json:"deposits"`
	Receipts       int     `json:"receipts"`
	MileageEntries int     `json:"mileageEntries"`
	TotalExpenses  float64 `json:"totalExpenses"`
	TotalDeposits  float64 `json:"totalDeposits"`
	NetCashFlow    float64 `json:"netCashFlow"`
}

// GetStats counts a user's records and totals money in and out
func (s *Service) GetStats(userID string) (*Stats, error) {
	projects, err := s.db.ListProjects(userID)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	expenses, err := s.db.ListExpenses(userID)
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}
	deposits, err := s.db.ListDeposits(userID)
	if err != nil {
		return nil, fmt.Errorf("listing deposits: %w", err)
	}
	receipts, err := s.db.ListReceipts(userID)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	mileage, err := s.db.ListMileageEntries(userID)
	if err != nil {
		return nil, fmt.Errorf("listing mileage entries: %w", err)
	}

	stats := &Stats{
		Projects:       len(projects),
		Expenses:       len(expenses),
		Deposits:       len(deposits),
		Receipts:       len(receipts),
		MileageEntries: len(mileage),
	}
	for _, e := range expenses {
		stats.TotalExpenses += e.Amount
	}
	for _, d := range deposits {
		stats.TotalDeposits += d.Amount
	}
	stats.NetCashFlow = stats.TotalDeposits - stats.TotalExpenses
	return stats, nil
}
