package tracker

import (
	"fmt"
	"strings"
	"time"
)

// MileagePayload is the input for creating a mileage entry. Distance is the
// raw one-way distance; round trips are doubled at write time.
type MileagePayload struct {
	Date          string   `json:"date"` // YYYY-MM-DD
	StartLocation string   `json:"startLocation"`
	EndLocation   string   `json:"endLocation"`
	Distance      float64  `json:"distance"`
	Purpose       string   `json:"purpose"`
	ProjectID     string   `json:"projectId"`
	RoundTrip     bool     `json:"roundTrip"`
	TaxDeductible *bool    `json:"taxDeductible"`
	Reimbursable  bool     `json:"reimbursable"`
	TagIDs        []string `json:"tagIds"`
	Notes         string   `json:"notes"`
}

// MileageUpdatePayload uses pointers so omitted fields stay untouched
type MileageUpdatePayload struct {
	Date          *string  `json:"date"`
	StartLocation *string  `json:"startLocation"`
	EndLocation   *string  `json:"endLocation"`
	Distance      *float64 `json:"distance"`
	Purpose       *string  `json:"purpose"`
	ProjectID     *string  `json:"projectId"`
	RoundTrip     *bool    `json:"roundTrip"`
	TaxDeductible *bool    `json:"taxDeductible"`
	Reimbursable  *bool    `json:"reimbursable"`
	TagIDs        []string `json:"tagIds"`
	Notes         *string  `json:"notes"`
}

// MileageSummary aggregates a year's mileage
type MileageSummary struct {
	Year           int     `json:"year"`
	TotalMiles     float64 `json:"totalMiles"`
	TotalDeduction float64 `json:"totalDeduction"`
	TripCount      int     `json:"tripCount"`
	RateUsed       float64 `json:"rateUsed"`
}

// CreateMileageEntry values and persists a trip. The IRS rate is resolved
// for the entry's year and snapshotted; deduction always equals the stored
// distance times that rate.
func (s *Service) CreateMileageEntry(userID string, payload *MileagePayload) (*MileageEntry, error) {
	if payload.StartLocation == "" || payload.EndLocation == "" {
		return nil, fmt.Errorf("startLocation and endLocation are required")
	}
	if payload.Distance <= 0 {
		return nil, fmt.Errorf("distance must be positive")
	}
	if strings.TrimSpace(payload.Purpose) == "" {
		return nil, fmt.Errorf("purpose is required")
	}
	if payload.ProjectID == "" {
		return nil, fmt.Errorf("projectId is required")
	}
	date, err := time.Parse("2006-01-02", payload.Date)
	if err != nil {
		return nil, fmt.Errorf("date must be YYYY-MM-DD")
	}

	now := s.timeSource.Now()
	distance := TripDistance(payload.Distance, payload.RoundTrip)
	rate := ResolveRate(date.Year())

	taxDeductible := true
	if payload.TaxDeductible != nil {
		taxDeductible = *payload.TaxDeductible
	}

	entry := &MileageEntry{
		ID:            s.idGenerator.Generate(),
		UserID:        userID,
		ProjectID:     payload.ProjectID,
		Date:          date,
		StartLocation: payload.StartLocation,
		EndLocation:   payload.EndLocation,
		Distance:      distance,
		Purpose:       payload.Purpose,
		RoundTrip:     payload.RoundTrip,
		RateUsed:      rate,
		Deduction:     distance * rate,
		TaxDeductible: taxDeductible,
		Reimbursable:  payload.Reimbursable,
		TagIDs:        payload.TagIDs,
		Notes:         payload.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.db.SaveMileageEntry(entry); err != nil {
		return nil, fmt.Errorf("saving mileage entry: %w", err)
	}
	return entry, nil
}

// GetMileageEntry retrieves a mileage entry, scoped to its owner
func (s *Service) GetMileageEntry(userID, id string) (*MileageEntry, error) {
	entry, err := s.db.GetMileageEntry(id)
	if err != nil {
		return nil, err
	}
	if entry.UserID != userID {
		return nil, ErrNotFound
	}
	return entry, nil
}

// ListMileageEntries returns a user's mileage entries, optionally limited to
// one year (0 means all)
func (s *Service) ListMileageEntries(userID string, year int) ([]*MileageEntry, error) {
	entries, err := s.db.ListMileageEntries(userID)
	if err != nil {
		return nil, fmt.Errorf("listing mileage entries: %w", err)
	}
	if year == 0 {
		return entries, nil
	}
	filtered := make([]*MileageEntry, 0, len(entries))
	for _, e := range entries {
		if e.Date.Year() == year {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

// UpdateMileageEntry edits a trip. A date change re-resolves the rate for
// the new year; a distance or round-trip change reuses the snapshotted rate.
// The rate is never silently revised by an edit that does not touch the date.
func (s *Service) UpdateMileageEntry(userID, id string, payload *MileageUpdatePayload) (*MileageEntry, error) {
	entry, err := s.GetMileageEntry(userID, id)
	if err != nil {
		return nil, err
	}

	if payload.Date != nil {
		date, err := time.Parse("2006-01-02", *payload.Date)
		if err != nil {
			return nil, fmt.Errorf("date must be YYYY-MM-DD")
		}
		entry.Date = date
		entry.RateUsed = ResolveRate(date.Year())
	}

	if payload.Distance != nil || payload.RoundTrip != nil {
		roundTrip := entry.RoundTrip
		if payload.RoundTrip != nil {
			roundTrip = *payload.RoundTrip
		}
		oneWay := entry.Distance
		if entry.RoundTrip {
			oneWay = entry.Distance / 2
		}
		if payload.Distance != nil {
			if *payload.Distance <= 0 {
				return nil, fmt.Errorf("distance must be positive")
			}
			oneWay = *payload.Distance
		}
		entry.Distance = TripDistance(oneWay, roundTrip)
		entry.RoundTrip = roundTrip
	}

	if payload.StartLocation != nil {
		entry.StartLocation = *payload.StartLocation
	}
	if payload.EndLocation != nil {
		entry.EndLocation = *payload.EndLocation
	}
	if payload.Purpose != nil {
		entry.Purpose = *payload.Purpose
	}
	if payload.ProjectID != nil {
		entry.ProjectID = *payload.ProjectID
	}
	if payload.TaxDeductible != nil {
		entry.TaxDeductible = *payload.TaxDeductible
	}
	if payload.Reimbursable != nil {
		entry.Reimbursable = *payload.Reimbursable
	}
	if payload.TagIDs != nil {
		entry.TagIDs = payload.TagIDs
	}
	if payload.Notes != nil {
		entry.Notes = *payload.Notes
	}

	entry.Deduction = entry.Distance * entry.RateUsed
	entry.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveMileageEntry(entry); err != nil {
		return nil, fmt.Errorf("saving mileage entry: %w", err)
	}
	return entry, nil
}

// DeleteMileageEntry removes a mileage entry
func (s *Service) DeleteMileageEntry(userID, id string) error {
	if _, err := s.GetMileageEntry(userID, id); err != nil {
		return err
	}
	return s.db.DeleteMileageEntry(id)
}

// SummarizeMileage totals a year's trips
func (s *Service) SummarizeMileage(userID string, year int) (*MileageSummary, error) {
	entries, err := s.ListMileageEntries(userID, year)
	if err != nil {
		return nil, err
	}

	summary := &MileageSummary{
		Year:     year,
		RateUsed: ResolveRate(year),
	}
	for _, e := range entries {
		summary.TotalMiles += e.Distance
		summary.TotalDeduction += e.Deduction
		summary.TripCount++
	}
	return summary, nil
}

// BudgetPayload is the input for creating or updating a budget
type BudgetPayload struct {
	ProjectID  string       `json:"projectId"`
	CategoryID string       `json:"categoryId"`
	Amount     float64      `json:"amount"`
	Period     BudgetPeriod `json:"period"`
}

func (p *BudgetPayload) validate() error {
	if p.Amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	switch p.Period {
	case PeriodMonthly, PeriodQuarterly, PeriodYearly:
		return nil
	default:
		return fmt.Errorf("period must be monthly, quarterly, or yearly")
	}
}

// CreateBudget persists a budget rule
func (s *Service) CreateBudget(userID string, payload *BudgetPayload) (*Budget, error) {
	if err := payload.validate(); err != nil {
		return nil, err
	}

	now := s.timeSource.Now()
	budget := &Budget{
		ID:         s.idGenerator.Generate(),
		UserID:     userID,
		ProjectID:  payload.ProjectID,
		CategoryID: payload.CategoryID,
		Amount:     payload.Amount,
		Period:     payload.Period,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.db.SaveBudget(budget); err != nil {
		return nil, fmt.Errorf("saving budget: %w", err)
	}
	return budget, nil
}

// GetBudget retrieves a budget, scoped to its owner
func (s *Service) GetBudget(userID, id string) (*Budget, error) {
	budget, err := s.db.GetBudget(id)
	if err != nil {
		return nil, err
	}
	if budget.UserID != userID {
		return nil, ErrNotFound
	}
	return budget, nil
}

// ListBudgets returns a user's budget rules
func (s *Service) ListBudgets(userID string) ([]*Budget, error) {
	budgets, err := s.db.ListBudgets(userID)
	if err != nil {
		return nil, fmt.Errorf("listing budgets: %w", err)
	}
	return budgets, nil
}

// UpdateBudget edits a budget's amount and period
func (s *Service) UpdateBudget(userID, id string, payload *BudgetPayload) (*Budget, error) {
	budget, err := s.db.GetBudget(id)
	if err != nil {
		return nil, err
	}
	if budget.UserID != userID {
		return nil, ErrNotFound
	}
	if err := payload.validate(); err != nil {
		return nil, err
	}

	budget.Amount = payload.Amount
	budget.Period = payload.Period
	budget.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveBudget(budget); err != nil {
		return nil, fmt.Errorf("saving budget: %w", err)
	}
	return budget, nil
}

// DeleteBudget removes a budget rule
func (s *Service) DeleteBudget(userID, id string) error {
	budget, err := s.db.GetBudget(id)
	if err != nil {
		return err
	}
	if budget.UserID != userID {
		return ErrNotFound
	}
	return s.db.DeleteBudget(id)
}

// BudgetStatusReport computes actual spend against every budget rule for a
// reporting (year, month). Nothing is stored; this is a pure read-time
// computation.
func (s *Service) BudgetStatusReport(userID string, year, month int) ([]BudgetStatus, error) {
	budgets, err := s.db.ListBudgets(userID)
	if err != nil {
		return nil, fmt.Errorf("listing budgets: %w", err)
	}
	expenses, err := s.db.ListExpenses(userID)
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}

	statuses := make([]BudgetStatus, 0, len(budgets))
	for _, budget := range budgets {
		start, end := PeriodWindow(budget.Period, year, month)

		actual := 0.0
		for _, e := range expenses {
			if e.Date.Before(start) || e.Date.After(end) {
				continue
			}
			if budget.ProjectID != "" && e.ProjectID != budget.ProjectID {
				continue
			}
			if budget.CategoryID != "" && e.CategoryID != budget.CategoryID {
				continue
			}
			actual += e.Amount
		}

		statuses = append(statuses, EvaluateBudget(budget, actual))
	}
	return statuses, nil
}

// ProjectPayload is the input for creating or updating a project
type ProjectPayload struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// CreateProject persists a project
func (s *Service) CreateProject(userID string, payload *ProjectPayload) (*Project, error) {
	if strings.TrimSpace(payload.Name) == "" {
		return nil, fmt.Errorf("name is required")
	}

	now := s.timeSource.Now()
	project := &Project{
		ID:        s.idGenerator.Generate(),
		UserID:    userID,
		Name:      payload.Name,
		Color:     payload.Color,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.db.SaveProject(project); err != nil {
		return nil, fmt.Errorf("saving project: %w", err)
	}
	return project, nil
}

// GetProject retrieves a project, scoped to its owner
func (s *Service) GetProject(userID, id string) (*Project, error) {
	project, err := s.db.GetProject(id)
	if err != nil {
		return nil, err
	}
	if project.UserID != userID {
		return nil, ErrNotFound
	}
	return project, nil
}

// ListProjects returns a user's projects, archived ones included
func (s *Service) ListProjects(userID string) ([]*Project, error) {
	projects, err := s.db.ListProjects(userID)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return projects, nil
}

// UpdateProject edits a project's name and color
func (s *Service) UpdateProject(userID, id string, payload *ProjectPayload) (*Project, error) {
	project, err := s.GetProject(userID, id)
	if err != nil {
		return nil, err
	}
	if payload.Name != "" {
		project.Name = payload.Name
	}
	if payload.Color != "" {
		project.Color = payload.Color
	}
	project.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveProject(project); err != nil {
		return nil, fmt.Errorf("saving project: %w", err)
	}
	return project, nil
}

// ArchiveProject soft-deletes a project. Historical expenses stay
// attributable; there is no physical removal.
func (s *Service) ArchiveProject(userID, id string) (*Project, error) {
	project, err := s.GetProject(userID, id)
	if err != nil {
		return nil, err
	}
	project.IsArchived = true
	project.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveProject(project); err != nil {
		return nil, fmt.Errorf("saving project: %w", err)
	}
	return project, nil
}

// CategoryPayload is the input for creating or updating a category
type CategoryPayload struct {
	Name     string `json:"name"`
	Color    string `json:"color"`
	ParentID string `json:"parentId"`
}

// CreateCategory persists a category
func (s *Service) CreateCategory(userID string, payload *CategoryPayload) (*Category, error) {
	if strings.TrimSpace(payload.Name) == "" {
		return nil, fmt.Errorf("name is required")
	}

	now := s.timeSource.Now()
	category := &Category{
		ID:        s.idGenerator.Generate(),
		UserID:    userID,
		Name:      payload.Name,
		Color:     payload.Color,
		ParentID:  payload.ParentID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.db.SaveCategory(category); err != nil {
		return nil, fmt.Errorf("saving category: %w", err)
	}
	return category, nil
}

// ListCategories returns a user's categories
func (s *Service) ListCategories(userID string) ([]*Category, error) {
	categories, err := s.db.ListCategories(userID)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return categories, nil
}

// UpdateCategory edits a category
func (s *Service) UpdateCategory(userID, id string, payload *CategoryPayload) (*Category, error) {
	category, err := s.db.GetCategory(id)
	if err != nil {
		return nil, err
	}
	if category.UserID != userID {
		return nil, ErrNotFound
	}

	if payload.Name != "" {
		category.Name = payload.Name
	}
	if payload.Color != "" {
		category.Color = payload.Color
	}
	category.ParentID = payload.ParentID
	category.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveCategory(category); err != nil {
		return nil, fmt.Errorf("saving category: %w", err)
	}
	return category, nil
}

// DeleteCategory removes a category; expenses referencing it keep their rows
// with the category unset
func (s *Service) DeleteCategory(userID, id string) error {
	category, err := s.db.GetCategory(id)
	if err != nil {
		return err
	}
	if category.UserID != userID {
		return ErrNotFound
	}
	return s.db.DeleteCategory(id)
}

// TagPayload is the input for creating a tag
type TagPayload struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// CreateTag persists a tag
func (s *Service) CreateTag(userID string, payload *TagPayload) (*Tag, error) {
	if strings.TrimSpace(payload.Name) == "" {
		return nil, fmt.Errorf("name is required")
	}

	tag := &Tag{
		ID:        s.idGenerator.Generate(),
		UserID:    userID,
		Name:      payload.Name,
		Color:     payload.Color,
		CreatedAt: s.timeSource.Now(),
	}

	if err := s.db.SaveTag(tag); err != nil {
		return nil, fmt.Errorf("saving tag: %w", err)
	}
	return tag, nil
}

// ListTags returns a user's tags
func (s *Service) ListTags(userID string) ([]*Tag, error) {
	tags, err := s.db.ListTags(userID)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return tags, nil
}

// DeleteTag removes a tag and detaches it everywhere
func (s *Service) DeleteTag(userID, id string) error {
	tag, err := s.db.GetTag(id)
	if err != nil {
		return err
	}
	if tag.UserID != userID {
		return ErrNotFound
	}
	return s.db.DeleteTag(id)
}

// ListTaxCategories returns the seeded IRS schedule lines
func (s *Service) ListTaxCategories() ([]*TaxCategory, error) {
	taxCategories, err := s.db.ListTaxCategories()
	if err != nil {
		return nil, fmt.Errorf("listing tax categories: %w", err)
	}
	return taxCategories, nil
}

// CreateExpense persists a manually entered expense
func (s *Service) CreateExpense(userID string, payload *ExpensePayload) (*Expense, error) {
	date, err := payload.validate()
	if err != nil {
		return nil, err
	}

	expense := s.buildExpense(userID, payload, date, SourceManual)
	if err := s.db.SaveExpense(expense); err != nil {
		return nil, fmt.Errorf("saving expense: %w", err)
	}
	return expense, nil
}

// GetExpense retrieves an expense, scoped to its owner
func (s *Service) GetExpense(userID, id string) (*Expense, error) {
	expense, err := s.db.GetExpense(id)
	if err != nil {
		return nil, err
	}
	if expense.UserID != userID {
		return nil, ErrNotFound
	}
	return expense, nil
}

// ExpenseFilter narrows an expense listing
type ExpenseFilter struct {
	ProjectID  string
	CategoryID string
	Year       int
}

// ListExpenses returns a user's expenses matching the filter
func (s *Service) ListExpenses(userID string, filter ExpenseFilter) ([]*Expense, error) {
	expenses, err := s.db.ListExpenses(userID)
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}

	filtered := make([]*Expense, 0, len(expenses))
	for _, e := range expenses {
		if filter.ProjectID != "" && e.ProjectID != filter.ProjectID {
			continue
		}
		if filter.CategoryID != "" && e.CategoryID != filter.CategoryID {
			continue
		}
		if filter.Year != 0 && e.Date.Year() != filter.Year {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered, nil
}

// UpdateExpense replaces an expense's editable fields
func (s *Service) UpdateExpense(userID, id string, payload *ExpensePayload) (*Expense, error) {
	expense, err := s.GetExpense(userID, id)
	if err != nil {
		return nil, err
	}

	date, err := payload.validate()
	if err != nil {
		return nil, err
	}

	expense.ProjectID = payload.ProjectID
	expense.Vendor = payload.Vendor
	expense.Description = payload.Description
	expense.Amount = payload.Amount
	if payload.Currency != "" {
		expense.Currency = payload.Currency
	}
	expense.Date = date
	expense.CategoryID = payload.CategoryID
	expense.TaxCategoryID = payload.TaxCategoryID
	expense.TagIDs = payload.TagIDs
	expense.PaymentMethod = payload.PaymentMethod
	expense.Purchaser = payload.Purchaser
	expense.Notes = payload.Notes
	expense.IsReimbursable = payload.IsReimbursable
	expense.IsDeductible = payload.IsDeductible
	expense.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveExpense(expense); err != nil {
		return nil, fmt.Errorf("saving expense: %w", err)
	}
	return expense, nil
}

// DeleteExpense removes an expense. Attached receipts are kept as an audit
// trail but detached so they can be accepted again.
func (s *Service) DeleteExpense(userID, id string) error {
	expense, err := s.GetExpense(userID, id)
	if err != nil {
		return err
	}

	for _, receiptID := range expense.ReceiptIDs {
		receipt, err := s.db.GetReceipt(receiptID)
		if err != nil {
			continue
		}
		receipt.ExpenseID = ""
		receipt.UpdatedAt = s.timeSource.Now()
		if err := s.db.SaveReceipt(receipt); err != nil {
			return fmt.Errorf("detaching receipt %s: %w", receiptID, err)
		}
	}

	return s.db.DeleteExpense(id)
}
