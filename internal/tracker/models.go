package tracker

import (
	"time"

	"expense-tracker/internal/extraction"
)

// ProcessingStatus tracks a receipt through the extraction pipeline
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// ExpenseSource records how an expense entered the system
type ExpenseSource string

const (
	SourceManual      ExpenseSource = "manual"
	SourceReceiptScan ExpenseSource = "receipt_scan"
	SourceImport      ExpenseSource = "import"
	SourceRecurring   ExpenseSource = "recurring"
)

// ReimbursementStatus tracks the reimbursement sub-state of an expense
type ReimbursementStatus string

const (
	ReimbursementNone      ReimbursementStatus = "none"
	ReimbursementPending   ReimbursementStatus = "pending"
	ReimbursementSubmitted ReimbursementStatus = "submitted"
	ReimbursementApproved  ReimbursementStatus = "approved"
	ReimbursementPaid      ReimbursementStatus = "paid"
)

// BudgetPeriod determines the date window a budget applies to
type BudgetPeriod string

const (
	PeriodMonthly   BudgetPeriod = "monthly"
	PeriodQuarterly BudgetPeriod = "quarterly"
	PeriodYearly    BudgetPeriod = "yearly"
)

// Receipt represents an uploaded receipt and the data extracted from it.
// The row persists as an audit trail after acceptance; only an explicit
// user delete removes it.
type Receipt struct {
	ID           string `json:"id"`
	UserID       string `json:"userId"`
	FileName     string `json:"fileName"`
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimeType"`
	FileSize     int64  `json:"fileSize"`
	StoragePath  string `json:"storagePath"`

	ProcessingStatus ProcessingStatus `json:"processingStatus"`

	// Extracted fields, each nil until extraction completes and only set
	// when the model could actually read them
	ExtractedVendor   *string               `json:"extractedVendor,omitempty"`
	ExtractedAmount   *float64              `json:"extractedAmount,omitempty"`
	ExtractedDate     *string               `json:"extractedDate,omitempty"` // YYYY-MM-DD
	ExtractedItems    []extraction.LineItem `json:"extractedItems,omitempty"`
	ExtractedCategory *string               `json:"extractedCategory,omitempty"`
	ExtractedSubtotal *float64              `json:"extractedSubtotal,omitempty"`
	ExtractedTax      *float64              `json:"extractedTax,omitempty"`
	ExtractedTip      *float64              `json:"extractedTip,omitempty"`
	ExtractedText     string                `json:"extractedText,omitempty"`

	AIConfidence  *float64 `json:"aiConfidence,omitempty"`
	AIRawResponse string   `json:"aiRawResponse,omitempty"` // opaque, kept for audit

	// Duplicate detection; advisory, not a hard block
	Fingerprint   string `json:"fingerprint,omitempty"`
	IsDuplicate   bool   `json:"isDuplicate"`
	DuplicateOfID string `json:"duplicateOfId,omitempty"`

	// Set once the receipt is accepted into an expense; at most one expense
	// per receipt
	ExpenseID string `json:"expenseId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Reviewable reports whether the receipt is in a state the user can act on
func (r *Receipt) Reviewable() bool {
	return r.ProcessingStatus == StatusCompleted || r.ProcessingStatus == StatusFailed
}

// Expense represents a single expense attributed to a project
type Expense struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	ProjectID   string `json:"projectId"`
	Vendor      string `json:"vendor"`
	Description string `json:"description"`

	Amount   float64   `json:"amount"`
	Currency string    `json:"currency"`
	Date     time.Time `json:"date"`

	CategoryID    string   `json:"categoryId,omitempty"`
	TaxCategoryID string   `json:"taxCategoryId,omitempty"`
	TagIDs        []string `json:"tagIds,omitempty"`

	PaymentMethod string `json:"paymentMethod,omitempty"`
	Purchaser     string `json:"purchaser,omitempty"`
	Notes         string `json:"notes,omitempty"`

	IsReimbursable   bool `json:"isReimbursable"`
	IsDeductible     bool `json:"isDeductible"`
	IsCapitalExpense bool `json:"isCapitalExpense"`

	ReimbursementStatus ReimbursementStatus `json:"reimbursementStatus"`
	ReimbursedAmount    *float64            `json:"reimbursedAmount,omitempty"`
	ReimbursedAt        *time.Time          `json:"reimbursedAt,omitempty"`

	Source ExpenseSource `json:"source"`

	// Primary receipt plus all attached receipts (batch accept attaches many)
	ReceiptID  string   `json:"receiptId,omitempty"`
	ReceiptIDs []string `json:"receiptIds,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Deposit records income attributed to a project: rent received, a client
// payment, a security deposit
type Deposit struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	ProjectID      string    `json:"projectId"`
	Source         string    `json:"source"`
	Description    string    `json:"description,omitempty"`
	Amount         float64   `json:"amount"`
	Currency       string    `json:"currency"`
	Date           time.Time `json:"date"`
	IncomeCategory string    `json:"incomeCategory,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// RecurringFrequency is the cadence of a recurring rule
type RecurringFrequency string

const (
	FrequencyDaily     RecurringFrequency = "daily"
	FrequencyWeekly    RecurringFrequency = "weekly"
	FrequencyBiweekly  RecurringFrequency = "biweekly"
	FrequencyMonthly   RecurringFrequency = "monthly"
	FrequencyQuarterly RecurringFrequency = "quarterly"
	FrequencyYearly    RecurringFrequency = "yearly"
)

// RecurringRule generates expenses on a schedule: a monthly insurance
// premium, a quarterly service contract. NextDate is the next occurrence
// still to be materialized; occurrence dates step from StartDate, so the
// rule needs no separate day anchor.
type RecurringRule struct {
	ID        string             `json:"id"`
	UserID    string             `json:"userId"`
	Frequency RecurringFrequency `json:"frequency"`
	Interval  int                `json:"interval"`
	StartDate time.Time          `json:"startDate"`
	EndDate   *time.Time         `json:"endDate,omitempty"`
	IsActive  bool               `json:"isActive"`
	NextDate  time.Time          `json:"nextDate"`
	LastRunAt *time.Time         `json:"lastRunAt,omitempty"`

	// Template for the expenses the rule produces
	ProjectID     string  `json:"projectId"`
	Vendor        string  `json:"vendor"`
	Description   string  `json:"description,omitempty"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	CategoryID    string  `json:"categoryId,omitempty"`
	TaxCategoryID string  `json:"taxCategoryId,omitempty"`
	PaymentMethod string  `json:"paymentMethod,omitempty"`
	Notes         string  `json:"notes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// nextAfter returns the occurrence following from
func (r *RecurringRule) nextAfter(from time.Time) time.Time {
	interval := r.Interval
	if interval < 1 {
		interval = 1
	}
	switch r.Frequency {
	case FrequencyDaily:
		return from.AddDate(0, 0, interval)
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7*interval)
	case FrequencyBiweekly:
		return from.AddDate(0, 0, 14*interval)
	case FrequencyMonthly:
		return from.AddDate(0, interval, 0)
	case FrequencyQuarterly:
		return from.AddDate(0, 3*interval, 0)
	default:
		return from.AddDate(interval, 0, 0)
	}
}

// Project scopes expenses, mileage and budgets. Deletion is archival so
// historical expenses stay attributable.
type Project struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Name       string    `json:"name"`
	Color      string    `json:"color"`
	IsArchived bool      `json:"isArchived"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Category is a user-defined expense label, optionally nested one level
type Category struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	ParentID  string    `json:"parentId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Tag is a flat user-defined label attachable to expenses and mileage
type Tag struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
}

// TaxCategory maps an expense to an IRS schedule line. Seeded once, shared
// across users.
type TaxCategory struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
	Line     string `json:"line"`
}

// MileageEntry records a business trip. Distance is stored already
// round-trip-adjusted; RateUsed is snapshotted at write time and
// Deduction always equals Distance * RateUsed.
type MileageEntry struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	ProjectID     string    `json:"projectId"`
	Date          time.Time `json:"date"`
	StartLocation string    `json:"startLocation"`
	EndLocation   string    `json:"endLocation"`
	Distance      float64   `json:"distance"`
	Purpose       string    `json:"purpose"`
	RoundTrip     bool      `json:"roundTrip"`
	RateUsed      float64   `json:"rateUsed"`
	Deduction     float64   `json:"deduction"`
	TaxDeductible bool      `json:"taxDeductible"`
	Reimbursable  bool      `json:"reimbursable"`
	TagIDs        []string  `json:"tagIds,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Budget is a spending limit. Project and category scopes are both optional;
// both empty means an overall budget. Status is computed on demand, never
// stored.
type Budget struct {
	ID         string       `json:"id"`
	UserID     string       `json:"userId"`
	ProjectID  string       `json:"projectId,omitempty"`
	CategoryID string       `json:"categoryId,omitempty"`
	Amount     float64      `json:"amount"`
	Period     BudgetPeriod `json:"period"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}
