package tracker

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"expense-tracker/internal/extraction"
)

// allowedMimeTypes is the upload whitelist
var allowedMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/heic":      true,
	"image/heif":      true,
	"application/pdf": true,
}

// MaxUploadSize is the largest accepted receipt file (10MB)
const MaxUploadSize = 10 << 20

// IDGenerator generates unique IDs for records
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles expense tracker operations
type Service struct {
	db          DB
	extractor   extraction.Extractor
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, extractor extraction.Extractor, storage Storage) *Service {
	return &Service{
		db:          db,
		extractor:   extractor,
		storage:     storage,
		idGenerator: &uuidGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, extractor extraction.Extractor, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		extractor:   extractor,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// sanitizeFilename cleans up a filename by removing special characters and
// truncating length (phone cameras produce long, messy names)
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")

	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// extForMimeType maps a MIME type to a file extension for captured images
func extForMimeType(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/heic", "image/heif":
		return ".heic"
	case "application/pdf":
		return ".pdf"
	default:
		return ".jpg"
	}
}

// UploadReceipt stores an uploaded receipt file and creates a pending record.
// Extraction does not run here; it is triggered separately.
func (s *Service) UploadReceipt(userID, originalName string, data []byte, contentType string) (*Receipt, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if !allowedMimeTypes[contentType] {
		return nil, fmt.Errorf("invalid file type %q: allowed types are JPEG, PNG, WebP, HEIC, PDF", contentType)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("file is empty")
	}
	if len(data) > MaxUploadSize {
		return nil, fmt.Errorf("file is too large: maximum size is %dMB", MaxUploadSize>>20)
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	fileName := fmt.Sprintf("%s%s", id, filepath.Ext(sanitizeFilename(originalName)))
	savedPath, err := s.storage.Save(filepath.Join(userID, fileName), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	receipt := &Receipt{
		ID:               id,
		UserID:           userID,
		FileName:         fileName,
		OriginalName:     sanitizeFilename(originalName),
		MimeType:         contentType,
		FileSize:         int64(len(data)),
		StoragePath:      savedPath,
		ProcessingStatus: StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.db.SaveReceipt(receipt); err != nil {
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}

	return receipt, nil
}

// CaptureReceipt creates a pending receipt from a base64 camera capture
func (s *Service) CaptureReceipt(userID, image, mimeType string) (*Receipt, error) {
	if image == "" {
		return nil, fmt.Errorf("no image data provided")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	// Strip data URL prefix if present
	if idx := strings.Index(image, ";base64,"); idx != -1 {
		image = image[idx+len(";base64,"):]
	}

	data, err := base64.StdEncoding.DecodeString(image)
	if err != nil {
		return nil, fmt.Errorf("decoding image data: %w", err)
	}

	return s.UploadReceipt(userID, "capture"+extForMimeType(mimeType), data, mimeType)
}

// GetReceipt retrieves a receipt, scoped to its owner
func (s *Service) GetReceipt(userID, id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, err
	}
	if receipt.UserID != userID {
		return nil, ErrNotFound
	}
	return receipt, nil
}

// ListReceipts returns a user's receipts. statusFilter "pending" means
// not yet attached to an expense (the review queue); any other non-empty
// value filters by processing status.
func (s *Service) ListReceipts(userID, statusFilter string) ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts(userID)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}

	if statusFilter == "" {
		return receipts, nil
	}

	filtered := make([]*Receipt, 0, len(receipts))
	for _, r := range receipts {
		if statusFilter == "pending" {
			if r.ExpenseID == "" {
				filtered = append(filtered, r)
			}
		} else if r.ProcessingStatus == ProcessingStatus(statusFilter) {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// GetReceiptFile retrieves the stored file for a receipt
func (s *Service) GetReceiptFile(userID, id string) ([]byte, string, error) {
	receipt, err := s.GetReceipt(userID, id)
	if err != nil {
		return nil, "", err
	}

	data, err := s.storage.Get(receipt.StoragePath)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}

	return data, receipt.MimeType, nil
}

// DeleteReceipt removes a receipt and its file
func (s *Service) DeleteReceipt(userID, id string) error {
	receipt, err := s.GetReceipt(userID, id)
	if err != nil {
		return err
	}

	if err := s.storage.Delete(receipt.StoragePath); err != nil {
		// The file may already be gone; the record still goes
		slog.Warn("Failed to delete receipt file", "path", receipt.StoragePath, "error", err)
	}

	if err := s.db.DeleteReceipt(id); err != nil {
		return fmt.Errorf("deleting receipt from database: %w", err)
	}
	return nil
}

// ProcessReceipt triggers extraction for a receipt and returns immediately.
// The extraction itself runs in the background; callers poll the receipt's
// status until it leaves processing. A receipt already in processing is
// rejected rather than restarted.
func (s *Service) ProcessReceipt(userID, id string) error {
	if _, err := s.GetReceipt(userID, id); err != nil {
		return err
	}

	receipt, err := s.db.MarkReceiptProcessing(id, s.timeSource.Now())
	if err != nil {
		return err
	}

	go s.runExtraction(receipt)
	return nil
}

// runExtraction performs the extraction call and resolves the receipt to a
// terminal state. Duplicate detection and category matching are applied in
// the same write that marks the receipt completed, so a completed receipt
// always carries their results.
func (s *Service) runExtraction(receipt *Receipt) {
	data, err := s.storage.Get(receipt.StoragePath)
	if err != nil {
		s.failReceipt(receipt, fmt.Errorf("reading receipt file: %w", err))
		return
	}

	categories, err := s.db.ListCategories(receipt.UserID)
	if err != nil {
		s.failReceipt(receipt, fmt.Errorf("listing categories: %w", err))
		return
	}
	categoryNames := make([]string, 0, len(categories))
	for _, c := range categories {
		categoryNames = append(categoryNames, c.Name)
	}

	result, err := s.extractor.ExtractReceipt(data, receipt.MimeType, categoryNames)
	if err != nil {
		s.failReceipt(receipt, err)
		return
	}

	s.completeExtraction(receipt, result, categoryNames)
}

// failReceipt moves a receipt to the failed state. Failure is recoverable:
// the user can trigger processing again.
func (s *Service) failReceipt(receipt *Receipt, cause error) {
	slog.Error("Receipt extraction failed",
		"receipt_id", receipt.ID,
		"mime_type", receipt.MimeType,
		"error", cause,
	)

	receipt.ProcessingStatus = StatusFailed
	receipt.UpdatedAt = s.timeSource.Now()
	if err := s.db.FinishReceiptProcessing(receipt); err != nil {
		if errors.Is(err, ErrNotFound) {
			slog.Info("Receipt deleted during extraction, dropping result", "receipt_id", receipt.ID)
			return
		}
		slog.Error("Failed to mark receipt failed", "receipt_id", receipt.ID, "error", err)
	}
}

// completeExtraction applies extraction results, duplicate resolution and
// category matching, then persists the receipt as completed
func (s *Service) completeExtraction(receipt *Receipt, result *extraction.Result, categoryNames []string) {
	receipt.ExtractedVendor = result.Vendor
	receipt.ExtractedAmount = result.Amount
	receipt.ExtractedDate = result.Date
	receipt.ExtractedItems = result.Items
	receipt.ExtractedSubtotal = result.Subtotal
	receipt.ExtractedTax = result.Tax
	receipt.ExtractedTip = result.Tip
	receipt.ExtractedText = result.RawText
	receipt.ExtractedCategory = matchCategory(result.Category, categoryNames)

	confidence := result.Confidence
	receipt.AIConfidence = &confidence
	receipt.AIRawResponse = rawResponseJSON(result)

	// Duplicate detection only runs when all fingerprint inputs are present
	if result.Vendor != nil && result.Amount != nil && result.Date != nil {
		receipt.Fingerprint = Fingerprint(*result.Vendor, *result.Amount, *result.Date)

		existing, err := s.db.FindReceiptByFingerprint(receipt.UserID, receipt.Fingerprint, receipt.ID)
		if err != nil {
			slog.Error("Duplicate lookup failed", "receipt_id", receipt.ID, "error", err)
		} else if existing != nil {
			receipt.IsDuplicate = true
			receipt.DuplicateOfID = existing.ID
		}
	}

	receipt.ProcessingStatus = StatusCompleted
	receipt.UpdatedAt = s.timeSource.Now()
	if err := s.db.FinishReceiptProcessing(receipt); err != nil {
		if errors.Is(err, ErrNotFound) {
			slog.Info("Receipt deleted during extraction, dropping result", "receipt_id", receipt.ID)
			return
		}
		slog.Error("Failed to save completed receipt", "receipt_id", receipt.ID, "error", err)
	}
}

// matchCategory replaces the model's free-text category guess with the
// user's canonical category name on a case-insensitive exact match. On a
// miss the raw guess is preserved for display.
func matchCategory(guess *string, categoryNames []string) *string {
	if guess == nil {
		return nil
	}
	lower := strings.ToLower(*guess)
	for _, name := range categoryNames {
		if strings.ToLower(name) == lower {
			canonical := name
			return &canonical
		}
	}
	return guess
}

// rawResponseJSON re-serializes the extraction result for the audit trail
func rawResponseJSON(result *extraction.Result) string {
	data, err := json.Marshal(result)
	if err != nil {
		return ""
	}
	return string(data)
}

// ExpensePayload is the confirmed expense data supplied when accepting
// receipts or creating an expense manually
type ExpensePayload struct {
	ProjectID      string   `json:"projectId"`
	Vendor         string   `json:"vendor"`
	Description    string   `json:"description"`
	Amount         float64  `json:"amount"`
	Currency       string   `json:"currency"`
	Date           string   `json:"date"` // YYYY-MM-DD
	CategoryID     string   `json:"categoryId"`
	TaxCategoryID  string   `json:"taxCategoryId"`
	TagIDs         []string `json:"tagIds"`
	PaymentMethod  string   `json:"paymentMethod"`
	Purchaser      string   `json:"purchaser"`
	Notes          string   `json:"notes"`
	IsReimbursable bool     `json:"isReimbursable"`
	IsDeductible   bool     `json:"isDeductible"`
}

// validate checks the required fields shared by all expense creation paths
func (p *ExpensePayload) validate() (time.Time, error) {
	if p.ProjectID == "" {
		return time.Time{}, fmt.Errorf("projectId is required")
	}
	if strings.TrimSpace(p.Vendor) == "" {
		return time.Time{}, fmt.Errorf("vendor is required")
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

// buildExpense constructs an expense row from a payload
func (s *Service) buildExpense(userID string, payload *ExpensePayload, date time.Time, source ExpenseSource) *Expense {
	now := s.timeSource.Now()
	currency := payload.Currency
	if currency == "" {
		currency = "USD"
	}
	return &Expense{
		ID:                  s.idGenerator.Generate(),
		UserID:              userID,
		ProjectID:           payload.ProjectID,
		Vendor:              payload.Vendor,
		Description:         payload.Description,
		Amount:              payload.Amount,
		Currency:            currency,
		Date:                date,
		CategoryID:          payload.CategoryID,
		TaxCategoryID:       payload.TaxCategoryID,
		TagIDs:              payload.TagIDs,
		PaymentMethod:       payload.PaymentMethod,
		Purchaser:           payload.Purchaser,
		Notes:               payload.Notes,
		IsReimbursable:      payload.IsReimbursable,
		IsDeductible:        payload.IsDeductible,
		ReimbursementStatus: ReimbursementNone,
		Source:              source,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// AcceptReceipt turns one reviewed receipt into an expense. The receipt must
// have finished processing and must not already belong to an expense.
func (s *Service) AcceptReceipt(userID, receiptID string, payload *ExpensePayload) (*Expense, error) {
	receipt, err := s.GetReceipt(userID, receiptID)
	if err != nil {
		return nil, err
	}
	if !receipt.Reviewable() {
		return nil, ErrReceiptNotReviewable
	}
	if receipt.ExpenseID != "" {
		return nil, ErrReceiptAttached
	}

	date, err := payload.validate()
	if err != nil {
		return nil, err
	}

	expense := s.buildExpense(userID, payload, date, SourceReceiptScan)
	expense.Confidence = receipt.AIConfidence

	if err := s.db.CreateExpenseWithReceipts(expense, []string{receiptID}, s.timeSource.Now()); err != nil {
		return nil, err
	}

	return expense, nil
}

// AcceptReceiptBatch turns many reviewed receipts into exactly one expense
// (e.g. an itemized receipt plus the card slip for the same purchase). The
// whole batch is validated and attached atomically: if any receipt is
// missing, unowned, or already attached, no expense is created.
func (s *Service) AcceptReceiptBatch(userID string, receiptIDs []string, payload *ExpensePayload) (*Expense, error) {
	if len(receiptIDs) == 0 {
		return nil, fmt.Errorf("at least one receipt is required")
	}

	// Pre-validate for early errors; CreateExpenseWithReceipts re-checks
	// atomically so a racing accept cannot slip through.
	var firstConfidence *float64
	seen := make(map[string]bool, len(receiptIDs))
	for i, id := range receiptIDs {
		if seen[id] {
			return nil, fmt.Errorf("receipt %s listed more than once", id)
		}
		seen[id] = true
		receipt, err := s.GetReceipt(userID, id)
		if err != nil {
			return nil, err
		}
		if receipt.ExpenseID != "" {
			return nil, ErrReceiptAttached
		}
		if i == 0 {
			firstConfidence = receipt.AIConfidence
		}
	}

	date, err := payload.validate()
	if err != nil {
		return nil, err
	}

	expense := s.buildExpense(userID, payload, date, SourceReceiptScan)
	expense.Confidence = firstConfidence

	if err := s.db.CreateExpenseWithReceipts(expense, receiptIDs, s.timeSource.Now()); err != nil {
		return nil, err
	}

	return expense, nil
}
