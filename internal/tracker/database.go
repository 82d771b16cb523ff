package tracker

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	receiptBucket     = "receipts"
	expenseBucket     = "expenses"
	depositBucket     = "deposits"
	projectBucket     = "projects"
	categoryBucket    = "categories"
	tagBucket         = "tags"
	taxCategoryBucket = "tax_categories"
	mileageBucket     = "mileage"
	budgetBucket      = "budgets"
	recurringBucket   = "recurring_rules"
)

var allBuckets = []string{
	receiptBucket, expenseBucket, depositBucket, projectBucket, categoryBucket,
	tagBucket, taxCategoryBucket, mileageBucket, budgetBucket, recurringBucket,
}

// DB defines the interface for database operations
type DB interface {
	// Receipts
	SaveReceipt(receipt *Receipt) error
	GetReceipt(id string) (*Receipt, error)
	ListReceipts(userID string) ([]*Receipt, error)
	DeleteReceipt(id string) error

	// MarkReceiptProcessing transitions a receipt to processing. The check
	// and the write happen in one transaction so two racing triggers cannot
	// both win; the loser gets ErrAlreadyProcessing.
	MarkReceiptProcessing(id string, now time.Time) (*Receipt, error)

	// FinishReceiptProcessing persists a terminal extraction result, but
	// only if the receipt row still exists. A receipt deleted while
	// extraction was in flight stays deleted; the caller gets ErrNotFound.
	FinishReceiptProcessing(receipt *Receipt) error

	// FindReceiptByFingerprint returns the first other receipt owned by
	// userID with an equal fingerprint, or nil when there is none.
	FindReceiptByFingerprint(userID, fingerprint, excludeID string) (*Receipt, error)

	// CreateExpenseWithReceipts persists an expense and attaches every
	// listed receipt to it in a single transaction. If any receipt is
	// missing, owned by someone else, or already attached, nothing is
	// written.
	CreateExpenseWithReceipts(expense *Expense, receiptIDs []string, now time.Time) error

	// Expenses
	SaveExpense(expense *Expense) error
	GetExpense(id string) (*Expense, error)
	ListExpenses(userID string) ([]*Expense, error)
	DeleteExpense(id string) error

	// Deposits
	SaveDeposit(deposit *Deposit) error
	GetDeposit(id string) (*Deposit, error)
	ListDeposits(userID string) ([]*Deposit, error)
	DeleteDeposit(id string) error

	// Recurring rules
	SaveRecurringRule(rule *RecurringRule) error
	GetRecurringRule(id string) (*RecurringRule, error)
	ListRecurringRules(userID string) ([]*RecurringRule, error)
	DeleteRecurringRule(id string) error

	// Projects (never hard-deleted; archive by saving with IsArchived set)
	SaveProject(project *Project) error
	GetProject(id string) (*Project, error)
	ListProjects(userID string) ([]*Project, error)

	// Categories. DeleteCategory clears references from expenses, budgets
	// and child categories rather than cascading.
	SaveCategory(category *Category) error
	GetCategory(id string) (*Category, error)
	ListCategories(userID string) ([]*Category, error)
	DeleteCategory(id string) error

	// Tags. DeleteTag detaches the tag from expenses and mileage entries.
	SaveTag(tag *Tag) error
	GetTag(id string) (*Tag, error)
	ListTags(userID string) ([]*Tag, error)
	DeleteTag(id string) error

	// Tax categories (global, seeded once)
	SaveTaxCategory(taxCategory *TaxCategory) error
	ListTaxCategories() ([]*TaxCategory, error)

	// Mileage
	SaveMileageEntry(entry *MileageEntry) error
	GetMileageEntry(id string) (*MileageEntry, error)
	ListMileageEntries(userID string) ([]*MileageEntry, error)
	DeleteMileageEntry(id string) error

	// Budgets
	SaveBudget(budget *Budget) error
	GetBudget(id string) (*Budget, error)
	ListBudgets(userID string) ([]*Budget, error)
	DeleteBudget(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// putJSON marshals v into the named bucket
func putJSON(tx *bbolt.Tx, bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s record: %w", bucket, err)
	}
	return tx.Bucket([]byte(bucket)).Put([]byte(key), data)
}

// getJSON unmarshals the named record into v, or returns ErrNotFound
func getJSON(tx *bbolt.Tx, bucket, key string, v any) error {
	data := tx.Bucket([]byte(bucket)).Get([]byte(key))
	if data == nil {
		return ErrNotFound
	}
	return json.Unmarshal(data, v)
}

// save is the common single-record upsert path
func (b *BoltDB) save(bucket, key string, v any) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx, bucket, key, v)
	})
}

// get loads a single record into v
func (b *BoltDB) get(bucket, key string, v any) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx, bucket, key, v)
	})
}

// delete removes a single record
func (b *BoltDB) delete(bucket, key string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Delete([]byte(key))
	})
}

// listOwned collects every record in a bucket belonging to userID
func listOwned[T any](b *BoltDB, bucket, userID string, ownerOf func(*T) string) ([]*T, error) {
	records := make([]*T, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucket)).ForEach(func(k, v []byte) error {
			var record T
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("unmarshaling %s record: %w", bucket, err)
			}
			if ownerOf(&record) == userID {
				records = append(records, &record)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// SaveReceipt saves a receipt to the database
func (b *BoltDB) SaveReceipt(receipt *Receipt) error {
	return b.save(receiptBucket, receipt.ID, receipt)
}

// GetReceipt retrieves a receipt by ID
func (b *BoltDB) GetReceipt(id string) (*Receipt, error) {
	var receipt Receipt
	if err := b.get(receiptBucket, id, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// ListReceipts returns all receipts owned by a user
func (b *BoltDB) ListReceipts(userID string) ([]*Receipt, error) {
	return listOwned(b, receiptBucket, userID, func(r *Receipt) string { return r.UserID })
}

// DeleteReceipt removes a receipt from the database
func (b *BoltDB) DeleteReceipt(id string) error {
	return b.delete(receiptBucket, id)
}

// MarkReceiptProcessing conditionally transitions a receipt to processing
func (b *BoltDB) MarkReceiptProcessing(id string, now time.Time) (*Receipt, error) {
	var receipt Receipt
	err := b.db.Update(func(tx *bbolt.Tx) error {
		if err := getJSON(tx, receiptBucket, id, &receipt); err != nil {
			return err
		}
		if receipt.ProcessingStatus == StatusProcessing {
			return ErrAlreadyProcessing
		}
		receipt.ProcessingStatus = StatusProcessing
		receipt.UpdatedAt = now
		return putJSON(tx, receiptBucket, id, &receipt)
	})
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// FinishReceiptProcessing writes a terminal extraction result only when the
// row is still present, so a delete that raced the extraction wins
func (b *BoltDB) FinishReceiptProcessing(receipt *Receipt) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(receiptBucket)).Get([]byte(receipt.ID)) == nil {
			return ErrNotFound
		}
		return putJSON(tx, receiptBucket, receipt.ID, receipt)
	})
}

// FindReceiptByFingerprint searches a user's receipts for a matching
// fingerprint, excluding the receipt being resolved
func (b *BoltDB) FindReceiptByFingerprint(userID, fingerprint, excludeID string) (*Receipt, error) {
	var match *Receipt
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(receiptBucket)).ForEach(func(k, v []byte) error {
			if match != nil {
				return nil
			}
			var receipt Receipt
			if err := json.Unmarshal(v, &receipt); err != nil {
				return fmt.Errorf("unmarshaling receipt: %w", err)
			}
			if receipt.UserID == userID && receipt.ID != excludeID && receipt.Fingerprint == fingerprint {
				match = &receipt
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// CreateExpenseWithReceipts atomically creates an expense and attaches all
// listed receipts
func (b *BoltDB) CreateExpenseWithReceipts(expense *Expense, receiptIDs []string, now time.Time) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		receipts := make([]*Receipt, 0, len(receiptIDs))
		seen := make(map[string]bool, len(receiptIDs))
		for _, id := range receiptIDs {
			if seen[id] {
				return fmt.Errorf("receipt %s listed more than once", id)
			}
			seen[id] = true
			var receipt Receipt
			if err := getJSON(tx, receiptBucket, id, &receipt); err != nil {
				return err
			}
			if receipt.UserID != expense.UserID {
				return ErrNotFound
			}
			if receipt.ExpenseID != "" {
				return ErrReceiptAttached
			}
			receipts = append(receipts, &receipt)
		}

		expense.ReceiptIDs = receiptIDs
		if expense.ReceiptID == "" && len(receiptIDs) > 0 {
			expense.ReceiptID = receiptIDs[0]
		}
		if err := putJSON(tx, expenseBucket, expense.ID, expense); err != nil {
			return err
		}

		for _, receipt := range receipts {
			receipt.ExpenseID = expense.ID
			receipt.UpdatedAt = now
			if err := putJSON(tx, receiptBucket, receipt.ID, receipt); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveExpense saves an expense to the database
func (b *BoltDB) SaveExpense(expense *Expense) error {
	return b.save(expenseBucket, expense.ID, expense)
}

// GetExpense retrieves an expense by ID
func (b *BoltDB) GetExpense(id string) (*Expense, error) {
	var expense Expense
	if err := b.get(expenseBucket, id, &expense); err != nil {
		return nil, err
	}
	return &expense, nil
}

// ListExpenses returns all expenses owned by a user
func (b *BoltDB) ListExpenses(userID string) ([]*Expense, error) {
	return listOwned(b, expenseBucket, userID, func(e *Expense) string { return e.UserID })
}

// DeleteExpense removes an expense from the database
func (b *BoltDB) DeleteExpense(id string) error {
	return b.delete(expenseBucket, id)
}

// SaveDeposit saves a deposit to the database
func (b *BoltDB) SaveDeposit(deposit *Deposit) error {
	return b.save(depositBucket, deposit.ID, deposit)
}

// GetDeposit retrieves a deposit by ID
func (b *BoltDB) GetDeposit(id string) (*Deposit, error) {
	var deposit Deposit
	if err := b.get(depositBucket, id, &deposit); err != nil {
		return nil, err
	}
	return &deposit, nil
}

// ListDeposits returns all deposits owned by a user
func (b *BoltDB) ListDeposits(userID string) ([]*Deposit, error) {
	return listOwned(b, depositBucket, userID, func(d *Deposit) string { return d.UserID })
}

// DeleteDeposit removes a deposit from the database
func (b *BoltDB) DeleteDeposit(id string) error {
	return b.delete(depositBucket, id)
}

// SaveRecurringRule saves a recurring rule to the database
func (b *BoltDB) SaveRecurringRule(rule *RecurringRule) error {
	return b.save(recurringBucket, rule.ID, rule)
}

// GetRecurringRule retrieves a recurring rule by ID
func (b *BoltDB) GetRecurringRule(id string) (*RecurringRule, error) {
	var rule RecurringRule
	if err := b.get(recurringBucket, id, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListRecurringRules returns all recurring rules owned by a user
func (b *BoltDB) ListRecurringRules(userID string) ([]*RecurringRule, error) {
	return listOwned(b, recurringBucket, userID, func(r *RecurringRule) string { return r.UserID })
}

// DeleteRecurringRule removes a recurring rule from the database
func (b *BoltDB) DeleteRecurringRule(id string) error {
	return b.delete(recurringBucket, id)
}

// SaveProject saves a project to the database
func (b *BoltDB) SaveProject(project *Project) error {
	return b.save(projectBucket, project.ID, project)
}

// GetProject retrieves a project by ID
func (b *BoltDB) GetProject(id string) (*Project, error) {
	var project Project
	if err := b.get(projectBucket, id, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// ListProjects returns all projects owned by a user
func (b *BoltDB) ListProjects(userID string) ([]*Project, error) {
	return listOwned(b, projectBucket, userID, func(p *Project) string { return p.UserID })
}

// SaveCategory saves a category to the database
func (b *BoltDB) SaveCategory(category *Category) error {
	return b.save(categoryBucket, category.ID, category)
}

// GetCategory retrieves a category by ID
func (b *BoltDB) GetCategory(id string) (*Category, error) {
	var category Category
	if err := b.get(categoryBucket, id, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

// ListCategories returns all categories owned by a user
func (b *BoltDB) ListCategories(userID string) ([]*Category, error) {
	return listOwned(b, categoryBucket, userID, func(c *Category) string { return c.UserID })
}

// DeleteCategory removes a category and clears references to it. Expenses
// and budgets keep their rows with the category unset.
func (b *BoltDB) DeleteCategory(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(categoryBucket)).Delete([]byte(id)); err != nil {
			return err
		}

		if err := clearReference[Expense](tx, expenseBucket,
			func(e *Expense) bool { return e.CategoryID == id },
			func(e *Expense) { e.CategoryID = "" }); err != nil {
			return err
		}
		if err := clearReference[Budget](tx, budgetBucket,
			func(b *Budget) bool { return b.CategoryID == id },
			func(b *Budget) { b.CategoryID = "" }); err != nil {
			return err
		}
		return clearReference[Category](tx, categoryBucket,
			func(c *Category) bool { return c.ParentID == id },
			func(c *Category) { c.ParentID = "" })
	})
}

// SaveTag saves a tag to the database
func (b *BoltDB) SaveTag(tag *Tag) error {
	return b.save(tagBucket, tag.ID, tag)
}

// GetTag retrieves a tag by ID
func (b *BoltDB) GetTag(id string) (*Tag, error) {
	var tag Tag
	if err := b.get(tagBucket, id, &tag); err != nil {
		return nil, err
	}
	return &tag, nil
}

// ListTags returns all tags owned by a user
func (b *BoltDB) ListTags(userID string) ([]*Tag, error) {
	return listOwned(b, tagBucket, userID, func(t *Tag) string { return t.UserID })
}

// DeleteTag removes a tag and detaches it from expenses and mileage entries
func (b *BoltDB) DeleteTag(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(tagBucket)).Delete([]byte(id)); err != nil {
			return err
		}

		if err := clearReference[Expense](tx, expenseBucket,
			func(e *Expense) bool { return containsID(e.TagIDs, id) },
			func(e *Expense) { e.TagIDs = removeID(e.TagIDs, id) }); err != nil {
			return err
		}
		return clearReference[MileageEntry](tx, mileageBucket,
			func(m *MileageEntry) bool { return containsID(m.TagIDs, id) },
			func(m *MileageEntry) { m.TagIDs = removeID(m.TagIDs, id) })
	})
}

// SaveTaxCategory saves a tax category to the database
func (b *BoltDB) SaveTaxCategory(taxCategory *TaxCategory) error {
	return b.save(taxCategoryBucket, taxCategory.Code, taxCategory)
}

// ListTaxCategories returns all tax categories
func (b *BoltDB) ListTaxCategories() ([]*TaxCategory, error) {
	taxCategories := make([]*TaxCategory, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(taxCategoryBucket)).ForEach(func(k, v []byte) error {
			var taxCategory TaxCategory
			if err := json.Unmarshal(v, &taxCategory); err != nil {
				return fmt.Errorf("unmarshaling tax category: %w", err)
			}
			taxCategories = append(taxCategories, &taxCategory)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return taxCategories, nil
}

// SaveMileageEntry saves a mileage entry to the database
func (b *BoltDB) SaveMileageEntry(entry *MileageEntry) error {
	return b.save(mileageBucket, entry.ID, entry)
}

// GetMileageEntry retrieves a mileage entry by ID
func (b *BoltDB) GetMileageEntry(id string) (*MileageEntry, error) {
	var entry MileageEntry
	if err := b.get(mileageBucket, id, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListMileageEntries returns all mileage entries owned by a user
func (b *BoltDB) ListMileageEntries(userID string) ([]*MileageEntry, error) {
	return listOwned(b, mileageBucket, userID, func(m *MileageEntry) string { return m.UserID })
}

// DeleteMileageEntry removes a mileage entry from the database
func (b *BoltDB) DeleteMileageEntry(id string) error {
	return b.delete(mileageBucket, id)
}

// SaveBudget saves a budget to the database
func (b *BoltDB) SaveBudget(budget *Budget) error {
	return b.save(budgetBucket, budget.ID, budget)
}

// GetBudget retrieves a budget by ID
func (b *BoltDB) GetBudget(id string) (*Budget, error) {
	var budget Budget
	if err := b.get(budgetBucket, id, &budget); err != nil {
		return nil, err
	}
	return &budget, nil
}

// ListBudgets returns all budgets owned by a user
func (b *BoltDB) ListBudgets(userID string) ([]*Budget, error) {
	return listOwned(b, budgetBucket, userID, func(bu *Budget) string { return bu.UserID })
}

// DeleteBudget removes a budget from the database
func (b *BoltDB) DeleteBudget(id string) error {
	return b.delete(budgetBucket, id)
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

// clearReference rewrites every record in a bucket matched by the predicate
func clearReference[T any](tx *bbolt.Tx, bucket string, matches func(*T) bool, clear func(*T)) error {
	type update struct {
		key   []byte
		value *T
	}
	var updates []update

	b := tx.Bucket([]byte(bucket))
	err := b.ForEach(func(k, v []byte) error {
		var record T
		if err := json.Unmarshal(v, &record); err != nil {
			return fmt.Errorf("unmarshaling %s record: %w", bucket, err)
		}
		if matches(&record) {
			clear(&record)
			key := make([]byte, len(k))
			copy(key, k)
			updates = append(updates, update{key: key, value: &record})
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, u := range updates {
		data, err := json.Marshal(u.value)
		if err != nil {
			return fmt.Errorf("marshaling %s record: %w", bucket, err)
		}
		if err := b.Put(u.key, data); err != nil {
			return err
		}
	}
	return nil
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}
