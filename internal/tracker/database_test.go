package tracker

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltDB", func() {
	var db *BoltDB

	now := time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)

	BeforeEach(func() {
		var err error
		db, err = NewBoltDB(filepath.Join(GinkgoT().TempDir(), "test.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(db.Close()).To(Succeed())
	})

	Describe("receipts", func() {
		It("should round-trip a receipt", func() {
			vendor := "Acme"
			receipt := &Receipt{
				ID:               "r1",
				UserID:           "user1",
				ProcessingStatus: StatusPending,
				ExtractedVendor:  &vendor,
				CreatedAt:        now,
			}
			Expect(db.SaveReceipt(receipt)).To(Succeed())

			loaded, err := db.GetReceipt("r1")
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.UserID).To(Equal("user1"))
			Expect(*loaded.ExtractedVendor).To(Equal("Acme"))
		})

		It("should return ErrNotFound for a missing receipt", func() {
			_, err := db.GetReceipt("missing")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("should list only the owner's receipts", func() {
			Expect(db.SaveReceipt(&Receipt{ID: "r1", UserID: "user1"})).To(Succeed())
			Expect(db.SaveReceipt(&Receipt{ID: "r2", UserID: "user2"})).To(Succeed())

			receipts, err := db.ListReceipts("user1")
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(HaveLen(1))
			Expect(receipts[0].ID).To(Equal("r1"))
		})
	})

	Describe("MarkReceiptProcessing", func() {
		BeforeEach(func() {
			Expect(db.SaveReceipt(&Receipt{ID: "r1", UserID: "user1", ProcessingStatus: StatusPending})).To(Succeed())
		})

		It("should transition a pending receipt to processing", func() {
			receipt, err := db.MarkReceiptProcessing("r1", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.ProcessingStatus).To(Equal(StatusProcessing))
			Expect(receipt.UpdatedAt).To(Equal(now))
		})

		It("should reject the second of two triggers", func() {
			_, err := db.MarkReceiptProcessing("r1", now)
			Expect(err).NotTo(HaveOccurred())

			_, err = db.MarkReceiptProcessing("r1", now)
			Expect(err).To(MatchError(ErrAlreadyProcessing))
		})

		It("should allow retriggering a failed receipt", func() {
			Expect(db.SaveReceipt(&Receipt{ID: "r2", UserID: "user1", ProcessingStatus: StatusFailed})).To(Succeed())
			_, err := db.MarkReceiptProcessing("r2", now)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("FinishReceiptProcessing", func() {
		It("should persist the terminal state for an existing receipt", func() {
			Expect(db.SaveReceipt(&Receipt{ID: "r1", UserID: "user1", ProcessingStatus: StatusProcessing})).To(Succeed())

			Expect(db.FinishReceiptProcessing(&Receipt{ID: "r1", UserID: "user1", ProcessingStatus: StatusCompleted})).To(Succeed())

			receipt, err := db.GetReceipt("r1")
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.ProcessingStatus).To(Equal(StatusCompleted))
		})

		It("should not recreate a receipt whose row is gone", func() {
			Expect(db.SaveReceipt(&Receipt{ID: "r1", UserID: "user1", ProcessingStatus: StatusProcessing})).To(Succeed())
			Expect(db.DeleteReceipt("r1")).To(Succeed())

			err := db.FinishReceiptProcessing(&Receipt{ID: "r1", UserID: "user1", ProcessingStatus: StatusCompleted})
			Expect(err).To(MatchError(ErrNotFound))

			_, err = db.GetReceipt("r1")
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("FindReceiptByFingerprint", func() {
		BeforeEach(func() {
			Expect(db.SaveReceipt(&Receipt{ID: "r1", UserID: "user1", Fingerprint: "abc123"})).To(Succeed())
			Expect(db.SaveReceipt(&Receipt{ID: "r2", UserID: "user2", Fingerprint: "abc123"})).To(Succeed())
		})

		It("should find a matching receipt for the same user", func() {
			match, err := db.FindReceiptByFingerprint("user1", "abc123", "other")
			Expect(err).NotTo(HaveOccurred())
			Expect(match).NotTo(BeNil())
			Expect(match.ID).To(Equal("r1"))
		})

		It("should exclude the receipt being resolved", func() {
			match, err := db.FindReceiptByFingerprint("user1", "abc123", "r1")
			Expect(err).NotTo(HaveOccurred())
			Expect(match).To(BeNil())
		})

		It("should return nil when no fingerprint matches", func() {
			match, err := db.FindReceiptByFingerprint("user1", "zzz", "other")
			Expect(err).NotTo(HaveOccurred())
			Expect(match).To(BeNil())
		})
	})

	Describe("CreateExpenseWithReceipts", func() {
		BeforeEach(func() {
			Expect(db.SaveReceipt(&Receipt{ID: "r1", UserID: "user1", ProcessingStatus: StatusCompleted})).To(Succeed())
			Expect(db.SaveReceipt(&Receipt{ID: "r2", UserID: "user1", ProcessingStatus: StatusCompleted})).To(Succeed())
		})

		It("should attach every receipt and set the primary", func() {
			expense := &Expense{ID: "e1", UserID: "user1", Amount: 10}
			Expect(db.CreateExpenseWithReceipts(expense, []string{"r1", "r2"}, now)).To(Succeed())
			Expect(expense.ReceiptID).To(Equal("r1"))

			for _, id := range []string{"r1", "r2"} {
				receipt, err := db.GetReceipt(id)
				Expect(err).NotTo(HaveOccurred())
				Expect(receipt.ExpenseID).To(Equal("e1"))
			}
		})

		It("should write nothing when one receipt is already attached", func() {
			Expect(db.SaveReceipt(&Receipt{ID: "r2", UserID: "user1", ExpenseID: "other"})).To(Succeed())

			expense := &Expense{ID: "e1", UserID: "user1", Amount: 10}
			err := db.CreateExpenseWithReceipts(expense, []string{"r1", "r2"}, now)
			Expect(err).To(MatchError(ErrReceiptAttached))

			_, err = db.GetExpense("e1")
			Expect(err).To(MatchError(ErrNotFound))

			receipt, err := db.GetReceipt("r1")
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.ExpenseID).To(BeEmpty())
		})

		It("should reject a receipt listed twice and write nothing", func() {
			expense := &Expense{ID: "e1", UserID: "user1", Amount: 10}
			err := db.CreateExpenseWithReceipts(expense, []string{"r1", "r1"}, now)
			Expect(err).To(MatchError(ContainSubstring("more than once")))

			_, err = db.GetExpense("e1")
			Expect(err).To(MatchError(ErrNotFound))

			receipt, err := db.GetReceipt("r1")
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.ExpenseID).To(BeEmpty())
		})

		It("should treat another user's receipt as missing", func() {
			Expect(db.SaveReceipt(&Receipt{ID: "r2", UserID: "user2"})).To(Succeed())

			expense := &Expense{ID: "e1", UserID: "user1", Amount: 10}
			err := db.CreateExpenseWithReceipts(expense, []string{"r1", "r2"}, now)
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("DeleteCategory", func() {
		It("should clear references from expenses, budgets and children", func() {
			Expect(db.SaveCategory(&Category{ID: "c1", UserID: "user1", Name: "Travel"})).To(Succeed())
			Expect(db.SaveCategory(&Category{ID: "c2", UserID: "user1", Name: "Flights", ParentID: "c1"})).To(Succeed())
			Expect(db.SaveExpense(&Expense{ID: "e1", UserID: "user1", CategoryID: "c1"})).To(Succeed())
			Expect(db.SaveBudget(&Budget{ID: "b1", UserID: "user1", CategoryID: "c1", Amount: 100, Period: PeriodMonthly})).To(Succeed())

			Expect(db.DeleteCategory("c1")).To(Succeed())

			expense, err := db.GetExpense("e1")
			Expect(err).NotTo(HaveOccurred())
			Expect(expense.CategoryID).To(BeEmpty())

			budget, err := db.GetBudget("b1")
			Expect(err).NotTo(HaveOccurred())
			Expect(budget.CategoryID).To(BeEmpty())

			child, err := db.GetCategory("c2")
			Expect(err).NotTo(HaveOccurred())
			Expect(child.ParentID).To(BeEmpty())
		})
	})

	Describe("DeleteTag", func() {
		It("should detach the tag from expenses and mileage entries", func() {
			Expect(db.SaveTag(&Tag{ID: "t1", UserID: "user1", Name: "billable"})).To(Succeed())
			Expect(db.SaveExpense(&Expense{ID: "e1", UserID: "user1", TagIDs: []string{"t1", "t2"}})).To(Succeed())
			Expect(db.SaveMileageEntry(&MileageEntry{ID: "m1", UserID: "user1", TagIDs: []string{"t1"}})).To(Succeed())

			Expect(db.DeleteTag("t1")).To(Succeed())

			expense, err := db.GetExpense("e1")
			Expect(err).NotTo(HaveOccurred())
			Expect(expense.TagIDs).To(Equal([]string{"t2"}))

			entry, err := db.GetMileageEntry("m1")
			Expect(err).NotTo(HaveOccurred())
			Expect(entry.TagIDs).To(BeEmpty())
		})
	})

	Describe("deposits and recurring rules", func() {
		It("should round-trip a deposit", func() {
			deposit := &Deposit{ID: "d1", UserID: "user1", ProjectID: "p1", Source: "Tenant rent", Amount: 1500, Currency: "USD"}
			Expect(db.SaveDeposit(deposit)).To(Succeed())

			loaded, err := db.GetDeposit("d1")
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Source).To(Equal("Tenant rent"))
			Expect(loaded.Amount).To(Equal(1500.0))

			Expect(db.DeleteDeposit("d1")).To(Succeed())
			_, err = db.GetDeposit("d1")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("should list only the owner's recurring rules", func() {
			Expect(db.SaveRecurringRule(&RecurringRule{ID: "rr1", UserID: "user1", Frequency: FrequencyMonthly})).To(Succeed())
			Expect(db.SaveRecurringRule(&RecurringRule{ID: "rr2", UserID: "user2", Frequency: FrequencyMonthly})).To(Succeed())

			rules, err := db.ListRecurringRules("user1")
			Expect(err).NotTo(HaveOccurred())
			Expect(rules).To(HaveLen(1))
			Expect(rules[0].ID).To(Equal("rr1"))
		})
	})

	Describe("tax categories", func() {
		It("should upsert by code", func() {
			Expect(db.SaveTaxCategory(&TaxCategory{ID: "OFFICE", Code: "OFFICE", Name: "Office expense"})).To(Succeed())
			Expect(db.SaveTaxCategory(&TaxCategory{ID: "OFFICE", Code: "OFFICE", Name: "Office expense (revised)"})).To(Succeed())

			taxCategories, err := db.ListTaxCategories()
			Expect(err).NotTo(HaveOccurred())
			Expect(taxCategories).To(HaveLen(1))
			Expect(taxCategories[0].Name).To(Equal("Office expense (revised)"))
		})
	})

	Describe("persistence", func() {
		It("should survive reopening the database", func() {
			path := filepath.Join(GinkgoT().TempDir(), "reopen.db")
			first, err := NewBoltDB(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.SaveProject(&Project{ID: "p1", UserID: "user1", Name: "Rental"})).To(Succeed())
			Expect(first.Close()).To(Succeed())

			second, err := NewBoltDB(path)
			Expect(err).NotTo(HaveOccurred())
			defer second.Close()

			project, err := second.GetProject("p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(project.Name).To(Equal("Rental"))
		})
	})
})
