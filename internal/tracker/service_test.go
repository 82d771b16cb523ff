package tracker

import (
	"encoding/base64"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Service receipts", func() {
	var (
		db        *mockDB
		storage   *mockStorage
		extractor *mockExtractor
		service   *Service
		now       time.Time
	)

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		extractor = newMockExtractor()
		now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		service = NewServiceWithDeps(db, extractor, storage, &fixedIDGenerator{}, &fixedTimeSource{now: now})
	})

	Describe("UploadReceipt", func() {
		It("should create a pending receipt", func() {
			receipt, err := service.UploadReceipt("user1", "lunch.jpg", []byte("image data"), "image/jpeg")
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.ProcessingStatus).To(Equal(StatusPending))
			Expect(receipt.UserID).To(Equal("user1"))
			Expect(receipt.FileSize).To(Equal(int64(10)))
		})

		It("should store the file under the user's directory", func() {
			receipt, err := service.UploadReceipt("user1", "lunch.jpg", []byte("image data"), "image/jpeg")
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.StoragePath).To(Equal("user1/test-id-1.jpg"))
			Expect(storage.files).To(HaveKey("user1/test-id-1.jpg"))
		})

		It("should reject disallowed MIME types", func() {
			_, err := service.UploadReceipt("user1", "notes.txt", []byte("text"), "text/plain")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("invalid file type"))
		})

		It("should reject empty files", func() {
			_, err := service.UploadReceipt("user1", "empty.jpg", []byte{}, "image/jpeg")
			Expect(err).To(HaveOccurred())
		})

		It("should reject oversized files", func() {
			_, err := service.UploadReceipt("user1", "big.jpg", make([]byte, MaxUploadSize+1), "image/jpeg")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("too large"))
		})

		It("should remove the file when the database write fails", func() {
			db.saveReceiptErr = errors.New("disk full")
			_, err := service.UploadReceipt("user1", "lunch.jpg", []byte("image data"), "image/jpeg")
			Expect(err).To(HaveOccurred())
			Expect(storage.files).To(BeEmpty())
		})

		It("should sanitize messy filenames", func() {
			receipt, err := service.UploadReceipt("user1", "IMG_@#$!_0042 (1).jpg", []byte("image data"), "image/jpeg")
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.OriginalName).NotTo(ContainSubstring("@"))
		})
	})

	Describe("CaptureReceipt", func() {
		It("should decode a bare base64 payload", func() {
			encoded := base64.StdEncoding.EncodeToString([]byte("camera bytes"))
			receipt, err := service.CaptureReceipt("user1", encoded, "image/jpeg")
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.FileSize).To(Equal(int64(len("camera bytes"))))
		})

		It("should strip a data URL prefix", func() {
			encoded := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("camera bytes"))
			receipt, err := service.CaptureReceipt("user1", encoded, "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.MimeType).To(Equal("image/png"))
		})

		It("should reject empty image data", func() {
			_, err := service.CaptureReceipt("user1", "", "image/jpeg")
			Expect(err).To(HaveOccurred())
		})

		It("should reject invalid base64", func() {
			_, err := service.CaptureReceipt("user1", "not base64!!!", "image/jpeg")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("GetReceipt", func() {
		It("should not reveal receipts owned by another user", func() {
			receipt, err := service.UploadReceipt("user1", "lunch.jpg", []byte("image data"), "image/jpeg")
			Expect(err).NotTo(HaveOccurred())

			_, err = service.GetReceipt("user2", receipt.ID)
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("ListReceipts", func() {
		BeforeEach(func() {
			db.receipts["r1"] = &Receipt{ID: "r1", UserID: "user1", ProcessingStatus: StatusCompleted}
			db.receipts["r2"] = &Receipt{ID: "r2", UserID: "user1", ProcessingStatus: StatusCompleted, ExpenseID: "e1"}
			db.receipts["r3"] = &Receipt{ID: "r3", UserID: "user1", ProcessingStatus: StatusFailed}
			db.receipts["r4"] = &Receipt{ID: "r4", UserID: "user2", ProcessingStatus: StatusCompleted}
		})

		It("should return only the user's receipts", func() {
			receipts, err := service.ListReceipts("user1", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(HaveLen(3))
		})

		It("should treat pending as the review queue: not yet attached to an expense", func() {
			receipts, err := service.ListReceipts("user1", "pending")
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(HaveLen(2))
			for _, r := range receipts {
				Expect(r.ExpenseID).To(BeEmpty())
			}
		})

		It("should filter by processing status otherwise", func() {
			receipts, err := service.ListReceipts("user1", "failed")
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(HaveLen(1))
			Expect(receipts[0].ID).To(Equal("r3"))
		})
	})

	Describe("ProcessReceipt", func() {
		var receipt *Receipt

		BeforeEach(func() {
			var err error
			receipt, err = service.UploadReceipt("user1", "lunch.jpg", []byte("image data"), "image/jpeg")
			Expect(err).NotTo(HaveOccurred())
		})

		It("should complete the receipt with extracted fields", func() {
			Expect(service.ProcessReceipt("user1", receipt.ID)).To(Succeed())

			Eventually(func() ProcessingStatus {
				r, _ := db.GetReceipt(receipt.ID)
				return r.ProcessingStatus
			}).Should(Equal(StatusCompleted))

			r, err := db.GetReceipt(receipt.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(*r.ExtractedVendor).To(Equal("Acme Supplies"))
			Expect(*r.ExtractedAmount).To(Equal(42.50))
			Expect(*r.ExtractedDate).To(Equal("2025-02-20"))
			Expect(*r.AIConfidence).To(Equal(0.92))
			Expect(r.Fingerprint).To(Equal(Fingerprint("Acme Supplies", 42.50, "2025-02-20")))
		})

		It("should reject a receipt that is already processing", func() {
			db.receipts[receipt.ID].ProcessingStatus = StatusProcessing
			err := service.ProcessReceipt("user1", receipt.ID)
			Expect(err).To(MatchError(ErrAlreadyProcessing))
		})

		It("should mark the receipt failed when extraction fails", func() {
			extractor.extractErr = errors.New("model unavailable")
			Expect(service.ProcessReceipt("user1", receipt.ID)).To(Succeed())

			Eventually(func() ProcessingStatus {
				r, _ := db.GetReceipt(receipt.ID)
				return r.ProcessingStatus
			}).Should(Equal(StatusFailed))
		})

		It("should allow reprocessing a failed receipt", func() {
			db.receipts[receipt.ID].ProcessingStatus = StatusFailed
			Expect(service.ProcessReceipt("user1", receipt.ID)).To(Succeed())

			Eventually(func() ProcessingStatus {
				r, _ := db.GetReceipt(receipt.ID)
				return r.ProcessingStatus
			}).Should(Equal(StatusCompleted))
		})

		It("should not resurrect a receipt deleted while extraction was in flight", func() {
			marked, err := db.MarkReceiptProcessing(receipt.ID, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(db.DeleteReceipt(receipt.ID)).To(Succeed())

			service.completeExtraction(marked, extractor.result, nil)

			_, err = db.GetReceipt(receipt.ID)
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("should not resurrect a deleted receipt when extraction fails", func() {
			marked, err := db.MarkReceiptProcessing(receipt.ID, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(db.DeleteReceipt(receipt.ID)).To(Succeed())

			service.failReceipt(marked, errors.New("model unavailable"))

			_, err = db.GetReceipt(receipt.ID)
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("should pass the user's category names to the extractor", func() {
			db.categories["c1"] = &Category{ID: "c1", UserID: "user1", Name: "Office Supplies"}

			Expect(service.ProcessReceipt("user1", receipt.ID)).To(Succeed())
			Eventually(func() ProcessingStatus {
				r, _ := db.GetReceipt(receipt.ID)
				return r.ProcessingStatus
			}).Should(Equal(StatusCompleted))

			Expect(extractor.categories).To(ConsistOf("Office Supplies"))
		})

		It("should canonicalize the category guess on a case-insensitive match", func() {
			db.categories["c1"] = &Category{ID: "c1", UserID: "user1", Name: "Office Supplies"}
			guess := "office supplies"
			extractor.result.Category = &guess

			Expect(service.ProcessReceipt("user1", receipt.ID)).To(Succeed())
			Eventually(func() *string {
				r, _ := db.GetReceipt(receipt.ID)
				return r.ExtractedCategory
			}).ShouldNot(BeNil())

			r, _ := db.GetReceipt(receipt.ID)
			Expect(*r.ExtractedCategory).To(Equal("Office Supplies"))
		})

		It("should keep an unmatched category guess as-is", func() {
			guess := "Quantum Widgets"
			extractor.result.Category = &guess

			Expect(service.ProcessReceipt("user1", receipt.ID)).To(Succeed())
			Eventually(func() *string {
				r, _ := db.GetReceipt(receipt.ID)
				return r.ExtractedCategory
			}).ShouldNot(BeNil())

			r, _ := db.GetReceipt(receipt.ID)
			Expect(*r.ExtractedCategory).To(Equal("Quantum Widgets"))
		})

		It("should skip fingerprinting when a field is unreadable", func() {
			extractor.result.Vendor = nil

			Expect(service.ProcessReceipt("user1", receipt.ID)).To(Succeed())
			Eventually(func() ProcessingStatus {
				r, _ := db.GetReceipt(receipt.ID)
				return r.ProcessingStatus
			}).Should(Equal(StatusCompleted))

			r, _ := db.GetReceipt(receipt.ID)
			Expect(r.Fingerprint).To(BeEmpty())
			Expect(r.IsDuplicate).To(BeFalse())
		})

		It("should flag a duplicate of an earlier receipt with the same fingerprint", func() {
			db.receipts["earlier"] = &Receipt{
				ID:          "earlier",
				UserID:      "user1",
				Fingerprint: Fingerprint("Acme Supplies", 42.50, "2025-02-20"),
			}

			Expect(service.ProcessReceipt("user1", receipt.ID)).To(Succeed())
			Eventually(func() bool {
				r, _ := db.GetReceipt(receipt.ID)
				return r.IsDuplicate
			}).Should(BeTrue())

			r, _ := db.GetReceipt(receipt.ID)
			Expect(r.DuplicateOfID).To(Equal("earlier"))
		})

		It("should not match receipts owned by another user", func() {
			db.receipts["other"] = &Receipt{
				ID:          "other",
				UserID:      "user2",
				Fingerprint: Fingerprint("Acme Supplies", 42.50, "2025-02-20"),
			}

			Expect(service.ProcessReceipt("user1", receipt.ID)).To(Succeed())
			Eventually(func() ProcessingStatus {
				r, _ := db.GetReceipt(receipt.ID)
				return r.ProcessingStatus
			}).Should(Equal(StatusCompleted))

			r, _ := db.GetReceipt(receipt.ID)
			Expect(r.IsDuplicate).To(BeFalse())
		})
	})

	Describe("AcceptReceipt", func() {
		var receipt *Receipt
		payload := func() *ExpensePayload {
			return &ExpensePayload{
				ProjectID: "proj1",
				Vendor:    "Acme Supplies",
				Amount:    42.50,
				Date:      "2025-02-20",
			}
		}

		BeforeEach(func() {
			confidence := 0.92
			receipt = &Receipt{
				ID:               "r1",
				UserID:           "user1",
				ProcessingStatus: StatusCompleted,
				AIConfidence:     &confidence,
			}
			db.receipts["r1"] = receipt
		})

		It("should create an expense sourced from the scan", func() {
			expense, err := service.AcceptReceipt("user1", "r1", payload())
			Expect(err).NotTo(HaveOccurred())
			Expect(expense.Source).To(Equal(SourceReceiptScan))
			Expect(expense.Currency).To(Equal("USD"))
			Expect(*expense.Confidence).To(Equal(0.92))
			Expect(expense.ReceiptID).To(Equal("r1"))
		})

		It("should attach the receipt to the new expense", func() {
			expense, err := service.AcceptReceipt("user1", "r1", payload())
			Expect(err).NotTo(HaveOccurred())

			r, _ := db.GetReceipt("r1")
			Expect(r.ExpenseID).To(Equal(expense.ID))
		})

		It("should accept a failed receipt with manually corrected data", func() {
			receipt.ProcessingStatus = StatusFailed
			receipt.AIConfidence = nil
			_, err := service.AcceptReceipt("user1", "r1", payload())
			Expect(err).NotTo(HaveOccurred())
		})

		It("should reject a receipt that has not finished processing", func() {
			receipt.ProcessingStatus = StatusPending
			_, err := service.AcceptReceipt("user1", "r1", payload())
			Expect(err).To(MatchError(ErrReceiptNotReviewable))
		})

		It("should reject a receipt already attached to an expense", func() {
			receipt.ExpenseID = "existing"
			_, err := service.AcceptReceipt("user1", "r1", payload())
			Expect(err).To(MatchError(ErrReceiptAttached))
		})

		It("should accept a flagged duplicate; the flag is advisory", func() {
			receipt.IsDuplicate = true
			receipt.DuplicateOfID = "earlier"
			_, err := service.AcceptReceipt("user1", "r1", payload())
			Expect(err).NotTo(HaveOccurred())
		})

		It("should require a project", func() {
			p := payload()
			p.ProjectID = ""
			_, err := service.AcceptReceipt("user1", "r1", p)
			Expect(err).To(HaveOccurred())
		})

		It("should require a positive amount", func() {
			p := payload()
			p.Amount = 0
			_, err := service.AcceptReceipt("user1", "r1", p)
			Expect(err).To(HaveOccurred())
		})

		It("should require a well-formed date", func() {
			p := payload()
			p.Date = "02/20/2025"
			_, err := service.AcceptReceipt("user1", "r1", p)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("AcceptReceiptBatch", func() {
		payload := func() *ExpensePayload {
			return &ExpensePayload{
				ProjectID: "proj1",
				Vendor:    "Acme Supplies",
				Amount:    99.00,
				Date:      "2025-02-20",
			}
		}

		BeforeEach(func() {
			c1, c2 := 0.9, 0.5
			db.receipts["r1"] = &Receipt{ID: "r1", UserID: "user1", ProcessingStatus: StatusCompleted, AIConfidence: &c1}
			db.receipts["r2"] = &Receipt{ID: "r2", UserID: "user1", ProcessingStatus: StatusCompleted, AIConfidence: &c2}
		})

		It("should create one expense attached to every receipt", func() {
			expense, err := service.AcceptReceiptBatch("user1", []string{"r1", "r2"}, payload())
			Expect(err).NotTo(HaveOccurred())
			Expect(expense.ReceiptIDs).To(Equal([]string{"r1", "r2"}))
			Expect(expense.ReceiptID).To(Equal("r1"))

			for _, id := range []string{"r1", "r2"} {
				r, _ := db.GetReceipt(id)
				Expect(r.ExpenseID).To(Equal(expense.ID))
			}
		})

		It("should take confidence from the first receipt", func() {
			expense, err := service.AcceptReceiptBatch("user1", []string{"r1", "r2"}, payload())
			Expect(err).NotTo(HaveOccurred())
			Expect(*expense.Confidence).To(Equal(0.9))
		})

		It("should reject an empty batch", func() {
			_, err := service.AcceptReceiptBatch("user1", nil, payload())
			Expect(err).To(HaveOccurred())
		})

		It("should create nothing when any receipt is already attached", func() {
			db.receipts["r2"].ExpenseID = "existing"

			_, err := service.AcceptReceiptBatch("user1", []string{"r1", "r2"}, payload())
			Expect(err).To(MatchError(ErrReceiptAttached))
			Expect(db.expenses).To(BeEmpty())

			r, _ := db.GetReceipt("r1")
			Expect(r.ExpenseID).To(BeEmpty())
		})

		It("should reject a receipt listed more than once", func() {
			_, err := service.AcceptReceiptBatch("user1", []string{"r1", "r1"}, payload())
			Expect(err).To(MatchError(ContainSubstring("more than once")))
			Expect(db.expenses).To(BeEmpty())

			r, _ := db.GetReceipt("r1")
			Expect(r.ExpenseID).To(BeEmpty())
		})

		It("should create nothing when any receipt belongs to another user", func() {
			db.receipts["r2"].UserID = "user2"

			_, err := service.AcceptReceiptBatch("user1", []string{"r1", "r2"}, payload())
			Expect(err).To(MatchError(ErrNotFound))
			Expect(db.expenses).To(BeEmpty())
		})
	})

	Describe("DeleteReceipt", func() {
		It("should remove the record even when the file is already gone", func() {
			receipt, err := service.UploadReceipt("user1", "lunch.jpg", []byte("image data"), "image/jpeg")
			Expect(err).NotTo(HaveOccurred())
			storage.deleteErr = errors.New("file not found")

			Expect(service.DeleteReceipt("user1", receipt.ID)).To(Succeed())
			_, err = db.GetReceipt(receipt.ID)
			Expect(err).To(MatchError(ErrNotFound))
		})
	})
})
