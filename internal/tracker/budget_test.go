package tracker

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("PeriodWindow", func() {
	When("period is monthly", func() {
		It("should cover the reporting month", func() {
			start, end := PeriodWindow(PeriodMonthly, 2025, 2)
			Expect(start).To(Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)))
			Expect(end).To(Equal(time.Date(2025, 2, 28, 23, 59, 59, 0, time.UTC)))
		})

		It("should handle December without spilling into next year", func() {
			start, end := PeriodWindow(PeriodMonthly, 2025, 12)
			Expect(start.Year()).To(Equal(2025))
			Expect(end).To(Equal(time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)))
		})
	})

	When("period is quarterly", func() {
		It("should cover the quarter containing the reporting month", func() {
			start, end := PeriodWindow(PeriodQuarterly, 2025, 5)
			Expect(start).To(Equal(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)))
			Expect(end).To(Equal(time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)))
		})

		It("should map January to the first quarter", func() {
			start, _ := PeriodWindow(PeriodQuarterly, 2025, 1)
			Expect(start.Month()).To(Equal(time.January))
		})

		It("should map December to the fourth quarter", func() {
			start, end := PeriodWindow(PeriodQuarterly, 2025, 12)
			Expect(start.Month()).To(Equal(time.October))
			Expect(end.Month()).To(Equal(time.December))
		})
	})

	When("period is yearly", func() {
		It("should cover the whole year regardless of month", func() {
			start, end := PeriodWindow(PeriodYearly, 2025, 7)
			Expect(start).To(Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
			Expect(end).To(Equal(time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)))
		})
	})
})

var _ = Describe("EvaluateBudget", func() {
	budget := func(amount float64) *Budget {
		return &Budget{ID: "b1", Amount: amount, Period: PeriodMonthly}
	}

	It("should report ok below 80 percent", func() {
		status := EvaluateBudget(budget(1000), 799.0)
		Expect(status.Status).To(Equal("ok"))
	})

	It("should report warning at exactly 80 percent", func() {
		status := EvaluateBudget(budget(1000), 800.0)
		Expect(status.Status).To(Equal("warning"))
	})

	It("should report over at exactly 100 percent", func() {
		status := EvaluateBudget(budget(1000), 1000.0)
		Expect(status.Status).To(Equal("over"))
	})

	It("should decide status on the unrounded percentage", func() {
		// 79.96% rounds to 80.0 for display but is still ok
		status := EvaluateBudget(budget(1000), 799.6)
		Expect(status.Status).To(Equal("ok"))
		Expect(status.Percentage).To(Equal(80.0))
	})

	It("should round the reported percentage to one decimal", func() {
		status := EvaluateBudget(budget(300), 100.0)
		Expect(status.Percentage).To(Equal(33.3))
	})

	It("should compute remaining, negative when over", func() {
		status := EvaluateBudget(budget(500), 650.0)
		Expect(status.Remaining).To(Equal(-150.0))
		Expect(status.Status).To(Equal("over"))
	})

	It("should report zero percentage for a zero amount", func() {
		status := EvaluateBudget(budget(0), 50.0)
		Expect(status.Percentage).To(Equal(0.0))
	})
})
