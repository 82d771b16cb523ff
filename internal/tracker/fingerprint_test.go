package tracker

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Fingerprint", func() {
	It("should be deterministic", func() {
		a := Fingerprint("Acme Supplies", 42.50, "2025-02-20")
		b := Fingerprint("Acme Supplies", 42.50, "2025-02-20")
		Expect(a).To(Equal(b))
	})

	It("should be 16 hex characters", func() {
		Expect(Fingerprint("Acme", 1.00, "2025-01-01")).To(HaveLen(16))
		Expect(Fingerprint("Acme", 1.00, "2025-01-01")).To(MatchRegexp("^[0-9a-f]{16}$"))
	})

	It("should ignore vendor case and surrounding whitespace", func() {
		a := Fingerprint("  Acme Supplies  ", 42.50, "2025-02-20")
		b := Fingerprint("acme supplies", 42.50, "2025-02-20")
		Expect(a).To(Equal(b))
	})

	It("should treat amounts equal to the cent as equal", func() {
		a := Fingerprint("Acme", 42.5, "2025-02-20")
		b := Fingerprint("Acme", 42.50, "2025-02-20")
		Expect(a).To(Equal(b))
	})

	It("should differ when the amount differs", func() {
		a := Fingerprint("Acme", 42.50, "2025-02-20")
		b := Fingerprint("Acme", 42.51, "2025-02-20")
		Expect(a).NotTo(Equal(b))
	})

	It("should differ when the date differs", func() {
		a := Fingerprint("Acme", 42.50, "2025-02-20")
		b := Fingerprint("Acme", 42.50, "2025-02-21")
		Expect(a).NotTo(Equal(b))
	})

	It("should differ when the vendor differs beyond case", func() {
		a := Fingerprint("Acme", 42.50, "2025-02-20")
		b := Fingerprint("Acme Inc", 42.50, "2025-02-20")
		Expect(a).NotTo(Equal(b))
	})
})
