package extraction

import (
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Scan", func() {
	var (
		text       string
		candidates []Candidate
	)

	JustBeforeEach(func() {
		candidates = Scan(text)
	})

	When("the text has no brackets", func() {
		BeforeEach(func() {
			text = "I see a receipt for coffee."
		})

		It("returns no candidates", func() {
			Expect(candidates).To(BeEmpty())
		})
	})

	When("the text is a bare array", func() {
		BeforeEach(func() {
			text = `  [{"amount": 1}]  `
		})

		It("returns one bare-array candidate", func() {
			Expect(candidates).To(HaveLen(1))
			Expect(candidates[0].Origin).To(Equal(OriginBareArray))
			Expect(candidates[0].Text).To(Equal(`[{"amount": 1}]`))
		})

		It("records the span in the raw text", func() {
			Expect(text[candidates[0].Start:candidates[0].End]).To(Equal(candidates[0].Text))
		})
	})

	When("a fenced block holds the array", func() {
		BeforeEach(func() {
			text = "Here you go:\n```json\n[{\"amount\": 1}]\n```\nLet me know."
		})

		It("drops the bare-array duplicate of the fenced body", func() {
			Expect(candidates).To(HaveLen(1))
			Expect(candidates[0].Origin).To(Equal(OriginFencedBlock))
			Expect(candidates[0].Text).To(Equal(`[{"amount": 1}]`))
		})
	})

	When("prose before the fence contains a different array", func() {
		BeforeEach(func() {
			text = "Format was [1, 2].\n```\n[{\"amount\": 3}]\n```"
		})

		It("puts the fenced block first", func() {
			Expect(candidates).To(HaveLen(2))
			Expect(candidates[0].Origin).To(Equal(OriginFencedBlock))
			Expect(candidates[1].Origin).To(Equal(OriginBareArray))
			Expect(candidates[1].Text).To(Equal("[1, 2]"))
		})
	})

	When("there are several fenced blocks", func() {
		BeforeEach(func() {
			text = "```\n{\"a\": 1}\n```\nand\n```json\n{\"b\": 2}\n```"
		})

		It("returns them in order before any bare span", func() {
			Expect(len(candidates)).To(BeNumerically(">=", 2))
			Expect(candidates[0].Text).To(Equal(`{"a": 1}`))
			Expect(candidates[1].Text).To(Equal(`{"b": 2}`))
		})
	})

	When("a fence is never closed", func() {
		BeforeEach(func() {
			text = "```json\n[{\"amount\": 1}]"
		})

		It("falls back to the bare array", func() {
			Expect(candidates).To(HaveLen(1))
			Expect(candidates[0].Origin).To(Equal(OriginBareArray))
		})
	})

	When("the only structure is an object", func() {
		BeforeEach(func() {
			text = `Result: {"amount": 5, "tags": ["a", "b"]} done`
		})

		It("returns the object, not the array nested in it", func() {
			Expect(candidates).To(HaveLen(1))
			Expect(candidates[0].Origin).To(Equal(OriginBareObject))
			Expect(candidates[0].Text).To(Equal(`{"amount": 5, "tags": ["a", "b"]}`))
		})
	})

	When("brackets appear inside string literals", func() {
		BeforeEach(func() {
			text = `[{"note": "a ] tricky [ note \" ]"}] trailing`
		})

		It("does not let them end the span", func() {
			Expect(candidates).To(HaveLen(1))
			Expect(candidates[0].Text).To(Equal(`[{"note": "a ] tricky [ note \" ]"}]`))
		})
	})

	When("an opener is never balanced", func() {
		BeforeEach(func() {
			text = `[ broken and then [{"amount": 2}]`
		})

		It("keeps looking past it", func() {
			Expect(candidates).To(HaveLen(1))
			Expect(candidates[0].Text).To(Equal(`[{"amount": 2}]`))
		})
	})

	When("brackets are mismatched", func() {
		BeforeEach(func() {
			text = `[} nothing here`
		})

		It("returns no candidates", func() {
			Expect(candidates).To(BeEmpty())
		})
	})

	When("a mismatched closer comes before a valid array", func() {
		BeforeEach(func() {
			text = `[} then [{"amount": 1}]`
		})

		It("resumes after the mismatch", func() {
			Expect(candidates).To(HaveLen(1))
			Expect(candidates[0].Text).To(Equal(`[{"amount": 1}]`))
		})
	})

	When("sibling spans follow each other", func() {
		BeforeEach(func() {
			text = `{"a": 1} then [2] then [3]`
		})

		It("prefers the first array over an earlier object", func() {
			Expect(candidates).To(HaveLen(1))
			Expect(candidates[0].Origin).To(Equal(OriginBareArray))
			Expect(candidates[0].Text).To(Equal("[2]"))
		})
	})

	DescribeTable("cost grows linearly with unbalanced input",
		func(unit string) {
			input := strings.Repeat(unit, 200000)
			start := time.Now()
			Scan(input)
			Expect(time.Since(start)).To(BeNumerically("<", 2*time.Second))
		},
		Entry("unclosed brackets", "["),
		Entry("unclosed braces", "{"),
		Entry("mixed openers", "{["),
		Entry("openers with an unterminated string", "[\""),
		Entry("alternating mismatches", "[}"),
	)
})
