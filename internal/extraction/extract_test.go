package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Extract", func() {
	var (
		cfg    Config
		text   string
		result Result
		err    error
	)

	BeforeEach(func() {
		cfg = DefaultConfig()
	})

	JustBeforeEach(func() {
		result, err = New(cfg).Extract(text)
	})

	failureKind := func() FailureKind {
		var f *Failure
		Expect(errors.As(err, &f)).To(BeTrue())
		return f.Kind
	}

	diagKinds := func() []DiagnosticKind {
		out := make([]DiagnosticKind, 0, len(result.Diagnostics))
		for _, d := range result.Diagnostics {
			out = append(out, d.Kind)
		}
		return out
	}

	When("given a clean array with every field", func() {
		BeforeEach(func() {
			text = `[{"amount":45.99,"isExpense":true,"note":"Groceries","category":"Food","date":"2025-01-15"}]`
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("maps every field", func() {
			Expect(result.Drafts).To(HaveLen(1))
			d := result.Drafts[0]
			Expect(d.Amount.String()).To(Equal("45.99"))
			Expect(d.IsExpense).To(BeTrue())
			Expect(*d.Note).To(Equal("Groceries"))
			Expect(*d.Category).To(Equal("Food"))
			Expect(*d.Date).To(Equal(civil.Date{Year: 2025, Month: 1, Day: 15}))
		})

		It("reports the winning candidate and strategy", func() {
			Expect(result.Origin).To(Equal(OriginBareArray))
			Expect(result.Strategy).To(Equal("direct-array"))
		})

		It("has no diagnostics", func() {
			Expect(result.Diagnostics).To(BeEmpty())
		})
	})

	When("the array is fenced and wrapped in prose", func() {
		BeforeEach(func() {
			text = "Sure! Here is what I found on the receipt:\n\n```json\n[{\"amount\":\"$10.99\",\"type\":\"income\"}]\n```\n\nLet me know if you need anything else."
		})

		It("extracts the fenced draft", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Origin).To(Equal(OriginFencedBlock))
			Expect(result.Drafts).To(HaveLen(1))
			d := result.Drafts[0]
			Expect(d.Amount.String()).To(Equal("10.99"))
			Expect(d.IsExpense).To(BeFalse())
			Expect(d.Note).To(BeNil())
			Expect(d.Date).To(BeNil())
		})

		It("yields the same drafts as the bare JSON", func() {
			bare, bareErr := New(cfg).Extract(`[{"amount":"$10.99","type":"income"}]`)
			Expect(bareErr).NotTo(HaveOccurred())
			Expect(result.Drafts).To(Equal(bare.Drafts))
		})

		It("records the missing date", func() {
			Expect(diagKinds()).To(ConsistOf(DateMissing))
			Expect(result.Diagnostics[0].Record).To(Equal(0))
			Expect(result.Diagnostics[0].Origin).To(Equal(OriginFencedBlock))
		})
	})

	When("prose holds a different array than the fence", func() {
		BeforeEach(func() {
			text = "An example row looks like [{\"amount\": 99}].\n```\n[{\"amount\": 1}, {\"amount\": 2}]\n```"
		})

		It("uses the fenced block", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Drafts).To(HaveLen(2))
			Expect(result.Drafts[0].Amount.String()).To(Equal("1"))
		})
	})

	When("the records are under a wrapper key", func() {
		BeforeEach(func() {
			text = `{"transactions":[{"amount":5}]}`
		})

		It("unwraps them and applies the direction default", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Strategy).To(Equal("wrapped-object"))
			Expect(result.Drafts).To(HaveLen(1))
			Expect(result.Drafts[0].Amount.String()).To(Equal("5"))
			Expect(result.Drafts[0].IsExpense).To(BeTrue())
			Expect(result.Drafts[0].Date).To(BeNil())
		})

		It("records the defaulted direction and missing date", func() {
			Expect(diagKinds()).To(ConsistOf(DirectionDefaulted, DateMissing))
		})
	})

	When("the response is a single object", func() {
		BeforeEach(func() {
			text = `The receipt shows {"total": "12.30", "merchant": "Corner Store", "date": "03/14/2025"} as the purchase.`
		})

		It("returns a batch of one", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Strategy).To(Equal("single-object"))
			Expect(result.Drafts).To(HaveLen(1))
			Expect(*result.Drafts[0].Note).To(Equal("Corner Store"))
			Expect(*result.Drafts[0].Date).To(Equal(civil.Date{Year: 2025, Month: 3, Day: 14}))
		})
	})

	When("there is no structure", func() {
		BeforeEach(func() {
			text = "I see a receipt for coffee."
		})

		It("fails with NoStructure", func() {
			Expect(err).To(MatchError(ErrNoStructure))
			Expect(failureKind()).To(Equal(NoStructure))
			Expect(result.Drafts).To(BeEmpty())
		})

		It("keeps the raw text on the failure", func() {
			var f *Failure
			Expect(errors.As(err, &f)).To(BeTrue())
			Expect(f.Raw).To(Equal(text))
		})
	})

	When("every record is rejected", func() {
		BeforeEach(func() {
			text = `[{"amount":0},{"amount":-3}]`
		})

		It("fails with AllRejected", func() {
			Expect(err).To(MatchError(ErrAllRejected))
			Expect(failureKind()).To(Equal(AllRejected))
		})

		It("reports one rejection per record in order", func() {
			Expect(diagKinds()).To(Equal([]DiagnosticKind{ZeroAmount, InvalidAmount}))
			Expect(result.Diagnostics[0].Record).To(Equal(0))
			Expect(result.Diagnostics[1].Record).To(Equal(1))
			Expect(result.Diagnostics[1].Raw).To(Equal("-3"))
		})
	})

	When("an amount has an absurd exponent", func() {
		BeforeEach(func() {
			text = `[{"amount":1e99999999,"isExpense":true},{"amount":5,"isExpense":true}]`
		})

		It("rejects that record and keeps the other", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Drafts).To(HaveLen(1))
			Expect(result.Drafts[0].Amount.String()).To(Equal("5"))
			Expect(result.Diagnostics[0].Kind).To(Equal(InvalidAmount))
			Expect(result.Diagnostics[0].Record).To(Equal(0))
		})

		It("leaves drafts that serialize quickly", func() {
			start := time.Now()
			_, marshalErr := json.Marshal(result.Drafts)
			Expect(marshalErr).NotTo(HaveOccurred())
			Expect(time.Since(start)).To(BeNumerically("<", time.Second))
		})
	})

	When("amounts are missing", func() {
		BeforeEach(func() {
			text = `[{"note":"a"},{"amount":null}]`
		})

		It("fails with AllRejected rather than an empty success", func() {
			Expect(failureKind()).To(Equal(AllRejected))
			Expect(diagKinds()).To(Equal([]DiagnosticKind{InvalidAmount, InvalidAmount}))
		})
	})

	When("some records survive", func() {
		BeforeEach(func() {
			text = `[{"amount":"abc","date":"2025-01-01"},{"amount":3,"isExpense":false,"date":"2025-01-02"},"stray",{"amount":0}]`
		})

		It("keeps the valid ones", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Drafts).To(HaveLen(1))
			Expect(result.Drafts[0].IsExpense).To(BeFalse())
		})

		It("reports the others", func() {
			Expect(diagKinds()).To(Equal([]DiagnosticKind{InvalidAmount, NotARecord, ZeroAmount}))
			Expect(result.Diagnostics[1].Record).To(Equal(2))
		})
	})

	When("the array is empty", func() {
		BeforeEach(func() {
			text = `[]`
		})

		It("fails with AllRejected", func() {
			Expect(failureKind()).To(Equal(AllRejected))
		})
	})

	When("the fenced block is prose", func() {
		BeforeEach(func() {
			text = "```\nno transactions here\n```"
		})

		It("fails with Unparseable", func() {
			Expect(err).To(MatchError(ErrUnparseable))
			Expect(diagKinds()).To(ConsistOf(CandidateRejected))
		})
	})

	When("the JSON is malformed", func() {
		BeforeEach(func() {
			text = `[{amount: 12.5, note: 'Tea',}]`
		})

		When("repair is disabled", func() {
			BeforeEach(func() {
				cfg.Repair = false
			})

			It("fails with Unparseable", func() {
				Expect(failureKind()).To(Equal(Unparseable))
			})
		})

		When("repair is enabled", func() {
			It("recovers the draft", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Origin).To(Equal(Origin("bare-array+repaired")))
				Expect(*result.Drafts[0].Note).To(Equal("Tea"))
				Expect(result.Drafts[0].Amount.String()).To(Equal("12.5"))
			})

			It("still records the original decode failure", func() {
				Expect(diagKinds()).To(ContainElement(CandidateRejected))
			})
		})
	})

	When("records preserve their source order", func() {
		BeforeEach(func() {
			rows := make([]string, 0, 20)
			for i := 1; i <= 20; i++ {
				rows = append(rows, fmt.Sprintf(`{"amount":%d,"note":"row %d","isExpense":true,"date":"2025-02-01"}`, i, i))
			}
			text = "[" + strings.Join(rows, ",") + "]"
		})

		It("returns every record in order", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Drafts).To(HaveLen(20))
			for i, d := range result.Drafts {
				Expect(*d.Note).To(Equal(fmt.Sprintf("row %d", i+1)))
				Expect(d.Amount.IntPart()).To(Equal(int64(i + 1)))
			}
		})
	})

	Describe("idempotence", func() {
		BeforeEach(func() {
			text = "```json\n{\"items\": [{\"amount\": \"1,234.50\", \"type\": \"weird\", \"Category\": \"Rent\"}, {\"amount\": 0}]}\n```"
		})

		It("returns identical results on repeated runs", func() {
			again, againErr := New(cfg).Extract(text)
			Expect(err).NotTo(HaveOccurred())
			Expect(againErr).NotTo(HaveOccurred())
			Expect(again).To(Equal(result))
		})

		It("gives the same answer from concurrent callers", func() {
			x := New(cfg)
			var wg sync.WaitGroup
			results := make([]Result, 8)
			for i := range results {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i], _ = x.Extract(text)
				}(i)
			}
			wg.Wait()
			for _, r := range results {
				Expect(r).To(Equal(result))
			}
		})
	})

	Describe("package Extract", func() {
		It("uses the default policy", func() {
			res, err := Extract(`[{"amount": 2}]`)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Drafts[0].IsExpense).To(BeTrue())
		})
	})
})
