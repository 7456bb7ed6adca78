package receipt

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-drafts/internal/extraction"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		db     *BoltDB
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		db, err = NewBoltDB(filepath.Join(tmpDir, "test.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	extractedRun := func(id string, at time.Time) *Run {
		result, err := extraction.Extract(`[{"amount":"$12.50","type":"refund","note":"Returned shoes","date":"2024-03-02"}]`)
		Expect(err).NotTo(HaveOccurred())
		return &Run{
			ID:          id,
			Source:      SourceText,
			RawResponse: "raw",
			Drafts:      result.Drafts,
			Diagnostics: result.Diagnostics,
			Origin:      result.Origin,
			Strategy:    result.Strategy,
			CreatedAt:   at,
		}
	}

	Describe("SaveRun and GetRun", func() {
		var (
			saved *Run
			got   *Run
			err   error
		)

		BeforeEach(func() {
			saved = extractedRun("run-1", time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC))
			Expect(db.SaveRun(saved)).To(Succeed())
		})

		JustBeforeEach(func() {
			got, err = db.GetRun("run-1")
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("round-trips the drafts", func() {
			Expect(got.Drafts).To(HaveLen(1))
			d := got.Drafts[0]
			Expect(d.Amount.Equal(saved.Drafts[0].Amount)).To(BeTrue())
			Expect(d.IsExpense).To(BeFalse())
			Expect(*d.Note).To(Equal("Returned shoes"))
			Expect(d.Date.String()).To(Equal("2024-03-02"))
		})

		It("round-trips the run metadata", func() {
			Expect(got.Origin).To(Equal(extraction.OriginBareArray))
			Expect(got.Strategy).To(Equal("direct-array"))
			Expect(got.Diagnostics).To(Equal(saved.Diagnostics))
			Expect(got.CreatedAt.Equal(saved.CreatedAt)).To(BeTrue())
		})
	})

	Describe("SaveRun", func() {
		It("requires an ID", func() {
			Expect(db.SaveRun(&Run{})).To(MatchError("run ID is required"))
		})
	})

	Describe("GetRun", func() {
		It("returns ErrRunNotFound for unknown IDs", func() {
			_, err := db.GetRun("nonexistent")
			Expect(err).To(MatchError(ErrRunNotFound))
			Expect(err).To(MatchError("run not found: nonexistent"))
		})
	})

	Describe("ListRuns", func() {
		When("runs exist", func() {
			BeforeEach(func() {
				base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
				Expect(db.SaveRun(&Run{ID: "b", CreatedAt: base})).To(Succeed())
				Expect(db.SaveRun(&Run{ID: "c", CreatedAt: base.Add(time.Hour)})).To(Succeed())
				Expect(db.SaveRun(&Run{ID: "a", CreatedAt: base})).To(Succeed())
			})

			It("returns them newest first with IDs breaking ties", func() {
				runs, err := db.ListRuns()
				Expect(err).NotTo(HaveOccurred())
				ids := make([]string, 0, len(runs))
				for _, r := range runs {
					ids = append(ids, r.ID)
				}
				Expect(ids).To(Equal([]string{"c", "a", "b"}))
			})
		})

		When("no runs exist", func() {
			It("returns an empty list", func() {
				runs, err := db.ListRuns()
				Expect(err).NotTo(HaveOccurred())
				Expect(runs).To(BeEmpty())
			})
		})
	})

	Describe("DeleteRun", func() {
		It("removes the run", func() {
			Expect(db.SaveRun(&Run{ID: "gone"})).To(Succeed())
			Expect(db.DeleteRun("gone")).To(Succeed())
			_, err := db.GetRun("gone")
			Expect(err).To(MatchError(ErrRunNotFound))
		})

		It("returns ErrRunNotFound for unknown IDs", func() {
			Expect(db.DeleteRun("nonexistent")).To(MatchError(ErrRunNotFound))
		})
	})

	Describe("reopening", func() {
		It("keeps runs across restarts", func() {
			Expect(db.SaveRun(&Run{ID: "persisted"})).To(Succeed())
			Expect(db.Close()).To(Succeed())

			var err error
			db, err = NewBoltDB(filepath.Join(tmpDir, "test.db"))
			Expect(err).NotTo(HaveOccurred())
			_, err = db.GetRun("persisted")
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
