package receipt

import (
	"time"

	"github.com/zombor/receipt-drafts/internal/extraction"
)

// Run sources
const (
	SourceUpload    = "upload"
	SourceText      = "text"
	SourceReextract = "reextract"
	SourceRescan    = "rescan"
)

// Run records one extraction: the model reply it started from and everything
// the pipeline made of it. Runs are kept for diagnostics; confirming drafts
// happens elsewhere.
type Run struct {
	ID          string                  `json:"id"`
	Source      string                  `json:"source"`
	ParentID    string                  `json:"parent_id,omitempty"` // run this one was re-extracted or re-scanned from
	Filename    string                  `json:"filename,omitempty"`  // stored receipt image, empty for text runs
	ContentType string                  `json:"content_type,omitempty"`
	RawResponse string                  `json:"raw_response"`
	Drafts      []extraction.Draft      `json:"drafts"`
	Diagnostics []extraction.Diagnostic `json:"diagnostics"`
	Origin      extraction.Origin       `json:"origin,omitempty"`
	Strategy    string                  `json:"strategy,omitempty"`
	Failure     extraction.FailureKind  `json:"failure,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

// Succeeded reports whether the run produced at least one draft
func (r *Run) Succeeded() bool {
	return r.Failure == "" && len(r.Drafts) > 0
}
