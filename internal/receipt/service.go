package receipt

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zombor/receipt-drafts/internal/extraction"
	"github.com/zombor/receipt-drafts/internal/scanning"
)

// ErrNoImage is returned when re-scanning a run that was not made from an upload
var ErrNoImage = errors.New("run has no stored receipt image")

// IDGenerator generates unique IDs for runs
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service scans receipts, extracts transaction drafts from the model reply and
// records every run
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	extractor   *extraction.Extractor
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner scanning.Scanner, storage Storage, extractor *extraction.Extractor) *Service {
	return NewServiceWithDeps(db, scanner, storage, extractor, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, extractor *extraction.Extractor, idGen IDGenerator, timeSrc TimeSource) *Service {
	if extractor == nil {
		extractor = extraction.New(extraction.DefaultConfig())
	}
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		extractor:   extractor,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename strips special characters from phone-generated names and
// truncates the base to 50 characters
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	ext = unsafeFilenameChars.ReplaceAllString(ext[min(len(ext), 1):], "")
	if ext != "" {
		ext = "." + ext
	}

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = repeatedSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// newRun starts a run with a fresh ID and timestamp
func (s *Service) newRun(source string) *Run {
	return &Run{
		ID:        s.idGenerator.Generate(),
		Source:    source,
		CreatedAt: s.timeSource.Now(),
	}
}

// extract runs the pipeline over run.RawResponse and records the outcome on
// the run. An extraction failure is part of the run, not an error.
func (s *Service) extract(run *Run) {
	result, err := s.extractor.Extract(run.RawResponse)

	run.Drafts = result.Drafts
	run.Diagnostics = result.Diagnostics
	run.Origin = result.Origin
	run.Strategy = result.Strategy

	for _, d := range result.Diagnostics {
		slog.Debug("Extraction diagnostic",
			"run_id", run.ID,
			"kind", d.Kind,
			"record", d.Record,
			"field", d.Field,
			"origin", d.Origin,
			"raw", d.Raw,
			"detail", d.Detail,
		)
	}

	var failure *extraction.Failure
	if errors.As(err, &failure) {
		run.Failure = failure.Kind
		slog.Warn("Extraction failed",
			"run_id", run.ID,
			"kind", failure.Kind,
			"diagnostics", len(result.Diagnostics),
			"response_size", len(run.RawResponse),
		)
		return
	}

	slog.Info("Extraction succeeded",
		"run_id", run.ID,
		"drafts", len(result.Drafts),
		"diagnostics", len(result.Diagnostics),
		"origin", result.Origin,
		"strategy", result.Strategy,
	)
}

// ProcessReceipt stores an uploaded receipt, asks the model to read it and
// extracts drafts from the reply
func (s *Service) ProcessReceipt(filename string, data []byte, contentType string) (*Run, error) {
	run := s.newRun(SourceUpload)
	run.ContentType = contentType

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", run.ID, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}
	run.Filename = savedPath

	raw, err := s.scanner.ScanReceipt(data, contentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}
	run.RawResponse = raw

	s.extract(run)

	if err := s.db.SaveRun(run); err != nil {
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving run to database: %w", err)
	}
	return run, nil
}

// ExtractText runs the pipeline on a model reply obtained elsewhere
func (s *Service) ExtractText(text string) (*Run, error) {
	run := s.newRun(SourceText)
	run.RawResponse = text

	s.extract(run)

	if err := s.db.SaveRun(run); err != nil {
		return nil, fmt.Errorf("saving run to database: %w", err)
	}
	return run, nil
}

// Reextract runs the pipeline again over a stored reply, typically after the
// extraction policy changed. The original run is left untouched.
func (s *Service) Reextract(id string) (*Run, error) {
	parent, err := s.db.GetRun(id)
	if err != nil {
		return nil, fmt.Errorf("getting run: %w", err)
	}

	run := s.newRun(SourceReextract)
	run.ParentID = parent.ID
	run.Filename = parent.Filename
	run.ContentType = parent.ContentType
	run.RawResponse = parent.RawResponse

	s.extract(run)

	if err := s.db.SaveRun(run); err != nil {
		return nil, fmt.Errorf("saving run to database: %w", err)
	}
	return run, nil
}

// Rescan asks the model to read a stored receipt image again, giving a fresh
// reply to extract from
func (s *Service) Rescan(id string) (*Run, error) {
	parent, err := s.db.GetRun(id)
	if err != nil {
		return nil, fmt.Errorf("getting run: %w", err)
	}
	if parent.Filename == "" {
		return nil, ErrNoImage
	}

	data, err := s.storage.Get(parent.Filename)
	if err != nil {
		return nil, fmt.Errorf("getting receipt file: %w", err)
	}

	raw, err := s.scanner.ScanReceipt(data, parent.ContentType)
	if err != nil {
		slog.Error("Failed to rescan receipt", "run_id", parent.ID, "error", err)
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}

	run := s.newRun(SourceRescan)
	run.ParentID = parent.ID
	run.Filename = parent.Filename
	run.ContentType = parent.ContentType
	run.RawResponse = raw

	s.extract(run)

	if err := s.db.SaveRun(run); err != nil {
		return nil, fmt.Errorf("saving run to database: %w", err)
	}
	return run, nil
}

// GetRun retrieves a run by ID
func (s *Service) GetRun(id string) (*Run, error) {
	run, err := s.db.GetRun(id)
	if err != nil {
		return nil, fmt.Errorf("getting run: %w", err)
	}
	return run, nil
}

// ListRuns returns all runs, newest first
func (s *Service) ListRuns() ([]*Run, error) {
	runs, err := s.db.ListRuns()
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// DeleteRun removes a run. Its image is deleted too unless another run still
// refers to it.
func (s *Service) DeleteRun(id string) error {
	run, err := s.db.GetRun(id)
	if err != nil {
		return fmt.Errorf("getting run for deletion: %w", err)
	}

	if err := s.db.DeleteRun(id); err != nil {
		return fmt.Errorf("deleting run from database: %w", err)
	}

	if run.Filename == "" {
		return nil
	}
	runs, err := s.db.ListRuns()
	if err != nil {
		slog.Warn("Failed to check image references", "filename", run.Filename, "error", err)
		return nil
	}
	for _, other := range runs {
		if other.Filename == run.Filename {
			return nil
		}
	}
	if err := s.storage.Delete(run.Filename); err != nil {
		// Log error but the run is already gone
		slog.Warn("Failed to delete file", "filename", run.Filename, "error", err)
	}
	return nil
}

// GetRunFile retrieves the receipt image a run was scanned from
func (s *Service) GetRunFile(id string) ([]byte, string, error) {
	run, err := s.db.GetRun(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting run: %w", err)
	}
	if run.Filename == "" {
		return nil, "", ErrNoImage
	}

	data, err := s.storage.Get(run.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}
	return data, run.ContentType, nil
}
