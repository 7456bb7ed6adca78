package scanning

// Scanner asks a generative model to read a receipt. It returns the model's
// reply untouched; turning it into drafts is the extraction package's job.
type Scanner interface {
	// ScanReceipt sends a receipt image/PDF to the model and returns its raw text reply
	ScanReceipt(imageData []byte, contentType string) (string, error)
	// Close closes the scanner and releases resources
	Close() error
}
