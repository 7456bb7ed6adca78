package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/receipt-drafts/internal/extraction"
	"github.com/zombor/receipt-drafts/internal/scanning"
)

const (
	maxUploadSize = int64(50 << 20) // high-resolution phone photos
	maxTextSize   = int64(1 << 20)
)

// failureCodes are the stable error codes clients key their messages off
var failureCodes = map[extraction.FailureKind]string{
	extraction.NoStructure: "no_structure",
	extraction.Unparseable: "unparseable",
	extraction.AllRejected: "all_rejected",
}

var failureMessages = map[extraction.FailureKind]string{
	extraction.NoStructure: "The model did not return any transaction data. Try scanning again.",
	extraction.Unparseable: "The model returned transaction data in a format that could not be read. Try scanning again.",
	extraction.AllRejected: "No transaction with a usable amount was found on the receipt.",
}

// corsError writes a plain text error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// writeJSON writes v as a JSON response
func writeJSON(w http.ResponseWriter, code int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeJSONError writes {"error": message} with the given status
func writeJSONError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// writeRun answers with the run, using 422 when extraction failed so clients
// can show a message specific to the failure kind
func writeRun(w http.ResponseWriter, run *Run) {
	if run.Failure == "" {
		writeJSON(w, http.StatusCreated, run)
		return
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"error":   failureCodes[run.Failure],
		"message": failureMessages[run.Failure],
		"run":     run,
	})
}

// writeServiceError maps service errors to status codes
func writeServiceError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, ErrRunNotFound):
		writeJSONError(w, http.StatusNotFound, "Run not found")
	case errors.Is(err, ErrNoImage):
		writeJSONError(w, http.StatusConflict, "Run has no stored receipt image")
	case errors.Is(err, scanning.ErrUnsupportedImage):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("Error "+action, "error", err)
		writeJSONError(w, http.StatusBadGateway, err.Error())
	}
}

// handleHealth reports liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// handleExtractText runs the pipeline on a model reply in the request body.
// The body is either raw text or {"text": "..."} with a JSON content type.
func (s *Server) handleExtractText(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTextSize))
	if err != nil {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "Text is too large. Maximum size is 1MB.")
		return
	}

	text := string(body)
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "application/json" {
		var req struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		text = req.Text
	}

	if strings.TrimSpace(text) == "" {
		writeJSONError(w, http.StatusBadRequest, "No text provided")
		return
	}

	run, err := s.service.ExtractText(text)
	if err != nil {
		writeServiceError(w, err, "extracting text")
		return
	}
	writeRun(w, run)
}

// handleUploadReceipt handles receipt upload
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		writeJSONError(w, http.StatusBadRequest, errorMsg)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		writeJSONError(w, http.StatusBadRequest, errorMsg)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeJSONError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFromExt(header.Filename)
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	run, err := s.service.ProcessReceipt(header.Filename, data, contentType)
	if err != nil {
		writeServiceError(w, err, "processing receipt")
		return
	}
	writeRun(w, run)
}

// contentTypeFromExt guesses the upload type from its extension
func contentTypeFromExt(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	return "application/octet-stream"
}

// handleListRuns returns all runs, newest first
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.service.ListRuns()
	if err != nil {
		slog.Error("Error listing runs", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleGetRun returns a single run
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.GetRun(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err, "getting run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleGetRunFile returns the receipt image of a run
func (s *Server) handleGetRunFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetRunFile(r.PathValue("id"))
	if err != nil {
		corsError(w, "File not found", http.StatusNotFound)
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteRun deletes a run
func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteRun(r.PathValue("id")); err != nil {
		if errors.Is(err, ErrRunNotFound) {
			corsError(w, "Run not found", http.StatusNotFound)
			return
		}
		slog.Error("Error deleting run", "error", err)
		corsError(w, "Error deleting run", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReextract runs the pipeline again over a stored reply
func (s *Server) handleReextract(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.Reextract(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err, "re-extracting run")
		return
	}
	writeRun(w, run)
}

// handleRescan asks the model to read a stored receipt again
func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.Rescan(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err, "re-scanning run")
		return
	}
	writeRun(w, run)
}
