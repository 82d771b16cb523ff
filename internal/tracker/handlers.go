package tracker

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error response with CORS headers set
func writeError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	writeJSON(w, code, map[string]string{"error": message})
}

// writeServiceError maps service errors to HTTP status codes. Anything
// unrecognized is treated as a validation failure; callers handle their own
// internal errors before reaching here.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, "Not found", http.StatusNotFound)
	case errors.Is(err, ErrAlreadyProcessing):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrReceiptAttached):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrReceiptNotReviewable):
		writeError(w, err.Error(), http.StatusConflict)
	default:
		writeError(w, err.Error(), http.StatusBadRequest)
	}
}

// decodeBody decodes a JSON request body into v
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// handleHealth is the unauthenticated liveness endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUploadReceipt handles multipart receipt upload. The file lands in
// storage and a pending record is created; extraction is triggered separately.
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	// Cap the whole request body; the slack covers multipart framing so a
	// file right at the limit still gets through
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize+64<<10)

	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		message := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			message = "File is too large. Maximum size is 10MB."
		}
		writeError(w, message, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, "No file was selected. Please choose a file to upload.", http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mimeTypeForExt(filepath.Ext(header.Filename))
	}

	receipt, err := s.service.UploadReceipt(userIDFrom(r), header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error uploading receipt", "filename", header.Filename, "error", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, receipt)
}

// mimeTypeForExt guesses a MIME type when the upload did not declare one
func mimeTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".heic", ".heif":
		return "image/heic"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// handleCaptureReceipt creates a receipt from a base64 camera capture
func (s *Server) handleCaptureReceipt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Image    string `json:"image"`
		MimeType string `json:"mimeType"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	receipt, err := s.service.CaptureReceipt(userIDFrom(r), req.Image, req.MimeType)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, receipt)
}

// handleListReceipts returns the user's receipts, optionally filtered by the
// status query parameter ("pending" means awaiting review)
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListReceipts(userIDFrom(r), r.URL.Query().Get("status"))
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, receipts)
}

// handleGetReceipt returns a single receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.service.GetReceipt(userIDFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}

// handleGetReceiptFile returns the original uploaded file
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetReceiptFile(userIDFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteReceipt deletes a receipt and its file
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteReceipt(userIDFrom(r), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleProcessReceipt triggers background extraction. The response returns
// immediately; clients poll the status endpoint.
func (s *Server) handleProcessReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.service.ProcessReceipt(userIDFrom(r), id); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":    "processing",
		"receiptId": id,
	})
}

// receiptStatus is the polling projection of a receipt: just enough for a
// client to decide whether to keep waiting or open the review screen
type receiptStatus struct {
	ReceiptID        string           `json:"receiptId"`
	ProcessingStatus ProcessingStatus `json:"processingStatus"`
	IsDuplicate      bool             `json:"isDuplicate"`
	DuplicateOfID    string           `json:"duplicateOfId,omitempty"`
	AIConfidence     *float64         `json:"aiConfidence,omitempty"`
}

// handleReceiptStatus returns the processing status projection
func (s *Server) handleReceiptStatus(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.service.GetReceipt(userIDFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, receiptStatus{
		ReceiptID:        receipt.ID,
		ProcessingStatus: receipt.ProcessingStatus,
		IsDuplicate:      receipt.IsDuplicate,
		DuplicateOfID:    receipt.DuplicateOfID,
		AIConfidence:     receipt.AIConfidence,
	})
}

// handleAcceptReceipt converts one reviewed receipt into an expense
func (s *Server) handleAcceptReceipt(w http.ResponseWriter, r *http.Request) {
	var payload ExpensePayload
	if !decodeBody(w, r, &payload) {
		return
	}

	expense, err := s.service.AcceptReceipt(userIDFrom(r), r.PathValue("id"), &payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, expense)
}

// handleAcceptReceiptBatch converts several receipts into a single expense.
// The body is flat: receiptIds sits alongside the expense fields.
func (s *Server) handleAcceptReceiptBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExpensePayload
		ReceiptIDs []string `json:"receiptIds"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	// Any bad id in the batch is a validation failure of the whole request,
	// not a state conflict on one receipt
	expense, err := s.service.AcceptReceiptBatch(userIDFrom(r), req.ReceiptIDs, &req.ExpensePayload)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, expense)
}
