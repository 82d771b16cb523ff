package extraction

// LineItem is a single purchased item read off a receipt.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	Total       float64 `json:"total"`
}

// FieldConfidence holds per-field confidence scores (0-1)
type FieldConfidence struct {
	Vendor float64 `json:"vendor"`
	Amount float64 `json:"amount"`
	Date   float64 `json:"date"`
	Items  float64 `json:"items"`
}

// Result contains the structured data extracted from a receipt.
// Fields the model could not read are nil rather than guessed.
type Result struct {
	Vendor          *string         `json:"vendor"`
	Amount          *float64        `json:"amount"`
	Date            *string         `json:"date"` // YYYY-MM-DD
	Currency        string          `json:"currency"`
	Items           []LineItem      `json:"items"`
	Subtotal        *float64        `json:"subtotal"`
	Tax             *float64        `json:"tax"`
	Tip             *float64        `json:"tip"`
	Total           *float64        `json:"total"`
	PaymentMethod   *string         `json:"paymentMethod"`
	Category        *string         `json:"category"`
	Confidence      float64         `json:"confidence"`
	FieldConfidence FieldConfidence `json:"fieldConfidence"`
	RawText         string          `json:"rawText"`
}

// Extractor defines the interface for receipt data extraction
type Extractor interface {
	// ExtractReceipt analyzes a receipt image/PDF and extracts structured data.
	// categories is the caller's list of expense category names; the model is
	// asked to pick its category guess from that list.
	ExtractReceipt(fileData []byte, contentType string, categories []string) (*Result, error)
	// Close closes the extractor and releases resources
	Close() error
}
