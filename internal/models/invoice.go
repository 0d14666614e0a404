package models

import "time"

// Invoice is the expense record legalizing an approved visit. At most one
// exists per visit; files accumulate on it until the legalization deadline.
type Invoice struct {
	ID          int64     `json:"id"`
	VisitID     int64     `json:"visit_id"`
	Description string    `json:"description"`
	Total       float64   `json:"total"`
	CreatedAt   time.Time `json:"created_at"`

	Files []*InvoiceFile `json:"files,omitempty"`
}

// InvoiceFile is one uploaded piece of expense evidence.
type InvoiceFile struct {
	ID           int64     `json:"id"`
	InvoiceID    int64     `json:"invoice_id"`
	OriginalName string    `json:"original_name"`
	StoredPath   string    `json:"stored_path"`
	UploadedAt   time.Time `json:"uploaded_at"`
}
