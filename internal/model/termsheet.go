package model

import (
	"path/filepath"
	"strings"
	"time"
)

// TermsheetStatus is the review state of a termsheet record.
type TermsheetStatus string

const (
	StatusPending      TermsheetStatus = "PENDING"
	StatusProcessing   TermsheetStatus = "PROCESSING"
	StatusToBeAccepted TermsheetStatus = "TO BE ACCEPTED"
	StatusFailed       TermsheetStatus = "FAILED"
)

// FileRole names the slot a file occupies on a termsheet.
type FileRole string

const (
	RoleTermsheet  FileRole = "ourtermsheet"
	RoleMapsheet   FileRole = "mapsheet"
	RoleStructured FileRole = "structuredsheet"
	RoleValidated  FileRole = "validatedsheet"
	RoleColoured   FileRole = "coloursheet"
)

// Column returns the termsheets column holding the file id for the role.
func (r FileRole) Column() string {
	return string(r) + "_file_id"
}

// Valid reports whether r is a known role.
func (r FileRole) Valid() bool {
	switch r {
	case RoleTermsheet, RoleMapsheet, RoleStructured, RoleValidated, RoleColoured:
		return true
	}
	return false
}

// FileType classifies a stored file.
type FileType string

const (
	FileTypePDF   FileType = "PDF"
	FileTypeWord  FileType = "WORD_DOCUMENT"
	FileTypeExcel FileType = "EXCEL"
	FileTypeCSV   FileType = "CSV"
	FileTypeJSON  FileType = "JSON"
	FileTypeImage FileType = "IMAGE"
	FileTypeOther FileType = "OTHER"
)

// DetectFileType classifies a file by extension.
func DetectFileType(name string) FileType {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FileTypePDF
	case ".doc", ".docx":
		return FileTypeWord
	case ".xls", ".xlsx":
		return FileTypeExcel
	case ".csv":
		return FileTypeCSV
	case ".json":
		return FileTypeJSON
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return FileTypeImage
	}
	return FileTypeOther
}

// FileRef points at a stored artifact.
type FileRef struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Type      FileType  `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// Termsheet is the persisted termsheet record.
type Termsheet struct {
	ID        string              `json:"id"`
	OrgID     string              `json:"org_id"`
	Title     string              `json:"title"`
	Status    TermsheetStatus     `json:"status"`
	Files     map[FileRole]string `json:"files"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Recipient is an organisation member who receives results by email.
type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
