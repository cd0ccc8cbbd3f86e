package export

import (
	"errors"
	"time"
)

// Format selects the export output.
type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

var (
	ErrUnsupportedFormat     = errors.New("unsupported export format")
	ErrPDFDependencyMissing  = errors.New("pdf export unavailable")
	ErrDOCXDependencyMissing = errors.New("docx export unavailable")
)

// Request describes one export.
type Request struct {
	ProjectID string
	Format    Format
}

// Result is the rendered export.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// ProjectInfo holds project metadata for the summary.
type ProjectInfo struct {
	ID           string
	Name         string
	Description  string
	OwnerName    string
	ProgressRate int
	UpdatedAt    time.Time
}

// StepInfo holds one step's rendered state.
type StepInfo struct {
	Number      int
	Name        string
	Progress    int
	IsSubmitted bool
	Sections    []SectionInfo
}

// SectionInfo is one section's rendered fields.
type SectionInfo struct {
	Label  string
	Fields []FieldInfo
}

// FieldInfo is a label/value pair for the summary table.
type FieldInfo struct {
	Label string
	Value string
}

// TemplateData feeds the summary template.
type TemplateData struct {
	Project     ProjectInfo
	Steps       []StepInfo
	GeneratedAt time.Time
}
