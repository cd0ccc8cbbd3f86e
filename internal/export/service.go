package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"waypoint/api/internal/schema"
	"waypoint/api/internal/store"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetProject(ctx context.Context, id string) (*store.Project, error)
	GetUserByID(ctx context.Context, id string) (*store.User, error)
	ListStepDocuments(ctx context.Context, projectID string) ([]*store.StepDocument, error)
}

// Service provides project export functionality
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	project, err := s.store.GetProject(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}

	ownerName := ""
	if owner, err := s.store.GetUserByID(ctx, project.OwnerID); err == nil {
		ownerName = owner.Name
	}

	docs, err := s.store.ListStepDocuments(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("list step documents: %w", err)
	}
	byNumber := make(map[int]*store.StepDocument, len(docs))
	for _, doc := range docs {
		byNumber[doc.StepNumber] = doc
	}

	data := TemplateData{
		Project: ProjectInfo{
			ID:           project.ID,
			Name:         project.Name,
			Description:  project.Description,
			OwnerName:    ownerName,
			ProgressRate: project.ProgressRate,
			UpdatedAt:    project.UpdatedAt,
		},
		GeneratedAt: time.Now(),
	}
	for _, def := range schema.Steps() {
		info := StepInfo{Number: def.Number, Name: def.Name}
		var payload schema.Payload
		if doc, ok := byNumber[def.Number]; ok {
			info.Progress = doc.Progress
			info.IsSubmitted = doc.IsSubmitted
			payload, _ = schema.ParsePayload(doc.Payload)
		}
		info.Sections = renderSections(def, payload)
		data.Steps = append(data.Steps, info)
	}

	html, err := renderSummaryHTML(data)
	if err != nil {
		return nil, err
	}

	switch req.Format {
	case FormatHTML, "":
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(project.Name) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		return exportPDF(html, project.Name)
	case FormatDOCX:
		return exportDOCX(html, project.Name)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
}

func renderSections(def *schema.StepDefinition, payload schema.Payload) []SectionInfo {
	var out []SectionInfo
	for _, section := range def.Sections {
		info := SectionInfo{Label: section.Label}
		if section.Collection != "" {
			info.Fields = renderCollection(section, payload)
		} else {
			for _, field := range section.Fields {
				value, ok := payload.Lookup(field.Path)
				if !ok || schema.IsEmptyValue(value) {
					continue
				}
				info.Fields = append(info.Fields, FieldInfo{
					Label: fieldLabel(field.Path),
					Value: formatValue(value),
				})
			}
		}
		out = append(out, info)
	}
	return out
}

func renderCollection(section schema.Section, payload schema.Payload) []FieldInfo {
	value, ok := payload.Lookup(section.Collection)
	if !ok {
		return nil
	}
	records, ok := value.([]any)
	if !ok {
		return nil
	}
	var out []FieldInfo
	for i, record := range records {
		for _, field := range section.RecordFields {
			v, found := schema.LookupIn(record, field.Path)
			if !found || schema.IsEmptyValue(v) {
				continue
			}
			out = append(out, FieldInfo{
				Label: fmt.Sprintf("#%d %s", i+1, fieldLabel(field.Path)),
				Value: formatValue(v),
			})
		}
	}
	return out
}

// fieldLabel turns a dotted camelCase path into a readable label.
func fieldLabel(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		path = path[i+1:]
	}
	var b strings.Builder
	for i, r := range path {
		if i == 0 {
			if r >= 'a' && r <= 'z' {
				r -= 'a' - 'A'
			}
			b.WriteRune(r)
			continue
		}
		if r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, formatValue(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}
