package export

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"waypoint/api/internal/store"
)

type fakeExportStore struct {
	project *store.Project
	owner   *store.User
	docs    []*store.StepDocument
}

func (f *fakeExportStore) GetProject(ctx context.Context, id string) (*store.Project, error) {
	return f.project, nil
}

func (f *fakeExportStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	return f.owner, nil
}

func (f *fakeExportStore) ListStepDocuments(ctx context.Context, projectID string) ([]*store.StepDocument, error) {
	return f.docs, nil
}

func exportFixture() *fakeExportStore {
	payload := map[string]any{
		"problem": map[string]any{"statement": "downtown parking is scarce"},
		"goal":    map[string]any{"objective": "cut search time"},
	}
	raw, _ := json.Marshal(payload)
	return &fakeExportStore{
		project: &store.Project{
			ID: "prj-1", OwnerID: "usr-1", Name: "CurbFinder",
			Description: "parking discovery", ProgressRate: 12,
		},
		owner: &store.User{ID: "usr-1", Name: "Jae"},
		docs: []*store.StepDocument{
			{ProjectID: "prj-1", StepNumber: 1, Payload: raw, Progress: 23, UpdatedAt: time.Now()},
		},
	}
}

func TestExportHTML(t *testing.T) {
	svc := NewService(exportFixture())

	result, err := svc.Export(context.Background(), Request{ProjectID: "prj-1", Format: FormatHTML})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if result.MimeType != "text/html; charset=utf-8" {
		t.Errorf("mime = %q", result.MimeType)
	}
	if result.Filename != "CurbFinder.html" {
		t.Errorf("filename = %q", result.Filename)
	}

	html := string(result.Data)
	for _, want := range []string{
		"CurbFinder",
		"Jae",
		"Step 1: Problem Definition",
		"downtown parking is scarce",
		"23%",
		"Step 8: Pitch &amp; Review",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered html missing %q", want)
		}
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	svc := NewService(exportFixture())
	_, err := svc.Export(context.Background(), Request{ProjectID: "prj-1", Format: "docx"})
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected unsupported format error, got %v", err)
	}
}

func TestFieldLabel(t *testing.T) {
	cases := map[string]string{
		"problem.statement":  "Statement",
		"successMetric":      "Success Metric",
		"canvas.customerJobs": "Customer Jobs",
	}
	for in, want := range cases {
		if got := fieldLabel(in); got != want {
			t.Errorf("fieldLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatValue(t *testing.T) {
	if got := formatValue([]any{"a", "b"}); got != "a, b" {
		t.Errorf("list = %q", got)
	}
	if got := formatValue(float64(42)); got != "42" {
		t.Errorf("int = %q", got)
	}
	if got := formatValue(2.5); got != "2.5" {
		t.Errorf("float = %q", got)
	}
}
