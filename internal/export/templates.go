package export

import (
	"bytes"
	"fmt"
	"html/template"
)

// renderSummaryHTML renders the project summary page used for both HTML and
// PDF exports.
func renderSummaryHTML(data TemplateData) (string, error) {
	t, err := template.New("summary").Parse(summaryTemplate)
	if err != nil {
		return "", fmt.Errorf("parse summary template: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render summary template: %w", err)
	}
	return buf.String(), nil
}

const summaryTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Project.Name}}</title>
<style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; color: #222; max-width: 800px; margin: 0 auto; padding: 32px; }
    h1 { border-bottom: 2px solid #1a7f64; padding-bottom: 8px; }
    .meta { color: #666; font-size: 14px; margin-bottom: 24px; }
    .step { page-break-inside: avoid; margin-bottom: 28px; }
    .step h2 { margin-bottom: 4px; }
    .progress { display: inline-block; font-size: 13px; padding: 2px 8px; border-radius: 10px; background: #e8f4f0; color: #1a7f64; }
    .submitted { background: #1a7f64; color: white; }
    table { border-collapse: collapse; width: 100%; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px 10px; text-align: left; vertical-align: top; font-size: 14px; }
    th { background: #f7f7f7; width: 30%; }
    .section-label { margin-top: 12px; font-weight: 600; color: #444; }
    .footer { margin-top: 40px; border-top: 1px solid #eee; padding-top: 12px; font-size: 12px; color: #888; }
</style>
</head>
<body>
    <h1>{{.Project.Name}}</h1>
    <div class="meta">
        {{if .Project.Description}}<p>{{.Project.Description}}</p>{{end}}
        <p>Owner: {{.Project.OwnerName}} &middot; Overall progress: {{.Project.ProgressRate}}%</p>
    </div>

    {{range .Steps}}
    <div class="step">
        <h2>Step {{.Number}}: {{.Name}}</h2>
        <span class="progress{{if .IsSubmitted}} submitted{{end}}">{{if .IsSubmitted}}Submitted &middot; {{end}}{{.Progress}}%</span>
        {{range .Sections}}
        <div class="section-label">{{.Label}}</div>
        {{if .Fields}}
        <table>
            {{range .Fields}}
            <tr><th>{{.Label}}</th><td>{{.Value}}</td></tr>
            {{end}}
        </table>
        {{else}}
        <p><em>Not started yet.</em></p>
        {{end}}
        {{end}}
    </div>
    {{end}}

    <div class="footer">
        Generated by Waypoint on {{.GeneratedAt.Format "2006-01-02 15:04"}}
    </div>
</body>
</html>`
