package notification

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"drive-media-compressor/domain/transfer"

	"github.com/dustin/go-humanize"
)

// TemplateData contains all the fields available for email template rendering
type TemplateData struct {
	Greeting       string // Dynamic greeting based on recipient count
	OperationTitle string // e.g. "Compress & replace"
	FolderName     string
	AccountEmail   string
	DateFormatted  string // e.g., "12/28/2025"
	WhenRef        string // "today", "yesterday", "on Monday" or "on 12/28"
	Succeeded      int
	Failed         int
	Total          int
	BytesSaved     string // human readable, e.g. "4.2 MB"
	Aborted        bool
	Failures       []transfer.Failure
	Notices        []string
	SenderName     string
}

// EmailTemplate contains the templates for rendering emails
type EmailTemplate struct {
	SubjectFormat string
	PlainText     string
	HTML          string
}

// DefaultTemplate is the standard email template for batch summaries
var DefaultTemplate = EmailTemplate{
	SubjectFormat: "Drive Media Compressor: {{.OperationTitle}} finished on {{.DateFormatted}} ({{.Succeeded}}/{{.Total}} succeeded)",
	PlainText: `{{.Greeting}}

The {{.OperationTitle}} batch in {{.FolderName}} finished {{.WhenRef}}.

Succeeded: {{.Succeeded}}
Failed: {{.Failed}}
Space saved: {{.BytesSaved}}
{{- if .Aborted}}

The batch stopped early because the Drive connection expired. Reconnect and run it again for the skipped files.
{{- end}}
{{- if .Failures}}

Failed files:
{{- range .Failures}}
- {{.Name}}: {{.Reason}}
{{- end}}
{{- end}}
{{- if .Notices}}

Notes:
{{- range .Notices}}
- {{.}}
{{- end}}
{{- end}}

Thanks!
~{{.SenderName}}`,
	HTML: `<div dir="ltr">{{.Greeting}}<br><br>
The <b>{{.OperationTitle}}</b> batch in {{.FolderName}} finished {{.WhenRef}}.<br><br>
Succeeded: {{.Succeeded}}<br>
Failed: {{.Failed}}<br>
Space saved: {{.BytesSaved}}<br>
{{- if .Aborted}}<br>The batch stopped early because the Drive connection expired.<br>{{end}}
{{- if .Failures}}<br>Failed files:<ul>{{range .Failures}}<li>{{.Name}}: {{.Reason}}</li>{{end}}</ul>{{end}}
{{- if .Notices}}Notes:<ul>{{range .Notices}}<li>{{.}}</li>{{end}}</ul>{{end}}
<br>Thanks!<br>
~{{.SenderName}}</div>`,
}

// NewTemplateData builds the template fields for a summary request
func NewTemplateData(req *SummaryRequest, now time.Time) TemplateData {
	s := req.Summary
	folder := req.FolderName
	if folder == "" {
		folder = "My Drive"
	}
	return TemplateData{
		Greeting:       FormatGreeting(req.To),
		OperationTitle: OperationTitle(s.Operation),
		FolderName:     folder,
		AccountEmail:   req.AccountEmail,
		DateFormatted:  req.FinishedAt.Format("01/02/2006"),
		WhenRef:        FormatWhenRef(req.FinishedAt, now),
		Succeeded:      s.Succeeded,
		Failed:         s.Failed,
		Total:          s.Total(),
		BytesSaved:     humanize.Bytes(uint64(max(s.BytesSaved, 0))),
		Aborted:        s.Aborted,
		Failures:       s.Failures,
		Notices:        s.Notices,
		SenderName:     req.SenderName,
	}
}

// OperationTitle returns the user-facing name of a batch operation
func OperationTitle(op transfer.Operation) string {
	switch op {
	case transfer.OperationReplace:
		return "Compress & replace"
	case transfer.OperationUploadNew:
		return "Compress & upload"
	case transfer.OperationLocal:
		return "Upload & compress"
	default:
		return string(op)
	}
}

// FormatGreeting creates an appropriate greeting based on number of recipients
// 1 recipient: "Dear John,"
// 2 recipients: "Dear John & Jane,"
// 3+ recipients: "Hey Everyone!"
func FormatGreeting(recipients []Recipient) string {
	switch len(recipients) {
	case 0:
		return "Hello,"
	case 1:
		name := getFirstName(recipients[0].Name)
		return fmt.Sprintf("Dear %s,", name)
	case 2:
		name1 := getFirstName(recipients[0].Name)
		name2 := getFirstName(recipients[1].Name)
		return fmt.Sprintf("Dear %s & %s,", name1, name2)
	default:
		return "Hey Everyone!"
	}
}

// getFirstName extracts the first name from a full name
func getFirstName(fullName string) string {
	if fullName == "" {
		return "Friend"
	}
	// Split on space and take first part
	for i, c := range fullName {
		if c == ' ' {
			return fullName[:i]
		}
	}
	return fullName
}

// FormatWhenRef describes when the batch finished relative to now:
// - Same day: "today"
// - Yesterday: "yesterday"
// - 2-6 days ago: "on Monday"
// - 7+ days ago: "on 12/28"
func FormatWhenRef(finished, now time.Time) string {
	// Normalize to date only (ignore time component)
	finishedDay := time.Date(finished.Year(), finished.Month(), finished.Day(), 0, 0, 0, 0, time.Local)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)

	diff := today.Sub(finishedDay).Hours() / 24

	switch {
	case diff < 1:
		return "today"
	case diff < 2:
		return "yesterday"
	case diff < 7:
		return "on " + finished.Weekday().String()
	default:
		return fmt.Sprintf("on %s", finished.Format("1/2"))
	}
}

// RenderSubject renders the email subject using the template
func (t *EmailTemplate) RenderSubject(data TemplateData) (string, error) {
	return renderTemplate("subject", t.SubjectFormat, data)
}

// RenderPlainText renders the plain text email body
func (t *EmailTemplate) RenderPlainText(data TemplateData) (string, error) {
	return renderTemplate("plaintext", t.PlainText, data)
}

// RenderHTML renders the HTML email body
func (t *EmailTemplate) RenderHTML(data TemplateData) (string, error) {
	return renderTemplate("html", t.HTML, data)
}

func renderTemplate(name, tmplStr string, data TemplateData) (string, error) {
	tmpl, err := template.New(name).Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
