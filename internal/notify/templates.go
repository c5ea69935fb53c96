package notify

import (
	"bytes"
	"html/template"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"contentcal/api/internal/content"
)

// TypeLabel renders a content type for people, e.g. "Landing Page".
func TypeLabel(t content.ContentType) string {
	// Casers are stateful and must not be shared across goroutines.
	return cases.Title(language.English).String(strings.ReplaceAll(string(t), "-", " "))
}

var templateFuncs = template.FuncMap{
	"label": TypeLabel,
	"date":  func(t time.Time) string { return t.UTC().Format("Mon, Jan 2") },
}

type reminderData struct {
	Items []content.Item
	Days  int
}

type summaryData struct {
	Upcoming  []content.Item
	Overdue   []content.Item
	Completed int
	Total     int
	WeekOf    time.Time
}

var (
	reminderTemplate = template.Must(template.New("reminder").Funcs(templateFuncs).Parse(reminderHTML))
	summaryTemplate  = template.Must(template.New("summary").Funcs(templateFuncs).Parse(summaryHTML))
)

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const emailStyle = `
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .item { padding: 8px 0; border-bottom: 1px solid #eee; }
        .type { font-size: 12px; color: #0066cc; text-transform: uppercase; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }`

const reminderHTML = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Content due soon</title>
    <style>` + emailStyle + `
    </style>
</head>
<body>
    <div class="header"><h1>Content Calendar</h1></div>
    <h2>{{len .Items}} item{{if ne (len .Items) 1}}s{{end}} due within {{.Days}} day{{if ne .Days 1}}s{{end}}</h2>
    {{range .Items}}
    <div class="item">
        <div class="type">{{label .ContentType}}</div>
        <strong>{{.Title}}</strong><br>
        Due {{date .DueDate}}
    </div>
    {{end}}
    <div class="footer"><p>You receive this because reminders are enabled for this calendar.</p></div>
</body>
</html>`

const summaryHTML = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Weekly content summary</title>
    <style>` + emailStyle + `
    </style>
</head>
<body>
    <div class="header"><h1>Content Calendar</h1></div>
    <h2>Week of {{date .WeekOf}}</h2>
    <p>{{.Completed}} of {{.Total}} items completed.</p>
    {{if .Overdue}}
    <h3>Overdue</h3>
    {{range .Overdue}}
    <div class="item"><div class="type">{{label .ContentType}}</div><strong>{{.Title}}</strong><br>Was due {{date .DueDate}}</div>
    {{end}}
    {{end}}
    <h3>Coming up</h3>
    {{range .Upcoming}}
    <div class="item"><div class="type">{{label .ContentType}}</div><strong>{{.Title}}</strong><br>Due {{date .DueDate}}</div>
    {{else}}
    <p>Nothing scheduled for the next seven days.</p>
    {{end}}
    <div class="footer"><p>You receive this because the weekly summary is enabled for this calendar.</p></div>
</body>
</html>`
