package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"

	"contentcal/api/internal/content"
	"contentcal/api/internal/notify"
)

//go:embed templates/calendar.html
var templateFS embed.FS

var calendarTemplate = template.Must(template.New("calendar.html").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.UTC().Format(layout)
	},
	"label": notify.TypeLabel,
	"join":  strings.Join,
}).ParseFS(templateFS, "templates/calendar.html"))

// TemplateData holds data for calendar template rendering
type TemplateData struct {
	Title       string
	WebsiteName string
	// PageSize is the @page size value, e.g. "letter landscape".
	PageSize    template.CSS
	GeneratedAt time.Time
	Items       content.Plan
	Months      []Month
	Totals      []Total
}

// Month groups the items due in one calendar month.
type Month struct {
	Label string
	Items content.Plan
}

type Total struct {
	Label string
	Count int
}

// BuildTemplateData groups plan by month in due date order.
func BuildTemplateData(title, websiteName string, plan content.Plan, now time.Time) TemplateData {
	sorted := plan.Clone()
	sorted.SortByDueDate()

	data := TemplateData{
		Title:       title,
		WebsiteName: websiteName,
		PageSize:    template.CSS(PageLayout{}.CSSPageSize()),
		GeneratedAt: now,
		Items:       sorted,
	}
	counts := make(map[content.ContentType]int)
	for _, item := range sorted {
		counts[item.ContentType]++
		label := item.DueDate.UTC().Format("January 2006")
		if n := len(data.Months); n == 0 || data.Months[n-1].Label != label {
			data.Months = append(data.Months, Month{Label: label})
		}
		last := &data.Months[len(data.Months)-1]
		last.Items = append(last.Items, item)
	}
	for _, t := range content.ContentTypes {
		if counts[t] > 0 {
			data.Totals = append(data.Totals, Total{Label: notify.TypeLabel(t), Count: counts[t]})
		}
	}
	return data
}

// RenderCalendarHTML renders the calendar template with provided data
func RenderCalendarHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := calendarTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
