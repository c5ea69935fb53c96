// Package planner generates content plans from keywords and scheduling
// constraints.
package planner

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"contentcal/api/internal/content"
)

// Quotas is the number of items generated per content type.
var Quotas = map[content.ContentType]int{
	content.TypeBlog:        8,
	content.TypeSocial:      12,
	content.TypeEmail:       4,
	content.TypeInfographic: 2,
	content.TypeLandingPage: 2,
}

// spacing is the number of eligible days between successive items.
const spacing = 2

const maxKeywordsPerItem = 3

type Options struct {
	Keywords        []string
	StartDate       time.Time
	IncludeWeekends bool
	ContentTypes    []content.ContentType
}

// Generate builds a plan sorted ascending by due date. An empty content type
// selection yields an empty plan. rng may be nil.
func Generate(opts Options, rng *rand.Rand) (content.Plan, error) {
	keywords := cleanKeywords(opts.Keywords)
	if len(keywords) == 0 {
		return nil, fmt.Errorf("%w: at least one keyword is required", content.ErrValidation)
	}
	types, err := selectedTypes(opts.ContentTypes)
	if err != nil {
		return nil, err
	}
	if len(types) == 0 {
		return content.Plan{}, nil
	}
	if rng == nil {
		now := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(now, now>>1))
	}

	title := cases.Title(language.English)
	cursor := firstEligible(content.DateOnly(opts.StartDate), opts.IncludeWeekends)
	plan := make(content.Plan, 0, ExpectedSize(types))
	for _, contentType := range types {
		styles := stylesByType[contentType]
		for i := 0; i < Quotas[contentType]; i++ {
			style := styles[rng.IntN(len(styles))]
			tmpl := templates[templateKey{contentType, style}]
			assigned := pickKeywords(keywords, rng)

			plan = append(plan, content.Item{
				ID:           content.NewProvisionalID(),
				Title:        fmt.Sprintf(tmpl.titles[rng.IntN(len(tmpl.titles))], title.String(assigned[0])),
				Description:  tmpl.description,
				Objective:    tmpl.objectives[rng.IntN(len(tmpl.objectives))],
				DueDate:      cursor,
				ContentType:  contentType,
				ContentStyle: style,
				Keywords:     assigned,
			})
			cursor = advance(cursor, spacing, opts.IncludeWeekends)
		}
	}

	plan.SortByDueDate()
	return plan, nil
}

// ExpectedSize is the plan length Generate produces for the given types.
func ExpectedSize(types []content.ContentType) int {
	total := 0
	seen := make(map[content.ContentType]struct{}, len(types))
	for _, t := range types {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		total += Quotas[t]
	}
	return total
}

// Eligible reports whether day can carry an item under the weekend policy.
func Eligible(day time.Time, includeWeekends bool) bool {
	if includeWeekends {
		return true
	}
	weekday := day.Weekday()
	return weekday != time.Saturday && weekday != time.Sunday
}

func firstEligible(day time.Time, includeWeekends bool) time.Time {
	for !Eligible(day, includeWeekends) {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

func advance(day time.Time, eligibleDays int, includeWeekends bool) time.Time {
	for eligibleDays > 0 {
		day = day.AddDate(0, 0, 1)
		if Eligible(day, includeWeekends) {
			eligibleDays--
		}
	}
	return day
}

// selectedTypes dedupes the selection and returns it in canonical order.
func selectedTypes(requested []content.ContentType) ([]content.ContentType, error) {
	wanted := make(map[content.ContentType]struct{}, len(requested))
	for _, t := range requested {
		if !t.Valid() {
			return nil, fmt.Errorf("%w: unknown content type %q", content.ErrValidation, t)
		}
		wanted[t] = struct{}{}
	}
	types := make([]content.ContentType, 0, len(wanted))
	for _, t := range content.ContentTypes {
		if _, ok := wanted[t]; ok {
			types = append(types, t)
		}
	}
	return types, nil
}

func cleanKeywords(raw []string) []string {
	keywords := make([]string, 0, len(raw))
	for _, k := range raw {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	return keywords
}

func pickKeywords(keywords []string, rng *rand.Rand) []string {
	limit := min(len(keywords), maxKeywordsPerItem)
	count := 1 + rng.IntN(limit)
	shuffled := append([]string(nil), keywords...)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:count]
}
