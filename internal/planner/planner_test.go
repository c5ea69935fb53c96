package planner

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentcal/api/internal/content"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

func TestGenerateBlogScenario(t *testing.T) {
	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	plan, err := Generate(Options{
		Keywords:     []string{"data quality"},
		StartDate:    start,
		ContentTypes: []content.ContentType{content.TypeBlog},
	}, seeded(1))
	require.NoError(t, err)
	require.Len(t, plan, 8)

	for i, item := range plan {
		assert.Equal(t, content.TypeBlog, item.ContentType)
		assert.True(t, Eligible(item.DueDate, false), "item %d due on %s", i, item.DueDate.Weekday())
		assert.False(t, item.DueDate.Before(start))
		assert.True(t, item.IsProvisional())
		assert.Equal(t, []string{"data quality"}, item.Keywords)
		if i > 0 {
			assert.False(t, item.DueDate.Before(plan[i-1].DueDate), "plan not sorted at %d", i)
		}
	}

	want := []string{"2025-03-03", "2025-03-05", "2025-03-07", "2025-03-11", "2025-03-13", "2025-03-17", "2025-03-19", "2025-03-21"}
	got := make([]string, len(plan))
	for i, item := range plan {
		got[i] = item.DueDate.Format("2006-01-02")
	}
	assert.Equal(t, want, got)
}

func TestGenerateSizeMatchesQuotas(t *testing.T) {
	subsets := [][]content.ContentType{
		{content.TypeBlog},
		{content.TypeSocial, content.TypeEmail},
		{content.TypeInfographic, content.TypeLandingPage, content.TypeBlog},
		content.ContentTypes,
		{content.TypeEmail, content.TypeEmail},
	}
	for _, subset := range subsets {
		for _, weekends := range []bool{true, false} {
			plan, err := Generate(Options{
				Keywords:        []string{"seo", "content ops", "analytics", "ai"},
				StartDate:       time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC),
				IncludeWeekends: weekends,
				ContentTypes:    subset,
			}, seeded(42))
			require.NoError(t, err)
			assert.Len(t, plan, ExpectedSize(subset))

			for _, item := range plan {
				require.NoError(t, item.Validate())
				assert.True(t, Eligible(item.DueDate, weekends))
				assert.NotEmpty(t, item.Title)
				assert.NotEmpty(t, item.Objective)
				assert.GreaterOrEqual(t, len(item.Keywords), 1)
				assert.LessOrEqual(t, len(item.Keywords), maxKeywordsPerItem)
			}
		}
	}
	assert.Equal(t, 28, ExpectedSize(content.ContentTypes))
}

func TestGenerateSkipsWeekendStart(t *testing.T) {
	saturday := time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)
	plan, err := Generate(Options{
		Keywords:     []string{"x"},
		StartDate:    saturday,
		ContentTypes: []content.ContentType{content.TypeInfographic},
	}, seeded(3))
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, time.Monday, plan[0].DueDate.Weekday())
	assert.Equal(t, time.Wednesday, plan[1].DueDate.Weekday())
}

func TestGenerateWithWeekends(t *testing.T) {
	saturday := time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)
	plan, err := Generate(Options{
		Keywords:        []string{"x"},
		StartDate:       saturday,
		IncludeWeekends: true,
		ContentTypes:    []content.ContentType{content.TypeLandingPage},
	}, seeded(3))
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, saturday, plan[0].DueDate)
	assert.Equal(t, saturday.AddDate(0, 0, 2), plan[1].DueDate)
}

func TestGenerateEmptyTypesYieldsEmptyPlan(t *testing.T) {
	plan, err := Generate(Options{Keywords: []string{"x"}, StartDate: time.Now()}, nil)
	require.NoError(t, err)
	assert.Empty(t, plan)
}

func TestGenerateRejectsBadInput(t *testing.T) {
	_, err := Generate(Options{Keywords: []string{"  "}, ContentTypes: content.ContentTypes}, nil)
	assert.ErrorIs(t, err, content.ErrValidation)

	_, err = Generate(Options{Keywords: []string{"x"}, ContentTypes: []content.ContentType{"podcast"}}, nil)
	assert.ErrorIs(t, err, content.ErrValidation)
}

func TestEveryStyleHasTemplate(t *testing.T) {
	for contentType, styles := range stylesByType {
		for _, style := range styles {
			tmpl, ok := templates[templateKey{contentType, style}]
			require.True(t, ok, "missing template for %s/%s", contentType, style)
			assert.NotEmpty(t, tmpl.titles)
			assert.NotEmpty(t, tmpl.objectives)
		}
	}
}
