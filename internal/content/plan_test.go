package content

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanCloneIsIndependent(t *testing.T) {
	plan := Plan{sampleItem("a"), sampleItem("b")}
	cloned := plan.Clone()

	cloned[0].Title = "mutated"
	cloned[1].Keywords = append(cloned[1].Keywords, "extra")

	assert.Equal(t, "Data quality basics", plan[0].Title)
	assert.Len(t, plan[1].Keywords, 1)
	assert.Nil(t, Plan(nil).Clone())
}

func TestPlanSortByDueDate(t *testing.T) {
	late := sampleItem("late")
	late.DueDate = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	early := sampleItem("early")
	early.DueDate = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	plan := Plan{late, early}
	plan.SortByDueDate()
	assert.Equal(t, []string{"early", "late"}, plan.IDs())
}

func TestPlanValidate(t *testing.T) {
	assert.ErrorIs(t, Plan{}.Validate(), ErrValidation)
	assert.ErrorIs(t, Plan{sampleItem("a"), sampleItem("a")}.Validate(), ErrValidation)
	require.NoError(t, Plan{sampleItem("a"), sampleItem("b")}.Validate())
}

func TestConcatPreservesOrderAndIDs(t *testing.T) {
	existing := Plan{sampleItem("x"), sampleItem("y")}
	candidate := Plan{sampleItem("z")}

	merged := Concat(existing, candidate)
	assert.Equal(t, []string{"x", "y", "z"}, merged.IDs())

	merged[0].Title = "mutated"
	assert.Equal(t, "Data quality basics", existing[0].Title)
}

func TestTenantValid(t *testing.T) {
	assert.True(t, Tenant{UserID: "u", WebsiteID: "w"}.Valid())
	assert.False(t, Tenant{UserID: "u"}.Valid())
	assert.False(t, Tenant{WebsiteID: "w"}.Valid())
	assert.Equal(t, "u:w", Tenant{UserID: "u", WebsiteID: "w"}.Key())
}
