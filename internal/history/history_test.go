package history

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentcal/api/internal/content"
)

var historyTenant = content.Tenant{UserID: "user-1", WebsiteID: "site-1"}

func snapshotPlan(ids ...string) content.Plan {
	plan := make(content.Plan, 0, len(ids))
	for i, id := range ids {
		plan = append(plan, content.Item{
			ID:           id,
			Title:        "Item " + id,
			DueDate:      time.Date(2025, 3, 3+i, 0, 0, 0, 0, time.UTC),
			ContentType:  content.TypeBlog,
			ContentStyle: content.StyleKnowledge,
			Keywords:     []string{"seo"},
		})
	}
	return plan
}

func TestSnapshotLifecycle(t *testing.T) {
	r := New(t.TempDir())

	log, err := r.Log(historyTenant, 10)
	require.NoError(t, err)
	assert.Empty(t, log)

	first, err := r.Snapshot(historyTenant, snapshotPlan("a", "b"), "Avery", "Approve plan (replace)")
	require.NoError(t, err)
	assert.Len(t, first.Hash, 7)

	second, err := r.Snapshot(historyTenant, snapshotPlan("a", "b", "c"), "Avery", "Approve plan (append)")
	require.NoError(t, err)
	assert.NotEqual(t, first.Hash, second.Hash)

	log, err = r.Log(historyTenant, 10)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, second.Hash, log[0].Hash)
	assert.Equal(t, "Avery", log[0].Author)

	old, err := r.PlanAt(historyTenant, first.Hash)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, old.IDs())
	assert.Equal(t, content.StyleKnowledge, old[0].ContentStyle)
}

func TestSnapshotOfUnchangedPlanAddsNoCommit(t *testing.T) {
	r := New(t.TempDir())

	first, err := r.Snapshot(historyTenant, snapshotPlan("a"), "Avery", "first")
	require.NoError(t, err)
	again, err := r.Snapshot(historyTenant, snapshotPlan("a"), "Avery", "again")
	require.NoError(t, err)
	assert.Equal(t, first.Hash, again.Hash)

	log, err := r.Log(historyTenant, 0)
	require.NoError(t, err)
	assert.Len(t, log, 1)
}

func TestTenantsHaveSeparateHistories(t *testing.T) {
	r := New(t.TempDir())
	other := content.Tenant{UserID: "user-1", WebsiteID: "../site-2"}

	_, err := r.Snapshot(historyTenant, snapshotPlan("a"), "Avery", "one")
	require.NoError(t, err)

	log, err := r.Log(other, 0)
	require.NoError(t, err)
	assert.Empty(t, log)

	_, err = r.PlanAt(other, "abc1234")
	require.ErrorIs(t, err, ErrNoHistory)
}

func TestSnapshotLimitAndConcurrency(t *testing.T) {
	r := New(t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ids := make([]string, n+1)
			for j := range ids {
				ids[j] = string(rune('a' + j))
			}
			_, err := r.Snapshot(historyTenant, snapshotPlan(ids...), "Avery", "concurrent")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	log, err := r.Log(historyTenant, 2)
	require.NoError(t, err)
	assert.Len(t, log, 2)
}

func TestSnapshotRequiresTenant(t *testing.T) {
	_, err := New(t.TempDir()).Snapshot(content.Tenant{}, snapshotPlan("a"), "Avery", "x")
	require.ErrorIs(t, err, content.ErrValidation)
}

func TestPathSegment(t *testing.T) {
	assert.Equal(t, "___site-2", pathSegment("../site-2"))
	assert.Equal(t, "_", pathSegment(""))
}
