package localstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentcal/api/internal/content"
	"contentcal/api/internal/logger"
)

func setupTestRedis(t *testing.T) (*RedisKV, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	kv, err := NewRedisKV("redis://" + s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv, s
}

func testPlan(ids ...string) content.Plan {
	plan := make(content.Plan, 0, len(ids))
	for i, id := range ids {
		plan = append(plan, content.Item{
			ID:           id,
			Title:        "Item " + id,
			DueDate:      time.Date(2025, 3, 3+i, 0, 0, 0, 0, time.UTC),
			ContentType:  content.TypeSocial,
			ContentStyle: content.StyleStory,
			Keywords:     []string{"launch"},
		})
	}
	return plan
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	kv, _ := setupTestRedis(t)
	store := NewPlanStore(kv.ForSession("s1"), logger.NewNop())
	ctx := context.Background()

	plan := testPlan("a", "b", "c")
	require.NoError(t, store.Save(ctx, plan))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, plan.IDs(), loaded.IDs())
	assert.Equal(t, plan[1].DueDate, loaded[1].DueDate.UTC())
}

func TestSaveTwiceDoesNotDuplicate(t *testing.T) {
	kv, _ := setupTestRedis(t)
	store := NewPlanStore(kv, nil)
	ctx := context.Background()

	plan := testPlan("a", "b")
	require.NoError(t, store.Save(ctx, plan))
	require.NoError(t, store.Save(ctx, plan))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestSaveEmptyPlanLoadsEmptyNotNil(t *testing.T) {
	kv, _ := setupTestRedis(t)
	store := NewPlanStore(kv, nil)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, content.Plan{}))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Empty(t, loaded)
}

func TestSaveRejectsNilPlan(t *testing.T) {
	kv, _ := setupTestRedis(t)
	store := NewPlanStore(kv, nil)

	err := store.Save(context.Background(), nil)
	assert.ErrorIs(t, err, content.ErrValidation)
}

func TestSaveJSONRejectsNonArrayAndKeepsStorage(t *testing.T) {
	kv, s := setupTestRedis(t)
	store := NewPlanStore(kv, nil)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testPlan("a")))
	before, err := s.Get("contentcal:" + PlanKey)
	require.NoError(t, err)

	for _, body := range []string{`{"id":"x"}`, `"plan"`, `null`, ``, `42`} {
		err := store.SaveJSON(ctx, []byte(body))
		assert.ErrorIs(t, err, content.ErrValidation, "body %q", body)
	}

	after, err := s.Get("contentcal:" + PlanKey)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSaveJSONAcceptsArray(t *testing.T) {
	kv, _ := setupTestRedis(t)
	store := NewPlanStore(kv, nil)
	ctx := context.Background()

	body := `[{"id":"temp_1","title":"Hello","dueDate":"2025-03-03T00:00:00Z","contentType":"email","contentStyle":"guide","keywords":["a"]}]`
	require.NoError(t, store.SaveJSON(ctx, []byte(body)))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, content.TypeEmail, loaded[0].ContentType)
}

func TestSaveJSONRejectsUnknownEnum(t *testing.T) {
	kv, _ := setupTestRedis(t)
	store := NewPlanStore(kv, nil)

	body := `[{"id":"a","dueDate":"2025-03-03T00:00:00Z","contentType":"podcast","contentStyle":"guide"}]`
	err := store.SaveJSON(context.Background(), []byte(body))
	assert.ErrorIs(t, err, content.ErrIntegrity)
}

func TestLoadMissingAndGarbage(t *testing.T) {
	kv, s := setupTestRedis(t)
	store := NewPlanStore(kv, nil)
	ctx := context.Background()

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	require.NoError(t, s.Set("contentcal:"+PlanKey, "{not json"))
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	require.NoError(t, s.Set("contentcal:"+PlanKey, `{"id":"a"}`))
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestLoadReturnsIndependentValue(t *testing.T) {
	kv, _ := setupTestRedis(t)
	store := NewPlanStore(kv, nil)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, testPlan("a")))

	first, err := store.Load(ctx)
	require.NoError(t, err)
	first[0].Title = "mutated"
	first[0].Keywords[0] = "mutated"

	second, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Item a", second[0].Title)
	assert.Equal(t, "launch", second[0].Keywords[0])
}

func TestSaveDoesNotAliasCallerPlan(t *testing.T) {
	kv, _ := setupTestRedis(t)
	store := NewPlanStore(kv, nil)
	ctx := context.Background()

	plan := testPlan("a")
	require.NoError(t, store.Save(ctx, plan))
	plan[0].Title = "changed after save"

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Item a", loaded[0].Title)
}

func TestClear(t *testing.T) {
	kv, s := setupTestRedis(t)
	store := NewPlanStore(kv, nil)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testPlan("a")))
	require.NoError(t, store.Clear(ctx))
	assert.False(t, s.Exists("contentcal:"+PlanKey))

	s.SetError("LOADING")
	assert.ErrorIs(t, store.Clear(ctx), content.ErrTransport)
}

func TestSessionsAreIsolated(t *testing.T) {
	kv, _ := setupTestRedis(t)
	ctx := context.Background()
	one := NewPlanStore(kv.ForSession("one"), nil)
	two := NewPlanStore(kv.ForSession("two"), nil)

	require.NoError(t, one.Save(ctx, testPlan("a", "b")))

	loaded, err := two.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

// lossyKV drops the last item of any stored array on read, simulating a
// store that silently truncates values.
type lossyKV struct {
	data map[string]string
}

func (k *lossyKV) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := k.data[key]
	if ok && v == k.data["__last_write"] && key == PlanKey {
		return `[]`, true, nil
	}
	return v, ok, nil
}

func (k *lossyKV) Set(_ context.Context, key, value string) error {
	k.data[key] = value
	if key == PlanKey {
		k.data["__last_write"] = value
	}
	return nil
}

func (k *lossyKV) Delete(_ context.Context, key string) error {
	delete(k.data, key)
	return nil
}

func (k *lossyKV) SetIfAbsent(context.Context, string, string, time.Duration) (bool, error) {
	return true, nil
}

func TestSaveDetectsReadBackMismatchAndRestores(t *testing.T) {
	kv := &lossyKV{data: map[string]string{PlanKey: `["previous"]`}}
	store := NewPlanStore(kv, nil)

	err := store.Save(context.Background(), testPlan("a", "b"))
	require.ErrorIs(t, err, content.ErrIntegrity)
	assert.Equal(t, `["previous"]`, kv.data[PlanKey])
}
