package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentcal/api/internal/content"
	"contentcal/api/internal/localstore"
)

type recordingDispatcher struct {
	sent []Message
	err  error
}

func (r *recordingDispatcher) Send(_ context.Context, msg Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

type staticPlans map[string]content.Plan

func (s staticPlans) Load(_ context.Context, tenant content.Tenant) (content.Plan, error) {
	return s[tenant.Key()].Clone(), nil
}

type countingObserver struct{ sent, failed int }

func (c *countingObserver) ObserveNotification(_ string, err error) {
	if err != nil {
		c.failed++
		return
	}
	c.sent++
}

var calTenant = content.Tenant{UserID: "user-1", WebsiteID: "site-1"}

// Monday 2025-03-03 09:00 UTC
var monday = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func item(id string, due time.Time, completed bool) content.Item {
	return content.Item{
		ID:           id,
		Title:        "Post " + id,
		DueDate:      due,
		Completed:    completed,
		ContentType:  content.TypeLandingPage,
		ContentStyle: content.StyleGuide,
	}
}

type harness struct {
	kv         *localstore.RedisKV
	dispatcher *recordingDispatcher
	observer   *countingObserver
	notifier   *Notifier
}

func newHarness(t *testing.T, plan content.Plan, settings localstore.Settings, now time.Time) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	kv, err := localstore.NewRedisKV("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	ctx := context.Background()
	subs := localstore.NewSubscriptions(kv)
	require.NoError(t, subs.Add(ctx, calTenant))
	require.NoError(t, localstore.NewSettingsStore(kv.ForTenant(calTenant)).Save(ctx, settings))

	h := &harness{kv: kv, dispatcher: &recordingDispatcher{}, observer: &countingObserver{}}
	h.notifier = NewNotifier(subs, staticPlans{calTenant.Key(): plan}, kv, h.dispatcher, nil, Options{
		SummaryWeekday: time.Monday,
		Observer:       h.observer,
		Now:            func() time.Time { return now },
	})
	return h
}

func TestRemindersCoverDueWindowOnce(t *testing.T) {
	plan := content.Plan{
		item("today", monday, false),
		item("tomorrow", monday.AddDate(0, 0, 1), false),
		item("done", monday, true),
		item("later", monday.AddDate(0, 0, 5), false),
		item("past", monday.AddDate(0, 0, -1), false),
	}
	h := newHarness(t, plan, localstore.Settings{Email: "editor@example.com", NotifyDays: 1}, monday)
	ctx := context.Background()

	sent, err := h.notifier.SendReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, h.dispatcher.sent, 1)

	msg := h.dispatcher.sent[0]
	assert.Equal(t, "editor@example.com", msg.To)
	assert.Equal(t, TypeReminder, msg.Type)
	assert.Contains(t, msg.HTML, "Post today")
	assert.Contains(t, msg.HTML, "Post tomorrow")
	assert.Contains(t, msg.HTML, "Landing Page")
	assert.NotContains(t, msg.HTML, "Post done")
	assert.NotContains(t, msg.HTML, "Post later")
	assert.NotContains(t, msg.HTML, "Post past")

	sent, err = h.notifier.SendReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent, "hourly sweep does not repeat reminders")
	assert.Equal(t, 1, h.observer.sent)
}

func TestRemindersSkipTenantsWithoutEmail(t *testing.T) {
	h := newHarness(t, content.Plan{item("a", monday, false)}, localstore.Settings{NotifyDays: 1}, monday)

	sent, err := h.notifier.SendReminders(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, h.dispatcher.sent)
}

func TestFailedReminderIsRetried(t *testing.T) {
	h := newHarness(t, content.Plan{item("a", monday, false)}, localstore.Settings{Email: "editor@example.com", NotifyDays: 1}, monday)
	ctx := context.Background()

	h.dispatcher.err = errors.New("relay refused")
	_, err := h.notifier.SendReminders(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, h.observer.failed)

	h.dispatcher.err = nil
	sent, err := h.notifier.SendReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestSummarySentOnConfiguredWeekdayOnly(t *testing.T) {
	plan := content.Plan{
		item("overdue", monday.AddDate(0, 0, -2), false),
		item("soon", monday.AddDate(0, 0, 3), false),
		item("done", monday.AddDate(0, 0, -1), true),
	}
	settings := localstore.Settings{Email: "editor@example.com", NotifyDays: 1, WeeklySummary: true}

	tuesday := newHarness(t, plan, settings, monday.AddDate(0, 0, 1))
	sent, err := tuesday.notifier.SendSummaries(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)

	h := newHarness(t, plan, settings, monday)
	sent, err = h.notifier.SendSummaries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, h.dispatcher.sent, 1)
	msg := h.dispatcher.sent[0]
	assert.Equal(t, TypeSummary, msg.Type)
	assert.Contains(t, msg.HTML, "1 of 3 items completed")
	assert.Contains(t, msg.HTML, "Post overdue")
	assert.Contains(t, msg.HTML, "Post soon")

	sent, err = h.notifier.SendSummaries(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent, "one summary per day")
}

func TestSummaryRequiresOptIn(t *testing.T) {
	h := newHarness(t, content.Plan{item("a", monday, false)}, localstore.Settings{Email: "editor@example.com"}, monday)

	sent, err := h.notifier.SendSummaries(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestJobsWireBothSweeps(t *testing.T) {
	h := newHarness(t, nil, localstore.Settings{}, monday)
	jobs := h.notifier.Jobs("0 * * * *", "0 8 * * *")
	require.Len(t, jobs, 2)
	assert.Equal(t, "reminders", jobs[0].Name)
	assert.Equal(t, "0 8 * * *", jobs[1].Spec)
	require.NoError(t, jobs[0].Run(context.Background()))
}

func TestTypeLabel(t *testing.T) {
	assert.Equal(t, "Landing Page", TypeLabel(content.TypeLandingPage))
	assert.Equal(t, "Blog", TypeLabel(content.TypeBlog))
}
