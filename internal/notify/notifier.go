package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"contentcal/api/internal/content"
	"contentcal/api/internal/localstore"
	"contentcal/api/internal/logger"
	"contentcal/api/internal/scheduler"
)

const (
	summaryWindow = 7 * 24 * time.Hour
	markerSlack   = 48 * time.Hour
)

type TenantLister interface {
	List(ctx context.Context) ([]content.Tenant, error)
}

type PlanLoader interface {
	Load(ctx context.Context, tenant content.Tenant) (content.Plan, error)
}

// Observer receives one call per attempted email.
type Observer interface {
	ObserveNotification(kind string, err error)
}

type Options struct {
	SummaryWeekday time.Weekday
	Observer       Observer
	Now            func() time.Time
}

// Notifier scans subscribed calendars and emails due-soon reminders and
// weekly summaries. Markers in the tenant's key space keep hourly sweeps
// from sending the same email twice.
type Notifier struct {
	tenants    TenantLister
	plans      PlanLoader
	kv         *localstore.RedisKV
	dispatcher Dispatcher
	observer   Observer
	summaryDay time.Weekday
	now        func() time.Time
	log        logger.Logger
}

func NewNotifier(tenants TenantLister, plans PlanLoader, kv *localstore.RedisKV, dispatcher Dispatcher, log logger.Logger, opts Options) *Notifier {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Notifier{
		tenants:    tenants,
		plans:      plans,
		kv:         kv,
		dispatcher: dispatcher,
		observer:   opts.Observer,
		summaryDay: opts.SummaryWeekday,
		now:        opts.Now,
		log:        log.With(logger.String("component", "notify")),
	}
}

// Jobs returns the reminder and summary sweeps as scheduler jobs.
func (n *Notifier) Jobs(reminderSpec, summarySpec string) []scheduler.Job {
	return []scheduler.Job{
		{Name: "reminders", Spec: reminderSpec, Run: func(ctx context.Context) error {
			_, err := n.SendReminders(ctx)
			return err
		}},
		{Name: "summary", Spec: summarySpec, Run: func(ctx context.Context) error {
			_, err := n.SendSummaries(ctx)
			return err
		}},
	}
}

// SendReminders emails each subscribed tenant the incomplete items due
// between today and today+NotifyDays that were not reminded about yet.
func (n *Notifier) SendReminders(ctx context.Context) (int, error) {
	tenants, err := n.tenants.List(ctx)
	if err != nil {
		return 0, err
	}
	today := content.DateOnly(n.now().UTC())

	sent := 0
	var errs []error
	for _, tenant := range tenants {
		ok, err := n.remindTenant(ctx, tenant, today)
		if err != nil {
			n.log.Warn("Reminder failed", logger.Error(err), logger.Tenant(tenant.UserID, tenant.WebsiteID))
			errs = append(errs, err)
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, errors.Join(errs...)
}

func (n *Notifier) remindTenant(ctx context.Context, tenant content.Tenant, today time.Time) (bool, error) {
	scoped := n.kv.ForTenant(tenant)
	settings, err := localstore.NewSettingsStore(scoped).Load(ctx)
	if err != nil {
		return false, err
	}
	if !settings.Enabled() {
		return false, nil
	}
	plan, err := n.plans.Load(ctx, tenant)
	if err != nil {
		return false, err
	}

	horizon := today.AddDate(0, 0, settings.NotifyDays)
	var due content.Plan
	var markers []string
	for _, item := range plan {
		day := content.DateOnly(item.DueDate.UTC())
		if item.Completed || day.Before(today) || day.After(horizon) {
			continue
		}
		key := fmt.Sprintf("notified:reminder:%s:%s", item.ID, day.Format(time.DateOnly))
		fresh, err := scoped.SetIfAbsent(ctx, key, n.now().UTC().Format(time.RFC3339), time.Duration(settings.NotifyDays)*24*time.Hour+markerSlack)
		if err != nil {
			return false, err
		}
		if fresh {
			due = append(due, item)
			markers = append(markers, key)
		}
	}
	if len(due) == 0 {
		return false, nil
	}

	html, err := render(reminderTemplate, reminderData{Items: due, Days: settings.NotifyDays})
	if err != nil {
		return false, err
	}
	subject := fmt.Sprintf("%d content item(s) due soon", len(due))
	if err := n.send(ctx, Message{To: settings.Email, Subject: subject, HTML: html, Type: TypeReminder}); err != nil {
		// let the next sweep try again
		for _, key := range markers {
			_ = scoped.Delete(ctx, key)
		}
		return false, err
	}
	return true, nil
}

// SendSummaries emails the weekly overview. The sweep runs daily and only
// sends on the configured weekday.
func (n *Notifier) SendSummaries(ctx context.Context) (int, error) {
	now := n.now().UTC()
	if now.Weekday() != n.summaryDay {
		return 0, nil
	}
	tenants, err := n.tenants.List(ctx)
	if err != nil {
		return 0, err
	}
	today := content.DateOnly(now)

	sent := 0
	var errs []error
	for _, tenant := range tenants {
		ok, err := n.summarizeTenant(ctx, tenant, today)
		if err != nil {
			n.log.Warn("Summary failed", logger.Error(err), logger.Tenant(tenant.UserID, tenant.WebsiteID))
			errs = append(errs, err)
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, errors.Join(errs...)
}

func (n *Notifier) summarizeTenant(ctx context.Context, tenant content.Tenant, today time.Time) (bool, error) {
	scoped := n.kv.ForTenant(tenant)
	settings, err := localstore.NewSettingsStore(scoped).Load(ctx)
	if err != nil {
		return false, err
	}
	if !settings.Enabled() || !settings.WeeklySummary {
		return false, nil
	}

	key := "notified:summary:" + today.Format(time.DateOnly)
	fresh, err := scoped.SetIfAbsent(ctx, key, n.now().UTC().Format(time.RFC3339), summaryWindow+markerSlack)
	if err != nil || !fresh {
		return false, err
	}

	plan, err := n.plans.Load(ctx, tenant)
	if err != nil {
		_ = scoped.Delete(ctx, key)
		return false, err
	}
	data := summarize(plan, today)
	html, err := render(summaryTemplate, data)
	if err != nil {
		_ = scoped.Delete(ctx, key)
		return false, err
	}
	subject := fmt.Sprintf("Your content week: %d coming up", len(data.Upcoming))
	if err := n.send(ctx, Message{To: settings.Email, Subject: subject, HTML: html, Type: TypeSummary}); err != nil {
		_ = scoped.Delete(ctx, key)
		return false, err
	}
	return true, nil
}

func summarize(plan content.Plan, today time.Time) summaryData {
	data := summaryData{Total: len(plan), WeekOf: today}
	end := today.Add(summaryWindow)
	for _, item := range plan {
		if item.Completed {
			data.Completed++
			continue
		}
		day := content.DateOnly(item.DueDate.UTC())
		switch {
		case day.Before(today):
			data.Overdue = append(data.Overdue, item)
		case day.Before(end):
			data.Upcoming = append(data.Upcoming, item)
		}
	}
	return data
}

func (n *Notifier) send(ctx context.Context, msg Message) error {
	err := n.dispatcher.Send(ctx, msg)
	if n.observer != nil {
		n.observer.ObserveNotification(msg.Type, err)
	}
	return err
}
