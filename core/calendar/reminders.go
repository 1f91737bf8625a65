package calendar

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/pkg/errors"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/notification"
	"github.com/spist/campus/core/user"
)

// Remind subscribes usr to a reminder, due notification_days before the event at the user's
// notification time.
func (svc *service) Remind(ctx context.Context, usr user.User, eventID string) (Reminder, error) {
	ev, err := svc.GetEvent(ctx, usr, eventID)
	if err != nil {
		return Reminder{}, err
	}
	e := ev.Event
	if e.IsPast(NowFunc().UTC()) {
		return Reminder{}, ErrEventEnded
	}
	if !e.SendNotifications {
		return Reminder{}, ErrRemindersOff
	}
	settings, err := svc.GetSettings(ctx, usr)
	if err != nil {
		return Reminder{}, err
	}

	return svc.repo.SaveReminder(ctx, Reminder{
		ID:           newID(),
		EventID:      e.ID,
		UserID:       usr.ID,
		ReminderDate: reminderDate(e, settings),
	})
}

func reminderDate(e Event, s Settings) time.Time {
	h, m := s.notificationClock()
	day := e.StartDate.AddDate(0, 0, -e.NotificationDays)
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, time.UTC)
}

// SendDueReminders e-mails and notifies the users of their due reminders and marks them sent.
func (svc *service) SendDueReminders(ctx context.Context) (int, error) {
	now := NowFunc().UTC()
	reminders, err := svc.repo.QueryDueReminders(ctx, now)
	if err != nil {
		return 0, errors.Wrap(err, "querying due reminders")
	}

	sent := 0
	var messages []*core.EmailMessage
	for _, r := range reminders {
		e, err := svc.repo.GetEvent(ctx, r.EventID)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return sent, errors.Wrap(err, "getting event")
		}
		usr, err := svc.usrSvc.GetByID(ctx, r.UserID)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return sent, errors.Wrap(err, "getting user")
		}
		settings, err := svc.GetSettings(ctx, usr)
		if err != nil {
			return sent, err
		}

		when := describeWhen(e)
		if settings.EmailNotifications && usr.Email != "" {
			msg, err := reminderMessage(usr, e, when, svc.conf.AppName)
			if err != nil {
				return sent, err
			}
			messages = append(messages, msg)
		}
		if settings.BrowserNotifications {
			msg := fmt.Sprintf("%s: %s", e.Title, when)
			if _, err := svc.notifSvc.Notify(ctx, usr.ID, "Event reminder", msg, notification.TypeInfo); err != nil {
				svc.logger.Error(fmt.Sprintf("notifying event reminder: %v", err), err, usr)
			}
		}

		r.IsSent = true
		r.SentAt = &now
		if _, err = svc.repo.SaveReminder(ctx, r); err != nil {
			return sent, errors.Wrap(err, "marking reminder sent")
		}
		sent++
	}
	if len(messages) > 0 {
		svc.mailSvc.SendMessages(messages...)
	}
	return sent, nil
}

func describeWhen(e Event) string {
	var b strings.Builder
	b.WriteString(e.StartDate.Format("Monday, January 2, 2006"))
	if !e.IsAllDay && e.StartTime != "" {
		b.WriteString(" at " + e.StartTime)
	}
	if e.DurationDays() > 1 {
		b.WriteString(" to " + e.EndDate.Format("Monday, January 2, 2006"))
	}
	return b.String()
}

func reminderMessage(usr user.User, e Event, when, appName string) (*core.EmailMessage, error) {
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject:      fmt.Sprintf("Reminder: %s", e.Title),
		TemplateName: "event_reminder",
		TemplateData: map[string]string{
			"Name":        usr.FullName(),
			"Title":       e.Title,
			"When":        when,
			"Location":    e.Location,
			"MeetingLink": e.MeetingLink,
			"EventID":     e.ID,
		},
	}
	ical := ICS(e, appName, NowFunc().UTC())
	if err := msg.Attach(strings.NewReader(ical), "event.ics", "text/calendar; charset=utf-8"); err != nil {
		return nil, errors.Wrap(err, "attaching event.ics")
	}
	return msg, nil
}

// ICS renders the event as an iCalendar document.
func ICS(e Event, prodID string, stamp time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//" + prodID + "//Calendar//EN")

	ev := cal.AddEvent(e.ID)
	ev.SetDtStampTime(stamp)
	start, startOK := atClock(e.StartDate, e.StartTime)
	end, endOK := atClock(e.EndDate, e.EndTime)
	if e.IsAllDay || !startOK {
		ev.SetAllDayStartAt(e.StartDate)
		ev.SetAllDayEndAt(e.EndDate.AddDate(0, 0, 1))
	} else {
		if !endOK {
			end = start.Add(time.Hour)
		}
		ev.SetStartAt(start)
		ev.SetEndAt(end)
	}
	ev.SetSummary(e.Title)
	if desc := core.StripTags(e.Description); desc != "" {
		ev.SetDescription(desc)
	}
	if e.Location != "" {
		ev.SetLocation(e.Location)
	}
	if e.MeetingLink != "" {
		ev.SetURL(e.MeetingLink)
	}
	return cal.Serialize()
}

func atClock(day time.Time, clock string) (time.Time, bool) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return day, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), true
}
