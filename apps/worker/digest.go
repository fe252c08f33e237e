package main

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/core/user"
)

var nowFunc = time.Now // mockable

type (
	schoolSummarizer interface {
		SummarizeSchool(ctx context.Context, start, end core.Date) (attendance.SchoolSummary, error)
	}

	userQuerier interface {
		Query(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error)
	}

	notifier interface {
		Notify(ctx context.Context, n notification.Notification) (notification.Notification, error)
	}

	// digester sends the day's school summary to every active admin.
	digester struct {
		summarizer schoolSummarizer
		users      userQuerier
		notifier   notifier
		mailSvc    core.EmailService
		logger     core.Logger
		tz         *time.Location
	}

	digestClass struct {
		Name     string
		Present  int
		Absent   int
		Late     int
		Excused  int
		Unmarked int
	}

	digestData struct {
		Date          string
		Rate          float64
		TotalClasses  int
		TotalStudents int
		Classes       []digestClass
	}
)

func newDigester(
	summarizer schoolSummarizer,
	users userQuerier,
	ntf notifier,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *digester {
	vala.BeginValidation().Validate(
		vala.IsNotNil(summarizer, "summarizer"),
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(ntf, "notifier"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(logger, "logger"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	tz := conf.Timezone
	if tz == nil {
		tz = time.UTC
	}
	return &digester{summarizer: summarizer, users: users, notifier: ntf, mailSvc: mailSvc, logger: logger, tz: tz}
}

// run sends the digest of today, in the school's timezone.
func (d *digester) run(ctx context.Context) error {
	return d.send(ctx, core.Today(nowFunc(), d.tz))
}

func (d *digester) send(ctx context.Context, date core.Date) error {
	sum, err := d.summarizer.SummarizeSchool(ctx, date, date)
	if err != nil {
		return errors.Wrap(err, "summarizing school attendance")
	}

	active := true
	admins, err := d.users.Query(ctx, &user.QueryFilter{Roles: []string{user.RoleAdmin}, IsActive: &active}, nil)
	if err != nil {
		return errors.Wrap(err, "querying admins")
	}
	if len(admins) == 0 {
		d.logger.Warn(fmt.Sprintf("no admin to send the %s digest to", date))
		return nil
	}

	data := newDigestData(date, sum)
	title := fmt.Sprintf("Attendance digest for %s: %.1f%%", data.Date, data.Rate)
	body := fmt.Sprintf("%.1f%% attendance across %d classes (%d students).", data.Rate, data.TotalClasses, data.TotalStudents)

	messages := make([]*core.EmailMessage, 0, len(admins))
	for _, admin := range admins {
		if _, err = d.notifier.Notify(ctx, notification.Notification{
			RecipientID: admin.ID,
			Date:        date,
			Kind:        notification.KindDailyDigest,
			Title:       title,
			Body:        body,
		}); err != nil {
			return errors.Wrapf(err, "notifying admin %s", admin.ID)
		}
		if admin.Email == "" {
			continue
		}
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Name: admin.Name, Address: admin.Email}},
			Subject:      title,
			TemplateName: string(notification.KindDailyDigest),
			TemplateData: data,
		})
	}
	if len(messages) > 0 {
		d.mailSvc.SendMessages(messages...)
	}
	d.logger.Info(fmt.Sprintf("%s digest sent to %d admins", date, len(admins)))
	return nil
}

func newDigestData(date core.Date, sum attendance.SchoolSummary) digestData {
	data := digestData{
		Date:          date.String(),
		Rate:          sum.OverallStats.OverallAttendanceRate,
		TotalClasses:  sum.OverallStats.TotalClasses,
		TotalStudents: sum.OverallStats.TotalStudents,
		Classes:       make([]digestClass, 0, len(sum.ClassSummaries)),
	}
	for _, cs := range sum.ClassSummaries {
		dc := digestClass{Name: cs.ClassName, Unmarked: cs.TotalStudents}
		for _, day := range cs.PerDay {
			if day.Date.Equal(date) {
				dc.Present, dc.Absent, dc.Late, dc.Excused, dc.Unmarked = day.Present, day.Absent, day.Late, day.Excused, day.Unmarked
			}
		}
		data.Classes = append(data.Classes, dc)
	}
	return data
}
