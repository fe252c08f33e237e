package notification

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/roster"
	"github.com/trezcool/mahudhurio/core/user"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("notification")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification, exec ...core.DBExecutor) (Notification, error)
		// QueryNotifications returns the newest notifications first.
		QueryNotifications(ctx context.Context, filter Filter, exec ...core.DBExecutor) ([]Notification, error)
		GetNotification(ctx context.Context, id string, exec ...core.DBExecutor) (Notification, error)
		UpdateNotification(ctx context.Context, n Notification, exec ...core.DBExecutor) (Notification, error)
	}

	// Roster is the part of the roster the notifier reads.
	Roster interface {
		GetStudent(ctx context.Context, id string) (roster.Student, error)
		GetSettings(ctx context.Context) (roster.Settings, error)
	}

	// UserGetter finds the recipients.
	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo    Repository
		roster  Roster
		users   UserGetter
		mailSvc core.EmailService
		logger  core.Logger
	}
)

var _ attendance.Publisher = (*Service)(nil) // interface compliance check

func NewService(repo Repository, rstr Roster, users UserGetter, mailSvc core.EmailService, logger core.Logger) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(rstr, "roster"),
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Service{repo: repo, roster: rstr, users: users, mailSvc: mailSvc, logger: logger}
}

// Publish tells the parent of the student about a status change.
// It does nothing when the school turned parent notifications off or the student has no active parent.
func (svc *Service) Publish(ctx context.Context, change attendance.Change) error {
	settings, err := svc.roster.GetSettings(ctx)
	if err != nil {
		return errors.Wrap(err, "reading settings")
	}
	if !settings.NotifyParents {
		return nil
	}

	student, err := svc.roster.GetStudent(ctx, change.StudentID)
	if err != nil {
		return errors.Wrap(err, "finding student")
	}
	if student.ParentID == nil {
		return nil
	}
	parent, err := svc.users.GetByID(ctx, *student.ParentID)
	if err != nil {
		if core.IsNotFound(err) {
			return nil
		}
		return errors.Wrap(err, "finding parent")
	}
	if !parent.Active() {
		return nil
	}

	sid := student.ID
	n, err := svc.Notify(ctx, Notification{
		RecipientID: parent.ID,
		StudentID:   &sid,
		Date:        change.Date,
		Kind:        KindAttendanceChanged,
		Title:       fmt.Sprintf("%s was marked %s", student.Name, change.NewStatus),
		Body:        changeBody(student, change),
	})
	if err != nil {
		return err
	}

	if parent.Email != "" {
		remarks := ""
		if change.Remarks != nil {
			remarks = *change.Remarks
		}
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: parent.Name, Address: parent.Email}},
			Subject:      n.Title,
			TemplateName: string(KindAttendanceChanged),
			TemplateData: map[string]string{
				"StudentName": student.Name,
				"StudentID":   student.ID,
				"Status":      string(change.NewStatus),
				"Date":        change.Date.String(),
				"Remarks":     remarks,
			},
		})
	}
	return nil
}

// Notify stores a notification for its recipient.
func (svc *Service) Notify(ctx context.Context, n Notification) (Notification, error) {
	n.ID = core.NewID()
	n.CreatedAt = nowFunc().UTC()
	n.ReadAt = nil
	n, err := svc.repo.CreateNotification(ctx, n)
	if err != nil {
		return Notification{}, errors.Wrap(err, "creating notification")
	}
	return n, nil
}

func (svc *Service) List(ctx context.Context, recipientID string, unreadOnly bool) ([]Notification, error) {
	notifs, err := svc.repo.QueryNotifications(ctx, Filter{RecipientID: recipientID, UnreadOnly: unreadOnly})
	if err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	if notifs == nil {
		notifs = []Notification{}
	}
	return notifs, nil
}

// MarkRead flags a notification of recipientID as read. Someone else's notification is reported missing.
func (svc *Service) MarkRead(ctx context.Context, id, recipientID string) (Notification, error) {
	if !core.IsID(id) {
		return Notification{}, ErrNotFound
	}
	n, err := svc.repo.GetNotification(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if n.RecipientID != recipientID {
		return Notification{}, ErrNotFound
	}
	if n.IsRead() {
		return n, nil
	}
	now := nowFunc().UTC()
	n.ReadAt = &now
	return svc.repo.UpdateNotification(ctx, n)
}

func changeBody(student roster.Student, change attendance.Change) string {
	body := fmt.Sprintf("%s (%s) was marked %s on %s.", student.Name, student.RollNumber, change.NewStatus, change.Date)
	if change.OldStatus != nil {
		body = fmt.Sprintf("%s (%s) was changed from %s to %s on %s.",
			student.Name, student.RollNumber, *change.OldStatus, change.NewStatus, change.Date)
	}
	if change.Remarks != nil {
		body += " Remarks: " + *change.Remarks
	}
	return body
}
