package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/storage/database"
)

const notificationsTable = "notifications"

var notificationColumns = []string{"id", "recipient_id", "student_id", "date", "kind", "title", "body", "created_at", "read_at"}

type notificationRow struct {
	ID          string      `db:"id"`
	RecipientID string      `db:"recipient_id"`
	StudentID   null.String `db:"student_id"`
	Date        core.Date   `db:"date"`
	Kind        string      `db:"kind"`
	Title       string      `db:"title"`
	Body        string      `db:"body"`
	CreatedAt   time.Time   `db:"created_at"`
	ReadAt      null.Time   `db:"read_at"`
}

func (r notificationRow) notification() notification.Notification {
	n := notification.Notification{
		ID:          r.ID,
		RecipientID: r.RecipientID,
		StudentID:   r.StudentID.Ptr(),
		Date:        r.Date,
		Kind:        notification.Kind(r.Kind),
		Title:       r.Title,
		Body:        r.Body,
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if r.ReadAt.Valid {
		readAt := r.ReadAt.Time.UTC()
		n.ReadAt = &readAt
	}
	return n
}

type notificationRepository struct {
	baseRepository
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(exec core.DBExecutor) *notificationRepository {
	return &notificationRepository{baseRepository{exec: exec}}
}

func (repo notificationRepository) CreateNotification(
	ctx context.Context,
	n notification.Notification,
	exec ...core.DBExecutor,
) (notification.Notification, error) {
	if n.ID == "" {
		n.ID = core.NewID()
	}
	q := psql.Insert(notificationsTable).
		Columns(notificationColumns...).
		Values(
			n.ID, n.RecipientID, null.StringFromPtr(n.StudentID), n.Date, string(n.Kind),
			n.Title, n.Body, n.CreatedAt.UTC(), null.TimeFromPtr(n.ReadAt),
		).
		Suffix("RETURNING " + joinColumns(notificationColumns))

	var row notificationRow
	if err := selectOne(ctx, repo.getExec(exec), &row, q); err != nil {
		return notification.Notification{}, database.TrapError(err, notification.ErrNotFound, "inserting notification")
	}
	return row.notification(), nil
}

func (repo notificationRepository) QueryNotifications(
	ctx context.Context,
	filter notification.Filter,
	exec ...core.DBExecutor,
) ([]notification.Notification, error) {
	q := psql.Select(notificationColumns...).From(notificationsTable).OrderBy("created_at DESC")
	if filter.RecipientID != "" {
		if !core.IsID(filter.RecipientID) {
			return []notification.Notification{}, nil
		}
		q = q.Where(sq.Eq{"recipient_id": filter.RecipientID})
	}
	if filter.UnreadOnly {
		q = q.Where(sq.Eq{"read_at": nil})
	}

	var rows []notificationRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, q); err != nil {
		return nil, database.TrapError(err, nil, "querying notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		notifs = append(notifs, r.notification())
	}
	return notifs, nil
}

func (repo notificationRepository) GetNotification(
	ctx context.Context,
	id string,
	exec ...core.DBExecutor,
) (notification.Notification, error) {
	if !core.IsID(id) {
		return notification.Notification{}, notification.ErrNotFound
	}
	q := psql.Select(notificationColumns...).From(notificationsTable).Where(sq.Eq{"id": id})

	var row notificationRow
	if err := selectOne(ctx, repo.getExec(exec), &row, q); err != nil {
		return notification.Notification{}, database.TrapError(err, notification.ErrNotFound, "finding notification")
	}
	return row.notification(), nil
}

// UpdateNotification only persists the read flag; the rest of a notification never changes.
func (repo notificationRepository) UpdateNotification(
	ctx context.Context,
	n notification.Notification,
	exec ...core.DBExecutor,
) (notification.Notification, error) {
	q := psql.Update(notificationsTable).
		Set("read_at", null.TimeFromPtr(n.ReadAt)).
		Where(sq.Eq{"id": n.ID}).
		Suffix("RETURNING " + joinColumns(notificationColumns))

	var row notificationRow
	if err := selectOne(ctx, repo.getExec(exec), &row, q); err != nil {
		return notification.Notification{}, database.TrapError(err, notification.ErrNotFound, "updating notification")
	}
	return row.notification(), nil
}
