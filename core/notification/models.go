package notification

import (
	"time"

	"github.com/trezcool/mahudhurio/core"
)

type Kind string

const (
	KindAttendanceChanged Kind = "attendance_changed"
	KindDailyDigest       Kind = "daily_digest"
)

type Notification struct {
	ID          string     `json:"id"`
	RecipientID string     `json:"recipient_id"`
	StudentID   *string    `json:"student_id"`
	Date        core.Date  `json:"date"`
	Kind        Kind       `json:"kind"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	CreatedAt   time.Time  `json:"created_at"` // UTC
	ReadAt      *time.Time `json:"read_at"`    // UTC
}

func (n Notification) IsRead() bool { return n.ReadAt != nil }

type Filter struct {
	RecipientID string
	UnreadOnly  bool `query:"unread"`
}
