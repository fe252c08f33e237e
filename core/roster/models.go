package roster

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mahudhurio/core"
)

type Class struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Grade     string    `json:"grade"`
	Section   string    `json:"section"`
	Capacity  int       `json:"capacity"` // 0: unlimited
	TeacherID *string   `json:"teacher_id"`
	SchoolID  string    `json:"school_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Student is soft-deleted: an inactive student keeps its attendance history but can no longer be marked.
type Student struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	RollNumber string    `json:"roll_number"`
	ClassID    string    `json:"class_id"`
	ParentID   *string   `json:"parent_id"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

// Settings are per school and only read by the notifier and the digest; attendance status is never derived from them.
type Settings struct {
	SchoolID                string    `json:"school_id"`
	AutoMarkAbsentAfter     string    `json:"auto_mark_absent_after" validate:"required,hhmm"`
	LateThresholdMinutes    int       `json:"late_threshold_minutes" validate:"min=0,max=240"`
	SummaryNotificationTime string    `json:"summary_notification_time" validate:"required,hhmm"`
	NotifyParents           bool      `json:"notify_parents"`
	UpdatedAt               time.Time `json:"updated_at"` // UTC
}

func DefaultSettings(schoolID string) Settings {
	return Settings{
		SchoolID:                schoolID,
		AutoMarkAbsentAfter:     "10:00",
		LateThresholdMinutes:    15,
		SummaryNotificationTime: "17:00",
		NotifyParents:           true,
	}
}

func (s *Settings) Validate(validate *validator.Validate) error {
	s.AutoMarkAbsentAfter = core.CleanString(s.AutoMarkAbsentAfter)
	s.SummaryNotificationTime = core.CleanString(s.SummaryNotificationTime)
	return validate.Struct(s)
}

type NewClass struct {
	Name      string  `json:"name" validate:"required,max=100"`
	Grade     string  `json:"grade" validate:"required,max=20"`
	Section   string  `json:"section" validate:"max=20"`
	Capacity  int     `json:"capacity" validate:"min=0"`
	TeacherID *string `json:"teacher_id" validate:"omitempty,uuid"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Grade = core.CleanString(nc.Grade)
	nc.Section = core.CleanString(nc.Section)
	return validate.Struct(nc)
}

type UpdateClass struct {
	Name      string  `json:"name" validate:"max=100"`
	Grade     string  `json:"grade" validate:"max=20"`
	Section   *string `json:"section" validate:"omitempty,max=20"`
	Capacity  *int    `json:"capacity" validate:"omitempty,min=0"`
	TeacherID *string `json:"teacher_id" validate:"omitempty,uuid"`
}

func (uc *UpdateClass) Validate(validate *validator.Validate) error {
	uc.Name = core.CleanString(uc.Name)
	uc.Grade = core.CleanString(uc.Grade)
	return validate.Struct(uc)
}

type NewStudent struct {
	Name       string  `json:"name" validate:"required,max=100"`
	RollNumber string  `json:"roll_number" validate:"required,max=30,alphanum_"`
	ClassID    string  `json:"class_id" validate:"required,uuid"`
	ParentID   *string `json:"parent_id" validate:"omitempty,uuid"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.RollNumber = core.CleanString(ns.RollNumber)
	ns.ClassID = core.CleanString(ns.ClassID)
	return validate.Struct(ns)
}

type UpdateStudent struct {
	Name       string  `json:"name" validate:"max=100"`
	RollNumber string  `json:"roll_number" validate:"omitempty,max=30,alphanum_"`
	ParentID   *string `json:"parent_id" validate:"omitempty,uuid"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	us.Name = core.CleanString(us.Name)
	us.RollNumber = core.CleanString(us.RollNumber)
	return validate.Struct(us)
}

type TransferStudent struct {
	ClassID string `json:"class_id" validate:"required,uuid"`
}

type ClassFilter struct {
	Search    string `query:"search"`
	Grade     string `query:"grade"`
	TeacherID string `query:"teacher_id"`
}

func (cf *ClassFilter) Clean() {
	cf.Search = core.CleanString(cf.Search)
	cf.Grade = core.CleanString(cf.Grade)
}

type StudentFilter struct {
	Search     string   `query:"search"`
	ClassID    string   `query:"class_id"`
	ParentID   string   `query:"parent_id"`
	RollNumber string   `query:"roll_number"`
	IsActive   *bool    `query:"is_active"`
	IDs        []string `query:"-"`
}

func (sf *StudentFilter) Clean() {
	sf.Search = core.CleanString(sf.Search)
	sf.RollNumber = core.CleanString(sf.RollNumber)
}
