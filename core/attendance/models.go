package attendance

import (
	"strings"
	"time"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/roster"
)

type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusAbsent  Status = "ABSENT"
	StatusLate    Status = "LATE"
	StatusExcused Status = "EXCUSED"

	// DefaultStatus is stored when an entry omits its status.
	DefaultStatus = StatusAbsent
)

var Statuses = []Status{StatusPresent, StatusAbsent, StatusLate, StatusExcused}

// ParseStatus accepts any casing of a known status; an empty string yields DefaultStatus.
func ParseStatus(s string) (Status, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return DefaultStatus, true
	}
	st := Status(s)
	return st, st.Valid()
}

func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	}
	return false
}

// Attended tells whether s counts toward the attendance rate.
func (s Status) Attended() bool {
	return s == StatusPresent || s == StatusLate || s == StatusExcused
}

// Record is the one attendance row of a student for a day.
// ClassID is the class the student was in when marked, not their current class.
type Record struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	ClassID   string    `json:"class_id"`
	Date      core.Date `json:"date"`
	Status    Status    `json:"status"`
	MarkedBy  string    `json:"marked_by"`
	Remarks   *string   `json:"remarks"`
	MarkedAt  time.Time `json:"marked_at"` // UTC
}

// Upserted is a written Record along with the status its key held before the write.
type Upserted struct {
	Record   Record
	Previous *Status // nil: the record was created
}

type Entry struct {
	StudentID string `json:"student_id"`
	Status    string `json:"status"`
	Remarks   string `json:"remarks"`
}

type MarkRequest struct {
	ClassID  string    `json:"-"`
	Date     core.Date `json:"date"`
	MarkedBy string    `json:"-"`
	Entries  []Entry   `json:"entries"`
}

type MarkResult struct {
	Updated int      `json:"updated"`
	Changes []Change `json:"-"`
}

// Change is published for every record whose status differs from what was stored before.
type Change struct {
	StudentID string    `json:"student_id"`
	ClassID   string    `json:"class_id"`
	Date      core.Date `json:"date"`
	OldStatus *Status   `json:"old_status"`
	NewStatus Status    `json:"new_status"`
	Remarks   *string   `json:"remarks"`
	MarkedBy  string    `json:"marked_by"`
}

// ClassDayRow is one line of the marking sheet. Status is nil while the student is unmarked.
type ClassDayRow struct {
	Student  roster.Student `json:"student"`
	RecordID *string        `json:"record_id"`
	Status   *Status        `json:"status"`
	Remarks  *string        `json:"remarks"`
}

// RecordFilter selects records; zero fields do not filter. From and To are inclusive.
type RecordFilter struct {
	StudentIDs []string
	ClassID    string
	From       core.Date
	To         core.Date
}

type StudentSummary struct {
	StudentID            string    `json:"student_id"`
	StartDate            core.Date `json:"start_date"`
	EndDate              core.Date `json:"end_date"`
	TotalDays            int       `json:"total_days"`
	PresentDays          int       `json:"present_days"`
	AbsentDays           int       `json:"absent_days"`
	LateDays             int       `json:"late_days"`
	ExcusedDays          int       `json:"excused_days"`
	AttendancePercentage float64   `json:"attendance_percentage"`
}

type DayCounts struct {
	Date     core.Date `json:"date"`
	Present  int       `json:"present"`
	Absent   int       `json:"absent"`
	Late     int       `json:"late"`
	Excused  int       `json:"excused"`
	Unmarked int       `json:"unmarked"`
}

func (dc DayCounts) marked() int   { return dc.Present + dc.Absent + dc.Late + dc.Excused }
func (dc DayCounts) attended() int { return dc.Present + dc.Late + dc.Excused }

type ClassOverall struct {
	AttendanceRate      float64 `json:"attendance_rate"`
	MarkedStudentDays   int     `json:"marked_student_days"`
	AttendedStudentDays int     `json:"attended_student_days"`
}

type ClassSummary struct {
	ClassID       string       `json:"class_id"`
	ClassName     string       `json:"class_name"`
	StartDate     core.Date    `json:"start_date"`
	EndDate       core.Date    `json:"end_date"`
	TotalStudents int          `json:"total_students"`
	PerDay        []DayCounts  `json:"per_day"`
	Overall       ClassOverall `json:"overall"`
}

type SchoolStats struct {
	TotalClasses          int     `json:"total_classes"`
	TotalStudents         int     `json:"total_students"`
	OverallAttendanceRate float64 `json:"overall_attendance_rate"`
}

type SchoolSummary struct {
	StartDate      core.Date      `json:"start_date"`
	EndDate        core.Date      `json:"end_date"`
	ClassSummaries []ClassSummary `json:"class_summaries"`
	OverallStats   SchoolStats    `json:"overall_stats"`
}
