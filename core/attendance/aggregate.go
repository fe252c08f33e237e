package attendance

import (
	"math"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/roster"
)

// rate is attended/total as a percentage rounded to one decimal; 0 when total is 0.
func rate(attended, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(attended)*1000/float64(total)) / 10
}

func inRange(d, start, end core.Date) bool {
	return !d.Before(start) && !d.After(end)
}

// SummarizeStudentRecords folds the records of one student over [start, end].
// Days without a record are not counted.
func SummarizeStudentRecords(studentID string, start, end core.Date, records []Record) StudentSummary {
	sum := StudentSummary{StudentID: studentID, StartDate: start, EndDate: end}
	seen := make(map[core.Date]bool, len(records))

	for _, rec := range records {
		if rec.StudentID != studentID || !inRange(rec.Date, start, end) || seen[rec.Date] {
			continue
		}
		seen[rec.Date] = true

		sum.TotalDays++
		switch rec.Status {
		case StatusPresent:
			sum.PresentDays++
		case StatusAbsent:
			sum.AbsentDays++
		case StatusLate:
			sum.LateDays++
		case StatusExcused:
			sum.ExcusedDays++
		}
	}
	sum.AttendancePercentage = rate(sum.PresentDays+sum.LateDays+sum.ExcusedDays, sum.TotalDays)
	return sum
}

// SummarizeClassRecords folds records over every calendar day of [start, end].
// Only records marked in class count, whatever class the student is in today.
func SummarizeClassRecords(class roster.Class, totalStudents int, start, end core.Date, records []Record) ClassSummary {
	days := core.DateRange(start, end)
	sum := ClassSummary{
		ClassID:       class.ID,
		ClassName:     class.Name,
		StartDate:     start,
		EndDate:       end,
		TotalStudents: totalStudents,
		PerDay:        make([]DayCounts, len(days)),
	}

	index := make(map[core.Date]int, len(days))
	for i, d := range days {
		sum.PerDay[i].Date = d
		index[d] = i
	}

	for _, rec := range records {
		if rec.ClassID != class.ID {
			continue
		}
		i, ok := index[rec.Date]
		if !ok {
			continue
		}
		switch rec.Status {
		case StatusPresent:
			sum.PerDay[i].Present++
		case StatusAbsent:
			sum.PerDay[i].Absent++
		case StatusLate:
			sum.PerDay[i].Late++
		case StatusExcused:
			sum.PerDay[i].Excused++
		}
	}

	for i := range sum.PerDay {
		dc := &sum.PerDay[i]
		// transferred-out students may leave more records than current members
		if unmarked := totalStudents - dc.marked(); unmarked > 0 {
			dc.Unmarked = unmarked
		}
		sum.Overall.MarkedStudentDays += dc.marked()
		sum.Overall.AttendedStudentDays += dc.attended()
	}
	sum.Overall.AttendanceRate = rate(sum.Overall.AttendedStudentDays, sum.Overall.MarkedStudentDays)
	return sum
}

// SummarizeSchoolClasses rolls class summaries up, weighting each class by its marked-student-days.
func SummarizeSchoolClasses(classes []ClassSummary) SchoolStats {
	stats := SchoolStats{TotalClasses: len(classes)}
	var marked, attended int
	for _, cs := range classes {
		stats.TotalStudents += cs.TotalStudents
		marked += cs.Overall.MarkedStudentDays
		attended += cs.Overall.AttendedStudentDays
	}
	stats.OverallAttendanceRate = rate(attended, marked)
	return stats
}
