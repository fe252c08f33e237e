package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/roster"
)

func rec(student, class, date string, status Status) Record {
	return Record{StudentID: student, ClassID: class, Date: core.MustParseDate(date), Status: status}
}

func TestRate(t *testing.T) {
	tests := []struct {
		attended, total int
		want            float64
	}{
		{0, 0, 0},
		{0, 3, 0},
		{2, 3, 66.7},
		{1, 3, 33.3},
		{3, 3, 100},
		{1, 8, 12.5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rate(tt.attended, tt.total), "rate(%d, %d)", tt.attended, tt.total)
	}
}

func TestSummarizeStudentRecords(t *testing.T) {
	start, end := core.MustParseDate("2024-03-01"), core.MustParseDate("2024-03-10")

	t.Run("unmarked days are left out", func(t *testing.T) {
		var records []Record
		for _, d := range []string{"2024-03-01", "2024-03-03", "2024-03-05", "2024-03-07", "2024-03-09"} {
			records = append(records, rec("D", "c", d, StatusPresent))
		}
		sum := SummarizeStudentRecords("D", start, end, records)
		assert.Equal(t, 5, sum.TotalDays)
		assert.Equal(t, 5, sum.PresentDays)
		assert.Equal(t, 100.0, sum.AttendancePercentage)
	})

	t.Run("every status is counted", func(t *testing.T) {
		records := []Record{
			rec("s", "c", "2024-03-01", StatusPresent),
			rec("s", "c", "2024-03-02", StatusAbsent),
			rec("s", "c", "2024-03-03", StatusLate),
			rec("s", "c", "2024-03-04", StatusExcused),
			rec("s", "c", "2024-02-28", StatusPresent), // out of range
			rec("other", "c", "2024-03-05", StatusPresent),
		}
		sum := SummarizeStudentRecords("s", start, end, records)
		assert.Equal(t, StudentSummary{
			StudentID:            "s",
			StartDate:            start,
			EndDate:              end,
			TotalDays:            4,
			PresentDays:          1,
			AbsentDays:           1,
			LateDays:             1,
			ExcusedDays:          1,
			AttendancePercentage: 75,
		}, sum)
	})

	t.Run("no records", func(t *testing.T) {
		sum := SummarizeStudentRecords("s", start, end, nil)
		assert.Zero(t, sum.TotalDays)
		assert.Zero(t, sum.AttendancePercentage)
	})
}

func TestSummarizeClassRecords(t *testing.T) {
	class := roster.Class{ID: "C", Name: "Grade 1"}
	day := core.MustParseDate("2024-03-01")

	t.Run("one day", func(t *testing.T) {
		records := []Record{
			rec("A", "C", "2024-03-01", StatusPresent),
			rec("B", "C", "2024-03-01", StatusAbsent),
			rec("C", "C", "2024-03-01", StatusLate),
		}
		sum := SummarizeClassRecords(class, 3, day, day, records)
		require.Len(t, sum.PerDay, 1)
		assert.Equal(t, DayCounts{Date: day, Present: 1, Absent: 1, Late: 1}, sum.PerDay[0])
		assert.Equal(t, ClassOverall{AttendanceRate: 66.7, MarkedStudentDays: 3, AttendedStudentDays: 2}, sum.Overall)
	})

	t.Run("every day of the range is listed", func(t *testing.T) {
		end := day.AddDays(6)
		records := []Record{
			rec("A", "C", "2024-03-02", StatusPresent),
			rec("A", "other", "2024-03-03", StatusPresent), // marked in another class
		}
		sum := SummarizeClassRecords(class, 2, day, end, records)
		require.Len(t, sum.PerDay, 7)
		for i, dc := range sum.PerDay {
			assert.Equal(t, day.AddDays(i), dc.Date)
		}
		assert.Equal(t, 2, sum.PerDay[0].Unmarked)
		assert.Equal(t, DayCounts{Date: day.AddDays(1), Present: 1, Unmarked: 1}, sum.PerDay[1])
		assert.Equal(t, 1, sum.Overall.MarkedStudentDays)
		assert.Equal(t, 100.0, sum.Overall.AttendanceRate)
	})

	t.Run("more records than members", func(t *testing.T) {
		records := []Record{
			rec("A", "C", "2024-03-01", StatusPresent),
			rec("B", "C", "2024-03-01", StatusPresent),
		}
		sum := SummarizeClassRecords(class, 1, day, day, records)
		assert.Zero(t, sum.PerDay[0].Unmarked)
	})

	t.Run("nothing marked", func(t *testing.T) {
		sum := SummarizeClassRecords(class, 3, day, day, nil)
		assert.Equal(t, 3, sum.PerDay[0].Unmarked)
		assert.Zero(t, sum.Overall.AttendanceRate)
	})
}

func TestSummarizeSchoolClasses(t *testing.T) {
	classes := []ClassSummary{
		{TotalStudents: 10, Overall: ClassOverall{AttendanceRate: 100, MarkedStudentDays: 1, AttendedStudentDays: 1}},
		{TotalStudents: 20, Overall: ClassOverall{AttendanceRate: 0, MarkedStudentDays: 9, AttendedStudentDays: 0}},
		{TotalStudents: 5},
	}
	stats := SummarizeSchoolClasses(classes)
	assert.Equal(t, SchoolStats{TotalClasses: 3, TotalStudents: 35, OverallAttendanceRate: 10}, stats)

	assert.Equal(t, SchoolStats{}, SummarizeSchoolClasses(nil))
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in     string
		want   Status
		wantOk bool
	}{
		{"PRESENT", StatusPresent, true},
		{" late ", StatusLate, true},
		{"Excused", StatusExcused, true},
		{"", DefaultStatus, true},
		{"HERE", Status("HERE"), false},
	}
	for _, tt := range tests {
		got, ok := ParseStatus(tt.in)
		assert.Equal(t, tt.wantOk, ok, tt.in)
		if ok {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}
