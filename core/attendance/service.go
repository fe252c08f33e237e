package attendance

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/roster"
)

const maxRemarksLen = 500

var (
	// errors
	ErrRecordNotFound  = core.NewNotFoundError("attendance record")
	ErrInvalidEntries  = errors.New("invalid attendance entries")
	errFutureDate      = errors.New("date cannot be in the future")
	errDateRequired    = errors.New("date is required")
	errNoEntries       = errors.New("at least one entry is required")
	errStartAfterEnd   = errors.New("start_date cannot be after end_date")
	errRangeTooLong    = "date range cannot exceed %d days"
	errDuplicateEntry  = "student %s appears more than once"
	errNotInClass      = "student %s is not an active member of this class"
	errInvalidStatus   = "invalid status %q, expected one of PRESENT, ABSENT, LATE, EXCUSED"
	errRemarksTooLong  = "remarks cannot exceed %d characters"

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// UpsertRecords writes each record on its (student_id, date) key in a single transaction,
		// relying on the storage engine's native conflict resolution.
		UpsertRecords(ctx context.Context, records []Record, exec ...core.DBExecutor) ([]Upserted, error)
		GetRecord(ctx context.Context, id string, exec ...core.DBExecutor) (Record, error)
		// QueryRecords returns matching records ordered by date then student.
		QueryRecords(ctx context.Context, filter RecordFilter, exec ...core.DBExecutor) ([]Record, error)
		DeleteRecord(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	// Roster is the part of the roster the attendance service reads.
	Roster interface {
		GetClass(ctx context.Context, id string) (roster.Class, error)
		GetStudent(ctx context.Context, id string) (roster.Student, error)
		QueryClasses(ctx context.Context, filter *roster.ClassFilter, ordering []core.DBOrdering) ([]roster.Class, error)
		ActiveStudents(ctx context.Context, classID string) ([]roster.Student, error)
	}

	Service struct {
		repo      Repository
		roster    Roster
		publisher Publisher
		logger    core.Logger
		tz        *time.Location
		maxDays   int
	}
)

func NewService(repo Repository, rstr Roster, publisher Publisher, logger core.Logger, conf *core.Config) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(rstr, "roster"),
		vala.IsNotNil(logger, "logger"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	if publisher == nil {
		publisher = nopPublisher{}
	}
	tz := conf.Timezone
	if tz == nil {
		tz = time.UTC
	}
	return &Service{
		repo:      repo,
		roster:    rstr,
		publisher: publisher,
		logger:    logger,
		tz:        tz,
		maxDays:   conf.MaxRangeDays,
	}
}

// Mark records a class's attendance for one day.
// The whole batch is validated before anything is written: one bad entry rejects every entry.
func (svc *Service) Mark(ctx context.Context, req MarkRequest) (MarkResult, error) {
	if req.Date.IsZero() {
		return MarkResult{}, core.NewValidationError(errDateRequired, core.FieldError{Field: "date", Error: errDateRequired.Error()})
	}
	if req.Date.After(core.Today(nowFunc(), svc.tz)) {
		return MarkResult{}, core.NewValidationError(errFutureDate, core.FieldError{Field: "date", Error: errFutureDate.Error()})
	}
	if len(req.Entries) == 0 {
		return MarkResult{}, core.NewValidationError(errNoEntries, core.FieldError{Field: "entries", Error: errNoEntries.Error()})
	}

	class, err := svc.roster.GetClass(ctx, req.ClassID)
	if err != nil {
		return MarkResult{}, err
	}
	members, err := svc.roster.ActiveStudents(ctx, class.ID)
	if err != nil {
		return MarkResult{}, errors.Wrap(err, "listing class members")
	}
	isMember := make(map[string]bool, len(members))
	for _, s := range members {
		isMember[s.ID] = true
	}

	now := nowFunc().UTC()
	records := make([]Record, 0, len(req.Entries))
	seen := make(map[string]bool, len(req.Entries))
	var fldErrs []core.FieldError

	for i, entry := range req.Entries {
		sid := core.CleanString(entry.StudentID)
		switch {
		case seen[sid]:
			fldErrs = append(fldErrs, core.FieldErrorf(entryField(i, "student_id"), errDuplicateEntry, sid))
			continue
		case !isMember[sid]:
			fldErrs = append(fldErrs, core.FieldErrorf(entryField(i, "student_id"), errNotInClass, sid))
			continue
		}
		seen[sid] = true

		status, ok := ParseStatus(entry.Status)
		if !ok {
			fldErrs = append(fldErrs, core.FieldErrorf(entryField(i, "status"), errInvalidStatus, entry.Status))
			continue
		}
		remarks := core.CleanString(entry.Remarks)
		if utf8.RuneCountInString(remarks) > maxRemarksLen {
			fldErrs = append(fldErrs, core.FieldErrorf(entryField(i, "remarks"), errRemarksTooLong, maxRemarksLen))
			continue
		}

		records = append(records, Record{
			ID:        core.NewID(),
			StudentID: sid,
			ClassID:   class.ID,
			Date:      req.Date,
			Status:    status,
			MarkedBy:  req.MarkedBy,
			Remarks:   core.StringPtr(remarks),
			MarkedAt:  now,
		})
	}
	if len(fldErrs) > 0 {
		return MarkResult{}, core.NewValidationError(ErrInvalidEntries, fldErrs...)
	}

	upserted, err := svc.repo.UpsertRecords(ctx, records)
	if err != nil {
		return MarkResult{}, errors.Wrap(err, "upserting attendance records")
	}

	result := MarkResult{Updated: len(upserted)}
	for _, up := range upserted {
		if up.Previous != nil && *up.Previous == up.Record.Status {
			continue
		}
		change := Change{
			StudentID: up.Record.StudentID,
			ClassID:   up.Record.ClassID,
			Date:      up.Record.Date,
			OldStatus: up.Previous,
			NewStatus: up.Record.Status,
			Remarks:   up.Record.Remarks,
			MarkedBy:  up.Record.MarkedBy,
		}
		result.Changes = append(result.Changes, change)
		if err = svc.publisher.Publish(ctx, change); err != nil {
			svc.logger.Error(fmt.Sprintf("publishing attendance change of student %s: %v", change.StudentID, err), err)
		}
	}
	return result, nil
}

// ClassDay lists every active student of a class with their record for date, if any.
func (svc *Service) ClassDay(ctx context.Context, classID string, date core.Date) ([]ClassDayRow, error) {
	if date.IsZero() {
		return nil, core.NewValidationError(errDateRequired, core.FieldError{Field: "date", Error: errDateRequired.Error()})
	}
	class, err := svc.roster.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	students, err := svc.roster.ActiveStudents(ctx, class.ID)
	if err != nil {
		return nil, errors.Wrap(err, "listing class members")
	}

	rows := make([]ClassDayRow, 0, len(students))
	if len(students) == 0 {
		return rows, nil
	}

	ids := make([]string, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	records, err := svc.repo.QueryRecords(ctx, RecordFilter{StudentIDs: ids, From: date, To: date})
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}
	byStudent := make(map[string]Record, len(records))
	for _, rec := range records {
		byStudent[rec.StudentID] = rec
	}

	for _, s := range students {
		row := ClassDayRow{Student: s}
		if rec, ok := byStudent[s.ID]; ok {
			id, status := rec.ID, rec.Status
			row.RecordID = &id
			row.Status = &status
			row.Remarks = rec.Remarks
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Delete removes a record for good.
func (svc *Service) Delete(ctx context.Context, recordID string) error {
	if !core.IsID(recordID) {
		return ErrRecordNotFound
	}
	return svc.repo.DeleteRecord(ctx, recordID)
}

func (svc *Service) GetRecord(ctx context.Context, recordID string) (Record, error) {
	if !core.IsID(recordID) {
		return Record{}, ErrRecordNotFound
	}
	return svc.repo.GetRecord(ctx, recordID)
}

// History lists the records of a student over [start, end].
func (svc *Service) History(ctx context.Context, studentID string, start, end core.Date) ([]Record, error) {
	if err := svc.checkRange(start, end); err != nil {
		return nil, err
	}
	if _, err := svc.roster.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}
	records, err := svc.repo.QueryRecords(ctx, RecordFilter{StudentIDs: []string{studentID}, From: start, To: end})
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

func (svc *Service) SummarizeStudent(ctx context.Context, studentID string, start, end core.Date) (StudentSummary, error) {
	records, err := svc.History(ctx, studentID, start, end)
	if err != nil {
		return StudentSummary{}, err
	}
	return SummarizeStudentRecords(studentID, start, end, records), nil
}

func (svc *Service) SummarizeClass(ctx context.Context, classID string, start, end core.Date) (ClassSummary, error) {
	if err := svc.checkRange(start, end); err != nil {
		return ClassSummary{}, err
	}
	class, err := svc.roster.GetClass(ctx, classID)
	if err != nil {
		return ClassSummary{}, err
	}
	return svc.summarizeClass(ctx, class, start, end, nil)
}

// summarizeClass folds records of class; records are loaded when nil.
func (svc *Service) summarizeClass(ctx context.Context, class roster.Class, start, end core.Date, records []Record) (ClassSummary, error) {
	students, err := svc.roster.ActiveStudents(ctx, class.ID)
	if err != nil {
		return ClassSummary{}, errors.Wrap(err, "listing class members")
	}
	if records == nil {
		records, err = svc.repo.QueryRecords(ctx, RecordFilter{ClassID: class.ID, From: start, To: end})
		if err != nil {
			return ClassSummary{}, errors.Wrap(err, "querying attendance records")
		}
	}
	return SummarizeClassRecords(class, len(students), start, end, records), nil
}

func (svc *Service) SummarizeSchool(ctx context.Context, start, end core.Date) (SchoolSummary, error) {
	if err := svc.checkRange(start, end); err != nil {
		return SchoolSummary{}, err
	}
	classes, err := svc.roster.QueryClasses(ctx, nil, []core.DBOrdering{{Field: "name", Ascending: true}})
	if err != nil {
		return SchoolSummary{}, errors.Wrap(err, "querying classes")
	}
	records, err := svc.repo.QueryRecords(ctx, RecordFilter{From: start, To: end})
	if err != nil {
		return SchoolSummary{}, errors.Wrap(err, "querying attendance records")
	}
	byClass := make(map[string][]Record, len(classes))
	for _, rec := range records {
		byClass[rec.ClassID] = append(byClass[rec.ClassID], rec)
	}

	sum := SchoolSummary{StartDate: start, EndDate: end, ClassSummaries: make([]ClassSummary, 0, len(classes))}
	for _, class := range classes {
		recs := byClass[class.ID]
		if recs == nil {
			recs = []Record{}
		}
		cs, err := svc.summarizeClass(ctx, class, start, end, recs)
		if err != nil {
			return SchoolSummary{}, err
		}
		sum.ClassSummaries = append(sum.ClassSummaries, cs)
	}
	sum.OverallStats = SummarizeSchoolClasses(sum.ClassSummaries)
	return sum, nil
}

func (svc *Service) checkRange(start, end core.Date) error {
	var fldErrs []core.FieldError
	if start.IsZero() {
		fldErrs = append(fldErrs, core.FieldError{Field: "start_date", Error: errDateRequired.Error()})
	}
	if end.IsZero() {
		fldErrs = append(fldErrs, core.FieldError{Field: "end_date", Error: errDateRequired.Error()})
	}
	if len(fldErrs) > 0 {
		return core.NewValidationError(errDateRequired, fldErrs...)
	}
	if start.After(end) {
		return core.NewValidationError(errStartAfterEnd, core.FieldError{Field: "start_date", Error: errStartAfterEnd.Error()})
	}
	if svc.maxDays > 0 && start.DaysUntil(end)+1 > svc.maxDays {
		return core.NewValidationError(nil, core.FieldErrorf("end_date", errRangeTooLong, svc.maxDays))
	}
	return nil
}

func entryField(i int, name string) string {
	return fmt.Sprintf("entries.%d.%s", i, name)
}
