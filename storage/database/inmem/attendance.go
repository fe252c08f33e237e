package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

type recordKey struct {
	studentID string
	date      core.Date
}

type attendanceRepository struct {
	db *attendanceTable
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db.attendance}
}

// UpsertRecords holds the table lock for the whole batch, so batches are all-or-nothing to readers.
func (repo *attendanceRepository) UpsertRecords(
	_ context.Context,
	records []attendance.Record,
	_ ...core.DBExecutor,
) ([]attendance.Upserted, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	upserted := make([]attendance.Upserted, 0, len(records))
	for _, rec := range records {
		key := recordKey{studentID: rec.StudentID, date: rec.Date}
		up := attendance.Upserted{}

		if id, ok := repo.db.byKey[key]; ok {
			stored := repo.db.table[id]
			prev := stored.Status
			up.Previous = &prev

			stored.Status = rec.Status
			stored.ClassID = rec.ClassID
			stored.MarkedBy = rec.MarkedBy
			stored.Remarks = rec.Remarks
			stored.MarkedAt = rec.MarkedAt
			rec = *stored
		} else {
			if rec.ID == "" {
				rec.ID = core.NewID()
			}
			stored := rec
			repo.db.table[rec.ID] = &stored
			repo.db.byKey[key] = rec.ID
		}
		up.Record = rec
		upserted = append(upserted, up)
	}
	return upserted, nil
}

func (repo *attendanceRepository) GetRecord(_ context.Context, id string, _ ...core.DBExecutor) (attendance.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec, ok := repo.db.table[id]; ok {
		return *rec, nil
	}
	return attendance.Record{}, attendance.ErrRecordNotFound
}

func (repo *attendanceRepository) QueryRecords(
	_ context.Context,
	filter attendance.RecordFilter,
	_ ...core.DBExecutor,
) ([]attendance.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var students map[string]bool
	if len(filter.StudentIDs) > 0 {
		students = make(map[string]bool, len(filter.StudentIDs))
		for _, id := range filter.StudentIDs {
			students[id] = true
		}
	}

	records := make([]attendance.Record, 0)
	for _, rec := range repo.db.table {
		switch {
		case students != nil && !students[rec.StudentID]:
		case filter.ClassID != "" && rec.ClassID != filter.ClassID:
		case !filter.From.IsZero() && rec.Date.Before(filter.From):
		case !filter.To.IsZero() && rec.Date.After(filter.To):
		default:
			records = append(records, *rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.Before(records[j].Date)
		}
		return records[i].StudentID < records[j].StudentID
	})
	return records, nil
}

func (repo *attendanceRepository) DeleteRecord(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	rec, ok := repo.db.table[id]
	if !ok {
		return attendance.ErrRecordNotFound
	}
	delete(repo.db.byKey, recordKey{studentID: rec.StudentID, date: rec.Date})
	delete(repo.db.table, id)
	return nil
}
