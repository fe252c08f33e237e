package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/roster"
)

var errRollNumberTaken = errors.New("roll number already taken")

type rosterRepository struct {
	db *rosterTables
}

var _ roster.Repository = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(db *DB) *rosterRepository {
	return &rosterRepository{db: db.roster}
}

// Classes

func (repo *rosterRepository) CreateClass(_ context.Context, class roster.Class, _ ...core.DBExecutor) (roster.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if class.ID == "" {
		class.ID = core.NewID()
	}
	repo.db.classes[class.ID] = &class
	return class, nil
}

func (repo *rosterRepository) GetClass(_ context.Context, id string, _ ...core.DBExecutor) (roster.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if class, ok := repo.db.classes[id]; ok {
		return *class, nil
	}
	return roster.Class{}, roster.ErrClassNotFound
}

func (repo *rosterRepository) QueryClasses(
	_ context.Context,
	filter *roster.ClassFilter,
	ordering []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]roster.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	classes := make([]roster.Class, 0, len(repo.db.classes))
	for _, class := range repo.db.classes {
		if matchClass(*class, filter) {
			classes = append(classes, *class)
		}
	}
	sortBy(classes, ordering, []string{"name", "grade", "created_at"}, "name", func(i int, field string) string {
		switch field {
		case "grade":
			return classes[i].Grade
		case "created_at":
			return classes[i].CreatedAt.Format("20060102150405.000000")
		}
		return classes[i].Name
	})
	return classes, nil
}

func (repo *rosterRepository) UpdateClass(_ context.Context, class roster.Class, _ ...core.DBExecutor) (roster.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.classes[class.ID]; !ok {
		return roster.Class{}, roster.ErrClassNotFound
	}
	repo.db.classes[class.ID] = &class
	return class, nil
}

// Students

func (repo *rosterRepository) CreateStudent(_ context.Context, student roster.Student, _ ...core.DBExecutor) (roster.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.classes[student.ClassID]; !ok {
		return roster.Student{}, core.NewConflictError(roster.ErrClassNotFound, "class_id")
	}
	if repo.rollNumberTaken(student) {
		return roster.Student{}, core.NewConflictError(errRollNumberTaken, "roll_number")
	}
	if student.ID == "" {
		student.ID = core.NewID()
	}
	repo.db.students[student.ID] = &student
	return student, nil
}

func (repo *rosterRepository) GetStudent(_ context.Context, id string, _ ...core.DBExecutor) (roster.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if student, ok := repo.db.students[id]; ok {
		return *student, nil
	}
	return roster.Student{}, roster.ErrStudentNotFound
}

func (repo *rosterRepository) QueryStudents(
	_ context.Context,
	filter *roster.StudentFilter,
	ordering []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]roster.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := repo.students(filter)
	sortBy(students, ordering, []string{"name", "roll_number", "created_at"}, "name", func(i int, field string) string {
		switch field {
		case "roll_number":
			return students[i].RollNumber
		case "created_at":
			return students[i].CreatedAt.Format("20060102150405.000000")
		}
		return students[i].Name
	})
	return students, nil
}

func (repo *rosterRepository) CountStudents(_ context.Context, filter *roster.StudentFilter, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return len(repo.students(filter)), nil
}

func (repo *rosterRepository) UpdateStudent(_ context.Context, student roster.Student, _ ...core.DBExecutor) (roster.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.students[student.ID]; !ok {
		return roster.Student{}, roster.ErrStudentNotFound
	}
	if _, ok := repo.db.classes[student.ClassID]; !ok {
		return roster.Student{}, core.NewConflictError(roster.ErrClassNotFound, "class_id")
	}
	if repo.rollNumberTaken(student) {
		return roster.Student{}, core.NewConflictError(errRollNumberTaken, "roll_number")
	}
	repo.db.students[student.ID] = &student
	return student, nil
}

// Settings

func (repo *rosterRepository) GetSettings(_ context.Context, schoolID string, _ ...core.DBExecutor) (roster.Settings, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if settings, ok := repo.db.settings[schoolID]; ok {
		return *settings, nil
	}
	return roster.Settings{}, roster.ErrSettingsNotFound
}

func (repo *rosterRepository) SaveSettings(_ context.Context, settings roster.Settings, _ ...core.DBExecutor) (roster.Settings, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.settings[settings.SchoolID] = &settings
	return settings, nil
}

// helpers

func (repo *rosterRepository) rollNumberTaken(student roster.Student) bool {
	for _, s := range repo.db.students {
		if s.ID != student.ID && s.RollNumber == student.RollNumber {
			return true
		}
	}
	return false
}

func (repo *rosterRepository) students(filter *roster.StudentFilter) []roster.Student {
	var ids map[string]bool
	if filter != nil && len(filter.IDs) > 0 {
		ids = make(map[string]bool, len(filter.IDs))
		for _, id := range filter.IDs {
			ids[id] = true
		}
	}

	students := make([]roster.Student, 0, len(repo.db.students))
	for _, s := range repo.db.students {
		if filter != nil {
			if ids != nil && !ids[s.ID] {
				continue
			}
			if filter.ClassID != "" && s.ClassID != filter.ClassID {
				continue
			}
			if filter.ParentID != "" && (s.ParentID == nil || *s.ParentID != filter.ParentID) {
				continue
			}
			if filter.RollNumber != "" && s.RollNumber != filter.RollNumber {
				continue
			}
			if filter.IsActive != nil && s.IsActive != *filter.IsActive {
				continue
			}
			if filter.Search != "" && !containsFold(s.Name, filter.Search) && !containsFold(s.RollNumber, filter.Search) {
				continue
			}
		}
		students = append(students, *s)
	}
	return students
}

func matchClass(class roster.Class, filter *roster.ClassFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" && !containsFold(class.Name, filter.Search) {
		return false
	}
	if filter.Grade != "" && class.Grade != filter.Grade {
		return false
	}
	if filter.TeacherID != "" && (class.TeacherID == nil || *class.TeacherID != filter.TeacherID) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// sortBy sorts slice on the allowed orderings, falling back to an ascending sort on def.
func sortBy(slice interface{}, ordering []core.DBOrdering, allowed []string, def string, value func(i int, field string) string) {
	ordering = core.FilterOrderings(ordering, allowed...)
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: def, Ascending: true}}
	}
	sort.SliceStable(slice, func(i, j int) bool {
		for _, ord := range ordering {
			a, b := value(i, ord.Field), value(j, ord.Field)
			if a == b {
				continue
			}
			if ord.Ascending {
				return a < b
			}
			return a > b
		}
		return false
	})
}
