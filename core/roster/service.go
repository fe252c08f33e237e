package roster

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/user"
)

var (
	// errors
	ErrClassNotFound     = core.NewNotFoundError("class")
	ErrStudentNotFound   = core.NewNotFoundError("student")
	ErrSettingsNotFound  = core.NewNotFoundError("settings")
	ErrRollNumberExists  = errors.New("a student with this roll number already exists")
	errClassFull         = errors.New("class is full")
	errNotAParent        = errors.New("user is not a parent")
	errNotATeacher       = errors.New("user is not a teacher")
	errStudentInactive   = errors.New("student is not active")
	errAlreadyInTheClass = errors.New("student is already in this class")
)

type (
	Repository interface {
		CreateClass(ctx context.Context, class Class, exec ...core.DBExecutor) (Class, error)
		GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (Class, error)
		QueryClasses(ctx context.Context, filter *ClassFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Class, error)
		UpdateClass(ctx context.Context, class Class, exec ...core.DBExecutor) (Class, error)

		// CreateStudent returns a core.ConflictError when the roll number is taken.
		CreateStudent(ctx context.Context, student Student, exec ...core.DBExecutor) (Student, error)
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		QueryStudents(ctx context.Context, filter *StudentFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Student, error)
		CountStudents(ctx context.Context, filter *StudentFilter, exec ...core.DBExecutor) (int, error)
		UpdateStudent(ctx context.Context, student Student, exec ...core.DBExecutor) (Student, error)

		GetSettings(ctx context.Context, schoolID string, exec ...core.DBExecutor) (Settings, error)
		SaveSettings(ctx context.Context, settings Settings, exec ...core.DBExecutor) (Settings, error)
	}

	// UserGetter finds the users students and classes point to.
	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo     Repository
		users    UserGetter
		schoolID string
	}
)

func NewService(repo Repository, users UserGetter, conf *core.Config) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(users, "users"),
		vala.StringNotEmpty(conf.SchoolID, "conf.SchoolID"),
	).CheckAndPanic()

	return &Service{repo: repo, users: users, schoolID: conf.SchoolID}
}

// Classes

func (svc *Service) CreateClass(ctx context.Context, nc NewClass) (Class, error) {
	if nc.TeacherID != nil {
		if err := svc.checkTeacher(ctx, *nc.TeacherID); err != nil {
			return Class{}, err
		}
	}
	now := time.Now().UTC()
	return svc.repo.CreateClass(ctx, Class{
		ID:        core.NewID(),
		Name:      nc.Name,
		Grade:     nc.Grade,
		Section:   nc.Section,
		Capacity:  nc.Capacity,
		TeacherID: nc.TeacherID,
		SchoolID:  svc.schoolID,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) GetClass(ctx context.Context, id string) (Class, error) {
	if !core.IsID(id) {
		return Class{}, ErrClassNotFound
	}
	return svc.repo.GetClass(ctx, id)
}

func (svc *Service) QueryClasses(ctx context.Context, filter *ClassFilter, ordering []core.DBOrdering) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, filter, ordering)
}

func (svc *Service) UpdateClass(ctx context.Context, id string, uc UpdateClass) (Class, error) {
	class, err := svc.GetClass(ctx, id)
	if err != nil {
		return Class{}, err
	}
	if uc.Name != "" {
		class.Name = uc.Name
	}
	if uc.Grade != "" {
		class.Grade = uc.Grade
	}
	if uc.Section != nil {
		class.Section = core.CleanString(*uc.Section)
	}
	if uc.Capacity != nil {
		active := true
		cnt, err := svc.repo.CountStudents(ctx, &StudentFilter{ClassID: id, IsActive: &active})
		if err != nil {
			return Class{}, errors.Wrap(err, "counting students")
		}
		if *uc.Capacity > 0 && *uc.Capacity < cnt {
			return Class{}, core.NewValidationError(nil, core.FieldErrorf("capacity", "class already has %d active students", cnt))
		}
		class.Capacity = *uc.Capacity
	}
	if uc.TeacherID != nil {
		if err = svc.checkTeacher(ctx, *uc.TeacherID); err != nil {
			return Class{}, err
		}
		class.TeacherID = uc.TeacherID
	}
	class.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateClass(ctx, class)
}

// ActiveStudents lists the active members of a class, ordered by roll number.
func (svc *Service) ActiveStudents(ctx context.Context, classID string) ([]Student, error) {
	active := true
	return svc.repo.QueryStudents(
		ctx,
		&StudentFilter{ClassID: classID, IsActive: &active},
		[]core.DBOrdering{{Field: "roll_number", Ascending: true}},
	)
}

// Students

func (svc *Service) CreateStudent(ctx context.Context, ns NewStudent) (Student, error) {
	class, err := svc.GetClass(ctx, ns.ClassID)
	if err != nil {
		if err == ErrClassNotFound {
			return Student{}, core.NewValidationError(err, core.FieldError{Field: "class_id", Error: err.Error()})
		}
		return Student{}, err
	}
	if err = svc.checkCapacity(ctx, class); err != nil {
		return Student{}, err
	}
	if ns.ParentID != nil {
		if err = svc.checkParent(ctx, *ns.ParentID); err != nil {
			return Student{}, err
		}
	}

	now := time.Now().UTC()
	student, err := svc.repo.CreateStudent(ctx, Student{
		ID:         core.NewID(),
		Name:       ns.Name,
		RollNumber: ns.RollNumber,
		ClassID:    class.ID,
		ParentID:   ns.ParentID,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	return student, svc.trapConflict(err)
}

func (svc *Service) GetStudent(ctx context.Context, id string) (Student, error) {
	if !core.IsID(id) {
		return Student{}, ErrStudentNotFound
	}
	return svc.repo.GetStudent(ctx, id)
}

func (svc *Service) QueryStudents(ctx context.Context, filter *StudentFilter, ordering []core.DBOrdering) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

func (svc *Service) UpdateStudent(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	student, err := svc.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if us.Name != "" {
		student.Name = us.Name
	}
	if us.RollNumber != "" {
		student.RollNumber = us.RollNumber
	}
	if us.ParentID != nil {
		if err = svc.checkParent(ctx, *us.ParentID); err != nil {
			return Student{}, err
		}
		student.ParentID = us.ParentID
	}
	student.UpdatedAt = time.Now().UTC()
	student, err = svc.repo.UpdateStudent(ctx, student)
	return student, svc.trapConflict(err)
}

// Deactivate soft-deletes a student. Past attendance stays in place.
func (svc *Service) Deactivate(ctx context.Context, id string) (Student, error) {
	student, err := svc.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if !student.IsActive {
		return student, nil
	}
	student.IsActive = false
	student.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStudent(ctx, student)
}

// Transfer moves an active student to another class.
// Records already marked keep the class they were marked in.
func (svc *Service) Transfer(ctx context.Context, id string, classID string) (Student, error) {
	student, err := svc.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if !student.IsActive {
		return Student{}, core.NewValidationError(errStudentInactive, core.FieldError{Field: "student", Error: errStudentInactive.Error()})
	}
	if student.ClassID == classID {
		return Student{}, core.NewValidationError(errAlreadyInTheClass, core.FieldError{Field: "class_id", Error: errAlreadyInTheClass.Error()})
	}

	class, err := svc.GetClass(ctx, classID)
	if err != nil {
		if err == ErrClassNotFound {
			return Student{}, core.NewValidationError(err, core.FieldError{Field: "class_id", Error: err.Error()})
		}
		return Student{}, err
	}
	if err = svc.checkCapacity(ctx, class); err != nil {
		return Student{}, err
	}

	student.ClassID = class.ID
	student.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStudent(ctx, student)
}

// ChildrenOf lists the IDs of the students a parent may see, active or not.
func (svc *Service) ChildrenOf(ctx context.Context, parentID string) ([]string, error) {
	students, err := svc.repo.QueryStudents(ctx, &StudentFilter{ParentID: parentID}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying children")
	}
	ids := make([]string, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

// Settings

func (svc *Service) GetSettings(ctx context.Context) (Settings, error) {
	settings, err := svc.repo.GetSettings(ctx, svc.schoolID)
	if errors.Cause(err) == ErrSettingsNotFound {
		return DefaultSettings(svc.schoolID), nil
	}
	return settings, err
}

func (svc *Service) UpdateSettings(ctx context.Context, settings Settings) (Settings, error) {
	settings.SchoolID = svc.schoolID
	settings.UpdatedAt = time.Now().UTC()
	return svc.repo.SaveSettings(ctx, settings)
}

// helpers

func (svc *Service) checkCapacity(ctx context.Context, class Class) error {
	if class.Capacity == 0 {
		return nil
	}
	active := true
	cnt, err := svc.repo.CountStudents(ctx, &StudentFilter{ClassID: class.ID, IsActive: &active})
	if err != nil {
		return errors.Wrap(err, "counting students")
	}
	if cnt >= class.Capacity {
		return core.NewValidationError(errClassFull, core.FieldError{Field: "class_id", Error: errClassFull.Error()})
	}
	return nil
}

func (svc *Service) checkParent(ctx context.Context, id string) error {
	usr, err := svc.users.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(err, core.FieldError{Field: "parent_id", Error: err.Error()})
		}
		return errors.Wrap(err, "finding parent")
	}
	if !usr.IsParent() {
		return core.NewValidationError(errNotAParent, core.FieldError{Field: "parent_id", Error: errNotAParent.Error()})
	}
	return nil
}

func (svc *Service) checkTeacher(ctx context.Context, id string) error {
	usr, err := svc.users.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(err, core.FieldError{Field: "teacher_id", Error: err.Error()})
		}
		return errors.Wrap(err, "finding teacher")
	}
	if !usr.IsTeacher() {
		return core.NewValidationError(errNotATeacher, core.FieldError{Field: "teacher_id", Error: errNotATeacher.Error()})
	}
	return nil
}

func (svc *Service) trapConflict(err error) error {
	if cerr, ok := errors.Cause(err).(*core.ConflictError); ok && cerr.Field == "roll_number" {
		return core.NewConflictError(ErrRollNumberExists, "roll_number")
	}
	return err
}
