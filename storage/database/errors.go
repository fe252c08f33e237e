package database

import (
	"database/sql"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// constraintFields maps constraint names to the request field they guard.
var constraintFields = map[string]string{
	"users_username_key":                  "username",
	"users_email_key":                     "email",
	"students_roll_number_key":            "roll_number",
	"students_class_fkey":                 "class_id",
	"students_parent_fkey":                "parent_id",
	"classes_teacher_fkey":                "teacher_id",
	"attendance_records_student_date_key": "student_id",
	"attendance_records_student_fkey":     "student_id",
	"attendance_records_class_fkey":       "class_id",
}

// TrapError maps "no rows" to notFound and constraint violations to core.ConflictError, wrapping anything else with msg.
func TrapError(err error, notFound error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Cause(err) == sql.ErrNoRows && notFound != nil {
		return notFound
	}
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		switch pqErr.Code {
		case pgUniqueViolation, pgForeignKeyViolation:
			return core.NewConflictError(errors.New(conflictMessage(pqErr)), constraintField(pqErr))
		}
	}
	return errors.Wrap(err, msg)
}

func constraintField(pqErr *pq.Error) string {
	if fld, ok := constraintFields[pqErr.Constraint]; ok {
		return fld
	}
	// <table>_<column>_key | <table>_<column>_fkey
	name := strings.TrimPrefix(pqErr.Constraint, pqErr.Table+"_")
	name = strings.TrimSuffix(strings.TrimSuffix(name, "_fkey"), "_key")
	if name == "" || name == pqErr.Constraint {
		return ""
	}
	return name
}

func conflictMessage(pqErr *pq.Error) string {
	if pqErr.Code == pgForeignKeyViolation {
		return "referenced entity does not exist or is still in use"
	}
	if fld := constraintField(pqErr); fld != "" {
		return strings.ReplaceAll(fld, "_", " ") + " already exists"
	}
	return "entity already exists"
}
