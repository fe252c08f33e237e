package schema

import (
	"sync"

	"github.com/pressly/goose/v3"
)

// DefaultSchoolID is the school every class belongs to until several schools are managed.
const DefaultSchoolID = "00000000-0000-0000-0000-000000000001"

var registerOnce sync.Once

// Steps lists the schema in the order it is applied. Append only: a step's position is its goose version.
var Steps = []Step{
	CreateTable{Table: "users", Columns: []string{
		"id UUID PRIMARY KEY",
		"name VARCHAR(255) NOT NULL DEFAULT ''",
		"username VARCHAR(150) NOT NULL",
		"email VARCHAR(254) NOT NULL",
		"phone VARCHAR(32) NOT NULL DEFAULT ''",
		"is_active BOOLEAN NOT NULL DEFAULT true",
		"roles TEXT[] NOT NULL DEFAULT '{}'",
		"password_hash BYTEA",
		"created_at TIMESTAMPTZ NOT NULL DEFAULT now()",
		"updated_at TIMESTAMPTZ NOT NULL DEFAULT now()",
		"last_login TIMESTAMPTZ",
	}},
	AddConstraint{Table: "users", Constraint: "users_username_key", Definition: "UNIQUE (username)"},
	AddConstraint{Table: "users", Constraint: "users_email_key", Definition: "UNIQUE (email)"},

	CreateTable{Table: "schools", Columns: []string{
		"id UUID PRIMARY KEY",
		"name VARCHAR(255) NOT NULL",
		"created_at TIMESTAMPTZ NOT NULL DEFAULT now()",
	}},
	SeedData{
		Label:   "default_school",
		Table:   "schools",
		Columns: []string{"id", "name"},
		Rows:    [][]interface{}{{DefaultSchoolID, "Default school"}},
	},

	CreateTable{Table: "classes", Columns: []string{
		"id UUID PRIMARY KEY",
		"name VARCHAR(100) NOT NULL",
		"grade VARCHAR(20) NOT NULL",
		"section VARCHAR(20) NOT NULL DEFAULT ''",
		"capacity INTEGER NOT NULL DEFAULT 0",
		"teacher_id UUID",
		"school_id UUID NOT NULL",
		"created_at TIMESTAMPTZ NOT NULL DEFAULT now()",
		"updated_at TIMESTAMPTZ NOT NULL DEFAULT now()",
	}},
	AddConstraint{Table: "classes", Constraint: "classes_capacity_check", Definition: "CHECK (capacity >= 0)"},
	AddConstraint{
		Table:      "classes",
		Constraint: "classes_teacher_fkey",
		Definition: "FOREIGN KEY (teacher_id) REFERENCES users (id) ON DELETE SET NULL",
	},
	AddConstraint{
		Table:      "classes",
		Constraint: "classes_school_fkey",
		Definition: "FOREIGN KEY (school_id) REFERENCES schools (id) ON DELETE CASCADE",
	},

	CreateTable{Table: "students", Columns: []string{
		"id UUID PRIMARY KEY",
		"name VARCHAR(100) NOT NULL",
		"roll_number VARCHAR(30) NOT NULL",
		"class_id UUID NOT NULL",
		"parent_id UUID",
		"is_active BOOLEAN NOT NULL DEFAULT true",
		"created_at TIMESTAMPTZ NOT NULL DEFAULT now()",
		"updated_at TIMESTAMPTZ NOT NULL DEFAULT now()",
	}},
	AddConstraint{Table: "students", Constraint: "students_roll_number_key", Definition: "UNIQUE (roll_number)"},
	AddConstraint{
		Table:      "students",
		Constraint: "students_class_fkey",
		Definition: "FOREIGN KEY (class_id) REFERENCES classes (id) ON DELETE RESTRICT",
	},
	AddConstraint{
		Table:      "students",
		Constraint: "students_parent_fkey",
		Definition: "FOREIGN KEY (parent_id) REFERENCES users (id) ON DELETE SET NULL",
	},
	CreateIndex{Index: "idx_students_class", Table: "students", Columns: []string{"class_id", "roll_number"}},
	CreateIndex{Index: "idx_students_parent", Table: "students", Columns: []string{"parent_id"}},

	CreateTable{Table: "attendance_settings", Columns: []string{
		"school_id UUID PRIMARY KEY",
		"auto_mark_absent_after VARCHAR(5) NOT NULL DEFAULT '10:00'",
		"late_threshold_minutes INTEGER NOT NULL DEFAULT 15",
		"summary_notification_time VARCHAR(5) NOT NULL DEFAULT '17:00'",
		"notify_parents BOOLEAN NOT NULL DEFAULT true",
		"updated_at TIMESTAMPTZ NOT NULL DEFAULT now()",
	}},
	AddConstraint{
		Table:      "attendance_settings",
		Constraint: "attendance_settings_school_fkey",
		Definition: "FOREIGN KEY (school_id) REFERENCES schools (id) ON DELETE CASCADE",
	},
	AddConstraint{
		Table:      "attendance_settings",
		Constraint: "attendance_settings_late_threshold_check",
		Definition: "CHECK (late_threshold_minutes BETWEEN 0 AND 240)",
	},
	SeedData{
		Label:   "default_attendance_settings",
		Table:   "attendance_settings",
		Columns: []string{"school_id"},
		Rows:    [][]interface{}{{DefaultSchoolID}},
	},

	CreateTable{Table: "attendance_records", Columns: []string{
		"id UUID PRIMARY KEY",
		"student_id UUID NOT NULL",
		"class_id UUID NOT NULL",
		"date DATE NOT NULL",
		"status VARCHAR(10) NOT NULL DEFAULT 'ABSENT'",
		"marked_by UUID",
		"remarks TEXT",
		"marked_at TIMESTAMPTZ NOT NULL DEFAULT now()",
	}},
	// the upsert conflict target
	AddConstraint{
		Table:      "attendance_records",
		Constraint: "attendance_records_student_date_key",
		Definition: "UNIQUE (student_id, date)",
	},
	AddConstraint{
		Table:      "attendance_records",
		Constraint: "attendance_records_status_check",
		Definition: "CHECK (status IN ('PRESENT', 'ABSENT', 'LATE', 'EXCUSED'))",
	},
	AddConstraint{
		Table:      "attendance_records",
		Constraint: "attendance_records_student_fkey",
		Definition: "FOREIGN KEY (student_id) REFERENCES students (id) ON DELETE CASCADE",
	},
	AddConstraint{
		Table:      "attendance_records",
		Constraint: "attendance_records_class_fkey",
		Definition: "FOREIGN KEY (class_id) REFERENCES classes (id) ON DELETE CASCADE",
	},
	AddConstraint{
		Table:      "attendance_records",
		Constraint: "attendance_records_marked_by_fkey",
		Definition: "FOREIGN KEY (marked_by) REFERENCES users (id) ON DELETE SET NULL",
	},
	CreateIndex{Index: "idx_attendance_records_class_date", Table: "attendance_records", Columns: []string{"class_id", "date"}},
	CreateIndex{Index: "idx_attendance_records_date", Table: "attendance_records", Columns: []string{"date"}},
}

// Register hands the steps to goose as Go migrations. It is safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		for i, step := range Steps {
			goose.AddNamedMigration(Filename(i+1, step), apply(step.Up()), apply(step.Down()))
		}
	})
}
