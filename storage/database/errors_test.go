package database

import (
	"database/sql"
	"testing"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/mahudhurio/core"
)

func TestTrapError(t *testing.T) {
	notFound := core.NewNotFoundError("thing")

	tests := []struct {
		name      string
		err       error
		wantErr   error
		wantField string
		conflict  bool
	}{
		{name: "nil", err: nil},
		{name: "no rows", err: sql.ErrNoRows, wantErr: notFound},
		{name: "wrapped no rows", err: errors.Wrap(sql.ErrNoRows, "scanning"), wantErr: notFound},
		{
			name:      "known unique constraint",
			err:       &pq.Error{Code: "23505", Table: "students", Constraint: "students_roll_number_key"},
			conflict:  true,
			wantField: "roll_number",
		},
		{
			name:      "unknown unique constraint",
			err:       &pq.Error{Code: "23505", Table: "schools", Constraint: "schools_name_key"},
			conflict:  true,
			wantField: "name",
		},
		{
			name:      "foreign key",
			err:       &pq.Error{Code: "23503", Table: "students", Constraint: "students_class_fkey"},
			conflict:  true,
			wantField: "class_id",
		},
		{name: "other pq error", err: &pq.Error{Code: "42P01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := TrapError(tt.err, notFound, "doing things")
			switch {
			case tt.err == nil:
				assert.NoError(t, err)
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.conflict:
				cerr, ok := errors.Cause(err).(*core.ConflictError)
				if assert.True(t, ok, "got %v", err) {
					assert.Equal(t, tt.wantField, cerr.Field)
				}
			default:
				assert.Equal(t, tt.err, errors.Cause(err))
				assert.Contains(t, err.Error(), "doing things")
			}
		})
	}
}
