package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/mahudhurio/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// DateRange is the closed range of a summary query. Missing dates are reported by the attendance service.
type DateRange struct {
	Start core.Date
	End   core.Date
}

func (dr *DateRange) Bind(ctx echo.Context) error {
	var fldErrs []core.FieldError
	for _, p := range []struct {
		name string
		dest *core.Date
	}{
		{"start_date", &dr.Start},
		{"end_date", &dr.End},
	} {
		if err := bindDate(ctx.QueryParam(p.name), p.dest); err != nil {
			fldErrs = append(fldErrs, core.FieldError{Field: p.name, Error: err.Error()})
		}
	}
	if len(fldErrs) > 0 {
		return core.NewValidationError(nil, fldErrs...)
	}
	return nil
}

func bindDate(param string, dest *core.Date) error {
	if strings.TrimSpace(param) == "" {
		return nil
	}
	return dest.UnmarshalParam(param)
}
