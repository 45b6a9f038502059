package echoapi

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-onboarding/core"
	"github.com/trezcool/masomo-onboarding/core/onboarding"
)

const (
	orderingParam = "ordering"
	dateLayout    = "2006-01-02"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads the comma separated `ordering` query param; a leading "-" means descending.
func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindRequestFilter reads the onboarding.QueryFilter from the query params.
// `status` may be repeated or comma separated; dates are either RFC 3339 or YYYY-MM-DD.
func bindRequestFilter(ctx echo.Context) (*onboarding.QueryFilter, error) {
	params := ctx.QueryParams()
	filter := &onboarding.QueryFilter{
		Search:     params.Get("search"),
		AdminEmail: params.Get("admin_email"),
	}
	for _, val := range params["status"] {
		for _, st := range strings.Split(val, ",") {
			if st = strings.TrimSpace(st); st != "" {
				filter.Statuses = append(filter.Statuses, onboarding.Status(strings.ToLower(st)))
			}
		}
	}

	var err error
	if filter.CreatedFrom, err = parseDateParam(ctx, "created_from"); err != nil {
		return nil, err
	}
	if filter.CreatedTo, err = parseDateParam(ctx, "created_to"); err != nil {
		return nil, err
	}
	return filter, nil
}

func parseDateParam(ctx echo.Context, name string) (time.Time, error) {
	val := strings.TrimSpace(ctx.QueryParam(name))
	if val == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, val)
	if err != nil {
		return time.Time{}, core.NewValidationError(nil, core.FieldError{Field: name, Error: "invalid date"})
	}
	return t, nil
}
