package sqlxrepos

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-onboarding/core"
	"github.com/trezcool/masomo-onboarding/core/onboarding"
)

const requestsTable = "onboarding_requests"

var (
	requestColumns = []string{
		"id", "institution_name", "admin_name", "admin_email", "phone", "address",
		"requested_students", "requested_teachers", "notes", "status", "rejection_reason",
		"created_at", "updated_at", "reviewed_at", "reviewed_by",
	}

	requestOrderingFields = map[string]bool{
		"created_at":       true,
		"updated_at":       true,
		"institution_name": true,
		"status":           true,
	}
)

type (
	requestRow struct {
		ID                string      `db:"id"`
		InstitutionName   string      `db:"institution_name"`
		AdminName         string      `db:"admin_name"`
		AdminEmail        string      `db:"admin_email"`
		Phone             null.String `db:"phone"`
		Address           null.String `db:"address"`
		RequestedStudents null.Int    `db:"requested_students"`
		RequestedTeachers null.Int    `db:"requested_teachers"`
		Notes             null.String `db:"notes"`
		Status            string      `db:"status"`
		RejectionReason   null.String `db:"rejection_reason"`
		CreatedAt         time.Time   `db:"created_at"`
		UpdatedAt         time.Time   `db:"updated_at"`
		ReviewedAt        null.Time   `db:"reviewed_at"`
		ReviewedBy        null.String `db:"reviewed_by"`
	}

	requestRepository struct {
		db core.DBExecutor
	}
)

var _ onboarding.Repository = (*requestRepository)(nil)

func NewRequestRepository(db core.DBExecutor) onboarding.Repository {
	return &requestRepository{db: db}
}

func (r requestRow) toRequest() onboarding.Request {
	return onboarding.Request{
		ID:                r.ID,
		InstitutionName:   r.InstitutionName,
		AdminName:         r.AdminName,
		AdminEmail:        r.AdminEmail,
		Phone:             r.Phone.Ptr(),
		Address:           r.Address.Ptr(),
		RequestedStudents: r.RequestedStudents.Ptr(),
		RequestedTeachers: r.RequestedTeachers.Ptr(),
		Notes:             r.Notes.Ptr(),
		Status:            onboarding.Status(r.Status),
		RejectionReason:   r.RejectionReason.Ptr(),
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
		ReviewedAt:        r.ReviewedAt.Ptr(),
		ReviewedBy:        r.ReviewedBy.Ptr(),
	}
}

func (repo *requestRepository) get(ctx context.Context, b sq.Sqlizer) (onboarding.Request, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return onboarding.Request{}, errors.Wrap(err, "building query")
	}
	var row requestRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return onboarding.Request{}, trapNoRowsErr(err, onboarding.ErrNotFound)
	}
	return row.toRequest(), nil
}

func (repo *requestRepository) CreateRequest(ctx context.Context, req onboarding.Request) (onboarding.Request, error) {
	if req.Status == "" {
		req.Status = onboarding.StatusPending
	}
	return repo.get(ctx, psql.Insert(requestsTable).
		SetMap(map[string]interface{}{
			"id":                 uuid.New().String(),
			"institution_name":   req.InstitutionName,
			"admin_name":         req.AdminName,
			"admin_email":        req.AdminEmail,
			"phone":              null.StringFromPtr(req.Phone),
			"address":            null.StringFromPtr(req.Address),
			"requested_students": null.IntFromPtr(req.RequestedStudents),
			"requested_teachers": null.IntFromPtr(req.RequestedTeachers),
			"notes":              null.StringFromPtr(req.Notes),
			"status":             string(req.Status),
			"rejection_reason":   null.StringFromPtr(req.RejectionReason),
			"created_at":         req.CreatedAt,
			"updated_at":         req.UpdatedAt,
			"reviewed_at":        null.TimeFromPtr(req.ReviewedAt),
			"reviewed_by":        null.StringFromPtr(req.ReviewedBy),
		}).
		Suffix("RETURNING "+strings.Join(requestColumns, ", ")))
}

func (repo *requestRepository) GetRequest(ctx context.Context, id string) (onboarding.Request, error) {
	return repo.get(ctx, psql.Select(requestColumns...).From(requestsTable).Where(sq.Eq{"id": id}))
}

func (repo *requestRepository) QueryRequests(ctx context.Context, filter *onboarding.QueryFilter, ordering []core.DBOrdering) ([]onboarding.Request, error) {
	b := psql.Select(requestColumns...).From(requestsTable)

	if filter != nil {
		if filter.Search != "" {
			pattern := "%" + filter.Search + "%"
			b = b.Where(sq.Or{
				sq.Expr("institution_name ILIKE ?", pattern),
				sq.Expr("admin_name ILIKE ?", pattern),
				sq.Expr("admin_email ILIKE ?", pattern),
			})
		}
		if len(filter.Statuses) > 0 {
			statuses := make([]string, 0, len(filter.Statuses))
			for _, st := range filter.Statuses {
				statuses = append(statuses, string(st))
			}
			b = b.Where(sq.Eq{"status": statuses})
		}
		if filter.AdminEmail != "" {
			b = b.Where("LOWER(admin_email) = LOWER(?)", filter.AdminEmail)
		}
		if !filter.CreatedFrom.IsZero() {
			b = b.Where(sq.GtOrEq{"created_at": filter.CreatedFrom})
		}
		if !filter.CreatedTo.IsZero() {
			b = b.Where(sq.LtOrEq{"created_at": filter.CreatedTo})
		}
	}

	orderBys := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if requestOrderingFields[ord.Field] {
			orderBys = append(orderBys, ord.String())
		}
	}
	if len(orderBys) == 0 {
		orderBys = append(orderBys, core.DBOrdering{Field: "created_at"}.String())
	}
	b = b.OrderBy(orderBys...)

	query, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []requestRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting onboarding requests")
	}

	reqs := make([]onboarding.Request, 0, len(rows))
	for _, row := range rows {
		reqs = append(reqs, row.toRequest())
	}
	return reqs, nil
}

func (repo *requestRepository) UpdateRequestStatus(ctx context.Context, id string, upd onboarding.StatusUpdate) (onboarding.Request, error) {
	return repo.get(ctx, psql.Update(requestsTable).
		SetMap(map[string]interface{}{
			"status":           string(upd.Status),
			"reviewed_by":      null.StringFromPtr(upd.ReviewedBy),
			"reviewed_at":      null.TimeFromPtr(upd.ReviewedAt),
			"rejection_reason": null.StringFromPtr(upd.RejectionReason),
			"updated_at":       time.Now().UTC(),
		}).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING "+strings.Join(requestColumns, ", ")))
}

func (repo *requestRepository) UpdateRequest(ctx context.Context, req onboarding.Request) (onboarding.Request, error) {
	return repo.get(ctx, psql.Update(requestsTable).
		SetMap(map[string]interface{}{
			"institution_name":   req.InstitutionName,
			"admin_name":         req.AdminName,
			"admin_email":        req.AdminEmail,
			"phone":              null.StringFromPtr(req.Phone),
			"address":            null.StringFromPtr(req.Address),
			"requested_students": null.IntFromPtr(req.RequestedStudents),
			"requested_teachers": null.IntFromPtr(req.RequestedTeachers),
			"notes":              null.StringFromPtr(req.Notes),
			"updated_at":         req.UpdatedAt,
		}).
		Where(sq.Eq{"id": req.ID}).
		Suffix("RETURNING "+strings.Join(requestColumns, ", ")))
}
