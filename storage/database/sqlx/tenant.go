package sqlxrepos

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-onboarding/core"
	"github.com/trezcool/masomo-onboarding/core/tenant"
)

const tenantsTable = "tenants"

var tenantColumns = []string{
	"id", "name", "email", "slug", "subscription_plan", "subscription_status",
	"capacity_limit", "onboarding_status", "setup_completed", "created_at", "updated_at",
}

type (
	tenantRow struct {
		ID                 string    `db:"id"`
		Name               string    `db:"name"`
		Email              string    `db:"email"`
		Slug               string    `db:"slug"`
		SubscriptionPlan   string    `db:"subscription_plan"`
		SubscriptionStatus string    `db:"subscription_status"`
		CapacityLimit      int       `db:"capacity_limit"`
		OnboardingStatus   string    `db:"onboarding_status"`
		SetupCompleted     bool      `db:"setup_completed"`
		CreatedAt          time.Time `db:"created_at"`
		UpdatedAt          time.Time `db:"updated_at"`
	}

	tenantRepository struct {
		db core.DBExecutor
	}
)

var _ tenant.Repository = (*tenantRepository)(nil)

func NewTenantRepository(db core.DBExecutor) tenant.Repository {
	return &tenantRepository{db: db}
}

func (r tenantRow) toTenant() tenant.Tenant {
	return tenant.Tenant{
		ID:                 r.ID,
		Name:               r.Name,
		Email:              r.Email,
		Slug:               r.Slug,
		SubscriptionPlan:   r.SubscriptionPlan,
		SubscriptionStatus: r.SubscriptionStatus,
		CapacityLimit:      r.CapacityLimit,
		OnboardingStatus:   r.OnboardingStatus,
		SetupCompleted:     r.SetupCompleted,
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
	}
}

func (repo *tenantRepository) get(ctx context.Context, b sq.Sqlizer) (tenant.Tenant, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return tenant.Tenant{}, errors.Wrap(err, "building query")
	}
	var row tenantRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if pqCode(err) == uniqueViolation {
			return tenant.Tenant{}, tenant.ErrEmailExists
		}
		return tenant.Tenant{}, trapNoRowsErr(err, tenant.ErrNotFound)
	}
	return row.toTenant(), nil
}

func (repo *tenantRepository) CreateTenant(ctx context.Context, tnt tenant.Tenant) (tenant.Tenant, error) {
	return repo.get(ctx, psql.Insert(tenantsTable).
		SetMap(map[string]interface{}{
			"id":                  uuid.New().String(),
			"name":                tnt.Name,
			"email":               tnt.Email,
			"slug":                tnt.Slug,
			"subscription_plan":   tnt.SubscriptionPlan,
			"subscription_status": tnt.SubscriptionStatus,
			"capacity_limit":      tnt.CapacityLimit,
			"onboarding_status":   tnt.OnboardingStatus,
			"setup_completed":     tnt.SetupCompleted,
			"created_at":          tnt.CreatedAt,
			"updated_at":          tnt.UpdatedAt,
		}).
		Suffix("RETURNING "+strings.Join(tenantColumns, ", ")))
}

func (repo *tenantRepository) GetTenantByID(ctx context.Context, id string) (tenant.Tenant, error) {
	return repo.get(ctx, psql.Select(tenantColumns...).From(tenantsTable).Where(sq.Eq{"id": id}))
}

func (repo *tenantRepository) GetTenantByEmail(ctx context.Context, email string) (tenant.Tenant, error) {
	return repo.get(ctx, psql.Select(tenantColumns...).From(tenantsTable).Where("LOWER(email) = LOWER(?)", email))
}

func (repo *tenantRepository) DeleteTenant(ctx context.Context, id string) error {
	query, args, err := psql.Delete(tenantsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	_, err = repo.db.ExecContext(ctx, query, args...)
	return errors.Wrap(err, "deleting tenant")
}
