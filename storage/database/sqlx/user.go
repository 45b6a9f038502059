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
	"github.com/trezcool/masomo-onboarding/core/user"
)

const (
	identitiesTable = "auth_identities"
	profilesTable   = "profiles"
)

var (
	identityColumns = []string{
		"id", "email", "password_hash", "email_confirmed", "role", "tenant_id",
		"must_change_password", "created_at", "updated_at", "last_login",
	}
	profileColumns = []string{
		"id", "auth_identity_id", "email", "name", "role", "tenant_id", "is_active", "created_at", "updated_at",
	}
)

type (
	identityRow struct {
		ID                 string      `db:"id"`
		Email              string      `db:"email"`
		PasswordHash       []byte      `db:"password_hash"`
		EmailConfirmed     bool        `db:"email_confirmed"`
		Role               string      `db:"role"`
		TenantID           null.String `db:"tenant_id"`
		MustChangePassword bool        `db:"must_change_password"`
		CreatedAt          time.Time   `db:"created_at"`
		UpdatedAt          time.Time   `db:"updated_at"`
		LastLogin          null.Time   `db:"last_login"`
	}

	profileRow struct {
		ID         string      `db:"id"`
		IdentityID string      `db:"auth_identity_id"`
		Email      string      `db:"email"`
		Name       string      `db:"name"`
		Role       string      `db:"role"`
		TenantID   null.String `db:"tenant_id"`
		IsActive   bool        `db:"is_active"`
		CreatedAt  time.Time   `db:"created_at"`
		UpdatedAt  time.Time   `db:"updated_at"`
	}

	identityRepository struct {
		db core.DBExecutor
	}

	profileRepository struct {
		db core.DBExecutor
	}
)

var (
	_ user.IdentityRepository = (*identityRepository)(nil)
	_ user.ProfileRepository  = (*profileRepository)(nil)
)

func NewIdentityRepository(db core.DBExecutor) user.IdentityRepository {
	return &identityRepository{db: db}
}

func NewProfileRepository(db core.DBExecutor) user.ProfileRepository {
	return &profileRepository{db: db}
}

// nullID maps empty IDs to NULL.
func nullID(id string) null.String {
	return null.NewString(id, id != "")
}

func (r identityRow) toIdentity() user.Identity {
	return user.Identity{
		ID:                 r.ID,
		Email:              r.Email,
		PasswordHash:       r.PasswordHash,
		EmailConfirmed:     r.EmailConfirmed,
		Role:               r.Role,
		TenantID:           r.TenantID.String,
		MustChangePassword: r.MustChangePassword,
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
		LastLogin:          r.LastLogin.Time.UTC(),
	}
}

func identityValues(identity user.Identity) map[string]interface{} {
	return map[string]interface{}{
		"email":                identity.Email,
		"password_hash":        identity.PasswordHash,
		"email_confirmed":      identity.EmailConfirmed,
		"role":                 identity.Role,
		"tenant_id":            nullID(identity.TenantID),
		"must_change_password": identity.MustChangePassword,
		"updated_at":           identity.UpdatedAt,
		"last_login":           null.NewTime(identity.LastLogin, !identity.LastLogin.IsZero()),
	}
}

func (repo *identityRepository) get(ctx context.Context, b sq.Sqlizer) (user.Identity, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return user.Identity{}, errors.Wrap(err, "building query")
	}
	var row identityRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if pqCode(err) == uniqueViolation {
			return user.Identity{}, user.ErrEmailExists
		}
		return user.Identity{}, trapNoRowsErr(err, user.ErrNotFound)
	}
	return row.toIdentity(), nil
}

func (repo *identityRepository) CreateIdentity(ctx context.Context, identity user.Identity) (user.Identity, error) {
	values := identityValues(identity)
	values["id"] = uuid.New().String()
	values["created_at"] = identity.CreatedAt
	return repo.get(ctx, psql.Insert(identitiesTable).
		SetMap(values).
		Suffix("RETURNING "+strings.Join(identityColumns, ", ")))
}

func (repo *identityRepository) GetIdentity(ctx context.Context, filter user.GetFilter) (user.Identity, error) {
	b := psql.Select(identityColumns...).From(identitiesTable)
	if filter.ID == "" && filter.Email == "" {
		return user.Identity{}, user.ErrNotFound
	}
	if filter.ID != "" {
		b = b.Where(sq.Eq{"id": filter.ID})
	}
	if filter.Email != "" {
		b = b.Where("LOWER(email) = LOWER(?)", filter.Email)
	}
	return repo.get(ctx, b)
}

func (repo *identityRepository) UpdateIdentity(ctx context.Context, identity user.Identity) (user.Identity, error) {
	return repo.get(ctx, psql.Update(identitiesTable).
		SetMap(identityValues(identity)).
		Where(sq.Eq{"id": identity.ID}).
		Suffix("RETURNING "+strings.Join(identityColumns, ", ")))
}

func (repo *identityRepository) DeleteIdentity(ctx context.Context, id string) error {
	query, args, err := psql.Delete(identitiesTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	_, err = repo.db.ExecContext(ctx, query, args...)
	return errors.Wrap(err, "deleting identity")
}

func (r profileRow) toProfile() user.Profile {
	return user.Profile{
		ID:         r.ID,
		IdentityID: r.IdentityID,
		Email:      r.Email,
		Name:       r.Name,
		Role:       r.Role,
		TenantID:   r.TenantID.String,
		IsActive:   r.IsActive,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

func (repo *profileRepository) get(ctx context.Context, b sq.Sqlizer) (user.Profile, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return user.Profile{}, errors.Wrap(err, "building query")
	}
	var row profileRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		switch pqCode(err) {
		case uniqueViolation:
			return user.Profile{}, user.ErrProfileExists
		case foreignKeyViolation:
			return user.Profile{}, user.ErrNotFound
		}
		return user.Profile{}, trapNoRowsErr(err, user.ErrProfileNotFound)
	}
	return row.toProfile(), nil
}

func (repo *profileRepository) CreateProfile(ctx context.Context, profile user.Profile) (user.Profile, error) {
	return repo.get(ctx, psql.Insert(profilesTable).
		SetMap(map[string]interface{}{
			"id":               uuid.New().String(),
			"auth_identity_id": profile.IdentityID,
			"email":            profile.Email,
			"name":             profile.Name,
			"role":             profile.Role,
			"tenant_id":        nullID(profile.TenantID),
			"is_active":        profile.IsActive,
			"created_at":       profile.CreatedAt,
			"updated_at":       profile.UpdatedAt,
		}).
		Suffix("RETURNING "+strings.Join(profileColumns, ", ")))
}

func (repo *profileRepository) GetProfile(ctx context.Context, filter user.ProfileFilter) (user.Profile, error) {
	b := psql.Select(profileColumns...).From(profilesTable)
	if filter.ID == "" && filter.IdentityID == "" {
		return user.Profile{}, user.ErrProfileNotFound
	}
	if filter.ID != "" {
		b = b.Where(sq.Eq{"id": filter.ID})
	}
	if filter.IdentityID != "" {
		b = b.Where(sq.Eq{"auth_identity_id": filter.IdentityID})
	}
	return repo.get(ctx, b)
}

func (repo *profileRepository) UpdateProfile(ctx context.Context, profile user.Profile) (user.Profile, error) {
	return repo.get(ctx, psql.Update(profilesTable).
		SetMap(map[string]interface{}{
			"email":      profile.Email,
			"name":       profile.Name,
			"role":       profile.Role,
			"tenant_id":  nullID(profile.TenantID),
			"is_active":  profile.IsActive,
			"updated_at": profile.UpdatedAt,
		}).
		Where(sq.Eq{"id": profile.ID}).
		Suffix("RETURNING "+strings.Join(profileColumns, ", ")))
}

func (repo *profileRepository) DeleteProfile(ctx context.Context, id string) error {
	query, args, err := psql.Delete(profilesTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	_, err = repo.db.ExecContext(ctx, query, args...)
	return errors.Wrap(err, "deleting profile")
}
