package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-onboarding/core"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrEmailExists        = errors.New("an identity with this email already exists")
	ErrProfileExists      = errors.New("a profile already exists for this identity")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDeactivated = errors.New("account deactivated")
)

type (
	IdentityRepository interface {
		CreateIdentity(ctx context.Context, identity Identity) (Identity, error)
		GetIdentity(ctx context.Context, filter GetFilter) (Identity, error)
		UpdateIdentity(ctx context.Context, identity Identity) (Identity, error)
		DeleteIdentity(ctx context.Context, id string) error
	}

	ProfileRepository interface {
		CreateProfile(ctx context.Context, profile Profile) (Profile, error)
		GetProfile(ctx context.Context, filter ProfileFilter) (Profile, error)
		UpdateProfile(ctx context.Context, profile Profile) (Profile, error)
		DeleteProfile(ctx context.Context, id string) error
	}

	// Service is the identity provider and the profile store of the app.
	Service struct {
		identities IdentityRepository
		profiles   ProfileRepository
		validate   *validator.Validate
	}
)

func NewService(identities IdentityRepository, profiles ProfileRepository, validate *validator.Validate) *Service {
	return &Service{identities: identities, profiles: profiles, validate: validate}
}

// CreateIdentity registers a new auth Identity with a hashed password.
func (svc *Service) CreateIdentity(ctx context.Context, ni NewIdentity) (Identity, error) {
	now := time.Now().UTC()
	identity := Identity{
		Email:              core.CleanString(ni.Email, true /* lower */),
		EmailConfirmed:     ni.Confirmed,
		Role:               ni.Role,
		TenantID:           ni.TenantID,
		MustChangePassword: ni.MustChangePassword,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if identity.Email == "" {
		return Identity{}, errors.New("identity email is required")
	}
	if err := identity.SetPassword(ni.Password); err != nil {
		return Identity{}, errors.Wrap(err, "hashing password")
	}
	return svc.identities.CreateIdentity(ctx, identity)
}

func (svc *Service) DeleteIdentity(ctx context.Context, id string) error {
	return svc.identities.DeleteIdentity(ctx, id)
}

func (svc *Service) GetIdentityByID(ctx context.Context, id string) (Identity, error) {
	return svc.identities.GetIdentity(ctx, GetFilter{ID: id})
}

func (svc *Service) GetIdentityByEmail(ctx context.Context, email string) (Identity, error) {
	return svc.identities.GetIdentity(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// Authenticate checks the credentials and returns the signed in Identity along with its Profile.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (Identity, Profile, error) {
	identity, err := svc.GetIdentityByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Identity{}, Profile{}, ErrInvalidCredentials
		}
		return Identity{}, Profile{}, errors.Wrap(err, "finding identity by email")
	}
	if err = identity.CheckPassword(pwd); err != nil {
		return Identity{}, Profile{}, ErrInvalidCredentials
	}

	profile, err := svc.GetProfileByIdentityID(ctx, identity.ID)
	if err != nil {
		if errors.Cause(err) == ErrProfileNotFound {
			return Identity{}, Profile{}, ErrAccountDeactivated
		}
		return Identity{}, Profile{}, errors.Wrap(err, "finding profile")
	}
	if !profile.IsActive {
		return Identity{}, Profile{}, ErrAccountDeactivated
	}

	identity.LastLogin = time.Now().UTC()
	identity.UpdatedAt = identity.LastLogin
	if identity, err = svc.identities.UpdateIdentity(ctx, identity); err != nil {
		return Identity{}, Profile{}, errors.Wrap(err, "setting lastLogin")
	}
	return identity, profile, nil
}

// ChangePassword validates cp against the password policy and sets the new password.
func (svc *Service) ChangePassword(ctx context.Context, identityID string, cp ChangePassword) error {
	identity, err := svc.GetIdentityByID(ctx, identityID)
	if err != nil {
		return err
	}
	if cp.Email == "" {
		cp.Email = identity.Email
	}
	if err = svc.validate.Struct(cp); err != nil {
		return err
	}
	if err = identity.SetPassword(cp.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	identity.MustChangePassword = false
	identity.UpdatedAt = time.Now().UTC()
	_, err = svc.identities.UpdateIdentity(ctx, identity)
	return errors.Wrap(err, "updating identity")
}

func (svc *Service) GetProfileByIdentityID(ctx context.Context, identityID string) (Profile, error) {
	return svc.profiles.GetProfile(ctx, ProfileFilter{IdentityID: identityID})
}

func (svc *Service) CreateProfile(ctx context.Context, profile Profile) (Profile, error) {
	now := time.Now().UTC()
	profile.Email = core.CleanString(profile.Email, true /* lower */)
	profile.CreatedAt = now
	profile.UpdatedAt = now
	return svc.profiles.CreateProfile(ctx, profile)
}

func (svc *Service) UpdateProfile(ctx context.Context, profile Profile) (Profile, error) {
	profile.UpdatedAt = time.Now().UTC()
	return svc.profiles.UpdateProfile(ctx, profile)
}

func (svc *Service) DeleteProfile(ctx context.Context, id string) error {
	return svc.profiles.DeleteProfile(ctx, id)
}

// EnsureSuperAdmin creates or updates a superadmin Identity and its Profile.
func (svc *Service) EnsureSuperAdmin(ctx context.Context, email, name, pwd string) (Profile, error) {
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)

	identity, err := svc.GetIdentityByEmail(ctx, email)
	switch errors.Cause(err) {
	case nil:
		if err = identity.SetPassword(pwd); err != nil {
			return Profile{}, errors.Wrap(err, "hashing password")
		}
		identity.Role = RoleSuperAdmin
		identity.EmailConfirmed = true
		identity.UpdatedAt = time.Now().UTC()
		if identity, err = svc.identities.UpdateIdentity(ctx, identity); err != nil {
			return Profile{}, errors.Wrap(err, "updating identity")
		}
	case ErrNotFound:
		identity, err = svc.CreateIdentity(ctx, NewIdentity{
			Email:     email,
			Password:  pwd,
			Confirmed: true,
			Role:      RoleSuperAdmin,
		})
		if err != nil {
			return Profile{}, errors.Wrap(err, "creating identity")
		}
	default:
		return Profile{}, errors.Wrap(err, "finding identity by email")
	}

	profile, err := svc.GetProfileByIdentityID(ctx, identity.ID)
	switch errors.Cause(err) {
	case nil:
		profile.Role = RoleSuperAdmin
		profile.IsActive = true
		if name != "" {
			profile.Name = name
		}
		return svc.UpdateProfile(ctx, profile)
	case ErrProfileNotFound:
		return svc.CreateProfile(ctx, Profile{
			IdentityID: identity.ID,
			Email:      identity.Email,
			Name:       name,
			Role:       RoleSuperAdmin,
			IsActive:   true,
		})
	default:
		return Profile{}, errors.Wrap(err, "finding profile")
	}
}
