package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/masomo-onboarding/core"
)

// Roles
const (
	RoleSuperAdmin    = "superadmin"
	RoleAdministrator = "administrator"
	RoleTeacher       = "teacher"
	RoleParent        = "parent"
)

var (
	AllRoles = []string{RoleSuperAdmin, RoleAdministrator, RoleTeacher, RoleParent}

	rolePriorities = map[string]int{
		RoleSuperAdmin:    40,
		RoleAdministrator: 30,
		RoleTeacher:       20,
		RoleParent:        10,
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

// Identity is an authentication identity: the credentials a person signs in with.
// It is managed by the identity provider, independently of the app Profile.
type Identity struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email"`
	PasswordHash       []byte    `json:"-"`
	EmailConfirmed     bool      `json:"email_confirmed"`
	Role               string    `json:"role"`      // app metadata
	TenantID           string    `json:"tenant_id"` // app metadata
	MustChangePassword bool      `json:"must_change_password"`
	CreatedAt          time.Time `json:"created_at"` // UTC
	UpdatedAt          time.Time `json:"updated_at"` // UTC
	LastLogin          time.Time `json:"last_login"` // UTC
}

func (i *Identity) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	i.PasswordHash = hash
	return nil
}

func (i *Identity) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(i.PasswordHash, []byte(pwd))
}

// NewIdentity contains information needed to register a new Identity.
type NewIdentity struct {
	Email    string
	Password string
	// Confirmed skips the email verification round trip.
	Confirmed          bool
	Role               string
	TenantID           string
	MustChangePassword bool
}

// Profile is the app-side record of a person, linked to its auth Identity.
type Profile struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"auth_identity_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	TenantID   string    `json:"tenant_id"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

func (p Profile) IsSuperAdmin() bool {
	return p.Role == RoleSuperAdmin
}

func (p Profile) IsAdministrator() bool {
	return p.Role == RoleAdministrator
}

type GetFilter struct {
	ID    string
	Email string
}

type ProfileFilter struct {
	ID         string
	IdentityID string
}

// ChangePassword defines what information must be provided to change an Identity's password.
type ChangePassword struct {
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`

	// user attributes the password must not look like
	Name  string `json:"-"`
	Email string `json:"-"`
}

// LoginRequest holds the credentials used to sign in.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (lr *LoginRequest) Clean() {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
}
