package tenant

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	PlanTrial = "trial"

	SubscriptionActive    = "active"
	SubscriptionSuspended = "suspended"

	OnboardingPending   = "pending"
	OnboardingCompleted = "completed"

	slugMaxLen   = 50
	fallbackSlug = "school"
)

var (
	// errors
	ErrNotFound    = errors.New("tenant not found")
	ErrEmailExists = errors.New("a tenant with this email already exists")

	slugInvalidRunRegex = regexp.MustCompile(`[^a-z0-9]+`)
)

// Tenant is a provisioned school.
type Tenant struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"` // contact email; unique
	Slug               string    `json:"slug"`
	SubscriptionPlan   string    `json:"subscription_plan"`
	SubscriptionStatus string    `json:"subscription_status"`
	CapacityLimit      int       `json:"capacity_limit"`
	OnboardingStatus   string    `json:"onboarding_status"`
	SetupCompleted     bool      `json:"setup_completed"`
	CreatedAt          time.Time `json:"created_at"` // UTC
	UpdatedAt          time.Time `json:"updated_at"` // UTC
}

// IsProvisioned reports whether the tenant went through the whole onboarding.
// Provisioned tenants must never be provisioned again.
func (t Tenant) IsProvisioned() bool {
	return t.SetupCompleted && t.OnboardingStatus == OnboardingCompleted
}

type Repository interface {
	CreateTenant(ctx context.Context, tenant Tenant) (Tenant, error)
	GetTenantByID(ctx context.Context, id string) (Tenant, error)
	// GetTenantByEmail does a case-insensitive lookup on Tenant.Email.
	GetTenantByEmail(ctx context.Context, email string) (Tenant, error)
	DeleteTenant(ctx context.Context, id string) error
}

// Slugify derives a URL friendly slug from a school name:
// lowercase, runs of characters other than [a-z0-9] collapsed into one hyphen,
// no leading or trailing hyphen, at most 50 characters.
// "school" is returned when nothing is left.
func Slugify(name string) string {
	slug := slugInvalidRunRegex.ReplaceAllString(strings.ToLower(name), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > slugMaxLen {
		slug = strings.TrimRight(slug[:slugMaxLen], "-")
	}
	if slug == "" {
		return fallbackSlug
	}
	return slug
}
