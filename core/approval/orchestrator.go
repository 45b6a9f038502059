package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-onboarding/core"
	"github.com/trezcool/masomo-onboarding/core/onboarding"
	"github.com/trezcool/masomo-onboarding/core/tenant"
	"github.com/trezcool/masomo-onboarding/core/user"
)

// approval outcomes, as reported to Metrics
const (
	OutcomeApproved           = "approved"
	OutcomeAlreadyProvisioned = "already_provisioned"
	OutcomeUnauthenticated    = "unauthenticated"
	OutcomeForbidden          = "forbidden"
	OutcomeNotFound           = "not_found"
	OutcomeConflict           = "conflict"
	OutcomeFailed             = "failed"
)

type (
	// Caller is the authenticated identity performing a review.
	// A zero Caller is unauthenticated.
	Caller struct {
		IdentityID string
		Email      string
	}

	// Result is the outcome of a successful approval.
	Result struct {
		Success            bool   `json:"success"`
		TenantID           string `json:"tenantId"`
		AdministratorEmail string `json:"administratorEmail"`
		// TemporaryCredential is only set when the administrator identity was created by this call.
		TemporaryCredential string            `json:"temporaryCredential,omitempty"`
		AlreadyProvisioned  bool              `json:"alreadyProvisioned"`
		RequestStatus       onboarding.Status `json:"requestStatus"`
	}

	IdentityProvider interface {
		CreateIdentity(ctx context.Context, ni user.NewIdentity) (user.Identity, error)
		DeleteIdentity(ctx context.Context, id string) error
	}

	ProfileStore interface {
		GetProfileByIdentityID(ctx context.Context, identityID string) (user.Profile, error)
		CreateProfile(ctx context.Context, profile user.Profile) (user.Profile, error)
		UpdateProfile(ctx context.Context, profile user.Profile) (user.Profile, error)
		DeleteProfile(ctx context.Context, id string) error
	}

	Notifier interface {
		SendWelcome(ctx context.Context, data onboarding.WelcomeData) error
		SendRejected(req onboarding.Request)
	}

	// Locker serializes concurrent approvals of the same request.
	Locker interface {
		// Lock returns ErrLocked when key is already held.
		Lock(ctx context.Context, key string) (unlock func(), err error)
	}

	Metrics interface {
		ObserveApproval(outcome string, duration time.Duration)
		IncCompensation(resource string, succeeded bool)
		IncOrphanedResource(resource string)
		IncNotification(succeeded bool)
	}

	Deps struct {
		Requests   onboarding.Repository
		Tenants    tenant.Repository
		Identities IdentityProvider
		Profiles   ProfileStore
		Notifier   Notifier
		Locker     Locker  // optional
		Metrics    Metrics // optional
		Logger     core.Logger
		Conf       *core.Config
	}

	// Orchestrator approves or rejects onboarding requests.
	// Approving provisions a tenant along with its administrator identity and profile,
	// compensating for whatever was created if any step fails.
	Orchestrator struct {
		requests   onboarding.Repository
		tenants    tenant.Repository
		identities IdentityProvider
		profiles   ProfileStore
		notifier   Notifier
		locker     Locker
		metrics    Metrics
		logger     core.Logger
		conf       core.OnboardingConfig
	}
)

func NewOrchestrator(deps Deps) *Orchestrator {
	o := &Orchestrator{
		requests:   deps.Requests,
		tenants:    deps.Tenants,
		identities: deps.Identities,
		profiles:   deps.Profiles,
		notifier:   deps.Notifier,
		locker:     deps.Locker,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		conf:       deps.Conf.Onboarding,
	}
	if o.metrics == nil {
		o.metrics = nopMetrics{}
	}
	if o.conf.ApprovalTimeout <= 0 {
		o.conf.ApprovalTimeout = 30 * time.Second
	}
	if o.conf.CompensationTimeout <= 0 {
		o.conf.CompensationTimeout = 10 * time.Second
	}
	if o.conf.DefaultCapacity <= 0 {
		o.conf.DefaultCapacity = 50
	}
	if o.conf.TrialPlan == "" {
		o.conf.TrialPlan = tenant.PlanTrial
	}
	return o
}

// Authorize returns the Profile of caller if it is an active superadmin.
func (o *Orchestrator) Authorize(ctx context.Context, caller Caller) (user.Profile, error) {
	if caller.IdentityID == "" {
		return user.Profile{}, ErrUnauthenticated
	}
	profile, err := o.profiles.GetProfileByIdentityID(ctx, caller.IdentityID)
	if err != nil {
		if errors.Cause(err) == user.ErrProfileNotFound {
			return user.Profile{}, ErrForbidden
		}
		return user.Profile{}, errors.Wrap(err, "finding caller profile")
	}
	if !profile.IsSuperAdmin() || !profile.IsActive {
		return user.Profile{}, ErrForbidden
	}
	return profile, nil
}

// Approve provisions the school of an onboarding request: its tenant, its administrator identity & profile.
// Approving a request whose tenant is already provisioned does not provision anything again.
// On ProvisioningError, every resource created by the call has been deleted
// and the request is pending again, so the approval can be retried.
func (o *Orchestrator) Approve(ctx context.Context, requestID string, caller Caller) (res Result, err error) {
	start := time.Now()
	defer func() {
		o.metrics.ObserveApproval(outcomeOf(res, err), time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(ctx, o.conf.ApprovalTimeout)
	defer cancel()

	reviewer, err := o.Authorize(ctx, caller)
	if err != nil {
		if err == ErrUnauthenticated || err == ErrForbidden {
			return Result{}, err
		}
		return Result{}, provisioningFailed("authorizing caller", err)
	}

	if o.locker != nil {
		unlock, err := o.locker.Lock(ctx, "onboarding:approve:"+requestID)
		if err != nil {
			if errors.Cause(err) == ErrLocked {
				return Result{}, ErrApprovalInProgress
			}
			return Result{}, provisioningFailed("locking request", err)
		}
		defer unlock()
	}

	req, err := o.requests.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Cause(err) == onboarding.ErrNotFound {
			return Result{}, ErrNotFound
		}
		return Result{}, provisioningFailed("finding request", err)
	}
	if req.Status == onboarding.StatusRejected {
		return Result{}, ErrRequestRejected
	}

	existing, err := o.tenants.GetTenantByEmail(ctx, req.AdminEmail)
	switch errors.Cause(err) {
	case nil:
		return o.confirmProvisioned(ctx, req, reviewer, existing)
	case tenant.ErrNotFound:
	default:
		return Result{}, provisioningFailed("checking existing tenant", err)
	}

	// mark early so that nobody else reviews the request meanwhile; reverted on failure
	if _, err = o.setStatus(ctx, req.ID, onboarding.StatusApproved, &reviewer); err != nil {
		o.logger.Warn(fmt.Sprintf("onboarding request %s: marking approved before provisioning", req.ID), err)
	}

	sg := new(saga)
	if res, err = o.provision(ctx, req, reviewer, sg); err != nil {
		o.rollback(req, sg)
		return Result{}, err
	}
	return res, nil
}

// confirmProvisioned handles approvals of requests whose tenant already exists.
func (o *Orchestrator) confirmProvisioned(ctx context.Context, req onboarding.Request, reviewer user.Profile, tnt tenant.Tenant) (Result, error) {
	if !tnt.IsProvisioned() {
		// a half set up tenant was not created by this call: it needs a manual reconciliation
		err := errors.Errorf("tenant %s of %s exists but its setup is not completed", tnt.ID, tnt.Email)
		o.logger.Critical(fmt.Sprintf("onboarding request %s: %v", req.ID, err), err)
		return Result{}, provisioningFailed("checking existing tenant", err)
	}
	if req.Status != onboarding.StatusApproved {
		if _, err := o.setStatus(ctx, req.ID, onboarding.StatusApproved, &reviewer); err != nil {
			return Result{}, provisioningFailed("marking request approved", err)
		}
	}
	return Result{
		Success:            true,
		TenantID:           tnt.ID,
		AdministratorEmail: req.AdminEmail,
		AlreadyProvisioned: true,
		RequestStatus:      onboarding.StatusApproved,
	}, nil
}

func (o *Orchestrator) provision(ctx context.Context, req onboarding.Request, reviewer user.Profile, sg *saga) (Result, error) {
	capacity := o.conf.DefaultCapacity
	if req.RequestedStudents != nil && *req.RequestedStudents > 0 {
		capacity = *req.RequestedStudents
	}

	now := time.Now().UTC()
	tnt, err := o.tenants.CreateTenant(ctx, tenant.Tenant{
		Name:               req.InstitutionName,
		Email:              req.AdminEmail,
		Slug:               tenant.Slugify(req.InstitutionName),
		SubscriptionPlan:   o.conf.TrialPlan,
		SubscriptionStatus: tenant.SubscriptionActive,
		CapacityLimit:      capacity,
		OnboardingStatus:   tenant.OnboardingCompleted,
		SetupCompleted:     true,
		CreatedAt:          now,
		UpdatedAt:          now,
	})
	if err != nil {
		if errors.Cause(err) == tenant.ErrEmailExists {
			// a concurrent approval won the race
			existing, gErr := o.tenants.GetTenantByEmail(ctx, req.AdminEmail)
			if gErr != nil {
				return Result{}, provisioningFailed("creating tenant", err)
			}
			return o.confirmProvisioned(ctx, req, reviewer, existing)
		}
		return Result{}, provisioningFailed("creating tenant", err)
	}
	sg.add("tenant", tnt.ID, func(ctx context.Context) error {
		return o.tenants.DeleteTenant(ctx, tnt.ID)
	})

	credential, err := GenerateTemporaryCredential(o.conf.CredentialLength)
	if err != nil {
		return Result{}, provisioningFailed("generating temporary credential", err)
	}

	identity, err := o.identities.CreateIdentity(ctx, user.NewIdentity{
		Email:              req.AdminEmail,
		Password:           credential,
		Confirmed:          true,
		Role:               user.RoleAdministrator,
		TenantID:           tnt.ID,
		MustChangePassword: true,
	})
	if err != nil {
		return Result{}, provisioningFailed("creating administrator identity", err)
	}
	sg.add("identity", identity.ID, func(ctx context.Context) error {
		return o.identities.DeleteIdentity(ctx, identity.ID)
	})

	if err = o.upsertProfile(ctx, req, tnt, identity, sg); err != nil {
		return Result{}, provisioningFailed("saving administrator profile", err)
	}

	// the school exists from now on: a lost email must not undo it
	if err = o.notifier.SendWelcome(ctx, onboarding.WelcomeData{
		SchoolName:          req.InstitutionName,
		AdminName:           req.AdminName,
		LoginEmail:          identity.Email,
		TemporaryCredential: credential,
	}); err != nil {
		o.metrics.IncNotification(false)
		o.logger.Error(fmt.Sprintf("onboarding request %s: sending welcome email", req.ID), err)
	} else {
		o.metrics.IncNotification(true)
	}

	if _, err = o.setStatus(ctx, req.ID, onboarding.StatusApproved, &reviewer); err != nil {
		o.logger.Error(fmt.Sprintf("onboarding request %s: marking approved after provisioning tenant %s", req.ID, tnt.ID), err)
	}

	return Result{
		Success:             true,
		TenantID:            tnt.ID,
		AdministratorEmail:  identity.Email,
		TemporaryCredential: credential,
		RequestStatus:       onboarding.StatusApproved,
	}, nil
}

// upsertProfile links the administrator profile of identity to tnt.
// A profile may already exist if it was created along with the identity.
func (o *Orchestrator) upsertProfile(ctx context.Context, req onboarding.Request, tnt tenant.Tenant, identity user.Identity, sg *saga) error {
	profile, err := o.profiles.GetProfileByIdentityID(ctx, identity.ID)
	switch errors.Cause(err) {
	case nil:
		prev := profile
		profile.Name = req.AdminName
		profile.Email = identity.Email
		profile.Role = user.RoleAdministrator
		profile.TenantID = tnt.ID
		profile.IsActive = true
		if profile, err = o.profiles.UpdateProfile(ctx, profile); err != nil {
			return err
		}
		sg.add("profile", profile.ID, func(ctx context.Context) error {
			_, err := o.profiles.UpdateProfile(ctx, prev)
			return err
		})
	case user.ErrProfileNotFound:
		profile, err = o.profiles.CreateProfile(ctx, user.Profile{
			IdentityID: identity.ID,
			Email:      identity.Email,
			Name:       req.AdminName,
			Role:       user.RoleAdministrator,
			TenantID:   tnt.ID,
			IsActive:   true,
		})
		if err != nil {
			return err
		}
		sg.add("profile", profile.ID, func(ctx context.Context) error {
			return o.profiles.DeleteProfile(ctx, profile.ID)
		})
	default:
		return err
	}
	return nil
}

// rollback undoes what a failed approval created and makes the request pending again.
// It runs on its own context: the approval's may be cancelled or timed out already.
func (o *Orchestrator) rollback(req onboarding.Request, sg *saga) {
	ctx, cancel := context.WithTimeout(context.Background(), o.conf.CompensationTimeout)
	defer cancel()

	err := sg.compensate(ctx, func(c compensation, err error) {
		o.metrics.IncCompensation(c.resource, err == nil)
		if err != nil {
			o.metrics.IncOrphanedResource(c.resource)
		}
	})
	if err != nil {
		o.logger.Critical(
			fmt.Sprintf("onboarding request %s: rollback incomplete, manual reconciliation required", req.ID),
			err,
			map[string]interface{}{"request_id": req.ID, "admin_email": req.AdminEmail},
		)
	}

	if _, err = o.setStatus(ctx, req.ID, onboarding.StatusPending, nil); err != nil {
		o.logger.Error(fmt.Sprintf("onboarding request %s: reverting to pending", req.ID), err)
	}
}

// Reject marks a pending request rejected and notifies its submitter.
// Rejecting a rejected request again is a no-op.
func (o *Orchestrator) Reject(ctx context.Context, requestID string, caller Caller, reason string) (onboarding.Request, error) {
	reviewer, err := o.Authorize(ctx, caller)
	if err != nil {
		return onboarding.Request{}, err
	}

	req, err := o.requests.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Cause(err) == onboarding.ErrNotFound {
			return onboarding.Request{}, ErrNotFound
		}
		return onboarding.Request{}, errors.Wrap(err, "finding request")
	}
	switch req.Status {
	case onboarding.StatusRejected:
		return req, nil
	case onboarding.StatusApproved:
		return onboarding.Request{}, ErrRequestApproved
	}

	now := time.Now().UTC()
	upd := onboarding.StatusUpdate{
		Status:     onboarding.StatusRejected,
		ReviewedBy: &reviewer.ID,
		ReviewedAt: &now,
	}
	if reason = core.CleanString(reason); reason != "" {
		upd.RejectionReason = &reason
	}
	if req, err = o.requests.UpdateRequestStatus(ctx, req.ID, upd); err != nil {
		return onboarding.Request{}, errors.Wrap(err, "marking request rejected")
	}

	if o.notifier != nil {
		o.notifier.SendRejected(req)
	}
	return req, nil
}

func (o *Orchestrator) setStatus(ctx context.Context, id string, status onboarding.Status, reviewer *user.Profile) (onboarding.Request, error) {
	upd := onboarding.StatusUpdate{Status: status}
	if reviewer != nil {
		now := time.Now().UTC()
		upd.ReviewedBy = &reviewer.ID
		upd.ReviewedAt = &now
	}
	return o.requests.UpdateRequestStatus(ctx, id, upd)
}

func outcomeOf(res Result, err error) string {
	switch {
	case err == nil && res.AlreadyProvisioned:
		return OutcomeAlreadyProvisioned
	case err == nil:
		return OutcomeApproved
	case err == ErrUnauthenticated:
		return OutcomeUnauthenticated
	case err == ErrForbidden:
		return OutcomeForbidden
	case err == ErrNotFound:
		return OutcomeNotFound
	case err == ErrRequestRejected, err == ErrApprovalInProgress:
		return OutcomeConflict
	default:
		return OutcomeFailed
	}
}

type nopMetrics struct{}

func (nopMetrics) ObserveApproval(string, time.Duration) {}
func (nopMetrics) IncCompensation(string, bool)          {}
func (nopMetrics) IncOrphanedResource(string)            {}
func (nopMetrics) IncNotification(bool)                  {}
