package onboarding

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-onboarding/core"
)

var (
	// errors
	ErrNotFound      = errors.New("onboarding request not found")
	ErrNotPending    = errors.New("onboarding request has already been reviewed")
	ErrPendingExists = errors.New("a pending onboarding request already exists for this email")
)

type (
	// Repository is the RequestStore: durable storage of onboarding Requests, free of business logic.
	Repository interface {
		CreateRequest(ctx context.Context, req Request) (Request, error)
		GetRequest(ctx context.Context, id string) (Request, error)
		// QueryRequests applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of
		// Request.InstitutionName, Request.AdminName or Request.AdminEmail.
		QueryRequests(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Request, error)
		UpdateRequestStatus(ctx context.Context, id string, update StatusUpdate) (Request, error)
		UpdateRequest(ctx context.Context, req Request) (Request, error)
	}

	// Service handles the client side of onboarding: submission and review queries.
	Service struct {
		repo     Repository
		mailer   *Mailer
		validate *validator.Validate
	}
)

func NewService(repo Repository, mailer *Mailer, validate *validator.Validate) *Service {
	return &Service{repo: repo, mailer: mailer, validate: validate}
}

// Submit validates and stores a new pending Request, then acknowledges it by email.
func (svc *Service) Submit(ctx context.Context, nr NewRequest) (Request, error) {
	nr.Clean()
	if err := svc.validate.Struct(nr); err != nil {
		return Request{}, err
	}
	if err := svc.checkNoPending(ctx, nr.AdminEmail, ""); err != nil {
		return Request{}, err
	}

	now := time.Now().UTC()
	req, err := svc.repo.CreateRequest(ctx, Request{
		InstitutionName:   nr.InstitutionName,
		AdminName:         nr.AdminName,
		AdminEmail:        nr.AdminEmail,
		Phone:             nr.Phone,
		Address:           nr.Address,
		RequestedStudents: nr.RequestedStudents,
		RequestedTeachers: nr.RequestedTeachers,
		Notes:             nr.Notes,
		Status:            StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		return Request{}, errors.Wrap(err, "creating onboarding request")
	}

	if svc.mailer != nil {
		svc.mailer.SendReceived(req)
	}
	return req, nil
}

// checkNoPending guards against double submissions for the same administrator.
func (svc *Service) checkNoPending(ctx context.Context, email, excludedID string) error {
	pending, err := svc.repo.QueryRequests(ctx, &QueryFilter{
		AdminEmail: email,
		Statuses:   []Status{StatusPending},
	}, nil)
	if err != nil {
		return errors.Wrap(err, "checking pending requests")
	}
	for _, req := range pending {
		if req.ID != excludedID {
			return core.NewValidationError(ErrPendingExists, core.FieldError{Field: "admin_email", Error: ErrPendingExists.Error()})
		}
	}
	return nil
}

func (svc *Service) Get(ctx context.Context, id string) (Request, error) {
	return svc.repo.GetRequest(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Request, error) {
	if filter != nil {
		filter.Clean()
		for _, st := range filter.Statuses {
			if !st.IsValid() {
				return []Request{}, nil
			}
		}
	}
	return svc.repo.QueryRequests(ctx, filter, ordering)
}

// Update modifies the submitted data of a Request that has not been reviewed yet.
func (svc *Service) Update(ctx context.Context, id string, ur UpdateRequest) (Request, error) {
	orig, err := svc.repo.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !orig.IsPending() {
		return Request{}, ErrNotPending
	}

	ur.Clean()
	if err = svc.validate.Struct(ur); err != nil {
		return Request{}, err
	}
	if ur.AdminEmail != "" && ur.AdminEmail != orig.AdminEmail {
		if err = svc.checkNoPending(ctx, ur.AdminEmail, orig.ID); err != nil {
			return Request{}, err
		}
	}

	req := ur.apply(orig)
	req.UpdatedAt = time.Now().UTC()
	req, err = svc.repo.UpdateRequest(ctx, req)
	return req, errors.Wrap(err, "updating onboarding request")
}
