package approval

import (
	"github.com/pkg/errors"
)

var (
	ErrUnauthenticated    = errors.New("user not authenticated")
	ErrForbidden          = errors.New("permission denied")
	ErrNotFound           = errors.New("onboarding request not found")
	ErrRequestRejected    = errors.New("onboarding request has been rejected")
	ErrRequestApproved    = errors.New("onboarding request has already been approved")
	ErrApprovalInProgress = errors.New("onboarding request approval already in progress")
	ErrLocked             = errors.New("lock already held")
)

// ProvisioningError reports which provisioning step failed and why.
// Anything created before the failure has been compensated when it is returned.
type ProvisioningError struct {
	Step string
	Err  error
}

func provisioningFailed(step string, err error) error {
	return &ProvisioningError{Step: step, Err: err}
}

func (e *ProvisioningError) Error() string {
	return "provisioning failed: " + e.Step + ": " + e.Err.Error()
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

func IsProvisioningFailed(err error) bool {
	var pErr *ProvisioningError
	return errors.As(err, &pErr)
}
