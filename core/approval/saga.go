package approval

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

type compensation struct {
	resource string
	id       string
	undo     func(ctx context.Context) error
}

// saga records how to undo every resource created during one approval.
type saga struct {
	steps []compensation
}

func (s *saga) add(resource, id string, undo func(ctx context.Context) error) {
	s.steps = append(s.steps, compensation{resource: resource, id: id, undo: undo})
}

// compensate undoes the recorded steps in reverse order, carrying on after failures.
// onResult is called once per step.
func (s *saga) compensate(ctx context.Context, onResult func(c compensation, err error)) error {
	var result *multierror.Error
	for i := len(s.steps) - 1; i >= 0; i-- {
		c := s.steps[i]
		err := c.undo(ctx)
		if onResult != nil {
			onResult(c, err)
		}
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "deleting %s %s", c.resource, c.id))
		}
	}
	return result.ErrorOrNil()
}
