package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/masomo-onboarding/core"
	"github.com/trezcool/masomo-onboarding/core/onboarding"
)

type requestRepository struct {
	db *DB
}

var _ onboarding.Repository = (*requestRepository)(nil)

func NewRequestRepository(db *DB) onboarding.Repository {
	return &requestRepository{db: db}
}

func (repo *requestRepository) CreateRequest(ctx context.Context, req onboarding.Request) (onboarding.Request, error) {
	if err := ctx.Err(); err != nil {
		return onboarding.Request{}, err
	}
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	req.ID = uuid.New().String()
	if req.Status == "" {
		req.Status = onboarding.StatusPending
	}
	repo.db.requests[req.ID] = &req
	return req, nil
}

func (repo *requestRepository) GetRequest(ctx context.Context, id string) (onboarding.Request, error) {
	if err := ctx.Err(); err != nil {
		return onboarding.Request{}, err
	}
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if req, ok := repo.db.requests[id]; ok {
		return *req, nil
	}
	return onboarding.Request{}, onboarding.ErrNotFound
}

func (repo *requestRepository) QueryRequests(ctx context.Context, filter *onboarding.QueryFilter, ordering []core.DBOrdering) ([]onboarding.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	reqs := make([]onboarding.Request, 0, len(repo.db.requests))
	for _, req := range repo.db.requests {
		if matches(*req, filter) {
			reqs = append(reqs, *req)
		}
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(reqs, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareRequests(reqs[i], reqs[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
	return reqs, nil
}

func matches(req onboarding.Request, filter *onboarding.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" {
		s := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(req.InstitutionName), s) &&
			!strings.Contains(strings.ToLower(req.AdminName), s) &&
			!strings.Contains(strings.ToLower(req.AdminEmail), s) {
			return false
		}
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, st := range filter.Statuses {
			if req.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.AdminEmail != "" && !strings.EqualFold(req.AdminEmail, filter.AdminEmail) {
		return false
	}
	if !filter.CreatedFrom.IsZero() && req.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && req.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

func compareRequests(a, b onboarding.Request, field string) int {
	switch field {
	case "institution_name":
		return strings.Compare(strings.ToLower(a.InstitutionName), strings.ToLower(b.InstitutionName))
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	case "updated_at":
		return compareTimes(a.UpdatedAt, b.UpdatedAt)
	default:
		return compareTimes(a.CreatedAt, b.CreatedAt)
	}
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func (repo *requestRepository) UpdateRequestStatus(ctx context.Context, id string, upd onboarding.StatusUpdate) (onboarding.Request, error) {
	if err := ctx.Err(); err != nil {
		return onboarding.Request{}, err
	}
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	req, ok := repo.db.requests[id]
	if !ok {
		return onboarding.Request{}, onboarding.ErrNotFound
	}
	req.Status = upd.Status
	req.ReviewedBy = upd.ReviewedBy
	req.ReviewedAt = upd.ReviewedAt
	req.RejectionReason = upd.RejectionReason
	req.UpdatedAt = time.Now().UTC()
	return *req, nil
}

func (repo *requestRepository) UpdateRequest(ctx context.Context, req onboarding.Request) (onboarding.Request, error) {
	if err := ctx.Err(); err != nil {
		return onboarding.Request{}, err
	}
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.requests[req.ID]
	if !ok {
		return onboarding.Request{}, onboarding.ErrNotFound
	}
	// only the submitted data may change here
	orig.InstitutionName = req.InstitutionName
	orig.AdminName = req.AdminName
	orig.AdminEmail = req.AdminEmail
	orig.Phone = req.Phone
	orig.Address = req.Address
	orig.RequestedStudents = req.RequestedStudents
	orig.RequestedTeachers = req.RequestedTeachers
	orig.Notes = req.Notes
	orig.UpdatedAt = req.UpdatedAt
	return *orig, nil
}
