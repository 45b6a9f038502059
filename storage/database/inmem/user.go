package inmemdb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/masomo-onboarding/core/user"
)

type (
	identityRepository struct {
		db *DB
	}

	profileRepository struct {
		db *DB
	}
)

var (
	_ user.IdentityRepository = (*identityRepository)(nil)
	_ user.ProfileRepository  = (*profileRepository)(nil)
)

func NewIdentityRepository(db *DB) user.IdentityRepository {
	return &identityRepository{db: db}
}

func NewProfileRepository(db *DB) user.ProfileRepository {
	return &profileRepository{db: db}
}

func (repo *identityRepository) emailTaken(email, excludedID string) bool {
	for _, i := range repo.db.identity {
		if i.ID != excludedID && strings.EqualFold(i.Email, email) {
			return true
		}
	}
	return false
}

func (repo *identityRepository) CreateIdentity(ctx context.Context, identity user.Identity) (user.Identity, error) {
	if err := ctx.Err(); err != nil {
		return user.Identity{}, err
	}
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.emailTaken(identity.Email, "") {
		return user.Identity{}, user.ErrEmailExists
	}
	identity.ID = uuid.New().String()
	repo.db.identity[identity.ID] = &identity
	return identity, nil
}

func (repo *identityRepository) GetIdentity(ctx context.Context, filter user.GetFilter) (user.Identity, error) {
	if err := ctx.Err(); err != nil {
		return user.Identity{}, err
	}
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, i := range repo.db.identity {
		if (filter.ID == "" || i.ID == filter.ID) && (filter.Email == "" || strings.EqualFold(i.Email, filter.Email)) {
			return *i, nil
		}
	}
	return user.Identity{}, user.ErrNotFound
}

func (repo *identityRepository) UpdateIdentity(ctx context.Context, identity user.Identity) (user.Identity, error) {
	if err := ctx.Err(); err != nil {
		return user.Identity{}, err
	}
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.identity[identity.ID]; !ok {
		return user.Identity{}, user.ErrNotFound
	}
	if repo.emailTaken(identity.Email, identity.ID) {
		return user.Identity{}, user.ErrEmailExists
	}
	repo.db.identity[identity.ID] = &identity
	return identity, nil
}

func (repo *identityRepository) DeleteIdentity(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	delete(repo.db.identity, id)
	// ON DELETE CASCADE
	for pid, p := range repo.db.profiles {
		if p.IdentityID == id {
			delete(repo.db.profiles, pid)
		}
	}
	return nil
}

func (repo *profileRepository) CreateProfile(ctx context.Context, profile user.Profile) (user.Profile, error) {
	if err := ctx.Err(); err != nil {
		return user.Profile{}, err
	}
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.identity[profile.IdentityID]; !ok {
		return user.Profile{}, user.ErrNotFound
	}
	for _, p := range repo.db.profiles {
		if p.IdentityID == profile.IdentityID {
			return user.Profile{}, user.ErrProfileExists
		}
	}
	profile.ID = uuid.New().String()
	repo.db.profiles[profile.ID] = &profile
	return profile, nil
}

func (repo *profileRepository) GetProfile(ctx context.Context, filter user.ProfileFilter) (user.Profile, error) {
	if err := ctx.Err(); err != nil {
		return user.Profile{}, err
	}
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, p := range repo.db.profiles {
		if (filter.ID == "" || p.ID == filter.ID) && (filter.IdentityID == "" || p.IdentityID == filter.IdentityID) {
			return *p, nil
		}
	}
	return user.Profile{}, user.ErrProfileNotFound
}

func (repo *profileRepository) UpdateProfile(ctx context.Context, profile user.Profile) (user.Profile, error) {
	if err := ctx.Err(); err != nil {
		return user.Profile{}, err
	}
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.profiles[profile.ID]; !ok {
		return user.Profile{}, user.ErrProfileNotFound
	}
	repo.db.profiles[profile.ID] = &profile
	return profile, nil
}

func (repo *profileRepository) DeleteProfile(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	delete(repo.db.profiles, id)
	return nil
}
