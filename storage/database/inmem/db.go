package inmemdb

import (
	"sync"

	"github.com/trezcool/masomo-onboarding/core/onboarding"
	"github.com/trezcool/masomo-onboarding/core/tenant"
	"github.com/trezcool/masomo-onboarding/core/user"
)

type (
	// DB is an in-memory database with the same unique constraints and cascades as the SQL schema.
	// Its repositories are safe for concurrent use.
	DB struct {
		mu       sync.RWMutex
		requests map[string]*onboarding.Request
		tenants  map[string]*tenant.Tenant
		identity map[string]*user.Identity
		profiles map[string]*user.Profile
	}
)

func Open() *DB {
	return &DB{
		requests: make(map[string]*onboarding.Request),
		tenants:  make(map[string]*tenant.Tenant),
		identity: make(map[string]*user.Identity),
		profiles: make(map[string]*user.Profile),
	}
}
