package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-onboarding/core"
	"github.com/trezcool/masomo-onboarding/core/onboarding"
	"github.com/trezcool/masomo-onboarding/core/user"
	"github.com/trezcool/masomo-onboarding/fs"
)

// NewValidator returns a validator set up like the app's.
func NewValidator() *validator.Validate {
	validate, _ := NewValidatorWithTranslator()
	return validate
}

// NewValidatorWithTranslator returns a validator set up like the app's, along with the translator of its messages.
func NewValidatorWithTranslator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

func NewMailRenderer(t *testing.T, conf *core.Config) *core.MailRenderer {
	r, err := core.ParseEmailTemplates(appfs.FS, conf)
	if err != nil {
		t.Fatalf("ParseEmailTemplates() failed: %v", err)
	}
	return r
}

func CreateProfile(t *testing.T, svc *user.Service, email, pwd, role string, isActive bool) (user.Identity, user.Profile) {
	ctx := context.Background()
	identity, err := svc.CreateIdentity(ctx, user.NewIdentity{Email: email, Password: pwd, Confirmed: true, Role: role})
	if err != nil {
		t.Fatalf("createProfile() failed: %v", err)
	}
	profile, err := svc.CreateProfile(ctx, user.Profile{
		IdentityID: identity.ID,
		Email:      email,
		Name:       email,
		Role:       role,
		IsActive:   isActive,
	})
	if err != nil {
		t.Fatalf("createProfile() failed: %v", err)
	}
	return identity, profile
}

func CreateRequest(t *testing.T, repo onboarding.Repository, req onboarding.Request) onboarding.Request {
	if req.Status == "" {
		req.Status = onboarding.StatusPending
	}
	req, err := repo.CreateRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("createRequest() failed: %v", err)
	}
	return req
}

type LogEntry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// Logger records what gets logged.
type Logger struct {
	mu      sync.Mutex
	entries []LogEntry
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Msg: msg, Args: args})
}

func (l *Logger) Debug(msg string, args ...interface{})    { l.log("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})     { l.log("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})     { l.log("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{})    { l.log("error", msg, args) }
func (l *Logger) Critical(msg string, args ...interface{}) { l.log("critical", msg, args) }

func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log("fatal", msg, args)
	panic(fmt.Sprintf("fatal: %s", msg))
}

func (l *Logger) Entries(level string) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := make([]LogEntry, 0)
	for _, e := range l.entries {
		if e.Level == level {
			entries = append(entries, e)
		}
	}
	return entries
}
