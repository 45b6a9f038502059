package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-onboarding/core"
	"github.com/trezcool/masomo-onboarding/core/approval"
	"github.com/trezcool/masomo-onboarding/core/onboarding"
	"github.com/trezcool/masomo-onboarding/core/user"
	emailsvc "github.com/trezcool/masomo-onboarding/services/email"
	inmemdb "github.com/trezcool/masomo-onboarding/storage/database/inmem"
	testutil "github.com/trezcool/masomo-onboarding/tests"
)

type testEnv struct {
	cli      *commandLine
	out      *bytes.Buffer
	users    *user.Service
	requests onboarding.Repository
	mail     *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T) *testEnv {
	conf := core.NewTestConfig()
	db := inmemdb.Open()
	validate := testutil.NewValidator()

	env := &testEnv{
		out:      new(bytes.Buffer),
		users:    user.NewService(inmemdb.NewIdentityRepository(db), inmemdb.NewProfileRepository(db), validate),
		requests: inmemdb.NewRequestRepository(db),
		mail:     emailsvc.NewConsoleServiceMock(testutil.NewMailRenderer(t, conf)),
	}
	env.cli = &commandLine{
		usrSvc: env.users,
		orch: approval.NewOrchestrator(approval.Deps{
			Requests:   env.requests,
			Tenants:    inmemdb.NewTenantRepository(db),
			Identities: env.users,
			Profiles:   env.users,
			Notifier:   onboarding.NewMailer(env.mail, conf),
			Logger:     new(testutil.Logger),
			Conf:       conf,
		}),
		validate: validate,
		out:      env.out,
	}
	return env
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		if errors.Cause(err) != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err == nil || err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
		}
	case err != nil:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

func Test_commandLine_migrate(t *testing.T) {
	env := setup(t)

	var ran []string
	gooseRunFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		ran = append(ran, strings.TrimSpace(command+" "+strings.Join(args, " ")))
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, env.cli.run(args))
		})
	}
	assert.Equal(t, []string{"up", "up-to 2", "down-to 1", "status"}, ran)
}

func Test_commandLine_createSuperAdmin(t *testing.T) {
	env := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no email", args: []string{"createsuperadmin"}, wantErr: errHelp},
		{name: "no password", args: []string{"createsuperadmin", "-email", "root@masomo.test"}, wantErr: errHelp},
		{name: "weak password", args: []string{"createsuperadmin", "-email", "root@masomo.test"}, extra: "password"},
		{name: "created", args: []string{"createsuperadmin", "-email", "Root@Masomo.test", "-name", "Root"}, extra: "Sup3r$ecret!"},
		{name: "updated", args: []string{"createsuperadmin", "-email", "root@masomo.test"}, extra: "An0ther$ecret!"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := env.cli.run(args)
			if tt.name == "weak password" {
				assert.Error(t, err)
				return
			}
			tt.check(t, err)
		})
	}

	identity, profile, err := env.users.Authenticate(context.Background(), "root@masomo.test", "An0ther$ecret!")
	require.NoError(t, err)
	assert.Equal(t, user.RoleSuperAdmin, identity.Role)
	assert.True(t, profile.IsSuperAdmin())
	assert.True(t, profile.IsActive)
	assert.Equal(t, "Root", profile.Name)
}

func Test_commandLine_resetPassword(t *testing.T) {
	env := setup(t)
	identity, _ := testutil.CreateProfile(t, env.users, "head@school.test", "Sup3r$ecret!", user.RoleAdministrator, true)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "head@school.test"}, wantErr: errHelp},
		{name: "identity not found", args: []string{"resetpassword", "-email", "nobody@school.test"}, extra: "N3w-Passw0rd!", wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", "Head@School.test"}, extra: "N3w-Passw0rd!"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, env.cli.run(args))
		})
	}

	refreshed, err := env.users.GetIdentityByID(context.Background(), identity.ID)
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("N3w-Passw0rd!"))
}

func Test_commandLine_review(t *testing.T) {
	env := setup(t)
	testutil.CreateProfile(t, env.users, "root@masomo.test", "Sup3r$ecret!", user.RoleSuperAdmin, true)
	testutil.CreateProfile(t, env.users, "head@school.test", "Sup3r$ecret!", user.RoleAdministrator, true)

	sunshine := testutil.CreateRequest(t, env.requests, onboarding.Request{
		InstitutionName: "Sunshine Kids",
		AdminName:       "Jane Doe",
		AdminEmail:      "admin@sunshine.test",
	})
	fake := testutil.CreateRequest(t, env.requests, onboarding.Request{
		InstitutionName: "Fake Academy",
		AdminName:       "John Doe",
		AdminEmail:      "admin@fake.test",
	})

	tests := []cliTest{
		{name: "approve: no args", args: []string{"approve"}, wantErr: errHelp},
		{name: "approve: no reviewer", args: []string{"approve", "-request", sunshine.ID}, wantErr: errHelp},
		{name: "approve: unknown reviewer", args: []string{"approve", "-request", sunshine.ID, "-as", "nobody@masomo.test"}, wantErr: user.ErrNotFound},
		{name: "approve: not a superadmin", args: []string{"approve", "-request", sunshine.ID, "-as", "head@school.test"}, wantErr: approval.ErrForbidden},
		{name: "approve: unknown request", args: []string{"approve", "-request", "unknown", "-as", "root@masomo.test"}, wantErr: approval.ErrNotFound},
		{name: "approve", args: []string{"approve", "-request", sunshine.ID, "-as", "root@masomo.test"}},
		{name: "reject: no args", args: []string{"reject"}, wantErr: errHelp},
		{name: "reject: approved request", args: []string{"reject", "-request", sunshine.ID, "-as", "root@masomo.test"}, wantErr: approval.ErrRequestApproved},
		{name: "reject", args: []string{"reject", "-request", fake.ID, "-as", "root@masomo.test", "-reason", "Not a school"}},
		{name: "approve: rejected request", args: []string{"approve", "-request", fake.ID, "-as", "root@masomo.test"}, wantErr: approval.ErrRequestRejected},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, env.cli.run(args))
		})
	}

	out := env.out.String()
	assert.Contains(t, out, "Request "+sunshine.ID+" approved")
	assert.Contains(t, out, "Administrator: admin@sunshine.test")
	assert.Contains(t, out, "Temporary password: ")
	assert.Contains(t, out, "Request "+fake.ID+" of Fake Academy is rejected.")

	stored, err := env.requests.GetRequest(context.Background(), fake.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.RejectionReason)
	assert.Equal(t, "Not a school", *stored.RejectionReason)

	// welcome + rejection
	assert.Len(t, env.mail.SentMessages(), 2)

	// approving again reports the existing tenant
	env.out.Reset()
	require.NoError(t, env.cli.run([]string{"admin", "approve", "-request", sunshine.ID, "-as", "root@masomo.test"}))
	assert.Contains(t, env.out.String(), "was already provisioned")
}
