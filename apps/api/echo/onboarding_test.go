package echoapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/masomo-onboarding/apps/api/echo"
	"github.com/trezcool/masomo-onboarding/core/approval"
	"github.com/trezcool/masomo-onboarding/core/onboarding"
	"github.com/trezcool/masomo-onboarding/core/tenant"
	"github.com/trezcool/masomo-onboarding/core/user"
	testutil "github.com/trezcool/masomo-onboarding/tests"
)

const approvePath = "/v1/onboarding/approve"

var errDBDown = errors.New("db down")

type (
	failingTenants struct {
		tenant.Repository
	}

	busyLocker struct{}
)

func (failingTenants) CreateTenant(context.Context, tenant.Tenant) (tenant.Tenant, error) {
	return tenant.Tenant{}, errDBDown
}

func (busyLocker) Lock(context.Context, string) (func(), error) {
	return nil, approval.ErrLocked
}

func requestPath(id string, suffix ...string) string {
	path := "/v1/onboarding/requests/" + id
	for _, s := range suffix {
		path += "/" + s
	}
	return path
}

func Test_onboardingApi_approve(t *testing.T) {
	app := setup(t)
	_, _, rootToken := app.createProfile(t, "root@masomo.test", user.RoleSuperAdmin)
	_, _, adminToken := app.createProfile(t, "head@school.test", user.RoleAdministrator)

	pending := testutil.CreateRequest(t, app.requests, onboarding.Request{
		InstitutionName: "Sunshine Kids",
		AdminName:       "Jane Doe",
		AdminEmail:      "admin@sunshine.test",
	})
	rejected := testutil.CreateRequest(t, app.requests, onboarding.Request{
		InstitutionName: "Closed School",
		AdminName:       "John Doe",
		AdminEmail:      "admin@closed.test",
		Status:          onboarding.StatusRejected,
	})
	body := func(id string) []byte {
		return marchallObj(t, ApproveRequest{RequestID: id})
	}

	tests := []httpTest{
		{
			name:     "missing token",
			body:     body(pending.ID),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "invalid token",
			body:     body(pending.ID),
			token:    "not-a-jwt",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
		{
			name:     "not a superadmin",
			body:     body(pending.ID),
			token:    adminToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "missing requestId",
			body:     []byte(`{}`),
			token:    rootToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"requestId": "this field is required"}),
		},
		{
			name:     "unknown request",
			body:     body("unknown"),
			token:    rootToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "onboarding request not found"}),
		},
		{
			name:     "rejected request",
			body:     body(rejected.ID),
			token:    rootToken,
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "onboarding request has been rejected"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, approvePath, tt.token, tt.body)
			app.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}

	// nothing was provisioned by failed attempts
	_, err := app.tenants.GetTenantByEmail(context.Background(), pending.AdminEmail)
	assert.Equal(t, tenant.ErrNotFound, errors.Cause(err))

	// Sunshine Kids get their school
	req, rec := newAuthRequest(http.MethodPost, approvePath, rootToken, body(pending.ID))
	app.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res approval.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.TenantID)
	assert.Equal(t, "admin@sunshine.test", res.AdministratorEmail)
	assert.GreaterOrEqual(t, len(res.TemporaryCredential), approval.MinCredentialLength)
	assert.False(t, res.AlreadyProvisioned)
	assert.Equal(t, onboarding.StatusApproved, res.RequestStatus)

	tnt, err := app.tenants.GetTenantByEmail(context.Background(), "admin@sunshine.test")
	require.NoError(t, err)
	assert.Equal(t, res.TenantID, tnt.ID)
	assert.Equal(t, "sunshine-kids", tnt.Slug)
	assert.Equal(t, tenant.PlanTrial, tnt.SubscriptionPlan)

	stored, err := app.requests.GetRequest(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, onboarding.StatusApproved, stored.Status)

	sent := app.mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Welcome! Sunshine Kids is ready", sent[0].Subject)

	// the new administrator signs in with the temporary credential
	req, rec = newRequest(http.MethodPost, "/v1/users/login", marchallObj(t, user.LoginRequest{
		Email:    res.AdministratorEmail,
		Password: res.TemporaryCredential,
	}))
	app.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.NotEmpty(t, login.Token)
	assert.True(t, login.MustChangePassword)

	// approving again does not provision anything
	t.Run("idempotent", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, approval.Result{
				Success:            true,
				TenantID:           res.TenantID,
				AdministratorEmail: "admin@sunshine.test",
				AlreadyProvisioned: true,
				RequestStatus:      onboarding.StatusApproved,
			}),
		}
		req, rec := newAuthRequest(http.MethodPost, approvePath, rootToken, body(pending.ID))
		app.serve(req, rec)
		checkCodeAndData(t, tt, rec)
		assert.Len(t, app.mail.SentMessages(), 1)
	})
}

func Test_onboardingApi_approve_provisioningFailed(t *testing.T) {
	app := setup(t, func(deps *approval.Deps) {
		deps.Tenants = failingTenants{deps.Tenants}
	})
	_, _, rootToken := app.createProfile(t, "root@masomo.test", user.RoleSuperAdmin)
	pending := testutil.CreateRequest(t, app.requests, onboarding.Request{
		InstitutionName: "Sunshine Kids",
		AdminName:       "Jane Doe",
		AdminEmail:      "admin@sunshine.test",
	})

	tt := httpTest{
		wantCode: http.StatusInternalServerError,
		wantData: marchallObj(t, httpErr{Error: "provisioning failed: creating tenant: db down"}),
	}
	req, rec := newAuthRequest(http.MethodPost, approvePath, rootToken, marchallObj(t, ApproveRequest{RequestID: pending.ID}))
	app.serve(req, rec)
	checkCodeAndData(t, tt, rec)

	// the request can be approved again later
	stored, err := app.requests.GetRequest(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, onboarding.StatusPending, stored.Status)
	assert.Nil(t, stored.ReviewedBy)
	assert.Empty(t, app.mail.SentMessages())
	assert.NotEmpty(t, app.logger.Entries("error"))
}

func Test_onboardingApi_approve_inProgress(t *testing.T) {
	app := setup(t, func(deps *approval.Deps) {
		deps.Locker = busyLocker{}
	})
	_, _, rootToken := app.createProfile(t, "root@masomo.test", user.RoleSuperAdmin)
	pending := testutil.CreateRequest(t, app.requests, onboarding.Request{
		InstitutionName: "Sunshine Kids",
		AdminName:       "Jane Doe",
		AdminEmail:      "admin@sunshine.test",
	})

	tt := httpTest{
		wantCode: http.StatusConflict,
		wantData: marchallObj(t, httpErr{Error: "onboarding request approval already in progress"}),
	}
	req, rec := newAuthRequest(http.MethodPost, approvePath, rootToken, marchallObj(t, ApproveRequest{RequestID: pending.ID}))
	app.serve(req, rec)
	checkCodeAndData(t, tt, rec)
}

func Test_onboardingApi_reject(t *testing.T) {
	app := setup(t)
	_, _, rootToken := app.createProfile(t, "root@masomo.test", user.RoleSuperAdmin)
	_, _, adminToken := app.createProfile(t, "head@school.test", user.RoleAdministrator)

	pending := testutil.CreateRequest(t, app.requests, onboarding.Request{
		InstitutionName: "Fake Academy",
		AdminName:       "Jane Doe",
		AdminEmail:      "admin@fake.test",
	})
	approved := testutil.CreateRequest(t, app.requests, onboarding.Request{
		InstitutionName: "Real Academy",
		AdminName:       "John Doe",
		AdminEmail:      "admin@real.test",
		Status:          onboarding.StatusApproved,
	})
	reason := marchallObj(t, RejectRequest{Reason: "  Not a school  "})

	tests := []httpTest{
		{
			name:     "missing token",
			path:     requestPath(pending.ID, "reject"),
			body:     reason,
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "not a superadmin",
			path:     requestPath(pending.ID, "reject"),
			body:     reason,
			token:    adminToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "unknown request",
			path:     requestPath("unknown", "reject"),
			body:     reason,
			token:    rootToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "onboarding request not found"}),
		},
		{
			name:     "approved request",
			path:     requestPath(approved.ID, "reject"),
			body:     reason,
			token:    rootToken,
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "onboarding request has already been approved"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, tt.path, tt.token, tt.body)
			app.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}

	req, rec := newAuthRequest(http.MethodPost, requestPath(pending.ID, "reject"), rootToken, reason)
	app.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := app.requests.GetRequest(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, onboarding.StatusRejected, stored.Status)
	require.NotNil(t, stored.RejectionReason)
	assert.Equal(t, "Not a school", *stored.RejectionReason)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, stored)}, rec)

	sent := app.mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "admin@fake.test", sent[0].To[0].Address)

	t.Run("rejecting again", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, requestPath(pending.ID, "reject"), rootToken, reason)
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, stored)}, rec)
		assert.Len(t, app.mail.SentMessages(), 1)
	})
}

func Test_onboardingApi_submit(t *testing.T) {
	app := setup(t)
	path := "/v1/onboarding/requests"

	students := 120
	valid := marchallObj(t, onboarding.NewRequest{
		InstitutionName:   "  Sunshine Kids ",
		AdminName:         "Jane Doe",
		AdminEmail:        "Admin@Sunshine.test",
		RequestedStudents: &students,
	})

	req, rec := newRequest(http.MethodPost, path, valid)
	app.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created onboarding.Request
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Sunshine Kids", created.InstitutionName)
	assert.Equal(t, "admin@sunshine.test", created.AdminEmail)
	assert.Equal(t, onboarding.StatusPending, created.Status)
	require.NotNil(t, created.RequestedStudents)
	assert.Equal(t, students, *created.RequestedStudents)

	sent := app.mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "We received your onboarding request", sent[0].Subject)

	tests := []httpTest{
		{
			name:     "invalid data",
			body:     marchallObj(t, onboarding.NewRequest{InstitutionName: "   ", AdminEmail: "not-an-email"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"institution_name": "this field is required",
				"admin_name":       "this field is required",
				"admin_email":      "admin_email must be a valid email address",
			}),
		},
		{
			name:     "pending request exists",
			body:     valid,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"admin_email": onboarding.ErrPendingExists.Error(),
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, path, tt.body)
			app.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_onboardingApi_query(t *testing.T) {
	app := setup(t)
	_, _, rootToken := app.createProfile(t, "root@masomo.test", user.RoleSuperAdmin)
	_, _, adminToken := app.createProfile(t, "head@school.test", user.RoleAdministrator)

	path := func(params url.Values) string {
		if len(params) == 0 {
			return "/v1/onboarding/requests"
		}
		return "/v1/onboarding/requests?" + params.Encode()
	}

	now := time.Now().UTC().Truncate(time.Second)
	sunshine := testutil.CreateRequest(t, app.requests, onboarding.Request{
		InstitutionName: "Sunshine Kids",
		AdminName:       "Jane Doe",
		AdminEmail:      "admin@sunshine.test",
		CreatedAt:       now.Add(-48 * time.Hour),
	})
	academy := testutil.CreateRequest(t, app.requests, onboarding.Request{
		InstitutionName: "Academy of Kinshasa",
		AdminName:       "John Doe",
		AdminEmail:      "admin@academy.test",
		Status:          onboarding.StatusApproved,
		CreatedAt:       now.Add(-24 * time.Hour),
	})
	lycee := testutil.CreateRequest(t, app.requests, onboarding.Request{
		InstitutionName: "Lycée Wima",
		AdminName:       "Marie Kabila",
		AdminEmail:      "direction@wima.test",
		Status:          onboarding.StatusRejected,
		CreatedAt:       now,
	})

	tests := []httpTest{
		{
			name:     "missing token",
			path:     path(nil),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "not a superadmin",
			path:     path(nil),
			token:    adminToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "newest first",
			path:     path(nil),
			token:    rootToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t, lycee, academy, sunshine),
		},
		{
			name:     "by status",
			path:     path(url.Values{"status": {"pending,approved"}}),
			token:    rootToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t, academy, sunshine),
		},
		{
			name:     "unknown status",
			path:     path(url.Values{"status": {"archived"}}),
			token:    rootToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t),
		},
		{
			name:     "search",
			path:     path(url.Values{"search": {"doe"}, "ordering": {"institution_name"}}),
			token:    rootToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t, academy, sunshine),
		},
		{
			name:     "created range",
			path:     path(url.Values{"created_from": {now.Add(-36 * time.Hour).Format(time.RFC3339)}, "created_to": {now.Add(-time.Hour).Format(time.RFC3339)}}),
			token:    rootToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t, academy),
		},
		{
			name:     "invalid date",
			path:     path(url.Values{"created_from": {"yesterday"}}),
			token:    rootToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"created_from": "invalid date"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_onboardingApi_retrieveAndUpdate(t *testing.T) {
	app := setup(t)
	_, _, rootToken := app.createProfile(t, "root@masomo.test", user.RoleSuperAdmin)

	pending := testutil.CreateRequest(t, app.requests, onboarding.Request{
		InstitutionName: "Sunshine Kids",
		AdminName:       "Jane Doe",
		AdminEmail:      "admin@sunshine.test",
	})
	approved := testutil.CreateRequest(t, app.requests, onboarding.Request{
		InstitutionName: "Academy of Kinshasa",
		AdminName:       "John Doe",
		AdminEmail:      "admin@academy.test",
		Status:          onboarding.StatusApproved,
	})

	t.Run("retrieve", func(t *testing.T) {
		tests := []httpTest{
			{
				name:     "found",
				path:     requestPath(pending.ID),
				wantCode: http.StatusOK,
				wantData: marchallObj(t, pending),
			},
			{
				name:     "not found",
				path:     requestPath("unknown"),
				wantCode: http.StatusNotFound,
				wantData: marchallObj(t, httpErr{Error: "onboarding request not found"}),
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req, rec := newAuthRequest(http.MethodGet, tt.path, rootToken)
				app.serve(req, rec)
				checkCodeAndData(t, tt, rec)
			})
		}
	})

	t.Run("update", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, requestPath(pending.ID), rootToken,
			[]byte(`{"institution_name": "Sunshine Kids Academy", "phone": "+243 81 000 0000"}`))
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		stored, err := app.requests.GetRequest(context.Background(), pending.ID)
		require.NoError(t, err)
		assert.Equal(t, "Sunshine Kids Academy", stored.InstitutionName)
		assert.Equal(t, "admin@sunshine.test", stored.AdminEmail)
		require.NotNil(t, stored.Phone)
		assert.Equal(t, "+243 81 000 0000", *stored.Phone)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, stored)}, rec)

		req, rec = newAuthRequest(http.MethodPut, requestPath(approved.ID), rootToken, []byte(`{"institution_name": "Renamed"}`))
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "onboarding request has already been reviewed"}),
		}, rec)
	})
}
