package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/masomo-onboarding/apps/api/echo"
	"github.com/trezcool/masomo-onboarding/core"
	"github.com/trezcool/masomo-onboarding/core/approval"
	"github.com/trezcool/masomo-onboarding/core/onboarding"
	"github.com/trezcool/masomo-onboarding/core/tenant"
	"github.com/trezcool/masomo-onboarding/core/user"
	emailsvc "github.com/trezcool/masomo-onboarding/services/email"
	locksvc "github.com/trezcool/masomo-onboarding/services/lock"
	metricsvc "github.com/trezcool/masomo-onboarding/services/metrics"
	inmemdb "github.com/trezcool/masomo-onboarding/storage/database/inmem"
	testutil "github.com/trezcool/masomo-onboarding/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	conf     *core.Config
	server   *Server
	requests onboarding.Repository
	tenants  tenant.Repository
	users    *user.Service
	mail     *emailsvc.ConsoleServiceMock
	logger   *testutil.Logger
}

func setup(t *testing.T, opts ...func(deps *approval.Deps)) *testApp {
	conf := core.NewTestConfig()
	db := inmemdb.Open()
	validate, translator := testutil.NewValidatorWithTranslator()
	reg := prometheus.NewRegistry()

	app := &testApp{
		conf:     conf,
		requests: inmemdb.NewRequestRepository(db),
		tenants:  inmemdb.NewTenantRepository(db),
		users:    user.NewService(inmemdb.NewIdentityRepository(db), inmemdb.NewProfileRepository(db), validate),
		mail:     emailsvc.NewConsoleServiceMock(testutil.NewMailRenderer(t, conf)),
		logger:   new(testutil.Logger),
	}
	mailer := onboarding.NewMailer(app.mail, conf)

	deps := approval.Deps{
		Requests:   app.requests,
		Tenants:    app.tenants,
		Identities: app.users,
		Profiles:   app.users,
		Notifier:   mailer,
		Locker:     locksvc.NewLocalLocker(),
		Metrics:    metricsvc.New(reg),
		Logger:     app.logger,
		Conf:       conf,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	app.server = NewServer(conf, app.logger, Deps{
		UserSvc:       app.users,
		OnboardingSvc: onboarding.NewService(app.requests, mailer, validate),
		Orchestrator:  approval.NewOrchestrator(deps),
		Validate:      validate,
		Translator:    translator,
		Gatherer:      reg,
	})
	return app
}

func (app *testApp) serve(req *http.Request, rec *httptest.ResponseRecorder) {
	app.server.ServeHTTP(rec, req)
}

// createProfile creates an active identity & profile and returns a token for it.
func (app *testApp) createProfile(t *testing.T, email, role string) (user.Identity, user.Profile, string) {
	identity, profile := testutil.CreateProfile(t, app.users, email, "Sup3r$ecret!", role, true)
	return identity, profile, getToken(t, app.conf, identity, profile)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, conf *core.Config, identity user.Identity, profile user.Profile) string {
	token, err := GenerateToken(conf, NewClaims(conf, identity, profile))
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func TestHome(t *testing.T) {
	app := setup(t)

	req, rec := newRequest(http.MethodGet, "/")
	app.serve(req, rec)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Masomo API!", rec.Body.String())
}

func TestMetrics(t *testing.T) {
	app := setup(t)
	_, _, token := app.createProfile(t, "root@masomo.test", user.RoleSuperAdmin)

	// record one approval
	req, rec := newAuthRequest(http.MethodPost, "/v1/onboarding/approve", token, []byte(`{"requestId": "unknown"}`))
	app.serve(req, rec)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req, rec = newRequest(http.MethodGet, "/metrics")
	app.serve(req, rec)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `masomo_onboarding_approvals_total{outcome="not_found"} 1`), body)
	assert.True(t, strings.Contains(body, "masomo_onboarding_approval_duration_seconds"), body)
}
