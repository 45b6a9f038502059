package emailsvc

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-onboarding/core"
	testutil "github.com/trezcool/masomo-onboarding/tests"
)

type sgPayload struct {
	Personalizations []struct {
		To []struct {
			Email string `json:"email"`
		} `json:"to"`
		Subject string `json:"subject"`
	} `json:"personalizations"`
	Content []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"content"`
}

func setupSendgrid(t *testing.T, handler http.HandlerFunc) *SendgridService {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	origHost := host
	host = srv.URL
	t.Cleanup(func() { host = origHost })

	conf := core.NewTestConfig()
	conf.SendgridApiKey = "sg-key"
	return NewSendgridService(testutil.NewMailRenderer(t, conf), new(testutil.Logger), conf)
}

func newMessage() *core.EmailMessage {
	return &core.EmailMessage{
		To:      []mail.Address{{Name: "Jane Doe", Address: "admin@sunshine.test"}},
		Subject: "Welcome",
		BodyStr: "Your school is ready.",
	}
}

func TestSendgridService_Send(t *testing.T) {
	var (
		gotAuth string
		payload sgPayload
	)
	svc := setupSendgrid(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := ioutil.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		w.WriteHeader(http.StatusAccepted)
	})

	require.NoError(t, svc.Send(context.Background(), newMessage()))
	assert.Equal(t, "Bearer sg-key", gotAuth)
	require.Len(t, payload.Personalizations, 1)
	assert.Equal(t, "admin@sunshine.test", payload.Personalizations[0].To[0].Email)
	assert.Contains(t, payload.Personalizations[0].Subject, "Welcome")
	require.NotEmpty(t, payload.Content)
	assert.Equal(t, "Your school is ready.", payload.Content[0].Value)
}

func TestSendgridService_SendRejected(t *testing.T) {
	svc := setupSendgrid(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad from"}]}`))
	})

	err := svc.Send(context.Background(), newMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sendgrid status: 400")
}

func TestSendgridService_SendHonorsDeadline(t *testing.T) {
	release := make(chan struct{})
	svc := setupSendgrid(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := svc.Send(ctx, newMessage())
	require.Error(t, err)
	assert.Less(t, int64(time.Since(start)), int64(5*time.Second))
	assert.Contains(t, err.Error(), "calling sendgrid")
}
