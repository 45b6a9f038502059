package onboarding

import (
	"context"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-onboarding/core"
)

// ErrNotificationFailed wraps every failure to deliver an onboarding email.
var ErrNotificationFailed = errors.New("notification failed")

// GettingStartedChecklist is sent to every new school administrator.
var GettingStartedChecklist = []string{
	"Sign in and change your temporary password",
	"Complete your school profile (logo, address, academic year)",
	"Create your classes and subjects",
	"Invite your teachers",
	"Add your students and invite their parents",
}

type (
	WelcomeData struct {
		SchoolName          string
		AdminName           string
		LoginEmail          string
		TemporaryCredential string
		LoginURL            string
		Checklist           []string
	}

	requestData struct {
		RequestID  string
		SchoolName string
		AdminName  string
		AdminEmail string
		Reason     string
	}

	// Mailer renders and sends the onboarding emails.
	Mailer struct {
		mailSvc  core.EmailService
		loginURL string
	}
)

func NewMailer(mailSvc core.EmailService, conf *core.Config) *Mailer {
	return &Mailer{
		mailSvc:  mailSvc,
		loginURL: conf.FrontendBaseURL + "/login",
	}
}

// SendWelcome sends the login credentials to a new school administrator.
// It blocks until the message is handed over to the email service.
func (m *Mailer) SendWelcome(ctx context.Context, data WelcomeData) error {
	if data.LoginURL == "" {
		data.LoginURL = m.loginURL
	}
	if data.Checklist == nil {
		data.Checklist = GettingStartedChecklist
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: data.AdminName, Address: data.LoginEmail}},
		Subject:      "Welcome! " + data.SchoolName + " is ready",
		TemplateName: "onboarding_welcome",
		TemplateData: data,
	}
	if err := m.mailSvc.Send(ctx, msg); err != nil {
		return errors.Wrapf(ErrNotificationFailed, "sending welcome email to %s: %v", data.LoginEmail, err)
	}
	return nil
}

// SendReceived acknowledges a submitted Request, asynchronously.
func (m *Mailer) SendReceived(req Request) {
	m.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: req.AdminName, Address: req.AdminEmail}},
		Subject:      "We received your onboarding request",
		TemplateName: "onboarding_received",
		TemplateData: newRequestData(req),
	})
}

// SendRejected informs the submitter that their Request was rejected, asynchronously.
func (m *Mailer) SendRejected(req Request) {
	m.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: req.AdminName, Address: req.AdminEmail}},
		Subject:      "Your onboarding request",
		TemplateName: "onboarding_rejected",
		TemplateData: newRequestData(req),
	})
}

func newRequestData(req Request) requestData {
	data := requestData{
		RequestID:  req.ID,
		SchoolName: req.InstitutionName,
		AdminName:  req.AdminName,
		AdminEmail: req.AdminEmail,
	}
	if req.RejectionReason != nil {
		data.Reason = *req.RejectionReason
	}
	return data
}
