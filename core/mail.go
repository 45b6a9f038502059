package core

import (
	"bytes"
	"context"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

const emailTemplatesDir = "assets/templates/email"

type (
	tmplCacheEntry map[string]interface{}    // {ext: *Template}
	tmplCache      map[string]tmplCacheEntry // {name: {tmplCacheEntry}}

	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently; failures are only logged.
		SendMessages(messages ...*EmailMessage)
		// Send sends a single message synchronously and reports failure.
		Send(ctx context.Context, msg *EmailMessage) error
	}

	// MailRenderer renders EmailMessage templates parsed from `assets/templates/email`.
	MailRenderer struct {
		templates       tmplCache
		appName         string
		frontendBaseURL string
	}
)

// ParseEmailTemplates parses all `.txt` and `.gohtml` email templates found in fsys.
// Files starting with "_" are layouts shared by every template of the same extension.
func ParseEmailTemplates(fsys fs.FS, conf *Config) (*MailRenderer, error) {
	r := &MailRenderer{
		templates:       make(tmplCache),
		appName:         conf.AppName,
		frontendBaseURL: conf.FrontendBaseURL,
	}

	fps, err := fs.Glob(fsys, path.Join(emailTemplatesDir, "*"))
	if err != nil {
		return nil, errors.Wrap(err, "listing email templates")
	}

	for _, fp := range fps {
		fname := path.Base(fp)
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		entry, ok := r.templates[name]
		if !ok {
			entry = make(tmplCacheEntry)
			r.templates[name] = entry
		}
		base := path.Join(emailTemplatesDir, "_base"+ext)

		if ext == ".txt" {
			tmpl, err := texttmpl.ParseFS(fsys, base, fp)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing %s", fp)
			}
			entry[ext] = tmpl.Option("missingkey=error")
		} else {
			tmpl, err := htmltmpl.ParseFS(fsys, base, fp)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing %s", fp)
			}
			entry[ext] = tmpl.Option("missingkey=error")
		}
	}
	return r, nil
}

// HasTemplate reports whether a template named `name` was parsed.
func (r *MailRenderer) HasTemplate(name string) bool {
	_, ok := r.templates[name]
	return ok
}

func (r *MailRenderer) contextData(m *EmailMessage) ContextData {
	return ContextData{
		AppName:         r.appName,
		FrontendBaseURL: r.frontendBaseURL,
		Data:            m.TemplateData,
	}
}

func (r *MailRenderer) getTemplate(m *EmailMessage, ext string) (interface{}, bool) {
	cache, ok := r.templates[m.TemplateName]
	if !ok {
		return nil, ok
	}
	tmplEntry, ok := cache[ext]
	return tmplEntry, ok
}

func (r *MailRenderer) renderText(m *EmailMessage) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	} else if m.TemplateName == "" {
		return nil
	}

	tmplEntry, ok := r.getTemplate(m, ".txt")
	if !ok {
		return nil
	}
	tmpl, ok := tmplEntry.(*texttmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buff, "_base.txt", r.contextData(m)); err != nil {
		return err
	}
	m.TextContent = buff.String()
	return nil
}

func (r *MailRenderer) renderHTML(m *EmailMessage) error {
	if m.TemplateName == "" {
		return nil
	}

	tmplEntry, ok := r.getTemplate(m, ".gohtml")
	if !ok {
		return nil
	}
	tmpl, ok := tmplEntry.(*htmltmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buff, "_base.gohtml", r.contextData(m)); err != nil {
		return err
	}
	m.HTMLContent = buff.String()
	return nil
}

// Render fills m.TextContent and m.HTMLContent.
func (r *MailRenderer) Render(m *EmailMessage) error {
	if m.TemplateName != "" && !r.HasTemplate(m.TemplateName) {
		return errors.Errorf("email template %q not found", m.TemplateName)
	}
	if err := r.renderText(m); err != nil {
		return errors.Wrap(err, "rendering text content")
	}
	return errors.Wrap(r.renderHTML(m), "rendering html content")
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }
