// Package email delivers transactional mail through the Brevo HTTP API.
package email

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"
)

const (
	DefaultEndpoint = "https://api.brevo.com/v3/smtp/email"
	senderName      = "TaskForge"
	requestTimeout  = 15 * time.Second

	TemplateProjectInvite = "project_invite"
)

//go:embed templates/*.html
var templatesFS embed.FS

var ErrSend = errors.New("email send failed")

// Sender delivers one rendered template to a single recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, templateName string, data any) error
}

// InviteData feeds the project_invite template.
type InviteData struct {
	InviterName string
	ProjectName string
	AcceptURL   string
}

type BrevoSender struct {
	apiKey    string
	from      string
	endpoint  string
	client    *http.Client
	templates *template.Template
}

type BrevoOption func(*BrevoSender)

func WithEndpoint(url string) BrevoOption {
	return func(s *BrevoSender) { s.endpoint = url }
}

func WithHTTPClient(c *http.Client) BrevoOption {
	return func(s *BrevoSender) { s.client = c }
}

func NewBrevoSender(apiKey, from string, opts ...BrevoOption) (*BrevoSender, error) {
	tpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &BrevoSender{
		apiKey:    apiKey,
		from:      from,
		endpoint:  DefaultEndpoint,
		client:    &http.Client{Timeout: requestTimeout},
		templates: tpl,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type address struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type payload struct {
	Sender      address   `json:"sender"`
	To          []address `json:"to"`
	Subject     string    `json:"subject"`
	HTMLContent string    `json:"htmlContent"`
}

func (s *BrevoSender) Send(ctx context.Context, to, subject, templateName string, data any) error {
	var html bytes.Buffer
	if err := s.templates.ExecuteTemplate(&html, templateName+".html", data); err != nil {
		return fmt.Errorf("render %s: %w", templateName, err)
	}

	body, err := json.Marshal(payload{
		Sender:      address{Name: senderName, Email: s.from},
		To:          []address{{Email: to}},
		Subject:     subject,
		HTMLContent: html.String(),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrSend, resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

// Nop is used when no API key is configured.
type Nop struct{}

func (Nop) Send(context.Context, string, string, string, any) error { return nil }
