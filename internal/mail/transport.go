// Package mail delivers rendered reports by email.
package mail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

//go:generate mockgen -destination=mocks/mock_transport.go -package=mocks github.com/mattjoyce/rollcall/internal/mail Transport

// Attachment is a file sent with a message.
type Attachment struct {
	Filename string
	MIMEType string
	Data     []byte
}

// Message is one outbound email.
type Message struct {
	From       string
	To         []string
	Subject    string
	HTMLBody   string
	Attachment *Attachment
}

// Transport sends a message and returns the provider status code.
type Transport interface {
	Send(ctx context.Context, msg Message) (int, error)
}

// SendGrid is a Transport backed by the SendGrid v3 API.
type SendGrid struct {
	client *sendgrid.Client
}

// NewSendGrid returns a SendGrid transport authenticated with apiKey.
func NewSendGrid(apiKey string) (*SendGrid, error) {
	if apiKey == "" {
		return nil, errors.New("sendgrid api key is empty")
	}
	return &SendGrid{client: sendgrid.NewSendClient(apiKey)}, nil
}

// Send implements Transport.
func (s *SendGrid) Send(ctx context.Context, msg Message) (int, error) {
	resp, err := s.client.SendWithContext(ctx, buildV3(msg))
	if err != nil {
		return 0, err
	}
	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("sendgrid responded %d: %s", resp.StatusCode, resp.Body)
	}
	return resp.StatusCode, nil
}

func buildV3(msg Message) *sgmail.SGMailV3 {
	m := sgmail.NewV3Mail()
	m.SetFrom(sgmail.NewEmail("", msg.From))
	m.Subject = msg.Subject

	p := sgmail.NewPersonalization()
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail("", to))
	}
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/html", msg.HTMLBody))

	if a := msg.Attachment; a != nil {
		att := sgmail.NewAttachment()
		att.SetContent(base64.StdEncoding.EncodeToString(a.Data))
		att.SetType(a.MIMEType)
		att.SetFilename(a.Filename)
		att.SetDisposition("attachment")
		m.AddAttachment(att)
	}
	return m
}
