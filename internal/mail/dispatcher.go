package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mattjoyce/rollcall/internal/report"
)

var (
	// ErrTransport marks a failed or rejected send.
	ErrTransport = errors.New("email transport error")
	// ErrNoArtifact means there is no rendered report to attach.
	ErrNoArtifact = errors.New("report artifact not found")
	// ErrNoRecipients means the dispatcher has nobody to send to.
	ErrNoRecipients = errors.New("no email recipients configured")
)

// DefaultTimeout bounds a single send when none is configured.
const DefaultTimeout = 30 * time.Second

// ArtifactReader loads a rendered report for a date.
type ArtifactReader interface {
	Read(date string) ([]byte, error)
}

// Delivery describes a sent report.
type Delivery struct {
	Date       string   `json:"date"`
	Recipients []string `json:"recipients"`
	Filename   string   `json:"filename"`
	Bytes      int      `json:"bytes"`
	StatusCode int      `json:"status_code"`
}

// Dispatcher emails report artifacts to a fixed recipient list.
type Dispatcher struct {
	transport  Transport
	artifacts  ArtifactReader
	from       string
	recipients []string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewDispatcher wires a dispatcher. A non-positive timeout uses DefaultTimeout.
func NewDispatcher(transport Transport, artifacts ArtifactReader, from string, recipients []string, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		transport:  transport,
		artifacts:  artifacts,
		from:       from,
		recipients: append([]string(nil), recipients...),
		timeout:    timeout,
		logger:     logger.With("component", "mail"),
	}
}

// Subject returns the subject line for a report email.
func Subject(date string) string {
	return "Check-in Report for " + date
}

// Body returns the HTML body for a report email.
func Body(date string) string {
	return fmt.Sprintf("<p>Please find attached the check-in report for %s.</p>", date)
}

// SendReport emails the rendered report for date.
func (d *Dispatcher) SendReport(ctx context.Context, date string) (Delivery, error) {
	logger := d.logger.With("date", date)
	if len(d.recipients) == 0 {
		return Delivery{}, ErrNoRecipients
	}
	if d.transport == nil {
		return Delivery{}, fmt.Errorf("%w: transport not configured", ErrTransport)
	}

	data, err := d.artifacts.Read(date)
	if errors.Is(err, os.ErrNotExist) {
		return Delivery{}, fmt.Errorf("%w: %s", ErrNoArtifact, date)
	}
	if err != nil {
		return Delivery{}, fmt.Errorf("%w: %v", ErrNoArtifact, err)
	}

	msg := Message{
		From:     d.from,
		To:       d.recipients,
		Subject:  Subject(date),
		HTMLBody: Body(date),
		Attachment: &Attachment{
			Filename: report.DownloadName(date),
			MIMEType: "application/pdf",
			Data:     data,
		},
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	status, err := d.transport.Send(sendCtx, msg)
	if err == nil && status >= 300 {
		err = fmt.Errorf("unexpected status %d", status)
	}
	if err != nil {
		logger.Error("failed to send report email", "status", status, "error", err)
		return Delivery{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	logger.Info("report email sent", "recipients", len(d.recipients), "status", status)
	return Delivery{
		Date:       date,
		Recipients: d.recipients,
		Filename:   msg.Attachment.Filename,
		Bytes:      len(data),
		StatusCode: status,
	}, nil
}
