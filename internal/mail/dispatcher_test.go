package mail_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/rollcall/internal/mail"
	"github.com/mattjoyce/rollcall/internal/mail/mocks"
	"github.com/mattjoyce/rollcall/internal/report"
)

func newArtifacts(t *testing.T) *report.Artifacts {
	t.Helper()
	a, err := report.NewArtifacts(filepath.Join(t.TempDir(), "reports"))
	require.NoError(t, err)
	return a
}

func TestSendReport(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)
	arts := newArtifacts(t)
	_, err := arts.Publish("2024-01-10", []byte("%PDF-1.3 report"))
	require.NoError(t, err)

	transport.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, msg mail.Message) (int, error) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline, "send must be bounded by a timeout")
		assert.Equal(t, "reports@example.com", msg.From)
		assert.Equal(t, []string{"a@example.com", "b@example.com"}, msg.To)
		assert.Equal(t, "Check-in Report for 2024-01-10", msg.Subject)
		assert.Equal(t, "<p>Please find attached the check-in report for 2024-01-10.</p>", msg.HTMLBody)
		require.NotNil(t, msg.Attachment)
		assert.Equal(t, "report_2024-01-10.pdf", msg.Attachment.Filename)
		assert.Equal(t, "application/pdf", msg.Attachment.MIMEType)
		assert.Equal(t, "%PDF-1.3 report", string(msg.Attachment.Data))
		return 202, nil
	})

	d := mail.NewDispatcher(transport, arts, "reports@example.com", []string{"a@example.com", "b@example.com"}, time.Second, nil)
	got, err := d.SendReport(context.Background(), "2024-01-10")
	require.NoError(t, err)
	assert.Equal(t, 202, got.StatusCode)
	assert.Equal(t, "report_2024-01-10.pdf", got.Filename)
	assert.Equal(t, 15, got.Bytes)
}

func TestSendReportMissingArtifact(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)

	d := mail.NewDispatcher(transport, newArtifacts(t), "from@example.com", []string{"a@example.com"}, 0, nil)
	_, err := d.SendReport(context.Background(), "2024-01-10")
	assert.ErrorIs(t, err, mail.ErrNoArtifact)
}

func TestSendReportNoRecipients(t *testing.T) {
	ctrl := gomock.NewController(t)
	d := mail.NewDispatcher(mocks.NewMockTransport(ctrl), newArtifacts(t), "from@example.com", nil, 0, nil)
	_, err := d.SendReport(context.Background(), "2024-01-10")
	assert.ErrorIs(t, err, mail.ErrNoRecipients)
}

func TestSendReportTransportFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		err    error
	}{
		{name: "error", status: 0, err: errors.New("connection reset")},
		{name: "rejected", status: 401, err: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			transport := mocks.NewMockTransport(ctrl)
			arts := newArtifacts(t)
			_, err := arts.Publish("2024-01-10", []byte("%PDF-"))
			require.NoError(t, err)

			transport.EXPECT().Send(gomock.Any(), gomock.Any()).Return(tt.status, tt.err)

			d := mail.NewDispatcher(transport, arts, "from@example.com", []string{"a@example.com"}, time.Second, nil)
			_, err = d.SendReport(context.Background(), "2024-01-10")
			assert.ErrorIs(t, err, mail.ErrTransport)
		})
	}
}

func TestSendReportTimesOut(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)
	arts := newArtifacts(t)
	_, err := arts.Publish("2024-01-10", []byte("%PDF-"))
	require.NoError(t, err)

	transport.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ mail.Message) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	d := mail.NewDispatcher(transport, arts, "from@example.com", []string{"a@example.com"}, 20*time.Millisecond, nil)
	_, err = d.SendReport(context.Background(), "2024-01-10")
	assert.ErrorIs(t, err, mail.ErrTransport)
}

func TestNewSendGridRequiresKey(t *testing.T) {
	_, err := mail.NewSendGrid("")
	assert.Error(t, err)

	sg, err := mail.NewSendGrid("SG.test")
	require.NoError(t, err)
	assert.NotNil(t, sg)
}
