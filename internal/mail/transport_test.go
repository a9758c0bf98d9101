package mail

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildV3(t *testing.T) {
	m := buildV3(Message{
		From:     "reports@example.com",
		To:       []string{"a@example.com", "b@example.com"},
		Subject:  Subject("2024-01-10"),
		HTMLBody: Body("2024-01-10"),
		Attachment: &Attachment{
			Filename: "report_2024-01-10.pdf",
			MIMEType: "application/pdf",
			Data:     []byte("%PDF-"),
		},
	})

	require.NotNil(t, m.From)
	assert.Equal(t, "reports@example.com", m.From.Address)
	assert.Equal(t, "Check-in Report for 2024-01-10", m.Subject)
	require.Len(t, m.Personalizations, 1)
	assert.Len(t, m.Personalizations[0].To, 2)
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/html", m.Content[0].Type)
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, "report_2024-01-10.pdf", m.Attachments[0].Filename)
	assert.Equal(t, "attachment", m.Attachments[0].Disposition)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF-")), m.Attachments[0].Content)
}

func TestBuildV3WithoutAttachment(t *testing.T) {
	m := buildV3(Message{From: "a@example.com", To: []string{"b@example.com"}, Subject: "s", HTMLBody: "<p>x</p>"})
	assert.Empty(t, m.Attachments)
}
