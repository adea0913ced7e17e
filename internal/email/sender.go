// Package email delivers transactional mail over SMTP.
package email

import (
	"context"
)

// Sender delivers reminder emails to clients.
type Sender interface {
	SendReminderEmail(ctx context.Context, toEmail, clientName, body string) error
}

var _ Sender = (*SMTPSender)(nil)
