// Package delivery routes rendered reminders to the client over WhatsApp,
// falling back to email.
package delivery

import (
	"context"
	"errors"
	"strings"
)

const (
	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"
)

// ErrNoChannel means the client has no contact the configured channels can reach.
var ErrNoChannel = errors.New("delivery: no usable channel for recipient")

// Recipient is the client a reminder goes to.
type Recipient struct {
	Name  string
	Phone string
	Email string
}

// MessageSender is the WhatsApp side.
type MessageSender interface {
	Enabled() bool
	SendMessage(ctx context.Context, phoneNumber, message string) error
}

// MailSender is the email side.
type MailSender interface {
	SendReminderEmail(ctx context.Context, toEmail, clientName, body string) error
}

// Dispatcher sends a reminder over the first channel the recipient can be reached on.
type Dispatcher struct {
	whatsapp MessageSender
	mail     MailSender
}

// NewDispatcher accepts nil for either channel.
func NewDispatcher(whatsapp MessageSender, mail MailSender) *Dispatcher {
	return &Dispatcher{whatsapp: whatsapp, mail: mail}
}

// Send returns the channel used. A failed WhatsApp send is not retried over
// email within the same call.
func (d *Dispatcher) Send(ctx context.Context, to Recipient, text string) (string, error) {
	if strings.TrimSpace(to.Phone) != "" && d.whatsapp != nil && d.whatsapp.Enabled() {
		if err := d.whatsapp.SendMessage(ctx, to.Phone, text); err != nil {
			return ChannelWhatsApp, err
		}
		return ChannelWhatsApp, nil
	}
	if strings.TrimSpace(to.Email) != "" && d.mail != nil {
		if err := d.mail.SendReminderEmail(ctx, to.Email, to.Name, text); err != nil {
			return ChannelEmail, err
		}
		return ChannelEmail, nil
	}
	return "", ErrNoChannel
}
