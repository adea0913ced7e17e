package delivery

import (
	"context"
	"errors"
	"testing"
)

type fakeWhatsApp struct {
	enabled bool
	err     error
	sent    []string
}

func (f *fakeWhatsApp) Enabled() bool { return f.enabled }

func (f *fakeWhatsApp) SendMessage(_ context.Context, phone, _ string) error {
	f.sent = append(f.sent, phone)
	return f.err
}

type fakeMail struct{ sent []string }

func (f *fakeMail) SendReminderEmail(_ context.Context, to, _, _ string) error {
	f.sent = append(f.sent, to)
	return nil
}

func TestSendPrefersWhatsApp(t *testing.T) {
	wa := &fakeWhatsApp{enabled: true}
	mail := &fakeMail{}
	d := NewDispatcher(wa, mail)

	channel, err := d.Send(context.Background(), Recipient{Phone: "+5511987654321", Email: "a@b.c"}, "oi")
	if err != nil || channel != ChannelWhatsApp {
		t.Fatalf("got channel %q err %v", channel, err)
	}
	if len(wa.sent) != 1 || len(mail.sent) != 0 {
		t.Fatalf("expected only whatsapp send")
	}
}

func TestSendFallsBackToEmail(t *testing.T) {
	mail := &fakeMail{}
	d := NewDispatcher(&fakeWhatsApp{enabled: false}, mail)

	channel, err := d.Send(context.Background(), Recipient{Phone: "+5511987654321", Email: "a@b.c"}, "oi")
	if err != nil || channel != ChannelEmail || len(mail.sent) != 1 {
		t.Fatalf("got channel %q err %v", channel, err)
	}
}

func TestSendReportsWhatsAppFailure(t *testing.T) {
	boom := errors.New("gateway down")
	mail := &fakeMail{}
	d := NewDispatcher(&fakeWhatsApp{enabled: true, err: boom}, mail)

	_, err := d.Send(context.Background(), Recipient{Phone: "+5511987654321", Email: "a@b.c"}, "oi")
	if !errors.Is(err, boom) || len(mail.sent) != 0 {
		t.Fatalf("expected whatsapp error without email fallback, got %v", err)
	}
}

func TestSendWithoutContact(t *testing.T) {
	d := NewDispatcher(nil, nil)
	if _, err := d.Send(context.Background(), Recipient{Name: "Ana"}, "oi"); !errors.Is(err, ErrNoChannel) {
		t.Fatalf("expected ErrNoChannel, got %v", err)
	}
}
