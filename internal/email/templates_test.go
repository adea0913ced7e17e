package email

import (
	"strings"
	"testing"
)

func TestReminderTemplateEscapesBody(t *testing.T) {
	out, err := renderEmailTemplate("reminder.html", reminderEmailData{
		baseEmailData: baseEmailData{Title: subjectReminder, Heading: subjectReminder},
		ClientName:    "Ana",
		Body:          "Seu horário é às 14:00 <b>amanhã</b>",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "Ana,") || !strings.Contains(out, subjectReminder) {
		t.Fatalf("missing content in %q", out)
	}
	if strings.Contains(out, "<b>amanhã</b>") {
		t.Fatal("body was not escaped")
	}
}
