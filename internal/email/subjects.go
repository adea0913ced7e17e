package email

const (
	subjectReminder = "Lembrete do seu horário"
)
