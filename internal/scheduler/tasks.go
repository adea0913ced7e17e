package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskReminderPass = "reminders.pass"

const TaskScoreRefresh = "leads.score.refresh"

// ReminderPassPayload names the interval slot the pass was enqueued for.
// Identical payloads within one slot let asynq reject duplicate passes.
type ReminderPassPayload struct {
	Slot time.Time `json:"slot"`
}

type ScoreRefreshPayload struct {
	Slot   time.Time `json:"slot"`
	MaxAge string    `json:"maxAge"`
	Limit  int       `json:"limit"`
}

func NewReminderPassTask(payload ReminderPassPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReminderPass, data), nil
}

func ParseReminderPassPayload(task *asynq.Task) (ReminderPassPayload, error) {
	var payload ReminderPassPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ReminderPassPayload{}, err
	}
	return payload, nil
}

func NewScoreRefreshTask(payload ScoreRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskScoreRefresh, data), nil
}

func ParseScoreRefreshPayload(task *asynq.Task) (ScoreRefreshPayload, error) {
	var payload ScoreRefreshPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ScoreRefreshPayload{}, err
	}
	return payload, nil
}
