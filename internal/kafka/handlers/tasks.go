package handlers

import (
	"encoding/json"

	"github.com/kidora-labs/notification/internal/domain"
	"github.com/kidora-labs/notification/internal/kafka/registry"
	"github.com/kidora-labs/notification/internal/messages"
)

func init() {
	Register("task-events", "TASK_ASSIGNED", handleTaskAssigned)
	Register("task-events", "TASK_COMPLETED", handleTaskCompleted)
	Register("task-events", "TASK_EXPIRED", handleTaskExpired)
}

type taskEnv struct {
	EventType string `json:"eventType"`
	EventID   string `json:"eventId"`
	Payload   struct {
		TaskID    string `json:"taskId"`
		TaskName  string `json:"taskName"`
		ChildID   string `json:"childId"`
		ChildName string `json:"childName"`
		ParentID  string `json:"parentId"`
		Points    int    `json:"points"`
	} `json:"payload"`
}

func parseTaskEnv(data []byte) (*taskEnv, bool) {
	var env taskEnv
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false
	}
	return &env, true
}

// handleTaskAssigned notifies the child a parent gave them a task.
func handleTaskAssigned(data []byte) *registry.Command {
	env, ok := parseTaskEnv(data)
	if !ok || env.Payload.ChildID == "" {
		return nil
	}
	title, body := messages.TaskAssigned(env.Payload.TaskName, env.Payload.Points)
	return &registry.Command{Send: &domain.SendInput{
		RecipientType: domain.RecipientChild,
		RecipientID:   env.Payload.ChildID,
		Type:          domain.TypeTaskAssigned,
		Title:         title,
		Message:       body,
		Style:         domain.StyleToast,
		Priority:      domain.PriorityNormal,
		SoundAlert:    true,
		RelatedID:     env.Payload.TaskID,
		CTAAction:     "navigate",
		CTATarget:     "/tasks/" + env.Payload.TaskID,
		GroupKey:      "tasks",
		SourceEventID: env.EventID,
		Metadata:      map[string]any{"eventId": env.EventID},
	}}
}

// handleTaskCompleted notifies the parent their child finished a task.
func handleTaskCompleted(data []byte) *registry.Command {
	env, ok := parseTaskEnv(data)
	if !ok || env.Payload.ParentID == "" {
		return nil
	}
	title, body := messages.TaskCompleted(env.Payload.ChildName, env.Payload.TaskName)
	return &registry.Command{Send: &domain.SendInput{
		RecipientType: domain.RecipientParent,
		RecipientID:   env.Payload.ParentID,
		Type:          domain.TypeTaskCompleted,
		Title:         title,
		Message:       body,
		Style:         domain.StyleToast,
		Priority:      domain.PriorityNormal,
		RelatedID:     env.Payload.TaskID,
		CTAAction:     "navigate",
		CTATarget:     "/tasks/" + env.Payload.TaskID,
		Channels:      []domain.Channel{domain.ChannelInApp, domain.ChannelEmail},
		GroupKey:      "tasks",
		SourceEventID: env.EventID,
		Metadata:      map[string]any{"eventId": env.EventID},
	}}
}

func handleTaskExpired(data []byte) *registry.Command {
	env, ok := parseTaskEnv(data)
	if !ok || env.Payload.ChildID == "" {
		return nil
	}
	title, body := messages.TaskExpired(env.Payload.TaskName)
	return &registry.Command{Send: &domain.SendInput{
		RecipientType: domain.RecipientChild,
		RecipientID:   env.Payload.ChildID,
		Type:          domain.TypeTaskExpired,
		Title:         title,
		Message:       body,
		Style:         domain.StyleBanner,
		Priority:      domain.PriorityWarning,
		RelatedID:     env.Payload.TaskID,
		GroupKey:      "tasks",
		SourceEventID: env.EventID,
		Metadata:      map[string]any{"eventId": env.EventID},
	}}
}
