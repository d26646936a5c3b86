package handlers

import (
	"encoding/json"

	"github.com/kidora-labs/notification/internal/domain"
	"github.com/kidora-labs/notification/internal/kafka/registry"
)

func init() {
	RegisterDirect("notification-commands", handleCommand)
}

// handleCommand processes ad-hoc commands published by the admin dashboard:
// either a targeted send or an all-parents broadcast.
func handleCommand(data []byte) *registry.Command {
	var cmd struct {
		CommandID     string         `json:"commandId"`
		Broadcast     bool           `json:"broadcast"`
		RecipientType string         `json:"recipientType"`
		RecipientID   string         `json:"recipientId"`
		Type          string         `json:"type"`
		Title         string         `json:"title"`
		Message       string         `json:"message"`
		Style         string         `json:"style"`
		Priority      string         `json:"priority"`
		Channels      []string       `json:"channels"`
		TTLMinutes    int            `json:"ttlMinutes"`
		GroupKey      string         `json:"groupKey"`
		Metadata      map[string]any `json:"metadata"`
	}
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil
	}
	if cmd.Message == "" {
		return nil
	}

	notifType := domain.NotificationType(cmd.Type)
	switch notifType {
	case domain.TypeTaskAssigned, domain.TypeTaskCompleted, domain.TypeTaskExpired,
		domain.TypeRewardGranted, domain.TypePointsEarned,
		domain.TypeOrderPaid, domain.TypePaymentFailed,
		domain.TypeAdminBroadcast, domain.TypeSystem:
	default:
		if cmd.Broadcast {
			notifType = domain.TypeAdminBroadcast
		} else {
			notifType = domain.TypeSystem
		}
	}

	style := domain.Style(cmd.Style)
	switch style {
	case domain.StyleToast, domain.StyleModal, domain.StyleBanner, domain.StyleFullscreen:
	default:
		style = domain.StyleToast
	}

	priority := domain.Priority(cmd.Priority)
	switch priority {
	case domain.PriorityNormal, domain.PriorityWarning, domain.PriorityUrgent, domain.PriorityBlocking:
	default:
		priority = domain.PriorityNormal
	}

	channels := make([]domain.Channel, 0, len(cmd.Channels))
	for _, c := range cmd.Channels {
		channels = append(channels, domain.Channel(c))
	}

	meta := cmd.Metadata
	if cmd.CommandID != "" {
		if meta == nil {
			meta = map[string]any{}
		}
		meta["commandId"] = cmd.CommandID
	}

	if cmd.Broadcast {
		return &registry.Command{Broadcast: &domain.BroadcastInput{
			Type:          notifType,
			Title:         cmd.Title,
			Message:       cmd.Message,
			Style:         style,
			Priority:      priority,
			Channels:      channels,
			TTLMinutes:    cmd.TTLMinutes,
			GroupKey:      cmd.GroupKey,
			Metadata:      meta,
			SourceEventID: cmd.CommandID,
		}}
	}

	rt := domain.RecipientType(cmd.RecipientType)
	if rt != domain.RecipientParent && rt != domain.RecipientChild {
		return nil
	}
	if cmd.RecipientID == "" {
		return nil
	}

	return &registry.Command{Send: &domain.SendInput{
		RecipientType: rt,
		RecipientID:   cmd.RecipientID,
		Type:          notifType,
		Title:         cmd.Title,
		Message:       cmd.Message,
		Style:         style,
		Priority:      priority,
		Channels:      channels,
		TTLMinutes:    cmd.TTLMinutes,
		GroupKey:      cmd.GroupKey,
		Metadata:      meta,
		SourceEventID: cmd.CommandID,
	}}
}
