package handlers

import (
	"encoding/json"

	"github.com/kidora-labs/notification/internal/domain"
	"github.com/kidora-labs/notification/internal/kafka/registry"
	"github.com/kidora-labs/notification/internal/messages"
)

func init() {
	Register("reward-events", "REWARD_GRANTED", handleRewardGranted)
	Register("reward-events", "POINTS_EARNED", handlePointsEarned)
}

type rewardEnv struct {
	EventType string `json:"eventType"`
	EventID   string `json:"eventId"`
	Payload   struct {
		RewardID   string `json:"rewardId"`
		RewardName string `json:"rewardName"`
		ChildID    string `json:"childId"`
		GameName   string `json:"gameName"`
		Points     int    `json:"points"`
	} `json:"payload"`
}

func parseRewardEnv(data []byte) (*rewardEnv, bool) {
	var env rewardEnv
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false
	}
	if env.Payload.ChildID == "" {
		return nil, false
	}
	return &env, true
}

func handleRewardGranted(data []byte) *registry.Command {
	env, ok := parseRewardEnv(data)
	if !ok {
		return nil
	}
	title, body := messages.RewardGranted(env.Payload.RewardName)
	return &registry.Command{Send: &domain.SendInput{
		RecipientType: domain.RecipientChild,
		RecipientID:   env.Payload.ChildID,
		Type:          domain.TypeRewardGranted,
		Title:         title,
		Message:       body,
		Style:         domain.StyleModal,
		Priority:      domain.PriorityNormal,
		SoundAlert:    true,
		Vibration:     true,
		RelatedID:     env.Payload.RewardID,
		CTAAction:     "navigate",
		CTATarget:     "/rewards/" + env.Payload.RewardID,
		GroupKey:      "rewards",
		SourceEventID: env.EventID,
		Metadata:      map[string]any{"eventId": env.EventID},
	}}
}

func handlePointsEarned(data []byte) *registry.Command {
	env, ok := parseRewardEnv(data)
	if !ok {
		return nil
	}
	title, body := messages.PointsEarned(env.Payload.Points, env.Payload.GameName)
	return &registry.Command{Send: &domain.SendInput{
		RecipientType: domain.RecipientChild,
		RecipientID:   env.Payload.ChildID,
		Type:          domain.TypePointsEarned,
		Title:         title,
		Message:       body,
		Style:         domain.StyleToast,
		Priority:      domain.PriorityNormal,
		GroupKey:      "points",
		// Points toasts are noise after a day.
		TTLMinutes:    24 * 60,
		SourceEventID: env.EventID,
		Metadata:      map[string]any{"eventId": env.EventID, "points": env.Payload.Points},
	}}
}
