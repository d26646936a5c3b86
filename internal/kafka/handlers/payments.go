package handlers

import (
	"encoding/json"

	"github.com/kidora-labs/notification/internal/domain"
	"github.com/kidora-labs/notification/internal/kafka/registry"
	"github.com/kidora-labs/notification/internal/messages"
)

func init() {
	Register("payment-events", "ORDER_PAID", handleOrderPaid)
	Register("payment-events", "PAYMENT_FAILED", handlePaymentFailed)
}

type paymentEnv struct {
	EventType string `json:"eventType"`
	EventID   string `json:"eventId"`
	Payload   struct {
		OrderID  string `json:"orderId"`
		OrderRef string `json:"orderRef"`
		ParentID string `json:"parentId"`
		Amount   string `json:"amount"`
	} `json:"payload"`
}

func parsePaymentEnv(data []byte) (*paymentEnv, bool) {
	var env paymentEnv
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false
	}
	if env.Payload.ParentID == "" {
		return nil, false
	}
	return &env, true
}

func handleOrderPaid(data []byte) *registry.Command {
	env, ok := parsePaymentEnv(data)
	if !ok {
		return nil
	}
	title, body := messages.OrderPaid(env.Payload.OrderRef, env.Payload.Amount)
	return &registry.Command{Send: &domain.SendInput{
		RecipientType: domain.RecipientParent,
		RecipientID:   env.Payload.ParentID,
		Type:          domain.TypeOrderPaid,
		Title:         title,
		Message:       body,
		Style:         domain.StyleToast,
		Priority:      domain.PriorityNormal,
		RelatedID:     env.Payload.OrderID,
		CTAAction:     "navigate",
		CTATarget:     "/orders/" + env.Payload.OrderID,
		Channels:      []domain.Channel{domain.ChannelInApp, domain.ChannelEmail},
		GroupKey:      "payments",
		SourceEventID: env.EventID,
		Metadata:      map[string]any{"eventId": env.EventID},
	}}
}

func handlePaymentFailed(data []byte) *registry.Command {
	env, ok := parsePaymentEnv(data)
	if !ok {
		return nil
	}
	title, body := messages.PaymentFailed(env.Payload.OrderRef)
	return &registry.Command{Send: &domain.SendInput{
		RecipientType: domain.RecipientParent,
		RecipientID:   env.Payload.ParentID,
		Type:          domain.TypePaymentFailed,
		Title:         title,
		Message:       body,
		Style:         domain.StyleBanner,
		Priority:      domain.PriorityUrgent,
		SoundAlert:    true,
		RelatedID:     env.Payload.OrderID,
		CTAAction:     "navigate",
		CTATarget:     "/orders/" + env.Payload.OrderID,
		Channels:      []domain.Channel{domain.ChannelInApp, domain.ChannelEmail},
		GroupKey:      "payments",
		SourceEventID: env.EventID,
		Metadata:      map[string]any{"eventId": env.EventID},
	}}
}
