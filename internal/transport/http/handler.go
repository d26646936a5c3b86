package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/kidora-labs/notification/internal/domain"
	"github.com/kidora-labs/notification/internal/orchestrator"
	"github.com/kidora-labs/notification/internal/registry"
	"github.com/kidora-labs/notification/internal/transport/mw"
)

// Handler holds all HTTP handler methods.
type Handler struct {
	repo domain.Repository
	reg  *registry.Registry
	orch *orchestrator.Orchestrator
}

// NewHandler creates a new Handler.
func NewHandler(repo domain.Repository, reg *registry.Registry, orch *orchestrator.Orchestrator) *Handler {
	return &Handler{repo: repo, reg: reg, orch: orch}
}

// --- REST Handlers ---

// ListNotifications GET /notifications
func (h *Handler) ListNotifications(c echo.Context) error {
	rt, recipientID := mustIdentity(c)

	filter := domain.NotificationFilter{
		Limit:  parseIntQuery(c, "limit", 20),
		Offset: parseIntQuery(c, "offset", 0),
	}
	if rt == domain.RecipientChild {
		filter.ChildID = recipientID
	} else {
		filter.ParentID = recipientID
	}

	if t := c.QueryParam("type"); t != "" {
		filter.Type = domain.NotificationType(t)
	}
	if r := c.QueryParam("is_read"); r != "" {
		isRead := r == "true"
		filter.IsRead = &isRead
	}

	notifications, err := h.repo.List(c.Request().Context(), filter)
	if err != nil {
		return echo.ErrInternalServerError
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data":   notifications,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// GetUnreadCount GET /notifications/unread-count
func (h *Handler) GetUnreadCount(c echo.Context) error {
	rt, recipientID := mustIdentity(c)

	count, err := h.repo.CountUnread(c.Request().Context(), rt, recipientID)
	if err != nil {
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, map[string]int64{"count": count})
}

// MarkRead PATCH /notifications/:id/read
func (h *Handler) MarkRead(c echo.Context) error {
	rt, recipientID := mustIdentity(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid notification id")
	}

	if err := h.repo.MarkRead(c.Request().Context(), id, rt, recipientID); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkAllRead POST /notifications/read-all
func (h *Handler) MarkAllRead(c echo.Context) error {
	rt, recipientID := mustIdentity(c)

	count, err := h.repo.MarkAllRead(c.Request().Context(), rt, recipientID)
	if err != nil {
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, map[string]int64{"marked": count})
}

// Delete DELETE /notifications/:id
func (h *Handler) Delete(c echo.Context) error {
	rt, recipientID := mustIdentity(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid notification id")
	}

	if err := h.repo.Delete(c.Request().Context(), id, rt, recipientID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Admin send ---

type sendRequest struct {
	RecipientType string         `json:"recipient_type"`
	RecipientID   string         `json:"recipient_id"`
	Type          string         `json:"type"`
	Title         string         `json:"title"`
	Message       string         `json:"message"`
	Style         string         `json:"style"`
	Priority      string         `json:"priority"`
	SoundAlert    bool           `json:"sound_alert"`
	Vibration     bool           `json:"vibration"`
	RelatedID     string         `json:"related_id"`
	CTAAction     string         `json:"cta_action"`
	CTATarget     string         `json:"cta_target"`
	Channels      []string       `json:"channels"`
	TTLMinutes    int            `json:"ttl_minutes"`
	GroupKey      string         `json:"group_key"`
	Metadata      map[string]any `json:"metadata"`
}

// Send POST /notifications — admin-only targeted send.
func (h *Handler) Send(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	rt := domain.RecipientType(req.RecipientType)
	if rt != domain.RecipientParent && rt != domain.RecipientChild {
		return echo.NewHTTPError(http.StatusBadRequest, "recipient_type must be parent or child")
	}

	channels := make([]domain.Channel, 0, len(req.Channels))
	for _, ch := range req.Channels {
		channels = append(channels, domain.Channel(ch))
	}

	n, err := h.orch.Send(c.Request().Context(), domain.SendInput{
		RecipientType: rt,
		RecipientID:   req.RecipientID,
		Type:          domain.NotificationType(req.Type),
		Title:         req.Title,
		Message:       req.Message,
		Style:         domain.Style(req.Style),
		Priority:      domain.Priority(req.Priority),
		SoundAlert:    req.SoundAlert,
		Vibration:     req.Vibration,
		RelatedID:     req.RelatedID,
		CTAAction:     req.CTAAction,
		CTATarget:     req.CTATarget,
		Channels:      channels,
		TTLMinutes:    req.TTLMinutes,
		GroupKey:      req.GroupKey,
		Metadata:      req.Metadata,
	})
	if err != nil {
		// Recipient problems are the caller's fault; anything else is ours.
		if errors.Is(err, domain.ErrNoRecipient) || errors.Is(err, domain.ErrBothRecipients) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		log.Error().Err(err).Msg("admin send failed")
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusCreated, n)
}

// --- SSE Handler ---

// Stream GET /notifications/stream — live push over SSE, backed by the
// recipient registry. Children and parents subscribe in their own namespace.
func (h *Handler) Stream(c echo.Context) error {
	rt, recipientID := mustIdentity(c)

	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable proxy buffering

	// The registry listener runs inside Publish; it hands the frame to this
	// connection's channel and never blocks the publisher.
	sendCh := make(chan []byte, 32)
	listener := func(n *domain.Notification) {
		select {
		case sendCh <- buildSSEMessage(n):
		default:
			log.Warn().Str("recipient", recipientID).Msg("SSE client send buffer full, skipping")
		}
	}

	var unsubscribe func()
	if rt == domain.RecipientChild {
		unsubscribe = h.reg.SubscribeChild(recipientID, listener)
	} else {
		unsubscribe = h.reg.SubscribeParent(recipientID, listener)
	}
	defer unsubscribe()

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"ok\"}\n\n")
	w.Flush()

	log.Info().Str("recipient_type", string(rt)).Str("recipient", recipientID).Msg("SSE stream opened")

	ctx := c.Request().Context()
	for {
		select {
		case msg := <-sendCh:
			if _, err := w.Write(msg); err != nil {
				return nil
			}
			w.Flush()

		case <-ctx.Done():
			log.Info().Str("recipient", recipientID).Msg("SSE stream closed by client")
			return nil
		}
	}
}

// --- Healthcheck ---

// Health GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":        "ok",
		"sse_listeners": h.reg.ListenerCount(),
	})
}

// --- Helpers ---

// mustIdentity maps the authenticated role onto a recipient namespace.
// Admins read and stream on the parent namespace.
func mustIdentity(c echo.Context) (domain.RecipientType, string) {
	userID, _ := c.Get(mw.CtxUserID).(string)
	role, _ := c.Get(mw.CtxRole).(string)
	if role == "child" {
		return domain.RecipientChild, userID
	}
	return domain.RecipientParent, userID
}

func parseIntQuery(c echo.Context, key string, def int) int {
	v, err := strconv.Atoi(c.QueryParam(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}

// buildSSEMessage formats a notification as an SSE data frame.
func buildSSEMessage(n *domain.Notification) []byte {
	b, _ := json.Marshal(n)
	return []byte("event: notification\ndata: " + string(b) + "\n\n")
}
