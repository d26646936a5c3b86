package http_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/kidora-labs/notification/internal/domain"
	"github.com/kidora-labs/notification/internal/orchestrator"
	"github.com/kidora-labs/notification/internal/registry"
	transporthttp "github.com/kidora-labs/notification/internal/transport/http"
)

type stubStore struct {
	failErr error
}

func (s stubStore) Create(_ context.Context, in domain.CreateInput) (*domain.Notification, error) {
	if s.failErr != nil {
		return nil, s.failErr
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &domain.Notification{
		ID:        uuid.New(),
		ParentID:  in.ParentID,
		ChildID:   in.ChildID,
		Type:      in.Type,
		Message:   in.Message,
		CreatedAt: time.Now(),
	}, nil
}

func (s stubStore) BatchCreate(ctx context.Context, inputs []domain.CreateInput) ([]*domain.Notification, error) {
	var out []*domain.Notification
	for _, in := range inputs {
		n, err := s.Create(ctx, in)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

type stubDirectory struct{}

func (stubDirectory) EmailEnabled(context.Context) (bool, error)          { return false, nil }
func (stubDirectory) ParentEmail(context.Context, string) (string, error) { return "", nil }
func (stubDirectory) AllParentIDs(context.Context) ([]string, error)      { return nil, nil }

type noopMailer struct{}

func (noopMailer) SendNotificationEmail(context.Context, string, string, string) error { return nil }

func postSend(t *testing.T, store domain.Store, body string) error {
	t.Helper()

	orch := orchestrator.New(store, registry.New(), stubDirectory{}, noopMailer{})
	h := transporthttp.NewHandler(nil, registry.New(), orch)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/notifications", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return h.Send(e.NewContext(req, rec))
}

func TestSend_MissingRecipientIsBadRequest(t *testing.T) {
	err := postSend(t, stubStore{}, `{"recipient_type":"child","message":"hi"}`)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestSend_StoreFailureIsServerError(t *testing.T) {
	store := stubStore{failErr: errors.New("connection refused")}
	err := postSend(t, store, `{"recipient_type":"child","recipient_id":"c1","message":"hi"}`)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for an infrastructure failure, got %v", err)
	}
}

func TestSend_ValidRequestCreated(t *testing.T) {
	orch := orchestrator.New(stubStore{}, registry.New(), stubDirectory{}, noopMailer{})
	h := transporthttp.NewHandler(nil, registry.New(), orch)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/notifications",
		strings.NewReader(`{"recipient_type":"parent","recipient_id":"p1","message":"hi"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.Send(e.NewContext(req, rec)); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}
