package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kidora-labs/notification/internal/domain"
	"github.com/kidora-labs/notification/internal/orchestrator"
	"github.com/kidora-labs/notification/internal/registry"
)

// --- fakes ---

type fakeStore struct {
	mu      sync.Mutex
	stored  []*domain.Notification
	seen    map[string]bool
	failErr error
}

func (s *fakeStore) Create(_ context.Context, in domain.CreateInput) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failErr != nil {
		return nil, s.failErr
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.SourceEventID != "" {
		if s.seen[in.SourceEventID] {
			return nil, domain.ErrDuplicateEvent
		}
		if s.seen == nil {
			s.seen = map[string]bool{}
		}
		s.seen[in.SourceEventID] = true
	}

	n := &domain.Notification{
		ID:            uuid.New(),
		ParentID:      in.ParentID,
		ChildID:       in.ChildID,
		Type:          in.Type,
		Title:         in.Title,
		Message:       in.Message,
		Style:         in.Style,
		Priority:      in.Priority,
		SoundAlert:    in.SoundAlert,
		Vibration:     in.Vibration,
		RelatedID:     in.RelatedID,
		CTAAction:     in.CTAAction,
		CTATarget:     in.CTATarget,
		Metadata:      in.Metadata,
		CreatedAt:     time.Now(),
		ExpiresAt:     in.ExpiresAt,
		SourceEventID: in.SourceEventID,
	}
	s.stored = append(s.stored, n)
	return n, nil
}

func (s *fakeStore) BatchCreate(ctx context.Context, inputs []domain.CreateInput) ([]*domain.Notification, error) {
	var out []*domain.Notification
	for _, in := range inputs {
		n, err := s.Create(ctx, in)
		if errors.Is(err, domain.ErrDuplicateEvent) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stored)
}

type fakeDirectory struct {
	enabled    bool
	enabledErr error
	emails     map[string]string
	emailErr   error
	parents    []string
}

func (d *fakeDirectory) EmailEnabled(context.Context) (bool, error) {
	return d.enabled, d.enabledErr
}

func (d *fakeDirectory) ParentEmail(_ context.Context, parentID string) (string, error) {
	if d.emailErr != nil {
		return "", d.emailErr
	}
	return d.emails[parentID], nil
}

func (d *fakeDirectory) AllParentIDs(context.Context) ([]string, error) {
	return d.parents, nil
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu      sync.Mutex
	sent    []sentMail
	failErr error
}

func (m *fakeMailer) SendNotificationEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

func (m *fakeMailer) all() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

func setup() (*orchestrator.Orchestrator, *fakeStore, *registry.Registry, *fakeDirectory, *fakeMailer) {
	store := &fakeStore{}
	reg := registry.New()
	dir := &fakeDirectory{enabled: true, emails: map[string]string{"p1": "p1@example.com"}}
	mail := &fakeMailer{}
	return orchestrator.New(store, reg, dir, mail), store, reg, dir, mail
}

// --- tests ---

func TestSend_ChildReceivesLivePushSynchronously(t *testing.T) {
	orch, store, reg, _, _ := setup()

	var received []*domain.Notification
	reg.SubscribeChild("c1", func(n *domain.Notification) {
		received = append(received, n)
	})

	n, err := orch.Send(context.Background(), domain.SendInput{
		RecipientType: domain.RecipientChild,
		RecipientID:   "c1",
		Type:          domain.TypeTaskAssigned,
		Message:       "New task!",
		Channels:      []domain.Channel{domain.ChannelInApp},
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if store.count() != 1 {
		t.Fatalf("expected one stored record, got %d", store.count())
	}
	if n.ChildID != "c1" || n.ParentID != "" {
		t.Fatalf("recipient id must land in the child field: %+v", n)
	}
	// Publish happens inside Send, so the listener has the record already.
	if len(received) != 1 {
		t.Fatalf("listener should have received exactly one push, got %d", len(received))
	}
	if received[0].ID != n.ID || received[0].Message != "New task!" {
		t.Fatalf("listener must receive the stored record, got %+v", received[0])
	}
	chs, ok := n.Metadata[domain.MetaChannels].([]string)
	if !ok || len(chs) != 1 || chs[0] != "in_app" {
		t.Fatalf("metadata channels mismatch: %v", n.Metadata[domain.MetaChannels])
	}
}

func TestSend_PerRecipientOrderingPreserved(t *testing.T) {
	orch, _, reg, _, _ := setup()

	var order []string
	reg.SubscribeChild("c1", func(n *domain.Notification) {
		order = append(order, n.Message)
	})

	ctx := context.Background()
	for _, msg := range []string{"one", "two", "three"} {
		if _, err := orch.Send(ctx, domain.SendInput{
			RecipientType: domain.RecipientChild,
			RecipientID:   "c1",
			Type:          domain.TypeSystem,
			Message:       msg,
		}); err != nil {
			t.Fatalf("send %q failed: %v", msg, err)
		}
	}

	if len(order) != 3 || order[0] != "one" || order[1] != "two" || order[2] != "three" {
		t.Fatalf("pushes must arrive in send order, got %v", order)
	}
}

func TestSend_MetadataPrecedence(t *testing.T) {
	orch, _, _, _, _ := setup()

	n, err := orch.Send(context.Background(), domain.SendInput{
		RecipientType: domain.RecipientChild,
		RecipientID:   "c1",
		Type:          domain.TypeSystem,
		Message:       "hi",
		Channels:      []domain.Channel{domain.ChannelInApp, domain.ChannelEmail},
		GroupKey:      "grp",
		Metadata: map[string]any{
			"channel":  "sms", // must lose to the computed value
			"groupKey": "attacker",
			"custom":   "kept",
		},
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if n.Metadata[domain.MetaChannel] != "in_app" {
		t.Fatalf("computed channel must win, got %v", n.Metadata[domain.MetaChannel])
	}
	if n.Metadata[domain.MetaGroupKey] != "grp" {
		t.Fatalf("computed groupKey must win, got %v", n.Metadata[domain.MetaGroupKey])
	}
	if n.Metadata["custom"] != "kept" {
		t.Fatalf("caller keys outside the reserved set must survive, got %v", n.Metadata["custom"])
	}
}

func TestSend_TTLComputation(t *testing.T) {
	orch, _, _, _, _ := setup()

	n, err := orch.Send(context.Background(), domain.SendInput{
		RecipientType: domain.RecipientChild,
		RecipientID:   "c1",
		Type:          domain.TypeSystem,
		Message:       "hi",
		TTLMinutes:    10,
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if n.ExpiresAt == nil {
		t.Fatal("expected expires_at to be set")
	}
	want := time.Now().Add(10 * time.Minute)
	if diff := n.ExpiresAt.Sub(want); diff < -5*time.Second || diff > 5*time.Second {
		t.Fatalf("expires_at off by %v", diff)
	}

	raw, ok := n.Metadata[domain.MetaExpiresAt].(string)
	if !ok {
		t.Fatalf("metadata expiresAt should be a string, got %T", n.Metadata[domain.MetaExpiresAt])
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		t.Fatalf("metadata expiresAt is not RFC3339: %v", err)
	}
	if diff := parsed.Sub(want); diff < -5*time.Second || diff > 5*time.Second {
		t.Fatalf("metadata expiresAt off by %v", diff)
	}
}

func TestSend_NoTTLMeansNoExpiry(t *testing.T) {
	orch, _, _, _, _ := setup()

	n, err := orch.Send(context.Background(), domain.SendInput{
		RecipientType: domain.RecipientChild,
		RecipientID:   "c1",
		Type:          domain.TypeSystem,
		Message:       "hi",
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if n.ExpiresAt != nil {
		t.Fatalf("expected no expiry, got %v", n.ExpiresAt)
	}
	v, ok := n.Metadata[domain.MetaExpiresAt]
	if !ok || v != nil {
		t.Fatalf("metadata expiresAt should be present and nil, got %v (present=%v)", v, ok)
	}
}

func TestSend_DefaultChannelIsInApp(t *testing.T) {
	orch, _, _, _, _ := setup()

	n, err := orch.Send(context.Background(), domain.SendInput{
		RecipientType: domain.RecipientChild,
		RecipientID:   "c1",
		Type:          domain.TypeSystem,
		Message:       "hi",
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	chs, _ := n.Metadata[domain.MetaChannels].([]string)
	if len(chs) != 1 || chs[0] != "in_app" {
		t.Fatalf("expected default [in_app], got %v", chs)
	}
	if n.Metadata[domain.MetaChannel] != "in_app" {
		t.Fatalf("expected default channel in_app, got %v", n.Metadata[domain.MetaChannel])
	}
}

func TestSend_EmptyEnumsGetDefaults(t *testing.T) {
	orch, _, _, _, _ := setup()

	n, err := orch.Send(context.Background(), domain.SendInput{
		RecipientType: domain.RecipientChild,
		RecipientID:   "c1",
		Message:       "hi",
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if n.Type != domain.TypeSystem {
		t.Errorf("expected type system, got %q", n.Type)
	}
	if n.Style != domain.StyleToast {
		t.Errorf("expected style toast, got %q", n.Style)
	}
	if n.Priority != domain.PriorityNormal {
		t.Errorf("expected priority normal, got %q", n.Priority)
	}
}

func TestSend_RedeliveredEventIsSkipped(t *testing.T) {
	orch, store, reg, _, _ := setup()

	pushes := 0
	reg.SubscribeChild("c1", func(*domain.Notification) { pushes++ })

	in := domain.SendInput{
		RecipientType: domain.RecipientChild,
		RecipientID:   "c1",
		Type:          domain.TypeTaskAssigned,
		Message:       "New task",
		SourceEventID: "evt-1",
	}

	first, err := orch.Send(context.Background(), in)
	if err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	if first == nil {
		t.Fatal("first send should return the stored record")
	}

	second, err := orch.Send(context.Background(), in)
	if err != nil {
		t.Fatalf("redelivery must not error: %v", err)
	}
	if second != nil {
		t.Fatalf("redelivery should be a silent skip, got %+v", second)
	}

	if store.count() != 1 {
		t.Fatalf("expected a single stored record, got %d", store.count())
	}
	if pushes != 1 {
		t.Fatalf("expected a single live push, got %d", pushes)
	}
}

func TestSend_RedeliveredEventSendsNoSecondEmail(t *testing.T) {
	orch, _, _, _, mail := setup()

	in := domain.SendInput{
		RecipientType: domain.RecipientParent,
		RecipientID:   "p1",
		Type:          domain.TypeOrderPaid,
		Title:         "Payment received",
		Message:       "Your payment went through.",
		Channels:      []domain.Channel{domain.ChannelInApp, domain.ChannelEmail},
		SourceEventID: "evt-2",
	}

	if _, err := orch.Send(context.Background(), in); err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	if _, err := orch.Send(context.Background(), in); err != nil {
		t.Fatalf("redelivery must not error: %v", err)
	}
	orch.Drain()

	if got := len(mail.all()); got != 1 {
		t.Fatalf("expected exactly one email, got %d", got)
	}
}

func TestBroadcast_RedeliveryRepeatsNoParent(t *testing.T) {
	orch, store, reg, dir, _ := setup()
	dir.parents = []string{"p1", "p2", "p3"}

	live := 0
	reg.SubscribeParent("p2", func(*domain.Notification) { live++ })

	in := domain.BroadcastInput{
		Type:          domain.TypeAdminBroadcast,
		Message:       "Maintenance tonight.",
		SourceEventID: "cmd-1",
	}

	first, err := orch.Broadcast(context.Background(), in)
	if err != nil {
		t.Fatalf("first broadcast failed: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("expected 3 inserted records, got %d", len(first))
	}

	keys := map[string]bool{}
	for _, n := range first {
		keys[n.SourceEventID] = true
	}
	if len(keys) != 3 {
		t.Fatalf("expected a distinct per-parent dedup key, got %v", keys)
	}

	second, err := orch.Broadcast(context.Background(), in)
	if err != nil {
		t.Fatalf("redelivered broadcast must not error: %v", err)
	}
	if second != nil {
		t.Fatalf("redelivered broadcast should insert nothing, got %d records", len(second))
	}
	orch.Drain()

	if store.count() != 3 {
		t.Fatalf("expected 3 stored records total, got %d", store.count())
	}
	if live != 1 {
		t.Fatalf("connected parent should get exactly one live push, got %d", live)
	}
}

func TestSend_EmailDeliveredToParent(t *testing.T) {
	orch, _, _, _, mail := setup()

	_, err := orch.Send(context.Background(), domain.SendInput{
		RecipientType: domain.RecipientParent,
		RecipientID:   "p1",
		Type:          domain.TypeOrderPaid,
		Title:         "Payment received",
		Message:       "Your payment went through.",
		Channels:      []domain.Channel{domain.ChannelInApp, domain.ChannelEmail},
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	orch.Drain()

	sent := mail.all()
	if len(sent) != 1 {
		t.Fatalf("expected one email, got %d", len(sent))
	}
	if sent[0].to != "p1@example.com" || sent[0].subject != "Payment received" || sent[0].body != "Your payment went through." {
		t.Fatalf("unexpected email: %+v", sent[0])
	}
}

func TestSend_EmailDefaultSubject(t *testing.T) {
	orch, _, _, _, mail := setup()

	_, err := orch.Send(context.Background(), domain.SendInput{
		RecipientType: domain.RecipientParent,
		RecipientID:   "p1",
		Type:          domain.TypeSystem,
		Message:       "untitled",
		Channels:      []domain.Channel{domain.ChannelEmail},
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	orch.Drain()

	sent := mail.all()
	if len(sent) != 1 || sent[0].subject != "New notification" {
		t.Fatalf("expected default subject, got %+v", sent)
	}
}

func TestSend_EmailNeverSentToChildren(t *testing.T) {
	orch, store, _, _, mail := setup()

	_, err := orch.Send(context.Background(), domain.SendInput{
		RecipientType: domain.RecipientChild,
		RecipientID:   "c1",
		Type:          domain.TypeSystem,
		Message:       "hi",
		Channels:      []domain.Channel{domain.ChannelEmail},
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	orch.Drain()

	if len(mail.all()) != 0 {
		t.Fatal("email channel is parent-only, no email should be attempted")
	}
	if store.count() != 1 {
		t.Fatal("the record must still be created")
	}
}

func TestSend_EmailSkippedWhenSettingDisabled(t *testing.T) {
	orch, store, _, dir, mail := setup()
	dir.enabled = false

	_, err := orch.Send(context.Background(), domain.SendInput{
		RecipientType: domain.RecipientParent,
		RecipientID:   "p1",
		Type:          domain.TypeSystem,
		Message:       "hi",
		Channels:      []domain.Channel{domain.ChannelEmail},
	})
	if err != nil {
		t.Fatalf("send must succeed with email disabled: %v", err)
	}
	orch.Drain()

	if len(mail.all()) != 0 {
		t.Fatal("no email should be attempted when the global setting is off")
	}
	if store.count() != 1 {
		t.Fatal("the record must still be created")
	}
}

func TestSend_EmailSkippedWithoutAddress(t *testing.T) {
	orch, _, _, dir, mail := setup()
	dir.emails = map[string]string{}

	_, err := orch.Send(context.Background(), domain.SendInput{
		RecipientType: domain.RecipientParent,
		RecipientID:   "p1",
		Type:          domain.TypeSystem,
		Message:       "hi",
		Channels:      []domain.Channel{domain.ChannelEmail},
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	orch.Drain()

	if len(mail.all()) != 0 {
		t.Fatal("no email should be attempted without an address")
	}
}

func TestSend_EmailFailureSwallowed(t *testing.T) {
	orch, store, _, _, mail := setup()
	mail.failErr = errors.New("smtp down")

	n, err := orch.Send(context.Background(), domain.SendInput{
		RecipientType: domain.RecipientParent,
		RecipientID:   "p1",
		Type:          domain.TypeSystem,
		Message:       "hi",
		Channels:      []domain.Channel{domain.ChannelEmail},
	})
	if err != nil {
		t.Fatalf("channel failure must not fail the send: %v", err)
	}
	orch.Drain()

	if n == nil || store.count() != 1 {
		t.Fatal("the record must exist despite email failure")
	}
}

func TestSend_LookupFailureSwallowed(t *testing.T) {
	orch, _, _, dir, mail := setup()
	dir.enabledErr = errors.New("settings service down")

	_, err := orch.Send(context.Background(), domain.SendInput{
		RecipientType: domain.RecipientParent,
		RecipientID:   "p1",
		Type:          domain.TypeSystem,
		Message:       "hi",
		Channels:      []domain.Channel{domain.ChannelEmail},
	})
	if err != nil {
		t.Fatalf("settings lookup failure must not fail the send: %v", err)
	}
	orch.Drain()

	if len(mail.all()) != 0 {
		t.Fatal("no email should go out when the settings lookup fails")
	}
}

func TestSend_StoreFailurePropagates(t *testing.T) {
	orch, store, reg, _, _ := setup()
	store.failErr = errors.New("db down")

	pushed := 0
	reg.SubscribeChild("c1", func(*domain.Notification) { pushed++ })

	_, err := orch.Send(context.Background(), domain.SendInput{
		RecipientType: domain.RecipientChild,
		RecipientID:   "c1",
		Type:          domain.TypeSystem,
		Message:       "hi",
	})
	if err == nil {
		t.Fatal("persistence failure must propagate to the caller")
	}
	if pushed != 0 {
		t.Fatal("nothing may be pushed when persistence failed")
	}
}

func TestSend_UnknownRecipientType(t *testing.T) {
	orch, _, _, _, _ := setup()

	_, err := orch.Send(context.Background(), domain.SendInput{
		RecipientType: "robot",
		RecipientID:   "r1",
		Type:          domain.TypeSystem,
		Message:       "hi",
	})
	if err == nil {
		t.Fatal("expected error for unknown recipient type")
	}
}

func TestBroadcast_FansOutToAllParents(t *testing.T) {
	orch, store, reg, dir, _ := setup()
	dir.parents = []string{"p1", "p2", "p3"}

	live := 0
	reg.SubscribeParent("p2", func(*domain.Notification) { live++ })

	inserted, err := orch.Broadcast(context.Background(), domain.BroadcastInput{
		Type:    domain.TypeAdminBroadcast,
		Title:   "Maintenance",
		Message: "Kidora will be down tonight.",
	})
	if err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}
	orch.Drain()

	if len(inserted) != 3 || store.count() != 3 {
		t.Fatalf("expected one record per parent, got %d", len(inserted))
	}
	for _, n := range inserted {
		if n.ParentID == "" || n.ChildID != "" {
			t.Fatalf("broadcast records must be parent-directed: %+v", n)
		}
	}
	if live != 1 {
		t.Fatalf("connected parent should get exactly one live push, got %d", live)
	}
}

func TestBroadcast_ZeroParentsIsNoOp(t *testing.T) {
	orch, store, _, dir, _ := setup()
	dir.parents = nil

	inserted, err := orch.Broadcast(context.Background(), domain.BroadcastInput{
		Type:    domain.TypeAdminBroadcast,
		Message: "nobody home",
	})
	if err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}
	if inserted != nil || store.count() != 0 {
		t.Fatal("expected no records for an empty parent roster")
	}
}
