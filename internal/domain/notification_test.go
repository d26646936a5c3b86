package domain_test

import (
	"errors"
	"testing"

	"github.com/kidora-labs/notification/internal/domain"
)

func TestCreateInputValidate_ExactlyOneRecipient(t *testing.T) {
	ok := domain.CreateInput{ChildID: "c1", Message: "hi"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("child-only input should be valid, got %v", err)
	}

	ok = domain.CreateInput{ParentID: "p1", Message: "hi"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("parent-only input should be valid, got %v", err)
	}
}

func TestCreateInputValidate_NoRecipient(t *testing.T) {
	in := domain.CreateInput{Message: "hi"}
	if err := in.Validate(); !errors.Is(err, domain.ErrNoRecipient) {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}
}

func TestCreateInputValidate_BothRecipients(t *testing.T) {
	in := domain.CreateInput{ParentID: "p1", ChildID: "c1", Message: "hi"}
	if err := in.Validate(); !errors.Is(err, domain.ErrBothRecipients) {
		t.Fatalf("expected ErrBothRecipients, got %v", err)
	}
}

func TestRecipientID(t *testing.T) {
	n := domain.Notification{ChildID: "c1"}
	if got := n.RecipientID(); got != "c1" {
		t.Fatalf("expected c1, got %q", got)
	}

	n = domain.Notification{ParentID: "p1"}
	if got := n.RecipientID(); got != "p1" {
		t.Fatalf("expected p1, got %q", got)
	}
}
