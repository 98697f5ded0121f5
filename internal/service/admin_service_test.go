package service

import (
	"context"
	"testing"

	"campus-tutor-go/internal/model"
)

func TestWhitelistRemovalCascadesToAdmins(t *testing.T) {
	ctx := context.Background()
	credRepo := newFakeCredentialRepo()
	svc := NewAdminService(credRepo, &fakeInteractionRepo{}, "course-sources")

	if err := svc.GrantAdmin(ctx, "ta@example.edu"); err != nil {
		t.Fatalf("GrantAdmin: %v", err)
	}
	if err := svc.RemoveFromWhitelist(ctx, "ta@example.edu"); err != nil {
		t.Fatalf("RemoveFromWhitelist: %v", err)
	}

	if credRepo.whitelist["ta@example.edu"] {
		t.Error("identity still whitelisted after removal")
	}
	if credRepo.admins["ta@example.edu"] {
		t.Error("admin flag survived whitelist removal")
	}
}

func TestGrantAdminAlsoWhitelists(t *testing.T) {
	ctx := context.Background()
	credRepo := newFakeCredentialRepo()
	svc := NewAdminService(credRepo, &fakeInteractionRepo{}, "course-sources")

	if err := svc.GrantAdmin(ctx, "ta@example.edu"); err != nil {
		t.Fatalf("GrantAdmin: %v", err)
	}
	if !credRepo.whitelist["ta@example.edu"] {
		t.Error("granted admin is not whitelisted")
	}
	if !credRepo.admins["ta@example.edu"] {
		t.Error("granted admin missing from admin set")
	}
}

func TestRevokeAdminKeepsWhitelist(t *testing.T) {
	ctx := context.Background()
	credRepo := newFakeCredentialRepo()
	svc := NewAdminService(credRepo, &fakeInteractionRepo{}, "course-sources")

	if err := svc.GrantAdmin(ctx, "ta@example.edu"); err != nil {
		t.Fatalf("GrantAdmin: %v", err)
	}
	if err := svc.RevokeAdmin(ctx, "ta@example.edu"); err != nil {
		t.Fatalf("RevokeAdmin: %v", err)
	}

	if credRepo.admins["ta@example.edu"] {
		t.Error("admin flag survived revocation")
	}
	if !credRepo.whitelist["ta@example.edu"] {
		t.Error("whitelist entry removed by admin revocation")
	}
}

func TestListInteractionsFiltering(t *testing.T) {
	interactionRepo := &fakeInteractionRepo{created: []model.InteractionRecord{
		{Identity: "a@example.edu", Question: "q1"},
		{Identity: "b@example.edu", Question: "q2"},
		{Identity: "a@example.edu", Question: "q3"},
	}}
	svc := NewAdminService(newFakeCredentialRepo(), interactionRepo, "course-sources")

	all, total, err := svc.ListInteractions("", 0, 10)
	if err != nil {
		t.Fatalf("ListInteractions: %v", err)
	}
	if len(all) != 3 || total != 3 {
		t.Errorf("unfiltered = %d/%d, want 3/3", len(all), total)
	}

	filtered, total, err := svc.ListInteractions("a@example.edu", 0, 10)
	if err != nil {
		t.Fatalf("ListInteractions: %v", err)
	}
	if len(filtered) != 2 || total != 2 {
		t.Errorf("filtered = %d/%d, want 2/2", len(filtered), total)
	}
}
