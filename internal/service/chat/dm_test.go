package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stafflink/stafflink-chat/internal/store"
)

func TestFindOrCreateDirectIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.service.FindOrCreateDirect(ctx, f.employee, f.hr.ID)
	if err != nil {
		t.Fatalf("FindOrCreateDirect failed: %v", err)
	}
	if first.Kind != store.KindDirect || first.Slug != nil {
		t.Fatalf("unexpected conversation: %+v", first)
	}

	// Same pair again, and from the other side: same conversation.
	again, err := f.service.FindOrCreateDirect(ctx, f.employee, f.hr.ID)
	if err != nil {
		t.Fatalf("repeat FindOrCreateDirect failed: %v", err)
	}
	reversed, err := f.service.FindOrCreateDirect(ctx, f.hr, f.employee.ID)
	if err != nil {
		t.Fatalf("reversed FindOrCreateDirect failed: %v", err)
	}
	if again.ID != first.ID || reversed.ID != first.ID {
		t.Fatalf("expected one conversation, got ids %d, %d, %d", first.ID, again.ID, reversed.ID)
	}

	directs, err := f.store.ListDirectConversations(ctx, f.employee.ID)
	if err != nil {
		t.Fatalf("ListDirectConversations failed: %v", err)
	}
	if len(directs) != 1 {
		t.Fatalf("expected exactly one direct conversation, got %d", len(directs))
	}
}

func TestFindOrCreateDirectForbiddenPairs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Employees may open DMs with HR and managers only.
	other, err := f.store.CreateUser(ctx, "eric", "eric", store.RoleEmployee, "hash")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	cases := []struct {
		name  string
		actor *store.User
		other int64
	}{
		{"employee to employee", f.employee, other.ID},
		{"employee to admin", f.employee, f.admin.ID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.service.FindOrCreateDirect(ctx, tc.actor, tc.other); !errors.Is(err, ErrForbidden) {
				t.Fatalf("expected ErrForbidden, got %v", err)
			}
		})
	}

	// A rejected attempt persists nothing.
	directs, err := f.store.ListDirectConversations(ctx, f.employee.ID)
	if err != nil {
		t.Fatalf("ListDirectConversations failed: %v", err)
	}
	if len(directs) != 0 {
		t.Fatalf("expected no conversations after rejections, got %d", len(directs))
	}
}

func TestFindOrCreateDirectSelf(t *testing.T) {
	f := newFixture(t)
	if _, err := f.service.FindOrCreateDirect(context.Background(), f.employee, f.employee.ID); !errors.Is(err, ErrSelfDirect) {
		t.Fatalf("expected ErrSelfDirect, got %v", err)
	}
}

func TestFindOrCreateDirectUnknownUser(t *testing.T) {
	f := newFixture(t)
	if _, err := f.service.FindOrCreateDirect(context.Background(), f.employee, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
