package memstore

import (
	"context"
	"testing"

	"postboard/internal/model"
	"postboard/internal/repository"
	"postboard/internal/repository/repotest"
)

func TestMemStore(t *testing.T) {
	repotest.Run(t, func(t *testing.T) *repository.Store { return New() })
}

func TestMemStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := &model.User{ID: "u1", Username: "alice", Email: "alice@example.com"}
	if err := s.Users.Create(ctx, u); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, _ := s.Users.GetByID(ctx, "u1")
	got.Username = "mutated"

	again, _ := s.Users.GetByID(ctx, "u1")
	if again.Username != "alice" {
		t.Errorf("stored username = %q, callers must not alias stored records", again.Username)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close = %v, want nil", err)
	}
}
