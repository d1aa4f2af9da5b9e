package oauthstate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/jobhub/internal/app/store/oauthstate"
	"github.com/dalemusser/jobhub/internal/testutil"
)

type stateStore interface {
	Save(ctx context.Context, st oauthstate.State) error
	Consume(ctx context.Context, state string) (oauthstate.State, error)
}

func exerciseStateStore(t *testing.T, s stateStore) {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	err := s.Save(ctx, oauthstate.State{
		State:     "abc",
		UserType:  "employer",
		Nonce:     "n-1",
		ExpiresAt: time.Now().Add(10 * time.Minute),
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Consume(ctx, "abc")
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if got.UserType != "employer" || got.Nonce != "n-1" {
		t.Errorf("Consume returned %+v", got)
	}

	// single use
	if _, err := s.Consume(ctx, "abc"); !errors.Is(err, oauthstate.ErrNotFound) {
		t.Errorf("second Consume: expected ErrNotFound, got %v", err)
	}

	if err := s.Save(ctx, oauthstate.State{State: "old", ExpiresAt: time.Now().Add(-time.Second)}); err != nil {
		t.Fatalf("Save expired failed: %v", err)
	}
	if _, err := s.Consume(ctx, "old"); !errors.Is(err, oauthstate.ErrNotFound) {
		t.Errorf("expired Consume: expected ErrNotFound, got %v", err)
	}

	if _, err := s.Consume(ctx, ""); !errors.Is(err, oauthstate.ErrNotFound) {
		t.Errorf("empty Consume: expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStateStore(t, oauthstate.NewMemoryStore())
}

func TestStore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	exerciseStateStore(t, oauthstate.New(db))
}
