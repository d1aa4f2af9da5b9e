package jobstore_test

import (
	"errors"
	"testing"

	jobstore "github.com/dalemusser/jobhub/internal/app/store/jobs"
	"github.com/dalemusser/jobhub/internal/domain/models"
	"github.com/dalemusser/jobhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_CreateAndList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := jobstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := primitive.NewObjectID()
	created, err := store.Create(ctx, models.Job{Title: "Go Engineer", OwnerID: owner})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Status != models.JobStatusActive {
		t.Errorf("Status = %q, want active", created.Status)
	}
	if got := created.ExpiresAt.Sub(created.PostedAt); got != models.JobListingPeriod {
		t.Errorf("listing window = %s", got)
	}
	if _, err := store.Create(ctx, models.Job{Title: "Hidden", OwnerID: owner, IsHidden: true}); err != nil {
		t.Fatalf("Create hidden failed: %v", err)
	}

	jobs, err := store.ListVisible(ctx)
	if err != nil {
		t.Fatalf("ListVisible failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != created.ID {
		t.Fatalf("ListVisible = %+v, want only the visible job", jobs)
	}
}

func TestStore_DeleteOwned(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := jobstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := primitive.NewObjectID()
	job, err := store.Create(ctx, models.Job{Title: "Ops", OwnerID: owner})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	deleted, err := store.DeleteOwned(ctx, job.ID, primitive.NewObjectID())
	if err != nil || deleted {
		t.Fatalf("DeleteOwned by stranger = %v, %v; want false, nil", deleted, err)
	}

	deleted, err = store.DeleteOwned(ctx, job.ID, owner)
	if err != nil || !deleted {
		t.Fatalf("DeleteOwned by owner = %v, %v; want true, nil", deleted, err)
	}

	if _, err := store.GetByID(ctx, job.ID); !errors.Is(err, jobstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
