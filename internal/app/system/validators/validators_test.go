package validators_test

import (
	"testing"
	"time"

	"github.com/dalemusser/jobhub/internal/app/system/validators"
	"github.com/dalemusser/jobhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("first EnsureAll failed: %v", err)
	}
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesCollections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		t.Fatalf("ListCollectionNames failed: %v", err)
	}
	collMap := make(map[string]bool)
	for _, name := range names {
		collMap[name] = true
	}
	for _, expected := range []string{"users", "organizations", "jobs", "sessions", "oauth_states", "login_records"} {
		if !collMap[expected] {
			t.Errorf("expected collection %q to exist", expected)
		}
	}
}

func TestValidators(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	now := time.Now().UTC()
	tests := []struct {
		name    string
		coll    string
		doc     bson.M
		wantErr bool
	}{
		{"valid user", "users", bson.M{"email": "a@example.com", "email_ci": "a@example.com", "user_type": "individual"}, false},
		{"user missing email", "users", bson.M{"user_type": "individual"}, true},
		{"user bad type", "users", bson.M{"email": "b@example.com", "email_ci": "b@example.com", "user_type": "robot"}, true},
		{"user empty subject", "users", bson.M{"email": "c@example.com", "email_ci": "c@example.com", "user_type": "individual", "provider_subject_id": ""}, true},
		{"valid org", "organizations", bson.M{"name": "Acme", "name_ci": "acme"}, false},
		{"org blank name", "organizations", bson.M{"name": "   ", "name_ci": "   "}, true},
		{"valid job", "jobs", bson.M{"title": "Engineer", "owner_id": primitive.NewObjectID(), "status": "active", "posted_at": now}, false},
		{"job bad status", "jobs", bson.M{"title": "Engineer", "owner_id": primitive.NewObjectID(), "status": "archived", "posted_at": now}, true},
		{"job missing owner", "jobs", bson.M{"title": "Engineer", "status": "active", "posted_at": now}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.Collection(tt.coll).InsertOne(ctx, tt.doc)
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("insert failed: %v", err)
			}
		})
	}
}
