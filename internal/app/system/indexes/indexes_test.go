package indexes_test

import (
	"testing"

	"github.com/dalemusser/jobhub/internal/app/system/indexes"
	"github.com/dalemusser/jobhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func indexNames(t *testing.T, db *mongo.Database, coll string) map[string]bool {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cur, err := db.Collection(coll).Indexes().List(ctx)
	if err != nil {
		t.Fatalf("List indexes on %s failed: %v", coll, err)
	}
	defer cur.Close(ctx)

	names := map[string]bool{}
	for cur.Next(ctx) {
		var idx bson.M
		if err := cur.Decode(&idx); err != nil {
			continue
		}
		if name, ok := idx["name"].(string); ok {
			names[name] = true
		}
	}
	return names
}

func TestEnsureAll_Idempotent(t *testing.T) {
	// SetupTestDB already ran EnsureAll once.
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesExpectedIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)

	expected := map[string][]string{
		"users":         {"uniq_users_emailci", "uniq_users_provider_subject", "idx_users_org"},
		"organizations": {"uniq_orgs_nameci", "uniq_orgs_domain", "idx_orgs_provider_org"},
		"jobs":          {"idx_jobs_posted", "idx_jobs_owner"},
		"sessions":      {"idx_sessions_ttl", "idx_sessions_user"},
		"oauth_states":  {"idx_oauth_state", "idx_oauth_ttl"},
		"login_records": {"idx_logins_user_created"},
	}
	for coll, want := range expected {
		names := indexNames(t, db, coll)
		for _, n := range want {
			if !names[n] {
				t.Errorf("%s: expected index %q, have %v", coll, n, names)
			}
		}
	}
}

func TestUsersEmailUnique(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	users := db.Collection("users")
	if _, err := users.InsertOne(ctx, bson.M{"email_ci": "dup@example.com"}); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	_, err := users.InsertOne(ctx, bson.M{"email_ci": "dup@example.com"})
	if !mongo.IsDuplicateKeyError(err) {
		t.Fatalf("expected duplicate key error, got %v", err)
	}
}

func TestUsersProviderSubjectIgnoresLocalUsers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	users := db.Collection("users")
	for _, email := range []string{"a@example.com", "b@example.com"} {
		if _, err := users.InsertOne(ctx, bson.M{"email_ci": email}); err != nil {
			t.Fatalf("insert local user %s: %v", email, err)
		}
	}
}
