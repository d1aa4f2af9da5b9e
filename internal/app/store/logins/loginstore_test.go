package loginstore_test

import (
	"net/http"
	"testing"
	"time"

	loginstore "github.com/dalemusser/jobhub/internal/app/store/logins"
	"github.com/dalemusser/jobhub/internal/domain/models"
	"github.com/dalemusser/jobhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := loginstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	if err := store.Create(ctx, models.LoginRecord{UserID: userID, Method: models.LoginMethodPassword, IP: "192.168.1.1"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	var found models.LoginRecord
	if err := db.Collection("login_records").FindOne(ctx, bson.M{"user_id": userID}).Decode(&found); err != nil {
		t.Fatalf("failed to find login record: %v", err)
	}
	if found.IP != "192.168.1.1" {
		t.Errorf("IP: got %q, want %q", found.IP, "192.168.1.1")
	}
	if found.Method != models.LoginMethodPassword {
		t.Errorf("Method: got %q", found.Method)
	}
	if found.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestStore_Create_WithExplicitTimestamp(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := loginstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	at := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	if err := store.Create(ctx, models.LoginRecord{UserID: userID, Method: models.LoginMethodSSO, CreatedAt: at}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	var found models.LoginRecord
	if err := db.Collection("login_records").FindOne(ctx, bson.M{"user_id": userID}).Decode(&found); err != nil {
		t.Fatalf("failed to find login record: %v", err)
	}
	if !found.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt: got %v, want %v", found.CreatedAt, at)
	}
}

func TestStore_Record(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := loginstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := models.User{ID: primitive.NewObjectID(), ProviderOrgID: "org_acme"}
	req := testutil.NewRequest(http.MethodGet, "/auth/callback")
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("User-Agent", "jobhub-test")

	if err := store.Record(ctx, req, u, models.LoginMethodSSO); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	var found models.LoginRecord
	if err := db.Collection("login_records").FindOne(ctx, bson.M{"user_id": u.ID}).Decode(&found); err != nil {
		t.Fatalf("failed to find login record: %v", err)
	}
	if found.IP != "203.0.113.7" {
		t.Errorf("IP: got %q, want first X-Forwarded-For hop", found.IP)
	}
	if found.UserAgent != "jobhub-test" || found.ProviderOrgID != "org_acme" || found.Method != models.LoginMethodSSO {
		t.Errorf("record = %+v", found)
	}
}
