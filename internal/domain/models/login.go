package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Sign-in methods recorded on LoginRecord.
const (
	LoginMethodSSO      = "sso"
	LoginMethodPassword = "password"
)

// LoginRecord is one successful sign-in (collection login_records).
type LoginRecord struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID        primitive.ObjectID `bson:"user_id" json:"user_id"`
	Method        string             `bson:"method" json:"method"`
	ProviderOrgID string             `bson:"provider_org_id,omitempty" json:"provider_org_id,omitempty"`
	IP            string             `bson:"ip" json:"ip"`
	UserAgent     string             `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
}
