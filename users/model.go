// Package users holds the user records the API serves: the Mongo-backed
// store, the directory lookup used by authentication, and the HTTP handlers.
package users

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CollectionName is the Mongo collection holding user documents.
const CollectionName = "users"

// User is the stored user document. Password holds the hash, never the
// plaintext, and is stripped by Sanitize before a user leaves this package
// through the directory or an HTTP response.
type User struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	FirstName string              `bson:"first_name" json:"first_name"`
	LastName  string              `bson:"last_name" json:"last_name"`
	Role      string              `bson:"role" json:"role"`
	OrgID     *primitive.ObjectID `bson:"org_id,omitempty" json:"org_id,omitempty"`
	Email     string              `bson:"email" json:"email"`
	Password  string              `bson:"password" json:"-"`
}

// SanitizedUser is a User with all secret material removed.
type SanitizedUser struct {
	ID        primitive.ObjectID  `bson:"_id" json:"id"`
	FirstName string              `bson:"first_name" json:"first_name"`
	LastName  string              `bson:"last_name" json:"last_name"`
	Role      string              `bson:"role" json:"role"`
	OrgID     *primitive.ObjectID `bson:"org_id,omitempty" json:"org_id,omitempty"`
	Email     string              `bson:"email" json:"email"`
}

// Sanitize strips the password hash.
func (u User) Sanitize() SanitizedUser {
	return SanitizedUser{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		OrgID:     u.OrgID,
		Email:     u.Email,
	}
}
