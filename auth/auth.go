// Package auth builds per-request authentication contexts from bearer
// tokens. The token codec lives in auth/jwt, the request-scoped accessors in
// auth/authctx; this package ties them to the user directory.
package auth

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	apperrors "github.com/kbukum/base-api/errors"
	"github.com/kbukum/base-api/auth/jwt"
	"github.com/kbukum/base-api/logger"
	"github.com/kbukum/base-api/users"
)

// bearerScheme is the Authorization header scheme marker.
const bearerScheme = "Bearer"

// Context is the resolved, request-scoped identity derived from a verified
// token. Built once per request, read-only afterwards, never persisted.
// It carries no secret material: the user profile is sanitized on resolve.
type Context struct {
	User   users.SanitizedUser `json:"user"`
	APIKey string              `json:"api_key,omitempty"`
}

// PermissionType enumerates the kinds of declared permissions.
type PermissionType string

const (
	PermissionTriggerEvent PermissionType = "trigger_event"
	PermissionRead         PermissionType = "read"
	PermissionWrite        PermissionType = "write"
)

// Permission is a declared capability on an optional object. It is carried
// on the data model as an extension point; no gate enforces it yet.
type Permission struct {
	Type   PermissionType      `json:"permission_type" bson:"permission_type"`
	Object *primitive.ObjectID `json:"permissioned_object,omitempty" bson:"permissioned_object,omitempty"`
}

// UserResolver resolves a user id to a sanitized profile.
type UserResolver interface {
	Resolve(ctx context.Context, userID string) (users.SanitizedUser, error)
}

// Authenticator builds an authentication Context from request headers.
type Authenticator struct {
	codec     *jwt.Service
	directory UserResolver
	log       *logger.Logger
}

// NewAuthenticator creates the context builder.
func NewAuthenticator(codec *jwt.Service, directory UserResolver, log *logger.Logger) *Authenticator {
	return &Authenticator{
		codec:     codec,
		directory: directory,
		log:       log.WithComponent("auth"),
	}
}

// Authenticate builds a Context from the Authorization header value.
//
// A missing or unparseable header is an authentication failure (401): no
// context can be built, anonymous is not an option here. A token that fails
// verification is rejected with the codec's uniform invalid-token error. A
// verified token whose user cannot be resolved is a database error (500):
// the credential was fine, the data behind it was not.
//
// The result is never cached; tokens can be revoked externally by deleting
// the user, so every request re-resolves.
func (a *Authenticator) Authenticate(ctx context.Context, authorization string) (*Context, error) {
	if authorization == "" {
		return nil, apperrors.Authentication("Authorization header required.")
	}

	token, ok := extractBearer(authorization)
	if !ok {
		return nil, apperrors.Authentication("Authorization header must use the Bearer scheme.")
	}

	claims, err := a.codec.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := a.directory.Resolve(ctx, claims.UserID)
	if err != nil {
		a.log.Error("Token user resolution failed", logger.Fields(
			logger.FieldUserID, claims.UserID,
			logger.FieldError, err.Error(),
		))
		return nil, apperrors.Database(err).WithDetail("user_id", claims.UserID)
	}

	return &Context{User: user}, nil
}

// extractBearer returns the token text following the Bearer scheme marker,
// trimmed of surrounding whitespace.
func extractBearer(authorization string) (string, bool) {
	if !strings.HasPrefix(authorization, bearerScheme) {
		return "", false
	}
	token := strings.TrimSpace(authorization[len(bearerScheme):])
	if token == "" {
		return "", false
	}
	return token, true
}
