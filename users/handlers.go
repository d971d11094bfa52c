package users

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kbukum/base-api/auth/jwt"
	"github.com/kbukum/base-api/auth/password"
	apperrors "github.com/kbukum/base-api/errors"
	"github.com/kbukum/base-api/logger"
	"github.com/kbukum/base-api/mail"
	"github.com/kbukum/base-api/resilience"
	"github.com/kbukum/base-api/server"
	"github.com/kbukum/base-api/util"
)

// loginRole is stamped into every issued token. Authorization decisions are
// not derived from it yet; see auth.Permission.
const loginRole = "admin"

// CreateUserRequest is the POST /users body.
type CreateUserRequest struct {
	FirstName string  `json:"first_name" binding:"required"`
	LastName  string  `json:"last_name" binding:"required"`
	Email     string  `json:"email" binding:"required,email"`
	Password  string  `json:"password" binding:"required,min=8"`
	Role      string  `json:"role"`
	OrgID     *string `json:"org_id"`
}

// UpdateUserRequest is the PUT /users body. The email selects the record;
// password changes are deliberately not part of this endpoint.
type UpdateUserRequest struct {
	Email     string  `json:"email" binding:"required,email"`
	FirstName string  `json:"first_name" binding:"required"`
	LastName  string  `json:"last_name" binding:"required"`
	Role      string  `json:"role"`
	OrgID     *string `json:"org_id"`
}

// LoginRequest is the POST /auth body.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued session token.
type LoginResponse struct {
	Token string `json:"token"`
}

// Login attempts are throttled process-wide to slow credential stuffing.
const (
	loginRatePerSecond = 5
	loginBurst         = 10
)

// Handlers serves the user CRUD and login endpoints.
type Handlers struct {
	store        Store
	hasher       password.Hasher
	codec        *jwt.Service
	mailer       mail.Sender
	loginLimiter *resilience.RateLimiter
	log          *logger.Logger
}

// NewHandlers wires the user endpoints.
func NewHandlers(store Store, hasher password.Hasher, codec *jwt.Service, mailer mail.Sender) *Handlers {
	return &Handlers{
		store:        store,
		hasher:       hasher,
		codec:        codec,
		mailer:       mailer,
		loginLimiter: resilience.NewRateLimiter(loginRatePerSecond, loginBurst),
		log:          logger.WithComponent("users"),
	}
}

// RegisterRoutes mounts login on the open engine and the CRUD endpoints
// behind the gate.
func (h *Handlers) RegisterRoutes(engine *gin.Engine, gate gin.HandlerFunc) {
	engine.POST("/auth", h.Login)

	g := engine.Group("/users", gate)
	g.POST("", h.Create)
	g.GET("/:email", h.GetByEmail)
	g.PUT("", h.Update)
	g.DELETE("/:email", h.Delete)
}

// Create inserts a new user with a hashed password and responds 201 with
// the sanitized record.
func (h *Handlers) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, bindError(err))
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("password", err.Error()))
		return
	}

	role := req.Role
	if role == "" {
		role = loginRole
	}
	orgID, err := parseOptionalObjectID(req.OrgID)
	if err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("org_id", "must be a hex object id"))
		return
	}

	user, err := h.store.Create(c.Request.Context(), User{
		FirstName: util.SanitizeString(req.FirstName),
		LastName:  util.SanitizeString(req.LastName),
		Role:      role,
		OrgID:     orgID,
		Email:     req.Email,
		Password:  hash,
	})
	if err != nil {
		server.RespondWithError(c, err)
		return
	}

	h.notifyCreated(user)
	server.RespondCreated(c, user.Sanitize())
}

// GetByEmail responds with the sanitized record for the given email.
func (h *Handlers) GetByEmail(c *gin.Context) {
	user, err := h.store.GetByEmail(c.Request.Context(), c.Param("email"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, user.Sanitize())
}

// Update replaces the profile fields of the user selected by email.
func (h *Handlers) Update(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, bindError(err))
		return
	}

	orgID, err := parseOptionalObjectID(req.OrgID)
	if err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("org_id", "must be a hex object id"))
		return
	}

	if err := h.store.Update(c.Request.Context(), User{
		FirstName: util.SanitizeString(req.FirstName),
		LastName:  util.SanitizeString(req.LastName),
		Role:      req.Role,
		OrgID:     orgID,
		Email:     req.Email,
	}); err != nil {
		server.RespondWithError(c, err)
		return
	}

	user, err := h.store.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, user.Sanitize())
}

// Delete removes the user with the given email.
func (h *Handlers) Delete(c *gin.Context) {
	if err := h.store.DeleteByEmail(c.Request.Context(), c.Param("email")); err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondNoContent(c)
}

// Login verifies credentials and issues a session token. An unknown email
// is reported as such; a wrong password is an authentication failure.
func (h *Handlers) Login(c *gin.Context) {
	if !h.loginLimiter.Allow() {
		server.RespondWithError(c, apperrors.RateLimited())
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, bindError(err))
		return
	}

	user, err := h.store.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}

	if err := h.hasher.Verify(req.Password, user.Password); err != nil {
		h.log.Warn("Login rejected", logger.Fields(logger.FieldEmail, req.Email))
		server.RespondWithError(c, apperrors.Authentication("Invalid credentials."))
		return
	}

	token, err := h.codec.Issue(user.ID.Hex(), loginRole)
	if err != nil {
		server.RespondWithError(c, apperrors.Internal(err))
		return
	}
	server.RespondOK(c, LoginResponse{Token: token})
}

// notifyCreated sends the welcome mail off the request path. Delivery
// failure is logged inside the sender and never affects the response.
func (h *Handlers) notifyCreated(user User) {
	go func() {
		_ = h.mailer.Send(
			context.Background(),
			user.Email,
			"Your account is ready",
			"Hello "+user.FirstName+", your account has been created.",
		)
	}()
}

// bindError converts a binding failure into a structured invalid-input
// error, field by field for validator violations.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		appErr := apperrors.InvalidInput("body", "validation failed")
		for _, fe := range verrs {
			appErr = appErr.WithDetail(fe.Field(), fe.Tag())
		}
		return appErr
	}
	return apperrors.InvalidInput("body", err.Error())
}

func parseOptionalObjectID(hex *string) (*primitive.ObjectID, error) {
	if hex == nil || *hex == "" {
		return nil, nil
	}
	oid, err := primitive.ObjectIDFromHex(*hex)
	if err != nil {
		return nil, err
	}
	return &oid, nil
}
